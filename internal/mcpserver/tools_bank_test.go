package mcpserver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolBankListReadReadAll(t *testing.T) {
	deps := testDeps()
	seedDemoSpace(t, deps)
	require.NoError(t, deps.Store.Put(context.Background(), "demo/bank/overview.md", []byte("overview body"), "text/markdown"))

	t.Run("Should list bank filenames", func(t *testing.T) {
		res := toolBankList(readerCtx(context.Background()), deps, map[string]any{"space_id": "demo"})
		assert.Equal(t, "ok", res["status"])
		assert.Equal(t, []string{"overview.md"}, res["files"])
	})

	t.Run("Should read one bank file", func(t *testing.T) {
		res := toolBankRead(readerCtx(context.Background()), deps, map[string]any{"space_id": "demo", "filename": "overview.md"})
		assert.Equal(t, "ok", res["status"])
		assert.Equal(t, "overview body", res["content"])
	})

	t.Run("Should report not_found for a missing bank file", func(t *testing.T) {
		res := toolBankRead(readerCtx(context.Background()), deps, map[string]any{"space_id": "demo", "filename": "missing.md"})
		assert.Equal(t, "not_found", res["status"])
	})

	t.Run("Should read every bank file at once", func(t *testing.T) {
		res := toolBankReadAll(readerCtx(context.Background()), deps, map[string]any{"space_id": "demo"})
		assert.Equal(t, "ok", res["status"])
		files, ok := res["files"].(map[string]string)
		require.True(t, ok)
		assert.Equal(t, "overview body", files["overview.md"])
	})
}

func TestToolBankConsolidate(t *testing.T) {
	t.Run("Should short-circuit to ok with zero notes processed", func(t *testing.T) {
		deps := testDeps()
		seedDemoSpace(t, deps)
		res := toolBankConsolidate(writerCtx(context.Background()), deps, map[string]any{"space_id": "demo"})
		assert.Equal(t, "ok", res["status"])
		assert.Equal(t, 0, res["notes_processed"])
	})

	t.Run("Should reject a read-only caller", func(t *testing.T) {
		deps := testDeps()
		seedDemoSpace(t, deps)
		res := toolBankConsolidate(readerCtx(context.Background()), deps, map[string]any{"space_id": "demo"})
		assert.Equal(t, "error", res["status"])
	})
}
