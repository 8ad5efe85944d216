package mcpserver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToolGraphStatusAndPermissions(t *testing.T) {
	deps := testDeps()
	seedDemoSpace(t, deps)

	t.Run("Should report disconnected when never configured", func(t *testing.T) {
		res := toolGraphStatus(readerCtx(context.Background()), deps, map[string]any{"space_id": "demo"})
		assert.Equal(t, "ok", res["status"])
		assert.Equal(t, false, res["connected"])
	})

	t.Run("Should reject connect from a read-only caller", func(t *testing.T) {
		res := toolGraphConnect(readerCtx(context.Background()), deps, map[string]any{"space_id": "demo", "url": "http://x"})
		assert.Equal(t, "error", res["status"])
	})

	t.Run("Should reject push from a read-only caller", func(t *testing.T) {
		res := toolGraphPush(readerCtx(context.Background()), deps, map[string]any{"space_id": "demo"})
		assert.Equal(t, "error", res["status"])
	})

	t.Run("Should reject disconnect from a read-only caller", func(t *testing.T) {
		res := toolGraphDisconnect(readerCtx(context.Background()), deps, map[string]any{"space_id": "demo"})
		assert.Equal(t, "error", res["status"])
	})

	t.Run("Should no-op disconnect cleanly when never connected", func(t *testing.T) {
		res := toolGraphDisconnect(writerCtx(context.Background()), deps, map[string]any{"space_id": "demo"})
		assert.Equal(t, "ok", res["status"])
	})

	t.Run("Should deny status to an unauthenticated caller", func(t *testing.T) {
		res := toolGraphStatus(context.Background(), deps, map[string]any{"space_id": "demo"})
		assert.Equal(t, "error", res["status"])
	})
}
