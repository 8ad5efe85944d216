package mcpserver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrlesur/live-memory/internal/authctx"
)

func adminCtx(ctx context.Context) context.Context {
	return authctx.WithIdentity(ctx, &authctx.Identity{ClientName: "admin", Permissions: []string{"admin"}})
}

func writerCtx(ctx context.Context) context.Context {
	return authctx.WithIdentity(ctx, &authctx.Identity{ClientName: "writer", Permissions: []string{"write"}})
}

func readerCtx(ctx context.Context) context.Context {
	return authctx.WithIdentity(ctx, &authctx.Identity{ClientName: "reader", Permissions: []string{"read"}})
}

func TestToolSpaceCreate(t *testing.T) {
	t.Run("Should reject an unauthenticated caller", func(t *testing.T) {
		deps := testDeps()
		res := toolSpaceCreate(context.Background(), deps, map[string]any{"space_id": "demo"})
		assert.Equal(t, "error", res["status"])
	})

	t.Run("Should reject a read-only caller", func(t *testing.T) {
		deps := testDeps()
		res := toolSpaceCreate(readerCtx(context.Background()), deps, map[string]any{"space_id": "demo"})
		assert.Equal(t, "error", res["status"])
	})

	t.Run("Should create a space for a writer", func(t *testing.T) {
		deps := testDeps()
		res := toolSpaceCreate(writerCtx(context.Background()), deps, map[string]any{
			"space_id": "demo", "description": "d", "rules": "r",
		})
		assert.Equal(t, "demo", res["space_id"])
	})
}

func TestToolSpaceList(t *testing.T) {
	t.Run("Should list spaces visible to the caller", func(t *testing.T) {
		deps := testDeps()
		ctx := adminCtx(context.Background())
		toolSpaceCreate(ctx, deps, map[string]any{"space_id": "demo", "description": "d", "rules": "r"})
		res := toolSpaceList(ctx, deps, nil)
		assert.Equal(t, "ok", res["status"])
		spaces, ok := res["spaces"].([]map[string]any)
		require.True(t, ok)
		assert.Len(t, spaces, 1)
	})
}

func TestToolSpaceInfoRulesSummary(t *testing.T) {
	deps := testDeps()
	ctx := adminCtx(context.Background())
	toolSpaceCreate(ctx, deps, map[string]any{"space_id": "demo", "description": "d", "rules": "be nice"})

	t.Run("Should return space info", func(t *testing.T) {
		res := toolSpaceInfo(ctx, deps, map[string]any{"space_id": "demo"})
		assert.Equal(t, "ok", res["status"])
		assert.Equal(t, "demo", res["space_id"])
	})

	t.Run("Should return rules text", func(t *testing.T) {
		res := toolSpaceRules(ctx, deps, map[string]any{"space_id": "demo"})
		assert.Equal(t, "be nice", res["rules"])
	})

	t.Run("Should return not_found for a missing space", func(t *testing.T) {
		res := toolSpaceInfo(ctx, deps, map[string]any{"space_id": "missing"})
		assert.Equal(t, "not_found", res["status"])
	})

	t.Run("Should deny access outside the caller's allowed resources", func(t *testing.T) {
		scoped := authctx.WithIdentity(context.Background(), &authctx.Identity{
			ClientName: "scoped", Permissions: []string{"read"}, AllowedResources: []string{"other"},
		})
		res := toolSpaceInfo(scoped, deps, map[string]any{"space_id": "demo"})
		assert.Equal(t, "error", res["status"])
	})
}

func TestToolSpaceExport(t *testing.T) {
	t.Run("Should return a base64 gzip archive", func(t *testing.T) {
		deps := testDeps()
		ctx := adminCtx(context.Background())
		toolSpaceCreate(ctx, deps, map[string]any{"space_id": "demo", "description": "d", "rules": "r"})
		res := toolSpaceExport(ctx, deps, map[string]any{"space_id": "demo"})
		assert.Equal(t, "ok", res["status"])
		archive, ok := res["archive_base64"].(string)
		require.True(t, ok)
		assert.NotEmpty(t, archive)
	})
}

func TestToolSpaceDelete(t *testing.T) {
	t.Run("Should require confirm=true", func(t *testing.T) {
		deps := testDeps()
		ctx := adminCtx(context.Background())
		toolSpaceCreate(ctx, deps, map[string]any{"space_id": "demo", "description": "d", "rules": "r"})
		res := toolSpaceDelete(ctx, deps, map[string]any{"space_id": "demo"})
		assert.Equal(t, "error", res["status"])
	})

	t.Run("Should delete once confirmed", func(t *testing.T) {
		deps := testDeps()
		ctx := adminCtx(context.Background())
		toolSpaceCreate(ctx, deps, map[string]any{"space_id": "demo", "description": "d", "rules": "r"})
		res := toolSpaceDelete(ctx, deps, map[string]any{"space_id": "demo", "confirm": true})
		assert.Equal(t, "ok", res["status"])
	})
}
