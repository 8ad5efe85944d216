package mcpserver

import (
	"context"

	"github.com/chrlesur/live-memory/internal/authctx"
)

// requireSpaceAccess checks that ctx's identity is authenticated and may
// read the given space, returning a ready-to-send error payload if not
// (nil otherwise).
func requireSpaceAccess(ctx context.Context, spaceID string) map[string]any {
	id := authctx.FromContext(ctx)
	if id == nil {
		return errorResult("Authentication required")
	}
	if !authctx.CheckAccess(id, spaceID) {
		return errorResult("Access denied to space " + spaceID)
	}
	return nil
}

// requireSpaceWrite additionally requires write or admin permission.
func requireSpaceWrite(ctx context.Context, spaceID string) map[string]any {
	if denied := requireSpaceAccess(ctx, spaceID); denied != nil {
		return denied
	}
	if !authctx.CheckWrite(authctx.FromContext(ctx)) {
		return errorResult("Permission write required")
	}
	return nil
}

// requireAdmin requires an authenticated identity with admin permission,
// with no space scoping (token-registry and GC tools are global).
func requireAdmin(ctx context.Context) map[string]any {
	id := authctx.FromContext(ctx)
	if id == nil {
		return errorResult("Authentication required")
	}
	if !authctx.CheckAdmin(id) {
		return errorResult("Permission admin required")
	}
	return nil
}

// requireConfirm enforces spec.md §7's destructive-tool confirmation gate.
func requireConfirm(args map[string]any) map[string]any {
	if !argBool(args, "confirm") {
		return errorResult("this operation is destructive; retry with confirm=true")
	}
	return nil
}
