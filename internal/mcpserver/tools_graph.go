package mcpserver

import "context"

func toolGraphConnect(ctx context.Context, deps *Deps, args map[string]any) map[string]any {
	spaceID := argString(args, "space_id")
	if denied := requireSpaceWrite(ctx, spaceID); denied != nil {
		return denied
	}
	err := deps.GraphBridge.Connect(
		ctx,
		spaceID,
		argString(args, "url"),
		argString(args, "token"),
		argString(args, "memory_id"),
		argString(args, "ontology"),
	)
	if err != nil {
		return errorResult(err.Error())
	}
	return okResult("space_id", spaceID)
}

func toolGraphPush(ctx context.Context, deps *Deps, args map[string]any) map[string]any {
	spaceID := argString(args, "space_id")
	if denied := requireSpaceWrite(ctx, spaceID); denied != nil {
		return denied
	}
	res, err := deps.GraphBridge.Push(ctx, spaceID)
	if err != nil {
		return errorResult(err.Error())
	}
	return okResult(
		"pushed", res.Pushed,
		"deleted_before_reingest", res.DeletedBeforeReingest,
		"cleaned_orphans", res.CleanedOrphans,
		"errors", res.Errors,
		"error_details", res.ErrorDetails,
		"duration_seconds", res.DurationSeconds,
	)
}

func toolGraphStatus(ctx context.Context, deps *Deps, args map[string]any) map[string]any {
	spaceID := argString(args, "space_id")
	if denied := requireSpaceAccess(ctx, spaceID); denied != nil {
		return denied
	}
	res, err := deps.GraphBridge.Status(ctx, spaceID)
	if err != nil {
		return errorResult(err.Error())
	}
	return okResult("connected", res.Connected, "memory_id", res.MemoryID, "stats", res.Stats, "documents", res.Documents)
}

func toolGraphDisconnect(ctx context.Context, deps *Deps, args map[string]any) map[string]any {
	spaceID := argString(args, "space_id")
	if denied := requireSpaceWrite(ctx, spaceID); denied != nil {
		return denied
	}
	if err := deps.GraphBridge.Disconnect(ctx, spaceID); err != nil {
		return errorResult(err.Error())
	}
	return okResult("space_id", spaceID)
}
