package mcpserver

import (
	"context"

	"github.com/chrlesur/live-memory/internal/authctx"
)

func toolSpaceCreate(ctx context.Context, deps *Deps, args map[string]any) map[string]any {
	id := authctx.FromContext(ctx)
	if id == nil {
		return errorResult("Authentication required")
	}
	if !authctx.CheckWrite(id) {
		return errorResult("Permission write required")
	}

	spaceID := argString(args, "space_id")
	owner := argString(args, "owner")
	if owner == "" {
		owner = authctx.CurrentAgent(id)
	}
	meta, err := deps.Spaces.Create(ctx, spaceID, argString(args, "description"), argString(args, "rules"), owner)
	if err != nil {
		return errorResult(err.Error())
	}
	return okResult("space_id", meta.SpaceID, "created_at", meta.CreatedAt)
}

func toolSpaceList(ctx context.Context, deps *Deps, _ map[string]any) map[string]any {
	id := authctx.FromContext(ctx)
	var allowed []string
	if id == nil {
		return errorResult("Authentication required")
	}
	if !authctx.CheckAdmin(id) && len(id.AllowedResources) > 0 {
		allowed = id.AllowedResources
	}
	entries, err := deps.Spaces.List(ctx, allowed)
	if err != nil {
		return errorResult(err.Error())
	}
	spaces := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		spaces = append(spaces, map[string]any{
			"space_id":   e.Meta.SpaceID,
			"live_count": e.LiveCount,
			"bank_count": e.BankCount,
		})
	}
	return okResult("spaces", spaces)
}

func toolSpaceInfo(ctx context.Context, deps *Deps, args map[string]any) map[string]any {
	spaceID := argString(args, "space_id")
	if denied := requireSpaceAccess(ctx, spaceID); denied != nil {
		return denied
	}
	info, err := deps.Spaces.Info(ctx, spaceID)
	if err != nil {
		return spaceLookupError(err)
	}
	return okResult(
		"space_id", info.Meta.SpaceID,
		"description", info.Meta.Description,
		"owner", info.Meta.Owner,
		"live_count", info.LiveCount,
		"bank_count", info.BankCount,
		"live_bytes", info.LiveBytes,
		"bank_bytes", info.BankBytes,
		"has_synthesis", info.HasSynthesis,
		"consolidation_count", info.Meta.ConsolidationCount,
	)
}

func toolSpaceRules(ctx context.Context, deps *Deps, args map[string]any) map[string]any {
	spaceID := argString(args, "space_id")
	if denied := requireSpaceAccess(ctx, spaceID); denied != nil {
		return denied
	}
	rules, err := deps.Spaces.Rules(ctx, spaceID)
	if err != nil {
		return spaceLookupError(err)
	}
	return okResult("rules", rules)
}

func toolSpaceSummary(ctx context.Context, deps *Deps, args map[string]any) map[string]any {
	spaceID := argString(args, "space_id")
	if denied := requireSpaceAccess(ctx, spaceID); denied != nil {
		return denied
	}
	summary, err := deps.Spaces.Summary(ctx, spaceID)
	if err != nil {
		return spaceLookupError(err)
	}
	return okResult(
		"space_id", summary.Info.Meta.SpaceID,
		"bank", summary.Bank,
		"synthesis", summary.Synthesis,
		"live_count", summary.Info.LiveCount,
	)
}

func toolSpaceExport(ctx context.Context, deps *Deps, args map[string]any) map[string]any {
	spaceID := argString(args, "space_id")
	if denied := requireSpaceAccess(ctx, spaceID); denied != nil {
		return denied
	}
	archive, err := deps.Spaces.Export(ctx, spaceID)
	if err != nil {
		return spaceLookupError(err)
	}
	return okResult("space_id", spaceID, "archive_base64", base64Encode(archive))
}

func toolSpaceDelete(ctx context.Context, deps *Deps, args map[string]any) map[string]any {
	spaceID := argString(args, "space_id")
	if denied := requireSpaceWrite(ctx, spaceID); denied != nil {
		return denied
	}
	if denied := requireConfirm(args); denied != nil {
		return denied
	}
	n, err := deps.Spaces.Delete(ctx, spaceID)
	if err != nil {
		return errorResult(err.Error())
	}
	return okResult("space_id", spaceID, "objects_deleted", n)
}

// spaceLookupError maps a space.Service lookup failure to the transport's
// {status:"not_found"} payload, per spec.md §7 ("Not found ... returned
// for missing space/file/backup/token; never a transport error").
func spaceLookupError(err error) map[string]any {
	return notFoundResult("message", err.Error())
}
