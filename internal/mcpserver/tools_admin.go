package mcpserver

import "context"

func toolAdminCreateToken(ctx context.Context, deps *Deps, args map[string]any) map[string]any {
	if denied := requireAdmin(ctx); denied != nil {
		return denied
	}
	record, cleartext, err := deps.Tokens.Create(
		ctx,
		argString(args, "name"),
		argString(args, "permissions"),
		argString(args, "space_ids"),
		argInt(args, "ttl_days", 0),
	)
	if err != nil {
		return errorResult(err.Error())
	}
	return okResult(
		"token", cleartext,
		"hash", record.Hash,
		"name", record.Name,
		"permissions", record.Permissions,
		"space_ids", record.SpaceIDs,
		"expires_at", record.ExpiresAt,
	)
}

func toolAdminListTokens(ctx context.Context, deps *Deps, _ map[string]any) map[string]any {
	if denied := requireAdmin(ctx); denied != nil {
		return denied
	}
	records, err := deps.Tokens.List(ctx)
	if err != nil {
		return errorResult(err.Error())
	}
	tokens := make([]map[string]any, 0, len(records))
	for _, r := range records {
		tokens = append(tokens, map[string]any{
			"hash":         r.DisplayHash(),
			"name":         r.Name,
			"permissions":  r.Permissions,
			"space_ids":    r.SpaceIDs,
			"created_at":   r.CreatedAt,
			"expires_at":   r.ExpiresAt,
			"revoked":      r.Revoked,
			"last_used_at": r.LastUsedAt,
		})
	}
	return okResult("tokens", tokens)
}

func toolAdminRevokeToken(ctx context.Context, deps *Deps, args map[string]any) map[string]any {
	if denied := requireAdmin(ctx); denied != nil {
		return denied
	}
	found, err := deps.Tokens.Revoke(ctx, argString(args, "token_hash"))
	if err != nil {
		return errorResult(err.Error())
	}
	if !found {
		return notFoundResult("message", "token not found")
	}
	return okResult()
}

func toolAdminUpdateToken(ctx context.Context, deps *Deps, args map[string]any) map[string]any {
	if denied := requireAdmin(ctx); denied != nil {
		return denied
	}
	record, found, err := deps.Tokens.Update(
		ctx,
		argString(args, "token_hash"),
		argStringSlice(args, "permissions"),
		argStringSlice(args, "space_ids"),
	)
	if err != nil {
		return errorResult(err.Error())
	}
	if !found {
		return notFoundResult("message", "token not found")
	}
	return okResult("hash", record.Hash, "permissions", record.Permissions, "space_ids", record.SpaceIDs)
}

func toolAdminGCNotes(ctx context.Context, deps *Deps, args map[string]any) map[string]any {
	if denied := requireAdmin(ctx); denied != nil {
		return denied
	}
	if denied := requireConfirm(args); denied != nil {
		return denied
	}
	spaceID := argString(args, "space_id")
	maxAgeDays := argInt(args, "max_age_days", 7)

	if argBool(args, "delete_only") {
		scan, deleted, err := deps.GC.DeleteOld(ctx, spaceID, maxAgeDays)
		if err != nil {
			return errorResult(err.Error())
		}
		return okResult("total_old_notes", scan.TotalOldNotes, "deleted", deleted)
	}

	result, err := deps.GC.ConsolidateOld(ctx, spaceID, maxAgeDays)
	if err != nil {
		return errorResult(err.Error())
	}
	perAgent := make([]map[string]any, 0, len(result.PerAgent))
	for _, a := range result.PerAgent {
		perAgent = append(perAgent, map[string]any{
			"space_id":        a.SpaceID,
			"agent":           a.Agent,
			"status":          a.Status,
			"notes_processed": a.NotesProcessed,
			"error":           a.Error,
		})
	}
	return okResult("consolidated", result.Consolidated, "per_agent", perAgent)
}
