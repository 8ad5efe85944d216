package mcpserver

import "context"

func toolBankList(ctx context.Context, deps *Deps, args map[string]any) map[string]any {
	spaceID := argString(args, "space_id")
	if denied := requireSpaceAccess(ctx, spaceID); denied != nil {
		return denied
	}
	names, err := deps.Spaces.BankList(ctx, spaceID)
	if err != nil {
		return spaceLookupError(err)
	}
	return okResult("files", names)
}

func toolBankRead(ctx context.Context, deps *Deps, args map[string]any) map[string]any {
	spaceID := argString(args, "space_id")
	if denied := requireSpaceAccess(ctx, spaceID); denied != nil {
		return denied
	}
	filename := argString(args, "filename")
	content, ok, err := deps.Spaces.BankRead(ctx, spaceID, filename)
	if err != nil {
		return errorResult(err.Error())
	}
	if !ok {
		return notFoundResult("message", "bank file not found: "+filename)
	}
	return okResult("filename", filename, "content", content)
}

func toolBankReadAll(ctx context.Context, deps *Deps, args map[string]any) map[string]any {
	spaceID := argString(args, "space_id")
	if denied := requireSpaceAccess(ctx, spaceID); denied != nil {
		return denied
	}
	names, err := deps.Spaces.BankList(ctx, spaceID)
	if err != nil {
		return spaceLookupError(err)
	}
	files := make(map[string]string, len(names))
	for _, name := range names {
		content, ok, err := deps.Spaces.BankRead(ctx, spaceID, name)
		if err != nil {
			return errorResult(err.Error())
		}
		if ok {
			files[name] = content
		}
	}
	return okResult("files", files)
}

func toolBankConsolidate(ctx context.Context, deps *Deps, args map[string]any) map[string]any {
	spaceID := argString(args, "space_id")
	if denied := requireSpaceWrite(ctx, spaceID); denied != nil {
		return denied
	}
	agent := argString(args, "agent")
	res, err := deps.Consolidator.Consolidate(ctx, spaceID, agent)
	if err != nil {
		return errorResult(err.Error())
	}
	switch res.Status {
	case "conflict":
		return conflictResult("message", "a consolidation is already in progress for this space")
	case "error":
		return errorResult(res.Error)
	default:
		return okResult(
			"notes_processed", res.NotesProcessed,
			"notes_remaining", res.NotesRemaining,
			"bank_files_created", res.BankFilesCreated,
			"bank_files_updated", res.BankFilesUpdated,
			"bank_files_unchanged", res.BankFilesUnchanged,
			"synthesis_size", res.SynthesisSize,
			"total_tokens", res.TotalTokens,
			"duration_seconds", res.DurationSeconds,
		)
	}
}
