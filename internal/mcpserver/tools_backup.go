package mcpserver

import (
	"context"
	"strings"
)

func toolBackupCreate(ctx context.Context, deps *Deps, args map[string]any) map[string]any {
	spaceID := argString(args, "space_id")
	if denied := requireSpaceWrite(ctx, spaceID); denied != nil {
		return denied
	}
	backupID, err := deps.Backups.Create(ctx, spaceID, argString(args, "description"))
	if err != nil {
		return spaceLookupError(err)
	}
	return okResult("backup_id", backupID)
}

func toolBackupList(ctx context.Context, deps *Deps, args map[string]any) map[string]any {
	spaceID := argString(args, "space_id")
	if spaceID != "" {
		if denied := requireSpaceAccess(ctx, spaceID); denied != nil {
			return denied
		}
	} else if denied := requireAdmin(ctx); denied != nil {
		return denied
	}
	entries, err := deps.Backups.List(ctx, spaceID)
	if err != nil {
		return errorResult(err.Error())
	}
	backups := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		backups = append(backups, map[string]any{
			"backup_id": e.BackupID,
			"space_id":  e.SpaceID,
			"timestamp": e.Timestamp,
		})
	}
	return okResult("backups", backups)
}

func toolBackupRestore(ctx context.Context, deps *Deps, args map[string]any) map[string]any {
	if denied := requireAdmin(ctx); denied != nil {
		return denied
	}
	if denied := requireConfirm(args); denied != nil {
		return denied
	}
	backupID := argString(args, "backup_id")
	if err := deps.Backups.Restore(ctx, backupID); err != nil {
		if strings.Contains(err.Error(), "already exists") {
			return conflictResult("message", err.Error())
		}
		return spaceLookupError(err)
	}
	return okResult("backup_id", backupID)
}

func toolBackupDownload(ctx context.Context, deps *Deps, args map[string]any) map[string]any {
	if denied := requireAdmin(ctx); denied != nil {
		return denied
	}
	backupID := argString(args, "backup_id")
	archive, err := deps.Backups.Download(ctx, backupID)
	if err != nil {
		return spaceLookupError(err)
	}
	return okResult("backup_id", backupID, "archive_base64", base64Encode(archive))
}

func toolBackupDelete(ctx context.Context, deps *Deps, args map[string]any) map[string]any {
	if denied := requireAdmin(ctx); denied != nil {
		return denied
	}
	if denied := requireConfirm(args); denied != nil {
		return denied
	}
	backupID := argString(args, "backup_id")
	n, err := deps.Backups.Delete(ctx, backupID)
	if err != nil {
		return errorResult(err.Error())
	}
	return okResult("backup_id", backupID, "objects_deleted", n)
}
