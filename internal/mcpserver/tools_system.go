package mcpserver

import (
	"context"

	"github.com/chrlesur/live-memory/pkg/version"
)

func toolSystemHealth(ctx context.Context, deps *Deps, _ map[string]any) map[string]any {
	if err := deps.Store.Health(ctx); err != nil {
		return errorResult("object store unreachable: " + err.Error())
	}
	return okResult()
}

// toolSystemAbout returns version/build/uptime metadata, carried over from
// original_source's tools/system.py (never credentials, just the bucket
// name).
func toolSystemAbout(_ context.Context, deps *Deps, _ map[string]any) map[string]any {
	info := version.Get()
	return okResult(
		"name", deps.ServerName,
		"version", info.Version,
		"commit_hash", info.CommitHash,
		"build_date", info.BuildDate,
		"uptime_seconds", info.Uptime.Seconds(),
		"protocol_version", protocolVersion,
		"bucket_name", deps.BucketName,
	)
}
