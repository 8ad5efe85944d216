// Package version carries build metadata injected via -ldflags.
package version

import "time"

var (
	// Version is the semantic version, set at build time.
	Version = "dev"
	// CommitHash is the git commit the binary was built from.
	CommitHash = "unknown"
	// BuildDate is the RFC3339 build timestamp.
	BuildDate = "unknown"
)

var startedAt = time.Now()

// Info is the metadata returned by the system_about tool.
type Info struct {
	Version    string        `json:"version"`
	CommitHash string        `json:"commit_hash"`
	BuildDate  string        `json:"build_date"`
	Uptime     time.Duration `json:"uptime"`
}

// Get returns the current build/runtime info.
func Get() Info {
	return Info{
		Version:    Version,
		CommitHash: CommitHash,
		BuildDate:  BuildDate,
		Uptime:     time.Since(startedAt),
	}
}
