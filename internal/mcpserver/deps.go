package mcpserver

import (
	"github.com/chrlesur/live-memory/internal/backup"
	"github.com/chrlesur/live-memory/internal/consolidator"
	"github.com/chrlesur/live-memory/internal/gc"
	"github.com/chrlesur/live-memory/internal/graphbridge"
	"github.com/chrlesur/live-memory/internal/livenote"
	"github.com/chrlesur/live-memory/internal/objectstore"
	"github.com/chrlesur/live-memory/internal/space"
	"github.com/chrlesur/live-memory/internal/tokens"
)

// Deps is every service a tool handler may need. Built once at startup by
// internal/app and passed down explicitly, per Design Notes §9 (explicit
// composition over ambient singletons).
type Deps struct {
	Store         objectstore.Store
	Spaces        *space.Service
	Notes         *livenote.Service
	Consolidator  *consolidator.Consolidator
	Backups       *backup.Service
	GraphBridge   *graphbridge.Service
	Tokens        *tokens.Registry
	GC            *gc.Collector
	ServerName    string
	BucketName    string
	BootstrapKey  string
}
