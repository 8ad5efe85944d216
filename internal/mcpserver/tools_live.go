package mcpserver

import (
	"context"
	"time"

	"github.com/chrlesur/live-memory/internal/authctx"
	"github.com/chrlesur/live-memory/internal/livenote"
)

func toolLiveNote(ctx context.Context, deps *Deps, args map[string]any) map[string]any {
	spaceID := argString(args, "space_id")
	if denied := requireSpaceWrite(ctx, spaceID); denied != nil {
		return denied
	}
	agent := argString(args, "agent")
	if agent == "" {
		agent = authctx.CurrentAgent(authctx.FromContext(ctx))
	}
	key, err := deps.Notes.Write(ctx, spaceID, argString(args, "category"), argString(args, "content"), agent, argString(args, "tags"))
	if err != nil {
		return errorResult(err.Error())
	}
	return okResult("key", key)
}

func toolLiveRead(ctx context.Context, deps *Deps, args map[string]any) map[string]any {
	spaceID := argString(args, "space_id")
	if denied := requireSpaceAccess(ctx, spaceID); denied != nil {
		return denied
	}
	limit := argInt(args, "limit", 50)
	filter := livenote.ReadFilter{
		Category: argString(args, "category"),
		Agent:    argString(args, "agent"),
	}
	if since := argString(args, "since"); since != "" {
		ts, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return errorResult("since must be an RFC3339 timestamp")
		}
		filter.Since = &ts
	}
	notes, hasMore, err := deps.Notes.Read(ctx, spaceID, limit, filter)
	if err != nil {
		return spaceLookupError(err)
	}
	return okResult("notes", renderNotes(notes), "has_more", hasMore)
}

func toolLiveSearch(ctx context.Context, deps *Deps, args map[string]any) map[string]any {
	spaceID := argString(args, "space_id")
	if denied := requireSpaceAccess(ctx, spaceID); denied != nil {
		return denied
	}
	limit := argInt(args, "limit", 50)
	notes, hasMore, err := deps.Notes.Search(ctx, spaceID, argString(args, "query"), limit)
	if err != nil {
		return spaceLookupError(err)
	}
	return okResult("notes", renderNotes(notes), "has_more", hasMore)
}

func renderNotes(notes []livenote.Note) []map[string]any {
	out := make([]map[string]any, 0, len(notes))
	for _, n := range notes {
		out = append(out, map[string]any{
			"key":       n.Key,
			"timestamp": n.Timestamp,
			"agent":     n.Agent,
			"category":  n.Category,
			"tags":      n.Tags,
			"content":   n.Content,
		})
	}
	return out
}
