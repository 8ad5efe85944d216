package gc

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrlesur/live-memory/internal/consolidator"
	"github.com/chrlesur/live-memory/internal/livenote"
	"github.com/chrlesur/live-memory/internal/locks"
	"github.com/chrlesur/live-memory/internal/objectstore"
)

func putOldNote(t *testing.T, store objectstore.Store, spaceID, agent string, age time.Duration) {
	t.Helper()
	ts := time.Now().UTC().Add(-age)
	body := "---\n" +
		"timestamp: " + ts.Format(time.RFC3339) + "\n" +
		"agent: " + agent + "\ncategory: observation\ntags: []\nspace_id: " + spaceID + "\n" +
		"---\n\nold note body"
	key := spaceID + "/live/" + ts.Format("20060102T150405") + "_" + agent + "_observation_aaaaaaaa.md"
	require.NoError(t, store.Put(context.Background(), key, []byte(body), "text/markdown"))
}

func TestExtractTimestampAndAgent(t *testing.T) {
	t.Run("Should extract the timestamp prefix", func(t *testing.T) {
		ts, ok := extractTimestamp("20240101T120000_agent-a_observation_aaaaaaaa.md")
		require.True(t, ok)
		assert.Equal(t, "20240101T120000", ts)
	})

	t.Run("Should return false for a malformed filename", func(t *testing.T) {
		_, ok := extractTimestamp("not-a-note.md")
		assert.False(t, ok)
	})

	t.Run("Should extract the agent segment", func(t *testing.T) {
		assert.Equal(t, "agent-a", extractAgent("20240101T120000_agent-a_observation_aaaaaaaa.md"))
	})

	t.Run("Should fall back to unknown for too few segments", func(t *testing.T) {
		assert.Equal(t, "unknown", extractAgent("weird.md"))
	})
}

func TestCollector_Scan(t *testing.T) {
	t.Run("Should find notes older than the cutoff, grouped by agent", func(t *testing.T) {
		store := objectstore.NewFake()
		ctx := context.Background()
		require.NoError(t, store.Put(ctx, "demo/_meta.json", []byte("{}"), "application/json"))

		putOldNote(t, store, "demo", "agent-a", 10*24*time.Hour)
		putOldNote(t, store, "demo", "agent-a", 9*24*time.Hour)
		putOldNote(t, store, "demo", "agent-b", 8*24*time.Hour)

		c := New(store, livenote.NewService(store), nil)
		result, err := c.Scan(ctx, "demo", 7)
		require.NoError(t, err)
		require.Contains(t, result.Spaces, "demo")
		assert.Equal(t, 3, result.Spaces["demo"].ByAgent["agent-a"]+result.Spaces["demo"].ByAgent["agent-b"])
		assert.Equal(t, 2, result.Spaces["demo"].ByAgent["agent-a"])
		assert.Equal(t, 1, result.Spaces["demo"].ByAgent["agent-b"])
	})

	t.Run("Should ignore notes within the age threshold", func(t *testing.T) {
		store := objectstore.NewFake()
		ctx := context.Background()
		require.NoError(t, store.Put(ctx, "demo/_meta.json", []byte("{}"), "application/json"))
		putOldNote(t, store, "demo", "agent-a", time.Hour)

		c := New(store, livenote.NewService(store), nil)
		result, err := c.Scan(ctx, "demo", 7)
		require.NoError(t, err)
		assert.Zero(t, result.TotalOldNotes)
	})
}

func TestCollector_ConsolidateOld(t *testing.T) {
	t.Run("Should short-circuit when nothing is old enough", func(t *testing.T) {
		store := objectstore.NewFake()
		ctx := context.Background()
		require.NoError(t, store.Put(ctx, "demo/_meta.json", []byte("{}"), "application/json"))

		c := New(store, livenote.NewService(store), nil)
		result, err := c.ConsolidateOld(ctx, "demo", 7)
		require.NoError(t, err)
		assert.Zero(t, result.Consolidated)
	})

	t.Run("Should write a GC notice and report skipped when the space lock is held", func(t *testing.T) {
		store := objectstore.NewFake()
		ctx := context.Background()
		require.NoError(t, store.Put(ctx, "demo/_meta.json", []byte(`{"space_id":"demo","version":1}`), "application/json"))
		require.NoError(t, store.Put(ctx, "demo/_rules.md", []byte("# Rules"), "text/markdown"))

		putOldNote(t, store, "demo", "agent-a", 10*24*time.Hour)

		notesSvc := livenote.NewService(store)
		mgr := locks.NewManager()
		cons := consolidator.New(store, mgr, notesSvc, nil, consolidator.Config{})
		c := New(store, notesSvc, cons)

		// Holding the space lock forces Consolidate to return StatusConflict
		// immediately, without ever reaching the (nil, in this test) LLM
		// client — this exercises the conflict-to-"skipped" status mapping.
		require.True(t, mgr.TryLockSpace("demo"))
		defer mgr.UnlockSpace("demo")

		result, err := c.ConsolidateOld(ctx, "demo", 7)
		require.NoError(t, err)
		require.Len(t, result.PerAgent, 1)
		assert.Equal(t, "agent-a", result.PerAgent[0].Agent)
		assert.Equal(t, "skipped", result.PerAgent[0].Status)

		// The GC notice note was still written even though consolidation
		// itself was skipped.
		notes, _, err := notesSvc.Read(ctx, "demo", 10, livenote.ReadFilter{Agent: "agent-a"})
		require.NoError(t, err)
		found := false
		for _, n := range notes {
			if strings.Contains(n.Content, "GARBAGE COLLECTOR") {
				found = true
			}
		}
		assert.True(t, found, "expected a GC notice note to have been written")
	})
}

func TestCollector_DeleteOld(t *testing.T) {
	t.Run("Should bulk delete candidate keys without consolidating", func(t *testing.T) {
		store := objectstore.NewFake()
		ctx := context.Background()
		require.NoError(t, store.Put(ctx, "demo/_meta.json", []byte("{}"), "application/json"))
		putOldNote(t, store, "demo", "agent-a", 10*24*time.Hour)

		c := New(store, livenote.NewService(store), nil)
		_, n, err := c.DeleteOld(ctx, "demo", 7)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		scan, err := c.Scan(ctx, "demo", 7)
		require.NoError(t, err)
		assert.Zero(t, scan.TotalOldNotes)
	})
}
