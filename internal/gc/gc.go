// Package gc implements the garbage collector spec.md §4.8 describes:
// detecting orphaned live notes from agents that never consolidated, and
// forcing their consolidation (or, on explicit operator request, deleting
// them outright).
package gc

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chrlesur/live-memory/internal/consolidator"
	"github.com/chrlesur/live-memory/internal/livenote"
	"github.com/chrlesur/live-memory/internal/objectstore"
	"github.com/chrlesur/live-memory/pkg/logger"
)

// OldNote is one candidate the scan identified.
type OldNote struct {
	Key       string
	Size      int64
	Timestamp string
}

// SpaceScan is one space's scan result.
type SpaceScan struct {
	SpaceID      string
	TotalNotes   int
	OldNotes     []OldNote
	ByAgent      map[string]int
	Oldest       string
	OldNotesSize int64
}

// ScanResult is Scan's full report.
type ScanResult struct {
	MaxAgeDays    int
	CutoffDate    time.Time
	Spaces        map[string]SpaceScan
	TotalOldNotes int
	TotalOldSize  int64
}

var timestampPattern = regexp.MustCompile(`^(\d{8}T\d{6})_`)

func extractTimestamp(filename string) (string, bool) {
	m := timestampPattern.FindStringSubmatch(filename)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func extractAgent(filename string) string {
	parts := strings.Split(strings.TrimSuffix(filename, ".md"), "_")
	if len(parts) >= 3 {
		return parts[1]
	}
	return "unknown"
}

// Collector ties together the object store, the live note service, and
// the consolidator.
type Collector struct {
	store        objectstore.Store
	notes        *livenote.Service
	consolidator *consolidator.Consolidator
}

// New builds a Collector.
func New(store objectstore.Store, notes *livenote.Service, cons *consolidator.Consolidator) *Collector {
	return &Collector{store: store, notes: notes, consolidator: cons}
}

func (c *Collector) candidateSpaces(ctx context.Context, spaceID string) ([]string, error) {
	if spaceID != "" {
		return []string{spaceID}, nil
	}
	prefixes, err := c.store.ListPrefixes(ctx, "", "/")
	if err != nil {
		return nil, err
	}
	var out []string
	for _, p := range prefixes {
		id := strings.TrimSuffix(p, "/")
		if strings.HasPrefix(id, "_") {
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

// Scan enumerates candidate spaces (one or all), lists their live notes,
// parses the timestamp prefix of each filename, and collects those older
// than the cutoff, grouped by extracted agent.
func (c *Collector) Scan(ctx context.Context, spaceID string, maxAgeDays int) (ScanResult, error) {
	cutoff := time.Now().UTC().Add(-time.Duration(maxAgeDays) * 24 * time.Hour)
	cutoffStr := cutoff.Format("20060102T150405")

	spaceIDs, err := c.candidateSpaces(ctx, spaceID)
	if err != nil {
		return ScanResult{}, err
	}

	result := ScanResult{MaxAgeDays: maxAgeDays, CutoffDate: cutoff, Spaces: map[string]SpaceScan{}}

	for _, sid := range spaceIDs {
		exists, err := c.store.Exists(ctx, sid+"/_meta.json")
		if err != nil {
			return ScanResult{}, err
		}
		if !exists {
			continue
		}

		objs, err := c.store.ListObjects(ctx, sid+"/live/", 0)
		if err != nil {
			return ScanResult{}, err
		}

		var old []OldNote
		byAgent := map[string]int{}
		oldest := ""
		totalNotes := 0

		for _, o := range objs {
			filename := filenameOf(o.Key)
			if !strings.HasSuffix(filename, ".md") || filename == objectstore.KeepFile {
				continue
			}
			totalNotes++
			ts, ok := extractTimestamp(filename)
			if !ok {
				continue
			}
			if ts >= cutoffStr {
				continue
			}
			old = append(old, OldNote{Key: o.Key, Size: o.Size, Timestamp: ts})
			agent := extractAgent(filename)
			byAgent[agent]++
			if oldest == "" || ts < oldest {
				oldest = ts
			}
		}

		if len(old) == 0 {
			continue
		}
		var size int64
		for _, n := range old {
			size += n.Size
		}
		result.Spaces[sid] = SpaceScan{
			SpaceID:      sid,
			TotalNotes:   totalNotes,
			OldNotes:     old,
			ByAgent:      byAgent,
			Oldest:       oldest,
			OldNotesSize: size,
		}
		result.TotalOldNotes += len(old)
		result.TotalOldSize += size
	}

	return result, nil
}

func filenameOf(key string) string {
	if idx := strings.LastIndex(key, "/"); idx >= 0 {
		return key[idx+1:]
	}
	return key
}

// gcNoticeTemplate matches original_source's gc.py notice verbatim in
// structure (forced-consolidation warning, note count, age threshold), in
// English.
const gcNoticeTemplate = `GARBAGE COLLECTOR — forced consolidation

The garbage collector detected %d orphaned notes from agent %q (older than %d days).
These notes were never consolidated by the agent.
The garbage collector is forcing their integration into the Memory Bank.

Note: this consolidation is automatic. The integrated notes may lack context
because the agent is no longer active.`

// AgentConsolidationResult is one (space, agent) pair's outcome.
type AgentConsolidationResult struct {
	SpaceID        string
	Agent          string
	Status         string
	NotesProcessed int
	Error          string
}

// ConsolidateResult is ConsolidateOld's full report.
type ConsolidateResult struct {
	Scan         ScanResult
	Consolidated int
	PerAgent     []AgentConsolidationResult
}

// ConsolidateOld scans for orphaned notes and, for each (space, agent)
// pair found, writes a GC notice note and forces a per-agent consolidation
// run. Distinct (space, agent) pairs run concurrently, one errgroup
// goroutine per pair with no concurrency limit; within a space, the consolidation lock still serializes
// consolidator.Consolidate calls, so a "skipped: in progress" result is
// possible and expected, not an error.
func (c *Collector) ConsolidateOld(ctx context.Context, spaceID string, maxAgeDays int) (ConsolidateResult, error) {
	scan, err := c.Scan(ctx, spaceID, maxAgeDays)
	if err != nil {
		return ConsolidateResult{}, err
	}
	if scan.TotalOldNotes == 0 {
		return ConsolidateResult{Scan: scan}, nil
	}

	type job struct {
		spaceID string
		agent   string
		count   int
	}
	var jobs []job
	for sid, data := range scan.Spaces {
		agents := make([]string, 0, len(data.ByAgent))
		for agent := range data.ByAgent {
			agents = append(agents, agent)
		}
		sort.Strings(agents)
		for _, agent := range agents {
			jobs = append(jobs, job{spaceID: sid, agent: agent, count: data.ByAgent[agent]})
		}
	}

	results := make([]AgentConsolidationResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	for i, j := range jobs {
		i, j := i, j
		g.Go(func() error {
			notice := fmt.Sprintf(gcNoticeTemplate, j.count, j.agent, scan.MaxAgeDays)
			if _, err := c.notes.Write(gctx, j.spaceID, "observation", notice, j.agent, ""); err != nil {
				results[i] = AgentConsolidationResult{SpaceID: j.spaceID, Agent: j.agent, Status: "error", Error: err.Error()}
				return nil
			}
			res, err := c.consolidator.Consolidate(gctx, j.spaceID, j.agent)
			if err != nil {
				results[i] = AgentConsolidationResult{SpaceID: j.spaceID, Agent: j.agent, Status: "error", Error: err.Error()}
				return nil
			}
			status := res.Status
			if status == consolidator.StatusConflict {
				status = "skipped"
			}
			results[i] = AgentConsolidationResult{
				SpaceID:        j.spaceID,
				Agent:          j.agent,
				Status:         status,
				NotesProcessed: res.NotesProcessed,
			}
			return nil
		})
	}
	_ = g.Wait()

	total := 0
	for _, r := range results {
		total += r.NotesProcessed
	}

	logger.FromContext(ctx).Info("gc consolidation pass complete", "spaces", len(scan.Spaces), "notes_consolidated", total)
	return ConsolidateResult{Scan: scan, Consolidated: total, PerAgent: results}, nil
}

// DeleteOld bulk-deletes every candidate key the scan finds, without
// consolidating. Destructive; intended only for explicit operator use.
func (c *Collector) DeleteOld(ctx context.Context, spaceID string, maxAgeDays int) (ScanResult, int, error) {
	scan, err := c.Scan(ctx, spaceID, maxAgeDays)
	if err != nil {
		return ScanResult{}, 0, err
	}
	if scan.TotalOldNotes == 0 {
		return scan, 0, nil
	}

	var keys []string
	for _, data := range scan.Spaces {
		for _, n := range data.OldNotes {
			keys = append(keys, n.Key)
		}
	}
	n, err := c.store.DeleteMany(ctx, keys)
	if err != nil {
		return scan, n, err
	}
	logger.FromContext(ctx).Warn("gc deleted old notes without consolidating", "count", n)
	return scan, n, nil
}
