// Package livenote implements the append-only note service spec.md §4.6
// describes: writes go to {space}/live/ as one object per note; reads
// parse the hand-rolled YAML-front-matter-plus-Markdown body and tolerate
// corruption by skipping, never failing.
package livenote

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/chrlesur/live-memory/internal/objectstore"
	"github.com/chrlesur/live-memory/pkg/logger"
)

// AllowedCategories is the fixed vocabulary spec.md §3 defines for notes.
var AllowedCategories = map[string]bool{
	"observation": true,
	"decision":    true,
	"todo":        true,
	"insight":     true,
	"question":    true,
	"progress":    true,
	"issue":       true,
}

var agentSanitizePattern = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// SanitizeAgent strips everything but [A-Za-z0-9_-] from agent, falling
// back to "agent" if nothing survives.
func SanitizeAgent(agent string) string {
	cleaned := agentSanitizePattern.ReplaceAllString(agent, "")
	if cleaned == "" {
		return "agent"
	}
	return cleaned
}

// Note is one parsed live note.
type Note struct {
	Key       string
	Timestamp time.Time
	Agent     string
	Category  string
	Tags      []string
	SpaceID   string
	Content   string
}

// Service implements write/read/search over a Store.
type Service struct {
	store objectstore.Store
}

// NewService builds a Service over store.
func NewService(store objectstore.Store) *Service {
	return &Service{store: store}
}

func livePrefix(spaceID string) string { return spaceID + "/live/" }

func randomHex8() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("livenote: generating suffix: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Write appends a new note under {space}/live/. If agent is empty it must
// be resolved by the caller (from the auth context) before calling Write.
func (s *Service) Write(ctx context.Context, spaceID, category, content, agent, tagsCSV string) (string, error) {
	if !AllowedCategories[category] {
		return "", fmt.Errorf("livenote: invalid category %q", category)
	}
	exists, err := s.store.Exists(ctx, spaceID+"/_meta.json")
	if err != nil {
		return "", err
	}
	if !exists {
		return "", fmt.Errorf("livenote: space %q does not exist", spaceID)
	}

	sanitized := SanitizeAgent(agent)
	suffix, err := randomHex8()
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	filename := fmt.Sprintf("%s_%s_%s_%s.md", now.Format("20060102T150405"), sanitized, category, suffix)
	key := livePrefix(spaceID) + filename

	tags := splitCSV(tagsCSV)
	body := renderNote(now, sanitized, category, tags, spaceID, content)

	if err := s.store.Put(ctx, key, []byte(body), "text/markdown"); err != nil {
		return "", err
	}
	logger.FromContext(ctx).Info("note written", "space_id", spaceID, "key", key)
	return key, nil
}

func splitCSV(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func renderNote(ts time.Time, agent, category string, tags []string, spaceID, content string) string {
	tagsJSON, _ := json.Marshal(tags)
	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "timestamp: %s\n", ts.Format(time.RFC3339))
	fmt.Fprintf(&b, "agent: %s\n", agent)
	fmt.Fprintf(&b, "category: %s\n", category)
	fmt.Fprintf(&b, "tags: %s\n", string(tagsJSON))
	fmt.Fprintf(&b, "space_id: %s\n", spaceID)
	b.WriteString("---\n\n")
	b.WriteString(content)
	return b.String()
}

// ReadFilter narrows Read's result set.
type ReadFilter struct {
	Category string
	Agent    string
	Since    *time.Time
}

// Read lists every live note, parses front-matter, applies filter, sorts
// descending by timestamp, and truncates to limit. hasMore reports whether
// more notes existed than limit allowed through.
func (s *Service) Read(ctx context.Context, spaceID string, limit int, filter ReadFilter) ([]Note, bool, error) {
	notes, err := s.loadNotes(ctx, spaceID)
	if err != nil {
		return nil, false, err
	}

	filtered := notes[:0:0]
	for _, n := range notes {
		if filter.Category != "" && n.Category != filter.Category {
			continue
		}
		if filter.Agent != "" && n.Agent != filter.Agent {
			continue
		}
		if filter.Since != nil && n.Timestamp.Before(*filter.Since) {
			continue
		}
		filtered = append(filtered, n)
	}

	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Timestamp.After(filtered[j].Timestamp) })

	hasMore := limit > 0 && len(filtered) > limit
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered, hasMore, nil
}

// Search is Read without category/agent/since filtering, but additionally
// requiring query (lowercased) to appear in the note's content (lowercased).
func (s *Service) Search(ctx context.Context, spaceID, query string, limit int) ([]Note, bool, error) {
	notes, err := s.loadNotes(ctx, spaceID)
	if err != nil {
		return nil, false, err
	}

	needle := strings.ToLower(query)
	filtered := notes[:0:0]
	for _, n := range notes {
		if strings.Contains(strings.ToLower(n.Content), needle) {
			filtered = append(filtered, n)
		}
	}

	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Timestamp.After(filtered[j].Timestamp) })

	hasMore := limit > 0 && len(filtered) > limit
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered, hasMore, nil
}

func (s *Service) loadNotes(ctx context.Context, spaceID string) ([]Note, error) {
	fetched, err := s.store.ListAndGet(ctx, livePrefix(spaceID), true)
	if err != nil {
		return nil, err
	}
	notes := make([]Note, 0, len(fetched))
	for _, f := range fetched {
		n, ok := ParseNote(f.Key, f.Content)
		if !ok {
			continue
		}
		notes = append(notes, n)
	}
	return notes, nil
}
