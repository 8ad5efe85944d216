// Package space implements CRUD on spaces and their immutable rules
// documents, spec.md §4.5.
package space

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/chrlesur/live-memory/internal/objectstore"
	"github.com/chrlesur/live-memory/pkg/logger"
)

// idPattern is spec.md §3's space identifier shape: 1-64 chars, first
// alphanumeric, remainder alphanumeric/-/_.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// ValidateID reports whether spaceID satisfies spec.md's identifier shape.
func ValidateID(spaceID string) error {
	if !idPattern.MatchString(spaceID) {
		return fmt.Errorf("space: invalid space id %q", spaceID)
	}
	return nil
}

// GraphMemory is the optional sub-object inside _meta.json tracking the
// graph-bridge connection for a space.
type GraphMemory struct {
	URL         string     `json:"url"`
	Token       string     `json:"token"`
	MemoryID    string     `json:"memory_id"`
	Ontology    string     `json:"ontology,omitempty"`
	LastPush    *time.Time `json:"last_push,omitempty"`
	PushCount   int        `json:"push_count"`
	FilesPushed []string   `json:"files_pushed,omitempty"`
}

// Meta is the persisted {space}/_meta.json document.
type Meta struct {
	SpaceID             string       `json:"space_id"`
	Description         string       `json:"description"`
	Owner               string       `json:"owner"`
	CreatedAt           time.Time    `json:"created_at"`
	LastConsolidation   *time.Time   `json:"last_consolidation,omitempty"`
	ConsolidationCount  int          `json:"consolidation_count"`
	TotalNotesProcessed int          `json:"total_notes_processed"`
	GraphMemory         *GraphMemory `json:"graph_memory,omitempty"`
	Version             int          `json:"version"`
}

const metaVersion = 1

func metaKey(spaceID string) string    { return spaceID + "/_meta.json" }
func rulesKey(spaceID string) string   { return spaceID + "/_rules.md" }
func synthKey(spaceID string) string   { return spaceID + "/_synthesis.md" }
func liveKeep(spaceID string) string   { return spaceID + "/live/" + objectstore.KeepFile }
func bankKeep(spaceID string) string   { return spaceID + "/bank/" + objectstore.KeepFile }
func livePrefix(spaceID string) string { return spaceID + "/live/" }
func bankPrefix(spaceID string) string { return spaceID + "/bank/" }

// Service implements spec.md §4.5's space operations over a Store.
type Service struct {
	store objectstore.Store
}

// NewService builds a Service over store.
func NewService(store objectstore.Store) *Service {
	return &Service{store: store}
}

// Create writes a brand-new space: _meta.json, _rules.md, live/.keep,
// bank/.keep, in that order. Fails if the space already exists.
func (s *Service) Create(ctx context.Context, spaceID, description, rules, owner string) (Meta, error) {
	if err := ValidateID(spaceID); err != nil {
		return Meta{}, err
	}
	exists, err := s.store.Exists(ctx, metaKey(spaceID))
	if err != nil {
		return Meta{}, err
	}
	if exists {
		return Meta{}, fmt.Errorf("space: %q already exists", spaceID)
	}

	meta := Meta{
		SpaceID:     spaceID,
		Description: description,
		Owner:       owner,
		CreatedAt:   time.Now().UTC(),
		Version:     metaVersion,
	}
	if err := s.store.PutJSON(ctx, metaKey(spaceID), meta); err != nil {
		return Meta{}, err
	}
	if err := s.store.Put(ctx, rulesKey(spaceID), []byte(rules), "text/markdown"); err != nil {
		return Meta{}, err
	}
	if err := s.store.Put(ctx, liveKeep(spaceID), nil, "application/octet-stream"); err != nil {
		return Meta{}, err
	}
	if err := s.store.Put(ctx, bankKeep(spaceID), nil, "application/octet-stream"); err != nil {
		return Meta{}, err
	}

	logger.FromContext(ctx).Info("space created", "space_id", spaceID)
	return meta, nil
}

// SpaceSummaryEntry is one row of List's result.
type SpaceSummaryEntry struct {
	Meta      Meta
	LiveCount int
	BankCount int
}

// List enumerates every space, excluding system prefixes (leading "_") and,
// when allowed is non-nil, spaces not present in it.
func (s *Service) List(ctx context.Context, allowed []string) ([]SpaceSummaryEntry, error) {
	prefixes, err := s.store.ListPrefixes(ctx, "", "/")
	if err != nil {
		return nil, err
	}

	var allowedSet map[string]bool
	if allowed != nil {
		allowedSet = make(map[string]bool, len(allowed))
		for _, a := range allowed {
			allowedSet[a] = true
		}
	}

	var out []SpaceSummaryEntry
	for _, p := range prefixes {
		spaceID := strings.TrimSuffix(p, "/")
		if strings.HasPrefix(spaceID, "_") {
			continue
		}
		if allowedSet != nil && !allowedSet[spaceID] {
			continue
		}
		var meta Meta
		ok, err := s.store.GetJSON(ctx, metaKey(spaceID), &meta)
		if err != nil || !ok {
			continue
		}
		liveCount, err := s.countExcludingKeep(ctx, livePrefix(spaceID))
		if err != nil {
			return nil, err
		}
		bankCount, err := s.countExcludingKeep(ctx, bankPrefix(spaceID))
		if err != nil {
			return nil, err
		}
		out = append(out, SpaceSummaryEntry{Meta: meta, LiveCount: liveCount, BankCount: bankCount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Meta.SpaceID < out[j].Meta.SpaceID })
	return out, nil
}

func (s *Service) countExcludingKeep(ctx context.Context, prefix string) (int, error) {
	objs, err := s.store.ListObjects(ctx, prefix, 0)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, o := range objs {
		if o.Key == prefix+objectstore.KeepFile {
			continue
		}
		n++
	}
	return n, nil
}

// Info is the per-space statistics spec.md's info() operation returns.
type Info struct {
	Meta         Meta
	LiveCount    int
	BankCount    int
	LiveBytes    int64
	BankBytes    int64
	HasSynthesis bool
}

// Info computes stats on a space's live/bank counts, byte totals, and
// whether a synthesis file exists.
func (s *Service) Info(ctx context.Context, spaceID string) (Info, error) {
	var meta Meta
	ok, err := s.store.GetJSON(ctx, metaKey(spaceID), &meta)
	if err != nil {
		return Info{}, err
	}
	if !ok {
		return Info{}, fmt.Errorf("space: %q not found", spaceID)
	}

	liveObjs, err := s.store.ListObjects(ctx, livePrefix(spaceID), 0)
	if err != nil {
		return Info{}, err
	}
	bankObjs, err := s.store.ListObjects(ctx, bankPrefix(spaceID), 0)
	if err != nil {
		return Info{}, err
	}

	info := Info{Meta: meta}
	for _, o := range liveObjs {
		if o.Key == liveKeep(spaceID) {
			continue
		}
		info.LiveCount++
		info.LiveBytes += o.Size
	}
	for _, o := range bankObjs {
		if o.Key == bankKeep(spaceID) {
			continue
		}
		info.BankCount++
		info.BankBytes += o.Size
	}
	info.HasSynthesis, err = s.store.Exists(ctx, synthKey(spaceID))
	if err != nil {
		return Info{}, err
	}
	return info, nil
}

// Rules returns the raw Markdown of _rules.md.
func (s *Service) Rules(ctx context.Context, spaceID string) (string, error) {
	body, ok, err := s.store.Get(ctx, rulesKey(spaceID))
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("space: %q not found", spaceID)
	}
	return string(body), nil
}

// Summary is Info plus the full bank content and synthesis text.
type Summary struct {
	Info      Info
	Bank      map[string]string
	Synthesis string
}

// Summary returns Info plus every bank file's content and the synthesis
// text (empty string if none exists).
func (s *Service) Summary(ctx context.Context, spaceID string) (Summary, error) {
	info, err := s.Info(ctx, spaceID)
	if err != nil {
		return Summary{}, err
	}
	fetched, err := s.store.ListAndGet(ctx, bankPrefix(spaceID), true)
	if err != nil {
		return Summary{}, err
	}
	bank := make(map[string]string, len(fetched))
	for _, f := range fetched {
		name := strings.TrimPrefix(f.Key, bankPrefix(spaceID))
		bank[name] = string(f.Content)
	}
	synth, _, err := s.store.Get(ctx, synthKey(spaceID))
	if err != nil {
		return Summary{}, err
	}
	return Summary{Info: info, Bank: bank, Synthesis: string(synth)}, nil
}

// BankList returns the bank's filenames (excluding .keep), sorted.
func (s *Service) BankList(ctx context.Context, spaceID string) ([]string, error) {
	objs, err := s.store.ListObjects(ctx, bankPrefix(spaceID), 0)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(objs))
	for _, o := range objs {
		if o.Key == bankKeep(spaceID) {
			continue
		}
		out = append(out, strings.TrimPrefix(o.Key, bankPrefix(spaceID)))
	}
	sort.Strings(out)
	return out, nil
}

// BankRead returns one bank file's content.
func (s *Service) BankRead(ctx context.Context, spaceID, filename string) (string, bool, error) {
	body, ok, err := s.store.Get(ctx, bankKey(spaceID, filename))
	if err != nil || !ok {
		return "", ok, err
	}
	return string(body), true, nil
}

func bankKey(spaceID, filename string) string { return bankPrefix(spaceID) + filename }

// Export returns a gzip-tar archive of every object under {space}/,
// suitable for base64-encoding into an inline tool response.
func (s *Service) Export(ctx context.Context, spaceID string) ([]byte, error) {
	fetched, err := s.store.ListAndGet(ctx, spaceID+"/", false)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, f := range fetched {
		hdr := &tar.Header{
			Name:    f.Key,
			Size:    int64(len(f.Content)),
			Mode:    0o644,
			ModTime: f.Modified,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, fmt.Errorf("space: export tar header %s: %w", f.Key, err)
		}
		if _, err := tw.Write(f.Content); err != nil {
			return nil, fmt.Errorf("space: export tar body %s: %w", f.Key, err)
		}
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("space: close tar: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("space: close gzip: %w", err)
	}
	return buf.Bytes(), nil
}

// Delete lists and removes every key under {space}/, returning the count
// deleted.
func (s *Service) Delete(ctx context.Context, spaceID string) (int, error) {
	objs, err := s.store.ListObjects(ctx, spaceID+"/", 0)
	if err != nil {
		return 0, err
	}
	keys := make([]string, 0, len(objs))
	for _, o := range objs {
		keys = append(keys, o.Key)
	}
	n, err := s.store.DeleteMany(ctx, keys)
	if err != nil {
		return n, err
	}
	logger.FromContext(ctx).Info("space deleted", "space_id", spaceID, "objects_deleted", n)
	return n, nil
}
