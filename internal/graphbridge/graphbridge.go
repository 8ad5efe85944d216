// Package graphbridge implements spec.md §4.10: an outbound connection,
// per space, to an external graph-memory service that speaks the same
// MCP/SSE contract this system's own transport speaks (§4.11). Live
// Memory acts as the MCP client here, not the server.
package graphbridge

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/chrlesur/live-memory/internal/objectstore"
	"github.com/chrlesur/live-memory/pkg/logger"
)

// callTimeout bounds any single outbound MCP call; a stuck remote must not
// wedge a consolidation or push indefinitely.
const callTimeout = 30 * time.Second

func metaKey(spaceID string) string    { return spaceID + "/_meta.json" }
func bankPrefix(spaceID string) string { return spaceID + "/bank/" }

// graphMemory mirrors space.GraphMemory's JSON shape without importing the
// space package, the same pattern internal/consolidator uses for _meta.json.
type graphMemory struct {
	URL         string     `json:"url"`
	Token       string     `json:"token"`
	MemoryID    string     `json:"memory_id"`
	Ontology    string     `json:"ontology,omitempty"`
	LastPush    *time.Time `json:"last_push,omitempty"`
	PushCount   int        `json:"push_count"`
	FilesPushed []string   `json:"files_pushed,omitempty"`
}

type spaceMeta struct {
	SpaceID             string       `json:"space_id"`
	Description         string       `json:"description"`
	Owner               string       `json:"owner"`
	CreatedAt           time.Time    `json:"created_at"`
	LastConsolidation   *time.Time   `json:"last_consolidation,omitempty"`
	ConsolidationCount  int          `json:"consolidation_count"`
	TotalNotesProcessed int          `json:"total_notes_processed"`
	GraphMemory         *graphMemory `json:"graph_memory,omitempty"`
	Version             int          `json:"version"`
}

// session is the outbound MCP session surface graphbridge needs: open a
// connection, call a tool, close. realSession implements it over
// mark3labs/mcp-go's SSE client; tests substitute a fake so exercising
// Connect/Push/Status/Disconnect never requires standing up a real MCP-SSE
// remote.
type session interface {
	callTool(ctx context.Context, name string, args map[string]any) (string, error)
	close() error
}

// sessionFactory opens a new outbound session against url, authenticated
// with token. Service.dial defaults to dialMCP; tests override it.
type sessionFactory func(ctx context.Context, url, token string) (session, error)

// Service implements the graph-bridge operations over a Store.
type Service struct {
	store objectstore.Store
	dial  sessionFactory
}

// NewService builds a Service over store, dialing real MCP-SSE sessions.
func NewService(store objectstore.Store) *Service {
	return &Service{store: store, dial: dialMCP}
}

// newServiceWithDialer is used by tests to inject a fake session factory.
func newServiceWithDialer(store objectstore.Store, dial sessionFactory) *Service {
	return &Service{store: store, dial: dial}
}

func (s *Service) loadMeta(ctx context.Context, spaceID string) (spaceMeta, error) {
	var meta spaceMeta
	ok, err := s.store.GetJSON(ctx, metaKey(spaceID), &meta)
	if err != nil {
		return spaceMeta{}, err
	}
	if !ok {
		return spaceMeta{}, fmt.Errorf("graphbridge: space %q not found", spaceID)
	}
	return meta, nil
}

func (s *Service) saveMeta(ctx context.Context, spaceID string, meta spaceMeta) error {
	return s.store.PutJSON(ctx, metaKey(spaceID), meta)
}

func callTool(ctx context.Context, sess session, name string, args map[string]any) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	out, err := sess.callTool(ctx, name, args)
	if err != nil {
		return "", fmt.Errorf("graphbridge: call %s: %w", name, err)
	}
	return out, nil
}

// Connect opens an MCP session against the remote, lists its memories, and
// either adopts memoryID or creates a fresh one, then persists the
// connection config into _meta.graph_memory.
func (s *Service) Connect(ctx context.Context, spaceID, url, token, memoryID, ontology string) error {
	meta, err := s.loadMeta(ctx, spaceID)
	if err != nil {
		return err
	}

	sess, err := s.dial(ctx, url, token)
	if err != nil {
		return fmt.Errorf("graphbridge: connect: %w", err)
	}
	defer func() { _ = sess.close() }()

	if _, err := callTool(ctx, sess, "memory_list", nil); err != nil {
		return err
	}

	if memoryID == "" {
		created, err := callTool(ctx, sess, "memory_create", map[string]any{"ontology": ontology})
		if err != nil {
			return err
		}
		memoryID = strings.TrimSpace(created)
		if memoryID == "" {
			return fmt.Errorf("graphbridge: memory_create returned no memory id")
		}
	}

	meta.GraphMemory = &graphMemory{URL: url, Token: token, MemoryID: memoryID, Ontology: ontology}
	if err := s.saveMeta(ctx, spaceID, meta); err != nil {
		return err
	}

	logger.FromContext(ctx).Info("graph bridge connected", "space_id", spaceID, "memory_id", memoryID)
	return nil
}

// PushResult is graph_push's aggregated outcome.
type PushResult struct {
	Pushed                int
	DeletedBeforeReingest int
	CleanedOrphans        int
	Errors                int
	ErrorDetails          []string
	DurationSeconds       float64
}

// Push reads every bank file, re-ingests each into the remote memory
// (deleting any pre-existing document of the same name first, per spec.md
// §4.10's delete-before-reingest rule), then removes remote documents that
// no longer correspond to a local bank file.
func (s *Service) Push(ctx context.Context, spaceID string) (PushResult, error) {
	start := time.Now()
	meta, err := s.loadMeta(ctx, spaceID)
	if err != nil {
		return PushResult{}, err
	}
	if meta.GraphMemory == nil {
		return PushResult{}, fmt.Errorf("graphbridge: space %q is not connected", spaceID)
	}
	gm := meta.GraphMemory

	sess, err := s.dial(ctx, gm.URL, gm.Token)
	if err != nil {
		return PushResult{}, fmt.Errorf("graphbridge: push: %w", err)
	}
	defer func() { _ = sess.close() }()

	fetched, err := s.store.ListAndGet(ctx, bankPrefix(spaceID), true)
	if err != nil {
		return PushResult{}, err
	}

	existingRaw, err := callTool(ctx, sess, "document_list", map[string]any{"memory_id": gm.MemoryID})
	if err != nil {
		return PushResult{}, err
	}
	existing := parseDocumentNames(existingRaw)

	result := PushResult{}
	pushedNames := make([]string, 0, len(fetched))
	localNames := make(map[string]bool, len(fetched))

	for _, f := range fetched {
		name := strings.TrimPrefix(f.Key, bankPrefix(spaceID))
		localNames[name] = true

		if existing[name] {
			if _, err := callTool(ctx, sess, "document_delete", map[string]any{"memory_id": gm.MemoryID, "filename": name}); err != nil {
				result.Errors++
				result.ErrorDetails = append(result.ErrorDetails, err.Error())
				continue
			}
			result.DeletedBeforeReingest++
		}
		args := map[string]any{
			"memory_id":      gm.MemoryID,
			"filename":       name,
			"content_base64": base64.StdEncoding.EncodeToString(f.Content),
		}
		if _, err := callTool(ctx, sess, "memory_ingest", args); err != nil {
			result.Errors++
			result.ErrorDetails = append(result.ErrorDetails, err.Error())
			continue
		}
		result.Pushed++
		pushedNames = append(pushedNames, name)
	}

	for name := range existing {
		if localNames[name] {
			continue
		}
		if _, err := callTool(ctx, sess, "document_delete", map[string]any{"memory_id": gm.MemoryID, "filename": name}); err != nil {
			result.Errors++
			result.ErrorDetails = append(result.ErrorDetails, err.Error())
			continue
		}
		result.CleanedOrphans++
	}

	now := time.Now().UTC()
	gm.LastPush = &now
	gm.PushCount++
	gm.FilesPushed = pushedNames
	meta.GraphMemory = gm
	if err := s.saveMeta(ctx, spaceID, meta); err != nil {
		return result, err
	}

	result.DurationSeconds = time.Since(start).Seconds()
	logger.FromContext(ctx).Info("graph bridge push complete", "space_id", spaceID, "pushed", result.Pushed, "errors", result.Errors)
	return result, nil
}

// parseDocumentNames turns document_list's freeform text reply into a set
// of filenames. Remotes are expected to return one filename per line; any
// other shape degrades to "no existing documents known", which only costs
// an extra ingest, never data loss.
func parseDocumentNames(raw string) map[string]bool {
	out := map[string]bool{}
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out[line] = true
		}
	}
	return out
}

// StatusResult is graph_status's report.
type StatusResult struct {
	Connected bool
	MemoryID  string
	Stats     string
	Documents []string
}

// Status probes connectivity and asks the remote for its stats and
// document listing.
func (s *Service) Status(ctx context.Context, spaceID string) (StatusResult, error) {
	meta, err := s.loadMeta(ctx, spaceID)
	if err != nil {
		return StatusResult{}, err
	}
	if meta.GraphMemory == nil {
		return StatusResult{Connected: false}, nil
	}
	gm := meta.GraphMemory

	sess, err := s.dial(ctx, gm.URL, gm.Token)
	if err != nil {
		return StatusResult{Connected: false, MemoryID: gm.MemoryID}, nil
	}
	defer func() { _ = sess.close() }()

	stats, err := callTool(ctx, sess, "memory_stats", map[string]any{"memory_id": gm.MemoryID})
	if err != nil {
		return StatusResult{Connected: false, MemoryID: gm.MemoryID}, nil
	}
	docsRaw, err := callTool(ctx, sess, "document_list", map[string]any{"memory_id": gm.MemoryID})
	if err != nil {
		return StatusResult{Connected: true, MemoryID: gm.MemoryID, Stats: stats}, nil
	}

	docs := make([]string, 0)
	for name := range parseDocumentNames(docsRaw) {
		docs = append(docs, name)
	}
	return StatusResult{Connected: true, MemoryID: gm.MemoryID, Stats: stats, Documents: docs}, nil
}

// Disconnect clears _meta.graph_memory. It never deletes remote data.
func (s *Service) Disconnect(ctx context.Context, spaceID string) error {
	meta, err := s.loadMeta(ctx, spaceID)
	if err != nil {
		return err
	}
	meta.GraphMemory = nil
	if err := s.saveMeta(ctx, spaceID, meta); err != nil {
		return err
	}
	logger.FromContext(ctx).Info("graph bridge disconnected", "space_id", spaceID)
	return nil
}
