// Package consolidator implements spec.md §4.7, the hardest subsystem:
// collecting a space's current state, asking an LLM to rewrite the bank,
// and committing both sides atomically from a given agent's point of view.
package consolidator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/chrlesur/live-memory/internal/livenote"
	"github.com/chrlesur/live-memory/internal/locks"
	"github.com/chrlesur/live-memory/internal/objectstore"
	"github.com/chrlesur/live-memory/pkg/logger"
)

// Status values a consolidation run can report, mirroring the other tool
// payloads' fixed status vocabulary (spec.md §4.11).
const (
	StatusOK       = "ok"
	StatusConflict = "conflict"
	StatusError    = "error"
)

// Config is the subset of LLM connection settings the consolidator needs.
type Config struct {
	APIURL      string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	MaxNotes    int
	Timeout     time.Duration
}

// Result is what bank_consolidate returns to its caller.
type Result struct {
	Status             string
	NotesProcessed     int
	NotesRemaining     int
	BankFilesCreated   int
	BankFilesUpdated   int
	BankFilesUnchanged int
	SynthesisSize      int
	PromptTokens       int
	CompletionTokens   int
	TotalTokens        int
	DurationSeconds    float64
	Error              string
}

// bankFileResponse is one entry of the LLM's bank_files array.
type bankFileResponse struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
	Action   string `json:"action"`
}

// llmResponse is the strict schema the prompt demands.
type llmResponse struct {
	BankFiles []bankFileResponse `json:"bank_files"`
	Synthesis string             `json:"synthesis"`
}

// Consolidator ties together the object store, the lock manager, and an
// OpenAI-compatible chat-completions client.
type Consolidator struct {
	store  objectstore.Store
	locks  *locks.Manager
	notes  *livenote.Service
	client *openai.Client
	cfg    Config
}

// New builds a Consolidator. client may be nil in tests that never reach
// the LLM call (e.g. the zero-notes short circuit).
func New(store objectstore.Store, mgr *locks.Manager, notes *livenote.Service, client *openai.Client, cfg Config) *Consolidator {
	if cfg.MaxNotes <= 0 {
		cfg.MaxNotes = 500
	}
	return &Consolidator{store: store, locks: mgr, notes: notes, client: client, cfg: cfg}
}

// NewClient builds the go-openai client pointed at an OpenAI-compatible
// endpoint (spec.md treats the LLM as "an OpenAI-compatible chat-completions
// endpoint returning JSON").
func NewClient(apiURL, apiKey string) *openai.Client {
	clientCfg := openai.DefaultConfig(apiKey)
	if apiURL != "" {
		clientCfg.BaseURL = apiURL
	}
	return openai.NewClientWithConfig(clientCfg)
}

func metaKey(spaceID string) string           { return spaceID + "/_meta.json" }
func rulesKey(spaceID string) string          { return spaceID + "/_rules.md" }
func synthKey(spaceID string) string          { return spaceID + "/_synthesis.md" }
func bankKey(spaceID, filename string) string { return spaceID + "/bank/" + filename }
func bankPrefix(spaceID string) string        { return spaceID + "/bank/" }

type spaceMeta struct {
	SpaceID             string     `json:"space_id"`
	Description         string     `json:"description"`
	Owner               string     `json:"owner"`
	CreatedAt           time.Time  `json:"created_at"`
	LastConsolidation   *time.Time `json:"last_consolidation,omitempty"`
	ConsolidationCount  int        `json:"consolidation_count"`
	TotalNotesProcessed int        `json:"total_notes_processed"`
	GraphMemory         any        `json:"graph_memory,omitempty"`
	Version             int        `json:"version"`
}

// Consolidate runs spec.md §4.7's full commit sequence for spaceID,
// filtered to agent (empty string = all agents). It acquires the space's
// consolidation lock without blocking: if already held, it returns
// StatusConflict immediately.
func (c *Consolidator) Consolidate(ctx context.Context, spaceID, agent string) (Result, error) {
	if !c.locks.TryLockSpace(spaceID) {
		return Result{Status: StatusConflict}, nil
	}
	defer c.locks.UnlockSpace(spaceID)

	start := time.Now()
	log := logger.FromContext(ctx)

	rules, ok, err := c.store.Get(ctx, rulesKey(spaceID))
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{}, fmt.Errorf("consolidator: space %q has no rules", spaceID)
	}

	prevSynthesis, _, err := c.store.Get(ctx, synthKey(spaceID))
	if err != nil {
		return Result{}, err
	}

	allNotes, err := c.loadAgentNotes(ctx, spaceID, agent)
	if err != nil {
		return Result{}, err
	}
	notesRemaining := 0
	notes := allNotes
	if len(notes) > c.cfg.MaxNotes {
		notesRemaining = len(notes) - c.cfg.MaxNotes
		notes = notes[:c.cfg.MaxNotes]
	}

	if len(notes) == 0 {
		return Result{Status: StatusOK, NotesProcessed: 0, DurationSeconds: time.Since(start).Seconds()}, nil
	}

	bankFiles, err := c.loadBankFiles(ctx, spaceID)
	if err != nil {
		return Result{}, err
	}

	prompt := buildPrompt(string(rules), string(prevSynthesis), notes, bankFiles)

	llmCtx := ctx
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		llmCtx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}
	resp, usage, err := c.callLLM(llmCtx, prompt)
	if err != nil {
		log.Error("consolidation LLM call failed", "space_id", spaceID, "error", err)
		return Result{Status: StatusError, Error: err.Error()}, nil
	}

	created, updated := 0, 0
	for _, bf := range resp.BankFiles {
		if err := c.store.Put(ctx, bankKey(spaceID, bf.Filename), []byte(bf.Content), "text/markdown"); err != nil {
			return Result{}, err
		}
		if bf.Action == "created" {
			created++
		} else {
			updated++
		}
	}
	unchanged := len(bankFiles) - updated
	if unchanged < 0 {
		unchanged = 0
	}

	now := time.Now().UTC()
	synthesisBody := renderSynthesis(now, len(notes), resp.Synthesis)
	if err := c.store.Put(ctx, synthKey(spaceID), []byte(synthesisBody), "text/markdown"); err != nil {
		return Result{}, err
	}

	if err := c.updateMeta(ctx, spaceID, now, len(notes)); err != nil {
		return Result{}, err
	}

	for _, n := range notes {
		if err := c.store.Delete(ctx, n.Key); err != nil {
			log.Warn("consolidator: best-effort note delete failed", "key", n.Key, "error", err)
		}
	}

	log.Info("space consolidated", "space_id", spaceID, "agent", agent, "notes_processed", len(notes))

	return Result{
		Status:             StatusOK,
		NotesProcessed:     len(notes),
		NotesRemaining:     notesRemaining,
		BankFilesCreated:   created,
		BankFilesUpdated:   updated,
		BankFilesUnchanged: unchanged,
		SynthesisSize:      len(synthesisBody),
		PromptTokens:       usage.PromptTokens,
		CompletionTokens:   usage.CompletionTokens,
		TotalTokens:        usage.TotalTokens,
		DurationSeconds:    time.Since(start).Seconds(),
	}, nil
}

func (c *Consolidator) loadAgentNotes(ctx context.Context, spaceID, agent string) ([]livenote.Note, error) {
	fetched, err := c.store.ListAndGet(ctx, spaceID+"/live/", true)
	if err != nil {
		return nil, err
	}
	var notes []livenote.Note
	for _, f := range fetched {
		if agent != "" && !keyBelongsToAgent(f.Key, agent) {
			continue
		}
		n, ok := livenote.ParseNote(f.Key, string(f.Content))
		if !ok {
			continue
		}
		notes = append(notes, n)
	}
	sort.Slice(notes, func(i, j int) bool { return notes[i].Key < notes[j].Key })
	return notes, nil
}

// keyBelongsToAgent checks the filename-contains-"_{agent}_" rule spec.md
// §3 defines for attributing a note to an agent.
func keyBelongsToAgent(key, agent string) bool {
	base := key
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		base = base[idx+1:]
	}
	return strings.Contains(base, "_"+agent+"_") || strings.HasPrefix(base, agent+"_")
}

func (c *Consolidator) loadBankFiles(ctx context.Context, spaceID string) (map[string]string, error) {
	fetched, err := c.store.ListAndGet(ctx, bankPrefix(spaceID), true)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(fetched))
	for _, f := range fetched {
		name := strings.TrimPrefix(f.Key, bankPrefix(spaceID))
		out[name] = string(f.Content)
	}
	return out, nil
}

func renderSynthesis(ts time.Time, notesProcessed int, content string) string {
	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "consolidated_at: %s\n", ts.Format(time.RFC3339))
	fmt.Fprintf(&b, "notes_processed: %d\n", notesProcessed)
	b.WriteString("---\n\n")
	b.WriteString(content)
	return b.String()
}

func (c *Consolidator) updateMeta(ctx context.Context, spaceID string, now time.Time, notesProcessed int) error {
	var meta spaceMeta
	ok, err := c.store.GetJSON(ctx, metaKey(spaceID), &meta)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("consolidator: space %q has no metadata", spaceID)
	}
	meta.ConsolidationCount++
	meta.LastConsolidation = &now
	meta.TotalNotesProcessed += notesProcessed
	return c.store.PutJSON(ctx, metaKey(spaceID), meta)
}
