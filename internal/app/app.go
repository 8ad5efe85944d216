// Package app wires every service into one explicit composition root,
// replacing the source's module-level singletons (Design Notes §9): an
// App is built once from a *config.Config and owns the object store, the
// in-process lock manager, the token registry, and every domain service,
// exposing them as internal/mcpserver.Deps for the HTTP+SSE transport.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/chrlesur/live-memory/internal/backup"
	"github.com/chrlesur/live-memory/internal/consolidator"
	"github.com/chrlesur/live-memory/internal/gc"
	"github.com/chrlesur/live-memory/internal/graphbridge"
	"github.com/chrlesur/live-memory/internal/livenote"
	"github.com/chrlesur/live-memory/internal/locks"
	"github.com/chrlesur/live-memory/internal/mcpserver"
	"github.com/chrlesur/live-memory/internal/objectstore"
	"github.com/chrlesur/live-memory/internal/space"
	"github.com/chrlesur/live-memory/internal/tokens"
	"github.com/chrlesur/live-memory/pkg/config"
	"github.com/chrlesur/live-memory/pkg/logger"
)

// App owns every long-lived service and the HTTP server built over them.
type App struct {
	cfg    *config.Config
	store  objectstore.Store
	locks  *locks.Manager
	tokens *tokens.Registry
	gc     *gc.Collector
	cron   *cron.Cron
	server *mcpserver.Server
}

// New constructs every service from cfg. It fails if the object store
// client cannot be built (no network call is made here) or if a non-empty
// GC schedule does not parse; everything else is pure composition.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	store, err := objectstore.New(objectstore.ConfigFromSpec(cfg.S3))
	if err != nil {
		return nil, fmt.Errorf("app: building object store: %w", err)
	}

	lockMgr := locks.NewManager()
	tokenRegistry := tokens.NewRegistry(store, lockMgr)
	notes := livenote.NewService(store)
	spaces := space.NewService(store)
	backups := backup.NewService(store)
	graphBridge := graphbridge.NewService(store)

	llmClient := consolidator.NewClient(cfg.LLM.APIURL, cfg.LLM.APIKey)
	cons := consolidator.New(store, lockMgr, notes, llmClient, consolidator.Config{
		APIURL:      cfg.LLM.APIURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		MaxNotes:    cfg.Consolidation.MaxNotes,
		Timeout:     cfg.Consolidation.Timeout,
	})
	collector := gc.New(store, notes, cons)

	deps := &mcpserver.Deps{
		Store:        store,
		Spaces:       spaces,
		Notes:        notes,
		Consolidator: cons,
		Backups:      backups,
		GraphBridge:  graphBridge,
		Tokens:       tokenRegistry,
		GC:           collector,
		ServerName:   cfg.Server.Name,
		BucketName:   cfg.S3.BucketName,
		BootstrapKey: cfg.Auth.BootstrapKey,
	}

	server := mcpserver.NewServer(deps, cfg.Server.Host)

	a := &App{
		cfg:    cfg,
		store:  store,
		locks:  lockMgr,
		tokens: tokenRegistry,
		gc:     collector,
		server: server,
	}

	if cfg.GC.Schedule != "" {
		a.cron = cron.New()
		if _, err := a.cron.AddFunc(cfg.GC.Schedule, a.runScheduledSweep(ctx)); err != nil {
			return nil, fmt.Errorf("app: scheduling GC sweep %q: %w", cfg.GC.Schedule, err)
		}
	}

	return a, nil
}

// runScheduledSweep is the cron job body: a forced consolidate_old across
// every space, logging (not failing the process) on error.
func (a *App) runScheduledSweep(ctx context.Context) func() {
	return func() {
		log := logger.FromContext(ctx)
		result, err := a.gc.ConsolidateOld(ctx, "", a.cfg.GC.MaxAgeDays)
		if err != nil {
			log.Error("scheduled GC sweep failed", "error", err)
			return
		}
		log.Info("scheduled GC sweep complete", "consolidated", result.Consolidated, "spaces_scanned", len(result.Scan.Spaces))
	}
}

// Run starts the cron scheduler (if configured) and serves HTTP until ctx
// is canceled, then shuts the HTTP server down gracefully. Grounded on
// compozy-compozy's engine/infra/server.Server.Run /
// handleGracefulShutdown shape.
func (a *App) Run(ctx context.Context) error {
	if a.cron != nil {
		a.cron.Start()
		defer a.cron.Stop()
	}

	addr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      a.server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // SSE streams are long-lived; no write deadline.
		IdleTimeout:  120 * time.Second,
	}

	log := logger.FromContext(ctx)
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting HTTP server", "address", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server failed: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
