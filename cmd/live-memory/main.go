// Command live-memory runs the Live Memory MCP server: a shared working
// memory service collaborating agents read and write through the Model
// Context Protocol over HTTP+SSE.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chrlesur/live-memory/internal/app"
	"github.com/chrlesur/live-memory/pkg/config"
	"github.com/chrlesur/live-memory/pkg/logger"
	"github.com/chrlesur/live-memory/pkg/version"
)

func main() {
	if err := createRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func createRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "live-memory",
		Short: "Live Memory MCP server",
		Long: `Live Memory is a shared working-memory service for collaborating AI
agents, exposed over the Model Context Protocol via HTTP+SSE.`,
		RunE:              runServer,
		PersistentPreRunE: setupGlobalConfig,
	}

	root.PersistentFlags().Bool("debug", false, "Enable debug logging regardless of DEBUG")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			info := version.Get()
			fmt.Printf("live-memory version %s\n", info.Version)
			fmt.Printf("commit: %s\n", info.CommitHash)
			fmt.Printf("built: %s\n", info.BuildDate)
		},
	}
	root.AddCommand(versionCmd)

	return root
}

// setupGlobalConfig loads configuration (defaults, then environment) and
// installs a context-scoped logger before RunE executes.
func setupGlobalConfig(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Initialize(config.NewDefaultProvider(), config.NewEnvProvider())
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logLevel := logger.InfoLevel
	if cfg.Server.Debug {
		logLevel = logger.DebugLevel
	}
	if debug, err := cmd.Flags().GetBool("debug"); err == nil && debug {
		logLevel = logger.DebugLevel
	}

	log := logger.NewLogger(&logger.Config{
		Level:      logLevel,
		Output:     os.Stdout,
		JSON:       !cfg.Server.Debug,
		TimeFormat: "15:04:05",
	})

	ctx := logger.ContextWithLogger(cmd.Context(), log)
	ctx = config.ContextWithConfig(ctx, cfg)
	cmd.SetContext(ctx)
	return nil
}

func runServer(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	log := logger.FromContext(ctx)
	cfg := config.FromContext(ctx)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("building application: %w", err)
	}

	log.Info("live-memory starting",
		"address", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		"bucket", cfg.S3.BucketName,
	)

	return a.Run(ctx)
}
