package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"briefline/copyforge/pkg/cli"
	"briefline/copyforge/pkg/policy"
	"briefline/copyforge/pkg/server"
	"briefline/copyforge/pkg/store"
	"briefline/copyforge/pkg/telemetry/health"
	"briefline/copyforge/pkg/telemetry/metrics"
	"briefline/copyforge/pkg/telemetry/tracing"
)

var serveFlags struct {
	listenAddress string
	storeRoot     string
	policyPath    string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Start the HTTP API server. Runs execute synchronously inside the
request; suspended runs persist across restarts and resume through the
approve and reject endpoints.

Examples:
  # Serve with the default config file
  copyforge serve

  # Serve on a different port with an explicit policy
  copyforge serve --listen 0.0.0.0:9090 --policy policy.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveFlags.listenAddress, "listen", "", "listen address (overrides config)")
	serveCmd.Flags().StringVar(&serveFlags.storeRoot, "store", "", "storage root (overrides config)")
	serveCmd.Flags().StringVar(&serveFlags.policyPath, "policy", "", "policy file (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd.Flags().Changed("config"))
	if err != nil {
		return err
	}
	if serveFlags.listenAddress != "" {
		cfg.Server.ListenAddress = serveFlags.listenAddress
	}
	logger, err := setupLogging(cfg)
	if err != nil {
		return err
	}

	ctx, stop := cli.SignalContext()
	defer stop()

	tracer, err := tracing.New(ctx, cfg.Telemetry.Tracing)
	if err != nil {
		return cli.NewCommandError("serve", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	var collector *metrics.Collector
	if cfg.Telemetry.Metrics.Enabled {
		collector = metrics.NewCollector(cfg.Telemetry.Metrics, nil)
	}

	runStore, err := openStore(cfg, serveFlags.storeRoot, logger)
	if err != nil {
		return cli.NewCommandError("serve", err)
	}
	pruner := store.NewPruner(runStore, cfg.Storage.Retention)
	if err := pruner.Start(ctx); err != nil {
		return cli.NewCommandError("serve", err)
	}

	pol, err := resolvePolicy(serveFlags.policyPath, cfg)
	if err != nil {
		return err
	}

	provider, err := buildProvider(cfg, logger)
	if err != nil {
		return err
	}
	if provider != nil {
		defer provider.Close()
	}
	orchestrator, err := buildOrchestrator(cfg, provider, collector, logger)
	if err != nil {
		return err
	}
	engine := buildEvals(provider, logger)

	checker := health.New(0)
	checker.Register("store", func(context.Context) error {
		probe := runStore.Root()
		f, err := os.CreateTemp(probe, ".health-*")
		if err != nil {
			return fmt.Errorf("store not writable: %w", err)
		}
		f.Close()
		return os.Remove(f.Name())
	})
	if provider != nil {
		checker.Register("provider", func(context.Context) error { return nil })
	}

	srv, err := server.New(server.Config{
		HTTP:         cfg.Server,
		Orchestrator: orchestrator,
		Store:        runStore,
		Evals:        engine,
		Policy:       pol,
		Checker:      checker,
		Metrics:      collector,
		Logger:       logger,
	})
	if err != nil {
		return cli.NewCommandError("serve", err)
	}

	policyPath := serveFlags.policyPath
	if policyPath == "" {
		policyPath = cfg.Pipeline.PolicyPath
	}
	if cfg.Pipeline.WatchPolicy && policyPath != "" {
		watcher, err := policy.NewWatcher(policyPath, srv.SetPolicy, logger)
		if err != nil {
			return cli.NewCommandError("serve", err)
		}
		if err := watcher.Start(); err != nil {
			return cli.NewCommandError("serve", err)
		}
		defer watcher.Stop()
	}

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("serve", err)
	}
	return nil
}
