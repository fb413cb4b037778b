package main

import (
	"fmt"
	"log/slog"
	"os"

	"briefline/copyforge/pkg/cli"
	"briefline/copyforge/pkg/config"
	"briefline/copyforge/pkg/evals"
	"briefline/copyforge/pkg/judge"
	"briefline/copyforge/pkg/pipeline"
	"briefline/copyforge/pkg/policy"
	"briefline/copyforge/pkg/providerfactory"
	"briefline/copyforge/pkg/providers"
	"briefline/copyforge/pkg/store"
	"briefline/copyforge/pkg/telemetry/logging"
	"briefline/copyforge/pkg/telemetry/metrics"
)

// resolveConfig reads cfgFile. A missing file at the default location
// falls back to defaults so the CLI works without one; an explicitly set
// --config that does not exist is an error.
func resolveConfig(explicit bool) (*config.Config, error) {
	if _, err := os.Stat(cfgFile); err != nil {
		if os.IsNotExist(err) && !explicit {
			return config.Default(), nil
		}
		return nil, cli.NewConfigError("", fmt.Sprintf("failed to read config %s: %v", cfgFile, err))
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg, nil
}

// setupLogging builds and installs the process logger from config, with
// --verbose forcing debug level.
func setupLogging(cfg *config.Config) (*slog.Logger, error) {
	lc := logging.Config{
		Level:  cfg.Telemetry.Logging.Level,
		Format: cfg.Telemetry.Logging.Format,
	}
	if cfg.Telemetry.Logging.RedactPII != nil {
		lc.RedactPII = *cfg.Telemetry.Logging.RedactPII
	}
	if verbose {
		lc.Level = "debug"
	}
	return logging.Setup(lc)
}

// buildProvider creates the configured LLM provider, or nil when no
// provider is configured. The pipeline is fully functional without one;
// it then plans and writes deterministically.
func buildProvider(cfg *config.Config, logger *slog.Logger) (providers.Provider, error) {
	name := cfg.Pipeline.Provider
	if name == "" {
		return nil, nil
	}
	pc, ok := cfg.Providers[name]
	if !ok {
		return nil, cli.NewConfigError("pipeline.provider", fmt.Sprintf("provider %q not defined", name))
	}
	if pc.APIKey == "" {
		logger.Warn("provider has no api key, running deterministically", "provider", name)
		return nil, nil
	}
	return providerfactory.NewProvider(pc)
}

// resolvePolicy loads the run policy: an explicit flag path wins, then the
// config's policy path, then documented defaults.
func resolvePolicy(flagPath string, cfg *config.Config) (policy.Policy, error) {
	path := flagPath
	if path == "" {
		path = cfg.Pipeline.PolicyPath
	}
	if path == "" {
		return policy.Default(), nil
	}
	pol, err := policy.Load(path)
	if err != nil {
		return policy.Policy{}, cli.NewConfigError("policy", err.Error())
	}
	return pol, nil
}

// resolveGraph loads the pipeline topology from config, or the built-in
// default graph.
func resolveGraph(cfg *config.Config) (*pipeline.Graph, error) {
	if cfg.Pipeline.GraphPath == "" {
		return pipeline.DefaultGraph(), nil
	}
	g, err := pipeline.LoadGraph(cfg.Pipeline.GraphPath)
	if err != nil {
		return nil, cli.NewConfigError("pipeline.graph_path", err.Error())
	}
	return g, nil
}

// buildOrchestrator assembles the orchestrator with LLM augmentation
// hooks when a provider exists.
func buildOrchestrator(cfg *config.Config, provider providers.Provider, collector *metrics.Collector, logger *slog.Logger) (*pipeline.Orchestrator, error) {
	graph, err := resolveGraph(cfg)
	if err != nil {
		return nil, err
	}

	oc := pipeline.Config{
		Graph:    graph,
		Provider: provider,
		Logger:   logger,
	}
	if collector != nil {
		oc.Metrics = collector
	}
	if provider != nil {
		oc.Judge = judge.NewReviewer(provider, policy.DefaultReviewerTier, logger)
		oc.Classifier = judge.NewClassifier(provider, policy.DefaultPlannerTier, logger)
	}
	return pipeline.New(oc), nil
}

// buildEvals assembles the eval engine, with pairwise judging when a
// provider exists.
func buildEvals(provider providers.Provider, logger *slog.Logger) *evals.Engine {
	ec := evals.Config{Logger: logger}
	if provider != nil {
		ec.Judge = judge.NewReviewer(provider, policy.DefaultReviewerTier, logger)
		ec.Pairwise = judge.NewComparer(provider, policy.DefaultReviewerTier, logger)
	}
	return evals.NewEngine(ec)
}

// openStore opens the run store at the configured root, with an optional
// flag override.
func openStore(cfg *config.Config, override string, logger *slog.Logger) (*store.Store, error) {
	root := override
	if root == "" {
		root = cfg.Storage.Root
	}
	return store.New(root, logger)
}
