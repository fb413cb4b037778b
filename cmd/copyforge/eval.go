package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"briefline/copyforge/pkg/cli"
	"briefline/copyforge/pkg/config"
	"briefline/copyforge/pkg/evals"
	"briefline/copyforge/pkg/pipeline"
	"briefline/copyforge/pkg/policy"
	"briefline/copyforge/pkg/providers"
	"briefline/copyforge/pkg/store"
)

var evalFlags struct {
	briefPath       string
	brandPath       string
	denylistPath    string
	policyPath      string
	storeRoot       string
	runID           string
	last            int
	baselineRun     string
	regressionCheck bool
	threshold       float64
	judgeMode       string
	pairwiseVotes   int
	output          string
}

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Score generated copy against rule checks and baselines",
	Long: `Score generated copy and optionally gate against a stored baseline.

Cases come from one of three sources: a stored run (--run), the most
recent stored runs (--last), or fresh generation from input files
(--brief). With --baseline-run the named run's drafts are scored as the
baseline; --regression-check then gates each case on its score delta.

Examples:
  # Score a stored run
  copyforge eval --run 2f1c...

  # Gate the five most recent runs against a baseline run
  copyforge eval --last 5 --baseline-run 2f1c... --regression-check

  # Generate from a brief and score with pairwise voting
  copyforge eval --brief brief.txt --baseline-run 2f1c... --pairwise-votes 7`,
	RunE: runEval,
}

func init() {
	rootCmd.AddCommand(evalCmd)

	evalCmd.Flags().StringVar(&evalFlags.briefPath, "brief", "", "brief file to generate and score")
	evalCmd.Flags().StringVar(&evalFlags.brandPath, "brand", "", "brand guide file path")
	evalCmd.Flags().StringVar(&evalFlags.denylistPath, "denylist", "", "denylist file path")
	evalCmd.Flags().StringVar(&evalFlags.policyPath, "policy", "", "policy file path (overrides config)")
	evalCmd.Flags().StringVar(&evalFlags.storeRoot, "store", "", "storage root (overrides config)")
	evalCmd.Flags().StringVar(&evalFlags.runID, "run", "", "score the stored run with this id")
	evalCmd.Flags().IntVar(&evalFlags.last, "last", 0, "score the N most recent stored runs")
	evalCmd.Flags().StringVar(&evalFlags.baselineRun, "baseline-run", "", "stored run to use as baseline")
	evalCmd.Flags().BoolVar(&evalFlags.regressionCheck, "regression-check", false, "gate cases on score delta against the baseline")
	evalCmd.Flags().Float64Var(&evalFlags.threshold, "threshold", evals.DefaultRegressionThreshold, "minimum allowed score delta")
	evalCmd.Flags().StringVar(&evalFlags.judgeMode, "judge", "", "force the LLM judge on or off (on, off)")
	evalCmd.Flags().IntVar(&evalFlags.pairwiseVotes, "pairwise-votes", 0, "pairwise votes against baseline drafts")
	evalCmd.Flags().StringVarP(&evalFlags.output, "output", "o", "text", "output format (text, json)")
}

func runEval(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd.Flags().Changed("config"))
	if err != nil {
		return err
	}
	logger, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	pol, err := resolvePolicy(evalFlags.policyPath, cfg)
	if err != nil {
		return err
	}
	evalStore, err := openStore(cfg, evalFlags.storeRoot, logger)
	if err != nil {
		return cli.NewCommandError("eval", err)
	}

	provider, err := buildProvider(cfg, logger)
	if err != nil {
		return err
	}
	if provider != nil {
		defer provider.Close()
	}
	engine := buildEvals(provider, logger)

	ctx, stop := cli.SignalContext()
	defer stop()

	var baseline *evals.Baseline
	if evalFlags.baselineRun != "" {
		baseline, err = baselineFromRun(ctx, evalStore, engine, pol, evalFlags.baselineRun)
		if err != nil {
			return err
		}
	}

	cases, err := collectCases(ctx, cfg, evalStore, provider, logger, pol, baseline)
	if err != nil {
		return err
	}
	if len(cases) == 0 {
		return cli.NewConfigError("", "no cases: provide --run, --last, or --brief")
	}

	opts := evals.Options{
		RegressionCheck: evalFlags.regressionCheck,
		PairwiseVotes:   evalFlags.pairwiseVotes,
	}
	if cmd.Flags().Changed("threshold") {
		opts.Threshold = &evalFlags.threshold
	}
	switch evalFlags.judgeMode {
	case "":
	case "on", "off":
		useJudge := evalFlags.judgeMode == "on"
		opts.UseJudge = &useJudge
	default:
		return cli.NewConfigError("judge", "must be on or off")
	}

	progress := cli.NoProgress()
	if cli.OutputFormat(evalFlags.output) != cli.FormatJSON && len(cases) > 1 {
		progress = cli.NewProgressReporter(cmd.ErrOrStderr())
	}
	progress.Start(len(cases))

	result := engine.RunSuite(ctx, cases, pol, opts)
	for _, c := range result.Cases {
		progress.Step(c.Name)
	}
	progress.Finish()

	if err := evalStore.AppendEval(result); err != nil {
		logger.Warn("could not append eval record", "error", err)
	}

	return printEval(cmd, result)
}

// collectCases builds the case list from the selected source: one stored
// run, the N most recent stored runs, or a fresh generation from input
// files. Every case carries the shared baseline when one was loaded.
func collectCases(ctx context.Context, cfg *config.Config, evalStore *store.Store, provider providers.Provider, logger *slog.Logger, pol policy.Policy, baseline *evals.Baseline) ([]evals.Case, error) {
	var cases []evals.Case

	switch {
	case evalFlags.runID != "":
		bundle, err := evalStore.LoadRun(evalFlags.runID)
		if err != nil {
			return nil, cli.NewCommandError("eval", err)
		}
		if bundle.Drafts == nil {
			return nil, cli.NewConfigError("run", fmt.Sprintf("run %s carries no drafts", evalFlags.runID))
		}
		cases = append(cases, evals.Case{
			Name:   evalFlags.runID,
			Inputs: bundle.Inputs,
			Drafts: bundle.Drafts,
		})

	case evalFlags.last > 0:
		entries, err := evalStore.ListRuns(evalFlags.last)
		if err != nil {
			return nil, cli.NewCommandError("eval", err)
		}
		for _, entry := range entries {
			bundle, err := evalStore.LoadRun(entry.RunID)
			if err != nil || bundle.Drafts == nil {
				logger.Warn("skipping run without drafts", "runId", entry.RunID)
				continue
			}
			cases = append(cases, evals.Case{
				Name:   entry.RunID,
				Inputs: bundle.Inputs,
				Drafts: bundle.Drafts,
			})
		}

	case evalFlags.briefPath != "":
		in, err := readInputs(evalFlags.briefPath, evalFlags.brandPath, evalFlags.denylistPath)
		if err != nil {
			return nil, err
		}
		orchestrator, err := buildOrchestrator(cfg, provider, nil, logger)
		if err != nil {
			return nil, err
		}
		st, err := orchestrator.Run(ctx, in, pol, pipeline.RunOptions{})
		if err != nil || st.Drafts == nil {
			return nil, cli.NewCommandError("eval", fmt.Errorf("could not generate drafts: %v", err))
		}
		cases = append(cases, evals.Case{
			Name:   st.Log.RunID,
			Inputs: in,
			Drafts: st.Drafts,
		})
	}

	for i := range cases {
		cases[i].Baseline = baseline
	}
	return cases, nil
}

// baselineFromRun loads a stored run and scores its drafts to produce the
// baseline the cases are gated against.
func baselineFromRun(ctx context.Context, evalStore *store.Store, engine *evals.Engine, pol policy.Policy, runID string) (*evals.Baseline, error) {
	bundle, err := evalStore.LoadRun(runID)
	if err != nil {
		return nil, cli.NewCommandError("eval", err)
	}
	if bundle.Drafts == nil {
		return nil, cli.NewConfigError("baseline-run", fmt.Sprintf("run %s carries no drafts", runID))
	}
	scored := engine.RunSuite(ctx, []evals.Case{{
		Name:   runID,
		Inputs: bundle.Inputs,
		Drafts: bundle.Drafts,
	}}, pol, evals.Options{})
	return &evals.Baseline{
		Score:  scored.AvgScore,
		Drafts: bundle.Drafts,
	}, nil
}

// printEval renders a suite result.
func printEval(cmd *cobra.Command, result evals.SuiteResult) error {
	out := cmd.OutOrStdout()
	if cli.OutputFormat(evalFlags.output) == cli.FormatJSON {
		return cli.NewFormatter(cli.FormatJSON).FormatTo(out, result)
	}

	for _, c := range result.Cases {
		fmt.Fprintf(out, "%s: overall %.2f (factuality %.2f, denylist %.2f, consistency %.2f, safety %.2f)\n",
			c.Name, c.Scores.Overall, c.Scores.Factuality, c.Scores.Denylist, c.Scores.Consistency, c.Scores.Safety)
		if c.Delta != nil {
			verdict := "FAIL"
			if c.GatePass != nil && *c.GatePass {
				verdict = "PASS"
			}
			fmt.Fprintf(out, "  baseline %.2f, delta %+.2f: %s\n", *c.BaselineScore, *c.Delta, verdict)
		}
		if c.Pairwise != nil {
			fmt.Fprintf(out, "  pairwise: %d/%d wins (%.0f%% win rate, confidence %.2f)\n",
				c.Pairwise.Wins, c.Pairwise.Votes, c.Pairwise.WinRate*100, c.Pairwise.AvgConfidence)
		}
	}
	fmt.Fprintf(out, "Average: %.2f\n", result.AvgScore)
	if evalFlags.regressionCheck {
		if result.GatePass {
			fmt.Fprintln(out, "Regression gate: PASS")
		} else {
			fmt.Fprintln(out, "Regression gate: FAIL")
			return cli.NewCommandError("eval", fmt.Errorf("regression gate failed"))
		}
	}
	return nil
}
