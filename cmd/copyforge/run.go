package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"briefline/copyforge/pkg/brief"
	"briefline/copyforge/pkg/cli"
	"briefline/copyforge/pkg/pipeline"
)

var runFlags struct {
	briefPath    string
	brandPath    string
	denylistPath string
	policyPath   string
	storeRoot    string
	runID        string
	output       string
	showDrafts   bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline against a brief",
	Long: `Run the pipeline against a brief and persist the resulting bundle.

The brief file is required; brand guide and denylist files are optional.
The run stops on a guardrail block, exhausts its retry budget on repeated
review failures, or suspends for approval when the policy enables HITL.

Examples:
  # Generate copy from a brief
  copyforge run --brief brief.txt

  # With brand guide, denylist, and a specific policy
  copyforge run --brief brief.txt --brand brand.txt --denylist denylist.txt --policy policy.yaml

  # Machine-readable output
  copyforge run --brief brief.txt --output json`,
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runFlags.briefPath, "brief", "", "brief file path (required)")
	runCmd.Flags().StringVar(&runFlags.brandPath, "brand", "", "brand guide file path")
	runCmd.Flags().StringVar(&runFlags.denylistPath, "denylist", "", "denylist file path")
	runCmd.Flags().StringVar(&runFlags.policyPath, "policy", "", "policy file path (overrides config)")
	runCmd.Flags().StringVar(&runFlags.storeRoot, "store", "", "storage root (overrides config)")
	runCmd.Flags().StringVar(&runFlags.runID, "run-id", "", "override the generated run id")
	runCmd.Flags().StringVarP(&runFlags.output, "output", "o", "text", "output format (text, json)")
	runCmd.Flags().BoolVar(&runFlags.showDrafts, "drafts", true, "print the generated drafts")
	_ = runCmd.MarkFlagRequired("brief")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd.Flags().Changed("config"))
	if err != nil {
		return err
	}
	logger, err := setupLogging(cfg)
	if err != nil {
		return err
	}

	in, err := readInputs(runFlags.briefPath, runFlags.brandPath, runFlags.denylistPath)
	if err != nil {
		return err
	}
	pol, err := resolvePolicy(runFlags.policyPath, cfg)
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
	orchestrator, err := buildOrchestrator(cfg, provider, nil, logger)
	if err != nil {
		return err
	}
	runStore, err := openStore(cfg, runFlags.storeRoot, logger)
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	ctx, stop := cli.SignalContext()
	defer stop()

	st, runErr := orchestrator.Run(ctx, in, pol, pipeline.RunOptions{RunID: runFlags.runID})
	if st != nil && st.Log != nil {
		if err := runStore.SaveOutcome(st); err != nil {
			logger.Error("could not persist run", "runId", st.Log.RunID, "error", err)
		}
	}
	if runErr != nil {
		return cli.NewCommandError("run", runErr)
	}

	return printRun(cmd, st)
}

// readInputs loads and normalizes the three input files. Only the brief
// is required.
func readInputs(briefPath, brandPath, denylistPath string) (brief.Inputs, error) {
	briefText, err := os.ReadFile(briefPath)
	if err != nil {
		return brief.Inputs{}, &cli.InputFileError{Path: briefPath, Err: err}
	}
	var brandText, denyText []byte
	if brandPath != "" {
		if brandText, err = os.ReadFile(brandPath); err != nil {
			return brief.Inputs{}, &cli.InputFileError{Path: brandPath, Err: err}
		}
	}
	if denylistPath != "" {
		if denyText, err = os.ReadFile(denylistPath); err != nil {
			return brief.Inputs{}, &cli.InputFileError{Path: denylistPath, Err: err}
		}
	}
	return brief.ParseInputs(string(briefText), string(brandText), string(denyText)), nil
}

// printRun renders the terminal state in the requested format.
func printRun(cmd *cobra.Command, st *pipeline.State) error {
	out := cmd.OutOrStdout()

	if cli.OutputFormat(runFlags.output) == cli.FormatJSON {
		return cli.NewFormatter(cli.FormatJSON).FormatTo(out, st)
	}

	fmt.Fprintf(out, "Run:    %s\n", st.Log.RunID)
	fmt.Fprintf(out, "Status: %s", st.Log.Status)
	if st.Log.StopReason != "" {
		fmt.Fprintf(out, " (%s)", st.Log.StopReason)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Trace:  %s\n", strings.Join(st.Trace, " -> "))
	fmt.Fprintf(out, "Retries: %d\n", st.FailedReviews())

	if st.Report != nil {
		fmt.Fprintf(out, "Score:  %.2f (pass=%v)\n", st.Report.OverallScore, st.Report.Pass)
	}
	if last, ok := st.LastReview(); ok && len(last.Issues) > 0 {
		fmt.Fprintln(out, "Issues:")
		for _, issue := range last.Issues {
			fmt.Fprintf(out, "  - [%s/%s] %s\n", issue.Channel, issue.Type, issue.Message)
		}
	}

	if runFlags.showDrafts && st.Drafts != nil {
		for _, channel := range []string{"email", "paid_social", "search_ads"} {
			draft, ok := st.Drafts[channel]
			if !ok {
				continue
			}
			fmt.Fprintf(out, "\n--- %s ---\n%s\n", channel, draft)
		}
	}
	return nil
}
