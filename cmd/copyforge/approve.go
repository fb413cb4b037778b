package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"briefline/copyforge/pkg/cli"
	"briefline/copyforge/pkg/pipeline"
	"briefline/copyforge/pkg/review"
	"briefline/copyforge/pkg/store"
)

var approveFlags struct {
	storeRoot string
	list      bool
	output    string
}

var rejectFlags struct {
	storeRoot string
	feedback  string
	output    string
}

var approveCmd = &cobra.Command{
	Use:   "approve [run-id]",
	Short: "Approve a suspended run and resume it",
	Long: `Approve a run suspended for human review. The run resumes at the
analysis stage and completes.

Examples:
  # List runs awaiting approval
  copyforge approve --list

  # Approve a run
  copyforge approve 2f1c...`,
	Args: cobra.MaximumNArgs(1),
	RunE: runApprove,
}

var rejectCmd = &cobra.Command{
	Use:   "reject <run-id>",
	Short: "Reject a suspended run",
	Long: `Reject a run suspended for human review.

Without feedback the run ends as stopped. With --feedback the text is
injected as a failing review and the run re-plans, so the next drafts
must address it.

Examples:
  # Reject outright
  copyforge reject 2f1c...

  # Reject with guidance for the rewrite
  copyforge reject 2f1c... --feedback "lead with the proof point"`,
	Args: cobra.ExactArgs(1),
	RunE: runReject,
}

func init() {
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(rejectCmd)

	approveCmd.Flags().StringVar(&approveFlags.storeRoot, "store", "", "storage root (overrides config)")
	approveCmd.Flags().BoolVar(&approveFlags.list, "list", false, "list runs awaiting approval")
	approveCmd.Flags().StringVarP(&approveFlags.output, "output", "o", "text", "output format (text, json)")

	rejectCmd.Flags().StringVar(&rejectFlags.storeRoot, "store", "", "storage root (overrides config)")
	rejectCmd.Flags().StringVar(&rejectFlags.feedback, "feedback", "", "guidance injected into the retry")
	rejectCmd.Flags().StringVarP(&rejectFlags.output, "output", "o", "text", "output format (text, json)")
}

func runApprove(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd.Flags().Changed("config"))
	if err != nil {
		return err
	}
	logger, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	pausedStore, err := openStore(cfg, approveFlags.storeRoot, logger)
	if err != nil {
		return cli.NewCommandError("approve", err)
	}

	if approveFlags.list {
		ids, err := pausedStore.ListPaused()
		if err != nil {
			return cli.NewCommandError("approve", err)
		}
		if len(ids) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs awaiting approval.")
			return nil
		}
		for _, id := range ids {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	}
	if len(args) == 0 {
		return cli.NewConfigError("", "run id required (or --list)")
	}
	runID := args[0]

	paused, err := pausedStore.LoadPaused(runID)
	if err != nil {
		return cli.NewCommandError("approve", err)
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

	ctx, stop := cli.SignalContext()
	defer stop()

	st := paused.Bundle.State()
	st.Log.Logf("human approved run")
	st, runErr := orchestrator.Run(ctx, st.Inputs, st.Policy, pipeline.RunOptions{
		Resume:    st,
		StartNode: "analyze",
	})
	if persistErr := pausedStore.SaveOutcome(st); persistErr != nil {
		logger.Error("could not persist run", "runId", runID, "error", persistErr)
	}
	if runErr != nil {
		return cli.NewCommandError("approve", runErr)
	}

	return printDecision(cmd, approveFlags.output, st)
}

func runReject(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd.Flags().Changed("config"))
	if err != nil {
		return err
	}
	logger, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	pausedStore, err := openStore(cfg, rejectFlags.storeRoot, logger)
	if err != nil {
		return cli.NewCommandError("reject", err)
	}

	runID := args[0]
	paused, err := pausedStore.LoadPaused(runID)
	if err != nil {
		return cli.NewCommandError("reject", err)
	}
	st := paused.Bundle.State()

	if rejectFlags.feedback == "" {
		st.Log.Logf("human rejected run")
		st.Log.Finish(pipeline.StatusStopped, pipeline.StopHumanRejected)
		if err := pausedStore.SaveOutcome(st); err != nil {
			return cli.NewCommandError("reject", err)
		}
		return printDecision(cmd, rejectFlags.output, st)
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

	ctx, stop := cli.SignalContext()
	defer stop()

	rejection := review.Result{
		Issues: []review.Issue{{Type: review.IssueLLM, Message: rejectFlags.feedback}},
	}
	st.Reviews = append(st.Reviews, rejection)
	st.Log.Reviews = append(st.Log.Reviews, rejection)
	st.Log.Logf("human rejected run with feedback: %s", rejectFlags.feedback)

	st, runErr := orchestrator.Run(ctx, st.Inputs, st.Policy, pipeline.RunOptions{
		Resume:    st,
		StartNode: "plan",
	})
	if persistErr := pausedStore.SaveOutcome(st); persistErr != nil {
		logger.Error("could not persist run", "runId", runID, "error", persistErr)
	}
	if runErr != nil {
		return cli.NewCommandError("reject", runErr)
	}

	return printDecision(cmd, rejectFlags.output, st)
}

// printDecision renders the state a decision left the run in.
func printDecision(cmd *cobra.Command, format string, st *pipeline.State) error {
	out := cmd.OutOrStdout()
	if cli.OutputFormat(format) == cli.FormatJSON {
		return cli.NewFormatter(cli.FormatJSON).FormatTo(out, store.BundleFromState(st))
	}
	fmt.Fprintf(out, "Run %s: %s", st.Log.RunID, st.Log.Status)
	if st.Log.StopReason != "" {
		fmt.Fprintf(out, " (%s)", st.Log.StopReason)
	}
	fmt.Fprintln(out)
	return nil
}
