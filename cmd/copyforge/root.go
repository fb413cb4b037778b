package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "copyforge",
	Short: "Copyforge - brief-to-copy orchestration pipeline",
	Long: `Copyforge turns a structured marketing brief into reviewed multi-channel
copy (email, paid social, search ads).

Every draft passes a deterministic review: denylist screening, numeric
grounding against the brief, tone and formatting checks, and optional LLM
judgment. Failed reviews retry with accumulated feedback up to a budget;
runs can suspend for human approval and be resumed later.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
