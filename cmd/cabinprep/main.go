// Package main is the entrypoint for the cabinprep server and CLI.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/kiranshivaraju/cabinprep/internal/config"
	"github.com/kiranshivaraju/cabinprep/internal/logging"
	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "cabinprep",
		Short:         "cabinprep - cabin crew interview rehearsal",
		Long:          "cabinprep records interview answers, sends them for analysis and turns the results into a feedback report.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newRehearseCmd())
	cmd.AddCommand(newTargetsCmd())
	cmd.AddCommand(newHealthCmd())
	cmd.AddCommand(newStatusCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cabinprep %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

// loadConfig loads and validates configuration and installs the logger.
func loadConfig() (*config.Config, io.Closer, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, logging.Setup(cfg.Log), nil
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
