package main

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/kiranshivaraju/cabinprep/internal/backend"
	"github.com/kiranshivaraju/cabinprep/pkg/models"
	"github.com/spf13/cobra"
)

func newHealthCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check that the analysis backend is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closer, err := loadConfig()
			if err != nil {
				return err
			}
			defer closer.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			client := backend.NewHTTPClient(cfg.Backend.BaseURL, cfg.Backend.Timeout, cfg.Backend.UploadTimeout)
			if err := client.HealthCheck(ctx); err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "backend %s: DOWN\n", cfg.Backend.BaseURL)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "backend %s: OK\n", cfg.Backend.BaseURL)
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "probe timeout")
	return cmd
}

func newStatusCmd() *cobra.Command {
	var kind, id string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the backend status of one analysis job",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(models.JobKinds, models.JobKind(kind)) {
				return fmt.Errorf("unknown job kind %q", kind)
			}
			cfg, closer, err := loadConfig()
			if err != nil {
				return err
			}
			defer closer.Close()

			client := backend.NewHTTPClient(cfg.Backend.BaseURL, cfg.Backend.Timeout, cfg.Backend.UploadTimeout)
			status, err := client.GetAnalysisStatus(cmd.Context(), models.JobKind(kind), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n", kind, id, status)
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "job kind: stt, face or segment")
	cmd.Flags().StringVar(&id, "id", "", "backend job id")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
