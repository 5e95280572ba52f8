package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kiranshivaraju/cabinprep/internal/config"
	"github.com/kiranshivaraju/cabinprep/internal/session"
	"github.com/kiranshivaraju/cabinprep/pkg/models"
	"github.com/spf13/cobra"
)

type rehearseOptions struct {
	target      string
	candidate   string
	file        string
	contentType string
	duration    time.Duration
	noSave      bool
	asJSON      bool
}

func newRehearseCmd() *cobra.Command {
	var opts rehearseOptions

	cmd := &cobra.Command{
		Use:   "rehearse",
		Short: "Run one interview session from a recorded answer",
		Long: "Starts a session for the target airline, treats --file as the recorded answer, " +
			"stops after --duration, waits for the feedback report and saves it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closer, err := loadConfig()
			if err != nil {
				return err
			}
			defer closer.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runRehearse(ctx, cmd.OutOrStdout(), cfg, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.target, "target", "t", "", "target airline (see `cabinprep targets`)")
	cmd.Flags().StringVarP(&opts.candidate, "candidate", "n", "", "candidate name")
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "path to the recorded answer")
	cmd.Flags().StringVar(&opts.contentType, "content-type", "", "media type of --file (default from SESSION_CONTENT_TYPE)")
	cmd.Flags().DurationVarP(&opts.duration, "duration", "d", 3*time.Second, "how long to record before stopping")
	cmd.Flags().BoolVar(&opts.noSave, "no-save", false, "do not save the report")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the report as JSON")
	_ = cmd.MarkFlagRequired("target")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runRehearse(ctx context.Context, out io.Writer, cfg *config.Config, opts rehearseOptions) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	contentType := opts.contentType
	if contentType == "" {
		contentType = cfg.Session.ContentType
	}

	var failures []session.Event
	orch, err := a.newOrchestrator(session.NewFileRecorder(opts.file, contentType), func(e session.Event) {
		failures = append(failures, e)
	})
	if err != nil {
		return fmt.Errorf("create orchestrator: %w", err)
	}
	defer orch.Close()

	snap, err := orch.Start(ctx, opts.target, opts.candidate)
	if err != nil {
		if errors.Is(err, session.ErrDeviceUnavailable) {
			return fmt.Errorf("cannot read recording %s: %w", opts.file, err)
		}
		return err
	}
	fmt.Fprintf(out, "Target:   %s\nQuestion: %s\n", snap.Target, snap.Question)

	select {
	case <-time.After(opts.duration):
	case <-ctx.Done():
		orch.Abandon()
		return ctx.Err()
	}

	snap, err = orch.Stop(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Recorded %s, analyzing...\n", session.FormatElapsed(snap.ElapsedSeconds))

	// Polling is bounded by POLL_TIMEOUT; allow time for upload and aggregation on top.
	wait := cfg.Poll.Timeout + cfg.Backend.UploadTimeout + cfg.Backend.Timeout
	select {
	case <-orch.Done():
	case <-time.After(wait):
		orch.Abandon()
		return fmt.Errorf("no report after %s", wait)
	case <-ctx.Done():
		orch.Abandon()
		return ctx.Err()
	}

	snap = orch.Snapshot()
	if snap.Report == nil {
		return errors.New("session ended without a report")
	}
	for _, e := range failures {
		fmt.Fprintf(out, "note: %s during %s, showing estimated feedback\n", e.Kind, e.Stage)
	}

	report := snap.Report
	if !opts.noSave {
		saved, err := orch.Save(ctx)
		if err != nil {
			return fmt.Errorf("save report: %w", err)
		}
		report = saved
	}

	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	printReport(out, report)
	return nil
}

func printReport(out io.Writer, r *models.FeedbackReport) {
	fmt.Fprintf(out, "\n%s / %s (%s)\n", r.Target, r.Position, r.Version)
	if r.Candidate != "" {
		fmt.Fprintf(out, "Candidate: %s\n", r.Candidate)
	}
	fmt.Fprintf(out, "Score: %d  Grade: %s\n", r.TotalScore, r.Grade)
	fmt.Fprintf(out, "%s\n\n", r.OverallEvaluation)

	fmt.Fprintf(out, "  %-16s %3d  %s\n", "Voice accuracy", r.Scores.VoiceAccuracy, r.Details.VoiceAccuracy)
	fmt.Fprintf(out, "  %-16s %3d  %s\n", "Expression", r.Scores.Expression, r.Details.Expression)
	fmt.Fprintf(out, "  %-16s %3d  %s\n", "Speech pattern", r.Scores.SpeechPattern, r.Details.SpeechPattern)
	fmt.Fprintf(out, "  %-16s %3d  %s\n", "Answer quality", r.Scores.AnswerQuality, r.Details.AnswerQuality)

	printList(out, "Improvements", r.Improvements)
	printList(out, "Recommended actions", r.RecommendedActions)
	if r.Synthetic {
		fmt.Fprintln(out, "\n(estimated: analysis was unavailable)")
	}
}

func printList(out io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(out, "\n%s:\n", title)
	for _, it := range items {
		fmt.Fprintf(out, "  - %s\n", strings.TrimSpace(it))
	}
}
