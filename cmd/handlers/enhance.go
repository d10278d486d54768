package handlers

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"articleforge/internal/config"
	"articleforge/internal/core"
	"articleforge/internal/logger"
	"articleforge/internal/pipeline"
	"articleforge/internal/render"
)

// NewEnhanceCmd creates the enhance command for a single article
func NewEnhanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enhance <article-id>",
		Short: "Enhance one original article",
		Long: `Search for two reference articles on the same topic, extract them and store
an enhanced rewrite of the given original.

Articles that already have an enhanced version are skipped. The command exits
with a non-zero status when the enhancement fails.

Examples:
  articleforge enhance 65a1b2c3d4e5f6a7b8c9d0e1
  articleforge enhance 65a1b2c3d4e5f6a7b8c9d0e1 --store database`,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.ExactArgs(1)(cmd, args); err != nil {
				return err
			}
			if !core.IsValidID(core.NormalizeID(args[0])) {
				return fmt.Errorf("%w: %q is not 24 hexadecimal characters", core.ErrInvalidID, args[0])
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return runEnhance(ctx, cmd, core.NormalizeID(args[0]))
		},
	}
}

func runEnhance(ctx context.Context, cmd *cobra.Command, id string) error {
	cfg := config.Get()

	d, err := newDeps(cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	orch, err := newOrchestrator(ctx, cfg, d.store, d.renderer)
	if err != nil {
		return err
	}

	outcome := pipeline.EnhanceOnce(ctx, d.store, orch, id)
	fmt.Fprintln(cmd.OutOrStdout(), render.Outcome(outcome))

	if outcome.Status == pipeline.StatusFailed {
		return describeError(cfg, outcome.Err)
	}
	return nil
}

// NewEnhanceAllCmd creates the batch enhancement command
func NewEnhanceAllCmd() *cobra.Command {
	var (
		delay     time.Duration
		limit     int
		reportDir string
	)

	cmd := &cobra.Command{
		Use:   "enhance-all",
		Short: "Enhance every original article that has no enhanced version",
		Long: `List the original articles and enhance each one that has not been enhanced yet.

Articles are processed one at a time with a pause between them. A failure
only affects its own article. Ctrl+C stops the run before the next article.

Examples:
  articleforge enhance-all
  articleforge enhance-all --delay 10s --limit 20
  articleforge enhance-all --report-dir reports`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return runEnhanceAll(ctx, cmd, delay, limit, reportDir)
		},
	}

	cmd.Flags().DurationVar(&delay, "delay", 0, "pause between articles (default from config: 5s)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of originals to list (default from config: 100)")
	cmd.Flags().StringVar(&reportDir, "report-dir", "", "also write a markdown report into this directory")

	return cmd
}

func runEnhanceAll(ctx context.Context, cmd *cobra.Command, delay time.Duration, limit int, reportDir string) error {
	cfg := config.Get()

	d, err := newDeps(cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	orch, err := newOrchestrator(ctx, cfg, d.store, d.renderer)
	if err != nil {
		return err
	}

	batchCfg := pipeline.BatchConfig{
		ItemDelay: config.Duration(cfg.Pipeline.ItemDelay),
		Limit:     cfg.Pipeline.BatchLimit,
	}
	if delay > 0 {
		batchCfg.ItemDelay = delay
	}
	if limit > 0 {
		batchCfg.Limit = limit
	}

	report, err := pipeline.NewBatchRunner(d.store, orch, batchCfg).Run(ctx)
	if err != nil {
		return describeError(cfg, err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), render.Batch(report))

	if reportDir != "" {
		path, err := render.WriteReport(report, reportDir)
		if err != nil {
			return err
		}
		logger.Info("Report written", "path", path)
	}
	return nil
}

// signalContext is canceled on SIGINT or SIGTERM
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
