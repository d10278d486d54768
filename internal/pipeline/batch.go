package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"articleforge/internal/core"
	"articleforge/internal/logger"
)

// BatchConfig holds batch settings
type BatchConfig struct {
	// ItemDelay is the pause between two enhancements, never before the first
	ItemDelay time.Duration
	// Limit caps how many originals are listed
	Limit int
}

// DefaultBatchConfig returns the production settings
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		ItemDelay: 5 * time.Second,
		Limit:     core.MaxPageLimit,
	}
}

// ItemResult is the outcome for one article of a batch
type ItemResult struct {
	ArticleID string
	Title     string
	Outcome   Outcome
}

// Report aggregates a batch run
type Report struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration
	// Total is the number of originals listed
	Total     int
	Attempted int
	Succeeded int
	Failed    int
	// Skipped counts originals that already had an enhanced version
	Skipped int
	// Canceled is set when the run stopped before every pending item was attempted
	Canceled bool
	Items    []ItemResult
}

// BatchRunner enhances every original that has no enhanced version yet
type BatchRunner struct {
	store    ArticleStore
	enhancer Enhancer
	config   BatchConfig

	now  func() time.Time
	wait func(context.Context, time.Duration) error
}

// NewBatchRunner creates a BatchRunner
func NewBatchRunner(store ArticleStore, enhancer Enhancer, config BatchConfig) *BatchRunner {
	if config.Limit <= 0 {
		config.Limit = DefaultBatchConfig().Limit
	}
	return &BatchRunner{
		store:    store,
		enhancer: enhancer,
		config:   config,
		now:      time.Now,
		wait:     core.Wait,
	}
}

// Run processes the batch sequentially. Only a failure to list originals is
// returned as an error; item failures are recorded in the Report. Cancelling
// ctx stops the run between items.
func (b *BatchRunner) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		StartedAt: b.now(),
	}
	defer func() { report.Duration = b.now().Sub(report.StartedAt) }()

	originals, err := b.store.List(ctx, core.ListFilter{Type: core.ArticleTypeOriginal, Limit: b.config.Limit})
	if err != nil {
		return nil, fmt.Errorf("failed to list original articles: %w", err)
	}
	report.Total = len(originals)
	logger.Info("Starting batch enhancement", "run_id", report.RunID, "originals", len(originals))

	pending := b.pending(ctx, originals, report)
	logger.Info("Articles pending enhancement", "run_id", report.RunID, "pending", len(pending), "skipped", report.Skipped)

	for i, article := range pending {
		if i > 0 {
			if err := b.wait(ctx, b.config.ItemDelay); err != nil {
				report.Canceled = true
				break
			}
		}
		if ctx.Err() != nil {
			report.Canceled = true
			break
		}

		logger.Info("Processing article", "run_id", report.RunID, "index", i+1, "of", len(pending), "article_id", article.ID)
		outcome := b.enhanceSafely(ctx, article.ID)

		report.Attempted++
		if outcome.Succeeded() {
			report.Succeeded++
		} else if outcome.Status == StatusSkipped {
			report.Skipped++
		} else {
			report.Failed++
		}
		report.Items = append(report.Items, ItemResult{ArticleID: article.ID, Title: article.Title, Outcome: outcome})
	}

	if report.Canceled {
		logger.Warn("Batch enhancement canceled", "run_id", report.RunID, "attempted", report.Attempted, "pending", len(pending))
	}
	logger.Info("Batch enhancement complete", "run_id", report.RunID,
		"succeeded", report.Succeeded, "failed", report.Failed, "skipped", report.Skipped)
	return report, nil
}

// pending drops originals that already have an enhanced version. A failed
// lookup is treated as "not enhanced yet".
func (b *BatchRunner) pending(ctx context.Context, originals []core.Article, report *Report) []core.Article {
	pending := make([]core.Article, 0, len(originals))
	for _, article := range originals {
		existing, err := b.store.EnhancedVersion(ctx, article.ID)
		if err != nil {
			logger.Warn("Could not check for enhanced version", "article_id", article.ID, "error", err.Error())
		}
		if err == nil && existing != nil {
			report.Skipped++
			report.Items = append(report.Items, ItemResult{
				ArticleID: article.ID,
				Title:     article.Title,
				Outcome:   alreadyEnhanced(article.ID, article.Title, existing),
			})
			continue
		}
		pending = append(pending, article)
	}
	return pending
}

// enhanceSafely converts a panic in one item into a failed outcome
func (b *BatchRunner) enhanceSafely(ctx context.Context, id string) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			logger.Error("Recovered from panic during enhancement", err, "article_id", id)
			outcome = Outcome{Status: StatusFailed, ArticleID: id, Err: err}
		}
	}()
	return b.enhancer.Enhance(ctx, id)
}

func alreadyEnhanced(id, title string, existing *core.Article) Outcome {
	return Outcome{
		Status:       StatusSkipped,
		ArticleID:    id,
		NewArticleID: existing.ID,
		Title:        title,
		Stage:        StageGuard,
		Err:          core.ErrAlreadyEnhanced,
	}
}

// EnhanceOnce enhances id unless it already has an enhanced version. A failed
// lookup falls through to the enhancer, which reports its own errors.
func EnhanceOnce(ctx context.Context, store ArticleStore, enhancer Enhancer, id string) Outcome {
	existing, err := store.EnhancedVersion(ctx, id)
	if err == nil && existing != nil {
		logger.Info("Article already has an enhanced version", "article_id", id, "enhanced_id", existing.ID)
		return alreadyEnhanced(id, "", existing)
	}
	return enhancer.Enhance(ctx, id)
}
