// Package pipeline enhances stored articles: it finds references for an
// original, extracts them, has them rewritten and stores the derived article.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"articleforge/internal/core"
	"articleforge/internal/logger"
	"articleforge/internal/search"
)

// Config holds orchestrator settings
type Config struct {
	// ReferenceCount is how many references to look for
	ReferenceCount int
	// ExtractDelay is the pause between reference extractions
	ExtractDelay time.Duration
}

// DefaultConfig returns the production settings
func DefaultConfig() Config {
	return Config{
		ReferenceCount: 2,
		ExtractDelay:   time.Second,
	}
}

// Orchestrator runs the enhancement stages for a single article
type Orchestrator struct {
	store     ArticleStore
	finder    ReferenceFinder
	extractor PageExtractor
	synth     Synthesizer
	config    Config

	now  func() time.Time
	wait func(context.Context, time.Duration) error
}

// NewOrchestrator creates an Orchestrator. All collaborators are required.
func NewOrchestrator(store ArticleStore, finder ReferenceFinder, extractor PageExtractor, synth Synthesizer, config Config) *Orchestrator {
	if config.ReferenceCount <= 0 {
		config.ReferenceCount = DefaultConfig().ReferenceCount
	}
	return &Orchestrator{
		store:     store,
		finder:    finder,
		extractor: extractor,
		synth:     synth,
		config:    config,
		now:       time.Now,
		wait:      core.Wait,
	}
}

// run is the state threaded through the stages of one enhancement
type run struct {
	id         string
	original   *core.Article
	candidates []search.Candidate
	pages      []core.ExtractedPage
	result     *core.EnhancementResult
	derived    *core.Article
	created    *core.Article
}

type stage struct {
	name Stage
	fn   func(context.Context, *run) error
}

func (o *Orchestrator) stages() []stage {
	return []stage{
		{StageValidate, o.validateID},
		{StageFetch, o.fetchOriginal},
		{StageGuard, o.guard},
		{StageSearch, o.search},
		{StageExtract, o.extract},
		{StageSynthesize, o.synthesize},
		{StageBuild, o.build},
		{StagePersist, o.persist},
	}
}

// Enhance runs every stage for the article with the given id. It never
// returns an error: failures and skips are reported in the Outcome.
func (o *Orchestrator) Enhance(ctx context.Context, id string) Outcome {
	start := o.now()
	r := &run{id: id}
	outcome := Outcome{ArticleID: id}

	for _, st := range o.stages() {
		if err := st.fn(ctx, r); err != nil {
			outcome.Stage = st.name
			outcome.Duration = o.now().Sub(start)
			if r.original != nil {
				outcome.Title = r.original.Title
			}
			if errors.Is(err, core.ErrAlreadyEnhanced) {
				outcome.Status = StatusSkipped
				outcome.Err = err
				logger.Info("Skipping article", "article_id", id, "reason", err.Error())
				return outcome
			}
			outcome.Status = StatusFailed
			outcome.Err = &StageError{Stage: st.name, Err: err}
			logger.Error("Enhancement failed", err, "article_id", id, "stage", string(st.name))
			return outcome
		}
	}

	outcome.Status = StatusEnhanced
	outcome.NewArticleID = r.created.ID
	outcome.Title = r.created.Title
	outcome.References = r.created.References
	outcome.Duration = o.now().Sub(start)
	logger.Info("Article enhanced", "article_id", id, "enhanced_id", r.created.ID,
		"references", len(r.created.References), "duration", outcome.Duration.String())
	return outcome
}

func (o *Orchestrator) validateID(_ context.Context, r *run) error {
	if !core.IsValidID(r.id) {
		return core.ErrInvalidID
	}
	r.id = core.NormalizeID(r.id)
	return nil
}

func (o *Orchestrator) fetchOriginal(ctx context.Context, r *run) error {
	article, err := o.store.Get(ctx, r.id)
	if err != nil {
		return err
	}
	r.original = article
	logger.Info("Fetched article", "article_id", article.ID, "title", article.Title)
	return nil
}

func (o *Orchestrator) guard(_ context.Context, r *run) error {
	if r.original.IsEnhanced() {
		return core.ErrAlreadyEnhanced
	}
	return nil
}

func (o *Orchestrator) search(ctx context.Context, r *run) error {
	candidates, err := o.finder.Find(ctx, r.original.Title, o.config.ReferenceCount)
	if err != nil {
		return err
	}
	r.candidates = candidates
	logger.Info("Found reference candidates", "article_id", r.original.ID, "count", len(candidates))
	return nil
}

func (o *Orchestrator) extract(ctx context.Context, r *run) error {
	pages := make([]core.ExtractedPage, 0, len(r.candidates))
	for i, c := range r.candidates {
		if i > 0 {
			if err := o.wait(ctx, o.config.ExtractDelay); err != nil {
				return err
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		page, err := o.extractor.Extract(ctx, c.URL)
		if err != nil || page == nil {
			logger.Warn("Dropping reference", "url", c.URL, "error", fmt.Sprint(err))
			continue
		}
		pages = append(pages, *page)
	}
	r.pages = pages
	logger.Info("Extracted references", "article_id", r.original.ID, "extracted", len(pages), "candidates", len(r.candidates))
	return nil
}

func (o *Orchestrator) synthesize(ctx context.Context, r *run) error {
	result, err := o.synth.Synthesize(ctx, r.original, r.pages)
	if err != nil {
		return err
	}
	r.result = result
	return nil
}

func (o *Orchestrator) build(_ context.Context, r *run) error {
	orig := r.original
	slug := orig.Slug
	if slug == "" {
		slug = core.Slugify(orig.Title)
	}

	refs := make([]core.Reference, 0, len(r.pages))
	for _, p := range r.pages {
		refs = append(refs, p.Reference())
	}

	keywords := r.result.Meta.Keywords
	if keywords == nil {
		keywords = []string{}
	}

	published := o.now().UTC()
	parent := orig.ID
	r.derived = &core.Article{
		Title:       r.result.Title,
		Slug:        core.EnhancedSlug(slug),
		Author:      orig.Author,
		PublishDate: &published,
		Content:     r.result.Content,
		OriginalURL: orig.OriginalURL,
		ParentID:    &parent,
		Type:        core.ArticleTypeEnhanced,
		References:  refs,
		Meta:        core.Meta{Description: r.result.Meta.Description, Keywords: keywords},
	}
	return nil
}

func (o *Orchestrator) persist(ctx context.Context, r *run) error {
	created, err := o.store.Create(ctx, r.derived)
	if err != nil {
		return err
	}
	r.created = created
	return nil
}
