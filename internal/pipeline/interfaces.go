package pipeline

import (
	"context"

	"articleforge/internal/core"
	"articleforge/internal/search"
)

// ArticleStore is the content repository the pipeline reads originals from
// and writes enhanced articles to
type ArticleStore interface {
	// Get returns the article or core.ErrNotFound
	Get(ctx context.Context, id string) (*core.Article, error)

	// List returns one page of articles matching the filter
	List(ctx context.Context, filter core.ListFilter) ([]core.Article, error)

	// Create stores a new article and returns it with its assigned ID.
	// Duplicates fail with core.ErrConflict
	Create(ctx context.Context, article *core.Article) (*core.Article, error)

	// EnhancedVersion returns the enhanced child of originalID, or nil when none exists
	EnhancedVersion(ctx context.Context, originalID string) (*core.Article, error)
}

// ReferenceFinder finds external articles on the same topic as a title
type ReferenceFinder interface {
	Find(ctx context.Context, title string, n int) ([]search.Candidate, error)
}

// PageExtractor turns a URL into a plain-text digest. Errors mean the page
// should be dropped, not that the pipeline failed.
type PageExtractor interface {
	Extract(ctx context.Context, url string) (*core.ExtractedPage, error)
}

// Synthesizer rewrites an article using extracted references
type Synthesizer interface {
	Synthesize(ctx context.Context, article *core.Article, refs []core.ExtractedPage) (*core.EnhancementResult, error)
}

// Enhancer runs the enhancement of one article
type Enhancer interface {
	Enhance(ctx context.Context, id string) Outcome
}
