package fetch

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"articleforge/internal/core"
	"articleforge/internal/logger"
)

// Extractor renders pages and extracts their main content
type Extractor struct {
	renderer Renderer
	cascade  *Cascade
}

// NewExtractor creates an extractor. A nil cascade uses the built-in one.
func NewExtractor(renderer Renderer, cascade *Cascade) *Extractor {
	if cascade == nil {
		cascade = MustDefaultCascade()
	}
	return &Extractor{renderer: renderer, cascade: cascade}
}

// Document renders rawURL and parses it. The document's Url is set so relative
// links can be resolved.
func (e *Extractor) Document(ctx context.Context, rawURL string) (*goquery.Document, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid URL %q", rawURL)
	}

	markup, err := e.renderer.Render(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML from %s: %w", rawURL, err)
	}
	doc.Url = u
	return doc, nil
}

// Extract renders rawURL and returns its title and plain-text main content.
// Errors are logged here; callers drop the page.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (*core.ExtractedPage, error) {
	logger.Info("Extracting page", "url", rawURL)

	doc, err := e.Document(ctx, rawURL)
	if err != nil {
		logger.Error("Failed to extract page", err, "url", rawURL)
		return nil, err
	}

	page := ExtractDocument(doc, e.cascade)
	logger.Debug("Page extracted", "url", rawURL, "title", page.Title, "chars", len(page.Content))
	return page, nil
}

// ExtractDocument runs the title and content cascades over an already parsed
// document. doc is modified.
func ExtractDocument(doc *goquery.Document, cascade *Cascade) *core.ExtractedPage {
	// title first: boilerplate removal drops headers that may hold the h1
	title := Title(doc)
	content, _ := cascade.Run(doc)

	page := &core.ExtractedPage{Title: title, Content: content}
	if doc.Url != nil {
		page.URL = doc.Url.String()
		page.Source = strings.TrimPrefix(doc.Url.Hostname(), "www.")
	}
	return page
}
