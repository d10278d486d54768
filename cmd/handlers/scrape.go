package handlers

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"articleforge/internal/config"
	"articleforge/internal/fetch"
	"articleforge/internal/ingest"
	"articleforge/internal/render"
)

// NewScrapeCmd creates the scrape command that imports blog posts
func NewScrapeCmd() *cobra.Command {
	var (
		count   int
		blogURL string
		feedURL string
	)

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Import the oldest posts of the blog as original articles",
		Long: `Discover the oldest posts of the blog and store them as original articles.

Posts are found by walking the blog listing from its last page, or from an
RSS or Atom feed when --feed-url is given. Posts that are already stored are
reported as existing and left unchanged.

Examples:
  articleforge scrape
  articleforge scrape --count 10
  articleforge scrape --feed-url https://example.com/blog/feed/`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return runScrape(ctx, cmd, count, blogURL, feedURL)
		},
	}

	cmd.Flags().IntVar(&count, "count", 0, "number of posts to import (default from config: 5)")
	cmd.Flags().StringVar(&blogURL, "blog-url", "", "blog listing URL (default from config)")
	cmd.Flags().StringVar(&feedURL, "feed-url", "", "discover posts from this feed instead of the listing")

	return cmd
}

func runScrape(ctx context.Context, cmd *cobra.Command, count int, blogURL, feedURL string) error {
	cfg := config.Get()

	ingestCfg := ingest.Config{
		BlogURL:       cfg.Ingest.BlogURL,
		FeedURL:       cfg.Ingest.FeedURL,
		DefaultAuthor: cfg.Ingest.DefaultAuthor,
		Delay:         config.Duration(cfg.Ingest.Delay),
		HTML:          fetch.DefaultHTMLOptions(),
		UserAgent:     cfg.Extraction.UserAgent,
	}
	if blogURL != "" {
		ingestCfg.BlogURL = blogURL
	}
	if feedURL != "" {
		ingestCfg.FeedURL = feedURL
	}
	if count <= 0 {
		count = cfg.Ingest.Count
	}

	d, err := newDeps(cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	cascade, err := newCascade(cfg.Extraction)
	if err != nil {
		return err
	}

	scraper := ingest.NewScraper(fetch.NewExtractor(d.renderer, cascade), d.store, ingestCfg)
	result, err := scraper.Run(ctx, count)
	if err != nil {
		return describeError(cfg, fmt.Errorf("scrape failed: %w", err))
	}

	fmt.Fprintln(cmd.OutOrStdout(), render.Scrape(result))
	return nil
}
