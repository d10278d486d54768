// Package ingest imports the oldest posts of a blog as original articles
package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	"github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"

	"articleforge/internal/core"
	"articleforge/internal/fetch"
	"articleforge/internal/logger"
)

// DocumentLoader renders a URL into a parsed document with its Url set
type DocumentLoader interface {
	Document(ctx context.Context, url string) (*goquery.Document, error)
}

// ArticleCreator stores scraped articles
type ArticleCreator interface {
	Create(ctx context.Context, article *core.Article) (*core.Article, error)
}

// Config controls discovery and extraction
type Config struct {
	BlogURL string
	// FeedURL, when set, replaces listing-page discovery
	FeedURL       string
	DefaultAuthor string
	// Delay paces listing pages and article pages
	Delay time.Duration
	HTML  fetch.HTMLOptions
	// UserAgent is sent with feed requests
	UserAgent string
}

// DefaultConfig returns the settings for the BeyondChats blog
func DefaultConfig() Config {
	return Config{
		BlogURL:       "https://beyondchats.com/blogs/",
		DefaultAuthor: "BeyondChats Team",
		Delay:         1500 * time.Millisecond,
		HTML:          fetch.DefaultHTMLOptions(),
	}
}

// UntitledArticle is used when a page has no usable title
const UntitledArticle = "Untitled Article"

var (
	titleSelectors = []string{"h1.entry-title", "h1.post-title", "#content h1", "h1"}

	dateSelectors = []string{
		"time[datetime]",
		".post-date",
		".entry-date",
		".published",
		`meta[property="article:published_time"]`,
	}
)

// Status of one scraped article
type Status string

const (
	StatusSaved    Status = "saved"
	StatusExisting Status = "existing"
	StatusFailed   Status = "failed"
)

// Item is the result for one discovered URL
type Item struct {
	URL         string
	Title       string
	ID          string
	PublishDate *time.Time
	Status      Status
	Err         error
}

// Result summarizes a scrape run
type Result struct {
	Discovered int
	Saved      int
	Existing   int
	Failed     int
	Items      []Item
	Duration   time.Duration
}

// Scraper discovers, extracts and stores blog posts
type Scraper struct {
	loader DocumentLoader
	store  ArticleCreator
	feeds  *gofeed.Parser
	config Config

	wait func(context.Context, time.Duration) error
}

// NewScraper creates a Scraper
func NewScraper(loader DocumentLoader, store ArticleCreator, config Config) *Scraper {
	def := DefaultConfig()
	if config.BlogURL == "" && config.FeedURL == "" {
		config.BlogURL = def.BlogURL
	}
	if config.DefaultAuthor == "" {
		config.DefaultAuthor = def.DefaultAuthor
	}
	if len(config.HTML.Containers) == 0 {
		config.HTML = def.HTML
	}

	feeds := gofeed.NewParser()
	feeds.Client = &http.Client{Timeout: 30 * time.Second}
	if config.UserAgent != "" {
		feeds.UserAgent = config.UserAgent
	}

	return &Scraper{
		loader: loader,
		store:  store,
		feeds:  feeds,
		config: config,
		wait:   core.Wait,
	}
}

// Run imports up to count of the oldest posts. Articles that already exist
// are counted as Existing, not as failures. Only discovery errors are returned.
func (s *Scraper) Run(ctx context.Context, count int) (*Result, error) {
	start := time.Now()
	links, err := s.Discover(ctx, count)
	if err != nil {
		return nil, err
	}
	logger.Info("Found article links to scrape", "count", len(links))

	result := &Result{Discovered: len(links)}
	for i, link := range links {
		if i > 0 {
			if err := s.wait(ctx, s.config.Delay); err != nil {
				break
			}
		}

		item := s.importOne(ctx, link)
		switch item.Status {
		case StatusSaved:
			result.Saved++
		case StatusExisting:
			result.Existing++
		default:
			result.Failed++
		}
		result.Items = append(result.Items, item)
	}

	result.Duration = time.Since(start)
	logger.Info("Scraping complete", "saved", result.Saved, "existing", result.Existing, "failed", result.Failed)
	return result, nil
}

func (s *Scraper) importOne(ctx context.Context, link string) Item {
	item := Item{URL: link}

	article, err := s.ScrapeArticle(ctx, link)
	if err != nil {
		logger.Error("Failed to scrape article", err, "url", link)
		item.Status, item.Err = StatusFailed, err
		return item
	}
	item.Title = article.Title
	item.PublishDate = article.PublishDate

	saved, err := s.store.Create(ctx, article)
	switch {
	case errors.Is(err, core.ErrConflict):
		logger.Warn("Already exists", "title", article.Title, "slug", article.Slug)
		item.Status = StatusExisting
	case err != nil:
		logger.Error("Failed to save article", err, "title", article.Title)
		item.Status, item.Err = StatusFailed, err
	default:
		logger.Info("Saved article", "title", saved.Title, "id", saved.ID)
		item.Status, item.ID = StatusSaved, saved.ID
	}
	return item
}

// ScrapeArticle renders link and builds an original article from it
func (s *Scraper) ScrapeArticle(ctx context.Context, link string) (*core.Article, error) {
	doc, err := s.loader.Document(ctx, link)
	if err != nil {
		return nil, err
	}
	article := ParseArticle(doc, s.config)
	if article.Content == "" {
		return nil, fmt.Errorf("no article content found at %s", link)
	}
	return article, nil
}

// ParseArticle extracts an original article from a rendered blog post. doc is not modified.
func ParseArticle(doc *goquery.Document, config Config) *core.Article {
	link := ""
	if doc.Url != nil {
		link = doc.Url.String()
	}

	title := fetch.TitleFrom(doc, titleSelectors, UntitledArticle)
	slug := SlugFromURL(doc.Url)
	if slug == "" {
		slug = core.Slugify(title)
	}

	return &core.Article{
		Title:       title,
		Slug:        slug,
		Author:      author(doc, config.DefaultAuthor),
		PublishDate: publishDate(doc),
		Content:     fetch.SelectHTML(doc, doc.Url, config.HTML),
		OriginalURL: link,
		Type:        core.ArticleTypeOriginal,
	}
}

func author(doc *goquery.Document, fallback string) string {
	candidates := []string{
		doc.Find(".author-name").First().Text(),
		doc.Find(`meta[name="author"]`).AttrOr("content", ""),
		doc.Find(".post-author").First().Text(),
		doc.Find(`[rel="author"]`).First().Text(),
	}
	for _, c := range candidates {
		if c = strings.Join(strings.Fields(c), " "); c != "" {
			return c
		}
	}
	if byline := readabilityByline(doc); byline != "" {
		return byline
	}
	return fallback
}

func readabilityByline(doc *goquery.Document) string {
	markup, err := doc.Html()
	if err != nil {
		return ""
	}
	article, err := readability.FromReader(strings.NewReader(markup), doc.Url)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(article.Byline)
}

func publishDate(doc *goquery.Document) *time.Time {
	for _, sel := range dateSelectors {
		el := doc.Find(sel).First()
		if el.Length() == 0 {
			continue
		}
		raw := el.AttrOr("datetime", "")
		if raw == "" {
			raw = el.AttrOr("content", "")
		}
		if raw == "" {
			raw = el.Text()
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if t, err := dateparse.ParseAny(raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// SlugFromURL derives a slug from the last path segment of u
func SlugFromURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	p := strings.TrimRight(u.Path, "/")
	if p == "" {
		return ""
	}
	return core.Slugify(path.Base(p))
}
