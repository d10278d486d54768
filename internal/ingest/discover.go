package ingest

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"articleforge/internal/fetch"
	"articleforge/internal/logger"
)

var (
	paginationSelectors = []string{
		".pagination a",
		".page-numbers",
		`nav[aria-label*="pagination"] a`,
		".wp-pagenavi a",
		".nav-links a",
	}

	linkSelectors = []string{
		`article a[href*="/blog"]`,
		`.post a[href*="/blog"]`,
		".blog-post a",
		".entry-title a",
		`h2 a[href*="beyondchats"]`,
		".post-title a",
		"a.post-link",
		".blog-item a",
		".article-card a",
		`a[href*="/blogs/"]`,
	}

	excludedLinkPatterns = []string{"/page/", "/category/", "/tag/", "/author/", "/search/"}
)

// Discover returns up to count article URLs, oldest first
func (s *Scraper) Discover(ctx context.Context, count int) ([]string, error) {
	if count <= 0 {
		return []string{}, nil
	}
	if s.config.FeedURL != "" {
		return s.discoverFeed(ctx, count)
	}
	return s.discoverListing(ctx, count)
}

// discoverFeed takes the oldest items of the configured RSS or Atom feed
func (s *Scraper) discoverFeed(ctx context.Context, count int) ([]string, error) {
	logger.Info("Reading blog feed", "url", s.config.FeedURL)

	feed, err := s.feeds.ParseURLWithContext(s.config.FeedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	items := make([]*gofeed.Item, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item != nil && item.Link != "" {
			items = append(items, item)
		}
	}
	// undated items keep their feed order after the dated ones
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].PublishedParsed, items[j].PublishedParsed
		if a == nil || b == nil {
			return a != nil && b == nil
		}
		return a.Before(*b)
	})

	links := make([]string, 0, len(items))
	for _, item := range items {
		links = append(links, item.Link)
	}
	return firstUnique(links, count), nil
}

// discoverListing walks the blog's paginated listing from the last page back
func (s *Scraper) discoverListing(ctx context.Context, count int) ([]string, error) {
	blogURL := s.config.BlogURL
	if !strings.HasSuffix(blogURL, "/") {
		blogURL += "/"
	}
	logger.Info("Reading blog listing", "url", blogURL)

	first, err := s.loader.Document(ctx, blogURL)
	if err != nil {
		return nil, fmt.Errorf("failed to load blog listing: %w", err)
	}
	total := totalPages(first)
	logger.Info("Found listing pages", "pages", total)

	var links []string
	for page := total; page >= 1 && len(links) < count; page-- {
		doc := first
		if page != 1 {
			if err := s.wait(ctx, s.config.Delay); err != nil {
				return nil, err
			}
			doc, err = s.loader.Document(ctx, blogURL+"page/"+strconv.Itoa(page)+"/")
			if err != nil {
				logger.Warn("Skipping listing page", "page", page, "error", err.Error())
				continue
			}
		}

		found := articleLinks(doc)
		logger.Debug("Listing page links", "page", page, "count", len(found))
		if page == total {
			for i, j := 0, len(found)-1; i < j; i, j = i+1, j-1 {
				found[i], found[j] = found[j], found[i]
			}
		}
		links = append(links, found...)
	}

	return firstUnique(links, count), nil
}

// totalPages is the highest page number shown in the listing's pagination
func totalPages(doc *goquery.Document) int {
	max := 1
	for _, sel := range paginationSelectors {
		doc.Find(sel).Each(func(_ int, el *goquery.Selection) {
			if n, err := strconv.Atoi(strings.TrimSpace(el.Text())); err == nil && n > max {
				max = n
			}
		})
	}
	return max
}

// articleLinks collects absolute article URLs in document order
func articleLinks(doc *goquery.Document) []string {
	var links []string
	seen := map[string]bool{}
	for _, sel := range linkSelectors {
		doc.Find(sel).Each(func(_ int, a *goquery.Selection) {
			href, ok := a.Attr("href")
			if !ok || href == "" || excludedLink(href) {
				return
			}
			abs := fetch.AbsoluteURL(doc.Url, href)
			if !seen[abs] {
				seen[abs] = true
				links = append(links, abs)
			}
		})
	}
	return links
}

func excludedLink(href string) bool {
	for _, p := range excludedLinkPatterns {
		if strings.Contains(href, p) {
			return true
		}
	}
	return false
}

func firstUnique(links []string, n int) []string {
	out := make([]string, 0, n)
	seen := map[string]bool{}
	for _, l := range links {
		if seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
		if len(out) == n {
			break
		}
	}
	return out
}
