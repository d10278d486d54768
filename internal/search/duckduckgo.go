package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"articleforge/internal/core"
	"articleforge/internal/logger"
)

const duckDuckGoEndpoint = "https://html.duckduckgo.com/html/"

// DuckDuckGoProvider implements Provider by reading DuckDuckGo's HTML results page.
// It needs no credentials but is easily blocked, so it is only used when chosen explicitly.
type DuckDuckGoProvider struct {
	endpoint  string
	client    *http.Client
	userAgent string
	rateLimit time.Duration

	mu       sync.Mutex
	lastCall time.Time
}

// NewDuckDuckGoProvider creates a DuckDuckGo provider. An empty endpoint uses the public HTML endpoint.
func NewDuckDuckGoProvider(endpoint, userAgent string, timeout time.Duration) *DuckDuckGoProvider {
	if endpoint == "" {
		endpoint = duckDuckGoEndpoint
	}
	if userAgent == "" {
		userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &DuckDuckGoProvider{
		endpoint:  endpoint,
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		rateLimit: 2 * time.Second,
	}
}

// GetName returns the name of this provider
func (d *DuckDuckGoProvider) GetName() string {
	return "DuckDuckGo"
}

// Search performs one DuckDuckGo query
func (d *DuckDuckGoProvider) Search(ctx context.Context, query string, config Config) ([]Result, error) {
	if err := d.pace(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("kl", regionFor(config.Language))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: DuckDuckGo returned %d", ErrRateLimited, resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: DuckDuckGo returned %d", ErrProviderUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("search request failed with status: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, 5<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to parse search results: %w", err)
	}

	// the anomaly page replaces results with a challenge form
	if doc.Find(".anomaly-modal, #challenge-form").Length() > 0 {
		return nil, fmt.Errorf("%w: DuckDuckGo asked for a CAPTCHA", ErrRateLimited)
	}

	results := parseDuckDuckGo(doc, config.MaxResults)
	logger.Debug("DuckDuckGo search completed", "query", query, "results_found", len(results))
	return results, nil
}

// parseDuckDuckGo reads organic results, skipping ads
func parseDuckDuckGo(doc *goquery.Document, max int) []Result {
	if max <= 0 {
		max = googleMaxResults
	}

	var results []Result
	doc.Find(".result").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if el.HasClass("result--ad") {
			return true
		}
		link := el.Find("a.result__a").First()
		href, _ := link.Attr("href")
		finalURL := resolveRedirect(href)
		if finalURL == "" {
			return true
		}

		results = append(results, Result{
			URL:     finalURL,
			Title:   strings.Join(strings.Fields(link.Text()), " "),
			Snippet: strings.Join(strings.Fields(el.Find(".result__snippet").First().Text()), " "),
			Domain:  Hostname(finalURL),
			Source:  "DuckDuckGo",
			Rank:    len(results) + 1,
		})
		return len(results) < max
	})
	return results
}

// resolveRedirect unwraps links like //duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2F
func resolveRedirect(href string) string {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if strings.HasPrefix(parsed.Path, "/l/") {
		if target := parsed.Query().Get("uddg"); strings.HasPrefix(target, "http") {
			return target
		}
		return ""
	}
	if parsed.Scheme == "http" || parsed.Scheme == "https" {
		return href
	}
	return ""
}

func regionFor(language string) string {
	if language == "" || language == "en" {
		return "us-en"
	}
	return "wt-wt"
}

func (d *DuckDuckGoProvider) pace(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if elapsed := time.Since(d.lastCall); elapsed < d.rateLimit {
		if err := core.Wait(ctx, d.rateLimit-elapsed); err != nil {
			return err
		}
	}
	d.lastCall = time.Now()
	return nil
}
