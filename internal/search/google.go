package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"articleforge/internal/logger"
)

// Google CSE returns at most 10 results per request
const googleMaxResults = 10

// GoogleProvider implements Provider using the Google Custom Search JSON API
type GoogleProvider struct {
	service  *customsearch.Service
	searchID string
	timeout  time.Duration
}

// NewGoogleProvider creates a Custom Search provider. Extra client options are
// appended after the API key, which lets tests point the client at a local endpoint.
func NewGoogleProvider(ctx context.Context, apiKey, searchID string, timeout time.Duration, opts ...option.ClientOption) (*GoogleProvider, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if searchID == "" {
		return nil, ErrMissingSearchID
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	clientOpts := append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := customsearch.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create custom search service: %w", err)
	}

	return &GoogleProvider{service: svc, searchID: searchID, timeout: timeout}, nil
}

// GetName returns the name of this provider
func (g *GoogleProvider) GetName() string {
	return "Google Custom Search"
}

// Search performs one Custom Search request bounded by the provider timeout
func (g *GoogleProvider) Search(ctx context.Context, query string, config Config) ([]Result, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	num := config.MaxResults
	if num <= 0 || num > googleMaxResults {
		num = googleMaxResults
	}

	call := g.service.Cse.List().Cx(g.searchID).Q(query).Num(int64(num))
	if config.Language != "" {
		call = call.Hl(config.Language)
	}

	resp, err := call.Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			switch {
			case apiErr.Code == http.StatusTooManyRequests:
				return nil, fmt.Errorf("%w: %s", ErrRateLimited, apiErr.Message)
			case apiErr.Code >= 500:
				return nil, fmt.Errorf("%w: %s", ErrProviderUnavailable, apiErr.Message)
			}
			return nil, fmt.Errorf("google CSE API error (%d): %s", apiErr.Code, apiErr.Message)
		}
		return nil, fmt.Errorf("failed to execute Google CSE request: %w", err)
	}

	results := make([]Result, 0, len(resp.Items))
	for i, item := range resp.Items {
		if item == nil || item.Link == "" {
			continue
		}
		results = append(results, Result{
			URL:     item.Link,
			Title:   item.Title,
			Snippet: item.Snippet,
			Domain:  Hostname(item.Link),
			Source:  "Google",
			Rank:    i + 1,
		})
	}

	logger.Debug("Google Custom Search completed", "query", query, "results_found", len(results))

	return results, nil
}
