package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"articleforge/internal/core"
	"articleforge/internal/logger"
)

const serpAPIEndpoint = "https://serpapi.com/search"

// SerpAPIProvider implements Provider using SerpAPI's Google engine
type SerpAPIProvider struct {
	apiKey    string
	endpoint  string
	client    *http.Client
	rateLimit time.Duration

	mu       sync.Mutex
	lastCall time.Time
}

// NewSerpAPIProvider creates a SerpAPI provider. An empty endpoint uses the public API.
func NewSerpAPIProvider(apiKey, endpoint string, timeout time.Duration) (*SerpAPIProvider, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if endpoint == "" {
		endpoint = serpAPIEndpoint
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &SerpAPIProvider{
		apiKey:    apiKey,
		endpoint:  endpoint,
		client:    &http.Client{Timeout: timeout},
		rateLimit: time.Second,
	}, nil
}

// GetName returns the name of this provider
func (s *SerpAPIProvider) GetName() string {
	return "SerpAPI"
}

// Search performs one SerpAPI request
func (s *SerpAPIProvider) Search(ctx context.Context, query string, config Config) ([]Result, error) {
	if err := s.pace(ctx); err != nil {
		return nil, err
	}

	num := config.MaxResults
	if num <= 0 {
		num = googleMaxResults
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("engine", "google")
	params.Set("api_key", s.apiKey)
	params.Set("num", strconv.Itoa(num))
	if config.Language != "" {
		params.Set("hl", config.Language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create SerpAPI request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute SerpAPI request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: SerpAPI returned %d", ErrRateLimited, resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: SerpAPI returned %d", ErrProviderUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("SerpAPI request failed with status: %d", resp.StatusCode)
	}

	var apiResponse struct {
		OrganicResults []struct {
			Title    string `json:"title"`
			Link     string `json:"link"`
			Snippet  string `json:"snippet"`
			Position int    `json:"position"`
		} `json:"organic_results"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return nil, fmt.Errorf("failed to parse SerpAPI response: %w", err)
	}
	if apiResponse.Error != "" {
		return nil, fmt.Errorf("SerpAPI error: %s", apiResponse.Error)
	}

	results := make([]Result, 0, len(apiResponse.OrganicResults))
	for i, item := range apiResponse.OrganicResults {
		if strings.TrimSpace(item.Link) == "" {
			continue
		}
		rank := item.Position
		if rank <= 0 {
			rank = i + 1
		}
		results = append(results, Result{
			URL:     item.Link,
			Title:   item.Title,
			Snippet: item.Snippet,
			Domain:  Hostname(item.Link),
			Source:  "SerpAPI",
			Rank:    rank,
		})
		if len(results) == num {
			break
		}
	}

	logger.Debug("SerpAPI search completed", "query", query, "results_found", len(results))
	return results, nil
}

// pace keeps consecutive calls at least rateLimit apart
func (s *SerpAPIProvider) pace(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if elapsed := time.Since(s.lastCall); elapsed < s.rateLimit {
		if err := core.Wait(ctx, s.rateLimit-elapsed); err != nil {
			return err
		}
	}
	s.lastCall = time.Now()
	return nil
}
