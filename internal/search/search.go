package search

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"articleforge/internal/logger"
)

// Provider defines the interface for web search backends
type Provider interface {
	// Search performs a search with configuration
	Search(ctx context.Context, query string, config Config) ([]Result, error)

	// GetName returns the name of the search provider
	GetName() string
}

// Config holds configuration for search requests
type Config struct {
	MaxResults int    // Maximum number of results to return
	Language   string // Language preference (e.g., "en")
}

// Result represents a raw search hit as returned by a provider
type Result struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Domain  string `json:"domain"`
	Source  string `json:"source"` // Provider-specific source identifier
	Rank    int    `json:"rank"`   // Position in search results, 1-based
}

// ProviderType represents the type of search provider
type ProviderType string

const (
	ProviderTypeGoogle     ProviderType = "google"
	ProviderTypeSerpAPI    ProviderType = "serpapi"
	ProviderTypeDuckDuckGo ProviderType = "duckduckgo"
	ProviderTypeMock       ProviderType = "mock"
)

// ProviderSettings selects and configures a Provider. Credentials that are
// empty are treated as not configured.
type ProviderSettings struct {
	Type           ProviderType
	GoogleAPIKey   string
	GoogleSearchID string
	SerpAPIKey     string
	UserAgent      string
	Timeout        time.Duration
}

// NewProvider builds the configured provider. It returns a nil Provider and no
// error when the chosen provider lacks credentials.
func NewProvider(ctx context.Context, s ProviderSettings) (Provider, error) {
	switch s.Type {
	case "", ProviderTypeGoogle:
		if s.GoogleAPIKey == "" || s.GoogleSearchID == "" {
			return nil, nil
		}
		g, err := NewGoogleProvider(ctx, s.GoogleAPIKey, s.GoogleSearchID, s.Timeout)
		if err != nil {
			return nil, err
		}
		return g, nil
	case ProviderTypeSerpAPI:
		if s.SerpAPIKey == "" {
			return nil, nil
		}
		p, err := NewSerpAPIProvider(s.SerpAPIKey, "", s.Timeout)
		if err != nil {
			return nil, err
		}
		return p, nil
	case ProviderTypeDuckDuckGo:
		logger.Warn("Using DuckDuckGo HTML search, results may be rate limited")
		return NewDuckDuckGoProvider("", s.UserAgent, s.Timeout), nil
	case ProviderTypeMock:
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown search provider %q", s.Type)
	}
}

// Hostname returns the host of rawURL with any leading "www." removed.
func Hostname(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(parsed.Hostname(), "www.")
}
