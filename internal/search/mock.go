package search

import (
	"context"
	"sync"
)

// MockProvider implements Provider with canned results. Results can be scripted
// per query; queries without a script get the default results.
type MockProvider struct {
	mu      sync.Mutex
	name    string
	results []Result
	byQuery map[string][]Result
	errors  map[string]error
	queries []string
}

// NewMockProvider creates a new mock search provider
func NewMockProvider() *MockProvider {
	return &MockProvider{
		name: "Mock",
		results: []Result{
			{URL: "https://example.com/blog/article-1", Title: "Example Article 1", Snippet: "First mock result.", Domain: "example.com", Source: "Mock", Rank: 1},
			{URL: "https://test.org/guide/article-2", Title: "Test Article 2", Snippet: "Second mock result.", Domain: "test.org", Source: "Mock", Rank: 2},
			{URL: "https://demo.net/posts/article-3", Title: "Demo Article 3", Snippet: "Third mock result.", Domain: "demo.net", Source: "Mock", Rank: 3},
		},
		byQuery: map[string][]Result{},
		errors:  map[string]error{},
	}
}

// GetName returns the name of this provider
func (m *MockProvider) GetName() string {
	return m.name
}

// Search returns the scripted results for query
func (m *MockProvider) Search(ctx context.Context, query string, config Config) ([]Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.queries = append(m.queries, query)
	if err := m.errors[query]; err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	source, ok := m.byQuery[query]
	if !ok {
		source = m.results
	}

	maxResults := config.MaxResults
	if maxResults <= 0 || maxResults > len(source) {
		maxResults = len(source)
	}

	results := make([]Result, maxResults)
	copy(results, source[:maxResults])
	return results, nil
}

// SetResults replaces the default results
func (m *MockProvider) SetResults(results []Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = results
}

// SetQueryResults scripts the results for one exact query
func (m *MockProvider) SetQueryResults(query string, results []Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byQuery[query] = results
}

// SetQueryError makes one exact query fail
func (m *MockProvider) SetQueryError(query string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[query] = err
}

// Queries returns the queries received so far, in order
func (m *MockProvider) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}

// SetName allows customization of provider name for testing
func (m *MockProvider) SetName(name string) {
	m.name = name
}
