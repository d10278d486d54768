package search

import (
	"context"
	"errors"
	"testing"
)

func TestProviderTypeConstants(t *testing.T) {
	expectedTypes := map[ProviderType]string{
		ProviderTypeGoogle:     "google",
		ProviderTypeSerpAPI:    "serpapi",
		ProviderTypeDuckDuckGo: "duckduckgo",
		ProviderTypeMock:       "mock",
	}

	for providerType, expectedValue := range expectedTypes {
		if string(providerType) != expectedValue {
			t.Errorf("Expected %s to be %s, got %s", providerType, expectedValue, string(providerType))
		}
	}
}

func TestHostname(t *testing.T) {
	tests := map[string]string{
		"https://www.example.com/blog/post": "example.com",
		"https://blog.example.com/a":        "blog.example.com",
		"http://example.com:8080/x":         "example.com",
		"::not a url":                       "",
	}

	for in, want := range tests {
		if got := Hostname(in); got != want {
			t.Errorf("Hostname(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMockProviderSearch(t *testing.T) {
	provider := NewMockProvider()

	results, err := provider.Search(context.Background(), "anything", Config{MaxResults: 2})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(results) != 2 {
		t.Errorf("Expected 2 results, got %d", len(results))
	}
	if provider.GetName() != "Mock" {
		t.Errorf("Expected name Mock, got %s", provider.GetName())
	}
}

func TestMockProviderScripting(t *testing.T) {
	provider := NewMockProvider()
	provider.SetQueryResults("q1", []Result{{URL: "https://a.com/blog/x", Title: "X"}})
	provider.SetQueryError("q2", ErrRateLimited)

	results, err := provider.Search(context.Background(), "q1", Config{})
	if err != nil || len(results) != 1 {
		t.Fatalf("Expected 1 scripted result, got %d (%v)", len(results), err)
	}

	if _, err := provider.Search(context.Background(), "q2", Config{}); !errors.Is(err, ErrRateLimited) {
		t.Errorf("Expected ErrRateLimited, got %v", err)
	}

	queries := provider.Queries()
	if len(queries) != 2 || queries[0] != "q1" || queries[1] != "q2" {
		t.Errorf("Expected queries [q1 q2], got %v", queries)
	}
}
