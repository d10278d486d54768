package llm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewClient_NoAPIKey(t *testing.T) {
	if _, err := NewClient(context.Background(), Config{}); err == nil {
		t.Error("Expected error when API key is missing")
	}
}

func newTestServer(t *testing.T, reply string, gotBody *string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":generateContent") {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		*gotBody = string(body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(reply))
	}))
}

func TestClientGenerateText(t *testing.T) {
	var body string
	srv := newTestServer(t, `{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"title\":\"T\"}"}]}}]}`, &body)
	defer srv.Close()

	client, err := NewClient(context.Background(), Config{APIKey: "test-key", Model: "test-model", Timeout: 5 * time.Second, BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	text, err := client.GenerateText(context.Background(), "Rewrite this article", TextGenerationOptions{
		System:      "Respond with JSON",
		MaxTokens:   8000,
		Temperature: Float32(0),
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if text != `{"title":"T"}` {
		t.Errorf("Expected model text, got %q", text)
	}

	for _, want := range []string{"Rewrite this article", "Respond with JSON", "maxOutputTokens", `"temperature":0`} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected request body to contain %q, got %s", want, body)
		}
	}
}

func TestClientGenerateTextEmpty(t *testing.T) {
	var body string
	srv := newTestServer(t, `{"candidates":[{"content":{"role":"model","parts":[{"text":""}]}}]}`, &body)
	defer srv.Close()

	client, err := NewClient(context.Background(), Config{APIKey: "test-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	if _, err := client.GenerateText(context.Background(), "prompt", TextGenerationOptions{}); !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("Expected ErrEmptyResponse, got %v", err)
	}
	if _, err := client.GenerateText(context.Background(), "", TextGenerationOptions{}); err == nil {
		t.Error("Expected error for empty prompt")
	}
}

func TestClientGenerateTextTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":401,"message":"API key not valid","status":"UNAUTHENTICATED"}}`))
	}))
	defer srv.Close()

	client, err := NewClient(context.Background(), Config{APIKey: "bad-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	if _, err := client.GenerateText(context.Background(), "prompt", TextGenerationOptions{}); err == nil {
		t.Error("Expected transport error to be returned")
	}
}
