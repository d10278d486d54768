package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Renderer returns the final HTML of a page
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// maxBodyBytes caps how much of a response HTTPRenderer reads
const maxBodyBytes = 10 << 20

// HTTPRenderer fetches pages with a plain GET. It runs no JavaScript, so it
// only suits server-rendered pages; the browser renderer is the default.
type HTTPRenderer struct {
	client    *http.Client
	userAgent string
}

// NewHTTPRenderer creates a renderer with the given request timeout
func NewHTTPRenderer(timeout time.Duration, userAgent string) *HTTPRenderer {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &HTTPRenderer{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// Render fetches url and returns the response body
func (h *HTTPRenderer) Render(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request for %s: %w", url, err)
	}
	if h.userAgent != "" {
		req.Header.Set("User-Agent", h.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch URL %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch URL %s: status code %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read response body from %s: %w", url, err)
	}
	return string(body), nil
}
