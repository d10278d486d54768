// Package apiclient is an ArticleStore backed by a remote articles REST API
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"articleforge/internal/core"
	"articleforge/internal/logger"
)

// DefaultTimeout bounds every API call
const DefaultTimeout = 30 * time.Second

const maxResponseBytes = 10 << 20

// Client talks to /articles endpoints under a base URL such as http://localhost:5000/api
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client. A non-positive timeout uses DefaultTimeout.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
	Errors  []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
}

// APIError is a non-2xx answer that maps to no store error
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("articles API returned %d %s: %s", e.Status, e.Code, e.Message)
}

// Get fetches one article
func (c *Client) Get(ctx context.Context, id string) (*core.Article, error) {
	if !core.IsValidID(id) {
		return nil, core.ErrInvalidID
	}
	var a core.Article
	if err := c.do(ctx, http.MethodGet, "/articles/"+url.PathEscape(id), nil, nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// List fetches one page of articles
func (c *Client) List(ctx context.Context, filter core.ListFilter) ([]core.Article, error) {
	f := filter.Normalize()
	q := url.Values{}
	q.Set("article_type", string(f.Type))
	q.Set("page", strconv.Itoa(f.Page))
	q.Set("limit", strconv.Itoa(f.Limit))
	q.Set("sort", f.Sort)

	articles := []core.Article{}
	if err := c.do(ctx, http.MethodGet, "/articles", q, nil, &articles); err != nil {
		return nil, err
	}
	return articles, nil
}

// Create posts a new article and returns the stored copy
func (c *Client) Create(ctx context.Context, article *core.Article) (*core.Article, error) {
	var created core.Article
	if err := c.do(ctx, http.MethodPost, "/articles", nil, article, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// EnhancedVersion returns the enhanced child of originalID, or nil when there is none
func (c *Client) EnhancedVersion(ctx context.Context, originalID string) (*core.Article, error) {
	if !core.IsValidID(originalID) {
		return nil, core.ErrInvalidID
	}
	var pair struct {
		Enhanced *core.Article `json:"enhanced"`
	}
	if err := c.do(ctx, http.MethodGet, "/articles/"+url.PathEscape(originalID)+"/with-enhanced", nil, nil, &pair); err != nil {
		return nil, err
	}
	return pair.Enhanced, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil && resp.StatusCode < 300 {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	if resp.StatusCode >= 300 {
		err := statusError(resp.StatusCode, env)
		logger.Debug("Articles API error", "method", method, "path", path, "status", resp.StatusCode, "error", err.Error())
		return err
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}

// statusError maps API failures onto store errors
func statusError(status int, env envelope) error {
	msg := env.Message
	if msg == "" {
		msg = http.StatusText(status)
	}

	switch {
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %s", core.ErrNotFound, msg)
	case status == http.StatusConflict:
		return fmt.Errorf("%w: %s", core.ErrConflict, msg)
	case status == http.StatusBadRequest && env.Code == "INVALID_ID":
		return fmt.Errorf("%w: %s", core.ErrInvalidID, msg)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		fields := map[string]string{}
		for _, e := range env.Errors {
			fields[e.Field] = e.Message
		}
		if len(fields) == 0 {
			return fmt.Errorf("%w: %s", core.ErrValidation, msg)
		}
		return &core.ValidationError{Fields: fields}
	default:
		return &APIError{Status: status, Code: env.Code, Message: msg}
	}
}

// IsUnavailable reports whether err means the API could not be reached or failed server-side
func IsUnavailable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
