package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/genai"
)

// DefaultModel is used when no model name is configured
const DefaultModel = "gemini-2.5-flash"

// ErrEmptyResponse is returned when the model answers with no text
var ErrEmptyResponse = errors.New("empty response from LLM")

// Generator produces free-form text from a prompt
type Generator interface {
	GenerateText(ctx context.Context, prompt string, options TextGenerationOptions) (string, error)
}

// TextGenerationOptions contains options for text generation
type TextGenerationOptions struct {
	System      string   // System instruction (optional)
	MaxTokens   int32    // Maximum number of tokens to generate
	Temperature *float32 // Temperature for randomness (0.0 to 2.0), nil uses the model default
	Model       string   // Model to use (optional, defaults to client's model)
}

// Float32 returns a pointer to v
func Float32(v float32) *float32 {
	return &v
}

// Config holds what is needed to build a Client
type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
	// BaseURL overrides the API endpoint; empty uses the public Gemini API
	BaseURL string
}

// Client is a Gemini-backed Generator. Build one at startup and pass it to
// the components that need it.
type Client struct {
	modelName string
	gClient   *genai.Client
}

// NewClient creates a new Gemini client
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required. Set GEMINI_API_KEY environment variable or ai.gemini.api_key in config file")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	clientConfig := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	gClient, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{modelName: cfg.Model, gClient: gClient}, nil
}

// GetModelName returns the default model of this client
func (c *Client) GetModelName() string {
	return c.modelName
}

// GenerateText generates text using the LLM with specified options
func (c *Client) GenerateText(ctx context.Context, prompt string, options TextGenerationOptions) (string, error) {
	if prompt == "" {
		return "", fmt.Errorf("prompt cannot be empty")
	}

	modelName := c.modelName
	if options.Model != "" {
		modelName = options.Model
	}

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	config := &genai.GenerateContentConfig{}
	if options.System != "" {
		config.SystemInstruction = genai.NewContentFromText(options.System, genai.RoleUser)
	}
	if options.MaxTokens > 0 {
		config.MaxOutputTokens = options.MaxTokens
	}
	if options.Temperature != nil {
		config.Temperature = genai.Ptr(*options.Temperature)
	}

	resp, err := c.gClient.Models.GenerateContent(ctx, modelName, contents, config)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}

	return text, nil
}
