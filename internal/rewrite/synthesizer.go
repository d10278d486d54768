// Package rewrite turns an article and its references into an improved rewrite
// through a generative model.
package rewrite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"

	"articleforge/internal/core"
	"articleforge/internal/llm"
	"articleforge/internal/logger"
)

// Options bounds the model call and the context sent to it
type Options struct {
	Model       string
	MaxTokens   int32
	// Temperature is sent only when set; zero is a valid value
	Temperature *float32
	// SourceLimit caps the plain-text source body, in runes
	SourceLimit int
	// ReferenceLimit caps each reference excerpt, in runes
	ReferenceLimit int
}

// DefaultOptions returns the bounds used in production
func DefaultOptions() Options {
	return Options{
		MaxTokens:      8000,
		Temperature:    llm.Float32(0.7),
		SourceLimit:    4000,
		ReferenceLimit: 1500,
	}
}

const (
	maxTitleRunes       = 500
	maxDescriptionRunes = 300
)

var (
	tagPattern   = regexp.MustCompile(`<[^>]*>`)
	spacePattern = regexp.MustCompile(`\s+`)
)

// Synthesizer rewrites articles with a Generator
type Synthesizer struct {
	gen  llm.Generator
	opts Options
}

// New creates a Synthesizer. A nil gen means no model is configured and
// Synthesize passes the original through.
func New(gen llm.Generator, opts Options) *Synthesizer {
	def := DefaultOptions()
	if opts.SourceLimit <= 0 {
		opts.SourceLimit = def.SourceLimit
	}
	if opts.ReferenceLimit <= 0 {
		opts.ReferenceLimit = def.ReferenceLimit
	}
	return &Synthesizer{gen: gen, opts: opts}
}

// modelResponse is the JSON contract asked of the model
type modelResponse struct {
	Title           string      `json:"title"`
	Content         string      `json:"content"`
	MetaDescription string      `json:"meta_description"`
	Keywords        keywordList `json:"keywords"`
}

// keywordList accepts either a JSON array of strings or one comma separated string
type keywordList []string

func (k *keywordList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*k = cleanKeywords(list)
		return nil
	}
	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		// unusable keywords do not invalidate the rest of the response
		*k = nil
		return nil
	}
	*k = cleanKeywords(strings.Split(joined, ","))
	return nil
}

func cleanKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	for _, kw := range in {
		if kw = strings.TrimSpace(kw); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

// Synthesize rewrites article using refs as style context. Model transport
// errors are returned; empty or unparseable output is not an error.
func (s *Synthesizer) Synthesize(ctx context.Context, article *core.Article, refs []core.ExtractedPage) (*core.EnhancementResult, error) {
	if s.gen == nil {
		logger.Warn("No model configured, returning original content", "article_id", article.ID)
		return passThrough(article), nil
	}

	body := truncateRunes(PlainText(article.Content), s.opts.SourceLimit)
	prompt := buildPrompt(article.Title, body, refs, s.opts.ReferenceLimit)

	logger.Info("Enhancing article with LLM", "article_id", article.ID, "references", len(refs))

	text, err := s.gen.GenerateText(ctx, prompt, llm.TextGenerationOptions{
		System:      systemInstruction,
		MaxTokens:   s.opts.MaxTokens,
		Temperature: s.opts.Temperature,
		Model:       s.opts.Model,
	})
	if err != nil && !errors.Is(err, llm.ErrEmptyResponse) {
		return nil, fmt.Errorf("model call failed: %w", err)
	}

	var resp modelResponse
	if err == nil {
		err = llm.DecodeFirstObject(text, &resp)
	}
	if err != nil {
		logger.Warn("Failed to parse model response, using raw content", "article_id", article.ID, "error", err.Error())
		return rawResult(article, text), nil
	}

	result := &core.EnhancementResult{
		Title:   firstNonEmpty(strings.TrimSpace(resp.Title), article.Title),
		Content: firstNonEmpty(strings.TrimSpace(resp.Content), article.Content),
		Meta: core.Meta{
			Description: truncateRunes(strings.TrimSpace(resp.MetaDescription), maxDescriptionRunes),
			Keywords:    []string(resp.Keywords),
		},
	}
	result.Title = truncateRunes(result.Title, maxTitleRunes)
	if result.Meta.Keywords == nil {
		result.Meta.Keywords = []string{}
	}
	return result, nil
}

func passThrough(article *core.Article) *core.EnhancementResult {
	return &core.EnhancementResult{
		Title:   article.Title,
		Content: article.Content,
		Meta:    core.Meta{Keywords: []string{}},
	}
}

// PlainText strips tags from HTML, decodes entities and collapses whitespace.
func PlainText(markup string) string {
	text := tagPattern.ReplaceAllString(markup, " ")
	text = strings.ReplaceAll(html.UnescapeString(text), "\u00a0", " ")
	return strings.TrimSpace(spacePattern.ReplaceAllString(text, " "))
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	return string(r[:max])
}

// truncate cuts an excerpt and marks the cut
func truncate(s string, max int) string {
	if max <= 0 || len([]rune(s)) <= max {
		return s
	}
	return truncateRunes(s, max) + "..."
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// rawResult wraps model text that could not be decoded
func rawResult(article *core.Article, text string) *core.EnhancementResult {
	return &core.EnhancementResult{
		Title:   article.Title,
		Content: "<article>" + text + "</article>",
		Meta:    core.Meta{Keywords: []string{}},
	}
}
