package rewrite

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"articleforge/internal/core"
	"articleforge/internal/llm"
)

type fakeGenerator struct {
	reply  string
	err    error
	prompt string
	opts   llm.TextGenerationOptions
	calls  int
}

func (f *fakeGenerator) GenerateText(_ context.Context, prompt string, opts llm.TextGenerationOptions) (string, error) {
	f.calls++
	f.prompt = prompt
	f.opts = opts
	return f.reply, f.err
}

func sampleArticle() *core.Article {
	return &core.Article{
		ID:      "65a1b2c3d4e5f6a7b8c9d0e1",
		Title:   "Remote Work Productivity",
		Content: "<p>Working <b>from</b> home &amp; staying focused.</p>",
	}
}

func TestSynthesizeWithoutGenerator(t *testing.T) {
	s := New(nil, DefaultOptions())
	article := sampleArticle()

	got, err := s.Synthesize(context.Background(), article, nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	want := &core.EnhancementResult{
		Title:   article.Title,
		Content: article.Content,
		Meta:    core.Meta{Keywords: []string{}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Synthesize() mismatch (-want +got):\n%s", diff)
	}
}

func TestSynthesizeParsesModelJSON(t *testing.T) {
	gen := &fakeGenerator{reply: "Here you go:\n```json\n" +
		`{"title":"Boost Remote Productivity","content":"<article><h2>Focus</h2></article>","meta_description":"Tips for focus.","keywords":["remote","focus"]}` +
		"\n```"}
	s := New(gen, DefaultOptions())

	refs := []core.ExtractedPage{
		{Title: "Ref One", Content: strings.Repeat("a", 2000), URL: "https://a.com/blog/x", Source: "a.com"},
		{Title: "Ref Two", Content: "short", URL: "https://b.com/blog/y", Source: "b.com"},
	}
	got, err := s.Synthesize(context.Background(), sampleArticle(), refs)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	want := &core.EnhancementResult{
		Title:   "Boost Remote Productivity",
		Content: "<article><h2>Focus</h2></article>",
		Meta:    core.Meta{Description: "Tips for focus.", Keywords: []string{"remote", "focus"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Synthesize() mismatch (-want +got):\n%s", diff)
	}

	if gen.opts.System != systemInstruction || gen.opts.MaxTokens != 8000 || gen.opts.Temperature == nil || *gen.opts.Temperature != 0.7 {
		t.Errorf("Unexpected generation options %+v", gen.opts)
	}
	for _, want := range []string{
		"Title: Remote Work Productivity",
		"Content: Working from home & staying focused.",
		"Reference Article 1 (from a.com):",
		"Reference Article 2 (from b.com):",
		"Content Summary: " + strings.Repeat("a", 1500) + "...",
		"Respond ONLY with the JSON object",
	} {
		if !strings.Contains(gen.prompt, want) {
			t.Errorf("Expected prompt to contain %q", want)
		}
	}
	if strings.Contains(gen.prompt, strings.Repeat("a", 1501)) {
		t.Error("Expected reference excerpt to be bounded")
	}
}

func TestSynthesizeBoundsSource(t *testing.T) {
	gen := &fakeGenerator{reply: `{"title":"T","content":"C"}`}
	s := New(gen, DefaultOptions())

	article := sampleArticle()
	article.Content = "<div>" + strings.Repeat("b", 5000) + "</div>"
	if _, err := s.Synthesize(context.Background(), article, nil); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if strings.Contains(gen.prompt, strings.Repeat("b", 4001)) {
		t.Error("Expected source body to be truncated to 4000 characters")
	}
	if !strings.Contains(gen.prompt, strings.Repeat("b", 4000)) {
		t.Error("Expected source body to keep 4000 characters")
	}
	if strings.Contains(gen.prompt, "REFERENCE ARTICLES") {
		t.Error("Expected no reference block without references")
	}
}

func TestSynthesizeFallsBackOnUnparseableOutput(t *testing.T) {
	gen := &fakeGenerator{reply: "I rewrote it but forgot the JSON."}
	s := New(gen, DefaultOptions())
	article := sampleArticle()

	got, err := s.Synthesize(context.Background(), article, nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	want := &core.EnhancementResult{
		Title:   article.Title,
		Content: "<article>I rewrote it but forgot the JSON.</article>",
		Meta:    core.Meta{Keywords: []string{}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Synthesize() mismatch (-want +got):\n%s", diff)
	}
}

func TestSynthesizeWrapsEmptyResponse(t *testing.T) {
	gen := &fakeGenerator{err: llm.ErrEmptyResponse}
	s := New(gen, DefaultOptions())
	article := sampleArticle()

	got, err := s.Synthesize(context.Background(), article, nil)
	if err != nil {
		t.Fatalf("Expected an empty response to degrade, got %v", err)
	}
	want := &core.EnhancementResult{
		Title:   article.Title,
		Content: "<article></article>",
		Meta:    core.Meta{Keywords: []string{}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Synthesize() mismatch (-want +got):\n%s", diff)
	}
}

func TestSynthesizeSendsZeroTemperature(t *testing.T) {
	gen := &fakeGenerator{reply: `{"title":"T","content":"C"}`}
	opts := DefaultOptions()
	opts.Temperature = llm.Float32(0)

	if _, err := New(gen, opts).Synthesize(context.Background(), sampleArticle(), nil); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if gen.opts.Temperature == nil || *gen.opts.Temperature != 0 {
		t.Errorf("Expected temperature 0 to be sent, got %v", gen.opts.Temperature)
	}
}

func TestSynthesizeDefaultsMissingFields(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  *core.EnhancementResult
	}{
		{
			name:  "empty object",
			reply: `{}`,
			want: &core.EnhancementResult{
				Title:   "Remote Work Productivity",
				Content: "<p>Working <b>from</b> home &amp; staying focused.</p>",
				Meta:    core.Meta{Keywords: []string{}},
			},
		},
		{
			name:  "keywords as string",
			reply: `{"title":"New","keywords":"remote, focus ,, habits"}`,
			want: &core.EnhancementResult{
				Title:   "New",
				Content: "<p>Working <b>from</b> home &amp; staying focused.</p>",
				Meta:    core.Meta{Keywords: []string{"remote", "focus", "habits"}},
			},
		},
		{
			name:  "keywords wrong type",
			reply: `{"title":"New","content":"<article>x</article>","keywords":42}`,
			want: &core.EnhancementResult{
				Title:   "New",
				Content: "<article>x</article>",
				Meta:    core.Meta{Keywords: []string{}},
			},
		},
		{
			name:  "long description",
			reply: `{"meta_description":"` + strings.Repeat("d", 400) + `"}`,
			want: &core.EnhancementResult{
				Title:   "Remote Work Productivity",
				Content: "<p>Working <b>from</b> home &amp; staying focused.</p>",
				Meta:    core.Meta{Description: strings.Repeat("d", 300), Keywords: []string{}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(&fakeGenerator{reply: tt.reply}, DefaultOptions())
			got, err := s.Synthesize(context.Background(), sampleArticle(), nil)
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Synthesize() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSynthesizeReturnsGeneratorError(t *testing.T) {
	boom := errors.New("quota exceeded")
	s := New(&fakeGenerator{err: boom}, DefaultOptions())

	_, err := s.Synthesize(context.Background(), sampleArticle(), nil)
	if !errors.Is(err, boom) {
		t.Errorf("Expected wrapped generator error, got %v", err)
	}
}

func TestPlainText(t *testing.T) {
	got := PlainText("<h1>Title</h1>\n<p>One&nbsp;two   <em>three</em></p>")
	if got != "Title One two three" {
		t.Errorf("PlainText() = %q", got)
	}
}
