package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"articleforge/internal/core"
	"articleforge/internal/rewrite"
	"articleforge/internal/search"
)

const (
	idOne   = "65a1b2c3d4e5f6a7b8c9d0e1"
	idTwo   = "65a1b2c3d4e5f6a7b8c9d0e2"
	idThree = "65a1b2c3d4e5f6a7b8c9d0e3"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func twoPages() *fakeExtractor {
	return &fakeExtractor{pages: map[string]*core.ExtractedPage{
		"https://example.com/blog/article-1": {Title: "Example Article 1", Content: "First reference body", URL: "https://example.com/blog/article-1", Source: "example.com"},
		"https://test.org/guide/article-2":   {Title: "Test Article 2", Content: "Second reference body", URL: "https://test.org/guide/article-2", Source: "test.org"},
	}}
}

func newTestOrchestrator(store ArticleStore, finder ReferenceFinder, ext PageExtractor, synth Synthesizer) (*Orchestrator, *noWait) {
	o := NewOrchestrator(store, finder, ext, synth, DefaultConfig())
	w := &noWait{}
	o.wait = w.wait
	o.now = func() time.Time { return time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC) }
	return o, w
}

func TestEnhanceEndToEnd(t *testing.T) {
	store := newMemStore(original(idOne, "Remote Work Productivity - BeyondChats Blog", "remote-work-productivity"))
	provider := search.NewMockProvider()
	cfg := search.DefaultReferenceConfig()
	cfg.QueryDelay = 0
	finder := search.NewReferenceSearch(provider, cfg)
	ext := twoPages()

	o, w := newTestOrchestrator(store, finder, ext, rewrite.New(nil, rewrite.DefaultOptions()))
	outcome := o.Enhance(context.Background(), idOne)

	if outcome.Status != StatusEnhanced {
		t.Fatalf("Expected enhanced outcome, got %s: %v", outcome.Status, outcome.Err)
	}
	if got := provider.Queries(); len(got) == 0 || got[0] != "Remote Work Productivity blog article guide" {
		t.Errorf("Expected first query on stripped topic, got %v", got)
	}
	if diff := cmp.Diff([]time.Duration{time.Second}, w.delays); diff != "" {
		t.Errorf("Extraction delays mismatch (-want +got):\n%s", diff)
	}

	enhanced := store.enhanced()
	if len(enhanced) != 1 {
		t.Fatalf("Expected exactly one enhanced article, got %d", len(enhanced))
	}
	got := enhanced[0]
	if got.ID != outcome.NewArticleID {
		t.Errorf("Outcome id %s does not match stored id %s", outcome.NewArticleID, got.ID)
	}

	published := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	parent := idOne
	want := core.Article{
		ID:          got.ID,
		Title:       "Remote Work Productivity - BeyondChats Blog",
		Slug:        "remote-work-productivity-enhanced",
		Author:      "BeyondChats Team",
		PublishDate: &published,
		Content:     "<p>Original body for Remote Work Productivity - BeyondChats Blog</p>",
		OriginalURL: "https://beyondchats.com/blogs/remote-work-productivity/",
		ParentID:    &parent,
		Type:        core.ArticleTypeEnhanced,
		References: []core.Reference{
			{Title: "Example Article 1", URL: "https://example.com/blog/article-1", Source: "example.com"},
			{Title: "Test Article 2", URL: "https://test.org/guide/article-2", Source: "test.org"},
		},
		Meta:      core.Meta{Description: "", Keywords: []string{}},
		CreatedAt: got.CreatedAt,
		UpdatedAt: got.UpdatedAt,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Enhanced article mismatch (-want +got):\n%s", diff)
	}
}

func TestEnhanceRejectsInvalidID(t *testing.T) {
	store := newMemStore()
	finder := &fakeFinder{}
	o, _ := newTestOrchestrator(store, finder, twoPages(), &fakeSynthesizer{})

	outcome := o.Enhance(context.Background(), "not-an-id")
	if outcome.Status != StatusFailed || outcome.Stage != StageValidate {
		t.Fatalf("Expected failure at %s, got %s at %s", StageValidate, outcome.Status, outcome.Stage)
	}
	if !errors.Is(outcome.Err, core.ErrInvalidID) {
		t.Errorf("Expected ErrInvalidID, got %v", outcome.Err)
	}
	if store.gets != 0 {
		t.Errorf("Expected no store access, got %d gets", store.gets)
	}
}

func TestEnhanceSkipsEnhancedArticle(t *testing.T) {
	enhanced := original(idTwo, "Already Better", "already-better-enhanced")
	enhanced.Type = core.ArticleTypeEnhanced
	parent := idOne
	enhanced.ParentID = &parent

	store := newMemStore(enhanced)
	finder := &fakeFinder{}
	ext := twoPages()
	synth := &fakeSynthesizer{}
	o, _ := newTestOrchestrator(store, finder, ext, synth)

	outcome := o.Enhance(context.Background(), idTwo)
	if outcome.Status != StatusSkipped {
		t.Fatalf("Expected skipped outcome, got %s: %v", outcome.Status, outcome.Err)
	}
	if !errors.Is(outcome.Err, core.ErrAlreadyEnhanced) {
		t.Errorf("Expected ErrAlreadyEnhanced, got %v", outcome.Err)
	}
	if finder.calls != 0 || len(ext.calls) != 0 || synth.calls != 0 {
		t.Errorf("Expected no search, extraction or model calls; got %d, %d, %d", finder.calls, len(ext.calls), synth.calls)
	}
}

func TestEnhanceNotFound(t *testing.T) {
	o, _ := newTestOrchestrator(newMemStore(), &fakeFinder{}, twoPages(), &fakeSynthesizer{})

	outcome := o.Enhance(context.Background(), idOne)
	if outcome.Status != StatusFailed || outcome.Stage != StageFetch {
		t.Fatalf("Expected failure at %s, got %s at %s", StageFetch, outcome.Status, outcome.Stage)
	}
	if !errors.Is(outcome.Err, core.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", outcome.Err)
	}
}

func TestEnhanceDropsFailedReferences(t *testing.T) {
	store := newMemStore(original(idOne, "Customer Support Automation", "customer-support-automation"))
	finder := &fakeFinder{candidates: []search.Candidate{
		{Title: "Broken", URL: "https://slow.example/blog/timeout", Source: "slow.example"},
		{Title: "Test Article 2", URL: "https://test.org/guide/article-2", Source: "test.org"},
	}}
	ext := twoPages()
	o, _ := newTestOrchestrator(store, finder, ext, &fakeSynthesizer{})

	outcome := o.Enhance(context.Background(), idOne)
	if outcome.Status != StatusEnhanced {
		t.Fatalf("Expected enhanced outcome, got %s: %v", outcome.Status, outcome.Err)
	}
	if len(ext.calls) != 2 {
		t.Errorf("Expected both candidates to be tried, got %v", ext.calls)
	}
	want := []core.Reference{{Title: "Test Article 2", URL: "https://test.org/guide/article-2", Source: "test.org"}}
	if diff := cmp.Diff(want, outcome.References); diff != "" {
		t.Errorf("References mismatch (-want +got):\n%s", diff)
	}
}

func TestEnhanceWithoutReferences(t *testing.T) {
	store := newMemStore(original(idOne, "Chatbot Basics", "chatbot-basics"))
	o, w := newTestOrchestrator(store, &fakeFinder{}, twoPages(), &fakeSynthesizer{})

	outcome := o.Enhance(context.Background(), idOne)
	if outcome.Status != StatusEnhanced {
		t.Fatalf("Expected enhanced outcome, got %s: %v", outcome.Status, outcome.Err)
	}
	if len(outcome.References) != 0 || len(w.delays) != 0 {
		t.Errorf("Expected no references and no delays, got %v and %v", outcome.References, w.delays)
	}
}

func TestEnhanceSynthesizerFailure(t *testing.T) {
	store := newMemStore(original(idOne, "Chatbot Basics", "chatbot-basics"))
	boom := errors.New("401 unauthenticated")
	o, _ := newTestOrchestrator(store, &fakeFinder{}, twoPages(), &fakeSynthesizer{err: boom})

	outcome := o.Enhance(context.Background(), idOne)
	if outcome.Status != StatusFailed {
		t.Fatalf("Expected failed outcome, got %s", outcome.Status)
	}
	var stageErr *StageError
	if !errors.As(outcome.Err, &stageErr) || stageErr.Stage != StageSynthesize {
		t.Errorf("Expected StageError at %s, got %v", StageSynthesize, outcome.Err)
	}
	if !errors.Is(outcome.Err, boom) {
		t.Errorf("Expected wrapped model error, got %v", outcome.Err)
	}
	if len(store.enhanced()) != 0 {
		t.Error("Expected nothing to be persisted")
	}
}

func TestEnhanceTwiceNeverCreatesTwoChildren(t *testing.T) {
	store := newMemStore(original(idOne, "Chatbot Basics", "chatbot-basics"))
	o, _ := newTestOrchestrator(store, &fakeFinder{}, twoPages(), &fakeSynthesizer{})

	first := o.Enhance(context.Background(), idOne)
	second := o.Enhance(context.Background(), idOne)

	if first.Status != StatusEnhanced {
		t.Fatalf("Expected first run to enhance, got %s: %v", first.Status, first.Err)
	}
	if second.Status != StatusFailed || second.Stage != StagePersist || !errors.Is(second.Err, core.ErrConflict) {
		t.Errorf("Expected second run to fail at persist with a conflict, got %s at %s: %v", second.Status, second.Stage, second.Err)
	}
	if n := len(store.enhanced()); n != 1 {
		t.Errorf("Expected one enhanced child, got %d", n)
	}
}

func TestEnhanceCanceledDuringExtraction(t *testing.T) {
	store := newMemStore(original(idOne, "Chatbot Basics", "chatbot-basics"))
	finder := &fakeFinder{candidates: []search.Candidate{
		{URL: "https://example.com/blog/article-1"},
		{URL: "https://test.org/guide/article-2"},
	}}
	ext := twoPages()
	synth := &fakeSynthesizer{}
	o, _ := newTestOrchestrator(store, finder, ext, synth)

	ctx, cancel := context.WithCancel(context.Background())
	o.wait = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}

	outcome := o.Enhance(ctx, idOne)
	if outcome.Status != StatusFailed || outcome.Stage != StageExtract {
		t.Fatalf("Expected failure at %s, got %s at %s", StageExtract, outcome.Status, outcome.Stage)
	}
	if !errors.Is(outcome.Err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", outcome.Err)
	}
	if synth.calls != 0 {
		t.Error("Expected synthesis not to start after cancellation")
	}
}

func TestOutcomeMessage(t *testing.T) {
	tests := []struct {
		outcome Outcome
		want    string
	}{
		{Outcome{Status: StatusEnhanced, Title: "T", NewArticleID: idTwo, References: make([]core.Reference, 2)}, `Enhanced "T" as ` + idTwo + " with 2 references"},
		{Outcome{Status: StatusSkipped, Err: core.ErrAlreadyEnhanced}, "Skipped: article is already enhanced"},
		{Outcome{Status: StatusFailed, Err: &StageError{Stage: StagePersist, Err: core.ErrConflict}}, "Failed: persist: article already exists"},
	}
	for _, tt := range tests {
		if got := tt.outcome.Message(); got != tt.want {
			t.Errorf("Message() = %q, want %q", got, tt.want)
		}
	}
}
