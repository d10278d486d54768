package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"articleforge/internal/core"
)

func newTestBatch(store ArticleStore, enhancer Enhancer) (*BatchRunner, *noWait) {
	b := NewBatchRunner(store, enhancer, DefaultBatchConfig())
	w := &noWait{}
	b.wait = w.wait
	return b, w
}

func threeOriginals() *memStore {
	return newMemStore(
		original(idOne, "Remote Work Productivity", "remote-work-productivity"),
		original(idTwo, "Customer Support Automation", "customer-support-automation"),
		original(idThree, "Chatbot Basics", "chatbot-basics"),
	)
}

func TestBatchIsolatesFailures(t *testing.T) {
	store := threeOriginals()
	store.failCreate = func(a *core.Article) error {
		if a.ParentID != nil && *a.ParentID == idTwo {
			return errors.New("database is locked")
		}
		return nil
	}
	o, _ := newTestOrchestrator(store, &fakeFinder{}, twoPages(), &fakeSynthesizer{})
	b, w := newTestBatch(store, o)

	report, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if report.Total != 3 || report.Attempted != 3 || report.Succeeded != 2 || report.Failed != 1 || report.Skipped != 0 {
		t.Errorf("Unexpected counts: total=%d attempted=%d succeeded=%d failed=%d skipped=%d",
			report.Total, report.Attempted, report.Succeeded, report.Failed, report.Skipped)
	}
	if len(report.Items) != 3 || report.Items[2].ArticleID != idThree || !report.Items[2].Outcome.Succeeded() {
		t.Errorf("Expected the third item to be attempted and succeed, got %+v", report.Items)
	}
	if report.Items[1].Outcome.Stage != StagePersist {
		t.Errorf("Expected second item to fail at persist, got %s", report.Items[1].Outcome.Stage)
	}
	if len(w.delays) != 2 || w.delays[0] != 5*time.Second {
		t.Errorf("Expected two 5s delays between three items, got %v", w.delays)
	}
	if report.RunID == "" {
		t.Error("Expected a run id")
	}
}

func TestBatchIsIdempotent(t *testing.T) {
	store := threeOriginals()
	o, _ := newTestOrchestrator(store, &fakeFinder{}, twoPages(), &fakeSynthesizer{})
	b, _ := newTestBatch(store, o)

	if _, err := b.Run(context.Background()); err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	second, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	if second.Attempted != 0 || second.Skipped != 3 {
		t.Errorf("Expected second run to skip everything, got attempted=%d skipped=%d", second.Attempted, second.Skipped)
	}
	for _, item := range second.Items {
		if item.Outcome.Status != StatusSkipped {
			t.Errorf("Expected %s to be skipped, got %s", item.ArticleID, item.Outcome.Status)
		}
	}
	if n := len(store.enhanced()); n != 3 {
		t.Errorf("Expected three enhanced articles, got %d", n)
	}
}

func TestBatchListFailure(t *testing.T) {
	store := threeOriginals()
	store.listErr = errors.New("connection refused")
	b, _ := newTestBatch(store, &fakeEnhancer{})

	if _, err := b.Run(context.Background()); err == nil {
		t.Error("Expected listing failure to be returned")
	}
}

type fakeEnhancer struct {
	calls  []string
	onCall func(id string)
	panics bool
}

func (f *fakeEnhancer) Enhance(_ context.Context, id string) Outcome {
	f.calls = append(f.calls, id)
	if f.onCall != nil {
		f.onCall(id)
	}
	if f.panics {
		panic("nil map write")
	}
	return Outcome{Status: StatusEnhanced, ArticleID: id}
}

func TestBatchStopsBetweenItemsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	enhancer := &fakeEnhancer{onCall: func(string) { cancel() }}
	b, _ := newTestBatch(threeOriginals(), enhancer)

	report, err := b.Run(ctx)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !report.Canceled || report.Attempted != 1 || len(enhancer.calls) != 1 {
		t.Errorf("Expected run to stop after the first item, got canceled=%v attempted=%d calls=%v",
			report.Canceled, report.Attempted, enhancer.calls)
	}
}

func TestBatchRecoversPanics(t *testing.T) {
	enhancer := &fakeEnhancer{panics: true}
	b, _ := newTestBatch(threeOriginals(), enhancer)

	report, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if report.Failed != 3 || len(enhancer.calls) != 3 {
		t.Errorf("Expected every item to fail and be attempted, got failed=%d calls=%d", report.Failed, len(enhancer.calls))
	}
	if msg := report.Items[0].Outcome.Message(); msg != "Failed: panic: nil map write" {
		t.Errorf("Unexpected message %q", msg)
	}
}

func TestEnhanceOnce(t *testing.T) {
	store := threeOriginals()
	o, _ := newTestOrchestrator(store, &fakeFinder{}, twoPages(), &fakeSynthesizer{})

	first := EnhanceOnce(context.Background(), store, o, idOne)
	if !first.Succeeded() {
		t.Fatalf("Expected first run to enhance, got %s", first.Message())
	}

	enhancer := &fakeEnhancer{}
	second := EnhanceOnce(context.Background(), store, enhancer, idOne)
	if second.Status != StatusSkipped || second.NewArticleID != first.NewArticleID || !errors.Is(second.Err, core.ErrAlreadyEnhanced) {
		t.Errorf("Expected second run to be skipped, got %+v", second)
	}
	if len(enhancer.calls) != 0 {
		t.Errorf("Expected no enhancement for an enhanced original, got %v", enhancer.calls)
	}
	if len(store.enhanced()) != 1 {
		t.Errorf("Expected exactly one enhanced child, got %d", len(store.enhanced()))
	}
}
