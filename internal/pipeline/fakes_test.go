package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"articleforge/internal/core"
	"articleforge/internal/search"
)

// memStore is an in-memory ArticleStore with the same uniqueness rules as the database
type memStore struct {
	mu       sync.Mutex
	articles []*core.Article
	listErr  error
	// failCreate, when set, can reject a create before it is stored
	failCreate func(*core.Article) error
	gets       int
}

func newMemStore(articles ...*core.Article) *memStore {
	s := &memStore{}
	for _, a := range articles {
		cp := *a
		s.articles = append(s.articles, &cp)
	}
	return s
}

func (s *memStore) Get(_ context.Context, id string) (*core.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	for _, a := range s.articles {
		if a.ID == id {
			cp := *a
			return &cp, nil
		}
	}
	return nil, core.ErrNotFound
}

func (s *memStore) List(_ context.Context, filter core.ListFilter) ([]core.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	filter = filter.Normalize()
	var out []core.Article
	for _, a := range s.articles {
		if filter.Type != core.ArticleTypeAll && a.Type != filter.Type {
			continue
		}
		out = append(out, *a)
		if len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (s *memStore) Create(_ context.Context, article *core.Article) (*core.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate != nil {
		if err := s.failCreate(article); err != nil {
			return nil, err
		}
	}

	cp := *article
	cp.Normalize()
	if err := cp.Validate(); err != nil {
		return nil, err
	}
	for _, a := range s.articles {
		if a.Slug == cp.Slug {
			return nil, core.ErrConflict
		}
		if cp.ParentID != nil && a.ParentID != nil && *a.ParentID == *cp.ParentID {
			return nil, core.ErrConflict
		}
	}
	cp.ID = core.NewID()
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	s.articles = append(s.articles, &cp)
	out := cp
	return &out, nil
}

func (s *memStore) EnhancedVersion(_ context.Context, originalID string) (*core.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.articles {
		if a.ParentID != nil && *a.ParentID == originalID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) enhanced() []core.Article {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Article
	for _, a := range s.articles {
		if a.IsEnhanced() {
			out = append(out, *a)
		}
	}
	return out
}

type fakeFinder struct {
	candidates []search.Candidate
	err        error
	calls      int
}

func (f *fakeFinder) Find(_ context.Context, _ string, n int) ([]search.Candidate, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.candidates) > n {
		return f.candidates[:n], nil
	}
	return f.candidates, nil
}

type fakeExtractor struct {
	mu    sync.Mutex
	pages map[string]*core.ExtractedPage
	calls []string
}

func (f *fakeExtractor) Extract(_ context.Context, url string) (*core.ExtractedPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	page, ok := f.pages[url]
	if !ok {
		return nil, errors.New("navigation timeout")
	}
	cp := *page
	return &cp, nil
}

type fakeSynthesizer struct {
	result *core.EnhancementResult
	err    error
	calls  int
}

func (f *fakeSynthesizer) Synthesize(_ context.Context, article *core.Article, _ []core.ExtractedPage) (*core.EnhancementResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &core.EnhancementResult{Title: article.Title, Content: article.Content, Meta: core.Meta{Keywords: []string{}}}, nil
}

// noWait records requested delays without sleeping
type noWait struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (w *noWait) wait(ctx context.Context, d time.Duration) error {
	w.mu.Lock()
	w.delays = append(w.delays, d)
	w.mu.Unlock()
	return ctx.Err()
}

func original(id, title, slug string) *core.Article {
	return &core.Article{
		ID:          id,
		Title:       title,
		Slug:        slug,
		Author:      "BeyondChats Team",
		Content:     "<p>Original body for " + title + "</p>",
		OriginalURL: "https://beyondchats.com/blogs/" + slug + "/",
		Type:        core.ArticleTypeOriginal,
		References:  []core.Reference{},
		Meta:        core.Meta{Keywords: []string{}},
	}
}
