package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"articleforge/internal/core"
)

const maxBodyBytes = 5 << 20

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Articles API",
		"endpoints": map[string]string{
			"articles": "/api/articles",
			"health":   "/api/health",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	message := "API is running"
	if err := s.articles.Ping(ctx); err != nil {
		status = http.StatusServiceUnavailable
		message = "Database unavailable"
	}
	respondJSON(w, status, map[string]interface{}{
		"success":   status == http.StatusOK,
		"message":   message,
		"timestamp": timestamp(),
		"uptime":    time.Since(s.started).Seconds(),
	})
}

// GET /api/articles?page=&limit=&article_type=&sort=
func (s *Server) handleListArticles(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	filter = filter.Normalize()

	articles, err := s.articles.List(r.Context(), filter)
	if err != nil {
		respondError(w, r, err)
		return
	}
	total, err := s.articles.Count(r.Context(), filter)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondPaginated(w, "Articles retrieved successfully", articles, core.NewPagination(filter, total))
}

func parseListFilter(r *http.Request) (core.ListFilter, error) {
	q := r.URL.Query()
	fields := map[string]string{}
	var f core.ListFilter

	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			fields["page"] = "Page must be a positive integer"
		}
		f.Page = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > core.MaxPageLimit {
			fields["limit"] = "Limit must be between 1 and 100"
		}
		f.Limit = n
	}
	if v := q.Get("article_type"); v != "" {
		t := core.ArticleType(v)
		if !t.Valid() && t != core.ArticleTypeAll {
			fields["article_type"] = "Article type must be original, enhanced or all"
		}
		f.Type = t
	}
	f.Sort = q.Get("sort")

	if len(fields) > 0 {
		return f, &core.ValidationError{Fields: fields}
	}
	return f, nil
}

// GET /api/articles/search?q=&limit=
func (s *Server) handleSearchArticles(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		respondSuccess(w, http.StatusOK, "No search query provided", []core.Article{})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	articles, err := s.articles.Search(r.Context(), q, limit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, "Search results retrieved successfully", articles)
}

func (s *Server) handleGetArticleBySlug(w http.ResponseWriter, r *http.Request) {
	article, err := s.articles.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, "Article retrieved successfully", article)
}

func (s *Server) handleGetArticle(w http.ResponseWriter, r *http.Request) {
	id, ok := articleID(w, r)
	if !ok {
		return
	}
	article, err := s.articles.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, "Article retrieved successfully", article)
}

// withEnhanced is the body of GET /api/articles/{id}/with-enhanced
type withEnhanced struct {
	Original *core.Article `json:"original"`
	Enhanced *core.Article `json:"enhanced"`
}

func (s *Server) handleGetArticleWithEnhanced(w http.ResponseWriter, r *http.Request) {
	id, ok := articleID(w, r)
	if !ok {
		return
	}
	original, err := s.articles.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if original.IsEnhanced() {
		respondError(w, r, &apiError{status: http.StatusNotFound, code: "NOT_FOUND", message: "Original article not found"})
		return
	}
	enhanced, err := s.articles.EnhancedVersion(r.Context(), original.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, "Article with enhanced version retrieved successfully",
		withEnhanced{Original: original, Enhanced: enhanced})
}

func (s *Server) handleCreateArticle(w http.ResponseWriter, r *http.Request) {
	var article core.Article
	if err := decodeBody(r, &article); err != nil {
		respondError(w, r, err)
		return
	}
	created, err := s.articles.Create(r.Context(), &article)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusCreated, "Article created successfully", created)
}

// PUT /api/articles/{id} applies the fields present in the body to the stored article
func (s *Server) handleUpdateArticle(w http.ResponseWriter, r *http.Request) {
	id, ok := articleID(w, r)
	if !ok {
		return
	}
	existing, err := s.articles.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	patched := *existing
	if err := decodeBody(r, &patched); err != nil {
		respondError(w, r, err)
		return
	}
	patched.ID = existing.ID

	updated, err := s.articles.Update(r.Context(), &patched)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, "Article updated successfully", updated)
}

func (s *Server) handleDeleteArticle(w http.ResponseWriter, r *http.Request) {
	id, ok := articleID(w, r)
	if !ok {
		return
	}
	if err := s.articles.Delete(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// articleID rejects malformed ids before the repository is touched
func articleID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if !core.IsValidID(id) {
		respondError(w, r, &apiError{status: http.StatusBadRequest, code: "INVALID_ID", message: "Invalid id: " + id})
		return "", false
	}
	return core.NormalizeID(id), true
}

func decodeBody(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return badRequest("Failed to read request body")
	}
	if len(body) == 0 {
		return badRequest("Request body is required")
	}
	if err := json.Unmarshal(body, v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return &core.ValidationError{Fields: map[string]string{typeErr.Field: "Invalid value type"}}
		}
		return badRequest("Malformed JSON body")
	}
	return nil
}
