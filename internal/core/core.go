package core

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// ArticleType tags an article as scraped from the source blog or derived from one.
type ArticleType string

const (
	ArticleTypeOriginal ArticleType = "original"
	ArticleTypeEnhanced ArticleType = "enhanced"
	// ArticleTypeAll is only meaningful as a list filter.
	ArticleTypeAll ArticleType = "all"
)

// Valid reports whether t is a storable article type.
func (t ArticleType) Valid() bool {
	return t == ArticleTypeOriginal || t == ArticleTypeEnhanced
}

// DefaultAuthor is stored when an article arrives without an author.
const DefaultAuthor = "Unknown"

// Reference is an external article that informed an enhanced rewrite.
type Reference struct {
	Title  string `json:"title"`
	URL    string `json:"url"`
	Source string `json:"source"` // host name without a leading www.
}

// Meta carries SEO metadata produced by the synthesizer.
type Meta struct {
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
}

// Article is a stored content item, either an original or an enhanced derivative.
type Article struct {
	ID          string      `json:"_id"`
	Title       string      `json:"title"`
	Slug        string      `json:"slug"`
	Author      string      `json:"author"`
	PublishDate *time.Time  `json:"publish_date,omitempty"`
	Content     string      `json:"content"`
	OriginalURL string      `json:"original_url"`
	ParentID    *string     `json:"parent_article_id"`
	Type        ArticleType `json:"article_type"`
	References  []Reference `json:"references"`
	Meta        Meta        `json:"meta"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
	Deleted     bool        `json:"-"`
}

// IsEnhanced reports whether the article was produced by the enhancement pipeline.
func (a *Article) IsEnhanced() bool {
	return a.Type == ArticleTypeEnhanced
}

// EnhancementResult is the synthesizer's rewrite, consumed immediately to build an enhanced Article.
type EnhancementResult struct {
	Title   string
	Content string
	Meta    Meta
}

// ExtractedPage is the plain-text digest of an external page.
type ExtractedPage struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	URL     string `json:"url"`
	Source  string `json:"source"`
}

// Reference returns the page as it is recorded on an enhanced article.
func (p ExtractedPage) Reference() Reference {
	return Reference{Title: p.Title, URL: p.URL, Source: p.Source}
}

const (
	maxTitleLength           = 500
	maxMetaDescriptionLength = 300
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Normalize fills defaults that the store applies on create.
func (a *Article) Normalize() {
	a.Title = strings.TrimSpace(a.Title)
	a.Author = strings.TrimSpace(a.Author)
	if a.Author == "" {
		a.Author = DefaultAuthor
	}
	a.Slug = strings.ToLower(strings.TrimSpace(a.Slug))
	if a.Slug == "" && a.Title != "" {
		a.Slug = Slugify(a.Title)
	}
	if a.Type == "" {
		a.Type = ArticleTypeOriginal
	}
	if a.References == nil {
		a.References = []Reference{}
	}
	if a.Meta.Keywords == nil {
		a.Meta.Keywords = []string{}
	}
}

// Validate checks the article against the storage contract. It returns a
// *ValidationError listing every offending field.
func (a *Article) Validate() error {
	fields := map[string]string{}

	switch n := utf8.RuneCountInString(a.Title); {
	case n == 0:
		fields["title"] = "Title is required"
	case n > maxTitleLength:
		fields["title"] = fmt.Sprintf("Title cannot exceed %d characters", maxTitleLength)
	}
	if a.Slug != "" && !slugPattern.MatchString(a.Slug) {
		fields["slug"] = "Invalid slug format"
	}
	if a.Content == "" {
		fields["content"] = "Content is required"
	}
	if u, err := url.Parse(a.OriginalURL); err != nil || u.Scheme == "" || u.Host == "" {
		fields["original_url"] = "Invalid original URL"
	}
	if !a.Type.Valid() {
		fields["article_type"] = "Article type must be original or enhanced"
	}
	if a.ParentID != nil && !IsValidID(*a.ParentID) {
		fields["parent_article_id"] = "Invalid parent article ID"
	}
	if a.Type == ArticleTypeEnhanced && a.ParentID == nil {
		fields["parent_article_id"] = "Enhanced articles require a parent article"
	}
	if a.Type == ArticleTypeOriginal && a.ParentID != nil {
		fields["parent_article_id"] = "Original articles cannot have a parent article"
	}
	if utf8.RuneCountInString(a.Meta.Description) > maxMetaDescriptionLength {
		fields["meta.description"] = fmt.Sprintf("Meta description cannot exceed %d characters", maxMetaDescriptionLength)
	}
	for i, ref := range a.References {
		if ref.URL == "" {
			continue
		}
		if u, err := url.Parse(ref.URL); err != nil || u.Scheme == "" || u.Host == "" {
			fields[fmt.Sprintf("references[%d].url", i)] = "Invalid reference URL"
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// ListFilter selects a page of articles.
type ListFilter struct {
	Type  ArticleType
	Page  int
	Limit int
	Sort  string // field name, "-" prefix for descending
}

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
	DefaultSort      = "-publish_date"
)

var sortPattern = regexp.MustCompile(`^-?(title|publish_date|created_at|updated_at)$`)

// Normalize applies defaults and clamps out-of-range values.
func (f ListFilter) Normalize() ListFilter {
	if f.Type == "" {
		f.Type = ArticleTypeAll
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultPageLimit
	}
	if f.Limit > MaxPageLimit {
		f.Limit = MaxPageLimit
	}
	if !sortPattern.MatchString(f.Sort) {
		f.Sort = DefaultSort
	}
	return f
}

// Pagination describes where a page sits in the full result set.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
}

// NewPagination computes page counts for a filter and a total row count.
func NewPagination(f ListFilter, total int) Pagination {
	pages := 0
	if f.Limit > 0 {
		pages = (total + f.Limit - 1) / f.Limit
	}
	return Pagination{Page: f.Page, Limit: f.Limit, TotalItems: total, TotalPages: pages}
}
