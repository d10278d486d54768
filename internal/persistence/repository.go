package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"articleforge/internal/core"
)

var articleColumns = []string{
	"id", "title", "slug", "author", "publish_date", "content", "original_url",
	"parent_article_id", "article_type", "references_json", "meta_description",
	"meta_keywords", "created_at", "updated_at",
}

// Repository is the database-backed article store
type Repository struct {
	db     *sql.DB
	driver string
	sb     sq.StatementBuilderType
	now    func() time.Time
}

// NewRepository creates a Repository on an open database
func NewRepository(db *sql.DB, driver string) (*Repository, error) {
	format, err := placeholder(driver)
	if err != nil {
		return nil, err
	}
	return &Repository{
		db:     db,
		driver: driver,
		sb:     sq.StatementBuilder.PlaceholderFormat(format),
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Create validates and inserts article. The stored copy, with its new ID and
// timestamps, is returned.
func (r *Repository) Create(ctx context.Context, article *core.Article) (*core.Article, error) {
	a := *article
	a.Normalize()
	if a.ParentID != nil {
		parent := core.NormalizeID(*a.ParentID)
		a.ParentID = &parent
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if a.ParentID != nil {
		if _, err := r.Get(ctx, *a.ParentID); err != nil {
			if errors.Is(err, core.ErrNotFound) {
				return nil, &core.ValidationError{Fields: map[string]string{"parent_article_id": "Parent article not found"}}
			}
			return nil, err
		}
	}

	a.ID = core.NewID()
	a.CreatedAt = r.now()
	a.UpdatedAt = a.CreatedAt
	a.Deleted = false

	refs, keywords, err := encodeLists(&a)
	if err != nil {
		return nil, err
	}

	query, args, err := r.sb.Insert("articles").
		Columns(articleColumns...).
		Values(a.ID, a.Title, a.Slug, a.Author, nullTime(a.PublishDate), a.Content, a.OriginalURL,
			nullString(a.ParentID), string(a.Type), refs, a.Meta.Description, keywords,
			a.CreatedAt, a.UpdatedAt).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build insert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return nil, mapError(err)
	}
	return &a, nil
}

// Get returns a live article by ID
func (r *Repository) Get(ctx context.Context, id string) (*core.Article, error) {
	if !core.IsValidID(id) {
		return nil, core.ErrInvalidID
	}
	return r.getOne(ctx, sq.Eq{"id": core.NormalizeID(id)})
}

// GetBySlug returns a live article by slug
func (r *Repository) GetBySlug(ctx context.Context, slug string) (*core.Article, error) {
	return r.getOne(ctx, sq.Eq{"slug": strings.ToLower(strings.TrimSpace(slug))})
}

// EnhancedVersion returns the live enhanced child of originalID, or nil when there is none
func (r *Repository) EnhancedVersion(ctx context.Context, originalID string) (*core.Article, error) {
	if !core.IsValidID(originalID) {
		return nil, core.ErrInvalidID
	}
	a, err := r.getOne(ctx, sq.Eq{
		"parent_article_id": core.NormalizeID(originalID),
		"article_type":      string(core.ArticleTypeEnhanced),
	})
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	return a, err
}

func (r *Repository) getOne(ctx context.Context, where sq.Sqlizer) (*core.Article, error) {
	query, args, err := r.sb.Select(articleColumns...).
		From("articles").
		Where(where).
		Where(sq.Eq{"deleted": false}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	a, err := scanArticle(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// List returns one page of live articles
func (r *Repository) List(ctx context.Context, filter core.ListFilter) ([]core.Article, error) {
	f := filter.Normalize()
	query, args, err := r.sb.Select(articleColumns...).
		From("articles").
		Where(listWhere(f)).
		OrderBy(orderBy(f.Sort), "created_at DESC").
		Limit(uint64(f.Limit)).
		Offset(uint64((f.Page - 1) * f.Limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list: %w", err)
	}
	return r.query(ctx, query, args...)
}

// Count returns how many live articles match the filter, ignoring paging
func (r *Repository) Count(ctx context.Context, filter core.ListFilter) (int, error) {
	f := filter.Normalize()
	query, args, err := r.sb.Select("COUNT(*)").From("articles").Where(listWhere(f)).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count: %w", err)
	}
	var total int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count articles: %w", err)
	}
	return total, nil
}

// Search matches q case-insensitively against titles and bodies
func (r *Repository) Search(ctx context.Context, q string, limit int) ([]core.Article, error) {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return []core.Article{}, nil
	}
	if limit <= 0 || limit > core.MaxPageLimit {
		limit = core.DefaultPageLimit
	}

	pattern := "%" + q + "%"
	query, args, err := r.sb.Select(articleColumns...).
		From("articles").
		Where(sq.Eq{"deleted": false}).
		Where(sq.Or{
			sq.Like{"LOWER(title)": pattern},
			sq.Like{"LOWER(content)": pattern},
		}).
		OrderBy(orderBy(core.DefaultSort), "created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build search: %w", err)
	}
	return r.query(ctx, query, args...)
}

// Update overwrites the mutable fields of a live article. ID and creation
// time are kept.
func (r *Repository) Update(ctx context.Context, article *core.Article) (*core.Article, error) {
	if !core.IsValidID(article.ID) {
		return nil, core.ErrInvalidID
	}
	existing, err := r.Get(ctx, article.ID)
	if err != nil {
		return nil, err
	}

	a := *article
	a.ID = existing.ID
	a.CreatedAt = existing.CreatedAt
	a.Normalize()
	if err := a.Validate(); err != nil {
		return nil, err
	}
	a.UpdatedAt = r.now()

	refs, keywords, err := encodeLists(&a)
	if err != nil {
		return nil, err
	}

	query, args, err := r.sb.Update("articles").
		SetMap(map[string]interface{}{
			"title":             a.Title,
			"slug":              a.Slug,
			"author":            a.Author,
			"publish_date":      nullTime(a.PublishDate),
			"content":           a.Content,
			"original_url":      a.OriginalURL,
			"parent_article_id": nullString(a.ParentID),
			"article_type":      string(a.Type),
			"references_json":   refs,
			"meta_description":  a.Meta.Description,
			"meta_keywords":     keywords,
			"updated_at":        a.UpdatedAt,
		}).
		Where(sq.Eq{"id": a.ID, "deleted": false}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build update: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, core.ErrNotFound
	}
	return &a, nil
}

// Delete soft-deletes an article together with its enhanced children
func (r *Repository) Delete(ctx context.Context, id string) error {
	if !core.IsValidID(id) {
		return core.ErrInvalidID
	}
	id = core.NormalizeID(id)
	now := r.now()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query, args, err := r.sb.Update("articles").
		Set("deleted", true).
		Set("updated_at", now).
		Where(sq.Eq{"id": id, "deleted": false}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete: %w", err)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete article: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrNotFound
	}

	query, args, err = r.sb.Update("articles").
		Set("deleted", true).
		Set("updated_at", now).
		Where(sq.Eq{"parent_article_id": id, "deleted": false}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build cascade delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete enhanced versions: %w", err)
	}

	return tx.Commit()
}

// Ping checks the database connection
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the underlying database
func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) query(ctx context.Context, query string, args ...interface{}) ([]core.Article, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}
	defer rows.Close()

	articles := []core.Article{}
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return articles, nil
}

func listWhere(f core.ListFilter) sq.Sqlizer {
	where := sq.Eq{"deleted": false}
	if f.Type != core.ArticleTypeAll {
		where["article_type"] = string(f.Type)
	}
	return where
}

// orderBy turns a normalized sort key such as "-publish_date" into SQL
func orderBy(sort string) string {
	if strings.HasPrefix(sort, "-") {
		return strings.TrimPrefix(sort, "-") + " DESC"
	}
	return sort + " ASC"
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanArticle(row rowScanner) (*core.Article, error) {
	var (
		a        core.Article
		publish  sql.NullTime
		parent   sql.NullString
		kind     string
		refs     string
		keywords string
	)
	err := row.Scan(&a.ID, &a.Title, &a.Slug, &a.Author, &publish, &a.Content, &a.OriginalURL,
		&parent, &kind, &refs, &a.Meta.Description, &keywords, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan article: %w", err)
	}

	a.ID = strings.TrimSpace(a.ID)
	a.Type = core.ArticleType(kind)
	if publish.Valid {
		t := publish.Time.UTC()
		a.PublishDate = &t
	}
	if parent.Valid {
		p := strings.TrimSpace(parent.String)
		a.ParentID = &p
	}
	if err := json.Unmarshal([]byte(refs), &a.References); err != nil {
		return nil, fmt.Errorf("failed to decode references of %s: %w", a.ID, err)
	}
	if err := json.Unmarshal([]byte(keywords), &a.Meta.Keywords); err != nil {
		return nil, fmt.Errorf("failed to decode keywords of %s: %w", a.ID, err)
	}
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	a.Normalize()
	return &a, nil
}

func encodeLists(a *core.Article) (refs, keywords string, err error) {
	rb, err := json.Marshal(a.References)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode references: %w", err)
	}
	kb, err := json.Marshal(a.Meta.Keywords)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode keywords: %w", err)
	}
	return string(rb), string(kb), nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
