package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"NewsletterDigest/internal/domain"
	"NewsletterDigest/internal/ports"
)

// ErrNotFound is returned when no article matches.
var ErrNotFound = errors.New("article not found")

var articleColumns = []string{
	"id", "email_uid", "email_time", "title", "description", "url",
	"criteria", "raw_content", "source_domain", "created_at",
}

// SQLRepository persists articles into Postgres or SQLite.
type SQLRepository struct {
	db      *sql.DB
	builder sq.StatementBuilderType
	now     func() time.Time
}

var _ ports.ArticleRepository = (*SQLRepository)(nil)

// NewSQLRepository wires a sql.DB implementation for the given dialect.
func NewSQLRepository(db *sql.DB, dialect Dialect) *SQLRepository {
	return &SQLRepository{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(dialect.Placeholder),
		now:     time.Now,
	}
}

// Save inserts the article unless one with the same URL exists, in which
// case the stored record is returned unchanged.
func (r *SQLRepository) Save(ctx context.Context, article domain.Article) (domain.Article, error) {
	existing, err := r.findByURL(ctx, article.URL)
	switch {
	case err == nil:
		return existing, nil
	case !errors.Is(err, ErrNotFound):
		return domain.Article{}, err
	}

	criteria, err := json.Marshal(nonNil(article.Criteria))
	if err != nil {
		return domain.Article{}, fmt.Errorf("marshal criteria: %w", err)
	}
	createdAt := r.now().UTC()
	emailTime := article.EmailTime
	if emailTime.IsZero() {
		emailTime = createdAt
	}

	query, args, err := r.builder.
		Insert("articles").
		Columns("email_uid", "email_time", "title", "description", "url",
			"criteria", "raw_content", "source_domain", "created_at").
		Values(article.EmailUID, emailTime.UTC(), article.Title, article.Description, article.URL,
			string(criteria), article.RawContent, article.SourceDomain, createdAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return domain.Article{}, fmt.Errorf("build insert: %w", err)
	}

	var id int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		if isUniqueViolation(err) {
			// lost a race with a concurrent writer
			return r.findByURL(ctx, article.URL)
		}
		return domain.Article{}, fmt.Errorf("insert article: %w", err)
	}

	article.ID = id
	article.EmailTime = emailTime.UTC()
	article.CreatedAt = createdAt
	article.Embedding = nil
	return article, nil
}

// Query returns articles received since the given time, newest first.
// A zero since returns everything; limit <= 0 means no limit.
func (r *SQLRepository) Query(ctx context.Context, since time.Time, limit int) ([]domain.Article, error) {
	b := r.builder.Select(articleColumns...).From("articles").OrderBy("email_time DESC", "id DESC")
	if !since.IsZero() {
		b = b.Where(sq.GtOrEq{"email_time": since.UTC()})
	}
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}

	var out []domain.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		out = append(out, a)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return out, nil
}

// UpdateRawContent replaces the stored body text of an article.
func (r *SQLRepository) UpdateRawContent(ctx context.Context, id int64, content string) error {
	query, args, err := r.builder.Update("articles").Set("raw_content", content).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update raw content: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("article %d: %w", id, ErrNotFound)
	}
	return nil
}

func (r *SQLRepository) findByURL(ctx context.Context, url string) (domain.Article, error) {
	query, args, err := r.builder.Select(articleColumns...).From("articles").Where(sq.Eq{"url": url}).Limit(1).ToSql()
	if err != nil {
		return domain.Article{}, fmt.Errorf("build lookup: %w", err)
	}
	a, err := scanArticle(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Article{}, ErrNotFound
	}
	return a, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArticle(row scanner) (domain.Article, error) {
	var (
		a        domain.Article
		criteria string
	)
	err := row.Scan(&a.ID, &a.EmailUID, &a.EmailTime, &a.Title, &a.Description, &a.URL,
		&criteria, &a.RawContent, &a.SourceDomain, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Article{}, err
	}
	if err != nil {
		return domain.Article{}, fmt.Errorf("scan article: %w", err)
	}
	if criteria != "" {
		if err := json.Unmarshal([]byte(criteria), &a.Criteria); err != nil {
			return domain.Article{}, fmt.Errorf("decode criteria of article %d: %w", a.ID, err)
		}
	}
	return a, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}

func nonNil(c []domain.Criterion) []domain.Criterion {
	if c == nil {
		return []domain.Criterion{}
	}
	return c
}
