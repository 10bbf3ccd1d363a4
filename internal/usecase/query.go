package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"NewsletterDigest/internal/criteria"
	"NewsletterDigest/internal/domain"
	"NewsletterDigest/internal/ports"
)

const (
	DefaultListDays = 7
	DefaultPageSize = 10
)

// ErrInvalidDays is returned for a non-positive day window.
var ErrInvalidDays = errors.New("please provide a valid number of days (greater than 0)")

// InvalidCriteriaError reports a criteria filter outside the catalog.
type InvalidCriteriaError struct {
	Valid []string
}

func (e *InvalidCriteriaError) Error() string {
	return "Invalid criteria. Please choose from: " + strings.Join(e.Valid, ", ")
}

// ListRequest selects stored articles. Page is 1-based.
type ListRequest struct {
	Days     int
	All      bool
	Criteria string
	Page     int
}

// Page is one page of a listing.
type Page struct {
	Articles []domain.Article
	Page     int
	Pages    int
	Size     int
	Total    int
}

// Query serves listings and memo drafts over the article store.
type Query struct {
	repository ports.ArticleRepository
	catalog    *criteria.Catalog
	minScore   float64
	pageSize   int
	maxResults int
	now        func() time.Time
}

// QueryDeps wires the listing use case.
type QueryDeps struct {
	Repository ports.ArticleRepository
	Catalog    *criteria.Catalog
	MinScore   float64
	PageSize   int
	MaxResults int
}

func NewQuery(deps QueryDeps) *Query {
	pageSize := deps.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	catalog := deps.Catalog
	if catalog == nil {
		catalog = criteria.New(nil)
	}
	return &Query{
		repository: deps.Repository,
		catalog:    catalog,
		minScore:   deps.MinScore,
		pageSize:   pageSize,
		maxResults: deps.MaxResults,
		now:        time.Now,
	}
}

// List returns articles of the last req.Days days. Unless req.All is set,
// only articles with a criterion at or above the relevance threshold are
// listed. A criteria filter keeps articles scored for it and ranks by that
// score; otherwise articles rank by their best score.
func (q *Query) List(ctx context.Context, req ListRequest) (Page, error) {
	if req.Days < 1 {
		return Page{}, ErrInvalidDays
	}
	name, err := q.resolve(req.Criteria)
	if err != nil {
		return Page{}, err
	}

	articles, err := q.repository.Query(ctx, sinceDays(q.now(), req.Days), 0)
	if err != nil {
		return Page{}, fmt.Errorf("query articles: %w", err)
	}

	filtered := make([]domain.Article, 0, len(articles))
	for _, a := range articles {
		if !req.All && a.TopScore() < q.minScore {
			continue
		}
		if name != "" {
			if _, ok := a.Score(name); !ok {
				continue
			}
		}
		filtered = append(filtered, a)
	}

	if name != "" {
		filtered = rankByCriterion(filtered, name)
	} else {
		sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].TopScore() > filtered[j].TopScore() })
	}

	return q.paginate(filtered, req.Page), nil
}

// Memo drafts a markdown memo of the best articles for one criterion.
func (q *Query) Memo(ctx context.Context, criterion string, days int) (string, error) {
	if days < 1 {
		days = DefaultListDays
	}
	name, err := q.resolve(criterion)
	if err != nil {
		return "", err
	}
	if name == "" {
		return "", &InvalidCriteriaError{Valid: q.catalog.Names()}
	}

	articles, err := q.repository.Query(ctx, sinceDays(q.now(), days), 0)
	if err != nil {
		return "", fmt.Errorf("query articles: %w", err)
	}

	var relevant []domain.Article
	for _, a := range articles {
		if score, ok := a.Score(name); ok && score >= q.minScore {
			relevant = append(relevant, a)
		}
	}
	sections := SelectDigest(relevant, []string{name}, nil, q.maxResults)
	if len(sections) == 0 {
		return "", nil
	}
	return RenderMarkdown(sections), nil
}

func (q *Query) resolve(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil
	}
	canonical, ok := q.catalog.Canonical(name)
	if !ok {
		return "", &InvalidCriteriaError{Valid: q.catalog.Names()}
	}
	return canonical, nil
}

func (q *Query) paginate(articles []domain.Article, page int) Page {
	total := len(articles)
	pages := (total + q.pageSize - 1) / q.pageSize
	if pages == 0 {
		pages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}

	start := (page - 1) * q.pageSize
	end := min(start+q.pageSize, total)
	return Page{
		Articles: articles[start:end],
		Page:     page,
		Pages:    pages,
		Size:     q.pageSize,
		Total:    total,
	}
}
