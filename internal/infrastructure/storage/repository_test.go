package storage

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsletterDigest/internal/domain"
)

func newTestRepository(t *testing.T) *SQLRepository {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Migrate(context.Background(), db, SQLite))
	return NewSQLRepository(db, SQLite)
}

func sample(url string, at time.Time) domain.Article {
	return domain.Article{
		Title:        "Generics in practice",
		Description:  "A tour of type parameters.",
		URL:          url,
		Criteria:     []domain.Criterion{{Name: "golang", Score: 0.82}},
		RawContent:   "body",
		SourceDomain: "golangweekly.com",
		EmailUID:     "42",
		EmailTime:    at,
		Embedding:    []float32{1, 2},
	}
}

func TestSaveIsIdempotentByURL(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t)
	ctx := context.Background()
	at := time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)

	first, err := repo.Save(ctx, sample("https://go.dev/blog/generics", at))
	require.NoError(t, err)
	require.NotZero(t, first.ID)
	assert.Nil(t, first.Embedding)

	dup := sample("https://go.dev/blog/generics", at.Add(time.Hour))
	dup.Title = "Different title"
	second, err := repo.Save(ctx, dup)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Generics in practice", second.Title)
	assert.Equal(t, []domain.Criterion{{Name: "golang", Score: 0.82}}, second.Criteria)

	all, err := repo.Query(ctx, time.Time{}, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestConcurrentSavesKeepOneRow(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t)
	ctx := context.Background()
	at := time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	ids := make([]int64, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := repo.Save(ctx, sample("https://go.dev/blog/race", at))
			if assert.NoError(t, err) {
				ids[i] = a.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	all, err := repo.Query(ctx, time.Time{}, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestQueryOrdersNewestFirstAndFiltersBySince(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	for i, url := range []string{"https://a.dev/1", "https://a.dev/2", "https://a.dev/3"} {
		_, err := repo.Save(ctx, sample(url, base.Add(time.Duration(i)*24*time.Hour)))
		require.NoError(t, err)
	}

	all, err := repo.Query(ctx, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "https://a.dev/3", all[0].URL)
	assert.Equal(t, "https://a.dev/1", all[2].URL)
	assert.True(t, all[0].EmailTime.Equal(base.Add(48*time.Hour)))

	recent, err := repo.Query(ctx, base.Add(24*time.Hour), 0)
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	limited, err := repo.Query(ctx, time.Time{}, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "https://a.dev/3", limited[0].URL)
}

func TestUpdateRawContent(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t)
	ctx := context.Background()

	saved, err := repo.Save(ctx, sample("https://go.dev/doc", time.Now()))
	require.NoError(t, err)

	require.NoError(t, repo.UpdateRawContent(ctx, saved.ID, "clean body"))
	all, err := repo.Query(ctx, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "clean body", all[0].RawContent)

	err = repo.UpdateRawContent(ctx, saved.ID+100, "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDialectFor(t *testing.T) {
	t.Parallel()

	d, err := DialectFor("postgresql")
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Driver)

	d, err = DialectFor("")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", d.Driver)

	_, err = DialectFor("oracle")
	assert.Error(t, err)
}
