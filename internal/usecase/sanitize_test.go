package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsletterDigest/internal/domain"
)

type upperSanitizer struct {
	got []string
}

// Sanitize upper-cases everything except content containing "keep".
func (u *upperSanitizer) Sanitize(_ context.Context, contents []string) []string {
	u.got = contents
	out := make([]string, len(contents))
	for i, c := range contents {
		if strings.Contains(c, "keep") {
			out[i] = c
			continue
		}
		out[i] = strings.ToUpper(c)
	}
	return out
}

func TestSanitizeRunUpdatesChangedContent(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	repo := &memRepo{}
	for _, a := range []domain.Article{
		{URL: "https://x.dev/1", RawContent: "dirty body", EmailTime: now.Add(-time.Hour)},
		{URL: "https://x.dev/2", RawContent: "keep me", EmailTime: now.Add(-time.Hour)},
		{URL: "https://x.dev/3", RawContent: "  ", EmailTime: now.Add(-time.Hour)},
		{URL: "https://x.dev/4", RawContent: "ancient", EmailTime: now.AddDate(0, 0, -30)},
	} {
		_, err := repo.Save(context.Background(), a)
		require.NoError(t, err)
	}

	san := &upperSanitizer{}
	run := NewSanitizeRun(repo, san, nil)
	run.now = func() time.Time { return now }

	report, err := run.Run(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, SanitizeReport{Considered: 2, Updated: 1}, report)
	assert.Equal(t, []string{"dirty body", "keep me"}, san.got)
	assert.Equal(t, map[int64]string{1: "DIRTY BODY"}, repo.updates)
}

func TestSanitizeRunWholeStore(t *testing.T) {
	t.Parallel()

	repo := &memRepo{}
	_, err := repo.Save(context.Background(), domain.Article{URL: "https://x.dev/old", RawContent: "old", EmailTime: time.Unix(0, 0)})
	require.NoError(t, err)

	report, err := NewSanitizeRun(repo, &upperSanitizer{}, nil).Run(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Updated)
}

func TestSanitizeRunRequiresDependencies(t *testing.T) {
	t.Parallel()

	_, err := NewSanitizeRun(nil, nil, nil).Run(context.Background(), 1)
	assert.Error(t, err)
}
