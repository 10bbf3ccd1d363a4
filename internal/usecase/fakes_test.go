package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"NewsletterDigest/internal/domain"
)

type fakeSource struct {
	messages []domain.Message
	err      error
}

func (f *fakeSource) Fetch(context.Context) ([]domain.Message, error) {
	return f.messages, f.err
}

type fakeExtractor struct {
	mu    sync.Mutex
	calls int
	byUID map[string][]domain.Article
}

func (f *fakeExtractor) Extract(_ context.Context, msg domain.Message) []domain.Article {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.byUID[msg.UID]
}

// fakeScorer scores 0.9 for a criterion whose name appears in the title and
// hands out embeddings keyed by title.
type fakeScorer struct {
	vectors   map[string][]float32
	failTitle string
	expanded  int
}

func (f *fakeScorer) Expand(_ context.Context, names []string) map[string][]string {
	f.expanded++
	out := make(map[string][]string, len(names))
	for _, n := range names {
		out[n] = []string{n}
	}
	return out
}

func (f *fakeScorer) Attach(_ context.Context, a domain.Article, expansions map[string][]string) (domain.Article, []float32, error) {
	if a.Title == f.failTitle {
		return a, nil, errors.New("embedding provider down")
	}
	var attached []domain.Criterion
	for name := range expansions {
		if strings.Contains(strings.ToLower(a.Title), strings.ToLower(name)) {
			attached = append(attached, domain.Criterion{Name: name, Score: 0.9})
		}
	}
	sort.Slice(attached, func(i, j int) bool { return attached[i].Name < attached[j].Name })
	a.Criteria = attached
	vec, ok := f.vectors[a.Title]
	if !ok {
		vec = []float32{float32(len(a.Title)), 1, 0}
	}
	return a, vec, nil
}

type memRepo struct {
	mu       sync.Mutex
	articles []domain.Article
	saveErr  map[string]error
	updates  map[int64]string
}

func (m *memRepo) Save(_ context.Context, a domain.Article) (domain.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.saveErr[a.URL]; err != nil {
		return domain.Article{}, err
	}
	for _, existing := range m.articles {
		if existing.URL == a.URL {
			return existing, nil
		}
	}
	a.ID = int64(len(m.articles) + 1)
	a.Embedding = nil
	m.articles = append(m.articles, a)
	return a, nil
}

func (m *memRepo) Query(_ context.Context, since time.Time, limit int) ([]domain.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Article
	for _, a := range m.articles {
		if since.IsZero() || !a.EmailTime.Before(since) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EmailTime.After(out[j].EmailTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memRepo) UpdateRawContent(_ context.Context, id int64, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.articles {
		if m.articles[i].ID == id {
			if m.updates == nil {
				m.updates = map[int64]string{}
			}
			m.updates[id] = content
			m.articles[i].RawContent = content
			return nil
		}
	}
	return errors.New("article not found")
}

type fakeNotifier struct {
	digests []string
}

func (f *fakeNotifier) PublishDigest(_ context.Context, digest string) error {
	f.digests = append(f.digests, digest)
	return nil
}
