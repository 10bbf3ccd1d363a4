package dedup

import (
	"log/slog"
	"sync"

	"NewsletterDigest/internal/domain"
	"NewsletterDigest/internal/similarity"
)

// DefaultThreshold is the cosine similarity above which two articles are the same story.
const DefaultThreshold = 0.95

type entry struct {
	article   domain.Article
	embedding []float32
}

// Registry holds the embeddings accepted during one run. Construct one per
// run and discard it afterwards.
type Registry struct {
	threshold float64
	logger    *slog.Logger

	mu      sync.Mutex
	entries []entry
}

// NewRegistry builds an empty registry; threshold <= 0 selects DefaultThreshold.
func NewRegistry(threshold float64, logger *slog.Logger) *Registry {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Registry{threshold: threshold, logger: logger}
}

// CheckAndRegister reports whether article duplicates an accepted one. When it
// does not, the article is registered, so call it exactly once per candidate.
func (r *Registry) CheckAndRegister(article domain.Article, embedding []float32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		sim := similarity.Cosine(embedding, e.embedding)
		if sim > r.threshold {
			r.debug("duplicate article", "title", article.Title, "duplicate_of", e.article.Title, "similarity", sim)
			return true
		}
	}

	r.entries = append(r.entries, entry{article: article, embedding: embedding})
	return false
}

// Len returns the number of accepted articles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Reset forgets every accepted article.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.entries = nil
	r.mu.Unlock()
}

func (r *Registry) debug(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}
