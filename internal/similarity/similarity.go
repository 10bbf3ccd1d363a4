package similarity

import (
	"context"
	"fmt"
	"math"
	"sync"

	"NewsletterDigest/internal/ports"
)

// Engine embeds text through the configured provider and memoizes results
// until Reset.
type Engine struct {
	embedder ports.Embedder

	mu    sync.Mutex
	cache map[string][]float32
}

// NewEngine wraps an embedding provider.
func NewEngine(embedder ports.Embedder) *Engine {
	return &Engine{embedder: embedder, cache: map[string][]float32{}}
}

// Embed returns the vector for text, reusing earlier results for identical input.
func (e *Engine) Embed(ctx context.Context, text string) ([]float32, error) {
	if e == nil || e.embedder == nil {
		return nil, fmt.Errorf("embedding provider is not configured")
	}

	e.mu.Lock()
	if vec, ok := e.cache[text]; ok {
		e.mu.Unlock()
		return vec, nil
	}
	e.mu.Unlock()

	vec, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed text: %w", err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("embed text: empty vector")
	}

	e.mu.Lock()
	e.cache[text] = vec
	e.mu.Unlock()
	return vec, nil
}

// Reset drops every memoized vector.
func (e *Engine) Reset() {
	if e == nil {
		return
	}
	e.mu.Lock()
	clear(e.cache)
	e.mu.Unlock()
}

// Cosine computes (a·b)/(‖a‖‖b‖). Mismatched lengths or zero vectors yield 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
