package relevance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"NewsletterDigest/internal/domain"
	"NewsletterDigest/internal/ports"
	"NewsletterDigest/internal/ratelimit"
	"NewsletterDigest/internal/similarity"
)

const expandPrompt = `Expand each of the following queries into a concise set of the most relevant technical terms.
For each query, focus only on:
1. The exact input term
2. Its most common abbreviations or alternative names
3. Core concepts that are directly and strongly associated with the input

Rules:
- Limit the expansion of each query to 5-7 terms
- Include only technical terms directly related to each input
- Exclude broader categories, related tools, or concepts that are not core to the input
- Separate terms with a comma

Answer with a JSON object that has the original query as the key, for example:
{"React": "React, React.js, ReactJS, JSX, Virtual DOM", "Python": "Python, Py, CPython, PyPy, GIL, PEP"}

Queries to expand:
%s`

// Deps wires the scorer's collaborators.
type Deps struct {
	Chat     ports.ChatClient
	Limiter  *ratelimit.Limiter
	Engine   *similarity.Engine
	MinScore float64
	Logger   *slog.Logger
}

// Scorer computes hybrid embedding and keyword relevance against criteria.
type Scorer struct {
	chat     ports.ChatClient
	limiter  *ratelimit.Limiter
	engine   *similarity.Engine
	minScore float64
	logger   *slog.Logger
}

func New(deps Deps) *Scorer {
	return &Scorer{
		chat:     deps.Chat,
		limiter:  deps.Limiter,
		engine:   deps.Engine,
		minScore: deps.MinScore,
		logger:   deps.Logger,
	}
}

// MinScore returns the inclusive relevance threshold.
func (s *Scorer) MinScore() float64 { return s.minScore }

// Expand asks the model for related terms of every criterion in one call.
// Each expansion starts with the criterion itself; on failure it is the only term.
func (s *Scorer) Expand(ctx context.Context, criteria []string) map[string][]string {
	out := make(map[string][]string, len(criteria))
	for _, c := range criteria {
		out[c] = []string{c}
	}
	if len(criteria) == 0 || s.chat == nil {
		return out
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		s.warn("expand criteria", "error", err)
		return out
	}
	response, err := s.chat.Complete(ctx, domain.CompletionRequest{
		Prompt:      fmt.Sprintf(expandPrompt, strings.Join(criteria, "\n")),
		Temperature: 0.1,
		JSON:        true,
	})
	if err != nil {
		s.warn("expand criteria", "error", err)
		return out
	}

	parsed, err := parseExpansions(response)
	if err != nil {
		s.warn("parse criteria expansions", "error", err)
		return out
	}

	for _, c := range criteria {
		terms, ok := lookupFold(parsed, c)
		if !ok {
			continue
		}
		out[c] = mergeTerms(c, terms)
	}
	s.debug("expanded criteria", "expansions", out)
	return out
}

// Score returns 0.5*cos(article, terms) + 0.5*keywordHit, clamped to [0,1],
// and the article embedding.
func (s *Scorer) Score(ctx context.Context, article domain.Article, terms []string) (float64, []float32, error) {
	text := article.Text()
	articleVec, err := s.engine.Embed(ctx, text)
	if err != nil {
		return 0, nil, fmt.Errorf("embed article: %w", err)
	}
	termsVec, err := s.engine.Embed(ctx, strings.Join(terms, " "))
	if err != nil {
		return 0, nil, fmt.Errorf("embed criteria terms: %w", err)
	}

	score := Combine(similarity.Cosine(articleVec, termsVec), KeywordHit(text, terms))
	return score, articleVec, nil
}

// Reset forgets the embeddings memoized by earlier runs.
func (s *Scorer) Reset() { s.engine.Reset() }

// Relevant reports whether score passes the threshold (inclusive).
func (s *Scorer) Relevant(score float64) bool {
	return score >= s.minScore
}

// Attach scores the article against every criterion and keeps the relevant
// ones, rounded to two decimals and sorted by score descending. It returns the
// article embedding for deduplication.
func (s *Scorer) Attach(ctx context.Context, article domain.Article, expansions map[string][]string) (domain.Article, []float32, error) {
	names := make([]string, 0, len(expansions))
	for name := range expansions {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		embedding []float32
		attached  []domain.Criterion
	)
	for _, name := range names {
		terms := expansions[name]
		if len(terms) == 0 {
			terms = []string{name}
		}
		score, vec, err := s.Score(ctx, article, terms)
		if err != nil {
			return article, nil, fmt.Errorf("score %q: %w", name, err)
		}
		embedding = vec
		if !s.Relevant(score) {
			continue
		}
		attached = append(attached, domain.Criterion{Name: name, Score: round2(score)})
	}

	if embedding == nil {
		vec, err := s.engine.Embed(ctx, article.Text())
		if err != nil {
			return article, nil, fmt.Errorf("embed article: %w", err)
		}
		embedding = vec
	}

	sort.SliceStable(attached, func(i, j int) bool { return attached[i].Score > attached[j].Score })
	article.Criteria = attached
	return article, embedding, nil
}

// Combine mixes cosine similarity and keyword hit with equal weights.
func Combine(cosine float64, keywordHit bool) float64 {
	score := 0.5 * cosine
	if keywordHit {
		score += 0.5
	}
	return math.Max(0, math.Min(1, score))
}

// KeywordHit reports whether any term occurs in text, ignoring case.
func KeywordHit(text string, terms []string) bool {
	lower := strings.ToLower(text)
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term != "" && strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func parseExpansions(response string) (map[string][]string, error) {
	start := strings.IndexByte(response, '{')
	end := strings.LastIndexByte(response, '}')
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no json object in response")
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(response[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("decode expansions: %w", err)
	}

	out := make(map[string][]string, len(raw))
	for key, value := range raw {
		var joined string
		if err := json.Unmarshal(value, &joined); err == nil {
			out[key] = strings.Split(joined, ",")
			continue
		}
		var list []string
		if err := json.Unmarshal(value, &list); err == nil {
			out[key] = list
		}
	}
	return out, nil
}

func lookupFold(m map[string][]string, key string) ([]string, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

func mergeTerms(criterion string, terms []string) []string {
	out := []string{criterion}
	seen := map[string]struct{}{strings.ToLower(criterion): {}}
	for _, t := range terms {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}

func (s *Scorer) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *Scorer) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
