package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"NewsletterDigest/internal/criteria"
	"NewsletterDigest/internal/domain"
	"NewsletterDigest/internal/ports"
	"NewsletterDigest/internal/ratelimit"
)

const defaultTemperature = 0.1

// Enricher fetches and summarizes an article page. Empty output means
// enrichment is unavailable for that URL.
type Enricher interface {
	Enrich(ctx context.Context, url string) string
}

// Deps wires the extractor's collaborators.
type Deps struct {
	Chat        ports.ChatClient
	Limiter     *ratelimit.Limiter
	Enricher    Enricher
	Catalog     *criteria.Catalog
	MinScore    float64
	Temperature float32
	Logger      *slog.Logger
}

// Extractor turns one newsletter message into article records.
type Extractor struct {
	chat        ports.ChatClient
	limiter     *ratelimit.Limiter
	enricher    Enricher
	catalog     *criteria.Catalog
	minScore    float64
	temperature float32
	logger      *slog.Logger
}

// New constructs an extractor. A nil Enricher disables the second pass.
func New(deps Deps) *Extractor {
	temp := deps.Temperature
	if temp <= 0 {
		temp = defaultTemperature
	}
	return &Extractor{
		chat:        deps.Chat,
		limiter:     deps.Limiter,
		enricher:    deps.Enricher,
		catalog:     deps.Catalog,
		minScore:    deps.MinScore,
		temperature: temp,
		logger:      deps.Logger,
	}
}

// Extract never fails: malformed model output or transport errors yield an
// empty list for the message and are only logged.
func (e *Extractor) Extract(ctx context.Context, msg domain.Message) []domain.Article {
	if e.chat == nil {
		e.warn("chat client is not configured", "uid", msg.UID)
		return nil
	}

	content := FlattenBody(msg.Body())
	if content == "" {
		e.debug("empty message body", "uid", msg.UID, "subject", msg.Subject)
		return nil
	}

	names := e.catalog.Names()
	prompt := buildExtractPrompt(msg.Subject, content, names, e.minScore, domain.MaxDescriptionLength)
	res, err := e.run(ctx, prompt)
	if err != nil {
		e.warn("extract articles", "uid", msg.UID, "subject", msg.Subject, "error", err)
		return nil
	}
	if res.Skipped > 0 {
		e.debug("skipped incomplete articles", "uid", msg.UID, "count", res.Skipped)
	}

	ready, pending := e.partition(res.Articles)
	if len(pending) > 0 {
		ready = append(ready, e.enrich(ctx, pending, names)...)
	}

	articles := toArticles(ready, msg)
	e.debug("extracted articles", "uid", msg.UID, "subject", msg.Subject, "count", len(articles))
	return articles
}

func (e *Extractor) partition(cands []Candidate) (ready, pending []Candidate) {
	for _, c := range cands {
		if e.enricher != nil && (c.NeedEnrichment || strings.TrimSpace(c.Summary) == "") {
			pending = append(pending, c)
			continue
		}
		ready = append(ready, c)
	}
	return ready, pending
}

// enrich crawls pending items and re-extracts them in a second call. The
// placeholders themselves are dropped unless enrichment yields nothing for them.
func (e *Extractor) enrich(ctx context.Context, pending []Candidate, names []string) []Candidate {
	var (
		items    []EnrichedItem
		summary  = map[string]string{}
		fallback []Candidate
	)
	for _, c := range pending {
		text := e.enricher.Enrich(ctx, c.URL)
		if text == "" {
			fallback = append(fallback, c)
			continue
		}
		items = append(items, EnrichedItem{Title: c.Title, URL: c.URL, Summary: text})
		summary[domain.CanonicalURL(c.URL)] = text
	}
	if len(items) == 0 {
		return fallback
	}

	prompt := buildEnrichPrompt(items, names, e.minScore, domain.MaxDescriptionLength)
	res, err := e.run(ctx, prompt)
	if err != nil {
		e.warn("re-extract enriched articles", "count", len(items), "error", err)
		for _, c := range pending {
			if s, ok := summary[domain.CanonicalURL(c.URL)]; ok {
				c.Summary = s
				fallback = append(fallback, c)
			}
		}
		return fallback
	}

	for i := range res.Articles {
		if s, ok := summary[domain.CanonicalURL(res.Articles[i].URL)]; ok {
			res.Articles[i].Summary = s
		}
	}
	return append(fallback, res.Articles...)
}

func (e *Extractor) run(ctx context.Context, prompt string) (Result, error) {
	if err := e.limiter.Acquire(ctx); err != nil {
		return Result{}, fmt.Errorf("wait for rate limit: %w", err)
	}

	response, err := e.chat.Complete(ctx, domain.CompletionRequest{
		System:      systemPrompt,
		Prompt:      prompt,
		Temperature: e.temperature,
		JSON:        true,
	})
	if err != nil {
		return Result{}, fmt.Errorf("complete: %w", err)
	}

	res := Decode(response)
	if !res.OK() {
		return Result{}, res.Err
	}
	return res, nil
}

func toArticles(cands []Candidate, msg domain.Message) []domain.Article {
	seen := map[string]struct{}{}
	articles := make([]domain.Article, 0, len(cands))
	for _, c := range cands {
		if !c.Valid() {
			continue
		}
		canonical := domain.CanonicalURL(c.URL)
		if _, ok := seen[canonical]; ok {
			continue
		}
		seen[canonical] = struct{}{}

		articles = append(articles, domain.Article{
			Title:        strings.TrimSpace(c.Title),
			Description:  domain.TruncateDescription(c.Description),
			URL:          canonical,
			Criteria:     domain.NormalizeCriteria(c.Criteria),
			RawContent:   strings.TrimSpace(c.Summary),
			SourceDomain: domain.DomainOf(msg.From),
			EmailUID:     msg.UID,
			EmailTime:    msg.Date,
		})
	}
	return articles
}

func (e *Extractor) debug(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}

func (e *Extractor) warn(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Warn(msg, args...)
	}
}
