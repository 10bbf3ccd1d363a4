package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"NewsletterDigest/internal/criteria"
	"NewsletterDigest/internal/dedup"
	"NewsletterDigest/internal/domain"
	"NewsletterDigest/internal/ports"
)

// DefaultWorkers is the extraction pool size.
const DefaultWorkers = 3

// ArticleExtractor turns one message into candidate articles.
type ArticleExtractor interface {
	Extract(ctx context.Context, msg domain.Message) []domain.Article
}

// ArticleScorer expands criteria once per run and attaches relevance scores.
type ArticleScorer interface {
	Expand(ctx context.Context, criteria []string) map[string][]string
	Attach(ctx context.Context, article domain.Article, expansions map[string][]string) (domain.Article, []float32, error)
}

// runScoped is implemented by collaborators that hold state for a single run.
type runScoped interface {
	Reset()
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source         ports.MessageSource
	Extractor      ArticleExtractor
	Scorer         ArticleScorer
	Repository     ports.ArticleRepository
	Notifier       ports.Notifier
	Catalog        *criteria.Catalog
	DedupThreshold float64
	MaxResults     int
	Workers        int
	Logger         *slog.Logger
}

// Pipeline implements the newsletter ingestion workflow.
type Pipeline struct {
	source         ports.MessageSource
	extractor      ArticleExtractor
	scorer         ArticleScorer
	repository     ports.ArticleRepository
	notifier       ports.Notifier
	catalog        *criteria.Catalog
	dedupThreshold float64
	maxResults     int
	workers        int
	logger         *slog.Logger
}

// RunReport summarizes a single pipeline run.
type RunReport struct {
	RunID      string
	Messages   int
	Extracted  int
	Duplicates int
	Unscored   int
	Saved      int
	Failed     int
	Digest     []DigestSection
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	workers := deps.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	catalog := deps.Catalog
	if catalog == nil {
		catalog = criteria.New(nil)
	}
	return &Pipeline{
		source:         deps.Source,
		extractor:      deps.Extractor,
		scorer:         deps.Scorer,
		repository:     deps.Repository,
		notifier:       deps.Notifier,
		catalog:        catalog,
		dedupThreshold: deps.DedupThreshold,
		maxResults:     deps.MaxResults,
		workers:        workers,
		logger:         deps.Logger,
	}
}

type extraction struct {
	msg      domain.Message
	articles []domain.Article
}

// Run fetches unread messages, extracts articles on the worker pool and then
// deduplicates, scores and persists them on the calling goroutine. A digest
// is published when a notifier is configured.
func (p *Pipeline) Run(ctx context.Context, trigger time.Time) (RunReport, error) {
	report := RunReport{RunID: uuid.NewString()}
	if p.source == nil || p.extractor == nil {
		return report, nil
	}
	log := p.log().With("run_id", report.RunID)
	log.Info("pipeline run started", "trigger", trigger.Format(time.RFC3339))

	messages, err := p.source.Fetch(ctx)
	if err != nil {
		return report, fmt.Errorf("fetch messages: %w", err)
	}
	report.Messages = len(messages)
	if len(messages) == 0 {
		log.Info("no new messages")
		return report, nil
	}

	if scoped, ok := p.scorer.(runScoped); ok {
		defer scoped.Reset()
	}
	var expansions map[string][]string
	if p.scorer != nil && p.catalog.Len() > 0 {
		expansions = p.scorer.Expand(ctx, p.catalog.Names())
	}
	registry := dedup.NewRegistry(p.dedupThreshold, log)

	results := make(chan extraction)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	waitErr := make(chan error, 1)
	go func() {
		defer close(results)
		for _, msg := range messages {
			g.Go(func() error {
				articles := p.extractor.Extract(gctx, msg)
				select {
				case results <- extraction{msg: msg, articles: articles}:
					return nil
				case <-gctx.Done():
					return gctx.Err()
				}
			})
		}
		waitErr <- g.Wait()
	}()

	var kept []domain.Article
	for res := range results {
		log.Debug("message extracted", "uid", res.msg.UID, "subject", res.msg.Subject, "articles", len(res.articles))
		report.Extracted += len(res.articles)
		for _, article := range res.articles {
			saved, ok := p.accept(ctx, log, registry, expansions, article, &report)
			if ok {
				kept = append(kept, saved)
			}
		}
	}
	if err := <-waitErr; err != nil && !errors.Is(err, context.Canceled) {
		return report, fmt.Errorf("extract messages: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	report.Digest = SelectDigest(kept, p.catalog.Names(), expansions, p.maxResults)
	log.Info("pipeline run finished",
		"messages", report.Messages,
		"extracted", report.Extracted,
		"duplicates", report.Duplicates,
		"saved", report.Saved,
		"failed", report.Failed)

	if p.notifier != nil && len(report.Digest) > 0 {
		if err := p.notifier.PublishDigest(ctx, RenderMarkdown(report.Digest)); err != nil {
			log.Warn("publish digest", "error", err)
		}
	}
	return report, nil
}

// accept runs one article through scoring, dedup and persistence. Scoring
// failures keep the extractor's criteria and bypass the registry.
func (p *Pipeline) accept(ctx context.Context, log *slog.Logger, registry *dedup.Registry, expansions map[string][]string, article domain.Article, report *RunReport) (domain.Article, bool) {
	if p.scorer != nil && expansions != nil {
		scored, embedding, err := p.scorer.Attach(ctx, article, expansions)
		if err != nil {
			log.Warn("score article", "url", article.URL, "error", err)
			report.Unscored++
		} else {
			if registry.CheckAndRegister(scored, embedding) {
				report.Duplicates++
				return domain.Article{}, false
			}
			article = scored
		}
	}

	if p.repository == nil {
		return article, true
	}
	saved, err := p.repository.Save(ctx, article)
	if err != nil {
		log.Error("persist article", "url", article.URL, "error", err)
		report.Failed++
		return domain.Article{}, false
	}
	report.Saved++
	return saved, true
}

func (p *Pipeline) log() *slog.Logger {
	if p.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.logger
}
