package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"NewsletterDigest/internal/config"
	"NewsletterDigest/internal/criteria"
	"NewsletterDigest/internal/enricher"
	"NewsletterDigest/internal/extractor"
	"NewsletterDigest/internal/infrastructure/feed"
	"NewsletterDigest/internal/infrastructure/httpapi"
	"NewsletterDigest/internal/infrastructure/llm"
	"NewsletterDigest/internal/infrastructure/mail"
	"NewsletterDigest/internal/infrastructure/ml"
	"NewsletterDigest/internal/infrastructure/scheduler"
	"NewsletterDigest/internal/infrastructure/storage"
	"NewsletterDigest/internal/infrastructure/telegram"
	"NewsletterDigest/internal/logging"
	"NewsletterDigest/internal/ports"
	"NewsletterDigest/internal/ratelimit"
	"NewsletterDigest/internal/relevance"
	"NewsletterDigest/internal/sanitizer"
	"NewsletterDigest/internal/similarity"
	"NewsletterDigest/internal/source"
	"NewsletterDigest/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg     config.Config
	logger  *slog.Logger
	db      *sql.DB
	closers []io.Closer

	repository ports.ArticleRepository
	catalog    *criteria.Catalog
	query      *usecase.Query

	pipeline    *usecase.Pipeline
	pipelineErr error
}

// New opens the store and builds the query side. The crawl pipeline needs an
// LLM provider; when it cannot be built the error is kept and reported by
// Crawl and Watch so that serve and list still work.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	db, dialect, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	a := &Application{
		cfg:        cfg,
		logger:     baseLogger,
		db:         db,
		repository: storage.NewSQLRepository(db, dialect),
		catalog:    criteria.New(cfg.Search.Criteria),
	}
	a.query = usecase.NewQuery(usecase.QueryDeps{
		Repository: a.repository,
		Catalog:    a.catalog,
		MinScore:   cfg.Search.MinRelevanceScore,
		PageSize:   cfg.Output.PageSize,
		MaxResults: cfg.Output.MaxResults,
	})

	a.pipeline, a.pipelineErr = a.buildPipeline(ctx)
	if a.pipelineErr != nil {
		baseLogger.Warn("crawl pipeline unavailable", "error", a.pipelineErr)
	}
	return a, nil
}

func (a *Application) component(name string) *slog.Logger {
	return a.logger.With("component", name)
}

func (a *Application) buildPipeline(ctx context.Context) (*usecase.Pipeline, error) {
	cfg := a.cfg

	chat, err := llm.NewChatClient(ctx, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("chat client: %w", err)
	}
	a.track(chat)

	var mlClient *ml.Client
	if cfg.ML.InferenceURL != "" {
		mlClient = ml.NewClient(cfg.ML.InferenceURL, cfg.ML.APIKey)
	}
	limiter := ratelimit.NewPerMinute(cfg.LLM.RequestsPerMinute)

	var enrich extractor.Enricher
	if cfg.Enrichment.Enabled {
		var summarizer ports.Summarizer = enricher.NewChatSummarizer(chat, limiter)
		if strings.EqualFold(cfg.Enrichment.Summarizer, "ml") && mlClient != nil {
			summarizer = mlClient
		}
		enrich = enricher.New(
			enricher.NewHTTPFetcher(cfg.Enrichment.Timeout),
			summarizer,
			enricher.Options{
				MinParagraphChars: cfg.Enrichment.MinParagraphChars,
				MaxInputChars:     cfg.Enrichment.MaxInputChars,
				Languages:         cfg.Enrichment.Languages,
			},
			a.component("enricher"),
		)
	}

	ext := extractor.New(extractor.Deps{
		Chat:        chat,
		Limiter:     limiter,
		Enricher:    enrich,
		Catalog:     a.catalog,
		MinScore:    cfg.Search.MinRelevanceScore,
		Temperature: cfg.LLM.Temperature,
		Logger:      a.component("extractor"),
	})

	var scorer usecase.ArticleScorer
	var mlEmbedder ports.Embedder
	if mlClient != nil {
		mlEmbedder = mlClient
	}
	embedder, err := llm.NewEmbedder(ctx, cfg.LLM, mlEmbedder)
	if err != nil {
		a.logger.Warn("relevance scoring disabled, keeping extractor scores", "error", err)
	} else {
		a.track(embedder)
		scorer = relevance.New(relevance.Deps{
			Chat:     chat,
			Limiter:  limiter,
			Engine:   similarity.NewEngine(embedder),
			MinScore: cfg.Search.MinRelevanceScore,
			Logger:   a.component("relevance"),
		})
	}

	var notifier ports.Notifier
	tg := telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID, a.component("telegram"))
	if tg.Enabled() {
		notifier = tg
	}

	return usecase.NewPipeline(usecase.PipelineDeps{
		Source:         a.buildSource(),
		Extractor:      ext,
		Scorer:         scorer,
		Repository:     a.repository,
		Notifier:       notifier,
		Catalog:        a.catalog,
		DedupThreshold: cfg.Search.DedupThreshold,
		MaxResults:     cfg.Output.MaxResults,
		Workers:        cfg.LLM.Workers,
		Logger:         a.component("pipeline"),
	}), nil
}

func (a *Application) buildSource() ports.MessageSource {
	registry := source.NewRegistry()
	if a.cfg.Email.Address != "" {
		registry.Register("imap", mail.NewIMAPSource(a.cfg.Email, a.component("source.imap")))
	}
	if len(a.cfg.Feeds) > 0 {
		registry.Register("feed", feed.NewSource(a.cfg.Feeds, a.component("source.feed")))
	}
	return source.NewAggregate(registry, a.component("source"))
}

// track remembers values holding resources to release on Close.
func (a *Application) track(v any) {
	if c, ok := v.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}
}

// Crawl performs a single pipeline run.
func (a *Application) Crawl(ctx context.Context) (usecase.RunReport, error) {
	if a.pipeline == nil {
		return usecase.RunReport{}, fmt.Errorf("crawl pipeline unavailable: %w", a.pipelineErr)
	}
	return a.pipeline.Run(ctx, a.now())
}

// Watch runs the pipeline on the configured schedule until ctx is done.
func (a *Application) Watch(ctx context.Context) error {
	if a.pipeline == nil {
		return fmt.Errorf("crawl pipeline unavailable: %w", a.pipelineErr)
	}
	driver := scheduler.NewTickerScheduler(a.cfg.Scheduler.Interval(), a.cfg.Scheduler.Location(), a.component("scheduler"))
	sched := usecase.NewScheduler(driver, a.pipeline, a.component("scheduler"))
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	<-ctx.Done()
	return sched.Stop(context.WithoutCancel(ctx))
}

// Sanitize batch-cleans raw content of articles from the last days days.
func (a *Application) Sanitize(ctx context.Context, days int) (usecase.SanitizeReport, error) {
	batch, err := llm.NewBatchService(a.cfg.LLM)
	if err != nil {
		return usecase.SanitizeReport{}, err
	}
	model := a.cfg.Sanitizer.Model
	if model == "" {
		model = a.cfg.LLM.Model
	}
	s := sanitizer.New(batch, sanitizer.Config{
		Model:        model,
		ChunkSize:    a.cfg.Sanitizer.ChunkSize,
		PollInterval: a.cfg.Sanitizer.PollInterval,
		Timeout:      a.cfg.Sanitizer.Timeout,
		WorkDir:      a.cfg.Sanitizer.WorkDir,
	}, a.component("sanitizer"))
	return usecase.NewSanitizeRun(a.repository, s, a.component("sanitize")).Run(ctx, days)
}

// Serve exposes the query API until ctx is done.
func (a *Application) Serve(ctx context.Context) error {
	return httpapi.NewServer(a.query, a.component("httpapi")).Run(ctx, a.cfg.HTTP.Addr)
}

// List returns one page of stored articles.
func (a *Application) List(ctx context.Context, req usecase.ListRequest) (usecase.Page, error) {
	return a.query.List(ctx, req)
}

// Close releases provider clients and the database handle.
func (a *Application) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}

func (a *Application) now() time.Time {
	return time.Now().In(a.cfg.Scheduler.Location())
}
