package enricher

import (
	"context"
	"log/slog"

	"NewsletterDigest/internal/ports"
)

const (
	DefaultMinParagraphChars = 200
	DefaultMaxInputChars     = 2000
)

// Options tune page extraction.
type Options struct {
	MinParagraphChars int
	MaxInputChars     int
	Languages         []string
}

// Enricher crawls an article page and summarizes its text.
type Enricher struct {
	fetcher    ports.PageFetcher
	summarizer ports.Summarizer
	gate       *LanguageGate
	minChars   int
	maxChars   int
	logger     *slog.Logger
}

// New builds an enricher. Zero options select the defaults.
func New(fetcher ports.PageFetcher, summarizer ports.Summarizer, opts Options, logger *slog.Logger) *Enricher {
	if opts.MinParagraphChars <= 0 {
		opts.MinParagraphChars = DefaultMinParagraphChars
	}
	if opts.MaxInputChars <= 0 {
		opts.MaxInputChars = DefaultMaxInputChars
	}
	return &Enricher{
		fetcher:    fetcher,
		summarizer: summarizer,
		gate:       NewLanguageGate(opts.Languages),
		minChars:   opts.MinParagraphChars,
		maxChars:   opts.MaxInputChars,
		logger:     logger,
	}
}

// Enrich returns a summary of the page at url, or "" when any step fails.
func (e *Enricher) Enrich(ctx context.Context, url string) string {
	if e.fetcher == nil || e.summarizer == nil {
		return ""
	}

	page, err := e.fetcher.Fetch(ctx, url)
	if err != nil {
		e.debug("fetch page", "url", url, "error", err)
		return ""
	}

	text, err := paragraphs(page)
	if err != nil {
		e.debug("extract paragraphs", "url", url, "error", err)
	}
	if len(text) < e.minChars {
		if rich, err := readable(page, url); err != nil {
			e.debug("readability fallback", "url", url, "error", err)
		} else if len(rich) > len(text) {
			text = rich
		}
	}
	if text == "" {
		e.debug("no text content", "url", url)
		return ""
	}

	if !e.gate.Accept(text) {
		e.debug("skipping page in unsupported language", "url", url)
		return ""
	}

	text = truncate(clean(text), e.maxChars)
	if text == "" {
		return ""
	}

	summary, err := e.summarizer.Summarize(ctx, text)
	if err != nil {
		e.debug("summarize page", "url", url, "error", err)
		return ""
	}
	return summary
}

func (e *Enricher) debug(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}
