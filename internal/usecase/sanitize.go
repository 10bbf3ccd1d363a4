package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"NewsletterDigest/internal/domain"
	"NewsletterDigest/internal/ports"
)

// ContentSanitizer rewrites raw article bodies in bulk. The result always has
// the same length as the input.
type ContentSanitizer interface {
	Sanitize(ctx context.Context, contents []string) []string
}

// SanitizeReport counts what a sanitize pass changed.
type SanitizeReport struct {
	Considered int
	Updated    int
	Failed     int
}

// SanitizeRun cleans the stored raw content of recent articles.
type SanitizeRun struct {
	repository ports.ArticleRepository
	sanitizer  ContentSanitizer
	logger     *slog.Logger
	now        func() time.Time
}

func NewSanitizeRun(repo ports.ArticleRepository, sanitizer ContentSanitizer, logger *slog.Logger) *SanitizeRun {
	return &SanitizeRun{repository: repo, sanitizer: sanitizer, logger: logger, now: time.Now}
}

// Run sanitizes articles received in the last days days; days <= 0 covers
// the whole store. Articles whose content came back unchanged are not written.
func (s *SanitizeRun) Run(ctx context.Context, days int) (SanitizeReport, error) {
	var report SanitizeReport
	if s.repository == nil || s.sanitizer == nil {
		return report, fmt.Errorf("sanitize run is not configured")
	}

	articles, err := s.repository.Query(ctx, sinceDays(s.now(), days), 0)
	if err != nil {
		return report, fmt.Errorf("query articles: %w", err)
	}

	var (
		targets  []domain.Article
		contents []string
	)
	for _, a := range articles {
		if strings.TrimSpace(a.RawContent) == "" {
			continue
		}
		targets = append(targets, a)
		contents = append(contents, a.RawContent)
	}
	report.Considered = len(targets)
	if len(targets) == 0 {
		s.info("nothing to sanitize", "days", days)
		return report, nil
	}

	cleaned := s.sanitizer.Sanitize(ctx, contents)
	for i, a := range targets {
		if i >= len(cleaned) || cleaned[i] == a.RawContent {
			continue
		}
		if err := s.repository.UpdateRawContent(ctx, a.ID, cleaned[i]); err != nil {
			s.warn("update raw content", "id", a.ID, "error", err)
			report.Failed++
			continue
		}
		report.Updated++
	}

	s.info("sanitize pass finished", "considered", report.Considered, "updated", report.Updated, "failed", report.Failed)
	return report, nil
}

func sinceDays(now time.Time, days int) time.Time {
	if days <= 0 {
		return time.Time{}
	}
	return now.AddDate(0, 0, -days)
}

func (s *SanitizeRun) info(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}

func (s *SanitizeRun) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
