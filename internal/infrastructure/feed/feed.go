package feed

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"

	"NewsletterDigest/internal/config"
	"NewsletterDigest/internal/domain"
	"NewsletterDigest/internal/ports"
)

const (
	defaultMaxAge = 7 * 24 * time.Hour
	sourceFeed    = "feed"
)

// Source turns each configured RSS or Atom feed into one digest-like message
// holding the entries not seen before in this process.
type Source struct {
	feeds  []config.FeedConfig
	parser *gofeed.Parser
	maxAge time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu   sync.Mutex
	seen map[string]struct{}
}

var _ ports.MessageSource = (*Source)(nil)

func NewSource(feeds []config.FeedConfig, logger *slog.Logger) *Source {
	parser := gofeed.NewParser()
	parser.UserAgent = "NewsletterDigest/1.0"
	return &Source{
		feeds:  feeds,
		parser: parser,
		maxAge: defaultMaxAge,
		logger: logger,
		now:    time.Now,
		seen:   map[string]struct{}{},
	}
}

func (s *Source) Fetch(ctx context.Context) ([]domain.Message, error) {
	var out []domain.Message
	for _, fc := range s.feeds {
		feed, err := s.parser.ParseURLWithContext(fc.URL, ctx)
		if err != nil {
			s.logger.Warn("parse feed", "feed", fc.Name, "url", fc.URL, "error", err)
			continue
		}
		if msg, ok := s.toMessage(fc, feed); ok {
			out = append(out, msg)
		}
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}
	return out, nil
}

func (s *Source) toMessage(fc config.FeedConfig, feed *gofeed.Feed) (domain.Message, bool) {
	cutoff := s.now().Add(-s.maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		b      strings.Builder
		newest time.Time
		count  int
	)
	for _, item := range feed.Items {
		if item == nil || item.Link == "" {
			continue
		}
		published := itemTime(item)
		if !published.IsZero() && published.Before(cutoff) {
			continue
		}
		key := item.GUID
		if key == "" {
			key = item.Link
		}
		if _, ok := s.seen[key]; ok {
			continue
		}
		s.seen[key] = struct{}{}

		fmt.Fprintf(&b, "<h2>%s</h2><p>%s</p><p><a href=\"%s\">%s</a></p>\n",
			html.EscapeString(item.Title), item.Description, html.EscapeString(item.Link), html.EscapeString(item.Title))
		if published.After(newest) {
			newest = published
		}
		count++
	}
	if count == 0 {
		s.logger.Debug("no new feed entries", "feed", fc.Name)
		return domain.Message{}, false
	}
	if newest.IsZero() {
		newest = s.now()
	}

	name := fc.Name
	if name == "" {
		name = feed.Title
	}
	s.logger.Info("feed produced entries", "feed", name, "count", count)
	return domain.Message{
		UID:     fmt.Sprintf("%s:%d", fc.URL, newest.Unix()),
		Subject: name,
		DateStr: newest.Format(time.RFC1123Z),
		Date:    newest,
		HTML:    b.String(),
		From:    "feed@" + hostOf(fc.URL),
		Source:  sourceFeed,
	}, true
}

func itemTime(item *gofeed.Item) time.Time {
	switch {
	case item.PublishedParsed != nil:
		return *item.PublishedParsed
	case item.UpdatedParsed != nil:
		return *item.UpdatedParsed
	default:
		return time.Time{}
	}
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
