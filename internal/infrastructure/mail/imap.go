package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"NewsletterDigest/internal/config"
	"NewsletterDigest/internal/domain"
	"NewsletterDigest/internal/ports"
)

const fetchBuffer = 16

// IMAPSource fetches unread newsletters from allowlisted senders received
// since the first day of the current month. Fetched bodies are marked seen.
type IMAPSource struct {
	cfg       config.EmailConfig
	allowlist *Allowlist
	logger    *slog.Logger
	now       func() time.Time
}

var _ ports.MessageSource = (*IMAPSource)(nil)

func NewIMAPSource(cfg config.EmailConfig, logger *slog.Logger) *IMAPSource {
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	if cfg.Port == 0 {
		cfg.Port = 993
	}
	return &IMAPSource{
		cfg:       cfg,
		allowlist: NewAllowlist(cfg.Allowlist()),
		logger:    logger,
		now:       time.Now,
	}
}

func (s *IMAPSource) Fetch(ctx context.Context) ([]domain.Message, error) {
	if s.cfg.Server == "" || s.cfg.Address == "" {
		return nil, fmt.Errorf("imap source misconfigured")
	}
	if s.allowlist.Len() == 0 {
		s.logger.Warn("no allowed senders configured, skipping mailbox")
		return nil, nil
	}

	addr := net.JoinHostPort(s.cfg.Server, strconv.Itoa(s.cfg.Port))
	s.logger.Info("connecting to imap server", "addr", addr)

	c, err := client.DialTLS(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial imap: %w", err)
	}
	stop := context.AfterFunc(ctx, func() { _ = c.Terminate() })
	defer stop()
	defer func() { _ = c.Logout() }()

	if err := c.Login(s.cfg.Address, s.cfg.Password); err != nil {
		return nil, fmt.Errorf("imap login: %w", err)
	}
	if _, err := c.Select(s.cfg.Mailbox, false); err != nil {
		return nil, fmt.Errorf("select %s: %w", s.cfg.Mailbox, err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	criteria.Since = firstOfMonth(s.now())
	uids, err := c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("search unread: %w", err)
	}
	if len(uids) == 0 {
		s.logger.Info("no unread messages")
		return nil, nil
	}

	allowed, err := s.allowedUIDs(c, uids)
	if err != nil {
		return nil, err
	}
	if len(allowed) == 0 {
		s.logger.Info("no unread messages from allowed senders", "unread", len(uids))
		return nil, nil
	}

	messages, err := s.fetchBodies(c, allowed)
	if err != nil {
		return nil, err
	}
	s.logger.Info("fetched unread newsletters", "count", len(messages))
	return messages, ctx.Err()
}

// allowedUIDs peeks at envelopes so mail from other senders stays unread.
func (s *IMAPSource) allowedUIDs(c *client.Client, uids []uint32) ([]uint32, error) {
	seq := new(imap.SeqSet)
	seq.AddNum(uids...)

	ch := make(chan *imap.Message, fetchBuffer)
	done := make(chan error, 1)
	go func() { done <- c.UidFetch(seq, []imap.FetchItem{imap.FetchUid, imap.FetchEnvelope}, ch) }()

	var allowed []uint32
	for msg := range ch {
		if msg.Envelope == nil {
			continue
		}
		for _, from := range msg.Envelope.From {
			if s.allowlist.Allowed(from.Address()) {
				allowed = append(allowed, msg.Uid)
				break
			}
		}
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("fetch envelopes: %w", err)
	}
	return allowed, nil
}

func (s *IMAPSource) fetchBodies(c *client.Client, uids []uint32) ([]domain.Message, error) {
	seq := new(imap.SeqSet)
	seq.AddNum(uids...)

	section := &imap.BodySectionName{}
	ch := make(chan *imap.Message, fetchBuffer)
	done := make(chan error, 1)
	go func() { done <- c.UidFetch(seq, []imap.FetchItem{imap.FetchUid, section.FetchItem()}, ch) }()

	var out []domain.Message
	for msg := range ch {
		body := msg.GetBody(section)
		if body == nil {
			s.logger.Warn("server returned no body", "uid", msg.Uid)
			continue
		}
		parsed, err := ParseMessage(strconv.FormatUint(uint64(msg.Uid), 10), body)
		if err != nil {
			s.logger.Warn("parse message", "uid", msg.Uid, "error", err)
			continue
		}
		if parsed.Date.IsZero() {
			s.logger.Debug("unparseable date header", "uid", msg.Uid, "date", parsed.DateStr)
		}
		out = append(out, parsed)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("fetch bodies: %w", err)
	}
	return out, nil
}

func firstOfMonth(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
}
