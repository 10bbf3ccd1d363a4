package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"NewsletterDigest/internal/ports"
)

// ErrInvalidInterval is returned when the scheduler is started without a
// positive interval.
var ErrInvalidInterval = errors.New("scheduler interval must be positive")

// TickerScheduler runs a job immediately and then every interval. Ticks that
// arrive while a job is still running are dropped.
type TickerScheduler struct {
	interval time.Duration
	loc      *time.Location
	logger   *slog.Logger

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

var _ ports.Scheduler = (*TickerScheduler)(nil)

// NewTickerScheduler builds a scheduler firing every interval; trigger times
// are reported in loc (UTC when nil).
func NewTickerScheduler(interval time.Duration, loc *time.Location, logger *slog.Logger) *TickerScheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &TickerScheduler{interval: interval, loc: loc, logger: logger}
}

// Start begins ticking. Calling Start on a running scheduler is a no-op.
func (s *TickerScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}
	if s.interval <= 0 {
		return ErrInvalidInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return nil
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	s.stop, s.done = stop, done

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.run(job, time.Now())
		for {
			select {
			case t := <-ticker.C:
				s.run(job, t)
			case <-ctx.Done():
				return
			case <-stop:
				return
			}
		}
	}()

	if s.logger != nil {
		s.logger.Info("scheduler started", "interval", s.interval.String(), "timezone", s.loc.String())
	}
	return nil
}

func (s *TickerScheduler) run(job func(time.Time), t time.Time) {
	started := time.Now()
	job(t.In(s.loc))
	if s.logger != nil {
		s.logger.Debug("scheduled job finished", "took", time.Since(started).String())
	}
}

// Stop halts the ticker goroutine and waits for a running job to return or
// ctx to expire.
func (s *TickerScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
