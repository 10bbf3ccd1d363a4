package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"NewsletterDigest/internal/domain"
	"NewsletterDigest/internal/ports"
)

// Aggregate fetches from every registered source. A failing source is logged
// and skipped; Fetch errors only when all of them fail.
type Aggregate struct {
	registry *Registry
	logger   *slog.Logger
}

var _ ports.MessageSource = (*Aggregate)(nil)

func NewAggregate(reg *Registry, log *slog.Logger) *Aggregate {
	return &Aggregate{registry: reg, logger: log}
}

func (a *Aggregate) Fetch(ctx context.Context) ([]domain.Message, error) {
	if a.registry == nil {
		return nil, fmt.Errorf("source registry is not configured")
	}

	names := a.registry.Names()
	a.debug("fetch messages", "sources", len(names))

	var (
		aggregated []domain.Message
		errs       []error
	)
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return aggregated, err
		}
		src, err := a.registry.Resolve(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		msgs, err := src.Fetch(ctx)
		if err != nil {
			a.warn("source failed", "source", name, "error", err)
			errs = append(errs, fmt.Errorf("fetch %s: %w", name, err))
			continue
		}
		for i := range msgs {
			if msgs[i].Source == "" {
				msgs[i].Source = name
			}
		}
		a.debug("source produced messages", "source", name, "count", len(msgs))
		aggregated = append(aggregated, msgs...)
	}

	if len(names) > 0 && len(errs) == len(names) {
		return nil, errors.Join(errs...)
	}
	a.debug("aggregate source done", "total_messages", len(aggregated))
	return aggregated, nil
}

func (a *Aggregate) debug(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Debug(msg, args...)
	}
}

func (a *Aggregate) warn(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Warn(msg, args...)
	}
}
