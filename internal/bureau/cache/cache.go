// Package cache keeps recently fetched credit reports so repeat assessments
// of the same applicant do not hit the bureau again.
package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"loanflow/internal/bureau"
	"loanflow/pkg/platform/sentinel"
)

// Store persists credit reports keyed by PAN. Get returns
// sentinel.ErrNotFound on a miss or after expiry, and errors wrapping
// sentinel.ErrUnavailable when the backend cannot be reached.
type Store interface {
	Get(ctx context.Context, pan string) (*bureau.CreditReport, error)
	Put(ctx context.Context, report *bureau.CreditReport) error
}

// CachedCreditBureau decorates a CreditBureau with a Store. Concurrent misses
// for the same PAN share one upstream call. Cache failures are logged and
// never fail the fetch; an unreachable store is skipped for the rest of the
// call.
type CachedCreditBureau struct {
	next   bureau.CreditBureau
	store  Store
	group  singleflight.Group
	logger *slog.Logger
}

// Option configures a CachedCreditBureau.
type Option func(*CachedCreditBureau)

func WithLogger(logger *slog.Logger) Option {
	return func(c *CachedCreditBureau) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewCachedCreditBureau(next bureau.CreditBureau, store Store, opts ...Option) *CachedCreditBureau {
	c := &CachedCreditBureau{
		next:   next,
		store:  store,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CachedCreditBureau) FetchReport(ctx context.Context, pan string) (*bureau.CreditReport, error) {
	key := normalizeKey(pan)
	report, err := c.store.Get(ctx, key)
	bypass := false
	switch {
	case err == nil:
		return report, nil
	case errors.Is(err, sentinel.ErrUnavailable):
		c.logger.WarnContext(ctx, "report cache unavailable, fetching directly", "error", err)
		bypass = true
	case !errors.Is(err, sentinel.ErrNotFound):
		c.logger.WarnContext(ctx, "report cache read failed", "error", err)
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// a call that finished between our miss and Do has already filled the store
		if !bypass {
			if cached, err := c.store.Get(ctx, key); err == nil {
				return cached, nil
			}
		}
		fetched, err := c.next.FetchReport(ctx, pan)
		if err != nil {
			return nil, err
		}
		if fetched.PAN == "" {
			fetched.PAN = key
		}
		if bypass {
			return fetched, nil
		}
		if err := c.store.Put(ctx, fetched); err != nil {
			c.logger.WarnContext(ctx, "report cache write failed", "error", err)
		}
		return fetched, nil
	})
	if err != nil {
		return nil, err
	}
	out := *v.(*bureau.CreditReport)
	return &out, nil
}

func normalizeKey(pan string) string {
	return strings.ToUpper(strings.TrimSpace(pan))
}

// expired reports whether a report fetched at fetchedAt has outlived ttl.
func expired(fetchedAt, now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(fetchedAt) >= ttl
}
