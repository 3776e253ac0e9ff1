// Package ratelimit throttles requests per caller with a rate that can change
// at runtime.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"emergency-dispatch/internal/logging"
)

// Rate allows Count requests per Period.
type Rate struct {
	Count  int
	Period time.Duration
}

// ParseRate reads "N/period" where period starts with s, m, h or d, so
// "5/hour", "5/h" and "100/day" are all accepted.
func ParseRate(s string) (Rate, error) {
	num, period, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return Rate{}, fmt.Errorf("invalid rate %q: expected N/period", s)
	}
	n, err := strconv.Atoi(strings.TrimSpace(num))
	if err != nil || n < 1 {
		return Rate{}, fmt.Errorf("invalid rate %q: count must be a positive integer", s)
	}
	period = strings.TrimSpace(period)
	if period == "" {
		return Rate{}, fmt.Errorf("invalid rate %q: missing period", s)
	}
	var d time.Duration
	switch period[0] {
	case 's':
		d = time.Second
	case 'm':
		d = time.Minute
	case 'h':
		d = time.Hour
	case 'd':
		d = 24 * time.Hour
	default:
		return Rate{}, fmt.Errorf("invalid rate %q: unknown period %q", s, period)
	}
	return Rate{Count: n, Period: d}, nil
}

func (r Rate) limit() rate.Limit {
	return rate.Limit(float64(r.Count) / r.Period.Seconds())
}

// RateFunc returns the current rate string. It is called on every request.
type RateFunc func(ctx context.Context) string

type entry struct {
	raw     string
	limiter *rate.Limiter
}

// Limiter keeps one token bucket per key. Buckets idle for a whole period
// expire, which is equivalent to a full bucket.
type Limiter struct {
	rateFn  RateFunc
	buckets *cache.Cache
	mu      sync.Mutex
	logger  *logging.Logger
}

func New(rateFn RateFunc, logger *logging.Logger) *Limiter {
	return &Limiter{
		rateFn:  rateFn,
		buckets: cache.New(time.Hour, 10*time.Minute),
		logger:  logger,
	}
}

// Allow reports whether key may proceed. An unparsable rate lets the request
// through and logs an error.
func (l *Limiter) Allow(ctx context.Context, key string) bool {
	raw := l.rateFn(ctx)
	r, err := ParseRate(raw)
	if err != nil {
		l.logger.Errorf("Throttle disabled for this request: %v", err)
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	var e *entry
	if cached, found := l.buckets.Get(key); found {
		e = cached.(*entry)
	}
	if e == nil || e.raw != raw {
		e = &entry{raw: raw, limiter: rate.NewLimiter(r.limit(), r.Count)}
	}
	l.buckets.Set(key, e, r.Period)
	return e.limiter.Allow()
}
