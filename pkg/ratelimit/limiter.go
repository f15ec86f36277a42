// Package ratelimit bounds disclosures per (actor, credential) over a
// trailing window kept in two fixed buckets.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	DefaultLimit  = 10
	DefaultWindow = time.Minute
)

// Counter is an atomic counter store. Implementations must make Incr atomic
// across every process sharing the store.
type Counter interface {
	// Incr increments key and returns the new value. The key may be
	// discarded once ttl has elapsed.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// Get returns the current value, zero when missing or expired.
	Get(ctx context.Context, key string) (int64, error)
	// Decr rolls back a previous Incr.
	Decr(ctx context.Context, key string) error
	// Mark stores value under key when it is greater than the stored value,
	// refreshing the ttl. Get reads it back.
	Mark(ctx context.Context, key string, value int64, ttl time.Duration) error
}

// Result describes a single Allow decision.
type Result struct {
	Allowed bool
	// Used counts the disclosures that may still sit in the trailing window,
	// this one included when allowed.
	Used       int64
	Remaining  int64
	RetryAfter time.Duration

	bucket string
}

// Limiter enforces Limit events per Window for each key pair.
type Limiter struct {
	counter Counter
	limit   int64
	window  time.Duration
	prefix  string
	now     func() time.Time
}

// Option customizes a Limiter.
type Option func(*Limiter)

func WithLimit(limit int) Option {
	return func(l *Limiter) {
		if limit > 0 {
			l.limit = int64(limit)
		}
	}
}

func WithWindow(window time.Duration) Option {
	return func(l *Limiter) {
		if window >= time.Second {
			l.window = window.Truncate(time.Second)
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

func WithPrefix(prefix string) Option {
	return func(l *Limiter) {
		if prefix != "" {
			l.prefix = prefix
		}
	}
}

func New(counter Counter, opts ...Option) (*Limiter, error) {
	if counter == nil {
		return nil, errors.New("ratelimit: counter required")
	}
	l := &Limiter{
		counter: counter,
		limit:   DefaultLimit,
		window:  DefaultWindow,
		prefix:  "vault:disclose",
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l, nil
}

// Limit returns the configured ceiling.
func (l *Limiter) Limit() int64 { return l.limit }

// Allow counts one disclosure for (actor, resource) when it fits the window.
// Denied attempts are rolled back so only successful disclosures count.
//
// Each bucket also records the time of its latest disclosure. The prior
// bucket counts in full until that disclosure leaves the trailing window,
// so no window of length W ever holds more than Limit disclosures.
func (l *Limiter) Allow(ctx context.Context, actor, resource string) (Result, error) {
	at := l.now().UnixNano()
	w := int64(l.window)
	bucket := at / w

	prevKey := l.key(actor, resource, bucket-1)
	curKey := l.key(actor, resource, bucket)

	prev, err := l.counter.Get(ctx, prevKey)
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit: read prior bucket: %w", err)
	}
	var prevExpiry int64
	if prev > 0 {
		last, err := l.counter.Get(ctx, markKey(prevKey))
		if err != nil {
			return Result{}, fmt.Errorf("ratelimit: read prior mark: %w", err)
		}
		if last <= 0 {
			last = bucket*w - 1
		}
		prevExpiry = last + w
		if at >= prevExpiry {
			prev = 0
		}
	}

	cur, err := l.counter.Incr(ctx, curKey, 2*l.window)
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit: increment bucket: %w", err)
	}

	if prev+cur <= l.limit {
		if err := l.counter.Mark(ctx, markKey(curKey), at, 2*l.window); err != nil {
			_ = l.counter.Decr(ctx, curKey)
			return Result{}, fmt.Errorf("ratelimit: mark bucket: %w", err)
		}
		return Result{
			Allowed:   true,
			Used:      prev + cur,
			Remaining: l.limit - prev - cur,
			bucket:    curKey,
		}, nil
	}

	if err := l.counter.Decr(ctx, curKey); err != nil {
		return Result{}, fmt.Errorf("ratelimit: rollback bucket: %w", err)
	}
	n := cur - 1

	// only the prior bucket is in the way; it leaves at prevExpiry
	release := prevExpiry
	if n+1 > l.limit {
		last, err := l.counter.Get(ctx, markKey(curKey))
		if err != nil {
			return Result{}, fmt.Errorf("ratelimit: read bucket mark: %w", err)
		}
		if last <= 0 {
			last = (bucket+1)*w - 1
		}
		release = last + w
	}
	return Result{
		Allowed:    false,
		Used:       prev + n,
		RetryAfter: retryAfter(release - at),
	}, nil
}

// Release returns an allowed disclosure to the budget when the secret was
// never handed out.
func (l *Limiter) Release(ctx context.Context, res Result) error {
	if !res.Allowed || res.bucket == "" {
		return nil
	}
	if err := l.counter.Decr(ctx, res.bucket); err != nil {
		return fmt.Errorf("ratelimit: release bucket: %w", err)
	}
	return nil
}

// retryAfter rounds wait up to whole seconds, never below one.
func retryAfter(wait int64) time.Duration {
	d := time.Duration(wait)
	if r := d % time.Second; r != 0 {
		d += time.Second - r
	}
	if d < time.Second {
		d = time.Second
	}
	return d
}

func (l *Limiter) key(actor, resource string, bucket int64) string {
	return fmt.Sprintf("%s:%s:%s:%d", l.prefix, actor, resource, bucket)
}

func markKey(bucketKey string) string {
	return bucketKey + ":last"
}
