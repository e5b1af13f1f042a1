// Package throttle limits login attempts per client with a Redis counter.
// Every attempt refreshes the counter's TTL, so a client that keeps trying
// stays blocked until it has been quiet for a full window.
package throttle

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"
)

const DefaultKeyPrefix = "rl:login:ip:"

type counter interface {
	incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

type redisCounter struct {
	client redis.Cmdable
}

func (r redisCounter) incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := r.client.Pipeline()
	n := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return n.Val(), nil
}

// Limiter allows at most limit calls per key within a window.
// It satisfies auth.LoginLimiter.
type Limiter struct {
	counter counter
	client  *redis.Client
	limit   int64
	window  time.Duration
	prefix  string
}

type Option func(*Limiter)

func WithKeyPrefix(prefix string) Option {
	return func(l *Limiter) {
		if prefix != "" {
			l.prefix = prefix
		}
	}
}

// New wraps an existing client
func New(client redis.Cmdable, limit int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		counter: redisCounter{client: client},
		limit:   int64(limit),
		window:  window,
		prefix:  DefaultKeyPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewFromURL dials redis using a redis:// or rediss:// URL. Close releases
// the client.
func NewFromURL(redisURL string, limit int, window time.Duration, opts ...Option) (*Limiter, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "invalid redis url")
	}

	client := redis.NewClient(opt)
	l := New(client, limit, window, opts...)
	l.client = client
	return l, nil
}

// Ping checks the connection
func (l *Limiter) Ping(ctx context.Context) error {
	if l.client == nil {
		return nil
	}
	if err := l.client.Ping(ctx).Err(); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "redis ping failed")
	}
	return nil
}

// Allow counts one attempt for key and reports whether it is within the limit
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return true, nil
	}

	n, err := l.counter.incr(ctx, l.prefix+key, l.window)
	if err != nil {
		return true, errors.Wrap(err, errors.CategoryOperation, "login rate counter failed").
			WithMetadata(map[string]any{"key": key})
	}

	return n <= l.limit, nil
}

func (l *Limiter) Close() error {
	if l.client == nil {
		return nil
	}
	return l.client.Close()
}
