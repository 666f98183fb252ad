package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/graxinc/errutil"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "herald:command_set:"

// HashStore persists the hash of the last command set overwritten per scope.
type HashStore interface {
	CommandSetHash(ctx context.Context, scope string) (string, error)
	SetCommandSetHash(ctx context.Context, scope, hash string) error
}

// Cache keeps command set hashes in redis in front of an optional durable
// store. When redis fails repeatedly the circuit opens and an in-process
// fallback serves instead.
type Cache struct {
	c        *redis.Client
	l        *slog.Logger
	next     HashStore
	ttl      time.Duration
	breaker  *CircuitBreaker
	fallback *FallbackCache
}

func NewCache(url string, l *slog.Logger, next HashStore, ttl time.Duration) (*Cache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, errutil.With(err)
	}

	return newCache(redis.NewClient(opt), l, next, ttl), nil
}

func newCache(c *redis.Client, l *slog.Logger, next HashStore, ttl time.Duration) *Cache {
	return &Cache{
		c:        c,
		l:        l,
		next:     next,
		ttl:      ttl,
		breaker:  NewCircuitBreaker(5, 30*time.Second),
		fallback: NewFallbackCache(1000),
	}
}

func (c *Cache) Close() error {
	return c.c.Close()
}

// CommandSetHash returns the stored hash for scope, or "" when none is known.
func (c *Cache) CommandSetHash(ctx context.Context, scope string) (string, error) {
	key := keyPrefix + scope

	var hash string
	err := c.breaker.Do(func() error {
		var err error
		hash, err = c.c.Get(ctx, key).Result()
		return err
	}, isMiss)

	switch {
	case err == nil:
		c.fallback.Set(key, hash, c.ttl)
		return hash, nil
	case isMiss(err):
	default:
		c.l.Debug("redis unavailable, using fallback", "scope", scope, "error", err)
		if hash, ok := c.fallback.Get(key); ok {
			return hash, nil
		}
	}

	if c.next == nil {
		return "", nil
	}

	hash, err = c.next.CommandSetHash(ctx, scope)
	if err != nil {
		return "", errutil.With(err)
	}
	if hash != "" {
		c.store(ctx, key, hash)
	}

	return hash, nil
}

// SetCommandSetHash writes through to the durable store first. Redis
// failures are logged and absorbed by the fallback.
func (c *Cache) SetCommandSetHash(ctx context.Context, scope, hash string) error {
	if c.next != nil {
		if err := c.next.SetCommandSetHash(ctx, scope, hash); err != nil {
			return errutil.With(err)
		}
	}

	c.store(ctx, keyPrefix+scope, hash)
	return nil
}

func (c *Cache) store(ctx context.Context, key, hash string) {
	c.fallback.Set(key, hash, c.ttl)

	if err := c.breaker.Do(func() error {
		return c.c.Set(ctx, key, hash, c.ttl).Err()
	}, nil); err != nil {
		c.l.Warn("error caching command set hash", "key", key, "error", err)
	}
}

func isMiss(err error) bool {
	return errors.Is(err, redis.Nil)
}
