package storex

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"go.eggybyte.com/orchid/faultx"
	"go.eggybyte.com/orchid/healthx"
	"go.eggybyte.com/orchid/obsx"
)

// RedisCache is a key/value cache on go-redis. Keys are scoped under a prefix
// and writes without an explicit TTL use the configured default.
type RedisCache struct {
	client     *redis.Client
	prefix     string
	defaultTTL time.Duration
	table      faultx.Table
	inst       instrument
}

// NewRedisCache parses s.URL, builds the client and pings it under the retry policy.
func NewRedisCache(ctx context.Context, s RedisSettings, opts ...Option) (*RedisCache, error) {
	o := newOptions("redis", opts)

	redisOpts, err := redis.ParseURL(s.URL)
	if err != nil {
		return nil, faultx.Validation(faultx.DomainCache, "connect", fmt.Sprintf("invalid redis URL: %v", err))
	}
	if s.PoolSize > 0 {
		redisOpts.PoolSize = s.PoolSize
	}
	if s.DialTimeout > 0 {
		redisOpts.DialTimeout = s.DialTimeout
	}
	if s.ReadTimeout > 0 {
		redisOpts.ReadTimeout = s.ReadTimeout
	}
	if s.WriteTimeout > 0 {
		redisOpts.WriteTimeout = s.WriteTimeout
	}

	client := redis.NewClient(redisOpts)
	c := newRedisCache(client, s, o)

	err = connect(ctx, o, s.Retry, func(ctx context.Context) error {
		return c.table.Translate("connect", redisOpts.Addr, client.Ping(ctx).Err())
	})
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return c, nil
}

// NewRedisCacheFromClient wraps an existing client without pinging it.
func NewRedisCacheFromClient(client *redis.Client, s RedisSettings, opts ...Option) *RedisCache {
	return newRedisCache(client, s, newOptions("redis", opts))
}

func newRedisCache(client *redis.Client, s RedisSettings, o options) *RedisCache {
	return &RedisCache{
		client:     client,
		prefix:     NormalizePrefix(s.KeyPrefix),
		defaultTTL: s.DefaultTTL,
		table:      RedisTable(),
		inst:       instrument{resource: o.name, recorder: o.recorder},
	}
}

// NormalizePrefix appends ":" to a non-empty prefix that lacks one.
func NormalizePrefix(prefix string) string {
	if prefix == "" || strings.HasSuffix(prefix, ":") {
		return prefix
	}
	return prefix + ":"
}

// Client exposes the underlying client. Errors from it are not translated.
func (c *RedisCache) Client() *redis.Client {
	return c.client
}

// Key returns key scoped under the cache prefix.
func (c *RedisCache) Key(key string) string {
	return c.prefix + key
}

// Get returns the value at key. A missing key is faultx.ErrNotFound.
func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	start := time.Now()
	value, err := c.client.Get(ctx, c.Key(key)).Result()
	err = c.table.Translate("get", c.Key(key), err)
	c.inst.observe("get", start, err)
	return value, err
}

// Set stores value at key. A ttl of zero uses the default TTL; a negative
// ttl stores without expiry.
func (c *RedisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	switch {
	case ttl == 0:
		ttl = c.defaultTTL
	case ttl < 0:
		ttl = 0
	}
	start := time.Now()
	err := c.table.Translate("set", c.Key(key), c.client.Set(ctx, c.Key(key), value, ttl).Err())
	c.inst.observe("set", start, err)
	return err
}

// Delete removes key and reports how many keys were removed.
func (c *RedisCache) Delete(ctx context.Context, key string) (int64, error) {
	start := time.Now()
	n, err := c.client.Del(ctx, c.Key(key)).Result()
	err = c.table.Translate("delete", c.Key(key), err)
	c.inst.observe("delete", start, err)
	return n, err
}

// Exists reports whether key is present.
func (c *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	start := time.Now()
	n, err := c.client.Exists(ctx, c.Key(key)).Result()
	err = c.table.Translate("exists", c.Key(key), err)
	c.inst.observe("exists", start, err)
	return n > 0, err
}

// HealthCheck pings the server and records a pool usage snapshot.
func (c *RedisCache) HealthCheck(ctx context.Context) (healthx.Status, error) {
	status := healthx.Measure(ctx, func(ctx context.Context) error {
		start := time.Now()
		err := c.table.Translate("ping", "", c.client.Ping(ctx).Err())
		c.inst.observe("ping", start, err)
		return err
	})
	if status.Healthy {
		st := c.client.PoolStats()
		c.inst.pool(obsx.PoolStats{
			Used: int(st.TotalConns) - int(st.IdleConns),
			Idle: int(st.IdleConns),
			Max:  c.client.Options().PoolSize,
		})
		if c.prefix != "" {
			status.Details = map[string]string{"key_prefix": c.prefix}
		}
	}
	return status, nil
}

// Close closes the client and its pool.
func (c *RedisCache) Close(context.Context) error {
	start := time.Now()
	err := c.client.Close()
	if errors.Is(err, redis.ErrClosed) {
		err = nil
	}
	err = c.table.Translate("close", "", err)
	c.inst.observe("close", start, err)
	return err
}

// RedisTable extends the cache table with go-redis specifics: redis.Nil is
// not found and server replies are classified by their leading word.
func RedisTable() faultx.Table {
	t := faultx.CacheTable()
	t.Classifiers = []faultx.Classifier{func(err error) (faultx.Kind, bool) {
		if errors.Is(err, redis.Nil) {
			return faultx.KindNotFound, true
		}
		if errors.Is(err, redis.ErrClosed) {
			return faultx.KindOperation, true
		}
		return "", false
	}}
	t.ExtractCode = redisCode
	return t
}

func redisCode(err error) string {
	var rerr redis.Error
	if !errors.As(err, &rerr) {
		return ""
	}
	code, _, _ := strings.Cut(rerr.Error(), " ")
	return code
}
