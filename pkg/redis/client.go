package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/norberto-e-888/pos-app/pkg/config"
	"github.com/norberto-e-888/pos-app/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// Every key this service writes lives under pos:<kind>:...
const (
	keyNamespace = "pos"
	kindDedup    = "idempotency"
	kindLock     = "lock"
)

var errNotConnected = errors.New("redis client not initialized")

// commands is the slice of go-redis the consumers and cron lock rely on.
type commands interface {
	Ping(context.Context) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	SetNX(context.Context, string, any, time.Duration) *redis.BoolCmd
	Incr(context.Context, string) *redis.IntCmd
	Expire(context.Context, string, time.Duration) *redis.BoolCmd
	Del(context.Context, ...string) *redis.IntCmd
}

// Client is the fast dedup cache in front of the durable consumer inbox and the
// backing store of the cron-worker lock. Losing it never loses correctness.
type Client struct {
	cmd  commands
	conn *redis.Client
}

// IdempotencyStore is what the consumer dedup guard needs from redis.
type IdempotencyStore interface {
	Get(context.Context, string) (string, error)
	SetNX(context.Context, string, any, time.Duration) (bool, error)
	IncrWithTTL(context.Context, string, time.Duration) (int64, error)
	IdempotencyKey(scope, id string) string
	Del(context.Context, ...string) error
}

// New dials redis with the pool settings from cfg and fails fast when the
// server does not answer a PING.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := options(cfg)
	if err != nil {
		return nil, err
	}
	conn := redis.NewClient(opts)
	if err := conn.Ping(ctx).Err(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "redis_db", opts.DB), "redis connection established")
	}
	return &Client{cmd: conn, conn: conn}, nil
}

// options prefers POS_REDIS_URL. Pool and timeout settings the URL leaves unset
// fall back to the explicit config fields.
func options(cfg config.RedisConfig) (*redis.Options, error) {
	var opts *redis.Options
	switch {
	case cfg.URL != "":
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
		if opts.DB == 0 {
			opts.DB = cfg.DB
		}
	case cfg.Address != "":
		opts = &redis.Options{Addr: cfg.Address, Password: cfg.Password, DB: cfg.DB}
	default:
		return nil, errors.New("redis url or address is required")
	}

	fill := func(dst *time.Duration, v time.Duration) {
		if *dst == 0 {
			*dst = v
		}
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if opts.MinIdleConns == 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	fill(&opts.DialTimeout, cfg.DialTimeout)
	fill(&opts.ReadTimeout, cfg.ReadTimeout)
	fill(&opts.WriteTimeout, cfg.WriteTimeout)
	return opts, nil
}

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	if c.cmd == nil {
		return "", errNotConnected
	}
	return c.cmd.Get(ctx, key).Result()
}

// SetNX claims key only if nobody holds it yet.
func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if c.cmd == nil {
		return false, errNotConnected
	}
	return c.cmd.SetNX(ctx, key, value, ttl).Result()
}

// IncrWithTTL increments a counter and arms its expiry on the first increment
// so abandoned counters age out.
func (c *Client) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if c.cmd == nil {
		return 0, errNotConnected
	}
	count, err := c.cmd.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if ttl > 0 && count == 1 {
		if err := c.cmd.Expire(ctx, key, ttl).Err(); err != nil {
			return count, fmt.Errorf("expire %s: %w", key, err)
		}
	}
	return count, nil
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	if c.cmd == nil {
		return errNotConnected
	}
	return c.cmd.Del(ctx, keys...).Err()
}

// Ping backs the readiness checks.
func (c *Client) Ping(ctx context.Context) error {
	if c.cmd == nil {
		return errNotConnected
	}
	return c.cmd.Ping(ctx).Err()
}

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// IdempotencyKey namespaces a consumer dedup key, e.g.
// pos:idempotency:evt:processed:aggregation:<message_key>.
func (c *Client) IdempotencyKey(scope, id string) string {
	return key(kindDedup, scope, id)
}

// LockKey namespaces a distributed lock, e.g. pos:lock:cron-worker:prod.
func (c *Client) LockKey(parts ...string) string {
	return key(append([]string{kindLock}, parts...)...)
}

func key(parts ...string) string {
	out := []string{keyNamespace}
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return strings.Join(out, ":")
}
