// Package cache stores judge responses in Redis keyed by a hash of the
// request, so re-running a battery does not pay for identical judgments.
// Redis failures degrade to uncached calls; they never fail a judgment.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ahrav/agentjudge/internal/llm/configuration"
	llmerrors "github.com/ahrav/agentjudge/internal/llm/errors"
	"github.com/ahrav/agentjudge/internal/llm/transport"
)

const (
	keyPrefix         = "agentjudge:judge:"
	defaultPoolSize   = 10
	connectionTimeout = 5 * time.Second
)

// Store is the byte-level cache backend.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisStore adapts a go-redis client to Store.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore wraps client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// Get returns llmerrors.ErrCacheMiss when key is absent.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, llmerrors.ErrCacheMiss
	}
	return b, err
}

// Set stores value with ttl.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// entry is the stored form of a response.
type entry struct {
	Response   transport.Response `json:"response"`
	StoredAtMs int64              `json:"stored_at_ms"`
}

// Stats counts cache outcomes. Rejected counts responses the caller's
// Accept hook refused, whether fresh or read back from the store.
type Stats struct {
	Hits     int64
	Misses   int64
	Errors   int64
	Rejected int64
}

// Middleware caches successful judge responses.
type Middleware struct {
	store  Store
	ttl    time.Duration
	logger *slog.Logger

	hits     atomic.Int64
	misses   atomic.Int64
	errors   atomic.Int64
	rejected atomic.Int64
}

// Dial connects to the Redis server in cfg and verifies it answers PING.
func Dial(ctx context.Context, cfg configuration.CacheConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		PoolSize: defaultPoolSize,
	})
	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
	}
	return client, nil
}

// New returns a cache middleware over store.
func New(store Store, ttl time.Duration) *Middleware {
	if ttl <= 0 {
		ttl = configuration.DefaultCacheTTL
	}
	return &Middleware{
		store:  store,
		ttl:    ttl,
		logger: slog.Default().With("component", "cache"),
	}
}

// Stats returns a snapshot of the counters.
func (m *Middleware) Stats() Stats {
	return Stats{
		Hits:     m.hits.Load(),
		Misses:   m.misses.Load(),
		Errors:   m.errors.Load(),
		Rejected: m.rejected.Load(),
	}
}

// Wrap implements transport.Middleware. Only responses the request accepts
// are stored, and a stored response the request no longer accepts is
// treated as a miss.
func (m *Middleware) Wrap(next transport.Handler) transport.Handler {
	return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
		key := keyPrefix + req.Key()

		if resp, ok := m.lookup(ctx, key); ok {
			if err := req.Accepts(resp); err == nil {
				m.hits.Add(1)
				m.logger.Debug("cache hit", "scorer", req.Scorer, "model", req.Model)
				return resp, nil
			}
			m.rejected.Add(1)
			m.logger.Warn("ignoring unusable cached response", "scorer", req.Scorer, "key", key)
		}
		m.misses.Add(1)

		resp, err := next.Handle(ctx, req)
		if err != nil {
			return nil, err
		}
		if err := req.Accepts(resp); err != nil {
			m.rejected.Add(1)
			m.logger.Debug("not caching unusable response", "scorer", req.Scorer, "error", err)
			return resp, nil
		}

		b, err := json.Marshal(entry{Response: *resp, StoredAtMs: time.Now().UnixMilli()})
		if err == nil {
			err = m.store.Set(ctx, key, b, m.ttl)
		}
		if err != nil {
			m.errors.Add(1)
			m.logger.Warn("cache set error", "error", err)
		}
		return resp, nil
	})
}

func (m *Middleware) lookup(ctx context.Context, key string) (*transport.Response, bool) {
	b, err := m.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, llmerrors.ErrCacheMiss) {
			m.errors.Add(1)
			m.logger.Warn("cache get error", "error", err)
		}
		return nil, false
	}

	var e entry
	if err := json.Unmarshal(b, &e); err != nil || e.Response.Content == "" {
		m.errors.Add(1)
		m.logger.Warn("discarding corrupt cache entry", "key", key)
		return nil, false
	}
	resp := e.Response
	resp.Cached = true
	return &resp, true
}
