package knowledge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss indicates the key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// Cache is a byte-oriented key/value cache with prefix invalidation.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeleteByPrefix(ctx context.Context, prefix string) error
	Close() error
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisCache implements Cache on Redis.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "flashdeck:"
	}
	return &RedisCache{client: client, prefix: prefix}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return val, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *RedisCache) DeleteByPrefix(ctx context.Context, prefix string) error {
	iter := c.client.Scan(ctx, 0, c.prefix+prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis delete by prefix: %w", err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// MemoryCache is an in-process Cache used when no Redis address is configured.
type MemoryCache struct {
	mu   sync.Mutex
	data map[string]memoryEntry
	now  func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{data: make(map[string]memoryEntry), now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.data[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	if !entry.expiresAt.IsZero() && c.now().After(entry.expiresAt) {
		delete(c.data, key)
		return nil, ErrCacheMiss
	}
	return entry.value, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}
	c.data[key] = entry
	return nil
}

func (c *MemoryCache) DeleteByPrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.data {
		if strings.HasPrefix(key, prefix) {
			delete(c.data, key)
		}
	}
	return nil
}

func (c *MemoryCache) Close() error { return nil }

// CachedStore serves repeated queries from a Cache. Indexing into a deck
// drops that deck's cached queries along with any cross-deck ones.
type CachedStore struct {
	Store  Store
	Cache  Cache
	TTL    time.Duration
	Logger *slog.Logger
}

const allDecksScope = "_all"

func (s *CachedStore) Index(ctx context.Context, docs []Document) error {
	if err := s.Store.Index(ctx, docs); err != nil {
		return err
	}
	seen := map[string]bool{allDecksScope: true}
	s.invalidate(ctx, allDecksScope)
	for _, d := range docs {
		if seen[d.DeckID] {
			continue
		}
		seen[d.DeckID] = true
		s.invalidate(ctx, d.DeckID)
	}
	return nil
}

func (s *CachedStore) Query(ctx context.Context, text, deckID string, k int) ([]Match, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	key := queryCacheKey(deckID, text, k)
	logCtx := s.logger().With("deckId", deckID, "cacheKey", key)

	if cached, err := s.Cache.Get(ctx, key); err == nil {
		var matches []Match
		if err := json.Unmarshal(cached, &matches); err == nil {
			logCtx.Debug("Serving query from cache")
			return matches, nil
		}
		logCtx.Warn("Discarding undecodable cache entry")
	} else if !errors.Is(err, ErrCacheMiss) {
		logCtx.Warn("Query cache read failed", "error", err)
	}

	matches, err := s.Store.Query(ctx, text, deckID, k)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(matches); err == nil {
		if err := s.Cache.Set(ctx, key, data, s.TTL); err != nil {
			logCtx.Warn("Query cache write failed", "error", err)
		}
	}
	return matches, nil
}

func (s *CachedStore) invalidate(ctx context.Context, scope string) {
	if err := s.Cache.DeleteByPrefix(ctx, "query:"+scope+":"); err != nil {
		s.logger().Warn("Failed to invalidate query cache", "scope", scope, "error", err)
	}
}

func (s *CachedStore) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func queryCacheKey(deckID, text string, k int) string {
	scope := deckID
	if scope == "" {
		scope = allDecksScope
	}
	sum := sha256.Sum256([]byte(text))
	return "query:" + scope + ":" + strconv.Itoa(k) + ":" + hex.EncodeToString(sum[:])
}
