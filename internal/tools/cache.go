package tools

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheType selects a cache driver.
type CacheType string

const (
	CacheTypeNone   CacheType = "none"
	CacheTypeMemory CacheType = "memory"
	CacheTypeRedis  CacheType = "redis"
)

const cacheKeyPrefix = "toolcache:"

// ErrInvalidCacheConfig is returned when a driver is missing a required option.
var ErrInvalidCacheConfig = errors.New("invalid cache configuration")

// Cache stores tool outputs keyed by tool name and arguments.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Close() error
}

type cacheConfig struct {
	capacity    int
	ttl         time.Duration
	redisClient *redis.Client
}

// CacheOption configures NewCache.
type CacheOption func(*cacheConfig)

// WithCapacity bounds the memory cache.
func WithCapacity(n int) CacheOption {
	return func(c *cacheConfig) { c.capacity = n }
}

// WithTTL sets the entry lifetime.
func WithTTL(d time.Duration) CacheOption {
	return func(c *cacheConfig) { c.ttl = d }
}

// WithRedisClient sets the client used by the redis driver.
func WithRedisClient(client *redis.Client) CacheOption {
	return func(c *cacheConfig) { c.redisClient = client }
}

// NewCache creates a Cache for the given type. It returns nil, nil for "none".
func NewCache(cacheType CacheType, opts ...CacheOption) (Cache, error) {
	cfg := &cacheConfig{capacity: 512, ttl: 15 * time.Minute}
	for _, opt := range opts {
		opt(cfg)
	}

	switch cacheType {
	case "", CacheTypeNone:
		return nil, nil
	case CacheTypeMemory:
		return NewMemoryCache(cfg.capacity, cfg.ttl), nil
	case CacheTypeRedis:
		if cfg.redisClient == nil {
			return nil, fmt.Errorf("%w: redis client is required", ErrInvalidCacheConfig)
		}
		return NewRedisCache(cfg.redisClient, cfg.ttl), nil
	default:
		return nil, fmt.Errorf("%w: unsupported cache type %q", ErrInvalidCacheConfig, cacheType)
	}
}

// CacheKey hashes the tool name and canonicalized arguments.
func CacheKey(toolName string, args json.RawMessage) string {
	canonical := []byte(args)
	var v any
	if err := json.Unmarshal(args, &v); err == nil {
		if b, err := json.Marshal(v); err == nil {
			canonical = b
		}
	}
	h := sha256.New()
	h.Write([]byte(toolName))
	h.Write([]byte{0})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil))
}

// MemoryCache is a thread-safe LRU cache with TTL.
type MemoryCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*list.Element
	lru      *list.List
}

type cacheEntry struct {
	key       string
	value     string
	expiresAt time.Time
}

// NewMemoryCache creates an LRU cache holding at most capacity entries.
func NewMemoryCache(capacity int, ttl time.Duration) *MemoryCache {
	if capacity <= 0 {
		capacity = 512
	}
	return &MemoryCache{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*list.Element, capacity),
		lru:      list.New(),
	}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return "", false, nil
	}
	ent := elem.Value.(*cacheEntry)
	if c.ttl > 0 && time.Now().After(ent.expiresAt) {
		c.lru.Remove(elem)
		delete(c.items, key)
		return "", false, nil
	}
	c.lru.MoveToFront(elem)
	return ent.value, true, nil
}

// Set implements Cache.
func (c *MemoryCache) Set(_ context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := time.Now().Add(c.ttl)
	if elem, ok := c.items[key]; ok {
		c.lru.MoveToFront(elem)
		ent := elem.Value.(*cacheEntry)
		ent.value = value
		ent.expiresAt = expiresAt
		return nil
	}

	c.items[key] = c.lru.PushFront(&cacheEntry{key: key, value: value, expiresAt: expiresAt})
	if c.lru.Len() > c.capacity {
		if oldest := c.lru.Back(); oldest != nil {
			c.lru.Remove(oldest)
			delete(c.items, oldest.Value.(*cacheEntry).key)
		}
	}
	return nil
}

// Len returns the number of cached entries.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Close implements Cache.
func (c *MemoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element, c.capacity)
	c.lru.Init()
	return nil
}

// RedisCache stores tool outputs in Redis with a TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache wraps a Redis client.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, cacheKeyPrefix+key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, key, value string) error {
	return c.client.Set(ctx, cacheKeyPrefix+key, value, c.ttl).Err()
}

// Close implements Cache.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
