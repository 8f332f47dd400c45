package tools

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/researchbot/internal/config"
)

type funcTool struct {
	name  string
	calls atomic.Int32
	fn    func(ctx context.Context, args json.RawMessage) (string, error)
}

func (f *funcTool) Spec() Spec {
	return Spec{Name: f.name, Description: f.name, Parameters: QueryParameters()}
}

func (f *funcTool) Invoke(ctx context.Context, args json.RawMessage) (string, error) {
	f.calls.Add(1)
	return f.fn(ctx, args)
}

func echoTool(name string) *funcTool {
	return &funcTool{name: name, fn: func(_ context.Context, args json.RawMessage) (string, error) {
		q, err := parseQuery(args)
		return name + ":" + q, err
	}}
}

func TestRegistryExecute(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool("alpha"), 0))
	require.NoError(t, r.Register(echoTool("beta"), 0))
	assert.Error(t, r.Register(echoTool("alpha"), 0))

	specs := r.Specs()
	require.Len(t, specs, 2)
	assert.Equal(t, "alpha", specs[0].Name)
	assert.Equal(t, "beta", specs[1].Name)

	out, err := r.Execute(context.Background(), "beta", json.RawMessage(`{"query":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, "beta:x", out)

	_, err = r.Execute(context.Background(), "gamma", json.RawMessage(`{}`))
	assert.True(t, errors.Is(err, ErrUnknownTool))
}

func TestRegistryTimeout(t *testing.T) {
	slow := &funcTool{name: "slow", fn: func(ctx context.Context, _ json.RawMessage) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	r := NewRegistry(WithTimeout(20 * time.Millisecond))
	r.MustRegister(slow, 0)

	start := time.Now()
	_, err := r.Execute(context.Background(), "slow", json.RawMessage(`{"query":"x"}`))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRegistryCache(t *testing.T) {
	tool := echoTool("cached")
	r := NewRegistry(WithCache(NewMemoryCache(8, time.Minute)))
	r.MustRegister(tool, 0)

	ctx := context.Background()
	first, err := r.Execute(ctx, "cached", json.RawMessage(`{"query":"x"}`))
	require.NoError(t, err)
	// Same arguments with different spacing hit the cache.
	second, err := r.Execute(ctx, "cached", json.RawMessage(`{ "query" : "x" }`))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), tool.calls.Load())
}

func TestRegistryDoesNotCacheErrors(t *testing.T) {
	failing := &funcTool{name: "flaky", fn: func(context.Context, json.RawMessage) (string, error) {
		return "", errors.New("upstream down")
	}}
	r := NewRegistry(WithCache(NewMemoryCache(8, time.Minute)))
	r.MustRegister(failing, 0)

	for i := 0; i < 2; i++ {
		_, err := r.Execute(context.Background(), "flaky", json.RawMessage(`{"query":"x"}`))
		assert.Error(t, err)
	}
	assert.Equal(t, int32(2), failing.calls.Load())
}

func TestRegistryRateLimit(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(echoTool("limited"), 1)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := r.Execute(ctx, "limited", json.RawMessage(`{"query":"a"}`))
	require.NoError(t, err)
	// The second call would have to wait about a second.
	_, err = r.Execute(ctx, "limited", json.RawMessage(`{"query":"b"}`))
	assert.Error(t, err)
}

func TestMemoryCacheEvictionAndTTL(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(2, time.Minute)
	require.NoError(t, c.Set(ctx, "a", "1"))
	require.NoError(t, c.Set(ctx, "b", "2"))
	_, _, _ = c.Get(ctx, "a")
	require.NoError(t, c.Set(ctx, "c", "3"))

	_, ok, _ := c.Get(ctx, "b")
	assert.False(t, ok, "least recently used entry is evicted")
	v, ok, _ := c.Get(ctx, "a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
	assert.Equal(t, 2, c.Len())

	short := NewMemoryCache(2, time.Millisecond)
	require.NoError(t, short.Set(ctx, "k", "v"))
	time.Sleep(5 * time.Millisecond)
	_, ok, _ = short.Get(ctx, "k")
	assert.False(t, ok)
}

func TestNewCache(t *testing.T) {
	c, err := NewCache(CacheTypeNone)
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = NewCache(CacheTypeMemory, WithCapacity(4))
	require.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, c)

	_, err = NewCache(CacheTypeRedis)
	assert.ErrorIs(t, err, ErrInvalidCacheConfig)

	_, err = NewCache("disk")
	assert.ErrorIs(t, err, ErrInvalidCacheConfig)
}

func TestCacheKeyCanonical(t *testing.T) {
	assert.Equal(t, CacheKey("t", json.RawMessage(`{"query":"x"}`)), CacheKey("t", json.RawMessage(`{ "query":"x"}`)))
	assert.NotEqual(t, CacheKey("t", json.RawMessage(`{"query":"x"}`)), CacheKey("u", json.RawMessage(`{"query":"x"}`)))
}

func TestRedisCache(t *testing.T) {
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	c, err := NewCache(CacheTypeRedis, WithRedisClient(redis.NewClient(opts)), WithTTL(time.Minute))
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	key := CacheKey("test", json.RawMessage(`{"query":"`+time.Now().String()+`"}`))
	_, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, key, "value"))
	v, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "value", v)
}

func TestNewDefaultRegistry(t *testing.T) {
	r := NewDefaultRegistry(config.Default().Search, time.Second, nil)
	specs := r.Specs()
	require.Len(t, specs, 3)
	assert.Equal(t, WikipediaToolName, specs[0].Name)
	assert.Equal(t, ArxivToolName, specs[1].Name)
	assert.Equal(t, TavilyToolName, specs[2].Name)
}
