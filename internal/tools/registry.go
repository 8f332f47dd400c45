package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Registry stores tools keyed by name and runs them with a timeout,
// a per-tool rate limiter and an optional result cache.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]Tool
	order    []string
	limiters map[string]*rate.Limiter
	cache    Cache
	timeout  time.Duration
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithTimeout bounds each tool invocation.
func WithTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) { r.timeout = d }
}

// WithCache enables result caching.
func WithCache(c Cache) RegistryOption {
	return func(r *Registry) { r.cache = c }
}

// NewRegistry creates an empty tool registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		tools:    make(map[string]Tool),
		limiters: make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a tool. rps > 0 limits outbound calls for that tool.
func (r *Registry) Register(tool Tool, rps float64) error {
	if tool == nil {
		return fmt.Errorf("tool is required")
	}
	name := tool.Spec().Name
	if name == "" {
		return fmt.Errorf("tool name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool already registered for %s", name)
	}
	r.tools[name] = tool
	r.order = append(r.order, name)
	if rps > 0 {
		r.limiters[name] = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return nil
}

// MustRegister adds a tool or panics.
func (r *Registry) MustRegister(tool Tool, rps float64) {
	if err := r.Register(tool, rps); err != nil {
		panic(err)
	}
}

// Specs returns the specs of all registered tools in registration order.
func (r *Registry) Specs() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]Spec, 0, len(r.order))
	for _, name := range r.order {
		specs = append(specs, r.tools[name].Spec())
	}
	return specs
}

// Execute runs the named tool.
func (r *Registry) Execute(ctx context.Context, toolName string, args json.RawMessage) (string, error) {
	r.mu.RLock()
	tool := r.tools[toolName]
	limiter := r.limiters[toolName]
	r.mu.RUnlock()
	if tool == nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, toolName)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var key string
	if r.cache != nil {
		key = CacheKey(toolName, args)
		if val, ok, err := r.cache.Get(ctx, key); err != nil {
			log.Printf("WARN: tool cache get failed for %s: %v", toolName, err)
		} else if ok {
			return val, nil
		}
	}

	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait for %s: %w", toolName, err)
		}
	}

	out, err := tool.Invoke(ctx, args)
	if err != nil {
		return "", err
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, key, out); err != nil {
			log.Printf("WARN: tool cache set failed for %s: %v", toolName, err)
		}
	}
	return out, nil
}
