package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xiaot623/gogo/researchbot/internal/adapter/llm"
	"github.com/xiaot623/gogo/researchbot/internal/agent"
	"github.com/xiaot623/gogo/researchbot/internal/config"
	"github.com/xiaot623/gogo/researchbot/internal/hub"
	"github.com/xiaot623/gogo/researchbot/internal/logging"
	store "github.com/xiaot623/gogo/researchbot/internal/repository"
	"github.com/xiaot623/gogo/researchbot/internal/service"
	"github.com/xiaot623/gogo/researchbot/internal/tools"
	httpserver "github.com/xiaot623/gogo/researchbot/internal/transport/http"
	"github.com/xiaot623/gogo/researchbot/internal/transport/ws"
	"github.com/xiaot623/gogo/researchbot/policy"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	logging.Setup(os.Stderr, cfg.Level())

	log.Printf("Starting researchbot...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Database driver: %s", cfg.Database.Driver)
	log.Printf("LLM provider: %s (model %s)", cfg.LLM.Provider, cfg.LLM.Model)
	log.Printf("Tool cache: %s", cfg.Cache.Type)
	log.Printf("Log level: %s", cfg.LogLevel)
	if cfg.IsMock() {
		log.Printf("Mode: %s", config.ModeMock)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize store
	db, err := store.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	// Initialize tool cache
	cache, err := newToolCache(cfg.Cache)
	if err != nil {
		log.Fatalf("Failed to initialize tool cache: %v", err)
	}
	if cache != nil {
		defer cache.Close()
	}

	// Initialize tools
	registry := tools.NewDefaultRegistry(cfg.Search, cfg.Agent.ToolTimeout, cache)

	// Initialize policy engine
	policyOpts := []policy.Option{
		policy.WithDisabledTools(cfg.Policy.DisabledTools...),
		policy.WithMaxQueryLength(cfg.Policy.MaxQueryLength),
	}
	var policyEngine *policy.Engine
	if cfg.Policy.File != "" {
		policyEngine, err = policy.NewEngineFromFile(ctx, cfg.Policy.File, policyOpts...)
	} else {
		policyEngine, err = policy.NewEngine(ctx, policy.DefaultPolicy, policyOpts...)
	}
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	// Initialize model
	model, err := llm.NewModel(cfg, registry.Specs())
	if err != nil {
		log.Fatalf("Failed to initialize model: %v", err)
	}

	loop := agent.New(model, registry,
		agent.WithMaxToolRounds(cfg.Agent.MaxToolRounds),
		agent.WithToolConcurrency(cfg.Agent.ToolConcurrency),
		agent.WithTimeout(cfg.Agent.Timeout),
		agent.WithGate(policyEngine),
	)

	// Initialize progress hub
	h := hub.NewHub()
	go h.Run(ctx)

	// Initialize service and server
	svc := service.New(db, loop, h)
	server := httpserver.NewServer(cfg, svc, ws.NewServer(h))

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("Server started on port %d", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down researchbot...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server gracefully: %v", err)
	}
	cancel()

	log.Println("Researchbot stopped")
}

func newToolCache(cfg config.CacheConfig) (tools.Cache, error) {
	opts := []tools.CacheOption{
		tools.WithCapacity(cfg.Capacity),
		tools.WithTTL(cfg.TTL),
	}
	if tools.CacheType(cfg.Type) == tools.CacheTypeRedis {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		opts = append(opts, tools.WithRedisClient(redis.NewClient(redisOpts)))
	}
	return tools.NewCache(tools.CacheType(cfg.Type), opts...)
}
