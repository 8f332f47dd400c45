// Package config provides configuration for the research assistant.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/xiaot623/gogo/researchbot/internal/logging"
)

const (
	// EnvGogoMode is the environment variable name for mode selection.
	EnvGogoMode = "GOGO_MODE"
	// ModeMock runs against the offline mock model and skips credential checks.
	ModeMock = "MOCK"
)

// Config holds the service configuration.
type Config struct {
	// Server settings
	HTTPPort  int     `toml:"http_port"`
	RateLimit float64 `toml:"rate_limit"` // requests per second per client IP on /api
	BodyLimit string  `toml:"body_limit"`
	Mode      string  `toml:"mode"`
	LogLevel  string  `toml:"log_level"` // debug, info, warn, error

	Database DatabaseConfig `toml:"database"`
	LLM      LLMConfig      `toml:"llm"`
	Search   SearchConfig   `toml:"search"`
	Agent    AgentConfig    `toml:"agent"`
	Cache    CacheConfig    `toml:"cache"`
	Policy   PolicyConfig   `toml:"policy"`
}

// DatabaseConfig selects the conversation store backend.
type DatabaseConfig struct {
	Driver string `toml:"driver"` // sqlite or postgres
	URL    string `toml:"url"`
}

// LLMConfig configures the hosted chat-completion model.
type LLMConfig struct {
	Provider     string        `toml:"provider"` // groq, openai, anthropic
	BaseURL      string        `toml:"base_url"`
	APIKey       string        `toml:"api_key"`
	Model        string        `toml:"model"`
	SystemPrompt string        `toml:"system_prompt"`
	MaxTokens    int           `toml:"max_tokens"`
	MaxRetries   int           `toml:"max_retries"`
	Timeout      time.Duration `toml:"timeout"`
}

// SearchConfig configures the lookup tools.
type SearchConfig struct {
	TavilyAPIKey    string  `toml:"tavily_api_key"`
	TavilyURL       string  `toml:"tavily_url"`
	WikipediaURL    string  `toml:"wikipedia_url"`
	ArxivURL        string  `toml:"arxiv_url"`
	MaxResults      int     `toml:"max_results"`
	MaxContentChars int     `toml:"max_content_chars"`
	WikipediaRPS    float64 `toml:"wikipedia_rps"`
	ArxivRPS        float64 `toml:"arxiv_rps"`
	TavilyRPS       float64 `toml:"tavily_rps"`
	UserAgent       string  `toml:"user_agent"`
}

// AgentConfig bounds the agent loop.
type AgentConfig struct {
	MaxToolRounds   int           `toml:"max_tool_rounds"`
	ToolConcurrency int           `toml:"tool_concurrency"`
	Timeout         time.Duration `toml:"timeout"`
	ToolTimeout     time.Duration `toml:"tool_timeout"`
}

// CacheConfig configures the tool result cache.
type CacheConfig struct {
	Type     string        `toml:"type"` // none, memory, redis
	RedisURL string        `toml:"redis_url"`
	TTL      time.Duration `toml:"ttl"`
	Capacity int           `toml:"capacity"`
}

// PolicyConfig configures the tool policy gate.
type PolicyConfig struct {
	File           string   `toml:"file"`
	DisabledTools  []string `toml:"disabled_tools"`
	MaxQueryLength int      `toml:"max_query_length"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		HTTPPort:  8080,
		RateLimit: 5,
		BodyLimit: "1M",
		LogLevel:  "info",
		Database: DatabaseConfig{
			Driver: "sqlite",
			URL:    "file:researchbot.db?cache=shared&mode=rwc",
		},
		LLM: LLMConfig{
			Provider:   "groq",
			Model:      "qwen/qwen3-32b",
			MaxTokens:  1024,
			MaxRetries: 2,
			Timeout:    60 * time.Second,
		},
		Search: SearchConfig{
			TavilyURL:       "https://api.tavily.com/search",
			WikipediaURL:    "https://en.wikipedia.org/w/api.php",
			ArxivURL:        "https://export.arxiv.org/api/query",
			MaxResults:      2,
			MaxContentChars: 500,
			WikipediaRPS:    5,
			ArxivRPS:        1.0 / 3.0,
			TavilyRPS:       5,
			UserAgent:       "researchbot/0.1 (+https://github.com/xiaot623/gogo)",
		},
		Agent: AgentConfig{
			MaxToolRounds:   8,
			ToolConcurrency: 3,
			Timeout:         120 * time.Second,
			ToolTimeout:     20 * time.Second,
		},
		Cache: CacheConfig{
			Type:     "memory",
			TTL:      15 * time.Minute,
			Capacity: 512,
		},
		Policy: PolicyConfig{
			MaxQueryLength: 300,
		},
	}
}

// Load loads configuration from defaults, an optional TOML file named by
// CONFIG_FILE, and finally environment variables.
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode config file %s: %w", path, err)
	}
	return nil
}

// ApplyEnvOverrides overlays environment variables onto cfg.
func (c *Config) ApplyEnvOverrides() {
	c.HTTPPort = getEnvInt("HTTP_PORT", c.HTTPPort)
	c.RateLimit = getEnvFloat("RATE_LIMIT", c.RateLimit)
	c.Mode = getEnv(EnvGogoMode, c.Mode)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	c.Database.Driver = getEnv("DATABASE_DRIVER", c.Database.Driver)
	c.Database.URL = getEnv("DATABASE_URL", c.Database.URL)

	c.LLM.Provider = strings.ToLower(getEnv("LLM_PROVIDER", c.LLM.Provider))
	c.LLM.BaseURL = getEnv("LLM_BASE_URL", c.LLM.BaseURL)
	c.LLM.Model = getEnv("LLM_MODEL", c.LLM.Model)
	c.LLM.SystemPrompt = getEnv("LLM_SYSTEM_PROMPT", c.LLM.SystemPrompt)
	c.LLM.MaxTokens = getEnvInt("LLM_MAX_TOKENS", c.LLM.MaxTokens)
	c.LLM.MaxRetries = getEnvInt("LLM_MAX_RETRIES", c.LLM.MaxRetries)
	c.LLM.Timeout = getEnvDuration("LLM_TIMEOUT_MS", c.LLM.Timeout)
	c.LLM.APIKey = getEnv("LLM_API_KEY", c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		switch c.LLM.Provider {
		case "anthropic":
			c.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "openai":
			c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		default:
			c.LLM.APIKey = os.Getenv("GROQ_API_KEY")
		}
	}

	c.Search.TavilyAPIKey = getEnv("TAVILY_API_KEY", c.Search.TavilyAPIKey)
	c.Search.TavilyURL = getEnv("TAVILY_URL", c.Search.TavilyURL)
	c.Search.WikipediaURL = getEnv("WIKIPEDIA_URL", c.Search.WikipediaURL)
	c.Search.ArxivURL = getEnv("ARXIV_URL", c.Search.ArxivURL)
	c.Search.MaxResults = getEnvInt("SEARCH_MAX_RESULTS", c.Search.MaxResults)
	c.Search.MaxContentChars = getEnvInt("SEARCH_MAX_CONTENT_CHARS", c.Search.MaxContentChars)

	c.Agent.MaxToolRounds = getEnvInt("AGENT_MAX_TOOL_ROUNDS", c.Agent.MaxToolRounds)
	c.Agent.ToolConcurrency = getEnvInt("AGENT_TOOL_CONCURRENCY", c.Agent.ToolConcurrency)
	c.Agent.Timeout = getEnvDuration("AGENT_TIMEOUT_MS", c.Agent.Timeout)
	c.Agent.ToolTimeout = getEnvDuration("TOOL_TIMEOUT_MS", c.Agent.ToolTimeout)

	c.Cache.Type = getEnv("CACHE_TYPE", c.Cache.Type)
	c.Cache.RedisURL = getEnv("REDIS_URL", c.Cache.RedisURL)
	c.Cache.TTL = getEnvDuration("CACHE_TTL_MS", c.Cache.TTL)

	c.Policy.File = getEnv("POLICY_FILE", c.Policy.File)
	if v := os.Getenv("DISABLED_TOOLS"); v != "" {
		c.Policy.DisabledTools = splitList(v)
	}
}

// Level returns the parsed log level, falling back to info.
func (c *Config) Level() logging.Level {
	level, _ := logging.ParseLevel(c.LogLevel)
	return level
}

// IsMock reports whether the offline mock model is selected.
func (c *Config) IsMock() bool {
	return strings.EqualFold(c.Mode, ModeMock)
}

// Validate fails fast on missing credentials and nonsensical bounds.
func (c *Config) Validate() error {
	var errs []error
	if !c.IsMock() {
		if c.LLM.APIKey == "" {
			errs = append(errs, fmt.Errorf("model API key is required for provider %q (set LLM_API_KEY)", c.LLM.Provider))
		}
		if c.Search.TavilyAPIKey == "" {
			errs = append(errs, errors.New("TAVILY_API_KEY is required"))
		}
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("unsupported database driver %q", c.Database.Driver))
	}
	switch c.Cache.Type {
	case "", "none", "memory":
	case "redis":
		if c.Cache.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required when CACHE_TYPE=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported cache type %q", c.Cache.Type))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.Agent.MaxToolRounds < 1 {
		errs = append(errs, errors.New("agent max_tool_rounds must be at least 1"))
	}
	if c.Search.MaxResults < 1 || c.Search.MaxContentChars < 1 {
		errs = append(errs, errors.New("search bounds must be positive"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// getEnvDuration reads a millisecond count.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if ms, err := strconv.Atoi(val); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultVal
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
