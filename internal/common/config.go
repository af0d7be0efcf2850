package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Queue       QueueConfig     `toml:"queue"`
	RateLimit   RateLimitConfig `toml:"rate_limit"`
	Retry       RetryConfig     `toml:"retry"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Gemini      GeminiConfig    `toml:"gemini"`
	Claude      ClaudeConfig    `toml:"claude"`
	LLM         LLMConfig       `toml:"llm"`
	Analytics   AnalyticsConfig `toml:"analytics"`
}

// QueueConfig controls admission and dispatch behavior
type QueueConfig struct {
	Capacity       int    `toml:"capacity"`        // Max queued jobs before submissions are rejected
	MaxConcurrency int    `toml:"max_concurrency"` // Number of concurrent dispatch workers
	PollInterval   string `toml:"poll_interval"`   // e.g., "50ms" - dispatcher fallback poll cadence
}

// RateLimitConfig controls the per-model token buckets
type RateLimitConfig struct {
	RequestCapacity        float64                      `toml:"request_capacity"`          // Default request bucket size
	RequestRefillPerSecond float64                      `toml:"request_refill_per_second"` // Default request refill rate
	TokenCapacity          float64                      `toml:"token_capacity"`            // Default token bucket size
	TokenRefillPerSecond   float64                      `toml:"token_refill_per_second"`   // Default token refill rate
	Models                 map[string]ModelBucketConfig `toml:"models"`                    // Per-model overrides
}

// ModelBucketConfig overrides bucket sizing for one model
type ModelBucketConfig struct {
	RequestCapacity        float64 `toml:"request_capacity"`
	RequestRefillPerSecond float64 `toml:"request_refill_per_second"`
	TokenCapacity          float64 `toml:"token_capacity"`
	TokenRefillPerSecond   float64 `toml:"token_refill_per_second"`
}

// RetryConfig controls retry of transient provider failures
type RetryConfig struct {
	MaxRetries        int     `toml:"max_retries"`        // Retries after the first attempt (default: 3)
	InitialBackoff    string  `toml:"initial_backoff"`    // e.g., "500ms"
	MaxBackoff        string  `toml:"max_backoff"`        // e.g., "30s"
	BackoffMultiplier float64 `toml:"backoff_multiplier"` // Exponential growth factor (default: 2.0)
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Format string   `toml:"format"` // "json" or "text"
	Output []string `toml:"output"` // "stdout", "file"
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey            string  `toml:"api_key"`             // Google Gemini API key
	Model             string  `toml:"model"`               // Default model (default: "gemini-2.5-flash")
	Timeout           string  `toml:"timeout"`             // Per-call timeout as duration string (default: "2m")
	RequestsPerSecond float64 `toml:"requests_per_second"` // Outbound request pacing (default: 2)
	Temperature       float32 `toml:"temperature"`         // Completion temperature (default: 0.7)
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey            string  `toml:"api_key"`             // Anthropic API key
	Model             string  `toml:"model"`               // Default model (default: "claude-sonnet-4-20250514")
	MaxTokens         int     `toml:"max_tokens"`          // Maximum tokens in response (default: 8192)
	Timeout           string  `toml:"timeout"`             // Per-call timeout as duration string (default: "2m")
	RequestsPerSecond float64 `toml:"requests_per_second"` // Outbound request pacing (default: 2)
	Temperature       float32 `toml:"temperature"`         // Completion temperature (default: 0.7)
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig contains unified configuration for all AI providers
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider"` // Default provider: "gemini" or "claude" (default: "claude")
}

// AnalyticsConfig controls the periodic usage rollup
type AnalyticsConfig struct {
	Enabled  bool   `toml:"enabled"`  // Enable scheduled rollups
	Schedule string `toml:"schedule"` // Cron schedule format (default: "0 0 * * * *")
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Queue: QueueConfig{
			Capacity:       128,
			MaxConcurrency: 4,
			PollInterval:   "50ms",
		},
		RateLimit: RateLimitConfig{
			RequestCapacity:        10,
			RequestRefillPerSecond: 1,
			TokenCapacity:          200000,
			TokenRefillPerSecond:   20000,
		},
		Retry: RetryConfig{
			MaxRetries:        3,
			InitialBackoff:    "500ms",
			MaxBackoff:        "30s",
			BackoffMultiplier: 2.0,
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout", "file"},
		},
		Gemini: GeminiConfig{
			Model:             "gemini-2.5-flash",
			Timeout:           "2m",
			RequestsPerSecond: 2,
			Temperature:       0.7,
		},
		Claude: ClaudeConfig{
			Model:             "claude-sonnet-4-20250514",
			MaxTokens:         8192,
			Timeout:           "2m",
			RequestsPerSecond: 2,
			Temperature:       0.7,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderClaude,
		},
		Analytics: AnalyticsConfig{
			Enabled:  false,
			Schedule: "0 0 * * * *", // Hourly (cron format with seconds)
		},
	}
}

// LoadConfig loads configuration from TOML files in order. Later files
// override earlier ones; environment variables override everything.
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	// Apply environment variables (overrides all file configs)
	applyEnvOverrides(config)

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	// Environment configuration (highest priority: COGITO_ENV, fallback: GO_ENV)
	if env := os.Getenv("COGITO_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Queue configuration
	if capacity := os.Getenv("COGITO_QUEUE_CAPACITY"); capacity != "" {
		if v, err := strconv.Atoi(capacity); err == nil {
			config.Queue.Capacity = v
		}
	}
	if concurrency := os.Getenv("COGITO_QUEUE_MAX_CONCURRENCY"); concurrency != "" {
		if v, err := strconv.Atoi(concurrency); err == nil {
			config.Queue.MaxConcurrency = v
		}
	}
	if pollInterval := os.Getenv("COGITO_QUEUE_POLL_INTERVAL"); pollInterval != "" {
		config.Queue.PollInterval = pollInterval
	}

	// Retry configuration
	if maxRetries := os.Getenv("COGITO_RETRY_MAX_RETRIES"); maxRetries != "" {
		if v, err := strconv.Atoi(maxRetries); err == nil {
			config.Retry.MaxRetries = v
		}
	}

	// Storage configuration
	if badgerPath := os.Getenv("COGITO_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Logging configuration
	if level := os.Getenv("COGITO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("COGITO_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("COGITO_LOG_OUTPUT"); output != "" {
		config.Logging.Output = strings.Split(output, ",")
	}

	// Gemini configuration
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if apiKey := os.Getenv("COGITO_GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if model := os.Getenv("COGITO_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}

	// Claude configuration
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if apiKey := os.Getenv("COGITO_CLAUDE_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if model := os.Getenv("COGITO_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}

	// LLM configuration
	if provider := os.Getenv("COGITO_LLM_DEFAULT_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(provider)
	}

	// Analytics configuration
	if schedule := os.Getenv("COGITO_ANALYTICS_SCHEDULE"); schedule != "" {
		config.Analytics.Schedule = schedule
	}
}

// validateConfig rejects configurations the orchestrator cannot run with.
func validateConfig(config *Config) error {
	if config.Queue.Capacity <= 0 {
		return fmt.Errorf("queue.capacity must be positive, got %d", config.Queue.Capacity)
	}
	if config.Queue.MaxConcurrency <= 0 {
		return fmt.Errorf("queue.max_concurrency must be positive, got %d", config.Queue.MaxConcurrency)
	}
	if config.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must not be negative, got %d", config.Retry.MaxRetries)
	}
	switch config.LLM.DefaultProvider {
	case LLMProviderGemini, LLMProviderClaude:
	default:
		return fmt.Errorf("llm.default_provider must be 'gemini' or 'claude', got %q", config.LLM.DefaultProvider)
	}
	if config.Analytics.Enabled {
		parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		if _, err := parser.Parse(config.Analytics.Schedule); err != nil {
			return fmt.Errorf("invalid analytics.schedule %q: %w", config.Analytics.Schedule, err)
		}
	}
	return nil
}
