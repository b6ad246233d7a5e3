package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the dqbank server.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	KB        KBConfig
	Generator GeneratorConfig
	Ticket    TicketConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// KBConfig tunes the knowledge bank core. The similarity threshold, score
// weights, and auto-approval gate are deliberately configuration rather
// than constants.
type KBConfig struct {
	Backend           string // "postgres" or "file"
	FilePath          string
	MatchThreshold    float64
	WeightSuccess     float64
	WeightSimilarity  float64
	WeightRecency     float64
	RecencyWindowDays int
	MinApprovals      int
	MinSuccessRate    float64
	MaxSuggestions    int
	EvalCacheTTL      time.Duration
}

type GeneratorConfig struct {
	Provider  string
	Timeout   time.Duration
	Ollama    OllamaConfig
	OpenAI    OpenAIConfig
	Anthropic AnthropicConfig
}

type OllamaConfig struct {
	BaseURL string
	Model   string
}

type OpenAIConfig struct {
	APIKey string
	Model  string
}

type AnthropicConfig struct {
	APIKey string
	Model  string
}

// TicketConfig configures the optional remediation ticket client.
// Ticketing is disabled when BaseURL is empty.
type TicketConfig struct {
	BaseURL string
	APIKey  string
	Project string
	Timeout time.Duration
}

type RateLimitConfig struct {
	RequestsPerMin int
}

var validBackends = map[string]bool{
	"postgres": true,
	"file":     true,
}

var validProviders = map[string]bool{
	"mock":      true,
	"ollama":    true,
	"openai":    true,
	"anthropic": true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("DQBANK_PORT", 8080),
			Env:  envString("DQBANK_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		KB: KBConfig{
			Backend:           envString("KB_BACKEND", "postgres"),
			FilePath:          envString("KB_FILE_PATH", "knowledge_bank.json"),
			MatchThreshold:    envFloat("KB_MATCH_THRESHOLD", 0.85),
			WeightSuccess:     envFloat("KB_WEIGHT_SUCCESS", 0.6),
			WeightSimilarity:  envFloat("KB_WEIGHT_SIMILARITY", 0.3),
			WeightRecency:     envFloat("KB_WEIGHT_RECENCY", 0.1),
			RecencyWindowDays: envInt("KB_RECENCY_WINDOW_DAYS", 90),
			MinApprovals:      envInt("KB_MIN_APPROVALS", 3),
			MinSuccessRate:    envFloat("KB_MIN_SUCCESS_RATE", 0.85),
			MaxSuggestions:    envInt("KB_MAX_SUGGESTIONS", 3),
			EvalCacheTTL:      envDuration("KB_EVAL_CACHE_TTL", 5*time.Minute),
		},
		Generator: GeneratorConfig{
			Provider: os.Getenv("GENERATOR_PROVIDER"),
			Timeout:  envDurationSecs("GENERATOR_TIMEOUT_SECS", 60*time.Second),
			Ollama: OllamaConfig{
				BaseURL: envString("OLLAMA_BASE_URL", "http://localhost:11434"),
				Model:   envString("OLLAMA_MODEL", "llama3"),
			},
			OpenAI: OpenAIConfig{
				APIKey: os.Getenv("OPENAI_API_KEY"),
				Model:  envString("OPENAI_MODEL", "gpt-4"),
			},
			Anthropic: AnthropicConfig{
				APIKey: os.Getenv("ANTHROPIC_API_KEY"),
				Model:  envString("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
			},
		},
		Ticket: TicketConfig{
			BaseURL: os.Getenv("TICKET_BASE_URL"),
			APIKey:  os.Getenv("TICKET_API_KEY"),
			Project: envString("TICKET_PROJECT", "DQ"),
			Timeout: envDuration("TICKET_TIMEOUT", 10*time.Second),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMin: envInt("RATE_LIMIT_PER_MIN", 60),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if !validBackends[c.KB.Backend] {
		return fmt.Errorf("KB_BACKEND must be one of postgres, file; got %q", c.KB.Backend)
	}
	if c.KB.Backend == "postgres" && c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required when KB_BACKEND is postgres")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.KB.MatchThreshold < 0 || c.KB.MatchThreshold > 1 {
		return fmt.Errorf("KB_MATCH_THRESHOLD must be in [0,1], got %v", c.KB.MatchThreshold)
	}
	if c.KB.MinSuccessRate < 0 || c.KB.MinSuccessRate > 1 {
		return fmt.Errorf("KB_MIN_SUCCESS_RATE must be in [0,1], got %v", c.KB.MinSuccessRate)
	}
	if c.KB.MinApprovals < 1 {
		return fmt.Errorf("KB_MIN_APPROVALS must be at least 1, got %d", c.KB.MinApprovals)
	}
	if c.KB.MaxSuggestions < 1 {
		return fmt.Errorf("KB_MAX_SUGGESTIONS must be at least 1, got %d", c.KB.MaxSuggestions)
	}

	if c.Generator.Provider == "" {
		return fmt.Errorf("GENERATOR_PROVIDER is required")
	}
	if !validProviders[c.Generator.Provider] {
		return fmt.Errorf("GENERATOR_PROVIDER must be one of mock, ollama, openai, anthropic; got %q", c.Generator.Provider)
	}
	if c.Generator.Provider == "openai" && c.Generator.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when GENERATOR_PROVIDER is openai")
	}
	if c.Generator.Provider == "anthropic" && c.Generator.Anthropic.APIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required when GENERATOR_PROVIDER is anthropic")
	}

	if c.Ticket.BaseURL != "" &&
		!strings.HasPrefix(c.Ticket.BaseURL, "http://") && !strings.HasPrefix(c.Ticket.BaseURL, "https://") {
		return fmt.Errorf("TICKET_BASE_URL must start with http:// or https://, got %q", c.Ticket.BaseURL)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
