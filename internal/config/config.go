// Package config provides environment configuration for the platform binaries.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string        `yaml:"server_port"`
	ServerReadTimeout  time.Duration `yaml:"server_read_timeout"`
	ServerWriteTimeout time.Duration `yaml:"server_write_timeout"`

	// Shared secret for the internal data API. A run that starts without it
	// fails fatally; this is a configuration precondition, not a runtime error.
	InternalKey string `yaml:"internal_key"`

	// Store settings
	DBPath string `yaml:"db_path"`

	// NATS settings
	NATSURL      string `yaml:"nats_url"`
	NATSCAFile   string `yaml:"nats_ca_file"`
	NATSCertFile string `yaml:"nats_cert_file"`
	NATSKeyFile  string `yaml:"nats_key_file"`
	NATSToken    string `yaml:"nats_token"`

	// JWT settings (gateway)
	JWTSecret string `yaml:"jwt_secret"`

	// LLM settings
	GeminiAPIKey    string `yaml:"gemini_api_key"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	Provider        string `yaml:"provider"`
	AgentModel      string `yaml:"agent_model"`
	TitleModel      string `yaml:"title_model"`

	// Orchestrator settings
	HistoryLimit  int           `yaml:"history_limit"`
	MaxIterations int           `yaml:"max_iterations"`
	SettleDelay   time.Duration `yaml:"settle_delay"`
	TurnTimeout   time.Duration `yaml:"turn_timeout"`
	ToolTimeout   time.Duration `yaml:"tool_timeout"`
	StepRetries   uint64        `yaml:"step_retries"`

	// Rate limiting (gateway)
	RateLimitRequests int           `yaml:"rate_limit_requests"`
	RateLimitWindow   time.Duration `yaml:"rate_limit_window"`

	// Logging
	LogLevel string `yaml:"log_level"`

	// Tracing
	TracingEndpoint string `yaml:"tracing_endpoint"`
	TracingEnabled  bool   `yaml:"tracing_enabled"`
}

// Load reads configuration from the environment, applying an optional YAML
// file (CONFIG_FILE) underneath: file values fill in blanks, env wins.
func Load() (*Config, error) {
	cfg := &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second),

		// Internal data API
		InternalKey: getEnv("INTERNAL_KEY", ""),

		// Store
		DBPath: getEnv("DB_PATH", "agent-platform.db"),

		// NATS
		NATSURL:      getEnv("NATS_URL", "nats://localhost:4222"),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", "development-secret-change-in-production"),

		// LLM
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		Provider:        getEnv("LLM_PROVIDER", "gemini"),
		AgentModel:      getEnv("AGENT_MODEL", "gemini-2.5-flash"),
		TitleModel:      getEnv("TITLE_MODEL", "gemini-2.5-flash-lite"),

		// Orchestrator
		HistoryLimit:  getIntEnv("HISTORY_LIMIT", 10),
		MaxIterations: getIntEnv("MAX_ITERATIONS", 20),
		SettleDelay:   getDurationEnv("SETTLE_DELAY", time.Second),
		TurnTimeout:   getDurationEnv("TURN_TIMEOUT", 2*time.Minute),
		ToolTimeout:   getDurationEnv("TOOL_TIMEOUT", 30*time.Second),
		StepRetries:   uint64(getIntEnv("STEP_RETRIES", 3)),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// applyFile fills unset fields from a YAML config file. Environment values
// already present on cfg are left alone.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if c.InternalKey == "" {
		c.InternalKey = file.InternalKey
	}
	if c.GeminiAPIKey == "" {
		c.GeminiAPIKey = file.GeminiAPIKey
	}
	if c.OpenAIAPIKey == "" {
		c.OpenAIAPIKey = file.OpenAIAPIKey
	}
	if c.AnthropicAPIKey == "" {
		c.AnthropicAPIKey = file.AnthropicAPIKey
	}
	if os.Getenv("LLM_PROVIDER") == "" && file.Provider != "" {
		c.Provider = file.Provider
	}
	if os.Getenv("AGENT_MODEL") == "" && file.AgentModel != "" {
		c.AgentModel = file.AgentModel
	}
	if os.Getenv("TITLE_MODEL") == "" && file.TitleModel != "" {
		c.TitleModel = file.TitleModel
	}
	if os.Getenv("DB_PATH") == "" && file.DBPath != "" {
		c.DBPath = file.DBPath
	}
	if os.Getenv("NATS_URL") == "" && file.NATSURL != "" {
		c.NATSURL = file.NATSURL
	}
	if os.Getenv("JWT_SECRET") == "" && file.JWTSecret != "" {
		c.JWTSecret = file.JWTSecret
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
