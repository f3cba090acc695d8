package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Catalog   CatalogConfig
	LLM       LLMConfig
	Matching  MatchingConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// CatalogConfig holds catalog ingestion configuration
type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

// LLMConfig holds language-model collaborator configuration
type LLMConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RequestsPerMin int           `mapstructure:"requests_per_min"`
	Enabled        bool          `mapstructure:"enabled"`
}

// MatchingConfig holds matching engine configuration
type MatchingConfig struct {
	FuzzyMinThreshold  float64 `mapstructure:"fuzzy_min_threshold"`
	DiversityFactor    float64 `mapstructure:"diversity_factor"`
	EnableDebugLogging bool    `mapstructure:"enable_debug_logging"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/cartmatch/")

	// Environment variable settings
	v.SetEnvPrefix("CARTMATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using environment variables and defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Catalog defaults
	v.SetDefault("catalog.path", "catalog.json")

	// LLM defaults
	v.SetDefault("llm.base_url", "https://api.openai.com")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.timeout", "30s")
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.requests_per_min", 60)
	v.SetDefault("llm.enabled", true)

	// Matching defaults
	v.SetDefault("matching.fuzzy_min_threshold", 0.3)
	v.SetDefault("matching.diversity_factor", 0.3)
	v.SetDefault("matching.enable_debug_logging", false)

	// Cache defaults
	v.SetDefault("cache.ttl", "24h")

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 100)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Catalog.Path == "" {
		return fmt.Errorf("catalog path is required (set CARTMATCH_CATALOG_PATH)")
	}

	if config.LLM.Enabled && config.LLM.APIKey == "" {
		return fmt.Errorf("LLM API key is required when LLM is enabled (set CARTMATCH_LLM_API_KEY or disable with CARTMATCH_LLM_ENABLED=false)")
	}

	if config.Matching.FuzzyMinThreshold < 0 || config.Matching.FuzzyMinThreshold > 1 {
		return fmt.Errorf("matching fuzzy threshold must be in [0,1], got: %g", config.Matching.FuzzyMinThreshold)
	}

	return nil
}
