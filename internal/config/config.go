// Package config loads and validates the gateway configuration.
//
// DESIGN: All configuration MUST come from YAML files. No defaults for
// required fields. This ensures explicit, auditable configuration for
// production deployments.
//
// FILES:
//   - config.go:    Root Config struct, Load(), Validate()
//   - providers.go: Provider credentials, endpoint resolution
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the gateway.
type Config struct {
	Server     ServerConfig     `yaml:"server"`     // HTTP server settings
	Providers  ProvidersConfig  `yaml:"providers"`  // LLM provider configurations
	Search     SearchConfig     `yaml:"search"`     // Web-search augmentation
	Store      StoreConfig      `yaml:"store"`      // Session persistence
	Monitoring MonitoringConfig `yaml:"monitoring"` // Logging settings
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`           // Port to listen on
	ReadTimeout  time.Duration `yaml:"read_timeout"`   // Max time to read request
	WriteTimeout time.Duration `yaml:"write_timeout"`  // Max time to write response
	RateLimitRPS int           `yaml:"rate_limit_rps"` // Per-IP requests per second, 0 disables
}

// StoreConfig contains session store settings.
type StoreConfig struct {
	Type string `yaml:"type"` // "memory" or "sqlite"
	Path string `yaml:"path"` // Database file path (sqlite only)
}

// SearchConfig contains web-search augmentation settings.
type SearchConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Endpoint        string        `yaml:"endpoint"`         // Search API URL
	APIKey          string        `yaml:"api_key"`          // Subscription key
	Timeout         time.Duration `yaml:"timeout"`          // Per-request timeout
	MaxResults      int           `yaml:"max_results"`      // Results per query
	CacheCapacity   int           `yaml:"cache_capacity"`   // Entries per cache instance
	SearchTTL       time.Duration `yaml:"search_ttl"`
	DeepTTL         time.Duration `yaml:"deep_search_ttl"`
	LocationTTL     time.Duration `yaml:"location_ttl"`
	RefinerProvider string        `yaml:"refiner_provider"` // Provider used for query refinement
}

// MonitoringConfig contains logging settings.
type MonitoringConfig struct {
	LogLevel  string `yaml:"log_level"`  // debug, info, warn, error
	LogFormat string `yaml:"log_format"` // json, console
	LogOutput string `yaml:"log_output"` // stdout, stderr, or file path
}

// expandEnvWithDefaults expands environment variables with support for default values.
// Supports both ${VAR} and ${VAR:-default} syntax.
func expandEnvWithDefaults(s string) string {
	// Pattern matches ${VAR:-default} or ${VAR}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultValue := ""
		if len(parts) > 2 {
			defaultValue = parts[2]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}

		return defaultValue
	})
}

// Load reads configuration from a YAML file.
// Returns an error if the file doesn't exist or is invalid.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config file path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	return LoadFromBytes(data)
}

// LoadFromBytes parses configuration from raw YAML bytes.
// Supports ${VAR:-default} env var expansion and validation.
func LoadFromBytes(data []byte) (*Config, error) {
	expanded := expandEnvWithDefaults(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ReadTimeout == 0 {
		return fmt.Errorf("server.read_timeout is required")
	}
	if c.Server.WriteTimeout == 0 {
		return fmt.Errorf("server.write_timeout is required")
	}

	// Store validation
	switch c.Store.Type {
	case "":
		return fmt.Errorf("store.type is required")
	case "memory":
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for sqlite store")
		}
	default:
		return fmt.Errorf("unknown store.type: %q (must be memory or sqlite)", c.Store.Type)
	}

	// Search validation (only when enabled)
	if c.Search.Enabled {
		if c.Search.Endpoint == "" {
			return fmt.Errorf("search.endpoint is required when search is enabled")
		}
		if c.Search.APIKey == "" {
			return fmt.Errorf("search.api_key is required when search is enabled")
		}
		if c.Search.RefinerProvider != "" {
			if _, ok := c.Providers[c.Search.RefinerProvider]; !ok {
				return fmt.Errorf("search.refiner_provider %q is not a configured provider", c.Search.RefinerProvider)
			}
		}
	}

	// Providers validation
	if len(c.Providers) == 0 {
		return fmt.Errorf("at least one provider must be configured")
	}
	if err := c.Providers.Validate(); err != nil {
		return err
	}

	// Monitoring validation
	if c.Monitoring.LogLevel == "" {
		return fmt.Errorf("monitoring.log_level is required")
	}
	switch c.Monitoring.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid monitoring.log_level: %q", c.Monitoring.LogLevel)
	}
	switch c.Monitoring.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("invalid monitoring.log_format: %q (must be json or console)", c.Monitoring.LogFormat)
	}

	return nil
}
