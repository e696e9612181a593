package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, SWITCHBOARD_CONFIG env,
//     ./switchboard.yaml, /etc/switchboard/config.yaml)
//  3. Environment variable overrides
//  4. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. SWITCHBOARD_CONFIG environment variable
// 3. ./switchboard.yaml in the current directory
// 4. /etc/switchboard/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("SWITCHBOARD_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"switchboard.yaml",
		"/etc/switchboard/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps environment variables to config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SWITCHBOARD_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SWITCHBOARD_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SWITCHBOARD_CONFIDENCE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Routing.ConfidenceThreshold = f
		}
	}
	if v := os.Getenv("SWITCHBOARD_CLARIFY_BOUND"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Routing.ClarifyBound = n
		}
	}
	if v := os.Getenv("SWITCHBOARD_RETRY_BOUND"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Routing.RetryBound = n
		}
	}
	if v := os.Getenv("SWITCHBOARD_PRODUCT_INFO_ROUTE"); v != "" {
		cfg.Routing.ProductInfoRoute = v
	}
	if v := os.Getenv("SWITCHBOARD_CLARIFICATION_MODE"); v != "" {
		cfg.Routing.ClarificationMode = v
	}
	if v := os.Getenv("SWITCHBOARD_TURN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Routing.TurnTimeout = d
		}
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" && cfg.Model.APIKey == "" {
		cfg.Model.APIKey = v
	}
	if v := os.Getenv("SWITCHBOARD_API_KEY"); v != "" {
		cfg.Model.APIKey = v
	}
	if v := os.Getenv("SWITCHBOARD_STORAGE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("SWITCHBOARD_STORAGE_PATH"); v != "" {
		cfg.Storage.FilePath = v
	}
	if v := os.Getenv("SWITCHBOARD_REDIS_ADDRESS"); v != "" {
		cfg.Storage.Redis.Address = v
	}
	if v := os.Getenv("SWITCHBOARD_REDIS_PASSWORD"); v != "" {
		cfg.Storage.Redis.Password = v
	}
	if v := os.Getenv("SWITCHBOARD_POSTGRES_DSN"); v != "" {
		cfg.Backends.StructuredData.DSN = v
	}
	if v := os.Getenv("SWITCHBOARD_SEARXNG_URL"); v != "" {
		cfg.Backends.Web.SearXNGURL = v
	}
	if v := os.Getenv("SWITCHBOARD_VECTOR_STORE_URL"); v != "" {
		cfg.Backends.Policy.VectorStoreURL = v
	}
}
