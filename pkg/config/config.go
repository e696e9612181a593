// Package config provides unified configuration for switchboard.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (SWITCHBOARD_ prefix)
//  4. Validation
package config

import "time"

// Config holds all configuration for switchboard.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Routing       RoutingConfig       `yaml:"routing"`
	Model         ModelConfig         `yaml:"model"`
	Storage       StorageConfig       `yaml:"storage"`
	Backends      BackendsConfig      `yaml:"backends"`
	Observability ObservabilityConfig `yaml:"observability"`
	LogLevel      string              `yaml:"log_level"` // default: "info"
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`          // default: 8080
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"` // default: 120s
}

// RoutingConfig holds the gate and loop-bound settings.
type RoutingConfig struct {
	// ConfidenceThreshold gates dispatch; judgments at or above it proceed.
	ConfidenceThreshold float64 `yaml:"confidence_threshold"` // default: 0.70
	// ClarifyBound caps clarification rounds per turn.
	ClarifyBound int `yaml:"clarify_bound"` // default: 2
	// RetryBound caps backend retries per turn.
	RetryBound int `yaml:"retry_bound"` // default: 2
	// ProductInfoRoute is where product_info intents dispatch: "policy" or "web".
	ProductInfoRoute string `yaml:"product_info_route"` // default: "policy"
	// ClarificationMode is "suspend" (checkpoint and wait for the caller)
	// or "auto" (ask the elicitor inline).
	ClarificationMode string        `yaml:"clarification_mode"` // default: "suspend"
	TurnTimeout       time.Duration `yaml:"turn_timeout"`       // default: 60s
	NodeTimeout       time.Duration `yaml:"node_timeout"`       // default: 15s
}

// ModelConfig holds Gemini API settings.
type ModelConfig struct {
	APIKey          string `yaml:"api_key"`          // or GEMINI_API_KEY
	ClassifierName  string `yaml:"classifier_name"`  // default: "gemini-2.0-flash"
	SynthesizerName string `yaml:"synthesizer_name"` // default: "gemini-2.0-flash"
	EmbeddingName   string `yaml:"embedding_name"`   // default: "gemini-embedding-001"
}

// StorageConfig holds session persistence settings.
type StorageConfig struct {
	Type     string        `yaml:"type"`      // "memory", "file", or "redis", default: "memory"
	FilePath string        `yaml:"file_path"` // for type=file
	Redis    RedisConfig   `yaml:"redis"`
	TTL      time.Duration `yaml:"ttl"` // session expiry, 0 = never
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Address  string `yaml:"address"` // default: "localhost:6379"
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// DistributedLock enables cross-replica session locking.
	DistributedLock bool `yaml:"distributed_lock"`
}

// BackendsConfig holds per-route backend settings.
type BackendsConfig struct {
	Policy         PolicyBackendConfig `yaml:"policy"`
	StructuredData SQLBackendConfig    `yaml:"structured_data"`
	Web            WebBackendConfig    `yaml:"web"`
}

// PolicyBackendConfig configures the vector retrieval backend.
type PolicyBackendConfig struct {
	VectorStoreURL string  `yaml:"vector_store_url"` // Qdrant base URL
	Collection     string  `yaml:"collection"`       // default: "policies"
	TopK           int     `yaml:"top_k"`            // default: 5
	MinScore       float64 `yaml:"min_score"`
}

// SQLBackendConfig configures the structured-data backend.
type SQLBackendConfig struct {
	DSN string `yaml:"dsn"`
	// Schema is a textual description of the queryable tables given to the
	// SQL generator.
	Schema   string `yaml:"schema"`
	MaxRows  int    `yaml:"max_rows"`  // default: 100
	MaxConns int32  `yaml:"max_conns"` // default: 10
}

// WebBackendConfig configures the web search backend.
type WebBackendConfig struct {
	SearXNGURL     string   `yaml:"searxng_url"`
	MaxResults     int      `yaml:"max_results"` // default: 5
	RatePerSecond  float64  `yaml:"rate_per_second"`
	RateBurst      int      `yaml:"rate_burst"`
	AllowedDomains []string `yaml:"allowed_domains"`
	BlockedDomains []string `yaml:"blocked_domains"`
}

// ObservabilityConfig holds monitoring settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
		},
		Routing: RoutingConfig{
			ConfidenceThreshold: 0.70,
			ClarifyBound:        2,
			RetryBound:          2,
			ProductInfoRoute:    "policy",
			ClarificationMode:   "suspend",
			TurnTimeout:         60 * time.Second,
			NodeTimeout:         15 * time.Second,
		},
		Model: ModelConfig{
			ClassifierName:  "gemini-2.0-flash",
			SynthesizerName: "gemini-2.0-flash",
			EmbeddingName:   "gemini-embedding-001",
		},
		Storage: StorageConfig{
			Type: "memory",
		},
		Backends: BackendsConfig{
			Policy: PolicyBackendConfig{
				Collection: "policies",
				TopK:       5,
			},
			StructuredData: SQLBackendConfig{
				MaxRows:  100,
				MaxConns: 10,
			},
			Web: WebBackendConfig{
				MaxResults: 5,
			},
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
		LogLevel: "info",
	}
}
