package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all configuration for promptlab
type Config struct {
	// Server configuration
	HTTPPort int    `env:"PROMPTLAB_HTTP_PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// LLM configuration
	LLM LLMConfig

	// Experiment storage configuration
	Storage StorageConfig

	// Redis configuration (redis store backend and streams event bus)
	Redis RedisConfig

	// Event bus configuration
	Events EventsConfig

	// Avatar upload configuration
	Avatars AvatarConfig

	// Worker configuration
	Workers WorkerConfig

	// Timeouts
	Timeouts TimeoutConfig
}

// LLMConfig holds LLM provider configuration
type LLMConfig struct {
	DefaultProvider string `env:"DEFAULT_LLM_PROVIDER" envDefault:"anthropic"`
	DefaultModel    string `env:"DEFAULT_MODEL"`

	// Provider API keys; a client is constructed only for providers
	// whose key is set
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`

	RequestTimeout time.Duration `env:"LLM_REQUEST_TIMEOUT" envDefault:"120s"`

	// Default sampling settings
	DefaultMaxTokens   int     `env:"LLM_DEFAULT_MAX_TOKENS" envDefault:"4096"`
	DefaultTemperature float64 `env:"LLM_DEFAULT_TEMPERATURE" envDefault:"0.7"`
}

// StorageConfig holds experiment store configuration
type StorageConfig struct {
	// Backend selects the experiment store: memory, redis or sqlite
	Backend    string `env:"STORAGE_BACKEND" envDefault:"memory"`
	SQLitePath string `env:"STORAGE_SQLITE_PATH"`

	// ExperimentTTL expires stored records on backends that support it;
	// zero keeps records forever
	ExperimentTTL time.Duration `env:"STORAGE_EXPERIMENT_TTL" envDefault:"0"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASS"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`

	// Connection pool settings
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	MaxRetries   int           `env:"REDIS_MAX_RETRIES" envDefault:"3"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// EventsConfig holds event bus configuration
type EventsConfig struct {
	// Backend selects the event bus: memory or redis
	Backend string `env:"EVENTS_BACKEND" envDefault:"memory"`
}

// AvatarConfig holds avatar upload configuration
type AvatarConfig struct {
	// Bucket is the GCS bucket for avatar uploads; uploads are disabled
	// when empty
	Bucket string `env:"AVATAR_BUCKET"`

	// CredentialsFile is passed to the storage client when set;
	// otherwise the client uses application default credentials
	CredentialsFile string `env:"GOOGLE_APPLICATION_CREDENTIALS"`
}

// WorkerConfig holds worker pool configuration
type WorkerConfig struct {
	PoolSize            int           `env:"WORKER_POOL_SIZE" envDefault:"5"`
	HealthCheckInterval time.Duration `env:"WORKER_HEALTH_CHECK_INTERVAL" envDefault:"30s"`
}

// TimeoutConfig holds various timeout configurations
type TimeoutConfig struct {
	BatchExecutionTimeout time.Duration `env:"TIMEOUT_BATCH_EXECUTION" envDefault:"600s"` // 10 minutes
	ShutdownTimeout       time.Duration `env:"TIMEOUT_SHUTDOWN" envDefault:"30s"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg, err := Parse()
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Parse reads configuration from environment variables without
// validating it. Read-only commands use it so they work without
// provider credentials.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}

	// Validate LLM config
	switch c.LLM.DefaultProvider {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("unsupported LLM provider: %s", c.LLM.DefaultProvider)
	}
	if c.LLM.APIKeyFor(c.LLM.DefaultProvider) == "" {
		return fmt.Errorf("LLM API key for provider %s is required", c.LLM.DefaultProvider)
	}
	if c.LLM.DefaultMaxTokens < 1 {
		return fmt.Errorf("default max tokens must be at least 1")
	}
	if c.LLM.DefaultTemperature < 0 || c.LLM.DefaultTemperature > 2 {
		return fmt.Errorf("default temperature must be between 0 and 2")
	}

	// Validate storage config
	switch c.Storage.Backend {
	case "memory", "redis", "sqlite":
	default:
		return fmt.Errorf("unsupported storage backend: %s", c.Storage.Backend)
	}

	// Validate events config
	switch c.Events.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported events backend: %s", c.Events.Backend)
	}

	// Validate Redis config when a backend needs it
	if (c.Storage.Backend == "redis" || c.Events.Backend == "redis") && c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}

	// Validate worker config
	if c.Workers.PoolSize < 1 {
		return fmt.Errorf("worker pool size must be at least 1")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// APIKeyFor returns the API key configured for a provider, or empty
// when the provider is unknown or has no key set
func (l LLMConfig) APIKeyFor(provider string) string {
	switch provider {
	case "anthropic":
		return l.AnthropicAPIKey
	case "openai":
		return l.OpenAIAPIKey
	}
	return ""
}

// ConfiguredProviders lists the providers whose API key is set, in a
// stable order
func (l LLMConfig) ConfiguredProviders() []string {
	var providers []string
	for _, p := range []string{"anthropic", "openai"} {
		if l.APIKeyFor(p) != "" {
			providers = append(providers, p)
		}
	}
	return providers
}

// SQLiteFile returns the configured database path, defaulting to
// promptlab.db under the user's home directory
func (s StorageConfig) SQLiteFile() (string, error) {
	if s.SQLitePath != "" {
		return s.SQLitePath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".promptlab", "promptlab.db"), nil
}
