package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"musicez/internal/cache"
)

// Config holds all configuration for the application
type Config struct {
	// Application settings
	Port    string `envconfig:"PORT" default:"8080"`
	GinMode string `envconfig:"GIN_MODE" default:"debug"`
	BaseURL string `envconfig:"BASE_URL" default:"http://localhost:8080"`

	// Storage
	MongodbURL      string `envconfig:"MONGODB_URL" required:"true"`
	MongodbDatabase string `envconfig:"MONGODB_DATABASE" default:"musicez"`

	// Cache backend
	CacheDriver     string        `envconfig:"CACHE_DRIVER" default:"valkey"`
	ValkeyURL       string        `envconfig:"VALKEY_URL"`
	RedisURL        string        `envconfig:"REDIS_URL"`
	CacheL1MaxItems int           `envconfig:"CACHE_L1_MAX_ITEMS" default:"1000"`
	CacheL1TTL      time.Duration `envconfig:"CACHE_L1_TTL" default:"30s"`

	// Search pipeline
	SearchLocalTTL         time.Duration `envconfig:"SEARCH_LOCAL_TTL" default:"5m"`
	SearchExternalTTL      time.Duration `envconfig:"SEARCH_EXTERNAL_TTL" default:"1h"`
	EnrichmentTimeout      time.Duration `envconfig:"ENRICHMENT_TIMEOUT" default:"5s"`
	ProviderConnectTimeout time.Duration `envconfig:"PROVIDER_CONNECT_TIMEOUT" default:"2s"`
	ProviderRateLimit      int           `envconfig:"PROVIDER_RATE_LIMIT" default:"100"` // requests per minute
	SearchTuningPath       string        `envconfig:"SEARCH_TUNING_PATH"`

	// External provider
	SpotifyClientID     string `envconfig:"SPOTIFY_CLIENT_ID"`
	SpotifyClientSecret string `envconfig:"SPOTIFY_CLIENT_SECRET"`
	SpotifyAPIURL       string `envconfig:"SPOTIFY_API_URL" default:"https://api.spotify.com/v1"`
	SpotifyTokenURL     string `envconfig:"SPOTIFY_TOKEN_URL" default:"https://accounts.spotify.com/api/token"`

	// API surface
	JWTSecret          string   `envconfig:"JWT_SECRET" required:"true"`
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	APIRateLimit       float64  `envconfig:"API_RATE_LIMIT" default:"20"` // requests per second per client

	// Recommendations
	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL"`
	OpenAIModel   string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	cfg.CacheDriver = strings.ToLower(strings.TrimSpace(cfg.CacheDriver))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate rejects inconsistent settings
func (c *Config) Validate() error {
	var errs []error

	switch c.CacheDriver {
	case cache.DriverValkey:
		if c.ValkeyURL == "" {
			errs = append(errs, errors.New("VALKEY_URL is required for the valkey cache driver"))
		}
	case cache.DriverRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the redis cache driver"))
		}
	case cache.DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown CACHE_DRIVER %q", c.CacheDriver))
	}

	if c.SearchLocalTTL <= 0 || c.SearchExternalTTL <= 0 {
		errs = append(errs, errors.New("search cache TTLs must be positive"))
	}
	if c.EnrichmentTimeout <= 0 {
		errs = append(errs, errors.New("ENRICHMENT_TIMEOUT must be positive"))
	}
	if c.ProviderConnectTimeout <= 0 || c.ProviderConnectTimeout > c.EnrichmentTimeout {
		errs = append(errs, errors.New("PROVIDER_CONNECT_TIMEOUT must be positive and no longer than ENRICHMENT_TIMEOUT"))
	}
	if (c.SpotifyClientID == "") != (c.SpotifyClientSecret == "") {
		errs = append(errs, errors.New("SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET must be set together"))
	}

	return errors.Join(errs...)
}

// SpotifyEnabled reports whether provider credentials are configured
func (c *Config) SpotifyEnabled() bool {
	return c.SpotifyClientID != "" && c.SpotifyClientSecret != ""
}

// RecommendationsEnabled reports whether an LLM key is configured
func (c *Config) RecommendationsEnabled() bool {
	return c.OpenAIAPIKey != ""
}

// CacheOptions maps the cache settings onto backend options
func (c *Config) CacheOptions() cache.Options {
	return cache.Options{
		Driver:     c.CacheDriver,
		ValkeyURL:  c.ValkeyURL,
		RedisURL:   c.RedisURL,
		L1MaxItems: c.CacheL1MaxItems,
		L1TTL:      c.CacheL1TTL,
	}
}
