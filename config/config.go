package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Log      LogConfig      `yaml:"log"`
	Storage  StorageConfig  `yaml:"storage"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Provider ProviderConfig `yaml:"provider"`
	Quotes   QuotesConfig   `yaml:"quotes"`
	Offers   OffersConfig   `yaml:"offers"`
	Worker   WorkerConfig   `yaml:"worker"`
}

type HTTPConfig struct {
	Address    string `yaml:"address"`
	SwaggerDir string `yaml:"swagger_dir"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // trace|debug|info|warn|error
	Format string `yaml:"format"` // json|console
}

// StorageConfig selects the persistence backend: "postgres" or "memory".
type StorageConfig struct {
	Driver  string `yaml:"driver"`
	Migrate bool   `yaml:"migrate"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers             []string `yaml:"brokers"`
	QuoteEventsTopic    string   `yaml:"quote_events_topic"`
	SearchRequestsTopic string   `yaml:"search_requests_topic"`
	NotificationsTopic  string   `yaml:"notifications_topic"`
	GroupID             string   `yaml:"group_id"`
}

type ProviderConfig struct {
	Name            string        `yaml:"name"`
	BaseURL         string        `yaml:"base_url"`
	ClientID        string        `yaml:"client_id"`
	ClientSecret    string        `yaml:"client_secret"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxResults      int           `yaml:"max_results"`
	TokenExpirySkew time.Duration `yaml:"token_expiry_skew"`
}

type QuotesConfig struct {
	StaleAfter        time.Duration `yaml:"stale_after"`
	StrictTransitions bool          `yaml:"strict_transitions"`
}

type OffersConfig struct {
	ResultsCacheTTL      time.Duration `yaml:"results_cache_ttl"`
	PolicyCacheTTL       time.Duration `yaml:"policy_cache_ttl"`
	AmenityRegexFallback bool          `yaml:"amenity_regex_fallback"`
}

type WorkerConfig struct {
	PollInterval           time.Duration `yaml:"poll_interval"`
	BatchSize              int           `yaml:"batch_size"`
	Concurrency            int           `yaml:"concurrency"`
	MaxAttempts            int           `yaml:"max_attempts"`
	RetryBackoff           time.Duration `yaml:"retry_backoff"`
	StaleJobAfter          time.Duration `yaml:"stale_job_after"`
	ExpirationSweepMinutes int           `yaml:"expiration_sweep_minutes"`
	ClaimLockTTL           time.Duration `yaml:"claim_lock_ttl"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config bytes, applies defaults and validates required fields.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "postgres"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "travelquotes"
	}
	if c.Provider.Name == "" {
		c.Provider.Name = "amadeus"
	}
	if c.Provider.Timeout <= 0 {
		c.Provider.Timeout = 20 * time.Second
	}
	if c.Provider.MaxResults <= 0 {
		c.Provider.MaxResults = 50
	}
	if c.Provider.TokenExpirySkew <= 0 {
		c.Provider.TokenExpirySkew = 30 * time.Second
	}
	if c.Quotes.StaleAfter <= 0 {
		c.Quotes.StaleAfter = 72 * time.Hour
	}
	if c.Offers.ResultsCacheTTL <= 0 {
		c.Offers.ResultsCacheTTL = 30 * time.Minute
	}
	if c.Offers.PolicyCacheTTL <= 0 {
		c.Offers.PolicyCacheTTL = 5 * time.Minute
	}
	if c.Worker.PollInterval <= 0 {
		c.Worker.PollInterval = 5 * time.Second
	}
	if c.Worker.BatchSize <= 0 {
		c.Worker.BatchSize = 100
	}
	if c.Worker.Concurrency <= 0 {
		c.Worker.Concurrency = 4
	}
	if c.Worker.MaxAttempts <= 0 {
		c.Worker.MaxAttempts = 3
	}
	if c.Worker.RetryBackoff <= 0 {
		c.Worker.RetryBackoff = time.Minute
	}
	if c.Worker.StaleJobAfter <= 0 {
		c.Worker.StaleJobAfter = 15 * time.Minute
	}
	if c.Worker.ExpirationSweepMinutes <= 0 {
		c.Worker.ExpirationSweepMinutes = 60
	}
	if c.Worker.ClaimLockTTL <= 0 {
		c.Worker.ClaimLockTTL = 5 * time.Minute
	}
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "postgres":
		if c.Database.Host == "" || c.Database.Name == "" {
			return errors.New("database.host and database.name are required for postgres storage")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	if c.Provider.BaseURL == "" {
		return errors.New("provider.base_url is required")
	}
	return nil
}
