package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// ConnectionEnvVars lists the environment variables consulted for the database
// connection string, highest precedence first.
var ConnectionEnvVars = []string{
	"DATABASE_URL",
	"POSTGRES_URL",
	"NEON_DATABASE_URL",
	"POSTGRES_PRISMA_URL",
	"POSTGRES_URL_NON_POOLING",
}

// EnvPrefix is applied to every key other than database.url
const EnvPrefix = "POSDASH"

// Config is the full application configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
}

// DatabaseConfig controls the connection target and query timeouts
type DatabaseConfig struct {
	URL               string        `mapstructure:"url"`
	QueryTimeout      time.Duration `mapstructure:"queryTimeout"`
	HealthTimeout     time.Duration `mapstructure:"healthTimeout"`
	BootstrapAttempts int           `mapstructure:"bootstrapAttempts"`
	MaxConns          int32         `mapstructure:"maxConns"`
}

// RetryConfig controls the backoff used for strict-mode work
type RetryConfig struct {
	MaxRetries int           `mapstructure:"maxRetries"`
	BaseDelay  time.Duration `mapstructure:"baseDelay"`
	MaxDelay   time.Duration `mapstructure:"maxDelay"`
}

// ServerConfig controls the HTTP surface
type ServerConfig struct {
	Addr          string        `mapstructure:"addr"`
	ProbeInterval time.Duration `mapstructure:"probeInterval"`
}

// LogConfig controls logrus output
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SetDefaults registers every key with its default value
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.url", "")
	v.SetDefault("database.queryTimeout", 20*time.Second)
	v.SetDefault("database.healthTimeout", 5*time.Second)
	v.SetDefault("database.bootstrapAttempts", 3)
	v.SetDefault("database.maxConns", 4)

	v.SetDefault("retry.maxRetries", 2)
	v.SetDefault("retry.baseDelay", time.Second)
	v.SetDefault("retry.maxDelay", 5*time.Second)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.probeInterval", 15*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads configuration from defaults, an optional config file and the environment.
// Flags must already be bound to v by the caller.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv(append([]string{"database.url"}, ConnectionEnvVars...)...); err != nil {
		return nil, errors.Wrap(err, "failed to bind database url environment")
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", configFile)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode configuration")
	}
	cfg.Database.URL = strings.TrimSpace(cfg.Database.URL)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges. An empty database URL is valid and selects mock mode.
func (c *Config) Validate() error {
	if c.Database.QueryTimeout <= 0 {
		return fmt.Errorf("database.queryTimeout must be positive")
	}
	if c.Database.HealthTimeout <= 0 {
		return fmt.Errorf("database.healthTimeout must be positive")
	}
	if c.Database.BootstrapAttempts < 1 {
		return fmt.Errorf("database.bootstrapAttempts must be at least 1")
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.maxRetries cannot be negative")
	}
	if c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < 0 {
		return fmt.Errorf("retry delays cannot be negative")
	}
	if c.Database.URL != "" {
		dbCfg, err := NewDBConfigFromURI(c.Database.URL)
		if err != nil {
			return err
		}
		if err := dbCfg.Validate(); err != nil {
			return fmt.Errorf("invalid database configuration: %w", err)
		}
	}
	return nil
}

// MockMode reports whether no usable connection target was configured
func (c *Config) MockMode() bool {
	return c.Database.URL == ""
}

// DBConfig holds the parsed form of the database connection string
type DBConfig struct {
	URL      string
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
}

// NewDBConfigFromURI parses a PostgreSQL URI and returns a DBConfig
func NewDBConfigFromURI(uri string) (*DBConfig, error) {
	if !strings.HasPrefix(uri, "postgresql://") && !strings.HasPrefix(uri, "postgres://") {
		return nil, fmt.Errorf("invalid PostgreSQL URI: must start with postgresql:// or postgres://")
	}

	parsedURL, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PostgreSQL URI: %w", err)
	}

	config := &DBConfig{
		URL:      uri,
		Host:     parsedURL.Hostname(),
		Database: strings.TrimPrefix(parsedURL.Path, "/"),
		SSLMode:  "prefer",
	}

	if parsedURL.Port() != "" {
		port, err := strconv.Atoi(parsedURL.Port())
		if err != nil {
			return nil, fmt.Errorf("invalid port in URI: %w", err)
		}
		config.Port = port
	} else {
		config.Port = 5432
	}

	if parsedURL.User != nil {
		config.User = parsedURL.User.Username()
		if password, ok := parsedURL.User.Password(); ok {
			config.Password = password
		}
	}

	if sslmode := parsedURL.Query().Get("sslmode"); sslmode != "" {
		config.SSLMode = sslmode
	}

	return config, nil
}

// ConnectionString returns the string handed to the driver. The original URI wins so
// that driver-specific query parameters survive.
func (c *DBConfig) ConnectionString() string {
	if c.URL != "" {
		return c.URL
	}

	var parts []string
	if c.Host != "" {
		parts = append(parts, fmt.Sprintf("host=%s", c.Host))
	}
	if c.Port != 0 {
		parts = append(parts, fmt.Sprintf("port=%d", c.Port))
	}
	if c.User != "" {
		parts = append(parts, fmt.Sprintf("user=%s", c.User))
	}
	if c.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", c.Password))
	}
	if c.Database != "" {
		parts = append(parts, fmt.Sprintf("dbname=%s", c.Database))
	}
	if c.SSLMode != "" {
		parts = append(parts, fmt.Sprintf("sslmode=%s", c.SSLMode))
	}
	return strings.Join(parts, " ")
}

// MaskedURI renders the target without the password, for logs and diagnostics
func (c *DBConfig) MaskedURI() string {
	userPart := c.User
	if c.Password != "" {
		userPart += ":****"
	}
	if userPart != "" {
		userPart += "@"
	}
	return fmt.Sprintf("postgresql://%s%s:%d/%s", userPart, c.Host, c.Port, c.Database)
}

// Validate checks if the configuration has required fields
func (c *DBConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database == "" {
		return fmt.Errorf("database name is required")
	}
	return nil
}
