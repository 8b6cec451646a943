package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Outbox    OutboxConfig    `mapstructure:"outbox"`
	Workers   WorkersConfig   `mapstructure:"workers"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MetricsPrefix   string        `mapstructure:"metrics_prefix"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
	LockWait time.Duration `mapstructure:"lock_wait"`
	Prefix   string        `mapstructure:"prefix"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"ttl"`
}

// AuthConfig tunes password hashing and the session role cache. The cache is
// per process, so RoleCacheTTL bounds how stale a role can be on replicas
// that did not handle the approval.
type AuthConfig struct {
	BcryptCost        int           `mapstructure:"bcrypt_cost"`
	MinPasswordLength int           `mapstructure:"min_password_length"`
	RoleCacheTTL      time.Duration `mapstructure:"role_cache_ttl"`
}

type OutboxConfig struct {
	BatchSize    int           `mapstructure:"batch_size"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	RetryDelay   time.Duration `mapstructure:"retry_delay"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
}

type WorkersConfig struct {
	ReminderSpec       string        `mapstructure:"reminder_spec"`
	EventCleanupSpec   string        `mapstructure:"event_cleanup_spec"`
	Timezone           string        `mapstructure:"timezone"`
	AuditRetentionDays int           `mapstructure:"audit_retention_days"`
	AuditCleanupEvery  time.Duration `mapstructure:"audit_cleanup_every"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// overrides are deployment settings read from CLINIC_* variables. They win
// over the file and over viper's automatic env binding.
type overrides struct {
	Port       *int    `envconfig:"PORT"`
	Storage    *string `envconfig:"STORAGE"`
	DBHost     *string `envconfig:"DATABASE_HOST"`
	DBPassword *string `envconfig:"DATABASE_PASSWORD"`
	RedisAddr  *string `envconfig:"REDIS_ADDR"`
	JWTSecret  *string `envconfig:"JWT_SECRET"`
	LogLevel   *string `envconfig:"LOG_LEVEL"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.metrics_prefix", "clinic")

	v.SetDefault("storage.driver", StoragePostgres)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "clinic")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.lock_ttl", 10*time.Second)
	v.SetDefault("redis.lock_wait", 2*time.Second)
	v.SetDefault("redis.prefix", "clinic:")

	v.SetDefault("jwt.issuer", "clinic-workflow")
	v.SetDefault("jwt.ttl", 24*time.Hour)

	v.SetDefault("auth.bcrypt_cost", bcrypt.DefaultCost)
	v.SetDefault("auth.min_password_length", 8)
	v.SetDefault("auth.role_cache_ttl", 30*time.Second)

	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.poll_interval", 5*time.Second)
	v.SetDefault("outbox.retry_delay", 30*time.Second)
	v.SetDefault("outbox.max_attempts", 5)

	v.SetDefault("workers.reminder_spec", "0 18 * * *")
	v.SetDefault("workers.event_cleanup_spec", "30 3 * * *")
	v.SetDefault("workers.timezone", "UTC")
	v.SetDefault("workers.audit_retention_days", 365)
	v.SetDefault("workers.audit_cleanup_every", 24*time.Hour)

	v.SetDefault("rate_limit.requests_per_second", 20.0)
	v.SetDefault("rate_limit.burst", 40)

	v.SetDefault("log.level", "info")
}

// LoadConfig reads .env, then config.yaml from the usual places, then the
// environment. A missing config file is fine; defaults and env cover it.
func LoadConfig(paths ...string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./config", "/app/config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.applyOverrides(); err != nil {
		return nil, err
	}

	return &cfg, cfg.Validate()
}

func (c *Config) applyOverrides() error {
	var o overrides
	if err := envconfig.Process("clinic", &o); err != nil {
		return fmt.Errorf("failed to process CLINIC_ environment: %w", err)
	}

	if o.Port != nil {
		c.Server.Port = *o.Port
	}
	if o.Storage != nil {
		c.Storage.Driver = *o.Storage
	}
	if o.DBHost != nil {
		c.Database.Host = *o.DBHost
	}
	if o.DBPassword != nil {
		c.Database.Password = *o.DBPassword
	}
	if o.RedisAddr != nil {
		c.Redis.Addr = *o.RedisAddr
	}
	if o.JWTSecret != nil {
		c.JWT.Secret = *o.JWTSecret
	}
	if o.LogLevel != nil {
		c.Log.Level = *o.LogLevel
	}
	return nil
}

// Validate rejects settings the services cannot start with.
func (c *Config) Validate() error {
	var problems []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if c.Storage.Driver != StorageMemory && c.Storage.Driver != StoragePostgres {
		problems = append(problems, fmt.Sprintf("storage.driver %q must be memory or postgres", c.Storage.Driver))
	}
	if len(c.JWT.Secret) < 32 {
		problems = append(problems, "jwt.secret must be at least 32 characters")
	}
	if c.JWT.TTL <= 0 {
		problems = append(problems, "jwt.ttl must be positive")
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		problems = append(problems, fmt.Sprintf("auth.bcrypt_cost %d outside [%d, %d]", c.Auth.BcryptCost, bcrypt.MinCost, bcrypt.MaxCost))
	}
	if c.Auth.MinPasswordLength <= 0 || c.Auth.RoleCacheTTL <= 0 {
		problems = append(problems, "auth.min_password_length and auth.role_cache_ttl must be positive")
	}
	if c.Outbox.BatchSize <= 0 || c.Outbox.MaxAttempts <= 0 {
		problems = append(problems, "outbox.batch_size and outbox.max_attempts must be positive")
	}
	if c.Outbox.PollInterval <= 0 {
		problems = append(problems, "outbox.poll_interval must be positive")
	}
	if _, err := time.LoadLocation(c.Workers.Timezone); err != nil {
		problems = append(problems, fmt.Sprintf("workers.timezone: %v", err))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Workers.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
