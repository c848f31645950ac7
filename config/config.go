package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Store    StoreConfig    `yaml:"store"`
	Arbiter  ArbiterConfig  `yaml:"arbiter"`
	Notifier NotifierConfig `yaml:"notifier"`
	Push     PushConfig     `yaml:"push"`
	Redis    RedisConfig    `yaml:"redis"`
	Broker   BrokerConfig   `yaml:"broker"`
	Watcher  WatcherConfig  `yaml:"watcher"`
	Admin    AdminConfig    `yaml:"admin"`
	Issuance IssuanceConfig `yaml:"issuance"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	RateLimitPerSec float64  `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int      `yaml:"rate_limit_burst"`
	CacheTTLSeconds int      `yaml:"cache_ttl_seconds"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
}

// LogConfig controls the logrus logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // postgres, mysql or sqlite
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogQueries             bool   `yaml:"log_queries"`
}

// StoreConfig bounds every store call.
type StoreConfig struct {
	TimeoutMillis        int           `yaml:"timeout_ms"`
	Timeout              time.Duration `yaml:"-"`
	ReservationCacheSecs int           `yaml:"reservation_cache_seconds"`
	ReservationCacheTTL  time.Duration `yaml:"-"`
}

// ArbiterConfig holds the claim/release retry policy.
type ArbiterConfig struct {
	MaxAttempts   int           `yaml:"max_attempts"`
	BackoffMillis int           `yaml:"backoff_ms"`
	Backoff       time.Duration `yaml:"-"`
}

// NotifierConfig holds the configuration for the snapshot worker pool.
type NotifierConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	Enabled    bool   `yaml:"enabled"`
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
	Workers    int    `yaml:"workers"`
}

// RedisConfig configures the optional cross-instance change relay.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

// BrokerConfig configures the optional seat-change audit publisher.
type BrokerConfig struct {
	URL   string `yaml:"url"`
	Queue string `yaml:"queue"`
}

// WatcherConfig configures the database polling fallback used when several
// instances share a database without redis.
type WatcherConfig struct {
	Enabled         bool          `yaml:"enabled"`
	IntervalSeconds int           `yaml:"interval_seconds"`
	Interval        time.Duration `yaml:"-"`
}

// AdminConfig protects the seeding, issuance and export endpoints.
type AdminConfig struct {
	Key string `yaml:"key"`
}

// IssuanceConfig holds event seeding defaults.
type IssuanceConfig struct {
	DefaultTables        int `yaml:"default_tables"`
	DefaultSeatsPerTable int `yaml:"default_seats_per_table"`
}

// Load reads the configuration from the given path. Values from a .env file
// and the process environment override the file for secrets and endpoints.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("could not read .env file: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("ADMIN_KEY"); v != "" {
		cfg.Admin.Key = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("AMQP_URL"); v != "" {
		cfg.Broker.URL = v
	}
	if v := os.Getenv("VAPID_PRIVATE_KEY"); v != "" {
		cfg.Push.PrivateKey = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 20
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 300
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}

	if cfg.Store.TimeoutMillis <= 0 {
		cfg.Store.TimeoutMillis = 3000
	}
	cfg.Store.Timeout = time.Duration(cfg.Store.TimeoutMillis) * time.Millisecond
	if cfg.Store.ReservationCacheSecs <= 0 {
		cfg.Store.ReservationCacheSecs = 600
	}
	cfg.Store.ReservationCacheTTL = time.Duration(cfg.Store.ReservationCacheSecs) * time.Second

	if cfg.Arbiter.MaxAttempts <= 0 {
		cfg.Arbiter.MaxAttempts = 4
	}
	if cfg.Arbiter.BackoffMillis < 0 {
		cfg.Arbiter.BackoffMillis = 0
	}
	cfg.Arbiter.Backoff = time.Duration(cfg.Arbiter.BackoffMillis) * time.Millisecond

	if cfg.Notifier.Workers <= 0 {
		log.Printf("notifier.workers is not set or invalid; defaulting to 2")
		cfg.Notifier.Workers = 2
	}
	if cfg.Notifier.QueueSize <= 0 {
		cfg.Notifier.QueueSize = 64
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}
	if cfg.Push.Workers <= 0 {
		cfg.Push.Workers = 1
	}

	if cfg.Redis.Channel == "" {
		cfg.Redis.Channel = "seating:changes"
	}
	if cfg.Broker.Queue == "" {
		cfg.Broker.Queue = "seating.changes"
	}

	if cfg.Watcher.IntervalSeconds <= 0 {
		cfg.Watcher.IntervalSeconds = 5
	}
	cfg.Watcher.Interval = time.Duration(cfg.Watcher.IntervalSeconds) * time.Second

	if cfg.Issuance.DefaultTables <= 0 {
		cfg.Issuance.DefaultTables = 3
	}
	if cfg.Issuance.DefaultSeatsPerTable <= 0 {
		cfg.Issuance.DefaultSeatsPerTable = 8
	}
}
