package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates every runtime setting the service reads at boot.
type Config struct {
	AppName     string
	Environment string
	HTTP        HTTPConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Remote      RemoteConfig
	Sync        SyncConfig
	Buffer      BufferConfig
	Context     ContextConfig
	Logger      LoggerConfig
	Migrations  MigrationsConfig
}

type HTTPConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	URL             string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration
	SSLMode         string
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

// RemoteConfig points at the remote authority's batch acceptor.
type RemoteConfig struct {
	BaseURL       string
	HealthTimeout time.Duration
	BatchTimeout  time.Duration
}

type SyncConfig struct {
	BatchSize  int
	MaxRetries int
	Interval   time.Duration
	RunTimeout time.Duration
	ReportTTL  time.Duration
}

type BufferConfig struct {
	Path           string
	RetentionHours int
	ReplayInterval time.Duration
	MaxRetry       int
}

type ContextConfig struct {
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level    string
	Encoding string
}

type MigrationsConfig struct {
	Enabled bool
	Path    string
}

// Load reads settings from the environment (a .env file is honored when
// present) with working defaults for local development. DATABASE_URL
// wins over the individual DB_* parts.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		AppName:     envString("APP_NAME", "taskmirror"),
		Environment: envString("APP_ENV", "development"),
		HTTP: HTTPConfig{
			Host:         envString("SERVER_HOST", "0.0.0.0"),
			Port:         envString("SERVER_PORT", "8080"),
			ReadTimeout:  envDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: envDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  envDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			Host:            envString("DB_HOST", "localhost"),
			Port:            envString("DB_PORT", "5432"),
			Name:            envString("DB_NAME", "taskmirror_db"),
			User:            envString("DB_USER", "taskmirror_user"),
			Password:        os.Getenv("DB_PASSWORD"),
			MaxOpenConns:    envInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DB_MAX_IDLE_CONNS", 10),
			MaxConnLifetime: envDuration("DB_CONN_LIFETIME", time.Hour),
			SSLMode:         envString("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL:      envString("REDIS_URL", "redis://localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       envInt("REDIS_DB", 0),
		},
		Remote: RemoteConfig{
			BaseURL:       envString("REMOTE_BASE_URL", "http://localhost:9090"),
			HealthTimeout: envDuration("REMOTE_HEALTH_TIMEOUT", 5*time.Second),
			BatchTimeout:  envDuration("REMOTE_BATCH_TIMEOUT", 20*time.Second),
		},
		Sync: SyncConfig{
			BatchSize:  envInt("SYNC_BATCH_SIZE", 50),
			MaxRetries: envInt("SYNC_MAX_RETRIES", 3),
			Interval:   envDuration("SYNC_INTERVAL_SECONDS", 30*time.Second),
			RunTimeout: envDuration("SYNC_RUN_TIMEOUT", 5*time.Minute),
			ReportTTL:  envDuration("SYNC_REPORT_TTL", 24*time.Hour),
		},
		Buffer: BufferConfig{
			Path:           envString("BOLTDB_PATH", "./data/buffer.db"),
			RetentionHours: envInt("BUFFER_RETENTION_HOURS", 24),
			ReplayInterval: envDuration("BUFFER_REPLAY_SECONDS", 30*time.Second),
			MaxRetry:       envInt("BUFFER_MAX_RETRY", 3),
		},
		Context: ContextConfig{
			RequestTimeout:  envDuration("REQUEST_TIMEOUT_SECONDS", 5*time.Second),
			ShutdownTimeout: envDuration("SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second),
		},
		Logger: LoggerConfig{
			Level:    envString("LOG_LEVEL", "info"),
			Encoding: envString("LOG_ENCODING", "json"),
		},
		Migrations: MigrationsConfig{
			Enabled: envBool("RUN_MIGRATIONS", true),
			Path:    envString("MIGRATIONS_PATH", "./assets/migrations"),
		},
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
			cfg.Database.User, cfg.Database.Password,
			cfg.Database.Host, cfg.Database.Port,
			cfg.Database.Name, cfg.Database.SSLMode)
	}
	return cfg, nil
}

// MustLoad panics when configuration cannot be loaded.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Address is the HTTP listen address.
func (c *Config) Address() string {
	return c.HTTP.Host + ":" + c.HTTP.Port
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// envDuration accepts Go duration syntax ("45s") or a bare number of
// seconds ("45").
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
