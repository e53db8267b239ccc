package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates all runtime settings required by the service.
type Config struct {
	AppName     string
	Environment string
	HTTP        HTTPConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	Venue       VenueConfig
	Snapshot    SnapshotConfig
	Reconcile   ReconcileConfig
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
	Channel  string
}

type JWTConfig struct {
	Secret     string
	Issuer     string
	SessionTTL time.Duration
}

// VenueConfig describes the operating window of the venue. The day "opens" at
// OpenHour, "closes" at CloseHour past midnight, and any local time before
// CutoverHour belongs to the previous business day.
type VenueConfig struct {
	Timezone    string
	OpenHour    int
	CloseHour   int
	CutoverHour int
	BucketWidth time.Duration
	Debounce    time.Duration
}

type SnapshotConfig struct {
	Path string
}

type ReconcileConfig struct {
	Interval time.Duration
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

// Load reads configuration from environment variables (optionally .env)
// and applies sane defaults so the service can boot in any environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		AppName:     getString("APP_NAME", "doorcount"),
		Environment: getString("APP_ENV", "development"),
		HTTP: HTTPConfig{
			Host:         getString("SERVER_HOST", "0.0.0.0"),
			Port:         getString("SERVER_PORT", "8080"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			Host:            getString("DB_HOST", "localhost"),
			Port:            getString("DB_PORT", "5432"),
			Name:            getString("DB_NAME", "doorcount"),
			User:            getString("DB_USER", "doorcount"),
			Password:        os.Getenv("DB_PASSWORD"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 10),
			MaxConnLifetime: getDuration("DB_CONN_LIFETIME", time.Hour),
			SSLMode:         getString("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL:      getString("REDIS_URL", "redis://localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getInt("REDIS_DB", 0),
			Channel:  getString("REDIS_CHANGES_CHANNEL", "doorcount:changes"),
		},
		JWT: JWTConfig{
			Secret:     os.Getenv("JWT_SECRET"),
			Issuer:     getString("JWT_ISSUER", "doorcount"),
			SessionTTL: getDuration("SESSION_TTL", 12*time.Hour),
		},
		Venue: VenueConfig{
			Timezone:    getString("VENUE_TIMEZONE", "America/Mexico_City"),
			OpenHour:    getInt("VENUE_OPEN_HOUR", 16),
			CloseHour:   getInt("VENUE_CLOSE_HOUR", 3),
			CutoverHour: getInt("VENUE_CUTOVER_HOUR", 4),
			BucketWidth: getDuration("VENUE_BUCKET_WIDTH", 15*time.Minute),
			Debounce:    getDuration("VENUE_RECOMPUTE_DEBOUNCE", 200*time.Millisecond),
		},
		Snapshot: SnapshotConfig{
			Path: getString("SNAPSHOT_PATH", "./data/occupancy.db"),
		},
		Reconcile: ReconcileConfig{
			Interval: getDuration("RECONCILE_INTERVAL", 60*time.Second),
		},
		Context: ContextConfig{
			RequestTimeout:  getDuration("REQUEST_TIMEOUT_SECONDS", 5*time.Second),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second),
		},
		Logger: LoggerConfig{
			Level:    getString("LOG_LEVEL", "info"),
			Encoding: getString("LOG_ENCODING", "json"),
		},
		Migrations: MigrationsConfig{
			Enabled: getBool("RUN_MIGRATIONS", true),
			Path:    getString("MIGRATIONS_PATH", "./assets/migrations"),
		},
	}

	if err := validateVenue(cfg.Venue); err != nil {
		return nil, err
	}
	if cfg.Database.URL == "" {
		cfg.Database.URL = buildPostgresURL(cfg)
	}

	return cfg, nil
}

// MustLoad panics if configuration cannot be loaded.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func validateVenue(v VenueConfig) error {
	if v.OpenHour < 0 || v.OpenHour > 23 {
		return fmt.Errorf("VENUE_OPEN_HOUR out of range: %d", v.OpenHour)
	}
	if v.CloseHour < 0 || v.CloseHour >= v.OpenHour {
		return fmt.Errorf("VENUE_CLOSE_HOUR must be a post-midnight hour before the open hour, got %d", v.CloseHour)
	}
	if v.CutoverHour < v.CloseHour || v.CutoverHour >= v.OpenHour {
		return fmt.Errorf("VENUE_CUTOVER_HOUR must fall between close and open, got %d", v.CutoverHour)
	}
	if v.BucketWidth <= 0 || time.Hour%v.BucketWidth != 0 {
		return fmt.Errorf("VENUE_BUCKET_WIDTH must evenly divide one hour, got %s", v.BucketWidth)
	}
	return nil
}

func buildPostgresURL(cfg *Config) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)
}

func getString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

// Address returns the HTTP listen address for the fasthttp server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.HTTP.Host, c.HTTP.Port)
}
