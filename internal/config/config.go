package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every runtime setting of the service.
type Config struct {
	AppPort   string
	APIPrefix string
	Env       string

	DBDriver    string
	DatabaseDSN string

	JWTSecret        string
	TokenTTL         time.Duration
	AdminEmailMarker string

	SeedOnStart       bool
	SeedAdminEmail    string
	SeedAdminPassword string

	RabbitMQURL   string
	RabbitMQQueue string

	RedisAddr      string
	RedisDB        int
	IdempotencyTTL time.Duration

	LowStockThreshold int

	LogLevel  string
	LogPretty bool
}

// Load reads configuration from the environment, after merging a .env file
// from the working directory when one exists.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, err
		}
	}
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("APP_PORT", ":3000")
	v.SetDefault("API_PREFIX", "/api")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DATABASE_DSN", "sweets.db")
	v.SetDefault("TOKEN_TTL", "24h")
	v.SetDefault("ADMIN_EMAIL_MARKER", "admin")
	v.SetDefault("SEED_ON_START", true)
	v.SetDefault("SEED_ADMIN_EMAIL", "admin@mithai.com")
	v.SetDefault("SEED_ADMIN_PASSWORD", "admin123")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("RABBITMQ_QUEUE", "inventory_events")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("IDEMPOTENCY_TTL", "24h")
	v.SetDefault("LOW_STOCK_THRESHOLD", 5)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)
	v.AutomaticEnv()
	return v
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		AppPort:           v.GetString("APP_PORT"),
		APIPrefix:         normalizePrefix(v.GetString("API_PREFIX")),
		Env:               v.GetString("ENV"),
		DBDriver:          strings.ToLower(strings.TrimSpace(v.GetString("DB_DRIVER"))),
		DatabaseDSN:       v.GetString("DATABASE_DSN"),
		JWTSecret:         strings.TrimSpace(v.GetString("JWT_SECRET")),
		TokenTTL:          v.GetDuration("TOKEN_TTL"),
		AdminEmailMarker:  v.GetString("ADMIN_EMAIL_MARKER"),
		SeedOnStart:       v.GetBool("SEED_ON_START"),
		SeedAdminEmail:    v.GetString("SEED_ADMIN_EMAIL"),
		SeedAdminPassword: v.GetString("SEED_ADMIN_PASSWORD"),
		RabbitMQURL:       v.GetString("RABBITMQ_URL"),
		RabbitMQQueue:     v.GetString("RABBITMQ_QUEUE"),
		RedisAddr:         v.GetString("REDIS_ADDR"),
		RedisDB:           v.GetInt("REDIS_DB"),
		IdempotencyTTL:    v.GetDuration("IDEMPOTENCY_TTL"),
		LowStockThreshold: v.GetInt("LOW_STOCK_THRESHOLD"),
		LogLevel:          v.GetString("LOG_LEVEL"),
		LogPretty:         v.GetBool("LOG_PRETTY"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}
	switch c.DBDriver {
	case "sqlite", "postgres", "memory":
	default:
		return errors.New("DB_DRIVER must be one of sqlite, postgres, memory")
	}
	if c.DBDriver != "memory" && c.DatabaseDSN == "" {
		return errors.New("DATABASE_DSN is required")
	}
	return nil
}

// normalizePrefix turns "api", "/api/" and "/api" into "/api". "" and "/" mean root.
func normalizePrefix(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return ""
	}
	return "/" + p
}
