// Package config loads service configuration from an optional .env file and the environment.
package config

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	HTTPAddr     string `mapstructure:"HTTP_ADDR"`
	LogLevel     string `mapstructure:"LOG_LEVEL"`
	CookieSecure bool   `mapstructure:"COOKIE_SECURE"`

	// DBDriver is "postgres" or "sqlite"; sqlite is meant for local runs only.
	DBDriver    string `mapstructure:"DB_DRIVER"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	JWTSecret string `mapstructure:"JWT_SECRET"`
	// ACCESS_TTL and REFRESH_TTL use time.ParseDuration syntax.
	AccessTTLRaw      string `mapstructure:"ACCESS_TTL"`
	RefreshTTLRaw     string `mapstructure:"REFRESH_TTL"`
	RefreshTokenBytes int    `mapstructure:"REFRESH_TOKEN_BYTES"`
	LockoutThreshold  int    `mapstructure:"LOCKOUT_THRESHOLD"`
	SweepIntervalRaw  string `mapstructure:"SWEEP_INTERVAL"`

	KafkaBrokersRaw string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic      string `mapstructure:"KAFKA_TOPIC"`

	ESURL      string `mapstructure:"ES_URL"`
	ESUser     string `mapstructure:"ES_USER"`
	ESPassword string `mapstructure:"ES_PASSWORD"`
	ESIndex    string `mapstructure:"ES_INDEX"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("notice: .env file not found: %v. Using system environment variables", err)
	}

	v := viper.New()
	v.AutomaticEnv()

	defaults := map[string]any{
		"HTTP_ADDR":           ":8080",
		"LOG_LEVEL":           "info",
		"COOKIE_SECURE":       true,
		"DB_DRIVER":           "postgres",
		"DATABASE_URL":        "",
		"JWT_SECRET":          "",
		"ACCESS_TTL":          "15m",
		"REFRESH_TTL":         "168h",
		"REFRESH_TOKEN_BYTES": 32,
		"LOCKOUT_THRESHOLD":   5,
		"SWEEP_INTERVAL":      "1h",
		"KAFKA_BROKERS":       "",
		"KAFKA_TOPIC":         "auth_events",
		"ES_URL":              "",
		"ES_USER":             "",
		"ES_PASSWORD":         "",
		"ES_INDEX":            "products",
	}
	for k, def := range defaults {
		v.SetDefault(k, def)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	if c.JWTSecret == "" {
		return errors.New("config: JWT_SECRET must be set")
	}
	switch c.DBDriver {
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL must be set for the postgres driver")
		}
	case "sqlite":
		if c.DatabaseURL == "" {
			c.DatabaseURL = "stockflow.db"
		}
	default:
		return errors.New("config: DB_DRIVER must be postgres or sqlite")
	}
	if c.RefreshTokenBytes < 16 {
		return errors.New("config: REFRESH_TOKEN_BYTES must be at least 16")
	}
	if c.LockoutThreshold < 1 {
		return errors.New("config: LOCKOUT_THRESHOLD must be positive")
	}
	return nil
}

func (c *Config) AccessTTL() time.Duration {
	return parseDurationDefault(c.AccessTTLRaw, 15*time.Minute)
}

func (c *Config) RefreshTTL() time.Duration {
	return parseDurationDefault(c.RefreshTTLRaw, 168*time.Hour)
}

func (c *Config) SweepInterval() time.Duration {
	return parseDurationDefault(c.SweepIntervalRaw, time.Hour)
}

func (c *Config) KafkaBrokers() []string {
	return CSV(c.KafkaBrokersRaw)
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseDurationDefault(raw string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
