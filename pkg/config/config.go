// Package config reads the service settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/docseal/api/pkg/database"
	"github.com/docseal/api/pkg/stamp"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

var (
	REQUIRED_ENV = []string{
		"ADDR",
		"PUBLIC_ORIGIN",
		"REDIS_HOST",
		"REDIS_PORT",
	}

	REQUIRED_POSTGRES_ENV = []string{
		"POSTGRES_HOST",
		"POSTGRES_PORT",
		"POSTGRES_USER",
		"POSTGRES_PASSWORD",
		"POSTGRES_DB",
	}
)

type Config struct {
	Addr         string
	PublicOrigin string
	Env          string

	StoreDriver string
	Postgres    database.PostgresConfig

	RedisHost string
	RedisPort string

	AdminEmails []string

	StampLocale   string
	StampLocation *time.Location

	MaxUploadBytes int64
	SignRateLimit  int
	SignRateWindow time.Duration
}

func (c *Config) Production() bool {
	return c.Env == "production"
}

func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

// Load reads .env when present and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	return FromEnv()
}

func FromEnv() (*Config, error) {
	driver := getenv("STORE_DRIVER", StoreDriverPostgres)
	if driver != StoreDriverPostgres && driver != StoreDriverMemory {
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", driver)
	}

	required := REQUIRED_ENV
	if driver == StoreDriverPostgres {
		required = append(append([]string{}, REQUIRED_ENV...), REQUIRED_POSTGRES_ENV...)
	}
	if missing := checkenv(required); len(missing) != 0 {
		return nil, fmt.Errorf("missing %v in env", strings.Join(missing, ", "))
	}

	c := &Config{
		Addr:         os.Getenv("ADDR"),
		PublicOrigin: strings.TrimRight(os.Getenv("PUBLIC_ORIGIN"), "/"),
		Env:          getenv("APP_ENV", "development"),
		StoreDriver:  driver,
		Postgres: database.PostgresConfig{
			Host:     os.Getenv("POSTGRES_HOST"),
			Port:     os.Getenv("POSTGRES_PORT"),
			User:     os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			Database: os.Getenv("POSTGRES_DB"),
			SSLMode:  os.Getenv("POSTGRES_SSLMODE"),
		},
		RedisHost:   os.Getenv("REDIS_HOST"),
		RedisPort:   os.Getenv("REDIS_PORT"),
		AdminEmails: splitList(os.Getenv("ADMIN_EMAILS")),
		StampLocale: getenv("STAMP_LOCALE", "fr"),
	}

	if !stamp.SupportedLocale(c.StampLocale) {
		return nil, fmt.Errorf("unsupported STAMP_LOCALE %q", c.StampLocale)
	}

	loc, err := time.LoadLocation(getenv("STAMP_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid STAMP_TIMEZONE: %w", err)
	}
	c.StampLocation = loc
	c.Postgres.TimeZone = loc.String()

	if c.MaxUploadBytes, err = strconv.ParseInt(getenv("MAX_UPLOAD_BYTES", "26214400"), 10, 64); err != nil || c.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_BYTES %q", os.Getenv("MAX_UPLOAD_BYTES"))
	}
	if c.SignRateLimit, err = strconv.Atoi(getenv("SIGN_RATE_LIMIT", "10")); err != nil || c.SignRateLimit <= 0 {
		return nil, fmt.Errorf("invalid SIGN_RATE_LIMIT %q", os.Getenv("SIGN_RATE_LIMIT"))
	}
	if c.SignRateWindow, err = time.ParseDuration(getenv("SIGN_RATE_WINDOW", "1m")); err != nil || c.SignRateWindow <= 0 {
		return nil, fmt.Errorf("invalid SIGN_RATE_WINDOW %q", os.Getenv("SIGN_RATE_WINDOW"))
	}

	return c, nil
}

func checkenv(keys []string) []string {
	var missing []string
	for _, key := range keys {
		if val, ok := os.LookupEnv(key); len(val) == 0 || !ok {
			missing = append(missing, key)
		}
	}

	return missing
}

func getenv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
