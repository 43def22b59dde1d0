// Package config reads process settings from the environment, after loading
// a .env file if one is present.
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
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Addr     string
	LogLevel string
	Dev      bool

	RoundLimit int
	BoardFile  string

	FlavorURL     string
	FlavorTimeout time.Duration

	DatabaseURL string

	WSReadTimeout  time.Duration
	AllowedOrigins []string

	// Used by cmd/controller only.
	ControllerURL string
}

func Default() Config {
	return Config{
		Addr:          ":8080",
		LogLevel:      "info",
		RoundLimit:    10,
		FlavorTimeout: 3 * time.Second,
		WSReadTimeout: 60 * time.Second,
		ControllerURL: "http://localhost:8080",
	}
}

// Load reads .env files (missing is fine) and then the environment.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup. Every bad value is reported, not just
// the first.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	c := Default()
	var errs error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("ADDR", &c.Addr)
	str("LOG_LEVEL", &c.LogLevel)
	str("BOARD_FILE", &c.BoardFile)
	str("FLAVOR_URL", &c.FlavorURL)
	str("DATABASE_URL", &c.DatabaseURL)
	str("CONTROLLER_URL", &c.ControllerURL)
	integer("ROUND_LIMIT", &c.RoundLimit)
	duration("FLAVOR_TIMEOUT", &c.FlavorTimeout)
	duration("WS_READ_TIMEOUT", &c.WSReadTimeout)

	if v, ok := lookup("DEV"); ok {
		c.Dev, _ = strconv.ParseBool(v)
	}
	if v, ok := lookup("ALLOWED_ORIGINS"); ok && v != "" {
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.AllowedOrigins = append(c.AllowedOrigins, o)
			}
		}
	}

	if c.RoundLimit < 1 {
		errs = multierr.Append(errs, fmt.Errorf("ROUND_LIMIT: must be at least 1, got %d", c.RoundLimit))
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	return c, errs
}

// Logger builds the process logger for these settings.
func (c Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if c.Dev {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
