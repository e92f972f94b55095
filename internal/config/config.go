// Package config loads roomlet configuration.
//
// Values come from three layers, later layers winning:
//  1. built-in defaults
//  2. an optional YAML file
//  3. ROOMLET_* environment variables (a .env file in the working directory
//     is loaded into the environment first, without replacing variables that
//     are already set)
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
	"gopkg.in/yaml.v3"
)

const envPrefix = "ROOMLET_"

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Sessions SessionsConfig `yaml:"sessions"`
	Redis    RedisConfig    `yaml:"redis"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig contains HTTP listener settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig selects the SQL driver and data source.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// StorageConfig describes where uploaded images live and how they are served.
type StorageConfig struct {
	UploadDir     string `yaml:"upload_dir"`
	PublicPath    string `yaml:"public_path"`
	MaxImageBytes int64  `yaml:"max_image_bytes"`
}

// SessionsConfig controls token lifetime and where sessions are kept.
type SessionsConfig struct {
	Backend     string        `yaml:"backend"`
	TTL         time.Duration `yaml:"ttl"`
	Rolling     bool          `yaml:"rolling"`
	TokenSecret string        `yaml:"token_secret"`
}

// RedisConfig is used when sessions.backend is "redis".
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// SMTPConfig enables e-mail notifications. An empty host disables sending.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads configuration. path may be empty, in which case only defaults
// and the environment are used.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns a Config with development defaults: a local SQLite file,
// SQL-backed sessions that live for 30 days and console logging.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: "sqlite3",
			DSN:    "roomlet.db",
		},
		Storage: StorageConfig{
			UploadDir:     "uploads",
			PublicPath:    "/images",
			MaxImageBytes: 10 << 20,
		},
		Sessions: SessionsConfig{
			Backend: "sql",
			TTL:     720 * time.Hour,
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "roomlet:session:",
		},
		SMTP: SMTPConfig{
			Port: 587,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func applyEnvOverrides(cfg *Config) error {
	str := func(name string, dst *string) {
		if v := os.Getenv(envPrefix + name); v != "" {
			*dst = v
		}
	}
	var errs []string
	integer := func(name string, dst *int) {
		if v := os.Getenv(envPrefix + name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s%s: %v", envPrefix, name, err))
				return
			}
			*dst = n
		}
	}

	// Server
	str("SERVER_ADDR", &cfg.Server.Addr)
	if v := os.Getenv(envPrefix + "SERVER_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}

	// Database
	str("DATABASE_DRIVER", &cfg.Database.Driver)
	str("DATABASE_DSN", &cfg.Database.DSN)

	// Storage
	str("STORAGE_UPLOAD_DIR", &cfg.Storage.UploadDir)
	str("STORAGE_PUBLIC_PATH", &cfg.Storage.PublicPath)
	if v := os.Getenv(envPrefix + "STORAGE_MAX_IMAGE_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%sSTORAGE_MAX_IMAGE_BYTES: %v", envPrefix, err))
		} else {
			cfg.Storage.MaxImageBytes = n
		}
	}

	// Sessions
	str("SESSIONS_BACKEND", &cfg.Sessions.Backend)
	str("SESSIONS_TOKEN_SECRET", &cfg.Sessions.TokenSecret)
	if v := os.Getenv(envPrefix + "SESSIONS_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%sSESSIONS_TTL: %v", envPrefix, err))
		} else {
			cfg.Sessions.TTL = d
		}
	}
	if v := os.Getenv(envPrefix + "SESSIONS_ROLLING"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%sSESSIONS_ROLLING: %v", envPrefix, err))
		} else {
			cfg.Sessions.Rolling = b
		}
	}

	// Redis
	str("REDIS_ADDR", &cfg.Redis.Addr)
	str("REDIS_PASSWORD", &cfg.Redis.Password)
	integer("REDIS_DB", &cfg.Redis.DB)

	// SMTP
	str("SMTP_HOST", &cfg.SMTP.Host)
	integer("SMTP_PORT", &cfg.SMTP.Port)
	str("SMTP_USERNAME", &cfg.SMTP.Username)
	str("SMTP_PASSWORD", &cfg.SMTP.Password)
	str("SMTP_FROM", &cfg.SMTP.From)

	// Logging
	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_FORMAT", &cfg.Logging.Format)

	if len(errs) > 0 {
		return fmt.Errorf("environment overrides: %s", strings.Join(errs, "; "))
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Addr == "" {
		errs = append(errs, "server.addr is required")
	}

	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (sqlite3, postgres)", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, "database.dsn is required")
	}

	if c.Storage.UploadDir == "" {
		errs = append(errs, "storage.upload_dir is required")
	}
	if !strings.HasPrefix(c.Storage.PublicPath, "/") {
		errs = append(errs, "storage.public_path must start with /")
	}
	if c.Storage.MaxImageBytes <= 0 {
		errs = append(errs, "storage.max_image_bytes must be positive")
	}

	switch c.Sessions.Backend {
	case "sql":
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, "redis.addr is required when sessions.backend is redis")
		}
	default:
		errs = append(errs, fmt.Sprintf("sessions.backend %q is not supported (sql, redis)", c.Sessions.Backend))
	}
	if c.Sessions.TTL < 0 {
		errs = append(errs, "sessions.ttl must not be negative")
	}

	if c.SMTP.Host != "" && c.SMTP.From == "" {
		errs = append(errs, "smtp.from is required when smtp.host is set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
