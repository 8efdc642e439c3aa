// Package config resolves runtime settings from flags, the environment and an
// optional .env file, in that order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          int
	DBDriver      string
	DBDSN         string
	JWTSecret     string
	LogLevel      string
	LogFormat     string
	ScanRateLimit int
	WSOrigins     []string
}

// Load parses args (without the program name). Values in envFile are only
// applied to variables not already set in the environment.
func Load(args []string) (Config, error) {
	var cfg Config
	var envFile, origins string

	flags := flag.NewFlagSet("binpoints", flag.ContinueOnError)
	flags.StringVar(&envFile, "env", ".env", "Path to an optional .env file")
	flags.IntVar(&cfg.Port, "p", 0, "Server port")
	flags.StringVar(&cfg.DBDriver, "db-driver", "", "Database driver (sqlite or postgres)")
	flags.StringVar(&cfg.DBDSN, "db", "", "SQLite path or Postgres URL")
	flags.StringVar(&cfg.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.StringVar(&cfg.LogFormat, "log-format", "", "Log format (text or json)")
	flags.IntVar(&cfg.ScanRateLimit, "scan-rate", 0, "Scans allowed per user per minute")
	flags.StringVar(&origins, "ws-origins", "", "Comma separated origin patterns allowed on /ws")

	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}

	if err := loadEnvFile(envFile); err != nil {
		return Config{}, err
	}

	if cfg.Port == 0 {
		port, err := envInt("BINPOINTS_PORT", 8080)
		if err != nil {
			return Config{}, err
		}
		cfg.Port = port
	}

	if cfg.DBDriver == "" {
		cfg.DBDriver = envOr("BINPOINTS_DB_DRIVER", "sqlite")
	}
	switch cfg.DBDriver {
	case "sqlite":
		if cfg.DBDSN == "" {
			cfg.DBDSN = envOr("BINPOINTS_DB_PATH", "binpoints.db")
		}
	case "postgres":
		if cfg.DBDSN == "" {
			cfg.DBDSN = os.Getenv("DATABASE_URL")
		}
		if cfg.DBDSN == "" {
			return Config{}, errors.New("database URL required for postgres (use -db or DATABASE_URL env)")
		}
	default:
		return Config{}, fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
	}

	cfg.JWTSecret = os.Getenv("BINPOINTS_JWT_SECRET")
	if cfg.JWTSecret == "" {
		return Config{}, errors.New("BINPOINTS_JWT_SECRET required")
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = envOr("BINPOINTS_LOG_LEVEL", "info")
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = envOr("BINPOINTS_LOG_FORMAT", "text")
	}

	if cfg.ScanRateLimit == 0 {
		n, err := envInt("BINPOINTS_SCAN_RATE_LIMIT", 30)
		if err != nil {
			return Config{}, err
		}
		cfg.ScanRateLimit = n
	}
	if cfg.ScanRateLimit < 1 {
		return Config{}, errors.New("scan rate limit must be at least 1")
	}

	if origins == "" {
		origins = os.Getenv("BINPOINTS_WS_ORIGINS")
	}
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.WSOrigins = append(cfg.WSOrigins, o)
		}
	}

	return cfg, nil
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s env variable", key)
	}
	return n, nil
}
