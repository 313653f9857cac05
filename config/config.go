package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"arena-server/game"
)

// Config holds process settings. Simulation tuning lives in package game.
type Config struct {
	Addr          string
	ClientDir     string
	LogFile       string
	LogLevel      string
	AdminPassword string
	PublicURL     string
	AnalyticsDSN  string

	ObstacleSpawnInterval time.Duration
	CoinSpawnInterval     time.Duration
	InitialGroups         int
	MaxObstacles          int
}

// Default returns the built-in settings
func Default() Config {
	return Config{
		Addr:                  ":8080",
		ClientDir:             "../client",
		LogFile:               "arena.log",
		LogLevel:              "info",
		PublicURL:             "http://localhost:8080",
		AnalyticsDSN:          "file:arena?mode=memory&cache=shared",
		ObstacleSpawnInterval: game.ObstacleSpawnInterval,
		CoinSpawnInterval:     game.CoinSpawnInterval,
		InitialGroups:         game.InitialObstacleGroups,
		MaxObstacles:          game.MaxObstacles,
	}
}

// Load builds the config from defaults, then an optional .env file, then
// ARENA_* environment variables, then command-line flags.
func Load(args []string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return parse(args, os.LookupEnv, io.Discard)
}

func parse(args []string, lookup func(string) (string, bool), output io.Writer) (Config, error) {
	cfg := Default()
	if err := cfg.applyEnv(lookup); err != nil {
		return Config{}, err
	}

	fset := flag.NewFlagSet("arena-server", flag.ContinueOnError)
	fset.SetOutput(output)
	fset.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	fset.StringVar(&cfg.ClientDir, "client", cfg.ClientDir, "path to client directory")
	fset.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "rolling log file (empty for stdout only)")
	fset.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	fset.StringVar(&cfg.AdminPassword, "admin-password", cfg.AdminPassword, "enables /admin when set")
	fset.StringVar(&cfg.PublicURL, "public-url", cfg.PublicURL, "URL encoded by /qr")
	fset.StringVar(&cfg.AnalyticsDSN, "analytics-dsn", cfg.AnalyticsDSN, "sqlite DSN for analytics")
	fset.DurationVar(&cfg.ObstacleSpawnInterval, "obstacle-spawn", cfg.ObstacleSpawnInterval, "obstacle group spawn interval")
	fset.DurationVar(&cfg.CoinSpawnInterval, "coin-spawn", cfg.CoinSpawnInterval, "ambient coin spawn interval")
	fset.IntVar(&cfg.InitialGroups, "initial-groups", cfg.InitialGroups, "obstacle groups placed at startup")
	fset.IntVar(&cfg.MaxObstacles, "max-obstacles", cfg.MaxObstacles, "active obstacle cap")
	if err := fset.Parse(args); err != nil {
		return Config{}, fmt.Errorf("parse flags: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	str("ARENA_ADDR", &c.Addr)
	str("ARENA_CLIENT_DIR", &c.ClientDir)
	str("ARENA_LOG_FILE", &c.LogFile)
	str("ARENA_LOG_LEVEL", &c.LogLevel)
	str("ARENA_ADMIN_PASSWORD", &c.AdminPassword)
	str("ARENA_PUBLIC_URL", &c.PublicURL)
	str("ARENA_ANALYTICS_DSN", &c.AnalyticsDSN)

	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
		return nil
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}
	if err := dur("ARENA_OBSTACLE_SPAWN", &c.ObstacleSpawnInterval); err != nil {
		return err
	}
	if err := dur("ARENA_COIN_SPAWN", &c.CoinSpawnInterval); err != nil {
		return err
	}
	if err := num("ARENA_INITIAL_GROUPS", &c.InitialGroups); err != nil {
		return err
	}
	return num("ARENA_MAX_OBSTACLES", &c.MaxObstacles)
}

// Validate rejects settings the server cannot run with
func (c Config) Validate() error {
	switch {
	case c.Addr == "":
		return errors.New("config: listen address is empty")
	case c.ObstacleSpawnInterval <= 0:
		return fmt.Errorf("config: obstacle spawn interval must be positive, got %s", c.ObstacleSpawnInterval)
	case c.CoinSpawnInterval <= 0:
		return fmt.Errorf("config: coin spawn interval must be positive, got %s", c.CoinSpawnInterval)
	case c.MaxObstacles <= 0:
		return fmt.Errorf("config: max obstacles must be positive, got %d", c.MaxObstacles)
	case c.InitialGroups < 0:
		return fmt.Errorf("config: initial groups must not be negative, got %d", c.InitialGroups)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.LogLevel)
	}
	return nil
}
