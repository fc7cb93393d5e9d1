// Package config reads server settings from the environment, after loading
// an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Addr string `env:"CHESS_ADDR" envDefault:":8081"`

	// DBDriver is "postgres" or "sqlite".
	DBDriver string `env:"CHESS_DB_DRIVER" envDefault:"sqlite"`
	DSN      string `env:"CHESS_DB_DSN"    envDefault:"file:chessgame.db?_pragma=busy_timeout(5000)"`

	TokenSecret string        `env:"CHESS_TOKEN_SECRET,required"`
	TokenTTL    time.Duration `env:"CHESS_TOKEN_TTL"    envDefault:"24h"`

	AllowedOrigins []string `env:"CHESS_ALLOWED_ORIGINS" envDefault:"http://localhost:5173" envSeparator:","`

	MaxLiveMatches int           `env:"CHESS_MAX_LIVE_MATCHES" envDefault:"500"`
	TickPeriod     time.Duration `env:"CHESS_TICK_PERIOD"      envDefault:"700ms"`
	FinishedGrace  time.Duration `env:"CHESS_FINISHED_GRACE"   envDefault:"10m"`
	AbandonedGrace time.Duration `env:"CHESS_ABANDONED_GRACE"  envDefault:"5m"`
	ChatLimit      int           `env:"CHESS_CHAT_LIMIT"       envDefault:"200"`

	InitialCoins  int64 `env:"CHESS_INITIAL_COINS"  envDefault:"1000"`
	InitialRating int   `env:"CHESS_INITIAL_RATING" envDefault:"1200"`
}

// Load reads files (".env" when none are given) into the environment and
// parses the result. Missing files are not an error.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file: %w", err)
		}
		log.Println("[config] no .env file found, reading environment variables directly")
	}
	return Parse()
}

func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("CHESS_DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver)
	}
	if c.TickPeriod <= 0 {
		return fmt.Errorf("CHESS_TICK_PERIOD must be positive")
	}
	if c.MaxLiveMatches <= 0 {
		return fmt.Errorf("CHESS_MAX_LIVE_MATCHES must be positive")
	}
	if c.InitialCoins < 0 {
		return fmt.Errorf("CHESS_INITIAL_COINS must not be negative")
	}
	return nil
}
