package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/playperu/digitduel/internal/digitduel"
	"github.com/playperu/digitduel/internal/game"
)

type Config struct {
	HTTPAddr string     `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	DBPath   string     `env:"DB_PATH" envDefault:"data/digitduel.db"`

	// AdminPasswordHash is a bcrypt hash. Empty disables the admin API.
	AdminPasswordHash string `env:"ADMIN_PASSWORD_HASH"`

	Countdown  time.Duration `env:"COUNTDOWN" envDefault:"3s"`
	TurnGrace  time.Duration `env:"TURN_GRACE" envDefault:"3s"`
	Tick       time.Duration `env:"TICK_INTERVAL" envDefault:"1s"`
	EasyTurn   time.Duration `env:"EASY_TURN" envDefault:"30s"`
	HardTurn   time.Duration `env:"HARD_TURN" envDefault:"20s"`
	Resolution string        `env:"RESOLUTION" envDefault:"scoring"`
	// EnforceTurn rejects answers from players not holding the turn.
	EnforceTurn bool `env:"ENFORCE_TURN" envDefault:"true"`

	RateLimit float64 `env:"RATE_LIMIT" envDefault:"10"`
	RateBurst int     `env:"RATE_BURST" envDefault:"20"`
}

// Load reads an optional .env file from the working directory, then parses
// the environment. Variables already set win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if cfg.Tick <= 0 {
		return nil, fmt.Errorf("TICK_INTERVAL must be positive, got %s", cfg.Tick)
	}
	if cfg.TurnGrace < 0 {
		return nil, fmt.Errorf("TURN_GRACE must not be negative, got %s", cfg.TurnGrace)
	}
	for name, turn := range map[string]time.Duration{"EASY_TURN": cfg.EasyTurn, "HARD_TURN": cfg.HardTurn} {
		if turn <= cfg.TurnGrace {
			return nil, fmt.Errorf("%s must be longer than TURN_GRACE (%s), got %s", name, cfg.TurnGrace, turn)
		}
	}
	if cfg.RateBurst < 1 {
		return nil, fmt.Errorf("RATE_BURST must be at least 1, got %d", cfg.RateBurst)
	}
	return &cfg, nil
}

// Game translates the engine settings into a game.Config.
func (c *Config) Game() (game.Config, error) {
	res, err := game.ParseResolution(c.Resolution)
	if err != nil {
		return game.Config{}, err
	}
	return game.Config{
		Modes: []game.ModeConfig{
			{Mode: digitduel.ModeEasy, Turn: c.EasyTurn},
			{Mode: digitduel.ModeHard, Turn: c.HardTurn},
		},
		Countdown:   c.Countdown,
		Grace:       c.TurnGrace,
		Tick:        c.Tick,
		Resolution:  res,
		EnforceTurn: c.EnforceTurn,
	}, nil
}
