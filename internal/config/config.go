package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port           string   `yaml:"port" env:"PORT"`
		AllowedOrigins []string `yaml:"allowedOrigins" env:"ALLOWED_ORIGINS" envSeparator:","`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" env:"LOG_LEVEL"`
		Pretty bool   `yaml:"pretty" env:"LOG_PRETTY"`
	} `yaml:"log"`
	Game struct {
		MaxPoints    int    `yaml:"maxPoints" env:"GAME_MAX_POINTS"`
		TimeLimit    string `yaml:"timeLimit" env:"GAME_TIME_LIMIT"`
		TickInterval string `yaml:"tickInterval" env:"GAME_TICK_INTERVAL"`
	} `yaml:"game"`
	Redis struct {
		Addr     string `yaml:"addr" env:"REDIS_ADDR"`
		Password string `yaml:"password" env:"REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"REDIS_DB"`
		TTL      string `yaml:"ttl" env:"REDIS_TTL"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url" env:"POSTGRES_URL"`
	} `yaml:"postgres"`
	QuestionSets struct {
		TTL string `yaml:"ttl" env:"QUESTION_SETS_TTL"`
	} `yaml:"questionSets"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Server.AllowedOrigins = []string{"*"}
	cfg.Log.Level = "info"
	cfg.Game.MaxPoints = 120
	cfg.Game.TimeLimit = "120s"
	cfg.Game.TickInterval = "1s"
	cfg.Redis.TTL = "10m"
	cfg.QuestionSets.TTL = "10m"
	return cfg
}

// Load reads YAML config from path on top of the defaults, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("config env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects game settings the round engine cannot run with.
// Empty durations fall back to their defaults and are accepted.
func (c Config) Validate() error {
	if c.Game.MaxPoints < 0 {
		return fmt.Errorf("game.maxPoints must not be negative, got %d", c.Game.MaxPoints)
	}
	if err := positiveDuration("game.timeLimit", c.Game.TimeLimit); err != nil {
		return err
	}
	return positiveDuration("game.tickInterval", c.Game.TickInterval)
}

func positiveDuration(name, raw string) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %s", name, raw)
	}
	return nil
}

// LoadDotEnv exports the variables of a .env file into the process
// environment. A missing file is ignored.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
