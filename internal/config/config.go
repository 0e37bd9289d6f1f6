package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv        string `env:"APP_ENV" default:"development"`
	Port          string `env:"PORT" default:"8080"`
	DatabaseURL   string `env:"DATABASE_URL" default:"host=localhost user=postgres password=postgres dbname=commfeed port=5432 sslmode=disable TimeZone=UTC"`
	SessionSecret string `env:"SESSION_SECRET" default:"secret_key_change_me"`
	LogLevel      string `env:"LOG_LEVEL" default:"info"`
	LogFormat     string `env:"LOG_FORMAT" default:"text"`

	LeaderboardSize    int           `env:"LEADERBOARD_SIZE" default:"5"`
	LeaderboardWindow  time.Duration `env:"LEADERBOARD_WINDOW" default:"24h"`
	LeaderboardMaxSize int           `env:"LEADERBOARD_MAX_SIZE" default:"50"`

	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" default:"10"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" default:"20"`
}

// Load 先读 .env（不存在不算错误），再从环境变量绑定
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}
	return FromEnv()
}

// FromEnv 只从当前环境变量构造配置
func FromEnv() (*Config, error) {
	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func validate(cfg *Config) error {
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if cfg.LeaderboardSize <= 0 {
		return fmt.Errorf("LEADERBOARD_SIZE must be positive, got %d", cfg.LeaderboardSize)
	}
	if cfg.LeaderboardWindow <= 0 {
		return fmt.Errorf("LEADERBOARD_WINDOW must be positive, got %s", cfg.LeaderboardWindow)
	}
	if cfg.LeaderboardMaxSize < cfg.LeaderboardSize {
		return fmt.Errorf("LEADERBOARD_MAX_SIZE (%d) must not be smaller than LEADERBOARD_SIZE (%d)", cfg.LeaderboardMaxSize, cfg.LeaderboardSize)
	}
	if cfg.RateLimitRPS <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be positive, got %v", cfg.RateLimitRPS)
	}
	if cfg.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be positive, got %d", cfg.RateLimitBurst)
	}
	if cfg.IsProduction() && cfg.SessionSecret == "secret_key_change_me" {
		return errors.New("SESSION_SECRET must be set in production")
	}
	return nil
}
