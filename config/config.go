package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Env      string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	Port     string `env:"PORT" envDefault:"8080" validate:"required"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`

	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`

	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`
	APIKey      string `env:"API_KEY,required"      validate:"required,min=16"`

	TwitterAPIBaseURL string `env:"TWITTER_API_BASE_URL" envDefault:"https://api.twitterapi.io" validate:"required,url"`
	TwitterAPIKey     string `env:"TWITTER_API_KEY,required" validate:"required"`

	// Worker pool
	MaxWorkers       int `env:"MAX_WORKERS" envDefault:"16" validate:"min=1,max=128"`
	MaxQueueSize     int `env:"MAX_QUEUE_SIZE" envDefault:"100" validate:"min=1,max=10000"`
	TerminateWaitSec int `env:"TERMINATE_WAIT_SEC" envDefault:"5" validate:"min=1,max=60"`

	// Collection
	TargetTweetCount int `env:"TARGET_TWEET_COUNT" envDefault:"1000" validate:"min=1,max=10000"`
	PageSize         int `env:"PAGE_SIZE" envDefault:"20" validate:"min=1,max=100"`
	CourtesyDelayMS  int `env:"COURTESY_DELAY_MS" envDefault:"1000" validate:"min=0,max=60000"`

	// Connection pool (0 = heuristic sizing)
	PoolMaxConns       int `env:"POOL_MAX_CONNS" envDefault:"0" validate:"min=0,max=500"`
	PoolMinConns       int `env:"POOL_MIN_CONNS" envDefault:"0" validate:"min=0,max=500"`
	ConnTimeoutSec     int `env:"CONN_TIMEOUT_SEC" envDefault:"5" validate:"min=1,max=60"`
	ConnIdleTimeoutSec int `env:"CONN_IDLE_TIMEOUT_SEC" envDefault:"1800" validate:"min=10"`

	// Monitoring
	SlowQueryMS       int `env:"SLOW_QUERY_MS" envDefault:"1000" validate:"min=1"`
	LongTxMS          int `env:"LONG_TX_MS" envDefault:"5000" validate:"min=1"`
	MetricBufferSize  int `env:"METRIC_BUFFER_SIZE" envDefault:"1000" validate:"min=10"`
	HealthIntervalSec int `env:"HEALTH_INTERVAL_SEC" envDefault:"30" validate:"min=1,max=600"`

	// Refresher
	WriteChunkSize int    `env:"WRITE_CHUNK_SIZE" envDefault:"100" validate:"min=1,max=1000"`
	RefreshCron    string `env:"REFRESH_CRON" envDefault:"0 */6 * * *" validate:"required"`
}

func Load() (*Config, error) {
	// Missing .env is fine outside local dev.
	_ = godotenv.Load()

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c *Config) CourtesyDelay() time.Duration {
	return time.Duration(c.CourtesyDelayMS) * time.Millisecond
}

func (c *Config) SlowQuery() time.Duration {
	return time.Duration(c.SlowQueryMS) * time.Millisecond
}

func (c *Config) LongTx() time.Duration {
	return time.Duration(c.LongTxMS) * time.Millisecond
}
