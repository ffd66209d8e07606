package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

const minTokenSecretLength = 32

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	Debug     bool   `env:"DEBUG" default:"false"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	TokenSecret string        `env:"TOKEN_SECRET"`
	TokenTTL    time.Duration `env:"TOKEN_TTL" default:"24h"`

	RedisURL string `env:"REDIS_URL"`

	WebSocketGreeting       string   `env:"WS_GREETING" default:"hello"`
	WebSocketAllowedOrigins []string `env:"WS_ALLOWED_ORIGINS"`

	MaxWebSocketConnections int     `env:"MAX_WEBSOCKET_CONNECTIONS" default:"10000"`
	MaxConnectionsPerIP     int     `env:"MAX_CONNECTIONS_PER_IP" default:"50"`
	ConnectionRate          float64 `env:"CONNECTION_RATE" default:"10"`
	ConnectionBurst         int     `env:"CONNECTION_BURST" default:"20"`

	GeocoderURL string `env:"GEOCODER_URL" default:"http://api.map.baidu.com"`
	GeocoderKey string `env:"GEOCODER_KEY"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, &env.Options{SliceSep: ","}); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// EffectiveLogLevel returns the configured level, clamped to "info" when
// debug mode is off.
func (c *Config) EffectiveLogLevel() string {
	if !c.Debug && c.LogLevel == "debug" {
		return "info"
	}
	return c.LogLevel
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func validate(cfg *Config) error {
	if cfg.TokenSecret == "" {
		return errors.New("TOKEN_SECRET is required")
	}
	if len(cfg.TokenSecret) < minTokenSecretLength {
		return fmt.Errorf("TOKEN_SECRET must be at least %d characters", minTokenSecretLength)
	}
	if cfg.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}

	if cfg.MaxWebSocketConnections <= 0 {
		return errors.New("MAX_WEBSOCKET_CONNECTIONS must be positive")
	}
	if cfg.MaxConnectionsPerIP <= 0 {
		return errors.New("MAX_CONNECTIONS_PER_IP must be positive")
	}
	if cfg.ConnectionRate <= 0 || cfg.ConnectionBurst <= 0 {
		return errors.New("CONNECTION_RATE and CONNECTION_BURST must be positive")
	}

	if cfg.RedisURL != "" {
		if _, err := url.Parse(cfg.RedisURL); err != nil {
			return fmt.Errorf("REDIS_URL is invalid: %w", err)
		}
	}

	u, err := url.Parse(cfg.GeocoderURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("GEOCODER_URL must be an absolute URL, got %q", cfg.GeocoderURL)
	}

	return nil
}
