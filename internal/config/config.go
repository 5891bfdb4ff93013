package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/relaychat/relay-api/internal/policy"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName          string
	AppEnv           string
	AppPort          string
	DatabaseURL      string
	RedisURL         string
	NATSURL          string
	JWTSecret        string
	JWTRefreshSecret string
	RateLimitMax     int64
	RateLimitWindow  time.Duration
	RestrictedWindow policy.RestrictedWindow
	StreamKeepAlive  time.Duration
	SeedEnabled      bool
	SeedToken        string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("RELAY")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Relay API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("rate_limit.max", 5)
	v.SetDefault("rate_limit.window", "1m")
	v.SetDefault("restricted.start", "21:00")
	v.SetDefault("restricted.end", "18:00")
	v.SetDefault("stream.keepalive", "30s")

	window, err := time.ParseDuration(v.GetString("rate_limit.window"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid rate limit window: %w", err)
	}

	restrictedStart, err := policy.ParseClockTime(v.GetString("restricted.start"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid restricted window start: %w", err)
	}
	restrictedEnd, err := policy.ParseClockTime(v.GetString("restricted.end"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid restricted window end: %w", err)
	}

	keepAlive, err := time.ParseDuration(v.GetString("stream.keepalive"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid stream keepalive: %w", err)
	}

	cfg := Config{
		AppName:          v.GetString("app.name"),
		AppEnv:           v.GetString("app.env"),
		AppPort:          v.GetString("app.port"),
		DatabaseURL:      v.GetString("database.url"),
		RedisURL:         v.GetString("redis.url"),
		NATSURL:          v.GetString("nats.url"),
		JWTSecret:        v.GetString("jwt.secret"),
		JWTRefreshSecret: v.GetString("jwt.refresh_secret"),
		RateLimitMax:     v.GetInt64("rate_limit.max"),
		RateLimitWindow:  window,
		RestrictedWindow: policy.RestrictedWindow{Start: restrictedStart, End: restrictedEnd},
		StreamKeepAlive:  keepAlive,
		SeedEnabled:      v.GetBool("seed.enabled"),
		SeedToken:        v.GetString("seed.token"),
	}

	if cfg.JWTSecret == "" || cfg.JWTRefreshSecret == "" {
		return Config{}, fmt.Errorf("jwt secrets must be provided")
	}

	if cfg.RateLimitMax <= 0 {
		cfg.RateLimitMax = 5
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = time.Minute
	}

	return cfg, nil
}
