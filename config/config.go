// Package config loads runtime settings from the environment and an optional
// config file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/lucasjlepore/cycleroute"
	"github.com/lucasjlepore/cycleroute/weather"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "CYCLEROUTE"

type Config struct {
	WeatherURL         string        `mapstructure:"WEATHER_URL"`
	WeatherConcurrency int           `mapstructure:"WEATHER_CONCURRENCY"`
	WeatherTimeout     time.Duration `mapstructure:"WEATHER_TIMEOUT"`
	WeatherRetries     int           `mapstructure:"WEATHER_RETRIES"`
	RedisAddr          string        `mapstructure:"REDIS_ADDR"`
	RedisPassword      string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB            int           `mapstructure:"REDIS_DB"`
	CacheTTL           time.Duration `mapstructure:"CACHE_TTL"`
	LogLevel           string        `mapstructure:"LOG_LEVEL"`
	Units              string        `mapstructure:"UNITS"`
}

// Load reads CYCLEROUTE_* environment variables over the defaults. When path
// is set the file is read first and the environment still wins.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("WEATHER_URL", weather.DefaultForecastURL)
	v.SetDefault("WEATHER_CONCURRENCY", weather.DefaultBatchSize)
	v.SetDefault("WEATHER_TIMEOUT", weather.DefaultRequestTimeout)
	v.SetDefault("WEATHER_RETRIES", weather.DefaultRetries)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_TTL", weather.DefaultCacheTTL)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("UNITS", string(cycleroute.Metric))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	switch {
	case c.WeatherURL == "":
		return fmt.Errorf("config: WEATHER_URL is empty")
	case c.WeatherConcurrency < 1:
		return fmt.Errorf("config: WEATHER_CONCURRENCY must be at least 1, got %d", c.WeatherConcurrency)
	case c.WeatherTimeout <= 0:
		return fmt.Errorf("config: WEATHER_TIMEOUT must be positive, got %s", c.WeatherTimeout)
	case c.WeatherRetries < 0:
		return fmt.Errorf("config: WEATHER_RETRIES must not be negative, got %d", c.WeatherRetries)
	case c.CacheTTL <= 0:
		return fmt.Errorf("config: CACHE_TTL must be positive, got %s", c.CacheTTL)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if _, err := cycleroute.ParseUnits(c.Units); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (zapcore.Level, error) {
	lvl, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return lvl, fmt.Errorf("config: LOG_LEVEL: %w", err)
	}
	return lvl, nil
}

// CacheEnabled reports whether a Redis address is configured.
func (c Config) CacheEnabled() bool {
	return strings.TrimSpace(c.RedisAddr) != ""
}

// Forecaster builds the Open-Meteo client described by c.
func (c Config) Forecaster() *weather.OpenMeteo {
	om := weather.NewOpenMeteo()
	om.BaseURL = c.WeatherURL
	om.Timeout = c.WeatherTimeout
	om.Retries = c.WeatherRetries
	return om
}
