package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/rockwerks/weather-forecast-app/internal/domain"
)

// Config holds process-wide settings. The API key is only ever read from
// the environment (or a .env file).
type Config struct {
	OpenWeatherAPIKey  string
	OpenWeatherBaseURL string
	DefaultUnits       domain.UnitSystem
	HTTPTimeout        time.Duration
	DatabaseURL        string
	KafkaBrokers       []string
	KafkaTopic         string
	SessionTTL         time.Duration
	Port               string
	Env                string
	LogLevel           string
}

// Load reads .env (if present) and the environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using system environment")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only
func FromEnv() *Config {
	units, err := domain.ParseUnitSystem(getEnv("WEATHER_UNITS", "metric"))
	if err != nil {
		slog.Warn("invalid WEATHER_UNITS, falling back to metric", "error", err)
	}

	return &Config{
		OpenWeatherAPIKey:  getEnv("OPENWEATHER_API_KEY", ""),
		OpenWeatherBaseURL: getEnv("OPENWEATHER_BASE_URL", "https://api.openweathermap.org/data/2.5/weather"),
		DefaultUnits:       units,
		HTTPTimeout:        getEnvDuration("WEATHER_HTTP_TIMEOUT", 0),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		KafkaBrokers:       getEnvSlice("KAFKA_BROKERS", nil),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "weather_lookups"),
		SessionTTL:         getEnvDuration("SESSION_TTL", 30*time.Minute),
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("GO_ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}
}

// IsProduction reports whether GO_ENV is production
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// NewLogger builds the process logger: text in development, JSON in production.
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(c.LogLevel)}

	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if c.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
