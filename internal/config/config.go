// Package config loads process settings from the environment, an optional
// .env file and an optional configs/config.yml.
package config

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"sensor_dashboard/internal/models"
	"sensor_dashboard/internal/timeutil"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type HomeAssistant struct {
	URL               string        `validate:"required,url"`
	Token             string        `validate:"required"`
	TemperatureEntity string        `validate:"required"`
	HumidityEntity    string        `validate:"required"`
	WeatherEntity     string        // optional, enables the forecast cache
	CurrentTimeout    time.Duration `validate:"gt=0"`
	HistoryTimeout    time.Duration `validate:"gt=0"`
	ChunkSpan         time.Duration `validate:"gt=0"`
	RequestDelay      time.Duration `validate:"gte=0"`
}

type Sync struct {
	UpdateInterval  time.Duration `validate:"gt=0"`
	HistoryInterval time.Duration `validate:"gt=0"`
	Lookback        time.Duration `validate:"gt=0"`
	InitialDelay    time.Duration `validate:"gt=0"`
}

type HTTP struct {
	Host            string
	Port            string        `validate:"required,numeric"`
	ReadTimeout     time.Duration `validate:"gt=0"`
	WriteTimeout    time.Duration `validate:"gt=0"`
	ShutdownTimeout time.Duration `validate:"gt=0"`
}

type Config struct {
	HomeAssistant   HomeAssistant
	Sync            Sync
	HTTP            HTTP
	DatabasePath    string `validate:"required"`
	DisplayTimezone string `validate:"required"`
	LogLevel        string `validate:"omitempty,oneof=debug info warn warning error"`

	location *time.Location
}

const (
	defaultHomeAssistantURL = "http://localhost:8123"
	defaultHTTPHost         = "0.0.0.0"
	defaultHTTPPort         = "8080"
)

// defaults for keys without legacy aliases.
var defaults = map[string]any{
	"database_path":            "weather_data.db",
	"update_interval":          "300",
	"history_refresh_interval": "12h",
	"backfill_lookback":        "720h",
	"history_chunk_span":       "240h",
	"history_request_delay":    "1s",
	"initial_sync_delay":       "5s",
	"current_timeout":          "10s",
	"history_timeout":          "30s",
	"display_timezone":         "Asia/Novosibirsk",
	"http_read_timeout":        "10s",
	"http_write_timeout":       "30s",
	"http_shutdown_timeout":    "10s",
	"log_level":                "info",
}

// Load reads .env (if present), configs/config.yml (if present) and the
// environment, in increasing priority, then validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	return load(viper.New(), "configs")
}

func load(v *viper.Viper, configDir string) (*Config, error) {
	v.SetConfigName("config")
	v.SetConfigType("yml")
	if configDir != "" {
		v.AddConfigPath(configDir)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	r := reader{v: v}
	cfg := &Config{
		HomeAssistant: HomeAssistant{
			URL:               r.first(defaultHomeAssistantURL, "home_assistant_url", "home_assistant_api_base"),
			Token:             r.str("home_assistant_token"),
			TemperatureEntity: r.first("", "home_assistant_sensor", "home_assistant_sensor_temperature"),
			HumidityEntity:    r.str("home_assistant_sensor_humidity"),
			WeatherEntity:     r.str("home_assistant_weather_entity"),
			CurrentTimeout:    r.duration("current_timeout"),
			HistoryTimeout:    r.duration("history_timeout"),
			ChunkSpan:         r.duration("history_chunk_span"),
			RequestDelay:      r.duration("history_request_delay"),
		},
		Sync: Sync{
			UpdateInterval:  r.duration("update_interval"),
			HistoryInterval: r.duration("history_refresh_interval"),
			Lookback:        r.duration("backfill_lookback"),
			InitialDelay:    r.duration("initial_sync_delay"),
		},
		HTTP: HTTP{
			Host:            r.first(defaultHTTPHost, "http_host", "flask_host"),
			Port:            r.first(defaultHTTPPort, "http_port", "flask_port", "port"),
			ReadTimeout:     r.duration("http_read_timeout"),
			WriteTimeout:    r.duration("http_write_timeout"),
			ShutdownTimeout: r.duration("http_shutdown_timeout"),
		},
		DatabasePath:    r.str("database_path"),
		DisplayTimezone: r.str("display_timezone"),
		LogLevel:        strings.ToLower(r.str("log_level")),
	}
	if len(r.errs) > 0 {
		return nil, errors.Join(r.errs...)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	loc, err := timeutil.LoadLocation(cfg.DisplayTimezone)
	if err != nil {
		return nil, fmt.Errorf("display_timezone: %w", err)
	}
	cfg.location = loc
	return cfg, nil
}

// Location is the parsed display timezone.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// Sensors maps the configured entities to stored series.
func (c *Config) Sensors() []models.SensorBinding {
	return []models.SensorBinding{
		{Series: models.SeriesTemperature, EntityID: c.HomeAssistant.TemperatureEntity},
		{Series: models.SeriesHumidity, EntityID: c.HomeAssistant.HumidityEntity},
	}
}

// SeriesNames lists the series the store must hold.
func (c *Config) SeriesNames() []models.Series {
	out := make([]models.Series, 0, 2)
	for _, s := range c.Sensors() {
		out = append(out, s.Series)
	}
	return out
}

// reader collects parse errors so every bad key is reported at once.
type reader struct {
	v    *viper.Viper
	errs []error
}

func (r *reader) str(key string) string {
	return strings.TrimSpace(r.v.GetString(key))
}

// first returns the first non-empty value among keys, or def.
func (r *reader) first(def string, keys ...string) string {
	for _, k := range keys {
		if s := r.str(k); s != "" {
			return s
		}
	}
	return def
}

// duration accepts a Go duration ("90s", "12h") or a bare number of seconds.
func (r *reader) duration(key string) time.Duration {
	raw := r.str(key)
	if raw == "" {
		return 0
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return time.Duration(n * float64(time.Second))
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("invalid %s %q: %w", strings.ToUpper(key), raw, err))
		return 0
	}
	return d
}
