package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Addr               string `yaml:"addr"`
		RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
		RateBurst          int    `yaml:"rate_burst"`
		DebugRoutes        bool   `yaml:"debug_routes"`
	} `yaml:"server"`

	Backend struct {
		BaseURL          string `yaml:"base_url"`
		APIKey           string `yaml:"api_key"`
		PractitionerID   string `yaml:"practitioner_id"`
		TimeoutSeconds   int    `yaml:"timeout_seconds"`
		ClientErrorsPath string `yaml:"client_errors_path"`
		ForwardErrors    bool   `yaml:"forward_errors"`
	} `yaml:"backend"`

	Booking struct {
		Timezone              string   `yaml:"timezone"`
		BusinessDays          []string `yaml:"business_days"`
		HorizonDays           int      `yaml:"horizon_days"`
		SessionTimeoutMinutes int      `yaml:"session_timeout_minutes"`
		OfficePhone           string   `yaml:"office_phone"`
	} `yaml:"booking"`

	CatalogPath string `yaml:"catalog_path"`

	Stripe struct {
		PublishableKey string `yaml:"publishable_key"`
		SecretKey      string `yaml:"secret_key"`
		Currency       string `yaml:"currency"`
	} `yaml:"stripe"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Errors struct {
		DatabasePath string `yaml:"database_path"`
		Capacity     int    `yaml:"capacity"`
		MaxAgeHours  int    `yaml:"max_age_hours"`
	} `yaml:"errors"`

	Telegram struct {
		Enabled  bool   `yaml:"enabled"`
		BotToken string `yaml:"bot_token"`
		Debug    bool   `yaml:"debug"`
	} `yaml:"telegram"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err = cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Errors.DatabasePath != "" {
		if err = os.MkdirAll(filepath.Dir(cfg.Errors.DatabasePath), 0o755); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.RateLimitPerMinute <= 0 {
		c.Server.RateLimitPerMinute = 120
	}
	if c.Server.RateBurst <= 0 {
		c.Server.RateBurst = 20
	}
	if c.Backend.ClientErrorsPath == "" {
		c.Backend.ClientErrorsPath = "/api/client-errors"
	}
	if c.Booking.Timezone == "" {
		c.Booking.Timezone = "America/New_York"
	}
	if len(c.Booking.BusinessDays) == 0 {
		c.Booking.BusinessDays = []string{"mon", "tue", "wed", "thu", "fri", "sat"}
	}
	if c.Stripe.Currency == "" {
		c.Stripe.Currency = "usd"
	}
	if c.Errors.Capacity <= 0 {
		c.Errors.Capacity = 100
	}
	if c.Monitoring.HealthCheckPort == 0 {
		c.Monitoring.HealthCheckPort = 8081
	}
	if c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate reports settings the service cannot start without.
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if c.Backend.PractitionerID == "" {
		return fmt.Errorf("backend.practitioner_id is required")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("booking.timezone: %w", err)
	}
	if _, err := c.BusinessDays(); err != nil {
		return fmt.Errorf("booking.business_days: %w", err)
	}
	if c.Telegram.Enabled && c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
	}
	return nil
}

func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Booking.Timezone)
}

func (c *Config) BackendTimeout() time.Duration {
	if c.Backend.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}

func (c *Config) SessionTimeout() time.Duration {
	if c.Booking.SessionTimeoutMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.Booking.SessionTimeoutMinutes) * time.Minute
}

func (c *Config) ErrorMaxAge() time.Duration {
	if c.Errors.MaxAgeHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Errors.MaxAgeHours) * time.Hour
}

func (c *Config) PaymentsEnabled() bool {
	return c.Stripe.PublishableKey != "" && c.Stripe.SecretKey != ""
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

// BusinessDays parses booking.business_days. Full names and three-letter
// abbreviations are accepted in any case.
func (c *Config) BusinessDays() ([]time.Weekday, error) {
	out := make([]time.Weekday, 0, len(c.Booking.BusinessDays))
	seen := make(map[time.Weekday]bool)
	for _, raw := range c.Booking.BusinessDays {
		name := strings.ToLower(strings.TrimSpace(raw))
		if len(name) > 3 {
			name = name[:3]
		}
		d, ok := weekdays[name]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", raw)
		}
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out, nil
}
