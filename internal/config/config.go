package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// DefaultFile is looked up in the working directory when no --config path
// is given.
const DefaultFile = "swellwatch.toml"

type Config struct {
	Provider ProviderConfig `toml:"provider"`
	Monitor  MonitorConfig  `toml:"monitor"`
	Scan     ScanConfig     `toml:"scan"`
	Booking  BookingConfig  `toml:"booking"`
	Logging  LoggingConfig  `toml:"logging"`
}

type ProviderConfig struct {
	BaseURL      string `toml:"base_url"`
	WebsocketURL string `toml:"websocket_url"`
	APIKey       string `toml:"api_key"`
	AuthToken    string `toml:"auth_token"`
}

type MonitorConfig struct {
	PollInterval string `toml:"poll_interval"` // e.g. "10s"
}

type ScanConfig struct {
	CooldownWindow string `toml:"cooldown_window"` // e.g. "60s"
}

type BookingConfig struct {
	AttemptPace string `toml:"attempt_pace"` // spacing between batch attempts, "0" disables
}

type LoggingConfig struct {
	Level  string `toml:"level"`  // "debug", "info", "warn", "error"
	Format string `toml:"format"` // "json" or "text"
}

func Default() Config {
	return Config{
		Provider: ProviderConfig{
			BaseURL:      "http://localhost:8080",
			WebsocketURL: "ws://localhost:8080",
		},
		Monitor: MonitorConfig{PollInterval: "10s"},
		Scan:    ScanConfig{CooldownWindow: "60s"},
		Booking: BookingConfig{AttemptPace: "500ms"},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads the TOML file (when present), then applies environment
// overrides, then validates.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Provider.BaseURL = getenv("SWELLWATCH_BASE_URL", cfg.Provider.BaseURL)
	cfg.Provider.WebsocketURL = getenv("SWELLWATCH_WS_URL", cfg.Provider.WebsocketURL)
	cfg.Provider.APIKey = getenv("SWELLWATCH_API_KEY", cfg.Provider.APIKey)
	cfg.Provider.AuthToken = getenv("SWELLWATCH_AUTH_TOKEN", cfg.Provider.AuthToken)
	cfg.Monitor.PollInterval = getenv("SWELLWATCH_POLL_INTERVAL", cfg.Monitor.PollInterval)
	cfg.Scan.CooldownWindow = getenv("SWELLWATCH_COOLDOWN_WINDOW", cfg.Scan.CooldownWindow)
	cfg.Booking.AttemptPace = getenv("SWELLWATCH_ATTEMPT_PACE", cfg.Booking.AttemptPace)
	cfg.Logging.Level = getenv("SWELLWATCH_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getenv("SWELLWATCH_LOG_FORMAT", cfg.Logging.Format)
}

func (c Config) validate() error {
	if c.Provider.APIKey == "" || c.Provider.AuthToken == "" {
		return fmt.Errorf("SWELLWATCH_API_KEY and SWELLWATCH_AUTH_TOKEN are required (or [provider] api_key/auth_token in %s)", DefaultFile)
	}
	if d, err := time.ParseDuration(c.Monitor.PollInterval); err != nil || d < time.Second {
		return fmt.Errorf("invalid monitor poll_interval %q (want a duration >= 1s)", c.Monitor.PollInterval)
	}
	if d, err := time.ParseDuration(c.Scan.CooldownWindow); err != nil || d <= 0 {
		return fmt.Errorf("invalid scan cooldown_window %q", c.Scan.CooldownWindow)
	}
	if c.Booking.AttemptPace != "0" {
		if _, err := time.ParseDuration(c.Booking.AttemptPace); err != nil {
			return fmt.Errorf("invalid booking attempt_pace %q", c.Booking.AttemptPace)
		}
	}
	return nil
}

// PollInterval is valid after Load.
func (c Config) PollInterval() time.Duration {
	d, _ := time.ParseDuration(c.Monitor.PollInterval)
	return d
}

func (c Config) CooldownWindow() time.Duration {
	d, _ := time.ParseDuration(c.Scan.CooldownWindow)
	return d
}

func (c Config) AttemptPace() time.Duration {
	if c.Booking.AttemptPace == "0" {
		return 0
	}
	d, _ := time.ParseDuration(c.Booking.AttemptPace)
	return d
}

func getenv(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
