package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bnema/xtraybridge/internal/trayicon"
)

// Config holds all settings of the bridge.
type Config struct {
	// Screens lists the X screens whose tray selection is acquired.
	Screens []int `json:"screens"`
	// Background fills icons whose visual has no alpha channel.
	Background trayicon.Color `json:"background"`
	// ThemeFile is the palette file pushed to recolorable icons.
	ThemeFile string `json:"theme_file"`
	// IconSize is the side of the square hosts icons are forced into.
	IconSize uint16 `json:"icon_size"`
	// PollInterval is how often embedded icons are captured.
	PollInterval Duration `json:"poll_interval"`
	// MetricsAddr serves Prometheus metrics when non-empty.
	MetricsAddr string `json:"metrics_addr"`
	// ExportSNI re-exports every icon as a StatusNotifierItem.
	ExportSNI bool `json:"export_sni"`
	Debug     bool `json:"debug"`
}

// Duration is a time.Duration written as a string such as "300ms".
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Screens:      []int{0},
		Background:   trayicon.DefaultBackground,
		ThemeFile:    defaultThemeFile(),
		IconSize:     32,
		PollInterval: Duration(300 * time.Millisecond),
		ExportSNI:    true,
	}
}

// Load reads configuration from a JSON file and merges it with defaults.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if len(c.Screens) == 0 {
		return errors.New("config: at least one screen is required")
	}
	seen := make(map[int]bool, len(c.Screens))
	for _, s := range c.Screens {
		if s < 0 {
			return fmt.Errorf("config: invalid screen %d", s)
		}
		if seen[s] {
			return fmt.Errorf("config: screen %d listed twice", s)
		}
		seen[s] = true
	}
	if c.IconSize == 0 {
		return errors.New("config: icon_size must be positive")
	}
	if c.PollInterval <= 0 {
		return errors.New("config: poll_interval must be positive")
	}
	return nil
}

// DefaultPath is $XDG_CONFIG_HOME/xtraybridge/config.json.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "xtraybridge", "config.json")
}

func defaultThemeFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "xtraybridge", "theme.json")
}
