package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Clockify      ClockifyConfig `toml:"clockify"`
	Refresh       RefreshConfig  `toml:"refresh"`
	Notifications NotifyConfig   `toml:"notifications"`
}

type ClockifyConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

type RefreshConfig struct {
	MenuIntervalSeconds  int `toml:"menu_interval_seconds"`
	TitleIntervalSeconds int `toml:"title_interval_seconds"`
}

type NotifyConfig struct {
	Enabled bool `toml:"enabled"`
}

func DefaultConfig() Config {
	return Config{
		Refresh: RefreshConfig{
			MenuIntervalSeconds:  5,
			TitleIntervalSeconds: 1,
		},
		Notifications: NotifyConfig{
			Enabled: true,
		},
	}
}

func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".config", "clockadoodledoo"), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			applyEnvOverrides(&cfg)
			return &cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CLOCKIFY_API_KEY"); v != "" {
		cfg.Clockify.APIKey = v
	}
	if v := os.Getenv("CLOCKIFY_BASE_URL"); v != "" {
		cfg.Clockify.BaseURL = v
	}
	if v := os.Getenv("CLOCKADOODLEDOO_MENU_INTERVAL"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.Refresh.MenuIntervalSeconds = secs
		}
	}
}

func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}
