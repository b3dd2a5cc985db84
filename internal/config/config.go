package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Logs    LogsConfig
	Query   QueryConfig
	Display DisplayConfig
	Sim     SimConfig
}

type LogsConfig struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type QueryConfig struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type DisplayConfig struct {
	RefreshRateMS int    `toml:"refresh_rate_ms"`
	QueryRowCap   int    `toml:"query_row_cap"`
	TopUsers      int    `toml:"top_users"`
	Timezone      string `toml:"timezone"`
}

type SimConfig struct {
	Listen         string `toml:"listen"`
	Users          int    `toml:"users"`
	DevicesPerUser int    `toml:"devices_per_user"`
	DurationHours  int    `toml:"duration_hours"`
	Seed           int64  `toml:"seed"`
}

type LoadResult struct {
	Config   Config
	Warnings []string
}

var knownTopLevel = map[string]bool{
	"logs":    true,
	"query":   true,
	"display": true,
	"sim":     true,
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "hometop", "config.toml")
}

// DefaultPath returns the config file read when -config is not given.
func DefaultPath() string {
	return defaultConfigPath()
}

func Load() (*LoadResult, error) {
	return LoadFrom(defaultConfigPath())
}

func LoadFrom(path string) (*LoadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &LoadResult{Config: DefaultConfig()}, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return load(string(data), "parsing config file")
}

func LoadFromString(data string) (*LoadResult, error) {
	if data == "" {
		return &LoadResult{Config: DefaultConfig()}, nil
	}
	return load(data, "parsing config")
}

func load(data, errPrefix string) (*LoadResult, error) {
	result := &LoadResult{Config: DefaultConfig()}

	var raw map[string]any
	if _, err := toml.Decode(data, &raw); err != nil {
		return nil, fmt.Errorf("%s: %w", errPrefix, err)
	}

	for key := range raw {
		if !knownTopLevel[key] {
			result.Warnings = append(result.Warnings, fmt.Sprintf("unknown config key: %q", key))
		}
	}

	var tf tomlFile
	if _, err := toml.Decode(data, &tf); err != nil {
		return nil, fmt.Errorf("%s: %w", errPrefix, err)
	}

	mergeFromRaw(&result.Config, &tf, raw)

	if err := validate(&result.Config); err != nil {
		return nil, err
	}

	return result, nil
}

type tomlFile struct {
	Logs    *LogsConfig    `toml:"logs"`
	Query   *QueryConfig   `toml:"query"`
	Display *DisplayConfig `toml:"display"`
	Sim     *SimConfig     `toml:"sim"`
}

func mergeFromRaw(cfg *Config, tf *tomlFile, raw map[string]any) {
	if tf.Logs != nil {
		if section, ok := rawSection(raw, "logs"); ok {
			if _, exists := section["base_url"]; exists {
				cfg.Logs.BaseURL = tf.Logs.BaseURL
			}
			if _, exists := section["timeout_seconds"]; exists {
				cfg.Logs.TimeoutSeconds = tf.Logs.TimeoutSeconds
			}
		}
	}
	if tf.Query != nil {
		if section, ok := rawSection(raw, "query"); ok {
			if _, exists := section["base_url"]; exists {
				cfg.Query.BaseURL = tf.Query.BaseURL
			}
			if _, exists := section["timeout_seconds"]; exists {
				cfg.Query.TimeoutSeconds = tf.Query.TimeoutSeconds
			}
		}
	}
	if tf.Display != nil {
		if section, ok := rawSection(raw, "display"); ok {
			if _, exists := section["refresh_rate_ms"]; exists {
				cfg.Display.RefreshRateMS = tf.Display.RefreshRateMS
			}
			if _, exists := section["query_row_cap"]; exists {
				cfg.Display.QueryRowCap = tf.Display.QueryRowCap
			}
			if _, exists := section["top_users"]; exists {
				cfg.Display.TopUsers = tf.Display.TopUsers
			}
			if _, exists := section["timezone"]; exists {
				cfg.Display.Timezone = tf.Display.Timezone
			}
		}
	}
	if tf.Sim != nil {
		if section, ok := rawSection(raw, "sim"); ok {
			if _, exists := section["listen"]; exists {
				cfg.Sim.Listen = tf.Sim.Listen
			}
			if _, exists := section["users"]; exists {
				cfg.Sim.Users = tf.Sim.Users
			}
			if _, exists := section["devices_per_user"]; exists {
				cfg.Sim.DevicesPerUser = tf.Sim.DevicesPerUser
			}
			if _, exists := section["duration_hours"]; exists {
				cfg.Sim.DurationHours = tf.Sim.DurationHours
			}
			if _, exists := section["seed"]; exists {
				cfg.Sim.Seed = tf.Sim.Seed
			}
		}
	}
}

func rawSection(raw map[string]any, key string) (map[string]any, bool) {
	v, ok := raw[key]
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}

// Location resolves the display timezone. "Local" and "" mean time.Local.
func (c *Config) Location() (*time.Location, error) {
	switch c.Display.Timezone {
	case "", "Local", "local":
		return time.Local, nil
	}
	return time.LoadLocation(c.Display.Timezone)
}

// LogsTimeout returns the logs request timeout.
func (c *Config) LogsTimeout() time.Duration {
	return time.Duration(c.Logs.TimeoutSeconds) * time.Second
}

// QueryTimeout returns the query request timeout.
func (c *Config) QueryTimeout() time.Duration {
	return time.Duration(c.Query.TimeoutSeconds) * time.Second
}

// ApplyOverrides replaces base URLs with non-empty flag values and
// re-validates.
func (c *Config) ApplyOverrides(logsURL, queryURL string) error {
	if logsURL != "" {
		c.Logs.BaseURL = logsURL
	}
	if queryURL != "" {
		c.Query.BaseURL = queryURL
	}
	return validate(c)
}

func validate(cfg *Config) error {
	var errs []string

	if err := checkBaseURL(cfg.Logs.BaseURL); err != nil {
		errs = append(errs, fmt.Sprintf("logs base_url %v", err))
	}
	if cfg.Logs.TimeoutSeconds < 1 {
		errs = append(errs, fmt.Sprintf("logs timeout_seconds must be positive, got %d", cfg.Logs.TimeoutSeconds))
	}
	if err := checkBaseURL(cfg.Query.BaseURL); err != nil {
		errs = append(errs, fmt.Sprintf("query base_url %v", err))
	}
	if cfg.Query.TimeoutSeconds < 1 {
		errs = append(errs, fmt.Sprintf("query timeout_seconds must be positive, got %d", cfg.Query.TimeoutSeconds))
	}

	if cfg.Display.RefreshRateMS < 1 {
		errs = append(errs, fmt.Sprintf("refresh_rate_ms must be positive, got %d", cfg.Display.RefreshRateMS))
	}
	if cfg.Display.QueryRowCap < 1 {
		errs = append(errs, fmt.Sprintf("query_row_cap must be positive, got %d", cfg.Display.QueryRowCap))
	}
	if cfg.Display.TopUsers < 1 {
		errs = append(errs, fmt.Sprintf("top_users must be positive, got %d", cfg.Display.TopUsers))
	}
	if _, err := cfg.Location(); err != nil {
		errs = append(errs, fmt.Sprintf("unknown timezone %q", cfg.Display.Timezone))
	}

	if cfg.Sim.Listen == "" {
		errs = append(errs, "sim listen must not be empty")
	}
	if cfg.Sim.Users < 1 {
		errs = append(errs, fmt.Sprintf("sim users must be positive, got %d", cfg.Sim.Users))
	}
	if cfg.Sim.DevicesPerUser < 1 {
		errs = append(errs, fmt.Sprintf("sim devices_per_user must be positive, got %d", cfg.Sim.DevicesPerUser))
	}
	if cfg.Sim.DurationHours < 1 {
		errs = append(errs, fmt.Sprintf("sim duration_hours must be positive, got %d", cfg.Sim.DurationHours))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation error: %s", strings.Join(errs, "; "))
	}
	return nil
}

func checkBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("is invalid: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must be an http(s) URL, got %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("must include a host, got %q", raw)
	}
	return nil
}
