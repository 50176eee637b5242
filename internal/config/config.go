// Package config loads the calbridge configuration file and applies
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Store names
const (
	StoreCalDAV = "caldav"
	StoreMemory = "memory"
)

const (
	defaultAuthorizationTimeout = 2 * time.Minute
	defaultDaysBack             = 30
	defaultDaysForward          = 90
)

// CalDAVConfig selects the CalDAV account
type CalDAVConfig struct {
	Endpoint        string `yaml:"endpoint"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password,omitempty"`
	DefaultCalendar string `yaml:"default_calendar,omitempty"`
}

type ConsentConfig struct {
	// Database is the sqlite file that records access decisions
	Database string `yaml:"database"`
}

type AuthorizationConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// SearchConfig is the default keyword search window, in days around now
type SearchConfig struct {
	DaysBack    int `yaml:"days_back"`
	DaysForward int `yaml:"days_forward"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the top-level configuration
type Config struct {
	Store         string              `yaml:"store"`
	CalDAV        CalDAVConfig        `yaml:"caldav"`
	Consent       ConsentConfig       `yaml:"consent"`
	Authorization AuthorizationConfig `yaml:"authorization"`
	Search        SearchConfig        `yaml:"search"`
	Log           LogConfig           `yaml:"log"`

	// Timezone is the IANA zone used to read and print local times. Empty
	// means the system zone.
	Timezone string `yaml:"timezone,omitempty"`
}

// DefaultConfig returns the configuration used when no file exists
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Normalize()
	return cfg
}

// Normalize fills zero values with defaults
func (c *Config) Normalize() {
	if c.Store == "" {
		c.Store = StoreCalDAV
	}
	if c.CalDAV.Endpoint == "" {
		c.CalDAV.Endpoint = "https://caldav.icloud.com"
	}
	if c.Consent.Database == "" {
		c.Consent.Database = filepath.Join(DataDir(), "consent.db")
	}
	if c.Authorization.Timeout <= 0 {
		c.Authorization.Timeout = defaultAuthorizationTimeout
	}
	if c.Search.DaysBack < 0 {
		c.Search.DaysBack = 0
	}
	if c.Search.DaysBack == 0 && c.Search.DaysForward == 0 {
		c.Search.DaysBack = defaultDaysBack
		c.Search.DaysForward = defaultDaysForward
	}
	if c.Search.DaysForward < 0 {
		c.Search.DaysForward = 0
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "auto"
	}
}

// Validate rejects configurations no store can be opened with
func (c *Config) Validate() error {
	switch c.Store {
	case StoreCalDAV:
		if c.CalDAV.Username == "" {
			return errors.New("caldav.username is required for the caldav store")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown store %q (expected %q or %q)", c.Store, StoreCalDAV, StoreMemory)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location returns the configured zone
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Environment variables that override the file
const (
	EnvConfig          = "CALBRIDGE_CONFIG"
	EnvStore           = "CALBRIDGE_STORE"
	EnvCalDAVEndpoint  = "CALBRIDGE_CALDAV_ENDPOINT"
	EnvCalDAVUsername  = "CALBRIDGE_CALDAV_USERNAME"
	EnvCalDAVPassword  = "CALBRIDGE_CALDAV_PASSWORD"
	EnvDefaultCalendar = "CALBRIDGE_DEFAULT_CALENDAR"
	EnvAuthTimeout     = "CALBRIDGE_AUTH_TIMEOUT"
	EnvTimezone        = "CALBRIDGE_TIMEZONE"
	EnvConsentDatabase = "CALBRIDGE_CONSENT_DB"
	EnvSearchDaysBack  = "CALBRIDGE_SEARCH_DAYS_BACK"
	EnvSearchDaysFwd   = "CALBRIDGE_SEARCH_DAYS_FORWARD"
)

// ApplyEnv overrides fields from the environment. lookup is os.LookupEnv in
// production.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := []struct {
		env string
		dst *string
	}{
		{EnvStore, &c.Store},
		{EnvCalDAVEndpoint, &c.CalDAV.Endpoint},
		{EnvCalDAVUsername, &c.CalDAV.Username},
		{EnvCalDAVPassword, &c.CalDAV.Password},
		{EnvDefaultCalendar, &c.CalDAV.DefaultCalendar},
		{EnvTimezone, &c.Timezone},
		{EnvConsentDatabase, &c.Consent.Database},
	}
	for _, s := range strs {
		if v, ok := lookup(s.env); ok && v != "" {
			*s.dst = v
		}
	}

	if v, ok := lookup(EnvAuthTimeout); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvAuthTimeout, err)
		}
		c.Authorization.Timeout = d
	}

	ints := []struct {
		env string
		dst *int
	}{
		{EnvSearchDaysBack, &c.Search.DaysBack},
		{EnvSearchDaysFwd, &c.Search.DaysForward},
	}
	for _, i := range ints {
		v, ok := lookup(i.env)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", i.env, err)
		}
		*i.dst = n
	}
	return nil
}

// ConfigDir is $XDG_CONFIG_HOME/calbridge, falling back to ~/.config/calbridge
func ConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "calbridge")
	}
	return filepath.Join(".", ".calbridge")
}

// DataDir is $XDG_DATA_HOME/calbridge, falling back to ~/.local/share/calbridge
func DataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "calbridge")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "calbridge")
	}
	return filepath.Join(".", ".calbridge")
}

// DefaultPath is the config file used without --config
func DefaultPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// Load reads the YAML file at path. A missing file yields the defaults and is
// not created; Save writes it.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes cfg to path atomically with 0600 permissions, since the file
// may hold a CalDAV password.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}
	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".calbridge-config-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("failed to set config permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace config: %w", err)
	}
	return nil
}
