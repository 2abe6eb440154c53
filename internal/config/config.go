package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"evcal/internal/holiday"
)

// Environment variables that override the file.
const (
	EnvListen      = "EVCAL_LISTEN"
	EnvTimezone    = "EVCAL_TIMEZONE"
	EnvLogLevel    = "EVCAL_LOG_LEVEL"
	EnvDatabaseURL = "EVCAL_DATABASE_URL"
)

const (
	defaultListen     = "127.0.0.1:8080"
	defaultTimezone   = "Local"
	defaultWeekStart  = "sunday"
	defaultRefresh    = "*/15 * * * *"
	defaultLogLevel   = "INFO"
	defaultCacheDir   = "./var/cache"
	defaultHolidayAPI = "https://date.nager.at/api/v3"
	defaultMigrations = "./migrations"
)

// ICSConfig describes a single ICS subscription source.
type ICSConfig struct {
	// ID is an internal identifier; it prefixes the ids of the feed's events.
	ID  string `yaml:"id" json:"id"`
	URL string `yaml:"url" json:"url"`
}

// HolidayAPIConfig points at a Nager.Date compatible public holiday API.
// An empty Country disables it.
type HolidayAPIConfig struct {
	URL        string `yaml:"url" json:"url"`
	Country    string `yaml:"country" json:"country"`
	YearsAhead int    `yaml:"years_ahead" json:"years_ahead"`
}

type DatabaseConfig struct {
	// URL is a lib/pq connection string; empty disables the database source.
	URL        string `yaml:"url" json:"url"`
	Migrations string `yaml:"migrations" json:"migrations"`
}

type CaptureConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Output  string `yaml:"output" json:"output"`
	Width   int    `yaml:"width" json:"width"`
	Height  int    `yaml:"height" json:"height"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API. The
// password is stored as an Argon2id hash (see `evcal hash-password`).
type BasicAuthConfig struct {
	Username     string `yaml:"username" json:"username"`
	PasswordHash string `yaml:"password_hash" json:"-"`
}

// Config is the top-level application configuration.
type Config struct {
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone used for "today" and for placing timed ICS
	// events on a day. "Local" uses the host zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is "sunday" (default) or "monday".
	WeekStart string `yaml:"week_start" json:"week_start"`

	// RefreshCron is the cron schedule for reloading every data source.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	LogLevel string `yaml:"log_level" json:"log_level"`
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// SeedFile is a YAML file of events and holidays loaded as the "seed"
	// source. Empty disables it.
	SeedFile string `yaml:"seed_file" json:"seed_file"`

	ICS          []ICSConfig      `yaml:"ics" json:"ics"`
	HolidayAPI   HolidayAPIConfig `yaml:"holiday_api" json:"holiday_api"`
	HolidayRules []holiday.Rule   `yaml:"holiday_rules" json:"holiday_rules"`
	Database     DatabaseConfig   `yaml:"database" json:"database"`
	Capture      CaptureConfig    `yaml:"capture" json:"capture"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health and /metrics.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

// Normalize fills in missing values so partially filled files still work.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	switch strings.ToLower(c.WeekStart) {
	case "monday":
		c.WeekStart = "monday"
	default:
		c.WeekStart = defaultWeekStart
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefresh
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	c.LogLevel = strings.ToUpper(c.LogLevel)
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	if c.HolidayRules == nil {
		c.HolidayRules = []holiday.Rule{}
	}
	if c.HolidayAPI.URL == "" {
		c.HolidayAPI.URL = defaultHolidayAPI
	}
	if c.HolidayAPI.YearsAhead < 0 {
		c.HolidayAPI.YearsAhead = 0
	}
	if c.Database.Migrations == "" {
		c.Database.Migrations = defaultMigrations
	}
	if c.Capture.Output == "" {
		c.Capture.Output = "./var/preview.png"
	}
	if c.Capture.Width <= 0 {
		c.Capture.Width = 800
	}
	if c.Capture.Height <= 0 {
		c.Capture.Height = 480
	}
	if c.BasicAuth != nil && c.BasicAuth.PasswordHash == "" {
		c.BasicAuth = nil
	}
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c *Config) FirstWeekday() time.Weekday {
	if c.WeekStart == "monday" {
		return time.Monday
	}
	return time.Sunday
}

// LoadEnv loads envFile (if it exists) into the process environment without
// overriding variables that are already set, then applies the EVCAL_*
// overrides to c.
func (c *Config) LoadEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("env file %s: %w", envFile, err)
		}
	}
	if v := os.Getenv(EnvListen); v != "" {
		c.Listen = v
	}
	if v := os.Getenv(EnvTimezone); v != "" {
		c.Timezone = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = strings.ToUpper(v)
	}
	if v := os.Getenv(EnvDatabaseURL); v != "" {
		c.Database.URL = v
	}
	return nil
}

// Validate reports settings that cannot be normalized away.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	seen := make(map[string]bool, len(c.ICS))
	for i, src := range c.ICS {
		if src.ID == "" || src.URL == "" {
			errs = append(errs, fmt.Errorf("ics[%d]: id and url are required", i))
			continue
		}
		if seen[src.ID] {
			errs = append(errs, fmt.Errorf("ics[%d]: duplicate id %q", i, src.ID))
		}
		seen[src.ID] = true
	}
	for _, r := range c.HolidayRules {
		if err := r.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Load loads configuration from the given YAML path. A missing file is
// created with the defaults (0600) on first run.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes cfg atomically (temp file + rename) with 0600 permissions.
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
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".evcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}
