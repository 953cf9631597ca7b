package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ICSConfig describes a single ICS subscription source.
type ICSConfig struct {
	// ID is an internal identifier used for event ids and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// Color is the palette name given to every event of the feed.
	Color string `yaml:"color" json:"color"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// RedisConfig points at the store for locally created events and todos.
type RedisConfig struct {
	// URL is a redis:// URL. Empty keeps everything in memory.
	URL string `yaml:"url" json:"url"`
}

// GridConfig tunes the virtualized week grid.
type GridConfig struct {
	WeeksPerView       int     `yaml:"weeks_per_view" json:"weeks_per_view"`
	InitialBufferWeeks int     `yaml:"initial_buffer_weeks" json:"initial_buffer_weeks"`
	RenderBufferWeeks  int     `yaml:"render_buffer_weeks" json:"render_buffer_weeks"`
	GrowthChunkWeeks   int     `yaml:"growth_chunk_weeks" json:"growth_chunk_weeks"`
	EdgeRows           float64 `yaml:"edge_rows" json:"edge_rows"`
	NeighborMonths     int     `yaml:"neighbor_months" json:"neighbor_months"`
	DirectionalMonths  int     `yaml:"directional_months" json:"directional_months"`
	IdleMonths         int     `yaml:"idle_months" json:"idle_months"`
	MaxInlineEvents    int     `yaml:"max_inline_events" json:"max_inline_events"`
}

// GestureConfig tunes range selection.
type GestureConfig struct {
	DragDelayMS     int     `yaml:"drag_delay_ms" json:"drag_delay_ms"`
	DragThresholdPX float64 `yaml:"drag_threshold_px" json:"drag_threshold_px"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone all calendar dates are computed in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is the weekday name the grid starts its weeks on.
	WeekStart string `yaml:"week_start" json:"week_start"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// for re-reading the ICS subscriptions.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	ICS     []ICSConfig   `yaml:"ics" json:"ics"`
	Redis   RedisConfig   `yaml:"redis" json:"redis"`
	Grid    GridConfig    `yaml:"grid" json:"grid"`
	Gesture GestureConfig `yaml:"gesture" json:"gesture"`

	// CacheDir keeps the last good body of every ICS feed.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// PreviewPath is where the snapshot command writes its PNG.
	PreviewPath string `yaml:"preview_path" json:"preview_path"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{ICS: []ICSConfig{}}
	c.Normalize()
	return c
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if _, ok := parseWeekday(c.WeekStart); !ok {
		c.WeekStart = "sunday"
	}
	c.WeekStart = strings.ToLower(c.WeekStart)
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "*/15 * * * *"
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	for i := range c.ICS {
		if c.ICS[i].Color == "" {
			c.ICS[i].Color = "blue"
		}
	}

	g := &c.Grid
	defaultInt(&g.WeeksPerView, 6)
	defaultInt(&g.InitialBufferWeeks, 1040)
	defaultInt(&g.RenderBufferWeeks, 10)
	defaultInt(&g.GrowthChunkWeeks, 52)
	if g.EdgeRows <= 0 {
		g.EdgeRows = 3
	}
	defaultInt(&g.NeighborMonths, 3)
	defaultInt(&g.DirectionalMonths, 24)
	defaultInt(&g.IdleMonths, 12)
	defaultInt(&g.MaxInlineEvents, 3)

	defaultInt(&c.Gesture.DragDelayMS, 120)
	if c.Gesture.DragThresholdPX <= 0 {
		c.Gesture.DragThresholdPX = 6
	}

	if c.CacheDir == "" {
		c.CacheDir = "./var/ics-cache"
	}
	if c.PreviewPath == "" {
		c.PreviewPath = "./var/preview.png"
	}
}

func defaultInt(v *int, def int) {
	if *v <= 0 {
		*v = def
	}
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// WeekStartDay resolves WeekStart; unknown names mean Sunday.
func (c *Config) WeekStartDay() time.Weekday {
	d, _ := parseWeekday(c.WeekStart)
	return d
}

// DragDelay is the press-and-hold time before a selection commits.
func (c *Config) DragDelay() time.Duration {
	return time.Duration(c.Gesture.DragDelayMS) * time.Millisecond
}

func parseWeekday(s string) (time.Weekday, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || (len(s) >= 3 && strings.HasPrefix(name, s)) {
			return d, true
		}
	}
	return time.Sunday, false
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
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
	if _, err := cfg.Location(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes cfg to path atomically via a temp file + rename, with 0600
// permissions on the result.
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

	tmp, err := os.CreateTemp(dir, ".chronogrid-config-*.tmp")
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

// Save is a convenience method delegating to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
