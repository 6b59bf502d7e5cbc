package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/accel-crunch/internal/filter"
)

const (
	defaultResolution = 100 * time.Millisecond
	defaultCutoff     = 0.01
	defaultDataDir    = "data"

	defaultChartFormat = "pdf"
)

// Config represents the main application configuration
type Config struct {
	Settings  Settings        `yaml:"settings"`
	Inputs    []string        `yaml:"inputs"`
	Decode    DecodeConfig    `yaml:"decode"`
	Aggregate AggregateConfig `yaml:"aggregate"`
	Storage   StorageConfig   `yaml:"storage"`
	Charts    ChartsConfig    `yaml:"charts"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// DecodeConfig controls the conversion of binary logs to sample files
type DecodeConfig struct {
	StandardGravity bool   `yaml:"standardGravity"`
	Limit           int    `yaml:"limit"`
	Linux           bool   `yaml:"linux"`
	NoHeader        bool   `yaml:"noHeader"`
	OutputDirectory string `yaml:"outputDirectory"`
}

// AggregateConfig controls bucketing, filtering and idle detection
type AggregateConfig struct {
	Resolution    Duration `yaml:"resolution"`    // Width of the averaged, filtered series
	Cutoff        float64  `yaml:"cutoff"`        // High-pass cutoff in Hz, 0 disables the filter
	Window        Duration `yaml:"window"`        // Shortest idle period reported
	IdleThreshold float64  `yaml:"idleThreshold"` // Filtered total below which the wearer is idle
	SplitByDay    bool     `yaml:"splitByDay"`
	SweepLimit    float64  `yaml:"sweepLimit"`    // Proportional change kept by the sweep, 0 disables it
	MedianWindow  int      `yaml:"medianWindow"`  // Running median length in samples, 0 disables it
	WearThreshold float64  `yaml:"wearThreshold"` // Per-second peak counted as movement, 0 disables wear detection
	WearWindow    Duration `yaml:"wearWindow"`    // Span centred on a movement that is marked as worn
}

// StorageConfig represents storage settings
type StorageConfig struct {
	DataDirectory string `yaml:"dataDirectory"`
	Disabled      bool   `yaml:"disabled"`
}

// ChartsConfig controls the per-statistic charts drawn for the minute series
type ChartsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Format   string `yaml:"format"`   // pdf, png or svg
	ShowTime bool   `yaml:"showTime"` // Time of day on the X axis instead of the minute number
	Grid     bool   `yaml:"grid"`
}

var validChartFormats = map[string]bool{"pdf": true, "png": true, "svg": true}

// NewConfig returns a configuration holding the defaults
func NewConfig() *Config {
	return &Config{
		Settings: Settings{LogLevel: slog.LevelInfo.String()},
		Aggregate: AggregateConfig{
			Resolution:    Duration(defaultResolution),
			Cutoff:        defaultCutoff,
			Window:        Duration(filter.DefaultIdleDuration),
			IdleThreshold: filter.DefaultIdleThreshold,
			SplitByDay:    true,
			WearThreshold: filter.DefaultWearThreshold,
			WearWindow:    Duration(filter.DefaultWearWindow),
		},
		Storage: StorageConfig{DataDirectory: defaultDataDir},
		Charts:  ChartsConfig{Format: defaultChartFormat},
	}
}

// LoadConfig reads the YAML file at path over the defaults
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration file: %w", err)
	}

	config := NewConfig()
	if err = yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing configuration file: %w", err)
	}
	return config, nil
}

// Level returns the configured log level
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Settings.LogLevel)); err != nil {
		return 0, fmt.Errorf("settings.logLevel: %w", err)
	}
	return level, nil
}

func (c *Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return err
	}
	if len(c.Inputs) == 0 {
		return errors.New("no input files")
	}
	if c.Decode.Limit < 0 {
		return fmt.Errorf("decode.limit: must not be negative: %d", c.Decode.Limit)
	}
	if err := c.Aggregate.Validate(); err != nil {
		return fmt.Errorf("aggregate: %w", err)
	}
	if c.Charts.Enabled && !validChartFormats[c.Charts.Format] {
		return fmt.Errorf("charts.format: unsupported format %q", c.Charts.Format)
	}
	return nil
}

func (c *AggregateConfig) Validate() error {
	resolution := time.Duration(c.Resolution)
	if resolution < time.Millisecond || resolution%time.Millisecond != 0 {
		return fmt.Errorf("resolution: must be a whole number of milliseconds: %s", resolution)
	}
	if c.Cutoff < 0 {
		return fmt.Errorf("cutoff: must not be negative: %g", c.Cutoff)
	}
	if nyquist := 0.5 / resolution.Seconds(); c.Cutoff >= nyquist {
		return fmt.Errorf("cutoff: must be below %g Hz at resolution %s: %g", nyquist, resolution, c.Cutoff)
	}
	if err := c.Window.Validate(); err != nil {
		return fmt.Errorf("window: %w", err)
	}
	if c.IdleThreshold <= 0 {
		return fmt.Errorf("idleThreshold: must be positive: %g", c.IdleThreshold)
	}
	if c.SweepLimit < 0 {
		return fmt.Errorf("sweepLimit: must not be negative: %g", c.SweepLimit)
	}
	if c.MedianWindow != 0 && (c.MedianWindow < 0 || c.MedianWindow%2 == 0) {
		return fmt.Errorf("medianWindow: must be odd and positive: %d", c.MedianWindow)
	}
	if c.WearThreshold < 0 {
		return fmt.Errorf("wearThreshold: must not be negative: %g", c.WearThreshold)
	}
	if c.WearThreshold > 0 {
		if err := c.WearWindow.Validate(); err != nil {
			return fmt.Errorf("wearWindow: %w", err)
		}
	}
	return nil
}

// Duration is a time.Duration read from strings such as "100ms" or "20m"
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	duration, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("app.Duration: failed to parse: %s", err)
	}

	*d = Duration(duration)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d *Duration) Validate() error {
	if duration := time.Duration(*d); duration <= 0 {
		return fmt.Errorf("app.Duration: must be positive: %s", duration)
	}
	return nil
}

func (d Duration) String() string {
	return time.Duration(d).String()
}
