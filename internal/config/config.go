// ABOUTME: YAML configuration for the bridge
// ABOUTME: Defaults, file loading, environment overrides and per-section validation
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"
	pspi "periph.io/x/conn/v3/spi"

	"github.com/spimeter/spimeter/internal/capture"
	"github.com/spimeter/spimeter/internal/source"
	"github.com/spimeter/spimeter/pkg/spi"
)

// Config represents the complete bridge configuration
type Config struct {
	Source  SourceConfig  `yaml:"source"`
	SPI     SPIConfig     `yaml:"spi"`
	Display DisplayConfig `yaml:"display"`
	HTTP    HTTPConfig    `yaml:"http"`
	Logging LoggingConfig `yaml:"log"`
}

// SourceConfig selects where audio comes from
type SourceConfig struct {
	Kind     string `yaml:"kind"`    // capture, file, raw or tone
	Path     string `yaml:"path"`    // file or raw input, "-" is stdin
	Backend  string `yaml:"backend"` // capture backend
	Device   string `yaml:"device"`  // capture device name filter
	Loop     bool   `yaml:"loop"`
	Rate     int    `yaml:"rate"`     // raw and tone only
	Channels int    `yaml:"channels"` // raw and tone only
	PeriodMs int    `yaml:"period_ms"`
}

// SPIConfig selects the byte sink
type SPIConfig struct {
	Device      string `yaml:"device"` // spi, file:<path> or none
	Bus         int    `yaml:"bus"`
	ChipSelect  int    `yaml:"chip_select"`
	SpeedHz     int64  `yaml:"speed_hz"`
	Mode        int    `yaml:"mode"`
	BitsPerWord int    `yaml:"bits_per_word"`
	Granularity string `yaml:"granularity"` // sample or buffer
}

// DisplayConfig selects the meter renderer
type DisplayConfig struct {
	Mode string `yaml:"mode"` // ansi, tui or none
}

// HTTPConfig configures the monitoring listener
type HTTPConfig struct {
	Listen string `yaml:"listen"` // empty disables the listener
	MDNS   bool   `yaml:"mdns"`
	Name   string `yaml:"name"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			Kind:     "capture",
			Rate:     48000,
			Channels: 2,
			PeriodMs: 20,
		},
		SPI: SPIConfig{
			Device:      "spi",
			Bus:         0,
			ChipSelect:  0,
			SpeedHz:     1_000_000,
			Mode:        0,
			BitsPerWord: 8,
			Granularity: string(spi.PerSample),
		},
		Display: DisplayConfig{
			Mode: "ansi",
		},
		HTTP: HTTPConfig{
			Name: hostname(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "spimeter.log",
		},
	}
}

// Load reads the configuration file over the defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs validation of every section
func (c *Config) Validate() error {
	if err := c.Source.Validate(); err != nil {
		return fmt.Errorf("source config: %w", err)
	}

	if err := c.SPI.Validate(); err != nil {
		return fmt.Errorf("spi config: %w", err)
	}

	if err := c.Display.Validate(); err != nil {
		return fmt.Errorf("display config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("log config: %w", err)
	}

	return nil
}

// Validate validates source configuration
func (s *SourceConfig) Validate() error {
	switch s.Kind {
	case "capture":
		if _, err := capture.ParseBackend(s.Backend); err != nil {
			return err
		}
	case string(source.KindFile):
		if s.Path == "" {
			return fmt.Errorf("path is required for file sources")
		}
	case string(source.KindRaw), string(source.KindTone):
		if s.Kind == string(source.KindRaw) && s.Path == "" {
			return fmt.Errorf("path is required for raw sources (use - for stdin)")
		}
		if s.Rate < 1 {
			return fmt.Errorf("rate must be positive, got %d", s.Rate)
		}
		if s.Channels < 1 {
			return fmt.Errorf("channels must be at least 1, got %d", s.Channels)
		}
	default:
		return fmt.Errorf("kind must be capture, file, raw or tone, got %q", s.Kind)
	}

	if s.Kind == string(source.KindRaw) && s.Path == "-" && s.Loop {
		return fmt.Errorf("loop is not supported for stdin")
	}

	if s.PeriodMs < 0 || s.PeriodMs > 1000 {
		return fmt.Errorf("period_ms must be between 0 and 1000, got %d", s.PeriodMs)
	}

	return nil
}

// Validate validates SPI configuration
func (s *SPIConfig) Validate() error {
	switch {
	case s.Device == "spi", s.Device == "none":
	case strings.HasPrefix(s.Device, "file:"):
		if strings.TrimPrefix(s.Device, "file:") == "" {
			return fmt.Errorf("file device needs a path, e.g. file:/tmp/spi.bin")
		}
	default:
		return fmt.Errorf("device must be spi, none or file:<path>, got %q", s.Device)
	}

	if s.Bus < 0 || s.ChipSelect < 0 {
		return fmt.Errorf("bus and chip_select must not be negative")
	}

	if s.SpeedHz < 1 {
		return fmt.Errorf("speed_hz must be positive, got %d", s.SpeedHz)
	}

	if s.Mode < 0 || s.Mode > 3 {
		return fmt.Errorf("mode must be between 0 and 3, got %d", s.Mode)
	}

	if s.BitsPerWord < 1 || s.BitsPerWord > 32 {
		return fmt.Errorf("bits_per_word must be between 1 and 32, got %d", s.BitsPerWord)
	}

	switch spi.Granularity(s.Granularity) {
	case spi.PerSample, spi.PerBuffer:
	default:
		return fmt.Errorf("granularity must be sample or buffer, got %q", s.Granularity)
	}

	return nil
}

// DeviceConfig converts the section to the bus configuration
func (s *SPIConfig) DeviceConfig() spi.Config {
	return spi.Config{
		Bus:         s.Bus,
		ChipSelect:  s.ChipSelect,
		Speed:       physic.Frequency(s.SpeedHz) * physic.Hertz,
		Mode:        pspi.Mode(s.Mode),
		BitsPerWord: s.BitsPerWord,
	}
}

// Validate validates display configuration
func (d *DisplayConfig) Validate() error {
	switch d.Mode {
	case "ansi", "tui", "none":
		return nil
	default:
		return fmt.Errorf("mode must be ansi, tui or none, got %q", d.Mode)
	}
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.MDNS && h.Listen == "" {
		return fmt.Errorf("mdns needs an http listen address")
	}
	if h.MDNS && h.Name == "" {
		return fmt.Errorf("name cannot be empty when mdns is enabled")
	}
	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("level must be debug, info, warn or error, got %q", l.Level)
	}

	switch l.Format {
	case "text", "json":
	default:
		return fmt.Errorf("format must be text or json, got %q", l.Format)
	}

	if l.Output == "" {
		return fmt.Errorf("output cannot be empty")
	}

	return nil
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "spimeter"
	}
	return "spimeter on " + name
}
