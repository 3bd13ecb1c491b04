// ABOUTME: Environment overrides for the configuration
// ABOUTME: Loads an optional .env file and applies SPIMETER_* variables
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "SPIMETER_"

// LoadEnvFile loads variables from an env file without overriding the process
// environment. A missing file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from SPIMETER_* variables, e.g. SPIMETER_SPI_DEVICE=none
func (c *Config) ApplyEnv() error {
	strs := map[string]*string{
		"SOURCE_KIND":     &c.Source.Kind,
		"SOURCE_PATH":     &c.Source.Path,
		"SOURCE_BACKEND":  &c.Source.Backend,
		"SOURCE_DEVICE":   &c.Source.Device,
		"SPI_DEVICE":      &c.SPI.Device,
		"SPI_GRANULARITY": &c.SPI.Granularity,
		"DISPLAY_MODE":    &c.Display.Mode,
		"HTTP_LISTEN":     &c.HTTP.Listen,
		"HTTP_NAME":       &c.HTTP.Name,
		"LOG_LEVEL":       &c.Logging.Level,
		"LOG_FORMAT":      &c.Logging.Format,
		"LOG_OUTPUT":      &c.Logging.Output,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"SOURCE_RATE":      &c.Source.Rate,
		"SOURCE_CHANNELS":  &c.Source.Channels,
		"SOURCE_PERIOD_MS": &c.Source.PeriodMs,
		"SPI_BUS":          &c.SPI.Bus,
		"SPI_CHIP_SELECT":  &c.SPI.ChipSelect,
		"SPI_MODE":         &c.SPI.Mode,
	}
	for key, dst := range ints {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = n
		}
	}

	if v, ok := os.LookupEnv(EnvPrefix + "SPI_SPEED_HZ"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%sSPI_SPEED_HZ: %w", EnvPrefix, err)
		}
		c.SPI.SpeedHz = n
	}

	bools := map[string]*bool{
		"SOURCE_LOOP": &c.Source.Loop,
		"HTTP_MDNS":   &c.HTTP.MDNS,
	}
	for key, dst := range bools {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = b
		}
	}

	return nil
}
