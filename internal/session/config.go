package session

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bft-labs/serlink/internal/device"
	"github.com/bft-labs/serlink/internal/record"
	"github.com/bft-labs/serlink/internal/relay"
)

// Config describes one serial session. The line settings themselves
// (115200 8N1) are fixed in the device package and deliberately absent here.
type Config struct {
	// Device is the serial device path, e.g. /dev/ttyUSB0.
	Device string

	// Echo redisplays typed bytes locally.
	Echo bool

	// Translate enables CR/NL line-ending translation on both directions.
	Translate bool

	// Wait blocks at startup until the device node appears.
	Wait bool

	// WaitTimeout bounds Wait.
	WaitTimeout time.Duration

	// LogDir is where session logfiles are created.
	LogDir string

	// NoLog disables session recording entirely.
	NoLog bool

	// Compressor is the external tool run on the finished logfile.
	Compressor string

	// DrainTimeout bounds shutdown once an exit is requested.
	DrainTimeout time.Duration
}

// DefaultConfig returns a Config with default values. Device must be set
// before Run.
func DefaultConfig() Config {
	return Config{
		WaitTimeout:  device.DefaultWaitTimeout,
		LogDir:       defaultLogDir(),
		Compressor:   record.DefaultCompressor,
		DrainTimeout: relay.DefaultDrainTimeout,
	}
}

func defaultLogDir() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".serlink", "logs")
	}
	return ""
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.Device == "" {
		return fmt.Errorf("device path is required")
	}
	if c.Compressor == "" {
		c.Compressor = record.DefaultCompressor
	}
	if c.WaitTimeout <= 0 {
		return fmt.Errorf("wait timeout must be positive")
	}
	if c.DrainTimeout <= 0 {
		return fmt.Errorf("drain timeout must be positive")
	}
	if !c.NoLog && c.LogDir == "" {
		return fmt.Errorf("log dir is required unless logging is disabled")
	}
	return nil
}

// configSetter helps apply configuration values while respecting flag
// precedence. It only applies values if the corresponding flag hasn't been
// explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setDuration parses and sets a duration from string if valid and flag not
// changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false. Used for environment
// variables that come as strings.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
