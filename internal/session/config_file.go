package session

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// fileConfig mirrors Config but uses strings for durations to make TOML
// friendly, and pointers for booleans so absent keys stay distinguishable.
type fileConfig struct {
	Device       string `toml:"device"`
	Echo         *bool  `toml:"echo"`
	Translate    *bool  `toml:"translate"`
	Wait         *bool  `toml:"wait"`
	WaitTimeout  string `toml:"wait_timeout"`
	LogDir       string `toml:"log_dir"`
	NoLog        *bool  `toml:"no_log"`
	Compressor   string `toml:"compressor"`
	DrainTimeout string `toml:"drain_timeout"`
}

// loadFileConfig reads and parses a TOML config file.
func loadFileConfig(path string) (fileConfig, error) {
	var fc fileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// defaultConfigPath returns ~/.serlink/config.toml if the user home
// directory is accessible.
func defaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".serlink", "config.toml")
	}
	return ""
}

// applyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func applyFileConfig(cfg *Config, fc fileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("device", fc.Device, &cfg.Device)
	s.setString("log-dir", fc.LogDir, &cfg.LogDir)
	s.setString("compressor", fc.Compressor, &cfg.Compressor)

	s.setBool("echo", fc.Echo, &cfg.Echo)
	s.setBool("translate", fc.Translate, &cfg.Translate)
	s.setBool("wait", fc.Wait, &cfg.Wait)
	s.setBool("no-log", fc.NoLog, &cfg.NoLog)

	if err := s.setDuration("wait-timeout", fc.WaitTimeout, &cfg.WaitTimeout); err != nil {
		return err
	}
	if err := s.setDuration("drain-timeout", fc.DrainTimeout, &cfg.DrainTimeout); err != nil {
		return err
	}

	return nil
}

// fileExists checks if a file exists at the given path.
func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// Exported functions for use from the main package without exposing
// internal helpers.

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (fileConfig, error) {
	return loadFileConfig(path)
}

// DefaultConfigPath returns the default configuration file path.
func DefaultConfigPath() string {
	return defaultConfigPath()
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc fileConfig, changed map[string]bool) error {
	return applyFileConfig(cfg, fc, changed)
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	return fileExists(p)
}
