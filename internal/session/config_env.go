package session

import "os"

// ApplyEnvConfig applies configuration from environment variables
// (SERLINK_*). It respects flags that have been explicitly set (changed
// map). Returns an error if a variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("log-dir", os.Getenv("SERLINK_LOG_DIR"), &cfg.LogDir)
	s.setString("compressor", os.Getenv("SERLINK_COMPRESSOR"), &cfg.Compressor)

	s.setBoolFromString("echo", os.Getenv("SERLINK_ECHO"), &cfg.Echo)
	s.setBoolFromString("translate", os.Getenv("SERLINK_TRANSLATE"), &cfg.Translate)
	s.setBoolFromString("wait", os.Getenv("SERLINK_WAIT"), &cfg.Wait)
	s.setBoolFromString("no-log", os.Getenv("SERLINK_NO_LOG"), &cfg.NoLog)

	if err := s.setDuration("wait-timeout", os.Getenv("SERLINK_WAIT_TIMEOUT"), &cfg.WaitTimeout); err != nil {
		return err
	}
	if err := s.setDuration("drain-timeout", os.Getenv("SERLINK_DRAIN_TIMEOUT"), &cfg.DrainTimeout); err != nil {
		return err
	}

	return nil
}
