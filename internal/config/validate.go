package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateFleet(); err != nil {
		return err
	}
	if err := c.validateReaper(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateFleet() error {
	if c.Fleet.QueuePollInterval <= 0 {
		return errors.New("fleet.queue_poll_interval must be positive")
	}
	if c.Fleet.PingInterval <= 0 {
		return errors.New("fleet.ping_interval must be positive")
	}
	if c.Fleet.OfflineThreshold <= c.Fleet.PingInterval {
		return fmt.Errorf("fleet.offline_threshold (%d) must exceed fleet.ping_interval (%d)",
			c.Fleet.OfflineThreshold, c.Fleet.PingInterval)
	}
	if c.Fleet.ExtractionSeconds < 0 || c.Fleet.ProcessingSeconds < 0 {
		return errors.New("fleet stage durations must not be negative")
	}
	return nil
}

func (c *Config) validateReaper() error {
	if c.Reaper.Interval <= 0 {
		return errors.New("reaper.interval must be positive")
	}
	if c.Reaper.PendingTimeout <= 0 {
		return errors.New("reaper.pending_timeout must be positive")
	}
	if c.Reaper.UploadedTimeout <= 0 {
		return errors.New("reaper.uploaded_timeout must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
