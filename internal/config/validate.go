package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateJobs(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set")
	}
	if strings.TrimSpace(c.Paths.Socket) == "" {
		return errors.New("paths.socket must be set")
	}
	return nil
}

func (c *Config) validateJobs() error {
	if c.Jobs.MaxConcurrent < 1 {
		return errors.New("jobs.max_concurrent must be at least 1")
	}
	switch strings.ToLower(strings.TrimSpace(c.Jobs.OriginalPolicy)) {
	case string(PolicyKeep), string(PolicyMove), string(PolicyDelete):
	default:
		return fmt.Errorf("jobs.original_policy must be one of keep, move, delete; got %q", c.Jobs.OriginalPolicy)
	}
	if c.Policy() == PolicyMove && strings.TrimSpace(c.Paths.BackupDir) == "" {
		return errors.New("paths.backup_dir must be set when jobs.original_policy is move")
	}
	if c.Jobs.EncodeTimeout < 0 {
		return errors.New("jobs.encode_timeout must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json; got %q", c.Logging.Format)
	}
	return nil
}
