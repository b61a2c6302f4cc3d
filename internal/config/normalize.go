package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeJobs()
	c.normalizeHardware()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.MediaDir, err = expandPath(c.Paths.MediaDir); err != nil {
		return fmt.Errorf("paths.media_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.BackupDir) != "" {
		if c.Paths.BackupDir, err = expandPath(c.Paths.BackupDir); err != nil {
			return fmt.Errorf("paths.backup_dir: %w", err)
		}
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.Socket, err = expandPath(c.Paths.Socket); err != nil {
		return fmt.Errorf("paths.socket: %w", err)
	}
	if c.Paths.LockFile, err = expandPath(c.Paths.LockFile); err != nil {
		return fmt.Errorf("paths.lock_file: %w", err)
	}
	if c.Paths.Presets, err = expandPath(c.Paths.Presets); err != nil {
		return fmt.Errorf("paths.presets_file: %w", err)
	}
	if strings.TrimSpace(c.Paths.FFmpegBin) == "" {
		c.Paths.FFmpegBin = defaultFFmpegBin
	}
	if strings.TrimSpace(c.Paths.FFprobeBin) == "" {
		c.Paths.FFprobeBin = defaultFFprobeBin
	}
	return nil
}

func (c *Config) normalizeJobs() {
	if c.Jobs.MaxConcurrent <= 0 {
		c.Jobs.MaxConcurrent = defaultMaxConcurrent
	}
	if c.Jobs.MaxRetries < 0 {
		c.Jobs.MaxRetries = defaultMaxRetries
	}
	if strings.TrimSpace(c.Jobs.OriginalPolicy) == "" {
		c.Jobs.OriginalPolicy = defaultOriginalPolicy
	}
}

func (c *Config) normalizeHardware() {
	if strings.TrimSpace(c.Hardware.Device) == "" {
		c.Hardware.Device = defaultRenderDevice
	}
	if c.Hardware.ProbeTTL <= 0 {
		c.Hardware.ProbeTTL = defaultProbeTTLSeconds
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollSeconds
	}
	if c.Workflow.ProgressWriteInterval <= 0 {
		c.Workflow.ProgressWriteInterval = defaultProgressWriteMillis
	}
	if c.Workflow.VerifyDurationTolPct <= 0 {
		c.Workflow.VerifyDurationTolPct = defaultDurationTolerancePct
	}
	if c.Workflow.VerifyDurationTolFloor <= 0 {
		c.Workflow.VerifyDurationTolFloor = defaultDurationToleranceSecs
	}
}

func (c *Config) normalizeLogging() {
	if strings.TrimSpace(c.Logging.Format) == "" {
		c.Logging.Format = defaultLogFormat
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = defaultLogLevel
	}
}
