package config

import (
	"fmt"
	"os"
	"strings"

	"segrun/internal/segtool"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeTool(); err != nil {
		return err
	}
	c.normalizeConcurrency()
	c.normalizeProgress()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.TempRoot, err = expandPath(strings.TrimSpace(c.Paths.TempRoot)); err != nil {
		return fmt.Errorf("paths.temp_root: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.HistoryDB) == "" {
		c.Paths.HistoryDB = defaultHistoryDB
	}
	if c.Paths.HistoryDB, err = expandPath(c.Paths.HistoryDB); err != nil {
		return fmt.Errorf("paths.history_db: %w", err)
	}
	return nil
}

func (c *Config) normalizeTool() error {
	c.Tool.Name = strings.ToLower(strings.TrimSpace(c.Tool.Name))
	if c.Tool.Name == "" {
		c.Tool.Name = defaultToolName
	}
	c.Tool.Executable = strings.TrimSpace(c.Tool.Executable)
	if c.Tool.Executable == "" {
		if value, ok := os.LookupEnv("SEGRUN_TOOL_EXECUTABLE"); ok {
			c.Tool.Executable = strings.TrimSpace(value)
		}
	}
	if strings.HasPrefix(c.Tool.Executable, "~") {
		expanded, err := expandPath(c.Tool.Executable)
		if err != nil {
			return fmt.Errorf("tool.executable: %w", err)
		}
		c.Tool.Executable = expanded
	}
	c.Tool.Model = strings.TrimSpace(c.Tool.Model)
	if c.Tool.Model == "" {
		if profile, err := segtool.Lookup(c.Tool.Name); err == nil {
			c.Tool.Model = profile.DefaultModel
		}
	}
	if c.Tool.CustomModelPath != "" {
		expanded, err := expandPath(strings.TrimSpace(c.Tool.CustomModelPath))
		if err != nil {
			return fmt.Errorf("tool.custom_model_path: %w", err)
		}
		c.Tool.CustomModelPath = expanded
	}
	return nil
}

func (c *Config) normalizeConcurrency() {
	platforms := make([]string, 0, len(c.Concurrency.MultiprocessPlatforms))
	for _, p := range c.Concurrency.MultiprocessPlatforms {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			platforms = append(platforms, p)
		}
	}
	c.Concurrency.MultiprocessPlatforms = platforms
}

func (c *Config) normalizeProgress() {
	if c.Progress.PollIntervalMS <= 0 {
		c.Progress.PollIntervalMS = defaultPollIntervalMS
	}
	c.Progress.LogFile = strings.TrimSpace(c.Progress.LogFile)
	if c.Progress.LogFile != "" {
		if expanded, err := expandPath(c.Progress.LogFile); err == nil {
			c.Progress.LogFile = expanded
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
