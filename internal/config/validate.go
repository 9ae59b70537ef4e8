package config

import (
	"errors"
	"fmt"

	"segrun/internal/segtool"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTool(); err != nil {
		return err
	}
	if err := c.validateConcurrency(); err != nil {
		return err
	}
	if err := c.validateWorker(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateTool() error {
	profile, err := segtool.Lookup(c.Tool.Name)
	if err != nil {
		return fmt.Errorf("tool.name: %w", err)
	}
	if c.Tool.Executable == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/segrun/config.toml"
		}
		return fmt.Errorf("tool.executable is required. Set SEGRUN_TOOL_EXECUTABLE env var or edit %s (create with 'segrun config init')", defaultPath)
	}
	if c.Tool.Chan < 0 {
		return errors.New("tool.chan must be >= 0")
	}
	if c.Tool.Diameter < 0 {
		return errors.New("tool.diameter must be >= 0")
	}
	if c.Tool.Is3D && profile.Only2D {
		return fmt.Errorf("tool.do_3d is not supported by %s", profile.Name)
	}
	if err := c.model(profile).Validate(profile); err != nil {
		return fmt.Errorf("tool.model: %w", err)
	}
	return nil
}

func (c *Config) validateConcurrency() error {
	if c.Concurrency.NumThreads < 0 {
		return errors.New("concurrency.num_threads must be >= 0")
	}
	return nil
}

func (c *Config) validateWorker() error {
	if c.Worker.KillGraceSeconds < 0 {
		return errors.New("worker.kill_grace_seconds must be >= 0")
	}
	if c.Worker.TimeoutSeconds < 0 {
		return errors.New("worker.timeout_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}
