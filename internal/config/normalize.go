package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeEditor(); err != nil {
		return err
	}
	c.normalizePipeline()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.WorkingDir, err = expandPath(c.Paths.WorkingDir); err != nil {
		return fmt.Errorf("paths.working_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeEditor() error {
	var err error
	if c.Editor.Binary, err = expandPath(c.Editor.Binary); err != nil {
		return fmt.Errorf("editor.binary: %w", err)
	}
	if c.Editor.PrintScript, err = expandPath(c.Editor.PrintScript); err != nil {
		return fmt.Errorf("editor.print_script: %w", err)
	}
	if c.Editor.MockupScript, err = expandPath(c.Editor.MockupScript); err != nil {
		return fmt.Errorf("editor.mockup_script: %w", err)
	}
	c.Editor.ProcessName = strings.TrimSpace(c.Editor.ProcessName)
	if c.Editor.ProcessName == "" && c.Editor.Binary != "" {
		c.Editor.ProcessName = filepath.Base(c.Editor.Binary)
	}
	return nil
}

func (c *Config) normalizePipeline() {
	if strings.TrimSpace(c.Pipeline.InputFile) == "" {
		c.Pipeline.InputFile = defaultInputFile
	}
	if strings.TrimSpace(c.Pipeline.PrintOutput) == "" {
		c.Pipeline.PrintOutput = defaultPrintOutput
	}
	if strings.TrimSpace(c.Pipeline.MockupOutput) == "" {
		c.Pipeline.MockupOutput = defaultMockupOutput
	}
	if c.Pipeline.PollIntervalMillis <= 0 {
		c.Pipeline.PollIntervalMillis = defaultPollIntervalMillis
	}
	if c.Pipeline.SettleDelayMillis < 0 {
		c.Pipeline.SettleDelayMillis = defaultSettleDelayMillis
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
