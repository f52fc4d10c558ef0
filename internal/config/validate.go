package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateEditor(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.WorkingDir) == "" {
		return errors.New("paths.working_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateEditor() error {
	if strings.TrimSpace(c.Editor.Binary) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/patternpress/config.toml"
		}
		return fmt.Errorf("editor.binary is required. Edit %s (create with 'patternpress config init')", defaultPath)
	}
	if strings.TrimSpace(c.Editor.PrintScript) == "" {
		return errors.New("editor.print_script must be set")
	}
	if strings.TrimSpace(c.Editor.MockupScript) == "" {
		return errors.New("editor.mockup_script must be set")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	names := map[string]int{
		"pipeline.print_timeout":  c.Pipeline.PrintTimeout,
		"pipeline.mockup_timeout": c.Pipeline.MockupTimeout,
	}
	if err := ensurePositiveMap(names); err != nil {
		return err
	}
	seen := map[string]string{}
	for key, file := range map[string]string{
		"pipeline.input_file":    c.Pipeline.InputFile,
		"pipeline.print_output":  c.Pipeline.PrintOutput,
		"pipeline.mockup_output": c.Pipeline.MockupOutput,
	} {
		if other, ok := seen[file]; ok {
			return fmt.Errorf("%s and %s must name different files", other, key)
		}
		seen[file] = key
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	return ensurePositiveMap(map[string]int{
		"editor.run_timeout":            c.Editor.RunTimeout,
		"editor.liveness_poll_interval": c.Editor.LivenessPollInterval,
		"editor.liveness_max_wait":      c.Editor.LivenessMaxWait,
		"workflow.queue_poll_interval":  c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	})
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
