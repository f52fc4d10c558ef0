package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	cfg := Default()
	cfg.Paths.WorkingDir = filepath.Join(dir, "work")
	cfg.Paths.LogDir = filepath.Join(dir, "logs")
	cfg.Editor.Binary = "/usr/bin/imageeditor"
	cfg.Editor.PrintScript = "/opt/scripts/print.jsx"
	cfg.Editor.MockupScript = "/opt/scripts/mockup.jsx"
	return cfg
}

func TestDefaultValues(t *testing.T) {
	cfg := Default()
	if cfg.Paths.APIBind != "127.0.0.1:3001" {
		t.Errorf("api_bind = %q", cfg.Paths.APIBind)
	}
	if cfg.Pipeline.InputFile != "temp.png" || cfg.Pipeline.PrintOutput != "print.png" || cfg.Pipeline.MockupOutput != "mockup.png" {
		t.Errorf("unexpected pipeline files: %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.SettleDelayMillis != 1000 {
		t.Errorf("settle_delay_millis = %d", cfg.Pipeline.SettleDelayMillis)
	}
	if cfg.Editor.LivenessMaxWait != 30 {
		t.Errorf("liveness_max_wait = %d", cfg.Editor.LivenessMaxWait)
	}
	if cfg.Logging.Format != "console" {
		t.Errorf("logging format = %q", cfg.Logging.Format)
	}
}

func TestValidateRequiresEditorBinary(t *testing.T) {
	cfg := validConfig(t)
	cfg.Editor.Binary = ""
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "editor.binary") {
		t.Fatalf("expected editor.binary error, got %v", err)
	}
}

func TestValidateRequiresScripts(t *testing.T) {
	cfg := validConfig(t)
	cfg.Editor.PrintScript = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing print_script")
	}

	cfg = validConfig(t)
	cfg.Editor.MockupScript = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing mockup_script")
	}
}

func TestValidateRejectsNonPositiveTimeouts(t *testing.T) {
	cfg := validConfig(t)
	cfg.Pipeline.PrintTimeout = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero print_timeout")
	}

	cfg = validConfig(t)
	cfg.Editor.LivenessMaxWait = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative liveness_max_wait")
	}
}

func TestValidateRejectsCollidingPipelineFiles(t *testing.T) {
	cfg := validConfig(t)
	cfg.Pipeline.PrintOutput = cfg.Pipeline.MockupOutput
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "different files") {
		t.Fatalf("expected collision error, got %v", err)
	}
}

func TestValidateRejectsUnknownLogFormat(t *testing.T) {
	cfg := validConfig(t)
	cfg.Logging.Format = "yaml"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown logging format")
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	// A missing explicit path is not an error: defaults apply, but they fail
	// validation because the editor binary is unset.
	_, _, exists, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if err == nil || !strings.Contains(err.Error(), "editor.binary") {
		t.Fatalf("expected validation failure on defaults, got %v", err)
	}
}

func TestLoadParsesAndExpandsPaths(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.toml")
	content := `
[paths]
working_dir = "` + filepath.Join(dir, "work") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"

[editor]
binary = "/usr/bin/imageeditor"
print_script = "/opt/scripts/print.jsx"
mockup_script = "/opt/scripts/mockup.jsx"

[pipeline]
print_timeout = 60
`
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected exists=true")
	}
	if resolved != cfgPath {
		t.Errorf("resolved path = %q, want %q", resolved, cfgPath)
	}
	if cfg.Pipeline.PrintTimeout != 60 {
		t.Errorf("print_timeout = %d, want 60 from file", cfg.Pipeline.PrintTimeout)
	}
	if cfg.Pipeline.MockupTimeout != 180 {
		t.Errorf("mockup_timeout = %d, want default 180", cfg.Pipeline.MockupTimeout)
	}
	if !filepath.IsAbs(cfg.Paths.WorkingDir) {
		t.Errorf("working_dir not absolute: %q", cfg.Paths.WorkingDir)
	}
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(cfgPath, []byte("[paths\nbroken"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := Load(cfgPath); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestArtifactPathHelpers(t *testing.T) {
	cfg := validConfig(t)
	if got := cfg.InputPath(); got != filepath.Join(cfg.Paths.WorkingDir, "temp.png") {
		t.Errorf("InputPath = %q", got)
	}
	if got := cfg.PrintOutputPath(); got != filepath.Join(cfg.Paths.WorkingDir, "print.png") {
		t.Errorf("PrintOutputPath = %q", got)
	}
	if got := cfg.MockupOutputPath(); got != filepath.Join(cfg.Paths.WorkingDir, "mockup.png") {
		t.Errorf("MockupOutputPath = %q", got)
	}
}
