package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"patternpress/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test,
// including a stub editor binary and stub scripts so validation passes.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.WorkingDir = filepath.Join(base, "work")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Editor.Binary = writeStubExecutable(t, base, "editor")
	cfgVal.Editor.ProcessName = "patternpress-test-editor"
	cfgVal.Editor.PrintScript = writeStubExecutable(t, base, "print.jsx")
	cfgVal.Editor.MockupScript = writeStubExecutable(t, base, "mockup.jsx")
	cfgVal.Workflow.QueuePollInterval = 1
	cfgVal.Workflow.ErrorRetryInterval = 1
	cfgVal.Pipeline.PollIntervalMillis = 20
	cfgVal.Pipeline.SettleDelayMillis = 20
	cfgVal.Pipeline.PrintTimeout = 5
	cfgVal.Pipeline.MockupTimeout = 5
	cfgVal.Editor.LivenessPollInterval = 1
	cfgVal.Editor.LivenessMaxWait = 2

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithArtifactTimeouts overrides both artifact wait budgets (seconds).
func WithArtifactTimeouts(printSeconds, mockupSeconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.PrintTimeout = printSeconds
		b.cfg.Pipeline.MockupTimeout = mockupSeconds
	}
}

// WithNtfyTopic sets the notification topic on the test config.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.WorkingDir)
}

func writeStubExecutable(t testing.TB, base, name string) string {
	t.Helper()
	binDir := filepath.Join(base, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	target := filepath.Join(binDir, name)
	if err := os.WriteFile(target, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return target
}
