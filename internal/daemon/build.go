package daemon

import (
	"fmt"
	"log/slog"

	"patternpress/internal/config"
	"patternpress/internal/editor"
	"patternpress/internal/exporting"
	"patternpress/internal/notifications"
	"patternpress/internal/progress"
	"patternpress/internal/queue"
)

const progressHubCapacity = 256

// BuildOption customizes daemon assembly.
type BuildOption func(*buildOptions)

type buildOptions struct {
	executor editor.Executor
	probe    editor.ProbeFunc
}

// WithExecutor overrides how editor scripts are spawned.
func WithExecutor(exec editor.Executor) BuildOption {
	return func(o *buildOptions) {
		o.executor = exec
	}
}

// WithGateProbe overrides how editor liveness is detected.
func WithGateProbe(probe editor.ProbeFunc) BuildOption {
	return func(o *buildOptions) {
		o.probe = probe
	}
}

// Build assembles a fully wired daemon from configuration: queue store,
// progress hub, editor runner and gate, notifier, export service.
func Build(cfg *config.Config, logger *slog.Logger, opts ...BuildOption) (*Daemon, error) {
	var options buildOptions
	for _, opt := range opts {
		opt(&options)
	}

	store, err := queue.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open queue store: %w", err)
	}

	var runnerOpts []editor.Option
	if options.executor != nil {
		runnerOpts = append(runnerOpts, editor.WithExecutor(options.executor))
	}
	runner, err := editor.NewRunner(cfg.Editor.Binary, cfg.Editor.RunTimeout, runnerOpts...)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("editor runner: %w", err)
	}

	var gateOpts []editor.GateOption
	if options.probe != nil {
		gateOpts = append(gateOpts, editor.WithProbe(options.probe))
	}
	gate := editor.NewGate(
		cfg.Editor.ProcessName,
		cfg.Editor.LivenessPollInterval,
		cfg.Editor.LivenessMaxWait,
		runner.LastPID,
		gateOpts...,
	)

	hub := progress.NewHub(progressHubCapacity)
	notifier := notifications.NewService(cfg)
	exporter := exporting.NewService(cfg, store, hub, runner, gate, notifier, logger)

	d, err := New(cfg, store, hub, exporter, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return d, nil
}
