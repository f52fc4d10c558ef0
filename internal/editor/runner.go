package editor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"patternpress/internal/services"
)

// RunResult captures the editor invocation's captured output streams.
type RunResult struct {
	Stdout string
	Stderr string
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onStart func(pid int)) (RunResult, error)
}

// Option configures the runner.
type Option func(*Runner)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(r *Runner) {
		if exec != nil {
			r.exec = exec
		}
	}
}

// Runner invokes the external editor with script arguments.
type Runner struct {
	binary     string
	runTimeout time.Duration
	exec       Executor

	mu      sync.Mutex
	lastPID int
}

// NewRunner constructs an editor runner.
func NewRunner(binary string, runTimeoutSeconds int, opts ...Option) (*Runner, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("editor binary required")
	}
	runner := &Runner{
		binary:     binary,
		runTimeout: time.Duration(runTimeoutSeconds) * time.Second,
		exec:       commandExecutor{},
	}
	for _, opt := range opts {
		opt(runner)
	}
	return runner, nil
}

// RunScript launches the editor with a run-script flag under the hard run
// timeout. Hitting the timeout resolves without error: the invoked script can
// leave the editor hung on an unrelated dialog, so the caller must treat the
// output artifact, not process exit, as the completion signal.
func (r *Runner) RunScript(ctx context.Context, scriptPath string) (RunResult, error) {
	scriptPath = strings.TrimSpace(scriptPath)
	if scriptPath == "" {
		return RunResult{}, services.Wrap(services.ErrConfiguration, "", "run script", "script path required", nil)
	}
	if err := statFile(r.binary); err != nil {
		return RunResult{}, services.Wrap(services.ErrNotFound, "", "run script",
			fmt.Sprintf("editor executable missing: %s", r.binary), err)
	}
	if err := statFile(scriptPath); err != nil {
		return RunResult{}, services.Wrap(services.ErrNotFound, "", "run script",
			fmt.Sprintf("editor script missing: %s", scriptPath), err)
	}

	runCtx := ctx
	if r.runTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.runTimeout)
		defer cancel()
	}

	result, err := r.exec.Run(runCtx, r.binary, []string{"-r", scriptPath}, func(pid int) {
		r.mu.Lock()
		r.lastPID = pid
		r.mu.Unlock()
	})
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			// Best effort: the run timeout is an upper bound, not a failure.
			return result, nil
		}
		return result, services.Wrap(services.ErrExternalTool, "", "run script", "editor invocation failed", err)
	}
	return result, nil
}

// LastPID reports the process id of the most recently spawned invocation, or
// zero when none has been started yet.
func (r *Runner) LastPID() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastPID
}

func statFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onStart func(pid int)) (RunResult, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return RunResult{}, fmt.Errorf("start editor: %w", err)
	}
	if onStart != nil && cmd.Process != nil {
		onStart(cmd.Process.Pid)
	}

	err := cmd.Wait()
	result := RunResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		return result, fmt.Errorf("editor exited: %w", err)
	}
	return result, nil
}
