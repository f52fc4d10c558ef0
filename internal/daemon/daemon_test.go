package daemon

import (
	"context"
	"strings"
	"testing"

	"patternpress/internal/editor"
	"patternpress/internal/imagefile"
	"patternpress/internal/logging"
	"patternpress/internal/testsupport"
)

// scriptedExecutor plays the editor: each invocation synchronously drops the
// artifact the supplied script is responsible for.
type scriptedExecutor struct {
	printScript  string
	mockupScript string
	printOutput  string
	mockupOutput string
	payload      []byte
}

func (e *scriptedExecutor) Run(ctx context.Context, binary string, args []string, onStart func(pid int)) (editor.RunResult, error) {
	if onStart != nil {
		onStart(4242)
	}
	if len(args) != 2 || args[0] != "-r" {
		return editor.RunResult{}, nil
	}
	switch args[1] {
	case e.printScript:
		return editor.RunResult{}, imagefile.WriteFile(e.printOutput, e.payload)
	case e.mockupScript:
		return editor.RunResult{}, imagefile.WriteFile(e.mockupOutput, e.payload)
	}
	return editor.RunResult{}, nil
}

func buildTestDaemon(t *testing.T) *Daemon {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	exec := &scriptedExecutor{
		printScript:  cfg.Editor.PrintScript,
		mockupScript: cfg.Editor.MockupScript,
		printOutput:  cfg.PrintOutputPath(),
		mockupOutput: cfg.MockupOutputPath(),
		payload:      testsupport.TinyPNG(t),
	}

	d, err := Build(cfg, logging.NewNop(),
		WithExecutor(exec),
		WithGateProbe(func() bool { return false }),
	)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() {
		_ = d.Close()
	})
	return d
}

func TestDaemonStartStop(t *testing.T) {
	d := buildTestDaemon(t)

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !d.Status(context.Background()).Running {
		t.Fatal("daemon not reported running after start")
	}
	if d.APIAddr() == "" {
		t.Fatal("api listener has no address")
	}

	d.Stop()
	if d.Status(context.Background()).Running {
		t.Fatal("daemon still reported running after stop")
	}
}

func TestDaemonStartIsExclusive(t *testing.T) {
	d := buildTestDaemon(t)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	if err := d.Start(context.Background()); err == nil {
		t.Fatal("second start on a running daemon succeeded")
	}
}

func TestDaemonStartFailsStuckJobs(t *testing.T) {
	d := buildTestDaemon(t)

	orphan := testsupport.NewJob(t, d.store, "orphan.png")

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	job, err := d.store.GetByID(context.Background(), orphan.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if job.Status != "failed" {
		t.Fatalf("orphan job status = %s, want failed", job.Status)
	}
	if !strings.Contains(job.ErrorMessage, "restarted") {
		t.Fatalf("orphan job error = %q", job.ErrorMessage)
	}
}
