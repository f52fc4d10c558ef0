package editor

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"patternpress/internal/services"
)

// ProbeFunc reports whether the editor process is currently running.
type ProbeFunc func() bool

// Gate serializes editor access by waiting for any previous instance to exit
// before the next scripted invocation starts. Two concurrent instances would
// contend for the shared working files and can corrupt each other's state.
type Gate struct {
	pollInterval time.Duration
	maxWait      time.Duration
	probe        ProbeFunc
}

// GateOption configures the gate.
type GateOption func(*Gate)

// WithProbe injects a custom liveness probe (primarily for tests).
func WithProbe(probe ProbeFunc) GateOption {
	return func(g *Gate) {
		if probe != nil {
			g.probe = probe
		}
	}
}

// NewGate constructs a liveness gate for the named editor process. The
// default probe combines a signal-0 check of the runner's last spawned pid
// with a process-table scan by executable name, so instances launched outside
// the daemon are also respected.
func NewGate(processName string, pollSeconds, maxWaitSeconds int, pid func() int, opts ...GateOption) *Gate {
	gate := &Gate{
		pollInterval: time.Duration(pollSeconds) * time.Second,
		maxWait:      time.Duration(maxWaitSeconds) * time.Second,
		probe: func() bool {
			if pid != nil {
				if id := pid(); id > 0 && pidAlive(id) {
					return true
				}
			}
			return processTableLists(processName)
		},
	}
	if gate.pollInterval <= 0 {
		gate.pollInterval = time.Second
	}
	if gate.maxWait <= 0 {
		gate.maxWait = 30 * time.Second
	}
	for _, opt := range opts {
		opt(gate)
	}
	return gate
}

// Running reports whether the editor process is currently alive.
func (g *Gate) Running() bool {
	if g == nil {
		return false
	}
	return g.probe()
}

// Await blocks until the editor is no longer running, polling at the gate
// interval. When the maximum wait elapses with the editor still alive it
// returns an editor-busy error rather than proceeding; overlapping scripted
// invocations corrupt the shared working files, so the job fails instead.
func (g *Gate) Await(ctx context.Context) error {
	if !g.Running() {
		return nil
	}

	deadline := time.Now().Add(g.maxWait)
	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if !g.Running() {
			return nil
		}
		if time.Now().After(deadline) {
			return services.Wrap(services.ErrEditorBusy, "", "await editor",
				"editor still running after maximum wait", nil)
		}
	}
}

func pidAlive(pid int) bool {
	return unix.Kill(pid, 0) == nil
}

// processTableLists scans /proc for a process whose comm matches the
// executable name. comm is truncated by the kernel at 15 characters, so long
// names are compared by prefix.
func processTableLists(name string) bool {
	name = strings.TrimSpace(filepath.Base(name))
	if name == "" {
		return false
	}
	short := name
	if len(short) > 15 {
		short = short[:15]
	}

	entries, err := os.ReadDir("/proc")
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := strconv.Atoi(entry.Name()); err != nil {
			continue
		}
		comm, err := os.ReadFile(filepath.Join("/proc", entry.Name(), "comm"))
		if err != nil {
			continue
		}
		if strings.TrimSpace(string(comm)) == short {
			return true
		}
	}
	return false
}
