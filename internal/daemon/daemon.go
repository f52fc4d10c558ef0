// Package daemon ties the export service, queue store, and HTTP API together
// into a single-instance background process.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"patternpress/internal/config"
	"patternpress/internal/exporting"
	"patternpress/internal/logging"
	"patternpress/internal/notifications"
	"patternpress/internal/progress"
	"patternpress/internal/queue"
)

// Daemon coordinates the export pipeline and enforces single-instance
// execution via a lock file.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	exporter *exporting.Service
	hub      *progress.Hub

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	EditorRunning bool
	Queue         exporting.Status
	QueueDBPath   string
	LockFilePath  string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, hub *progress.Hub, exporter *exporting.Service, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || hub == nil || exporter == nil {
		return nil, errors.New("daemon requires config, store, hub, and export service")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "patternpressd.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		exporter: exporter,
		hub:      hub,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, settles jobs orphaned by a previous run,
// and launches the export worker plus the API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another patternpress daemon instance is already running")
	}

	reset, err := d.store.ResetStuck(ctx)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("reset stuck jobs: %w", err)
	}
	if reset > 0 {
		d.logger.Warn("failed jobs orphaned by previous run",
			logging.Int64("jobs", reset),
			logging.String(logging.FieldEventType, "startup_reset"),
		)
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.exporter.Start(runCtx); err != nil {
		cancel()
		d.cancel = nil
		_ = d.lock.Unlock()
		return fmt.Errorf("start export service: %w", err)
	}

	if err := d.api.start(runCtx); err != nil {
		d.exporter.Stop()
		cancel()
		d.cancel = nil
		_ = d.lock.Unlock()
		return fmt.Errorf("start api server: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("patternpress daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop halts background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.exporter.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("patternpress daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	queueStatus, err := d.exporter.QueueStatus(ctx)
	if err != nil {
		d.logger.Warn("queue status unavailable", logging.Error(err))
	}
	return Status{
		Running:       d.running.Load(),
		EditorRunning: d.exporter.EditorRunning(),
		Queue:         queueStatus,
		QueueDBPath:   d.store.Path(),
		LockFilePath:  d.lockPath,
	}
}

// APIAddr reports the bound API listener address, empty until started.
func (d *Daemon) APIAddr() string {
	return d.api.addr()
}

// ListQueue returns persisted export jobs filtered by optional statuses.
func (d *Daemon) ListQueue(ctx context.Context, statuses []queue.Status) ([]*queue.Job, error) {
	return d.store.List(ctx, statuses...)
}

// ClearQueue removes settled jobs from the queue database.
func (d *Daemon) ClearQueue(ctx context.Context) (int64, error) {
	return d.store.Clear(ctx)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(d.cfg)
	if err := notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}
