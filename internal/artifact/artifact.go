// Package artifact detects completion of editor script stages by polling for
// the expected output file.
//
// Process exit is not trusted as a completion signal because the editor can
// outlive its script or hang on an unrelated dialog; a file appearing at the
// agreed path is the authoritative signal. Appearance alone is not enough
// either: the writer may still be flushing when the directory entry shows up,
// so a settle delay follows first observation before the wait resolves.
package artifact

import (
	"context"
	"fmt"
	"os"
	"time"

	"patternpress/internal/services"
)

// Options bounds one artifact wait.
type Options struct {
	// Timeout is the total appearance budget.
	Timeout time.Duration
	// PollInterval is the existence check cadence. Defaults to 300ms.
	PollInterval time.Duration
	// SettleDelay is how long to wait after first observing the file before
	// resolving, so a mid-write file is not read truncated. Defaults to 1s.
	SettleDelay time.Duration
	// CapPercent bounds elapsed-time progress until the file is actually
	// observed. Defaults to 95.
	CapPercent float64
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = 300 * time.Millisecond
	}
	if o.SettleDelay < 0 {
		o.SettleDelay = time.Second
	}
	if o.CapPercent <= 0 || o.CapPercent >= 100 {
		o.CapPercent = 95
	}
	return o
}

// Await blocks until path exists and has settled, or the timeout elapses.
//
// onProgress, when non-nil, receives a monotonically non-decreasing
// percentage derived from elapsed time, capped below 100 until existence is
// observed, then 100 exactly once after the settle delay. The binary
// exists/absent signal thus drives a smooth progress bar.
func Await(ctx context.Context, path string, opts Options, onProgress func(float64)) error {
	opts = opts.withDefaults()
	if opts.Timeout <= 0 {
		return services.Wrap(services.ErrConfiguration, "", "await artifact", "timeout must be positive", nil)
	}

	report := func(percent float64) {
		if onProgress != nil {
			onProgress(percent)
		}
	}

	start := time.Now()
	deadline := start.Add(opts.Timeout)
	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()

	for {
		if exists(path) {
			if err := sleepCtx(ctx, opts.SettleDelay); err != nil {
				return err
			}
			report(100)
			return nil
		}

		fraction := time.Since(start).Seconds() / opts.Timeout.Seconds()
		percent := fraction * 100
		if percent > opts.CapPercent {
			percent = opts.CapPercent
		}
		report(percent)

		if time.Now().After(deadline) {
			return services.Wrap(services.ErrTimeout, "", "await artifact",
				fmt.Sprintf("%s did not appear within %s", path, opts.Timeout), nil)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
