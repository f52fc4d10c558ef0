package artifact_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"patternpress/internal/artifact"
	"patternpress/internal/services"
)

func TestAwaitResolvesQuicklyWhenFileAlreadyExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.png")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	opts := artifact.Options{
		Timeout:      5 * time.Second,
		PollInterval: 20 * time.Millisecond,
		SettleDelay:  30 * time.Millisecond,
	}

	start := time.Now()
	if err := artifact.Await(context.Background(), path, opts, nil); err != nil {
		t.Fatalf("Await failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("expected prompt resolution for pre-existing file, took %s", elapsed)
	}
}

func TestAwaitDetectsLateAppearance(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.png")
	opts := artifact.Options{
		Timeout:      5 * time.Second,
		PollInterval: 20 * time.Millisecond,
		SettleDelay:  10 * time.Millisecond,
	}

	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = os.WriteFile(path, []byte("data"), 0o644)
	}()

	if err := artifact.Await(context.Background(), path, opts, nil); err != nil {
		t.Fatalf("Await failed: %v", err)
	}
}

func TestAwaitTimesOutWhenFileNeverAppears(t *testing.T) {
	path := filepath.Join(t.TempDir(), "never.png")
	opts := artifact.Options{
		Timeout:      200 * time.Millisecond,
		PollInterval: 20 * time.Millisecond,
		SettleDelay:  10 * time.Millisecond,
	}

	start := time.Now()
	err := artifact.Await(context.Background(), path, opts, nil)
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed < 200*time.Millisecond {
		t.Fatalf("timed out too early: %s", elapsed)
	}
	if elapsed > 2*time.Second {
		t.Fatalf("timed out too late: %s", elapsed)
	}
}

func TestAwaitProgressIsMonotonicAndCapped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.png")
	opts := artifact.Options{
		Timeout:      400 * time.Millisecond,
		PollInterval: 20 * time.Millisecond,
		SettleDelay:  10 * time.Millisecond,
		CapPercent:   95,
	}

	go func() {
		time.Sleep(250 * time.Millisecond)
		_ = os.WriteFile(path, []byte("data"), 0o644)
	}()

	var reports []float64
	if err := artifact.Await(context.Background(), path, opts, func(p float64) {
		reports = append(reports, p)
	}); err != nil {
		t.Fatalf("Await failed: %v", err)
	}

	if len(reports) < 2 {
		t.Fatalf("expected multiple progress reports, got %d", len(reports))
	}
	for i := 1; i < len(reports); i++ {
		if reports[i] < reports[i-1] {
			t.Fatalf("progress decreased: %v", reports)
		}
	}
	for _, p := range reports[:len(reports)-1] {
		if p >= 100 {
			t.Fatalf("intermediate progress reached 100: %v", reports)
		}
		if p > 95 {
			t.Fatalf("intermediate progress exceeded cap: %v", reports)
		}
	}
	if reports[len(reports)-1] != 100 {
		t.Fatalf("final progress should be 100, got %v", reports[len(reports)-1])
	}
}

func TestAwaitHonorsContextCancellation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "never.png")
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	err := artifact.Await(ctx, path, artifact.Options{
		Timeout:      10 * time.Second,
		PollInterval: 20 * time.Millisecond,
	}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
