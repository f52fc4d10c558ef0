package exporting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"patternpress/internal/config"
	"patternpress/internal/editor"
	"patternpress/internal/imagefile"
	"patternpress/internal/logging"
	"patternpress/internal/progress"
	"patternpress/internal/queue"
	"patternpress/internal/services"
	"patternpress/internal/testsupport"
)

// stubRunner pretends to be the editor: each script invocation synchronously
// writes the artifact that script is responsible for.
type stubRunner struct {
	cfg *config.Config

	mu            sync.Mutex
	active        int32
	maxActive     int32
	calls         []string
	failNext      int
	skipArtifacts bool
	payload       []byte
}

func newStubRunner(t *testing.T, cfg *config.Config) *stubRunner {
	return &stubRunner{cfg: cfg, payload: testsupport.TinyPNG(t)}
}

func (r *stubRunner) RunScript(ctx context.Context, scriptPath string) (editor.RunResult, error) {
	current := atomic.AddInt32(&r.active, 1)
	defer atomic.AddInt32(&r.active, -1)
	for {
		observed := atomic.LoadInt32(&r.maxActive)
		if current <= observed || atomic.CompareAndSwapInt32(&r.maxActive, observed, current) {
			break
		}
	}

	// Hold the "editor" open briefly so overlapping invocations would be seen.
	time.Sleep(5 * time.Millisecond)

	r.mu.Lock()
	r.calls = append(r.calls, scriptPath)
	if r.failNext > 0 {
		r.failNext--
		r.mu.Unlock()
		return editor.RunResult{}, services.Wrap(services.ErrExternalTool, "", "run script", "editor crashed", nil)
	}
	skip := r.skipArtifacts
	r.mu.Unlock()
	if skip {
		return editor.RunResult{}, nil
	}

	var target string
	switch scriptPath {
	case r.cfg.Editor.PrintScript:
		target = r.cfg.PrintOutputPath()
	case r.cfg.Editor.MockupScript:
		target = r.cfg.MockupOutputPath()
	default:
		return editor.RunResult{}, services.Wrap(services.ErrNotFound, "", "run script", "unknown script", nil)
	}
	if err := imagefile.WriteFile(target, r.payload); err != nil {
		return editor.RunResult{}, err
	}
	return editor.RunResult{}, nil
}

type stubGate struct {
	err     error
	running bool
}

func (g *stubGate) Await(ctx context.Context) error { return g.err }

func (g *stubGate) Running() bool { return g.running }

type recordingNotifier struct {
	mu        sync.Mutex
	completed []string
	failed    []string
	batches   int
}

func (n *recordingNotifier) NotifyExportCompleted(_ context.Context, _ int64, sourceName string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed = append(n.completed, sourceName)
	return nil
}

func (n *recordingNotifier) NotifyExportFailed(_ context.Context, _ int64, sourceName, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, sourceName)
	return nil
}

func (n *recordingNotifier) NotifyBatchCompleted(context.Context, int, int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.batches++
	return nil
}

func (n *recordingNotifier) TestNotification(context.Context) error { return nil }

type fixture struct {
	cfg      *config.Config
	store    *queue.Store
	hub      *progress.Hub
	runner   *stubRunner
	gate     *stubGate
	notifier *recordingNotifier
	service  *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	hub := progress.NewHub(64)
	runner := newStubRunner(t, cfg)
	gate := &stubGate{}
	notifier := &recordingNotifier{}
	svc := NewService(cfg, store, hub, runner, gate, notifier, logging.NewNop())
	return &fixture{
		cfg:      cfg,
		store:    store,
		hub:      hub,
		runner:   runner,
		gate:     gate,
		notifier: notifier,
		service:  svc,
	}
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	if err := f.service.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(f.service.Stop)
}

func TestSubmitProducesBothArtifacts(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	result, err := f.service.Submit(context.Background(), Request{
		SourceName:   "rose-pattern.png",
		ImagePayload: testsupport.TinyPNGBase64(t),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	for name, image := range map[string]string{
		"print":  result.PrintImage,
		"mockup": result.MockupImage,
	} {
		if !strings.HasPrefix(image, "data:image/png;base64,") {
			t.Errorf("%s image is not a PNG data URI", name)
		}
	}
	if result.PrintPath != f.cfg.PrintOutputPath() {
		t.Errorf("print path = %q, want %q", result.PrintPath, f.cfg.PrintOutputPath())
	}
	if result.MockupPath != f.cfg.MockupOutputPath() {
		t.Errorf("mockup path = %q, want %q", result.MockupPath, f.cfg.MockupOutputPath())
	}

	job, err := f.store.GetByID(context.Background(), result.JobID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if job.Status != queue.StatusCompleted {
		t.Errorf("job status = %s, want completed", job.Status)
	}
	if job.ProgressPercent != 100 {
		t.Errorf("progress = %v, want 100", job.ProgressPercent)
	}
}

func TestSubmitRejectsMalformedPayloadBeforeEnqueue(t *testing.T) {
	f := newFixture(t)
	// Service deliberately not started: a decode failure must never reach the
	// queue at all.

	_, err := f.service.Submit(context.Background(), Request{
		SourceName:   "bad.png",
		ImagePayload: "definitely not base64",
	})
	if !errors.Is(err, services.ErrDecode) {
		t.Fatalf("expected decode error, got %v", err)
	}

	pending, err := f.store.PendingCount(context.Background())
	if err != nil {
		t.Fatalf("PendingCount: %v", err)
	}
	if pending != 0 {
		t.Fatalf("pending = %d, want 0 after rejected submit", pending)
	}
}

func TestJobsProcessedOneAtATimeInOrder(t *testing.T) {
	f := newFixture(t)
	payload := testsupport.TinyPNGBase64(t)
	names := []string{"first.png", "second.png", "third.png"}

	// Enqueue all jobs before the worker starts so arrival order is fixed.
	var wg sync.WaitGroup
	errs := make([]error, len(names))
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			_, errs[i] = f.service.Submit(context.Background(), Request{SourceName: name, ImagePayload: payload})
		}(i, name)

		deadline := time.Now().Add(5 * time.Second)
		for {
			pending, err := f.store.PendingCount(context.Background())
			if err != nil {
				t.Fatalf("PendingCount: %v", err)
			}
			if pending == i+1 {
				break
			}
			if time.Now().After(deadline) {
				t.Fatalf("job %d never became pending", i)
			}
			time.Sleep(5 * time.Millisecond)
		}
	}

	f.start(t)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("submit %d failed: %v", i, err)
		}
	}

	if observed := atomic.LoadInt32(&f.runner.maxActive); observed > 1 {
		t.Fatalf("editor invoked concurrently: max active = %d", observed)
	}

	f.notifier.mu.Lock()
	completed := append([]string(nil), f.notifier.completed...)
	f.notifier.mu.Unlock()
	if len(completed) != len(names) {
		t.Fatalf("completed %d jobs, want %d", len(completed), len(names))
	}
	for i, name := range names {
		if completed[i] != name {
			t.Fatalf("completion order %v, want %v", completed, names)
		}
	}
}

func TestFailedJobDoesNotBlockQueue(t *testing.T) {
	f := newFixture(t)
	f.runner.failNext = 1
	payload := testsupport.TinyPNGBase64(t)

	var wg sync.WaitGroup
	var firstErr, secondErr error

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = f.service.Submit(context.Background(), Request{SourceName: "doomed.png", ImagePayload: payload})
	}()
	deadline := time.Now().Add(5 * time.Second)
	for {
		pending, err := f.store.PendingCount(context.Background())
		if err != nil {
			t.Fatalf("PendingCount: %v", err)
		}
		if pending == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first job never became pending")
		}
		time.Sleep(5 * time.Millisecond)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, secondErr = f.service.Submit(context.Background(), Request{SourceName: "fine.png", ImagePayload: payload})
	}()

	f.start(t)
	wg.Wait()

	if !errors.Is(firstErr, services.ErrExternalTool) {
		t.Fatalf("first job error = %v, want external tool failure", firstErr)
	}
	if secondErr != nil {
		t.Fatalf("second job failed: %v", secondErr)
	}

	jobs, err := f.store.List(context.Background(), queue.StatusFailed)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 1 || jobs[0].SourceName != "doomed.png" {
		t.Fatalf("expected exactly the doomed job failed, got %+v", jobs)
	}
	if jobs[0].ErrorMessage == "" {
		t.Fatal("failed job has no error message")
	}
}

func TestBusyEditorFailsJob(t *testing.T) {
	f := newFixture(t)
	f.gate.err = services.Wrap(services.ErrEditorBusy, "", "await editor", "editor still running after 2s", nil)
	f.start(t)

	_, err := f.service.Submit(context.Background(), Request{
		SourceName:   "blocked.png",
		ImagePayload: testsupport.TinyPNGBase64(t),
	})
	if !errors.Is(err, services.ErrEditorBusy) {
		t.Fatalf("expected editor-busy error, got %v", err)
	}

	jobs, listErr := f.store.List(context.Background(), queue.StatusFailed)
	if listErr != nil {
		t.Fatalf("List: %v", listErr)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected 1 failed job, got %d", len(jobs))
	}
	f.runner.mu.Lock()
	calls := len(f.runner.calls)
	f.runner.mu.Unlock()
	if calls != 0 {
		t.Fatalf("editor was invoked despite busy gate: %d calls", calls)
	}
}

func TestSerialSubmitsNeverSpuriouslyFail(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	payload := testsupport.TinyPNGBase64(t)

	// A freshly inserted row must never be picked up before its payload and
	// waiter are registered. Valid submissions against a hot worker therefore
	// all succeed, regardless of where the worker is in its poll cycle.
	const submissions = 40
	for i := 0; i < submissions; i++ {
		result, err := f.service.Submit(context.Background(), Request{
			SourceName:   fmt.Sprintf("pattern-%03d.png", i),
			ImagePayload: payload,
		})
		if err != nil {
			t.Fatalf("submission %d failed: %v", i, err)
		}
		if result == nil || result.PrintImage == "" {
			t.Fatalf("submission %d returned no artifacts", i)
		}
	}

	jobs, err := f.store.List(context.Background(), queue.StatusFailed)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("%d jobs failed out of %d valid submissions: first error %q",
			len(jobs), submissions, jobs[0].ErrorMessage)
	}
}

func TestStopMidStagePersistsFailure(t *testing.T) {
	f := newFixture(t)
	f.runner.mu.Lock()
	f.runner.skipArtifacts = true
	f.runner.mu.Unlock()
	f.start(t)

	payload := testsupport.TinyPNGBase64(t)
	done := make(chan error, 1)
	go func() {
		_, err := f.service.Submit(context.Background(), Request{
			SourceName:   "interrupted.png",
			ImagePayload: payload,
		})
		done <- err
	}()

	// Wait for the worker to be inside the print stage's artifact wait.
	deadline := time.Now().Add(5 * time.Second)
	for {
		jobs, err := f.store.List(context.Background(), queue.StatusRendering)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(jobs) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("job never reached the rendering stage")
		}
		time.Sleep(5 * time.Millisecond)
	}

	f.service.Stop()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("interrupted submission reported success")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("submission did not settle after stop")
	}

	// The failure must be persisted even though the worker context is gone.
	jobs, err := f.store.List(context.Background(), queue.StatusFailed)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected the interrupted job persisted as failed, got %d failed jobs", len(jobs))
	}
	if jobs[0].ErrorMessage == "" {
		t.Fatal("persisted failure has no error message")
	}
}

func TestQueueStatusReflectsBacklog(t *testing.T) {
	f := newFixture(t)

	status, err := f.service.QueueStatus(context.Background())
	if err != nil {
		t.Fatalf("QueueStatus: %v", err)
	}
	if status.QueueLength != 0 || status.IsProcessing {
		t.Fatalf("expected idle status, got %+v", status)
	}

	testsupport.NewJob(t, f.store, "waiting.png")
	status, err = f.service.QueueStatus(context.Background())
	if err != nil {
		t.Fatalf("QueueStatus: %v", err)
	}
	if status.QueueLength != 1 {
		t.Fatalf("queue length = %d, want 1", status.QueueLength)
	}
}

func TestSubmitProgressEventsReachSubscribers(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	since := f.hub.NextSequence()
	if _, err := f.service.Submit(context.Background(), Request{
		SourceName:   "tracked.png",
		ImagePayload: testsupport.TinyPNGBase64(t),
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	events, _, err := f.hub.Fetch(ctx, since, 100, false)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(events) == 0 {
		t.Fatal("no progress events published")
	}

	var sawFinal bool
	lastPercent := -1.0
	for _, event := range events {
		if event.Percent == 100 && event.Stage == 4 {
			sawFinal = true
		}
		if event.Percent < 0 || event.Percent > 100 {
			t.Fatalf("percent out of range: %v", event.Percent)
		}
		if event.Error == "" && event.Percent < lastPercent {
			t.Fatalf("progress went backwards: %v after %v", event.Percent, lastPercent)
		}
		lastPercent = event.Percent
	}
	if !sawFinal {
		t.Fatal("no terminal 100%% event at stage 4")
	}
}
