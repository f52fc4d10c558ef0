package exporting

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"patternpress/internal/config"
	"patternpress/internal/editor"
	"patternpress/internal/imagefile"
	"patternpress/internal/logging"
	"patternpress/internal/notifications"
	"patternpress/internal/progress"
	"patternpress/internal/queue"
)

// ScriptRunner is the editor invocation contract the pipeline depends on.
type ScriptRunner interface {
	RunScript(ctx context.Context, scriptPath string) (editor.RunResult, error)
}

// LivenessGate serializes access to the non-reentrant editor process.
type LivenessGate interface {
	Await(ctx context.Context) error
	Running() bool
}

// Request describes one export submission.
type Request struct {
	SourceName   string
	ImagePayload string
	BatchID      string
}

// Result carries both pipeline outputs back to the submitter.
type Result struct {
	JobID       int64
	PrintImage  string
	MockupImage string
	PrintPath   string
	MockupPath  string
}

// Status summarizes queue state for the API.
type Status struct {
	QueueLength  int
	IsProcessing bool
	CurrentJobID int64
}

type outcome struct {
	result *Result
	err    error
}

// Service owns the export backlog, the single worker, and the in-flight
// bookkeeping request handlers observe. Construct once at process start and
// share by reference.
type Service struct {
	cfg      *config.Config
	store    *queue.Store
	hub      *progress.Hub
	runner   ScriptRunner
	gate     LivenessGate
	notifier notifications.Service
	logger   *slog.Logger

	pollInterval time.Duration
	retryDelay   time.Duration

	mu           sync.Mutex
	running      bool
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	payloads     map[int64][]byte
	waiters      map[int64]chan outcome
	processing   bool
	currentJobID int64

	wake chan struct{}
}

// NewService constructs the pipeline service.
func NewService(cfg *config.Config, store *queue.Store, hub *progress.Hub, runner ScriptRunner, gate LivenessGate, notifier notifications.Service, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		cfg:          cfg,
		store:        store,
		hub:          hub,
		runner:       runner,
		gate:         gate,
		notifier:     notifier,
		logger:       logging.NewComponentLogger(logger, "exporting"),
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		retryDelay:   time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
		payloads:     make(map[int64][]byte),
		waiters:      make(map[int64]chan outcome),
		wake:         make(chan struct{}, 1),
	}
}

// Start begins background queue processing.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("exporting service already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.wg.Add(1)
	go s.runWorker(runCtx)
	return nil
}

// Stop terminates background processing and waits for the worker to finish
// its current job.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
}

// Submit enqueues one export and blocks until that job settles. The decode
// happens eagerly so malformed payloads fail before anything is queued or
// any editor invocation happens.
func (s *Service) Submit(ctx context.Context, req Request) (*Result, error) {
	payload, err := imagefile.DecodePayload(req.ImagePayload)
	if err != nil {
		return nil, err
	}

	// The row is visible to the worker as soon as the insert commits, and the
	// worker reads the payload map under s.mu, so the insert and the map
	// writes must land in the same critical section. Registering after
	// releasing the lock would let an idle worker pick the job up payloadless.
	s.mu.Lock()
	job, err := s.store.NewJob(ctx, req.SourceName, req.BatchID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	waiter := make(chan outcome, 1)
	s.payloads[job.ID] = payload
	s.waiters[job.ID] = waiter
	s.mu.Unlock()

	s.poke()

	select {
	case <-ctx.Done():
		// The job is not cancellable once accepted; the submitter just stops
		// waiting for it.
		return nil, ctx.Err()
	case out := <-waiter:
		return out.result, out.err
	}
}

// QueueStatus reports backlog length and the in-flight job.
func (s *Service) QueueStatus(ctx context.Context) (Status, error) {
	pending, err := s.store.PendingCount(ctx)
	if err != nil {
		return Status{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		QueueLength:  pending,
		IsProcessing: s.processing,
		CurrentJobID: s.currentJobID,
	}, nil
}

// EditorRunning reports the liveness gate's view of the editor process.
func (s *Service) EditorRunning() bool {
	return s.gate.Running()
}

func (s *Service) poke() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Service) runWorker(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := s.store.NextPending(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error("failed to fetch next queue job",
				logging.Error(err),
				logging.String(logging.FieldEventType, "queue_fetch_failed"),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
			if !s.sleep(ctx, s.retryDelay) {
				return
			}
			continue
		}
		if job == nil {
			if !s.waitForJobOrShutdown(ctx) {
				return
			}
			continue
		}

		s.processJob(ctx, job)
	}
}

func (s *Service) waitForJobOrShutdown(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-s.wake:
		return true
	case <-time.After(s.pollInterval):
		return true
	}
}

func (s *Service) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func (s *Service) processJob(ctx context.Context, job *queue.Job) {
	jobCtx := logging.WithJobID(ctx, job.ID)
	logger := logging.WithContext(jobCtx, s.logger)

	s.mu.Lock()
	payload, hasPayload := s.payloads[job.ID]
	delete(s.payloads, job.ID)
	s.processing = true
	s.currentJobID = job.ID
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.processing = false
		s.currentJobID = 0
		s.mu.Unlock()
	}()

	logger.Info("export started",
		logging.String(logging.FieldEventType, "export_start"),
		logging.String("source_name", job.SourceName),
	)

	if !hasPayload {
		s.fail(jobCtx, logger, job, errors.New("input payload unavailable"))
		return
	}

	s.publish(jobCtx, job, stagePrepare, 0, "Waiting for editor to close")
	if err := s.gate.Await(jobCtx); err != nil {
		s.fail(jobCtx, logger, job, err)
		return
	}

	result, err := s.runPipeline(jobCtx, logger, job, payload)
	if err != nil {
		s.fail(jobCtx, logger, job, err)
		return
	}

	job.Status = queue.StatusCompleted
	if updateErr := s.store.Update(jobCtx, job); updateErr != nil {
		logger.Error("failed to persist job completion", logging.Error(updateErr))
	}

	logger.Info("export completed",
		logging.String(logging.FieldEventType, "export_complete"),
		logging.String("print_path", result.PrintPath),
		logging.String("mockup_path", result.MockupPath),
	)

	if err := s.notifier.NotifyExportCompleted(jobCtx, job.ID, job.SourceName); err != nil {
		logger.Debug("completion notification failed", logging.Error(err))
	}

	s.deliver(job.ID, outcome{result: result})
}

func (s *Service) fail(ctx context.Context, logger *slog.Logger, job *queue.Job, stageErr error) {
	message := servicesMessage(stageErr)

	s.hub.Publish(progress.Event{
		JobID:   job.ID,
		BatchID: job.BatchID,
		Stage:   stageNumber(job.Status),
		Percent: 0,
		Message: message,
		Error:   message,
	})

	// Shutdown cancels the worker context mid-stage; the failure row still has
	// to land so the queue reflects reality at next start.
	updateCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		updateCtx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}

	job.SetFailed(message)
	if err := s.store.Update(updateCtx, job); err != nil {
		logger.Error("failed to persist job failure", logging.Error(err))
	}

	logger.Error("export failed",
		logging.String(logging.FieldEventType, "export_failure"),
		logging.String("error_message", message),
		logging.Error(stageErr),
	)

	if err := s.notifier.NotifyExportFailed(ctx, job.ID, job.SourceName, message); err != nil {
		logger.Debug("failure notification failed", logging.Error(err))
	}

	s.deliver(job.ID, outcome{err: stageErr})
}

func (s *Service) deliver(jobID int64, out outcome) {
	s.mu.Lock()
	waiter := s.waiters[jobID]
	delete(s.waiters, jobID)
	s.mu.Unlock()

	if waiter != nil {
		waiter <- out
	}
}
