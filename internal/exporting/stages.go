package exporting

import (
	"context"
	"log/slog"
	"time"

	"patternpress/internal/artifact"
	"patternpress/internal/imagefile"
	"patternpress/internal/logging"
	"patternpress/internal/progress"
	"patternpress/internal/queue"
	"patternpress/internal/services"
)

// Pipeline stage numbers as reported on progress events.
const (
	stagePrepare   = 1
	stageRender    = 2
	stageComposite = 3
	stageFinalize  = 4
)

var stageLabels = map[int]string{
	stagePrepare:   "Prepare",
	stageRender:    "Render Print",
	stageComposite: "Composite Mockup",
	stageFinalize:  "Finalize",
}

func stageNumber(status queue.Status) int {
	switch status {
	case queue.StatusPreparing:
		return stagePrepare
	case queue.StatusRendering:
		return stageRender
	case queue.StatusCompositing:
		return stageComposite
	default:
		return stagePrepare
	}
}

// runPipeline executes the four fixed stages for one job. Stage N+1 never
// starts before stage N's artifact is confirmed settled; any failure aborts
// the remainder and propagates as the job's result.
func (s *Service) runPipeline(ctx context.Context, logger *slog.Logger, job *queue.Job, payload []byte) (*Result, error) {
	printPath := s.cfg.PrintOutputPath()
	mockupPath := s.cfg.MockupOutputPath()

	// Stage 1: persist the caller-supplied image to the well-known input path.
	s.transition(ctx, job, queue.StatusPreparing, stagePrepare, 5, "Saving input image")
	if err := imagefile.WriteFile(s.cfg.InputPath(), payload); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "prepare", "persist input", "", err)
	}
	s.publish(ctx, job, stagePrepare, 10, "Input image saved")

	// Stage 2: render the print-ready file.
	s.transition(ctx, job, queue.StatusRendering, stageRender, 25, "Rendering print file")
	if err := s.runStage(ctx, job, stageRender, s.cfg.Editor.PrintScript, printPath,
		s.cfg.Pipeline.PrintTimeout, 25, 50, "Rendering print file"); err != nil {
		return nil, err
	}
	s.publish(ctx, job, stageRender, 50, "Print file ready")

	// Stage 3: composite the photographic mockup.
	s.transition(ctx, job, queue.StatusCompositing, stageComposite, 55, "Compositing mockup")
	if err := s.runStage(ctx, job, stageComposite, s.cfg.Editor.MockupScript, mockupPath,
		s.cfg.Pipeline.MockupTimeout, 55, 95, "Compositing mockup"); err != nil {
		return nil, err
	}

	// Stage 4: read both artifacts back as transferable payloads.
	printImage, err := imagefile.EncodePayload(printPath)
	if err != nil {
		return nil, err
	}
	mockupImage, err := imagefile.EncodePayload(mockupPath)
	if err != nil {
		return nil, err
	}

	job.PrintPath = printPath
	job.MockupPath = mockupPath
	s.publish(ctx, job, stageFinalize, 100, "Complete")

	logger.Info("pipeline artifacts ready",
		logging.String(logging.FieldEventType, "pipeline_artifacts"),
		logging.String("print_path", printPath),
		logging.String("mockup_path", mockupPath),
	)

	return &Result{
		JobID:       job.ID,
		PrintImage:  printImage,
		MockupImage: mockupImage,
		PrintPath:   printPath,
		MockupPath:  mockupPath,
	}, nil
}

// runStage removes the stale artifact, fires the editor script, and waits
// for the fresh artifact, scaling wait progress into [lo, hi].
func (s *Service) runStage(ctx context.Context, job *queue.Job, stage int, scriptPath, artifactPath string, timeoutSeconds int, lo, hi float64, message string) error {
	if err := imagefile.RemoveIfExists(artifactPath); err != nil {
		return services.Wrap(services.ErrExternalTool, stageLabels[stage], "clear stale artifact", "", err)
	}

	if _, err := s.runner.RunScript(ctx, scriptPath); err != nil {
		return err
	}

	opts := artifact.Options{
		Timeout:      time.Duration(timeoutSeconds) * time.Second,
		PollInterval: time.Duration(s.cfg.Pipeline.PollIntervalMillis) * time.Millisecond,
		SettleDelay:  time.Duration(s.cfg.Pipeline.SettleDelayMillis) * time.Millisecond,
	}
	return artifact.Await(ctx, artifactPath, opts, func(fraction float64) {
		s.publish(ctx, job, stage, lo+(hi-lo)*fraction/100, message)
	})
}

// transition moves the job to a new lifecycle status and announces the stage.
func (s *Service) transition(ctx context.Context, job *queue.Job, status queue.Status, stage int, percent float64, message string) {
	job.Status = status
	job.ProgressStage = stageLabels[stage]
	s.publish(ctx, job, stage, percent, message)
}

// publish persists the job's progress columns and fans the event out to
// subscribers. Persistence failures are logged, never fatal: progress is
// advisory, the pipeline result is what matters.
func (s *Service) publish(ctx context.Context, job *queue.Job, stage int, percent float64, message string) {
	job.ProgressPercent = percent
	job.ProgressMessage = message
	if job.ProgressStage == "" {
		job.ProgressStage = stageLabels[stage]
	}
	if err := s.store.Update(ctx, job); err != nil {
		s.logger.Warn("failed to persist progress", logging.Error(err), logging.Int64(logging.FieldJobID, job.ID))
	}

	s.hub.Publish(progress.Event{
		JobID:   job.ID,
		BatchID: job.BatchID,
		Stage:   stage,
		Percent: percent,
		Message: message,
	})
}

func servicesMessage(err error) string {
	return services.Message(err)
}
