package exporting

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"patternpress/internal/logging"
	"patternpress/internal/progress"
)

// BatchItem is one pattern inside a batch export request.
type BatchItem struct {
	ID          string
	Name        string
	ImageBase64 string
}

// BatchItemResult records one item's settlement. Failures live here; the
// batch as a whole always reports success so one bad pattern does not void
// the rest of the run.
type BatchItemResult struct {
	ID          string
	Name        string
	Success     bool
	PrintImage  string
	MockupImage string
	PrintPath   string
	MockupPath  string
	Error       string
}

// RunBatch exports items strictly sequentially, one pipeline job per item.
// The underlying pipeline is exclusive, so there is no concurrency to gain;
// sequencing also keeps the coarse per-item progress honest. Individual
// failures are recorded and the batch continues.
func (s *Service) RunBatch(ctx context.Context, items []BatchItem) []BatchItemResult {
	if len(items) == 0 {
		return nil
	}

	batchID := uuid.NewString()
	batchLogger := s.logger.With(logging.String(logging.FieldBatchID, batchID))
	total := len(items)
	results := make([]BatchItemResult, 0, total)
	failed := 0

	for i, item := range items {
		name := item.Name
		if name == "" {
			name = fmt.Sprintf("pattern %d", i+1)
		}

		s.hub.Publish(progress.Event{
			BatchID: batchID,
			Stage:   0,
			Percent: float64(i) / float64(total) * 100,
			Message: fmt.Sprintf("Exporting %d/%d: %s", i+1, total, name),
		})

		result, err := s.Submit(ctx, Request{
			SourceName:   name,
			ImagePayload: item.ImageBase64,
			BatchID:      batchID,
		})
		if err != nil {
			failed++
			batchLogger.Warn("batch item failed",
				logging.String(logging.FieldEventType, "batch_item_failed"),
				logging.Int("item_index", i),
				logging.String("item_name", name),
				logging.Error(err),
			)
			results = append(results, BatchItemResult{
				ID:      item.ID,
				Name:    item.Name,
				Success: false,
				Error:   servicesMessage(err),
			})
			continue
		}

		results = append(results, BatchItemResult{
			ID:          item.ID,
			Name:        item.Name,
			Success:     true,
			PrintImage:  result.PrintImage,
			MockupImage: result.MockupImage,
			PrintPath:   result.PrintPath,
			MockupPath:  result.MockupPath,
		})
	}

	s.hub.Publish(progress.Event{
		BatchID: batchID,
		Stage:   0,
		Percent: 100,
		Message: fmt.Sprintf("Batch complete: %d/%d succeeded", total-failed, total),
	})

	if err := s.notifier.NotifyBatchCompleted(ctx, total, failed); err != nil {
		batchLogger.Debug("batch notification failed", logging.Error(err))
	}

	return results
}
