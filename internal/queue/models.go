package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of an export job.
type Status string

const (
	StatusPending     Status = "pending"
	StatusPreparing   Status = "preparing"
	StatusRendering   Status = "rendering"
	StatusCompositing Status = "compositing"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

// RestartReason is the error message set when jobs are failed because the
// daemon restarted underneath them.
const RestartReason = "daemon restarted before job finished"

var allStatuses = []Status{
	StatusPending,
	StatusPreparing,
	StatusRendering,
	StatusCompositing,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusPreparing:   {},
	StatusRendering:   {},
	StatusCompositing: {},
}

// Job represents an export job persisted in SQLite.
type Job struct {
	ID              int64
	SourceName      string
	BatchID         string
	Status          Status
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string
	ErrorMessage    string
	PrintPath       string
	MockupPath      string
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing returns true when the status reflects an in-flight pipeline stage.
func (j Job) IsProcessing() bool {
	_, ok := processingStatuses[j.Status]
	return ok
}

// IsTerminal returns true when the job has settled.
func (j Job) IsTerminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// SetFailed marks the job failed with the provided message.
func (j *Job) SetFailed(message string) {
	j.Status = StatusFailed
	j.ErrorMessage = strings.TrimSpace(message)
	j.ProgressPercent = 0
}

// ProcessingStatusList returns the statuses that indicate an in-flight stage.
func ProcessingStatusList() []Status {
	out := make([]Status, 0, len(processingStatuses))
	for _, status := range allStatuses {
		if _, ok := processingStatuses[status]; ok {
			out = append(out, status)
		}
	}
	return out
}
