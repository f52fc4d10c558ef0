// Package api defines the JSON payloads shared between the daemon's HTTP
// surface and the CLI client.
package api

// HealthResponse reports daemon liveness plus a queue snapshot.
type HealthResponse struct {
	Status        string `json:"status"`
	EditorRunning bool   `json:"editorRunning"`
	QueueLength   int    `json:"queueLength"`
	IsProcessing  bool   `json:"isProcessing"`
}

// QueueStatusResponse summarizes the export backlog.
type QueueStatusResponse struct {
	QueueLength  int   `json:"queueLength"`
	IsProcessing bool  `json:"isProcessing"`
	CurrentJobID int64 `json:"currentJobId"`
}

// ExportRequest carries one pattern image for export.
type ExportRequest struct {
	ImageBase64 string `json:"imageBase64"`
	Name        string `json:"name,omitempty"`
}

// ExportResponse returns both pipeline artifacts as PNG data URIs.
type ExportResponse struct {
	Success     bool   `json:"success"`
	PrintImage  string `json:"printImage,omitempty"`
	MockupImage string `json:"mockupImage,omitempty"`
	PrintPath   string `json:"printPath,omitempty"`
	MockupPath  string `json:"mockupPath,omitempty"`
	Error       string `json:"error,omitempty"`
}

// BatchPattern is one entry in a batch export request.
type BatchPattern struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ImageBase64 string `json:"imageBase64"`
}

// BatchRequest carries a set of patterns exported sequentially.
type BatchRequest struct {
	Patterns []BatchPattern `json:"patterns"`
}

// BatchItemResult reports one pattern's outcome inside a batch response.
type BatchItemResult struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Success     bool   `json:"success"`
	PrintImage  string `json:"printImage,omitempty"`
	MockupImage string `json:"mockupImage,omitempty"`
	Error       string `json:"error,omitempty"`
}

// BatchResponse wraps per-item results. Success refers to the batch run
// itself; individual failures live on the items.
type BatchResponse struct {
	Success bool              `json:"success"`
	Results []BatchItemResult `json:"results"`
}

// QueueJob describes a persisted export job in a transport-friendly format.
type QueueJob struct {
	ID              int64   `json:"id"`
	SourceName      string  `json:"sourceName"`
	BatchID         string  `json:"batchId,omitempty"`
	Status          string  `json:"status"`
	ProgressStage   string  `json:"progressStage,omitempty"`
	ProgressPercent float64 `json:"progressPercent"`
	ProgressMessage string  `json:"progressMessage,omitempty"`
	ErrorMessage    string  `json:"errorMessage,omitempty"`
	PrintPath       string  `json:"printPath,omitempty"`
	MockupPath      string  `json:"mockupPath,omitempty"`
	CreatedAt       string  `json:"createdAt,omitempty"`
	UpdatedAt       string  `json:"updatedAt,omitempty"`
}

// QueueListResponse wraps a collection of export jobs.
type QueueListResponse struct {
	Jobs []QueueJob `json:"jobs"`
}

// QueueClearResponse reports how many settled jobs were removed.
type QueueClearResponse struct {
	Removed int64 `json:"removed"`
}

// ErrorResponse is the uniform error payload for failed requests.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
