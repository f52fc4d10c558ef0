package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"patternpress/internal/api"
	"patternpress/internal/config"
	"patternpress/internal/exporting"
	"patternpress/internal/logging"
	"patternpress/internal/queue"
	"patternpress/internal/services"
)

const sseKeepaliveInterval = 15 * time.Second

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", srv.handleHealth)
	mux.HandleFunc("/api/queue-status", srv.handleQueueStatus)
	mux.HandleFunc("/api/export-mockup", srv.handleExport)
	mux.HandleFunc("/api/export-batch", srv.handleExportBatch)
	mux.HandleFunc("/api/progress", srv.handleProgress)
	mux.HandleFunc("/api/queue", srv.handleQueue)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		// Exports and SSE streams hold connections open indefinitely, so no
		// blanket read/write timeouts here.
		IdleTimeout: 60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return errors.New("api bind address not configured")
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	s.writeJSON(w, http.StatusOK, api.HealthResponse{
		Status:        "ok",
		EditorRunning: status.EditorRunning,
		QueueLength:   status.Queue.QueueLength,
		IsProcessing:  status.Queue.IsProcessing,
	})
}

func (s *apiServer) handleQueueStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status, err := s.daemon.exporter.QueueStatus(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.QueueStatusResponse{
		QueueLength:  status.QueueLength,
		IsProcessing: status.IsProcessing,
		CurrentJobID: status.CurrentJobID,
	})
}

func (s *apiServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.ExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := s.daemon.exporter.Submit(r.Context(), exporting.Request{
		SourceName:   req.Name,
		ImagePayload: req.ImageBase64,
	})
	if err != nil {
		s.writeExportError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, api.ExportResponse{
		Success:     true,
		PrintImage:  result.PrintImage,
		MockupImage: result.MockupImage,
		PrintPath:   result.PrintPath,
		MockupPath:  result.MockupPath,
	})
}

func (s *apiServer) handleExportBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	items := make([]exporting.BatchItem, len(req.Patterns))
	for i, pattern := range req.Patterns {
		items[i] = exporting.BatchItem{
			ID:          pattern.ID,
			Name:        pattern.Name,
			ImageBase64: pattern.ImageBase64,
		}
	}

	results := s.daemon.exporter.RunBatch(r.Context(), items)
	converted := make([]api.BatchItemResult, len(results))
	for i, result := range results {
		converted[i] = api.BatchItemResult{
			ID:          result.ID,
			Name:        result.Name,
			Success:     result.Success,
			PrintImage:  result.PrintImage,
			MockupImage: result.MockupImage,
			Error:       result.Error,
		}
	}

	s.writeJSON(w, http.StatusOK, api.BatchResponse{
		Success: true,
		Results: converted,
	})
}

// handleProgress streams pipeline progress as server-sent events. Each
// subscriber starts at the current sequence: no replay of past events.
func (s *apiServer) handleProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	hub := s.daemon.hub
	since := hub.NextSequence()

	for {
		fetchCtx, cancel := context.WithTimeout(r.Context(), sseKeepaliveInterval)
		events, _, err := hub.Fetch(fetchCtx, since, 100, true)
		cancel()

		if r.Context().Err() != nil {
			return
		}
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return
		}

		if len(events) == 0 {
			// Idle: emit a comment so intermediaries keep the connection open.
			if _, writeErr := fmt.Fprint(w, ": keepalive\n\n"); writeErr != nil {
				return
			}
			flusher.Flush()
			continue
		}

		for _, event := range events {
			data, marshalErr := json.Marshal(event)
			if marshalErr != nil {
				s.logger.Error("failed to encode progress event", logging.Error(marshalErr))
				continue
			}
			if _, writeErr := fmt.Fprintf(w, "data: %s\n\n", data); writeErr != nil {
				// A dead subscriber only ends its own stream.
				return
			}
			since = event.Sequence
		}
		flusher.Flush()
	}
}

func (s *apiServer) handleQueue(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		var statuses []queue.Status
		for _, value := range r.URL.Query()["status"] {
			trimmed := strings.TrimSpace(value)
			if trimmed == "" {
				continue
			}
			status, ok := queue.ParseStatus(trimmed)
			if !ok {
				s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", trimmed))
				return
			}
			statuses = append(statuses, status)
		}

		jobs, err := s.daemon.ListQueue(r.Context(), statuses)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		converted := make([]api.QueueJob, 0, len(jobs))
		for _, job := range jobs {
			converted = append(converted, convertJob(job))
		}
		s.writeJSON(w, http.StatusOK, api.QueueListResponse{Jobs: converted})
	case http.MethodDelete:
		removed, err := s.daemon.ClearQueue(r.Context())
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, api.QueueClearResponse{Removed: removed})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func convertJob(job *queue.Job) api.QueueJob {
	out := api.QueueJob{
		ID:              job.ID,
		SourceName:      job.SourceName,
		BatchID:         job.BatchID,
		Status:          string(job.Status),
		ProgressStage:   job.ProgressStage,
		ProgressPercent: job.ProgressPercent,
		ProgressMessage: job.ProgressMessage,
		ErrorMessage:    job.ErrorMessage,
		PrintPath:       job.PrintPath,
		MockupPath:      job.MockupPath,
	}
	if !job.CreatedAt.IsZero() {
		out.CreatedAt = job.CreatedAt.Format(time.RFC3339)
	}
	if !job.UpdatedAt.IsZero() {
		out.UpdatedAt = job.UpdatedAt.Format(time.RFC3339)
	}
	return out
}

// writeExportError maps pipeline failures onto HTTP statuses: decode problems
// are the caller's fault, a missing editor or script is a 404, an artifact
// that never appeared is a gateway timeout, everything else is a 500.
func (s *apiServer) writeExportError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrDecode):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrTimeout):
		status = http.StatusGatewayTimeout
	}
	s.writeError(w, status, services.Message(err))
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Success: false, Error: message})
}
