package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"patternpress/internal/config"
)

const userAgent = "patternpress/0.1.0"

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifyExportCompleted(ctx context.Context, jobID int64, sourceName string) error
	NotifyExportFailed(ctx context.Context, jobID int64, sourceName, message string) error
	NotifyBatchCompleted(ctx context.Context, total, failed int) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		exports:  cfg.Notifications.Exports,
		errors:   cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	exports  bool
	errors   bool
}

func (n *ntfyService) NotifyExportCompleted(ctx context.Context, jobID int64, sourceName string) error {
	if !n.exports {
		return nil
	}
	name := strings.TrimSpace(sourceName)
	if name == "" {
		name = fmt.Sprintf("job #%d", jobID)
	}
	return n.send(ctx, payload{
		title:   "patternpress - Export Complete",
		message: fmt.Sprintf("Export finished: %s (job #%d)", name, jobID),
		tags:    []string{"patternpress", "export", "completed"},
	})
}

func (n *ntfyService) NotifyExportFailed(ctx context.Context, jobID int64, sourceName, message string) error {
	if !n.errors {
		return nil
	}
	name := strings.TrimSpace(sourceName)
	if name == "" {
		name = fmt.Sprintf("job #%d", jobID)
	}
	detail := strings.TrimSpace(message)
	if detail == "" {
		detail = "unknown error"
	}
	return n.send(ctx, payload{
		title:    "patternpress - Export Failed",
		message:  fmt.Sprintf("Export failed: %s (job #%d): %s", name, jobID, detail),
		tags:     []string{"patternpress", "export", "failed"},
		priority: "high",
	})
}

func (n *ntfyService) NotifyBatchCompleted(ctx context.Context, total, failed int) error {
	if !n.exports {
		return nil
	}
	message := fmt.Sprintf("Batch export finished: %d item(s)", total)
	if failed > 0 {
		message = fmt.Sprintf("Batch export finished: %d item(s), %d failed", total, failed)
	}
	return n.send(ctx, payload{
		title:   "patternpress - Batch Complete",
		message: message,
		tags:    []string{"patternpress", "batch", "completed"},
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:   "patternpress - Test",
		message: "Notifications are configured correctly.",
		tags:    []string{"patternpress", "test"},
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification rejected: %s", resp.Status)
	}
	return nil
}

type noopService struct{}

func (noopService) NotifyExportCompleted(context.Context, int64, string) error { return nil }

func (noopService) NotifyExportFailed(context.Context, int64, string, string) error { return nil }

func (noopService) NotifyBatchCompleted(context.Context, int, int) error { return nil }

func (noopService) TestNotification(context.Context) error { return nil }
