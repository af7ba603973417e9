package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"voxtrace/internal/analysis"
	"voxtrace/internal/config"
)

const userAgent = "Voxtrace-Go/0.1.0"

// Service defines the notification surface exposed to the tracker.
type Service interface {
	NotifyJobTerminal(ctx context.Context, job analysis.Job) error
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
		enabled: map[analysis.LifecycleState]bool{
			analysis.StateCompleted: cfg.Notifications.Completed,
			analysis.StateFailed:    cfg.Notifications.Failed,
			analysis.StateCancelled: cfg.Notifications.Cancelled,
		},
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
	enabled  map[analysis.LifecycleState]bool
}

func (n *ntfyService) NotifyJobTerminal(ctx context.Context, job analysis.Job) error {
	if !n.enabled[job.State] {
		return nil
	}

	var data payload
	switch job.State {
	case analysis.StateCompleted:
		data = payload{
			title:    "Voxtrace - Analysis Complete",
			message:  fmt.Sprintf("Analysis %s finished", job.ID),
			tags:     []string{"voxtrace", "analysis", "completed"},
			priority: "high",
		}
	case analysis.StateFailed:
		message := fmt.Sprintf("Analysis %s failed", job.ID)
		if msg := strings.TrimSpace(job.ErrorMessage); msg != "" {
			message = fmt.Sprintf("%s: %s", message, msg)
		}
		data = payload{
			title:    "Voxtrace - Analysis Failed",
			message:  message,
			tags:     []string{"voxtrace", "analysis", "failed"},
			priority: "high",
		}
	case analysis.StateCancelled:
		data = payload{
			title:   "Voxtrace - Analysis Cancelled",
			message: fmt.Sprintf("Analysis %s was cancelled", job.ID),
			tags:    []string{"voxtrace", "analysis", "cancelled"},
		}
	default:
		return fmt.Errorf("notify non-terminal job %s in state %s", job.ID, job.State)
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Voxtrace - Test",
		message:  "Notification system test",
		tags:     []string{"voxtrace", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyJobTerminal(context.Context, analysis.Job) error { return nil }

func (noopService) TestNotification(context.Context) error { return nil }
