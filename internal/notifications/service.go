package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"hyperion/internal/config"
)

const userAgent = "Hyperion-Go/0.1.0"

// Service defines the notification surface exposed to fleet components.
type Service interface {
	NotifyTaskReady(ctx context.Context, taskID, workerName string) error
	NotifyTaskFailed(ctx context.Context, taskID, reason string) error
	NotifyTaskReclaimed(ctx context.Context, taskID, workerName string) error
	NotifyUploadStalled(ctx context.Context, taskID string, waiting time.Duration) error
	NotifyClusterHealth(ctx context.Context, health string, activeWorkers, queueDepth int) error
	// PublishTransition reports one committed status change. Called for every
	// transition, not just terminal ones.
	PublishTransition(ctx context.Context, taskID, oldStatus, newStatus, workerName string) error
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

	client := &http.Client{Timeout: timeout}
	return &ntfyService{
		endpoint: topic,
		client:   client,
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
}

func (n *ntfyService) NotifyTaskReady(ctx context.Context, taskID, workerName string) error {
	taskID = strings.TrimSpace(taskID)
	workerName = strings.TrimSpace(workerName)
	if workerName == "" {
		workerName = "unknown"
	}
	data := payload{
		title:   "Hyperion - Task Ready",
		message: fmt.Sprintf("Task %s completed by %s", taskID, workerName),
		tags:    []string{"hyperion", "task", "ready"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyTaskFailed(ctx context.Context, taskID, reason string) error {
	taskID = strings.TrimSpace(taskID)
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown"
	}
	data := payload{
		title:    "Hyperion - Task Failed",
		message:  fmt.Sprintf("Task %s failed: %s", taskID, reason),
		tags:     []string{"hyperion", "task", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyTaskReclaimed(ctx context.Context, taskID, workerName string) error {
	taskID = strings.TrimSpace(taskID)
	workerName = strings.TrimSpace(workerName)
	data := payload{
		title:   "Hyperion - Task Reclaimed",
		message: fmt.Sprintf("Task %s reclaimed from offline worker %s and requeued", taskID, workerName),
		tags:    []string{"hyperion", "reaper", "reclaimed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyUploadStalled(ctx context.Context, taskID string, waiting time.Duration) error {
	taskID = strings.TrimSpace(taskID)
	waiting = waiting.Round(time.Second)
	if waiting < 0 {
		waiting = 0
	}
	data := payload{
		title:   "Hyperion - Upload Stalled",
		message: fmt.Sprintf("Task %s has waited %s without a worker claim", taskID, waiting),
		tags:    []string{"hyperion", "queue", "stalled"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyClusterHealth(ctx context.Context, health string, activeWorkers, queueDepth int) error {
	health = strings.TrimSpace(health)
	data := payload{
		title:   "Hyperion - Cluster Health",
		message: fmt.Sprintf("Cluster is %s: %d workers active, %d tasks queued", health, activeWorkers, queueDepth),
		tags:    []string{"hyperion", "cluster", "health"},
	}
	if health == "Degraded" {
		data.priority = "high"
	}
	return n.send(ctx, data)
}

func (n *ntfyService) PublishTransition(ctx context.Context, taskID, oldStatus, newStatus, workerName string) error {
	taskID = strings.TrimSpace(taskID)
	message := fmt.Sprintf("Task %s: %s to %s", taskID, oldStatus, newStatus)
	if workerName = strings.TrimSpace(workerName); workerName != "" {
		message += fmt.Sprintf(" (worker %s)", workerName)
	}
	data := payload{
		title:    "Hyperion - Status Change",
		message:  message,
		tags:     []string{"hyperion", "transition"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Hyperion - Test",
		message:  "Notification system test",
		tags:     []string{"hyperion", "test"},
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

func (noopService) NotifyTaskReady(context.Context, string, string) error          { return nil }
func (noopService) NotifyTaskFailed(context.Context, string, string) error         { return nil }
func (noopService) NotifyTaskReclaimed(context.Context, string, string) error      { return nil }
func (noopService) NotifyUploadStalled(context.Context, string, time.Duration) error {
	return nil
}
func (noopService) NotifyClusterHealth(context.Context, string, int, int) error { return nil }
func (noopService) PublishTransition(context.Context, string, string, string, string) error {
	return nil
}
func (noopService) TestNotification(context.Context) error { return nil }
