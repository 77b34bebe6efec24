package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"hyperion/internal/config"
	"hyperion/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyTaskReady(context.Background(), "task-1", "Helios"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		notify         func(svc notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "task ready",
			notify: func(svc notifications.Service) error {
				return svc.NotifyTaskReady(context.Background(), "3f7a", "Helios")
			},
			expectTitle:   "Hyperion - Task Ready",
			expectMessage: "Task 3f7a completed by Helios",
			expectTags:    "hyperion,task,ready",
		},
		{
			name: "task failed",
			notify: func(svc notifications.Service) error {
				return svc.NotifyTaskFailed(context.Background(), "3f7a", "checksum mismatch")
			},
			expectTitle:    "Hyperion - Task Failed",
			expectMessage:  "Task 3f7a failed: checksum mismatch",
			expectTags:     "hyperion,task,failed",
			expectPriority: "high",
		},
		{
			name: "task reclaimed",
			notify: func(svc notifications.Service) error {
				return svc.NotifyTaskReclaimed(context.Background(), "3f7a", "Cronus")
			},
			expectTitle:   "Hyperion - Task Reclaimed",
			expectMessage: "Task 3f7a reclaimed from offline worker Cronus and requeued",
			expectTags:    "hyperion,reaper,reclaimed",
		},
		{
			name: "upload stalled",
			notify: func(svc notifications.Service) error {
				return svc.NotifyUploadStalled(context.Background(), "3f7a", 11*time.Minute)
			},
			expectTitle:   "Hyperion - Upload Stalled",
			expectMessage: "Task 3f7a has waited 11m0s without a worker claim",
			expectTags:    "hyperion,queue,stalled",
		},
		{
			name: "status transition",
			notify: func(svc notifications.Service) error {
				return svc.PublishTransition(context.Background(), "3f7a", "UPLOADED", "EXTRACTING", "Eos")
			},
			expectTitle:    "Hyperion - Status Change",
			expectMessage:  "Task 3f7a: UPLOADED to EXTRACTING (worker Eos)",
			expectTags:     "hyperion,transition",
			expectPriority: "low",
		},
		{
			name: "degraded cluster",
			notify: func(svc notifications.Service) error {
				return svc.NotifyClusterHealth(context.Background(), "Degraded", 2, 7)
			},
			expectTitle:    "Hyperion - Cluster Health",
			expectMessage:  "Cluster is Degraded: 2 workers active, 7 tasks queued",
			expectTags:     "hyperion,cluster,health",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Fatalf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Fatalf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := tc.notify(svc); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceReportsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	svc := notifications.NewService(&cfg)
	if err := svc.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
