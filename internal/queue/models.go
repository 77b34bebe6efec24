package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a media task.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusUploaded   Status = "UPLOADED"
	StatusExtracting Status = "EXTRACTING"
	StatusProcessing Status = "PROCESSING"
	StatusReady      Status = "READY"
	StatusFailed     Status = "FAILED"
)

// DefaultFailedReason is used when a task is failed without a diagnostic note.
const DefaultFailedReason = "Failed for unknown reason"

var allStatuses = []Status{
	StatusPending,
	StatusUploaded,
	StatusExtracting,
	StatusProcessing,
	StatusReady,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToUpper(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Task represents one unit of processable work tied to a media item.
type Task struct {
	ID              string
	Status          Status
	AssignedWorker  *int64
	ErrorMessage    string
	EnqueuedAt      time.Time
	QueuedAt        *time.Time
	StatusChangedAt time.Time
	UpdatedAt       time.Time
}

// Queued reports whether the task currently sits in the claimable queue.
func (t *Task) Queued() bool {
	return t != nil && t.QueuedAt != nil
}

// IsTerminal reports whether the task has reached a terminal status.
func (t *Task) IsTerminal() bool {
	return t != nil && IsTerminal(t.Status)
}

// LogEntry is one immutable row of a task's append-only audit trail.
type LogEntry struct {
	ID         int64
	TaskID     string
	WorkerID   *int64
	OldStatus  Status
	NewStatus  Status
	Note       string
	RecordedAt time.Time
}

// Worker is the persisted state of one fixed fleet slot.
type Worker struct {
	ID             int64
	DisplayName    string
	LastPing       *time.Time
	DailyTaskCount int
	LastResetDate  string
	CurrentTaskID  string
}

// Online reports whether the worker pinged within threshold of now.
func (w *Worker) Online(now time.Time, threshold time.Duration) bool {
	if w == nil || w.LastPing == nil {
		return false
	}
	return now.Sub(*w.LastPing) < threshold
}
