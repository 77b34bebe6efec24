package api

import (
	"time"

	"hyperion/internal/fleet"
	"hyperion/internal/queue"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// TaskView describes a media task in a transport-friendly format.
type TaskView struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	AssignedWorker *int64 `json:"assignedWorker,omitempty"`
	Queued         bool   `json:"queued"`
	ErrorMessage   string `json:"errorMessage,omitempty"`
	EnqueuedAt     string `json:"enqueuedAt,omitempty"`
	UpdatedAt      string `json:"updatedAt,omitempty"`
}

// LogEntryView is one audit trail row for API consumers.
type LogEntryView struct {
	WorkerID   *int64 `json:"workerId,omitempty"`
	OldStatus  string `json:"oldStatus,omitempty"`
	NewStatus  string `json:"newStatus"`
	Note       string `json:"note,omitempty"`
	RecordedAt string `json:"recordedAt,omitempty"`
}

// TaskDetail pairs a task with its full audit trail.
type TaskDetail struct {
	Task TaskView       `json:"task"`
	Log  []LogEntryView `json:"log"`
}

// UnitView describes one worker slot for status output.
type UnitView struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	State          string `json:"state"`
	LastPing       string `json:"lastPing,omitempty"`
	DailyTaskCount int    `json:"dailyTaskCount"`
	CurrentTaskID  string `json:"currentTaskId,omitempty"`
}

// FleetView summarizes cluster state for status output.
type FleetView struct {
	Health     string         `json:"health"`
	Active     int            `json:"active"`
	Working    int            `json:"working"`
	QueueDepth int            `json:"queueDepth"`
	TaskStats  map[string]int `json:"taskStats"`
	Units      []UnitView     `json:"units"`
}

// FromTask converts a queue task into its transport representation.
func FromTask(task *queue.Task) TaskView {
	view := TaskView{
		ID:           task.ID,
		Status:       string(task.Status),
		Queued:       task.Queued(),
		ErrorMessage: task.ErrorMessage,
	}
	if task.AssignedWorker != nil {
		worker := *task.AssignedWorker
		view.AssignedWorker = &worker
	}
	view.EnqueuedAt = formatAPITime(task.EnqueuedAt)
	view.UpdatedAt = formatAPITime(task.UpdatedAt)
	return view
}

// FromLogEntry converts one audit row into its transport representation.
func FromLogEntry(entry queue.LogEntry) LogEntryView {
	view := LogEntryView{
		OldStatus: string(entry.OldStatus),
		NewStatus: string(entry.NewStatus),
		Note:      entry.Note,
	}
	if entry.WorkerID != nil {
		worker := *entry.WorkerID
		view.WorkerID = &worker
	}
	view.RecordedAt = formatAPITime(entry.RecordedAt)
	return view
}

// FromSnapshot converts a fleet snapshot into its transport representation.
func FromSnapshot(snapshot *fleet.Snapshot) FleetView {
	view := FleetView{
		Health:     string(snapshot.Health),
		Active:     snapshot.Active,
		Working:    snapshot.Working,
		QueueDepth: snapshot.QueueDepth,
		TaskStats:  make(map[string]int, len(snapshot.TaskStats)),
		Units:      make([]UnitView, 0, len(snapshot.Units)),
	}
	for status, count := range snapshot.TaskStats {
		view.TaskStats[string(status)] = count
	}
	for _, unit := range snapshot.Units {
		unitView := UnitView{
			ID:             unit.ID,
			Name:           unit.Name,
			State:          string(unit.State),
			DailyTaskCount: unit.DailyTaskCount,
			CurrentTaskID:  unit.CurrentTaskID,
		}
		if unit.LastPing != nil {
			unitView.LastPing = formatAPITime(*unit.LastPing)
		}
		view.Units = append(view.Units, unitView)
	}
	return view
}

func formatAPITime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
