package api

import (
	"context"
	"errors"
	"fmt"

	"hyperion/internal/config"
	"hyperion/internal/fleet"
	"hyperion/internal/queue"
)

// ErrTaskNotFound is returned when an operation targets an unknown task.
var ErrTaskNotFound = errors.New("task not found")

// RegisterUpload creates a PENDING task for an announced upload and returns
// the identifier the uploader must confirm against.
func RegisterUpload(ctx context.Context, store *queue.Store) (TaskView, error) {
	task, err := store.NewTask(ctx)
	if err != nil {
		return TaskView{}, fmt.Errorf("register upload: %w", err)
	}
	return FromTask(task), nil
}

// ConfirmUpload marks a registered upload as landed and places the task in
// the claim queue. Confirming twice is rejected as a stale transition.
func ConfirmUpload(ctx context.Context, store *queue.Store, taskID string) (TaskView, error) {
	task, err := store.GetByID(ctx, taskID)
	if err != nil {
		return TaskView{}, err
	}
	if task == nil {
		return TaskView{}, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}

	updated, err := store.Transition(ctx, queue.TransitionRequest{
		TaskID: taskID,
		From:   queue.StatusPending,
		To:     queue.StatusUploaded,
		Note:   "upload confirmed",
	})
	if err != nil {
		return TaskView{}, err
	}
	if _, err := store.Enqueue(ctx, taskID); err != nil {
		return TaskView{}, err
	}
	refreshed, err := store.GetByID(ctx, taskID)
	if err != nil {
		return TaskView{}, err
	}
	if refreshed != nil {
		updated = refreshed
	}
	return FromTask(updated), nil
}

// FailUpload records an upload failure reported by the uploader.
func FailUpload(ctx context.Context, store *queue.Store, taskID, reason string) (TaskView, error) {
	task, err := store.GetByID(ctx, taskID)
	if err != nil {
		return TaskView{}, err
	}
	if task == nil {
		return TaskView{}, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}

	updated, err := store.Transition(ctx, queue.TransitionRequest{
		TaskID: taskID,
		From:   queue.StatusPending,
		To:     queue.StatusFailed,
		Note:   reason,
	})
	if err != nil {
		return TaskView{}, err
	}
	return FromTask(updated), nil
}

// EnqueueTask places an uploaded task in the claim queue. Dispatching is
// pull-based: queued tasks are picked up by the next polling worker. The
// boolean reports whether this call added the task; an already queued or
// claimed task is left untouched.
func EnqueueTask(ctx context.Context, store *queue.Store, taskID string) (TaskView, bool, error) {
	task, err := store.GetByID(ctx, taskID)
	if err != nil {
		return TaskView{}, false, err
	}
	if task == nil {
		return TaskView{}, false, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}

	queued, err := store.Enqueue(ctx, taskID)
	if err != nil {
		return TaskView{}, false, err
	}
	refreshed, err := store.GetByID(ctx, taskID)
	if err != nil {
		return TaskView{}, false, err
	}
	if refreshed != nil {
		task = refreshed
	}
	return FromTask(task), queued, nil
}

// DescribeTask returns a task together with its full audit trail.
func DescribeTask(ctx context.Context, store *queue.Store, taskID string) (TaskDetail, error) {
	task, err := store.GetByID(ctx, taskID)
	if err != nil {
		return TaskDetail{}, err
	}
	if task == nil {
		return TaskDetail{}, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	entries, err := store.AuditLog(ctx, taskID)
	if err != nil {
		return TaskDetail{}, err
	}
	detail := TaskDetail{Task: FromTask(task), Log: make([]LogEntryView, 0, len(entries))}
	for _, entry := range entries {
		detail.Log = append(detail.Log, FromLogEntry(entry))
	}
	return detail, nil
}

// ListTasks returns all tasks, optionally filtered to the given statuses.
func ListTasks(ctx context.Context, store *queue.Store, statuses ...queue.Status) ([]TaskView, error) {
	tasks, err := store.List(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	views := make([]TaskView, 0, len(tasks))
	for _, task := range tasks {
		views = append(views, FromTask(task))
	}
	return views, nil
}

// RemoveTask deletes a task and its audit trail. Returns ErrTaskNotFound when
// the task does not exist.
func RemoveTask(ctx context.Context, store *queue.Store, taskID string) error {
	removed, err := store.Remove(ctx, taskID)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	return nil
}

// FleetStatus reports the cluster snapshot for status output.
func FleetStatus(ctx context.Context, cfg *config.Config, store *queue.Store) (FleetView, error) {
	snapshot, err := fleet.NewRegistry(cfg, store).Snapshot(ctx)
	if err != nil {
		return FleetView{}, err
	}
	return FromSnapshot(snapshot), nil
}
