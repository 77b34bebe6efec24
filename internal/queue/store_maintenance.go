package queue

import (
	"context"
	"fmt"
	"time"
)

// TasksPendingBefore returns PENDING tasks whose last status change happened
// before the cutoff. These uploads were registered but never confirmed.
func (s *Store) TasksPendingBefore(ctx context.Context, cutoff time.Time) ([]*Task, error) {
	return s.tasksInStatusBefore(ctx, StatusPending, cutoff)
}

// TasksUploadedUnclaimedBefore returns UPLOADED tasks no worker has claimed
// since before the cutoff. Queue membership is deliberately not part of the
// predicate: a crash between a status change and its enqueue leaves the task
// unclaimed and unqueued, and those rows need repair, not just a reminder.
func (s *Store) TasksUploadedUnclaimedBefore(ctx context.Context, cutoff time.Time) ([]*Task, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+taskColumns+` FROM media_tasks
         WHERE status = ? AND assigned_worker IS NULL AND status_changed_at < ?
         ORDER BY status_changed_at, id`,
		StatusUploaded,
		formatTime(cutoff),
	)
	if err != nil {
		return nil, fmt.Errorf("query stale queued tasks: %w", err)
	}
	return collectTasks(rows)
}

// OfflineWorkersHoldingTasks returns workers whose last ping is older than the
// cutoff (or who never pinged) while still assigned in-flight or claimed tasks,
// paired with those tasks.
func (s *Store) OfflineWorkersHoldingTasks(ctx context.Context, cutoff time.Time) (map[int64][]*Task, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+taskColumns+` FROM media_tasks
         WHERE assigned_worker IN (
             SELECT id FROM workers WHERE last_ping IS NULL OR last_ping < ?
         )
         ORDER BY assigned_worker, id`,
		formatTime(cutoff),
	)
	if err != nil {
		return nil, fmt.Errorf("query orphaned tasks: %w", err)
	}
	tasks, err := collectTasks(rows)
	if err != nil {
		return nil, err
	}

	held := make(map[int64][]*Task)
	for _, task := range tasks {
		if task.AssignedWorker == nil {
			continue
		}
		held[*task.AssignedWorker] = append(held[*task.AssignedWorker], task)
	}
	return held, nil
}

// LastLogEntry returns the most recent audit entry for a task, or nil when the
// task has no log yet.
func (s *Store) LastLogEntry(ctx context.Context, taskID string) (*LogEntry, error) {
	entries, err := s.AuditLog(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	last := entries[len(entries)-1]
	return &last, nil
}

func (s *Store) tasksInStatusBefore(ctx context.Context, status Status, cutoff time.Time) ([]*Task, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+taskColumns+` FROM media_tasks
         WHERE status = ? AND status_changed_at < ?
         ORDER BY status_changed_at, id`,
		status,
		formatTime(cutoff),
	)
	if err != nil {
		return nil, fmt.Errorf("query %s tasks: %w", status, err)
	}
	return collectTasks(rows)
}
