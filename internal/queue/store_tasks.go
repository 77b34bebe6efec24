package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewTask registers a new media task in PENDING status and records the first
// audit log entry. The returned task carries the generated identifier.
func (s *Store) NewTask(ctx context.Context) (*Task, error) {
	id := uuid.NewString()
	now := time.Now().UTC()
	timestamp := formatTime(now)

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO media_tasks (id, status, enqueued_at, status_changed_at, updated_at)
             VALUES (?, ?, ?, ?, ?)`,
			id,
			StatusPending,
			timestamp,
			timestamp,
			timestamp,
		); err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		return appendLog(ctx, tx, id, nil, "", StatusPending, "registered by upload request", now)
	})
	if err != nil {
		return nil, err
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a task by identifier. Returns nil when the task is unknown.
func (s *Store) GetByID(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM media_tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// List returns tasks filtered by status set (or all tasks when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Task, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + taskColumns + ` FROM media_tasks`
	orderClause := ` ORDER BY enqueued_at, id`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// AuditLog returns the append-only log for a task in recording order.
func (s *Store) AuditLog(ctx context.Context, taskID string) ([]LogEntry, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, task_id, worker_id, old_status, new_status, note, recorded_at
         FROM task_logs WHERE task_id = ? ORDER BY id`,
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var (
			entry       LogEntry
			workerID    sql.NullInt64
			oldStatus   sql.NullString
			note        sql.NullString
			recordedRaw string
		)
		if err := rows.Scan(&entry.ID, &entry.TaskID, &workerID, &oldStatus, &entry.NewStatus, &note, &recordedRaw); err != nil {
			return nil, err
		}
		if workerID.Valid {
			id := workerID.Int64
			entry.WorkerID = &id
		}
		entry.OldStatus = Status(oldStatus.String)
		entry.Note = note.String
		if recorded, err := parseTimeString(recordedRaw); err == nil {
			entry.RecordedAt = recorded
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Remove deletes a task, its audit log, and any worker binding referencing it.
// Used by the external deletion path only.
func (s *Store) Remove(ctx context.Context, taskID string) (bool, error) {
	removed := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE workers SET current_task_id = NULL WHERE current_task_id = ?`, taskID); err != nil {
			return fmt.Errorf("clear worker binding: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM media_tasks WHERE id = ?`, taskID)
		if err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		removed = affected > 0
		return nil
	})
	return removed, err
}

// Stats returns a count of tasks grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM media_tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("task stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// QueueDepth counts tasks currently awaiting claim.
func (s *Store) QueueDepth(ctx context.Context) (int, error) {
	var depth int
	err := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM media_tasks
         WHERE status = ? AND assigned_worker IS NULL AND queued_at IS NOT NULL`,
		StatusUploaded,
	).Scan(&depth)
	if err != nil {
		return 0, fmt.Errorf("queue depth: %w", err)
	}
	return depth, nil
}
