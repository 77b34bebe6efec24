package queue

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// TransitionEvent records one committed status change for publication.
type TransitionEvent struct {
	TaskID     string
	From       Status
	To         Status
	WorkerID   *int64
	OccurredAt time.Time
}

// TransitionObserver receives every committed transition. Delivery is
// at-least-once: a transition that commits is always reported, but a caller
// retrying after an ambiguous error may see the same edge twice.
type TransitionObserver func(event TransitionEvent)

// SetTransitionObserver registers the observer. Must be called before the
// store is shared across goroutines.
func (s *Store) SetTransitionObserver(fn TransitionObserver) {
	s.observe = fn
}

// TransitionRequest describes one status change against an observed state.
type TransitionRequest struct {
	TaskID string
	// From is the status the caller observed. The update only applies while
	// the task still carries it; otherwise ErrStaleTransition is returned.
	From Status
	To   Status
	// WorkerID attributes the transition in the audit log. When set it is
	// also enforced as the current assignee, so a worker whose claim was
	// reclaimed or reassigned cannot advance the task.
	WorkerID *int64
	Note     string
}

// Transition applies one edge of the status pipeline. Status, assignment, and
// the audit log entry are committed as a single unit. The updated task is
// returned for the caller to publish.
func (s *Store) Transition(ctx context.Context, req TransitionRequest) (*Task, error) {
	if _, ok := statusSet[req.From]; !ok {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, req.From)
	}
	if _, ok := statusSet[req.To]; !ok {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, req.To)
	}
	if !CanTransition(req.From, req.To) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, req.From, req.To)
	}

	now := time.Now().UTC()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		set := []string{"status = ?", "status_changed_at = ?", "updated_at = ?"}
		args := []any{req.To, formatTime(now), formatTime(now)}

		if !IsInFlight(req.To) {
			// Leaving worker ownership: clear the assignment and queue slot
			// together with the status so no reader observes a half-updated pair.
			set = append(set, "assigned_worker = NULL", "queued_at = NULL")
		}
		if req.To == StatusFailed {
			note := strings.TrimSpace(req.Note)
			if note == "" {
				note = DefaultFailedReason
			}
			set = append(set, "error_message = ?")
			args = append(args, note)
		} else {
			set = append(set, "error_message = NULL")
		}

		query := `UPDATE media_tasks SET ` + strings.Join(set, ", ") + ` WHERE id = ? AND status = ?`
		args = append(args, req.TaskID, req.From)
		if req.WorkerID != nil {
			query += ` AND assigned_worker = ?`
			args = append(args, *req.WorkerID)
		}

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("apply transition: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("%w: task %s is no longer %s", ErrStaleTransition, req.TaskID, req.From)
		}

		if !IsInFlight(req.To) {
			if _, err := tx.ExecContext(ctx, `UPDATE workers SET current_task_id = NULL WHERE current_task_id = ?`, req.TaskID); err != nil {
				return fmt.Errorf("unbind worker: %w", err)
			}
		}

		return appendLog(ctx, tx, req.TaskID, req.WorkerID, req.From, req.To, req.Note, now)
	})
	if err != nil {
		return nil, err
	}

	if s.observe != nil {
		s.observe(TransitionEvent{
			TaskID:     req.TaskID,
			From:       req.From,
			To:         req.To,
			WorkerID:   req.WorkerID,
			OccurredAt: now,
		})
	}

	return s.GetByID(ctx, req.TaskID)
}

// ReleaseAssignment strips a claimed-but-unstarted task from its worker
// without changing status. The update is guarded on the expected assignee;
// losing the race returns ErrStaleTransition and changes nothing.
func (s *Store) ReleaseAssignment(ctx context.Context, taskID string, workerID int64) error {
	now := time.Now().UTC()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(
			ctx,
			`UPDATE media_tasks SET assigned_worker = NULL, updated_at = ?
             WHERE id = ? AND status = ? AND assigned_worker = ?`,
			formatTime(now),
			taskID,
			StatusUploaded,
			workerID,
		)
		if err != nil {
			return fmt.Errorf("release assignment: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("%w: task %s not held by worker %d", ErrStaleTransition, taskID, workerID)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE workers SET current_task_id = NULL WHERE id = ? AND current_task_id = ?`, workerID, taskID); err != nil {
			return fmt.Errorf("unbind worker: %w", err)
		}
		// No status change happened, so the entry carries no old status; the
		// audit log stays a valid walk of the pipeline graph.
		return appendLog(ctx, tx, taskID, &workerID, "", StatusUploaded, "assignment released", now)
	})
}

func appendLog(ctx context.Context, tx *sql.Tx, taskID string, workerID *int64, from, to Status, note string, at time.Time) error {
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO task_logs (task_id, worker_id, old_status, new_status, note, recorded_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		taskID,
		nullableInt64(workerID),
		nullableString(string(from)),
		string(to),
		nullableString(note),
		formatTime(at),
	); err != nil {
		return fmt.Errorf("append task log: %w", err)
	}
	return nil
}
