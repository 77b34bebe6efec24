package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const claimAttempts = 3

// Enqueue places a task at the tail of the claim queue. It is idempotent: a
// task that is already queued, already claimed, or not in UPLOADED status is
// left untouched and false is returned.
func (s *Store) Enqueue(ctx context.Context, taskID string) (bool, error) {
	now := time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE media_tasks SET queued_at = ?, updated_at = ?
         WHERE id = ? AND status = ? AND assigned_worker IS NULL AND queued_at IS NULL`,
		formatTime(now),
		formatTime(now),
		taskID,
		StatusUploaded,
	)
	if err != nil {
		return false, fmt.Errorf("enqueue task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Requeue re-inserts a task at the tail of the queue, refreshing its position.
// Requeued tasks deliberately go to the back rather than their original slot so
// a repeatedly failing task cannot starve healthy ones behind it.
func (s *Store) Requeue(ctx context.Context, taskID string) (bool, error) {
	now := time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE media_tasks SET queued_at = ?, updated_at = ?
         WHERE id = ? AND status = ? AND assigned_worker IS NULL`,
		formatTime(now),
		formatTime(now),
		taskID,
		StatusUploaded,
	)
	if err != nil {
		return false, fmt.Errorf("requeue task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Claim atomically removes the head of the queue and assigns it to the given
// worker. An empty queue returns (nil, nil); workers poll for the next pass.
// Two concurrent claims never receive the same task: the removal is guarded on
// the exact row state observed, and a lost race moves on to the next head.
func (s *Store) Claim(ctx context.Context, workerID int64) (*Task, error) {
	for attempt := 0; attempt < claimAttempts; attempt++ {
		var claimedID string
		won := false

		err := s.withTx(ctx, func(tx *sql.Tx) error {
			row := tx.QueryRowContext(
				ctx,
				`SELECT id FROM media_tasks
                 WHERE status = ? AND assigned_worker IS NULL AND queued_at IS NOT NULL
                 ORDER BY queued_at, id LIMIT 1`,
				StatusUploaded,
			)
			if err := row.Scan(&claimedID); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return nil
				}
				return fmt.Errorf("select queue head: %w", err)
			}

			now := time.Now().UTC()
			res, err := tx.ExecContext(
				ctx,
				`UPDATE media_tasks SET assigned_worker = ?, queued_at = NULL, updated_at = ?
                 WHERE id = ? AND status = ? AND assigned_worker IS NULL AND queued_at IS NOT NULL`,
				workerID,
				formatTime(now),
				claimedID,
				StatusUploaded,
			)
			if err != nil {
				return fmt.Errorf("claim task: %w", err)
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			if affected == 0 {
				// Another claimer won this head; retry against the new head.
				claimedID = ""
				return nil
			}

			if _, err := tx.ExecContext(ctx, `UPDATE workers SET current_task_id = ? WHERE id = ?`, claimedID, workerID); err != nil {
				return fmt.Errorf("bind worker: %w", err)
			}
			won = true
			return nil
		})
		if err != nil {
			return nil, err
		}
		if won {
			return s.GetByID(ctx, claimedID)
		}
		if claimedID == "" && !won {
			// Either the queue was empty or the head moved; check emptiness.
			depth, err := s.QueueDepth(ctx)
			if err != nil {
				return nil, err
			}
			if depth == 0 {
				return nil, nil
			}
		}
	}
	return nil, nil
}
