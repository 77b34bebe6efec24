package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// InitFleet registers the fixed worker slots by display name. Existing rows
// keep their ping history and counters, so the call is safe on every startup.
func (s *Store) InitFleet(ctx context.Context, names []string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for i, name := range names {
			if _, err := tx.ExecContext(
				ctx,
				`INSERT INTO workers (id, display_name) VALUES (?, ?)
                 ON CONFLICT(id) DO NOTHING`,
				int64(i+1),
				name,
			); err != nil {
				return fmt.Errorf("register worker %q: %w", name, err)
			}
		}
		return nil
	})
}

// RecordPing stamps the worker's heartbeat with the current time.
func (s *Store) RecordPing(ctx context.Context, workerID int64) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE workers SET last_ping = ? WHERE id = ?`,
		formatTime(time.Now().UTC()),
		workerID,
	)
	if err != nil {
		return fmt.Errorf("record ping: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: id %d", ErrUnknownWorker, workerID)
	}
	return nil
}

// Workers returns all fleet slots ordered by id.
func (s *Store) Workers(ctx context.Context) ([]*Worker, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+workerColumns+` FROM workers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list workers: %w", err)
	}
	defer rows.Close()

	var workers []*Worker
	for rows.Next() {
		worker, err := scanWorker(rows)
		if err != nil {
			return nil, err
		}
		workers = append(workers, worker)
	}
	return workers, rows.Err()
}

// WorkerByID fetches one fleet slot. Returns ErrUnknownWorker for unknown ids.
func (s *Store) WorkerByID(ctx context.Context, workerID int64) (*Worker, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+workerColumns+` FROM workers WHERE id = ?`, workerID)
	worker, err := scanWorker(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownWorker, workerID)
	}
	if err != nil {
		return nil, fmt.Errorf("get worker: %w", err)
	}
	return worker, nil
}

// IncrementDailyTaskCount bumps the worker's completed-today counter.
func (s *Store) IncrementDailyTaskCount(ctx context.Context, workerID int64) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE workers SET daily_task_count = daily_task_count + 1 WHERE id = ?`,
		workerID,
	)
	if err != nil {
		return fmt.Errorf("increment daily count: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: id %d", ErrUnknownWorker, workerID)
	}
	return nil
}

// ResetDailyCounters zeroes every worker's daily counter for the given date
// (formatted 2006-01-02). Workers already reset for that date are skipped, so
// overlapping timers or a restart around midnight reset each slot only once.
func (s *Store) ResetDailyCounters(ctx context.Context, date string) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE workers SET daily_task_count = 0, last_reset_date = ?
         WHERE last_reset_date IS NULL OR last_reset_date <> ?`,
		date,
		date,
	)
	if err != nil {
		return 0, fmt.Errorf("reset daily counters: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}
