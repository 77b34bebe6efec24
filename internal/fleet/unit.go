package fleet

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"hyperion/internal/logging"
	"hyperion/internal/notifications"
	"hyperion/internal/queue"
)

// Unit is one worker slot's runtime. It claims tasks from the queue, drives
// them through extraction and processing, and heartbeats independently of
// stage execution so a long stage never marks the unit offline.
type Unit struct {
	id       int64
	name     string
	store    *queue.Store
	runner   StageRunner
	notifier notifications.Service
	logger   *slog.Logger

	pollInterval time.Duration
	pingInterval time.Duration
}

// NewUnit constructs a worker unit for one fleet slot.
func NewUnit(id int64, name string, store *queue.Store, runner StageRunner, notifier notifications.Service, logger *slog.Logger, pollInterval, pingInterval time.Duration) *Unit {
	return &Unit{
		id:           id,
		name:         name,
		store:        store,
		runner:       runner,
		notifier:     notifier,
		logger:       logging.NewComponentLogger(logger, "fleet-unit").With(logging.String(logging.FieldWorker, name)),
		pollInterval: pollInterval,
		pingInterval: pingInterval,
	}
}

// Run executes the unit until context cancellation.
func (u *Unit) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(1)
	go u.pingLoop(ctx, &wg)
	defer wg.Wait()

	u.logger.Info("worker unit started")
	for {
		select {
		case <-ctx.Done():
			u.logger.Info("worker unit stopped")
			return
		default:
		}

		task, err := u.store.Claim(ctx, u.id)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			u.logger.Error("failed to claim next task",
				logging.Error(err),
				logging.String(logging.FieldEventType, "claim_failed"),
				logging.String(logging.FieldErrorHint, "check fleet database access"),
			)
			u.waitOrShutdown(ctx, u.pollInterval)
			continue
		}
		if task == nil {
			u.waitOrShutdown(ctx, u.pollInterval)
			continue
		}

		if err := u.process(ctx, task); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			u.logger.Error("task cycle failed", logging.Error(err), logging.String(logging.FieldMediaID, task.ID))
		}
	}
}

// pingLoop stamps the heartbeat on its own schedule, immediately on startup
// and then every pingInterval, regardless of what the main loop is doing.
func (u *Unit) pingLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	ping := func() {
		if err := u.store.RecordPing(ctx, u.id); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			u.logger.Warn("heartbeat update failed", logging.Error(err))
		}
	}
	ping()

	ticker := time.NewTicker(u.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ping()
		}
	}
}

// process drives one claimed task through extraction and processing. Every
// transition is guarded on the status and assignment the unit observed; if
// the reaper reclaimed the task in the meantime, the stale update is
// discarded and the unit abandons the cycle without touching the row.
func (u *Unit) process(ctx context.Context, task *queue.Task) error {
	logger := u.logger.With(logging.String(logging.FieldMediaID, task.ID))
	start := time.Now()

	if _, err := u.transition(ctx, task.ID, queue.StatusUploaded, queue.StatusExtracting, "extraction started"); err != nil {
		return u.handleTransitionError(logger, task.ID, err)
	}
	logger.Info("extraction started", logging.String(logging.FieldStatus, string(queue.StatusExtracting)))

	if err := u.runner.RunExtraction(ctx, task); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return u.fail(ctx, logger, task.ID, queue.StatusExtracting, err)
	}

	if _, err := u.transition(ctx, task.ID, queue.StatusExtracting, queue.StatusProcessing, "extraction complete"); err != nil {
		return u.handleTransitionError(logger, task.ID, err)
	}
	logger.Info("processing started", logging.String(logging.FieldStatus, string(queue.StatusProcessing)))

	if err := u.runner.RunProcessing(ctx, task); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return u.fail(ctx, logger, task.ID, queue.StatusProcessing, err)
	}

	if _, err := u.transition(ctx, task.ID, queue.StatusProcessing, queue.StatusReady, "processing complete"); err != nil {
		return u.handleTransitionError(logger, task.ID, err)
	}

	if err := u.store.IncrementDailyTaskCount(ctx, u.id); err != nil {
		logger.Warn("failed to bump daily counter", logging.Error(err))
	}
	if err := u.notifier.NotifyTaskReady(ctx, task.ID, u.name); err != nil {
		logger.Warn("ready notification failed", logging.Error(err))
	}
	logger.Info("task ready",
		logging.String(logging.FieldEventType, "task_ready"),
		logging.Duration("cycle_duration", time.Since(start)),
	)
	return nil
}

func (u *Unit) transition(ctx context.Context, taskID string, from, to queue.Status, note string) (*queue.Task, error) {
	workerID := u.id
	return u.store.Transition(ctx, queue.TransitionRequest{
		TaskID:   taskID,
		From:     from,
		To:       to,
		WorkerID: &workerID,
		Note:     note,
	})
}

// handleTransitionError distinguishes a lost assignment from a real fault. A
// stale transition means the reaper already reassigned the task; the unit
// logs the discard and moves on.
func (u *Unit) handleTransitionError(logger *slog.Logger, taskID string, err error) error {
	if errors.Is(err, queue.ErrStaleTransition) {
		logger.Warn("task no longer assigned to this unit, discarding cycle",
			logging.String(logging.FieldEventType, "stale_assignment"),
			logging.String(logging.FieldMediaID, taskID),
		)
		return nil
	}
	return err
}

func (u *Unit) fail(ctx context.Context, logger *slog.Logger, taskID string, from queue.Status, cause error) error {
	reason := queue.DefaultFailedReason
	if cause != nil {
		reason = cause.Error()
	}
	if _, err := u.transition(ctx, taskID, from, queue.StatusFailed, reason); err != nil {
		return u.handleTransitionError(logger, taskID, err)
	}
	if err := u.notifier.NotifyTaskFailed(ctx, taskID, reason); err != nil {
		logger.Warn("failure notification failed", logging.Error(err))
	}
	logger.Error("task failed",
		logging.String(logging.FieldEventType, "task_failed"),
		logging.String(logging.FieldStatus, string(queue.StatusFailed)),
		logging.Error(cause),
	)
	return nil
}

func (u *Unit) waitOrShutdown(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
