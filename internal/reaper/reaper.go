package reaper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"hyperion/internal/config"
	"hyperion/internal/logging"
	"hyperion/internal/notifications"
	"hyperion/internal/queue"
)

// Reaper periodically reconciles stuck tasks and dead workers. Each pass is
// independent: a failure in one pass never blocks the others, and running a
// pass twice over the same state changes nothing the second time.
type Reaper struct {
	store    *queue.Store
	notifier notifications.Service
	logger   *slog.Logger

	interval         time.Duration
	pendingTimeout   time.Duration
	uploadedTimeout  time.Duration
	offlineThreshold time.Duration
}

// New constructs a reaper from configured timeouts.
func New(cfg *config.Config, store *queue.Store, notifier notifications.Service, logger *slog.Logger) *Reaper {
	return &Reaper{
		store:            store,
		notifier:         notifier,
		logger:           logging.NewComponentLogger(logger, "reaper"),
		interval:         time.Duration(cfg.Reaper.Interval) * time.Second,
		pendingTimeout:   time.Duration(cfg.Reaper.PendingTimeout) * time.Second,
		uploadedTimeout:  time.Duration(cfg.Reaper.UploadedTimeout) * time.Second,
		offlineThreshold: time.Duration(cfg.Fleet.OfflineThreshold) * time.Second,
	}
}

// Run executes reconciliation passes until context cancellation. The first
// pass runs one full interval after startup, giving freshly restarted workers
// time to re-ping before their tasks are reclaimed.
func (r *Reaper) Run(ctx context.Context) {
	r.logger.Info("reaper started", logging.Duration("interval", r.interval))
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reaper stopped")
			return
		case <-ticker.C:
			if err := r.RunOnce(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				r.logger.Error("reconciliation pass failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "reaper_pass_failed"),
					logging.String(logging.FieldErrorHint, "check fleet database access"),
				)
			}
		}
	}
}

// RunOnce executes one full reconciliation pass.
func (r *Reaper) RunOnce(ctx context.Context) error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	record(r.failStalePending(ctx))
	record(r.flagStalledUploads(ctx))
	record(r.reclaimFromOfflineWorkers(ctx))
	return firstErr
}

// failStalePending fails PENDING tasks whose upload confirmation never
// arrived. The failure reason cites the task's last audit entry so operators
// can see where the intake stalled.
func (r *Reaper) failStalePending(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-r.pendingTimeout)
	stale, err := r.store.TasksPendingBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("find stale pending tasks: %w", err)
	}

	for _, task := range stale {
		reason := fmt.Sprintf("upload never confirmed within %s", r.pendingTimeout)
		if last, err := r.store.LastLogEntry(ctx, task.ID); err == nil && last != nil {
			reason = fmt.Sprintf("%s; last activity: %s at %s",
				reason, last.Note, last.RecordedAt.Format(time.RFC3339))
		}

		if _, err := r.store.Transition(ctx, queue.TransitionRequest{
			TaskID: task.ID,
			From:   queue.StatusPending,
			To:     queue.StatusFailed,
			Note:   reason,
		}); err != nil {
			if errors.Is(err, queue.ErrStaleTransition) {
				// The upload confirmation raced the pass; leave the task alone.
				continue
			}
			return fmt.Errorf("fail stale pending task %s: %w", task.ID, err)
		}
		r.logger.Warn("failed stale pending task",
			logging.String(logging.FieldMediaID, task.ID),
			logging.String(logging.FieldEventType, "pending_timed_out"),
			logging.String("reason", reason),
		)
		if err := r.notifier.NotifyTaskFailed(ctx, task.ID, reason); err != nil {
			r.logger.Warn("failure notification failed", logging.Error(err))
		}
	}
	return nil
}

// flagStalledUploads reminds operators about UPLOADED tasks no worker has
// claimed. Tasks that lost their queue slot (a crash between the status
// change and its enqueue) are re-enqueued; already-queued tasks are left
// untouched and only notified.
func (r *Reaper) flagStalledUploads(ctx context.Context) error {
	now := time.Now().UTC()
	stalled, err := r.store.TasksUploadedUnclaimedBefore(ctx, now.Add(-r.uploadedTimeout))
	if err != nil {
		return fmt.Errorf("find stalled uploads: %w", err)
	}

	for _, task := range stalled {
		if !task.Queued() {
			requeued, err := r.store.Enqueue(ctx, task.ID)
			if err != nil {
				return fmt.Errorf("re-enqueue stalled task %s: %w", task.ID, err)
			}
			if requeued {
				r.logger.Warn("restored lost queue slot for uploaded task",
					logging.String(logging.FieldMediaID, task.ID),
					logging.String(logging.FieldEventType, "queue_slot_restored"),
				)
			}
		}

		waiting := now.Sub(task.StatusChangedAt)
		r.logger.Warn("uploaded task still unclaimed",
			logging.String(logging.FieldMediaID, task.ID),
			logging.String(logging.FieldEventType, "upload_stalled"),
			logging.Duration("waiting", waiting),
			logging.String(logging.FieldErrorHint, "check whether any worker units are online"),
		)
		if err := r.notifier.NotifyUploadStalled(ctx, task.ID, waiting); err != nil {
			r.logger.Warn("stall notification failed", logging.Error(err))
		}
	}
	return nil
}

// reclaimFromOfflineWorkers returns tasks held by silent workers to the back
// of the queue. The guarded transition discards nothing a live worker still
// owns: if the worker resurfaces and advances the task first, the reclaim is
// skipped.
func (r *Reaper) reclaimFromOfflineWorkers(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-r.offlineThreshold)
	held, err := r.store.OfflineWorkersHoldingTasks(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("find tasks held by offline workers: %w", err)
	}

	for workerID, tasks := range held {
		workerName := fmt.Sprintf("worker %d", workerID)
		if worker, err := r.store.WorkerByID(ctx, workerID); err == nil {
			workerName = worker.DisplayName
		}

		for _, task := range tasks {
			if err := r.reclaimTask(ctx, task, workerID, workerName); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Reaper) reclaimTask(ctx context.Context, task *queue.Task, workerID int64, workerName string) error {
	note := fmt.Sprintf("reclaimed from offline worker %s", workerName)

	switch {
	case queue.IsInFlight(task.Status):
		if _, err := r.store.Transition(ctx, queue.TransitionRequest{
			TaskID:   task.ID,
			From:     task.Status,
			To:       queue.StatusUploaded,
			WorkerID: &workerID,
			Note:     note,
		}); err != nil {
			if errors.Is(err, queue.ErrStaleTransition) {
				return nil
			}
			return fmt.Errorf("reclaim task %s: %w", task.ID, err)
		}
	case task.Status == queue.StatusUploaded:
		// Claimed but never started. Clearing the assignment is enough; the
		// requeue below restores its queue slot.
		if err := r.store.ReleaseAssignment(ctx, task.ID, workerID); err != nil {
			if errors.Is(err, queue.ErrStaleTransition) {
				return nil
			}
			return fmt.Errorf("release task %s: %w", task.ID, err)
		}
	default:
		return nil
	}

	if _, err := r.store.Requeue(ctx, task.ID); err != nil {
		return fmt.Errorf("requeue reclaimed task %s: %w", task.ID, err)
	}
	r.logger.Warn("reclaimed task from offline worker",
		logging.String(logging.FieldMediaID, task.ID),
		logging.String(logging.FieldWorker, workerName),
		logging.String(logging.FieldEventType, "task_reclaimed"),
	)
	if err := r.notifier.NotifyTaskReclaimed(ctx, task.ID, workerName); err != nil {
		r.logger.Warn("reclaim notification failed", logging.Error(err))
	}
	return nil
}
