package fleet_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"hyperion/internal/fleet"
	"hyperion/internal/logging"
	"hyperion/internal/queue"
	"hyperion/internal/testsupport"
)

type instantRunner struct{}

func (instantRunner) RunExtraction(ctx context.Context, _ *queue.Task) error { return ctx.Err() }
func (instantRunner) RunProcessing(ctx context.Context, _ *queue.Task) error { return ctx.Err() }

type failingRunner struct {
	err error
}

func (failingRunner) RunExtraction(ctx context.Context, _ *queue.Task) error { return ctx.Err() }
func (f failingRunner) RunProcessing(context.Context, *queue.Task) error     { return f.err }

type recordingNotifier struct {
	mu     sync.Mutex
	ready  []string
	failed map[string]string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{failed: make(map[string]string)}
}

func (r *recordingNotifier) NotifyTaskReady(_ context.Context, taskID, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ready = append(r.ready, taskID)
	return nil
}

func (r *recordingNotifier) NotifyTaskFailed(_ context.Context, taskID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed[taskID] = reason
	return nil
}

func (r *recordingNotifier) NotifyTaskReclaimed(context.Context, string, string) error { return nil }
func (r *recordingNotifier) NotifyUploadStalled(context.Context, string, time.Duration) error {
	return nil
}
func (r *recordingNotifier) NotifyClusterHealth(context.Context, string, int, int) error { return nil }
func (r *recordingNotifier) PublishTransition(context.Context, string, string, string, string) error {
	return nil
}
func (r *recordingNotifier) TestNotification(context.Context) error { return nil }

func (r *recordingNotifier) readyCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ready)
}

func (r *recordingNotifier) failedReason(taskID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reason, ok := r.failed[taskID]
	return reason, ok
}

func waitFor(t testing.TB, timeout time.Duration, check func() (bool, error)) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		ok, err := check()
		if err != nil {
			t.Fatalf("waitFor check: %v", err)
		}
		if ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func TestFleetDrainsQueueToReady(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	notifier := newRecordingNotifier()
	manager := fleet.NewManagerWithRunner(cfg, store, logging.NewNop(), notifier, instantRunner{})

	const taskCount = 4
	ids := make(map[string]bool, taskCount)
	for i := 0; i < taskCount; i++ {
		ids[testsupport.NewQueuedTask(t, store).ID] = true
	}

	if err := manager.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer manager.Stop()

	waitFor(t, 10*time.Second, func() (bool, error) {
		stats, err := store.Stats(ctx)
		if err != nil {
			return false, err
		}
		return stats[queue.StatusReady] == taskCount, nil
	})

	for id := range ids {
		task, err := store.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if task.Status != queue.StatusReady {
			t.Fatalf("task %s not READY: %s", id, task.Status)
		}
		if task.AssignedWorker != nil {
			t.Fatalf("READY task %s still assigned to worker %d", id, *task.AssignedWorker)
		}
	}
	if notifier.readyCount() != taskCount {
		t.Fatalf("expected %d ready notifications, got %d", taskCount, notifier.readyCount())
	}

	// Completions count toward the daily totals of whichever units claimed.
	workers, err := store.Workers(ctx)
	if err != nil {
		t.Fatalf("Workers failed: %v", err)
	}
	total := 0
	for _, worker := range workers {
		total += worker.DailyTaskCount
	}
	if total != taskCount {
		t.Fatalf("expected %d completions across fleet, got %d", taskCount, total)
	}
}

func TestFleetRecordsStageFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	notifier := newRecordingNotifier()
	stageErr := errors.New("transcode container corrupt")
	manager := fleet.NewManagerWithRunner(cfg, store, logging.NewNop(), notifier, failingRunner{err: stageErr})

	task := testsupport.NewQueuedTask(t, store)

	if err := manager.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer manager.Stop()

	waitFor(t, 10*time.Second, func() (bool, error) {
		current, err := store.GetByID(ctx, task.ID)
		if err != nil {
			return false, err
		}
		return current.Status == queue.StatusFailed, nil
	})

	failed, err := store.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if failed.ErrorMessage != stageErr.Error() {
		t.Fatalf("expected failure reason %q, got %q", stageErr.Error(), failed.ErrorMessage)
	}
	if reason, ok := notifier.failedReason(task.ID); !ok || reason != stageErr.Error() {
		t.Fatalf("expected failure notification with reason, got %q ok=%v", reason, ok)
	}

	entries, err := store.AuditLog(ctx, task.ID)
	if err != nil {
		t.Fatalf("AuditLog failed: %v", err)
	}
	last := entries[len(entries)-1]
	if last.NewStatus != queue.StatusFailed || last.OldStatus != queue.StatusProcessing {
		t.Fatalf("unexpected final audit entry: %#v", last)
	}
}

func TestFleetHeartbeatsWhileIdle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	manager := fleet.NewManagerWithRunner(cfg, store, logging.NewNop(), newRecordingNotifier(), instantRunner{})
	if err := manager.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer manager.Stop()

	waitFor(t, 10*time.Second, func() (bool, error) {
		workers, err := store.Workers(ctx)
		if err != nil {
			return false, err
		}
		for _, worker := range workers {
			if worker.LastPing == nil {
				return false, nil
			}
		}
		return true, nil
	})

	snapshot, err := manager.Registry().Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snapshot.Active != fleet.Size {
		t.Fatalf("expected all %d units active, got %d", fleet.Size, snapshot.Active)
	}
	if snapshot.Health != fleet.HealthOptimal {
		t.Fatalf("idle full fleet should be Optimal, got %s", snapshot.Health)
	}
}
