package reaper_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"hyperion/internal/config"
	"hyperion/internal/logging"
	"hyperion/internal/queue"
	"hyperion/internal/reaper"
	"hyperion/internal/testsupport"
)

type recordingNotifier struct {
	mu        sync.Mutex
	failed    map[string]string
	stalled   map[string]time.Duration
	reclaimed map[string]string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{
		failed:    make(map[string]string),
		stalled:   make(map[string]time.Duration),
		reclaimed: make(map[string]string),
	}
}

func (r *recordingNotifier) NotifyTaskReady(context.Context, string, string) error { return nil }

func (r *recordingNotifier) NotifyTaskFailed(_ context.Context, taskID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed[taskID] = reason
	return nil
}

func (r *recordingNotifier) NotifyTaskReclaimed(_ context.Context, taskID, workerName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reclaimed[taskID] = workerName
	return nil
}

func (r *recordingNotifier) NotifyUploadStalled(_ context.Context, taskID string, waiting time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stalled[taskID] = waiting
	return nil
}

func (r *recordingNotifier) NotifyClusterHealth(context.Context, string, int, int) error { return nil }
func (r *recordingNotifier) PublishTransition(context.Context, string, string, string, string) error {
	return nil
}
func (r *recordingNotifier) TestNotification(context.Context) error { return nil }

func (r *recordingNotifier) stalledCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stalled)
}

// expiredTimeoutsConfig collapses every reconciliation cutoff to "now" so
// freshly created rows already count as stale.
func expiredTimeoutsConfig(t testing.TB) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Reaper.PendingTimeout = 0
	cfg.Reaper.UploadedTimeout = 0
	cfg.Fleet.OfflineThreshold = 0
	return cfg
}

func TestRunOnceFailsStalePendingWithDiagnostic(t *testing.T) {
	cfg := expiredTimeoutsConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	task := testsupport.NewTask(t, store)
	notifier := newRecordingNotifier()
	r := reaper.New(cfg, store, notifier, logging.NewNop())

	if err := r.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	failed, err := store.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if failed.Status != queue.StatusFailed {
		t.Fatalf("expected FAILED, got %s", failed.Status)
	}
	if !strings.Contains(failed.ErrorMessage, "upload never confirmed") {
		t.Fatalf("expected timeout reason, got %q", failed.ErrorMessage)
	}
	// The diagnostic cites the last audit entry before the failure.
	if !strings.Contains(failed.ErrorMessage, "registered by upload request") {
		t.Fatalf("expected reason to cite last activity, got %q", failed.ErrorMessage)
	}
	if reason, ok := notifier.failed[task.ID]; !ok || reason != failed.ErrorMessage {
		t.Fatalf("expected failure notification, got %q ok=%v", reason, ok)
	}
}

func TestRunOnceLeavesFreshPendingAlone(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	task := testsupport.NewTask(t, store)
	r := reaper.New(cfg, store, newRecordingNotifier(), logging.NewNop())

	if err := r.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	current, err := store.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if current.Status != queue.StatusPending {
		t.Fatalf("fresh PENDING task must survive the pass, got %s", current.Status)
	}
}

func TestRunOnceFlagsStalledUploadsWithoutMutating(t *testing.T) {
	cfg := expiredTimeoutsConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	task := testsupport.NewQueuedTask(t, store)
	notifier := newRecordingNotifier()
	r := reaper.New(cfg, store, notifier, logging.NewNop())

	if err := r.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	if _, ok := notifier.stalled[task.ID]; !ok {
		t.Fatal("expected stall notification for unclaimed upload")
	}
	current, err := store.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if current.Status != queue.StatusUploaded || !current.Queued() {
		t.Fatalf("stall pass must not mutate the task: %#v", current)
	}
}

func TestRunOnceRepairsUploadedTaskThatLostItsQueueSlot(t *testing.T) {
	cfg := expiredTimeoutsConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	// UPLOADED but never enqueued, as left behind by a crash between the
	// upload confirmation and its enqueue.
	task := testsupport.NewUploadedTask(t, store)
	notifier := newRecordingNotifier()
	r := reaper.New(cfg, store, notifier, logging.NewNop())

	if err := r.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	current, err := store.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if current.Status != queue.StatusUploaded {
		t.Fatalf("repair must not change status, got %s", current.Status)
	}
	if !current.Queued() {
		t.Fatal("expected lost queue slot to be restored")
	}
	if _, ok := notifier.stalled[task.ID]; !ok {
		t.Fatal("expected stall notification for the repaired task")
	}

	// A second pass sees the task already queued and changes nothing.
	if err := r.RunOnce(ctx); err != nil {
		t.Fatalf("second RunOnce failed: %v", err)
	}
	again, err := store.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !again.QueuedAt.Equal(*current.QueuedAt) {
		t.Fatalf("second pass moved the queue slot: %v -> %v", current.QueuedAt, again.QueuedAt)
	}
}

func TestRunOnceReclaimsInFlightTaskFromOfflineWorker(t *testing.T) {
	cfg := expiredTimeoutsConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if err := store.InitFleet(ctx, []string{"Helios", "Eos"}); err != nil {
		t.Fatalf("InitFleet failed: %v", err)
	}

	task := testsupport.NewQueuedTask(t, store)
	if _, err := store.Claim(ctx, 1); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	workerID := int64(1)
	if _, err := store.Transition(ctx, queue.TransitionRequest{
		TaskID: task.ID, From: queue.StatusUploaded, To: queue.StatusExtracting, WorkerID: &workerID,
	}); err != nil {
		t.Fatalf("begin extraction: %v", err)
	}

	// Another task waits in the queue; the reclaimed task must land behind it.
	waiting := testsupport.NewQueuedTask(t, store)

	notifier := newRecordingNotifier()
	r := reaper.New(cfg, store, notifier, logging.NewNop())
	if err := r.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	reclaimed, err := store.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if reclaimed.Status != queue.StatusUploaded {
		t.Fatalf("expected reclaimed task back in UPLOADED, got %s", reclaimed.Status)
	}
	if reclaimed.AssignedWorker != nil {
		t.Fatal("reclaimed task must shed its assignment")
	}
	if !reclaimed.Queued() {
		t.Fatal("reclaimed task must rejoin the queue")
	}
	if name, ok := notifier.reclaimed[task.ID]; !ok || name != "Helios" {
		t.Fatalf("expected reclaim notification naming Helios, got %q ok=%v", name, ok)
	}

	worker, err := store.WorkerByID(ctx, 1)
	if err != nil {
		t.Fatalf("WorkerByID failed: %v", err)
	}
	if worker.CurrentTaskID != "" {
		t.Fatalf("expected dead worker binding cleared, holds %q", worker.CurrentTaskID)
	}

	// Queue order: the waiting task keeps the head, the reclaimed one joins
	// the tail.
	if err := store.RecordPing(ctx, 2); err != nil {
		t.Fatalf("RecordPing failed: %v", err)
	}
	head, err := store.Claim(ctx, 2)
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if head == nil || head.ID != waiting.ID {
		t.Fatalf("expected head %s, got %#v", waiting.ID, head)
	}
}

func TestRunOnceReleasesClaimedButUnstartedTask(t *testing.T) {
	cfg := expiredTimeoutsConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if err := store.InitFleet(ctx, []string{"Helios"}); err != nil {
		t.Fatalf("InitFleet failed: %v", err)
	}

	task := testsupport.NewQueuedTask(t, store)
	if _, err := store.Claim(ctx, 1); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}

	r := reaper.New(cfg, store, newRecordingNotifier(), logging.NewNop())
	if err := r.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	released, err := store.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if released.Status != queue.StatusUploaded || released.AssignedWorker != nil || !released.Queued() {
		t.Fatalf("expected task released back to the queue: %#v", released)
	}

	// The release entry records no status pair; every old->new pair in the
	// log must be a real pipeline edge.
	entries, err := store.AuditLog(ctx, task.ID)
	if err != nil {
		t.Fatalf("AuditLog failed: %v", err)
	}
	last := entries[len(entries)-1]
	if last.Note != "assignment released" || last.OldStatus != "" {
		t.Fatalf("unexpected release entry: %#v", last)
	}
	for _, entry := range entries {
		if entry.OldStatus == "" {
			continue
		}
		if !queue.CanTransition(entry.OldStatus, entry.NewStatus) {
			t.Fatalf("audit log contains a non-edge %s -> %s", entry.OldStatus, entry.NewStatus)
		}
	}
}

func TestRunOnceIsIdempotent(t *testing.T) {
	cfg := expiredTimeoutsConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	stale := testsupport.NewTask(t, store)
	queued := testsupport.NewQueuedTask(t, store)

	notifier := newRecordingNotifier()
	r := reaper.New(cfg, store, notifier, logging.NewNop())
	if err := r.RunOnce(ctx); err != nil {
		t.Fatalf("first RunOnce failed: %v", err)
	}

	failedEntries, err := store.AuditLog(ctx, stale.ID)
	if err != nil {
		t.Fatalf("AuditLog failed: %v", err)
	}
	stalledBefore := notifier.stalledCount()

	if err := r.RunOnce(ctx); err != nil {
		t.Fatalf("second RunOnce failed: %v", err)
	}

	entriesAfter, err := store.AuditLog(ctx, stale.ID)
	if err != nil {
		t.Fatalf("AuditLog failed: %v", err)
	}
	if len(entriesAfter) != len(failedEntries) {
		t.Fatalf("second pass appended audit entries: %d -> %d", len(failedEntries), len(entriesAfter))
	}

	// The stall reminder fires per pass while the task stays unclaimed, but
	// never mutates the row.
	if notifier.stalledCount() < stalledBefore {
		t.Fatalf("unexpected stall count change: %d -> %d", stalledBefore, notifier.stalledCount())
	}
	current, err := store.GetByID(ctx, queued.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if current.Status != queue.StatusUploaded || !current.Queued() {
		t.Fatalf("queued task mutated by repeated passes: %#v", current)
	}
}
