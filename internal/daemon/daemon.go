package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"

	"hyperion/internal/config"
	"hyperion/internal/fleet"
	"hyperion/internal/logging"
	"hyperion/internal/notifications"
	"hyperion/internal/queue"
	"hyperion/internal/reaper"
)

// Daemon coordinates the worker fleet, the reaper, and the daily counter
// reset, and enforces single-instance execution via a file lock.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	fleet    *fleet.Manager
	reaper   *reaper.Reaper
	notifier notifications.Service

	lockPath string
	lock     *flock.Flock
	cron     *cron.Cron

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Fleet        *fleet.Snapshot
	DBPath       string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	notifier := notifications.NewService(cfg)

	// Publish every committed transition to the notification sink. Errors
	// are logged and dropped; the transition itself already committed.
	store.SetTransitionObserver(func(event queue.TransitionEvent) {
		worker := ""
		if event.WorkerID != nil {
			worker = fleet.UnitName(*event.WorkerID)
		}
		if err := notifier.PublishTransition(context.Background(), event.TaskID, string(event.From), string(event.To), worker); err != nil {
			logger.Warn("transition publication failed",
				logging.Error(err),
				logging.String(logging.FieldMediaID, event.TaskID),
			)
		}
	})

	lockPath := filepath.Join(cfg.Paths.DataDir, "hyperiond.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		fleet:    fleet.NewManager(cfg, store, logger),
		reaper:   reaper.New(cfg, store, notifier, logger),
		notifier: notifier,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		cron:     cron.New(cron.WithLocation(time.UTC)),
	}, nil
}

// Start acquires the daemon lock and launches the fleet, the reaper loop,
// and the midnight counter reset.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another hyperion daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.fleet.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		d.cancel = nil
		return fmt.Errorf("start fleet: %w", err)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.reaper.Run(runCtx)
	}()

	if _, err := d.cron.AddFunc("0 0 * * *", func() {
		d.resetDailyCounters(runCtx)
	}); err != nil {
		d.fleet.Stop()
		_ = d.lock.Unlock()
		cancel()
		d.cancel = nil
		return fmt.Errorf("schedule daily reset: %w", err)
	}
	d.cron.Start()

	d.running.Store(true)
	d.logger.Info("hyperion daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop halts background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	cronCtx := d.cron.Stop()
	<-cronCtx.Done()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.fleet.Stop()
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("hyperion daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) (Status, error) {
	snapshot, err := d.fleet.Registry().Snapshot(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Running:      d.running.Load(),
		Fleet:        snapshot,
		DBPath:       d.store.Path(),
		LockFilePath: d.lockPath,
	}, nil
}

func (d *Daemon) resetDailyCounters(ctx context.Context) {
	date := time.Now().UTC().Format("2006-01-02")
	reset, err := d.store.ResetDailyCounters(ctx, date)
	if err != nil {
		d.logger.Error("daily counter reset failed", logging.Error(err))
		return
	}
	d.logger.Info("daily counters reset", logging.String("date", date), logging.Int64("workers", reset))
}
