package fleet

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"hyperion/internal/config"
	"hyperion/internal/logging"
	"hyperion/internal/notifications"
	"hyperion/internal/queue"
)

// Manager runs the full fleet of worker units.
type Manager struct {
	cfg      *config.Config
	store    *queue.Store
	logger   *slog.Logger
	notifier notifications.Service
	runner   StageRunner
	registry *Registry

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager constructs a fleet manager with the default timed stage runner.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Manager {
	return NewManagerWithRunner(cfg, store, logger, notifications.NewService(cfg), NewTimedRunner(cfg))
}

// NewManagerWithRunner constructs a fleet manager with a custom notifier and
// stage runner (used in tests).
func NewManagerWithRunner(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service, runner StageRunner) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		cfg:      cfg,
		store:    store,
		logger:   logger,
		notifier: notifier,
		runner:   runner,
		registry: NewRegistry(cfg, store),
	}
}

// Registry exposes the fleet registry for status reporting.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Start bootstraps the fixed slots and launches one goroutine per unit.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("fleet already running")
	}

	if err := m.registry.Bootstrap(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	poll := time.Duration(m.cfg.Fleet.QueuePollInterval) * time.Second
	ping := time.Duration(m.cfg.Fleet.PingInterval) * time.Second

	m.wg.Add(len(UnitNames))
	for i, name := range UnitNames {
		unit := NewUnit(int64(i+1), name, m.store, m.runner, m.notifier, m.logger, poll, ping)
		go func() {
			defer m.wg.Done()
			unit.Run(runCtx)
		}()
	}

	m.logger.Info("fleet started", logging.Int("units", len(UnitNames)))
	return nil
}

// Stop terminates all units and waits for them to drain.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("fleet stopped")
}
