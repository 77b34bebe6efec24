package fleet

import (
	"context"
	"fmt"
	"time"

	"hyperion/internal/config"
	"hyperion/internal/queue"
)

// UnitStatus is one worker slot as reported in a fleet snapshot.
type UnitStatus struct {
	ID             int64
	Name           string
	State          UnitState
	LastPing       *time.Time
	DailyTaskCount int
	CurrentTaskID  string
}

// Snapshot is a point-in-time view of the whole cluster.
type Snapshot struct {
	Units      []UnitStatus
	Health     Health
	Active     int
	Working    int
	QueueDepth int
	TaskStats  map[queue.Status]int
	TakenAt    time.Time
}

// Registry reads fleet state out of the store and grades cluster health.
type Registry struct {
	store            *queue.Store
	offlineThreshold time.Duration
}

// NewRegistry constructs a registry using the configured heartbeat window.
func NewRegistry(cfg *config.Config, store *queue.Store) *Registry {
	return &Registry{
		store:            store,
		offlineThreshold: time.Duration(cfg.Fleet.OfflineThreshold) * time.Second,
	}
}

// Bootstrap registers the fixed worker slots. Safe to call on every startup.
func (r *Registry) Bootstrap(ctx context.Context) error {
	if err := r.store.InitFleet(ctx, UnitNames); err != nil {
		return fmt.Errorf("bootstrap fleet: %w", err)
	}
	return nil
}

// Snapshot reports every slot's state plus aggregate cluster health.
func (r *Registry) Snapshot(ctx context.Context) (*Snapshot, error) {
	workers, err := r.store.Workers(ctx)
	if err != nil {
		return nil, err
	}
	depth, err := r.store.QueueDepth(ctx)
	if err != nil {
		return nil, err
	}
	stats, err := r.store.Stats(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	snapshot := &Snapshot{
		Units:      make([]UnitStatus, 0, len(workers)),
		QueueDepth: depth,
		TaskStats:  stats,
		TakenAt:    now,
	}
	for _, worker := range workers {
		state := UnitOffline
		if worker.Online(now, r.offlineThreshold) {
			state = UnitActive
			if worker.CurrentTaskID != "" {
				state = UnitWorking
			}
		}
		switch state {
		case UnitActive:
			snapshot.Active++
		case UnitWorking:
			snapshot.Active++
			snapshot.Working++
		}
		snapshot.Units = append(snapshot.Units, UnitStatus{
			ID:             worker.ID,
			Name:           worker.DisplayName,
			State:          state,
			LastPing:       worker.LastPing,
			DailyTaskCount: worker.DailyTaskCount,
			CurrentTaskID:  worker.CurrentTaskID,
		})
	}
	snapshot.Health = EvaluateHealth(snapshot.Active, snapshot.Working)
	return snapshot, nil
}
