package fleet

import (
	"context"
	"time"

	"hyperion/internal/config"
	"hyperion/internal/queue"
)

// StageRunner executes the two processing stages of a claimed task. The
// default runner simulates stage work by sleeping for the configured
// durations; tests substitute instant or failing runners.
type StageRunner interface {
	RunExtraction(ctx context.Context, task *queue.Task) error
	RunProcessing(ctx context.Context, task *queue.Task) error
}

type timedRunner struct {
	extraction time.Duration
	processing time.Duration
}

// NewTimedRunner builds the default stage runner from configured durations.
func NewTimedRunner(cfg *config.Config) StageRunner {
	return &timedRunner{
		extraction: time.Duration(cfg.Fleet.ExtractionSeconds) * time.Second,
		processing: time.Duration(cfg.Fleet.ProcessingSeconds) * time.Second,
	}
}

func (r *timedRunner) RunExtraction(ctx context.Context, _ *queue.Task) error {
	return wait(ctx, r.extraction)
}

func (r *timedRunner) RunProcessing(ctx context.Context, _ *queue.Task) error {
	return wait(ctx, r.processing)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
