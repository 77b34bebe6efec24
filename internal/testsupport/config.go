package testsupport

import (
	"path/filepath"
	"testing"
	"time"

	"hyperion/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// Stage durations collapse to near-zero so worker cycles finish instantly.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Fleet.QueuePollInterval = 1
	cfg.Fleet.PingInterval = 1
	cfg.Fleet.OfflineThreshold = 120
	cfg.Fleet.ExtractionSeconds = 0
	cfg.Fleet.ProcessingSeconds = 0

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithStageDurations overrides the simulated stage durations on the test config.
func WithStageDurations(extraction, processing time.Duration) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Fleet.ExtractionSeconds = int(extraction / time.Second)
		cfg.Fleet.ProcessingSeconds = int(processing / time.Second)
	}
}

// WithOfflineThreshold overrides the heartbeat freshness window in seconds.
func WithOfflineThreshold(seconds int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Fleet.OfflineThreshold = seconds
	}
}
