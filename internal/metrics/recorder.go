// Package metrics provides optional time-series recording for mining
// activity. Measurements flow to InfluxDB when configured and are dropped
// otherwise, so callers never branch on whether metrics are enabled.
package metrics

import "time"

// Recorder sinks mining measurements. Implementations must be safe for
// concurrent use and must never block the caller.
type Recorder interface {
	// RecordHashRate records the aggregate search rate across all workers.
	RecordHashRate(hashesPerSec float64, workers int)

	// RecordRound records a finished round, its outcome, and how many submit
	// attempts it took.
	RecordRound(outcome string, round uint64, attempts int, duration time.Duration)

	// RecordReward records claimable rewards credited by a confirmed solution.
	RecordReward(round uint64, amount uint64)

	// Close flushes any buffered measurements and releases resources.
	Close()
}

// NoopRecorder discards all measurements. It stands in when no metrics
// backend is configured.
type NoopRecorder struct{}

// NewNoopRecorder creates a recorder that drops everything.
func NewNoopRecorder() *NoopRecorder {
	return &NoopRecorder{}
}

// RecordHashRate discards the measurement.
func (n *NoopRecorder) RecordHashRate(hashesPerSec float64, workers int) {}

// RecordRound discards the measurement.
func (n *NoopRecorder) RecordRound(outcome string, round uint64, attempts int, duration time.Duration) {
}

// RecordReward discards the measurement.
func (n *NoopRecorder) RecordReward(round uint64, amount uint64) {}

// Close is a no-op.
func (n *NoopRecorder) Close() {}

// Compile-time interface checks
var (
	_ Recorder = (*NoopRecorder)(nil)
	_ Recorder = (*InfluxRecorder)(nil)
)
