package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncAuthOutcome is a no-op.
func (n *NoopRecorder) IncAuthOutcome(op, code string) {}

// ObserveHashDuration is a no-op.
func (n *NoopRecorder) ObserveHashDuration(duration time.Duration) {}

// IncGateDecision is a no-op.
func (n *NoopRecorder) IncGateDecision(outcome string) {}

// AddSessionsReclaimed is a no-op.
func (n *NoopRecorder) AddSessionsReclaimed(count int) {}
