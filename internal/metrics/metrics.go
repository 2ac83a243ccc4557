// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Operation names used as the op label on outcome counters.
const (
	OpSignUp    = "signup"
	OpLogin     = "login"
	OpReset     = "reset"
	OpLogout    = "logout"
	OpFederated = "federated"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// IncAuthOutcome counts one finished operation by its result code.
	IncAuthOutcome(op, code string)
	// ObserveHashDuration records time spent in Hash or Verify.
	ObserveHashDuration(duration time.Duration)

	// IncGateDecision counts federated gate evaluations by outcome.
	IncGateDecision(outcome string)
	// AddSessionsReclaimed counts idle session records removed by a sweep.
	AddSessionsReclaimed(n int)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
