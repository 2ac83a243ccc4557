package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// OutcomeCount is one labelled counter value.
type OutcomeCount struct {
	Op    string
	Code  string
	Count uint64
}

// Snapshot captures current in-memory counters.
type Snapshot struct {
	Outcomes            []OutcomeCount
	GateDecisions       map[string]uint64
	HashDurationCount   uint64
	HashDurationTotalNs int64
	SessionsReclaimed   uint64
}

// Outcome returns the counter for op and code, or zero.
func (s Snapshot) Outcome(op, code string) uint64 {
	for _, o := range s.Outcomes {
		if o.Op == op && o.Code == code {
			return o.Count
		}
	}
	return 0
}

type outcomeKey struct {
	op   string
	code string
}

// InMemoryRecorder stores metrics in memory for the /metrics endpoint and tests.
type InMemoryRecorder struct {
	mu       sync.Mutex
	outcomes map[outcomeKey]uint64
	gate     map[string]uint64

	hashDurationCount   uint64
	hashDurationTotalNs int64
	sessionsReclaimed   uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		outcomes: make(map[outcomeKey]uint64),
		gate:     make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters. Outcomes are sorted by op then code.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	outcomes := make([]OutcomeCount, 0, len(m.outcomes))
	for k, v := range m.outcomes {
		outcomes = append(outcomes, OutcomeCount{Op: k.op, Code: k.code, Count: v})
	}
	gate := make(map[string]uint64, len(m.gate))
	for k, v := range m.gate {
		gate[k] = v
	}
	m.mu.Unlock()

	sort.Slice(outcomes, func(i, j int) bool {
		if outcomes[i].Op != outcomes[j].Op {
			return outcomes[i].Op < outcomes[j].Op
		}
		return outcomes[i].Code < outcomes[j].Code
	})

	return Snapshot{
		Outcomes:            outcomes,
		GateDecisions:       gate,
		HashDurationCount:   atomic.LoadUint64(&m.hashDurationCount),
		HashDurationTotalNs: atomic.LoadInt64(&m.hashDurationTotalNs),
		SessionsReclaimed:   atomic.LoadUint64(&m.sessionsReclaimed),
	}
}

// IncAuthOutcome increments the outcome counter for op and code.
func (m *InMemoryRecorder) IncAuthOutcome(op, code string) {
	m.mu.Lock()
	m.outcomes[outcomeKey{op: op, code: code}]++
	m.mu.Unlock()
}

// ObserveHashDuration records hashing duration.
func (m *InMemoryRecorder) ObserveHashDuration(duration time.Duration) {
	atomic.AddUint64(&m.hashDurationCount, 1)
	atomic.AddInt64(&m.hashDurationTotalNs, duration.Nanoseconds())
}

// IncGateDecision increments the gate decision counter.
func (m *InMemoryRecorder) IncGateDecision(outcome string) {
	m.mu.Lock()
	m.gate[outcome]++
	m.mu.Unlock()
}

// AddSessionsReclaimed adds n to the reclaimed sessions counter.
func (m *InMemoryRecorder) AddSessionsReclaimed(n int) {
	if n <= 0 {
		return
	}
	atomic.AddUint64(&m.sessionsReclaimed, uint64(n))
}
