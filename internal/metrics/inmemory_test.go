package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestInMemoryRecorder_Outcomes(t *testing.T) {
	t.Parallel()

	m := NewInMemory()
	m.IncAuthOutcome(OpLogin, "SUCCESS")
	m.IncAuthOutcome(OpLogin, "SUCCESS")
	m.IncAuthOutcome(OpLogin, "INCORRECT_CREDENTIALS")
	m.IncAuthOutcome(OpSignUp, "SUCCESS")

	snap := m.Snapshot()
	if got := snap.Outcome(OpLogin, "SUCCESS"); got != 2 {
		t.Errorf("login SUCCESS = %d, want 2", got)
	}
	if got := snap.Outcome(OpLogin, "INCORRECT_CREDENTIALS"); got != 1 {
		t.Errorf("login INCORRECT_CREDENTIALS = %d, want 1", got)
	}
	if got := snap.Outcome(OpReset, "SUCCESS"); got != 0 {
		t.Errorf("reset SUCCESS = %d, want 0", got)
	}
	if len(snap.Outcomes) != 3 {
		t.Fatalf("len(Outcomes) = %d, want 3", len(snap.Outcomes))
	}
	if snap.Outcomes[0].Op != OpLogin || snap.Outcomes[0].Code != "INCORRECT_CREDENTIALS" {
		t.Errorf("Outcomes[0] = %+v, want sorted by op then code", snap.Outcomes[0])
	}
}

func TestInMemoryRecorder_Concurrent(t *testing.T) {
	t.Parallel()

	m := NewInMemory()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.IncGateDecision("admitted")
			m.ObserveHashDuration(time.Millisecond)
			m.AddSessionsReclaimed(2)
		}()
	}
	wg.Wait()

	snap := m.Snapshot()
	if snap.GateDecisions["admitted"] != 50 {
		t.Errorf("admitted = %d, want 50", snap.GateDecisions["admitted"])
	}
	if snap.HashDurationCount != 50 {
		t.Errorf("HashDurationCount = %d, want 50", snap.HashDurationCount)
	}
	if snap.HashDurationTotalNs != int64(50*time.Millisecond) {
		t.Errorf("HashDurationTotalNs = %d", snap.HashDurationTotalNs)
	}
	if snap.SessionsReclaimed != 100 {
		t.Errorf("SessionsReclaimed = %d, want 100", snap.SessionsReclaimed)
	}
}

func TestInMemoryRecorder_IgnoresNonPositiveReclaim(t *testing.T) {
	t.Parallel()

	m := NewInMemory()
	m.AddSessionsReclaimed(0)
	m.AddSessionsReclaimed(-3)
	if got := m.Snapshot().SessionsReclaimed; got != 0 {
		t.Errorf("SessionsReclaimed = %d, want 0", got)
	}
}
