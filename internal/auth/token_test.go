package auth

import "testing"

func TestNewSessionID(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := NewSessionID()
		if err != nil {
			t.Fatalf("NewSessionID failed: %v", err)
		}
		if !ValidSessionID(id) {
			t.Fatalf("generated id %q fails validation", id)
		}
		if seen[id] {
			t.Fatalf("duplicate session id %q", id)
		}
		seen[id] = true
	}
}

func TestValidSessionID_Rejects(t *testing.T) {
	t.Parallel()

	for _, id := range []string{"", "abc", "ZZ" + string(make([]byte, 62)), "../../etc/passwd"} {
		if ValidSessionID(id) {
			t.Errorf("ValidSessionID(%q) should be false", id)
		}
	}
}

func TestNewState(t *testing.T) {
	t.Parallel()

	a, err := NewState()
	if err != nil {
		t.Fatalf("NewState failed: %v", err)
	}
	b, _ := NewState()
	if len(a) != 32 || a == b {
		t.Errorf("unexpected states %q, %q", a, b)
	}
}
