package session

import "fmt"

// Record is the serialized form of a Session kept by a Store.
type Record struct {
	ID            string        `json:"id"`
	Identity      string        `json:"identity,omitempty"`
	Source        string        `json:"source"`
	JustLoggedOut bool          `json:"just_logged_out,omitempty"`
	External      *External     `json:"external,omitempty"`
	ExternalSeen  bool          `json:"external_seen,omitempty"`
	GateArmed     bool          `json:"gate_armed,omitempty"`
	Pending       *PendingLogin `json:"pending,omitempty"`
}

// Record returns a snapshot of s.
func (s *Session) Record() Record {
	r := Record{
		ID:            s.id,
		Identity:      s.identity,
		Source:        s.source.String(),
		JustLoggedOut: s.justLoggedOut,
		ExternalSeen:  s.externalSeen,
		GateArmed:     s.gateArmed,
	}
	if s.external != nil {
		ext := *s.external
		r.External = &ext
	}
	if s.pending != nil {
		p := *s.pending
		r.Pending = &p
	}
	return r
}

// FromRecord rebuilds a Session, rejecting records that violate the
// identity/source invariant.
func FromRecord(r Record) (*Session, error) {
	src, err := ParseSource(r.Source)
	if err != nil {
		return nil, err
	}
	if (r.Identity == "") != (src == SourceNone) {
		return nil, fmt.Errorf("session %s: identity and source disagree", r.ID)
	}
	s := &Session{
		id:            r.ID,
		identity:      r.Identity,
		source:        src,
		justLoggedOut: r.JustLoggedOut,
		externalSeen:  r.ExternalSeen,
		gateArmed:     r.GateArmed,
	}
	if r.External != nil {
		ext := *r.External
		s.external = &ext
	}
	if r.Pending != nil {
		p := *r.Pending
		s.pending = &p
	}
	return s, nil
}
