// Package session implements the per-connection authentication state
// machine shared by the local and federated sign-in paths.
//
// A Session is either Anonymous or Authenticated(identity, source). The two
// fields are unexported and only change together, so a session can never be
// observed with an identity but no source or the reverse.
package session

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
)

// Source records which authentication path produced the current state.
type Source int

const (
	// SourceNone is the source of an anonymous session.
	SourceNone Source = iota
	// SourceLocal marks a password login against the credential store.
	SourceLocal
	// SourceFederated marks a login admitted by the federated gate.
	SourceFederated
)

// String returns the wire name of the source.
func (s Source) String() string {
	switch s {
	case SourceLocal:
		return "local"
	case SourceFederated:
		return "federated"
	default:
		return "none"
	}
}

// ParseSource is the inverse of Source.String.
func ParseSource(v string) (Source, error) {
	switch v {
	case "", "none":
		return SourceNone, nil
	case "local":
		return SourceLocal, nil
	case "federated":
		return SourceFederated, nil
	default:
		return SourceNone, fmt.Errorf("unknown session source %q", v)
	}
}

var (
	// ErrAlreadyAuthenticated is returned when Authenticate is called on an
	// authenticated session.
	ErrAlreadyAuthenticated = errors.New("session already authenticated")
	// ErrInvalidTransition is returned for an Authenticate call that would
	// break the identity/source invariant.
	ErrInvalidTransition = errors.New("invalid session transition")
)

// Assertion is the contract of an external identity provider session.
type Assertion interface {
	IsLoggedIn() bool
	// Email returns the verified identity string, or "" if the provider
	// did not supply a usable one.
	Email() string
}

// External is the stored form of an external provider session.
type External struct {
	Provider     string `json:"provider"`
	Subject      string `json:"subject,omitempty"`
	EmailAddress string `json:"email,omitempty"`
}

// IsLoggedIn reports whether the external session exists.
func (e *External) IsLoggedIn() bool {
	return e != nil
}

// Email returns the asserted email address.
func (e *External) Email() string {
	if e == nil {
		return ""
	}
	return e.EmailAddress
}

// PendingLogin binds an in-flight provider redirect to this session.
type PendingLogin struct {
	State    string `json:"state"`
	Verifier string `json:"verifier"`
}

// Session is the per-connection authentication state.
type Session struct {
	id       string
	identity string
	source   Source

	// justLoggedOut suppresses federated sign-in right after a federated logout.
	justLoggedOut bool

	external     *External
	externalSeen bool
	gateArmed    bool
	pending      *PendingLogin

	// rotate is set by authentication state changes; the id must be
	// replaced before the session is persisted again.
	rotate bool
	dirty  bool
}

// New returns an anonymous session.
func New(id string) *Session {
	return &Session{id: id, dirty: true}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Identity returns the authenticated identity and whether there is one.
func (s *Session) Identity() (string, bool) {
	return s.identity, s.source != SourceNone
}

// Source returns the path that authenticated the session.
func (s *Session) Source() Source { return s.source }

// IsAuthenticated reports whether the session is in the Authenticated state.
func (s *Session) IsAuthenticated() bool { return s.source != SourceNone }

// JustLoggedOut reports whether the last logout ended a federated session
// and the external session has not yet been observed absent.
func (s *Session) JustLoggedOut() bool { return s.justLoggedOut }

// Dirty reports whether the session changed since it was loaded.
func (s *Session) Dirty() bool { return s.dirty }

// MarkClean is called by stores after persisting the session.
func (s *Session) MarkClean() { s.dirty = false }

// Authenticate moves an anonymous session to Authenticated(identity, src).
func (s *Session) Authenticate(identity string, src Source) error {
	if s.source != SourceNone {
		return ErrAlreadyAuthenticated
	}
	if strings.TrimSpace(identity) == "" || src == SourceNone {
		return ErrInvalidTransition
	}
	s.identity = identity
	s.source = src
	s.justLoggedOut = false
	s.rotate = true
	s.dirty = true
	return nil
}

// Logout returns the session to Anonymous and reports the source it held.
// Ending a federated session sets the just-logged-out flag. Logging out an
// anonymous session changes nothing.
func (s *Session) Logout() Source {
	prev := s.source
	if prev == SourceNone {
		return prev
	}
	s.identity = ""
	s.source = SourceNone
	if prev == SourceFederated {
		s.justLoggedOut = true
	}
	s.rotate = true
	s.dirty = true
	return prev
}

// NeedsRotation reports whether the session changed between Anonymous and
// Authenticated since it was loaded and must move to a new id.
func (s *Session) NeedsRotation() bool { return s.rotate }

// Rotate moves the session to id, keeping every other field.
func (s *Session) Rotate(id string) {
	s.id = id
	s.rotate = false
	s.dirty = true
}

// External returns the current external provider session, or nil.
func (s *Session) External() Assertion {
	if s.external == nil {
		return nil
	}
	return s.external
}

// SetExternal records an external session established by the provider.
func (s *Session) SetExternal(ext *External) {
	s.external = ext
	s.dirty = true
}

// ClearExternal forgets the external session without touching the
// authentication state.
func (s *Session) ClearExternal() {
	if s.external == nil {
		return
	}
	s.external = nil
	s.dirty = true
}

// ObserveExternal compares the current external session presence with the
// presence seen at the previous observation. An absent-to-present edge arms
// the gate; observing absence disarms it and clears the just-logged-out
// flag. It returns whether the gate is armed.
func (s *Session) ObserveExternal() bool {
	present := s.external != nil
	armed, suppressed := s.gateArmed, s.justLoggedOut
	if present && !s.externalSeen {
		armed = true
	}
	if !present {
		armed = false
		suppressed = false
	}
	if present != s.externalSeen || armed != s.gateArmed || suppressed != s.justLoggedOut {
		s.externalSeen = present
		s.gateArmed = armed
		s.justLoggedOut = suppressed
		s.dirty = true
	}
	return s.gateArmed
}

// Disarm consumes the gate edge.
func (s *Session) Disarm() {
	if s.gateArmed {
		s.gateArmed = false
		s.dirty = true
	}
}

// BeginPending stores an in-flight provider login.
func (s *Session) BeginPending(p PendingLogin) {
	s.pending = &p
	s.dirty = true
}

// TakePending returns and removes the in-flight login if state matches.
// A mismatched state leaves nothing pending.
func (s *Session) TakePending(state string) (PendingLogin, bool) {
	p := s.pending
	if p != nil {
		s.pending = nil
		s.dirty = true
	}
	if p == nil || state == "" || subtle.ConstantTimeCompare([]byte(p.State), []byte(state)) != 1 {
		return PendingLogin{}, false
	}
	return *p, true
}
