// Package dto provides Data Transfer Objects for API requests and responses.
package dto

// SignUpRequest is the body of POST /auth/signup.
type SignUpRequest struct {
	Identity        string `json:"identity"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Identity string `json:"identity"`
	Password string `json:"password"`
}

// ResetRequest is the body of POST /auth/reset.
type ResetRequest struct {
	Identity        string `json:"identity"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

// Result is the outcome of an auth operation. Failures use the same shape.
type Result struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Actions []string `json:"actions,omitempty"`
}

// LogoutResponse reports what a logout ended.
type LogoutResponse struct {
	Result
	PreviousSource string `json:"previous_source"`
	EndSessionURL  string `json:"end_session_url,omitempty"`
}

// DisconnectResponse reports an ended external provider session.
type DisconnectResponse struct {
	Result
	EndSessionURL string `json:"end_session_url,omitempty"`
}

// ExternalSession describes the external provider session, if any.
type ExternalSession struct {
	Provider string `json:"provider"`
	Email    string `json:"email,omitempty"`
}

// GateResult is the outcome of the gate evaluation done for this request.
type GateResult struct {
	Outcome string   `json:"outcome"`
	Code    string   `json:"code,omitempty"`
	Message string   `json:"message,omitempty"`
	Actions []string `json:"actions,omitempty"`
}

// SessionResponse is the current session state.
type SessionResponse struct {
	Authenticated    bool             `json:"authenticated"`
	Identity         string           `json:"identity,omitempty"`
	Source           string           `json:"source"`
	JustLoggedOut    bool             `json:"just_logged_out"`
	FederatedEnabled bool             `json:"federated_enabled"`
	External         *ExternalSession `json:"external,omitempty"`
	Gate             *GateResult      `json:"gate,omitempty"`
}

// MeResponse is the body of GET /api/v1/me.
type MeResponse struct {
	Identity     string   `json:"identity"`
	Source       string   `json:"source"`
	Capabilities []string `json:"capabilities"`
}
