package handler

import (
	"log/slog"
	"net/http"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/handler/dto"
	"github.com/gatehouse/gatehouse/internal/service"
	"github.com/gatehouse/gatehouse/internal/session"
)

// capabilities are the features unlocked by any authenticated session.
var capabilities = []string{"summarize", "chat"}

// AuthHandler serves the local account routes and the session views.
type AuthHandler struct {
	svc    *service.AuthService
	gate   *service.FederatedGate
	logger *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc *service.AuthService, gate *service.FederatedGate, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		svc:    svc,
		gate:   gate,
		logger: logger,
	}
}

// SignUp handles POST /auth/signup.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req dto.SignUpRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	err := h.svc.SignUp(r.Context(), service.SignUpInput{
		Identity:        req.Identity,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resultFor(nil, "account created, you can now log in"))
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	sess := auth.MustSessionFromContext(r.Context())
	err := h.svc.Login(r.Context(), sess, service.LoginInput{
		Identity: req.Identity,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resultFor(nil, "logged in"))
}

// Reset handles POST /auth/reset.
func (h *AuthHandler) Reset(w http.ResponseWriter, r *http.Request) {
	var req dto.ResetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	err := h.svc.ResetPassword(r.Context(), service.ResetInput{
		Identity:        req.Identity,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resultFor(nil, "password updated, you can now log in"))
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess := auth.MustSessionFromContext(r.Context())
	res := h.svc.Logout(r.Context(), sess)

	writeJSON(w, http.StatusOK, dto.LogoutResponse{
		Result:         resultFor(nil, "logged out"),
		PreviousSource: res.Previous.String(),
		EndSessionURL:  res.EndSessionURL,
	})
}

// Session handles GET /auth/session. Each call is one gate evaluation
// cycle, so a freshly established external session is acted on here.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	sess := auth.MustSessionFromContext(r.Context())

	outcome, err := h.gate.Evaluate(r.Context(), sess)
	if err != nil && service.CodeFor(err) == service.CodeInternalError {
		writeError(w, err)
		return
	}

	resp := sessionResponse(sess, h.gate.Enabled())
	if outcome != service.OutcomeIdle {
		gate := &dto.GateResult{Outcome: string(outcome)}
		if err != nil {
			res := resultFor(err, "")
			gate.Code, gate.Message, gate.Actions = res.Code, res.Message, res.Actions
		}
		resp.Gate = gate
	}
	writeJSON(w, http.StatusOK, resp)
}

// Me handles GET /api/v1/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sess := auth.MustSessionFromContext(r.Context())
	identity, _ := sess.Identity()

	writeJSON(w, http.StatusOK, dto.MeResponse{
		Identity:     identity,
		Source:       sess.Source().String(),
		Capabilities: capabilities,
	})
}

func sessionResponse(sess *session.Session, federatedEnabled bool) dto.SessionResponse {
	identity, ok := sess.Identity()
	resp := dto.SessionResponse{
		Authenticated:    ok,
		Identity:         identity,
		Source:           sess.Source().String(),
		JustLoggedOut:    sess.JustLoggedOut(),
		FederatedEnabled: federatedEnabled,
	}
	if ext := sess.External(); ext != nil {
		provider := ""
		if stored, ok := ext.(*session.External); ok {
			provider = stored.Provider
		}
		resp.External = &dto.ExternalSession{Provider: provider, Email: ext.Email()}
	}
	return resp
}
