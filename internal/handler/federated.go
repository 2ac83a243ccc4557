package handler

import (
	"log/slog"
	"net/http"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/handler/dto"
	"github.com/gatehouse/gatehouse/internal/service"
)

// FederatedHandler serves the identity provider routes.
type FederatedHandler struct {
	gate   *service.FederatedGate
	logger *slog.Logger
}

// NewFederatedHandler creates a new FederatedHandler.
func NewFederatedHandler(gate *service.FederatedGate, logger *slog.Logger) *FederatedHandler {
	return &FederatedHandler{gate: gate, logger: logger}
}

// Start handles GET /auth/federated/start by redirecting to the provider.
func (h *FederatedHandler) Start(w http.ResponseWriter, r *http.Request) {
	sess := auth.MustSessionFromContext(r.Context())

	redirect, err := h.gate.BeginLogin(sess)
	if err != nil {
		writeError(w, err)
		return
	}
	http.Redirect(w, r, redirect, http.StatusFound)
}

// Callback handles GET /auth/federated/callback.
func (h *FederatedHandler) Callback(w http.ResponseWriter, r *http.Request) {
	sess := auth.MustSessionFromContext(r.Context())
	q := r.URL.Query()

	if providerErr := q.Get("error"); providerErr != "" {
		h.logger.Info("provider returned error", "error", providerErr)
		// Drop the pending login so the state cannot be replayed.
		sess.TakePending("")
		writeError(w, service.ErrInvalidState)
		return
	}

	outcome, err := h.gate.CompleteLogin(r.Context(), sess, q.Get("state"), q.Get("code"))
	if err != nil {
		writeError(w, err)
		return
	}

	resp := sessionResponse(sess, true)
	resp.Gate = &dto.GateResult{Outcome: string(outcome)}
	writeJSON(w, http.StatusOK, resp)
}

// Disconnect handles POST /auth/federated/disconnect. It ends only the
// external provider session.
func (h *FederatedHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	sess := auth.MustSessionFromContext(r.Context())
	endURL := h.gate.Disconnect(sess)

	writeJSON(w, http.StatusOK, dto.DisconnectResponse{
		Result:        resultFor(nil, "disconnected from the identity provider"),
		EndSessionURL: endURL,
	})
}
