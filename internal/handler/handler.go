// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gatehouse/gatehouse/internal/handler/dto"
	"github.com/gatehouse/gatehouse/internal/service"
)

// Handler serves the fallback routes.
type Handler struct{}

// New creates a new Handler instance.
func New() *Handler {
	return &Handler{}
}

// NotFound handles 404 responses.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, dto.Result{Code: "NOT_FOUND", Message: "resource not found"})
}

// MethodNotAllowed handles 405 responses.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, dto.Result{Code: "METHOD_NOT_ALLOWED", Message: "method not allowed"})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// statusFor maps a result code to its HTTP status.
func statusFor(code service.Code) int {
	switch code {
	case service.CodeSuccess:
		return http.StatusOK
	case service.CodeFieldsMissing, service.CodePasswordMismatch, service.CodePasswordTooLong,
		service.CodeInvalidRequest, service.CodeInvalidState:
		return http.StatusBadRequest
	case service.CodeIncorrectCredentials, service.CodeUnauthenticated, service.CodeFederatedIdentityMissing:
		return http.StatusUnauthorized
	case service.CodeNotRegistered:
		return http.StatusForbidden
	case service.CodeNotFound:
		return http.StatusNotFound
	case service.CodeAlreadyRegistered, service.CodeAlreadyAuthenticated, service.CodeSignInSuppressed:
		return http.StatusConflict
	case service.CodeFederatedDisabled:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// resultFor builds the response body for err, which may be nil.
func resultFor(err error, successMessage string) dto.Result {
	if err == nil {
		return dto.Result{Code: string(service.CodeSuccess), Message: successMessage}
	}
	return dto.Result{
		Code:    string(service.CodeFor(err)),
		Message: service.MessageFor(err),
		Actions: service.ActionsFor(err),
	}
}

// writeError writes the error result for err.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(service.CodeFor(err)), resultFor(err, ""))
}

// decodeJSON reads a single JSON object from the request body.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return service.ErrInvalidRequest
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return service.ErrInvalidRequest
	}
	return nil
}
