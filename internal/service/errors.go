// Package service provides the local and federated authentication flows.
package service

import (
	"errors"

	"github.com/gatehouse/gatehouse/internal/auth"
)

// Code is the stable, machine-readable result of an auth operation.
type Code string

// Result codes.
const (
	CodeSuccess                  Code = "SUCCESS"
	CodeFieldsMissing            Code = "FIELDS_MISSING"
	CodePasswordMismatch         Code = "PASSWORD_MISMATCH"
	CodePasswordTooLong          Code = "PASSWORD_TOO_LONG"
	CodeAlreadyRegistered        Code = "ALREADY_REGISTERED"
	CodeNotFound                 Code = "NOT_FOUND"
	CodeIncorrectCredentials     Code = "INCORRECT_CREDENTIALS"
	CodeResetFailed              Code = "RESET_FAILED"
	CodeAlreadyAuthenticated     Code = "ALREADY_AUTHENTICATED"
	CodeFederatedIdentityMissing Code = "FEDERATED_IDENTITY_MISSING"
	CodeNotRegistered            Code = "NOT_REGISTERED"
	CodeSignInSuppressed         Code = "SIGN_IN_SUPPRESSED"
	CodeFederatedDisabled        Code = "FEDERATED_DISABLED"
	CodeInvalidState             Code = "INVALID_STATE"
	CodeUnauthenticated          Code = "UNAUTHENTICATED"
	CodeInvalidRequest           Code = "INVALID_REQUEST"
	CodeInternalError            Code = "INTERNAL_ERROR"
)

// ActionDisconnectFederated asks the client to offer ending the external
// provider session.
const ActionDisconnectFederated = "disconnect_federated"

// Service errors.
var (
	ErrFieldsMissing            = errors.New("all fields are required")
	ErrPasswordMismatch         = errors.New("passwords do not match")
	ErrAlreadyRegistered        = errors.New("an account with this identity already exists")
	ErrNotFound                 = errors.New("user not found, please sign up first")
	ErrIncorrectCredentials     = errors.New("incorrect password")
	ErrResetFailed              = errors.New("failed to update password")
	ErrAlreadyAuthenticated     = errors.New("already signed in")
	ErrFederatedIdentityMissing = errors.New("the identity provider did not return a verified email address")
	ErrNotRegistered            = errors.New("this account is not registered, sign up with the same email first")
	ErrSignInSuppressed         = errors.New("federated sign-in is paused right after logout")
	ErrFederatedDisabled        = errors.New("federated sign-in is not configured")
	ErrInvalidState             = errors.New("login state is missing or does not match")
	ErrUnauthenticated          = errors.New("sign in required")
	ErrInvalidRequest           = errors.New("invalid request body")
)

var codeTable = []struct {
	err  error
	code Code
}{
	{ErrFieldsMissing, CodeFieldsMissing},
	{ErrPasswordMismatch, CodePasswordMismatch},
	{auth.ErrPasswordTooLong, CodePasswordTooLong},
	{ErrAlreadyRegistered, CodeAlreadyRegistered},
	{ErrNotFound, CodeNotFound},
	{ErrIncorrectCredentials, CodeIncorrectCredentials},
	{ErrResetFailed, CodeResetFailed},
	{ErrAlreadyAuthenticated, CodeAlreadyAuthenticated},
	{ErrFederatedIdentityMissing, CodeFederatedIdentityMissing},
	{ErrNotRegistered, CodeNotRegistered},
	{ErrSignInSuppressed, CodeSignInSuppressed},
	{ErrFederatedDisabled, CodeFederatedDisabled},
	{ErrInvalidState, CodeInvalidState},
	{ErrUnauthenticated, CodeUnauthenticated},
	{ErrInvalidRequest, CodeInvalidRequest},
}

// CodeFor maps an operation error to its result code. Errors outside the
// service vocabulary map to CodeInternalError.
func CodeFor(err error) Code {
	if err == nil {
		return CodeSuccess
	}
	for _, entry := range codeTable {
		if errors.Is(err, entry.err) {
			return entry.code
		}
	}
	return CodeInternalError
}

// MessageFor returns the client-facing message for err. Errors outside the
// service vocabulary get a generic message so internals never leak.
func MessageFor(err error) string {
	if err == nil {
		return ""
	}
	for _, entry := range codeTable {
		if errors.Is(err, entry.err) {
			return entry.err.Error()
		}
	}
	return "internal server error"
}

// ActionsFor returns the follow-up actions a client should offer for err.
func ActionsFor(err error) []string {
	switch {
	case errors.Is(err, ErrFederatedIdentityMissing), errors.Is(err, ErrNotRegistered):
		return []string{ActionDisconnectFederated}
	default:
		return nil
	}
}
