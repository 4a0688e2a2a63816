package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/homelink/homelink-core/internal/identity"
	"github.com/homelink/homelink-core/internal/resolver"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeForbidden    = "forbidden"
	ErrCodeConflict     = "conflict"
	ErrCodeInternal     = "internal_error"
	ErrCodeValidation   = "validation_error"
	ErrCodeThrottled    = "too_many_requests"
	ErrCodeUnavailable  = "unavailable"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeForbidden writes a 403 error response.
func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, ErrCodeForbidden, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeResolveError maps admission failures to HTTP responses. The
// message is always the user-facing one; internal causes stay in the
// server log.
func writeResolveError(w http.ResponseWriter, err error) {
	var credErr *identity.CredentialError
	if errors.As(err, &credErr) {
		status, code := credentialStatus(credErr.Kind)
		writeError(w, status, code, credErr.UserMessage())
		return
	}

	var linkErr *resolver.LinkingError
	if errors.As(err, &linkErr) {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, linkErr.UserMessage())
		return
	}

	var mismatch *resolver.RoleMismatchError
	if errors.As(err, &mismatch) {
		writeError(w, http.StatusForbidden, ErrCodeForbidden, mismatch.UserMessage())
		return
	}

	var persist *resolver.ProfilePersistError
	if errors.As(err, &persist) {
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, persist.UserMessage())
		return
	}

	if errors.Is(err, resolver.ErrIncompleteProfile) {
		writeError(w, http.StatusConflict, ErrCodeConflict,
			"Your account setup is incomplete. Please sign up again or contact your home admin.")
		return
	}

	writeInternalError(w, "sign-in could not be completed")
}

// credentialStatus maps a credential error kind to an HTTP status and code.
func credentialStatus(kind identity.ErrorKind) (int, string) {
	switch kind {
	case identity.KindInvalidEmail, identity.KindWeakPassword:
		return http.StatusBadRequest, ErrCodeValidation
	case identity.KindEmailInUse, identity.KindDifferentCredential:
		return http.StatusConflict, ErrCodeConflict
	case identity.KindWrongCredentials, identity.KindPopupClosed, identity.KindPopupBlocked:
		return http.StatusUnauthorized, ErrCodeUnauthorized
	case identity.KindTooManyRequests:
		return http.StatusTooManyRequests, ErrCodeThrottled
	case identity.KindNetworkFailure:
		return http.StatusServiceUnavailable, ErrCodeUnavailable
	default:
		return http.StatusInternalServerError, ErrCodeInternal
	}
}
