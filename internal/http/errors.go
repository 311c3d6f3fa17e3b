package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/halcyonlabs/idcore/internal/domain"
)

type apiError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	RequestID        string `json:"request_id,omitempty"`
}

// WriteError escribe un error JSON estándar.
func WriteError(w http.ResponseWriter, status int, code, desc string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	rid := w.Header().Get("X-Request-ID")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiError{Error: code, ErrorDescription: desc, RequestID: rid})
}

// WriteJSON: respuesta JSON estándar.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ReadJSON decodifica el body de forma tolerante (no falla por campos
// desconocidos). Valida Content-Type y limita el body a 1MB.
func ReadJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if !strings.Contains(ct, "application/json") {
		WriteError(w, http.StatusBadRequest, "invalid_json", "Content-Type debe ser application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil && err != io.EOF {
		WriteError(w, http.StatusBadRequest, "invalid_json", "json inválido")
		return false
	}
	return true
}

// WriteDomainError mapea la taxonomía de errores de negocio a status codes.
func WriteDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrInvalidVerificationCode):
		WriteError(w, http.StatusUnauthorized, "invalid_credentials", err.Error())
	case errors.Is(err, domain.ErrInvalidOrExpiredToken):
		WriteError(w, http.StatusUnauthorized, "invalid_token", err.Error())
	case errors.Is(err, domain.ErrAccountLocked):
		WriteError(w, http.StatusLocked, "account_locked", err.Error())
	case errors.Is(err, domain.ErrIdentityNotActive),
		errors.Is(err, domain.ErrIdentityRevoked):
		WriteError(w, http.StatusForbidden, "identity_not_active", err.Error())
	case errors.Is(err, domain.ErrIdentityNotFound),
		errors.Is(err, domain.ErrPermissionNotFound),
		errors.Is(err, domain.ErrRoleNotFound),
		errors.Is(err, domain.ErrAssignmentNotFound),
		errors.Is(err, domain.ErrMFANotConfigured):
		WriteError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrIdentityExists),
		errors.Is(err, domain.ErrPermissionExists),
		errors.Is(err, domain.ErrRoleExists),
		errors.Is(err, domain.ErrMFAAlreadyConfigured),
		errors.Is(err, domain.ErrAssignmentInUse):
		WriteError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, domain.ErrBiometricMismatch):
		WriteError(w, http.StatusUnauthorized, "biometric_mismatch", err.Error())
	case errors.Is(err, domain.ErrCircuitOpen):
		WriteError(w, http.StatusServiceUnavailable, "circuit_open", err.Error())
	case errors.Is(err, domain.ErrEvidenceMalformed):
		WriteError(w, http.StatusBadRequest, "evidence_malformed", err.Error())
	case errors.Is(err, domain.ErrInvalidName):
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "error interno")
	}
}
