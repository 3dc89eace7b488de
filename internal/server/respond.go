package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/desertthunder/plmigrate/internal/shared"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}

// statusFor maps an error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrAuthenticationRequired),
		errors.Is(err, shared.ErrRefreshFailed),
		errors.Is(err, shared.ErrAuthRejected):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrValidation),
		errors.Is(err, shared.ErrInvalidArgument),
		errors.Is(err, shared.ErrMissingArgument):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrMigrationInProgress), errors.Is(err, shared.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, shared.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, shared.ErrMissingCredentials):
		return http.StatusServiceUnavailable
	case errors.Is(err, shared.ErrTransientNetwork),
		errors.Is(err, shared.ErrCatalogRequest),
		errors.Is(err, shared.ErrMalformedResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeErr(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return errors.Join(shared.ErrValidation, err)
	}
	return nil
}
