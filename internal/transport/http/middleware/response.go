package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fern-folio/bookstore-api/internal/domain"
)

var (
	errMissingBearer = errors.New("missing or invalid authorization header")
	errBadToken      = errors.New("invalid or expired token")
)

// errorBody matches the handler package's error envelope.
type errorBody struct {
	Error string `json:"error"`
}

// writeJSONError rejects the request before it reaches a handler.
func writeJSONError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: err.Error()})
}

func unauthorized(w http.ResponseWriter, err error) {
	writeJSONError(w, http.StatusUnauthorized, err)
}

func forbidden(w http.ResponseWriter) {
	writeJSONError(w, http.StatusForbidden, domain.ErrForbidden)
}

func tooManyRequests(w http.ResponseWriter) {
	writeJSONError(w, http.StatusTooManyRequests, domain.ErrRateLimited)
}
