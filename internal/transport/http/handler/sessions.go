package handler

import (
	"net/http"

	"github.com/fern-folio/bookstore-api/internal/application/auth"
	"github.com/fern-folio/bookstore-api/internal/domain"
)

// SessionHandler exchanges credentials for an access token.
type SessionHandler struct {
	svc auth.Service
}

func NewSessionHandler(svc auth.Service) *SessionHandler { return &SessionHandler{svc: svc} }

func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	token, _, err := h.svc.Login(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TokenEnvelope{AccessToken: token, TokenType: auth.TokenType})
}
