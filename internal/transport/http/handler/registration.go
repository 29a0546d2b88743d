package handler

import (
	"net/http"

	"github.com/fern-folio/bookstore-api/internal/application/registration"
	"github.com/fern-folio/bookstore-api/internal/domain"
	"github.com/go-chi/chi/v5"
)

// RegistrationHandler drives signup and email verification.
type RegistrationHandler struct {
	svc registration.Service
}

func NewRegistrationHandler(svc registration.Service) *RegistrationHandler {
	return &RegistrationHandler{svc: svc}
}

func (h *RegistrationHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if _, err := h.svc.Register(r.Context(), req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, MessageEnvelope{
		Message: "verification email sent, please confirm your address to finish registration",
	})
}

func (h *RegistrationHandler) Verify(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Verify(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *RegistrationHandler) Resend(w http.ResponseWriter, r *http.Request) {
	var req domain.ResendVerificationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.ResendVerification(r.Context(), req.Email); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, MessageEnvelope{Message: "verification email sent"})
}
