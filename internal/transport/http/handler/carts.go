package handler

import (
	"net/http"

	"github.com/fern-folio/bookstore-api/internal/application/cart"
	"github.com/fern-folio/bookstore-api/internal/domain"
	"github.com/go-chi/chi/v5"
)

// CartHandler manages the caller's shopping cart.
type CartHandler struct {
	svc cart.Service
}

func NewCartHandler(svc cart.Service) *CartHandler { return &CartHandler{svc: svc} }

func (h *CartHandler) Mine(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOr401(w, r)
	if !ok {
		return
	}
	c, err := h.svc.Get(r.Context(), actor.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOr401(w, r)
	if !ok {
		return
	}
	c, err := h.svc.GetByID(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOr401(w, r)
	if !ok {
		return
	}
	var req domain.AddToCartRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.svc.AddItem(r.Context(), actor.UserID, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOr401(w, r)
	if !ok {
		return
	}
	var req domain.UpdateCartItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.svc.UpdateItem(r.Context(), actor.UserID, chi.URLParam(r, "itemID"), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOr401(w, r)
	if !ok {
		return
	}
	c, err := h.svc.RemoveItem(r.Context(), actor.UserID, chi.URLParam(r, "itemID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOr401(w, r)
	if !ok {
		return
	}
	if err := h.svc.Clear(r.Context(), actor.UserID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "cart cleared"})
}

func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOr401(w, r)
	if !ok {
		return
	}
	o, err := h.svc.Checkout(r.Context(), actor.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}
