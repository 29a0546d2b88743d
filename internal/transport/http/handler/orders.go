package handler

import (
	"net/http"

	"github.com/fern-folio/bookstore-api/internal/application/order"
	"github.com/fern-folio/bookstore-api/internal/domain"
	"github.com/go-chi/chi/v5"
)

// OrderHandler handles order placement and fulfilment.
type OrderHandler struct {
	svc order.Service
}

func NewOrderHandler(svc order.Service) *OrderHandler { return &OrderHandler{svc: svc} }

func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOr401(w, r)
	if !ok {
		return
	}
	var req domain.CreateOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	o, err := h.svc.Place(r.Context(), actor.UserID, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrderHandler) Mine(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOr401(w, r)
	if !ok {
		return
	}
	orders, err := h.svc.ListMine(r.Context(), actor.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOrders(w, orders)
}

func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	orders, err := h.svc.ListAll(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOrders(w, orders)
}

func writeOrders(w http.ResponseWriter, orders []domain.Order) {
	if orders == nil {
		orders = []domain.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOr401(w, r)
	if !ok {
		return
	}
	o, err := h.svc.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req domain.OrderStatusUpdate
	if !decodeJSON(w, r, &req) {
		return
	}
	o, err := h.svc.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "order deleted"})
}
