package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fern-folio/bookstore-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockOrderSvc struct{ mock.Mock }

func (m *mockOrderSvc) Place(ctx context.Context, userID string, req domain.CreateOrderRequest) (*domain.Order, error) {
	args := m.Called(ctx, userID, req)
	if o, _ := args.Get(0).(*domain.Order); o != nil {
		return o, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockOrderSvc) Get(ctx context.Context, actor domain.Actor, orderID string) (*domain.Order, error) {
	args := m.Called(ctx, actor, orderID)
	if o, _ := args.Get(0).(*domain.Order); o != nil {
		return o, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockOrderSvc) ListMine(ctx context.Context, userID string) ([]domain.Order, error) {
	args := m.Called(ctx, userID)
	orders, _ := args.Get(0).([]domain.Order)
	return orders, args.Error(1)
}

func (m *mockOrderSvc) ListAll(ctx context.Context) ([]domain.Order, error) {
	args := m.Called(ctx)
	orders, _ := args.Get(0).([]domain.Order)
	return orders, args.Error(1)
}

func (m *mockOrderSvc) UpdateStatus(ctx context.Context, orderID, status string) (*domain.Order, error) {
	args := m.Called(ctx, orderID, status)
	if o, _ := args.Get(0).(*domain.Order); o != nil {
		return o, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockOrderSvc) Delete(ctx context.Context, orderID string) error {
	return m.Called(ctx, orderID).Error(0)
}

func TestOrderCreate_HappyPath(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockOrderSvc{}
	req := domain.CreateOrderRequest{Items: []domain.OrderLine{{BookID: "b1", Quantity: 2}}}
	svc.On("Place", mock.Anything, "u1", req).
		Return(&domain.Order{OrderID: "o1", UserID: "u1", Status: domain.OrderPending, TotalAmount: 1800}, nil)
	h := NewOrderHandler(svc)

	body, _ := json.Marshal(req)
	rr := httptest.NewRecorder()
	serveAuthed(p, h.Create, rr, bearerReq(t, p, http.MethodPost, "/v1/orders", "u1", domain.RoleCustomer, body))

	assert.Equal(t, http.StatusCreated, rr.Code)
	var o domain.Order
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&o))
	assert.Equal(t, int64(1800), o.TotalAmount)
	svc.AssertExpectations(t)
}

func TestOrderCreate_EmptyItems(t *testing.T) {
	p := newTestJWTProvider(t)
	h := NewOrderHandler(&mockOrderSvc{})

	rr := httptest.NewRecorder()
	serveAuthed(p, h.Create, rr, bearerReq(t, p, http.MethodPost, "/v1/orders", "u1", domain.RoleCustomer, []byte(`{"items":[]}`)))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestOrderCreate_OutOfStock(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockOrderSvc{}
	svc.On("Place", mock.Anything, "u1", mock.Anything).Return(nil, domain.ErrInsufficientStock)
	h := NewOrderHandler(svc)

	rr := httptest.NewRecorder()
	serveAuthed(p, h.Create, rr, bearerReq(t, p, http.MethodPost, "/v1/orders", "u1", domain.RoleCustomer,
		[]byte(`{"items":[{"book_id":"b1","quantity":1}]}`)))
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestOrderMine_EmptyIsArray(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockOrderSvc{}
	svc.On("ListMine", mock.Anything, "u1").Return(nil, nil)
	h := NewOrderHandler(svc)

	rr := httptest.NewRecorder()
	serveAuthed(p, h.Mine, rr, bearerReq(t, p, http.MethodGet, "/v1/orders/mine", "u1", domain.RoleCustomer, nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestOrderUpdateStatus_RejectsUnknownStatus(t *testing.T) {
	h := NewOrderHandler(&mockOrderSvc{})
	rr := httptest.NewRecorder()
	r := withParam(jsonReq(http.MethodPatch, "/v1/orders/o1/status", domain.OrderStatusUpdate{Status: "Lost"}), "id", "o1")
	h.UpdateStatus(rr, r)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestOrderGet_OtherCustomersOrderIsNotFound(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockOrderSvc{}
	svc.On("Get", mock.Anything, domain.Actor{UserID: "u2", Role: domain.RoleCustomer}, "o1").Return(nil, domain.ErrNotFound)
	h := NewOrderHandler(svc)

	r := withParam(bearerReq(t, p, http.MethodGet, "/v1/orders/o1", "u2", domain.RoleCustomer, nil), "id", "o1")
	rr := httptest.NewRecorder()
	serveAuthed(p, h.Get, rr, r)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
