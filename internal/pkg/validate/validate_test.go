package validate

import (
	"testing"

	"github.com/fern-folio/bookstore-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStruct_Valid(t *testing.T) {
	req := domain.CreateOrderRequest{Items: []domain.OrderLine{{BookID: "b1", Quantity: 2}}}
	assert.NoError(t, Struct(req))
}

func TestStruct_ReportsJSONPaths(t *testing.T) {
	req := domain.CreateOrderRequest{Items: []domain.OrderLine{{BookID: "b1", Quantity: 0}}}
	err := Struct(req)
	require.Error(t, err)
	assert.Equal(t, "field 'items[0].quantity' failed 'required'", err.Error())
}

func TestStruct_OrderStatus(t *testing.T) {
	assert.NoError(t, Struct(domain.OrderStatusUpdate{Status: domain.OrderShipped}))

	err := Struct(domain.OrderStatusUpdate{Status: "Lost"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed 'order_status'")
}

func TestStruct_OptionalRole(t *testing.T) {
	staff := domain.RoleStaff
	assert.NoError(t, Struct(domain.UpdateUserRequest{Role: &staff}))
	assert.NoError(t, Struct(domain.UpdateUserRequest{}))

	bogus := "Owner"
	err := Struct(domain.UpdateUserRequest{Role: &bogus})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field 'role' failed 'role'")
}
