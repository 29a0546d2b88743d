package domain

import "time"

// Order statuses.
const (
	OrderPending   = "Pending"
	OrderPaid      = "Paid"
	OrderShipped   = "Shipped"
	OrderDelivered = "Delivered"
	OrderCancelled = "Cancelled"
)

// ValidOrderStatus reports whether s is one of the order statuses.
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderPending, OrderPaid, OrderShipped, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

// Order is a placed purchase. Items are snapshots taken at placement time.
type Order struct {
	OrderID     string      `json:"id" dynamodbav:"order_id"`
	UserID      string      `json:"user_id" dynamodbav:"user_id"`
	TotalAmount int64       `json:"total_amount" dynamodbav:"total_amount"`
	Status      string      `json:"status" dynamodbav:"status"`
	Items       []OrderItem `json:"items" dynamodbav:"items"`
	CreatedAt   time.Time   `json:"created" dynamodbav:"created_at"`
	UpdatedAt   time.Time   `json:"updated" dynamodbav:"updated_at"`
}

// OrderItem is one line of an order. Price is the unit price at placement.
type OrderItem struct {
	BookID   string `json:"book_id" dynamodbav:"book_id"`
	Title    string `json:"title" dynamodbav:"title"`
	Quantity int    `json:"quantity" dynamodbav:"quantity"`
	Price    int64  `json:"price" dynamodbav:"price"`
}

type OrderLine struct {
	BookID   string `json:"book_id" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,gt=0"`
}

type CreateOrderRequest struct {
	Items []OrderLine `json:"items" validate:"required,min=1,max=50,dive"`
}

type OrderStatusUpdate struct {
	Status string `json:"status" validate:"required,order_status"`
}

// StockDecrement is one conditional decrement applied by the store while
// placing an order.
type StockDecrement struct {
	BookID   string
	Quantity int
}
