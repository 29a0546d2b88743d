package domain

import "time"

const CartStatusActive = "Active"

// Cart is a user's shopping cart. Items are owned by the cart; each item
// references its book by ID only.
type Cart struct {
	CartID    string     `json:"id" dynamodbav:"cart_id"`
	UserID    string     `json:"user_id" dynamodbav:"user_id"`
	Status    string     `json:"status" dynamodbav:"status"`
	Items     []CartItem `json:"items" dynamodbav:"items"`
	CreatedAt time.Time  `json:"created" dynamodbav:"created_at"`
	UpdatedAt time.Time  `json:"updated" dynamodbav:"updated_at"`
}

// CartItem is one line of a cart. Price is the line total (unit price × quantity).
type CartItem struct {
	ItemID   string `json:"id" dynamodbav:"item_id"`
	BookID   string `json:"book_id" dynamodbav:"book_id"`
	Title    string `json:"title" dynamodbav:"title"`
	Quantity int    `json:"quantity" dynamodbav:"quantity"`
	Price    int64  `json:"price" dynamodbav:"price"`
}

// Total is the sum of all line totals.
func (c *Cart) Total() int64 {
	var t int64
	for _, it := range c.Items {
		t += it.Price
	}
	return t
}

// Item returns the index of the line with itemID, or -1.
func (c *Cart) Item(itemID string) int {
	for i := range c.Items {
		if c.Items[i].ItemID == itemID {
			return i
		}
	}
	return -1
}

// ItemForBook returns the index of the line holding bookID, or -1.
func (c *Cart) ItemForBook(bookID string) int {
	for i := range c.Items {
		if c.Items[i].BookID == bookID {
			return i
		}
	}
	return -1
}

type AddToCartRequest struct {
	BookID   string `json:"book_id" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,gt=0"`
}

type UpdateCartItemRequest struct {
	Quantity *int `json:"quantity" validate:"omitempty,gt=0"`
}
