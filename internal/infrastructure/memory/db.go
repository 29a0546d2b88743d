// Package memory is an in-process implementation of every repository used
// by the services. It enforces the same uniqueness and stock invariants as
// the DynamoDB repositories by serialising writes on one mutex, which makes
// it suitable for a single replica in development and for tests.
package memory

import (
	"sort"
	"sync"

	"github.com/fern-folio/bookstore-api/internal/domain"
)

// DB holds all tables. Repositories share it so operations spanning several
// tables (promotion, order placement) are atomic.
type DB struct {
	mu      sync.RWMutex
	users   map[string]domain.User
	emails  map[string]string // email -> user_id
	pending map[string]domain.PendingRegistration
	books   map[string]domain.Book
	genres  map[string]domain.Genre
	carts   map[string]domain.Cart
	orders  map[string]domain.Order
}

func New() *DB {
	return &DB{
		users:   make(map[string]domain.User),
		emails:  make(map[string]string),
		pending: make(map[string]domain.PendingRegistration),
		books:   make(map[string]domain.Book),
		genres:  make(map[string]domain.Genre),
		carts:   make(map[string]domain.Cart),
		orders:  make(map[string]domain.Order),
	}
}

func sortedValues[T any](m map[string]T, key func(*T) string) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return key(&out[i]) < key(&out[j]) })
	return out
}

func cloneCart(c domain.Cart) domain.Cart {
	c.Items = append([]domain.CartItem(nil), c.Items...)
	return c
}

func cloneOrder(o domain.Order) domain.Order {
	o.Items = append([]domain.OrderItem(nil), o.Items...)
	return o
}
