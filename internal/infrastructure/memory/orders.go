package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/fern-folio/bookstore-api/internal/domain"
)

type CartRepo struct{ db *DB }

func NewCartRepo(db *DB) *CartRepo { return &CartRepo{db: db} }

func (r *CartRepo) Get(_ context.Context, cartID string) (*domain.Cart, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	c, ok := r.db.carts[cartID]
	if !ok {
		return nil, fmt.Errorf("cart %s: %w", cartID, domain.ErrNotFound)
	}
	c = cloneCart(c)
	return &c, nil
}

func (r *CartRepo) GetByUser(_ context.Context, userID string) (*domain.Cart, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, c := range r.db.carts {
		if c.UserID == userID && c.Status == domain.CartStatusActive {
			c = cloneCart(c)
			return &c, nil
		}
	}
	return nil, fmt.Errorf("cart for user %s: %w", userID, domain.ErrNotFound)
}

func (r *CartRepo) Put(_ context.Context, c *domain.Cart) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.carts[c.CartID] = cloneCart(*c)
	return nil
}

func (r *CartRepo) Delete(_ context.Context, cartID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.carts, cartID)
	return nil
}

type OrderRepo struct{ db *DB }

func NewOrderRepo(db *DB) *OrderRepo { return &OrderRepo{db: db} }

// Place applies every decrement and stores o, or changes nothing.
func (r *OrderRepo) Place(_ context.Context, o *domain.Order, decs []domain.StockDecrement) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, d := range decs {
		b, ok := r.db.books[d.BookID]
		if !ok {
			return fmt.Errorf("book %s: %w", d.BookID, domain.ErrNotFound)
		}
		if b.Quantity < d.Quantity {
			return fmt.Errorf("book %s has %d left: %w", d.BookID, b.Quantity, domain.ErrInsufficientStock)
		}
	}
	for _, d := range decs {
		b := r.db.books[d.BookID]
		b.Quantity -= d.Quantity
		b.InStock = b.Quantity > 0
		b.UpdatedAt = o.CreatedAt
		r.db.books[d.BookID] = b
	}
	r.db.orders[o.OrderID] = cloneOrder(*o)
	return nil
}

func (r *OrderRepo) Get(_ context.Context, orderID string) (*domain.Order, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	o, ok := r.db.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}
	o = cloneOrder(o)
	return &o, nil
}

func (r *OrderRepo) ListByUser(_ context.Context, userID string) ([]domain.Order, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []domain.Order
	for _, o := range sortedValues(r.db.orders, func(o *domain.Order) string { return o.OrderID }) {
		if o.UserID == userID {
			out = append(out, cloneOrder(o))
		}
	}
	return out, nil
}

func (r *OrderRepo) List(_ context.Context) ([]domain.Order, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := sortedValues(r.db.orders, func(o *domain.Order) string { return o.OrderID })
	for i := range out {
		out[i] = cloneOrder(out[i])
	}
	return out, nil
}

func (r *OrderRepo) UpdateStatus(_ context.Context, orderID, status string, now time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	o, ok := r.db.orders[orderID]
	if !ok {
		return fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}
	o.Status = status
	o.UpdatedAt = now
	r.db.orders[orderID] = o
	return nil
}

func (r *OrderRepo) Delete(_ context.Context, orderID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.orders[orderID]; !ok {
		return fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}
	delete(r.db.orders, orderID)
	return nil
}
