package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fern-folio/bookstore-api/internal/domain"
	"github.com/fern-folio/bookstore-api/internal/pkg/id"
)

type Service interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	GetByID(ctx context.Context, actor domain.Actor, cartID string) (*domain.Cart, error)
	AddItem(ctx context.Context, userID string, req domain.AddToCartRequest) (*domain.Cart, error)
	UpdateItem(ctx context.Context, userID, itemID string, req domain.UpdateCartItemRequest) (*domain.Cart, error)
	RemoveItem(ctx context.Context, userID, itemID string) (*domain.Cart, error)
	Clear(ctx context.Context, userID string) error
	Checkout(ctx context.Context, userID string) (*domain.Order, error)
}

type cartStore interface {
	Get(ctx context.Context, cartID string) (*domain.Cart, error)
	GetByUser(ctx context.Context, userID string) (*domain.Cart, error)
	Put(ctx context.Context, c *domain.Cart) error
	Delete(ctx context.Context, cartID string) error
}

type bookReader interface {
	Get(ctx context.Context, bookID string) (*domain.Book, error)
}

type orderPlacer interface {
	Place(ctx context.Context, userID string, req domain.CreateOrderRequest) (*domain.Order, error)
}

type service struct {
	carts  cartStore
	books  bookReader
	orders orderPlacer
	now    func() time.Time
}

type ServiceDeps struct {
	CartRepo     cartStore
	BookRepo     bookReader
	OrderService orderPlacer
	Clock        func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{carts: deps.CartRepo, books: deps.BookRepo, orders: deps.OrderService, now: deps.Clock}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// active returns the user's cart, or a new unsaved one.
func (s *service) active(ctx context.Context, userID string) (*domain.Cart, error) {
	c, err := s.carts.GetByUser(ctx, userID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	now := s.now().UTC()
	return &domain.Cart{
		CartID:    id.New(),
		UserID:    userID,
		Status:    domain.CartStatusActive,
		Items:     []domain.CartItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *service) save(ctx context.Context, c *domain.Cart) (*domain.Cart, error) {
	c.UpdatedAt = s.now().UTC()
	if err := s.carts.Put(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *service) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	return s.active(ctx, userID)
}

func (s *service) GetByID(ctx context.Context, actor domain.Actor, cartID string) (*domain.Cart, error) {
	c, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if c.UserID != actor.UserID && !actor.IsStaff() {
		return nil, fmt.Errorf("cart %s: %w", cartID, domain.ErrNotFound)
	}
	return c, nil
}

// priced checks that qty copies of bookID are in stock and returns the book.
func (s *service) priced(ctx context.Context, bookID string, qty int) (*domain.Book, error) {
	b, err := s.books.Get(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if b.Quantity < qty {
		return nil, fmt.Errorf("%q has %d left: %w", b.Title, b.Quantity, domain.ErrInsufficientStock)
	}
	return b, nil
}

func (s *service) AddItem(ctx context.Context, userID string, req domain.AddToCartRequest) (*domain.Cart, error) {
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive: %w", domain.ErrBadRequest)
	}
	c, err := s.active(ctx, userID)
	if err != nil {
		return nil, err
	}
	qty := req.Quantity
	i := c.ItemForBook(req.BookID)
	if i >= 0 {
		qty += c.Items[i].Quantity
	}
	b, err := s.priced(ctx, req.BookID, qty)
	if err != nil {
		return nil, err
	}
	line := domain.CartItem{BookID: b.BookID, Title: b.Title, Quantity: qty, Price: b.Price * int64(qty)}
	if i >= 0 {
		line.ItemID = c.Items[i].ItemID
		c.Items[i] = line
	} else {
		line.ItemID = id.New()
		c.Items = append(c.Items, line)
	}
	return s.save(ctx, c)
}

func (s *service) UpdateItem(ctx context.Context, userID, itemID string, req domain.UpdateCartItemRequest) (*domain.Cart, error) {
	c, err := s.carts.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	i := c.Item(itemID)
	if i < 0 {
		return nil, fmt.Errorf("cart item %s: %w", itemID, domain.ErrNotFound)
	}
	if req.Quantity == nil {
		return c, nil
	}
	if *req.Quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive: %w", domain.ErrBadRequest)
	}
	b, err := s.priced(ctx, c.Items[i].BookID, *req.Quantity)
	if err != nil {
		return nil, err
	}
	c.Items[i].Quantity = *req.Quantity
	c.Items[i].Price = b.Price * int64(*req.Quantity)
	return s.save(ctx, c)
}

func (s *service) RemoveItem(ctx context.Context, userID, itemID string) (*domain.Cart, error) {
	c, err := s.carts.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	i := c.Item(itemID)
	if i < 0 {
		return nil, fmt.Errorf("cart item %s: %w", itemID, domain.ErrNotFound)
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	return s.save(ctx, c)
}

func (s *service) Clear(ctx context.Context, userID string) error {
	c, err := s.carts.GetByUser(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.carts.Delete(ctx, c.CartID)
}

// Checkout places an order for the cart's contents and then empties the cart.
func (s *service) Checkout(ctx context.Context, userID string) (*domain.Order, error) {
	c, err := s.carts.GetByUser(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && len(c.Items) == 0) {
		return nil, fmt.Errorf("cart is empty: %w", domain.ErrBadRequest)
	}
	if err != nil {
		return nil, err
	}
	req := domain.CreateOrderRequest{Items: make([]domain.OrderLine, 0, len(c.Items))}
	for _, it := range c.Items {
		req.Items = append(req.Items, domain.OrderLine{BookID: it.BookID, Quantity: it.Quantity})
	}
	o, err := s.orders.Place(ctx, userID, req)
	if err != nil {
		return nil, err
	}
	// The order is already placed; a cart left behind is only logged.
	if err := s.carts.Delete(ctx, c.CartID); err != nil {
		slog.Error("failed to clear cart after checkout", "cart_id", c.CartID, "order_id", o.OrderID, "err", err)
	}
	return o, nil
}
