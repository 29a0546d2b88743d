package order

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
	Place(ctx context.Context, userID string, req domain.CreateOrderRequest) (*domain.Order, error)
	Get(ctx context.Context, actor domain.Actor, orderID string) (*domain.Order, error)
	ListMine(ctx context.Context, userID string) ([]domain.Order, error)
	ListAll(ctx context.Context) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, orderID, status string) (*domain.Order, error)
	Delete(ctx context.Context, orderID string) error
}

type orderStore interface {
	// Place decrements stock for every line and stores o in one atomic step.
	Place(ctx context.Context, o *domain.Order, decs []domain.StockDecrement) error
	Get(ctx context.Context, orderID string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	List(ctx context.Context) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, orderID, status string, now time.Time) error
	Delete(ctx context.Context, orderID string) error
}

type bookReader interface {
	Get(ctx context.Context, bookID string) (*domain.Book, error)
}

type userReader interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
}

type confirmationSender interface {
	SendOrderConfirmation(u *domain.User, o *domain.Order)
}

type service struct {
	orders orderStore
	books  bookReader
	users  userReader
	notify confirmationSender
	now    func() time.Time
}

type ServiceDeps struct {
	OrderRepo orderStore
	BookRepo  bookReader
	UserRepo  userReader
	Notifier  confirmationSender
	Clock     func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		orders: deps.OrderRepo,
		books:  deps.BookRepo,
		users:  deps.UserRepo,
		notify: deps.Notifier,
		now:    deps.Clock,
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// mergeLines folds repeated books into one line, keeping first-seen order.
func mergeLines(lines []domain.OrderLine) []domain.OrderLine {
	idx := make(map[string]int, len(lines))
	out := make([]domain.OrderLine, 0, len(lines))
	for _, l := range lines {
		if i, ok := idx[l.BookID]; ok {
			out[i].Quantity += l.Quantity
			continue
		}
		idx[l.BookID] = len(out)
		out = append(out, l)
	}
	return out
}

// Place prices every line at the current catalog price and commits the order
// together with the stock decrements. Two orders racing for the last copy
// cannot both succeed; the loser gets domain.ErrInsufficientStock.
func (s *service) Place(ctx context.Context, userID string, req domain.CreateOrderRequest) (*domain.Order, error) {
	lines := mergeLines(req.Items)
	if len(lines) == 0 {
		return nil, fmt.Errorf("order has no items: %w", domain.ErrBadRequest)
	}

	now := s.now().UTC()
	o := &domain.Order{
		OrderID:   id.New(),
		UserID:    userID,
		Status:    domain.OrderPending,
		Items:     make([]domain.OrderItem, 0, len(lines)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	decs := make([]domain.StockDecrement, 0, len(lines))
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, fmt.Errorf("quantity for %s must be positive: %w", l.BookID, domain.ErrBadRequest)
		}
		b, err := s.books.Get(ctx, l.BookID)
		if err != nil {
			return nil, err
		}
		if b.Quantity < l.Quantity {
			return nil, fmt.Errorf("%q has %d left: %w", b.Title, b.Quantity, domain.ErrInsufficientStock)
		}
		o.Items = append(o.Items, domain.OrderItem{BookID: b.BookID, Title: b.Title, Quantity: l.Quantity, Price: b.Price})
		o.TotalAmount += b.Price * int64(l.Quantity)
		decs = append(decs, domain.StockDecrement{BookID: b.BookID, Quantity: l.Quantity})
	}

	if err := s.orders.Place(ctx, o, decs); err != nil {
		return nil, err
	}
	slog.Info("order placed", "order_id", o.OrderID, "user_id", userID, "total", o.TotalAmount)

	if u, err := s.users.Get(ctx, userID); err != nil {
		slog.Warn("order confirmation skipped", "order_id", o.OrderID, "err", err)
	} else {
		s.notify.SendOrderConfirmation(u, o)
	}
	return o, nil
}

func (s *service) Get(ctx context.Context, actor domain.Actor, orderID string) (*domain.Order, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != actor.UserID && !actor.IsStaff() {
		// Hide the existence of other customers' orders.
		return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}
	return o, nil
}

func (s *service) ListMine(ctx context.Context, userID string) ([]domain.Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

func (s *service) ListAll(ctx context.Context) ([]domain.Order, error) {
	return s.orders.List(ctx)
}

func (s *service) UpdateStatus(ctx context.Context, orderID, status string) (*domain.Order, error) {
	switch status {
	case domain.OrderPending, domain.OrderPaid, domain.OrderShipped, domain.OrderDelivered, domain.OrderCancelled:
	default:
		return nil, fmt.Errorf("invalid status %q: %w", status, domain.ErrBadRequest)
	}
	if err := s.orders.UpdateStatus(ctx, orderID, status, s.now().UTC()); err != nil {
		return nil, err
	}
	return s.orders.Get(ctx, orderID)
}

func (s *service) Delete(ctx context.Context, orderID string) error {
	if err := s.orders.Delete(ctx, orderID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete order %s: %w", orderID, err)
	}
	return nil
}
