package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fern-folio/bookstore-api/internal/config"
	"github.com/fern-folio/bookstore-api/internal/domain"
	"github.com/fern-folio/bookstore-api/internal/infrastructure/dynamo"
	"github.com/fern-folio/bookstore-api/internal/infrastructure/memory"
)

type userRepo interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	QueryPage(ctx context.Context, limit int32, cursor string) ([]domain.User, string, error)
	Update(ctx context.Context, userID string, c domain.UserChanges, now time.Time) error
	Delete(ctx context.Context, userID string) error
}

type pendingRepo interface {
	Create(ctx context.Context, p *domain.PendingRegistration, now time.Time) error
	GetByEmail(ctx context.Context, email string) (*domain.PendingRegistration, error)
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.PendingRegistration, error)
	Delete(ctx context.Context, email, tokenHash string) error
	RotateToken(ctx context.Context, email, oldHash, newHash string) error
	Promote(ctx context.Context, p *domain.PendingRegistration, u *domain.User) error
}

type bookRepo interface {
	Get(ctx context.Context, bookID string) (*domain.Book, error)
	List(ctx context.Context) ([]domain.Book, error)
	Create(ctx context.Context, b *domain.Book) error
	Update(ctx context.Context, bookID string, req domain.UpdateBookRequest, now time.Time) (*domain.Book, error)
	Delete(ctx context.Context, bookID string) error
}

type genreRepo interface {
	Get(ctx context.Context, genreID string) (*domain.Genre, error)
	List(ctx context.Context) ([]domain.Genre, error)
	Create(ctx context.Context, g *domain.Genre) error
	Delete(ctx context.Context, genreID string) error
}

type cartRepo interface {
	Get(ctx context.Context, cartID string) (*domain.Cart, error)
	GetByUser(ctx context.Context, userID string) (*domain.Cart, error)
	Put(ctx context.Context, c *domain.Cart) error
	Delete(ctx context.Context, cartID string) error
}

type orderRepo interface {
	Place(ctx context.Context, o *domain.Order, decs []domain.StockDecrement) error
	Get(ctx context.Context, orderID string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	List(ctx context.Context) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, orderID, status string, now time.Time) error
	Delete(ctx context.Context, orderID string) error
}

// stores is the set of repositories backing the services.
type stores struct {
	users   userRepo
	pending pendingRepo
	books   bookRepo
	genres  genreRepo
	carts   cartRepo
	orders  orderRepo
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.StoreBackend {
	case "memory":
		db := memory.New()
		return &stores{
			users:   memory.NewUserRepo(db),
			pending: memory.NewPendingRepo(db),
			books:   memory.NewBookRepo(db),
			genres:  memory.NewGenreRepo(db),
			carts:   memory.NewCartRepo(db),
			orders:  memory.NewOrderRepo(db),
		}, nil
	case "dynamo":
		client, err := dynamo.NewClient(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("dynamodb client: %w", err)
		}
		// Creates any missing tables.
		dynamo.Bootstrap(ctx, client, cfg.DynamoTables)
		t := cfg.DynamoTables
		return &stores{
			users:   dynamo.NewUserRepo(client, t.Users, t.UserEmails),
			pending: dynamo.NewPendingRepo(client, t.PendingRegistrations, t.Users, t.UserEmails),
			books:   dynamo.NewBookRepo(client, t.Books),
			genres:  dynamo.NewGenreRepo(client, t.Genres),
			carts:   dynamo.NewCartRepo(client, t.Carts),
			orders:  dynamo.NewOrderRepo(client, t.Orders, t.Books),
		}, nil
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
}
