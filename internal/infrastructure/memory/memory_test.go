package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fern-folio/bookstore-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

func pending(email, hash string, expires time.Time) *domain.PendingRegistration {
	return &domain.PendingRegistration{Email: email, Name: "N", Role: domain.RoleCustomer, TokenHash: hash, ExpiresAt: expires}
}

func TestPendingRepo_ConcurrentCreateSameEmail(t *testing.T) {
	repo := NewPendingRepo(New())

	var ok atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := repo.Create(context.Background(), pending("alice@example.com", fmt.Sprint(i), now.Add(time.Hour)), now)
			if err == nil {
				ok.Add(1)
			} else {
				assert.ErrorIs(t, err, domain.ErrDuplicateRegistration)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
}

func TestPendingRepo_CreateReplacesExpired(t *testing.T) {
	repo := NewPendingRepo(New())
	require.NoError(t, repo.Create(context.Background(), pending("a@b.c", "h1", now), now.Add(-time.Minute)))

	require.NoError(t, repo.Create(context.Background(), pending("a@b.c", "h2", now.Add(time.Hour)), now))

	p, err := repo.GetByEmail(context.Background(), "a@b.c")
	require.NoError(t, err)
	assert.Equal(t, "h2", p.TokenHash)
}

func TestPendingRepo_CreateRejectsActiveEmail(t *testing.T) {
	db := New()
	repo := NewPendingRepo(db)
	require.NoError(t, repo.Create(context.Background(), pending("a@b.c", "h1", now.Add(time.Hour)), now))
	p, _ := repo.GetByEmail(context.Background(), "a@b.c")
	require.NoError(t, repo.Promote(context.Background(), p, p.PromoteToUser("u1", now)))

	err := repo.Create(context.Background(), pending("a@b.c", "h2", now.Add(time.Hour)), now)
	assert.ErrorIs(t, err, domain.ErrDuplicateRegistration)
}

func TestPendingRepo_PromoteOnce(t *testing.T) {
	db := New()
	repo := NewPendingRepo(db)
	users := NewUserRepo(db)
	require.NoError(t, repo.Create(context.Background(), pending("a@b.c", "h1", now.Add(time.Hour)), now))
	p, err := repo.GetByTokenHash(context.Background(), "h1")
	require.NoError(t, err)

	var ok atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if repo.Promote(context.Background(), p, p.PromoteToUser(fmt.Sprintf("u%d", i), now)) == nil {
				ok.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	_, err = repo.GetByTokenHash(context.Background(), "h1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	u, err := users.GetByEmail(context.Background(), "a@b.c")
	require.NoError(t, err)
	assert.True(t, u.Verified)
}

func TestPendingRepo_DeleteRequiresMatchingToken(t *testing.T) {
	repo := NewPendingRepo(New())
	require.NoError(t, repo.Create(context.Background(), pending("a@b.c", "h1", now.Add(time.Hour)), now))

	assert.ErrorIs(t, repo.Delete(context.Background(), "a@b.c", "other"), domain.ErrNotFound)
	assert.NoError(t, repo.Delete(context.Background(), "a@b.c", "h1"))
}

func TestOrderRepo_LastCopyRace(t *testing.T) {
	db := New()
	books := NewBookRepo(db)
	orders := NewOrderRepo(db)
	require.NoError(t, books.Create(context.Background(), &domain.Book{BookID: "b1", Title: "Dune", Quantity: 1, InStock: true}))

	var ok, short atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			o := &domain.Order{OrderID: fmt.Sprintf("o%d", i), UserID: "u", CreatedAt: now}
			err := orders.Place(context.Background(), o, []domain.StockDecrement{{BookID: "b1", Quantity: 1}})
			switch {
			case err == nil:
				ok.Add(1)
			case assert.ErrorIs(t, err, domain.ErrInsufficientStock):
				short.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(1), short.Load())
	b, err := books.Get(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, 0, b.Quantity)
	assert.False(t, b.InStock)
}

func TestOrderRepo_PlaceIsAllOrNothing(t *testing.T) {
	db := New()
	books := NewBookRepo(db)
	orders := NewOrderRepo(db)
	require.NoError(t, books.Create(context.Background(), &domain.Book{BookID: "b1", Quantity: 5}))
	require.NoError(t, books.Create(context.Background(), &domain.Book{BookID: "b2", Quantity: 1}))

	err := orders.Place(context.Background(), &domain.Order{OrderID: "o1"}, []domain.StockDecrement{
		{BookID: "b1", Quantity: 2},
		{BookID: "b2", Quantity: 3},
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	b1, _ := books.Get(context.Background(), "b1")
	assert.Equal(t, 5, b1.Quantity)
	_, err = orders.Get(context.Background(), "o1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUserRepo_QueryPage(t *testing.T) {
	db := New()
	pend := NewPendingRepo(db)
	users := NewUserRepo(db)
	for i := 0; i < 5; i++ {
		p := pending(fmt.Sprintf("u%d@x.y", i), fmt.Sprint(i), now.Add(time.Hour))
		require.NoError(t, pend.Create(context.Background(), p, now))
		require.NoError(t, pend.Promote(context.Background(), p, p.PromoteToUser(fmt.Sprintf("u%d", i), now)))
	}

	page, cursor, err := users.QueryPage(context.Background(), 2, "")
	require.NoError(t, err)
	assert.Len(t, page, 2)
	assert.Equal(t, "u1", cursor)

	page, cursor, err = users.QueryPage(context.Background(), 3, cursor)
	require.NoError(t, err)
	assert.Len(t, page, 3)
	assert.Equal(t, "", cursor)
	assert.Equal(t, "u4", page[2].UserID)

	for _, limit := range []int32{0, -1} {
		page, cursor, err = users.QueryPage(context.Background(), limit, "")
		require.NoError(t, err)
		assert.Empty(t, page)
		assert.Equal(t, "", cursor)
	}
}

func TestCartRepo_ReturnsCopies(t *testing.T) {
	repo := NewCartRepo(New())
	c := &domain.Cart{CartID: "c1", UserID: "u1", Status: domain.CartStatusActive, Items: []domain.CartItem{{ItemID: "i1", Quantity: 1}}}
	require.NoError(t, repo.Put(context.Background(), c))
	c.Items[0].Quantity = 99

	got, err := repo.GetByUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Items[0].Quantity)
}
