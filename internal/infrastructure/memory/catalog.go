package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/fern-folio/bookstore-api/internal/domain"
)

type BookRepo struct{ db *DB }

func NewBookRepo(db *DB) *BookRepo { return &BookRepo{db: db} }

func (r *BookRepo) Get(_ context.Context, bookID string) (*domain.Book, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	b, ok := r.db.books[bookID]
	if !ok {
		return nil, fmt.Errorf("book %s: %w", bookID, domain.ErrNotFound)
	}
	return &b, nil
}

func (r *BookRepo) List(_ context.Context) ([]domain.Book, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return sortedValues(r.db.books, func(b *domain.Book) string { return b.BookID }), nil
}

func (r *BookRepo) Create(_ context.Context, b *domain.Book) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.books[b.BookID]; ok {
		return fmt.Errorf("book %s: %w", b.BookID, domain.ErrConflict)
	}
	r.db.books[b.BookID] = *b
	return nil
}

// Update applies the set fields of req to the current row under the write
// lock.
func (r *BookRepo) Update(_ context.Context, bookID string, req domain.UpdateBookRequest, now time.Time) (*domain.Book, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	b, ok := r.db.books[bookID]
	if !ok {
		return nil, fmt.Errorf("book %s: %w", bookID, domain.ErrNotFound)
	}
	req.Apply(&b)
	b.UpdatedAt = now.UTC()
	r.db.books[bookID] = b
	return &b, nil
}

func (r *BookRepo) Delete(_ context.Context, bookID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.books[bookID]; !ok {
		return fmt.Errorf("book %s: %w", bookID, domain.ErrNotFound)
	}
	delete(r.db.books, bookID)
	return nil
}

type GenreRepo struct{ db *DB }

func NewGenreRepo(db *DB) *GenreRepo { return &GenreRepo{db: db} }

func (r *GenreRepo) Get(_ context.Context, genreID string) (*domain.Genre, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	g, ok := r.db.genres[genreID]
	if !ok {
		return nil, fmt.Errorf("genre %s: %w", genreID, domain.ErrNotFound)
	}
	return &g, nil
}

func (r *GenreRepo) List(_ context.Context) ([]domain.Genre, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return sortedValues(r.db.genres, func(g *domain.Genre) string { return g.GenreID }), nil
}

func (r *GenreRepo) Create(_ context.Context, g *domain.Genre) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.genres[g.GenreID]; ok {
		return fmt.Errorf("genre %s: %w", g.GenreID, domain.ErrConflict)
	}
	r.db.genres[g.GenreID] = *g
	return nil
}

func (r *GenreRepo) Delete(_ context.Context, genreID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.genres[genreID]; !ok {
		return fmt.Errorf("genre %s: %w", genreID, domain.ErrNotFound)
	}
	delete(r.db.genres, genreID)
	return nil
}
