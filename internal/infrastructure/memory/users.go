package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/fern-folio/bookstore-api/internal/domain"
)

type UserRepo struct{ db *DB }

func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

func (r *UserRepo) Get(_ context.Context, userID string) (*domain.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	u, ok := r.db.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	return &u, nil
}

func (r *UserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	userID, ok := r.db.emails[email]
	if !ok {
		return nil, fmt.Errorf("user with email %s: %w", email, domain.ErrNotFound)
	}
	u := r.db.users[userID]
	return &u, nil
}

// QueryPage returns users ordered by ID; cursor is the last ID of the
// previous page.
func (r *UserRepo) QueryPage(_ context.Context, limit int32, cursor string) ([]domain.User, string, error) {
	if limit < 1 {
		return []domain.User{}, "", nil
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	all := sortedValues(r.db.users, func(u *domain.User) string { return u.UserID })
	out := make([]domain.User, 0, limit)
	for _, u := range all {
		if cursor != "" && u.UserID <= cursor {
			continue
		}
		if int32(len(out)) == limit {
			return out, out[len(out)-1].UserID, nil
		}
		out = append(out, u)
	}
	return out, "", nil
}

func (r *UserRepo) Update(_ context.Context, userID string, c domain.UserChanges, now time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	c.Apply(&u)
	u.UpdatedAt = now
	r.db.users[userID] = u
	return nil
}

// Delete removes the user and releases the email.
func (r *UserRepo) Delete(_ context.Context, userID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	delete(r.db.users, userID)
	delete(r.db.emails, u.Email)
	return nil
}
