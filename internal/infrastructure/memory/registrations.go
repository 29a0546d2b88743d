package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/fern-folio/bookstore-api/internal/domain"
)

type PendingRepo struct{ db *DB }

func NewPendingRepo(db *DB) *PendingRepo { return &PendingRepo{db: db} }

func (r *PendingRepo) Create(_ context.Context, p *domain.PendingRegistration, now time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, taken := r.db.emails[p.Email]; taken {
		return fmt.Errorf("email already registered: %w", domain.ErrDuplicateRegistration)
	}
	if existing, ok := r.db.pending[p.Email]; ok && !existing.Expired(now) {
		return fmt.Errorf("verification already pending: %w", domain.ErrDuplicateRegistration)
	}
	r.db.pending[p.Email] = *p
	return nil
}

func (r *PendingRepo) GetByEmail(_ context.Context, email string) (*domain.PendingRegistration, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	p, ok := r.db.pending[email]
	if !ok {
		return nil, fmt.Errorf("pending registration %s: %w", email, domain.ErrNotFound)
	}
	return &p, nil
}

func (r *PendingRepo) GetByTokenHash(_ context.Context, tokenHash string) (*domain.PendingRegistration, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, p := range r.db.pending {
		if p.TokenHash == tokenHash {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("pending registration by token: %w", domain.ErrNotFound)
}

func (r *PendingRepo) Delete(_ context.Context, email, tokenHash string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.pending[email]
	if !ok || p.TokenHash != tokenHash {
		return fmt.Errorf("pending registration %s: %w", email, domain.ErrNotFound)
	}
	delete(r.db.pending, email)
	return nil
}

func (r *PendingRepo) RotateToken(_ context.Context, email, oldHash, newHash string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.pending[email]
	if !ok || p.TokenHash != oldHash {
		return fmt.Errorf("pending registration %s: %w", email, domain.ErrNotFound)
	}
	p.TokenHash = newHash
	r.db.pending[email] = p
	return nil
}

func (r *PendingRepo) Promote(_ context.Context, p *domain.PendingRegistration, u *domain.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cur, ok := r.db.pending[p.Email]
	if !ok || cur.TokenHash != p.TokenHash {
		return fmt.Errorf("pending registration %s: %w", p.Email, domain.ErrNotFound)
	}
	if _, taken := r.db.emails[u.Email]; taken {
		return fmt.Errorf("email already registered: %w", domain.ErrDuplicateRegistration)
	}
	r.db.users[u.UserID] = *u
	r.db.emails[u.Email] = u.UserID
	delete(r.db.pending, p.Email)
	return nil
}
