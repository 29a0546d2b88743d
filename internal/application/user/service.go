package user

import (
	"context"
	"fmt"
	"time"

	"github.com/fern-folio/bookstore-api/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

type Service interface {
	List(ctx context.Context, limit int, cursor string) ([]domain.User, string, error)
	Get(ctx context.Context, actor domain.Actor, userID string) (*domain.User, error)
	Update(ctx context.Context, actor domain.Actor, userID string, req domain.UpdateUserRequest) (*domain.User, error)
	Delete(ctx context.Context, actor domain.Actor, userID string) error
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	QueryPage(ctx context.Context, limit int32, cursor string) ([]domain.User, string, error)
	Update(ctx context.Context, userID string, c domain.UserChanges, now time.Time) error
	Delete(ctx context.Context, userID string) error
}

type service struct {
	repo userStore
	now  func() time.Time
}

type ServiceDeps struct {
	UserRepo userStore
	Clock    func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{repo: deps.UserRepo, now: deps.Clock}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *service) List(ctx context.Context, limit int, cursor string) ([]domain.User, string, error) {
	switch {
	case limit < 1:
		limit = defaultPageSize
	case limit > maxPageSize:
		limit = maxPageSize
	}
	return s.repo.QueryPage(ctx, int32(limit), cursor)
}

// Get allows Admin and Staff to read any account and everyone else only
// their own.
func (s *service) Get(ctx context.Context, actor domain.Actor, userID string) (*domain.User, error) {
	if actor.UserID != userID && !actor.IsStaff() {
		return nil, fmt.Errorf("cannot read another user: %w", domain.ErrForbidden)
	}
	return s.repo.Get(ctx, userID)
}

func (s *service) Update(ctx context.Context, actor domain.Actor, userID string, req domain.UpdateUserRequest) (*domain.User, error) {
	if actor.UserID != userID && !actor.IsAdmin() {
		return nil, fmt.Errorf("cannot modify another user: %w", domain.ErrForbidden)
	}
	var c domain.UserChanges
	c.Name = req.Name
	if req.Role != nil {
		if !actor.IsAdmin() {
			return nil, fmt.Errorf("only admins can change roles: %w", domain.ErrForbidden)
		}
		if !domain.ValidRole(*req.Role) {
			return nil, fmt.Errorf("invalid role: %w", domain.ErrBadRequest)
		}
		c.Role = req.Role
	}
	if req.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		h := string(hash)
		c.PasswordHash = &h
	}
	if c.Empty() {
		return s.repo.Get(ctx, userID)
	}
	if err := s.repo.Update(ctx, userID, c, s.now().UTC()); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, userID)
}

func (s *service) Delete(ctx context.Context, actor domain.Actor, userID string) error {
	if actor.UserID != userID && !actor.IsAdmin() {
		return fmt.Errorf("cannot delete another user: %w", domain.ErrForbidden)
	}
	return s.repo.Delete(ctx, userID)
}
