package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fern-folio/bookstore-api/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// TokenType is returned alongside every access token.
const TokenType = "bearer"

type Service interface {
	Login(ctx context.Context, req domain.LoginRequest) (token string, u *domain.User, err error)
}

type userStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

type tokenIssuer interface {
	Issue(userID, role string) (string, error)
}

type service struct {
	userRepo userStore
	issuer   tokenIssuer
}

type ServiceDeps struct {
	UserRepo    userStore
	TokenIssuer tokenIssuer
}

func NewService(deps ServiceDeps) Service {
	return &service{userRepo: deps.UserRepo, issuer: deps.TokenIssuer}
}

// Login checks the password of an active account and issues an access
// token. Unknown emails and wrong passwords are indistinguishable.
func (s *service) Login(ctx context.Context, req domain.LoginRequest) (string, *domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	u, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
		}
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return "", nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}
	token, err := s.issuer.Issue(u.UserID, u.Role)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}
