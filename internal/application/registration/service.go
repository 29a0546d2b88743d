// Package registration drives an identity from signup through email
// verification to an active account.
//
//	NoIdentity -> PendingVerification -> Verified
//	                                  -> Expired
//
// A pending registration holds the only copy of the applicant's details until
// the emailed token is confirmed. Confirmation promotes it to a User and
// deletes it in one store operation, so a token can be redeemed at most once.
package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fern-folio/bookstore-api/internal/domain"
	"github.com/fern-folio/bookstore-api/internal/pkg/id"
	pkgtoken "github.com/fern-folio/bookstore-api/internal/pkg/token"
	"golang.org/x/crypto/bcrypt"
)

// DefaultTTL is how long a verification link stays valid.
const DefaultTTL = 24 * time.Hour

type Service interface {
	Register(ctx context.Context, req domain.RegisterRequest) (*domain.PendingRegistration, error)
	Verify(ctx context.Context, token string) (*domain.User, error)
	ResendVerification(ctx context.Context, email string) error
}

type userLookup interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

type pendingStore interface {
	// Create fails with domain.ErrDuplicateRegistration when an active user
	// or an unexpired pending registration already holds the email.
	Create(ctx context.Context, p *domain.PendingRegistration, now time.Time) error
	GetByEmail(ctx context.Context, email string) (*domain.PendingRegistration, error)
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.PendingRegistration, error)
	// Delete removes the record only while it still carries tokenHash.
	Delete(ctx context.Context, email, tokenHash string) error
	RotateToken(ctx context.Context, email, oldHash, newHash string) error
	// Promote inserts u and deletes p atomically. It fails with
	// domain.ErrNotFound when p is gone or its token changed.
	Promote(ctx context.Context, p *domain.PendingRegistration, u *domain.User) error
}

type verificationSender interface {
	SendVerification(p *domain.PendingRegistration, token string)
}

type service struct {
	users           userLookup
	pending         pendingStore
	mailer          verificationSender
	ttl             time.Duration
	allowPrivileged bool
	now             func() time.Time
}

type ServiceDeps struct {
	UserRepo    userLookup
	PendingRepo pendingStore
	Mailer      verificationSender
	TTL         time.Duration
	// AllowPrivilegedSignup lets applicants request Admin or Staff.
	AllowPrivilegedSignup bool
	Clock                 func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		users:           deps.UserRepo,
		pending:         deps.PendingRepo,
		mailer:          deps.Mailer,
		ttl:             deps.TTL,
		allowPrivileged: deps.AllowPrivilegedSignup,
		now:             deps.Clock,
	}
	if s.ttl <= 0 {
		s.ttl = DefaultTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.PendingRegistration, error) {
	email := normalizeEmail(req.Email)
	role := req.Role
	if role == "" {
		role = domain.RoleCustomer
	}
	if !domain.ValidRole(role) {
		return nil, fmt.Errorf("invalid role %q: %w", role, domain.ErrBadRequest)
	}
	if role != domain.RoleCustomer && !s.allowPrivileged {
		return nil, fmt.Errorf("self-registration as %s: %w", role, domain.ErrForbidden)
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("email already registered: %w", domain.ErrDuplicateRegistration)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	now := s.now().UTC()
	if p, err := s.pending.GetByEmail(ctx, email); err == nil && !p.Expired(now) {
		return nil, fmt.Errorf("verification already pending: %w", domain.ErrDuplicateRegistration)
	} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	tok, err := pkgtoken.New()
	if err != nil {
		return nil, err
	}
	p := &domain.PendingRegistration{
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: string(hash),
		Role:         role,
		TokenHash:    pkgtoken.Hash(tok),
		ExpiresAt:    now.Add(s.ttl),
		CreatedAt:    now,
	}
	// The store re-checks uniqueness atomically; the lookups above only give
	// the common case a clearer error.
	if err := s.pending.Create(ctx, p, now); err != nil {
		return nil, err
	}

	s.mailer.SendVerification(p, tok)
	slog.Info("registration pending", "email", email, "expires_at", p.ExpiresAt)
	return p, nil
}

func (s *service) Verify(ctx context.Context, token string) (*domain.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.ErrTokenNotFound
	}
	hash := pkgtoken.Hash(token)
	p, err := s.pending.GetByTokenHash(ctx, hash)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if p.Expired(now) {
		if err := s.pending.Delete(ctx, p.Email, hash); err != nil && !errors.Is(err, domain.ErrNotFound) {
			slog.Warn("failed to delete expired registration", "email", p.Email, "err", err)
		}
		return nil, domain.ErrTokenExpired
	}

	u := p.PromoteToUser(id.New(), now)
	if err := s.pending.Promote(ctx, p, u); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// A concurrent confirmation won.
			return nil, domain.ErrTokenNotFound
		}
		return nil, err
	}
	slog.Info("registration verified", "user_id", u.UserID, "email", u.Email)
	return u, nil
}

func (s *service) ResendVerification(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	p, err := s.pending.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("no pending registration for %s: %w", email, domain.ErrNotFound)
		}
		return err
	}
	if p.Expired(s.now().UTC()) {
		return fmt.Errorf("registration for %s expired: %w", email, domain.ErrNotFound)
	}

	tok, err := pkgtoken.New()
	if err != nil {
		return err
	}
	newHash := pkgtoken.Hash(tok)
	if err := s.pending.RotateToken(ctx, email, p.TokenHash, newHash); err != nil {
		return err
	}
	p.TokenHash = newHash
	s.mailer.SendVerification(p, tok)
	return nil
}
