package domain

import "time"

// Roles recognised by the authorization layer.
const (
	RoleAdmin    = "Admin"
	RoleStaff    = "Staff"
	RoleCustomer = "Customer"
)

// ValidRole reports whether r is one of the enumerated roles.
func ValidRole(r string) bool {
	switch r {
	case RoleAdmin, RoleStaff, RoleCustomer:
		return true
	}
	return false
}

// User is an active account. Users only come into existence by promoting a
// PendingRegistration, so Verified is always true for stored users.
type User struct {
	UserID       string    `json:"id" dynamodbav:"user_id"`
	Name         string    `json:"name" dynamodbav:"name"`
	Email        string    `json:"email" dynamodbav:"email"`
	PasswordHash string    `json:"-" dynamodbav:"password_hash"`
	Verified     bool      `json:"is_verified" dynamodbav:"verified"`
	Role         string    `json:"role" dynamodbav:"role"`
	CreatedAt    time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt    time.Time `json:"updated" dynamodbav:"updated_at"`
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role" validate:"omitempty,role"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UpdateUserRequest lists every mutable user field. Email is immutable.
type UpdateUserRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=255"`
	Password *string `json:"password" validate:"omitempty,min=8,max=72"`
	Role     *string `json:"role" validate:"omitempty,role"`
}

// UserChanges is the store-level counterpart of UpdateUserRequest, with the
// password already hashed.
type UserChanges struct {
	Name         *string
	PasswordHash *string
	Role         *string
}

// Empty reports whether no field is set.
func (c UserChanges) Empty() bool {
	return c.Name == nil && c.PasswordHash == nil && c.Role == nil
}

// Apply copies the set fields onto u.
func (c UserChanges) Apply(u *User) {
	if c.Name != nil {
		u.Name = *c.Name
	}
	if c.PasswordHash != nil {
		u.PasswordHash = *c.PasswordHash
	}
	if c.Role != nil {
		u.Role = *c.Role
	}
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID string
	Role   string
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// IsStaff reports whether the caller may act on other users' carts and orders.
func (a Actor) IsStaff() bool { return a.Role == RoleAdmin || a.Role == RoleStaff }
