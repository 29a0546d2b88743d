package domain

import "time"

// PendingRegistration is an unconfirmed signup. At most one exists per email;
// it is deleted when the token is confirmed or found expired.
//
// Only the SHA-256 hash of the verification token is stored. The raw token
// leaves the system exclusively through the verification email.
type PendingRegistration struct {
	Email        string    `json:"email" dynamodbav:"email"`
	Name         string    `json:"name" dynamodbav:"name"`
	PasswordHash string    `json:"-" dynamodbav:"password_hash"`
	Role         string    `json:"role" dynamodbav:"role"`
	TokenHash    string    `json:"-" dynamodbav:"token_hash"`
	ExpiresAt    time.Time `json:"expires_at" dynamodbav:"expires_at,unixtime"` // also the DynamoDB TTL attribute
	CreatedAt    time.Time `json:"created" dynamodbav:"created_at"`
}

// Expired reports whether the registration can no longer be confirmed at now.
func (p *PendingRegistration) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// PromoteToUser builds the active account for a confirmed registration.
func (p *PendingRegistration) PromoteToUser(userID string, now time.Time) *User {
	return &User{
		UserID:       userID,
		Name:         p.Name,
		Email:        p.Email,
		PasswordHash: p.PasswordHash,
		Verified:     true,
		Role:         p.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

type ResendVerificationRequest struct {
	Email string `json:"email" validate:"required,email"`
}
