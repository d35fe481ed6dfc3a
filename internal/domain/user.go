package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User represents a CRM account
type User struct {
	ID                 uuid.UUID  `json:"id" db:"id"`
	Email              string     `json:"email" db:"email"`        // unique across all organizations
	PasswordHash       string     `json:"-" db:"password_hash"`    // bcrypt digest, never returned
	FirstName          string     `json:"first_name" db:"first_name"`
	LastName           string     `json:"last_name" db:"last_name"`
	Role               Role       `json:"role" db:"role"`
	OrganizationID     *uuid.UUID `json:"organization_id" db:"organization_id"` // nil for system admins and unaffiliated customers
	Active             bool       `json:"is_active" db:"is_active"`
	MustChangePassword bool       `json:"must_change_password" db:"must_change_password"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at" db:"updated_at"`
}

// Name joins first and last name.
func (u *User) Name() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Principal returns the authenticated view of the user.
func (u *User) Principal() Principal {
	return Principal{
		UserID:             u.ID,
		Email:              u.Email,
		Role:               u.Role,
		OrganizationID:     u.OrganizationID,
		MustChangePassword: u.MustChangePassword,
	}
}

// NormalizeEmail lower-cases and trims an address so uniqueness is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserFilter narrows user listings
type UserFilter struct {
	Role       *Role
	ActiveOnly bool
}

// UserRepository defines data access for users.
// Methods taking a Scope never return rows outside it.
type UserRepository interface {
	// Create inserts the user and runs onCreated inside the same
	// transaction; an onCreated error rolls the insert back.
	Create(ctx context.Context, user *User, onCreated func(context.Context, *User) error) error
	GetByID(ctx context.Context, scope Scope, id uuid.UUID) (*User, error)
	// GetByEmail is unscoped; it backs login only.
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, scope Scope, filter UserFilter) ([]*User, error)
	Update(ctx context.Context, scope Scope, id uuid.UUID, fn func(*User) error) (*User, error)
	Delete(ctx context.Context, scope Scope, id uuid.UUID) error
}
