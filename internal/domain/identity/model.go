package identity

import (
	"time"

	"github.com/google/uuid"

	"github.com/cjLee-cmd/acuzen-ICBM/internal/platform/auth"
)

// User is an account. PasswordHash never leaves the service.
type User struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	PasswordHash string     `json:"-"`
	Role         auth.Role  `json:"role"`
	Organization *string    `json:"organization"`
	IsActive     bool       `json:"isActive"`
	LastLoginAt  *time.Time `json:"lastLoginAt"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

func (u *User) Principal() *auth.Principal {
	p := &auth.Principal{
		ID:     u.ID,
		Email:  u.Email,
		Name:   u.Name,
		Role:   u.Role,
		Active: u.IsActive,
	}
	if u.Organization != nil {
		p.Organization = *u.Organization
	}
	return p
}

type CreateUserRequest struct {
	Email        string  `json:"email" validate:"required,email,max=255"`
	Name         string  `json:"name" validate:"required,max=255"`
	Password     string  `json:"password" validate:"required,min=8,max=72"`
	Role         string  `json:"role" validate:"omitempty,oneof=USER REVIEWER ADMIN"`
	Organization *string `json:"organization" validate:"omitempty,max=255"`
}

// UpdateUserRequest is a partial update; nil fields are left alone.
type UpdateUserRequest struct {
	Email        *string `json:"email" validate:"omitempty,email,max=255"`
	Name         *string `json:"name" validate:"omitempty,min=1,max=255"`
	Password     *string `json:"password" validate:"omitempty,min=8,max=72"`
	Role         *string `json:"role" validate:"omitempty,oneof=USER REVIEWER ADMIN"`
	Organization *string `json:"organization" validate:"omitempty,max=255"`
	IsActive     *bool   `json:"isActive"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UserFilter struct {
	Role     auth.Role
	IsActive *bool
	Limit    int
	Offset   int
}
