package dto

import (
	"time"

	"github.com/spec-kit/crm-backend/internal/domain"
)

// LoginRequest payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse includes the signed token.
type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

// RegisterUserRequest payload.
type RegisterUserRequest struct {
	Name     string          `json:"name"`
	Email    string          `json:"email"`
	Password string          `json:"password"`
	Role     domain.RoleName `json:"role"`
}

// ChangePasswordRequest payload.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// UpdateUserRequest payload.
type UpdateUserRequest struct {
	Name   *string          `json:"name,omitempty"`
	Email  *string          `json:"email,omitempty"`
	Role   *domain.RoleName `json:"role,omitempty"`
	Active *bool            `json:"active,omitempty"`
}

// UserResponse response.
type UserResponse struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Email         string          `json:"email"`
	Role          domain.RoleName `json:"role"`
	SupportLineID *string         `json:"support_line_id"`
	Active        bool            `json:"active"`
	CreatedAt     time.Time       `json:"created_at"`
}

// UserFromDomain maps the domain entity. The password hash never leaves
// the service layer.
func UserFromDomain(user *domain.User) UserResponse {
	return UserResponse{
		ID:            user.ID,
		Name:          user.Name,
		Email:         user.Email,
		Role:          user.Role,
		SupportLineID: user.SupportLineID,
		Active:        user.Active,
		CreatedAt:     user.CreatedAt,
	}
}
