package dto

import (
	"time"

	"github.com/spec-kit/crm-backend/internal/domain"
)

// CreateSupportLineRequest payload.
type CreateSupportLineRequest struct {
	Name         string `json:"name"`
	Code         string `json:"code"`
	IsActive     bool   `json:"is_active"`
	MaxOperators int    `json:"max_operators"`
	AutoAssign   bool   `json:"auto_assign"`
	RoundRobin   bool   `json:"round_robin"`
	Priority     int    `json:"priority"`
}

// AssignOperatorRequest payload.
type AssignOperatorRequest struct {
	UserID string `json:"user_id"`
}

// SupportLineResponse response.
type SupportLineResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Code         string    `json:"code"`
	IsActive     bool      `json:"is_active"`
	MaxOperators int       `json:"max_operators"`
	AutoAssign   bool      `json:"auto_assign"`
	RoundRobin   bool      `json:"round_robin"`
	Priority     int       `json:"priority"`
	CreatedAt    time.Time `json:"created_at"`
}

// SupportLineFromDomain maps the domain entity.
func SupportLineFromDomain(line *domain.SupportLine) SupportLineResponse {
	return SupportLineResponse{
		ID:           line.ID,
		Name:         line.Name,
		Code:         line.Code,
		IsActive:     line.IsActive,
		MaxOperators: line.MaxOperators,
		AutoAssign:   line.Policy.AutoAssign,
		RoundRobin:   line.Policy.RoundRobin,
		Priority:     line.Policy.Priority,
		CreatedAt:    line.CreatedAt,
	}
}
