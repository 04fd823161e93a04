package dto

import (
	"time"

	"github.com/spec-kit/crm-backend/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title        string                 `json:"title"`
	Description  string                 `json:"description"`
	ClientID     string                 `json:"client_id"`
	Channel      domain.Channel         `json:"channel,omitempty"`
	Category     *domain.TicketCategory `json:"category,omitempty"`
	Priority     *int                   `json:"priority,omitempty"`
	AssignedToID *string                `json:"assigned_to_id,omitempty"`
	DueDate      *time.Time             `json:"due_date,omitempty"`
}

// UpdateTicketRequest payload. Assignment changes are not accepted here;
// use the transfer endpoint.
type UpdateTicketRequest struct {
	Title       *string                `json:"title,omitempty"`
	Description *string                `json:"description,omitempty"`
	Category    *domain.TicketCategory `json:"category,omitempty"`
	Priority    *int                   `json:"priority,omitempty"`
	DueDate     *time.Time             `json:"due_date,omitempty"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status domain.TicketStatus `json:"status"`
}

// TransferTicketRequest payload. Exactly one of to_user_id and
// to_role_name must be present.
type TransferTicketRequest struct {
	ToUserID   *string          `json:"to_user_id,omitempty"`
	ToRoleName *domain.RoleName `json:"to_role_name,omitempty"`
	Reason     string           `json:"reason,omitempty"`
}

// MoveStageRequest payload.
type MoveStageRequest struct {
	StageID string `json:"stage_id"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Body       string `json:"body"`
	IsInternal bool   `json:"is_internal"`
}

// TicketSummary response.
type TicketSummary struct {
	ID            string                 `json:"id"`
	ExternalKey   string                 `json:"external_key"`
	Title         string                 `json:"title"`
	ClientID      string                 `json:"client_id"`
	AssignedToID  *string                `json:"assigned_to_id"`
	Status        domain.TicketStatus    `json:"status"`
	StatusLabel   string                 `json:"status_label"`
	Channel       domain.Channel         `json:"channel"`
	Category      *domain.TicketCategory `json:"category"`
	Priority      int                    `json:"priority"`
	SupportLineID *string                `json:"support_line_id"`
	FunnelStageID *string                `json:"funnel_stage_id"`
	DueDate       *time.Time             `json:"due_date"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketSummary
	Description string             `json:"description"`
	CreatedByID string             `json:"created_by_id"`
	ClosedAt    *time.Time         `json:"closed_at"`
	Comments    []CommentResponse  `json:"comments"`
	Transfers   []TransferResponse `json:"transfers"`
}

// CommentResponse represents one thread entry.
type CommentResponse struct {
	ID         string    `json:"id"`
	AuthorID   *string   `json:"author_id"`
	Body       string    `json:"body"`
	IsInternal bool      `json:"is_internal"`
	CreatedAt  time.Time `json:"created_at"`
}

// TransferResponse represents one reassignment record.
type TransferResponse struct {
	ID         string    `json:"id"`
	FromUserID *string   `json:"from_user_id"`
	ToUserID   string    `json:"to_user_id"`
	Reason     string    `json:"reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
