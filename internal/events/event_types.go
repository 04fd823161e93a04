package events

import (
	"time"

	"github.com/spec-kit/crm-backend/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketTransferred   EventType = "ticket_transferred"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketStageChanged  EventType = "ticket_stage_changed"
	EventTicketOverdue       EventType = "ticket_overdue"
	EventDailySummary        EventType = "daily_summary"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id,omitempty"`
	ActorID   string      `json:"actor_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	ClientID string                 `json:"client_id"`
	Channel  domain.Channel         `json:"channel"`
	Category *domain.TicketCategory `json:"category,omitempty"`
	Priority int                    `json:"priority"`
	Title    string                 `json:"title"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	AssignedToID  string  `json:"assigned_to_id"`
	SupportLineID *string `json:"support_line_id,omitempty"`
}

// TicketTransferredPayload payload.
type TicketTransferredPayload struct {
	FromUserID *string `json:"from_user_id,omitempty"`
	ToUserID   string  `json:"to_user_id"`
	Reason     string  `json:"reason,omitempty"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketStageChangedPayload payload.
type TicketStageChangedPayload struct {
	OldStageID *string `json:"old_stage_id,omitempty"`
	NewStageID string  `json:"new_stage_id"`
	IsFinal    bool    `json:"is_final"`
}

// DailySummaryPayload payload.
type DailySummaryPayload struct {
	From          time.Time                   `json:"from"`
	To            time.Time                   `json:"to"`
	StatusCounts  map[domain.TicketStatus]int `json:"status_counts"`
	AvgResolution time.Duration               `json:"avg_resolution"`
}
