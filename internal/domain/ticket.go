package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusNew        TicketStatus = "new"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusClosed     TicketStatus = "closed"
	TicketStatusOverdue    TicketStatus = "overdue"
)

// StatusLabel returns the customer-facing Russian label used in audit comments.
func (s TicketStatus) StatusLabel() string {
	switch s {
	case TicketStatusNew:
		return "Новая"
	case TicketStatusInProgress:
		return "В работе"
	case TicketStatusClosed:
		return "Закрыта"
	case TicketStatusOverdue:
		return "Просрочена"
	}
	return string(s)
}

// TicketCategory enumerates auto-classifiable ticket categories.
type TicketCategory string

const (
	CategoryComplaint TicketCategory = "complaint"
	CategorySales     TicketCategory = "sales"
	CategoryQuestion  TicketCategory = "question"
	CategoryRequest   TicketCategory = "request"
	CategoryTechnical TicketCategory = "technical"
	CategoryOther     TicketCategory = "other"
)

// Ticket is the aggregate for customer-support work.
// Invariant: ClosedAt is non-nil iff Status == TicketStatusClosed.
type Ticket struct {
	ID            string
	ExternalKey   string
	Title         string
	Description   string
	ClientID      string
	CreatedByID   string
	AssignedToID  *string
	Status        TicketStatus
	Channel       Channel
	Category      *TicketCategory
	FunnelStageID *string
	SupportLineID *string
	Priority      int
	DueDate       *time.Time
	ClosedAt      *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsClosed reports whether the ticket is in its terminal state.
func (t *Ticket) IsClosed() bool {
	return t.Status == TicketStatusClosed
}
