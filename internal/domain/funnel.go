package domain

import "time"

// Funnel is an ordered pipeline tickets can progress through.
type Funnel struct {
	ID        string
	Name      string
	IsActive  bool
	SortOrder int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FunnelStage is one step of a funnel. TicketStatus, when set, is applied
// to a ticket entering the stage; IsFinal closes the ticket regardless.
type FunnelStage struct {
	ID           string
	FunnelID     string
	Name         string
	SortOrder    int
	TicketStatus *TicketStatus
	IsFinal      bool
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
