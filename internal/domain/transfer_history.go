package domain

import "time"

// TransferHistory is the durable provenance of assignment changes.
// Rows are append-only: one per transfer call, never mutated or deleted.
type TransferHistory struct {
	ID         string
	TicketID   string
	FromUserID *string
	ToUserID   string
	Reason     string
	CreatedAt  time.Time
}
