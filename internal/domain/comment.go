package domain

import "time"

// Comment is an append-only note on a ticket. Internal comments are
// authored by the system or operators and are hidden from the customer;
// the audit trail for status, assignment and stage changes lives here.
type Comment struct {
	ID         string
	TicketID   string
	AuthorID   *string
	Body       string
	IsInternal bool
	CreatedAt  time.Time
}
