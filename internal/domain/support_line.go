package domain

import "time"

// RoutingPolicy controls how new tickets are routed onto a line.
type RoutingPolicy struct {
	AutoAssign bool
	RoundRobin bool
	Priority   int
}

// SupportLine is a named pool of operators with a routing policy.
// MaxOperators of zero means unlimited membership.
type SupportLine struct {
	ID           string
	Name         string
	Code         string
	IsActive     bool
	MaxOperators int
	Policy       RoutingPolicy
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
