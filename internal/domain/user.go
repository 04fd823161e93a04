package domain

import "time"

// User is an authenticated principal: an administrator or a line operator.
type User struct {
	ID            string
	Name          string
	Email         string
	PasswordHash  string
	Role          RoleName
	SupportLineID *string
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
