package model

import "time"

// Ticket is a support ticket row. Only the fields the authorization
// layer cares about are modeled in full; workflow details (states,
// assignments, scoring) live entirely in the handlers.
type Ticket struct {
	ID          uint64    // tickets.id
	OwnerID     uint64    // tickets.owner_id (creating user)
	Subject     string    // tickets.subject
	Description string    // tickets.description
	Status      string    // tickets.status (OPEN, CLOSED, ...)
	CreatedAt   time.Time // tickets.created_at
	UpdatedAt   time.Time // tickets.updated_at
}
