// Package queue defines message payloads exchanged over the message
// broker and the background audit consumer.
package queue

import "time"

// Event types carried on the auth.events queue.
const (
	EventUserLogin       = "user.login"
	EventSessionsRevoked = "sessions.revoked_all"
	EventTicketCreated   = "ticket.created"
)

// AuthEvent is the audit record published for security-relevant
// actions. It carries enough for downstream log sinks and alerting
// without another database query; TicketID is set only for ticket
// events.
type AuthEvent struct {
	Type      string    `json:"type"`
	UserID    uint64    `json:"user_id"`
	Username  string    `json:"username"`
	IPAddress string    `json:"ip_address,omitempty"`
	TicketID  uint64    `json:"ticket_id,omitempty"`
	At        time.Time `json:"at"`
}
