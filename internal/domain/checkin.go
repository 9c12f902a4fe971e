package domain

import "time"

// CheckIn is an append-only audit row; at most one exists per ticket.
type CheckIn struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticket_id"`
	EventID   string    `json:"event_id"`
	ScannedBy string    `json:"scanned_by"`
	Gate      string    `json:"gate,omitempty"`
	ScannedAt time.Time `json:"scanned_at"`
}
