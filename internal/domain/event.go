package domain

import (
	"fmt"
	"time"
)

type EventStatus string

const (
	EventDraft     EventStatus = "draft"
	EventPublished EventStatus = "published"
	EventCancelled EventStatus = "cancelled"
)

type Event struct {
	ID               string      `json:"id"`
	VenueID          string      `json:"venue_id"`
	OrganizerID      string      `json:"organizer_id"`
	Name             string      `json:"name"`
	StartAt          time.Time   `json:"start_at"`
	EndAt            time.Time   `json:"end_at"`
	SalesStartAt     time.Time   `json:"sales_start_at"`
	SalesEndAt       time.Time   `json:"sales_end_at"`
	Status           EventStatus `json:"status"`
	CapacityOverride *int        `json:"capacity_override,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// EffectiveCapacity is the override when set, the venue capacity otherwise.
func (e Event) EffectiveCapacity(v Venue) int {
	if e.CapacityOverride != nil {
		return *e.CapacityOverride
	}
	return v.Capacity
}

func (e Event) Interval() Interval {
	return Interval{Start: e.StartAt, End: e.EndAt}
}

// SalesOpen reports whether now falls inside [SalesStartAt, SalesEndAt].
func (e Event) SalesOpen(now time.Time) bool {
	return !now.Before(e.SalesStartAt) && !now.After(e.SalesEndAt)
}

// ValidateSchedule checks the timing fields against each other.
func (e Event) ValidateSchedule() error {
	if !e.StartAt.Before(e.EndAt) {
		return fmt.Errorf("start_at must be before end_at: %w", ErrValidation)
	}
	if !e.SalesStartAt.Before(e.SalesEndAt) {
		return fmt.Errorf("sales_start_at must be before sales_end_at: %w", ErrValidation)
	}
	if e.SalesEndAt.After(e.StartAt) {
		return fmt.Errorf("sales_end_at must not be after start_at: %w", ErrValidation)
	}
	return nil
}

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether the two half-open intervals intersect. Touching
// intervals (a.End == b.Start) do not overlap.
func (a Interval) Overlaps(b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}
