package service

import (
	"context"
	"fmt"
	"time"

	"github.com/levishimwe/Hadathub/internal/domain"
)

type ScheduleStore interface {
	GetVenue(ctx context.Context, id string) (domain.Venue, error)
	ListEventsByVenue(ctx context.Context, venueID string, statuses ...domain.EventStatus) ([]domain.Event, error)
}

type SchedulingValidator struct {
	store ScheduleStore
}

func NewSchedulingValidator(store ScheduleStore) *SchedulingValidator {
	return &SchedulingValidator{
		store: store,
	}
}

// CheckOverlap returns domain.ErrOverlapConflict when [startAt, endAt)
// intersects a published event at the venue other than excludeEventID.
func (v *SchedulingValidator) CheckOverlap(ctx context.Context, venueID string, startAt, endAt time.Time, excludeEventID string) error {
	venue, err := v.store.GetVenue(ctx, venueID)
	if err != nil {
		return fmt.Errorf("v.store.GetVenue -> %w", err)
	}
	if venue.AllowsOverlap {
		return nil
	}

	published, err := v.store.ListEventsByVenue(ctx, venueID, domain.EventPublished)
	if err != nil {
		return fmt.Errorf("v.store.ListEventsByVenue -> %w", err)
	}

	candidate := domain.Interval{Start: startAt, End: endAt}
	for _, e := range published {
		if e.ID == excludeEventID {
			continue
		}
		if candidate.Overlaps(e.Interval()) {
			return fmt.Errorf("venue %s already hosts event %s from %s to %s: %w",
				venueID, e.ID, e.StartAt.Format(time.RFC3339), e.EndAt.Format(time.RFC3339), domain.ErrOverlapConflict)
		}
	}

	return nil
}
