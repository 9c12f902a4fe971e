package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/levishimwe/Hadathub/internal/clock"
	"github.com/levishimwe/Hadathub/internal/domain"
)

type CreateVenueInput struct {
	Name          string
	Capacity      int
	AllowsOverlap bool
}

type VenueService struct {
	repo   TicketingRepository
	ledger *CapacityLedger
	clock  clock.Clock
	cache  AvailabilityCache
}

func NewVenueService(repo TicketingRepository, clk clock.Clock, opts ...Option) *VenueService {
	o := newOptions(opts)
	return &VenueService{
		repo:   repo,
		ledger: NewCapacityLedger(repo),
		clock:  clk,
		cache:  o.cache,
	}
}

func (s *VenueService) CreateVenue(ctx context.Context, actor domain.Actor, in CreateVenueInput) (domain.Venue, error) {
	if err := actor.Require(domain.RoleOrganizer); err != nil {
		return domain.Venue{}, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return domain.Venue{}, fmt.Errorf("venue name required: %w", domain.ErrValidation)
	}
	if in.Capacity <= 0 {
		return domain.Venue{}, fmt.Errorf("venue capacity must be positive: %w", domain.ErrValidation)
	}

	now := s.clock.Now()
	venue, err := s.repo.CreateVenue(ctx, domain.Venue{
		ID:            uuid.NewString(),
		Name:          in.Name,
		Capacity:      in.Capacity,
		AllowsOverlap: in.AllowsOverlap,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return domain.Venue{}, fmt.Errorf("s.repo.CreateVenue -> %w", err)
	}

	return venue, nil
}

func (s *VenueService) GetVenue(ctx context.Context, venueID string) (domain.Venue, error) {
	return s.repo.GetVenue(ctx, venueID)
}

// UpdateCapacity changes the venue capacity. A decrease is refused when any
// non-cancelled event at the venue would end up below its live count or its
// capacity override.
func (s *VenueService) UpdateCapacity(ctx context.Context, actor domain.Actor, venueID string, capacity int) (domain.Venue, error) {
	if err := actor.Require(domain.RoleOrganizer); err != nil {
		return domain.Venue{}, err
	}
	if capacity <= 0 {
		return domain.Venue{}, fmt.Errorf("venue capacity must be positive: %w", domain.ErrValidation)
	}

	var (
		venue    domain.Venue
		affected []string
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context) error {
		affected = nil

		var err error
		venue, err = s.repo.LockVenue(ctx, venueID)
		if err != nil {
			return err
		}

		events, err := s.repo.ListEventsByVenue(ctx, venueID, domain.EventDraft, domain.EventPublished)
		if err != nil {
			return fmt.Errorf("s.repo.ListEventsByVenue -> %w", err)
		}
		for _, e := range events {
			affected = append(affected, e.ID)
			if capacity >= venue.Capacity {
				continue
			}

			event, err := s.repo.LockEvent(ctx, e.ID)
			if err != nil {
				return err
			}
			if event.CapacityOverride != nil && *event.CapacityOverride > capacity {
				return fmt.Errorf("event %s overrides capacity to %d: %w", event.ID, *event.CapacityOverride, domain.ErrInvalidState)
			}
			live, err := s.ledger.LiveCount(ctx, event.ID)
			if err != nil {
				return err
			}
			if live > capacity {
				return fmt.Errorf("event %s has %d live tickets: %w", event.ID, live, domain.ErrInvalidState)
			}
		}

		venue.Capacity = capacity
		venue.UpdatedAt = s.clock.Now()
		return s.repo.UpdateVenue(ctx, venue)
	})
	if err != nil {
		return domain.Venue{}, err
	}
	for _, id := range affected {
		s.cache.Invalidate(ctx, id)
	}

	return venue, nil
}
