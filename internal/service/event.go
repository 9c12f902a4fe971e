package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/levishimwe/Hadathub/internal/clock"
	"github.com/levishimwe/Hadathub/internal/domain"
)

type CreateEventInput struct {
	VenueID          string
	Name             string
	StartAt          time.Time
	EndAt            time.Time
	SalesStartAt     time.Time
	SalesEndAt       time.Time
	CapacityOverride *int
}

type Schedule struct {
	StartAt      time.Time
	EndAt        time.Time
	SalesStartAt time.Time
	SalesEndAt   time.Time
}

type CancelEventReport struct {
	Event            domain.Event   `json:"event"`
	CancelledTickets []string       `json:"cancelled_tickets"`
	Refunds          []RefundResult `json:"refunds,omitempty"`
}

// RefundFailures counts refunds that did not go through.
func (r CancelEventReport) RefundFailures() int {
	n := 0
	for _, res := range r.Refunds {
		if res.Status == domain.RefundRejected {
			n++
		}
	}
	return n
}

type EventService struct {
	repo      TicketingRepository
	ledger    *CapacityLedger
	scheduler *SchedulingValidator
	clock     clock.Clock
	cache     AvailabilityCache
	refunds   *refunder
}

func NewEventService(repo TicketingRepository, payments PaymentGateway, clk clock.Clock, opts ...Option) *EventService {
	o := newOptions(opts)
	return &EventService{
		repo:      repo,
		ledger:    NewCapacityLedger(repo),
		scheduler: NewSchedulingValidator(repo),
		clock:     clk,
		cache:     o.cache,
		refunds: &refunder{
			repo:        repo,
			payments:    payments,
			clock:       clk,
			concurrency: o.refundConcurrency,
		},
	}
}

func (s *EventService) CreateEvent(ctx context.Context, actor domain.Actor, in CreateEventInput) (domain.Event, error) {
	if err := actor.Require(domain.RoleOrganizer); err != nil {
		return domain.Event{}, err
	}

	var created domain.Event
	err := s.repo.WithTx(ctx, func(ctx context.Context) error {
		// the venue lock keeps UpdateCapacity from shrinking below the override
		// between the check and the insert
		venue, err := s.repo.LockVenue(ctx, in.VenueID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		event := domain.Event{
			ID:               uuid.NewString(),
			VenueID:          venue.ID,
			OrganizerID:      actor.UserID,
			Name:             in.Name,
			StartAt:          in.StartAt.UTC(),
			EndAt:            in.EndAt.UTC(),
			SalesStartAt:     in.SalesStartAt.UTC(),
			SalesEndAt:       in.SalesEndAt.UTC(),
			Status:           domain.EventDraft,
			CapacityOverride: in.CapacityOverride,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := event.ValidateSchedule(); err != nil {
			return err
		}
		if err := validateOverride(in.CapacityOverride, venue); err != nil {
			return err
		}

		created, err = s.repo.CreateEvent(ctx, event)
		if err != nil {
			return fmt.Errorf("s.repo.CreateEvent -> %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Event{}, err
	}

	return created, nil
}

func (s *EventService) GetEvent(ctx context.Context, eventID string) (domain.Event, error) {
	return s.repo.GetEvent(ctx, eventID)
}

// UpdateSchedule edits the timing of a draft event and re-runs the overlap
// check against the venue's published events.
func (s *EventService) UpdateSchedule(ctx context.Context, actor domain.Actor, eventID string, in Schedule) (domain.Event, error) {
	if err := actor.Require(domain.RoleOrganizer); err != nil {
		return domain.Event{}, err
	}

	var event domain.Event
	err := s.repo.WithTx(ctx, func(ctx context.Context) error {
		var err error
		event, err = s.repo.LockEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if err := owns(actor, event); err != nil {
			return err
		}
		if event.Status != domain.EventDraft {
			return fmt.Errorf("event %s is %s, only drafts can be rescheduled: %w", event.ID, event.Status, domain.ErrInvalidState)
		}

		event.StartAt = in.StartAt.UTC()
		event.EndAt = in.EndAt.UTC()
		event.SalesStartAt = in.SalesStartAt.UTC()
		event.SalesEndAt = in.SalesEndAt.UTC()
		if err := event.ValidateSchedule(); err != nil {
			return err
		}
		if err := s.scheduler.CheckOverlap(ctx, event.VenueID, event.StartAt, event.EndAt, event.ID); err != nil {
			return err
		}

		event.UpdatedAt = s.clock.Now()
		return s.repo.UpdateEvent(ctx, event)
	})
	if err != nil {
		return domain.Event{}, err
	}

	return event, nil
}

// SetCapacityOverride changes or clears the event's capacity override. The
// new effective capacity may never drop below the live ticket count.
func (s *EventService) SetCapacityOverride(ctx context.Context, actor domain.Actor, eventID string, override *int) (domain.Event, error) {
	if err := actor.Require(domain.RoleOrganizer); err != nil {
		return domain.Event{}, err
	}

	var event domain.Event
	err := s.repo.WithTx(ctx, func(ctx context.Context) error {
		var err error
		event, err = s.repo.LockEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if err := owns(actor, event); err != nil {
			return err
		}
		if event.Status == domain.EventCancelled {
			return fmt.Errorf("event %s is cancelled: %w", event.ID, domain.ErrInvalidState)
		}

		venue, err := s.repo.GetVenue(ctx, event.VenueID)
		if err != nil {
			return err
		}
		if err := validateOverride(override, venue); err != nil {
			return err
		}

		live, err := s.ledger.LiveCount(ctx, event.ID)
		if err != nil {
			return err
		}
		event.CapacityOverride = override
		if capacity := event.EffectiveCapacity(venue); capacity < live {
			return fmt.Errorf("capacity %d is below %d live tickets: %w", capacity, live, domain.ErrInvalidState)
		}

		event.UpdatedAt = s.clock.Now()
		return s.repo.UpdateEvent(ctx, event)
	})
	if err != nil {
		return domain.Event{}, err
	}
	s.cache.Invalidate(ctx, event.ID)

	return event, nil
}

// Publish runs draft -> published. The venue lock serializes overlap checks
// for all events at the venue.
func (s *EventService) Publish(ctx context.Context, actor domain.Actor, eventID string) (domain.Event, error) {
	if err := actor.Require(domain.RoleOrganizer); err != nil {
		return domain.Event{}, err
	}

	current, err := s.repo.GetEvent(ctx, eventID)
	if err != nil {
		return domain.Event{}, err
	}

	var event domain.Event
	err = s.repo.WithTx(ctx, func(ctx context.Context) error {
		var err error
		if _, err = s.repo.LockVenue(ctx, current.VenueID); err != nil {
			return err
		}
		event, err = s.repo.LockEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if err := owns(actor, event); err != nil {
			return err
		}
		if event.Status != domain.EventDraft {
			return fmt.Errorf("event %s is %s: %w", event.ID, event.Status, domain.ErrInvalidState)
		}

		now := s.clock.Now()
		if !event.StartAt.After(now) {
			return fmt.Errorf("event %s already started: %w", event.ID, domain.ErrInvalidState)
		}
		if !event.SalesOpen(now) {
			return fmt.Errorf("event %s outside its sales window: %w", event.ID, domain.ErrSalesClosed)
		}
		if err := s.scheduler.CheckOverlap(ctx, event.VenueID, event.StartAt, event.EndAt, event.ID); err != nil {
			return err
		}

		event.Status, err = domain.TransitionEvent(event.Status, domain.EventPublished)
		if err != nil {
			return err
		}
		event.UpdatedAt = now
		return s.repo.UpdateEvent(ctx, event)
	})
	if err != nil {
		return domain.Event{}, err
	}

	zap.L().Info("event published", zap.String("event_id", event.ID), zap.String("venue_id", event.VenueID))
	return event, nil
}

// Cancel runs draft|published -> cancelled. For a published event every
// reserved or paid ticket is cancelled and the ledger retired in the same unit
// of work. Refunds are dispatched after the commit; their failures are
// reported, never rolled back.
func (s *EventService) Cancel(ctx context.Context, actor domain.Actor, eventID string, refundTickets bool) (CancelEventReport, error) {
	if err := actor.Require(domain.RoleOrganizer); err != nil {
		return CancelEventReport{}, err
	}

	var (
		event     domain.Event
		cancelled []domain.Ticket
		paid      []domain.Ticket
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context) error {
		cancelled, paid = nil, nil

		var err error
		event, err = s.repo.LockEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if err := owns(actor, event); err != nil {
			return err
		}

		from := event.Status
		event.Status, err = domain.TransitionEvent(from, domain.EventCancelled)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		if from == domain.EventPublished {
			tickets, err := s.repo.LockTicketsByEvent(ctx, event.ID, domain.TicketReserved, domain.TicketPaid)
			if err != nil {
				return err
			}
			for _, t := range tickets {
				prev := t.Status
				t.Status, err = domain.TransitionTicket(prev, domain.TicketCancelled)
				if err != nil {
					return err
				}
				t.UpdatedAt = now
				if err := s.repo.UpdateTicket(ctx, t); err != nil {
					return err
				}
				cancelled = append(cancelled, t)
				if prev == domain.TicketPaid {
					paid = append(paid, t)
				}
			}
		}
		if _, err := s.ledger.Retire(ctx, event.ID); err != nil {
			return err
		}

		event.UpdatedAt = now
		return s.repo.UpdateEvent(ctx, event)
	})
	if err != nil {
		return CancelEventReport{}, err
	}
	s.cache.Invalidate(ctx, event.ID)

	report := CancelEventReport{
		Event:            event,
		CancelledTickets: make([]string, len(cancelled)),
	}
	for i, t := range cancelled {
		report.CancelledTickets[i] = t.ID
	}
	if refundTickets && len(paid) > 0 {
		report.Refunds = s.refunds.refundAll(ctx, paid)
	}

	zap.L().Info("event cancelled",
		zap.String("event_id", event.ID),
		zap.Int("tickets_cancelled", len(cancelled)),
		zap.Int("refund_failures", report.RefundFailures()))
	return report, nil
}

// DeleteEvent removes an event no ticket has ever referenced. Events with
// tickets must be cancelled instead.
func (s *EventService) DeleteEvent(ctx context.Context, actor domain.Actor, eventID string) error {
	if err := actor.Require(domain.RoleOrganizer); err != nil {
		return err
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context) error {
		event, err := s.repo.LockEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if err := owns(actor, event); err != nil {
			return err
		}

		n, err := s.repo.CountTicketsByEvent(ctx, event.ID)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("event %s has %d tickets, cancel it instead: %w", event.ID, n, domain.ErrInvalidState)
		}

		return s.repo.DeleteEvent(ctx, event.ID)
	})
	if err != nil {
		return err
	}
	s.cache.Invalidate(ctx, eventID)

	return nil
}

// Availability is a lock-free read of the event's remaining capacity.
func (s *EventService) Availability(ctx context.Context, eventID string) (domain.Availability, error) {
	if cached, ok := s.cache.Get(ctx, eventID); ok {
		return cached, nil
	}

	availability, version, err := s.availability(ctx, eventID)
	if err != nil {
		return domain.Availability{}, err
	}
	s.cache.Set(ctx, availability)

	// A writer that committed between the read and the Set may have already
	// invalidated. Re-read and drop the entry if it no longer matches.
	current, currentVersion, err := s.availability(ctx, eventID)
	if err != nil || current != availability || currentVersion != version {
		s.cache.Invalidate(ctx, eventID)
	}

	return availability, nil
}

func (s *EventService) availability(ctx context.Context, eventID string) (domain.Availability, int64, error) {
	event, err := s.repo.GetEvent(ctx, eventID)
	if err != nil {
		return domain.Availability{}, 0, err
	}
	venue, err := s.repo.GetVenue(ctx, event.VenueID)
	if err != nil {
		return domain.Availability{}, 0, err
	}
	ledger, err := s.repo.GetLedger(ctx, event.ID)
	if err != nil {
		return domain.Availability{}, 0, fmt.Errorf("s.repo.GetLedger -> %w", err)
	}

	capacity := event.EffectiveCapacity(venue)
	return domain.Availability{
		EventID:           event.ID,
		EffectiveCapacity: capacity,
		LiveCount:         ledger.LiveCount,
		Remaining:         max(capacity-ledger.LiveCount, 0),
	}, ledger.Version, nil
}

func owns(actor domain.Actor, event domain.Event) error {
	if event.OrganizerID != actor.UserID {
		return fmt.Errorf("event %s belongs to another organizer: %w", event.ID, domain.ErrForbidden)
	}
	return nil
}

func validateOverride(override *int, venue domain.Venue) error {
	if override == nil {
		return nil
	}
	if *override <= 0 {
		return fmt.Errorf("capacity override must be positive: %w", domain.ErrValidation)
	}
	if *override > venue.Capacity {
		return fmt.Errorf("capacity override %d exceeds venue capacity %d: %w", *override, venue.Capacity, domain.ErrValidation)
	}
	return nil
}
