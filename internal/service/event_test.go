package service_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/levishimwe/Hadathub/internal/domain"
	"github.com/levishimwe/Hadathub/internal/repository/memory"
	"github.com/levishimwe/Hadathub/internal/service"
)

func intPtr(n int) *int { return &n }

func TestEventService_CreateEvent_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	venue := f.venue(t, 100)
	start := t0.Add(48 * time.Hour)

	valid := service.CreateEventInput{
		VenueID:      venue.ID,
		Name:         "Gala",
		StartAt:      start,
		EndAt:        start.Add(2 * time.Hour),
		SalesStartAt: t0,
		SalesEndAt:   start,
	}

	tests := []struct {
		name    string
		actor   domain.Actor
		mutate  func(in *service.CreateEventInput)
		wantErr error
	}{
		{"attendee", attendee, nil, domain.ErrForbidden},
		{"unknown venue", organizer, func(in *service.CreateEventInput) { in.VenueID = "nope" }, domain.ErrNotFound},
		{"end before start", organizer, func(in *service.CreateEventInput) { in.EndAt = start.Add(-time.Hour) }, domain.ErrValidation},
		{"sales after start", organizer, func(in *service.CreateEventInput) { in.SalesEndAt = start.Add(time.Hour) }, domain.ErrValidation},
		{"override above venue", organizer, func(in *service.CreateEventInput) { in.CapacityOverride = intPtr(101) }, domain.ErrValidation},
		{"zero override", organizer, func(in *service.CreateEventInput) { in.CapacityOverride = intPtr(0) }, domain.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			if tt.mutate != nil {
				tt.mutate(&in)
			}
			_, err := f.events.CreateEvent(ctx, tt.actor, in)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	event, err := f.events.CreateEvent(ctx, organizer, valid)
	require.NoError(t, err)
	assert.Equal(t, domain.EventDraft, event.Status)
	assert.Equal(t, organizer.UserID, event.OrganizerID)
	assert.Equal(t, 0, f.liveCount(t, event.ID))
}

func TestEventService_CreateEvent_HoldsVenueAgainstShrink(t *testing.T) {
	ctx := context.Background()

	var (
		f       *fixture
		once    sync.Once
		venueID string
		shrink  error
	)
	f = newFixture(t,
		memory.WithRetryBudget(2, time.Millisecond, 20*time.Millisecond),
		memory.WithFault(func(op string) error {
			if op == "CreateEvent" {
				once.Do(func() {
					_, shrink = f.venues.UpdateCapacity(ctx, organizer, venueID, 50)
				})
			}
			return nil
		}),
	)
	venueID = f.venue(t, 100).ID
	start := t0.Add(48 * time.Hour)

	event, err := f.events.CreateEvent(ctx, organizer, service.CreateEventInput{
		VenueID:          venueID,
		Name:             "Gala",
		StartAt:          start,
		EndAt:            start.Add(2 * time.Hour),
		SalesStartAt:     t0,
		SalesEndAt:       start,
		CapacityOverride: intPtr(80),
	})
	require.NoError(t, err)
	require.ErrorIs(t, shrink, domain.ErrContention)

	venue, err := f.store.GetVenue(ctx, venueID)
	require.NoError(t, err)
	assert.Equal(t, 100, venue.Capacity)
	require.NotNil(t, event.CapacityOverride)
	assert.LessOrEqual(t, *event.CapacityOverride, venue.Capacity)

	_, err = f.venues.UpdateCapacity(ctx, organizer, venueID, 50)
	require.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestEventService_Publish_Overlap(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	venue, first := f.published(t, 100)

	touching := f.draft(t, venue.ID, 51*time.Hour)
	overlapping := f.draft(t, venue.ID, 50*time.Hour)

	_, err := f.events.Publish(ctx, organizer, overlapping.ID)
	require.ErrorIs(t, err, domain.ErrOverlapConflict)
	stored, err := f.events.GetEvent(ctx, overlapping.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EventDraft, stored.Status)

	_, err = f.events.Publish(ctx, organizer, touching.ID)
	require.NoError(t, err)

	_, err = f.events.Cancel(ctx, organizer, first.ID, false)
	require.NoError(t, err)
	_, err = f.events.Publish(ctx, organizer, overlapping.ID)
	require.ErrorIs(t, err, domain.ErrOverlapConflict, "still overlaps the touching event")

	t.Run("venue allows overlap", func(t *testing.T) {
		shared, err := f.venues.CreateVenue(ctx, organizer, service.CreateVenueInput{Name: "Park", Capacity: 50, AllowsOverlap: true})
		require.NoError(t, err)

		a := f.draft(t, shared.ID, 48*time.Hour)
		b := f.draft(t, shared.ID, 49*time.Hour)
		_, err = f.events.Publish(ctx, organizer, a.ID)
		require.NoError(t, err)
		_, err = f.events.Publish(ctx, organizer, b.ID)
		require.NoError(t, err)
	})
}

func TestEventService_Publish_ConcurrentOverlappingDrafts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memory.WithRetryBudget(20, time.Millisecond, 2*time.Second))
	venue := f.venue(t, 100)

	drafts := []domain.Event{
		f.draft(t, venue.ID, 48*time.Hour),
		f.draft(t, venue.ID, 49*time.Hour),
		f.draft(t, venue.ID, 50*time.Hour),
	}

	var (
		wg        sync.WaitGroup
		published atomic.Int32
	)
	for _, d := range drafts {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.events.Publish(ctx, organizer, id)
			if err == nil {
				published.Add(1)
				return
			}
			assert.ErrorIs(t, err, domain.ErrOverlapConflict)
		}(d.ID)
	}
	wg.Wait()

	assert.EqualValues(t, 1, published.Load())
}

func TestEventService_Publish_Guards(t *testing.T) {
	ctx := context.Background()

	t.Run("not a draft", func(t *testing.T) {
		f := newFixture(t)
		_, event := f.published(t, 10)
		_, err := f.events.Publish(ctx, organizer, event.ID)
		require.ErrorIs(t, err, domain.ErrInvalidState)
	})

	t.Run("already started", func(t *testing.T) {
		f := newFixture(t)
		venue := f.venue(t, 10)
		event := f.draft(t, venue.ID, 48*time.Hour)
		f.clock.Set(event.StartAt)
		_, err := f.events.Publish(ctx, organizer, event.ID)
		require.ErrorIs(t, err, domain.ErrInvalidState)
	})

	t.Run("sales window not open", func(t *testing.T) {
		f := newFixture(t)
		venue := f.venue(t, 10)
		event := f.draft(t, venue.ID, 48*time.Hour)
		f.clock.Set(event.SalesStartAt.Add(-time.Minute))
		_, err := f.events.Publish(ctx, organizer, event.ID)
		require.ErrorIs(t, err, domain.ErrSalesClosed)
	})

	t.Run("another organizer", func(t *testing.T) {
		f := newFixture(t)
		venue := f.venue(t, 10)
		event := f.draft(t, venue.ID, 48*time.Hour)
		_, err := f.events.Publish(ctx, domain.Actor{UserID: "org-2", Role: domain.RoleOrganizer}, event.ID)
		require.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("staff", func(t *testing.T) {
		f := newFixture(t)
		venue := f.venue(t, 10)
		event := f.draft(t, venue.ID, 48*time.Hour)
		_, err := f.events.Publish(ctx, staff, event.ID)
		require.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("cancelled", func(t *testing.T) {
		f := newFixture(t)
		venue := f.venue(t, 10)
		event := f.draft(t, venue.ID, 48*time.Hour)
		_, err := f.events.Cancel(ctx, organizer, event.ID, false)
		require.NoError(t, err)
		_, err = f.events.Publish(ctx, organizer, event.ID)
		require.ErrorIs(t, err, domain.ErrInvalidState)
	})
}

func TestEventService_UpdateSchedule(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	venue, published := f.published(t, 100)
	draft := f.draft(t, venue.ID, 72*time.Hour)

	move := func(offset time.Duration) service.Schedule {
		start := t0.Add(offset)
		return service.Schedule{StartAt: start, EndAt: start.Add(3 * time.Hour), SalesStartAt: t0, SalesEndAt: start}
	}

	_, err := f.events.UpdateSchedule(ctx, organizer, draft.ID, move(49*time.Hour))
	require.ErrorIs(t, err, domain.ErrOverlapConflict)

	updated, err := f.events.UpdateSchedule(ctx, organizer, draft.ID, move(51*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, t0.Add(51*time.Hour), updated.StartAt)

	bad := move(60 * time.Hour)
	bad.EndAt = bad.StartAt
	_, err = f.events.UpdateSchedule(ctx, organizer, draft.ID, bad)
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.events.UpdateSchedule(ctx, organizer, published.ID, move(100*time.Hour))
	require.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestEventService_SetCapacityOverride(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, event := f.published(t, 10)
	for _, u := range []string{"a", "b", "c"} {
		f.purchase(t, u, event.ID)
	}

	_, err := f.events.SetCapacityOverride(ctx, organizer, event.ID, intPtr(2))
	require.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = f.events.SetCapacityOverride(ctx, organizer, event.ID, intPtr(11))
	require.ErrorIs(t, err, domain.ErrValidation)

	updated, err := f.events.SetCapacityOverride(ctx, organizer, event.ID, intPtr(3))
	require.NoError(t, err)
	require.NotNil(t, updated.CapacityOverride)

	_, err = f.tickets.Purchase(ctx, domain.Actor{UserID: "d", Role: domain.RoleAttendee}, service.PurchaseInput{EventID: event.ID})
	require.ErrorIs(t, err, domain.ErrSoldOut)

	availability, err := f.events.Availability(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Availability{EventID: event.ID, EffectiveCapacity: 3, LiveCount: 3, Remaining: 0}, availability)

	_, err = f.events.SetCapacityOverride(ctx, organizer, event.ID, nil)
	require.NoError(t, err)
	availability, err = f.events.Availability(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, availability.Remaining)
}

func TestEventService_Cancel_Cascade(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, event := f.published(t, 10)

	var reserved, paid []domain.Ticket
	for _, u := range []string{"r1", "r2", "r3"} {
		reserved = append(reserved, f.purchase(t, u, event.ID))
	}
	for _, u := range []string{"p1", "p2"} {
		paid = append(paid, f.paid(t, u, event.ID))
	}
	checkedIn := f.paid(t, "c1", event.ID)
	_, err := f.checkIns.Scan(ctx, staff, service.ScanInput{QRCode: checkedIn.QRCode})
	require.NoError(t, err)
	require.Equal(t, 6, f.liveCount(t, event.ID))

	f.payments.refundFn = func(ticketID string) error {
		if ticketID == paid[1].ID {
			return errors.New("card expired")
		}
		return nil
	}

	report, err := f.events.Cancel(ctx, organizer, event.ID, true)
	require.NoError(t, err)
	assert.Equal(t, domain.EventCancelled, report.Event.Status)
	assert.Len(t, report.CancelledTickets, 5)
	assert.Equal(t, 0, f.liveCount(t, event.ID))

	for _, tk := range append(reserved, paid...) {
		got, err := f.store.GetTicket(ctx, tk.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketCancelled, got.Status)
	}
	got, err := f.store.GetTicket(ctx, checkedIn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketCheckedIn, got.Status)

	require.Len(t, report.Refunds, 2)
	assert.Equal(t, 1, report.RefundFailures())
	statuses := map[string]domain.RefundStatus{}
	for _, r := range report.Refunds {
		statuses[r.TicketID] = r.Status
	}
	assert.Equal(t, domain.RefundDone, statuses[paid[0].ID])
	assert.Equal(t, domain.RefundRejected, statuses[paid[1].ID])

	failed, err := f.store.GetTicket(ctx, paid[1].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RefundRejected, failed.RefundStatus)

	_, err = f.events.Cancel(ctx, organizer, event.ID, true)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.tickets.Purchase(ctx, attendee, service.PurchaseInput{EventID: event.ID})
	require.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestEventService_Cancel_FaultRollsBackCascade(t *testing.T) {
	ctx := context.Background()

	var armed atomic.Bool
	f := newFixture(t, memory.WithFault(func(op string) error {
		if armed.Load() && op == "UpdateEvent" {
			return errInjected
		}
		return nil
	}))
	_, event := f.published(t, 10)
	ticket := f.purchase(t, attendee.UserID, event.ID)

	armed.Store(true)
	_, err := f.events.Cancel(ctx, organizer, event.ID, false)
	require.ErrorIs(t, err, errInjected)

	stored, err := f.store.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketReserved, stored.Status)
	assert.Equal(t, 1, f.liveCount(t, event.ID))
	current, err := f.events.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EventPublished, current.Status)
}

func TestEventService_DeleteEvent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	venue, withTickets := f.published(t, 10)
	f.purchase(t, attendee.UserID, withTickets.ID)

	err := f.events.DeleteEvent(ctx, organizer, withTickets.ID)
	require.ErrorIs(t, err, domain.ErrInvalidState)

	empty := f.draft(t, venue.ID, 96*time.Hour)
	require.NoError(t, f.events.DeleteEvent(ctx, organizer, empty.ID))
	_, err = f.events.GetEvent(ctx, empty.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestVenueService_UpdateCapacity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	venue, event := f.published(t, 10)
	for _, u := range []string{"a", "b", "c", "d"} {
		f.purchase(t, u, event.ID)
	}
	other := f.draft(t, venue.ID, 96*time.Hour)
	_, err := f.events.SetCapacityOverride(ctx, organizer, other.ID, intPtr(6))
	require.NoError(t, err)

	_, err = f.venues.UpdateCapacity(ctx, organizer, venue.ID, 3)
	require.ErrorIs(t, err, domain.ErrInvalidState, "below live count")

	_, err = f.venues.UpdateCapacity(ctx, organizer, venue.ID, 5)
	require.ErrorIs(t, err, domain.ErrInvalidState, "below an override")

	_, err = f.venues.UpdateCapacity(ctx, attendee, venue.ID, 50)
	require.ErrorIs(t, err, domain.ErrForbidden)

	updated, err := f.venues.UpdateCapacity(ctx, organizer, venue.ID, 6)
	require.NoError(t, err)
	assert.Equal(t, 6, updated.Capacity)

	availability, err := f.events.Availability(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, availability.Remaining)
}

// racingCache lets a writer commit after Availability has read the ledger but
// before the snapshot lands in the cache.
type racingCache struct {
	mu      sync.Mutex
	entries map[string]domain.Availability
	onSet   func()
}

func (c *racingCache) Get(_ context.Context, eventID string) (domain.Availability, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.entries[eventID]
	return a, ok
}

func (c *racingCache) Set(_ context.Context, a domain.Availability) {
	if hook := c.onSet; hook != nil {
		c.onSet = nil
		hook()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[a.EventID] = a
}

func (c *racingCache) Invalidate(_ context.Context, eventID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, eventID)
}

func TestEventService_Availability_PurchaseDuringCacheFill(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, event := f.published(t, 10)

	cache := &racingCache{entries: make(map[string]domain.Availability)}
	events := service.NewEventService(f.store, f.payments, f.clock, service.WithAvailabilityCache(cache))
	tickets := service.NewTicketService(f.store, f.payments, fakeQR{}, f.clock, service.WithAvailabilityCache(cache))

	cache.onSet = func() {
		_, err := tickets.Purchase(ctx, attendee, service.PurchaseInput{EventID: event.ID, PricePaid: 2500, Currency: "USD"})
		require.NoError(t, err)
	}

	first, err := events.Availability(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, first.LiveCount)

	_, cached := cache.Get(ctx, event.ID)
	assert.False(t, cached)

	again, err := events.Availability(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, again.LiveCount)
	assert.Equal(t, 9, again.Remaining)

	hit, cached := cache.Get(ctx, event.ID)
	require.True(t, cached)
	assert.Equal(t, again, hit)
}
