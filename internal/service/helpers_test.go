package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/levishimwe/Hadathub/internal/clock"
	"github.com/levishimwe/Hadathub/internal/domain"
	"github.com/levishimwe/Hadathub/internal/repository/memory"
	"github.com/levishimwe/Hadathub/internal/service"
)

var (
	t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	organizer = domain.Actor{UserID: "org-1", Role: domain.RoleOrganizer}
	attendee  = domain.Actor{UserID: "user-1", Role: domain.RoleAttendee}
	staff     = domain.Actor{UserID: "staff-1", Role: domain.RoleStaff}
)

type fakePayments struct {
	mu       sync.Mutex
	statuses map[string]domain.PaymentStatus
	confirm  error
	refundFn func(ticketID string) error
	refunded []string

	// beforeConfirm runs ahead of each confirmation, outside the lock.
	beforeConfirm func(ref string)
}

func newFakePayments() *fakePayments {
	return &fakePayments{statuses: make(map[string]domain.PaymentStatus)}
}

func (p *fakePayments) set(ref string, status domain.PaymentStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses[ref] = status
}

func (p *fakePayments) ConfirmPayment(_ context.Context, ref string) (domain.PaymentStatus, error) {
	if p.beforeConfirm != nil {
		p.beforeConfirm(ref)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.confirm != nil {
		return "", p.confirm
	}
	status, ok := p.statuses[ref]
	if !ok {
		return domain.PaymentPending, nil
	}
	return status, nil
}

func (p *fakePayments) Refund(_ context.Context, ticketID, _ string, _ int64, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.refundFn != nil {
		if err := p.refundFn(ticketID); err != nil {
			return err
		}
	}
	p.refunded = append(p.refunded, ticketID)
	return nil
}

type fakeQR struct{}

func (fakeQR) Issue() string { return "QR-" + uuid.NewString() }

func (fakeQR) Verify(code string) bool { return strings.HasPrefix(code, "QR-") }

type fakeFeed struct {
	mu       sync.Mutex
	checkIns []domain.CheckIn
}

func (f *fakeFeed) Publish(c domain.CheckIn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkIns = append(f.checkIns, c)
}

func (f *fakeFeed) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.checkIns)
}

type fixture struct {
	store    *memory.Store
	clock    *clock.Manual
	payments *fakePayments
	feed     *fakeFeed
	venues   *service.VenueService
	events   *service.EventService
	tickets  *service.TicketService
	checkIns *service.CheckInService
}

func newFixture(t *testing.T, opts ...memory.Option) *fixture {
	t.Helper()

	f := &fixture{
		store:    memory.New(opts...),
		clock:    clock.NewManual(t0),
		payments: newFakePayments(),
		feed:     &fakeFeed{},
	}
	f.venues = service.NewVenueService(f.store, f.clock)
	f.events = service.NewEventService(f.store, f.payments, f.clock)
	f.tickets = service.NewTicketService(f.store, f.payments, fakeQR{}, f.clock)
	f.checkIns = service.NewCheckInService(f.store, fakeQR{}, f.clock, service.WithCheckInFeed(f.feed))
	return f
}

func (f *fixture) venue(t *testing.T, capacity int) domain.Venue {
	t.Helper()
	v, err := f.venues.CreateVenue(context.Background(), organizer, service.CreateVenueInput{
		Name:     "Main Hall",
		Capacity: capacity,
	})
	require.NoError(t, err)
	return v
}

// draft creates a draft event starting offset after t0 and lasting three hours.
// Sales run from an hour before t0 until the event starts.
func (f *fixture) draft(t *testing.T, venueID string, offset time.Duration) domain.Event {
	t.Helper()
	start := t0.Add(offset)
	e, err := f.events.CreateEvent(context.Background(), organizer, service.CreateEventInput{
		VenueID:      venueID,
		Name:         "Concert",
		StartAt:      start,
		EndAt:        start.Add(3 * time.Hour),
		SalesStartAt: t0.Add(-time.Hour),
		SalesEndAt:   start,
	})
	require.NoError(t, err)
	return e
}

func (f *fixture) published(t *testing.T, capacity int) (domain.Venue, domain.Event) {
	t.Helper()
	v := f.venue(t, capacity)
	e := f.draft(t, v.ID, 48*time.Hour)
	e, err := f.events.Publish(context.Background(), organizer, e.ID)
	require.NoError(t, err)
	return v, e
}

func (f *fixture) purchase(t *testing.T, user string, eventID string) domain.Ticket {
	t.Helper()
	ticket, err := f.tickets.Purchase(context.Background(), domain.Actor{UserID: user, Role: domain.RoleAttendee}, service.PurchaseInput{
		EventID:   eventID,
		PricePaid: 2500,
		Currency:  "USD",
	})
	require.NoError(t, err)
	return ticket
}

func (f *fixture) paid(t *testing.T, user string, eventID string) domain.Ticket {
	t.Helper()
	ticket := f.purchase(t, user, eventID)
	ref := "pi_" + ticket.ID
	f.payments.set(ref, domain.PaymentPaid)
	ticket, err := f.tickets.ConfirmPayment(context.Background(), domain.Actor{UserID: user, Role: domain.RoleAttendee}, ticket.ID, ref)
	require.NoError(t, err)
	return ticket
}

func (f *fixture) liveCount(t *testing.T, eventID string) int {
	t.Helper()
	l, err := f.store.GetLedger(context.Background(), eventID)
	require.NoError(t, err)
	return l.LiveCount
}

var errInjected = errors.New("injected fault")
