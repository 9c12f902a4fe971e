package service

import (
	"context"
	"time"

	"github.com/levishimwe/Hadathub/internal/domain"
)

// TicketingRepository is the entity store contract. Lock* methods must be
// called inside WithTx; the lock is held until the unit of work ends. Locks are
// always taken in venue -> event -> ticket order.
type TicketingRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	CreateVenue(ctx context.Context, venue domain.Venue) (domain.Venue, error)
	GetVenue(ctx context.Context, id string) (domain.Venue, error)
	LockVenue(ctx context.Context, id string) (domain.Venue, error)
	UpdateVenue(ctx context.Context, venue domain.Venue) error

	CreateEvent(ctx context.Context, event domain.Event) (domain.Event, error)
	GetEvent(ctx context.Context, id string) (domain.Event, error)
	LockEvent(ctx context.Context, id string) (domain.Event, error)
	UpdateEvent(ctx context.Context, event domain.Event) error
	DeleteEvent(ctx context.Context, id string) error
	ListEventsByVenue(ctx context.Context, venueID string, statuses ...domain.EventStatus) ([]domain.Event, error)

	GetLedger(ctx context.Context, eventID string) (domain.Ledger, error)
	SaveLedger(ctx context.Context, ledger domain.Ledger) (domain.Ledger, error)

	CreateTicket(ctx context.Context, ticket domain.Ticket) (domain.Ticket, error)
	GetTicket(ctx context.Context, id string) (domain.Ticket, error)
	GetTicketByQRCode(ctx context.Context, qrCode string) (domain.Ticket, error)
	LockTicket(ctx context.Context, id string) (domain.Ticket, error)
	FindTicketByIntent(ctx context.Context, userID, key string) (*domain.Ticket, error)
	UpdateTicket(ctx context.Context, ticket domain.Ticket) error
	LockTicketsByEvent(ctx context.Context, eventID string, statuses ...domain.TicketStatus) ([]domain.Ticket, error)
	ListTicketsByUser(ctx context.Context, userID string) ([]domain.Ticket, error)
	ListReservedBefore(ctx context.Context, before time.Time, limit int) ([]domain.Ticket, error)
	CountTicketsByEvent(ctx context.Context, eventID string) (int, error)

	CreateCheckIn(ctx context.Context, checkIn domain.CheckIn) (domain.CheckIn, error)
	GetCheckInByTicket(ctx context.Context, ticketID string) (*domain.CheckIn, error)
}

// PaymentGateway is the external payment collaborator.
type PaymentGateway interface {
	ConfirmPayment(ctx context.Context, ref string) (domain.PaymentStatus, error)
	Refund(ctx context.Context, ticketID, paymentRef string, amount int64, currency string) error
}

type QRIssuer interface {
	Issue() string
	Verify(code string) bool
}

type AvailabilityCache interface {
	Get(ctx context.Context, eventID string) (domain.Availability, bool)
	Set(ctx context.Context, availability domain.Availability)
	Invalidate(ctx context.Context, eventID string)
}

// CheckInPublisher receives every committed check-in.
type CheckInPublisher interface {
	Publish(checkIn domain.CheckIn)
}

type noopCache struct{}

func (noopCache) Get(context.Context, string) (domain.Availability, bool) {
	return domain.Availability{}, false
}
func (noopCache) Set(context.Context, domain.Availability) {}
func (noopCache) Invalidate(context.Context, string)       {}

type noopPublisher struct{}

func (noopPublisher) Publish(domain.CheckIn) {}
