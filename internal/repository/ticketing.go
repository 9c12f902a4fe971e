package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/levishimwe/Hadathub/internal/domain"
	"github.com/levishimwe/Hadathub/internal/repository/dao"
)

type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type VenueDAO interface {
	Insert(ctx context.Context, venue dao.Venue) (dao.Venue, error)
	FindByID(ctx context.Context, id string) (dao.Venue, error)
	FindByIDForUpdate(ctx context.Context, id string) (dao.Venue, error)
	Update(ctx context.Context, venue dao.Venue) error
}

type EventDAO interface {
	Insert(ctx context.Context, event dao.Event) (dao.Event, error)
	FindByID(ctx context.Context, id string) (dao.Event, error)
	FindByIDForUpdate(ctx context.Context, id string) (dao.Event, error)
	FindByVenue(ctx context.Context, venueID string, statuses []string) ([]dao.Event, error)
	Update(ctx context.Context, event dao.Event) error
	Delete(ctx context.Context, id string) error
	FindLedger(ctx context.Context, eventID string) (dao.Ledger, error)
	UpdateLedger(ctx context.Context, ledger dao.Ledger) (dao.Ledger, error)
}

type TicketDAO interface {
	Insert(ctx context.Context, ticket dao.Ticket) (dao.Ticket, error)
	FindByID(ctx context.Context, id string) (dao.Ticket, error)
	FindByQRCode(ctx context.Context, qrCode string) (dao.Ticket, error)
	FindByIDForUpdate(ctx context.Context, id string) (dao.Ticket, error)
	FindByIntent(ctx context.Context, userID, key string) (dao.Ticket, error)
	FindByEventForUpdate(ctx context.Context, eventID string, statuses []string) ([]dao.Ticket, error)
	FindByUser(ctx context.Context, userID string) ([]dao.Ticket, error)
	FindReservedBefore(ctx context.Context, before time.Time, limit int) ([]dao.Ticket, error)
	CountByEvent(ctx context.Context, eventID string) (int, error)
	Update(ctx context.Context, ticket dao.Ticket) error
}

type CheckInDAO interface {
	Insert(ctx context.Context, checkIn dao.CheckIn) (dao.CheckIn, error)
	FindByTicketID(ctx context.Context, ticketID string) (dao.CheckIn, error)
}

// TicketingRepository is the postgres-backed entity store.
type TicketingRepository struct {
	tx       TxRunner
	venues   VenueDAO
	events   EventDAO
	tickets  TicketDAO
	checkIns CheckInDAO
}

func NewTicketingRepository(tx TxRunner, venues VenueDAO, events EventDAO, tickets TicketDAO, checkIns CheckInDAO) *TicketingRepository {
	return &TicketingRepository{
		tx:       tx,
		venues:   venues,
		events:   events,
		tickets:  tickets,
		checkIns: checkIns,
	}
}

func (r *TicketingRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	err := r.tx.WithTx(ctx, fn)
	if errors.Is(err, dao.ErrContention) {
		return fmt.Errorf("%w: %v", domain.ErrContention, err)
	}
	return err
}

func (r *TicketingRepository) CreateVenue(ctx context.Context, venue domain.Venue) (domain.Venue, error) {
	created, err := r.venues.Insert(ctx, venueDomainToDao(venue))
	if err != nil {
		return domain.Venue{}, fmt.Errorf("r.venues.Insert -> %w", err)
	}

	return venueDaoToDomain(created), nil
}

func (r *TicketingRepository) GetVenue(ctx context.Context, id string) (domain.Venue, error) {
	found, err := r.venues.FindByID(ctx, id)
	if err != nil {
		return domain.Venue{}, translate("venue", id, "r.venues.FindByID", err)
	}

	return venueDaoToDomain(found), nil
}

func (r *TicketingRepository) LockVenue(ctx context.Context, id string) (domain.Venue, error) {
	found, err := r.venues.FindByIDForUpdate(ctx, id)
	if err != nil {
		return domain.Venue{}, translate("venue", id, "r.venues.FindByIDForUpdate", err)
	}

	return venueDaoToDomain(found), nil
}

func (r *TicketingRepository) UpdateVenue(ctx context.Context, venue domain.Venue) error {
	if err := r.venues.Update(ctx, venueDomainToDao(venue)); err != nil {
		return translate("venue", venue.ID, "r.venues.Update", err)
	}

	return nil
}

func (r *TicketingRepository) CreateEvent(ctx context.Context, event domain.Event) (domain.Event, error) {
	created, err := r.events.Insert(ctx, eventDomainToDao(event))
	if err != nil {
		return domain.Event{}, fmt.Errorf("r.events.Insert -> %w", err)
	}

	return eventDaoToDomain(created), nil
}

func (r *TicketingRepository) GetEvent(ctx context.Context, id string) (domain.Event, error) {
	found, err := r.events.FindByID(ctx, id)
	if err != nil {
		return domain.Event{}, translate("event", id, "r.events.FindByID", err)
	}

	return eventDaoToDomain(found), nil
}

func (r *TicketingRepository) LockEvent(ctx context.Context, id string) (domain.Event, error) {
	found, err := r.events.FindByIDForUpdate(ctx, id)
	if err != nil {
		return domain.Event{}, translate("event", id, "r.events.FindByIDForUpdate", err)
	}

	return eventDaoToDomain(found), nil
}

func (r *TicketingRepository) UpdateEvent(ctx context.Context, event domain.Event) error {
	if err := r.events.Update(ctx, eventDomainToDao(event)); err != nil {
		return translate("event", event.ID, "r.events.Update", err)
	}

	return nil
}

func (r *TicketingRepository) DeleteEvent(ctx context.Context, id string) error {
	if err := r.events.Delete(ctx, id); err != nil {
		return translate("event", id, "r.events.Delete", err)
	}

	return nil
}

func (r *TicketingRepository) ListEventsByVenue(ctx context.Context, venueID string, statuses ...domain.EventStatus) ([]domain.Event, error) {
	raw := make([]string, len(statuses))
	for i, s := range statuses {
		raw[i] = string(s)
	}

	events, err := r.events.FindByVenue(ctx, venueID, raw)
	if err != nil {
		return nil, fmt.Errorf("r.events.FindByVenue -> %w", err)
	}

	return eventsDaoToDomain(events), nil
}

func (r *TicketingRepository) GetLedger(ctx context.Context, eventID string) (domain.Ledger, error) {
	found, err := r.events.FindLedger(ctx, eventID)
	if err != nil {
		return domain.Ledger{}, translate("ledger", eventID, "r.events.FindLedger", err)
	}

	return domain.Ledger{EventID: found.EventID, LiveCount: found.LiveCount, Version: found.Version}, nil
}

func (r *TicketingRepository) SaveLedger(ctx context.Context, ledger domain.Ledger) (domain.Ledger, error) {
	saved, err := r.events.UpdateLedger(ctx, dao.Ledger{
		EventID:   ledger.EventID,
		LiveCount: ledger.LiveCount,
		Version:   ledger.Version,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return domain.Ledger{}, fmt.Errorf("r.events.UpdateLedger -> %w", err)
	}

	return domain.Ledger{EventID: saved.EventID, LiveCount: saved.LiveCount, Version: saved.Version}, nil
}

func (r *TicketingRepository) CreateTicket(ctx context.Context, ticket domain.Ticket) (domain.Ticket, error) {
	created, err := r.tickets.Insert(ctx, ticketDomainToDao(ticket))
	if err != nil {
		if errors.Is(err, dao.ErrDuplicate) {
			return domain.Ticket{}, fmt.Errorf("ticket intent or qr code already used: %w", domain.ErrInvalidState)
		}
		return domain.Ticket{}, fmt.Errorf("r.tickets.Insert -> %w", err)
	}

	return ticketDaoToDomain(created), nil
}

func (r *TicketingRepository) GetTicket(ctx context.Context, id string) (domain.Ticket, error) {
	found, err := r.tickets.FindByID(ctx, id)
	if err != nil {
		return domain.Ticket{}, translate("ticket", id, "r.tickets.FindByID", err)
	}

	return ticketDaoToDomain(found), nil
}

func (r *TicketingRepository) GetTicketByQRCode(ctx context.Context, qrCode string) (domain.Ticket, error) {
	found, err := r.tickets.FindByQRCode(ctx, qrCode)
	if err != nil {
		return domain.Ticket{}, translate("ticket", "qr", "r.tickets.FindByQRCode", err)
	}

	return ticketDaoToDomain(found), nil
}

func (r *TicketingRepository) LockTicket(ctx context.Context, id string) (domain.Ticket, error) {
	found, err := r.tickets.FindByIDForUpdate(ctx, id)
	if err != nil {
		return domain.Ticket{}, translate("ticket", id, "r.tickets.FindByIDForUpdate", err)
	}

	return ticketDaoToDomain(found), nil
}

func (r *TicketingRepository) FindTicketByIntent(ctx context.Context, userID, key string) (*domain.Ticket, error) {
	found, err := r.tickets.FindByIntent(ctx, userID, key)
	if err != nil {
		if errors.Is(err, dao.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("r.tickets.FindByIntent -> %w", err)
	}

	ticket := ticketDaoToDomain(found)
	return &ticket, nil
}

func (r *TicketingRepository) UpdateTicket(ctx context.Context, ticket domain.Ticket) error {
	if err := r.tickets.Update(ctx, ticketDomainToDao(ticket)); err != nil {
		return translate("ticket", ticket.ID, "r.tickets.Update", err)
	}

	return nil
}

func (r *TicketingRepository) LockTicketsByEvent(ctx context.Context, eventID string, statuses ...domain.TicketStatus) ([]domain.Ticket, error) {
	raw := make([]string, len(statuses))
	for i, s := range statuses {
		raw[i] = string(s)
	}

	tickets, err := r.tickets.FindByEventForUpdate(ctx, eventID, raw)
	if err != nil {
		return nil, fmt.Errorf("r.tickets.FindByEventForUpdate -> %w", err)
	}

	return ticketsDaoToDomain(tickets), nil
}

func (r *TicketingRepository) ListTicketsByUser(ctx context.Context, userID string) ([]domain.Ticket, error) {
	tickets, err := r.tickets.FindByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("r.tickets.FindByUser -> %w", err)
	}

	return ticketsDaoToDomain(tickets), nil
}

func (r *TicketingRepository) ListReservedBefore(ctx context.Context, before time.Time, limit int) ([]domain.Ticket, error) {
	tickets, err := r.tickets.FindReservedBefore(ctx, before, limit)
	if err != nil {
		return nil, fmt.Errorf("r.tickets.FindReservedBefore -> %w", err)
	}

	return ticketsDaoToDomain(tickets), nil
}

func (r *TicketingRepository) CountTicketsByEvent(ctx context.Context, eventID string) (int, error) {
	n, err := r.tickets.CountByEvent(ctx, eventID)
	if err != nil {
		return 0, fmt.Errorf("r.tickets.CountByEvent -> %w", err)
	}

	return n, nil
}

func (r *TicketingRepository) CreateCheckIn(ctx context.Context, checkIn domain.CheckIn) (domain.CheckIn, error) {
	created, err := r.checkIns.Insert(ctx, checkInDomainToDao(checkIn))
	if err != nil {
		if errors.Is(err, dao.ErrDuplicate) {
			return domain.CheckIn{}, fmt.Errorf("ticket %s: %w", checkIn.TicketID, domain.ErrAlreadyCheckedIn)
		}
		return domain.CheckIn{}, fmt.Errorf("r.checkIns.Insert -> %w", err)
	}

	return checkInDaoToDomain(created), nil
}

func (r *TicketingRepository) GetCheckInByTicket(ctx context.Context, ticketID string) (*domain.CheckIn, error) {
	found, err := r.checkIns.FindByTicketID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, dao.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("r.checkIns.FindByTicketID -> %w", err)
	}

	checkIn := checkInDaoToDomain(found)
	return &checkIn, nil
}

func translate(entity, id, op string, err error) error {
	if errors.Is(err, dao.ErrNotFound) {
		return fmt.Errorf("%s %s: %w", entity, id, domain.ErrNotFound)
	}
	return fmt.Errorf("%s -> %w", op, err)
}
