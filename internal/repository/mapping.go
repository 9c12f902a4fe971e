package repository

import (
	"github.com/levishimwe/Hadathub/internal/domain"
	"github.com/levishimwe/Hadathub/internal/repository/dao"
)

func venueDomainToDao(v domain.Venue) dao.Venue {
	return dao.Venue{
		ID:            v.ID,
		Name:          v.Name,
		Capacity:      v.Capacity,
		AllowsOverlap: v.AllowsOverlap,
		CreatedAt:     v.CreatedAt,
		UpdatedAt:     v.UpdatedAt,
	}
}

func venueDaoToDomain(v dao.Venue) domain.Venue {
	return domain.Venue{
		ID:            v.ID,
		Name:          v.Name,
		Capacity:      v.Capacity,
		AllowsOverlap: v.AllowsOverlap,
		CreatedAt:     v.CreatedAt,
		UpdatedAt:     v.UpdatedAt,
	}
}

func eventDomainToDao(e domain.Event) dao.Event {
	return dao.Event{
		ID:               e.ID,
		VenueID:          e.VenueID,
		OrganizerID:      e.OrganizerID,
		Name:             e.Name,
		StartAt:          e.StartAt,
		EndAt:            e.EndAt,
		SalesStartAt:     e.SalesStartAt,
		SalesEndAt:       e.SalesEndAt,
		Status:           string(e.Status),
		CapacityOverride: e.CapacityOverride,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
	}
}

func eventDaoToDomain(e dao.Event) domain.Event {
	return domain.Event{
		ID:               e.ID,
		VenueID:          e.VenueID,
		OrganizerID:      e.OrganizerID,
		Name:             e.Name,
		StartAt:          e.StartAt,
		EndAt:            e.EndAt,
		SalesStartAt:     e.SalesStartAt,
		SalesEndAt:       e.SalesEndAt,
		Status:           domain.EventStatus(e.Status),
		CapacityOverride: e.CapacityOverride,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
	}
}

func eventsDaoToDomain(events []dao.Event) []domain.Event {
	out := make([]domain.Event, len(events))
	for i, e := range events {
		out[i] = eventDaoToDomain(e)
	}
	return out
}

func ticketDomainToDao(t domain.Ticket) dao.Ticket {
	var key *string
	if t.IdempotencyKey != "" {
		k := t.IdempotencyKey
		key = &k
	}
	return dao.Ticket{
		ID:             t.ID,
		EventID:        t.EventID,
		UserID:         t.UserID,
		IdempotencyKey: key,
		Status:         string(t.Status),
		QRCode:         t.QRCode,
		PricePaid:      t.PricePaid,
		Currency:       t.Currency,
		PaymentRef:     t.PaymentRef,
		RefundStatus:   string(t.RefundStatus),
		PurchasedAt:    t.PurchasedAt,
		CheckedInAt:    t.CheckedInAt,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

func ticketDaoToDomain(t dao.Ticket) domain.Ticket {
	ticket := domain.Ticket{
		ID:           t.ID,
		EventID:      t.EventID,
		UserID:       t.UserID,
		Status:       domain.TicketStatus(t.Status),
		QRCode:       t.QRCode,
		PricePaid:    t.PricePaid,
		Currency:     t.Currency,
		PaymentRef:   t.PaymentRef,
		RefundStatus: domain.RefundStatus(t.RefundStatus),
		PurchasedAt:  t.PurchasedAt,
		CheckedInAt:  t.CheckedInAt,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
	if t.IdempotencyKey != nil {
		ticket.IdempotencyKey = *t.IdempotencyKey
	}
	return ticket
}

func ticketsDaoToDomain(tickets []dao.Ticket) []domain.Ticket {
	out := make([]domain.Ticket, len(tickets))
	for i, t := range tickets {
		out[i] = ticketDaoToDomain(t)
	}
	return out
}

func checkInDomainToDao(c domain.CheckIn) dao.CheckIn {
	return dao.CheckIn{
		ID:        c.ID,
		TicketID:  c.TicketID,
		EventID:   c.EventID,
		ScannedBy: c.ScannedBy,
		Gate:      c.Gate,
		ScannedAt: c.ScannedAt,
	}
}

func checkInDaoToDomain(c dao.CheckIn) domain.CheckIn {
	return domain.CheckIn{
		ID:        c.ID,
		TicketID:  c.TicketID,
		EventID:   c.EventID,
		ScannedBy: c.ScannedBy,
		Gate:      c.Gate,
		ScannedAt: c.ScannedAt,
	}
}
