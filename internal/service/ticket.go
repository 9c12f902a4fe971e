package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/levishimwe/Hadathub/internal/clock"
	"github.com/levishimwe/Hadathub/internal/domain"
)

type PurchaseInput struct {
	EventID   string
	PricePaid int64
	Currency  string
	// IdempotencyKey is the client-supplied purchase intent. Retries with the
	// same key return the ticket created by the first attempt.
	IdempotencyKey string
	// PaymentRef, when set, is confirmed with the payment collaborator right
	// after the reservation commits.
	PaymentRef string
}

type CancelTicketInput struct {
	TicketID string
	Refund   bool
}

// TicketService is the issuance coordinator: it admits reservations against
// the capacity ledger and drives the ticket state machine.
type TicketService struct {
	repo     TicketingRepository
	ledger   *CapacityLedger
	payments PaymentGateway
	qr       QRIssuer
	clock    clock.Clock
	cache    AvailabilityCache
	refunds  *refunder
}

func NewTicketService(repo TicketingRepository, payments PaymentGateway, qr QRIssuer, clk clock.Clock, opts ...Option) *TicketService {
	o := newOptions(opts)
	return &TicketService{
		repo:     repo,
		ledger:   NewCapacityLedger(repo),
		payments: payments,
		qr:       qr,
		clock:    clk,
		cache:    o.cache,
		refunds: &refunder{
			repo:        repo,
			payments:    payments,
			clock:       clk,
			concurrency: o.refundConcurrency,
		},
	}
}

// Purchase reserves a ticket. Preconditions are checked in order: the event
// exists and is published, sales are open, the ledger admits one more ticket.
// Admission and insert commit together or not at all.
func (s *TicketService) Purchase(ctx context.Context, actor domain.Actor, in PurchaseInput) (domain.Ticket, error) {
	if err := actor.Require(domain.RoleAttendee); err != nil {
		return domain.Ticket{}, err
	}
	if in.PricePaid < 0 {
		return domain.Ticket{}, fmt.Errorf("negative price: %w", domain.ErrValidation)
	}

	var ticket domain.Ticket
	err := s.repo.WithTx(ctx, func(ctx context.Context) error {
		now := s.clock.Now()

		event, err := s.repo.LockEvent(ctx, in.EventID)
		if err != nil {
			return err
		}

		if in.IdempotencyKey != "" {
			existing, err := s.repo.FindTicketByIntent(ctx, actor.UserID, in.IdempotencyKey)
			if err != nil {
				return fmt.Errorf("s.repo.FindTicketByIntent -> %w", err)
			}
			if existing != nil {
				if existing.EventID != in.EventID {
					return fmt.Errorf("purchase intent %q belongs to another event: %w", in.IdempotencyKey, domain.ErrValidation)
				}
				ticket = *existing
				return nil
			}
		}

		if event.Status != domain.EventPublished {
			return fmt.Errorf("event %s is %s: %w", event.ID, event.Status, domain.ErrInvalidState)
		}
		if !event.SalesOpen(now) {
			return fmt.Errorf("event %s: %w", event.ID, domain.ErrSalesClosed)
		}

		venue, err := s.repo.GetVenue(ctx, event.VenueID)
		if err != nil {
			return err
		}
		if _, err := s.ledger.TryReserve(ctx, event, venue); err != nil {
			return err
		}

		ticket, err = s.repo.CreateTicket(ctx, domain.Ticket{
			ID:             uuid.NewString(),
			EventID:        event.ID,
			UserID:         actor.UserID,
			Status:         domain.TicketReserved,
			QRCode:         s.qr.Issue(),
			PricePaid:      in.PricePaid,
			Currency:       in.Currency,
			IdempotencyKey: in.IdempotencyKey,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
		return err
	})
	if err != nil {
		return domain.Ticket{}, err
	}
	s.cache.Invalidate(ctx, ticket.EventID)

	if in.PaymentRef != "" && ticket.Status == domain.TicketReserved {
		return s.settle(ctx, ticket, in.PaymentRef)
	}

	return ticket, nil
}

// ConfirmPayment moves a reserved ticket to paid once the payment reference
// is confirmed by the collaborator.
func (s *TicketService) ConfirmPayment(ctx context.Context, actor domain.Actor, ticketID, paymentRef string) (domain.Ticket, error) {
	if err := actor.Require(domain.RoleAttendee); err != nil {
		return domain.Ticket{}, err
	}
	if paymentRef == "" {
		return domain.Ticket{}, fmt.Errorf("payment reference required: %w", domain.ErrValidation)
	}

	ticket, err := s.repo.GetTicket(ctx, ticketID)
	if err != nil {
		return domain.Ticket{}, err
	}
	if ticket.UserID != actor.UserID {
		return domain.Ticket{}, fmt.Errorf("ticket %s: %w", ticketID, domain.ErrForbidden)
	}
	if ticket.Status == domain.TicketCancelled && ticket.RefundStatus == domain.RefundNone {
		return s.settleCancelled(ctx, ticket, paymentRef)
	}
	if _, err := domain.TransitionTicket(ticket.Status, domain.TicketPaid); err != nil {
		return ticket, err
	}

	return s.settle(ctx, ticket, paymentRef)
}

// settleCancelled handles a payment reference presented for a ticket that was
// cancelled before it was paid. A captured payment is refunded.
func (s *TicketService) settleCancelled(ctx context.Context, ticket domain.Ticket, paymentRef string) (domain.Ticket, error) {
	status, err := s.payments.ConfirmPayment(ctx, paymentRef)
	if err != nil {
		return ticket, fmt.Errorf("%w: %v", domain.ErrPaymentPending, err)
	}
	if status != domain.PaymentPaid {
		return ticket, fmt.Errorf("ticket %s is cancelled: %w", ticket.ID, domain.ErrInvalidTransition)
	}

	return s.refundLatePayment(ctx, ticket, paymentRef)
}

func (s *TicketService) refundLatePayment(ctx context.Context, ticket domain.Ticket, paymentRef string) (domain.Ticket, error) {
	ticket.PaymentRef = paymentRef
	result := s.refunds.refundOne(ctx, ticket)
	ticket.RefundStatus = result.Status

	zap.L().Warn("payment captured for cancelled ticket",
		zap.String("ticket_id", ticket.ID),
		zap.String("payment_ref", paymentRef),
		zap.String("refund_status", string(result.Status)),
	)
	if result.Status != domain.RefundDone {
		return ticket, fmt.Errorf("ticket %s cancelled before payment %s settled: %w", ticket.ID, paymentRef, domain.ErrRefundFailed)
	}
	return ticket, fmt.Errorf("ticket %s cancelled before payment %s settled, payment refunded: %w", ticket.ID, paymentRef, domain.ErrPaymentFailed)
}

func (s *TicketService) settle(ctx context.Context, ticket domain.Ticket, paymentRef string) (domain.Ticket, error) {
	status, err := s.payments.ConfirmPayment(ctx, paymentRef)
	if err != nil {
		zap.L().Warn("payment confirmation unavailable", zap.String("ticket_id", ticket.ID), zap.Error(err))
		return ticket, fmt.Errorf("%w: %v", domain.ErrPaymentPending, err)
	}

	switch status {
	case domain.PaymentPaid:
		paid, err := s.markPaid(ctx, ticket.ID, paymentRef)
		if paid.Status == domain.TicketCancelled && paid.RefundStatus == domain.RefundNone {
			return s.refundLatePayment(ctx, paid, paymentRef)
		}
		return paid, err
	case domain.PaymentFailed:
		released, err := s.cancel(ctx, ticket.ID, stillReserved)
		if errors.Is(err, errNotReserved) {
			return ticket, fmt.Errorf("payment %s: %w", paymentRef, domain.ErrPaymentFailed)
		}
		if err != nil {
			return ticket, fmt.Errorf("s.cancel -> %w", err)
		}
		return released, fmt.Errorf("payment %s: %w", paymentRef, domain.ErrPaymentFailed)
	default:
		return ticket, fmt.Errorf("payment %s: %w", paymentRef, domain.ErrPaymentPending)
	}
}

func (s *TicketService) markPaid(ctx context.Context, ticketID, paymentRef string) (domain.Ticket, error) {
	var ticket domain.Ticket
	err := s.repo.WithTx(ctx, func(ctx context.Context) error {
		var err error
		ticket, err = s.repo.LockTicket(ctx, ticketID)
		if err != nil {
			return err
		}

		next, err := domain.TransitionTicket(ticket.Status, domain.TicketPaid)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		ticket.Status = next
		ticket.PaymentRef = paymentRef
		ticket.PurchasedAt = &now
		ticket.UpdatedAt = now
		return s.repo.UpdateTicket(ctx, ticket)
	})
	if err != nil {
		stored, getErr := s.repo.GetTicket(ctx, ticketID)
		if getErr != nil {
			return domain.Ticket{}, err
		}
		return stored, err
	}

	return ticket, nil
}

// Cancel moves a reserved or paid ticket to cancelled and releases its slot
// in the same unit of work. Attendees may cancel their own tickets, organizers
// any ticket of their events.
func (s *TicketService) Cancel(ctx context.Context, actor domain.Actor, in CancelTicketInput) (domain.Ticket, *RefundResult, error) {
	if err := actor.Require(domain.RoleAttendee, domain.RoleOrganizer); err != nil {
		return domain.Ticket{}, nil, err
	}

	var wasPaid bool
	ticket, err := s.cancel(ctx, in.TicketID, func(t domain.Ticket) error {
		wasPaid = t.Status == domain.TicketPaid
		return s.authorizeCancel(ctx, actor, t)
	})
	if err != nil {
		return domain.Ticket{}, nil, err
	}

	if in.Refund && wasPaid {
		result := s.refunds.refundOne(ctx, ticket)
		ticket.RefundStatus = result.Status
		return ticket, &result, nil
	}

	return ticket, nil, nil
}

func (s *TicketService) authorizeCancel(ctx context.Context, actor domain.Actor, ticket domain.Ticket) error {
	switch actor.Role {
	case domain.RoleAttendee:
		if ticket.UserID == actor.UserID {
			return nil
		}
	case domain.RoleOrganizer:
		event, err := s.repo.GetEvent(ctx, ticket.EventID)
		if err != nil {
			return err
		}
		if event.OrganizerID == actor.UserID {
			return nil
		}
	}
	return fmt.Errorf("ticket %s: %w", ticket.ID, domain.ErrForbidden)
}

// cancel runs the ticket -> cancelled edge under the event and ticket locks.
// guard runs after the locks are held and before anything is written.
func (s *TicketService) cancel(ctx context.Context, ticketID string, guard func(domain.Ticket) error) (domain.Ticket, error) {
	current, err := s.repo.GetTicket(ctx, ticketID)
	if err != nil {
		return domain.Ticket{}, err
	}

	var ticket domain.Ticket
	err = s.repo.WithTx(ctx, func(ctx context.Context) error {
		var err error
		if _, err = s.repo.LockEvent(ctx, current.EventID); err != nil {
			return err
		}
		ticket, err = s.repo.LockTicket(ctx, ticketID)
		if err != nil {
			return err
		}
		if err := guard(ticket); err != nil {
			return err
		}

		from := ticket.Status
		next, err := domain.TransitionTicket(from, domain.TicketCancelled)
		if err != nil {
			return err
		}

		ticket.Status = next
		ticket.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdateTicket(ctx, ticket); err != nil {
			return err
		}
		if domain.ReleasesSlot(from, next) {
			if _, err := s.ledger.Release(ctx, ticket.EventID, 1); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Ticket{}, err
	}
	s.cache.Invalidate(ctx, ticket.EventID)

	return ticket, nil
}

func (s *TicketService) GetTicket(ctx context.Context, actor domain.Actor, ticketID string) (domain.Ticket, error) {
	ticket, err := s.repo.GetTicket(ctx, ticketID)
	if err != nil {
		return domain.Ticket{}, err
	}
	if actor.Role == domain.RoleAttendee && ticket.UserID != actor.UserID {
		return domain.Ticket{}, fmt.Errorf("ticket %s: %w", ticketID, domain.ErrForbidden)
	}

	return ticket, nil
}

func (s *TicketService) ListMyTickets(ctx context.Context, actor domain.Actor) ([]domain.Ticket, error) {
	tickets, err := s.repo.ListTicketsByUser(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("s.repo.ListTicketsByUser -> %w", err)
	}

	return tickets, nil
}

// ExpireReservation cancels a ticket that is still reserved. Tickets that
// moved on in the meantime are left alone.
func (s *TicketService) ExpireReservation(ctx context.Context, ticketID string) (bool, error) {
	_, err := s.cancel(ctx, ticketID, stillReserved)
	if errors.Is(err, errNotReserved) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

var errNotReserved = errors.New("ticket no longer reserved")

func stillReserved(t domain.Ticket) error {
	if t.Status != domain.TicketReserved {
		return errNotReserved
	}
	return nil
}
