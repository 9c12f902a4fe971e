package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/levishimwe/Hadathub/internal/clock"
	"github.com/levishimwe/Hadathub/internal/domain"
)

type RefundResult struct {
	TicketID string              `json:"ticket_id"`
	Status   domain.RefundStatus `json:"status"`
	Error    string              `json:"error,omitempty"`
}

// refunder calls the payment collaborator outside of any unit of work and
// records each outcome on its ticket. One failure never affects the others.
type refunder struct {
	repo        TicketingRepository
	payments    PaymentGateway
	clock       clock.Clock
	concurrency int
}

func (r *refunder) refundAll(ctx context.Context, tickets []domain.Ticket) []RefundResult {
	results := make([]RefundResult, len(tickets))

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, t := range tickets {
		i, t := i, t
		g.Go(func() error {
			results[i] = r.refundOne(ctx, t)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (r *refunder) refundOne(ctx context.Context, ticket domain.Ticket) RefundResult {
	result := RefundResult{TicketID: ticket.ID, Status: domain.RefundDone}

	err := r.payments.Refund(ctx, ticket.ID, ticket.PaymentRef, ticket.PricePaid, ticket.Currency)
	if err != nil {
		result.Status = domain.RefundRejected
		result.Error = fmt.Errorf("%w: %v", domain.ErrRefundFailed, err).Error()
		zap.L().Warn("refund failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}

	if err := r.record(ctx, ticket.ID, ticket.PaymentRef, result.Status); err != nil {
		zap.L().Error("recording refund outcome", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}

	return result
}

func (r *refunder) record(ctx context.Context, ticketID, paymentRef string, status domain.RefundStatus) error {
	return r.repo.WithTx(ctx, func(ctx context.Context) error {
		ticket, err := r.repo.LockTicket(ctx, ticketID)
		if err != nil {
			return err
		}
		if ticket.PaymentRef == "" {
			ticket.PaymentRef = paymentRef
		}
		ticket.RefundStatus = status
		ticket.UpdatedAt = r.clock.Now()
		return r.repo.UpdateTicket(ctx, ticket)
	})
}
