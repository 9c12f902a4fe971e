package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/levishimwe/Hadathub/internal/clock"
)

// ReservationSweeper cancels reservations that were never paid within ttl,
// returning their slots to the ledger.
type ReservationSweeper struct {
	repo    TicketingRepository
	tickets *TicketService
	clock   clock.Clock
	ttl     time.Duration
	batch   int
}

func NewReservationSweeper(repo TicketingRepository, tickets *TicketService, clk clock.Clock, ttl time.Duration, batch int) *ReservationSweeper {
	if batch <= 0 {
		batch = 100
	}
	return &ReservationSweeper{
		repo:    repo,
		tickets: tickets,
		clock:   clk,
		ttl:     ttl,
		batch:   batch,
	}
}

// Sweep runs one pass and returns how many reservations it expired.
func (s *ReservationSweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.clock.Now().Add(-s.ttl)

	stale, err := s.repo.ListReservedBefore(ctx, cutoff, s.batch)
	if err != nil {
		return 0, fmt.Errorf("s.repo.ListReservedBefore -> %w", err)
	}

	expired := 0
	for _, t := range stale {
		ok, err := s.tickets.ExpireReservation(ctx, t.ID)
		if err != nil {
			zap.L().Warn("expiring reservation", zap.String("ticket_id", t.ID), zap.Error(err))
			continue
		}
		if ok {
			expired++
		}
	}

	if expired > 0 {
		zap.L().Info("expired stale reservations", zap.Int("count", expired), zap.Time("cutoff", cutoff))
	}
	return expired, nil
}
