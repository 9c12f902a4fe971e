package service

import (
	"context"
	"fmt"

	"github.com/levishimwe/Hadathub/internal/domain"
)

type LedgerStore interface {
	GetLedger(ctx context.Context, eventID string) (domain.Ledger, error)
	SaveLedger(ctx context.Context, ledger domain.Ledger) (domain.Ledger, error)
}

// CapacityLedger answers "is there room" for an event. Every call must run
// inside the unit of work that holds the event lock and writes the tickets
// being counted, otherwise the check and the write can interleave.
type CapacityLedger struct {
	store LedgerStore
}

func NewCapacityLedger(store LedgerStore) *CapacityLedger {
	return &CapacityLedger{
		store: store,
	}
}

// TryReserve admits one ticket or fails with domain.ErrSoldOut.
func (l *CapacityLedger) TryReserve(ctx context.Context, event domain.Event, venue domain.Venue) (domain.Ledger, error) {
	ledger, err := l.store.GetLedger(ctx, event.ID)
	if err != nil {
		return domain.Ledger{}, fmt.Errorf("l.store.GetLedger -> %w", err)
	}

	capacity := event.EffectiveCapacity(venue)
	if ledger.LiveCount >= capacity {
		return ledger, fmt.Errorf("event %s at %d/%d: %w", event.ID, ledger.LiveCount, capacity, domain.ErrSoldOut)
	}

	ledger.LiveCount++
	saved, err := l.store.SaveLedger(ctx, ledger)
	if err != nil {
		return domain.Ledger{}, fmt.Errorf("l.store.SaveLedger -> %w", err)
	}

	return saved, nil
}

// Release frees n slots. It is the only way the live count goes down.
func (l *CapacityLedger) Release(ctx context.Context, eventID string, n int) (domain.Ledger, error) {
	ledger, err := l.store.GetLedger(ctx, eventID)
	if err != nil {
		return domain.Ledger{}, fmt.Errorf("l.store.GetLedger -> %w", err)
	}
	if n == 0 {
		return ledger, nil
	}
	if n < 0 || ledger.LiveCount < n {
		return domain.Ledger{}, fmt.Errorf("release %d of %d live tickets on event %s", n, ledger.LiveCount, eventID)
	}

	ledger.LiveCount -= n
	saved, err := l.store.SaveLedger(ctx, ledger)
	if err != nil {
		return domain.Ledger{}, fmt.Errorf("l.store.SaveLedger -> %w", err)
	}

	return saved, nil
}

func (l *CapacityLedger) LiveCount(ctx context.Context, eventID string) (int, error) {
	ledger, err := l.store.GetLedger(ctx, eventID)
	if err != nil {
		return 0, fmt.Errorf("l.store.GetLedger -> %w", err)
	}

	return ledger.LiveCount, nil
}

// Retire releases every remaining slot of a cancelled event. Checked-in
// tickets stay checked in; their attendance lives on in the check-in records.
func (l *CapacityLedger) Retire(ctx context.Context, eventID string) (int, error) {
	ledger, err := l.store.GetLedger(ctx, eventID)
	if err != nil {
		return 0, fmt.Errorf("l.store.GetLedger -> %w", err)
	}

	released := ledger.LiveCount
	if _, err := l.Release(ctx, eventID, released); err != nil {
		return 0, err
	}

	return released, nil
}
