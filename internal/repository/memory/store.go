// Package memory is an in-process entity store. Every unit of work stages its
// writes and applies them on commit, so a failed unit leaves nothing behind.
// Keys are locked with bounded waits; a unit that cannot get its locks within
// the retry budget fails with domain.ErrContention.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/levishimwe/Hadathub/internal/domain"
)

var (
	errLockTimeout   = errors.New("lock wait timed out")
	errStaleVersion  = errors.New("stale ledger version")
	errNoTransaction = errors.New("lock requested outside a transaction")
)

type Option func(*Store)

// WithRetryBudget sets how many times a unit is attempted and how long each
// lock acquisition may wait.
func WithRetryBudget(attempts int, backoff, lockTimeout time.Duration) Option {
	return func(s *Store) {
		if attempts > 0 {
			s.attempts = attempts
		}
		s.backoff = backoff
		if lockTimeout > 0 {
			s.lockTimeout = lockTimeout
		}
	}
}

// WithFault installs a hook consulted before every staged write. A non-nil
// return aborts the unit of work with that error.
func WithFault(hook func(op string) error) Option {
	return func(s *Store) {
		s.fault = hook
	}
}

type Store struct {
	mu       sync.RWMutex
	venues   map[string]domain.Venue
	events   map[string]domain.Event
	ledgers  map[string]domain.Ledger
	tickets  map[string]domain.Ticket
	checkIns map[string]domain.CheckIn // keyed by ticket id

	locksMu sync.Mutex
	locks   map[string]chan struct{}

	attempts    int
	backoff     time.Duration
	lockTimeout time.Duration
	fault       func(op string) error
}

func New(opts ...Option) *Store {
	s := &Store{
		venues:      make(map[string]domain.Venue),
		events:      make(map[string]domain.Event),
		ledgers:     make(map[string]domain.Ledger),
		tickets:     make(map[string]domain.Ticket),
		checkIns:    make(map[string]domain.CheckIn),
		locks:       make(map[string]chan struct{}),
		attempts:    3,
		backoff:     5 * time.Millisecond,
		lockTimeout: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type txKey struct{}

type tx struct {
	held     map[string]chan struct{}
	venues   map[string]domain.Venue
	events   map[string]domain.Event
	deleted  map[string]bool
	ledgers  map[string]domain.Ledger
	tickets  map[string]domain.Ticket
	checkIns map[string]domain.CheckIn
}

func newTx() *tx {
	return &tx{
		held:     make(map[string]chan struct{}),
		venues:   make(map[string]domain.Venue),
		events:   make(map[string]domain.Event),
		deleted:  make(map[string]bool),
		ledgers:  make(map[string]domain.Ledger),
		tickets:  make(map[string]domain.Ticket),
		checkIns: make(map[string]domain.CheckIn),
	}
}

func txFromContext(ctx context.Context) *tx {
	t, _ := ctx.Value(txKey{}).(*tx)
	return t
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	var err error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		t := newTx()
		err = fn(context.WithValue(ctx, txKey{}, t))
		if err == nil {
			err = s.commit(t)
		}
		s.release(t)
		if !errors.Is(err, errLockTimeout) && !errors.Is(err, errStaleVersion) {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.backoff * time.Duration(attempt)):
		}
	}

	return fmt.Errorf("%w: %v", domain.ErrContention, err)
}

// write runs stage inside the caller's unit of work, or inside a fresh one
// that commits immediately.
func (s *Store) write(ctx context.Context, op string, stage func(t *tx) error) error {
	if s.fault != nil {
		if err := s.fault(op); err != nil {
			return err
		}
	}
	if t := txFromContext(ctx); t != nil {
		return stage(t)
	}
	return s.WithTx(ctx, func(ctx context.Context) error {
		return stage(txFromContext(ctx))
	})
}

func (s *Store) commit(t *tx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ticket := range t.tickets {
		if err := s.checkTicketUnique(ticket); err != nil {
			return err
		}
	}
	for _, c := range t.checkIns {
		if existing, ok := s.checkIns[c.TicketID]; ok && existing.ID != c.ID {
			return fmt.Errorf("ticket %s: %w", c.TicketID, domain.ErrAlreadyCheckedIn)
		}
	}

	for id, v := range t.venues {
		s.venues[id] = v
	}
	for id, e := range t.events {
		s.events[id] = e
	}
	for id, l := range t.ledgers {
		s.ledgers[id] = l
	}
	for id, ticket := range t.tickets {
		s.tickets[id] = ticket
	}
	for id, c := range t.checkIns {
		s.checkIns[id] = c
	}
	for id := range t.deleted {
		delete(s.events, id)
		delete(s.ledgers, id)
	}

	return nil
}

func (s *Store) checkTicketUnique(ticket domain.Ticket) error {
	for _, other := range s.tickets {
		if other.ID == ticket.ID {
			continue
		}
		if other.QRCode == ticket.QRCode {
			return fmt.Errorf("qr code already issued: %w", domain.ErrInvalidState)
		}
		if ticket.IdempotencyKey != "" && other.UserID == ticket.UserID && other.IdempotencyKey == ticket.IdempotencyKey {
			return fmt.Errorf("purchase intent already used: %w", domain.ErrInvalidState)
		}
	}
	return nil
}

func (s *Store) lockFor(key string) chan struct{} {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	ch, ok := s.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[key] = ch
	}
	return ch
}

func (s *Store) acquire(ctx context.Context, key string) (*tx, error) {
	t := txFromContext(ctx)
	if t == nil {
		return nil, errNoTransaction
	}
	if _, ok := t.held[key]; ok {
		return t, nil
	}

	ch := s.lockFor(key)
	timer := time.NewTimer(s.lockTimeout)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		t.held[key] = ch
		return t, nil
	case <-timer.C:
		return nil, fmt.Errorf("%s: %w", key, errLockTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Store) release(t *tx) {
	for key, ch := range t.held {
		<-ch
		delete(t.held, key)
	}
}

func (s *Store) CreateVenue(ctx context.Context, venue domain.Venue) (domain.Venue, error) {
	err := s.write(ctx, "CreateVenue", func(t *tx) error {
		t.venues[venue.ID] = venue
		return nil
	})
	if err != nil {
		return domain.Venue{}, err
	}
	return venue, nil
}

func (s *Store) GetVenue(ctx context.Context, id string) (domain.Venue, error) {
	if t := txFromContext(ctx); t != nil {
		if v, ok := t.venues[id]; ok {
			return v, nil
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.venues[id]
	if !ok {
		return domain.Venue{}, fmt.Errorf("venue %s: %w", id, domain.ErrNotFound)
	}
	return v, nil
}

func (s *Store) LockVenue(ctx context.Context, id string) (domain.Venue, error) {
	if _, err := s.acquire(ctx, "venue:"+id); err != nil {
		return domain.Venue{}, err
	}
	return s.GetVenue(ctx, id)
}

func (s *Store) UpdateVenue(ctx context.Context, venue domain.Venue) error {
	if _, err := s.GetVenue(ctx, venue.ID); err != nil {
		return err
	}
	return s.write(ctx, "UpdateVenue", func(t *tx) error {
		t.venues[venue.ID] = venue
		return nil
	})
}

func (s *Store) CreateEvent(ctx context.Context, event domain.Event) (domain.Event, error) {
	err := s.write(ctx, "CreateEvent", func(t *tx) error {
		t.events[event.ID] = event
		t.ledgers[event.ID] = domain.Ledger{EventID: event.ID}
		return nil
	})
	if err != nil {
		return domain.Event{}, err
	}
	return event, nil
}

func (s *Store) GetEvent(ctx context.Context, id string) (domain.Event, error) {
	if t := txFromContext(ctx); t != nil {
		if t.deleted[id] {
			return domain.Event{}, fmt.Errorf("event %s: %w", id, domain.ErrNotFound)
		}
		if e, ok := t.events[id]; ok {
			return e, nil
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[id]
	if !ok {
		return domain.Event{}, fmt.Errorf("event %s: %w", id, domain.ErrNotFound)
	}
	return e, nil
}

func (s *Store) LockEvent(ctx context.Context, id string) (domain.Event, error) {
	if _, err := s.acquire(ctx, "event:"+id); err != nil {
		return domain.Event{}, err
	}
	return s.GetEvent(ctx, id)
}

func (s *Store) UpdateEvent(ctx context.Context, event domain.Event) error {
	if _, err := s.GetEvent(ctx, event.ID); err != nil {
		return err
	}
	return s.write(ctx, "UpdateEvent", func(t *tx) error {
		t.events[event.ID] = event
		return nil
	})
}

func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	if _, err := s.GetEvent(ctx, id); err != nil {
		return err
	}
	return s.write(ctx, "DeleteEvent", func(t *tx) error {
		delete(t.events, id)
		delete(t.ledgers, id)
		t.deleted[id] = true
		return nil
	})
}

func (s *Store) ListEventsByVenue(ctx context.Context, venueID string, statuses ...domain.EventStatus) ([]domain.Event, error) {
	want := make(map[domain.EventStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}

	merged := make(map[string]domain.Event)
	s.mu.RLock()
	for id, e := range s.events {
		merged[id] = e
	}
	s.mu.RUnlock()
	if t := txFromContext(ctx); t != nil {
		for id, e := range t.events {
			merged[id] = e
		}
		for id := range t.deleted {
			delete(merged, id)
		}
	}

	var out []domain.Event
	for _, e := range merged {
		if e.VenueID != venueID {
			continue
		}
		if len(want) > 0 && !want[e.Status] {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

func (s *Store) GetLedger(ctx context.Context, eventID string) (domain.Ledger, error) {
	if t := txFromContext(ctx); t != nil {
		if l, ok := t.ledgers[eventID]; ok {
			return l, nil
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.ledgers[eventID]
	if !ok {
		return domain.Ledger{}, fmt.Errorf("ledger %s: %w", eventID, domain.ErrNotFound)
	}
	return l, nil
}

// SaveLedger is a compare-and-swap on the ledger version.
func (s *Store) SaveLedger(ctx context.Context, ledger domain.Ledger) (domain.Ledger, error) {
	current, err := s.GetLedger(ctx, ledger.EventID)
	if err != nil {
		return domain.Ledger{}, err
	}
	if current.Version != ledger.Version {
		return domain.Ledger{}, fmt.Errorf("ledger %s version %d != %d: %w",
			ledger.EventID, ledger.Version, current.Version, errStaleVersion)
	}

	ledger.Version++
	err = s.write(ctx, "SaveLedger", func(t *tx) error {
		t.ledgers[ledger.EventID] = ledger
		return nil
	})
	if err != nil {
		return domain.Ledger{}, err
	}
	return ledger, nil
}

func (s *Store) CreateTicket(ctx context.Context, ticket domain.Ticket) (domain.Ticket, error) {
	s.mu.RLock()
	err := s.checkTicketUnique(ticket)
	s.mu.RUnlock()
	if err != nil {
		return domain.Ticket{}, err
	}

	err = s.write(ctx, "CreateTicket", func(t *tx) error {
		t.tickets[ticket.ID] = ticket
		return nil
	})
	if err != nil {
		return domain.Ticket{}, err
	}
	return ticket, nil
}

func (s *Store) GetTicket(ctx context.Context, id string) (domain.Ticket, error) {
	if t := txFromContext(ctx); t != nil {
		if ticket, ok := t.tickets[id]; ok {
			return ticket, nil
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	ticket, ok := s.tickets[id]
	if !ok {
		return domain.Ticket{}, fmt.Errorf("ticket %s: %w", id, domain.ErrNotFound)
	}
	return ticket, nil
}

func (s *Store) GetTicketByQRCode(ctx context.Context, qrCode string) (domain.Ticket, error) {
	for _, ticket := range s.mergedTickets(ctx) {
		if ticket.QRCode == qrCode {
			return ticket, nil
		}
	}
	return domain.Ticket{}, fmt.Errorf("ticket qr: %w", domain.ErrNotFound)
}

func (s *Store) LockTicket(ctx context.Context, id string) (domain.Ticket, error) {
	if _, err := s.acquire(ctx, "ticket:"+id); err != nil {
		return domain.Ticket{}, err
	}
	return s.GetTicket(ctx, id)
}

func (s *Store) FindTicketByIntent(ctx context.Context, userID, key string) (*domain.Ticket, error) {
	for _, ticket := range s.mergedTickets(ctx) {
		if ticket.UserID == userID && ticket.IdempotencyKey == key {
			found := ticket
			return &found, nil
		}
	}
	return nil, nil
}

func (s *Store) UpdateTicket(ctx context.Context, ticket domain.Ticket) error {
	if _, err := s.GetTicket(ctx, ticket.ID); err != nil {
		return err
	}
	return s.write(ctx, "UpdateTicket", func(t *tx) error {
		t.tickets[ticket.ID] = ticket
		return nil
	})
}

func (s *Store) LockTicketsByEvent(ctx context.Context, eventID string, statuses ...domain.TicketStatus) ([]domain.Ticket, error) {
	match := func(ticket domain.Ticket) bool {
		if ticket.EventID != eventID {
			return false
		}
		for _, st := range statuses {
			if ticket.Status == st {
				return true
			}
		}
		return false
	}

	var ids []string
	for _, ticket := range s.mergedTickets(ctx) {
		if match(ticket) {
			ids = append(ids, ticket.ID)
		}
	}
	sort.Strings(ids)

	var out []domain.Ticket
	for _, id := range ids {
		ticket, err := s.LockTicket(ctx, id)
		if err != nil {
			return nil, err
		}
		// Status may have moved between listing and locking.
		if match(ticket) {
			out = append(out, ticket)
		}
	}
	return out, nil
}

func (s *Store) ListTicketsByUser(ctx context.Context, userID string) ([]domain.Ticket, error) {
	var out []domain.Ticket
	for _, ticket := range s.mergedTickets(ctx) {
		if ticket.UserID == userID {
			out = append(out, ticket)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListReservedBefore(ctx context.Context, before time.Time, limit int) ([]domain.Ticket, error) {
	var out []domain.Ticket
	for _, ticket := range s.mergedTickets(ctx) {
		if ticket.Status == domain.TicketReserved && ticket.CreatedAt.Before(before) {
			out = append(out, ticket)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CountTicketsByEvent(ctx context.Context, eventID string) (int, error) {
	n := 0
	for _, ticket := range s.mergedTickets(ctx) {
		if ticket.EventID == eventID {
			n++
		}
	}
	return n, nil
}

func (s *Store) CreateCheckIn(ctx context.Context, checkIn domain.CheckIn) (domain.CheckIn, error) {
	existing, err := s.GetCheckInByTicket(ctx, checkIn.TicketID)
	if err != nil {
		return domain.CheckIn{}, err
	}
	if existing != nil {
		return domain.CheckIn{}, fmt.Errorf("ticket %s: %w", checkIn.TicketID, domain.ErrAlreadyCheckedIn)
	}

	err = s.write(ctx, "CreateCheckIn", func(t *tx) error {
		t.checkIns[checkIn.TicketID] = checkIn
		return nil
	})
	if err != nil {
		return domain.CheckIn{}, err
	}
	return checkIn, nil
}

func (s *Store) GetCheckInByTicket(ctx context.Context, ticketID string) (*domain.CheckIn, error) {
	if t := txFromContext(ctx); t != nil {
		if c, ok := t.checkIns[ticketID]; ok {
			return &c, nil
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.checkIns[ticketID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *Store) mergedTickets(ctx context.Context) map[string]domain.Ticket {
	s.mu.RLock()
	merged := make(map[string]domain.Ticket, len(s.tickets))
	for id, ticket := range s.tickets {
		merged[id] = ticket
	}
	s.mu.RUnlock()

	if t := txFromContext(ctx); t != nil {
		for id, ticket := range t.tickets {
			merged[id] = ticket
		}
	}
	return merged
}
