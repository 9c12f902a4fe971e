package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/levishimwe/Hadathub/internal/clock"
	"github.com/levishimwe/Hadathub/internal/domain"
)

// ScanInput identifies a ticket by its QR code or by its id. QRCode wins
// when both are set.
type ScanInput struct {
	QRCode   string `json:"qr_code,omitempty"`
	TicketID string `json:"ticket_id,omitempty"`
	Gate     string `json:"gate,omitempty"`
}

type ScanResult struct {
	CheckIn *domain.CheckIn `json:"check_in,omitempty"`
	Kind    string          `json:"kind,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// CheckInService admits paid tickets at the gate. Scans of one ticket are
// serialized by the ticket lock, so exactly one of any number of concurrent
// scans creates the check-in.
type CheckInService struct {
	repo        TicketingRepository
	qr          QRIssuer
	clock       clock.Clock
	feed        CheckInPublisher
	concurrency int
}

func NewCheckInService(repo TicketingRepository, qr QRIssuer, clk clock.Clock, opts ...Option) *CheckInService {
	o := newOptions(opts)
	return &CheckInService{
		repo:        repo,
		qr:          qr,
		clock:       clk,
		feed:        o.feed,
		concurrency: o.scanConcurrency,
	}
}

// Scan records a check-in. A repeated scan returns the existing record along
// with domain.ErrAlreadyCheckedIn.
func (s *CheckInService) Scan(ctx context.Context, actor domain.Actor, in ScanInput) (domain.CheckIn, error) {
	if err := actor.Require(domain.RoleStaff); err != nil {
		return domain.CheckIn{}, err
	}

	ticketID, err := s.resolve(ctx, in)
	if err != nil {
		return domain.CheckIn{}, err
	}

	var (
		checkIn  domain.CheckIn
		repeated bool
	)
	err = s.repo.WithTx(ctx, func(ctx context.Context) error {
		repeated = false

		ticket, err := s.repo.LockTicket(ctx, ticketID)
		if err != nil {
			return err
		}

		existing, err := s.repo.GetCheckInByTicket(ctx, ticket.ID)
		if err != nil {
			return fmt.Errorf("s.repo.GetCheckInByTicket -> %w", err)
		}
		if existing != nil {
			checkIn = *existing
			repeated = true
			return nil
		}

		if ticket.Status != domain.TicketPaid {
			return fmt.Errorf("ticket %s is %s: %w", ticket.ID, ticket.Status, domain.ErrInvalidState)
		}
		next, err := domain.TransitionTicket(ticket.Status, domain.TicketCheckedIn)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		checkIn, err = s.repo.CreateCheckIn(ctx, domain.CheckIn{
			ID:        uuid.NewString(),
			TicketID:  ticket.ID,
			EventID:   ticket.EventID,
			ScannedBy: actor.UserID,
			Gate:      in.Gate,
			ScannedAt: now,
		})
		if err != nil {
			return err
		}

		ticket.Status = next
		ticket.CheckedInAt = &now
		ticket.UpdatedAt = now
		return s.repo.UpdateTicket(ctx, ticket)
	})
	if err != nil {
		return domain.CheckIn{}, err
	}
	if repeated {
		return checkIn, fmt.Errorf("ticket %s at %s: %w", checkIn.TicketID, checkIn.ScannedAt.Format("15:04:05"), domain.ErrAlreadyCheckedIn)
	}

	s.feed.Publish(checkIn)
	zap.L().Debug("ticket checked in", zap.String("ticket_id", checkIn.TicketID), zap.String("gate", checkIn.Gate))
	return checkIn, nil
}

func (s *CheckInService) resolve(ctx context.Context, in ScanInput) (string, error) {
	switch {
	case in.QRCode != "":
		if !s.qr.Verify(in.QRCode) {
			return "", fmt.Errorf("unrecognized qr code: %w", domain.ErrNotFound)
		}
		ticket, err := s.repo.GetTicketByQRCode(ctx, in.QRCode)
		if err != nil {
			return "", err
		}
		return ticket.ID, nil
	case in.TicketID != "":
		return in.TicketID, nil
	default:
		return "", fmt.Errorf("qr_code or ticket_id required: %w", domain.ErrValidation)
	}
}

// BulkScan processes every item as its own unit of work and returns one
// result per item in request order. Items naming the same ticket run one
// after another in request order; distinct tickets run concurrently.
func (s *CheckInService) BulkScan(ctx context.Context, actor domain.Actor, items []ScanInput) ([]ScanResult, error) {
	if err := actor.Require(domain.RoleStaff); err != nil {
		return nil, err
	}

	results := make([]ScanResult, len(items))

	var order []string
	groups := make(map[string][]int)
	for i, item := range items {
		k := s.groupKey(ctx, item)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], i)
	}

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, k := range order {
		indexes := groups[k]
		g.Go(func() error {
			for _, i := range indexes {
				results[i] = s.scanOne(ctx, actor, items[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	return results, nil
}

// groupKey names the ticket an item refers to, so a QR code and a bare id for
// the same ticket land in one group. Items that do not resolve keep their raw
// key and report the failure from Scan.
func (s *CheckInService) groupKey(ctx context.Context, item ScanInput) string {
	ticketID, err := s.resolve(ctx, item)
	if err == nil {
		return "id:" + ticketID
	}
	if item.QRCode != "" {
		return "qr:" + item.QRCode
	}
	return "id:" + item.TicketID
}

func (s *CheckInService) scanOne(ctx context.Context, actor domain.Actor, item ScanInput) ScanResult {
	checkIn, err := s.Scan(ctx, actor, item)
	if err == nil {
		return ScanResult{CheckIn: &checkIn}
	}

	result := ScanResult{Kind: domain.Kind(err), Error: err.Error()}
	if errors.Is(err, domain.ErrAlreadyCheckedIn) {
		result.CheckIn = &checkIn
	}
	return result
}
