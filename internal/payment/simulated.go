package payment

import (
	"context"
	"errors"
	"strings"

	"github.com/levishimwe/Hadathub/internal/domain"
)

var ErrSimulatedDecline = errors.New("simulated refund declined")

// SimulatedGateway settles payments from the shape of the reference:
// "fail_..." is declined, "pending_..." never settles, anything else is paid.
// Refunds are declined for references containing "norefund".
type SimulatedGateway struct{}

func NewSimulatedGateway() SimulatedGateway {
	return SimulatedGateway{}
}

func (SimulatedGateway) ConfirmPayment(_ context.Context, ref string) (domain.PaymentStatus, error) {
	switch {
	case strings.HasPrefix(ref, "fail_"):
		return domain.PaymentFailed, nil
	case strings.HasPrefix(ref, "pending_"):
		return domain.PaymentPending, nil
	default:
		return domain.PaymentPaid, nil
	}
}

func (SimulatedGateway) Refund(_ context.Context, _, paymentRef string, _ int64, _ string) error {
	if strings.Contains(paymentRef, "norefund") {
		return ErrSimulatedDecline
	}
	return nil
}
