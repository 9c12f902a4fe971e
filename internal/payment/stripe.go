package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
	"go.uber.org/zap"

	"github.com/levishimwe/Hadathub/internal/domain"
)

// StripeGateway confirms Stripe PaymentIntents and refunds them.
type StripeGateway struct {
	api *client.API
}

func NewStripeGateway(secretKey string) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, nil)

	return &StripeGateway{api: api}
}

func (g *StripeGateway) ConfirmPayment(ctx context.Context, ref string) (domain.PaymentStatus, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.Get(ref, params)
	if err != nil {
		return "", fmt.Errorf("g.api.PaymentIntents.Get -> %w", err)
	}

	return intentStatus(pi.Status), nil
}

func intentStatus(status stripe.PaymentIntentStatus) domain.PaymentStatus {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return domain.PaymentPaid
	case stripe.PaymentIntentStatusCanceled, stripe.PaymentIntentStatusRequiresPaymentMethod:
		return domain.PaymentFailed
	default:
		return domain.PaymentPending
	}
}

// Refund refunds amount of the PaymentIntent paymentRef. The ticket id is
// used as idempotency key so a retried cascade never refunds twice.
func (g *StripeGateway) Refund(ctx context.Context, ticketID, paymentRef string, amount int64, currency string) error {
	if paymentRef == "" {
		return fmt.Errorf("ticket %s has no payment reference", ticketID)
	}

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentRef),
		Amount:        stripe.Int64(amount),
	}
	params.Context = ctx
	params.SetIdempotencyKey("refund-" + ticketID)
	params.AddMetadata("ticket_id", ticketID)
	params.AddMetadata("currency", strings.ToLower(currency))

	refund, err := g.api.Refunds.New(params)
	if err != nil {
		return fmt.Errorf("g.api.Refunds.New -> %w", err)
	}
	if refund.Status == stripe.RefundStatusFailed || refund.Status == stripe.RefundStatusCanceled {
		return fmt.Errorf("refund %s is %s", refund.ID, refund.Status)
	}

	zap.L().Info("refund issued", zap.String("ticket_id", ticketID), zap.String("refund_id", refund.ID))
	return nil
}
