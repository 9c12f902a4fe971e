package request

import (
	validation "github.com/go-ozzo/ozzo-validation"
)

type PurchaseRequest struct {
	PricePaid  int64  `json:"price_paid"`
	Currency   string `json:"currency"`
	PaymentRef string `json:"payment_ref,omitempty"`
}

func (req *PurchaseRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.PricePaid, validation.Min(int64(0))),
		validation.Field(&req.Currency, validation.Required, isCurrency),
		validation.Field(&req.PaymentRef, validation.Length(0, 255)),
	)
}

type ConfirmPaymentRequest struct {
	PaymentRef string `json:"payment_ref"`
}

func (req *ConfirmPaymentRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.PaymentRef, validation.Required, validation.Length(1, 255)),
	)
}

type CancelTicketRequest struct {
	Refund bool `json:"refund"`
}
