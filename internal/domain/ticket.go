package domain

import "time"

type TicketStatus string

const (
	TicketReserved  TicketStatus = "reserved"
	TicketPaid      TicketStatus = "paid"
	TicketCheckedIn TicketStatus = "checked_in"
	TicketCancelled TicketStatus = "cancelled"
)

// Live reports whether a ticket in status s counts against capacity.
func (s TicketStatus) Live() bool {
	return s == TicketReserved || s == TicketPaid || s == TicketCheckedIn
}

type RefundStatus string

const (
	RefundNone     RefundStatus = ""
	RefundDone     RefundStatus = "refunded"
	RefundRejected RefundStatus = "refund_failed"
)

type Ticket struct {
	ID             string       `json:"id"`
	EventID        string       `json:"event_id"`
	UserID         string       `json:"user_id"`
	Status         TicketStatus `json:"status"`
	QRCode         string       `json:"qr_code"`
	PricePaid      int64        `json:"price_paid"`
	Currency       string       `json:"currency"`
	IdempotencyKey string       `json:"-"`
	PaymentRef     string       `json:"payment_ref,omitempty"`
	RefundStatus   RefundStatus `json:"refund_status,omitempty"`
	PurchasedAt    *time.Time   `json:"purchased_at,omitempty"`
	CheckedInAt    *time.Time   `json:"checked_in_at,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
	PaymentPending PaymentStatus = "pending"
)
