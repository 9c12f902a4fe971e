package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidState      = errors.New("invalid state")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrSoldOut           = errors.New("sold out")
	ErrOverlapConflict   = errors.New("overlap conflict")
	ErrSalesClosed       = errors.New("sales closed")
	ErrAlreadyCheckedIn  = errors.New("already checked in")
	ErrPaymentPending    = errors.New("payment pending")
	ErrPaymentFailed     = errors.New("payment failed")
	ErrRefundFailed      = errors.New("refund failed")
	ErrForbidden         = errors.New("forbidden")
	ErrContention        = errors.New("contention")
	ErrValidation        = errors.New("validation failed")
)

// Kind returns the taxonomy name of err, or "Internal" when err does not wrap
// one of the domain errors.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrInvalidTransition):
		return "InvalidTransition"
	case errors.Is(err, ErrInvalidState):
		return "InvalidState"
	case errors.Is(err, ErrSoldOut):
		return "SoldOut"
	case errors.Is(err, ErrOverlapConflict):
		return "OverlapConflict"
	case errors.Is(err, ErrSalesClosed):
		return "SalesClosed"
	case errors.Is(err, ErrAlreadyCheckedIn):
		return "AlreadyCheckedIn"
	case errors.Is(err, ErrPaymentPending):
		return "PaymentPending"
	case errors.Is(err, ErrPaymentFailed):
		return "PaymentFailed"
	case errors.Is(err, ErrRefundFailed):
		return "RefundFailed"
	case errors.Is(err, ErrForbidden):
		return "Forbidden"
	case errors.Is(err, ErrContention):
		return "Contention"
	case errors.Is(err, ErrValidation):
		return "Validation"
	default:
		return "Internal"
	}
}
