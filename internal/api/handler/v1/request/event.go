package request

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

type ScheduleRequest struct {
	StartAt      time.Time `json:"start_at" format:"date-time"`
	EndAt        time.Time `json:"end_at" format:"date-time"`
	SalesStartAt time.Time `json:"sales_start_at" format:"date-time"`
	SalesEndAt   time.Time `json:"sales_end_at" format:"date-time"`
}

func (req *ScheduleRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.StartAt, validation.Required),
		validation.Field(&req.EndAt, validation.Required),
		validation.Field(&req.SalesStartAt, validation.Required),
		validation.Field(&req.SalesEndAt, validation.Required),
	)
}

type CreateEventRequest struct {
	VenueID          string `json:"venue_id"`
	Name             string `json:"name"`
	CapacityOverride *int   `json:"capacity_override,omitempty"`
	ScheduleRequest
}

func (req *CreateEventRequest) Validate() error {
	err := validation.ValidateStruct(
		req,
		validation.Field(&req.VenueID, validation.Required, is.UUID),
		validation.Field(&req.Name, validation.Required, validation.Length(2, 200)),
		validation.Field(&req.CapacityOverride, validation.NilOrNotEmpty, validation.Min(1)),
	)
	if err != nil {
		return err
	}
	return req.ScheduleRequest.Validate()
}

type CapacityOverrideRequest struct {
	// CapacityOverride clears the override when null.
	CapacityOverride *int `json:"capacity_override"`
}

func (req *CapacityOverrideRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.CapacityOverride, validation.NilOrNotEmpty, validation.Min(1)),
	)
}

type CancelEventRequest struct {
	RefundTickets bool `json:"refund_tickets"`
}
