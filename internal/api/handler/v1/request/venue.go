package request

import (
	validation "github.com/go-ozzo/ozzo-validation"
)

type CreateVenueRequest struct {
	Name          string `json:"name"`
	Capacity      int    `json:"capacity"`
	AllowsOverlap bool   `json:"allows_overlap"`
}

func (req *CreateVenueRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Name, validation.Required, validation.Length(2, 100)),
		validation.Field(&req.Capacity, validation.Required, validation.Min(1)),
	)
}

type UpdateVenueCapacityRequest struct {
	Capacity int `json:"capacity"`
}

func (req *UpdateVenueCapacityRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Capacity, validation.Required, validation.Min(1)),
	)
}
