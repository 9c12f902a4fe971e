package domain

import "time"

type Venue struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Capacity      int       `json:"capacity"`
	AllowsOverlap bool      `json:"allows_overlap"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
