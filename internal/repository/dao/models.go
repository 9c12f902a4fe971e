package dao

import "time"

type Venue struct {
	ID            string `gorm:"type:uuid;primaryKey"`
	Name          string `gorm:"not null"`
	Capacity      int    `gorm:"not null;check:capacity > 0"`
	AllowsOverlap bool   `gorm:"not null;default:false"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Event struct {
	ID               string    `gorm:"type:uuid;primaryKey"`
	VenueID          string    `gorm:"type:uuid;not null;index:idx_events_venue_status"`
	Venue            Venue     `gorm:"foreignKey:VenueID"`
	OrganizerID      string    `gorm:"not null"`
	Name             string    `gorm:"not null"`
	StartAt          time.Time `gorm:"not null"`
	EndAt            time.Time `gorm:"not null"`
	SalesStartAt     time.Time `gorm:"not null"`
	SalesEndAt       time.Time `gorm:"not null"`
	Status           string    `gorm:"not null;index:idx_events_venue_status"`
	CapacityOverride *int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Ledger holds the live ticket counter of one event.
type Ledger struct {
	EventID   string `gorm:"type:uuid;primaryKey"`
	Event     Event  `gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE"`
	LiveCount int    `gorm:"not null;default:0;check:live_count >= 0"`
	Version   int64  `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

func (Ledger) TableName() string {
	return "capacity_ledgers"
}

type Ticket struct {
	ID             string  `gorm:"type:uuid;primaryKey"`
	EventID        string  `gorm:"type:uuid;not null;index:idx_tickets_event_status"`
	Event          Event   `gorm:"foreignKey:EventID"`
	UserID         string  `gorm:"not null;index;uniqueIndex:uni_tickets_intent"`
	IdempotencyKey *string `gorm:"uniqueIndex:uni_tickets_intent"`
	Status         string  `gorm:"not null;index:idx_tickets_event_status"`
	QRCode         string  `gorm:"not null;uniqueIndex:uni_tickets_qr_code"`
	PricePaid      int64   `gorm:"not null;default:0"`
	Currency       string  `gorm:"size:3"`
	PaymentRef     string
	RefundStatus   string
	PurchasedAt    *time.Time
	CheckedInAt    *time.Time
	CreatedAt      time.Time `gorm:"index"`
	UpdatedAt      time.Time
}

type CheckIn struct {
	ID        string    `gorm:"type:uuid;primaryKey"`
	TicketID  string    `gorm:"type:uuid;not null;uniqueIndex:uni_check_ins_ticket_id"`
	Ticket    Ticket    `gorm:"foreignKey:TicketID"`
	EventID   string    `gorm:"type:uuid;not null;index"`
	ScannedBy string    `gorm:"not null"`
	Gate      string
	ScannedAt time.Time `gorm:"not null"`
}
