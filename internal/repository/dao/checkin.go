package dao

import (
	"context"

	"gorm.io/gorm"
)

type CheckInDAO struct {
	db *gorm.DB
}

func NewCheckInDAO(db *gorm.DB) *CheckInDAO {
	return &CheckInDAO{
		db: db,
	}
}

func (d *CheckInDAO) Insert(ctx context.Context, checkIn CheckIn) (CheckIn, error) {
	if err := conn(ctx, d.db).Omit("Ticket").Create(&checkIn).Error; err != nil {
		if uniqueViolation(err, "uni_check_ins_ticket_id") {
			return CheckIn{}, ErrDuplicate
		}
		return CheckIn{}, err
	}

	return checkIn, nil
}

func (d *CheckInDAO) FindByTicketID(ctx context.Context, ticketID string) (CheckIn, error) {
	var checkIn CheckIn
	if err := conn(ctx, d.db).First(&checkIn, "ticket_id = ?", ticketID).Error; err != nil {
		return CheckIn{}, notFound(err)
	}

	return checkIn, nil
}
