package dao

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TicketDAO struct {
	db *gorm.DB
}

func NewTicketDAO(db *gorm.DB) *TicketDAO {
	return &TicketDAO{
		db: db,
	}
}

func (d *TicketDAO) Insert(ctx context.Context, ticket Ticket) (Ticket, error) {
	if err := conn(ctx, d.db).Omit("Event").Create(&ticket).Error; err != nil {
		if uniqueViolation(err, "uni_tickets_intent") || uniqueViolation(err, "uni_tickets_qr_code") {
			return Ticket{}, ErrDuplicate
		}
		return Ticket{}, err
	}

	return ticket, nil
}

func (d *TicketDAO) FindByID(ctx context.Context, id string) (Ticket, error) {
	var ticket Ticket
	if err := conn(ctx, d.db).First(&ticket, "id = ?", id).Error; err != nil {
		return Ticket{}, notFound(err)
	}

	return ticket, nil
}

func (d *TicketDAO) FindByQRCode(ctx context.Context, qrCode string) (Ticket, error) {
	var ticket Ticket
	if err := conn(ctx, d.db).First(&ticket, "qr_code = ?", qrCode).Error; err != nil {
		return Ticket{}, notFound(err)
	}

	return ticket, nil
}

func (d *TicketDAO) FindByIDForUpdate(ctx context.Context, id string) (Ticket, error) {
	tx, err := lockConn(ctx)
	if err != nil {
		return Ticket{}, err
	}

	var ticket Ticket
	err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&ticket, "id = ?", id).Error
	if err != nil {
		return Ticket{}, notFound(err)
	}

	return ticket, nil
}

func (d *TicketDAO) FindByIntent(ctx context.Context, userID, key string) (Ticket, error) {
	var ticket Ticket
	err := conn(ctx, d.db).First(&ticket, "user_id = ? AND idempotency_key = ?", userID, key).Error
	if err != nil {
		return Ticket{}, notFound(err)
	}

	return ticket, nil
}

// FindByEventForUpdate locks every ticket of the event in one of statuses, in
// id order.
func (d *TicketDAO) FindByEventForUpdate(ctx context.Context, eventID string, statuses []string) ([]Ticket, error) {
	tx, err := lockConn(ctx)
	if err != nil {
		return nil, err
	}

	var tickets []Ticket
	err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("event_id = ? AND status IN ?", eventID, statuses).
		Order("id").
		Find(&tickets).Error
	if err != nil {
		return nil, err
	}

	return tickets, nil
}

func (d *TicketDAO) FindByUser(ctx context.Context, userID string) ([]Ticket, error) {
	var tickets []Ticket
	err := conn(ctx, d.db).Where("user_id = ?", userID).Order("created_at DESC").Find(&tickets).Error
	if err != nil {
		return nil, err
	}

	return tickets, nil
}

func (d *TicketDAO) FindReservedBefore(ctx context.Context, before time.Time, limit int) ([]Ticket, error) {
	var tickets []Ticket
	err := conn(ctx, d.db).
		Where("status = ? AND created_at < ?", "reserved", before).
		Order("created_at").
		Limit(limit).
		Find(&tickets).Error
	if err != nil {
		return nil, err
	}

	return tickets, nil
}

func (d *TicketDAO) CountByEvent(ctx context.Context, eventID string) (int, error) {
	var n int64
	if err := conn(ctx, d.db).Model(&Ticket{}).Where("event_id = ?", eventID).Count(&n).Error; err != nil {
		return 0, err
	}

	return int(n), nil
}

func (d *TicketDAO) Update(ctx context.Context, ticket Ticket) error {
	result := conn(ctx, d.db).Model(&Ticket{}).Where("id = ?", ticket.ID).Updates(map[string]any{
		"status":        ticket.Status,
		"payment_ref":   ticket.PaymentRef,
		"refund_status": ticket.RefundStatus,
		"purchased_at":  ticket.PurchasedAt,
		"checked_in_at": ticket.CheckedInAt,
		"updated_at":    ticket.UpdatedAt,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
