package dao

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EventDAO struct {
	db *gorm.DB
}

func NewEventDAO(db *gorm.DB) *EventDAO {
	return &EventDAO{
		db: db,
	}
}

// Insert stores the event together with its empty capacity ledger row.
func (d *EventDAO) Insert(ctx context.Context, event Event) (Event, error) {
	err := conn(ctx, d.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Venue").Create(&event).Error; err != nil {
			return err
		}
		return tx.Create(&Ledger{EventID: event.ID, UpdatedAt: event.CreatedAt}).Error
	})
	if err != nil {
		return Event{}, err
	}

	return event, nil
}

func (d *EventDAO) FindByID(ctx context.Context, id string) (Event, error) {
	var event Event
	if err := conn(ctx, d.db).First(&event, "id = ?", id).Error; err != nil {
		return Event{}, notFound(err)
	}

	return event, nil
}

func (d *EventDAO) FindByIDForUpdate(ctx context.Context, id string) (Event, error) {
	tx, err := lockConn(ctx)
	if err != nil {
		return Event{}, err
	}

	var event Event
	err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&event, "id = ?", id).Error
	if err != nil {
		return Event{}, notFound(err)
	}

	return event, nil
}

func (d *EventDAO) FindByVenue(ctx context.Context, venueID string, statuses []string) ([]Event, error) {
	var events []Event
	q := conn(ctx, d.db).Where("venue_id = ?", venueID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	if err := q.Order("start_at").Find(&events).Error; err != nil {
		return nil, err
	}

	return events, nil
}

func (d *EventDAO) Update(ctx context.Context, event Event) error {
	result := conn(ctx, d.db).Model(&Event{}).Where("id = ?", event.ID).Updates(map[string]any{
		"name":              event.Name,
		"start_at":          event.StartAt,
		"end_at":            event.EndAt,
		"sales_start_at":    event.SalesStartAt,
		"sales_end_at":      event.SalesEndAt,
		"status":            event.Status,
		"capacity_override": event.CapacityOverride,
		"updated_at":        event.UpdatedAt,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func (d *EventDAO) Delete(ctx context.Context, id string) error {
	return conn(ctx, d.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("event_id = ?", id).Delete(&Ledger{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&Event{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (d *EventDAO) FindLedger(ctx context.Context, eventID string) (Ledger, error) {
	var ledger Ledger
	if err := conn(ctx, d.db).First(&ledger, "event_id = ?", eventID).Error; err != nil {
		return Ledger{}, notFound(err)
	}

	return ledger, nil
}

// UpdateLedger writes the counter only if the stored version still equals
// ledger.Version, then bumps the version.
func (d *EventDAO) UpdateLedger(ctx context.Context, ledger Ledger) (Ledger, error) {
	result := conn(ctx, d.db).Model(&Ledger{}).
		Where("event_id = ? AND version = ?", ledger.EventID, ledger.Version).
		Updates(map[string]any{
			"live_count": ledger.LiveCount,
			"version":    gorm.Expr("version + 1"),
			"updated_at": ledger.UpdatedAt,
		})
	if result.Error != nil {
		return Ledger{}, result.Error
	}
	if result.RowsAffected == 0 {
		return Ledger{}, ErrStaleVersion
	}

	ledger.Version++
	return ledger, nil
}
