package dao

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type VenueDAO struct {
	db *gorm.DB
}

func NewVenueDAO(db *gorm.DB) *VenueDAO {
	return &VenueDAO{
		db: db,
	}
}

func (d *VenueDAO) Insert(ctx context.Context, venue Venue) (Venue, error) {
	if err := conn(ctx, d.db).Create(&venue).Error; err != nil {
		return Venue{}, err
	}

	return venue, nil
}

func (d *VenueDAO) FindByID(ctx context.Context, id string) (Venue, error) {
	var venue Venue
	if err := conn(ctx, d.db).First(&venue, "id = ?", id).Error; err != nil {
		return Venue{}, notFound(err)
	}

	return venue, nil
}

func (d *VenueDAO) FindByIDForUpdate(ctx context.Context, id string) (Venue, error) {
	tx, err := lockConn(ctx)
	if err != nil {
		return Venue{}, err
	}

	var venue Venue
	err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&venue, "id = ?", id).Error
	if err != nil {
		return Venue{}, notFound(err)
	}

	return venue, nil
}

func (d *VenueDAO) Update(ctx context.Context, venue Venue) error {
	result := conn(ctx, d.db).Model(&Venue{}).Where("id = ?", venue.ID).Updates(map[string]any{
		"name":           venue.Name,
		"capacity":       venue.Capacity,
		"allows_overlap": venue.AllowsOverlap,
		"updated_at":     venue.UpdatedAt,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
