package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/T1collo/agrofresh/models"
)

type LocationRepository interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Location, error)
	Upsert(ctx context.Context, loc *models.Location) error
}

type GormLocationRepository struct {
	db *gorm.DB
}

func NewGormLocationRepository(db *gorm.DB) LocationRepository {
	return &GormLocationRepository{db: db}
}

func (r *GormLocationRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Location, error) {
	var loc models.Location
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&loc).Error; err != nil {
		return nil, err
	}
	return &loc, nil
}

// Upsert writes the user's single location, replacing coordinates and
// address when one already exists.
func (r *GormLocationRepository) Upsert(ctx context.Context, loc *models.Location) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"latitude", "longitude", "address", "updated_at"}),
	}).Create(loc).Error
}
