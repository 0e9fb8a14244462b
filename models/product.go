package models

import (
	"time"

	"github.com/google/uuid"
)

type Category struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name        string    `gorm:"uniqueIndex;not null" json:"name"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	IsActive    bool      `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Product is a sellable item. Price is per Unit; UnitQuantity is how much of
// the unit one purchase gets (0.5 kg, 12 pieces, ...).
type Product struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name         string    `gorm:"not null;index" json:"name"`
	Description  string    `json:"description"`
	Price        float64   `gorm:"not null" json:"price"`
	Unit         string    `gorm:"size:32" json:"unit"`
	UnitQuantity float64   `gorm:"default:1" json:"unit_quantity"`
	Stock        int       `gorm:"default:0" json:"stock"`
	ImageURL     string    `json:"image_url,omitempty"`
	CategoryID   uuid.UUID `gorm:"type:uuid;index" json:"category_id"`
	Category     *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	IsActive     bool      `gorm:"default:true" json:"is_active"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
