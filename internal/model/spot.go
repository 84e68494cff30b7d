package model

import "time"

// Spot is one physical parking space. Available is false exactly when
// OccupiedBy holds a license plate.
type Spot struct {
	ID         int64     `gorm:"primaryKey" json:"id"`
	SectorID   string    `gorm:"size:32;index;not null" json:"sector"`
	Latitude   float64   `json:"lat"`
	Longitude  float64   `json:"lng"`
	Available  bool      `gorm:"not null;index" json:"available"`
	OccupiedBy *string   `gorm:"size:16;index" json:"occupied_by,omitempty"`
	UpdatedAt  time.Time `json:"-"`

	// Associations
	Sector Sector `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
