package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sector is a priced, capacity-bounded area of the garage.
type Sector struct {
	ID          string          `gorm:"primaryKey;size:32" json:"sector"`
	BasePrice   decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"base_price"`
	MaxCapacity int             `gorm:"not null" json:"max_capacity"`
	CreatedAt   time.Time       `json:"-"`
	UpdatedAt   time.Time       `json:"-"`

	// Associations
	Spots []Spot `gorm:"foreignKey:SectorID" json:"-"`
}

// OccupancyRate returns occupied/capacity. A sector without capacity counts as full.
func (s Sector) OccupancyRate(occupied int64) float64 {
	if s.MaxCapacity <= 0 {
		return 1
	}
	return float64(occupied) / float64(s.MaxCapacity)
}

// IsFull reports whether the given occupied count reaches the sector capacity.
func (s Sector) IsFull(occupied int64) bool {
	return occupied >= int64(s.MaxCapacity)
}
