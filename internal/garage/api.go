package garage

import (
	"github.com/shopspring/decimal"

	"parking-garage-backend/internal/model"
)

// SimulatorConfig models the garage simulator's configuration response.
type SimulatorConfig struct {
	Garage []SectorItem `json:"garage"`
	Spots  []SpotItem   `json:"spots"`
}

// SectorItem is one sector record from the simulator.
type SectorItem struct {
	Sector      string          `json:"sector"`
	BasePrice   decimal.Decimal `json:"basePrice"`
	MaxCapacity int             `json:"max_capacity"`
}

// SpotItem is one spot record from the simulator.
type SpotItem struct {
	ID     int64   `json:"id"`
	Sector string  `json:"sector"`
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
}

// FromModels renders a stored catalog in the simulator's shape.
func FromModels(sectors []model.Sector, spots []model.Spot) *SimulatorConfig {
	sc := &SimulatorConfig{
		Garage: make([]SectorItem, 0, len(sectors)),
		Spots:  make([]SpotItem, 0, len(spots)),
	}
	for _, s := range sectors {
		sc.Garage = append(sc.Garage, SectorItem{Sector: s.ID, BasePrice: s.BasePrice, MaxCapacity: s.MaxCapacity})
	}
	for _, sp := range spots {
		sc.Spots = append(sc.Spots, SpotItem{ID: sp.ID, Sector: sp.SectorID, Lat: sp.Latitude, Lng: sp.Longitude})
	}
	return sc
}
