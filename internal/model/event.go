package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// EventType is the kind of vehicle notification received from the garage.
type EventType string

const (
	EventEntry  EventType = "ENTRY"
	EventParked EventType = "PARKED"
	EventExit   EventType = "EXIT"
)

// ParseEventType maps the wire value to an EventType.
func ParseEventType(raw string) (EventType, error) {
	switch t := EventType(strings.ToUpper(strings.TrimSpace(raw))); t {
	case EventEntry, EventParked, EventExit:
		return t, nil
	default:
		return "", fmt.Errorf("unknown event type %q", raw)
	}
}

// ParkingEvent is an append-only ledger row. Rows are never updated.
type ParkingEvent struct {
	ID                   int64               `gorm:"primaryKey" json:"id"`
	LicensePlate         string              `gorm:"size:16;not null;index:idx_parking_events_plate_type" json:"license_plate"`
	SectorID             string              `gorm:"size:32;not null;index" json:"sector"`
	Type                 EventType           `gorm:"column:event_type;size:8;not null;index:idx_parking_events_plate_type" json:"event_type"`
	EntryTime            *time.Time          `json:"entry_time,omitempty"`
	ExitTime             *time.Time          `gorm:"index" json:"exit_time,omitempty"`
	SpotID               *int64              `json:"spot_id,omitempty"`
	Latitude             *float64            `json:"lat,omitempty"`
	Longitude            *float64            `json:"lng,omitempty"`
	PriceApplied         decimal.NullDecimal `gorm:"type:numeric(10,2)" json:"price_applied"`
	OccupancyRateAtEntry *float64            `json:"occupancy_rate_at_entry,omitempty"`
	AmountCharged        decimal.NullDecimal `gorm:"type:numeric(10,2)" json:"amount_charged"`
	CreatedAt            time.Time           `gorm:"not null;index" json:"created_at"`
}
