package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"parking-garage-backend/internal/model"
)

// Store defines the interface for all database operations: the garage
// catalog, spot occupancy and the parking event ledger.
type Store interface {
	// WithTx runs fn in a transaction. Store calls made with the context
	// passed to fn join that transaction.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	LoadCatalog(ctx context.Context, sectors []model.Sector, spots []model.Spot) error
	Sectors(ctx context.Context) ([]model.Sector, error)
	Sector(ctx context.Context, id string) (*model.Sector, error)
	Spots(ctx context.Context) ([]model.Spot, error)
	SpotsBySector(ctx context.Context, sectorID string) ([]model.Spot, error)

	SpotOf(ctx context.Context, plate string) (*model.Spot, error)
	SpotsOf(ctx context.Context, plate string) ([]model.Spot, error)
	FirstFreeSpot(ctx context.Context, sectorID string) (*model.Spot, error)
	Occupy(ctx context.Context, spotID int64, plate string) error
	Release(ctx context.Context, spotID int64) error
	UpdateSpotLocation(ctx context.Context, spotID int64, lat, lng float64) error
	CountOccupied(ctx context.Context, sectorID string) (int64, error)
	OccupancyBySector(ctx context.Context) (map[string]int64, error)
	CountSpots(ctx context.Context) (SpotCounts, error)
	PlatesWithMultipleSpots(ctx context.Context) ([]string, error)
	CountParkedPlates(ctx context.Context) (int64, error)

	AppendEvent(ctx context.Context, event *model.ParkingEvent) error
	LatestEntry(ctx context.Context, plate string) (*model.ParkingEvent, error)
	ExitEvents(ctx context.Context, sectorID string, from, to time.Time) ([]model.ParkingEvent, error)
	CountEvents(ctx context.Context, eventType model.EventType, from, to time.Time) (int64, error)

	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

type txKey struct{}

func txFromContext(ctx context.Context) *gorm.DB {
	tx, _ := ctx.Value(txKey{}).(*gorm.DB)
	return tx
}

// DB exposes the underlying handle for handlers that manage their own queries.
func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func (s *gormStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// conn returns the transaction bound to ctx, or a fresh session.
func (s *gormStore) conn(ctx context.Context) *gorm.DB {
	if tx := txFromContext(ctx); tx != nil {
		return tx.WithContext(ctx)
	}
	return s.db.WithContext(ctx)
}

// LoadCatalog upserts sectors and spots. Occupancy columns of existing spots
// are left untouched so a reload never frees or steals a spot.
func (s *gormStore) LoadCatalog(ctx context.Context, sectors []model.Sector, spots []model.Spot) error {
	return s.WithTx(ctx, func(ctx context.Context) error {
		tx := s.conn(ctx)
		if len(sectors) > 0 {
			if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"base_price", "max_capacity", "updated_at"}),
			}).Create(&sectors).Error; err != nil {
				return fmt.Errorf("batch upsert sectors failed: %w", err)
			}
		}
		if len(spots) > 0 {
			if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"sector_id", "latitude", "longitude", "updated_at"}),
			}).CreateInBatches(&spots, 100).Error; err != nil {
				return fmt.Errorf("batch upsert spots failed: %w", err)
			}
		}
		return nil
	})
}

func (s *gormStore) Sectors(ctx context.Context) ([]model.Sector, error) {
	var sectors []model.Sector
	if err := s.conn(ctx).Order("id").Find(&sectors).Error; err != nil {
		return nil, fmt.Errorf("list sectors: %w", err)
	}
	return sectors, nil
}

func (s *gormStore) Sector(ctx context.Context, id string) (*model.Sector, error) {
	var sector model.Sector
	if err := s.conn(ctx).Where("id = ?", id).Take(&sector).Error; err != nil {
		return nil, notFound(err, "get sector %q", id)
	}
	return &sector, nil
}

func (s *gormStore) Spots(ctx context.Context) ([]model.Spot, error) {
	var spots []model.Spot
	if err := s.conn(ctx).Order("id").Find(&spots).Error; err != nil {
		return nil, fmt.Errorf("list spots: %w", err)
	}
	return spots, nil
}

func (s *gormStore) SpotsBySector(ctx context.Context, sectorID string) ([]model.Spot, error) {
	var spots []model.Spot
	if err := s.conn(ctx).Where("sector_id = ?", sectorID).Order("id").Find(&spots).Error; err != nil {
		return nil, fmt.Errorf("list spots of sector %q: %w", sectorID, err)
	}
	return spots, nil
}

// SpotOf returns the lowest-id spot held by plate.
func (s *gormStore) SpotOf(ctx context.Context, plate string) (*model.Spot, error) {
	var spot model.Spot
	err := s.conn(ctx).
		Where("occupied_by = ? AND available = ?", plate, false).
		Order("id").
		Take(&spot).Error
	if err != nil {
		return nil, notFound(err, "get spot of %s", plate)
	}
	return &spot, nil
}

func (s *gormStore) SpotsOf(ctx context.Context, plate string) ([]model.Spot, error) {
	var spots []model.Spot
	err := s.conn(ctx).
		Where("occupied_by = ? AND available = ?", plate, false).
		Order("id").
		Find(&spots).Error
	if err != nil {
		return nil, fmt.Errorf("list spots of %s: %w", plate, err)
	}
	return spots, nil
}

// FirstFreeSpot returns the lowest-id free spot of a sector.
func (s *gormStore) FirstFreeSpot(ctx context.Context, sectorID string) (*model.Spot, error) {
	var spot model.Spot
	err := s.conn(ctx).
		Where("sector_id = ? AND available = ?", sectorID, true).
		Order("id").
		Take(&spot).Error
	if err != nil {
		return nil, notFound(err, "find free spot in sector %q", sectorID)
	}
	return &spot, nil
}

// Occupy assigns a free spot to plate. The update is conditional on the spot
// still being free, so two callers can never both claim it.
func (s *gormStore) Occupy(ctx context.Context, spotID int64, plate string) error {
	res := s.conn(ctx).
		Model(&model.Spot{}).
		Where("id = ? AND available = ?", spotID, true).
		Updates(map[string]any{"available": false, "occupied_by": plate})
	if res.Error != nil {
		return fmt.Errorf("occupy spot %d: %w", spotID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("occupy spot %d: %w", spotID, ErrSpotOccupied)
	}
	return nil
}

// Release frees a spot. Releasing a free spot is a no-op.
func (s *gormStore) Release(ctx context.Context, spotID int64) error {
	err := s.conn(ctx).
		Model(&model.Spot{}).
		Where("id = ?", spotID).
		Updates(map[string]any{"available": true, "occupied_by": nil}).Error
	if err != nil {
		return fmt.Errorf("release spot %d: %w", spotID, err)
	}
	return nil
}

func (s *gormStore) UpdateSpotLocation(ctx context.Context, spotID int64, lat, lng float64) error {
	err := s.conn(ctx).
		Model(&model.Spot{}).
		Where("id = ?", spotID).
		Updates(map[string]any{"latitude": lat, "longitude": lng}).Error
	if err != nil {
		return fmt.Errorf("update location of spot %d: %w", spotID, err)
	}
	return nil
}

func (s *gormStore) CountOccupied(ctx context.Context, sectorID string) (int64, error) {
	var n int64
	err := s.conn(ctx).
		Model(&model.Spot{}).
		Where("sector_id = ? AND available = ?", sectorID, false).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count occupied spots in sector %q: %w", sectorID, err)
	}
	return n, nil
}

func (s *gormStore) OccupancyBySector(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		SectorID string
		Occupied int64
	}
	err := s.conn(ctx).
		Model(&model.Spot{}).
		Select("sector_id AS sector_id, COUNT(*) AS occupied").
		Where("available = ?", false).
		Group("sector_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("aggregate occupancy: %w", err)
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.SectorID] = r.Occupied
	}
	return out, nil
}

func (s *gormStore) CountSpots(ctx context.Context) (SpotCounts, error) {
	var c SpotCounts
	if err := s.conn(ctx).Model(&model.Spot{}).Count(&c.Total).Error; err != nil {
		return SpotCounts{}, fmt.Errorf("count spots: %w", err)
	}
	if err := s.conn(ctx).Model(&model.Spot{}).Where("available = ?", false).Count(&c.Occupied).Error; err != nil {
		return SpotCounts{}, fmt.Errorf("count occupied spots: %w", err)
	}
	return c, nil
}

// PlatesWithMultipleSpots lists, in plate order, vehicles holding more than one spot.
func (s *gormStore) PlatesWithMultipleSpots(ctx context.Context) ([]string, error) {
	var plates []string
	err := s.conn(ctx).
		Model(&model.Spot{}).
		Where("available = ? AND occupied_by IS NOT NULL", false).
		Group("occupied_by").
		Having("COUNT(*) > 1").
		Order("occupied_by").
		Pluck("occupied_by", &plates).Error
	if err != nil {
		return nil, fmt.Errorf("find plates with multiple spots: %w", err)
	}
	return plates, nil
}

func (s *gormStore) CountParkedPlates(ctx context.Context) (int64, error) {
	var n int64
	err := s.conn(ctx).
		Model(&model.Spot{}).
		Where("available = ? AND occupied_by IS NOT NULL", false).
		Distinct("occupied_by").
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count parked plates: %w", err)
	}
	return n, nil
}

// AppendEvent writes a new ledger row.
func (s *gormStore) AppendEvent(ctx context.Context, event *model.ParkingEvent) error {
	if event.ID != 0 {
		return fmt.Errorf("append %s event for %s: ledger rows are immutable", event.Type, event.LicensePlate)
	}
	if err := s.conn(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("append %s event for %s: %w", event.Type, event.LicensePlate, err)
	}
	return nil
}

// LatestEntry returns the most recently created ENTRY row with an entry time.
func (s *gormStore) LatestEntry(ctx context.Context, plate string) (*model.ParkingEvent, error) {
	var event model.ParkingEvent
	err := s.conn(ctx).
		Where("license_plate = ? AND event_type = ? AND entry_time IS NOT NULL", plate, model.EventEntry).
		Order("created_at DESC").
		Order("id DESC").
		Take(&event).Error
	if err != nil {
		return nil, notFound(err, "get latest entry of %s", plate)
	}
	return &event, nil
}

// ExitEvents lists EXIT rows whose exit time falls in [from, to). An empty
// sectorID selects every sector.
func (s *gormStore) ExitEvents(ctx context.Context, sectorID string, from, to time.Time) ([]model.ParkingEvent, error) {
	q := s.conn(ctx).
		Where("event_type = ? AND exit_time >= ? AND exit_time < ?", model.EventExit, from.UTC(), to.UTC())
	if sectorID != "" {
		q = q.Where("sector_id = ?", sectorID)
	}
	var events []model.ParkingEvent
	if err := q.Order("exit_time").Order("id").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list exit events: %w", err)
	}
	return events, nil
}

// CountEvents counts rows of a type whose own timestamp (entry time for
// ENTRY, exit time for EXIT, creation time otherwise) falls in [from, to).
func (s *gormStore) CountEvents(ctx context.Context, eventType model.EventType, from, to time.Time) (int64, error) {
	column := "created_at"
	switch eventType {
	case model.EventEntry:
		column = "entry_time"
	case model.EventExit:
		column = "exit_time"
	}
	var n int64
	err := s.conn(ctx).
		Model(&model.ParkingEvent{}).
		Where("event_type = ?", eventType).
		Where(column+" >= ? AND "+column+" < ?", from.UTC(), to.UTC()).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count %s events: %w", eventType, err)
	}
	return n, nil
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
