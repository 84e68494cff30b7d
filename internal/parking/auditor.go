package parking

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"parking-garage-backend/internal/model"
	"parking-garage-backend/internal/store"
)

// Report describes how far spot occupancy is from one spot per plate.
type Report struct {
	VehiclesWithMultipleSpots     int      `json:"vehicles_with_multiple_spots"`
	VehiclesWithMultipleSpotsList []string `json:"vehicles_with_multiple_spots_list"`
	TotalOccupiedSpots            int64    `json:"total_occupied_spots"`
	UniqueVehiclesParked          int64    `json:"unique_vehicles_parked"`
	HasInconsistencies            bool     `json:"has_inconsistencies"`
}

// RepairResult is returned by Auditor.Repair.
type RepairResult struct {
	Before        Report  `json:"before"`
	After         Report  `json:"after"`
	ReleasedSpots []int64 `json:"released_spots"`
}

// Auditor finds and fixes plates that hold more than one spot.
type Auditor struct {
	store store.Store
	locks *Locks
	log   *slog.Logger

	// one repair at a time
	mu sync.Mutex
}

// NewAuditor creates an auditor. locks must be the set the Processor uses.
func NewAuditor(st store.Store, locks *Locks, log *slog.Logger) *Auditor {
	if locks == nil {
		locks = NewLocks()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Auditor{store: st, locks: locks, log: log.With("component", "auditor")}
}

func (a *Auditor) Report(ctx context.Context) (Report, error) {
	plates, err := a.store.PlatesWithMultipleSpots(ctx)
	if err != nil {
		return Report{}, err
	}
	counts, err := a.store.CountSpots(ctx)
	if err != nil {
		return Report{}, err
	}
	unique, err := a.store.CountParkedPlates(ctx)
	if err != nil {
		return Report{}, err
	}
	if plates == nil {
		plates = []string{}
	}
	return Report{
		VehiclesWithMultipleSpots:     len(plates),
		VehiclesWithMultipleSpotsList: plates,
		TotalOccupiedSpots:            counts.Occupied,
		UniqueVehiclesParked:          unique,
		HasInconsistencies:            len(plates) > 0,
	}, nil
}

// Repair keeps the lowest-id spot of every plate holding several and releases
// the rest.
func (a *Auditor) Repair(ctx context.Context) (RepairResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	before, err := a.Report(ctx)
	if err != nil {
		return RepairResult{}, err
	}
	a.log.Info("starting parking data cleanup", "plates", before.VehiclesWithMultipleSpots)

	released := []int64{}
	for _, plate := range before.VehiclesWithMultipleSpotsList {
		ids, err := a.repairPlate(ctx, plate)
		if err != nil {
			return RepairResult{}, err
		}
		released = append(released, ids...)
	}

	after, err := a.Report(ctx)
	if err != nil {
		return RepairResult{}, err
	}
	a.log.Info("parking data cleanup completed", "released", len(released))
	return RepairResult{Before: before, After: after, ReleasedSpots: released}, nil
}

func (a *Auditor) repairPlate(ctx context.Context, plate string) ([]int64, error) {
	unlockPlate := a.locks.Plate(plate)
	defer unlockPlate()

	spots, err := a.store.SpotsOf(ctx, plate)
	if err != nil {
		return nil, err
	}
	if len(spots) < 2 {
		return nil, nil
	}

	// Sector locks in a fixed order.
	sectors := make([]string, 0, len(spots))
	for _, s := range spots {
		sectors = append(sectors, s.SectorID)
	}
	slices.Sort(sectors)
	for _, sector := range slices.Compact(sectors) {
		unlock := a.locks.Sector(sector)
		defer unlock()
	}

	var released []int64
	err = a.store.WithTx(ctx, func(ctx context.Context) error {
		released = released[:0]
		spots, err := a.store.SpotsOf(ctx, plate)
		if err != nil {
			return err
		}
		for _, spot := range extraSpots(spots) {
			if err := a.store.Release(ctx, spot.ID); err != nil {
				return err
			}
			released = append(released, spot.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, id := range released {
		a.log.Warn("released duplicate spot", "plate", plate, "spot", id)
	}
	return released, nil
}

// extraSpots returns every spot but the one with the lowest id.
func extraSpots(spots []model.Spot) []model.Spot {
	if len(spots) < 2 {
		return nil
	}
	keep := 0
	for i, s := range spots {
		if s.ID < spots[keep].ID {
			keep = i
		}
	}
	out := make([]model.Spot, 0, len(spots)-1)
	for i, s := range spots {
		if i != keep {
			out = append(out, s)
		}
	}
	return out
}
