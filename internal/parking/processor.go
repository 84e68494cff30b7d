package parking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"parking-garage-backend/internal/clock"
	"parking-garage-backend/internal/metrics"
	"parking-garage-backend/internal/model"
	"parking-garage-backend/internal/pricing"
	"parking-garage-backend/internal/store"
)

// Event is a parsed vehicle notification from the garage.
type Event struct {
	LicensePlate string
	Type         model.EventType
	// Sector optionally names the sector an ENTRY should be admitted to.
	Sector    string
	EntryTime *time.Time
	ExitTime  *time.Time
	Lat       *float64
	Lng       *float64
}

// Invalidator drops cached revenue for a sector and calendar day.
type Invalidator interface {
	Invalidate(sector string, day time.Time) error
}

// Notifier is told when a spot in a sector is freed.
type Notifier interface {
	Dispatch(sector string)
}

// Processor applies ENTRY, PARKED and EXIT events to the garage.
type Processor struct {
	store         store.Store
	clock         clock.Clock
	loc           *time.Location
	defaultSector string
	locks         *Locks
	metrics       *metrics.Metrics
	invalidator   Invalidator
	notifier      Notifier
	log           *slog.Logger
}

type ProcessorOption func(*Processor)

// WithClock overrides the clock used for ledger timestamps.
func WithClock(c clock.Clock) ProcessorOption {
	return func(p *Processor) {
		if c != nil {
			p.clock = c
		}
	}
}

// WithLocation sets the timezone that defines a calendar day for revenue.
func WithLocation(loc *time.Location) ProcessorOption {
	return func(p *Processor) {
		if loc != nil {
			p.loc = loc
		}
	}
}

// WithDefaultSector admits ENTRY events without a sector to the given one.
func WithDefaultSector(sector string) ProcessorOption {
	return func(p *Processor) {
		p.defaultSector = normalizeSector(sector)
	}
}

// WithLocks shares a lock set, typically with an Auditor.
func WithLocks(l *Locks) ProcessorOption {
	return func(p *Processor) {
		if l != nil {
			p.locks = l
		}
	}
}

// WithMetrics records processed events and occupancy in m.
func WithMetrics(m *metrics.Metrics) ProcessorOption {
	return func(p *Processor) { p.metrics = m }
}

// WithInvalidator drops cached revenue after each committed EXIT.
func WithInvalidator(inv Invalidator) ProcessorOption {
	return func(p *Processor) { p.invalidator = inv }
}

// WithNotifier announces freed spots after each committed EXIT.
func WithNotifier(n Notifier) ProcessorOption {
	return func(p *Processor) { p.notifier = n }
}

// WithLogger sets the logger. A nil logger keeps the default.
func WithLogger(l *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		if l != nil {
			p.log = l
		}
	}
}

// NewProcessor creates a processor over the given store.
func NewProcessor(st store.Store, opts ...ProcessorOption) *Processor {
	p := &Processor{
		store: st,
		clock: clock.NewSystem(),
		loc:   time.UTC,
		locks: NewLocks(),
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.With("component", "processor")
	return p
}

// ProcessEvent applies one event. It returns the ledger row that was written,
// or nil when a PARKED event had nothing to update. Failed events leave no
// trace in the store.
func (p *Processor) ProcessEvent(ctx context.Context, ev Event) (*model.ParkingEvent, error) {
	start := time.Now()
	ev.LicensePlate = strings.TrimSpace(ev.LicensePlate)
	ev.Sector = normalizeSector(ev.Sector)

	var (
		rec *model.ParkingEvent
		err error
	)
	switch {
	case ev.LicensePlate == "":
		err = fmt.Errorf("%w: license plate is required", ErrInvalidEvent)
	case ev.Type == model.EventEntry:
		rec, err = p.processEntry(ctx, ev)
	case ev.Type == model.EventParked:
		rec, err = p.processParked(ctx, ev)
	case ev.Type == model.EventExit:
		rec, err = p.processExit(ctx, ev)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownEventType, ev.Type)
	}

	if err != nil {
		code := Code(err)
		p.metrics.EventFailed(string(ev.Type), code)
		if code == CodeInternal {
			p.log.Error("event processing failed", "plate", ev.LicensePlate, "type", ev.Type, "err", err)
		} else {
			p.log.Warn("event rejected", "plate", ev.LicensePlate, "type", ev.Type, "code", code, "err", err)
		}
		return nil, err
	}

	p.metrics.EventProcessed(string(ev.Type), time.Since(start))
	if rec != nil {
		p.afterCommit(ctx, rec)
	}
	return rec, nil
}

func (p *Processor) processEntry(ctx context.Context, ev Event) (*model.ParkingEvent, error) {
	if ev.EntryTime == nil {
		return nil, fmt.Errorf("%w: entry time is required", ErrVehicleNotParked)
	}
	entryTime := ev.EntryTime.UTC()

	unlockPlate := p.locks.Plate(ev.LicensePlate)
	defer unlockPlate()

	if _, err := p.store.SpotOf(ctx, ev.LicensePlate); err == nil {
		return nil, fmt.Errorf("%w: vehicle %s already occupies a spot", ErrVehicleAlreadyParked, ev.LicensePlate)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	sectorID, unlockSector, err := p.lockTargetSector(ctx, ev.Sector)
	if err != nil {
		return nil, err
	}
	defer unlockSector()

	var rec *model.ParkingEvent
	err = p.store.WithTx(ctx, func(ctx context.Context) error {
		if _, err := p.store.SpotOf(ctx, ev.LicensePlate); err == nil {
			return fmt.Errorf("%w: vehicle %s already occupies a spot", ErrVehicleAlreadyParked, ev.LicensePlate)
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		sector, err := p.sector(ctx, sectorID)
		if err != nil {
			return err
		}
		occupied, err := p.store.CountOccupied(ctx, sector.ID)
		if err != nil {
			return err
		}
		if sector.IsFull(occupied) {
			return fmt.Errorf("%w: sector %s is full", ErrNoAvailableSpots, sector.ID)
		}
		spot, err := p.store.FirstFreeSpot(ctx, sector.ID)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: no free spot in sector %s", ErrNoAvailableSpots, sector.ID)
		} else if err != nil {
			return err
		}

		ratio := sector.OccupancyRate(occupied)
		rate := pricing.Quote(sector.BasePrice, ratio)

		if err := p.store.Occupy(ctx, spot.ID, ev.LicensePlate); err != nil {
			if errors.Is(err, store.ErrSpotOccupied) {
				return fmt.Errorf("%w: spot %d was taken", ErrNoAvailableSpots, spot.ID)
			}
			return err
		}

		spotID := spot.ID
		rec = &model.ParkingEvent{
			LicensePlate:         ev.LicensePlate,
			SectorID:             sector.ID,
			Type:                 model.EventEntry,
			EntryTime:            &entryTime,
			SpotID:               &spotID,
			PriceApplied:         decimal.NewNullDecimal(rate),
			OccupancyRateAtEntry: &ratio,
			CreatedAt:            p.clock.Now(),
		}
		return p.store.AppendEvent(ctx, rec)
	})
	if err != nil {
		return nil, err
	}

	p.log.Info("vehicle entered",
		"plate", ev.LicensePlate,
		"sector", rec.SectorID,
		"spot", *rec.SpotID,
		"rate", rec.PriceApplied.Decimal.StringFixed(2),
		"occupancy", *rec.OccupancyRateAtEntry,
	)
	return rec, nil
}

// lockTargetSector picks the sector an ENTRY is admitted to and returns it
// locked. An explicit sector wins, then the configured default, then the
// lowest-id sector that still has room.
func (p *Processor) lockTargetSector(ctx context.Context, requested string) (string, func(), error) {
	target := requested
	if target == "" {
		target = p.defaultSector
	}
	if target != "" {
		if _, err := p.sector(ctx, target); err != nil {
			return "", nil, err
		}
		return target, p.locks.Sector(target), nil
	}

	sectors, err := p.store.Sectors(ctx)
	if err != nil {
		return "", nil, err
	}
	for _, s := range sectors {
		unlock := p.locks.Sector(s.ID)
		occupied, err := p.store.CountOccupied(ctx, s.ID)
		if err != nil {
			unlock()
			return "", nil, err
		}
		if !s.IsFull(occupied) {
			if _, err := p.store.FirstFreeSpot(ctx, s.ID); err == nil {
				return s.ID, unlock, nil
			} else if !errors.Is(err, store.ErrNotFound) {
				unlock()
				return "", nil, err
			}
		}
		unlock()
	}
	return "", nil, fmt.Errorf("%w: garage is full", ErrNoAvailableSpots)
}

func (p *Processor) processParked(ctx context.Context, ev Event) (*model.ParkingEvent, error) {
	unlockPlate := p.locks.Plate(ev.LicensePlate)
	defer unlockPlate()

	var rec *model.ParkingEvent
	err := p.store.WithTx(ctx, func(ctx context.Context) error {
		spot, err := p.store.SpotOf(ctx, ev.LicensePlate)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		} else if err != nil {
			return err
		}

		if ev.Lat != nil && ev.Lng != nil {
			if err := p.store.UpdateSpotLocation(ctx, spot.ID, *ev.Lat, *ev.Lng); err != nil {
				return err
			}
		}

		spotID := spot.ID
		rec = &model.ParkingEvent{
			LicensePlate: ev.LicensePlate,
			SectorID:     spot.SectorID,
			Type:         model.EventParked,
			SpotID:       &spotID,
			Latitude:     ev.Lat,
			Longitude:    ev.Lng,
			CreatedAt:    p.clock.Now(),
		}
		return p.store.AppendEvent(ctx, rec)
	})
	if err != nil {
		return nil, err
	}

	if rec == nil {
		p.log.Warn("no occupied spot for PARKED event", "plate", ev.LicensePlate)
		return nil, nil
	}
	p.log.Info("vehicle parked", "plate", ev.LicensePlate, "spot", *rec.SpotID, "lat", ev.Lat, "lng", ev.Lng)
	return rec, nil
}

func (p *Processor) processExit(ctx context.Context, ev Event) (*model.ParkingEvent, error) {
	unlockPlate := p.locks.Plate(ev.LicensePlate)
	defer unlockPlate()

	held, err := p.store.SpotOf(ctx, ev.LicensePlate)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: vehicle %s not found in parking", ErrVehicleNotParked, ev.LicensePlate)
	} else if err != nil {
		return nil, err
	}

	unlockSector := p.locks.Sector(held.SectorID)
	defer unlockSector()

	var (
		rec     *model.ParkingEvent
		minutes int64
	)
	err = p.store.WithTx(ctx, func(ctx context.Context) error {
		spot, err := p.store.SpotOf(ctx, ev.LicensePlate)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: vehicle %s not found in parking", ErrVehicleNotParked, ev.LicensePlate)
		} else if err != nil {
			return err
		}

		entry, err := p.store.LatestEntry(ctx, ev.LicensePlate)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: no entry event found for vehicle %s", ErrVehicleNotParked, ev.LicensePlate)
		} else if err != nil {
			return err
		}

		if entry.EntryTime == nil || ev.ExitTime == nil || ev.ExitTime.Before(*entry.EntryTime) {
			return fmt.Errorf("%w: invalid entry or exit time", ErrVehicleNotParked)
		}
		exitTime := ev.ExitTime.UTC()

		amount := pricing.Charge(*entry.EntryTime, exitTime, entry.PriceApplied.Decimal)
		minutes = int64(exitTime.Sub(*entry.EntryTime) / time.Minute)

		if err := p.store.Release(ctx, spot.ID); err != nil {
			return err
		}

		spotID := spot.ID
		rec = &model.ParkingEvent{
			LicensePlate:         ev.LicensePlate,
			SectorID:             spot.SectorID,
			Type:                 model.EventExit,
			EntryTime:            entry.EntryTime,
			ExitTime:             &exitTime,
			SpotID:               &spotID,
			PriceApplied:         entry.PriceApplied,
			OccupancyRateAtEntry: entry.OccupancyRateAtEntry,
			AmountCharged:        decimal.NewNullDecimal(amount),
			CreatedAt:            p.clock.Now(),
		}
		return p.store.AppendEvent(ctx, rec)
	})
	if err != nil {
		return nil, err
	}

	p.log.Info("vehicle exited",
		"plate", ev.LicensePlate,
		"sector", rec.SectorID,
		"spot", *rec.SpotID,
		"minutes", minutes,
		"amount", rec.AmountCharged.Decimal.StringFixed(2),
	)
	return rec, nil
}

// afterCommit runs the side effects of a written ledger row. None of them can
// fail the event.
func (p *Processor) afterCommit(ctx context.Context, rec *model.ParkingEvent) {
	switch rec.Type {
	case model.EventEntry:
		p.metrics.VehicleEntered()
		p.refreshOccupancy(ctx)
		p.invalidate(rec.SectorID, *rec.EntryTime)
	case model.EventExit:
		p.metrics.VehicleExited(rec.SectorID, rec.AmountCharged.Decimal)
		p.refreshOccupancy(ctx)
		p.invalidate(rec.SectorID, *rec.ExitTime)
		if p.notifier != nil {
			p.notifier.Dispatch(rec.SectorID)
		}
	}
}

func (p *Processor) refreshOccupancy(ctx context.Context) {
	if p.metrics == nil {
		return
	}
	bySector, err := p.store.OccupancyBySector(ctx)
	if err != nil {
		p.log.Warn("failed to update occupancy metrics", "err", err)
		return
	}
	p.metrics.SetOccupancy(bySector)
}

func (p *Processor) invalidate(sector string, at time.Time) {
	if p.invalidator == nil {
		return
	}
	day := at.In(p.loc)
	if err := p.invalidator.Invalidate(sector, day); err != nil {
		p.log.Error("revenue cache invalidation failed", "sector", sector, "date", day.Format(time.DateOnly), "err", err)
	}
}

func (p *Processor) sector(ctx context.Context, id string) (*model.Sector, error) {
	s, err := p.store.Sector(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSectorNotFound, id)
	}
	return s, err
}

func normalizeSector(s string) string {
	return strings.TrimSpace(s)
}
