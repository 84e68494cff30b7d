package garage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"parking-garage-backend/config"
	"parking-garage-backend/internal/model"
	"parking-garage-backend/internal/store"
)

// ErrInvalidConfig is returned when a simulator payload cannot be loaded.
var ErrInvalidConfig = errors.New("invalid garage configuration")

// Loader bootstraps the garage catalog from the simulator.
type Loader struct {
	cfg    *config.GarageConfig
	store  store.Store
	client *http.Client
	log    *slog.Logger
}

// NewLoader creates a loader. An empty simulator URL skips straight to test data.
func NewLoader(cfg *config.GarageConfig, st store.Store, log *slog.Logger) *Loader {
	timeout := cfg.LoadTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Loader{
		cfg:    cfg,
		store:  st,
		client: &http.Client{Timeout: timeout},
		log:    log.With("component", "garage"),
	}
}

// Run loads the catalog once. Failures are logged; the service keeps running
// with whatever catalog is already stored.
func (l *Loader) Run(ctx context.Context) error {
	if err := l.Load(ctx); err != nil {
		l.log.Error("garage bootstrap failed", "err", err)
	}
	return nil
}

// Load fetches and stores the simulator configuration, falling back to test
// data when enabled.
func (l *Loader) Load(ctx context.Context) error {
	if l.cfg.SimulatorURL != "" {
		l.log.Info("loading garage configuration", "url", l.cfg.SimulatorURL)
		sc, err := l.Fetch(ctx)
		if err == nil {
			err = l.Apply(ctx, sc)
		}
		if err == nil {
			l.log.Info("garage configuration loaded", "sectors", len(sc.Garage), "spots", len(sc.Spots))
			return nil
		}
		if !l.cfg.TestDataFallback {
			return err
		}
		l.log.Warn("garage configuration unavailable, creating test data", "err", err)
	} else if !l.cfg.TestDataFallback {
		return fmt.Errorf("%w: no simulator url and test data disabled", ErrInvalidConfig)
	}

	_, err := l.LoadTestData(ctx)
	return err
}

// Fetch retrieves the configuration from the simulator.
func (l *Loader) Fetch(ctx context.Context) (*SimulatorConfig, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.cfg.SimulatorURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var sc SimulatorConfig
	if err := json.Unmarshal(body, &sc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &sc, nil
}

// Apply validates a simulator configuration and upserts it into the catalog.
func (l *Loader) Apply(ctx context.Context, sc *SimulatorConfig) error {
	sectors, spots, err := toModels(sc)
	if err != nil {
		return err
	}
	return l.store.LoadCatalog(ctx, sectors, spots)
}

func toModels(sc *SimulatorConfig) ([]model.Sector, []model.Spot, error) {
	if sc == nil || len(sc.Garage) == 0 {
		return nil, nil, fmt.Errorf("%w: no sectors", ErrInvalidConfig)
	}

	known := make(map[string]bool, len(sc.Garage))
	sectors := make([]model.Sector, 0, len(sc.Garage))
	for _, s := range sc.Garage {
		id := strings.TrimSpace(s.Sector)
		switch {
		case id == "":
			return nil, nil, fmt.Errorf("%w: sector without name", ErrInvalidConfig)
		case !s.BasePrice.IsPositive():
			return nil, nil, fmt.Errorf("%w: sector %s has non-positive base price", ErrInvalidConfig, id)
		case s.MaxCapacity <= 0:
			return nil, nil, fmt.Errorf("%w: sector %s has non-positive capacity", ErrInvalidConfig, id)
		}
		known[id] = true
		sectors = append(sectors, model.Sector{
			ID:          id,
			BasePrice:   s.BasePrice.Round(2),
			MaxCapacity: s.MaxCapacity,
		})
	}

	spots := make([]model.Spot, 0, len(sc.Spots))
	for _, sp := range sc.Spots {
		sector := strings.TrimSpace(sp.Sector)
		if !known[sector] {
			return nil, nil, fmt.Errorf("%w: spot %d references unknown sector %q", ErrInvalidConfig, sp.ID, sp.Sector)
		}
		spots = append(spots, model.Spot{
			ID:        sp.ID,
			SectorID:  sector,
			Latitude:  sp.Lat,
			Longitude: sp.Lng,
			Available: true,
		})
	}
	return sectors, spots, nil
}

// Test garage: four sectors of 100 spots around São Paulo's Praça da Sé.
var testSectors = []struct {
	id    string
	price string
}{
	{"A", "10.00"},
	{"B", "12.00"},
	{"C", "15.00"},
	{"D", "8.00"},
}

const (
	testSpotsPerSector = 100
	testOriginLat      = -23.5505
	testOriginLng      = -46.6333
)

// TestData returns the fallback garage used when no simulator is reachable.
func TestData() *SimulatorConfig {
	sc := &SimulatorConfig{}
	var id int64
	for si, s := range testSectors {
		sc.Garage = append(sc.Garage, SectorItem{
			Sector:      s.id,
			BasePrice:   decimal.RequireFromString(s.price),
			MaxCapacity: testSpotsPerSector,
		})
		for i := 0; i < testSpotsPerSector; i++ {
			id++
			sc.Spots = append(sc.Spots, SpotItem{
				ID:     id,
				Sector: s.id,
				Lat:    testOriginLat + float64(si)*0.001,
				Lng:    testOriginLng + float64(i%10)*0.0001 + float64(i/10)*0.00001,
			})
		}
	}
	return sc
}

// LoadTestData stores the test garage unless spots already exist. It reports
// whether anything was written.
func (l *Loader) LoadTestData(ctx context.Context) (bool, error) {
	counts, err := l.store.CountSpots(ctx)
	if err != nil {
		return false, err
	}
	if counts.Total > 0 {
		l.log.Info("spots already present, skipping test data", "spots", counts.Total)
		return false, nil
	}
	if err := l.Apply(ctx, TestData()); err != nil {
		return false, err
	}
	l.log.Info("test data created", "sectors", len(testSectors), "spots", len(testSectors)*testSpotsPerSector)
	return true, nil
}
