package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"parking-garage-backend/config"
	"parking-garage-backend/internal/api"
	"parking-garage-backend/internal/clock"
	"parking-garage-backend/internal/db"
	"parking-garage-backend/internal/garage"
	logpkg "parking-garage-backend/internal/logger"
	"parking-garage-backend/internal/metrics"
	"parking-garage-backend/internal/parking"
	"parking-garage-backend/internal/revenue"
	"parking-garage-backend/internal/store"
)

const simulatorGarage = `{
  "garage": [
    {"sector": "A", "basePrice": 10.0, "max_capacity": 5},
    {"sector": "B", "basePrice": 4.1, "max_capacity": 2}
  ],
  "spots": [
    {"id": 1, "sector": "A", "lat": -23.561684, "lng": -46.655981},
    {"id": 2, "sector": "A", "lat": -23.561664, "lng": -46.655961},
    {"id": 3, "sector": "A", "lat": -23.561644, "lng": -46.655941},
    {"id": 4, "sector": "A", "lat": -23.561624, "lng": -46.655921},
    {"id": 5, "sector": "A", "lat": -23.561604, "lng": -46.655901},
    {"id": 6, "sector": "B", "lat": -23.561584, "lng": -46.655881},
    {"id": 7, "sector": "B", "lat": -23.561564, "lng": -46.655861}
  ]
}`

// startGarage wires the service the way main does, against an in-memory
// database and a fake simulator, and serves it over real HTTP.
func startGarage(t *testing.T) (*httptest.Server, store.Store) {
	gin.SetMode(gin.TestMode)

	// 1. In-memory database with the full schema.
	testDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := testDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(testDB))
	st := store.NewGormStore(testDB)

	// 2. Simulator serving the garage configuration.
	simulator := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, simulatorGarage)
	}))
	t.Cleanup(simulator.Close)

	cfg := &config.Config{
		Server: config.ServerConfig{RateLimitPerSec: 1000, RateLimitBurst: 1000, CacheTTLSeconds: 60},
		Garage: config.GarageConfig{SimulatorURL: simulator.URL, LoadTimeout: time.Second, Location: time.UTC},
	}

	// 3. Services.
	log := logpkg.Discard()
	clk := clock.NewFixed(time.Date(2025, 1, 1, 18, 0, 0, 0, time.UTC))
	locks := parking.NewLocks()
	rev := revenue.NewService(st, cfg.Garage.Location, "BRL", time.Minute, clk, log)
	processor := parking.NewProcessor(st,
		parking.WithClock(clk),
		parking.WithLocation(cfg.Garage.Location),
		parking.WithLocks(locks),
		parking.WithMetrics(metrics.New()),
		parking.WithInvalidator(rev),
		parking.WithLogger(log),
	)
	loader := garage.NewLoader(&cfg.Garage, st, log)
	require.NoError(t, loader.Load(context.Background()))

	handler := api.NewHandler(api.Deps{
		Store:     st,
		Processor: processor,
		Auditor:   parking.NewAuditor(st, locks, log),
		Revenue:   rev,
		Loader:    loader,
		Clock:     clk,
		Log:       log,
	})
	server := httptest.NewServer(api.NewRouter(handler, cfg.Server))
	t.Cleanup(server.Close)
	return server, st
}

func sendEvent(baseURL string, event map[string]any) (int, string, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return 0, "", err
	}
	resp, err := http.Post(baseURL+"/webhook", "application/json", bytes.NewReader(payload))
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body), err
}

func postEvent(t *testing.T, baseURL string, event map[string]any) (int, string) {
	status, body, err := sendEvent(baseURL, event)
	require.NoError(t, err)
	return status, body
}

func getRevenue(t *testing.T, baseURL, sector string) string {
	resp, err := http.Get(fmt.Sprintf("%s/revenue?date=2025-01-01&sector=%s", baseURL, sector))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Amount json.Number `json:"amount"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Amount.String()
}

// TestParkingDay drives a day of traffic through the webhook and checks the
// spots and revenue that come out of it.
func TestParkingDay(t *testing.T) {
	server, st := startGarage(t)
	ctx := context.Background()

	t.Run("Vehicle enters, parks and leaves", func(t *testing.T) {
		status, body := postEvent(t, server.URL, map[string]any{
			"license_plate": "ZUL0001", "event_type": "ENTRY", "entry_time": "2025-01-01T12:00:00.000Z", "sector": "A",
		})
		require.Equal(t, http.StatusOK, status, body)

		status, _ = postEvent(t, server.URL, map[string]any{
			"license_plate": "ZUL0001", "event_type": "PARKED", "lat": -23.561684, "lng": -46.655981,
		})
		require.Equal(t, http.StatusOK, status)

		spot, err := st.SpotOf(ctx, "ZUL0001")
		require.NoError(t, err)
		assert.Equal(t, "A", spot.SectorID)

		status, _ = postEvent(t, server.URL, map[string]any{
			"license_plate": "ZUL0001", "event_type": "EXIT", "exit_time": "2025-01-01T13:35:00.000Z",
		})
		require.Equal(t, http.StatusOK, status)

		_, err = st.SpotOf(ctx, "ZUL0001")
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.Equal(t, "18.00", getRevenue(t, server.URL, "A"))
	})

	t.Run("Exit is billed at the rate locked in at entry", func(t *testing.T) {
		// Sector B: 4.10 base, first car at 0% gets 3.69, second at 50% gets 4.51.
		for i, plate := range []string{"AAA1A11", "BBB2B22"} {
			status, body := postEvent(t, server.URL, map[string]any{
				"license_plate": plate, "event_type": "ENTRY", "entry_time": fmt.Sprintf("2025-01-01T08:0%d:00Z", i), "sector": "B",
			})
			require.Equal(t, http.StatusOK, status, body)
		}

		status, body := postEvent(t, server.URL, map[string]any{
			"license_plate": "CCC3C33", "event_type": "ENTRY", "entry_time": "2025-01-01T08:05:00Z", "sector": "B",
		})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Contains(t, body, parking.CodeNoAvailableSpots)

		// Two and a half hours after the grace period: 3 billable hours each.
		for _, plate := range []string{"AAA1A11", "BBB2B22"} {
			status, body := postEvent(t, server.URL, map[string]any{
				"license_plate": plate, "event_type": "EXIT", "exit_time": "2025-01-01T11:00:00Z",
			})
			require.Equal(t, http.StatusOK, status, body)
		}
		// 3*3.69 + 3*4.51 = 11.07 + 13.53
		assert.Equal(t, "24.60", getRevenue(t, server.URL, "B"))
		assert.Equal(t, "0.00", getRevenue(t, server.URL, "Z"))
	})
}

// TestConcurrentEntriesFillSectorExactly sends more cars than spots at once.
func TestConcurrentEntriesFillSectorExactly(t *testing.T) {
	server, st := startGarage(t)

	const cars = 12
	statuses := make([]int, cars)
	errs := make([]error, cars)
	var wg sync.WaitGroup
	for i := 0; i < cars; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			statuses[i], _, errs[i] = sendEvent(server.URL, map[string]any{
				"license_plate": fmt.Sprintf("CAR%04d", i),
				"event_type":    "ENTRY",
				"entry_time":    "2025-01-01T09:00:00Z",
				"sector":        "A",
			})
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	admitted := 0
	for _, s := range statuses {
		if s == http.StatusOK {
			admitted++
		} else {
			assert.Equal(t, http.StatusBadRequest, s)
		}
	}
	assert.Equal(t, 5, admitted)

	occupied, err := st.CountOccupied(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, int64(5), occupied)

	plates, err := st.PlatesWithMultipleSpots(context.Background())
	require.NoError(t, err)
	assert.Empty(t, plates)
}
