package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestMetrics_Record(t *testing.T) {
	m := New()

	m.EventProcessed("ENTRY", 15*time.Millisecond)
	m.EventProcessed("ENTRY", 20*time.Millisecond)
	m.EventFailed("EXIT", "VEHICLE_NOT_PARKED")
	m.VehicleEntered()
	m.VehicleExited("A", decimal.RequireFromString("18.00"))
	m.SetOccupancy(map[string]int64{"A": 3, "B": 2})

	body := scrape(t, m)
	assert.Contains(t, body, `parking_events_processed_total{event_type="ENTRY"} 2`)
	assert.Contains(t, body, `parking_events_failed_total{event_type="EXIT",reason="VEHICLE_NOT_PARKED"} 1`)
	assert.Contains(t, body, "parking_vehicles_entered_total 1")
	assert.Contains(t, body, "parking_vehicles_exited_total 1")
	assert.Contains(t, body, `parking_revenue_total{sector="A"} 18`)
	assert.Contains(t, body, "parking_occupied_spots 5")
	assert.Contains(t, body, `parking_sector_occupied_spots{sector="A"} 3`)
	assert.Contains(t, body, `parking_event_processing_seconds_count{event_type="ENTRY"} 2`)

	m.SetOccupancy(map[string]int64{"B": 1})
	body = scrape(t, m)
	assert.NotContains(t, body, `parking_sector_occupied_spots{sector="A"}`)
	assert.Contains(t, body, "parking_occupied_spots 1")
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.EventProcessed("ENTRY", time.Second)
		m.EventFailed("ENTRY", "x")
		m.VehicleEntered()
		m.VehicleExited("A", decimal.NewFromInt(1))
		m.SetOccupancy(map[string]int64{"A": 1})
	})
}
