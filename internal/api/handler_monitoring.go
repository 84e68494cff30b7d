package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"parking-garage-backend/internal/model"
)

const version = "1.0.0"

type parkingStatus struct {
	TotalSpots     int64  `json:"total_spots"`
	OccupiedSpots  int64  `json:"occupied_spots"`
	AvailableSpots int64  `json:"available_spots"`
	OccupancyRate  string `json:"occupancy_rate"`
}

type todayActivity struct {
	Date     string      `json:"date"`
	Entries  int64       `json:"entries"`
	Exits    int64       `json:"exits"`
	Revenue  json.Number `json:"revenue"`
	Currency string      `json:"currency"`
}

type dashboard struct {
	SystemStatus  gin.H         `json:"system_status"`
	ParkingStatus parkingStatus `json:"parking_status"`
	TodayActivity todayActivity `json:"today_activity"`
}

// GetDashboard summarizes occupancy and today's activity in the garage timezone.
func (h *Handler) GetDashboard(c *gin.Context) {
	ctx := c.Request.Context()
	now := h.clock.Now()

	counts, err := h.store.CountSpots(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}

	y, m, d := now.In(h.location()).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, h.location())
	end := start.AddDate(0, 0, 1)

	entries, err := h.store.CountEvents(ctx, model.EventEntry, start, end)
	if err != nil {
		h.fail(c, err)
		return
	}
	exits, err := h.store.CountEvents(ctx, model.EventExit, start, end)
	if err != nil {
		h.fail(c, err)
		return
	}
	rev, err := h.revenue.CalculateRevenue(ctx, "", start)
	if err != nil {
		h.fail(c, err)
		return
	}

	rate := 0.0
	if counts.Total > 0 {
		rate = float64(counts.Occupied) / float64(counts.Total) * 100
	}

	c.JSON(http.StatusOK, dashboard{
		SystemStatus: gin.H{
			"status":    "HEALTHY",
			"timestamp": now.UTC(),
			"uptime":    now.Sub(h.started).Truncate(time.Second).String(),
		},
		ParkingStatus: parkingStatus{
			TotalSpots:     counts.Total,
			OccupiedSpots:  counts.Occupied,
			AvailableSpots: counts.Free(),
			OccupancyRate:  fmt.Sprintf("%.2f%%", rate),
		},
		TodayActivity: todayActivity{
			Date:     start.Format(time.DateOnly),
			Entries:  entries,
			Exits:    exits,
			Revenue:  json.Number(rev.Amount.StringFixed(2)),
			Currency: rev.Currency,
		},
	})
}

// GetHealth checks the database and reports catalog sizes.
func (h *Handler) GetHealth(c *gin.Context) {
	ctx := c.Request.Context()
	now := h.clock.Now().UTC()

	down := func(err error) {
		h.log.Error("health check failed", "err", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "DOWN", "error": err.Error(), "timestamp": now})
	}

	sqlDB, err := h.store.DB().DB()
	if err != nil {
		down(err)
		return
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		down(err)
		return
	}
	sectors, err := h.store.Sectors(ctx)
	if err != nil {
		down(err)
		return
	}
	counts, err := h.store.CountSpots(ctx)
	if err != nil {
		down(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "UP",
		"timestamp": now,
		"database": gin.H{
			"status":  "UP",
			"sectors": len(sectors),
			"spots":   counts.Total,
		},
		"application": gin.H{
			"status":  "UP",
			"version": version,
			"uptime":  now.Sub(h.started).Truncate(time.Second).String(),
		},
	})
}

// GetMetrics serves the Prometheus registry.
func (h *Handler) GetMetrics(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusNotFound)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}
