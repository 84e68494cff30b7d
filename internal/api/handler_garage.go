package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"parking-garage-backend/internal/garage"
	"parking-garage-backend/internal/model"
	"parking-garage-backend/internal/store"
)

type sectorView struct {
	Sector        string          `json:"sector"`
	BasePrice     decimal.Decimal `json:"base_price"`
	MaxCapacity   int             `json:"max_capacity"`
	OccupiedSpots int64           `json:"occupied_spots"`
	OccupancyRate float64         `json:"occupancy_rate"`
}

func newSectorView(s model.Sector, occupied int64) sectorView {
	return sectorView{
		Sector:        s.ID,
		BasePrice:     s.BasePrice,
		MaxCapacity:   s.MaxCapacity,
		OccupiedSpots: occupied,
		OccupancyRate: s.OccupancyRate(occupied),
	}
}

// GetGarage returns the catalog in the simulator's format.
func (h *Handler) GetGarage(c *gin.Context) {
	ctx := c.Request.Context()
	sectors, err := h.store.Sectors(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	spots, err := h.store.Spots(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, garage.FromModels(sectors, spots))
}

// GetSectors lists sectors with their live occupancy.
func (h *Handler) GetSectors(c *gin.Context) {
	ctx := c.Request.Context()
	sectors, err := h.store.Sectors(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	occupied, err := h.store.OccupancyBySector(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}

	views := make([]sectorView, 0, len(sectors))
	for _, s := range sectors {
		views = append(views, newSectorView(s, occupied[s.ID]))
	}
	c.JSON(http.StatusOK, views)
}

// GetSector returns one sector.
func (h *Handler) GetSector(c *gin.Context) {
	ctx := c.Request.Context()
	id := strings.TrimSpace(c.Param("sector"))

	sector, err := h.store.Sector(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		h.writeError(c, http.StatusNotFound, codeNotFound, fmt.Sprintf("sector %s not found", id))
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	occupied, err := h.store.CountOccupied(ctx, sector.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newSectorView(*sector, occupied))
}

// GetSpots lists every spot.
func (h *Handler) GetSpots(c *gin.Context) {
	spots, err := h.store.Spots(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, spots)
}

// GetSpotsBySector lists the spots of one sector. Unknown sectors yield an
// empty list.
func (h *Handler) GetSpotsBySector(c *gin.Context) {
	spots, err := h.store.SpotsBySector(c.Request.Context(), strings.TrimSpace(c.Param("sector")))
	if err != nil {
		h.fail(c, err)
		return
	}
	if spots == nil {
		spots = []model.Spot{}
	}
	c.JSON(http.StatusOK, spots)
}

// GetGarageStatus renders occupancy per sector as plain text.
func (h *Handler) GetGarageStatus(c *gin.Context) {
	ctx := c.Request.Context()
	sectors, err := h.store.Sectors(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	occupied, err := h.store.OccupancyBySector(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}

	var b strings.Builder
	b.WriteString("Garage Status:\n")
	for _, s := range sectors {
		n := occupied[s.ID]
		fmt.Fprintf(&b, "Sector %s: %d/%d spots occupied (%.1f%%)\n", s.ID, n, s.MaxCapacity, s.OccupancyRate(n)*100)
	}
	c.String(http.StatusOK, b.String())
}

// PostInitTestData creates the fallback garage when the catalog is empty.
func (h *Handler) PostInitTestData(c *gin.Context) {
	created, err := h.loader.LoadTestData(c.Request.Context())
	if err != nil {
		h.log.Error("error initializing test data", "err", err)
		c.String(http.StatusInternalServerError, "Error initializing test data")
		return
	}
	if !created {
		c.String(http.StatusOK, "Test data already present")
		return
	}
	if h.responses != nil {
		h.responses.Flush()
	}
	c.String(http.StatusOK, "Test data initialized successfully")
}
