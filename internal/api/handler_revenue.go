package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"parking-garage-backend/internal/parse"
	"parking-garage-backend/internal/revenue"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type revenueRequest struct {
	Date   string `json:"date" binding:"required"`
	Sector string `json:"sector"`
}

type revenueResponse struct {
	Amount    json.Number `json:"amount"`
	Currency  string      `json:"currency"`
	Timestamp time.Time   `json:"timestamp"`
}

func toRevenueResponse(r revenue.Revenue) revenueResponse {
	return revenueResponse{
		Amount:    json.Number(r.Amount.StringFixed(2)),
		Currency:  r.Currency,
		Timestamp: r.Timestamp.UTC(),
	}
}

// GetRevenue handles GET /revenue?date=YYYY-MM-DD&sector=A.
func (h *Handler) GetRevenue(c *gin.Context) {
	date, ok := c.GetQuery("date")
	if !ok || date == "" {
		h.writeError(c, http.StatusBadRequest, codeMissingParameter, "Required request parameter 'date' is not present")
		return
	}
	h.respondRevenue(c, revenueRequest{Date: date, Sector: c.Query("sector")})
}

// PostRevenue accepts the same query as a JSON body.
func (h *Handler) PostRevenue(c *gin.Context) {
	var req revenueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Validation failed for one or more fields")
		return
	}
	h.respondRevenue(c, req)
}

func (h *Handler) respondRevenue(c *gin.Context, req revenueRequest) {
	day, err := parse.Date(req.Date, h.location())
	if err != nil {
		h.badRequest(c, fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", req.Date))
		return
	}

	rev, err := h.revenue.CalculateRevenue(c.Request.Context(), strings.TrimSpace(req.Sector), day)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toRevenueResponse(rev))
}

// ExportRevenue streams the EXIT rows behind a revenue figure as a workbook.
func (h *Handler) ExportRevenue(c *gin.Context) {
	raw, ok := c.GetQuery("date")
	if !ok || raw == "" {
		h.writeError(c, http.StatusBadRequest, codeMissingParameter, "Required request parameter 'date' is not present")
		return
	}
	day, err := parse.Date(raw, h.location())
	if err != nil {
		h.badRequest(c, fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", raw))
		return
	}
	sector := strings.TrimSpace(c.Query("sector"))

	var buf bytes.Buffer
	if err := h.revenue.ExportExits(c.Request.Context(), sector, day, &buf); err != nil {
		h.fail(c, err)
		return
	}

	name := sector
	if name == "" {
		name = "all"
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="revenue_%s_%s.xlsx"`, name, day.Format(time.DateOnly)))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
