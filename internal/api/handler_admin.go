package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetConsistencyReport reports plates that hold more than one spot.
func (h *Handler) GetConsistencyReport(c *gin.Context) {
	report, err := h.auditor.Report(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// PostCleanup releases duplicate spots and returns the report before and after.
func (h *Handler) PostCleanup(c *gin.Context) {
	result, err := h.auditor.Repair(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"before_cleanup":    result.Before,
		"after_cleanup":     result.After,
		"released_spots":    result.ReleasedSpots,
		"cleanup_completed": true,
	})
}
