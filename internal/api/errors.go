package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"parking-garage-backend/internal/mw"
	"parking-garage-backend/internal/parking"
)

const (
	codeMissingParameter = "MISSING_PARAMETER"
	codeNotFound         = "NOT_FOUND"
)

var statusByCode = map[string]int{
	parking.CodeNoAvailableSpots:     http.StatusBadRequest,
	parking.CodeVehicleNotParked:     http.StatusBadRequest,
	parking.CodeSectorNotFound:       http.StatusNotFound,
	parking.CodeVehicleAlreadyParked: http.StatusConflict,
	parking.CodeValidation:           http.StatusBadRequest,
	parking.CodeInternal:             http.StatusInternalServerError,
}

type errorResponse struct {
	Status    int    `json:"status"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	Path      string `json:"path"`
	Timestamp string `json:"timestamp"`
}

func (h *Handler) writeError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, errorResponse{
		Status:    status,
		Error:     code,
		Message:   msg,
		Path:      c.Request.URL.Path,
		Timestamp: h.clock.Now().UTC().Format(mw.TimestampLayout),
	})
}

// fail maps a service error to its HTTP status. Internal errors are logged
// and never shown to the caller.
func (h *Handler) fail(c *gin.Context, err error) {
	code := parking.Code(err)
	status := statusByCode[code]
	if code == parking.CodeInternal {
		h.log.Error("request failed", "path", c.Request.URL.Path, "request_id", mw.GetRequestID(c), "err", err)
		h.writeError(c, status, code, "An unexpected error occurred")
		return
	}
	h.writeError(c, status, code, err.Error())
}

func (h *Handler) badRequest(c *gin.Context, msg string) {
	h.writeError(c, http.StatusBadRequest, parking.CodeValidation, msg)
}
