package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"parking-garage-backend/internal/model"
	"parking-garage-backend/internal/parking"
	"parking-garage-backend/internal/parse"
)

type webhookRequest struct {
	LicensePlate string   `json:"license_plate" binding:"required"`
	EventType    string   `json:"event_type" binding:"required"`
	EntryTime    string   `json:"entry_time"`
	ExitTime     string   `json:"exit_time"`
	Lat          *float64 `json:"lat"`
	Lng          *float64 `json:"lng"`
	Sector       string   `json:"sector"`
}

func (r webhookRequest) toEvent(loc *time.Location) (parking.Event, error) {
	plate, err := parse.Plate(r.LicensePlate)
	if err != nil {
		return parking.Event{}, fmt.Errorf("%w: %v", parking.ErrInvalidEvent, err)
	}
	eventType, err := model.ParseEventType(r.EventType)
	if err != nil {
		return parking.Event{}, fmt.Errorf("%w: %v", parking.ErrUnknownEventType, err)
	}
	entry, err := parse.Timestamp(r.EntryTime, loc)
	if err != nil {
		return parking.Event{}, fmt.Errorf("%w: entry_time: %v", parking.ErrInvalidEvent, err)
	}
	exit, err := parse.Timestamp(r.ExitTime, loc)
	if err != nil {
		return parking.Event{}, fmt.Errorf("%w: exit_time: %v", parking.ErrInvalidEvent, err)
	}
	return parking.Event{
		LicensePlate: plate,
		Type:         eventType,
		Sector:       r.Sector,
		EntryTime:    entry,
		ExitTime:     exit,
		Lat:          r.Lat,
		Lng:          r.Lng,
	}, nil
}

// PostWebhook receives ENTRY, PARKED and EXIT notifications from the garage.
func (h *Handler) PostWebhook(c *gin.Context) {
	var req webhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Validation failed for one or more fields")
		return
	}

	ev, err := req.toEvent(h.location())
	if err != nil {
		h.fail(c, err)
		return
	}

	h.log.Info("received webhook event", "plate", ev.LicensePlate, "type", ev.Type, "sector", ev.Sector)
	if _, err := h.processor.ProcessEvent(c.Request.Context(), ev); err != nil {
		h.fail(c, err)
		return
	}

	c.String(http.StatusOK, "Event processed successfully")
}

// GetWebhookHealth is a liveness probe for the simulator.
func (h *Handler) GetWebhookHealth(c *gin.Context) {
	c.String(http.StatusOK, "Webhook endpoint is healthy")
}
