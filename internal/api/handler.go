package api

import (
	"log/slog"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/patrickmn/go-cache"

	"parking-garage-backend/internal/clock"
	"parking-garage-backend/internal/garage"
	"parking-garage-backend/internal/metrics"
	"parking-garage-backend/internal/parking"
	"parking-garage-backend/internal/revenue"
	"parking-garage-backend/internal/store"
)

// Deps are the services the HTTP layer is built on.
type Deps struct {
	Store     store.Store
	Processor *parking.Processor
	Auditor   *parking.Auditor
	Revenue   *revenue.Service
	Loader    *garage.Loader
	Metrics   *metrics.Metrics
	WebPush   *webpush.Options
	Clock     clock.Clock
	Log       *slog.Logger
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store     store.Store
	processor *parking.Processor
	auditor   *parking.Auditor
	revenue   *revenue.Service
	loader    *garage.Loader
	metrics   *metrics.Metrics
	webpush   *webpush.Options
	clock     clock.Clock
	log       *slog.Logger
	started   time.Time

	// responses of the cached garage routes
	responses *cache.Cache
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	if d.Clock == nil {
		d.Clock = clock.NewSystem()
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}
	return &Handler{
		store:     d.Store,
		processor: d.Processor,
		auditor:   d.Auditor,
		revenue:   d.Revenue,
		loader:    d.Loader,
		metrics:   d.Metrics,
		webpush:   d.WebPush,
		clock:     d.Clock,
		log:       d.Log.With("component", "api"),
		started:   d.Clock.Now(),
	}
}

func (h *Handler) location() *time.Location {
	if h.revenue != nil {
		return h.revenue.Location()
	}
	return time.UTC
}
