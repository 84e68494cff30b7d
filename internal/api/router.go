package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"parking-garage-backend/config"
	"parking-garage-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg config.ServerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), mw.RequestID(), mw.RequestLogger(h.log))

	// Per-IP limit for the query endpoints. The webhook is not limited: the
	// garage must be able to deliver bursts of events.
	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst, h.clock)

	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	h.responses = cache.New(ttl, 2*ttl)
	caching := mw.Cache(h.responses, ttl)

	webhook := r.Group("/webhook")
	{
		webhook.POST("", h.PostWebhook)
		webhook.GET("/health", h.GetWebhookHealth)
	}

	revenue := r.Group("/revenue")
	revenue.Use(rateLimiter)
	{
		revenue.GET("", h.GetRevenue)
		revenue.POST("", h.PostRevenue)
		revenue.GET("/export", h.ExportRevenue)
	}

	garage := r.Group("/garage")
	garage.Use(rateLimiter)
	{
		// The catalog only changes on reload, so it is served from memory.
		garage.GET("", caching, h.GetGarage)
		garage.GET("/sectors", h.GetSectors)
		garage.GET("/sectors/:sector", h.GetSector)
		garage.GET("/spots", h.GetSpots)
		garage.GET("/spots/sector/:sector", h.GetSpotsBySector)
		garage.GET("/status", h.GetGarageStatus)
		garage.POST("/init-test-data", h.PostInitTestData)
	}

	admin := r.Group("/admin")
	{
		admin.GET("/parking/consistency-report", h.GetConsistencyReport)
		admin.POST("/parking/cleanup", h.PostCleanup)
	}

	monitoring := r.Group("/monitoring")
	{
		monitoring.GET("/dashboard", h.GetDashboard)
		monitoring.GET("/health", h.GetHealth)
	}
	r.GET("/metrics", h.GetMetrics)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
