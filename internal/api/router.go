package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"seating-backend/config"
	"seating-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(d Deps, cfg config.ServerConfig, adminKey string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), mw.Logger(d.Log), mw.CORS(cfg.AllowedOrigins))

	handler := NewHandler(d)

	rateLimiter := mw.RateLimiter(mw.NewClientRateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst, 10*time.Minute))

	// Events never change after seeding.
	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	caching := mw.Cache(cache.New(ttl, 2*ttl), ttl)

	r.GET("/healthz", handler.Health)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)

		events := api.Group("/events/:event_id")
		events.GET("", caching, handler.GetEvent)
		events.GET("/seats", handler.GetSeats)
		events.GET("/stream", handler.StreamSeats)

		res := events.Group("/reservations/:token")
		res.GET("", handler.GetReservation)
		res.POST("/seats/:seat_id/toggle", handler.ToggleSeat)
		res.PATCH("/seats/:seat_id", handler.UpdateSeat)
		res.PUT("/push", handler.PutPush)
		res.DELETE("/push", handler.DeletePush)

		admin := api.Group("/admin", mw.AdminKey(adminKey))
		admin.POST("/events", handler.CreateEvent)
		admin.POST("/events/:event_id/reservations", handler.IssueReservation)
		admin.GET("/events/:event_id/summary", handler.GetSummary)
	}

	return r
}
