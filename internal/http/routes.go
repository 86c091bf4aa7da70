package http

import (
	"time"

	"rps_arena/internal/http/handlers"
	"rps_arena/internal/http/middleware"
	"rps_arena/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouteConfig carries the per-route limits and the websocket origin policy.
type RouteConfig struct {
	AllowedOrigin string

	APIRateLimit     int
	APIRateWindow    time.Duration
	AuthRateLimit    int
	AuthRateWindow   time.Duration
	ActionRateLimit  int
	ActionRateWindow time.Duration
}

func RegisterRoutes(r *gin.Engine, h *handlers.Handler, health *handlers.HealthHandler, hub *ws.Hub, cfg RouteConfig) {
	r.Use(middleware.RequestID(), middleware.Metrics())

	// Health checks (no rate limiting)
	r.GET("/health", health.Health)
	r.GET("/healthz", health.Liveness)
	r.GET("/readyz", health.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes
	v1 := r.Group("/api/v1")
	v1.Use(middleware.RateLimit("api", cfg.APIRateLimit, cfg.APIRateWindow, middleware.ByIP))
	registerAPIRoutes(v1, h, cfg)

	// WebSocket push + heartbeats
	r.GET("/ws", ws.HandleWS(hub, cfg.AllowedOrigin))
}

func registerAPIRoutes(api *gin.RouterGroup, h *handlers.Handler, cfg RouteConfig) {
	// Auth
	api.POST("/auth", middleware.RateLimit("auth", cfg.AuthRateLimit, cfg.AuthRateWindow, middleware.ByIP), h.Auth)

	authed := api.Group("")
	authed.Use(middleware.JWT())

	// Player
	authed.GET("/me", h.Me)
	authed.GET("/me/matches", h.MyMatches)

	// Lobby
	authed.POST("/queue", h.JoinQueue)
	authed.GET("/queue", h.QueueStatus)
	authed.DELETE("/queue", h.LeaveQueue)

	// Action rate limiter middleware (per player, not per IP)
	actionRL := middleware.RateLimit("action", cfg.ActionRateLimit, cfg.ActionRateWindow, middleware.ByPlayer)

	matches := authed.Group("/matches/:id")
	{
		matches.GET("", h.GetMatch)
		matches.POST("/heartbeat", h.Heartbeat)
		matches.POST("/rounds/:n/commit", actionRL, h.Commit)
		matches.POST("/rounds/:n/reveal", actionRL, h.Reveal)
		matches.GET("/result", h.Result)
		matches.POST("/signature", actionRL, h.Signature)
		matches.GET("/settlement", h.Settlement)
	}
}
