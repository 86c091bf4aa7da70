package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
)

// Pinger is anything whose reachability gates readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthDeps lists what the health endpoints look at. Bus may be nil when
// no Redis is configured; Gauges are reported as-is.
type HealthDeps struct {
	Store   Pinger
	Bus     Pinger
	Clock   clockwork.Clock
	Version string
	Gauges  map[string]func() int
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	deps      HealthDeps
	startTime time.Time
}

func NewHealthHandler(deps HealthDeps) *HealthHandler {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	return &HealthHandler{deps: deps, startTime: deps.Clock.Now()}
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version,omitempty"`
	Uptime    string            `json:"uptime,omitempty"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
	Gauges    map[string]int    `json:"gauges,omitempty"`
}

// Liveness returns simple alive status (for k8s liveness probe)
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness fails only when the store is unreachable. A dead bus leaves
// clients on polling, so it is reported as degraded.
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{"store": probe(ctx, h.deps.Store, "unhealthy")}
	if h.deps.Bus != nil {
		checks["bus"] = probe(ctx, h.deps.Bus, "degraded")
	}

	gauges := make(map[string]int, len(h.deps.Gauges)+1)
	for name, read := range h.deps.Gauges {
		gauges[name] = read()
	}
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	gauges["memory_alloc_mb"] = int(m.Alloc >> 20)

	status, code := "healthy", http.StatusOK
	if checks["store"] != "healthy" {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	now := h.deps.Clock.Now()
	c.JSON(code, HealthResponse{
		Status:    status,
		Version:   h.deps.Version,
		Uptime:    now.Sub(h.startTime).Round(time.Second).String(),
		Timestamp: now.UTC().Format(time.RFC3339),
		Checks:    checks,
		Gauges:    gauges,
	})
}

// Health is a combined endpoint for basic health checks
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.deps.Store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  "store unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": h.deps.Version,
	})
}

func probe(ctx context.Context, p Pinger, failure string) string {
	if err := p.Ping(ctx); err != nil {
		return failure + ": " + err.Error()
	}
	return "healthy"
}
