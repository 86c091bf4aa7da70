package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"rps_arena/internal/domain"
	"rps_arena/internal/metrics"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
)

var redisClient *redis.Client

// UseRedis makes every limiter count in Redis, shared by all instances. Without it each
// instance counts in memory.
func UseRedis(client *redis.Client) {
	redisClient = client
}

// KeyFunc picks the identity a limiter counts against.
type KeyFunc func(c *gin.Context) string

// ByIP counts per client address.
func ByIP(c *gin.Context) string {
	return "ip:" + c.ClientIP()
}

// ByPlayer counts per authenticated player. Requires JWT() to run first.
func ByPlayer(c *gin.Context) string {
	if p, ok := PlayerFrom(c); ok {
		return "player:" + string(p)
	}
	return ByIP(c)
}

type window struct {
	start time.Time
	count int
}

type memoryCounter struct {
	mu      sync.Mutex
	windows map[string]*window
}

func (m *memoryCounter) incr(key string, per time.Duration, now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[key]
	if !ok || now.Sub(w.start) > per {
		// drop stale windows while we hold the lock
		for k, old := range m.windows {
			if now.Sub(old.start) > per {
				delete(m.windows, k)
			}
		}
		w = &window{start: now}
		m.windows[key] = w
	}
	w.count++
	return w.count
}

// RateLimit is a fixed-window limiter using Redis INCR/EXPIRE, keyed by key.
// key format: rl:<name>:<window_seconds>:<identity>
// Redis errors fail open.
func RateLimit(name string, maxRequests int, per time.Duration, key KeyFunc) gin.HandlerFunc {
	local := &memoryCounter{windows: make(map[string]*window)}
	prefix := "rl:" + name + ":" + strconv.FormatInt(int64(per.Seconds()), 10) + ":"

	return func(c *gin.Context) {
		if maxRequests <= 0 {
			c.Next()
			return
		}
		ident := key(c)

		var count int64
		if redisClient != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
			val, err := redisClient.Incr(ctx, prefix+ident).Result()
			if err == nil && val == 1 {
				redisClient.Expire(ctx, prefix+ident, per)
			}
			cancel()
			if err != nil {
				c.Header("X-RateLimit-Error", "redis-error")
				c.Next()
				return
			}
			count = val
		} else {
			count = int64(local.incr(ident, per, time.Now()))
		}

		if count > int64(maxRequests) {
			metrics.RLBlocked.WithLabelValues(c.FullPath()).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited", "message": "rate limit exceeded"})
			return
		}

		metrics.RLRequests.WithLabelValues(c.FullPath()).Inc()
		c.Next()
	}
}

// playerKey is the gin context key JWT() stores the caller under.
const playerKey = "player"

// PlayerFrom returns the authenticated caller.
func PlayerFrom(c *gin.Context) (domain.PlayerID, bool) {
	v, ok := c.Get(playerKey)
	if !ok {
		return "", false
	}
	p, ok := v.(domain.PlayerID)
	return p, ok && p != ""
}
