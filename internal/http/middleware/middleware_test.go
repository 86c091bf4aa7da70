package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"rps_arena/internal/domain"
	"rps_arena/internal/service"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
)

func limited(max int, w time.Duration, key KeyFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/test", RateLimit("test", max, w, key), func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})
	return r
}

func hit(r http.Handler, header string) int {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimitInMemory(t *testing.T) {
	UseRedis(nil)
	r := limited(2, time.Minute, ByIP)
	for i := 0; i < 2; i++ {
		if code := hit(r, ""); code != 200 {
			t.Fatalf("request %d: %d", i, code)
		}
	}
	if code := hit(r, ""); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", code)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	UseRedis(nil)
	r := limited(0, time.Minute, ByIP)
	for i := 0; i < 5; i++ {
		if code := hit(r, ""); code != 200 {
			t.Fatalf("request %d: %d", i, code)
		}
	}
}

func TestJWT(t *testing.T) {
	service.InitJWT("test-secret", time.Hour)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/test", JWT(), func(c *gin.Context) {
		p, ok := PlayerFrom(c)
		if !ok {
			c.Status(500)
			return
		}
		c.String(200, string(p))
	})

	token, err := service.GenerateJWT("abcd")
	if err != nil {
		t.Fatalf("token: %v", err)
	}

	cases := []struct {
		header string
		want   int
	}{
		{"", http.StatusUnauthorized},
		{"Basic xyz", http.StatusUnauthorized},
		{"Bearer not-a-token", http.StatusUnauthorized},
		{"Bearer " + token, http.StatusOK},
	}
	for _, tc := range cases {
		if code := hit(r, tc.header); code != tc.want {
			t.Fatalf("%q: got %d want %d", tc.header, code, tc.want)
		}
	}
}

func TestByPlayerFallsBackToIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = "10.0.0.2:99"
	if got := ByPlayer(c); got != "ip:10.0.0.2" {
		t.Fatalf("anonymous key = %q", got)
	}
	c.Set(playerKey, domain.PlayerID("abcd"))
	if got := ByPlayer(c); got != "player:abcd" {
		t.Fatalf("player key = %q", got)
	}
}

// Integration-style test: runs only if REDIS_ADDR env is set.
func TestRedisRateLimitIntegration(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping integration test")
	}
	db := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			db = n
		}
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: os.Getenv("REDIS_PASSWORD"), DB: db})
	defer client.Close()
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("redis ping: %v", err)
	}
	UseRedis(client)
	defer UseRedis(nil)

	// unique identity so reruns inside the window do not collide
	ident := "it-" + strconv.FormatInt(time.Now().UnixNano(), 10)
	r := limited(2, 2*time.Second, func(*gin.Context) string { return ident })

	for i := 0; i < 2; i++ {
		if code := hit(r, ""); code != 200 {
			t.Fatalf("expected 200 got %d", code)
		}
	}
	if code := hit(r, ""); code != 429 {
		t.Fatalf("expected 429 got %d", code)
	}
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/id", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); len(got) != 36 {
		t.Fatalf("generated id = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Fatalf("echoed id = %q", got)
	}
}
