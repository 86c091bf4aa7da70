package integration

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"rps_arena/internal/domain"
	"rps_arena/internal/game"
	httpserver "rps_arena/internal/http"
	"rps_arena/internal/http/handlers"
	"rps_arena/internal/lobby"
	"rps_arena/internal/repository"
	"rps_arena/internal/service"
	"rps_arena/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	redis "github.com/redis/go-redis/v9"
)

func applyMigrationsToPool(t *testing.T, dbp *pgxpool.Pool) {
	t.Helper()
	migDir := filepath.Join("..", "..", "internal", "migrations")
	files, err := os.ReadDir(migDir)
	if err != nil {
		t.Fatalf("read migrations: %v", err)
	}
	for _, f := range files {
		b, err := os.ReadFile(filepath.Join(migDir, f.Name()))
		if err != nil {
			t.Fatalf("read file: %v", err)
		}
		if _, err := dbp.Exec(context.Background(), string(b)); err != nil {
			t.Fatalf("apply migration %s: %v", f.Name(), err)
		}
	}
}

type instance struct {
	svc *service.MatchService
	srv *httptest.Server
}

// startInstance runs one server process worth of wiring on a shared database and bus.
func startInstance(t *testing.T, ctx context.Context, dbp *pgxpool.Pool, rdb *redis.Client) *instance {
	t.Helper()
	clock := clockwork.NewRealClock()
	timing := game.Timing{CommitWindow: 30 * time.Second, RevealWindow: 30 * time.Second, PhaseBuffer: time.Second, NextRoundBuffer: time.Second}

	store := repository.NewPostgresStore(dbp)
	svc := service.NewMatchService(store, clock, timing, nil)
	hub := ws.NewHub(svc)
	svc.SetNotifier(hub)

	bus := ws.NewRedisBus(rdb, "rps:test:"+t.Name())
	hub.SetPublisher(bus)
	go bus.Run(ctx, hub.Remote)

	lb := lobby.New(svc, clock, time.Minute, domain.StakeTiers)
	h := handlers.NewHandler(svc, lb, clock, handlers.HandlerConfig{})
	health := handlers.NewHealthHandler(handlers.HealthDeps{Store: store, Bus: bus, Clock: clock, Version: "test"})

	gin.SetMode(gin.TestMode)
	r := gin.New()
	httpserver.RegisterRoutes(r, h, health, hub, httpserver.RouteConfig{})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &instance{svc: svc, srv: srv}
}

func TestE2E_PushAcrossInstances(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbp, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	defer dbp.Close()
	applyMigrationsToPool(t, dbp)

	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: os.Getenv("REDIS_PASSWORD")})
	defer rdb.Close()

	service.InitJWT("test-secret", time.Hour)
	a := startInstance(t, ctx, dbp, rdb)
	b := startInstance(t, ctx, dbp, rdb)
	// let both bus subscriptions settle
	time.Sleep(200 * time.Millisecond)

	p1 := domain.PlayerID("e2e-alice-" + time.Now().Format("150405.000000"))
	p2 := domain.PlayerID("e2e-bob-" + time.Now().Format("150405.000000"))
	m, err := a.svc.CreateMatch(ctx, p1, p2, domain.StakeSilver, 3)
	if err != nil {
		t.Fatalf("create match: %v", err)
	}

	// player 1 follows the match on instance B
	token, err := service.GenerateJWT(p1)
	if err != nil {
		t.Fatalf("gen token: %v", err)
	}
	wsURL := strings.Replace(b.srv.URL, "http", "ws", 1) + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// start a single reader goroutine per connection to avoid concurrent ReadMessage calls
	msgs := make(chan ws.Outbound, 16)
	go func() {
		defer close(msgs)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var out ws.Outbound
			if json.Unmarshal(raw, &out) == nil {
				msgs <- out
			}
		}
	}()
	waitFor := func(match func(ws.Outbound) bool) ws.Outbound {
		t.Helper()
		deadline := time.After(5 * time.Second)
		for {
			select {
			case out, ok := <-msgs:
				if !ok {
					t.Fatalf("connection closed")
				}
				if match(out) {
					return out
				}
			case <-deadline:
				t.Fatalf("timed out waiting for message")
			}
		}
	}

	if err := conn.WriteJSON(ws.Inbound{Type: ws.MsgSubscribe, MatchID: m.ID}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	waitFor(func(o ws.Outbound) bool { return o.Type == ws.MsgSubscribed })

	// player 2 acts through instance A
	salt := make([]byte, game.SaltSize)
	salt[0] = 7
	digest, _ := game.Commit(domain.MovePaper, salt)
	if err := a.svc.SubmitCommit(ctx, m.ID, 1, p2, digest); err != nil {
		t.Fatalf("commit: %v", err)
	}

	out := waitFor(func(o ws.Outbound) bool {
		return o.Type == ws.MsgSnapshot && len(o.Snapshot.Rounds) > 0 && o.Snapshot.Rounds[0].OpponentCommitted
	})
	if out.Snapshot.You != domain.Seat1 || out.Snapshot.Rounds[0].OpponentMove != "" {
		t.Fatalf("push = %+v", out.Snapshot)
	}
}
