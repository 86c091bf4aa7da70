package http

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rps_arena/internal/crypto"
	"rps_arena/internal/domain"
	"rps_arena/internal/game"
	"rps_arena/internal/http/handlers"
	"rps_arena/internal/lobby"
	"rps_arena/internal/repository"
	"rps_arena/internal/service"
	"rps_arena/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
)

type testPlayer struct {
	priv  crypto.PrivateKey
	pub   crypto.PublicKey
	token string
}

type testServer struct {
	t      *testing.T
	router *gin.Engine
	clock  *clockwork.FakeClock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	service.InitJWT("test-secret", time.Hour)

	store, err := repository.NewMemLevelStore()
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	timing := game.Timing{CommitWindow: 10 * time.Second, RevealWindow: 10 * time.Second, PhaseBuffer: 2 * time.Second, NextRoundBuffer: time.Second}
	svc := service.NewMatchService(store, clock, timing, nil)
	hub := ws.NewHub(svc)
	svc.SetNotifier(hub)
	lb := lobby.New(svc, clock, time.Minute, domain.StakeTiers)

	h := handlers.NewHandler(svc, lb, clock, handlers.HandlerConfig{AuthMaxSkew: time.Minute})
	health := handlers.NewHealthHandler(handlers.HealthDeps{
		Store:   store,
		Clock:   clock,
		Version: "test",
		Gauges:  map[string]func() int{"lobby_waiting": lb.Waiting},
	})

	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, h, health, hub, RouteConfig{})
	return &testServer{t: t, router: r, clock: clock}
}

func (s *testServer) do(method, path, token string, body any) (int, map[string]any) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			s.t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			s.t.Fatalf("%s %s: decode %q: %v", method, path, w.Body.String(), err)
		}
	}
	return w.Code, out
}

func (s *testServer) expect(want int, method, path, token string, body any) map[string]any {
	s.t.Helper()
	code, out := s.do(method, path, token, body)
	if code != want {
		s.t.Fatalf("%s %s: status %d want %d: %v", method, path, code, want, out)
	}
	return out
}

func (s *testServer) login() *testPlayer {
	s.t.Helper()
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		s.t.Fatal(err)
	}
	ts := s.clock.Now().Unix()
	out := s.expect(http.StatusOK, http.MethodPost, "/api/v1/auth", "", gin.H{
		"public_key": pub.Hex(),
		"timestamp":  ts,
		"signature":  crypto.Sign(priv, service.AuthMessage(pub.Hex(), ts)),
	})
	if out["player"] != pub.Hex() {
		s.t.Fatalf("auth player = %v", out["player"])
	}
	return &testPlayer{priv: priv, pub: pub, token: out["token"].(string)}
}

func salt(b byte) []byte {
	s := make([]byte, game.SaltSize)
	for i := range s {
		s[i] = b + byte(i)
	}
	return s
}

func TestFullMatchOverHTTP(t *testing.T) {
	s := newTestServer(t)
	a, b, outsider := s.login(), s.login(), s.login()

	// unauthenticated
	s.expect(http.StatusUnauthorized, http.MethodGet, "/api/v1/me", "", nil)

	// pairing
	out := s.expect(http.StatusOK, http.MethodPost, "/api/v1/queue", a.token, gin.H{"stake": "gold", "best_of": 1})
	if out["status"] != "waiting" {
		t.Fatalf("a queue = %v", out)
	}
	out = s.expect(http.StatusOK, http.MethodPost, "/api/v1/queue", b.token, gin.H{"stake": "gold", "best_of": 1})
	if out["status"] != "matched" {
		t.Fatalf("b queue = %v", out)
	}
	id := out["match_id"].(string)
	if st := s.expect(http.StatusOK, http.MethodGet, "/api/v1/queue", a.token, nil); st["match_id"] != id {
		t.Fatalf("a queue status = %v", st)
	}

	base := "/api/v1/matches/" + id
	snap := s.expect(http.StatusOK, http.MethodGet, base, a.token, nil)
	if snap["action_needed"] != "commit" || snap["you"].(float64) != 1 {
		t.Fatalf("snapshot = %v", snap)
	}

	// access control and input errors
	if out := s.expect(http.StatusForbidden, http.MethodGet, base, outsider.token, nil); out["error"] != "forbidden" {
		t.Fatalf("outsider = %v", out)
	}
	s.expect(http.StatusNotFound, http.MethodGet, "/api/v1/matches/nope", a.token, nil)
	s.expect(http.StatusBadRequest, http.MethodPost, base+"/rounds/x/commit", a.token, gin.H{"digest": "00"})
	s.expect(http.StatusBadRequest, http.MethodPost, base+"/rounds/1/commit", a.token, gin.H{"digest": "zz"})
	s.expect(http.StatusBadRequest, http.MethodPost, base+"/rounds/1/commit", a.token, gin.H{"digest": hex.EncodeToString(make([]byte, 32))})

	// round 1: rock beats scissors
	da, _ := game.Commit(domain.MoveRock, salt(1))
	db, _ := game.Commit(domain.MoveScissors, salt(2))
	s.expect(http.StatusOK, http.MethodPost, base+"/rounds/1/commit", a.token, gin.H{"digest": hex.EncodeToString(da)})
	if out := s.expect(http.StatusConflict, http.MethodPost, base+"/rounds/1/commit", a.token, gin.H{"digest": hex.EncodeToString(db)}); out["error"] != "already_committed" {
		t.Fatalf("second commit = %v", out)
	}
	s.expect(http.StatusOK, http.MethodPost, base+"/rounds/1/commit", b.token, gin.H{"digest": "0x" + hex.EncodeToString(db)})

	if out := s.expect(http.StatusUnprocessableEntity, http.MethodPost, base+"/rounds/1/reveal", a.token, gin.H{"move": "paper", "salt": hex.EncodeToString(salt(1))}); out["error"] != "commit_mismatch" {
		t.Fatalf("mismatched reveal = %v", out)
	}
	s.expect(http.StatusOK, http.MethodPost, base+"/rounds/1/reveal", a.token, gin.H{"move": "rock", "salt": hex.EncodeToString(salt(1))})

	// settlement is not ready before the match is decided
	if out := s.expect(http.StatusConflict, http.MethodGet, base+"/result", a.token, nil); out["error"] != "not_ready" {
		t.Fatalf("early result = %v", out)
	}

	snap = s.expect(http.StatusOK, http.MethodPost, base+"/rounds/1/reveal", b.token, gin.H{"move": "3", "salt": hex.EncodeToString(salt(2))})
	if snap["status"] != "decided" || snap["winner"] != a.pub.Hex() || snap["action_needed"] != "sign" {
		t.Fatalf("after reveal = %v", snap)
	}

	// result record and signatures
	res := s.expect(http.StatusOK, http.MethodGet, base+"/result", b.token, nil)
	digest, err := hex.DecodeString(res["digest"].(string))
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	s.expect(http.StatusConflict, http.MethodGet, base+"/settlement", a.token, nil)

	if out := s.expect(http.StatusUnprocessableEntity, http.MethodPost, base+"/signature", a.token, gin.H{"signature": crypto.Sign(b.priv, digest)}); out["error"] != "invalid_signature" {
		t.Fatalf("foreign signature = %v", out)
	}
	out = s.expect(http.StatusOK, http.MethodPost, base+"/signature", a.token, gin.H{"signature": crypto.Sign(a.priv, digest)})
	if out["has_both_signatures"] != false {
		t.Fatalf("first signature = %v", out)
	}
	out = s.expect(http.StatusOK, http.MethodPost, base+"/signature", b.token, gin.H{"signature": crypto.Sign(b.priv, digest)})
	if out["has_both_signatures"] != true || out["settlement_payload"] == nil {
		t.Fatalf("second signature = %v", out)
	}

	payload := s.expect(http.StatusOK, http.MethodGet, base+"/settlement", a.token, nil)
	if payload["digest"] != res["digest"] {
		t.Fatalf("payload digest %v != %v", payload["digest"], res["digest"])
	}
	if snap := s.expect(http.StatusOK, http.MethodGet, base, a.token, nil); snap["status"] != "settled" {
		t.Fatalf("final status = %v", snap["status"])
	}

	list := s.expect(http.StatusOK, http.MethodGet, "/api/v1/me/matches?limit=5", b.token, nil)
	if ms := list["matches"].([]any); len(ms) != 1 {
		t.Fatalf("matches = %v", list)
	}
	s.expect(http.StatusBadRequest, http.MethodGet, "/api/v1/me/matches?limit=0", b.token, nil)
}

func TestAuthRejectsStaleChallenge(t *testing.T) {
	s := newTestServer(t)
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	ts := s.clock.Now().Add(-time.Hour).Unix()
	s.expect(http.StatusUnauthorized, http.MethodPost, "/api/v1/auth", "", gin.H{
		"public_key": pub.Hex(),
		"timestamp":  ts,
		"signature":  crypto.Sign(priv, service.AuthMessage(pub.Hex(), ts)),
	})
	s.expect(http.StatusBadRequest, http.MethodPost, "/api/v1/auth", "", gin.H{"public_key": pub.Hex()})
}

func TestQueueValidation(t *testing.T) {
	s := newTestServer(t)
	a := s.login()
	if out := s.expect(http.StatusBadRequest, http.MethodPost, "/api/v1/queue", a.token, gin.H{"stake": "platinum"}); out["error"] != "bad_request" {
		t.Fatalf("bad tier = %v", out)
	}
	s.expect(http.StatusBadRequest, http.MethodPost, "/api/v1/queue", a.token, gin.H{"stake": "gold", "best_of": 2})

	out := s.expect(http.StatusOK, http.MethodPost, "/api/v1/queue", a.token, gin.H{"stake": "bronze"})
	if out["best_of"].(float64) != 3 {
		t.Fatalf("default best_of = %v", out)
	}
	if out := s.expect(http.StatusOK, http.MethodDelete, "/api/v1/queue", a.token, nil); out["left"] != true {
		t.Fatalf("leave = %v", out)
	}
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.expect(http.StatusOK, http.MethodGet, "/healthz", "", nil)
	if out := s.expect(http.StatusOK, http.MethodGet, "/health", "", nil); out["version"] != "test" {
		t.Fatalf("health = %v", out)
	}
	out := s.expect(http.StatusOK, http.MethodGet, "/readyz", "", nil)
	if checks := out["checks"].(map[string]any); checks["store"] != "healthy" {
		t.Fatalf("readyz = %v", out)
	}
	if gauges := out["gauges"].(map[string]any); gauges["lobby_waiting"].(float64) != 0 {
		t.Fatalf("readyz gauges = %v", out)
	}
}
