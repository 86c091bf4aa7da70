package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"rps_arena/internal/crypto"
	"rps_arena/internal/domain"
	"rps_arena/internal/game"
	"rps_arena/internal/service"
	"rps_arena/internal/ws"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

type player struct {
	name  string
	priv  crypto.PrivateKey
	id    string
	token string
	conn  *websocket.Conn
	moves map[int]domain.Move
	salts map[int][]byte
}

// use 127.0.0.1 to prefer IPv4 (avoid resolving to [::1])
var (
	baseURL = flag.String("url", "http://127.0.0.1:8080", "server base URL")
	stake   = flag.String("stake", "bronze", "stake tier")
	bestOf  = flag.Int("best-of", 3, "match format")
	timeout = flag.Duration("timeout", 5*time.Minute, "give up after")
)

func main() {
	flag.Parse()
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	a, b := newPlayer("A"), newPlayer("B")
	for _, p := range []*player{a, b} {
		p := p
		p.login()
	}

	var matchID string
	for _, p := range []*player{a, b} {
		p := p
		var ticket struct {
			Status  string `json:"status"`
			MatchID string `json:"match_id"`
		}
		p.call(http.MethodPost, "/api/v1/queue", map[string]any{"stake": *stake, "best_of": *bestOf}, &ticket)
		log.Printf("%s queue: %s %s", p.name, ticket.Status, ticket.MatchID)
		matchID = ticket.MatchID
	}
	if matchID == "" {
		log.Fatal("players were not paired (is someone else waiting in this queue?)")
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range []*player{a, b} {
		p := p
		p.dial()
		defer p.conn.Close()
		g.Go(func() error { return p.play(gctx, matchID) })
	}
	if err := g.Wait(); err != nil {
		log.Fatalf("smoke test failed: %v", err)
	}
	log.Println("smoke test finished")
}

func newPlayer(name string) *player {
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		log.Fatalf("keygen %s: %v", name, err)
	}
	return &player{name: name, priv: priv, id: pub.Hex(), moves: map[int]domain.Move{}, salts: map[int][]byte{}}
}

func (p *player) login() {
	ts := time.Now().Unix()
	var out struct {
		Token string `json:"token"`
	}
	p.call(http.MethodPost, "/api/v1/auth", map[string]any{
		"public_key": p.id,
		"timestamp":  ts,
		"signature":  crypto.Sign(p.priv, service.AuthMessage(p.id, ts)),
	}, &out)
	p.token = out.Token
}

func (p *player) dial() {
	wsURL := strings.Replace(*baseURL, "http", "ws", 1) + "/ws?token=" + p.token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		log.Fatalf("dial %s: %v", p.name, err)
	}
	p.conn = conn
}

// play drives one seat: it heartbeats over the socket and acts on every snapshot.
func (p *player) play(ctx context.Context, matchID string) error {
	// a single reader goroutine per connection avoids concurrent ReadMessage calls
	msgs := make(chan ws.Outbound, 16)
	go func() {
		defer close(msgs)
		for {
			_, raw, err := p.conn.ReadMessage()
			if err != nil {
				return
			}
			var out ws.Outbound
			if err := json.Unmarshal(raw, &out); err != nil {
				continue
			}
			msgs <- out
		}
	}()

	if err := p.conn.WriteJSON(ws.Inbound{Type: ws.MsgSubscribe, MatchID: matchID}); err != nil {
		return err
	}
	for {
		var snap *game.Snapshot
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", p.name, ctx.Err())
		case out, ok := <-msgs:
			if !ok {
				return fmt.Errorf("%s: connection closed", p.name)
			}
			if out.Type == ws.MsgError {
				log.Printf("%s server error: %s %s", p.name, out.Error, out.Message)
			}
			snap = out.Snapshot
		case <-time.After(time.Second):
			if err := p.conn.WriteJSON(ws.Inbound{Type: ws.MsgHeartbeat, MatchID: matchID}); err != nil {
				return err
			}
		}
		if snap == nil {
			continue
		}

		switch snap.ActionNeeded {
		case game.ActionCommit:
			p.commit(matchID, snap.ActionRound)
		case game.ActionReveal:
			p.reveal(matchID, snap.ActionRound)
		case game.ActionSign:
			p.sign(matchID)
		case game.ActionWait:
		case game.ActionNone:
			if snap.Status == domain.MatchSettled || snap.Status == domain.MatchReady {
				log.Printf("%s done: status=%s winner=%q wins=%d-%d", p.name, snap.Status, snap.Winner, snap.Wins1, snap.Wins2)
				return nil
			}
		}
	}
}

func (p *player) commit(matchID string, n int) {
	if _, done := p.moves[n]; done {
		return
	}
	move := domain.Move(rand.Intn(3) + 1)
	salt, err := crypto.RandomBytes(game.SaltSize)
	if err != nil {
		log.Fatalf("salt: %v", err)
	}
	digest, err := game.Commit(move, salt)
	if err != nil {
		log.Fatalf("commit: %v", err)
	}
	p.moves[n], p.salts[n] = move, salt
	p.call(http.MethodPost, fmt.Sprintf("/api/v1/matches/%s/rounds/%d/commit", matchID, n), map[string]any{"digest": game.HexBytes(digest)}, nil)
	log.Printf("%s committed round %d", p.name, n)
}

func (p *player) reveal(matchID string, n int) {
	move, ok := p.moves[n]
	if !ok {
		return
	}
	p.call(http.MethodPost, fmt.Sprintf("/api/v1/matches/%s/rounds/%d/reveal", matchID, n), map[string]any{"move": move.String(), "salt": game.HexBytes(p.salts[n])}, nil)
	log.Printf("%s revealed round %d: %s", p.name, n, move)
}

func (p *player) sign(matchID string) {
	var res struct {
		Digest game.HexBytes `json:"digest"`
	}
	p.call(http.MethodGet, "/api/v1/matches/"+matchID+"/result", nil, &res)
	p.call(http.MethodPost, "/api/v1/matches/"+matchID+"/signature", map[string]string{"signature": crypto.Sign(p.priv, res.Digest)}, nil)
	log.Printf("%s signed result %s", p.name, res.Digest)
}

func (p *player) call(method, path string, body, out any) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			log.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, *baseURL+path, &buf)
	if err != nil {
		log.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", method, path, err)
	}
	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		var e struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		_ = json.NewDecoder(res.Body).Decode(&e)
		log.Printf("%s %s %s: %d %s %s", p.name, method, path, res.StatusCode, e.Error, e.Message)
		return
	}
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			log.Fatalf("decode %s: %v", path, err)
		}
	}
}
