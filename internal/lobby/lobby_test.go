package lobby

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"rps_arena/internal/domain"
	"rps_arena/internal/game"

	"github.com/jonboulle/clockwork"
)

type fakeCreator struct {
	created []*domain.Match
	err     error
}

func (f *fakeCreator) CreateMatch(ctx context.Context, p1, p2 domain.PlayerID, stake domain.StakeTier, bestOf int) (*domain.Match, error) {
	if f.err != nil {
		return nil, f.err
	}
	m := &domain.Match{ID: fmt.Sprintf("m%d", len(f.created)+1), Player1: p1, Player2: p2, Stake: stake, BestOf: bestOf}
	f.created = append(f.created, m)
	return m, nil
}

func newLobby(t *testing.T) (*Lobby, *fakeCreator, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))
	fc := &fakeCreator{}
	return New(fc, clock, time.Minute, domain.StakeTiers), fc, clock
}

func mustJoin(t *testing.T, l *Lobby, p domain.PlayerID, stake domain.StakeTier, bestOf int) Ticket {
	t.Helper()
	tk, err := l.Join(context.Background(), p, stake, bestOf)
	if err != nil {
		t.Fatalf("join %s: %v", p, err)
	}
	return tk
}

func TestJoinPairsWithWaitingPlayer(t *testing.T) {
	l, fc, _ := newLobby(t)

	if tk := mustJoin(t, l, "a", domain.StakeGold, 3); tk.Status != TicketWaiting {
		t.Fatalf("a: %s", tk.Status)
	}
	tk := mustJoin(t, l, "b", domain.StakeGold, 3)
	if tk.Status != TicketMatched {
		t.Fatalf("b: %s", tk.Status)
	}
	if len(fc.created) != 1 {
		t.Fatalf("created %d matches", len(fc.created))
	}
	m := fc.created[0]
	if m.Player1 != "a" || m.Player2 != "b" || m.BestOf != 3 || m.Stake != domain.StakeGold {
		t.Fatalf("match = %+v", m)
	}
	for _, p := range []domain.PlayerID{"a", "b"} {
		if st := l.Status(p); st.Status != TicketMatched || st.MatchID != m.ID {
			t.Fatalf("status %s = %+v", p, st)
		}
	}
}

func TestJoinIsFIFO(t *testing.T) {
	l, fc, clock := newLobby(t)

	mustJoin(t, l, "a", domain.StakeSilver, 5)
	clock.Advance(time.Second)
	// different format and tier do not pair with a
	mustJoin(t, l, "b", domain.StakeSilver, 3)
	mustJoin(t, l, "c", domain.StakeBronze, 5)
	if len(fc.created) != 0 {
		t.Fatalf("paired across queues")
	}
	mustJoin(t, l, "d", domain.StakeSilver, 3)
	mustJoin(t, l, "e", domain.StakeSilver, 5)

	if len(fc.created) != 2 {
		t.Fatalf("created %d matches", len(fc.created))
	}
	if fc.created[0].Player1 != "b" || fc.created[0].Player2 != "d" {
		t.Fatalf("first pairing = %+v", fc.created[0])
	}
	if fc.created[1].Player1 != "a" || fc.created[1].Player2 != "e" {
		t.Fatalf("second pairing = %+v", fc.created[1])
	}
	if st := l.Status("c"); st.Status != TicketWaiting || st.Stake != domain.StakeBronze {
		t.Fatalf("c = %+v", st)
	}
}

func TestJoinTwiceKeepsPlace(t *testing.T) {
	l, fc, clock := newLobby(t)

	first := mustJoin(t, l, "a", domain.StakeGold, 1)
	clock.Advance(5 * time.Second)
	again := mustJoin(t, l, "a", domain.StakeGold, 1)
	if again.Status != TicketWaiting || !again.Since.Equal(first.Since) {
		t.Fatalf("rejoin = %+v, first = %+v", again, first)
	}
	if len(fc.created) != 0 {
		t.Fatalf("player paired with themselves")
	}

	// joining another queue moves the intent
	mustJoin(t, l, "a", domain.StakeBronze, 1)
	mustJoin(t, l, "b", domain.StakeGold, 1)
	if len(fc.created) != 0 {
		t.Fatalf("stale intent was paired")
	}
}

func TestJoinRejectsBadInput(t *testing.T) {
	l, _, _ := newLobby(t)
	cases := []struct {
		stake  domain.StakeTier
		bestOf int
	}{
		{"platinum", 3},
		{domain.StakeGold, 0},
		{domain.StakeGold, 4},
		{domain.StakeGold, -1},
	}
	for _, tc := range cases {
		_, err := l.Join(context.Background(), "a", tc.stake, tc.bestOf)
		if game.KindOf(err) != game.KindBadRequest {
			t.Fatalf("%s/%d: err = %v", tc.stake, tc.bestOf, err)
		}
	}
}

func TestCreateFailureRequeuesPeer(t *testing.T) {
	l, fc, _ := newLobby(t)
	mustJoin(t, l, "a", domain.StakeGold, 3)

	fc.err = errors.New("db down")
	if _, err := l.Join(context.Background(), "b", domain.StakeGold, 3); err == nil {
		t.Fatalf("expected error")
	}
	if st := l.Status("a"); st.Status != TicketWaiting {
		t.Fatalf("a lost its place: %+v", st)
	}
	if st := l.Status("b"); st.Status != TicketNone {
		t.Fatalf("b = %+v", st)
	}

	fc.err = nil
	if tk := mustJoin(t, l, "b", domain.StakeGold, 3); tk.Status != TicketMatched {
		t.Fatalf("b = %+v", tk)
	}
}

func TestLeave(t *testing.T) {
	l, fc, _ := newLobby(t)
	mustJoin(t, l, "a", domain.StakeGold, 3)
	if n := l.Waiting(); n != 1 {
		t.Fatalf("waiting = %d", n)
	}
	if !l.Leave("a") {
		t.Fatalf("leave reported nothing")
	}
	if l.Leave("a") {
		t.Fatalf("second leave reported an intent")
	}
	mustJoin(t, l, "b", domain.StakeGold, 3)
	if len(fc.created) != 0 {
		t.Fatalf("paired with a withdrawn intent")
	}
}

func TestExpire(t *testing.T) {
	l, fc, clock := newLobby(t)
	mustJoin(t, l, "a", domain.StakeGold, 3)
	clock.Advance(30 * time.Second)
	mustJoin(t, l, "b", domain.StakeBronze, 3)
	clock.Advance(30 * time.Second)

	if n := l.Expire(); n != 1 {
		t.Fatalf("expired %d, want 1", n)
	}
	if st := l.Status("a"); st.Status != TicketNone {
		t.Fatalf("a = %+v", st)
	}
	if st := l.Status("b"); st.Status != TicketWaiting {
		t.Fatalf("b = %+v", st)
	}

	mustJoin(t, l, "c", domain.StakeGold, 3)
	if len(fc.created) != 0 {
		t.Fatalf("paired with an expired intent")
	}
}
