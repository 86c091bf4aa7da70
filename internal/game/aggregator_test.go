package game

import (
	"testing"

	"rps_arena/internal/domain"
)

func rounds(outcomes ...domain.Outcome) []*domain.Round {
	var rs []*domain.Round
	for i, o := range outcomes {
		rs = append(rs, resolvedRound(i+1, o, t0))
	}
	return rs
}

func TestJudge(t *testing.T) {
	p1, p2, d := domain.OutcomePlayer1, domain.OutcomePlayer2, domain.OutcomeDraw

	cases := []struct {
		name    string
		bestOf  int
		rounds  []*domain.Round
		decided bool
		winner  domain.Seat
		w1, w2  int
	}{
		{"empty", 5, nil, false, domain.SeatNone, 0, 0},
		{"sweep", 5, rounds(p1, p1, p1), true, domain.Seat1, 3, 0},
		{"comeback", 5, rounds(p1, p1, p2, p2, p2), true, domain.Seat2, 2, 3},
		{"in progress", 5, rounds(p1, d, p2), false, domain.SeatNone, 1, 1},
		{"all draws", 5, rounds(d, d, d, d, d), true, domain.SeatNone, 0, 0},
		{"lead without majority", 5, rounds(p1, d, d, d, d), true, domain.SeatNone, 1, 0},
		{"best of one", 1, rounds(p2), true, domain.Seat2, 0, 1},
	}
	for _, tc := range cases {
		m := &domain.Match{BestOf: tc.bestOf, Status: domain.MatchActive}
		v := Judge(m, tc.rounds)
		if v.Decided != tc.decided || v.Winner != tc.winner || v.Wins1 != tc.w1 || v.Wins2 != tc.w2 {
			t.Fatalf("%s: verdict = %+v", tc.name, v)
		}
	}
}

func TestTallyIgnoresUnresolved(t *testing.T) {
	rs := rounds(domain.OutcomePlayer1)
	open := domain.NewRound("m", 2, t0, t0)
	open.Outcome = domain.OutcomePlayer2
	rs = append(rs, open)

	w1, w2, resolved := Tally(rs)
	if w1 != 1 || w2 != 0 || resolved != 1 {
		t.Fatalf("Tally = %d,%d,%d", w1, w2, resolved)
	}
}
