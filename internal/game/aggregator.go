package game

import "rps_arena/internal/domain"

// Tally counts wins from resolved rounds only. Draws count toward resolved but not wins.
func Tally(rounds []*domain.Round) (wins1, wins2, resolved int) {
	for _, r := range rounds {
		if !r.IsResolved() {
			continue
		}
		resolved++
		switch r.Outcome.WinnerSeat() {
		case domain.Seat1:
			wins1++
		case domain.Seat2:
			wins2++
		}
	}
	return wins1, wins2, resolved
}

// Verdict is the aggregator's view of a match.
type Verdict struct {
	Decided bool
	Wins1   int
	Wins2   int
	// Winner is SeatNone for a drawn (or undecided) match.
	Winner domain.Seat
}

// Judge decides whether the match is over: a win counter reached WinsNeeded, or every
// round of the format is resolved. The winner is the seat that reached WinsNeeded; if
// nobody did the match is a draw.
func Judge(m *domain.Match, rounds []*domain.Round) Verdict {
	w1, w2, resolved := Tally(rounds)
	need := m.WinsNeeded()
	v := Verdict{Wins1: w1, Wins2: w2}

	switch {
	case w1 >= need:
		v.Decided, v.Winner = true, domain.Seat1
	case w2 >= need:
		v.Decided, v.Winner = true, domain.Seat2
	case resolved >= m.BestOf:
		v.Decided = true
	}
	return v
}
