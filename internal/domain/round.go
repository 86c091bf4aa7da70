package domain

import (
	"fmt"
	"strings"
	"time"
)

// Phase is the lifecycle stage of a round.
type Phase string

const (
	PhaseCommit   Phase = "commit"
	PhaseReveal   Phase = "reveal"
	PhaseResolved Phase = "resolved"
)

// Move is the single-byte move value that goes into a commitment.
type Move uint8

const (
	MoveNone     Move = 0
	MoveRock     Move = 1
	MovePaper    Move = 2
	MoveScissors Move = 3
)

// Valid reports whether m is one of rock, paper or scissors.
func (m Move) Valid() bool {
	return m >= MoveRock && m <= MoveScissors
}

func (m Move) String() string {
	switch m {
	case MoveRock:
		return "rock"
	case MovePaper:
		return "paper"
	case MoveScissors:
		return "scissors"
	default:
		return ""
	}
}

// ParseMove accepts "rock" | "paper" | "scissors" or their numeric codes "1".."3".
func ParseMove(s string) (Move, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rock", "1":
		return MoveRock, nil
	case "paper", "2":
		return MovePaper, nil
	case "scissors", "3":
		return MoveScissors, nil
	}
	return MoveNone, fmt.Errorf("invalid move %q", s)
}

// Outcome - результат раунда
type Outcome string

const (
	OutcomeNone    Outcome = ""
	OutcomePlayer1 Outcome = "player1"
	OutcomePlayer2 Outcome = "player2"
	OutcomeDraw    Outcome = "draw"
)

// WinnerSeat maps an outcome to the winning seat; SeatNone for draws and unresolved rounds.
func (o Outcome) WinnerSeat() Seat {
	switch o {
	case OutcomePlayer1:
		return Seat1
	case OutcomePlayer2:
		return Seat2
	default:
		return SeatNone
	}
}

// OutcomeFor is the outcome in which seat s wins.
func OutcomeFor(s Seat) Outcome {
	switch s {
	case Seat1:
		return OutcomePlayer1
	case Seat2:
		return OutcomePlayer2
	default:
		return OutcomeDraw
	}
}

// Round is one commit-reveal exchange inside a match.
type Round struct {
	MatchID        string     `json:"match_id"`
	Number         int        `json:"number"`
	Phase          Phase      `json:"phase"`
	Commit1        []byte     `json:"commit1,omitempty"`
	Commit2        []byte     `json:"commit2,omitempty"`
	Move1          Move       `json:"move1,omitempty"`
	Move2          Move       `json:"move2,omitempty"`
	Salt1          []byte     `json:"salt1,omitempty"`
	Salt2          []byte     `json:"salt2,omitempty"`
	Outcome        Outcome    `json:"outcome,omitempty"`
	CommitDeadline *time.Time `json:"commit_deadline,omitempty"`
	RevealDeadline *time.Time `json:"reveal_deadline,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// NewRound creates a round in the commit phase. A zero deadline leaves the commit window
// unset until the first commitment arrives.
func NewRound(matchID string, number int, commitDeadline time.Time, now time.Time) *Round {
	r := &Round{
		MatchID:   matchID,
		Number:    number,
		Phase:     PhaseCommit,
		CreatedAt: now,
	}
	if !commitDeadline.IsZero() {
		d := commitDeadline
		r.CommitDeadline = &d
	}
	return r
}

func (r *Round) Commitment(s Seat) []byte {
	switch s {
	case Seat1:
		return r.Commit1
	case Seat2:
		return r.Commit2
	default:
		return nil
	}
}

func (r *Round) MoveOf(s Seat) Move {
	switch s {
	case Seat1:
		return r.Move1
	case Seat2:
		return r.Move2
	default:
		return MoveNone
	}
}

func (r *Round) SaltOf(s Seat) []byte {
	switch s {
	case Seat1:
		return r.Salt1
	case Seat2:
		return r.Salt2
	default:
		return nil
	}
}

func (r *Round) HasCommitted(s Seat) bool { return len(r.Commitment(s)) > 0 }

func (r *Round) HasRevealed(s Seat) bool { return r.MoveOf(s) != MoveNone }

func (r *Round) BothCommitted() bool { return r.HasCommitted(Seat1) && r.HasCommitted(Seat2) }

func (r *Round) BothRevealed() bool { return r.HasRevealed(Seat1) && r.HasRevealed(Seat2) }

func (r *Round) IsResolved() bool { return r.Phase == PhaseResolved }

// RoundMarks records which slots of a round are filled. Resolutions are conditioned on the
// marks they were planned from, so a commit or reveal that lands in between voids the plan.
type RoundMarks struct {
	Committed1 bool
	Committed2 bool
	Revealed1  bool
	Revealed2  bool
}

func (r *Round) Marks() RoundMarks {
	return RoundMarks{
		Committed1: r.HasCommitted(Seat1),
		Committed2: r.HasCommitted(Seat2),
		Revealed1:  r.HasRevealed(Seat1),
		Revealed2:  r.HasRevealed(Seat2),
	}
}
