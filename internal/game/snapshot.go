package game

import (
	"time"

	"rps_arena/internal/domain"
)

// Action tells a player what the server expects from them next.
type Action string

const (
	ActionNone   Action = "none"
	ActionWait   Action = "wait"
	ActionCommit Action = "commit"
	ActionReveal Action = "reveal"
	ActionSign   Action = "sign"
)

// RoundView is a round as seen by one player. The opponent's move and salt stay hidden
// until the opponent has revealed; only their commitment digest is visible before that.
type RoundView struct {
	Number             int            `json:"number"`
	Phase              domain.Phase   `json:"phase"`
	Outcome            domain.Outcome `json:"outcome,omitempty"`
	CommitDeadline     *time.Time     `json:"commit_deadline,omitempty"`
	RevealDeadline     *time.Time     `json:"reveal_deadline,omitempty"`
	YourCommitment     HexBytes       `json:"your_commitment,omitempty"`
	YourMove           string         `json:"your_move,omitempty"`
	OpponentCommitted  bool           `json:"opponent_committed"`
	OpponentCommitment HexBytes       `json:"opponent_commitment,omitempty"`
	OpponentRevealed   bool           `json:"opponent_revealed"`
	OpponentMove       string         `json:"opponent_move,omitempty"`
	OpponentSalt       HexBytes       `json:"opponent_salt,omitempty"`
}

// Snapshot is the per-player view of a match.
type Snapshot struct {
	MatchID      string             `json:"match_id"`
	Status       domain.MatchStatus `json:"status"`
	You          domain.Seat        `json:"you"`
	Player1      domain.PlayerID    `json:"player1"`
	Player2      domain.PlayerID    `json:"player2"`
	Stake        domain.StakeTier   `json:"stake"`
	BestOf       int                `json:"best_of"`
	WinsNeeded   int                `json:"wins_needed"`
	Wins1        int                `json:"wins1"`
	Wins2        int                `json:"wins2"`
	Winner       domain.PlayerID    `json:"winner,omitempty"`
	Draw         bool               `json:"draw"`
	Signed1      bool               `json:"signed1"`
	Signed2      bool               `json:"signed2"`
	Rounds       []RoundView        `json:"rounds"`
	ActionNeeded Action             `json:"action_needed"`
	ActionRound  int                `json:"action_round,omitempty"`
	ServerTime   time.Time          `json:"server_time"`
}

// BuildSnapshot renders m and its ordered rounds for the player in seat.
func BuildSnapshot(m *domain.Match, rounds []*domain.Round, seat domain.Seat, now time.Time) *Snapshot {
	s := &Snapshot{
		MatchID:    m.ID,
		Status:     m.Status,
		You:        seat,
		Player1:    m.Player1,
		Player2:    m.Player2,
		Stake:      m.Stake,
		BestOf:     m.BestOf,
		WinsNeeded: m.WinsNeeded(),
		Wins1:      m.Wins1,
		Wins2:      m.Wins2,
		Winner:     m.Winner,
		Draw:       !m.IsActive() && m.Winner == "",
		Signed1:    m.Signature1 != "",
		Signed2:    m.Signature2 != "",
		Rounds:     make([]RoundView, 0, len(rounds)),
		ServerTime: now,
	}
	for _, r := range rounds {
		s.Rounds = append(s.Rounds, viewRound(r, seat))
	}
	s.ActionNeeded, s.ActionRound = actionFor(m, rounds, seat, now)
	return s
}

func viewRound(r *domain.Round, seat domain.Seat) RoundView {
	opp := seat.Other()
	v := RoundView{
		Number:            r.Number,
		Phase:             r.Phase,
		Outcome:           r.Outcome,
		CommitDeadline:    r.CommitDeadline,
		RevealDeadline:    r.RevealDeadline,
		YourCommitment:    r.Commitment(seat),
		YourMove:          r.MoveOf(seat).String(),
		OpponentCommitted: r.HasCommitted(opp),
		OpponentRevealed:  r.HasRevealed(opp),
	}
	if v.OpponentCommitted {
		v.OpponentCommitment = r.Commitment(opp)
	}
	if v.OpponentRevealed {
		v.OpponentMove = r.MoveOf(opp).String()
		v.OpponentSalt = r.SaltOf(opp)
	}
	return v
}

func actionFor(m *domain.Match, rounds []*domain.Round, seat domain.Seat, now time.Time) (Action, int) {
	switch m.Status {
	case domain.MatchActive:
		if len(rounds) == 0 {
			return ActionWait, 0
		}
		r := rounds[len(rounds)-1]
		switch r.Phase {
		case domain.PhaseCommit:
			if !r.HasCommitted(seat) {
				if CheckCommit(r, seat, now) == nil {
					return ActionCommit, r.Number
				}
				return ActionWait, r.Number
			}
			if r.BothCommitted() && !r.HasRevealed(seat) {
				return ActionReveal, r.Number
			}
			return ActionWait, r.Number
		case domain.PhaseReveal:
			if !r.HasRevealed(seat) && CheckReveal(r, seat, now) == nil {
				return ActionReveal, r.Number
			}
			return ActionWait, r.Number
		case domain.PhaseResolved:
			return ActionWait, 0
		default:
			return ActionWait, 0
		}
	case domain.MatchDecided:
		if m.SignatureOf(seat) == "" {
			return ActionSign, 0
		}
		return ActionWait, 0
	case domain.MatchReady, domain.MatchSettled:
		return ActionNone, 0
	default:
		return ActionNone, 0
	}
}
