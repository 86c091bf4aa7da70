package domain

import (
	"fmt"
	"time"
)

// PlayerID is a participant identity: the hex-encoded ed25519 public key.
type PlayerID string

// Seat is the fixed position of a player inside a match.
type Seat int

const (
	SeatNone Seat = 0
	Seat1    Seat = 1
	Seat2    Seat = 2
)

// Other returns the opposing seat.
func (s Seat) Other() Seat {
	switch s {
	case Seat1:
		return Seat2
	case Seat2:
		return Seat1
	default:
		return SeatNone
	}
}

// StakeTier - размер ставки матча
type StakeTier string

const (
	StakeBronze StakeTier = "bronze"
	StakeSilver StakeTier = "silver"
	StakeGold   StakeTier = "gold"
)

// StakeTiers lists every tier in ascending order.
var StakeTiers = []StakeTier{StakeBronze, StakeSilver, StakeGold}

// ParseStakeTier validates a tier name.
func ParseStakeTier(s string) (StakeTier, error) {
	for _, t := range StakeTiers {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown stake tier %q", s)
}

// MatchStatus - состояние матча
type MatchStatus string

const (
	// MatchActive: rounds are still being played.
	MatchActive MatchStatus = "active"
	// MatchDecided: winner (or draw) fixed, collecting signatures.
	MatchDecided MatchStatus = "decided"
	// MatchReady: both signatures present, waiting for the settlement handoff.
	MatchReady MatchStatus = "ready"
	// MatchSettled: the settlement collaborator accepted the payload.
	MatchSettled MatchStatus = "settled"
)

// Match is a best-of-N duel between two players.
type Match struct {
	ID         string      `json:"id"`
	Player1    PlayerID    `json:"player1"`
	Player2    PlayerID    `json:"player2"`
	Stake      StakeTier   `json:"stake"`
	BestOf     int         `json:"best_of"`
	Wins1      int         `json:"wins1"`
	Wins2      int         `json:"wins2"`
	Status     MatchStatus `json:"status"`
	Winner     PlayerID    `json:"winner,omitempty"` // empty after decision means draw
	Signature1 string      `json:"signature1,omitempty"`
	Signature2 string      `json:"signature2,omitempty"`
	Nonce      []byte      `json:"nonce"`
	CreatedAt  time.Time   `json:"created_at"`
	DecidedAt  *time.Time  `json:"decided_at,omitempty"`
	SettledAt  *time.Time  `json:"settled_at,omitempty"`
}

// WinsNeeded is ceil(BestOf/2).
func (m *Match) WinsNeeded() int {
	return m.BestOf/2 + 1
}

// SeatOf reports which seat p occupies.
func (m *Match) SeatOf(p PlayerID) (Seat, bool) {
	switch p {
	case m.Player1:
		return Seat1, true
	case m.Player2:
		return Seat2, true
	default:
		return SeatNone, false
	}
}

// PlayerAt returns the identity seated at s.
func (m *Match) PlayerAt(s Seat) PlayerID {
	switch s {
	case Seat1:
		return m.Player1
	case Seat2:
		return m.Player2
	default:
		return ""
	}
}

// SignatureOf returns the stored signature for a seat.
func (m *Match) SignatureOf(s Seat) string {
	switch s {
	case Seat1:
		return m.Signature1
	case Seat2:
		return m.Signature2
	default:
		return ""
	}
}

// Wins returns the win counter of a seat.
func (m *Match) Wins(s Seat) int {
	switch s {
	case Seat1:
		return m.Wins1
	case Seat2:
		return m.Wins2
	default:
		return 0
	}
}

// IsActive reports whether rounds may still be played.
func (m *Match) IsActive() bool {
	return m.Status == MatchActive
}

// HasBothSignatures reports whether both settlement signatures are stored.
func (m *Match) HasBothSignatures() bool {
	return m.Signature1 != "" && m.Signature2 != ""
}
