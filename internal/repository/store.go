package repository

import (
	"context"
	"errors"
	"time"

	"rps_arena/internal/domain"
)

var ErrNotFound = errors.New("not found")

// Store persists matches and rounds. Every mutating method is a conditional transition:
// it returns applied=false without error when the expected prior state no longer holds,
// so concurrent callers can race safely and only one of them lands.
type Store interface {
	// CreateMatch stores a new match together with its first round.
	CreateMatch(ctx context.Context, m *domain.Match, first *domain.Round) error
	GetMatch(ctx context.Context, id string) (*domain.Match, error)
	ListMatchesByPlayer(ctx context.Context, p domain.PlayerID, limit int) ([]*domain.Match, error)

	// ListRounds returns the rounds of a match ordered by number.
	ListRounds(ctx context.Context, matchID string) ([]*domain.Round, error)
	GetRound(ctx context.Context, matchID string, number int) (*domain.Round, error)
	// InsertRound creates a round unless one with the same number exists or the match is
	// no longer active.
	InsertRound(ctx context.Context, r *domain.Round) (bool, error)

	// SetCommitment stores seat's digest while the match is active, the round is in the
	// commit phase, the slot is empty and the commit window (if already open) has not closed
	// at now. The commit deadline is set to deadline only if it was unset.
	SetCommitment(ctx context.Context, matchID string, number int, seat domain.Seat, digest []byte, deadline, now time.Time) (bool, error)
	// SetReveal stores seat's move and salt while the round is in the commit or reveal phase,
	// both commitments exist, the slot is empty and the reveal deadline (if set) has not
	// passed at now.
	SetReveal(ctx context.Context, matchID string, number int, seat domain.Seat, move domain.Move, salt []byte, now time.Time) (bool, error)
	// AdvanceToReveal moves a fully committed round to the reveal phase and sets its reveal
	// deadline, once.
	AdvanceToReveal(ctx context.Context, matchID string, number int, revealDeadline time.Time) (bool, error)
	// ResolveRound records the outcome iff the round is still in phase from with the same
	// filled slots as marks.
	ResolveRound(ctx context.Context, matchID string, number int, from domain.Phase, marks domain.RoundMarks, outcome domain.Outcome, at time.Time) (bool, error)

	// RaiseWins stores the counters iff the match is active and neither counter would decrease.
	RaiseWins(ctx context.Context, matchID string, wins1, wins2 int) (bool, error)
	// DecideMatch fixes the winner (empty for a draw) and final counters iff the match is active.
	DecideMatch(ctx context.Context, matchID string, winner domain.PlayerID, wins1, wins2 int, at time.Time) (bool, error)
	// SetSignature fills seat's signature slot iff the match is decided and the slot is empty.
	SetSignature(ctx context.Context, matchID string, seat domain.Seat, sig string) (bool, error)
	// MarkReady moves a decided match with both signatures to ready.
	MarkReady(ctx context.Context, matchID string) (bool, error)
	// MarkSettled moves a ready match to settled.
	MarkSettled(ctx context.Context, matchID string, at time.Time) (bool, error)

	Ping(ctx context.Context) error
	Close() error
}
