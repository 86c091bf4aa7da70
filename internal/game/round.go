package game

import (
	"fmt"
	"time"

	"rps_arena/internal/domain"
)

// Timing holds the fixed windows of the round state machine.
type Timing struct {
	CommitWindow time.Duration
	RevealWindow time.Duration
	// PhaseBuffer is waited after the commit deadline before the reveal phase opens,
	// so independently polling clients observe the same reveal start.
	PhaseBuffer time.Duration
	// NextRoundBuffer is waited after a resolution before the next round opens.
	NextRoundBuffer time.Duration
}

// DefaultTiming is used when configuration does not override the windows.
var DefaultTiming = Timing{
	CommitWindow:    30 * time.Second,
	RevealWindow:    30 * time.Second,
	PhaseBuffer:     3 * time.Second,
	NextRoundBuffer: 3 * time.Second,
}

// CheckCommit validates a commitment from seat against the round state at now.
func CheckCommit(r *domain.Round, seat domain.Seat, now time.Time) error {
	if seat != domain.Seat1 && seat != domain.Seat2 {
		return ErrForbidden
	}
	if r.Phase != domain.PhaseCommit {
		return fmt.Errorf("%w: round %d is in %s phase", ErrInvalidPhase, r.Number, r.Phase)
	}
	if r.HasCommitted(seat) {
		return fmt.Errorf("%w: round %d", ErrAlreadyCommitted, r.Number)
	}
	if r.CommitDeadline != nil && !now.Before(*r.CommitDeadline) {
		return fmt.Errorf("%w: commit window of round %d closed at %s", ErrDeadlinePassed, r.Number, r.CommitDeadline.UTC().Format(time.RFC3339))
	}
	return nil
}

// CheckReveal validates a reveal from seat against the round state at now. Revealing is
// accepted during the commit phase once both commitments exist.
func CheckReveal(r *domain.Round, seat domain.Seat, now time.Time) error {
	if seat != domain.Seat1 && seat != domain.Seat2 {
		return ErrForbidden
	}
	switch r.Phase {
	case domain.PhaseCommit:
		if !r.BothCommitted() {
			return fmt.Errorf("%w: round %d is waiting for commitments", ErrInvalidPhase, r.Number)
		}
	case domain.PhaseReveal:
	case domain.PhaseResolved:
		return fmt.Errorf("%w: round %d is already resolved", ErrInvalidPhase, r.Number)
	default:
		return fmt.Errorf("%w: round %d has unknown phase %q", ErrInvalidPhase, r.Number, r.Phase)
	}
	if r.HasRevealed(seat) {
		return fmt.Errorf("%w: round %d", ErrAlreadyRevealed, r.Number)
	}
	if r.RevealDeadline != nil && !now.Before(*r.RevealDeadline) {
		return fmt.Errorf("%w: reveal window of round %d closed at %s", ErrDeadlinePassed, r.Number, r.RevealDeadline.UTC().Format(time.RFC3339))
	}
	return nil
}

// CheckRevealValue verifies (move, salt) against the commitment stored for seat.
func CheckRevealValue(r *domain.Round, seat domain.Seat, move domain.Move, salt []byte) error {
	if !move.Valid() {
		return fmt.Errorf("%w: move must be 1, 2 or 3", ErrBadRequest)
	}
	if len(salt) != SaltSize {
		return fmt.Errorf("%w: salt must be %d bytes, got %d", ErrBadRequest, SaltSize, len(salt))
	}
	if !Verify(move, salt, r.Commitment(seat)) {
		return fmt.Errorf("%w: round %d", ErrCommitMismatch, r.Number)
	}
	return nil
}
