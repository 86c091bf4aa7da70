package game

import (
	"time"

	"rps_arena/internal/domain"
)

// StepKind is the transition the reconciler wants to apply to a round.
type StepKind int

const (
	StepNone StepKind = iota
	// StepResolve resolves a round whose moves are both revealed.
	StepResolve
	// StepForfeitCommit resolves a round whose commit window closed with a missing commitment.
	StepForfeitCommit
	// StepAdvance moves a fully committed round into the reveal phase.
	StepAdvance
	// StepForfeitReveal resolves a round whose reveal window closed with a missing reveal.
	StepForfeitReveal
)

func (k StepKind) String() string {
	switch k {
	case StepNone:
		return "none"
	case StepResolve:
		return "resolve"
	case StepForfeitCommit:
		return "forfeit_commit"
	case StepAdvance:
		return "advance"
	case StepForfeitReveal:
		return "forfeit_reveal"
	default:
		return "unknown"
	}
}

// Step is a planned conditional transition. From is the phase the round must still be in
// for the transition to land.
type Step struct {
	Kind           StepKind
	From           domain.Phase
	Outcome        domain.Outcome
	RevealDeadline time.Time
}

// PlanRound decides what, if anything, should happen to an unresolved round at now.
// It is the only place forfeits and phase advances are decided.
func PlanRound(r *domain.Round, now time.Time, t Timing) Step {
	switch r.Phase {
	case domain.PhaseResolved:
		return Step{Kind: StepNone}

	case domain.PhaseCommit:
		if r.BothRevealed() {
			return Step{Kind: StepResolve, From: r.Phase, Outcome: Decide(r.Move1, r.Move2)}
		}
		deadline := commitDeadline(r, t)
		if !r.BothCommitted() {
			if !now.Before(deadline) {
				return Step{
					Kind:    StepForfeitCommit,
					From:    r.Phase,
					Outcome: forfeitOutcome(r.HasCommitted(domain.Seat1), r.HasCommitted(domain.Seat2)),
				}
			}
			return Step{Kind: StepNone}
		}
		if !now.Before(deadline.Add(t.PhaseBuffer)) {
			return Step{Kind: StepAdvance, From: r.Phase, RevealDeadline: now.Add(t.RevealWindow)}
		}
		return Step{Kind: StepNone}

	case domain.PhaseReveal:
		if r.BothRevealed() {
			return Step{Kind: StepResolve, From: r.Phase, Outcome: Decide(r.Move1, r.Move2)}
		}
		if r.RevealDeadline != nil && !now.Before(*r.RevealDeadline) {
			return Step{
				Kind:    StepForfeitReveal,
				From:    r.Phase,
				Outcome: forfeitOutcome(r.HasRevealed(domain.Seat1), r.HasRevealed(domain.Seat2)),
			}
		}
		return Step{Kind: StepNone}

	default:
		return Step{Kind: StepNone}
	}
}

// commitDeadline is the stored deadline, or CreatedAt plus the commit window for a round
// stored without one.
func commitDeadline(r *domain.Round, t Timing) time.Time {
	if r.CommitDeadline != nil {
		return *r.CommitDeadline
	}
	return r.CreatedAt.Add(t.CommitWindow)
}

// NextRound reports the number of the round that should be opened at now, if any.
// rounds must be ordered by number.
func NextRound(m *domain.Match, rounds []*domain.Round, now time.Time, t Timing) (int, bool) {
	if !m.IsActive() || len(rounds) == 0 {
		return 0, false
	}
	last := rounds[len(rounds)-1]
	if !last.IsResolved() || last.Number >= m.BestOf {
		return 0, false
	}
	if Judge(m, rounds).Decided {
		return 0, false
	}
	if last.ResolvedAt != nil && now.Before(last.ResolvedAt.Add(t.NextRoundBuffer)) {
		return 0, false
	}
	return last.Number + 1, true
}
