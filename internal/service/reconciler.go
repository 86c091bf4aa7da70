package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"rps_arena/internal/domain"
	"rps_arena/internal/game"
	"rps_arena/internal/logger"
	"rps_arena/internal/metrics"
	"rps_arena/internal/repository"
)

// Trigger names what caused a reconcile sweep.
type Trigger string

const (
	TriggerAction Trigger = "action"
	TriggerPoll   Trigger = "poll"
	TriggerPush   Trigger = "push"
)

// Reconcile runs the timeout sweep for a match on behalf of a poll. It is idempotent.
func (s *MatchService) Reconcile(ctx context.Context, matchID string) (bool, error) {
	return s.ReconcileOn(ctx, matchID, TriggerPoll)
}

// ReconcileOn is the single path that forfeits, advances and resolves rounds, recomputes win
// counters, opens the next round and decides the match. Each step is a conditional write,
// so concurrent sweeps land every effect at most once.
func (s *MatchService) ReconcileOn(ctx context.Context, matchID string, trigger Trigger) (bool, error) {
	changed, err := s.sweep(ctx, matchID)
	if err != nil {
		return false, err
	}
	metrics.ReconcileRuns.WithLabelValues(string(trigger), strconv.FormatBool(changed)).Inc()
	if changed {
		s.notify(ctx, matchID)
	}
	return changed, nil
}

func (s *MatchService) sweep(ctx context.Context, matchID string) (bool, error) {
	m, err := s.store.GetMatch(ctx, matchID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, fmt.Errorf("%w: %s", game.ErrNotFound, matchID)
	}
	if err != nil {
		return false, err
	}

	switch m.Status {
	case domain.MatchActive:
	case domain.MatchReady:
		return s.handOff(ctx, m)
	case domain.MatchDecided, domain.MatchSettled:
		return false, nil
	default:
		return false, fmt.Errorf("match %s has unknown status %q", m.ID, m.Status)
	}

	now := s.clock.Now()
	rounds, err := s.store.ListRounds(ctx, matchID)
	if err != nil {
		return false, err
	}

	changed := false
	for _, r := range rounds {
		if r.IsResolved() {
			continue
		}
		applied, err := s.apply(ctx, r, game.PlanRound(r, now, s.timing), now)
		if err != nil {
			return changed, err
		}
		changed = changed || applied
	}
	if changed {
		if rounds, err = s.store.ListRounds(ctx, matchID); err != nil {
			return changed, err
		}
	}

	// Counters always follow the resolved rounds, never the other way round.
	w1, w2, _ := game.Tally(rounds)
	raised, err := s.store.RaiseWins(ctx, matchID, w1, w2)
	if err != nil {
		return changed, err
	}
	changed = changed || raised

	verdict := game.Judge(m, rounds)
	if verdict.Decided {
		decided, err := s.decide(ctx, m, verdict, now)
		return changed || decided, err
	}

	if n, ok := game.NextRound(m, rounds, now, s.timing); ok {
		inserted, err := s.store.InsertRound(ctx, domain.NewRound(matchID, n, now.Add(s.timing.CommitWindow), now))
		if err != nil {
			return changed, err
		}
		if inserted {
			logger.Debug("round opened", "match_id", matchID, "round", n)
		}
		changed = changed || inserted
	}
	return changed, nil
}

func (s *MatchService) apply(ctx context.Context, r *domain.Round, step game.Step, now time.Time) (bool, error) {
	switch step.Kind {
	case game.StepNone:
		return false, nil
	case game.StepAdvance:
		ok, err := s.store.AdvanceToReveal(ctx, r.MatchID, r.Number, step.RevealDeadline)
		if ok {
			logger.Debug("reveal phase opened", "match_id", r.MatchID, "round", r.Number, "reveal_deadline", step.RevealDeadline)
		}
		return ok, err
	case game.StepResolve, game.StepForfeitCommit, game.StepForfeitReveal:
		ok, err := s.store.ResolveRound(ctx, r.MatchID, r.Number, step.From, r.Marks(), step.Outcome, now)
		if ok {
			metrics.RoundsResolved.WithLabelValues(step.Kind.String()).Inc()
			logger.Info("round resolved", "match_id", r.MatchID, "round", r.Number, "reason", step.Kind.String(), "outcome", step.Outcome)
		}
		return ok, err
	default:
		return false, fmt.Errorf("unknown reconcile step %d", step.Kind)
	}
}

func (s *MatchService) decide(ctx context.Context, m *domain.Match, v game.Verdict, now time.Time) (bool, error) {
	winner := m.PlayerAt(v.Winner)
	ok, err := s.store.DecideMatch(ctx, m.ID, winner, v.Wins1, v.Wins2, now)
	if err != nil || !ok {
		return false, err
	}

	result := "win"
	if winner == "" {
		result = "draw"
	}
	metrics.MatchesDecided.WithLabelValues(result).Inc()
	logger.Info("match decided", "match_id", m.ID, "winner", winner, "wins1", v.Wins1, "wins2", v.Wins2)
	return true, nil
}

// handOff passes a ready match to the settler and marks it settled on success. A failed
// handoff leaves the match ready; the next sweep retries it.
func (s *MatchService) handOff(ctx context.Context, m *domain.Match) (bool, error) {
	rounds, err := s.store.ListRounds(ctx, m.ID)
	if err != nil {
		return false, err
	}
	payload, err := game.BuildPayload(m, rounds)
	if err != nil {
		return false, err
	}

	if err := s.settler.Settle(ctx, payload); err != nil {
		metrics.Settlements.WithLabelValues("failed").Inc()
		logger.Warn("settlement handoff failed", "match_id", m.ID, "error", err)
		return false, nil
	}

	ok, err := s.store.MarkSettled(ctx, m.ID, s.clock.Now())
	if err != nil || !ok {
		return false, err
	}
	metrics.Settlements.WithLabelValues("ok").Inc()
	logger.Info("match settled", "match_id", m.ID, "digest", payload.Digest.String())
	return true, nil
}
