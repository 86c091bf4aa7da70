package service

import (
	"context"
	"errors"
	"fmt"

	"rps_arena/internal/crypto"
	"rps_arena/internal/domain"
	"rps_arena/internal/game"
	"rps_arena/internal/logger"
	"rps_arena/internal/metrics"
	"rps_arena/internal/repository"
	"rps_arena/internal/settlement"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const nonceSize = 32

// Notifier is told about every committed state change of a match.
type Notifier interface {
	MatchChanged(ctx context.Context, matchID string)
}

// SignatureResult is returned after a signature was accepted.
type SignatureResult struct {
	Status            domain.MatchStatus      `json:"status"`
	HasBothSignatures bool                    `json:"has_both_signatures"`
	Payload           *game.SettlementPayload `json:"settlement_payload,omitempty"`
}

// MatchService drives matches through the round state machine. It holds no match state of
// its own: every transition is a conditional store write, so any number of instances and
// trigger paths can call it concurrently.
type MatchService struct {
	store    repository.Store
	clock    clockwork.Clock
	timing   game.Timing
	settler  settlement.Settler
	notifier Notifier
}

func NewMatchService(store repository.Store, clock clockwork.Clock, timing game.Timing, settler settlement.Settler) *MatchService {
	if settler == nil {
		settler = settlement.LogSettler{}
	}
	return &MatchService{
		store:   store,
		clock:   clock,
		timing:  timing,
		settler: settler,
	}
}

// SetNotifier installs the change listener. Call before serving requests.
func (s *MatchService) SetNotifier(n Notifier) {
	s.notifier = n
}

// CreateMatch pairs two players and opens round 1.
func (s *MatchService) CreateMatch(ctx context.Context, p1, p2 domain.PlayerID, stake domain.StakeTier, bestOf int) (*domain.Match, error) {
	if p1 == "" || p2 == "" || p1 == p2 {
		return nil, fmt.Errorf("%w: a match needs two distinct players", game.ErrBadRequest)
	}
	if bestOf < 1 || bestOf%2 == 0 {
		return nil, fmt.Errorf("%w: best_of must be a positive odd number, got %d", game.ErrBadRequest, bestOf)
	}
	if _, err := domain.ParseStakeTier(string(stake)); err != nil {
		return nil, fmt.Errorf("%w: %v", game.ErrBadRequest, err)
	}

	nonce, err := crypto.RandomBytes(nonceSize)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	m := &domain.Match{
		ID:        uuid.NewString(),
		Player1:   p1,
		Player2:   p2,
		Stake:     stake,
		BestOf:    bestOf,
		Status:    domain.MatchActive,
		Nonce:     nonce,
		CreatedAt: now,
	}
	first := domain.NewRound(m.ID, 1, now.Add(s.timing.CommitWindow), now)

	if err := s.store.CreateMatch(ctx, m, first); err != nil {
		return nil, fmt.Errorf("create match: %w", err)
	}

	metrics.MatchesCreated.Inc()
	logger.FromContext(ctx).Info("match created", "match_id", m.ID, "player1", p1, "player2", p2, "stake", stake, "best_of", bestOf)
	return m, nil
}

// SubmitCommit stores player's commitment digest for round number.
func (s *MatchService) SubmitCommit(ctx context.Context, matchID string, number int, player domain.PlayerID, digest []byte) (err error) {
	defer func() { observe("commit", err) }()

	m, seat, err := s.normalize(ctx, matchID, player)
	if err != nil {
		return err
	}
	if err := game.CheckDigest(digest); err != nil {
		return err
	}
	r, err := s.roundForCommit(ctx, m, number)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	if err := game.CheckCommit(r, seat, now); err != nil {
		return err
	}
	ok, err := s.store.SetCommitment(ctx, matchID, number, seat, digest, now.Add(s.timing.CommitWindow), now)
	if err != nil {
		return err
	}
	if !ok {
		return s.explainRound(ctx, matchID, number, func(r *domain.Round) error {
			return game.CheckCommit(r, seat, now)
		})
	}

	logger.FromContext(ctx).Debug("commit stored", "match_id", matchID, "round", number, "seat", seat)
	s.followUp(ctx, matchID)
	return nil
}

// SubmitReveal verifies (move, salt) against the stored commitment and stores the move.
func (s *MatchService) SubmitReveal(ctx context.Context, matchID string, number int, player domain.PlayerID, move domain.Move, salt []byte) (err error) {
	defer func() { observe("reveal", err) }()

	m, seat, err := s.normalize(ctx, matchID, player)
	if err != nil {
		return err
	}
	if !move.Valid() {
		return fmt.Errorf("%w: move must be 1, 2 or 3", game.ErrBadRequest)
	}
	if len(salt) != game.SaltSize {
		return fmt.Errorf("%w: salt must be %d bytes, got %d", game.ErrBadRequest, game.SaltSize, len(salt))
	}
	if !m.IsActive() {
		return fmt.Errorf("%w: match is %s", game.ErrInvalidPhase, m.Status)
	}
	if number < 1 || number > m.BestOf {
		return fmt.Errorf("%w: round %d outside 1..%d", game.ErrBadRequest, number, m.BestOf)
	}
	r, err := s.store.GetRound(ctx, matchID, number)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: round %d is not open", game.ErrInvalidPhase, number)
	}
	if err != nil {
		return err
	}

	now := s.clock.Now()
	if err := game.CheckReveal(r, seat, now); err != nil {
		return err
	}
	if err := game.CheckRevealValue(r, seat, move, salt); err != nil {
		return err
	}
	ok, err := s.store.SetReveal(ctx, matchID, number, seat, move, salt, now)
	if err != nil {
		return err
	}
	if !ok {
		return s.explainRound(ctx, matchID, number, func(r *domain.Round) error {
			return game.CheckReveal(r, seat, now)
		})
	}

	logger.FromContext(ctx).Debug("reveal stored", "match_id", matchID, "round", number, "seat", seat)
	s.followUp(ctx, matchID)
	return nil
}

// Snapshot reconciles the match and renders it for player.
func (s *MatchService) Snapshot(ctx context.Context, matchID string, player domain.PlayerID) (*game.Snapshot, error) {
	if _, _, err := s.participant(ctx, matchID, player); err != nil {
		return nil, err
	}
	if _, err := s.ReconcileOn(ctx, matchID, TriggerPoll); err != nil {
		return nil, err
	}
	return s.View(ctx, matchID, player)
}

// Heartbeat is the polling path: reconcile, then return the fresh snapshot.
func (s *MatchService) Heartbeat(ctx context.Context, matchID string, player domain.PlayerID) (bool, *game.Snapshot, error) {
	if _, _, err := s.participant(ctx, matchID, player); err != nil {
		return false, nil, err
	}
	changed, err := s.ReconcileOn(ctx, matchID, TriggerPoll)
	if err != nil {
		return false, nil, err
	}
	snap, err := s.View(ctx, matchID, player)
	return changed, snap, err
}

// ResultRecord returns the canonical record of a decided match.
func (s *MatchService) ResultRecord(ctx context.Context, matchID string, player domain.PlayerID) (*game.ResultRecord, error) {
	if _, _, err := s.normalize(ctx, matchID, player); err != nil {
		return nil, err
	}
	m, rounds, err := s.load(ctx, matchID)
	if err != nil {
		return nil, err
	}
	return game.BuildResult(m, rounds)
}

// SubmitSignature verifies player's signature over the result record and stores it once.
// When it completes the pair the match becomes ready and is handed to settlement.
func (s *MatchService) SubmitSignature(ctx context.Context, matchID string, player domain.PlayerID, sigHex string) (res *SignatureResult, err error) {
	defer func() { observe("signature", err) }()

	_, seat, err := s.normalize(ctx, matchID, player)
	if err != nil {
		return nil, err
	}
	m, rounds, err := s.load(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if m.IsActive() {
		return nil, fmt.Errorf("%w: match %s is still being played", game.ErrNotReady, matchID)
	}

	rec, err := game.BuildResult(m, rounds)
	if err != nil {
		return nil, err
	}
	sig, err := game.NormalizeSignature(sigHex)
	if err != nil {
		return nil, err
	}
	if err := game.VerifyResultSignature(player, rec, sig); err != nil {
		return nil, err
	}

	switch stored := m.SignatureOf(seat); {
	case stored == sig:
	case stored != "":
		return nil, fmt.Errorf("%w: a different signature is already stored", game.ErrInvalidPhase)
	default:
		ok, err := s.store.SetSignature(ctx, matchID, seat, sig)
		if err != nil {
			return nil, err
		}
		if !ok {
			again, err := s.store.GetMatch(ctx, matchID)
			if err != nil {
				return nil, err
			}
			if again.SignatureOf(seat) != sig {
				return nil, fmt.Errorf("%w: signature slot is no longer writable", game.ErrInvalidPhase)
			}
		}
		logger.FromContext(ctx).Info("result signed", "match_id", matchID, "seat", seat)
	}

	m, err = s.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if m.HasBothSignatures() {
		if _, err := s.store.MarkReady(ctx, matchID); err != nil {
			return nil, err
		}
		if _, err := s.ReconcileOn(ctx, matchID, TriggerAction); err != nil {
			return nil, err
		}
	} else {
		s.notify(ctx, matchID)
	}

	m, rounds, err = s.load(ctx, matchID)
	if err != nil {
		return nil, err
	}
	res = &SignatureResult{Status: m.Status, HasBothSignatures: m.HasBothSignatures()}
	if res.HasBothSignatures {
		if res.Payload, err = game.BuildPayload(m, rounds); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// SettlementPayload returns the doubly signed payload; NotReady until both signatures exist.
func (s *MatchService) SettlementPayload(ctx context.Context, matchID string, player domain.PlayerID) (*game.SettlementPayload, error) {
	if _, _, err := s.participant(ctx, matchID, player); err != nil {
		return nil, err
	}
	m, rounds, err := s.load(ctx, matchID)
	if err != nil {
		return nil, err
	}
	return game.BuildPayload(m, rounds)
}

// ListMatches returns the player's most recent matches.
func (s *MatchService) ListMatches(ctx context.Context, player domain.PlayerID, limit int) ([]*domain.Match, error) {
	return s.store.ListMatchesByPlayer(ctx, player, limit)
}

// participant loads the match and resolves player to a seat.
func (s *MatchService) participant(ctx context.Context, matchID string, player domain.PlayerID) (*domain.Match, domain.Seat, error) {
	m, err := s.store.GetMatch(ctx, matchID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.SeatNone, fmt.Errorf("%w: %s", game.ErrNotFound, matchID)
	}
	if err != nil {
		return nil, domain.SeatNone, err
	}
	seat, ok := m.SeatOf(player)
	if !ok {
		return nil, domain.SeatNone, game.ErrForbidden
	}
	return m, seat, nil
}

// normalize checks participation, reconciles, and returns the fresh match for an action.
func (s *MatchService) normalize(ctx context.Context, matchID string, player domain.PlayerID) (*domain.Match, domain.Seat, error) {
	if _, _, err := s.participant(ctx, matchID, player); err != nil {
		return nil, domain.SeatNone, err
	}
	if _, err := s.ReconcileOn(ctx, matchID, TriggerAction); err != nil {
		return nil, domain.SeatNone, err
	}
	return s.participant(ctx, matchID, player)
}

// roundForCommit returns round number, creating it when the previous round is resolved.
func (s *MatchService) roundForCommit(ctx context.Context, m *domain.Match, number int) (*domain.Round, error) {
	if !m.IsActive() {
		return nil, fmt.Errorf("%w: match is %s", game.ErrInvalidPhase, m.Status)
	}
	if number < 1 || number > m.BestOf {
		return nil, fmt.Errorf("%w: round %d outside 1..%d", game.ErrBadRequest, number, m.BestOf)
	}

	r, err := s.store.GetRound(ctx, m.ID, number)
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	if number > 1 {
		prev, err := s.store.GetRound(ctx, m.ID, number-1)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: round %d is not open", game.ErrInvalidPhase, number)
		}
		if err != nil {
			return nil, err
		}
		if !prev.IsResolved() {
			return nil, fmt.Errorf("%w: round %d is still in play", game.ErrInvalidPhase, number-1)
		}
	}

	now := s.clock.Now()
	if _, err := s.store.InsertRound(ctx, domain.NewRound(m.ID, number, now.Add(s.timing.CommitWindow), now)); err != nil {
		return nil, err
	}
	r, err = s.store.GetRound(ctx, m.ID, number)
	if errors.Is(err, repository.ErrNotFound) {
		if err := s.inactiveMatch(ctx, m.ID); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: round %d is not open", game.ErrInvalidPhase, number)
	}
	return r, err
}

// inactiveMatch returns invalid_phase once the match has left the active state.
func (s *MatchService) inactiveMatch(ctx context.Context, matchID string) error {
	m, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if !m.IsActive() {
		return fmt.Errorf("%w: match is %s", game.ErrInvalidPhase, m.Status)
	}
	return nil
}

// explainRound turns a lost conditional write into the error the caller would get now.
func (s *MatchService) explainRound(ctx context.Context, matchID string, number int, check func(*domain.Round) error) error {
	if err := s.inactiveMatch(ctx, matchID); err != nil {
		return err
	}
	r, err := s.store.GetRound(ctx, matchID, number)
	if err != nil {
		return err
	}
	if err := check(r); err != nil {
		return err
	}
	return fmt.Errorf("%w: round %d changed concurrently", game.ErrInvalidPhase, number)
}

func (s *MatchService) load(ctx context.Context, matchID string) (*domain.Match, []*domain.Round, error) {
	m, err := s.store.GetMatch(ctx, matchID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, fmt.Errorf("%w: %s", game.ErrNotFound, matchID)
	}
	if err != nil {
		return nil, nil, err
	}
	rounds, err := s.store.ListRounds(ctx, matchID)
	if err != nil {
		return nil, nil, err
	}
	return m, rounds, nil
}

// View renders the stored match for player without reconciling. Push delivery uses it.
func (s *MatchService) View(ctx context.Context, matchID string, player domain.PlayerID) (*game.Snapshot, error) {
	m, rounds, err := s.load(ctx, matchID)
	if err != nil {
		return nil, err
	}
	seat, ok := m.SeatOf(player)
	if !ok {
		return nil, game.ErrForbidden
	}
	return game.BuildSnapshot(m, rounds, seat, s.clock.Now()), nil
}

// followUp runs the reconcile that follows a stored action. The action already landed, so a
// failing sweep is only logged; the next trigger retries it.
func (s *MatchService) followUp(ctx context.Context, matchID string) {
	changed, err := s.ReconcileOn(ctx, matchID, TriggerAction)
	if err != nil {
		logger.Warn("reconcile after action failed", "match_id", matchID, "error", err)
	}
	if !changed {
		s.notify(ctx, matchID)
	}
}

func (s *MatchService) notify(ctx context.Context, matchID string) {
	if s.notifier != nil {
		s.notifier.MatchChanged(ctx, matchID)
	}
}

func observe(action string, err error) {
	result := "ok"
	if err != nil {
		result = string(game.KindOf(err))
	}
	metrics.Actions.WithLabelValues(action, result).Inc()
}
