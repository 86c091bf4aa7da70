package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"rps_arena/internal/domain"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelStore implements Store on an embedded LevelDB. Records are JSON values under
// string-prefixed keys; conditional writes are serialized by a single mutex, which makes
// it a single-process store.
type LevelStore struct {
	db *leveldb.DB
	mu sync.Mutex
}

// NewLevelStore opens (or creates) a LevelDB database at path.
func NewLevelStore(path string) (*LevelStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %q: %w", path, err)
	}
	return &LevelStore{db: db}, nil
}

// NewMemLevelStore returns a LevelStore backed by memory, for tests and throwaway runs.
func NewMemLevelStore() (*LevelStore, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("open memory leveldb: %w", err)
	}
	return &LevelStore{db: db}, nil
}

func matchKey(id string) []byte { return []byte("match:" + id) }

func roundPrefix(matchID string) []byte { return []byte("round:" + matchID + ":") }

func roundKey(matchID string, n int) []byte {
	return []byte(fmt.Sprintf("round:%s:%04d", matchID, n))
}

func playerPrefix(p domain.PlayerID) []byte { return []byte("player:" + string(p) + ":") }

func playerKey(p domain.PlayerID, m *domain.Match) []byte {
	return []byte(fmt.Sprintf("player:%s:%020d:%s", p, m.CreatedAt.UnixNano(), m.ID))
}

func (s *LevelStore) get(key []byte, v any) error {
	data, err := s.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func (s *LevelStore) put(key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.db.Put(key, data, nil)
}

func (s *LevelStore) CreateMatch(ctx context.Context, m *domain.Match, first *domain.Round) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ok, err := s.db.Has(matchKey(m.ID), nil); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("match %s already exists", m.ID)
	}

	mData, err := json.Marshal(m)
	if err != nil {
		return err
	}
	rData, err := json.Marshal(first)
	if err != nil {
		return err
	}

	batch := new(leveldb.Batch)
	batch.Put(matchKey(m.ID), mData)
	batch.Put(roundKey(m.ID, first.Number), rData)
	batch.Put(playerKey(m.Player1, m), []byte(m.ID))
	batch.Put(playerKey(m.Player2, m), []byte(m.ID))
	return s.db.Write(batch, nil)
}

func (s *LevelStore) GetMatch(ctx context.Context, id string) (*domain.Match, error) {
	var m domain.Match
	if err := s.get(matchKey(id), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *LevelStore) ListMatchesByPlayer(ctx context.Context, p domain.PlayerID, limit int) ([]*domain.Match, error) {
	it := s.db.NewIterator(util.BytesPrefix(playerPrefix(p)), nil)
	defer it.Release()

	var ids []string
	for ok := it.Last(); ok; ok = it.Prev() {
		ids = append(ids, string(it.Value()))
		if limit > 0 && len(ids) >= limit {
			break
		}
	}
	if err := it.Error(); err != nil {
		return nil, err
	}

	res := make([]*domain.Match, 0, len(ids))
	for _, id := range ids {
		m, err := s.GetMatch(ctx, id)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, nil
}

func (s *LevelStore) ListRounds(ctx context.Context, matchID string) ([]*domain.Round, error) {
	it := s.db.NewIterator(util.BytesPrefix(roundPrefix(matchID)), nil)
	defer it.Release()

	var res []*domain.Round
	for it.Next() {
		var r domain.Round
		if err := json.Unmarshal(it.Value(), &r); err != nil {
			return nil, err
		}
		res = append(res, &r)
	}
	return res, it.Error()
}

func (s *LevelStore) GetRound(ctx context.Context, matchID string, number int) (*domain.Round, error) {
	var r domain.Round
	if err := s.get(roundKey(matchID, number), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *LevelStore) InsertRound(ctx context.Context, r *domain.Round) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if active, err := s.activeLocked(r.MatchID); err != nil || !active {
		return false, err
	}
	ok, err := s.db.Has(roundKey(r.MatchID, r.Number), nil)
	if err != nil || ok {
		return false, err
	}
	return true, s.put(roundKey(r.MatchID, r.Number), r)
}

// activeLocked reports whether the match is still active. Callers hold s.mu.
func (s *LevelStore) activeLocked(matchID string) (bool, error) {
	var m domain.Match
	if err := s.get(matchKey(matchID), &m); err != nil {
		return false, err
	}
	return m.IsActive(), nil
}

// updateRound loads a round under the write lock and stores it if fn reports a change.
func (s *LevelStore) updateRound(matchID string, number int, fn func(r *domain.Round) bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var r domain.Round
	if err := s.get(roundKey(matchID, number), &r); err != nil {
		return false, err
	}
	if !fn(&r) {
		return false, nil
	}
	return true, s.put(roundKey(matchID, number), &r)
}

func (s *LevelStore) updateMatch(id string, fn func(m *domain.Match) bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var m domain.Match
	if err := s.get(matchKey(id), &m); err != nil {
		return false, err
	}
	if !fn(&m) {
		return false, nil
	}
	return true, s.put(matchKey(id), &m)
}

func (s *LevelStore) SetCommitment(ctx context.Context, matchID string, number int, seat domain.Seat, digest []byte, deadline, now time.Time) (bool, error) {
	var lookupErr error
	ok, err := s.updateRound(matchID, number, func(r *domain.Round) bool {
		active, err := s.activeLocked(matchID)
		if err != nil {
			lookupErr = err
			return false
		}
		if !active || r.Phase != domain.PhaseCommit || r.HasCommitted(seat) {
			return false
		}
		if r.CommitDeadline != nil && !now.Before(*r.CommitDeadline) {
			return false
		}
		switch seat {
		case domain.Seat1:
			r.Commit1 = bytes.Clone(digest)
		case domain.Seat2:
			r.Commit2 = bytes.Clone(digest)
		default:
			return false
		}
		if r.CommitDeadline == nil {
			d := deadline
			r.CommitDeadline = &d
		}
		return true
	})
	if lookupErr != nil {
		return false, lookupErr
	}
	return ok, err
}

func (s *LevelStore) SetReveal(ctx context.Context, matchID string, number int, seat domain.Seat, move domain.Move, salt []byte, now time.Time) (bool, error) {
	return s.updateRound(matchID, number, func(r *domain.Round) bool {
		if r.Phase != domain.PhaseCommit && r.Phase != domain.PhaseReveal {
			return false
		}
		if !r.BothCommitted() || r.HasRevealed(seat) {
			return false
		}
		if r.RevealDeadline != nil && !now.Before(*r.RevealDeadline) {
			return false
		}
		switch seat {
		case domain.Seat1:
			r.Move1, r.Salt1 = move, bytes.Clone(salt)
		case domain.Seat2:
			r.Move2, r.Salt2 = move, bytes.Clone(salt)
		default:
			return false
		}
		return true
	})
}

func (s *LevelStore) AdvanceToReveal(ctx context.Context, matchID string, number int, revealDeadline time.Time) (bool, error) {
	return s.updateRound(matchID, number, func(r *domain.Round) bool {
		if r.Phase != domain.PhaseCommit || !r.BothCommitted() || r.RevealDeadline != nil {
			return false
		}
		d := revealDeadline
		r.Phase = domain.PhaseReveal
		r.RevealDeadline = &d
		return true
	})
}

func (s *LevelStore) ResolveRound(ctx context.Context, matchID string, number int, from domain.Phase, marks domain.RoundMarks, outcome domain.Outcome, at time.Time) (bool, error) {
	return s.updateRound(matchID, number, func(r *domain.Round) bool {
		if r.Phase != from || from == domain.PhaseResolved || r.Marks() != marks {
			return false
		}
		r.Phase = domain.PhaseResolved
		r.Outcome = outcome
		r.ResolvedAt = &at
		return true
	})
}

func (s *LevelStore) RaiseWins(ctx context.Context, matchID string, wins1, wins2 int) (bool, error) {
	return s.updateMatch(matchID, func(m *domain.Match) bool {
		if m.Status != domain.MatchActive || wins1 < m.Wins1 || wins2 < m.Wins2 {
			return false
		}
		if wins1 == m.Wins1 && wins2 == m.Wins2 {
			return false
		}
		m.Wins1, m.Wins2 = wins1, wins2
		return true
	})
}

func (s *LevelStore) DecideMatch(ctx context.Context, matchID string, winner domain.PlayerID, wins1, wins2 int, at time.Time) (bool, error) {
	return s.updateMatch(matchID, func(m *domain.Match) bool {
		if m.Status != domain.MatchActive {
			return false
		}
		m.Status = domain.MatchDecided
		m.Winner = winner
		m.Wins1, m.Wins2 = max(m.Wins1, wins1), max(m.Wins2, wins2)
		m.DecidedAt = &at
		return true
	})
}

func (s *LevelStore) SetSignature(ctx context.Context, matchID string, seat domain.Seat, sig string) (bool, error) {
	return s.updateMatch(matchID, func(m *domain.Match) bool {
		if m.Status != domain.MatchDecided || m.SignatureOf(seat) != "" {
			return false
		}
		switch seat {
		case domain.Seat1:
			m.Signature1 = sig
		case domain.Seat2:
			m.Signature2 = sig
		default:
			return false
		}
		return true
	})
}

func (s *LevelStore) MarkReady(ctx context.Context, matchID string) (bool, error) {
	return s.updateMatch(matchID, func(m *domain.Match) bool {
		if m.Status != domain.MatchDecided || !m.HasBothSignatures() {
			return false
		}
		m.Status = domain.MatchReady
		return true
	})
}

func (s *LevelStore) MarkSettled(ctx context.Context, matchID string, at time.Time) (bool, error) {
	return s.updateMatch(matchID, func(m *domain.Match) bool {
		if m.Status != domain.MatchReady {
			return false
		}
		m.Status = domain.MatchSettled
		m.SettledAt = &at
		return true
	})
}

func (s *LevelStore) Ping(ctx context.Context) error {
	_, err := s.db.GetProperty("leveldb.stats")
	return err
}

func (s *LevelStore) Close() error {
	return s.db.Close()
}
