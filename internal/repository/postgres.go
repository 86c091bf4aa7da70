package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rps_arena/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store with conditional UPDATE ... WHERE statements; a transition
// applied iff the statement touched a row.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const matchColumns = `id, player1, player2, stake, best_of, wins1, wins2, status, winner,
	signature1, signature2, nonce, created_at, decided_at, settled_at`

const roundColumns = `match_id, number, phase, commit1, commit2, move1, move2, salt1, salt2,
	outcome, commit_deadline, reveal_deadline, resolved_at, created_at`

func scanMatch(row pgx.Row) (*domain.Match, error) {
	var m domain.Match
	err := row.Scan(&m.ID, &m.Player1, &m.Player2, &m.Stake, &m.BestOf, &m.Wins1, &m.Wins2,
		&m.Status, &m.Winner, &m.Signature1, &m.Signature2, &m.Nonce, &m.CreatedAt,
		&m.DecidedAt, &m.SettledAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func scanRound(row pgx.Row) (*domain.Round, error) {
	var (
		r            domain.Round
		move1, move2 int16
	)
	err := row.Scan(&r.MatchID, &r.Number, &r.Phase, &r.Commit1, &r.Commit2, &move1, &move2,
		&r.Salt1, &r.Salt2, &r.Outcome, &r.CommitDeadline, &r.RevealDeadline, &r.ResolvedAt,
		&r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r.Move1, r.Move2 = domain.Move(move1), domain.Move(move2)
	return &r, nil
}

func (s *PostgresStore) CreateMatch(ctx context.Context, m *domain.Match, first *domain.Round) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO matches (id, player1, player2, stake, best_of, status, nonce, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.Player1, m.Player2, m.Stake, m.BestOf, m.Status, m.Nonce, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO rounds (match_id, number, phase, commit_deadline, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		first.MatchID, first.Number, first.Phase, first.CommitDeadline, first.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert round: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) GetMatch(ctx context.Context, id string) (*domain.Match, error) {
	return scanMatch(s.db.QueryRow(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = $1`, id))
}

func (s *PostgresStore) ListMatchesByPlayer(ctx context.Context, p domain.PlayerID, limit int) ([]*domain.Match, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+matchColumns+`
		 FROM matches
		 WHERE player1 = $1 OR player2 = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		p, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*domain.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (s *PostgresStore) ListRounds(ctx context.Context, matchID string) ([]*domain.Round, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+roundColumns+` FROM rounds WHERE match_id = $1 ORDER BY number`,
		matchID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*domain.Round
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

func (s *PostgresStore) GetRound(ctx context.Context, matchID string, number int) (*domain.Round, error) {
	return scanRound(s.db.QueryRow(ctx,
		`SELECT `+roundColumns+` FROM rounds WHERE match_id = $1 AND number = $2`,
		matchID, number,
	))
}

func (s *PostgresStore) InsertRound(ctx context.Context, r *domain.Round) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`INSERT INTO rounds (match_id, number, phase, commit_deadline, created_at)
		 SELECT $1::text, $2::int, $3::text, $4::timestamptz, $5::timestamptz
		 WHERE `+matchActive+`
		 ON CONFLICT (match_id, number) DO NOTHING`,
		r.MatchID, r.Number, r.Phase, r.CommitDeadline, r.CreatedAt,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// matchActive holds a share lock on the match row of $1 so a concurrent decision either
// waits for the write or is seen by it.
const matchActive = `EXISTS (SELECT 1 FROM matches WHERE id = $1 AND status = 'active' FOR SHARE)`

// seatColumn picks one of two fixed column names; never fed from input.
func seatColumn(seat domain.Seat, col1, col2 string) (string, error) {
	switch seat {
	case domain.Seat1:
		return col1, nil
	case domain.Seat2:
		return col2, nil
	default:
		return "", fmt.Errorf("invalid seat %d", seat)
	}
}

func (s *PostgresStore) exec(ctx context.Context, sql string, args ...any) (bool, error) {
	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) SetCommitment(ctx context.Context, matchID string, number int, seat domain.Seat, digest []byte, deadline, now time.Time) (bool, error) {
	col, err := seatColumn(seat, "commit1", "commit2")
	if err != nil {
		return false, err
	}
	return s.exec(ctx,
		`UPDATE rounds
		 SET `+col+` = $3, commit_deadline = COALESCE(commit_deadline, $4)
		 WHERE match_id = $1 AND number = $2
		   AND phase = 'commit'
		   AND `+col+` IS NULL
		   AND (commit_deadline IS NULL OR commit_deadline > $5)
		   AND `+matchActive,
		matchID, number, digest, deadline, now,
	)
}

func (s *PostgresStore) SetReveal(ctx context.Context, matchID string, number int, seat domain.Seat, move domain.Move, salt []byte, now time.Time) (bool, error) {
	moveCol, err := seatColumn(seat, "move1", "move2")
	if err != nil {
		return false, err
	}
	saltCol, _ := seatColumn(seat, "salt1", "salt2")
	return s.exec(ctx,
		`UPDATE rounds
		 SET `+moveCol+` = $3, `+saltCol+` = $4
		 WHERE match_id = $1 AND number = $2
		   AND phase IN ('commit', 'reveal')
		   AND commit1 IS NOT NULL AND commit2 IS NOT NULL
		   AND `+moveCol+` = 0
		   AND (reveal_deadline IS NULL OR reveal_deadline > $5)`,
		matchID, number, int16(move), salt, now,
	)
}

func (s *PostgresStore) AdvanceToReveal(ctx context.Context, matchID string, number int, revealDeadline time.Time) (bool, error) {
	return s.exec(ctx,
		`UPDATE rounds
		 SET phase = 'reveal', reveal_deadline = $3
		 WHERE match_id = $1 AND number = $2
		   AND phase = 'commit'
		   AND commit1 IS NOT NULL AND commit2 IS NOT NULL
		   AND reveal_deadline IS NULL`,
		matchID, number, revealDeadline,
	)
}

func (s *PostgresStore) ResolveRound(ctx context.Context, matchID string, number int, from domain.Phase, marks domain.RoundMarks, outcome domain.Outcome, at time.Time) (bool, error) {
	if from == domain.PhaseResolved {
		return false, nil
	}
	return s.exec(ctx,
		`UPDATE rounds
		 SET phase = 'resolved', outcome = $4, resolved_at = $5
		 WHERE match_id = $1 AND number = $2 AND phase = $3
		   AND (commit1 IS NOT NULL) = $6 AND (commit2 IS NOT NULL) = $7
		   AND (move1 <> 0) = $8 AND (move2 <> 0) = $9`,
		matchID, number, from, outcome, at,
		marks.Committed1, marks.Committed2, marks.Revealed1, marks.Revealed2,
	)
}

func (s *PostgresStore) RaiseWins(ctx context.Context, matchID string, wins1, wins2 int) (bool, error) {
	return s.exec(ctx,
		`UPDATE matches
		 SET wins1 = $2, wins2 = $3
		 WHERE id = $1 AND status = 'active'
		   AND wins1 <= $2 AND wins2 <= $3
		   AND (wins1 <> $2 OR wins2 <> $3)`,
		matchID, wins1, wins2,
	)
}

func (s *PostgresStore) DecideMatch(ctx context.Context, matchID string, winner domain.PlayerID, wins1, wins2 int, at time.Time) (bool, error) {
	return s.exec(ctx,
		`UPDATE matches
		 SET status = 'decided', winner = $2,
		     wins1 = GREATEST(wins1, $3), wins2 = GREATEST(wins2, $4),
		     decided_at = $5
		 WHERE id = $1 AND status = 'active'`,
		matchID, winner, wins1, wins2, at,
	)
}

func (s *PostgresStore) SetSignature(ctx context.Context, matchID string, seat domain.Seat, sig string) (bool, error) {
	col, err := seatColumn(seat, "signature1", "signature2")
	if err != nil {
		return false, err
	}
	return s.exec(ctx,
		`UPDATE matches SET `+col+` = $2
		 WHERE id = $1 AND status = 'decided' AND `+col+` = ''`,
		matchID, sig,
	)
}

func (s *PostgresStore) MarkReady(ctx context.Context, matchID string) (bool, error) {
	return s.exec(ctx,
		`UPDATE matches SET status = 'ready'
		 WHERE id = $1 AND status = 'decided' AND signature1 <> '' AND signature2 <> ''`,
		matchID,
	)
}

func (s *PostgresStore) MarkSettled(ctx context.Context, matchID string, at time.Time) (bool, error) {
	return s.exec(ctx,
		`UPDATE matches SET status = 'settled', settled_at = $2
		 WHERE id = $1 AND status = 'ready'`,
		matchID, at,
	)
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}
