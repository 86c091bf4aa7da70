package lobby

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rps_arena/internal/domain"
	"rps_arena/internal/game"
	"rps_arena/internal/logger"
	"rps_arena/internal/metrics"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
)

// MatchCreator opens a match for a freshly paired couple.
type MatchCreator interface {
	CreateMatch(ctx context.Context, p1, p2 domain.PlayerID, stake domain.StakeTier, bestOf int) (*domain.Match, error)
}

type TicketStatus string

const (
	TicketNone    TicketStatus = "none"
	TicketWaiting TicketStatus = "waiting"
	TicketMatched TicketStatus = "matched"
)

// Ticket is what a player sees about their pairing request.
type Ticket struct {
	Status  TicketStatus     `json:"status"`
	Stake   domain.StakeTier `json:"stake,omitempty"`
	BestOf  int              `json:"best_of,omitempty"`
	MatchID string           `json:"match_id,omitempty"`
	Since   time.Time        `json:"since,omitempty"`
}

type queueKey struct {
	stake  domain.StakeTier
	bestOf int
}

type intent struct {
	player domain.PlayerID
	key    queueKey
	since  time.Time
}

// Lobby pairs players FIFO inside each (stake, best-of) queue. State is in-memory and
// belongs to a single instance.
type Lobby struct {
	mu      sync.Mutex
	creator MatchCreator
	clock   clockwork.Clock
	ttl     time.Duration
	tiers   map[domain.StakeTier]bool

	waiting map[queueKey][]*intent
	byUser  map[domain.PlayerID]*intent
	matched map[domain.PlayerID]Ticket

	sched gocron.Scheduler
}

func New(creator MatchCreator, clock clockwork.Clock, ttl time.Duration, tiers []domain.StakeTier) *Lobby {
	allowed := make(map[domain.StakeTier]bool, len(tiers))
	for _, t := range tiers {
		allowed[t] = true
	}
	return &Lobby{
		creator: creator,
		clock:   clock,
		ttl:     ttl,
		tiers:   allowed,
		waiting: make(map[queueKey][]*intent),
		byUser:  make(map[domain.PlayerID]*intent),
		matched: make(map[domain.PlayerID]Ticket),
	}
}

// Join queues player for a match of the given tier and format, or pairs them with the oldest
// intent of another player already waiting there.
func (l *Lobby) Join(ctx context.Context, player domain.PlayerID, stake domain.StakeTier, bestOf int) (Ticket, error) {
	if !l.tiers[stake] {
		return Ticket{}, fmt.Errorf("%w: stake tier %q is not offered", game.ErrBadRequest, stake)
	}
	if bestOf < 1 || bestOf%2 == 0 {
		return Ticket{}, fmt.Errorf("%w: best_of must be a positive odd number, got %d", game.ErrBadRequest, bestOf)
	}
	key := queueKey{stake: stake, bestOf: bestOf}

	l.mu.Lock()
	defer l.mu.Unlock()

	if in, ok := l.byUser[player]; ok {
		if in.key == key {
			return in.ticket(), nil
		}
		l.drop(in)
	}
	delete(l.matched, player)

	now := l.clock.Now()
	if peer := l.oldest(key, player); peer != nil {
		l.drop(peer)
		m, err := l.creator.CreateMatch(ctx, peer.player, player, stake, bestOf)
		if err != nil {
			// put the peer back at the head so it keeps its place
			l.waiting[key] = append([]*intent{peer}, l.waiting[key]...)
			l.byUser[peer.player] = peer
			l.gauge(key)
			return Ticket{}, err
		}
		t := Ticket{Status: TicketMatched, Stake: stake, BestOf: bestOf, MatchID: m.ID, Since: now}
		l.matched[peer.player] = t
		l.matched[player] = t
		logger.Info("lobby paired", "match_id", m.ID, "player1", peer.player, "player2", player, "stake", stake, "best_of", bestOf)
		return t, nil
	}

	in := &intent{player: player, key: key, since: now}
	l.waiting[key] = append(l.waiting[key], in)
	l.byUser[player] = in
	l.gauge(key)
	logger.Debug("lobby intent queued", "player", player, "stake", stake, "best_of", bestOf)
	return in.ticket(), nil
}

// Status reports the caller's pending intent or their latest pairing.
func (l *Lobby) Status(player domain.PlayerID) Ticket {
	l.mu.Lock()
	defer l.mu.Unlock()

	if in, ok := l.byUser[player]; ok {
		return in.ticket()
	}
	if t, ok := l.matched[player]; ok {
		return t
	}
	return Ticket{Status: TicketNone}
}

// Waiting is the number of queued intents across all queues.
func (l *Lobby) Waiting() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byUser)
}

// Leave withdraws a waiting intent and forgets any reported pairing.
func (l *Lobby) Leave(player domain.PlayerID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, wasMatched := l.matched[player]
	delete(l.matched, player)
	in, ok := l.byUser[player]
	if ok {
		l.drop(in)
	}
	return ok || wasMatched
}

// Expire removes intents and pairing notices older than the TTL.
func (l *Lobby) Expire() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.clock.Now().Add(-l.ttl)
	removed := 0
	for _, in := range l.byUser {
		if !in.since.After(cutoff) {
			l.drop(in)
			removed++
		}
	}
	for p, t := range l.matched {
		if !t.Since.After(cutoff) {
			delete(l.matched, p)
		}
	}
	if removed > 0 {
		logger.Info("lobby intents expired", "count", removed)
	}
	return removed
}

// Start schedules Expire every half TTL.
func (l *Lobby) Start() error {
	s, err := gocron.NewScheduler(gocron.WithClock(l.clock))
	if err != nil {
		return err
	}
	every := l.ttl / 2
	if every < time.Second {
		every = time.Second
	}
	_, err = s.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(func() { l.Expire() }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return err
	}
	s.Start()
	l.sched = s
	return nil
}

func (l *Lobby) Stop() error {
	if l.sched == nil {
		return nil
	}
	return l.sched.Shutdown()
}

func (l *Lobby) oldest(key queueKey, not domain.PlayerID) *intent {
	for _, in := range l.waiting[key] {
		if in.player != not {
			return in
		}
	}
	return nil
}

// drop must be called with mu held.
func (l *Lobby) drop(in *intent) {
	q := l.waiting[in.key]
	for i, cur := range q {
		if cur == in {
			l.waiting[in.key] = append(q[:i:i], q[i+1:]...)
			break
		}
	}
	if len(l.waiting[in.key]) == 0 {
		delete(l.waiting, in.key)
	}
	delete(l.byUser, in.player)
	l.gauge(in.key)
}

func (l *Lobby) gauge(key queueKey) {
	n := 0
	for k, q := range l.waiting {
		if k.stake == key.stake {
			n += len(q)
		}
	}
	metrics.LobbyWaiting.WithLabelValues(string(key.stake)).Set(float64(n))
}

func (in *intent) ticket() Ticket {
	return Ticket{Status: TicketWaiting, Stake: in.key.stake, BestOf: in.key.bestOf, Since: in.since}
}
