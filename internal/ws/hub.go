package ws

import (
	"context"
	"sync"

	"rps_arena/internal/domain"
	"rps_arena/internal/game"
	"rps_arena/internal/logger"
	"rps_arena/internal/metrics"
	"rps_arena/internal/service"
)

// MatchSource is the slice of the match service the hub talks to.
type MatchSource interface {
	Snapshot(ctx context.Context, matchID string, player domain.PlayerID) (*game.Snapshot, error)
	Heartbeat(ctx context.Context, matchID string, player domain.PlayerID) (bool, *game.Snapshot, error)
	View(ctx context.Context, matchID string, player domain.PlayerID) (*game.Snapshot, error)
	ReconcileOn(ctx context.Context, matchID string, trigger service.Trigger) (bool, error)
}

// Publisher fans a match change out to other instances.
type Publisher interface {
	Publish(ctx context.Context, matchID string) error
}

// Hub tracks connected clients and which matches they follow, and pushes a fresh snapshot to
// every follower when a match changes.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	subs    map[string]map[*Client]struct{}

	source MatchSource
	bus    Publisher
}

func NewHub(source MatchSource) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		subs:    make(map[string]map[*Client]struct{}),
		source:  source,
	}
}

// SetPublisher enables cross-instance fan-out.
func (h *Hub) SetPublisher(p Publisher) {
	h.bus = p
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	metrics.WSClients.Inc()
	logger.Debug("ws client connected", "player", c.Player)
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	for id, set := range h.subs {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, id)
		}
	}
	h.mu.Unlock()
	metrics.WSClients.Dec()
	logger.Debug("ws client disconnected", "player", c.Player)
}

func (h *Hub) Subscribe(c *Client, matchID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	set, ok := h.subs[matchID]
	if !ok {
		set = make(map[*Client]struct{})
		h.subs[matchID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) Unsubscribe(c *Client, matchID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[matchID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, matchID)
		}
	}
}

// Clients is the number of connected sockets on this instance.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Subscribers returns how many local clients follow matchID.
func (h *Hub) Subscribers(matchID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[matchID])
}

// MatchChanged implements service.Notifier: push locally, then tell the other instances.
func (h *Hub) MatchChanged(ctx context.Context, matchID string) {
	h.Deliver(ctx, matchID)
	if h.bus != nil {
		if err := h.bus.Publish(ctx, matchID); err != nil {
			logger.Warn("match change publish failed", "match_id", matchID, "error", err)
		}
	}
}

// Remote handles a change announced by another instance. The local sweep may itself change the
// match, in which case the notifier path delivers; otherwise deliver what is stored.
func (h *Hub) Remote(ctx context.Context, matchID string) {
	if h.Subscribers(matchID) == 0 {
		return
	}
	changed, err := h.source.ReconcileOn(ctx, matchID, service.TriggerPush)
	if err != nil {
		logger.Warn("push reconcile failed", "match_id", matchID, "error", err)
	}
	if !changed {
		h.Deliver(ctx, matchID)
	}
}

// Deliver sends every local follower of matchID their own view of it.
func (h *Hub) Deliver(ctx context.Context, matchID string) {
	h.mu.RLock()
	followers := make([]*Client, 0, len(h.subs[matchID]))
	for c := range h.subs[matchID] {
		followers = append(followers, c)
	}
	h.mu.RUnlock()

	for _, c := range followers {
		snap, err := h.source.View(ctx, matchID, c.Player)
		if err != nil {
			logger.Warn("snapshot for push failed", "match_id", matchID, "player", c.Player, "error", err)
			continue
		}
		c.write(Outbound{Type: MsgSnapshot, MatchID: matchID, Snapshot: snap})
	}
}
