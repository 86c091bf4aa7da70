package ws

import "rps_arena/internal/game"

// client → server
type Inbound struct {
	Type    string `json:"type"`
	MatchID string `json:"match_id,omitempty"`
}

// server → client
type Outbound struct {
	Type     string         `json:"type"`
	MatchID  string         `json:"match_id,omitempty"`
	Changed  *bool          `json:"changed,omitempty"`
	Snapshot *game.Snapshot `json:"snapshot,omitempty"`
	Error    game.Kind      `json:"error,omitempty"`
	Message  string         `json:"message,omitempty"`
}

// busEvent is what instances exchange over the Redis channel.
type busEvent struct {
	MatchID string `json:"match_id"`
	Origin  string `json:"origin"`
}
