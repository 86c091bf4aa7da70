package ws

import (
	"context"
	"encoding/json"

	"rps_arena/internal/logger"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const DefaultChannel = "rps:match-changed"

// RedisBus announces match changes to every instance subscribed to the same channel.
// Events an instance published itself are ignored on receipt.
type RedisBus struct {
	client  *redis.Client
	channel string
	origin  string
}

func NewRedisBus(client *redis.Client, channel string) *RedisBus {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisBus{client: client, channel: channel, origin: uuid.NewString()}
}

func (b *RedisBus) Publish(ctx context.Context, matchID string) error {
	payload, err := json.Marshal(busEvent{MatchID: matchID, Origin: b.origin})
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

// Run delivers remote events to handle until ctx is done.
func (b *RedisBus) Run(ctx context.Context, handle func(ctx context.Context, matchID string)) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	logger.Info("match bus subscribed", "channel", b.channel, "origin", b.origin)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev busEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				logger.Warn("bad match bus event", "payload", msg.Payload, "error", err)
				continue
			}
			if ev.Origin == b.origin || ev.MatchID == "" {
				continue
			}
			handle(ctx, ev.MatchID)
		}
	}
}

func (b *RedisBus) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}
