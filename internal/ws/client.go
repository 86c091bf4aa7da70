package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"rps_arena/internal/domain"
	"rps_arena/internal/game"
	"rps_arena/internal/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 30 * time.Second
	pingPeriod     = 25 * time.Second
	maxMessageSize = 4096
	actionTimeout  = 5 * time.Second
)

type Client struct {
	Player domain.PlayerID
	Conn   *websocket.Conn
	Send   chan []byte
	Hub    *Hub

	Done      chan struct{}
	closeOnce sync.Once
}

func NewClient(player domain.PlayerID, conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		Player: player,
		Conn:   conn,
		Send:   make(chan []byte, 64),
		Hub:    hub,
		Done:   make(chan struct{}),
	}
}

// Run serves the connection until the peer goes away.
func (c *Client) Run() {
	c.Hub.Register(c)
	go c.writePump()
	c.write(Outbound{Type: MsgReady})
	c.readPump()
}

// readPump handles inbound messages until the socket fails or goes quiet.
func (c *Client) readPump() {
	defer c.disconnect()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("ws read error", "player", c.Player, "error", err)
			}
			return
		}
		c.handle(msg)
	}
}

// writePump drains Send and keeps the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case msg := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Debug("ws write error", "player", c.Player, "error", err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.Done:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

func (c *Client) handle(raw []byte) {
	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		c.writeError("", game.KindBadRequest, "malformed message")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()

	switch in.Type {
	case MsgSubscribe:
		snap, err := c.Hub.source.Snapshot(ctx, in.MatchID, c.Player)
		if err != nil {
			c.writeError(in.MatchID, game.KindOf(err), err.Error())
			return
		}
		c.Hub.Subscribe(c, in.MatchID)
		c.write(Outbound{Type: MsgSubscribed, MatchID: in.MatchID, Snapshot: snap})

	case MsgUnsubscribe:
		c.Hub.Unsubscribe(c, in.MatchID)

	case MsgHeartbeat:
		changed, snap, err := c.Hub.source.Heartbeat(ctx, in.MatchID, c.Player)
		if err != nil {
			c.writeError(in.MatchID, game.KindOf(err), err.Error())
			return
		}
		c.write(Outbound{Type: MsgSnapshot, MatchID: in.MatchID, Changed: &changed, Snapshot: snap})

	case MsgPing:
		c.write(Outbound{Type: MsgPong})

	default:
		c.writeError(in.MatchID, game.KindBadRequest, "unknown message type "+in.Type)
	}
}

func (c *Client) writeError(matchID string, kind game.Kind, msg string) {
	c.write(Outbound{Type: MsgError, MatchID: matchID, Error: kind, Message: msg})
}

// write queues out without blocking. A client too slow to drain its buffer misses messages
// and catches up with the next snapshot.
func (c *Client) write(out Outbound) {
	b, err := json.Marshal(out)
	if err != nil {
		logger.Error("ws marshal failed", "type", out.Type, "error", err)
		return
	}
	select {
	case <-c.Done:
	case c.Send <- b:
	default:
		logger.Warn("ws send buffer full, dropping message", "player", c.Player, "type", out.Type)
	}
}

// disconnect unregisters the client and stops the write pump, once.
func (c *Client) disconnect() {
	c.closeOnce.Do(func() {
		c.Hub.Unregister(c)
		close(c.Done)
	})
}
