package ws

const (
	// client - server
	MsgSubscribe   = "subscribe"
	MsgUnsubscribe = "unsubscribe"
	MsgHeartbeat   = "heartbeat"
	MsgPing        = "ping"

	// server - client
	MsgReady      = "ready"
	MsgSnapshot   = "snapshot"
	MsgSubscribed = "subscribed"
	MsgPong       = "pong"
	MsgError      = "error"
)
