package network

// EventHandler connects the transport to the relay logic. All three callbacks are
// invoked from the Hub goroutine, one at a time, so implementations may keep
// their state without locks.
type EventHandler interface {
	// OnConnect is called once a new client finished the websocket upgrade.
	OnConnect(c *Client)

	// OnDisconnect is called once when a client goes away, for whatever reason.
	OnDisconnect(c *Client)

	// OnMessage is called for every well-formed inbound frame.
	OnMessage(c *Client, msg Message)
}
