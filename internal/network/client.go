package network

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"snackrun/internal/protocol"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	sendBuffer = 256
)

// Client is one websocket connection as seen by the relay.
type Client struct {
	id   string
	conn *websocket.Conn
	hub  *Hub
	log  zerolog.Logger

	// Outbound frames. Closed by the Hub on unregister, which stops writeLoop.
	send chan []byte

	// open is only touched from the Hub goroutine.
	open bool
}

func newClient(conn *websocket.Conn, hub *Hub) *Client {
	id := uuid.NewString()
	return &Client{
		id:   id,
		conn: conn,
		hub:  hub,
		log:  hub.log.With().Str("client", id).Str("remote", conn.RemoteAddr().String()).Logger(),
		send: make(chan []byte, sendBuffer),
	}
}

func (c *Client) ID() string { return c.id }

func (c *Client) RemoteAddr() string { return c.conn.RemoteAddr().String() }

// Deliver queues a frame for the peer without blocking. It returns false when the
// connection is already closed or its buffer is full, in which case the frame is
// dropped. Must be called from the Hub goroutine, i.e. from an EventHandler.
func (c *Client) Deliver(data []byte) bool {
	if !c.open {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		c.log.Warn().Msg("send buffer full, dropping frame")
		return false
	}
}

func (c *Client) readLoop() {
	defer func() {
		c.hub.unregisterClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.log.Warn().Err(err).Msg("unexpected close")
			}
			return
		}

		typ, err := protocol.PeekType(data)
		if err != nil {
			c.log.Warn().Err(err).Msg("dropping frame")
			continue
		}

		if !c.hub.dispatch(clientMessage{client: c, msg: Message{Type: typ, Data: data}}) {
			return
		}
	}
}

func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Warn().Err(err).Msg("write failed")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
