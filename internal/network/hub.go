package network

import (
	"github.com/rs/zerolog"

	"snackrun/internal/logging"
)

type clientMessage struct {
	client *Client
	msg    Message
}

// Hub owns the set of live clients and serialises every event for the handler.
type Hub struct {
	// Only accessed from Run.
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	incoming   chan clientMessage
	quit       chan struct{}

	handler EventHandler
	log     zerolog.Logger
}

func NewHub(handler EventHandler) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		incoming:   make(chan clientMessage),
		quit:       make(chan struct{}),
		handler:    handler,
		log:        logging.Component("hub"),
	}
}

// Run processes hub events until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			client.open = true
			h.handler.OnConnect(client)

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.open = false
				close(client.send)
				h.handler.OnDisconnect(client)
			}

		case cm := <-h.incoming:
			// A frame that was already queued when its sender went away.
			if !h.clients[cm.client] {
				continue
			}
			h.handler.OnMessage(cm.client, cm.msg)

		case <-h.quit:
			return
		}
	}
}

// Stop ends Run. Live connections are left to their own read/write loops.
func (h *Hub) Stop() {
	close(h.quit)
}

func (h *Hub) registerClient(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.quit:
		return false
	}
}

func (h *Hub) unregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}

func (h *Hub) dispatch(cm clientMessage) bool {
	select {
	case h.incoming <- cm:
		return true
	case <-h.quit:
		return false
	}
}
