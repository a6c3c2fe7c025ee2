package relay

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"

	"snackrun/internal/events"
	"snackrun/internal/logging"
	"snackrun/internal/network"
	"snackrun/internal/protocol"
)

// Relay implements network.EventHandler on top of a Registry.
type Relay struct {
	registry  *Registry
	publisher events.Publisher
	log       zerolog.Logger

	// Mirror of registry.Len for readers outside the Hub goroutine.
	open atomic.Int64
}

func New(registry *Registry, publisher events.Publisher) *Relay {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Relay{
		registry:  registry,
		publisher: publisher,
		log:       logging.Component("relay"),
	}
}

// OpenRooms is safe to call from any goroutine.
func (r *Relay) OpenRooms() int {
	return int(r.open.Load())
}

// RoomsHandler serves the open room count as {"open": n}.
func (r *Relay) RoomsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]int{"open": r.OpenRooms()}); err != nil {
			r.log.Warn().Err(err).Msg("writing room count")
		}
	}
}

// --- network.EventHandler ---

func (r *Relay) OnConnect(c *network.Client) {
	r.log.Debug().Str("client", c.ID()).Str("remote", c.RemoteAddr()).Msg("connected")
}

func (r *Relay) OnDisconnect(c *network.Client) {
	r.Disconnect(c)
}

func (r *Relay) OnMessage(c *network.Client, msg network.Message) {
	r.Handle(c, msg.Type, msg.Data)
}

// --- Peer-level operations ---

// Handle routes one inbound frame from p.
func (r *Relay) Handle(p Peer, typ string, data []byte) {
	switch {
	case typ == protocol.TypeCreateRoom:
		r.createRoom(p)
	case typ == protocol.TypeJoinRoom:
		r.joinRoom(p, data)
	case protocol.Relayed(typ):
		r.forward(p, typ, data)
	default:
		r.log.Debug().Str("client", p.ID()).Str("type", typ).Msg("ignoring unknown message type")
	}
}

// Disconnect tears down p's room, if any, and tells the other occupant.
func (r *Relay) Disconnect(p Peer) {
	_, role, _ := r.registry.RoleOf(p)
	survivor, code, ok := r.registry.Leave(p)
	if !ok {
		return
	}
	r.open.Store(int64(r.registry.Len()))

	if survivor != nil {
		survivor.Deliver(protocol.EncodePeerDisconnected())
	}
	r.publisher.Publish(events.NewEvent(events.RoomClosed, code))
	r.log.Info().Str("room", code).Str("client", p.ID()).Str("role", string(role)).Msg("room closed after disconnect")
}

func (r *Relay) createRoom(p Peer) {
	code, err := r.registry.Create(p)
	if err != nil {
		if errors.Is(err, ErrNoFreeCode) {
			r.log.Error().Int("open_rooms", r.registry.Len()).Msg("room code space exhausted")
		}
		p.Deliver(protocol.EncodeRoomError(errorText(err)))
		return
	}
	r.open.Store(int64(r.registry.Len()))

	p.Deliver(protocol.EncodeRoomCreated(code))
	r.publisher.Publish(events.NewEvent(events.RoomCreated, code))
	r.log.Info().Str("room", code).Str("host", p.ID()).Msg("room created")
}

func (r *Relay) joinRoom(p Peer, data []byte) {
	var req protocol.JoinRoom
	if err := protocol.Decode(data, &req); err != nil {
		r.log.Warn().Err(err).Str("client", p.ID()).Msg("bad join_room")
		return
	}
	code := strings.ToUpper(strings.TrimSpace(req.Code))

	room, err := r.registry.Join(code, p)
	if err != nil {
		p.Deliver(protocol.EncodeRoomError(errorText(err)))
		return
	}

	room.Host.Deliver(protocol.EncodeRoomJoined(protocol.RoleHost))
	room.Guest.Deliver(protocol.EncodeRoomJoined(protocol.RoleGuest))
	r.publisher.Publish(events.NewEvent(events.RoomJoined, code))
	r.log.Info().Str("room", code).Str("guest", p.ID()).Msg("guest joined")
}

func (r *Relay) forward(p Peer, typ string, data []byte) {
	other, ok := r.registry.Counterpart(p)
	if !ok {
		return
	}
	if !other.Deliver(data) {
		r.log.Debug().Str("type", typ).Str("to", other.ID()).Msg("dropped forward")
	}
}

// errorText maps a registry error to the room_error text players see.
func errorText(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return protocol.TextRoomNotFound
	case errors.Is(err, ErrRoomFull):
		return protocol.TextRoomFull
	case errors.Is(err, ErrAlreadyInRoom):
		return protocol.TextAlreadyInRoom
	case errors.Is(err, ErrNoFreeCode):
		return protocol.TextNoFreeCode
	case errors.Is(err, ErrConnectionUsed):
		return protocol.TextConnectionUsed
	}
	return protocol.TextRequestRejected
}
