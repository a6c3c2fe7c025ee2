// Package relay pairs two peers into a room and forwards gameplay frames
// between them. It holds no game logic.
package relay

import (
	"errors"
	"math/rand/v2"
	"time"

	"snackrun/internal/protocol"
)

// MaxCodeAttempts bounds how many random codes Create draws before giving up.
const MaxCodeAttempts = 32

var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrRoomFull      = errors.New("room is full")
	ErrAlreadyInRoom = errors.New("already in a room")
	ErrNoFreeCode    = errors.New("could not allocate a room code")
	// A connection whose room was torn down cannot open or join another one.
	ErrConnectionUsed = errors.New("connection already used for a room")
)

// Peer is one side of a room. network.Client implements it.
type Peer interface {
	ID() string
	// Deliver hands a frame to the peer's connection, returning false if it
	// could not be queued.
	Deliver(data []byte) bool
}

// CodeGenerator returns a candidate room code.
type CodeGenerator func() string

// RandomCodes returns a CodeGenerator backed by rng.
func RandomCodes(rng *rand.Rand) CodeGenerator {
	return func() string {
		return protocol.RandomRoomCode(rng)
	}
}

// Room holds at most one host and one guest.
type Room struct {
	Code      string
	Host      Peer
	Guest     Peer
	CreatedAt time.Time
}

// Joined reports whether both slots are taken.
func (r *Room) Joined() bool {
	return r.Guest != nil
}

type binding struct {
	code string
	role protocol.Role
}

// Registry maps room codes to rooms and peers to their binding. It is not safe
// for concurrent use; the relay only touches it from the Hub goroutine.
type Registry struct {
	rooms    map[string]*Room
	bindings map[string]binding
	// Survivors of a torn-down room, until their own connection goes away.
	retired  map[string]struct{}
	codes    CodeGenerator
	now      func() time.Time
}

func NewRegistry(codes CodeGenerator) *Registry {
	return &Registry{
		rooms:    make(map[string]*Room),
		bindings: make(map[string]binding),
		retired:  make(map[string]struct{}),
		codes:    codes,
		now:      time.Now,
	}
}

// Create opens a room with host in the host slot and returns its code.
func (r *Registry) Create(host Peer) (string, error) {
	if err := r.checkUnbound(host); err != nil {
		return "", err
	}

	for attempt := 0; attempt < MaxCodeAttempts; attempt++ {
		code := r.codes()
		if _, taken := r.rooms[code]; taken {
			continue
		}
		r.rooms[code] = &Room{Code: code, Host: host, CreatedAt: r.now()}
		r.bindings[host.ID()] = binding{code: code, role: protocol.RoleHost}
		return code, nil
	}
	return "", ErrNoFreeCode
}

// Join places guest in the guest slot of room code.
func (r *Registry) Join(code string, guest Peer) (*Room, error) {
	if err := r.checkUnbound(guest); err != nil {
		return nil, err
	}
	room, ok := r.rooms[code]
	if !ok {
		return nil, ErrRoomNotFound
	}
	if room.Joined() {
		return nil, ErrRoomFull
	}
	room.Guest = guest
	r.bindings[guest.ID()] = binding{code: code, role: protocol.RoleGuest}
	return room, nil
}

// Lookup returns the room with the given code.
func (r *Registry) Lookup(code string) (*Room, bool) {
	room, ok := r.rooms[code]
	return room, ok
}

// RoleOf returns the room code and role p is bound to.
func (r *Registry) RoleOf(p Peer) (string, protocol.Role, bool) {
	b, ok := r.bindings[p.ID()]
	return b.code, b.role, ok
}

// Counterpart returns the other occupant of p's room, if there is one.
func (r *Registry) Counterpart(p Peer) (Peer, bool) {
	b, ok := r.bindings[p.ID()]
	if !ok {
		return nil, false
	}
	room := r.rooms[b.code]
	var other Peer
	if b.role == protocol.RoleHost {
		other = room.Guest
	} else {
		other = room.Host
	}
	return other, other != nil
}

// checkUnbound allows one room per connection for its whole lifetime.
func (r *Registry) checkUnbound(p Peer) error {
	if _, bound := r.bindings[p.ID()]; bound {
		return ErrAlreadyInRoom
	}
	if _, used := r.retired[p.ID()]; used {
		return ErrConnectionUsed
	}
	return nil
}

// Leave is called when p's connection closes. It removes p's room entirely
// and clears both bindings; the surviving peer keeps its connection but may
// not bind to another room. It returns the survivor, if any, and the code of
// the destroyed room.
func (r *Registry) Leave(p Peer) (survivor Peer, code string, ok bool) {
	delete(r.retired, p.ID())

	b, bound := r.bindings[p.ID()]
	if !bound {
		return nil, "", false
	}
	survivor, _ = r.Counterpart(p)

	delete(r.bindings, p.ID())
	if survivor != nil {
		delete(r.bindings, survivor.ID())
		r.retired[survivor.ID()] = struct{}{}
	}
	delete(r.rooms, b.code)
	return survivor, b.code, true
}

// Len is the number of open rooms.
func (r *Registry) Len() int {
	return len(r.rooms)
}
