package netsession

import "snackrun/internal/protocol"

// Event is one inbound occurrence, returned by Poll in arrival order.
type Event interface {
	isEvent()
}

type RoomCreated struct{ Code string }

type RoomJoined struct{ Role protocol.Role }

type RoomError struct{ Message string }

// RemoteInput is the guest's control state, seen by the host. Mashes counts
// the guest's mash presses since its previous input and belongs to this event
// only.
type RemoteInput struct {
	Steering int
	Pedals   int
	Mashes   int
}

// RemoteState is the host's snapshot, seen by the guest.
type RemoteState struct {
	State protocol.GameState
}

type GameStart struct{}

type RoleSwap struct{}

// PeerDisconnected means the other side left; the room no longer exists.
type PeerDisconnected struct{}

// Disconnected means our own transport closed. Err is nil after Disconnect.
type Disconnected struct{ Err error }

func (RoomCreated) isEvent()      {}
func (RoomJoined) isEvent()       {}
func (RoomError) isEvent()        {}
func (RemoteInput) isEvent()      {}
func (RemoteState) isEvent()      {}
func (GameStart) isEvent()        {}
func (RoleSwap) isEvent()         {}
func (PeerDisconnected) isEvent() {}
func (Disconnected) isEvent()     {}
