// Package protocol defines the JSON messages exchanged between the relay and
// the game clients. Every message is a flat JSON object carrying a "type" field.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Message types. The first group goes client -> relay, the second relay -> client,
// the last one is forwarded untouched between the two peers of a room.
const (
	TypeCreateRoom = "create_room"
	TypeJoinRoom   = "join_room"

	TypeRoomCreated      = "room_created"
	TypeRoomJoined       = "room_joined"
	TypeRoomError        = "room_error"
	TypePeerDisconnected = "peer_disconnected"

	TypeGuestInput = "guest_input"
	TypeGameState  = "game_state"
	TypeGameStart  = "game_start"
	TypeRoleSwap   = "role_swap"
)

// Role is the position a connection holds inside a room.
type Role string

const (
	RoleNone  Role = ""
	RoleHost  Role = "host"
	RoleGuest Role = "guest"
)

// Texts carried by room_error. Clients show them to the player as they are.
const (
	TextRoomNotFound    = "Room not found"
	TextRoomFull        = "Room is full"
	TextAlreadyInRoom   = "Already in a room"
	TextNoFreeCode      = "Could not allocate a room code"
	TextConnectionUsed  = "Room closed, reconnect to play again"
	TextRequestRejected = "Request rejected"
)

var ErrMalformed = errors.New("malformed message")

// Relayed reports whether the relay forwards messages of type t to the other peer.
func Relayed(t string) bool {
	switch t {
	case TypeGuestInput, TypeGameState, TypeGameStart, TypeRoleSwap:
		return true
	}
	return false
}

// --- Payloads ---

type envelope struct {
	Type string `json:"type"`
}

type CreateRoom struct {
	Type string `json:"type"`
}

type JoinRoom struct {
	Type string `json:"type"`
	Code string `json:"code"`
}

type RoomCreated struct {
	Type string `json:"type"`
	Code string `json:"code"`
}

type RoomJoined struct {
	Type string `json:"type"`
	Role Role   `json:"role"`
}

type RoomError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type PeerDisconnected struct {
	Type string `json:"type"`
}

// GuestInput is the per-tick control state a guest forwards to the host.
// Steering and Pedals are in {-1, 0, 1}. Mashes is the number of mash
// presses since the previous guest_input and is omitted when zero.
type GuestInput struct {
	Type     string `json:"type"`
	Steering int    `json:"steering"`
	Pedals   int    `json:"pedals"`
	Mashes   int    `json:"mashes,omitempty"`
}

// GameState is the host's authoritative vehicle snapshot.
type GameState struct {
	Type       string  `json:"type"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Heading    float64 `json:"heading"`
	Speed      float64 `json:"speed"`
	SteerState float64 `json:"steerState"`
}

type GameStart struct {
	Type string `json:"type"`
}

type RoleSwap struct {
	Type string `json:"type"`
}

// --- Encoding ---

// PeekType extracts the "type" field without decoding the rest of the frame.
func PeekType(data []byte) (string, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return "", fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return env.Type, nil
}

// Decode unmarshals a frame into v, wrapping failures in ErrMalformed.
func Decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

func encode(v any) []byte {
	// Every payload is a plain struct of strings and numbers, Marshal cannot fail.
	b, _ := json.Marshal(v)
	return b
}

func EncodeCreateRoom() []byte { return encode(CreateRoom{Type: TypeCreateRoom}) }

func EncodeJoinRoom(code string) []byte {
	return encode(JoinRoom{Type: TypeJoinRoom, Code: code})
}

func EncodeRoomCreated(code string) []byte {
	return encode(RoomCreated{Type: TypeRoomCreated, Code: code})
}

func EncodeRoomJoined(role Role) []byte {
	return encode(RoomJoined{Type: TypeRoomJoined, Role: role})
}

func EncodeRoomError(message string) []byte {
	return encode(RoomError{Type: TypeRoomError, Message: message})
}

func EncodePeerDisconnected() []byte {
	return encode(PeerDisconnected{Type: TypePeerDisconnected})
}

func EncodeGuestInput(steering, pedals, mashes int) []byte {
	return encode(GuestInput{Type: TypeGuestInput, Steering: steering, Pedals: pedals, Mashes: mashes})
}

// EncodeGameState stamps the type field on s and encodes it.
func EncodeGameState(s GameState) []byte {
	s.Type = TypeGameState
	return encode(s)
}

func EncodeGameStart() []byte { return encode(GameStart{Type: TypeGameStart}) }

func EncodeRoleSwap() []byte { return encode(RoleSwap{Type: TypeRoleSwap}) }
