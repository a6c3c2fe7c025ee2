// Package netsession is the client side of the relay protocol: one websocket
// to the relay, typed events in, convenience senders out.
package netsession

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"snackrun/internal/logging"
	"snackrun/internal/protocol"
)

// DefaultConnectTimeout is how long Connect waits for the relay.
const DefaultConnectTimeout = 5 * time.Second

const (
	writeWait   = 5 * time.Second
	inboxBuffer = 256
)

var (
	ErrNotConnected     = errors.New("not connected to relay")
	ErrAlreadyConnected = errors.New("already connected")
	ErrConnectTimeout   = errors.New("timed out connecting to relay")
	ErrWrongRole        = errors.New("message not allowed for this role")
)

// ConnState is the transport state.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Conn is the subset of *websocket.Conn the session uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// DialFunc opens a connection to url.
type DialFunc func(ctx context.Context, url string) (Conn, error)

// WebsocketDial dials with gorilla's default dialer.
func WebsocketDial(ctx context.Context, url string) (Conn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %s)", url, err, resp.Status)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return conn, nil
}

// link is one live connection and its reader goroutine.
type link struct {
	conn  Conn
	inbox chan []byte
	lost  chan error
	done  chan struct{}
}

func (l *link) read() {
	for {
		_, data, err := l.conn.ReadMessage()
		if err != nil {
			select {
			case l.lost <- err:
			case <-l.done:
			}
			return
		}
		select {
		case l.inbox <- data:
		case <-l.done:
			return
		}
	}
}

// Option configures a Session.
type Option func(*Session)

func WithDialer(d DialFunc) Option {
	return func(s *Session) { s.dial = d }
}

func WithConnectTimeout(d time.Duration) Option {
	return func(s *Session) { s.timeout = d }
}

// Session owns one connection to the relay. Apart from the internal reader
// goroutine, every method must be called from the game loop goroutine.
type Session struct {
	url     string
	dial    DialFunc
	timeout time.Duration
	log     zerolog.Logger

	link  *link
	state ConnState

	role     protocol.Role
	roomCode string
	// Code sent with the last join_room, recorded once room_joined confirms it.
	joining string

	remoteInput    RemoteInput
	hasRemoteInput bool
	remoteState    protocol.GameState
	hasRemoteState bool
}

func New(url string, opts ...Option) *Session {
	s := &Session{
		url:     url,
		dial:    WebsocketDial,
		timeout: DefaultConnectTimeout,
		log:     logging.Component("netsession"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) State() ConnState    { return s.state }
func (s *Session) Connected() bool     { return s.state == StateConnected }
func (s *Session) Role() protocol.Role { return s.role }
func (s *Session) RoomCode() string    { return s.roomCode }

// RemoteInput is the last guest input received (host side).
func (s *Session) RemoteInput() (RemoteInput, bool) {
	return s.remoteInput, s.hasRemoteInput
}

// RemoteState is the last authoritative snapshot received (guest side).
func (s *Session) RemoteState() (protocol.GameState, bool) {
	return s.remoteState, s.hasRemoteState
}

// Connect dials the relay, giving up after the connect timeout.
func (s *Session) Connect(ctx context.Context) error {
	if s.state != StateDisconnected {
		return ErrAlreadyConnected
	}
	s.state = StateConnecting

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	conn, err := s.dial(ctx, s.url)
	if err != nil {
		s.state = StateDisconnected
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s: %v", ErrConnectTimeout, s.timeout, err)
		}
		return err
	}

	s.link = &link{
		conn:  conn,
		inbox: make(chan []byte, inboxBuffer),
		lost:  make(chan error, 1),
		done:  make(chan struct{}),
	}
	go s.link.read()
	s.state = StateConnected
	s.log.Info().Str("url", s.url).Msg("connected to relay")
	return nil
}

// Disconnect closes the transport and clears role and room. Idempotent.
func (s *Session) Disconnect() {
	if s.link != nil {
		close(s.link.done)
		s.link.conn.Close()
		s.link = nil
		s.log.Info().Msg("disconnected")
	}
	s.reset()
}

func (s *Session) reset() {
	s.state = StateDisconnected
	s.role = protocol.RoleNone
	s.roomCode = ""
	s.joining = ""
	s.remoteInput, s.hasRemoteInput = RemoteInput{}, false
	s.remoteState, s.hasRemoteState = protocol.GameState{}, false
}

// Poll applies every frame received since the last call and returns the
// resulting events. A transport close yields a final Disconnected event.
func (s *Session) Poll() []Event {
	if s.link == nil {
		return nil
	}
	l := s.link

	var out []Event
	drain := func() {
		for {
			select {
			case data := <-l.inbox:
				if ev := s.apply(data); ev != nil {
					out = append(out, ev)
				}
			default:
				return
			}
		}
	}

	drain()
	select {
	case err := <-l.lost:
		// Frames queued just before the close still count.
		drain()
		close(l.done)
		l.conn.Close()
		s.link = nil
		s.reset()
		s.log.Warn().Err(err).Msg("connection to relay lost")
		out = append(out, Disconnected{Err: err})
	default:
	}
	return out
}

func (s *Session) apply(data []byte) Event {
	typ, err := protocol.PeekType(data)
	if err != nil {
		s.log.Warn().Err(err).Msg("dropping frame")
		return nil
	}

	switch typ {
	case protocol.TypeRoomCreated:
		var msg protocol.RoomCreated
		if !s.decode(data, &msg) {
			return nil
		}
		if !s.assignRole(protocol.RoleHost) {
			return nil
		}
		s.roomCode = msg.Code
		return RoomCreated{Code: msg.Code}

	case protocol.TypeRoomJoined:
		var msg protocol.RoomJoined
		if !s.decode(data, &msg) {
			return nil
		}
		if !s.assignRole(msg.Role) {
			return nil
		}
		if s.roomCode == "" {
			s.roomCode = s.joining
		}
		return RoomJoined{Role: msg.Role}

	case protocol.TypeRoomError:
		var msg protocol.RoomError
		if !s.decode(data, &msg) {
			return nil
		}
		return RoomError{Message: msg.Message}

	case protocol.TypeGuestInput:
		var msg protocol.GuestInput
		if !s.decode(data, &msg) {
			return nil
		}
		s.remoteInput = RemoteInput{Steering: msg.Steering, Pedals: msg.Pedals, Mashes: msg.Mashes}
		s.hasRemoteInput = true
		return s.remoteInput

	case protocol.TypeGameState:
		var msg protocol.GameState
		if !s.decode(data, &msg) {
			return nil
		}
		s.remoteState = msg
		s.hasRemoteState = true
		return RemoteState{State: msg}

	case protocol.TypeGameStart:
		return GameStart{}

	case protocol.TypeRoleSwap:
		return RoleSwap{}

	case protocol.TypePeerDisconnected:
		return PeerDisconnected{}
	}

	s.log.Debug().Str("type", typ).Msg("ignoring unknown message type")
	return nil
}

func (s *Session) decode(data []byte, v any) bool {
	if err := protocol.Decode(data, v); err != nil {
		s.log.Warn().Err(err).Msg("dropping frame")
		return false
	}
	return true
}

// assignRole sets the role once. A different role later on is refused.
func (s *Session) assignRole(r protocol.Role) bool {
	if r != protocol.RoleHost && r != protocol.RoleGuest {
		s.log.Warn().Str("role", string(r)).Msg("ignoring unknown role")
		return false
	}
	if s.role != protocol.RoleNone && s.role != r {
		s.log.Warn().Str("have", string(s.role)).Str("got", string(r)).Msg("ignoring role change")
		return false
	}
	s.role = r
	return true
}

// --- Senders ---

func (s *Session) send(data []byte) error {
	if s.state != StateConnected || s.link == nil {
		return ErrNotConnected
	}
	conn := s.link.conn
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("setting write deadline: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("writing to relay: %w", err)
	}
	return nil
}

func (s *Session) requireRole(r protocol.Role) error {
	if s.role != r {
		return fmt.Errorf("%w: need %s, have %q", ErrWrongRole, r, s.role)
	}
	return nil
}

func (s *Session) CreateRoom() error {
	return s.send(protocol.EncodeCreateRoom())
}

// JoinRoom validates and upper-cases code before sending it.
func (s *Session) JoinRoom(code string) error {
	normalized, err := protocol.NormalizeRoomCode(code)
	if err != nil {
		return err
	}
	if err := s.send(protocol.EncodeJoinRoom(normalized)); err != nil {
		return err
	}
	s.joining = normalized
	return nil
}

// SendInput is sent by the guest once per tick. mashes is the number of
// mash presses since the previous call.
func (s *Session) SendInput(steering, pedals, mashes int) error {
	if err := s.requireRole(protocol.RoleGuest); err != nil {
		return err
	}
	return s.send(protocol.EncodeGuestInput(steering, pedals, mashes))
}

// SendGameState is sent by the host; callers throttle it.
func (s *Session) SendGameState(state protocol.GameState) error {
	if err := s.requireRole(protocol.RoleHost); err != nil {
		return err
	}
	return s.send(protocol.EncodeGameState(state))
}

func (s *Session) SendGameStart() error {
	if err := s.requireRole(protocol.RoleHost); err != nil {
		return err
	}
	return s.send(protocol.EncodeGameStart())
}

func (s *Session) SendRoleSwap() error {
	if err := s.requireRole(protocol.RoleHost); err != nil {
		return err
	}
	return s.send(protocol.EncodeRoleSwap())
}
