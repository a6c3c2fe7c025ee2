// Package input turns physical key state into the two logical control
// channels, steering and pedals, and counts mash actuations for the delivery
// minigame.
package input

import "fmt"

// Key is a physical key, named like the browser KeyboardEvent.code values.
type Key string

const (
	KeyA          Key = "KeyA"
	KeyD          Key = "KeyD"
	KeyW          Key = "KeyW"
	KeyS          Key = "KeyS"
	KeySpace      Key = "Space"
	KeyArrowLeft  Key = "ArrowLeft"
	KeyArrowRight Key = "ArrowRight"
	KeyArrowUp    Key = "ArrowUp"
	KeyArrowDown  Key = "ArrowDown"
	KeyEnter      Key = "Enter"
)

// Control is a logical channel.
type Control string

const (
	Steering Control = "steering"
	Pedals   Control = "pedals"
)

// Other returns the opposite channel.
func (c Control) Other() Control {
	if c == Steering {
		return Pedals
	}
	return Steering
}

// Player indexes the two logical players.
type Player int

const (
	PlayerOne Player = iota
	PlayerTwo
)

// Pair is a two-key control. Neg reads as left or brake, Pos as right or gas.
type Pair struct {
	Neg Key
	Pos Key
}

var (
	PairOne = Pair{Neg: KeyA, Pos: KeyD}
	PairTwo = Pair{Neg: KeyArrowLeft, Pos: KeyArrowRight}
)

var mashKeys = map[Key]Player{
	KeyA:          PlayerOne,
	KeyD:          PlayerOne,
	KeyW:          PlayerOne,
	KeyS:          PlayerOne,
	KeySpace:      PlayerOne,
	KeyArrowLeft:  PlayerTwo,
	KeyArrowRight: PlayerTwo,
	KeyArrowUp:    PlayerTwo,
	KeyArrowDown:  PlayerTwo,
	KeyEnter:      PlayerTwo,
}

// Mode selects how keys are decoded.
type Mode int

const (
	// Local co-op: two key pairs on one keyboard, one per channel.
	Local Mode = iota
	// Network: one key pair whose meaning depends on the assigned channel.
	Network
)

// Binding describes which keys currently drive a channel, for display.
type Binding struct {
	Player  Player
	Control Control
	Keys    Pair
}

func (b Binding) String() string {
	neg, pos := "left", "right"
	if b.Control == Pedals {
		neg, pos = "brake", "gas"
	}
	return fmt.Sprintf("P%d %s: %s=%s %s=%s", int(b.Player)+1, b.Control, b.Keys.Neg, neg, b.Keys.Pos, pos)
}

// Mapper tracks held keys and decodes them. It is not safe for concurrent use;
// the game loop owns it.
type Mapper struct {
	mode    Mode
	held    map[Key]bool
	swapped bool

	// Channel driven by this client in Network mode before any swap.
	netControl Control

	mashes [2]int
}

// NewLocal returns a mapper for two players sharing one keyboard.
func NewLocal() *Mapper {
	return &Mapper{mode: Local, held: make(map[Key]bool), netControl: Steering}
}

// NewNetwork returns a mapper for one player who initially drives control.
func NewNetwork(control Control) *Mapper {
	return &Mapper{mode: Network, held: make(map[Key]bool), netControl: control}
}

func (m *Mapper) Mode() Mode { return m.mode }

// Press records a key going down. Only the down edge counts as a mash, so
// auto-repeat while held does not.
func (m *Mapper) Press(k Key) {
	if m.held[k] {
		return
	}
	m.held[k] = true

	player, ok := mashKeys[k]
	if !ok {
		return
	}
	if m.mode == Network {
		player = PlayerOne
	}
	m.mashes[player]++
}

func (m *Mapper) Release(k Key) {
	delete(m.held, k)
}

// ReleaseAll clears every held key, e.g. when the window loses focus.
func (m *Mapper) ReleaseAll() {
	clear(m.held)
}

// Swap inverts the steering/pedals assignment. Swaps accumulate: the current
// mapping always reflects the parity of all swaps so far.
func (m *Mapper) Swap() {
	m.swapped = !m.swapped
}

func (m *Mapper) Swapped() bool { return m.swapped }

// Control returns the channel this client drives in Network mode.
func (m *Mapper) Control() Control {
	if m.swapped {
		return m.netControl.Other()
	}
	return m.netControl
}

// axis reads a pair as -1, 0 or 1. Both keys held cancel out.
func (m *Mapper) axis(neg, pos bool) int {
	switch {
	case neg && !pos:
		return -1
	case pos && !neg:
		return 1
	}
	return 0
}

func (m *Mapper) pairAxis(p Pair) int {
	return m.axis(m.held[p.Neg], m.held[p.Pos])
}

// Controls decodes the held keys into (steering, pedal). In Network mode only
// the channel this client drives is non-zero.
func (m *Mapper) Controls() (steering, pedal int) {
	if m.mode == Network {
		v := m.axis(m.held[PairOne.Neg] || m.held[PairTwo.Neg], m.held[PairOne.Pos] || m.held[PairTwo.Pos])
		if m.Control() == Steering {
			return v, 0
		}
		return 0, v
	}

	steerPair, pedalPair := PairOne, PairTwo
	if m.swapped {
		steerPair, pedalPair = PairTwo, PairOne
	}
	return m.pairAxis(steerPair), m.pairAxis(pedalPair)
}

// AddRemoteMashes credits the remote player with n mash presses reported by
// the guest. Negative counts are ignored.
func (m *Mapper) AddRemoteMashes(n int) {
	if n > 0 {
		m.mashes[PlayerTwo] += n
	}
}

// DrainMashes returns the mashes of both players since the last drain and
// zeroes the counters.
func (m *Mapper) DrainMashes() int {
	n := m.mashes[PlayerOne] + m.mashes[PlayerTwo]
	m.mashes = [2]int{}
	return n
}

// DrainPlayer is DrainMashes for a single player.
func (m *Mapper) DrainPlayer(p Player) int {
	n := m.mashes[p]
	m.mashes[p] = 0
	return n
}

// Bindings lists the current key assignment.
func (m *Mapper) Bindings() []Binding {
	if m.mode == Network {
		return []Binding{
			{Player: PlayerOne, Control: m.Control(), Keys: PairOne},
			{Player: PlayerOne, Control: m.Control(), Keys: PairTwo},
		}
	}
	if m.swapped {
		return []Binding{
			{Player: PlayerOne, Control: Pedals, Keys: PairOne},
			{Player: PlayerTwo, Control: Steering, Keys: PairTwo},
		}
	}
	return []Binding{
		{Player: PlayerOne, Control: Steering, Keys: PairOne},
		{Player: PlayerTwo, Control: Pedals, Keys: PairTwo},
	}
}
