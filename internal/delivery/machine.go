// Package delivery runs the snack-station minigame: approach a station, mash
// to fill the progress bar, swap control roles and count back into driving.
package delivery

import (
	"time"

	"github.com/rs/zerolog"

	"snackrun/internal/logging"
	"snackrun/internal/track"
)

// State is the current phase. Exactly one is active at a time.
type State int

const (
	Driving State = iota
	Approaching
	Delivering
	WalkBack
	SwapAnnounce
	Countdown
)

func (s State) String() string {
	switch s {
	case Driving:
		return "driving"
	case Approaching:
		return "approaching"
	case Delivering:
		return "delivering"
	case WalkBack:
		return "walk_back"
	case SwapAnnounce:
		return "swap_announce"
	case Countdown:
		return "countdown"
	default:
		return "unknown"
	}
}

// Frozen reports whether the vehicle is held still in this state.
func (s State) Frozen() bool {
	return s >= Delivering
}

const (
	MashFill       = 3.0
	DecayPerSecond = 8.0
	MaxProgress    = 100.0

	// A station is approached at or below ApproachSpeed and abandoned above AbortSpeed.
	ApproachSpeed = 1.5
	AbortSpeed    = 3.0

	SwapAnnounceDuration = 2 * time.Second
	// Three one-second "N" steps, then "GO!" for the last second.
	CountdownDuration = 4 * time.Second
)

// Option configures optional collaborators.
type Option func(*Machine)

func WithAnimator(a Animator) Option {
	return func(m *Machine) { m.anim = a }
}

func WithPresenter(p Presenter) Option {
	return func(m *Machine) {
		if p != nil {
			m.ui = p
		}
	}
}

// Machine is the delivery state machine. It is driven by Tick from the game
// loop and is not safe for concurrent use.
type Machine struct {
	vehicle Vehicle
	track   *track.Track
	mashes  MashSource
	swapper RoleSwapper
	anim    Animator
	ui      Presenter
	log     zerolog.Logger

	state    State
	current  *track.Station
	progress float64

	// Remaining dwell in SwapAnnounce and Countdown.
	timer     time.Duration
	countdown string

	// Set when this delivery started a walk sequence on the animator.
	animating bool
}

func New(v Vehicle, t *track.Track, mashes MashSource, swapper RoleSwapper, opts ...Option) *Machine {
	m := &Machine{
		vehicle: v,
		track:   t,
		mashes:  mashes,
		swapper: swapper,
		ui:      nopPresenter{},
		log:     logging.Component("delivery"),
		state:   Driving,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Machine) State() State { return m.state }

func (m *Machine) Progress() float64 { return m.progress }

// Current is the station being served, nil while driving.
func (m *Machine) Current() *track.Station { return m.current }

// CountdownLabel is the label on screen during Countdown.
func (m *Machine) CountdownLabel() string { return m.countdown }

// Tick advances the machine by dt. The mash counter is drained on every tick,
// whatever the state, so presses made while driving never leak into a fill.
func (m *Machine) Tick(dt time.Duration) {
	mashes := m.mashes.DrainMashes()

	switch m.state {
	case Driving:
		m.tickDriving()
	case Approaching:
		m.tickApproaching(mashes)
	case Delivering:
		m.tickDelivering(dt, mashes)
	case WalkBack:
		if !m.anim.Active() {
			m.enterSwapAnnounce()
		}
	case SwapAnnounce:
		m.timer -= dt
		if m.timer <= 0 {
			m.enterCountdown()
		}
	case Countdown:
		m.tickCountdown(dt)
	}
}

func (m *Machine) tickDriving() {
	if m.vehicle.Speed() > ApproachSpeed {
		return
	}
	pos := m.vehicle.Position()
	for _, s := range m.track.Stations {
		if s.Delivered || !s.InRange(pos) {
			continue
		}
		m.current = s
		m.state = Approaching
		m.ui.ShowPrompt(s)
		m.log.Debug().Str("station", s.ID).Msg("approaching")
		return
	}
}

func (m *Machine) tickApproaching(mashes int) {
	if !m.current.InRange(m.vehicle.Position()) || m.vehicle.Speed() > AbortSpeed {
		m.ui.HidePrompt()
		m.ui.ResetFill(m.current)
		m.log.Debug().Str("station", m.current.ID).Msg("approach abandoned")
		m.current = nil
		m.progress = 0
		m.state = Driving
		return
	}
	if mashes > 0 {
		m.enterDelivering()
	}
}

func (m *Machine) enterDelivering() {
	m.state = Delivering
	m.progress = 0
	m.vehicle.SetFrozen(true)

	m.ui.HidePrompt()
	m.ui.ShowProgress(m.current, m.progress)

	if m.anim != nil {
		m.anim.StartDelivery(m.vehicle.Position(), m.vehicle.Heading(), m.current.Pos)
		m.animating = true
	}
	m.log.Info().Str("station", m.current.ID).Msg("delivery started")
}

// tickDelivering applies fill on ticks with mashes and decay only on ticks
// without, never both.
func (m *Machine) tickDelivering(dt time.Duration, mashes int) {
	if mashes > 0 {
		m.progress += float64(mashes) * MashFill
	} else {
		m.progress -= DecayPerSecond * dt.Seconds()
	}
	m.progress = clamp(m.progress, 0, MaxProgress)
	m.ui.ShowProgress(m.current, m.progress)

	if m.progress < MaxProgress {
		return
	}

	m.progress = 0
	m.ui.HideProgress()
	if m.animating && m.anim.Active() {
		m.anim.CompleteStocking()
		m.state = WalkBack
		return
	}
	m.enterSwapAnnounce()
}

func (m *Machine) enterSwapAnnounce() {
	m.state = SwapAnnounce
	m.timer = SwapAnnounceDuration
	bindings := m.swapper.SwapRoles()
	m.ui.ShowSwap(bindings)
	m.log.Info().Str("station", m.current.ID).Msg("roles swapped")
}

func (m *Machine) enterCountdown() {
	m.state = Countdown
	m.timer = CountdownDuration
	m.countdown = countdownLabel(m.timer)
	m.ui.ShowCountdown(m.countdown)
}

func (m *Machine) tickCountdown(dt time.Duration) {
	m.timer -= dt
	if m.timer <= 0 {
		m.resume()
		return
	}
	if label := countdownLabel(m.timer); label != m.countdown {
		m.countdown = label
		m.ui.ShowCountdown(label)
	}
}

func (m *Machine) resume() {
	m.vehicle.SetFrozen(false)
	m.current.Delivered = true
	m.log.Info().Str("station", m.current.ID).Msg("delivery complete")

	if m.animating && m.anim.Active() {
		m.anim.Abort()
	}
	m.animating = false
	m.current = nil
	m.countdown = ""
	m.timer = 0
	m.state = Driving
	m.ui.HideCountdown()
}

func countdownLabel(remaining time.Duration) string {
	switch {
	case remaining > 3*time.Second:
		return "3"
	case remaining > 2*time.Second:
		return "2"
	case remaining > time.Second:
		return "1"
	default:
		return "GO!"
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
