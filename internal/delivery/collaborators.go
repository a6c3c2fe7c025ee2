package delivery

import (
	"snackrun/internal/input"
	"snackrun/internal/track"
)

// Vehicle is the part of the physics collaborator the machine needs. The
// machine is the only caller of SetFrozen; freezing must zero the speed and
// suspend translation and rotation until unfrozen.
type Vehicle interface {
	Position() track.Point
	Heading() float64
	Speed() float64
	SetFrozen(frozen bool)
}

// MashSource is drained exactly once per tick.
type MashSource interface {
	DrainMashes() int
}

// RoleSwapper inverts the steering/pedals mapping and returns the new bindings
// for the announcement.
type RoleSwapper interface {
	SwapRoles() []input.Binding
}

// Animator plays the walk-and-stock sequence. Optional.
type Animator interface {
	StartDelivery(cart track.Point, heading float64, station track.Point)
	// Active is true until the walk sequence has fully finished.
	Active() bool
	// CompleteStocking tells the animation the stocking is logically done.
	CompleteStocking()
	Abort()
}

// Presenter renders prompts and overlays. Optional.
type Presenter interface {
	ShowPrompt(s *track.Station)
	HidePrompt()
	ShowProgress(s *track.Station, progress float64)
	HideProgress()
	// ResetFill clears any fill visuals the renderer keeps for s.
	ResetFill(s *track.Station)
	ShowSwap(bindings []input.Binding)
	ShowCountdown(label string)
	HideCountdown()
}

type nopPresenter struct{}

func (nopPresenter) ShowPrompt(*track.Station)            {}
func (nopPresenter) HidePrompt()                          {}
func (nopPresenter) ShowProgress(*track.Station, float64) {}
func (nopPresenter) HideProgress()                        {}
func (nopPresenter) ResetFill(*track.Station)             {}
func (nopPresenter) ShowSwap([]input.Binding)             {}
func (nopPresenter) ShowCountdown(string)                 {}
func (nopPresenter) HideCountdown()                       {}
