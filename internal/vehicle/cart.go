// Package vehicle is a small kinematic cart. It stands in for the real physics
// integrator, which lives on the rendering side, and exposes the same surface:
// position, heading, speed, a visual lean and a freeze flag.
package vehicle

import (
	"math"
	"time"

	"snackrun/internal/protocol"
	"snackrun/internal/track"
)

const (
	Acceleration = 12.0 // units/s² at full gas
	BrakeDecel   = 20.0 // units/s² at full brake
	Drag         = 1.5  // proportional slowdown per second with no pedal
	MaxSpeed     = 18.0
	MaxReverse   = 4.0
	TurnRate     = 2.4 // rad/s at full lock and full speed
	LeanRate     = 6.0 // how fast SteerState follows the wheel
)

// Cart is not safe for concurrent use; the game loop owns it.
type Cart struct {
	x       float64
	y       float64
	heading float64
	// Signed; negative while reversing.
	speed float64
	steer float64

	frozen bool
}

func New(at track.Point, heading float64) *Cart {
	return &Cart{x: at.X, y: at.Y, heading: heading}
}

func (c *Cart) Position() track.Point { return track.Point{X: c.x, Y: c.y} }

func (c *Cart) Heading() float64 { return c.heading }

// Speed is the unsigned scalar speed.
func (c *Cart) Speed() float64 { return math.Abs(c.speed) }

// SteerState is the visual lean in [-1, 1].
func (c *Cart) SteerState() float64 { return c.steer }

func (c *Cart) Frozen() bool { return c.frozen }

// SetFrozen holds the cart in place. Freezing zeroes the speed.
func (c *Cart) SetFrozen(frozen bool) {
	c.frozen = frozen
	if frozen {
		c.speed = 0
	}
}

// Update integrates one tick. steering and pedal are in {-1, 0, 1}. A frozen
// cart does not move or turn.
func (c *Cart) Update(dt time.Duration, steering, pedal int) {
	s := dt.Seconds()
	c.steer += (float64(steering) - c.steer) * math.Min(1, LeanRate*s)
	if c.frozen {
		return
	}

	switch {
	case pedal > 0:
		c.speed += Acceleration * s
	case pedal < 0 && c.speed > 0:
		c.speed = math.Max(0, c.speed-BrakeDecel*s)
	case pedal < 0:
		c.speed -= Acceleration * 0.5 * s
	default:
		c.speed -= c.speed * math.Min(1, Drag*s)
	}
	c.speed = math.Max(-MaxReverse, math.Min(MaxSpeed, c.speed))

	c.heading = wrapAngle(c.heading + float64(steering)*TurnRate*s*(c.speed/MaxSpeed))
	c.x += math.Cos(c.heading) * c.speed * s
	c.y += math.Sin(c.heading) * c.speed * s
}

// Snapshot is the authoritative state the host broadcasts.
func (c *Cart) Snapshot() protocol.GameState {
	return protocol.GameState{
		X:          c.x,
		Y:          c.y,
		Heading:    c.heading,
		Speed:      c.speed,
		SteerState: c.steer,
	}
}

// Snap jumps straight to a received state.
func (c *Cart) Snap(s protocol.GameState) {
	c.x, c.y = s.X, s.Y
	c.heading = wrapAngle(s.Heading)
	c.speed = s.Speed
	c.steer = s.SteerState
}

// InterpolateToward moves a fraction alpha (0..1) of the way to s. Heading
// takes the short way round.
func (c *Cart) InterpolateToward(s protocol.GameState, alpha float64) {
	alpha = math.Max(0, math.Min(1, alpha))
	c.x += (s.X - c.x) * alpha
	c.y += (s.Y - c.y) * alpha
	c.heading = wrapAngle(c.heading + wrapAngle(s.Heading-c.heading)*alpha)
	c.speed += (s.Speed - c.speed) * alpha
	c.steer += (s.SteerState - c.steer) * alpha
}

// wrapAngle maps a to (-π, π].
func wrapAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a <= 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}
