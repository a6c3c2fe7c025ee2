package track

import "time"

const (
	// The vehicle must be seen beyond this multiple of the start radius before a
	// lap can close.
	GateExitFactor = 1.5

	// LapDisplayDelay is how long a finished lap stays on screen before the
	// stations reset and timing resumes.
	LapDisplayDelay = 4 * time.Second
)

// LapResult is one completed lap.
type LapResult struct {
	Number int
	Time   time.Duration
}

// LapTracker decides lap completion and keeps the lap timer. Updated once per tick.
type LapTracker struct {
	track *Track

	leftGate bool
	elapsed  time.Duration

	// Non-zero while a finished lap is being displayed; the timer is stopped.
	displayLeft time.Duration

	history []LapResult
}

func NewLapTracker(t *Track) *LapTracker {
	return &LapTracker{track: t}
}

// Update advances the lap timer by dt with the vehicle at pos. It returns the
// finished lap on the tick the lap completes.
func (l *LapTracker) Update(dt time.Duration, pos Point) (LapResult, bool) {
	if l.displayLeft > 0 {
		l.displayLeft -= dt
		if l.displayLeft <= 0 {
			l.displayLeft = 0
			l.track.ResetDeliveries()
			l.leftGate = false
			l.elapsed = 0
		}
		return LapResult{}, false
	}

	l.elapsed += dt

	start := l.track.Start
	if !l.leftGate && start.Pos.Dist(pos) > start.Radius*GateExitFactor {
		l.leftGate = true
	}

	if !l.leftGate || !l.track.AllDelivered() || !start.Contains(pos) {
		return LapResult{}, false
	}

	result := LapResult{Number: len(l.history) + 1, Time: l.elapsed}
	l.history = append(l.history, result)
	l.displayLeft = LapDisplayDelay
	return result, true
}

// Elapsed is the running time of the current lap.
func (l *LapTracker) Elapsed() time.Duration { return l.elapsed }

// Displaying reports whether a finished lap is on display.
func (l *LapTracker) Displaying() bool { return l.displayLeft > 0 }

// LeftGate reports whether the vehicle has left the start zone this lap.
func (l *LapTracker) LeftGate() bool { return l.leftGate }

// History returns the completed laps, oldest first.
func (l *LapTracker) History() []LapResult {
	out := make([]LapResult, len(l.history))
	copy(out, l.history)
	return out
}

// Best returns the fastest completed lap.
func (l *LapTracker) Best() (LapResult, bool) {
	if len(l.history) == 0 {
		return LapResult{}, false
	}
	best := l.history[0]
	for _, r := range l.history[1:] {
		if r.Time < best.Time {
			best = r
		}
	}
	return best, true
}
