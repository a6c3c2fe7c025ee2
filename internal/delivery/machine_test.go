package delivery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"snackrun/internal/input"
	"snackrun/internal/track"
)

const frame = 100 * time.Millisecond

type fakeVehicle struct {
	pos     track.Point
	heading float64
	speed   float64
	frozen  bool
	freezes int
}

func (v *fakeVehicle) Position() track.Point { return v.pos }
func (v *fakeVehicle) Heading() float64      { return v.heading }
func (v *fakeVehicle) Speed() float64        { return v.speed }
func (v *fakeVehicle) SetFrozen(f bool) {
	v.frozen = f
	if f {
		v.speed = 0
		v.freezes++
	}
}

// mashQueue hands out one queued count per drain, then zeros.
type mashQueue struct {
	counts []int
	drains int
}

func (q *mashQueue) push(n ...int) { q.counts = append(q.counts, n...) }

func (q *mashQueue) DrainMashes() int {
	q.drains++
	if len(q.counts) == 0 {
		return 0
	}
	n := q.counts[0]
	q.counts = q.counts[1:]
	return n
}

type countingSwapper struct{ swaps int }

func (s *countingSwapper) SwapRoles() []input.Binding {
	s.swaps++
	return []input.Binding{{Control: input.Steering, Keys: input.PairOne}}
}

type recordingPresenter struct {
	prompts   []string
	resets    []string
	progress  []float64
	swaps     int
	countdown []string
	hidden    int
}

func (p *recordingPresenter) ShowPrompt(s *track.Station) { p.prompts = append(p.prompts, s.ID) }
func (p *recordingPresenter) HidePrompt()                 {}
func (p *recordingPresenter) ShowProgress(_ *track.Station, v float64) {
	p.progress = append(p.progress, v)
}
func (p *recordingPresenter) HideProgress()              {}
func (p *recordingPresenter) ResetFill(s *track.Station) { p.resets = append(p.resets, s.ID) }
func (p *recordingPresenter) ShowSwap([]input.Binding)   { p.swaps++ }
func (p *recordingPresenter) ShowCountdown(label string) { p.countdown = append(p.countdown, label) }
func (p *recordingPresenter) HideCountdown()             { p.hidden++ }

type mockAnimator struct {
	mock.Mock
}

func (m *mockAnimator) StartDelivery(cart track.Point, heading float64, station track.Point) {
	m.Called(cart, heading, station)
}
func (m *mockAnimator) Active() bool      { return m.Called().Bool(0) }
func (m *mockAnimator) CompleteStocking() { m.Called() }
func (m *mockAnimator) Abort()            { m.Called() }

type fixture struct {
	machine *Machine
	vehicle *fakeVehicle
	mashes  *mashQueue
	swapper *countingSwapper
	ui      *recordingPresenter
	track   *track.Track
}

func newFixture(opts ...Option) *fixture {
	f := &fixture{
		vehicle: &fakeVehicle{pos: track.Point{X: -50}},
		mashes:  &mashQueue{},
		swapper: &countingSwapper{},
		ui:      &recordingPresenter{},
		track: &track.Track{
			Start: track.Zone{Radius: 5},
			Stations: []*track.Station{
				{ID: "bakery", Pos: track.Point{X: 20}, Radius: 4},
				{ID: "fruit", Pos: track.Point{X: 60}, Radius: 4},
			},
		},
	}
	opts = append([]Option{WithPresenter(f.ui)}, opts...)
	f.machine = New(f.vehicle, f.track, f.mashes, f.swapper, opts...)
	return f
}

// startDelivering parks at the bakery and presses a key.
func (f *fixture) startDelivering(t *testing.T) {
	t.Helper()
	f.vehicle.pos = track.Point{X: 21}
	f.vehicle.speed = 1
	f.machine.Tick(frame)
	require.Equal(t, Approaching, f.machine.State())

	f.mashes.push(1)
	f.machine.Tick(frame)
	require.Equal(t, Delivering, f.machine.State())
}

func (f *fixture) fill(t *testing.T) {
	t.Helper()
	for i := 0; i < 40 && f.machine.State() == Delivering; i++ {
		f.mashes.push(1)
		f.machine.Tick(frame)
	}
}

func TestMachine_ApproachNeedsLowSpeed(t *testing.T) {
	f := newFixture()
	f.vehicle.pos = track.Point{X: 21}
	f.vehicle.speed = ApproachSpeed + 1
	f.machine.Tick(frame)
	assert.Equal(t, Driving, f.machine.State())

	f.vehicle.speed = ApproachSpeed
	f.machine.Tick(frame)
	assert.Equal(t, Approaching, f.machine.State())
	assert.Equal(t, "bakery", f.machine.Current().ID)
	assert.Equal(t, []string{"bakery"}, f.ui.prompts)
}

func TestMachine_DeliveredStationIgnored(t *testing.T) {
	f := newFixture()
	f.track.Stations[0].Delivered = true
	f.vehicle.pos = track.Point{X: 20}
	f.machine.Tick(frame)
	assert.Equal(t, Driving, f.machine.State())
}

func TestMachine_ApproachAbandonResetsFill(t *testing.T) {
	t.Run("leaving the radius", func(t *testing.T) {
		f := newFixture()
		f.vehicle.pos = track.Point{X: 21}
		f.machine.Tick(frame)
		require.Equal(t, Approaching, f.machine.State())

		f.vehicle.pos = track.Point{X: 30}
		f.machine.Tick(frame)
		assert.Equal(t, Driving, f.machine.State())
		assert.Nil(t, f.machine.Current())
		assert.Equal(t, 0.0, f.machine.Progress())
		assert.Equal(t, []string{"bakery"}, f.ui.resets)
	})

	t.Run("speeding up", func(t *testing.T) {
		f := newFixture()
		f.vehicle.pos = track.Point{X: 21}
		f.machine.Tick(frame)

		f.vehicle.speed = AbortSpeed + 0.1
		f.machine.Tick(frame)
		assert.Equal(t, Driving, f.machine.State())
		assert.Equal(t, []string{"bakery"}, f.ui.resets)
		assert.False(t, f.vehicle.frozen)
	})
}

func TestMachine_MashesWhileDrivingDoNotCarryOver(t *testing.T) {
	f := newFixture()
	f.mashes.push(5, 5)
	f.machine.Tick(frame)
	f.machine.Tick(frame)
	assert.Equal(t, 2, f.mashes.drains, "drained every tick")

	f.startDelivering(t)
	assert.Equal(t, 0.0, f.machine.Progress(), "the entering press does not fill")
}

func TestMachine_EnteringDeliveringFreezes(t *testing.T) {
	f := newFixture()
	f.startDelivering(t)
	assert.True(t, f.vehicle.frozen)
	assert.Equal(t, 0.0, f.vehicle.speed)
	assert.True(t, f.machine.State().Frozen())
}

func TestMachine_FillDecayLaw(t *testing.T) {
	f := newFixture()
	f.startDelivering(t)

	f.mashes.push(1)
	f.machine.Tick(frame)
	assert.InDelta(t, 3.0, f.machine.Progress(), 1e-9)

	f.machine.Tick(time.Second)
	assert.InDelta(t, 0.0, f.machine.Progress(), 1e-9, "3 - 8 clamps at zero")

	f.mashes.push(1)
	f.machine.Tick(frame)
	assert.InDelta(t, 3.0, f.machine.Progress(), 1e-9)
}

func TestMachine_NoDecayOnMashTick(t *testing.T) {
	f := newFixture()
	f.startDelivering(t)

	f.mashes.push(4)
	f.machine.Tick(time.Second)
	assert.InDelta(t, 12.0, f.machine.Progress(), 1e-9, "fill only, decay skipped")

	f.machine.Tick(500 * time.Millisecond)
	assert.InDelta(t, 8.0, f.machine.Progress(), 1e-9)
}

func TestMachine_ProgressMatchesReferenceSequence(t *testing.T) {
	f := newFixture()
	f.startDelivering(t)

	mashes := []int{2, 0, 0, 5, 1, 0, 3, 0, 0, 0, 7}
	dts := []time.Duration{frame, frame, 2 * time.Second, frame, frame, 250 * time.Millisecond, frame, frame, frame, frame, frame}

	want := 0.0
	for i := range mashes {
		if mashes[i] > 0 {
			want += float64(mashes[i]) * 3
		} else {
			want -= 8 * dts[i].Seconds()
		}
		want = clamp(want, 0, 100)

		f.mashes.push(mashes[i])
		f.machine.Tick(dts[i])
		require.InDelta(t, want, f.machine.Progress(), 1e-9, "tick %d", i)
	}
}

func TestMachine_FullCycleWithoutAnimator(t *testing.T) {
	f := newFixture()
	f.startDelivering(t)
	f.fill(t)

	require.Equal(t, SwapAnnounce, f.machine.State(), "no animator: straight to the swap")
	assert.Equal(t, 1, f.swapper.swaps)
	assert.Equal(t, 1, f.ui.swaps)
	assert.True(t, f.vehicle.frozen)

	for i := 0; i < 19; i++ {
		f.machine.Tick(frame)
	}
	assert.Equal(t, SwapAnnounce, f.machine.State())
	f.machine.Tick(frame)
	require.Equal(t, Countdown, f.machine.State())

	for i := 0; i < 39; i++ {
		f.machine.Tick(frame)
		require.True(t, f.vehicle.frozen, "frozen through the countdown")
	}
	assert.Equal(t, []string{"3", "2", "1", "GO!"}, f.ui.countdown)
	assert.False(t, f.track.Stations[0].Delivered)

	f.machine.Tick(frame)
	assert.Equal(t, Driving, f.machine.State())
	assert.False(t, f.vehicle.frozen)
	assert.Nil(t, f.machine.Current())
	assert.Equal(t, 1, f.ui.hidden)
	assert.Equal(t, 1, f.vehicle.freezes)
}

func TestMachine_DeliveryMarksOnlyItsStation(t *testing.T) {
	f := newFixture()
	f.startDelivering(t)
	f.fill(t)
	for f.machine.State() != Driving {
		f.machine.Tick(frame)
	}

	assert.True(t, f.track.Stations[0].Delivered)
	assert.False(t, f.track.Stations[1].Delivered)

	// Parked on a delivered station: nothing happens.
	f.machine.Tick(frame)
	assert.Equal(t, Driving, f.machine.State())
}

func TestMachine_WalkBackWithAnimator(t *testing.T) {
	anim := &mockAnimator{}
	f := newFixture(WithAnimator(anim))

	anim.On("StartDelivery", track.Point{X: 21}, 0.0, track.Point{X: 20}).Once()
	anim.On("Active").Return(true).Times(2)
	anim.On("CompleteStocking").Once()

	f.startDelivering(t)
	f.fill(t)
	require.Equal(t, WalkBack, f.machine.State())
	assert.Equal(t, 0, f.swapper.swaps, "no swap before the walk finishes")

	f.machine.Tick(frame)
	assert.Equal(t, WalkBack, f.machine.State())

	anim.On("Active").Return(false)
	f.machine.Tick(frame)
	assert.Equal(t, SwapAnnounce, f.machine.State())
	assert.Equal(t, 1, f.swapper.swaps)

	for f.machine.State() != Driving {
		f.machine.Tick(frame)
	}
	anim.AssertNotCalled(t, "Abort")
	anim.AssertExpectations(t)
}

func TestMachine_AnimationFinishedEarlySkipsWalkBack(t *testing.T) {
	anim := &mockAnimator{}
	anim.On("StartDelivery", mock.Anything, mock.Anything, mock.Anything)
	anim.On("Active").Return(false)
	f := newFixture(WithAnimator(anim))

	f.startDelivering(t)
	f.fill(t)
	assert.Equal(t, SwapAnnounce, f.machine.State())
	anim.AssertNotCalled(t, "CompleteStocking")
}

func TestMachine_ResumeAbortsLingeringAnimation(t *testing.T) {
	anim := &mockAnimator{}
	anim.On("StartDelivery", mock.Anything, mock.Anything, mock.Anything)
	anim.On("CompleteStocking")
	anim.On("Active").Return(true).Once()  // at fill completion
	anim.On("Active").Return(false).Once() // walk back ends
	anim.On("Active").Return(true).Once()  // restarted by the renderer before resume
	anim.On("Abort").Once()
	f := newFixture(WithAnimator(anim))

	f.startDelivering(t)
	f.fill(t)
	f.machine.Tick(frame)
	require.Equal(t, SwapAnnounce, f.machine.State())

	for f.machine.State() != Driving {
		f.machine.Tick(frame)
	}
	anim.AssertExpectations(t)
}

func TestMachine_RoleSwapOncePerDelivery(t *testing.T) {
	f := newFixture()
	for _, x := range []float64{21, 61} {
		f.vehicle.pos = track.Point{X: x}
		f.vehicle.speed = 0
		f.machine.Tick(frame)
		require.Equal(t, Approaching, f.machine.State())
		f.mashes.push(1)
		f.machine.Tick(frame)
		f.fill(t)
		for f.machine.State() != Driving {
			f.machine.Tick(frame)
		}
	}
	assert.Equal(t, 2, f.swapper.swaps)
	assert.True(t, f.track.AllDelivered())
}

func TestMachine_WithoutPresenter(t *testing.T) {
	v := &fakeVehicle{pos: track.Point{X: 21}}
	q := &mashQueue{}
	tr := &track.Track{Stations: []*track.Station{{ID: "s", Pos: track.Point{X: 20}, Radius: 4}}}
	m := New(v, tr, q, &countingSwapper{}, WithPresenter(nil))

	m.Tick(frame)
	q.push(1)
	m.Tick(frame)
	assert.Equal(t, Delivering, m.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "walk_back", WalkBack.String())
	assert.Equal(t, "swap_announce", SwapAnnounce.String())
	assert.False(t, Approaching.Frozen())
	assert.True(t, Countdown.Frozen())
}
