// Package loop is the fixed-cadence game loop: it feeds input to the cart,
// advances the delivery machine and lap timer, and keeps the two peers of a
// network game in sync.
package loop

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"snackrun/internal/delivery"
	"snackrun/internal/input"
	"snackrun/internal/logging"
	"snackrun/internal/netsession"
	"snackrun/internal/protocol"
	"snackrun/internal/track"
	"snackrun/internal/vehicle"
)

// DefaultTickRate is the simulation rate in ticks per second.
const DefaultTickRate = 60

// InterpolationAlpha is how far the guest moves toward the host snapshot per tick.
const InterpolationAlpha = 0.3

const keyBuffer = 64

var (
	ErrPeerLost       = errors.New("the other player left")
	ErrConnectionLost = errors.New("connection to relay lost")
)

// Mode is the part this process plays.
type Mode int

const (
	Local Mode = iota
	Host
	Guest
)

func (m Mode) String() string {
	switch m {
	case Host:
		return "host"
	case Guest:
		return "guest"
	default:
		return "local"
	}
}

// Session is the slice of netsession.Session the loop needs.
type Session interface {
	Poll() []netsession.Event
	RemoteInput() (netsession.RemoteInput, bool)
	RemoteState() (protocol.GameState, bool)
	SendInput(steering, pedals, mashes int) error
	SendGameState(state protocol.GameState) error
	SendGameStart() error
	SendRoleSwap() error
}

type keyEvent struct {
	key  input.Key
	down bool
}

// Option configures a Game.
type Option func(*Game)

func WithTrack(t *track.Track) Option {
	return func(g *Game) { g.track = t }
}

func WithTickRate(hz int) Option {
	return func(g *Game) {
		if hz > 0 {
			g.tick = time.Second / time.Duration(hz)
		}
	}
}

func WithPresenter(p delivery.Presenter) Option {
	return func(g *Game) { g.machineOpts = append(g.machineOpts, delivery.WithPresenter(p)) }
}

func WithAnimator(a delivery.Animator) Option {
	return func(g *Game) { g.machineOpts = append(g.machineOpts, delivery.WithAnimator(a)) }
}

// OnLap registers a callback for every finished lap.
func OnLap(fn func(track.LapResult)) Option {
	return func(g *Game) { g.onLap = fn }
}

// Game owns every piece of simulation state. Apart from Press and Release,
// its methods belong to the loop goroutine.
type Game struct {
	mode    Mode
	session Session
	tick    time.Duration
	log     zerolog.Logger

	track   *track.Track
	mapper  *input.Mapper
	cart    *vehicle.Cart
	laps    *track.LapTracker
	machine *delivery.Machine

	machineOpts []delivery.Option
	onLap       func(track.LapResult)

	stateLimiter *rate.Limiter
	keys         chan keyEvent
	running      bool
}

// New builds a game. session may be nil in Local mode.
func New(mode Mode, session Session, opts ...Option) *Game {
	g := &Game{
		mode:    mode,
		session: session,
		tick:    time.Second / DefaultTickRate,
		log:     logging.Component("loop").With().Stringer("mode", mode).Logger(),
		keys:    make(chan keyEvent, keyBuffer),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.track == nil {
		g.track = track.Default()
	}

	switch mode {
	case Host:
		g.mapper = input.NewNetwork(input.Steering)
	case Guest:
		g.mapper = input.NewNetwork(input.Pedals)
	default:
		g.mapper = input.NewLocal()
	}

	g.cart = vehicle.New(g.track.Start.Pos, 0)
	g.laps = track.NewLapTracker(g.track)

	// Deliveries are decided by whoever owns the simulation; the guest only
	// mirrors the host's snapshots.
	if mode != Guest {
		g.machine = delivery.New(g.cart, g.track, g.mapper, swapper{g}, g.machineOpts...)
	}

	// Snapshots go out at half the tick rate.
	g.stateLimiter = rate.NewLimiter(rate.Every(2*g.tick), 1)
	return g
}

func (g *Game) Mode() Mode                  { return g.mode }
func (g *Game) Running() bool               { return g.running }
func (g *Game) Cart() *vehicle.Cart         { return g.cart }
func (g *Game) Mapper() *input.Mapper       { return g.mapper }
func (g *Game) Laps() *track.LapTracker     { return g.laps }
func (g *Game) Track() *track.Track         { return g.track }
func (g *Game) TickInterval() time.Duration { return g.tick }
func (g *Game) Delivery() *delivery.Machine { return g.machine }

// Press queues a key-down. Safe to call from any goroutine; keys beyond the
// buffer are dropped.
func (g *Game) Press(k input.Key) { g.queueKey(keyEvent{key: k, down: true}) }

// Release queues a key-up. Safe to call from any goroutine.
func (g *Game) Release(k input.Key) { g.queueKey(keyEvent{key: k}) }

func (g *Game) queueKey(ev keyEvent) {
	select {
	case g.keys <- ev:
	default:
		g.log.Warn().Str("key", string(ev.key)).Msg("key buffer full, dropping")
	}
}

// StartRace begins play. The host also tells the guest.
func (g *Game) StartRace() error {
	if g.mode == Guest {
		return errors.New("only the host starts the race")
	}
	if g.mode == Host {
		if err := g.session.SendGameStart(); err != nil {
			return err
		}
	}
	g.running = true
	g.log.Info().Msg("race started")
	return nil
}

// Step advances the game by one tick of length dt. It returns ErrPeerLost or
// ErrConnectionLost once the network game cannot go on.
func (g *Game) Step(dt time.Duration, now time.Time) error {
	g.applyKeys()
	if err := g.applyEvents(); err != nil {
		g.running = false
		return err
	}
	if !g.running {
		// Presses made before the start never count.
		g.mapper.DrainMashes()
		return nil
	}

	switch g.mode {
	case Guest:
		g.stepGuest()
	case Host:
		g.stepSimulation(dt)
		g.publishState(now)
	default:
		g.stepSimulation(dt)
	}
	return nil
}

func (g *Game) applyKeys() {
	for {
		select {
		case ev := <-g.keys:
			if ev.down {
				g.mapper.Press(ev.key)
			} else {
				g.mapper.Release(ev.key)
			}
		default:
			return
		}
	}
}

// applyEvents handles one-shot signals whatever state the game is in.
func (g *Game) applyEvents() error {
	if g.session == nil {
		return nil
	}
	for _, ev := range g.session.Poll() {
		switch e := ev.(type) {
		case netsession.GameStart:
			g.running = true
			g.log.Info().Msg("race started by host")
		case netsession.RoleSwap:
			if g.mode == Guest {
				g.mapper.Swap()
				g.log.Info().Str("control", string(g.mapper.Control())).Msg("roles swapped")
			}
		case netsession.RemoteInput:
			if g.mode == Host {
				g.mapper.AddRemoteMashes(e.Mashes)
			}
		case netsession.PeerDisconnected:
			g.log.Warn().Msg("peer disconnected")
			return ErrPeerLost
		case netsession.Disconnected:
			g.log.Warn().Err(e.Err).Msg("relay connection closed")
			return ErrConnectionLost
		}
	}
	return nil
}

func (g *Game) stepSimulation(dt time.Duration) {
	steering, pedal := g.mapper.Controls()
	if g.mode == Host {
		if remote, ok := g.session.RemoteInput(); ok {
			if g.mapper.Control() == input.Steering {
				pedal = remote.Pedals
			} else {
				steering = remote.Steering
			}
		}
	}

	g.cart.Update(dt, steering, pedal)
	g.machine.Tick(dt)

	if lap, done := g.laps.Update(dt, g.cart.Position()); done {
		g.log.Info().Int("lap", lap.Number).Dur("time", lap.Time).Msg("lap complete")
		if g.onLap != nil {
			g.onLap(lap)
		}
	}
}

func (g *Game) publishState(now time.Time) {
	if !g.stateLimiter.AllowN(now, 1) {
		return
	}
	if err := g.session.SendGameState(g.cart.Snapshot()); err != nil {
		g.log.Warn().Err(err).Msg("sending game state")
	}
}

func (g *Game) stepGuest() {
	mashes := g.mapper.DrainMashes()
	steering, pedal := g.mapper.Controls()
	if err := g.session.SendInput(steering, pedal, mashes); err != nil {
		g.log.Warn().Err(err).Msg("sending input")
	}
	if state, ok := g.session.RemoteState(); ok {
		g.cart.InterpolateToward(state, InterpolationAlpha)
	}
}

// Run steps the game from a ticker until ctx ends or the network game stops.
func (g *Game) Run(ctx context.Context) error {
	ticker := time.NewTicker(g.tick)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now
			if err := g.Step(dt, now); err != nil {
				return err
			}
		}
	}
}

// swapper lets the delivery machine swap roles through the game.
type swapper struct{ g *Game }

func (s swapper) SwapRoles() []input.Binding {
	g := s.g
	g.mapper.Swap()
	if g.mode == Host {
		if err := g.session.SendRoleSwap(); err != nil {
			g.log.Warn().Err(err).Msg("sending role swap")
		}
	}
	g.log.Debug().Bool("swapped", g.mapper.Swapped()).Msg("mapper swapped")
	return g.mapper.Bindings()
}
