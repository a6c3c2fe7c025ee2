package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"snackrun/internal/cluster"
	"snackrun/internal/config"
	"snackrun/internal/hud"
	"snackrun/internal/logging"
	"snackrun/internal/loop"
	"snackrun/internal/netsession"
	"snackrun/internal/track"
)

const usage = `usage:
  client local        two players on this terminal
  client host         create a room and wait for a guest
  client join CODE    join a room

keys: "+d" holds D, "-d" lets go, "d" taps it, "q" quits`

const lobbyPoll = 50 * time.Millisecond

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, os.Args[1:]); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("game over")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Client, args []string) error {
	var game *loop.Game
	opts := []loop.Option{
		loop.WithTickRate(cfg.TickRate),
		loop.WithPresenter(hud.NewPresenter()),
		loop.OnLap(func(l track.LapResult) {
			best, _ := game.Laps().Best()
			log.Info().Int("lap", l.Number).Str("time", hud.FormatLapTime(l.Time)).
				Str("best", hud.FormatLapTime(best.Time)).Msg("lap complete")
			hud.RenderLaps(os.Stdout, game.Laps().History())
		}),
	}

	switch args[0] {
	case "local":
		game = loop.New(loop.Local, nil, opts...)
		if err := game.StartRace(); err != nil {
			return err
		}

	case "host", "join":
		url := cfg.RelayURL
		if url == "" {
			discovered, err := cluster.DiscoverRelay(cfg.RelayService, cfg.ConsulAddr)
			if err != nil {
				return fmt.Errorf("finding a relay: %w", err)
			}
			url = discovered
			log.Info().Str("relay", url).Msg("relay discovered through consul")
		}

		session := netsession.New(url, netsession.WithConnectTimeout(cfg.ConnectTimeout))
		if err := session.Connect(ctx); err != nil {
			return err
		}
		defer session.Disconnect()

		lobby := &lobbySession{Session: session}
		if args[0] == "host" {
			if err := lobby.host(ctx); err != nil {
				return err
			}
			game = loop.New(loop.Host, lobby, opts...)
			if err := game.StartRace(); err != nil {
				return err
			}
		} else {
			if len(args) < 2 {
				return errors.New("join needs a room code")
			}
			if err := lobby.join(ctx, args[1]); err != nil {
				return err
			}
			game = loop.New(loop.Guest, lobby, opts...)
		}

	default:
		return fmt.Errorf("unknown mode %q\n%s", args[0], usage)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go readKeys(game, cancel)

	err := game.Run(ctx)
	hud.RenderLaps(os.Stdout, game.Laps().History())
	return err
}

// readKeys feeds stdin commands to the game until EOF or "q".
func readKeys(game *loop.Game, quit context.CancelFunc) {
	defer quit()
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		cmd, err := hud.ParseCommand(scanner.Text())
		if err != nil {
			log.Warn().Err(err).Msg("ignored")
			continue
		}
		switch cmd.Action {
		case hud.Quit:
			return
		case hud.Hold:
			game.Press(cmd.Key)
		case hud.Let:
			game.Release(cmd.Key)
		case hud.Tap:
			game.Press(cmd.Key)
			game.Release(cmd.Key)
		}
	}
}

// lobbySession keeps events that arrive alongside the lobby reply so the
// game loop still sees them, e.g. a game_start right behind room_joined.
type lobbySession struct {
	*netsession.Session
	pending []netsession.Event
}

func (l *lobbySession) Poll() []netsession.Event {
	events := append(l.pending, l.Session.Poll()...)
	l.pending = nil
	return events
}

func (l *lobbySession) host(ctx context.Context) error {
	if err := l.CreateRoom(); err != nil {
		return err
	}
	created, err := waitFor[netsession.RoomCreated](ctx, l)
	if err != nil {
		return err
	}
	fmt.Printf("\nRoom code: %s\nWaiting for a guest...\n\n", created.Code)

	if _, err := waitFor[netsession.RoomJoined](ctx, l); err != nil {
		return err
	}
	log.Info().Str("room", created.Code).Msg("guest joined, you steer first")
	return nil
}

func (l *lobbySession) join(ctx context.Context, code string) error {
	if err := l.JoinRoom(code); err != nil {
		return err
	}
	if _, err := waitFor[netsession.RoomJoined](ctx, l); err != nil {
		return err
	}
	log.Info().Str("room", strings.ToUpper(strings.TrimSpace(code))).Msg("joined, you drive the pedals first")
	return nil
}

// waitFor polls until an E arrives. Events after it are kept for the game loop.
func waitFor[E netsession.Event](ctx context.Context, l *lobbySession) (E, error) {
	var zero E
	ticker := time.NewTicker(lobbyPoll)
	defer ticker.Stop()

	for {
		events := l.Poll()
		for i, ev := range events {
			switch e := ev.(type) {
			case E:
				l.pending = append(l.pending, events[i+1:]...)
				return e, nil
			case netsession.RoomError:
				return zero, errors.New(e.Message)
			case netsession.Disconnected:
				return zero, fmt.Errorf("relay closed the connection: %v", e.Err)
			case netsession.PeerDisconnected:
				return zero, errors.New("the other player left")
			}
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-ticker.C:
		}
	}
}
