package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"snackrun/internal/cluster"
	"snackrun/internal/config"
	"snackrun/internal/events"
	"snackrun/internal/logging"
	"snackrun/internal/network"
	"snackrun/internal/relay"
)

func main() {
	cfg, err := config.LoadRelay()
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel)
	log.Info().
		Str("service", cfg.ServiceName).
		Int("port", cfg.Port).
		Bool("nats", cfg.NATSURL != "").
		Bool("consul", cfg.ConsulAddr != "").
		Msg("config loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	health := cluster.NewHealthAggregator()

	// Room lifecycle events are optional; the relay works without a broker.
	var publisher events.Publisher = events.Nop{}
	if cfg.NATSURL != "" {
		nc, err := events.ConnectNATS(cfg.NATSURL)
		if err != nil {
			log.Fatal().Err(err).Msg("connecting to NATS")
		}
		health.AddCheck("nats", nc.Healthy)
		publisher = nc
	}
	defer publisher.Close()

	seed := uint64(time.Now().UnixNano())
	codes := relay.RandomCodes(rand.New(rand.NewPCG(seed, seed>>32|1)))
	rl := relay.New(relay.NewRegistry(codes), publisher)

	server := network.NewServer(rl)
	server.Handle("/health", health.Handler())
	server.Handle("/rooms", rl.RoomsHandler())

	if cfg.ConsulAddr != "" {
		deregister, err := cluster.Register(cluster.Registration{
			ServiceName: cfg.ServiceName,
			Port:        cfg.Port,
			ConsulAddrs: cfg.ConsulAddr,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("registering with consul")
		}
		defer deregister()
	}

	address := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	if err := server.Listen(ctx, address); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("relay stopped")
		os.Exit(1)
	}
}
