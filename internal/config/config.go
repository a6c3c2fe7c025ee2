// Package config loads process configuration from the environment, with an
// optional .env file in the working directory.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultPort           = 8080
	defaultServiceName    = "snackrun-relay"
	defaultLogLevel       = "info"
	defaultRelayURL       = "ws://localhost:8080/ws"
	defaultConnectTimeout = 5 * time.Second
	defaultTickRate       = 60
)

// Relay holds the relay process settings. Only Port is network facing;
// NATS and Consul are opt-in and stay disabled when their address is empty.
type Relay struct {
	Port        int
	ServiceName string
	LogLevel    string
	NATSURL     string
	ConsulAddr  string
}

// Client holds the terminal client settings. When RELAY_URL is unset and a
// Consul address is given, RelayURL stays empty and the relay is discovered.
type Client struct {
	RelayURL       string
	ConnectTimeout time.Duration
	TickRate       int
	LogLevel       string
	ConsulAddr     string
	RelayService   string
}

// LoadRelay reads the relay configuration.
func LoadRelay() (*Relay, error) {
	_ = godotenv.Load()

	port, err := intEnv("PORT", defaultPort)
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("PORT out of range: %d", port)
	}

	return &Relay{
		Port:        port,
		ServiceName: stringEnv("RELAY_SERVICE_NAME", defaultServiceName),
		LogLevel:    stringEnv("LOG_LEVEL", defaultLogLevel),
		NATSURL:     os.Getenv("NATS_URL"),
		ConsulAddr:  os.Getenv("CONSUL_HTTP_ADDR"),
	}, nil
}

// LoadClient reads the client configuration.
func LoadClient() (*Client, error) {
	_ = godotenv.Load()

	timeout := defaultConnectTimeout
	if v := os.Getenv("CONNECT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid CONNECT_TIMEOUT format: %w", err)
		}
		timeout = d
	}

	tick, err := intEnv("TICK_RATE", defaultTickRate)
	if err != nil {
		return nil, err
	}
	if tick <= 0 {
		return nil, fmt.Errorf("TICK_RATE must be positive, got %d", tick)
	}

	consulAddr := os.Getenv("CONSUL_HTTP_ADDR")
	relayURL := os.Getenv("RELAY_URL")
	if relayURL == "" && consulAddr == "" {
		relayURL = defaultRelayURL
	}

	return &Client{
		RelayURL:       relayURL,
		ConnectTimeout: timeout,
		TickRate:       tick,
		LogLevel:       stringEnv("LOG_LEVEL", defaultLogLevel),
		ConsulAddr:     consulAddr,
		RelayService:   stringEnv("RELAY_SERVICE_NAME", defaultServiceName),
	}, nil
}

func stringEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s format: %w", key, err)
	}
	return n, nil
}
