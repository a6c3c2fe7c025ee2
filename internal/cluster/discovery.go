package cluster

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	consul "github.com/hashicorp/consul/api"

	"snackrun/internal/logging"
)

var ErrNoHealthyRelay = errors.New("no healthy relay registered")

// connect returns a client for the first agent in addrs that knows its leader.
func connect(addrs string) (*consul.Client, error) {
	log := logging.Component("cluster")
	for _, addr := range strings.Split(addrs, ",") {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		cfg := consul.DefaultConfig()
		cfg.Address = addr

		client, err := consul.NewClient(cfg)
		if err != nil {
			log.Warn().Err(err).Str("consul", addr).Msg("creating client")
			continue
		}
		if _, err := client.Status().Leader(); err != nil {
			log.Warn().Err(err).Str("consul", addr).Msg("agent unreachable")
			continue
		}
		return client, nil
	}
	return nil, fmt.Errorf("no consul agent available in %q", addrs)
}

// DiscoverRelay returns the websocket URL of a random healthy relay instance.
func DiscoverRelay(serviceName, consulAddrs string) (string, error) {
	client, err := connect(consulAddrs)
	if err != nil {
		return "", err
	}
	entries, _, err := client.Health().Service(serviceName, "", true, nil)
	if err != nil {
		return "", fmt.Errorf("looking up %s: %w", serviceName, err)
	}
	return pickRelay(entries, rand.IntN)
}

// pickRelay chooses one entry with intn and builds its /ws URL. The service
// address falls back to the node address, as Consul leaves it empty when the
// service registered without one.
func pickRelay(entries []*consul.ServiceEntry, intn func(int) int) (string, error) {
	if len(entries) == 0 {
		return "", ErrNoHealthyRelay
	}
	e := entries[intn(len(entries))]
	addr := e.Service.Address
	if addr == "" && e.Node != nil {
		addr = e.Node.Address
	}
	return fmt.Sprintf("ws://%s:%d/ws", addr, e.Service.Port), nil
}
