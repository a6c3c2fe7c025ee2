package cluster

import (
	"errors"
	"fmt"
	"os"
	"strings"

	consul "github.com/hashicorp/consul/api"

	"snackrun/internal/logging"
)

// Registration describes how the relay announces itself to Consul.
type Registration struct {
	ServiceName string
	Port        int
	// ConsulAddrs is a comma separated list of agents; the first reachable one wins.
	ConsulAddrs string
}

// Register adds the service with an HTTP check on /health and returns a
// function that removes it again.
func Register(reg Registration) (deregister func(), err error) {
	log := logging.Component("cluster")
	hostname := os.Getenv("HOSTNAME")
	if hostname == "" {
		hostname, _ = os.Hostname()
	}
	id := fmt.Sprintf("%s-%s", reg.ServiceName, hostname)

	var errs []error
	for _, addr := range strings.Split(reg.ConsulAddrs, ",") {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}

		cfg := consul.DefaultConfig()
		cfg.Address = addr
		client, err := consul.NewClient(cfg)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", addr, err))
			continue
		}

		registration := &consul.AgentServiceRegistration{
			ID:   id,
			Name: reg.ServiceName,
			Port: reg.Port,
			Tags: []string{"relay", "websocket"},
			Check: &consul.AgentServiceCheck{
				HTTP:                           fmt.Sprintf("http://%s:%d/health", hostname, reg.Port),
				Timeout:                        "5s",
				Interval:                       "10s",
				DeregisterCriticalServiceAfter: "1m",
			},
		}
		if err := client.Agent().ServiceRegister(registration); err != nil {
			log.Warn().Err(err).Str("consul", addr).Msg("registration failed, trying next agent")
			errs = append(errs, fmt.Errorf("%s: %w", addr, err))
			continue
		}

		log.Info().Str("consul", addr).Str("service_id", id).Msg("registered in consul")
		return func() {
			if err := client.Agent().ServiceDeregister(id); err != nil {
				log.Warn().Err(err).Str("service_id", id).Msg("deregistration failed")
			}
		}, nil
	}

	if len(errs) == 0 {
		return nil, fmt.Errorf("no consul address in %q", reg.ConsulAddrs)
	}
	return nil, fmt.Errorf("registering %s: %w", reg.ServiceName, errors.Join(errs...))
}
