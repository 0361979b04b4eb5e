// Package discovery advertises the local control server over mDNS so a
// browser or companion device on the LAN can find it.
package discovery

import (
	"fmt"
	"os"
	"sync"

	"github.com/grandcat/zeroconf"
	"github.com/rs/zerolog/log"
)

const (
	// ServiceType is the DNS-SD service type.
	ServiceType = "_airpointer._tcp"
	// Domain is the mDNS domain.
	Domain = "local."
)

// Advertiser registers and withdraws the service record.
type Advertiser struct {
	mu       sync.Mutex
	server   *zeroconf.Server
	instance string
	port     int
	txt      []string
}

// New creates an Advertiser for port. An empty instance is derived from the
// hostname.
func New(instance string, port int, version string) *Advertiser {
	if instance == "" {
		instance = defaultInstance()
	}
	return &Advertiser{
		instance: instance,
		port:     port,
		txt: []string{
			"version=" + version,
			"path=/",
			"events=/api/events",
		},
	}
}

func defaultInstance() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	return host + "-airpointer"
}

// Start registers the service on all interfaces.
func (a *Advertiser) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		return nil
	}

	server, err := zeroconf.Register(a.instance, ServiceType, Domain, a.port, a.txt, nil)
	if err != nil {
		return fmt.Errorf("register %s: %w", ServiceType, err)
	}
	a.server = server

	log.Info().Str("instance", a.instance).Str("type", ServiceType).Int("port", a.port).Msg("advertising service")
	return nil
}

// Stop withdraws the service. It is safe to call more than once.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server == nil {
		return
	}
	a.server.Shutdown()
	a.server = nil
	log.Info().Str("instance", a.instance).Msg("service advertisement stopped")
}

// Instance returns the advertised instance name.
func (a *Advertiser) Instance() string {
	return a.instance
}

// Port returns the advertised port.
func (a *Advertiser) Port() int {
	return a.port
}

// Running reports whether the service is registered.
func (a *Advertiser) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.server != nil
}
