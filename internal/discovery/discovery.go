// Package discovery advertises the event endpoint over mDNS so renderers
// on the local network can find it.
package discovery

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/grandcat/zeroconf"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/tryon/internal/tracking"
)

const (
	// ServiceType is the DNS-SD service type of the try-on endpoint.
	ServiceType = "_tryon._tcp"
	// ServiceDomain is the mDNS domain.
	ServiceDomain = "local."

	txtVersion = "version=1"
	txtEvents  = "events=/api/events"
	txtStream  = "stream=/api/stream"
)

// Service registers the try-on endpoint while running.
type Service struct {
	log      logrus.FieldLogger
	instance string
	port     int

	mu      sync.Mutex
	server  *zeroconf.Server
	running bool
	jewelry string
}

// New creates a Service advertising the port of the HTTP listen address.
func New(httpAddr string, log logrus.FieldLogger) (*Service, error) {
	port, err := portOf(httpAddr)
	if err != nil {
		return nil, err
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "tryon"
	}

	return &Service{
		log:      log.WithField("component", "discovery"),
		instance: hostname + "-tryon",
		port:     port,
	}, nil
}

// Instance returns the advertised instance name.
func (s *Service) Instance() string { return s.instance }

// Port returns the advertised port.
func (s *Service) Port() int { return s.port }

// Start registers the service. It is a no-op when already running.
func (s *Service) Start(jewelry string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	server, err := zeroconf.Register(s.instance, ServiceType, ServiceDomain, s.port, txtRecords(jewelry), nil)
	if err != nil {
		return fmt.Errorf("register mdns service: %w", err)
	}

	s.server = server
	s.running = true
	s.jewelry = jewelry
	s.log.WithFields(logrus.Fields{
		"instance": s.instance,
		"type":     ServiceType,
		"port":     s.port,
	}).Info("mdns service registered")
	return nil
}

// SetJewelry updates the advertised jewelry type.
func (s *Service) SetJewelry(jewelry string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil || jewelry == s.jewelry {
		return
	}
	s.jewelry = jewelry
	s.server.SetText(txtRecords(jewelry))
}

// Publish implements tracking.Sink: position events keep the advertised
// jewelry type current.
func (s *Service) Publish(_ context.Context, e tracking.Event) error {
	if pe, ok := e.(tracking.PositionEvent); ok {
		s.SetJewelry(string(pe.Jewelry))
	}
	return nil
}

// Stop unregisters the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.server.Shutdown()
	s.server = nil
	s.running = false
	s.log.Info("mdns service stopped")
}

// Endpoint is a discovered try-on service.
type Endpoint struct {
	Instance string
	Host     string
	Port     int
	Text     map[string]string
}

// Browse reports endpoints found until ctx is done.
func Browse(ctx context.Context) (<-chan Endpoint, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("create mdns resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("browse %s: %w", ServiceType, err)
	}

	out := make(chan Endpoint)
	go func() {
		defer close(out)
		for entry := range entries {
			select {
			case out <- toEndpoint(entry):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func toEndpoint(e *zeroconf.ServiceEntry) Endpoint {
	host := e.HostName
	if len(e.AddrIPv4) > 0 {
		host = e.AddrIPv4[0].String()
	}
	return Endpoint{
		Instance: e.Instance,
		Host:     host,
		Port:     e.Port,
		Text:     parseText(e.Text),
	}
}

func txtRecords(jewelry string) []string {
	return []string{txtVersion, txtEvents, txtStream, "jewelry=" + jewelry}
}

func parseText(records []string) map[string]string {
	out := make(map[string]string, len(records))
	for _, r := range records {
		k, v, _ := strings.Cut(r, "=")
		out[k] = v
	}
	return out
}

func portOf(addr string) (int, error) {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(p)
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("invalid port in %q", addr)
	}
	return port, nil
}
