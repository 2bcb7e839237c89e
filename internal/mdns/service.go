// Package mdns advertises the server on the local network so EFB clients
// find it without manual configuration.
package mdns

import (
	"fmt"
	"os"
	"sync"

	"github.com/hashicorp/mdns"

	"github.com/chartbagapp/chartbag-server/internal/domain"
	"github.com/chartbagapp/chartbag-server/internal/logger"
)

const (
	// ServiceType is the mDNS service type clients browse for.
	ServiceType = "_chartbag._tcp"

	// APIVersion is advertised in TXT records so clients can check
	// compatibility before connecting.
	APIVersion = "v1"
)

// Service manages mDNS advertisement.
type Service struct {
	server *mdns.Server
	log    *logger.Logger
	mu     sync.Mutex
}

// NewService creates an mDNS service.
func NewService(log *logger.Logger) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{log: log}
}

// Start begins advertising on the given port. An already running
// advertisement is replaced, so callers re-Start after an import to
// refresh the AIRAC record. Failures are typically environmental
// (multicast unavailable) and safe to treat as non-fatal.
func (s *Service) Start(instance *domain.Instance, port int, airac string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		_ = s.server.Shutdown()
		s.server = nil
	}

	host, err := os.Hostname()
	if err != nil {
		host = "chartbag-server"
	}

	txtRecords := []string{
		fmt.Sprintf("id=%s", instance.ID),
		fmt.Sprintf("name=%s", instance.Name),
		fmt.Sprintf("version=%s", instance.Version),
		fmt.Sprintf("api=%s", APIVersion),
	}
	if airac != "" {
		txtRecords = append(txtRecords, fmt.Sprintf("airac=%s", airac))
	}

	service, err := mdns.NewMDNSService(
		host,
		ServiceType,
		"", // domain, empty = .local
		"", // host, empty = system hostname
		port,
		nil, // all interfaces
		txtRecords,
	)
	if err != nil {
		return fmt.Errorf("create mDNS service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("start mDNS server: %w", err)
	}

	s.server = server

	s.log.Info("mDNS advertisement started",
		"service", ServiceType,
		"port", port,
		"name", instance.Name,
		"airac", airac,
	)

	return nil
}

// Stop ends advertising. Safe to call repeatedly or before Start.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		_ = s.server.Shutdown()
		s.server = nil
		s.log.Info("mDNS advertisement stopped")
	}
}
