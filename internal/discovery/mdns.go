// ABOUTME: mDNS service discovery for spimeter monitoring endpoints
// ABOUTME: Advertises this bridge and browses for other bridges on the network
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/hashicorp/mdns"
)

// ServiceType is the mDNS service type of the monitoring endpoint
const ServiceType = "_spimeter._tcp"

// Config holds discovery configuration
type Config struct {
	ServiceName string
	Port        int
	// Info is published as TXT records, e.g. "levels=/levels"
	Info   []string
	Logger *slog.Logger
}

// Manager handles mDNS operations
type Manager struct {
	config  Config
	logger  *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	servers chan *ServerInfo
}

// ServerInfo describes a discovered bridge
type ServerInfo struct {
	Name string
	Host string
	Port int
	Info []string
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		config:  config,
		logger:  logger.With(slog.String("component", "discovery")),
		ctx:     ctx,
		cancel:  cancel,
		servers: make(chan *ServerInfo, 10),
	}
}

// Advertise advertises the monitoring endpoint via mDNS until Stop is called
func (m *Manager) Advertise() error {
	if m.config.Port < 1 {
		return fmt.Errorf("invalid port %d", m.config.Port)
	}

	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		ServiceType,
		"",
		"",
		m.config.Port,
		ips,
		m.config.Info,
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	m.logger.Info("advertising mDNS service",
		slog.String("name", m.config.ServiceName),
		slog.Int("port", m.config.Port),
		slog.String("type", ServiceType))

	go func() {
		<-m.ctx.Done()
		server.Shutdown()
	}()

	return nil
}

// Browse searches for bridges until Stop is called. Results arrive on Servers.
func (m *Manager) Browse() error {
	go m.browseLoop()
	return nil
}

// browseLoop continuously browses for bridges
func (m *Manager) browseLoop() {
	for {
		select {
		case <-m.ctx.Done():
			close(m.servers)
			return
		default:
		}

		entries := make(chan *mdns.ServiceEntry, 10)
		done := make(chan struct{})

		go func() {
			defer close(done)
			for entry := range entries {
				server := toServerInfo(entry)

				m.logger.Debug("discovered bridge",
					slog.String("name", server.Name),
					slog.String("host", server.Host),
					slog.Int("port", server.Port))

				select {
				case m.servers <- server:
				case <-m.ctx.Done():
				}
			}
		}()

		params := &mdns.QueryParam{
			Service: ServiceType,
			Domain:  "local",
			Timeout: 3 * time.Second,
			Entries: entries,
		}

		if err := mdns.Query(params); err != nil {
			m.logger.Debug("mdns query failed", slog.String("error", err.Error()))
		}
		close(entries)
		<-done
	}
}

func toServerInfo(entry *mdns.ServiceEntry) *ServerInfo {
	host := entry.Host
	if entry.AddrV4 != nil {
		host = entry.AddrV4.String()
	}
	return &ServerInfo{
		Name: entry.Name,
		Host: host,
		Port: entry.Port,
		Info: entry.InfoFields,
	}
}

// Servers returns the channel of discovered bridges. It is closed after Stop.
func (m *Manager) Servers() <-chan *ServerInfo {
	return m.servers
}

// Stop stops advertising and browsing
func (m *Manager) Stop() {
	m.cancel()
}

// getLocalIPs returns local IP addresses
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
