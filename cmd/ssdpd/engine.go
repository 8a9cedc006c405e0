package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/ssdpd/internal/config"
	"github.com/muurk/ssdpd/internal/discovery"
	"github.com/muurk/ssdpd/internal/dispatch"
	"github.com/muurk/ssdpd/internal/logging"
	"github.com/muurk/ssdpd/internal/metrics"
	"github.com/muurk/ssdpd/internal/netinfo"
	"github.com/muurk/ssdpd/internal/registry"
	"github.com/muurk/ssdpd/internal/ssdp"
	"github.com/muurk/ssdpd/internal/version"
)

// loadConfig reads --config, or the default config file
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.Load()
}

// saveConfig writes cfg back to where loadConfig read it from
func saveConfig(cfg *config.Config) error {
	if configPath != "" {
		return cfg.SaveFile(configPath)
	}
	return cfg.Save()
}

// node is everything one SSDP participant needs: the registry it publishes
// into, the executor that owns registry access, and the socket service.
type node struct {
	cfg      *config.Config
	network  *netinfo.Info
	registry *registry.Registry
	exec     *dispatch.Serial
	metrics  *metrics.Metrics
	service  *ssdp.Service
}

// newNode resolves the interface and wires the engine. ifaceOverride
// replaces the configured interface when set.
func newNode(cfg *config.Config, ifaceOverride string) (*node, error) {
	ifaceName := cfg.Engine.Interface
	if ifaceOverride != "" {
		ifaceName = ifaceOverride
	}

	network, err := netinfo.Resolve(ifaceName)
	if err != nil {
		return nil, ssdp.NewStartupBindError("resolve interface", ifaceName, err)
	}

	n := &node{
		cfg:      cfg,
		network:  network,
		registry: registry.New(),
		exec:     dispatch.NewSerial(),
		metrics:  metrics.New(),
	}

	n.service = ssdp.NewService(ssdp.Options{
		Manager: managerOptions(cfg.Engine),
		Server:  serverHeader(cfg.Engine),
	}, n.registry, n.exec, network, n.metrics)

	n.registry.Subscribe(n.recordCounts)

	logging.Info("SSDP engine configured",
		zap.String("interface", network.String()),
		zap.String("group", fmt.Sprintf("%s:%d", cfg.Engine.Group, cfg.Engine.Port)),
	)
	return n, nil
}

// managerOptions maps the engine config section onto socket manager options
func managerOptions(ec *config.EngineConfig) ssdp.ManagerOptions {
	return ssdp.ManagerOptions{
		Group:           ec.Group,
		Port:            ec.Port,
		InitialTimeout:  ec.InitialTimeout,
		ReceiveTimeout:  ec.ReceiveTimeout,
		MaxFailures:     ec.MaxFailures,
		RecreateBackoff: ec.RecreateBackoff,
		ProbeMX:         ec.ProbeMX,
		RefreshMX:       ec.RefreshMX,
		RefreshInterval: ec.RefreshInterval,
		BufferSize:      ec.BufferSize,
	}
}

func serverHeader(ec *config.EngineConfig) string {
	if ec.Server != "" {
		return ec.Server
	}
	return version.ServerHeader()
}

// publishConfigured publishes the configured advertisements as internal so
// that search requests are answered for them
func (n *node) publishConfigured() int {
	for _, ad := range n.cfg.Advertisements {
		n.registry.Publish(registry.Advertisement{
			ID:          ad.USN,
			Protocol:    ssdp.ProtocolID,
			URI:         ad.Location,
			ServiceType: ad.ServiceType,
		}, true)
	}
	return len(n.cfg.Advertisements)
}

// recordCounts keeps the advertisement gauges current
func (n *node) recordCounts(ev registry.Event) {
	n.updateGauges(ev.Advertisement.Protocol)
}

func (n *node) updateGauges(protocol string) {
	internal, discovered := n.registry.Count(protocol)
	n.metrics.SetAdvertisements(protocol, "internal", internal)
	n.metrics.SetAdvertisements(protocol, "discovered", discovered)
}

// start binds the socket. A failure here is a startup failure, never a
// transient one.
func (n *node) start(ctx context.Context) error {
	if err := n.service.Start(ctx); err != nil {
		return err
	}
	logging.Info("SSDP engine listening", zap.String("interface", n.network.String()))
	return nil
}

// wait blocks until the receive loop exits and reports why
func (n *node) wait() error {
	<-n.service.Done()
	if err := n.service.Err(); err != nil {
		if ssdp.IsExhaustedRetries(err) {
			return fmt.Errorf("discovery stopped: exhausted retries: %w", err)
		}
		return fmt.Errorf("discovery stopped: %w", err)
	}
	return nil
}

// close stops the engine and drains pending registry work
func (n *node) close() {
	n.service.Stop()
	<-n.service.Done()
	n.exec.Close()
}

// expireLoop drops stale discovered advertisements until ctx is cancelled
func (n *node) expireLoop(ctx context.Context) error {
	interval := n.cfg.Engine.ExpireInterval
	if interval <= 0 {
		interval = config.DefaultExpireInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			// Expire runs on the executor like every other registry mutation
			n.exec.Submit(func() {
				if removed := n.registry.Expire(now); removed > 0 {
					logging.Debug("Expired advertisements", zap.Int("removed", removed))
					n.updateGauges(ssdp.ProtocolID)
					n.updateGauges(discovery.ProtocolID)
				}
			})
		}
	}
}

// newScanner builds the mDNS scanner from the config section
func newScanner(mc *config.MDNSConfig) *discovery.Scanner {
	scanner := discovery.NewScanner(mc.Services...)
	if mc.Domain != "" {
		scanner.Domain = mc.Domain
	}
	if mc.Interval > 0 {
		scanner.Interval = mc.Interval
	}
	return scanner
}
