package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/muurk/ssdpd/internal/discovery"
	"github.com/muurk/ssdpd/internal/logging"
	"github.com/muurk/ssdpd/internal/registry"
	"github.com/muurk/ssdpd/internal/server"
	"github.com/muurk/ssdpd/internal/ssdp"
	"github.com/muurk/ssdpd/internal/ui"
)

// Engine command flags
var (
	ifaceName   string
	httpAddr    string
	enableMDNS  bool
	tlsCertPath string
	tlsKeyPath  string
	scanTimeout int
)

func init() {
	runCmd.Flags().StringVar(&ifaceName, "iface", "", "Network interface to join the multicast group on (default: first usable)")
	runCmd.Flags().StringVar(&httpAddr, "http-addr", "", "Serve /metrics, /advertisements and /ws on this address (e.g. :8080)")
	runCmd.Flags().BoolVar(&enableMDNS, "mdns", false, "Also browse mDNS services")
	runCmd.Flags().StringVar(&tlsCertPath, "tls-cert", "", "TLS certificate for the HTTP server")
	runCmd.Flags().StringVar(&tlsKeyPath, "tls-key", "", "TLS private key for the HTTP server")

	scanCmd.Flags().StringVar(&ifaceName, "iface", "", "Network interface to listen on (default: first usable)")
	scanCmd.Flags().IntVar(&scanTimeout, "timeout", 0, "Scan duration in seconds (default from config, 10)")
	scanCmd.Flags().BoolVar(&enableMDNS, "mdns", false, "Also browse mDNS services")

	watchCmd.Flags().StringVar(&ifaceName, "iface", "", "Network interface to listen on (default: first usable)")
	watchCmd.Flags().BoolVar(&enableMDNS, "mdns", false, "Also browse mDNS services")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(watchCmd)
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// startupTroubleshooting is shown when the socket cannot be bound
var startupTroubleshooting = []string{
	"Check that the interface is up and supports multicast (--iface)",
	"Another process may hold UDP port 1900 without SO_REUSEADDR",
	"A firewall may block multicast group membership",
}

// executorPublisher routes publishes through the engine's executor so every
// registry mutation happens on one goroutine
type executorPublisher struct {
	n *node
}

func (p executorPublisher) Publish(ad registry.Advertisement, internal bool) {
	p.n.exec.Submit(func() {
		p.n.registry.Publish(ad, internal)
	})
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the discovery daemon",
	Long: `Run the SSDP discovery daemon until interrupted.

The daemon joins the SSDP multicast group, answers M-SEARCH requests for the
advertisements in the config file, and records every advertisement it hears.
With --http-addr it also serves Prometheus metrics, the advertisement list
and a live WebSocket feed.`,
	Example: `  # Run on the first usable interface
  ssdpd run

  # Run on eth0 with the HTTP endpoints enabled
  ssdpd run --iface eth0 --http-addr :8080

  # Also browse mDNS services
  ssdpd run --mdns --log-level debug`,
	RunE: runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	n, err := newNode(cfg, ifaceName)
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	published := n.publishConfigured()

	// Bind the HTTP listener first so a busy port fails before the engine starts
	var srv *server.Server
	addr := httpAddr
	if addr == "" {
		addr = cfg.Preferences.HTTPAddr
	}
	if addr != "" {
		srv, err = server.New(&server.Config{Addr: addr, CertPath: tlsCertPath, KeyPath: tlsKeyPath}, n.registry, n.metrics)
		if err == nil {
			err = srv.Listen()
		}
		if err != nil {
			n.exec.Close()
			return fmt.Errorf("failed to start: %w", err)
		}
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	if err := n.start(gctx); err != nil {
		n.exec.Close()
		if ssdp.IsStartupBind(err) {
			ui.NewPrinter(os.Stderr).PrintError("Failed to start", err, startupTroubleshooting)
		}
		return fmt.Errorf("failed to start: %w", err)
	}
	defer n.close()

	logging.Info("Publishing configured advertisements", zap.Int("count", published))

	g.Go(n.wait)
	g.Go(func() error { return n.expireLoop(gctx) })
	if srv != nil {
		g.Go(func() error { return srv.Start(gctx) })
	}

	if enableMDNS || cfg.MDNS.Enabled {
		scanner := newScanner(cfg.MDNS)
		g.Go(func() error { return scanner.Run(gctx, executorPublisher{n}) })
	}

	err = g.Wait()
	if err != nil {
		logging.Error("Daemon stopped", zap.Error(err))
		return err
	}
	logging.Info("Daemon stopped")
	return nil
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Search the network once and list the results",
	Long: `Join the SSDP multicast group for a bounded time and list every
advertisement heard.

A search request for ssdp:all is sent when the socket opens, so devices that
only answer searches are found as well as those that announce themselves.`,
	Example: `  # Scan for 10 seconds (default)
  ssdpd scan

  # Quick 3-second scan on a specific interface
  ssdpd scan --timeout 3 --iface eth0

  # Include mDNS services
  ssdpd scan --mdns`,
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	timeout := time.Duration(cfg.Preferences.ScanTimeout) * time.Second
	if scanTimeout > 0 {
		timeout = time.Duration(scanTimeout) * time.Second
	}

	n, err := newNode(cfg, ifaceName)
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	printer := ui.NewPrinter(os.Stdout)
	interactive := ui.IsTerminal(os.Stdout)
	if interactive {
		printer.PrintHeader("SSDP scan", "ssdpd "+strings.Join(os.Args[1:], " "), map[string]string{
			"Interface": n.network.String(),
			"Timeout":   timeout.String(),
		})
	}

	if err := n.start(ctx); err != nil {
		n.exec.Close()
		printer.PrintError("Failed to start", err, startupTroubleshooting)
		return fmt.Errorf("failed to start: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	if enableMDNS || cfg.MDNS.Enabled {
		scanner := newScanner(cfg.MDNS)
		scanner.Timeout = timeout
		g.Go(func() error {
			ads, err := scanner.Scan(gctx)
			if err != nil {
				logging.Warn("mDNS scan failed", zap.Error(err))
				return nil
			}
			pub := executorPublisher{n}
			for _, ad := range ads {
				pub.Publish(ad, false)
			}
			return nil
		})
	}

	if interactive {
		aborted, err := ui.RunScanProgress("Searching for services...", timeout, func() int {
			return len(n.registry.All())
		})
		if err != nil {
			logging.Warn("Progress display failed", zap.Error(err))
		}
		if aborted {
			cancel()
		}
	}

	// Wait out the scan window, or stop early if the engine gave up
	select {
	case <-ctx.Done():
	case <-n.service.Done():
	}
	_ = g.Wait()

	n.close()
	stopErr := n.service.Err()

	printer.PrintAdvertisements(n.registry.All())

	if ssdp.IsExhaustedRetries(stopErr) {
		return fmt.Errorf("discovery stopped: exhausted retries: %w", stopErr)
	}
	return nil
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow advertisements live",
	Long: `Join the SSDP multicast group and show advertisements as they arrive.

On a terminal a live table is shown; otherwise one line is printed per
advertisement heard ("+" for new, "·" for refreshed).`,
	RunE: runWatch,
}

// watchBuffer is the number of events held for a slow display before dropping
const watchBuffer = 256

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	n, err := newNode(cfg, ifaceName)
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Publishes arrive on the executor goroutine and must never block it
	events := make(chan registry.Event, watchBuffer)
	unsubscribe := n.registry.Subscribe(func(ev registry.Event) {
		if ev.Advertisement.Internal {
			return
		}
		select {
		case events <- ev:
		default:
			logging.Warn("Watch display falling behind, dropping event", zap.String("id", ev.Advertisement.ID))
		}
	})
	defer unsubscribe()

	if err := n.start(ctx); err != nil {
		n.exec.Close()
		ui.NewPrinter(os.Stderr).PrintError("Failed to start", err, startupTroubleshooting)
		return fmt.Errorf("failed to start: %w", err)
	}
	defer n.close()

	go func() {
		<-n.service.Done()
		cancel()
	}()

	if enableMDNS || cfg.MDNS.Enabled {
		scanner := newScanner(cfg.MDNS)
		go func() { _ = scanner.Run(ctx, executorPublisher{n}) }()
	}

	if ui.IsTerminal(os.Stdout) {
		if err := ui.RunWatch(ctx, events, n.registry.All(), n.network.String()); err != nil {
			return fmt.Errorf("watch display failed: %w", err)
		}
		cancel()
	} else {
		printer := ui.NewPrinter(os.Stdout)
	loop:
		for {
			select {
			case ev := <-events:
				printer.PrintEvent(ev)
			case <-ctx.Done():
				break loop
			}
		}
	}

	n.close()
	if err := n.service.Err(); err != nil && !errors.Is(err, context.Canceled) {
		if ssdp.IsExhaustedRetries(err) {
			return fmt.Errorf("discovery stopped: exhausted retries: %w", err)
		}
		return fmt.Errorf("discovery stopped: %w", err)
	}
	return nil
}

// compile-time check that the adapter satisfies the scanner's publisher
var _ discovery.Publisher = executorPublisher{}
