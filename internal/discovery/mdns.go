package discovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/ssdpd/internal/logging"
	"github.com/muurk/ssdpd/internal/registry"
)

const (
	// ProtocolID identifies advertisements produced by the mDNS scanner
	ProtocolID = "mdns"

	// ServiceType is browsed when no service types are configured
	ServiceType = "_http._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default duration of one browse round
	DefaultScanTimeout = 10 * time.Second

	// DefaultInterval is the default pause between browse rounds in Run
	DefaultInterval = time.Minute
)

// Publisher receives advertisements found by the scanner
type Publisher interface {
	Publish(ad registry.Advertisement, internal bool)
}

// browseFunc matches zeroconf.Resolver.Browse so tests can replace the network
type browseFunc func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error

// Scanner browses DNS-SD service types over mDNS
type Scanner struct {
	// Services are the DNS-SD service types to browse
	Services []string

	// Domain is the browse domain
	Domain string

	// Timeout is the duration of one browse round
	Timeout time.Duration

	// Interval is the pause between rounds in Run
	Interval time.Duration

	browse browseFunc
	now    func() time.Time
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner(services ...string) *Scanner {
	if len(services) == 0 {
		services = []string{ServiceType}
	}
	return &Scanner{
		Services: services,
		Domain:   ServiceDomain,
		Timeout:  DefaultScanTimeout,
		Interval: DefaultInterval,
		now:      time.Now,
	}
}

// Scan runs one browse round over every configured service type and returns
// the advertisements found, de-duplicated by instance name
func (s *Scanner) Scan(ctx context.Context) ([]registry.Advertisement, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	var (
		mu   sync.Mutex
		seen = make(map[string]registry.Advertisement)
		wg   sync.WaitGroup
	)

	for _, service := range s.Services {
		browse, err := s.browser()
		if err != nil {
			return nil, err
		}
		entries := make(chan *zeroconf.ServiceEntry)

		wg.Add(1)
		go func() {
			defer wg.Done()
			for entry := range entries {
				ad, ok := s.toAdvertisement(entry)
				if !ok {
					continue
				}
				mu.Lock()
				seen[ad.ID] = ad
				mu.Unlock()
			}
		}()

		if err := browse(ctx, service, s.Domain, entries); err != nil {
			return nil, fmt.Errorf("failed to browse for %s: %w", service, err)
		}
	}

	// zeroconf closes each entries channel once ctx is done
	<-ctx.Done()
	wg.Wait()

	out := make([]registry.Advertisement, 0, len(seen))
	for _, ad := range seen {
		out = append(out, ad)
	}
	return out, nil
}

// browser returns the browse function for one service type. Each service
// gets its own resolver since a resolver serves a single browse.
func (s *Scanner) browser() (browseFunc, error) {
	if s.browse != nil {
		return s.browse, nil
	}
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}
	return resolver.Browse, nil
}

// Run browses repeatedly until ctx is cancelled, publishing every
// advertisement found as discovered
func (s *Scanner) Run(ctx context.Context, pub Publisher) error {
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	for {
		ads, err := s.Scan(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logging.Warn("mDNS browse failed", zap.Error(err))
		}
		for _, ad := range ads {
			pub.Publish(ad, false)
		}
		logging.Debug("mDNS browse round complete", zap.Int("found", len(ads)))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

// toAdvertisement converts a zeroconf entry. Entries without an address are skipped.
func (s *Scanner) toAdvertisement(entry *zeroconf.ServiceEntry) (registry.Advertisement, bool) {
	if entry == nil || entry.Instance == "" {
		return registry.Advertisement{}, false
	}

	svc := entryToService(entry)
	if svc.IP == "" {
		return registry.Advertisement{}, false
	}

	now := time.Now
	if s.now != nil {
		now = s.now
	}

	ad := registry.Advertisement{
		ID:          instanceName(entry),
		Protocol:    ProtocolID,
		URI:         svc.URL(),
		ServiceType: entry.Service,
		RawData:     svc.TXT(),
		Object:      svc,
		LastSeen:    now(),
	}
	if entry.TTL > 0 {
		ad.MaxAge = time.Duration(entry.TTL) * time.Second
	}
	return ad, true
}

func instanceName(entry *zeroconf.ServiceEntry) string {
	return fmt.Sprintf("%s.%s.%s", entry.Instance, entry.Service, entry.Domain)
}
