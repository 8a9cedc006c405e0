package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Config represents the entire ssdpd configuration file.
type Config struct {
	Version        int              `yaml:"version"`
	Engine         *EngineConfig    `yaml:"engine,omitempty"`
	Advertisements []*Advertisement `yaml:"advertisements,omitempty"` // Published locally and offered to searches
	MDNS           *MDNSConfig      `yaml:"mdns,omitempty"`
	Preferences    *Preferences     `yaml:"preferences,omitempty"`
}

// EngineConfig holds the SSDP socket and protocol settings.
type EngineConfig struct {
	Group           string        `yaml:"group"`                     // Multicast group address
	Port            int           `yaml:"port"`                      // Discovery port
	Interface       string        `yaml:"interface,omitempty"`       // Interface name; empty picks the first usable one
	InitialTimeout  time.Duration `yaml:"initial_timeout"`           // Bounds bind, join and probe on each socket creation
	ReceiveTimeout  time.Duration `yaml:"receive_timeout"`           // Receive poll interval
	MaxFailures     int           `yaml:"max_failures"`              // Consecutive failures before giving up
	RecreateBackoff time.Duration `yaml:"recreate_backoff"`          // Initial delay before re-creating a failed socket
	ProbeMX         int           `yaml:"probe_mx"`                  // MX of the search sent on socket creation
	RefreshMX       int           `yaml:"refresh_mx"`                // MX of refresh searches
	RefreshInterval time.Duration `yaml:"refresh_interval"`          // 0 disables periodic refresh
	Server          string        `yaml:"server,omitempty"`          // SERVER header of search responses
	BufferSize      int           `yaml:"buffer_size"`               // Receive buffer size in bytes
	ExpireInterval  time.Duration `yaml:"expire_interval,omitempty"` // How often stale discoveries are dropped
}

// Advertisement is a service this host publishes.
type Advertisement struct {
	USN         string `yaml:"usn"`
	Location    string `yaml:"location"`     // URL of the description document
	ServiceType string `yaml:"service_type"` // Answered when a search's ST equals it
}

// MDNSConfig configures the supplementary mDNS scanner.
type MDNSConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Services []string      `yaml:"services"` // DNS-SD service types to browse
	Domain   string        `yaml:"domain"`
	Interval time.Duration `yaml:"interval"` // Time between browse rounds
}

// Preferences represents CLI preferences.
type Preferences struct {
	ScanTimeout int    `yaml:"scan_timeout"`        // Default scan duration in seconds
	HTTPAddr    string `yaml:"http_addr,omitempty"` // Status endpoint address for `run`
}

// Default engine values
const (
	DefaultGroup           = "239.255.255.250"
	DefaultPort            = 1900
	DefaultInitialTimeout  = 130 * time.Second
	DefaultReceiveTimeout  = 2 * time.Second
	DefaultMaxFailures     = 5
	DefaultRecreateBackoff = 250 * time.Millisecond
	DefaultProbeMX         = 120
	DefaultRefreshMX       = 5
	DefaultBufferSize      = 8192
	DefaultExpireInterval  = 30 * time.Second
	DefaultScanTimeout     = 10
)

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Version:     1,
		Engine:      NewEngineConfig(),
		MDNS:        NewMDNSConfig(),
		Preferences: NewPreferences(),
	}
}

// NewEngineConfig returns the default engine settings.
func NewEngineConfig() *EngineConfig {
	return &EngineConfig{
		Group:           DefaultGroup,
		Port:            DefaultPort,
		InitialTimeout:  DefaultInitialTimeout,
		ReceiveTimeout:  DefaultReceiveTimeout,
		MaxFailures:     DefaultMaxFailures,
		RecreateBackoff: DefaultRecreateBackoff,
		ProbeMX:         DefaultProbeMX,
		RefreshMX:       DefaultRefreshMX,
		BufferSize:      DefaultBufferSize,
		ExpireInterval:  DefaultExpireInterval,
	}
}

// NewMDNSConfig returns the default mDNS scanner settings (disabled).
func NewMDNSConfig() *MDNSConfig {
	return &MDNSConfig{
		Services: []string{"_http._tcp"},
		Domain:   "local.",
		Interval: time.Minute,
	}
}

// NewPreferences returns the default CLI preferences.
func NewPreferences() *Preferences {
	return &Preferences{ScanTimeout: DefaultScanTimeout}
}

// fillDefaults replaces missing sections and zero values with defaults.
func (c *Config) fillDefaults() {
	if c.Engine == nil {
		c.Engine = NewEngineConfig()
	}
	if c.MDNS == nil {
		c.MDNS = NewMDNSConfig()
	}
	if c.Preferences == nil {
		c.Preferences = NewPreferences()
	}

	e, d := c.Engine, NewEngineConfig()
	if e.Group == "" {
		e.Group = d.Group
	}
	if e.Port == 0 {
		e.Port = d.Port
	}
	if e.InitialTimeout == 0 {
		e.InitialTimeout = d.InitialTimeout
	}
	if e.ReceiveTimeout == 0 {
		e.ReceiveTimeout = d.ReceiveTimeout
	}
	if e.MaxFailures == 0 {
		e.MaxFailures = d.MaxFailures
	}
	if e.ProbeMX == 0 {
		e.ProbeMX = d.ProbeMX
	}
	if e.RefreshMX == 0 {
		e.RefreshMX = d.RefreshMX
	}
	if e.BufferSize == 0 {
		e.BufferSize = d.BufferSize
	}
	if e.ExpireInterval == 0 {
		e.ExpireInterval = d.ExpireInterval
	}
	if c.Preferences.ScanTimeout == 0 {
		c.Preferences.ScanTimeout = DefaultScanTimeout
	}
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	if c.Version != 1 {
		return fmt.Errorf("unsupported config version: %d (expected 1)", c.Version)
	}
	if c.Engine != nil {
		if err := c.Engine.Validate(); err != nil {
			return fmt.Errorf("engine: %w", err)
		}
	}

	seen := make(map[string]bool, len(c.Advertisements))
	for i, ad := range c.Advertisements {
		if err := ad.Validate(); err != nil {
			return fmt.Errorf("advertisement %d: %w", i, err)
		}
		if seen[ad.USN] {
			return fmt.Errorf("advertisement %d: duplicate usn %q", i, ad.USN)
		}
		seen[ad.USN] = true
	}
	return nil
}

// Validate checks engine settings.
func (e *EngineConfig) Validate() error {
	ip := net.ParseIP(e.Group)
	if ip == nil || ip.To4() == nil || !ip.IsMulticast() {
		return fmt.Errorf("group %q is not an IPv4 multicast address", e.Group)
	}
	if e.Port < 1 || e.Port > 65535 {
		return fmt.Errorf("port %d out of range", e.Port)
	}
	if e.InitialTimeout <= 0 || e.ReceiveTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if e.MaxFailures < 1 {
		return fmt.Errorf("max_failures must be at least 1")
	}
	if e.ProbeMX < 1 || e.RefreshMX < 1 {
		return fmt.Errorf("mx values must be at least 1")
	}
	if e.RefreshInterval < 0 || e.ExpireInterval < 0 {
		return fmt.Errorf("intervals must not be negative")
	}
	if e.BufferSize < 512 {
		return fmt.Errorf("buffer_size %d is too small", e.BufferSize)
	}
	return nil
}

// Validate checks a single advertisement.
func (a *Advertisement) Validate() error {
	if a.USN == "" {
		return fmt.Errorf("usn is required")
	}
	if a.ServiceType == "" {
		return fmt.Errorf("service_type is required")
	}
	return validateLocation(a.Location)
}

func validateLocation(location string) error {
	u, err := url.Parse(location)
	if err != nil {
		return fmt.Errorf("invalid location %q: %w", location, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("location %q must be an http or https URL", location)
	}
	if u.Host == "" {
		return fmt.Errorf("location %q has no host", location)
	}
	return nil
}

// NewUSN builds a unique service name for a service type.
func NewUSN(serviceType string) string {
	return "uuid:" + uuid.NewString() + "::" + serviceType
}

// AddAdvertisement appends a local advertisement. A USN is generated when usn is empty.
func (c *Config) AddAdvertisement(location, serviceType, usn string) (*Advertisement, error) {
	if usn == "" {
		usn = NewUSN(serviceType)
	}
	ad := &Advertisement{USN: usn, Location: location, ServiceType: serviceType}
	if err := ad.Validate(); err != nil {
		return nil, err
	}
	if c.FindAdvertisement(usn) != nil {
		return nil, fmt.Errorf("advertisement %q already exists", usn)
	}
	c.Advertisements = append(c.Advertisements, ad)
	return ad, nil
}

// FindAdvertisement returns the advertisement with the given USN, or nil.
func (c *Config) FindAdvertisement(usn string) *Advertisement {
	for _, ad := range c.Advertisements {
		if ad.USN == usn {
			return ad
		}
	}
	return nil
}

// RemoveAdvertisement deletes advertisements matching usn exactly, or whose
// USN starts with usn when it is a unique prefix. It returns the removed USN.
func (c *Config) RemoveAdvertisement(usn string) (string, error) {
	match := -1
	for i, ad := range c.Advertisements {
		if ad.USN == usn {
			match = i
			break
		}
	}
	if match < 0 && usn != "" {
		for i, ad := range c.Advertisements {
			if !strings.HasPrefix(ad.USN, usn) {
				continue
			}
			if match >= 0 {
				return "", fmt.Errorf("%q matches more than one advertisement", usn)
			}
			match = i
		}
	}
	if match < 0 {
		return "", fmt.Errorf("advertisement %q not found", usn)
	}

	removed := c.Advertisements[match].USN
	c.Advertisements = append(c.Advertisements[:match], c.Advertisements[match+1:]...)
	return removed, nil
}
