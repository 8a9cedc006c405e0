package discovery

import (
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"

	"github.com/grandcat/zeroconf"
)

// DefaultPort is assumed when an entry advertises port 0
const DefaultPort = 80

// Service is a resolved DNS-SD service instance
type Service struct {
	// Instance is the service instance name (e.g., "Living Room TV")
	Instance string

	// Hostname is the mDNS hostname (e.g., "tv.local.")
	Hostname string

	// IP is the preferred address, IPv4 when available
	IP string

	// Port is the service port
	Port int

	// Metadata contains the TXT record data
	// Common fields: "path=/", "model=..."
	Metadata map[string]string
}

func entryToService(entry *zeroconf.ServiceEntry) *Service {
	var ip string
	for _, addr := range entry.AddrIPv4 {
		ip = addr.String()
		break
	}
	// Fallback to IPv6 if no IPv4
	if ip == "" && len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	return &Service{
		Instance: entry.Instance,
		Hostname: entry.HostName,
		IP:       ip,
		Port:     port,
		Metadata: parseTXT(entry.Text),
	}
}

// parseTXT splits "key=value" TXT strings; keys without a value map to ""
func parseTXT(text []string) map[string]string {
	metadata := make(map[string]string, len(text))
	for _, txt := range text {
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		} else {
			metadata[parts[0]] = ""
		}
	}
	return metadata
}

// String returns a human-readable string representation of the service
func (s *Service) String() string {
	return fmt.Sprintf("%s (%s) at %s", s.Instance, s.Hostname, net.JoinHostPort(s.IP, strconv.Itoa(s.Port)))
}

// URL returns the HTTP URL of the service, honouring a TXT "path" entry
func (s *Service) URL() string {
	path := s.GetMetadata("path")
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return "http://" + net.JoinHostPort(s.IP, strconv.Itoa(s.Port)) + path
}

// TXT renders the metadata as sorted key=value lines
func (s *Service) TXT() string {
	keys := make([]string, 0, len(s.Metadata))
	for k := range s.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		if v := s.Metadata[k]; v != "" {
			lines = append(lines, k+"="+v)
		} else {
			lines = append(lines, k)
		}
	}
	return strings.Join(lines, "\n")
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (s *Service) GetMetadata(key string) string {
	if s.Metadata == nil {
		return ""
	}
	return s.Metadata[key]
}
