package ssdp

import (
	"strconv"
	"strings"
)

// Protocol and wire constants
const (
	// ProtocolID identifies advertisements produced by this engine
	ProtocolID = "ssdp"

	// MulticastGroup is the SSDP IPv4 multicast group
	MulticastGroup = "239.255.255.250"

	// Port is the SSDP discovery port
	Port = 1900

	// SearchAll is the search target matching every service
	SearchAll = "ssdp:all"

	// MethodSearch is the search request method
	MethodSearch = "M-SEARCH"

	// MethodNotify is the unsolicited advertisement method
	MethodNotify = "NOTIFY"

	// DefaultCacheControl is the CACHE-CONTROL value sent in search responses
	DefaultCacheControl = "180"

	// DefaultServer is the SERVER value sent in search responses
	DefaultServer = "ssdpd/1.0 UPnP/1.1"

	// RefreshMX is the MX used for periodic and operator-triggered refresh queries
	RefreshMX = 5

	// ProbeMX is the MX used by the query sent when a socket is (re)created
	ProbeMX = 120
)

// Known header names, stored upper-case
const (
	HeaderCacheControl = "CACHE-CONTROL"
	HeaderExt          = "EXT"
	HeaderHost         = "HOST"
	HeaderLocation     = "LOCATION"
	HeaderMan          = "MAN"
	HeaderMX           = "MX"
	HeaderNT           = "NT"
	HeaderNTS          = "NTS"
	HeaderServer       = "SERVER"
	HeaderST           = "ST"
	HeaderUSN          = "USN"
)

// serializeOrder is the order in which known headers are written; NT is read-only
var serializeOrder = []string{
	HeaderCacheControl,
	HeaderExt,
	HeaderHost,
	HeaderMan,
	HeaderMX,
	HeaderLocation,
	HeaderNTS,
	HeaderServer,
	HeaderST,
	HeaderUSN,
}

const (
	searchStartLine   = "M-SEARCH * HTTP/1.1"
	responseStartLine = "HTTP/1.1 200 OK"
	crlf              = "\r\n"
)

// Packet is a single SSDP message: a start line plus a set of headers.
// Header names are case-insensitive and stored upper-case.
type Packet struct {
	startLine string
	headers   map[string]string
}

// Parse builds a Packet from raw datagram text. The first line is the start
// line; every following line containing a colon is a header. Lines without a
// colon are ignored.
func Parse(raw string) (*Packet, error) {
	if raw == "" {
		return nil, NewMalformedPacketError("empty payload")
	}

	lines := strings.Split(raw, "\n")
	startLine := strings.TrimSpace(lines[0])
	if startLine == "" {
		return nil, NewMalformedPacketError("missing start line")
	}

	p := &Packet{
		startLine: startLine,
		headers:   make(map[string]string, len(lines)-1),
	}

	for _, line := range lines[1:] {
		ix := strings.IndexByte(line, ':')
		if ix < 0 {
			continue
		}
		name := strings.ToUpper(strings.TrimSpace(line[:ix]))
		if name == "" {
			continue
		}
		p.headers[name] = strings.TrimSpace(line[ix+1:])
	}

	return p, nil
}

// NewSearchRequest builds a multicast M-SEARCH for every service type with the given MX
func NewSearchRequest(mx int) *Packet {
	p := newPacket(searchStartLine)
	p.Set(HeaderHost, MulticastGroup+":"+strconv.Itoa(Port))
	p.Set(HeaderMan, `"ssdp:discover"`)
	p.Set(HeaderMX, strconv.Itoa(mx))
	p.Set(HeaderST, SearchAll)
	return p
}

// NewSearchResponse builds a unicast 200 OK answering a search request
func NewSearchResponse(location, searchTarget, usn string) *Packet {
	p := newPacket(responseStartLine)
	p.Set(HeaderCacheControl, DefaultCacheControl)
	p.Set(HeaderExt, "")
	p.Set(HeaderLocation, location)
	p.Set(HeaderServer, DefaultServer)
	p.Set(HeaderST, searchTarget)
	p.Set(HeaderUSN, usn)
	return p
}

func newPacket(startLine string) *Packet {
	return &Packet{startLine: startLine, headers: make(map[string]string)}
}

// StartLine returns the request or status line
func (p *Packet) StartLine() string {
	return p.startLine
}

// Method returns the first token of the start line, or "" if it has no space
func (p *Packet) Method() string {
	ix := strings.IndexByte(p.startLine, ' ')
	if ix < 0 {
		return ""
	}
	return p.startLine[:ix]
}

// Header looks up a header by case-insensitive name
func (p *Packet) Header(name string) (string, bool) {
	v, ok := p.headers[strings.ToUpper(name)]
	return v, ok
}

// Has reports whether a header is present, even with an empty value
func (p *Packet) Has(name string) bool {
	_, ok := p.headers[strings.ToUpper(name)]
	return ok
}

// Set stores a header value under its upper-cased name
func (p *Packet) Set(name, value string) {
	p.headers[strings.ToUpper(name)] = value
}

// Headers returns a copy of every header, including unknown ones
func (p *Packet) Headers() map[string]string {
	out := make(map[string]string, len(p.headers))
	for k, v := range p.headers {
		out[k] = v
	}
	return out
}

func (p *Packet) get(name string) string { return p.headers[name] }

func (p *Packet) CacheControl() string { return p.get(HeaderCacheControl) }
func (p *Packet) Ext() string          { return p.get(HeaderExt) }
func (p *Packet) Host() string         { return p.get(HeaderHost) }
func (p *Packet) Location() string     { return p.get(HeaderLocation) }
func (p *Packet) MAN() string          { return p.get(HeaderMan) }
func (p *Packet) MX() string           { return p.get(HeaderMX) }
func (p *Packet) NT() string           { return p.get(HeaderNT) }
func (p *Packet) NTS() string          { return p.get(HeaderNTS) }
func (p *Packet) Server() string       { return p.get(HeaderServer) }
func (p *Packet) ST() string           { return p.get(HeaderST) }
func (p *Packet) USN() string          { return p.get(HeaderUSN) }

// MaxAge extracts the max-age directive from CACHE-CONTROL. A bare number is
// accepted as well since search responses from this engine send one.
func (p *Packet) MaxAge() (int, bool) {
	cc, ok := p.headers[HeaderCacheControl]
	if !ok {
		return 0, false
	}
	for _, directive := range strings.Split(cc, ",") {
		directive = strings.TrimSpace(directive)
		if k, v, found := strings.Cut(directive, "="); found {
			if strings.EqualFold(strings.TrimSpace(k), "max-age") {
				directive = strings.TrimSpace(v)
			} else {
				continue
			}
		}
		if n, err := strconv.Atoi(directive); err == nil && n >= 0 {
			return n, true
		}
	}
	return 0, false
}

// String serializes the packet to wire format. Only known headers are written,
// in a fixed order; extension headers are dropped.
func (p *Packet) String() string {
	var sb strings.Builder
	sb.WriteString(p.startLine)
	sb.WriteString(crlf)
	for _, name := range serializeOrder {
		v, ok := p.headers[name]
		if !ok {
			continue
		}
		sb.WriteString(name)
		sb.WriteString(": ")
		sb.WriteString(v)
		sb.WriteString(crlf)
	}
	return sb.String()
}

// Bytes returns the serialized packet ready to be written to a socket
func (p *Packet) Bytes() []byte {
	return []byte(p.String())
}
