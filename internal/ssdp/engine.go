package ssdp

import (
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/ssdpd/internal/logging"
	"github.com/muurk/ssdpd/internal/metrics"
	"github.com/muurk/ssdpd/internal/registry"
)

// Sink is the advertisement store the engine answers searches from and
// publishes discoveries to
type Sink interface {
	Advertisements(protocol string) []registry.Advertisement
	Advertisement(protocol, serviceType string) (registry.Advertisement, bool)
	Publish(ad registry.Advertisement, internal bool)
}

// Executor runs submitted work later, exactly once, one task at a time
type Executor interface {
	Submit(fn func()) bool
}

// Sender writes a datagram to a unicast or multicast destination
type Sender interface {
	SendTo(data []byte, dst net.Addr) error
}

// NetworkInfo reports the local binding
type NetworkInfo interface {
	Interface() *net.Interface
	Address() net.IP
}

// Class is the engine's classification of an inbound packet
type Class int

const (
	ClassIgnore Class = iota
	ClassSearch
	ClassAdvertisement
)

// String returns the class name
func (c Class) String() string {
	switch c {
	case ClassSearch:
		return metrics.ClassSearch
	case ClassAdvertisement:
		return metrics.ClassAdvertisement
	default:
		return metrics.ClassIgnored
	}
}

// Classify decides what an inbound packet is. M-SEARCH is a search request;
// anything else carrying both USN and LOCATION (NOTIFY or a search response)
// is an advertisement; the rest is ignored.
func Classify(p *Packet) Class {
	if p.Method() == MethodSearch {
		return ClassSearch
	}
	if p.Has(HeaderUSN) && p.Has(HeaderLocation) {
		return ClassAdvertisement
	}
	return ClassIgnore
}

// EngineOptions wires an Engine to its collaborators
type EngineOptions struct {
	Sink     Sink
	Executor Executor
	Sender   Sender
	Network  NetworkInfo
	Server   string // SERVER header for search responses; empty keeps DefaultServer
	Metrics  *metrics.Metrics
}

// Engine classifies inbound datagrams and acts on them. HandleDatagram runs on
// the receive goroutine and only parses and classifies; sink access and
// response sends are submitted to the Executor.
type Engine struct {
	sink    Sink
	exec    Executor
	sender  Sender
	network NetworkInfo
	server  string
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewEngine creates an Engine
func NewEngine(opts EngineOptions) *Engine {
	return &Engine{
		sink:    opts.Sink,
		exec:    opts.Executor,
		sender:  opts.Sender,
		network: opts.Network,
		server:  opts.Server,
		metrics: opts.Metrics,
		now:     time.Now,
	}
}

// HandleDatagram processes one inbound datagram from src
func (e *Engine) HandleDatagram(src net.Addr, data []byte) {
	from := addrString(src)
	logging.LogDatagram("received", from, data)

	raw := string(data)
	p, err := Parse(raw)
	if err != nil {
		e.metrics.PacketClassified(metrics.ClassMalformed)
		logging.Debug("Discarding malformed SSDP packet",
			zap.String("kind", KindMalformedPacket.String()),
			zap.String("addr", from),
			zap.Error(err),
		)
		return
	}

	if e.isSelf(src) {
		e.metrics.PacketClassified(metrics.ClassSelf)
		return
	}

	class := Classify(p)
	e.metrics.PacketClassified(class.String())

	switch class {
	case ClassSearch:
		e.submit(func() { e.handleSearch(src, p) })

	case ClassAdvertisement:
		ad := e.advertisement(raw, p)
		e.submit(func() {
			e.sink.Publish(ad, false)
			e.metrics.AdvertisementPublished(ProtocolID)
		})

	default:
		logging.Debug("Ignoring SSDP packet",
			zap.String("addr", from),
			zap.String("usn", p.USN()),
			zap.String("location", p.Location()),
		)
	}
}

func (e *Engine) submit(fn func()) {
	if !e.exec.Submit(fn) {
		logging.Debug("Executor closed; dropping SSDP task")
	}
}

// handleSearch answers a search request. It runs on the executor. A search
// without a target gets no response.
func (e *Engine) handleSearch(requester net.Addr, p *Packet) {
	st, ok := p.Header(HeaderST)
	if !ok || st == "" {
		logging.Debug("Ignoring search request without ST",
			zap.String("addr", addrString(requester)),
		)
		return
	}

	var ads []registry.Advertisement
	if st == SearchAll {
		ads = e.sink.Advertisements(ProtocolID)
	} else if ad, ok := e.sink.Advertisement(ProtocolID, st); ok {
		ads = []registry.Advertisement{ad}
	}

	if len(ads) == 0 {
		logging.Debug("No local advertisement matches search",
			zap.String("st", st),
			zap.String("addr", addrString(requester)),
		)
		return
	}

	for _, ad := range ads {
		err := e.respond(requester, st, ad)
		e.metrics.ResponseSent(err)
		if err != nil {
			logging.Warn("Failed to send SSDP search response",
				zap.String("kind", KindResponseSend.String()),
				zap.String("usn", ad.ID),
				zap.Error(err),
			)
		}
	}
}

// respond sends one search response echoing the requester's ST
func (e *Engine) respond(requester net.Addr, st string, ad registry.Advertisement) error {
	addr := addrString(requester)
	if e.sender == nil {
		return NewResponseSendError(addr, errNotListening)
	}

	resp := NewSearchResponse(ad.URI, st, ad.ID)
	if e.server != "" {
		resp.Set(HeaderServer, e.server)
	}
	if err := e.sender.SendTo(resp.Bytes(), requester); err != nil {
		return NewResponseSendError(addr, err)
	}
	e.metrics.DatagramSent("response")
	return nil
}

func (e *Engine) advertisement(raw string, p *Packet) registry.Advertisement {
	st := p.ST()
	if st == "" {
		st = p.NT()
	}
	ad := registry.Advertisement{
		ID:          p.USN(),
		Protocol:    ProtocolID,
		URI:         p.Location(),
		ServiceType: st,
		RawData:     raw,
		Object:      p,
		LastSeen:    e.now(),
	}
	if maxAge, ok := p.MaxAge(); ok {
		ad.MaxAge = time.Duration(maxAge) * time.Second
	}
	return ad
}

func (e *Engine) isSelf(src net.Addr) bool {
	if e.network == nil {
		return false
	}
	local := e.network.Address()
	if local == nil {
		return false
	}
	ip := sourceIP(src)
	return ip != nil && ip.Equal(local)
}

func sourceIP(a net.Addr) net.IP {
	switch v := a.(type) {
	case *net.UDPAddr:
		return v.IP
	case *net.IPAddr:
		return v.IP
	case nil:
		return nil
	}
	host, _, err := net.SplitHostPort(a.String())
	if err != nil {
		host = a.String()
	}
	return net.ParseIP(host)
}
