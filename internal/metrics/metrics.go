package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ssdpd"

// Packet classes recorded by PacketClassified
const (
	ClassSearch        = "search"
	ClassAdvertisement = "advertisement"
	ClassIgnored       = "ignored"
	ClassMalformed     = "malformed"
	ClassSelf          = "self"
)

// Socket events recorded by SocketEvent
const (
	EventBound     = "bound"
	EventFailure   = "failure"
	EventRecreated = "recreated"
	EventExhausted = "exhausted"
	EventLeft      = "left"
)

// Metrics holds the discovery engine collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	DatagramsReceived prometheus.Counter
	DatagramsSent     *prometheus.CounterVec
	Packets           *prometheus.CounterVec
	Responses         *prometheus.CounterVec
	Published         *prometheus.CounterVec
	SocketEvents      *prometheus.CounterVec
	SocketState       prometheus.Gauge
	Advertisements    *prometheus.GaugeVec
}

// New creates a Metrics instance backed by its own registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		DatagramsReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datagrams_received_total",
			Help:      "Datagrams read from the multicast socket",
		}),
		DatagramsSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datagrams_sent_total",
			Help:      "Datagrams written to the multicast socket",
		}, []string{"kind"}),
		Packets: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_total",
			Help:      "Inbound packets by classification",
		}, []string{"class"}),
		Responses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_responses_total",
			Help:      "Search responses by outcome",
		}, []string{"result"}),
		Published: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "advertisements_published_total",
			Help:      "Advertisements handed to the registry",
		}, []string{"protocol"}),
		SocketEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "socket_events_total",
			Help:      "Socket lifecycle events",
		}, []string{"event"}),
		SocketState: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "socket_state",
			Help:      "Current socket manager state (0 idle, 1 binding, 2 listening, 3 recreating, 4 failed)",
		}),
		Advertisements: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "advertisements",
			Help:      "Advertisements currently held in the registry",
		}, []string{"protocol", "origin"}),
	}
}

// Registry returns the underlying prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an HTTP handler exposing the collected metrics
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// DatagramReceived counts one inbound datagram
func (m *Metrics) DatagramReceived() {
	if m == nil {
		return
	}
	m.DatagramsReceived.Inc()
}

// DatagramSent counts one outbound datagram of the given kind ("search", "response")
func (m *Metrics) DatagramSent(kind string) {
	if m == nil {
		return
	}
	m.DatagramsSent.WithLabelValues(kind).Inc()
}

// PacketClassified counts one inbound packet by class
func (m *Metrics) PacketClassified(class string) {
	if m == nil {
		return
	}
	m.Packets.WithLabelValues(class).Inc()
}

// ResponseSent records the outcome of a single search response
func (m *Metrics) ResponseSent(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.Responses.WithLabelValues("failed").Inc()
		return
	}
	m.Responses.WithLabelValues("sent").Inc()
}

// AdvertisementPublished counts one advertisement handed to the registry
func (m *Metrics) AdvertisementPublished(protocol string) {
	if m == nil {
		return
	}
	m.Published.WithLabelValues(protocol).Inc()
}

// SocketEvent counts a socket lifecycle event
func (m *Metrics) SocketEvent(event string) {
	if m == nil {
		return
	}
	m.SocketEvents.WithLabelValues(event).Inc()
}

// SetSocketState records the numeric socket manager state
func (m *Metrics) SetSocketState(state int) {
	if m == nil {
		return
	}
	m.SocketState.Set(float64(state))
}

// SetAdvertisements records how many advertisements the registry holds
func (m *Metrics) SetAdvertisements(protocol, origin string, n int) {
	if m == nil {
		return
	}
	m.Advertisements.WithLabelValues(protocol, origin).Set(float64(n))
}
