package ssdp

import (
	"context"
	"net"
	"os"
	"sync"
	"time"

	"github.com/muurk/ssdpd/internal/registry"
)

// readResult is one scripted outcome of Transport.ReadFrom
type readResult struct {
	data []byte
	src  net.Addr
	err  error
}

type sentDatagram struct {
	data string
	dst  string
}

// fakeNetwork hands out fakeTransports that share one read script
type fakeNetwork struct {
	mu         sync.Mutex
	script     chan readResult
	listenErrs []error // consumed one per Listen call; nil entries succeed
	transports []*fakeTransport
	writeErr   error
}

func newFakeNetwork(script ...readResult) *fakeNetwork {
	n := &fakeNetwork{script: make(chan readResult, len(script)+16)}
	for _, r := range script {
		n.script <- r
	}
	return n
}

func (n *fakeNetwork) push(r readResult) {
	n.script <- r
}

func (n *fakeNetwork) Listen(ctx context.Context, group *net.UDPAddr, iface *net.Interface) (Transport, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	var err error
	if len(n.listenErrs) > 0 {
		err = n.listenErrs[0]
		n.listenErrs = n.listenErrs[1:]
	}
	t := &fakeTransport{net: n}
	n.transports = append(n.transports, t)
	if err != nil {
		t.closed = true
		return nil, err
	}
	return t, nil
}

func (n *fakeNetwork) listens() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.transports)
}

func (n *fakeNetwork) last() *fakeTransport {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.transports) == 0 {
		return nil
	}
	return n.transports[len(n.transports)-1]
}

// sent returns every datagram written on any transport, in order
func (n *fakeNetwork) sent() []sentDatagram {
	n.mu.Lock()
	ts := append([]*fakeTransport(nil), n.transports...)
	n.mu.Unlock()

	var out []sentDatagram
	for _, t := range ts {
		out = append(out, t.sentDatagrams()...)
	}
	return out
}

type fakeTransport struct {
	net *fakeNetwork

	mu       sync.Mutex
	closed   bool
	deadline time.Time
	writes   []sentDatagram
}

func (t *fakeTransport) ReadFrom(b []byte) (int, net.Addr, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0, nil, net.ErrClosed
	}
	wait := time.Until(t.deadline)
	t.mu.Unlock()
	if wait <= 0 {
		wait = time.Millisecond
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case r := <-t.net.script:
		if r.err != nil {
			return 0, nil, r.err
		}
		n := copy(b, r.data)
		return n, r.src, nil
	case <-timer.C:
		return 0, nil, os.ErrDeadlineExceeded
	}
}

func (t *fakeTransport) WriteTo(b []byte, dst net.Addr) (int, error) {
	t.net.mu.Lock()
	werr := t.net.writeErr
	t.net.mu.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, net.ErrClosed
	}
	if werr != nil {
		return 0, werr
	}
	t.writes = append(t.writes, sentDatagram{data: string(b), dst: dst.String()})
	return len(b), nil
}

func (t *fakeTransport) SetReadDeadline(d time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deadline = d
	return nil
}

func (t *fakeTransport) SetWriteDeadline(time.Time) error { return nil }

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *fakeTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *fakeTransport) sentDatagrams() []sentDatagram {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]sentDatagram(nil), t.writes...)
}

// recordingHandler collects datagrams delivered by a Manager
type recordingHandler struct {
	mu  sync.Mutex
	got []sentDatagram
}

func (h *recordingHandler) HandleDatagram(src net.Addr, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.got = append(h.got, sentDatagram{data: string(data), dst: addrString(src)})
}

func (h *recordingHandler) received() []sentDatagram {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]sentDatagram(nil), h.got...)
}

// recordingSender records responses and optionally fails selected sends
type recordingSender struct {
	mu     sync.Mutex
	sent   []sentDatagram
	failOn map[int]error // zero-based send index
	calls  int
}

func (s *recordingSender) SendTo(data []byte, dst net.Addr) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if err, ok := s.failOn[i]; ok {
		return err
	}
	s.sent = append(s.sent, sentDatagram{data: string(data), dst: dst.String()})
	return nil
}

// fakeSink is an in-memory Sink recording publications
type fakeSink struct {
	mu        sync.Mutex
	local     []registry.Advertisement
	published []registry.Advertisement
	queries   int
}

func (s *fakeSink) Advertisements(protocol string) []registry.Advertisement {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	var out []registry.Advertisement
	for _, ad := range s.local {
		if ad.Protocol == protocol {
			out = append(out, ad)
		}
	}
	return out
}

func (s *fakeSink) Advertisement(protocol, serviceType string) (registry.Advertisement, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	for _, ad := range s.local {
		if ad.Protocol == protocol && ad.ServiceType == serviceType {
			return ad, true
		}
	}
	return registry.Advertisement{}, false
}

func (s *fakeSink) Publish(ad registry.Advertisement, internal bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ad.Internal = internal
	s.published = append(s.published, ad)
}

// queueExecutor holds submitted tasks until run is called
type queueExecutor struct {
	tasks []func()
}

func (q *queueExecutor) Submit(fn func()) bool {
	q.tasks = append(q.tasks, fn)
	return true
}

func (q *queueExecutor) run() {
	tasks := q.tasks
	q.tasks = nil
	for _, fn := range tasks {
		fn()
	}
}

type staticNetwork struct {
	ip net.IP
}

func (s staticNetwork) Interface() *net.Interface { return nil }
func (s staticNetwork) Address() net.IP           { return s.ip }
