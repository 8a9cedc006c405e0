package ssdp

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/muurk/ssdpd/internal/logging"
	"github.com/muurk/ssdpd/internal/metrics"
)

// State is the socket manager lifecycle state
type State int

const (
	StateIdle State = iota
	StateBinding
	StateListening
	StateRecreating
	StateFailed
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBinding:
		return "binding"
	case StateListening:
		return "listening"
	case StateRecreating:
		return "recreating"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Default socket manager settings
const (
	DefaultInitialTimeout  = 130 * time.Second
	DefaultReceiveTimeout  = 2 * time.Second
	DefaultMaxFailures     = 5
	DefaultRecreateBackoff = 250 * time.Millisecond
	DefaultBufferSize      = 8192

	maxRecreateBackoff = 30 * time.Second
)

var errNotListening = errors.New("socket not open")

// Handler receives every datagram read from the socket, tagged with its sender
type Handler interface {
	HandleDatagram(src net.Addr, data []byte)
}

// ManagerOptions configures a Manager. Zero values take the defaults above.
type ManagerOptions struct {
	Group           string
	Port            int
	Interface       *net.Interface
	InitialTimeout  time.Duration // bounds bind, join and the probe send on every socket creation
	ReceiveTimeout  time.Duration // poll interval of the receive loop
	MaxFailures     int
	RecreateBackoff time.Duration // initial delay before re-creating; negative disables waiting
	ProbeMX         int
	RefreshMX       int
	RefreshInterval time.Duration // 0 disables periodic refresh
	BufferSize      int

	Listen  ListenFunc
	Metrics *metrics.Metrics
}

func (o *ManagerOptions) applyDefaults() {
	if o.Group == "" {
		o.Group = MulticastGroup
	}
	if o.Port == 0 {
		o.Port = Port
	}
	if o.InitialTimeout <= 0 {
		o.InitialTimeout = DefaultInitialTimeout
	}
	if o.ReceiveTimeout <= 0 {
		o.ReceiveTimeout = DefaultReceiveTimeout
	}
	if o.MaxFailures <= 0 {
		o.MaxFailures = DefaultMaxFailures
	}
	if o.RecreateBackoff == 0 {
		o.RecreateBackoff = DefaultRecreateBackoff
	}
	if o.ProbeMX <= 0 {
		o.ProbeMX = ProbeMX
	}
	if o.RefreshMX <= 0 {
		o.RefreshMX = RefreshMX
	}
	if o.BufferSize <= 0 {
		o.BufferSize = DefaultBufferSize
	}
	if o.Listen == nil {
		o.Listen = ListenMulticast
	}
}

// Manager owns the multicast socket: it binds and joins the group, runs the
// receive loop, and re-creates the socket after I/O failures until
// MaxFailures consecutive failures have been seen.
type Manager struct {
	opts    ManagerOptions
	handler Handler

	// mu guards lifecycle fields
	mu      sync.Mutex
	state   State
	err     error
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	group   *net.UDPAddr

	// connMu serializes sends against socket re-creation
	connMu sync.Mutex
	conn   Transport
}

// NewManager creates a Manager delivering datagrams to handler
func NewManager(opts ManagerOptions, handler Handler) *Manager {
	opts.applyDefaults()
	done := make(chan struct{})
	close(done)
	return &Manager{
		opts:    opts,
		handler: handler,
		done:    done,
	}
}

// Start resolves the group, creates the socket and launches the receive loop.
// The first bind happens before Start returns so a bind failure is reported
// to the caller as a StartupBind error. Calling Start while running is a no-op.
// Stop may be called while the first bind is in progress; Start then closes
// the socket, returns nil and Done is closed without the loop ever running.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = true
	m.err = nil
	m.done = make(chan struct{})
	m.mu.Unlock()

	addr := net.JoinHostPort(m.opts.Group, strconv.Itoa(m.opts.Port))
	group, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return m.startFailed(NewStartupBindError("resolve", addr, err))
	}

	// cancel is published before binding so Stop can reach a slow first bind
	loopCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.group = group
	m.cancel = cancel
	done := m.done
	m.mu.Unlock()

	m.setState(StateBinding)
	err = m.createSocket(loopCtx)
	if loopCtx.Err() != nil {
		m.shutdown(done)
		logging.Debug("SSDP listener stopped during startup")
		return ctx.Err()
	}
	if err != nil {
		cancel()
		var e *Error
		if errors.As(err, &e) {
			err = NewStartupBindError(e.Op, e.Addr, e.Err)
		}
		return m.startFailed(err)
	}
	m.setState(StateListening)

	go m.run(loopCtx, done)
	if m.opts.RefreshInterval > 0 {
		go m.refreshLoop(loopCtx, done)
	}
	return nil
}

func (m *Manager) startFailed(err error) error {
	logging.Error("Failed to start SSDP listener",
		zap.String("kind", KindStartupBind.String()),
		zap.Error(err),
	)

	m.mu.Lock()
	m.running = false
	m.err = err
	m.cancel = nil
	close(m.done)
	m.mu.Unlock()

	m.setState(StateFailed)
	return err
}

// Stop signals the receive loop to exit and returns without waiting.
// The loop notices within one receive timeout; use Done to wait for it.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

// Done is closed when the receive loop has exited and the socket is closed
func (m *Manager) Done() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.done
}

// Status returns the current lifecycle state
func (m *Manager) Status() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Err returns the error that put the manager in StateFailed, if any
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Refresh sends an immediate search request with the refresh MX
func (m *Manager) Refresh() error {
	return m.sendSearch(m.opts.RefreshMX)
}

// SendTo writes one datagram to dst on the current socket
func (m *Manager) SendTo(data []byte, dst net.Addr) error {
	m.connMu.Lock()
	defer m.connMu.Unlock()
	return m.writeLocked(data, dst)
}

func (m *Manager) writeLocked(data []byte, dst net.Addr) error {
	addr := addrString(dst)
	if m.conn == nil {
		return NewTransientSocketError("send", addr, errNotListening)
	}
	if err := m.conn.SetWriteDeadline(time.Now().Add(m.opts.ReceiveTimeout)); err != nil {
		return NewTransientSocketError("send", addr, err)
	}
	if _, err := m.conn.WriteTo(data, dst); err != nil {
		return NewTransientSocketError("send", addr, err)
	}
	logging.LogDatagram("sent", addr, data)
	return nil
}

func (m *Manager) sendSearch(mx int) error {
	m.mu.Lock()
	group := m.group
	m.mu.Unlock()
	if group == nil {
		return NewTransientSocketError("send", "", errNotListening)
	}

	if err := m.SendTo(NewSearchRequest(mx).Bytes(), group); err != nil {
		return err
	}
	m.opts.Metrics.DatagramSent("search")
	logging.Debug("Sent SSDP search request", zap.Int("mx", mx))
	return nil
}

// createSocket closes any open socket and opens a new one, then sends the probe
// search. Bind, join and the probe are bounded by InitialTimeout.
func (m *Manager) createSocket(ctx context.Context) error {
	m.connMu.Lock()
	defer m.connMu.Unlock()

	m.closeLocked()

	m.mu.Lock()
	group := m.group
	m.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, m.opts.InitialTimeout)
	defer cancel()

	conn, err := m.opts.Listen(dialCtx, group, m.opts.Interface)
	if err != nil {
		return NewTransientSocketError("bind", group.String(), err)
	}
	m.conn = conn

	if err := conn.SetWriteDeadline(time.Now().Add(m.opts.InitialTimeout)); err != nil {
		m.closeLocked()
		return NewTransientSocketError("probe", group.String(), err)
	}
	probe := NewSearchRequest(m.opts.ProbeMX).Bytes()
	if _, err := conn.WriteTo(probe, group); err != nil {
		m.closeLocked()
		return NewTransientSocketError("probe", group.String(), err)
	}
	logging.LogDatagram("sent", group.String(), probe)
	m.opts.Metrics.DatagramSent("search")
	m.opts.Metrics.SocketEvent(metrics.EventBound)

	iface := "default"
	if m.opts.Interface != nil {
		iface = m.opts.Interface.Name
	}
	logging.LogSocketEvent("joined",
		zap.String("group", group.String()),
		zap.String("interface", iface),
		zap.Int("mx", m.opts.ProbeMX),
	)
	return nil
}

func (m *Manager) closeLocked() {
	if m.conn == nil {
		return
	}
	if err := m.conn.Close(); err != nil {
		logging.Debug("Error closing SSDP socket", zap.Error(err))
	}
	m.conn = nil
}

func (m *Manager) transport() Transport {
	m.connMu.Lock()
	defer m.connMu.Unlock()
	return m.conn
}

// run is the receive loop. Only this goroutine re-creates the socket, so the
// snapshot taken by transport() stays valid for the duration of one read.
func (m *Manager) run(ctx context.Context, done chan struct{}) {
	defer m.shutdown(done)

	buf := make([]byte, m.opts.BufferSize)
	failures := 0
	bo := m.newBackOff()

	for {
		if ctx.Err() != nil {
			return
		}

		conn := m.transport()
		if conn == nil {
			return
		}

		err := conn.SetReadDeadline(time.Now().Add(m.opts.ReceiveTimeout))
		var n int
		var src net.Addr
		if err == nil {
			n, src, err = conn.ReadFrom(buf)
		}

		if err == nil {
			failures = 0
			bo.Reset()
			m.opts.Metrics.DatagramReceived()

			data := make([]byte, n)
			copy(data, buf[:n])
			m.handler.HandleDatagram(src, data)
			continue
		}

		if isTimeout(err) {
			continue
		}
		if ctx.Err() != nil {
			return
		}

		failures++
		m.opts.Metrics.SocketEvent(metrics.EventFailure)
		last := NewTransientSocketError("receive", m.groupString(), err)
		if failures >= m.opts.MaxFailures {
			m.fail(NewExhaustedRetriesError(failures, last))
			return
		}

		logging.Warn("SSDP receive failed; re-creating socket",
			zap.String("kind", KindTransientSocket.String()),
			zap.Int("failures", failures),
			zap.Error(err),
		)
		if !m.recreate(ctx, bo, &failures) {
			return
		}
	}
}

// recreate re-creates the socket, counting each failed attempt as another
// consecutive failure. It reports false when the loop must exit.
func (m *Manager) recreate(ctx context.Context, bo backoff.BackOff, failures *int) bool {
	m.setState(StateRecreating)

	for {
		if wait := bo.NextBackOff(); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return false
			case <-timer.C:
			}
		}
		if ctx.Err() != nil {
			return false
		}

		err := m.createSocket(ctx)
		if err == nil {
			m.opts.Metrics.SocketEvent(metrics.EventRecreated)
			logging.LogSocketEvent("recreated", zap.Int("failures", *failures))
			m.setState(StateListening)
			return true
		}
		if ctx.Err() != nil {
			return false
		}

		*failures++
		m.opts.Metrics.SocketEvent(metrics.EventFailure)
		if *failures >= m.opts.MaxFailures {
			m.fail(NewExhaustedRetriesError(*failures, err))
			return false
		}
		logging.Warn("SSDP socket re-creation failed",
			zap.String("kind", KindTransientSocket.String()),
			zap.Int("failures", *failures),
			zap.Error(err),
		)
	}
}

func (m *Manager) newBackOff() backoff.BackOff {
	if m.opts.RecreateBackoff < 0 {
		return &backoff.ZeroBackOff{}
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.opts.RecreateBackoff
	b.MaxInterval = maxRecreateBackoff
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func (m *Manager) fail(err error) {
	logging.Error("SSDP discovery stopped",
		zap.String("kind", KindExhaustedRetries.String()),
		zap.Error(err),
	)
	m.opts.Metrics.SocketEvent(metrics.EventExhausted)

	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
	m.setState(StateFailed)
}

// shutdown leaves the group, closes the socket and marks the loop finished
func (m *Manager) shutdown(done chan struct{}) {
	m.connMu.Lock()
	hadConn := m.conn != nil
	m.closeLocked()
	m.connMu.Unlock()
	if hadConn {
		m.opts.Metrics.SocketEvent(metrics.EventLeft)
		logging.LogSocketEvent("left", zap.String("group", m.groupString()))
	}

	m.mu.Lock()
	m.running = false
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	failed := m.err != nil
	m.mu.Unlock()

	if !failed {
		m.setState(StateIdle)
	}
	close(done)
}

func (m *Manager) refreshLoop(ctx context.Context, done chan struct{}) {
	ticker := time.NewTicker(m.opts.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			if err := m.Refresh(); err != nil {
				logging.Warn("Periodic SSDP refresh failed",
					zap.String("kind", KindTransientSocket.String()),
					zap.Error(err),
				)
			}
		}
	}
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
	m.opts.Metrics.SetSocketState(int(s))
}

func (m *Manager) groupString() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.group == nil {
		return ""
	}
	return m.group.String()
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}
