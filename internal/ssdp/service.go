package ssdp

import (
	"github.com/muurk/ssdpd/internal/metrics"
)

// Options configures a Service
type Options struct {
	Manager ManagerOptions
	Server  string // SERVER header for search responses
}

// Service is a complete SSDP participant: a Manager feeding an Engine, with
// the Engine answering searches through the Manager's socket.
type Service struct {
	*Manager
	engine *Engine
}

// NewService wires a Manager and an Engine together. Network supplies both the
// interface to join on and the address used for self-suppression.
func NewService(opts Options, sink Sink, exec Executor, network NetworkInfo, m *metrics.Metrics) *Service {
	mo := opts.Manager
	mo.Metrics = m
	if network != nil && mo.Interface == nil {
		mo.Interface = network.Interface()
	}

	engine := NewEngine(EngineOptions{
		Sink:     sink,
		Executor: exec,
		Network:  network,
		Server:   opts.Server,
		Metrics:  m,
	})
	mgr := NewManager(mo, engine)
	engine.sender = mgr

	return &Service{Manager: mgr, engine: engine}
}

// Engine returns the service's discovery engine
func (s *Service) Engine() *Engine {
	return s.engine
}
