package dispatch

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/muurk/ssdpd/internal/logging"
)

// Serial runs submitted tasks one at a time, in submission order, on a single
// worker goroutine. Submit never waits for earlier tasks to finish.
type Serial struct {
	mu     sync.Mutex
	queue  []func()
	wake   chan struct{}
	closed bool
	done   chan struct{}
}

// NewSerial creates a Serial executor and starts its worker
func NewSerial() *Serial {
	s := &Serial{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go s.run()
	return s
}

// Submit queues fn for execution. It reports false if the executor is closed.
func (s *Serial) Submit(fn func()) bool {
	if fn == nil {
		return false
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.queue = append(s.queue, fn)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

// Len returns the number of queued tasks not yet started
func (s *Serial) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Close stops accepting tasks and blocks until every queued task has run
func (s *Serial) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		select {
		case s.wake <- struct{}{}:
		default:
		}
	}
	s.mu.Unlock()
	<-s.done
}

// Done is closed once the worker has drained the queue after Close
func (s *Serial) Done() <-chan struct{} {
	return s.done
}

func (s *Serial) run() {
	defer close(s.done)

	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return
			}
			<-s.wake
			continue
		}
		fn := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.execute(fn)
	}
}

func (s *Serial) execute(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Dispatched task panicked",
				zap.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	fn()
}

// Inline runs every task immediately on the calling goroutine.
// Callers that are already serialized (tests, one-shot tools) can use it in
// place of Serial.
type Inline struct{}

// Submit runs fn and reports true
func (Inline) Submit(fn func()) bool {
	if fn == nil {
		return false
	}
	fn()
	return true
}
