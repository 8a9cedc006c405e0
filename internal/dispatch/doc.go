// Package dispatch moves work off the network receive goroutine.
//
// The receive loop must keep draining its socket, so anything that touches the
// advertisement registry or writes a response is handed to a Serial executor
// instead of being run inline. Serial guarantees that tasks run one at a time
// and in the order they were submitted, which is what keeps registry reads and
// response sends from racing each other.
//
// # Usage Example
//
//	exec := dispatch.NewSerial()
//	defer exec.Close()
//
//	exec.Submit(func() {
//	    reg.Publish(ad, false)
//	})
//
// # Thread Safety
//
// Submit may be called from any goroutine. Close waits for queued tasks to
// finish; tasks already running are never interrupted.
package dispatch
