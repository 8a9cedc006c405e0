// Package logging holds the daemon's global zap logger.
//
// Nothing is logged until Initialize is called with a level or the
// SSDPD_LOG_LEVEL environment variable is set, so scan and watch output
// stays clean by default. Output goes to stderr unless SetOutput names a
// file before Initialize.
//
// # Levels
//
//   - debug: datagram dumps, ignored packets, HTTP and WebSocket traffic
//   - info: socket joined, recreated and left
//   - warn: receive failures, failed responses, dropped feed clients
//   - error: startup bind failure and exhausted retries
//
// Every engine error is logged with a "kind" field naming its error kind:
//
//	logging.Warn("SSDP receive failed; re-creating socket",
//	    zap.String("kind", "TransientSocketError"),
//	    zap.Int("failures", 2),
//	    zap.Error(err),
//	)
//
// LogDatagram builds its hex and ASCII dumps only when debug is enabled.
//
// # Concurrency
//
// Initialize, SetOutput and SetLogger are meant for startup and tests. The
// logging functions themselves are safe for concurrent use.
package logging
