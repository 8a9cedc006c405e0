// Package server exposes the advertisement registry over HTTP.
//
// # Endpoints
//
//   - GET /metrics: Prometheus metrics for the discovery engine
//   - GET /advertisements: discovered advertisements as JSON.
//     ?protocol=ssdp narrows to one protocol; ?internal=true lists the
//     locally published ones instead.
//   - GET /ws: WebSocket feed. The first frame is a "snapshot" of every
//     discovered advertisement, followed by one "published" frame per
//     registry publish.
//
// # Usage Example
//
//	srv, err := server.New(&server.Config{Addr: ":8080"}, reg, m)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Start blocks until ctx is cancelled
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Slow Clients
//
// Publishes are fanned out without blocking the registry. A feed client
// whose send buffer is full is disconnected.
//
// # TLS
//
// Setting both CertPath and KeyPath serves the endpoints over TLS 1.2+.
package server
