package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/ssdpd/internal/logging"
	"github.com/muurk/ssdpd/internal/registry"
)

// advertisementsResponse is the body of GET /advertisements
type advertisementsResponse struct {
	Count          int                      `json:"count"`
	GeneratedAt    time.Time                `json:"generated_at"`
	Advertisements []registry.Advertisement `json:"advertisements"`
}

// routes builds the server mux
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metrics.Handler())
	mux.HandleFunc("/advertisements", s.handleAdvertisements)
	mux.HandleFunc("/ws", s.handleWebSocket)
	return logRequests(mux)
}

// handleAdvertisements lists discovered advertisements as JSON.
// ?protocol=ssdp narrows the list; ?internal=true lists locally published ones instead.
func (s *Server) handleAdvertisements(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ads := FilterAdvertisements(s.source, r.URL.Query().Get("protocol"), r.URL.Query().Get("internal") == "true")

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(advertisementsResponse{
		Count:          len(ads),
		GeneratedAt:    s.now().UTC(),
		Advertisements: ads,
	}); err != nil {
		logging.Warn("Failed to encode advertisements", zap.Error(err))
	}
}

// FilterAdvertisements selects advertisements from source. An empty protocol
// selects every protocol; internal ones are only listed per protocol.
func FilterAdvertisements(source Source, protocol string, internal bool) []registry.Advertisement {
	protocol = strings.ToLower(strings.TrimSpace(protocol))

	var ads []registry.Advertisement
	switch {
	case internal:
		ads = source.Advertisements(protocol)
	case protocol != "":
		ads = source.Discovered(protocol)
	default:
		ads = source.All()
	}
	if ads == nil {
		ads = []registry.Advertisement{}
	}
	return ads
}

// statusRecorder captures the response code for request logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the hijacker for websocket upgrades
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack is required by the websocket upgrader
func (r *statusRecorder) Hijack() (c net.Conn, rw *bufio.ReadWriter, err error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logging.LogHTTPRequest(r.RemoteAddr, r.Method, r.URL.Path, rec.status)
	})
}
