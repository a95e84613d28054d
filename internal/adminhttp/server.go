// Package adminhttp exposes a read-only operational surface: health,
// Prometheus metrics, and a JSON snapshot of daemon state. There is no
// write path here by design; operators reach for the relay's own
// control channel for anything mutating.
package adminhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oriys/metricsrelay/internal/logging"
	"github.com/oriys/metricsrelay/internal/metrics"
	"github.com/oriys/metricsrelay/internal/observability"
)

// StateSnapshot is returned by /debug/state.
type StateSnapshot struct {
	Sources        []string `json:"sources"`
	QueueDepth     int      `json:"queue_depth"`
	RelayConnected bool     `json:"relay_connected"`
	Filter         any      `json:"filter"`
}

// StateProvider supplies the live values rendered by /debug/state. It is
// satisfied by the supervisor, which has visibility into the listener,
// queue, and relay.
type StateProvider interface {
	Snapshot() StateSnapshot
}

// Server is the admin HTTP surface.
type Server struct {
	server *http.Server
}

// NewServer builds an admin server bound to addr, backed by m's
// registry and state's live snapshot.
func NewServer(addr string, m *metrics.Metrics, state StateProvider) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))

	mux.HandleFunc("/debug/state", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(state.Snapshot()); err != nil {
			logging.Op().Warn("failed to encode state snapshot", "error", err)
		}
	})

	return &Server{
		server: &http.Server{
			Addr:         addr,
			Handler:      observability.HTTPMiddleware(mux),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
		},
	}
}

// Start begins serving in the background. It returns once the listener
// is bound so callers can be sure the address is in use.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("adminhttp: listen on %s: %w", s.server.Addr, err)
	}

	logging.Op().Info("admin http server started", "addr", s.server.Addr)

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			logging.Op().Error("admin http server error", "error", err)
		}
	}()

	return nil
}

// Stop gracefully shuts the server down, waiting up to the given context's deadline.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
