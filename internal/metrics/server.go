package metrics

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes the process's registered Prometheus metrics over HTTP.
// Grounded on the teacher's internal/metrics.Server: a small http.Server
// wrapper the daemon starts and stops alongside everything else.
type Server struct {
	addr   string
	server *http.Server
}

// NewServer creates a metrics server bound to addr (e.g. ":9090"), serving
// the Prometheus handler at path (defaulting to "/metrics" if empty). It
// does not start listening until Start is called.
func NewServer(addr, path string) *Server {
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())
	return &Server{
		addr:   addr,
		server: &http.Server{Addr: addr, Handler: mux},
	}
}

// Start begins serving in the background. It returns once the listener is
// bound; serve errors after that point are not reported (mirrors the
// teacher's fire-and-forget metrics server, which is non-critical to the
// engine's own correctness).
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("metrics server listen: %w", err)
	}
	go func() {
		_ = s.server.Serve(ln)
	}()
	return nil
}

// Stop gracefully shuts the metrics server down.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("metrics server shutdown: %w", err)
	}
	return nil
}
