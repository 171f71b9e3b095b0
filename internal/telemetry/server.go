package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server is the plain HTTP listener that exposes /metrics. Grounded on the
// example pack's infrastructure/service.Runner http.Server setup (explicit
// timeouts, ListenAndServe in its own goroutine, ErrServerClosed treated
// as a clean shutdown rather than an error).
type Server struct {
	httpSrv *http.Server
	log     *zap.Logger
}

func NewServer(bindAddr string, log *zap.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &Server{
		httpSrv: &http.Server{
			Addr:              bindAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log,
	}
}

// Serve blocks until the server is closed. Run it from its own goroutine.
func (s *Server) Serve() {
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.log.Error("metrics server stopped", zap.Error(err))
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
