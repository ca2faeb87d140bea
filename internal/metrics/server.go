package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Path is where the metrics are exposed.
const Path = "/metrics"

// Handler returns the mux serving Path, with responses counted.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(Path, Middleware(promhttp.Handler(), Path))
	return mux
}

// Server exposes Prometheus metrics over HTTP.
type Server struct {
	srv *http.Server
	log *zap.Logger
}

// NewServer creates a metrics server for addr; it does not listen yet.
func NewServer(addr string, log *zap.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log,
	}
}

// Start binds the address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.log.Info("serving metrics", zap.String("address", ln.Addr().String()), zap.String("path", Path))
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("metrics server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
