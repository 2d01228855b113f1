package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"grimm.is/opnwatch/internal/logging"
)

// Server is the optional HTTP listener for /metrics and the extra
// read-only endpoints registered with Handle.
type Server struct {
	addr   string
	mux    *http.ServeMux
	logger *logging.Logger
}

// NewServer creates a listener on addr that serves r at /metrics.
func NewServer(addr string, r *Registry, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.WithComponent("metrics")
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	return &Server{addr: addr, mux: mux, logger: logger}
}

// Handle registers an additional handler.
func (s *Server) Handle(pattern string, h http.Handler) {
	s.mux.Handle(pattern, h)
}

// Handler returns the mux (tests).
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("metrics listener started", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		s.logger.Info("metrics listener stopped")
		return nil
	}
}
