package httpx

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/logging"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	srv    *http.Server
	logger logging.Logger
}

func NewServer(addr string, h http.Handler, l logging.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           h,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: l.With("module", "http_server"),
	}
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on l until ctx is done, then shuts down
// gracefully, letting in-flight requests finish.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	shutdownErr := make(chan error, 1)
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		shutdownErr <- s.srv.Shutdown(sctx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", l.Addr().String())

	if err := s.srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-shutdownErr
}
