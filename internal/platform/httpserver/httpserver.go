// Package httpserver wraps the standard http.Server with the timeouts this
// service needs and a small lifecycle surface for main.
package httpserver

import (
	"context"
	"net/http"
	"time"
)

// New builds an http.Server with conservative timeouts. Verification requests
// include a slow hash, so the write timeout is generous relative to typical
// JSON APIs.
func New(addr string, handler http.Handler) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// Server is a thin wrapper over http.Server.
type Server struct {
	srv *http.Server
}

// ListenAndServe starts serving; blocks until shutdown or failure.
func (s *Server) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
