package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Server binds the router to a listener. Listen and Serve are split so the
// caller knows the port is bound before anything else runs.
type Server struct {
	router *echo.Echo
}

func NewServer(router *echo.Echo) *Server { return &Server{router: router} }

// Listen binds addr and returns the bound address.
func (s *Server) Listen(addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	s.router.Listener = ln

	return ln.Addr(), nil
}

// Serve blocks until Shutdown. A graceful shutdown returns nil.
func (s *Server) Serve() error {
	if s.router.Listener == nil {
		return errors.New("serve: Listen was not called")
	}

	err := s.router.Start("")
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}

	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.router.Shutdown(ctx)
}
