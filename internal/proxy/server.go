package proxy

import (
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"
)

// DefaultDrainWindow bounds how long a draining server waits for in-flight
// connections after the listener closes.
const DefaultDrainWindow = 10 * time.Second

// ConnHandler processes one accepted connection to completion, including
// closing it.
type ConnHandler interface {
	Handle(conn net.Conn)
}

// Server owns the listening socket and spawns one handler goroutine per
// accepted connection. It never cancels running connections: draining only
// stops accepting and waits out a bounded window.
type Server struct {
	handler  ConnHandler
	logger   *slog.Logger
	listener net.Listener

	mu       sync.Mutex
	draining bool
	wg       sync.WaitGroup
}

// NewServer creates a Server around an already-listening socket.
func NewServer(listener net.Listener, handler ConnHandler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		handler:  handler,
		logger:   logger,
		listener: listener,
	}
}

// Serve accepts connections until the listener fails or Drain closes it.
// It returns nil after a drain-initiated close and the listener error on
// fatal accept failure.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.isDraining() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				s.logger.Warn("transient accept failure", "error", err)
				continue
			}
			return err
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handler.Handle(conn)
		}()
	}
}

// Drain closes the listener so a replacement process may bind the port,
// then waits for live connections up to the given window. Connections
// still running when the window elapses are abandoned to process exit.
func (s *Server) Drain(window time.Duration) {
	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	s.mu.Unlock()

	if err := s.listener.Close(); err != nil {
		s.logger.Warn("closing listener", "error", err)
	}

	if window <= 0 {
		window = DefaultDrainWindow
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("drained all connections")
	case <-time.After(window):
		s.logger.Warn("drain window elapsed, abandoning connections")
	}
}

func (s *Server) isDraining() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draining
}
