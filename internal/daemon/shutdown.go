// Package daemon provides signal-driven lifecycle management for the
// proxy process.
package daemon

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// ShutdownHandler translates process signals into the proxy's two
// lifecycle transitions: SIGHUP starts a graceful drain, while SIGTERM,
// SIGINT, or a second SIGHUP demand immediate exit.
type ShutdownHandler struct {
	sigChan chan os.Signal

	mu      sync.Mutex
	started bool

	drainChan chan struct{}
	killChan  chan struct{}
	done      chan struct{}
}

// NewShutdownHandler creates a handler; call Start to begin listening.
func NewShutdownHandler() *ShutdownHandler {
	return &ShutdownHandler{
		sigChan:   make(chan os.Signal, 1),
		drainChan: make(chan struct{}),
		killChan:  make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start begins listening for signals.
func (h *ShutdownHandler) Start() {
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return
	}
	h.started = true
	h.mu.Unlock()

	signal.Notify(h.sigChan, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		draining := false
		for {
			select {
			case sig := <-h.sigChan:
				switch {
				case sig == syscall.SIGHUP && !draining:
					draining = true
					close(h.drainChan)
				default:
					// Any further signal ends the process now.
					close(h.killChan)
					return
				}
			case <-h.done:
				return
			}
		}
	}()
}

// Stop detaches the handler from process signals.
func (h *ShutdownHandler) Stop() {
	signal.Stop(h.sigChan)
	close(h.done)
}

// Drain is closed when a graceful drain has been requested.
func (h *ShutdownHandler) Drain() <-chan struct{} {
	return h.drainChan
}

// Kill is closed when the process must exit immediately.
func (h *ShutdownHandler) Kill() <-chan struct{} {
	return h.killChan
}
