// Package service adopts the listening socket handed to the process by
// its service manager.
package service

import (
	"errors"
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// ErrNotListener is returned when the inherited descriptor is not a
// listening TCP socket.
var ErrNotListener = errors.New("inherited descriptor is not a listening TCP socket")

// InheritedListener returns the TCP listener the service manager prepared
// for this process. On macOS a launchd-activated socket is preferred;
// everywhere the fallback is the listening socket passed as standard
// input (file descriptor 0).
func InheritedListener() (net.Listener, error) {
	if ln, err := activatedListener(); err != nil {
		return nil, err
	} else if ln != nil {
		return ln, nil
	}
	return listenerFromFD(0, "stdin")
}

// listenerFromFD adopts an inherited file descriptor as a TCP listener.
// The descriptor must already be bound and listening.
func listenerFromFD(fd int, name string) (net.Listener, error) {
	accepting, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ACCEPTCONN)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotListener, err)
	}
	if accepting == 0 {
		return nil, fmt.Errorf("%w: socket is not accepting connections", ErrNotListener)
	}

	f := os.NewFile(uintptr(fd), name)
	ln, err := net.FileListener(f)
	// FileListener duplicates the descriptor, so the wrapper can go.
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("adopting inherited socket: %w", err)
	}

	tcpLn, ok := ln.(*net.TCPListener)
	if !ok {
		ln.Close()
		return nil, fmt.Errorf("%w: got %T", ErrNotListener, ln)
	}
	return tcpLn, nil
}
