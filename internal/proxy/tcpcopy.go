// Package proxy implements the per-connection driver and the accept-loop
// supervisor of the SNI proxy.
package proxy

import (
	"errors"
	"io"
	"net"
	"sync"
)

// splice copies data bidirectionally between the client and backend
// connections. When one direction ends it half-closes the opposite side so
// either party may still drain and signal graceful close. It returns once
// both directions are done, with the first abnormal error if any.
func splice(client, backend net.Conn) error {
	var wg sync.WaitGroup
	wg.Add(2)

	var clientErr, backendErr error

	// Client -> Backend
	go func() {
		defer wg.Done()
		_, clientErr = io.Copy(backend, client)
		closeWrite(backend)
	}()

	// Backend -> Client
	go func() {
		defer wg.Done()
		_, backendErr = io.Copy(client, backend)
		closeWrite(client)
	}()

	wg.Wait()

	if clientErr != nil && !isNormalClose(clientErr) {
		return clientErr
	}
	if backendErr != nil && !isNormalClose(backendErr) {
		return backendErr
	}
	return nil
}

// closeWrite performs a half-close on the connection if it supports it.
func closeWrite(conn net.Conn) {
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
		return
	}
	if wrapper, ok := conn.(interface{ NetConn() net.Conn }); ok {
		if cw, ok := wrapper.NetConn().(interface{ CloseWrite() error }); ok {
			_ = cw.CloseWrite()
		}
	}
}

// isNormalClose returns true if the error represents a normal connection
// close rather than a forwarding failure.
func isNormalClose(err error) bool {
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}

	var netErr *net.OpError
	if errors.As(err, &netErr) {
		if netErr.Err.Error() == "use of closed network connection" {
			return true
		}
	}
	return false
}
