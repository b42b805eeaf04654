package proxy

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	proxyproto "github.com/pires/go-proxyproto"

	"github.com/munichmade/sniproxy/internal/backend"
	"github.com/munichmade/sniproxy/internal/hostname"
	"github.com/munichmade/sniproxy/internal/tlssni"
)

const (
	// dialTimeout is the timeout for connecting to backend sockets.
	dialTimeout = 10 * time.Second

	// DefaultHandshakeTimeout bounds time-to-SNI, generous enough for
	// slow or fragmented handshakes.
	DefaultHandshakeTimeout = 30 * time.Second
)

// Handler drives a single accepted connection through
// read -> resolve -> dial -> forward. Failures at any step close the
// client silently: the proxy holds no TLS session and cannot produce an
// authenticated alert, so an opaque close is the only truthful response.
type Handler struct {
	Resolver         *backend.Resolver
	HashedKeys       bool
	HandshakeTimeout time.Duration
	Logger           *slog.Logger
}

// Handle processes one client connection to completion. The only bytes it
// sends toward the client are those forwarded from the backend, and it
// never retries.
func (h *Handler) Handle(conn net.Conn) {
	defer conn.Close()

	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("client", conn.RemoteAddr())

	// Reading. A single coarse deadline covers the whole parse.
	timeout := h.HandshakeTimeout
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		logger.Debug("setting handshake deadline", "error", err)
		return
	}
	rawName, prefix, err := tlssni.ReadClientHello(conn, tlssni.DefaultMaxHandshakeBytes)
	if err != nil {
		logger.Debug("no SNI extracted", "error", err)
		return
	}
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		logger.Debug("clearing handshake deadline", "error", err)
		return
	}

	// Resolving.
	host, err := hostname.Canonicalize(rawName)
	if err != nil {
		logger.Debug("rejected server name", "error", err)
		return
	}
	logger = logger.With("host", host)

	key := hostname.LookupKey(host, h.HashedKeys)
	be, err := h.Resolver.Resolve(key)
	if err != nil {
		if errors.Is(err, backend.ErrUnknownHost) {
			logger.Debug("unknown host")
		} else {
			logger.Error("backend lookup failed", "error", err)
		}
		return
	}

	// Dialing. Nothing has been sent anywhere yet.
	backendConn, err := net.DialTimeout("unix", be.SocketPath, dialTimeout)
	if err != nil {
		logger.Debug("backend dial failed", "socket", be.SocketPath, "error", err)
		return
	}
	defer backendConn.Close()

	// The PROXY line, when enabled, is the first byte sequence the
	// backend sees; the buffered handshake prefix follows immediately.
	if be.SendProxyV1 {
		if err := writeProxyV1(backendConn, conn); err != nil {
			logger.Debug("writing PROXY header", "error", err)
			return
		}
	}
	if _, err := backendConn.Write(prefix); err != nil {
		logger.Debug("replaying handshake prefix", "error", err)
		return
	}

	// Forwarding.
	if err := splice(conn, backendConn); err != nil {
		logger.Debug("forwarding ended", "error", err)
	}
}

// writeProxyV1 emits a PROXY protocol v1 line describing the client
// connection toward the backend. The connection is aborted when either
// endpoint address is not a TCP address.
func writeProxyV1(dst io.Writer, client net.Conn) error {
	src, ok := client.RemoteAddr().(*net.TCPAddr)
	if !ok {
		return fmt.Errorf("client peer address unavailable: %v", client.RemoteAddr())
	}
	local, ok := client.LocalAddr().(*net.TCPAddr)
	if !ok {
		return fmt.Errorf("client local address unavailable: %v", client.LocalAddr())
	}

	header := proxyproto.HeaderProxyFromAddrs(1, src, local)
	if _, err := header.WriteTo(dst); err != nil {
		return err
	}
	return nil
}
