// Package backend maps lookup keys to backend sockets via the filesystem.
package backend

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	// socketName is the per-host Unix stream socket entry.
	socketName = "tls-socket"

	// proxyFlagName enables the PROXY v1 preamble when present.
	proxyFlagName = "send-proxy-v1"
)

// ErrUnknownHost is returned when no directory is configured for a key.
var ErrUnknownHost = errors.New("no backend configured for host")

// Backend describes where to forward a connection.
type Backend struct {
	// SocketPath is the Unix stream socket to dial. It is not probed
	// here; the connect call is the real test.
	SocketPath string

	// SendProxyV1 is true when a PROXY protocol v1 line must precede the
	// client bytes.
	SendProxyV1 bool
}

// Resolver resolves lookup keys against a configuration root directory.
// It holds no cache: the filesystem is consulted on every connection, so
// operators can re-point hostnames with an atomic rename and no reload.
type Resolver struct {
	Root string
}

// Resolve returns the backend for a lookup key. A missing per-host
// directory is ErrUnknownHost; other filesystem errors are returned as-is.
func (r *Resolver) Resolve(key string) (Backend, error) {
	// Keys come from the canonicalizer and cannot contain separators or
	// dot-dot labels, but the path join below is the security boundary,
	// so refuse them here as well.
	if key == "" || key == "." || key == ".." ||
		strings.ContainsAny(key, "/\x00") || strings.Contains(key, string(os.PathSeparator)) {
		return Backend{}, ErrUnknownHost
	}

	dir := filepath.Join(r.Root, key)
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Backend{}, ErrUnknownHost
		}
		return Backend{}, fmt.Errorf("probing host directory: %w", err)
	}

	b := Backend{SocketPath: filepath.Join(dir, socketName)}

	// Presence of the flag file is the whole contract; its contents and
	// type are ignored.
	if _, err := os.Stat(filepath.Join(dir, proxyFlagName)); err == nil {
		b.SendProxyV1 = true
	} else if !errors.Is(err, fs.ErrNotExist) {
		return Backend{}, fmt.Errorf("probing proxy flag: %w", err)
	}

	return b, nil
}
