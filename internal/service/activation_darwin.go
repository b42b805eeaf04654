//go:build darwin

package service

import (
	"net"
	"syscall"

	launchd "github.com/bored-engineer/go-launchd"
)

// activationSocketName is the socket key expected in the launchd plist.
const activationSocketName = "Listener"

// activatedListener returns a listener from launchd socket activation.
// Returns nil, nil when not running under launchd or when the socket name
// is absent, so the caller falls back to the inherited stdin socket.
func activatedListener() (net.Listener, error) {
	listener, err := launchd.Activate(activationSocketName)
	if err != nil {
		// ESRCH = not running under launchd
		// ENOENT = socket name not found in plist
		// EALREADY = already activated
		if err == syscall.ESRCH || err == syscall.ENOENT || err == syscall.EALREADY {
			return nil, nil
		}
		return nil, err
	}
	return listener, nil
}
