//go:build !darwin

package service

import "net"

// activatedListener returns nil on non-Darwin platforms. Socket activation
// via launchd is only supported on macOS; elsewhere the listener always
// arrives on standard input.
func activatedListener() (net.Listener, error) {
	return nil, nil
}
