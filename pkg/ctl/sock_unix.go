//go:build unix

package ctl

import (
	"net"

	"golang.org/x/sys/unix"
)

// listenSocket creates the control socket with access restricted to the
// owner.
func listenSocket(path string) (net.Listener, error) {
	old := unix.Umask(0o077)
	defer unix.Umask(old)
	return net.Listen("unix", path)
}
