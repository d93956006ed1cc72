//go:build windows

package ctl

import "net"

// listenSocket creates the control socket. There is no umask to narrow on
// Windows.
func listenSocket(path string) (net.Listener, error) {
	return net.Listen("unix", path)
}
