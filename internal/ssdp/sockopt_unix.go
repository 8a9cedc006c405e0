//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package ssdp

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// reuseControl lets several SSDP participants on one host share port 1900
func reuseControl(network, address string, c syscall.RawConn) error {
	var opErr error
	err := c.Control(func(fd uintptr) {
		opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
		if opErr != nil {
			return
		}
		opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
	})
	if err != nil {
		return err
	}
	return opErr
}
