//go:build linux || freebsd || darwin || aix || dragonfly || netbsd || openbsd
// +build linux freebsd darwin aix dragonfly netbsd openbsd

package ftpd

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// Control, Control (windows) and Control (fallback) are kept near the
// teacher's own unix/windows/fallback split almost unchanged: setting
// SO_REUSEADDR/SO_REUSEPORT on a raw socket fd is pure OS syscall
// plumbing with no FTP-domain behavior to adapt — the spec has nothing
// to say about it, and there's no idiomatic alternative to the
// syscall/golang.org/x/sys calls themselves.

// Control defines the function to use as dialer Control to reuse the same port/address
func Control(_, _ string, c syscall.RawConn) error {
	var errSetOpts error

	err := c.Control(func(unixFd uintptr) {
		errSetOpts = unix.SetsockoptInt(int(unixFd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
		if errSetOpts != nil {
			return
		}

		errSetOpts = unix.SetsockoptInt(int(unixFd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
		if errSetOpts != nil {
			return
		}
	})
	if err != nil {
		return fmt.Errorf("unable to set control options: %w", err)
	}

	if errSetOpts != nil {
		errSetOpts = fmt.Errorf("unable to set control options: %w", errSetOpts)
	}

	return errSetOpts
}
