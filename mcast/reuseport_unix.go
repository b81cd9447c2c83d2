//go:build unix

// SPDX-License-Identifier: GPL-3.0-or-later

package mcast

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// reusePortControl sets SO_REUSEADDR and, where available, SO_REUSEPORT
// on every multicast receive socket before bind, so that multiple
// processes (or multiple LLRP targets within one process) can share one
// multicast group/port (spec.md §4.C).
func reusePortControl(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		if sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); sockErr != nil {
			return
		}
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
