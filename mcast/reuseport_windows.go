//go:build windows

// SPDX-License-Identifier: GPL-3.0-or-later

package mcast

import (
	"syscall"

	"golang.org/x/sys/windows"
)

// reusePortControl sets SO_REUSEADDR on every multicast receive socket
// before bind. Windows has no SO_REUSEPORT; SO_REUSEADDR alone permits
// multiple sockets to bind the same multicast group/port (spec.md
// §4.C).
func reusePortControl(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
