// SPDX-License-Identifier: GPL-3.0-or-later

// Package safeconn provides nil-safe introspection helpers for [net.Conn]
// and [net.PacketConn] values, adapted from the upstream
// bassosimone/safeconn module used by the rdmnet package's teacher.
//
// These helpers are used for structured logging of connection metadata
// where the underlying conn, its addresses, or the addresses' String
// methods might be nil or panic on an unconnected/mock conn.
package safeconn

import "net"

// localAddresser is satisfied by both [net.Conn] and [net.PacketConn] for the
// LocalAddr accessor.
type localAddresser interface {
	LocalAddr() net.Addr
}

// remoteAddresser is satisfied by [net.Conn].
type remoteAddresser interface {
	RemoteAddr() net.Addr
}

// LocalAddr returns conn.LocalAddr().String(), or "" if conn or its
// local address is nil.
func LocalAddr(conn localAddresser) string {
	if conn == nil {
		return ""
	}
	addr := conn.LocalAddr()
	if addr == nil {
		return ""
	}
	return addr.String()
}

// RemoteAddr returns conn.RemoteAddr().String(), or "" if conn or its
// remote address is nil.
func RemoteAddr(conn remoteAddresser) string {
	if conn == nil {
		return ""
	}
	addr := conn.RemoteAddr()
	if addr == nil {
		return ""
	}
	return addr.String()
}

// Network returns conn.LocalAddr().Network(), or "" if conn or its
// local address is nil.
func Network(conn localAddresser) string {
	if conn == nil {
		return ""
	}
	addr := conn.LocalAddr()
	if addr == nil {
		return ""
	}
	return addr.Network()
}
