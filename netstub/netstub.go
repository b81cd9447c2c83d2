// SPDX-License-Identifier: GPL-3.0-or-later

// Package netstub provides function-field test doubles for [net.Conn],
// [net.PacketConn], and dialer interfaces, adapted from the upstream
// bassosimone/netstub module used by the rdmnet package's teacher.
//
// The original only covered [net.Conn] and a stream dialer, because it
// backed DNS-over-{UDP,TCP,TLS} tests. rdmnet's connection engine needs
// the same [net.Conn] double for TCP; its LLRP target additionally needs
// a [net.PacketConn] double for UDP multicast, which [FuncPacketConn]
// adds here.
package netstub

import (
	"context"
	"net"
	"time"
)

// FuncConn is a [net.Conn] test double backed by function fields.
//
// Any field left nil panics if called, matching the teacher's
// fail-loud-on-unconfigured-behavior convention for test doubles.
type FuncConn struct {
	ReadFunc             func(b []byte) (int, error)
	WriteFunc            func(b []byte) (int, error)
	CloseFunc            func() error
	LocalAddrFunc        func() net.Addr
	RemoteAddrFunc       func() net.Addr
	SetDeadlineFunc      func(t time.Time) error
	SetReadDeadFunc      func(t time.Time) error
	SetWriteDeaFunc      func(t time.Time) error
}

var _ net.Conn = &FuncConn{}

func (c *FuncConn) Read(b []byte) (int, error) {
	if c.ReadFunc == nil {
		panic("netstub: FuncConn.ReadFunc not set")
	}
	return c.ReadFunc(b)
}

func (c *FuncConn) Write(b []byte) (int, error) {
	if c.WriteFunc == nil {
		panic("netstub: FuncConn.WriteFunc not set")
	}
	return c.WriteFunc(b)
}

func (c *FuncConn) Close() error {
	if c.CloseFunc == nil {
		panic("netstub: FuncConn.CloseFunc not set")
	}
	return c.CloseFunc()
}

func (c *FuncConn) LocalAddr() net.Addr {
	if c.LocalAddrFunc == nil {
		panic("netstub: FuncConn.LocalAddrFunc not set")
	}
	return c.LocalAddrFunc()
}

func (c *FuncConn) RemoteAddr() net.Addr {
	if c.RemoteAddrFunc == nil {
		panic("netstub: FuncConn.RemoteAddrFunc not set")
	}
	return c.RemoteAddrFunc()
}

func (c *FuncConn) SetDeadline(t time.Time) error {
	if c.SetDeadlineFunc == nil {
		panic("netstub: FuncConn.SetDeadlineFunc not set")
	}
	return c.SetDeadlineFunc(t)
}

func (c *FuncConn) SetReadDeadline(t time.Time) error {
	if c.SetReadDeadFunc == nil {
		panic("netstub: FuncConn.SetReadDeadFunc not set")
	}
	return c.SetReadDeadFunc(t)
}

func (c *FuncConn) SetWriteDeadline(t time.Time) error {
	if c.SetWriteDeaFunc == nil {
		panic("netstub: FuncConn.SetWriteDeaFunc not set")
	}
	return c.SetWriteDeaFunc(t)
}

// FuncDialer is a [Dialer]-shaped test double (matches any interface with
// a DialContext(ctx, network, address) (net.Conn, error) method).
type FuncDialer struct {
	DialContextFunc func(ctx context.Context, network, address string) (net.Conn, error)
}

func (d *FuncDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if d.DialContextFunc == nil {
		panic("netstub: FuncDialer.DialContextFunc not set")
	}
	return d.DialContextFunc(ctx, network, address)
}

// FuncPacketConn is a [net.PacketConn] test double backed by function
// fields, used for LLRP's UDP multicast sockets.
type FuncPacketConn struct {
	ReadFromFunc       func(p []byte) (int, net.Addr, error)
	WriteToFunc        func(p []byte, addr net.Addr) (int, error)
	CloseFunc          func() error
	LocalAddrFunc      func() net.Addr
	SetDeadlineFunc    func(t time.Time) error
	SetReadDeadFunc    func(t time.Time) error
	SetWriteDeaFunc    func(t time.Time) error
}

var _ net.PacketConn = &FuncPacketConn{}

func (c *FuncPacketConn) ReadFrom(p []byte) (int, net.Addr, error) {
	if c.ReadFromFunc == nil {
		panic("netstub: FuncPacketConn.ReadFromFunc not set")
	}
	return c.ReadFromFunc(p)
}

func (c *FuncPacketConn) WriteTo(p []byte, addr net.Addr) (int, error) {
	if c.WriteToFunc == nil {
		panic("netstub: FuncPacketConn.WriteToFunc not set")
	}
	return c.WriteToFunc(p, addr)
}

func (c *FuncPacketConn) Close() error {
	if c.CloseFunc == nil {
		panic("netstub: FuncPacketConn.CloseFunc not set")
	}
	return c.CloseFunc()
}

func (c *FuncPacketConn) LocalAddr() net.Addr {
	if c.LocalAddrFunc == nil {
		panic("netstub: FuncPacketConn.LocalAddrFunc not set")
	}
	return c.LocalAddrFunc()
}

func (c *FuncPacketConn) SetDeadline(t time.Time) error {
	if c.SetDeadlineFunc == nil {
		panic("netstub: FuncPacketConn.SetDeadlineFunc not set")
	}
	return c.SetDeadlineFunc(t)
}

func (c *FuncPacketConn) SetReadDeadline(t time.Time) error {
	if c.SetReadDeadFunc == nil {
		panic("netstub: FuncPacketConn.SetReadDeadFunc not set")
	}
	return c.SetReadDeadFunc(t)
}

func (c *FuncPacketConn) SetWriteDeadline(t time.Time) error {
	if c.SetWriteDeaFunc == nil {
		panic("netstub: FuncPacketConn.SetWriteDeaFunc not set")
	}
	return c.SetWriteDeaFunc(t)
}
