// SPDX-License-Identifier: GPL-3.0-or-later

// Package mcast implements the LLRP multicast transport (spec.md §4.C):
// enumeration of usable local network interfaces, the process-wide
// lowest-MAC computation used as the LLRP hardware-address tiebreaker,
// reference-counted UDP send sockets and single-owner UDP receive
// sockets.
package mcast

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/netip"
	"sync"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// Interface is one local network interface usable for LLRP multicast:
// as selected by [Enumerate], it is up, not loopback, and supports
// multicast. Its addresses are not checked.
type Interface struct {
	Index        int
	Name         string
	HardwareAddr net.HardwareAddr
}

// Enumerate returns the interfaces on ifaces that are usable for
// multicast (spec.md §4.C "enumerates local network interfaces ...
// filters to those on which both a send and receive socket can be
// created"): up, not loopback, and multicast-capable.
//
// ifaces is normally the result of [net.Interfaces]; it is a parameter
// so tests can supply a synthetic interface list.
func Enumerate(ifaces []net.Interface) []Interface {
	var out []Interface
	for _, ifi := range ifaces {
		if ifi.Flags&net.FlagUp == 0 {
			continue
		}
		if ifi.Flags&net.FlagLoopback != 0 {
			continue
		}
		if ifi.Flags&net.FlagMulticast == 0 {
			continue
		}
		out = append(out, Interface{Index: ifi.Index, Name: ifi.Name, HardwareAddr: ifi.HardwareAddr})
	}
	return out
}

// LowestMAC returns the lowest non-zero hardware address across ifaces,
// excluding all-zero MACs (spec.md §3 invariant: "The lowest non-zero
// MAC across all usable multicast interfaces ... is the tiebreaker
// field emitted in LLRP probe replies and must be identical for every
// reply from the same process").
//
// Returns nil if no interface carries a usable (non-empty, non-zero)
// hardware address.
func LowestMAC(ifaces []Interface) net.HardwareAddr {
	var lowest net.HardwareAddr
	for _, ifi := range ifaces {
		mac := ifi.HardwareAddr
		if len(mac) == 0 || isZeroMAC(mac) {
			continue
		}
		if lowest == nil || bytes.Compare(mac, lowest) < 0 {
			lowest = mac
		}
	}
	return lowest
}

func isZeroMAC(mac net.HardwareAddr) bool {
	for _, b := range mac {
		if b != 0 {
			return false
		}
	}
	return true
}

// sendKey identifies a shared outbound multicast socket: one per
// (interface, source port) pair, matching spec.md §4.C "reference-
// counted send sockets keyed by (interface, source_port)".
type sendKey struct {
	ifaceIndex int
	port       int
}

// IO owns the reference-counted send sockets used by a process's LLRP
// targets and the lowest-MAC tiebreaker. Receive sockets are not held
// here: each is opened by [OpenRecvSocket] and owned by its caller. One
// IO is shared by every LLRP target FSM in a [Context] (spec.md §9
// "Global state").
type IO struct {
	mu        sync.Mutex
	sendConns map[sendKey]*refCountedConn
	lowestMAC net.HardwareAddr
}

// NewIO returns an [*IO] with the lowest-MAC tiebreaker computed from
// ifaces (normally [Enumerate] applied to [net.Interfaces]).
func NewIO(ifaces []Interface) *IO {
	return &IO{
		sendConns: make(map[sendKey]*refCountedConn),
		lowestMAC: LowestMAC(ifaces),
	}
}

// LowestMAC returns the process-wide lowest-MAC tiebreaker computed at
// construction time.
func (io *IO) LowestMAC() net.HardwareAddr { return io.lowestMAC }

type refCountedConn struct {
	conn     net.PacketConn
	refcount int
}

// AcquireSendSocket returns a shared [net.PacketConn] listening on the
// given source port, creating it on first acquisition and reusing it on
// subsequent calls for the same (iface, port) pair. iface is used only
// as part of that key: the socket listens on the wildcard address and
// is not bound to iface, and no multicast interface is set on it. The
// returned
// release function must be called exactly once when the caller is done
// with the socket; the underlying connection is closed when the last
// reference is released.
func (io *IO) AcquireSendSocket(iface Interface, port int) (net.PacketConn, func() error, error) {
	key := sendKey{ifaceIndex: iface.Index, port: port}

	io.mu.Lock()
	if rc, ok := io.sendConns[key]; ok {
		rc.refcount++
		io.mu.Unlock()
		return rc.conn, io.releaseFunc(key), nil
	}
	io.mu.Unlock()

	conn, err := net.ListenPacket("udp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, nil, err
	}

	io.mu.Lock()
	if rc, ok := io.sendConns[key]; ok {
		// Lost the race with a concurrent acquire; use theirs, close ours.
		rc.refcount++
		io.mu.Unlock()
		conn.Close()
		return rc.conn, io.releaseFunc(key), nil
	}
	io.sendConns[key] = &refCountedConn{conn: conn, refcount: 1}
	io.mu.Unlock()
	return conn, io.releaseFunc(key), nil
}

func (io *IO) releaseFunc(key sendKey) func() error {
	return func() error {
		io.mu.Lock()
		rc, ok := io.sendConns[key]
		if !ok {
			io.mu.Unlock()
			return nil
		}
		rc.refcount--
		if rc.refcount > 0 {
			io.mu.Unlock()
			return nil
		}
		delete(io.sendConns, key)
		io.mu.Unlock()
		return rc.conn.Close()
	}
}

// RecvSocket is a single-owner multicast receive socket for one
// (group, interface) pair, reporting the ingress interface index for
// every datagram via IP_PKTINFO / IPV6_RECVPKTINFO (spec.md §4.C).
type RecvSocket struct {
	pc4 *ipv4.PacketConn
	pc6 *ipv6.PacketConn

	conn  net.PacketConn
	group netip.Addr
}

// OpenRecvSocket creates a receive socket for the multicast group at
// groupPort, joins the group on iface, and enables ingress-interface
// reporting. bindToMulticastAddr selects between binding the listening
// socket to the multicast address itself (platform-dependent
// RDMNET_BIND_MCAST_SOCKETS_TO_MCAST_ADDRESS) or the wildcard address.
func OpenRecvSocket(groupPort netip.AddrPort, iface Interface, bindToMulticastAddr bool) (*RecvSocket, error) {
	group := groupPort.Addr()

	bindAddr := "0.0.0.0"
	if group.Is6() {
		bindAddr = "::"
	}
	if bindToMulticastAddr {
		bindAddr = group.String()
	}

	lc := net.ListenConfig{Control: reusePortControl}
	conn, err := lc.ListenPacket(context.Background(), udpNetwork(group), fmt.Sprintf("%s:%d", bindAddr, groupPort.Port()))
	if err != nil {
		return nil, err
	}

	rs := &RecvSocket{conn: conn, group: group}
	netIface, _ := net.InterfaceByIndex(iface.Index)

	if group.Is4() {
		pc := ipv4.NewPacketConn(conn)
		if err := pc.JoinGroup(netIface, &net.UDPAddr{IP: net.IP(group.AsSlice())}); err != nil {
			conn.Close()
			return nil, err
		}
		if err := pc.SetControlMessage(ipv4.FlagInterface|ipv4.FlagSrc|ipv4.FlagDst, true); err != nil {
			conn.Close()
			return nil, err
		}
		rs.pc4 = pc
	} else {
		pc := ipv6.NewPacketConn(conn)
		if err := pc.JoinGroup(netIface, &net.UDPAddr{IP: net.IP(group.AsSlice())}); err != nil {
			conn.Close()
			return nil, err
		}
		if err := pc.SetControlMessage(ipv6.FlagInterface|ipv6.FlagSrc|ipv6.FlagDst, true); err != nil {
			conn.Close()
			return nil, err
		}
		rs.pc6 = pc
	}
	return rs, nil
}

func udpNetwork(addr netip.Addr) string {
	if addr.Is4() {
		return "udp4"
	}
	return "udp6"
}

// ReadFrom reads one datagram, reporting the sender and the local
// interface index the datagram arrived on (from IP_PKTINFO /
// IPV6_RECVPKTINFO), so the LLRP target FSM can reply on the same
// interface a request was received on.
func (rs *RecvSocket) ReadFrom(buf []byte) (n int, src netip.AddrPort, ifIndex int, err error) {
	if rs.pc4 != nil {
		n, cm, rAddr, err := rs.pc4.ReadFrom(buf)
		if err != nil {
			return 0, netip.AddrPort{}, 0, err
		}
		addr, _ := netip.ParseAddrPort(rAddr.String())
		if cm != nil {
			ifIndex = cm.IfIndex
		}
		return n, addr, ifIndex, nil
	}
	n, cm, rAddr, err := rs.pc6.ReadFrom(buf)
	if err != nil {
		return 0, netip.AddrPort{}, 0, err
	}
	addr, _ := netip.ParseAddrPort(rAddr.String())
	if cm != nil {
		ifIndex = cm.IfIndex
	}
	return n, addr, ifIndex, nil
}

// Close releases the receive socket.
func (rs *RecvSocket) Close() error {
	return rs.conn.Close()
}
