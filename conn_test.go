// SPDX-License-Identifier: GPL-3.0-or-later

package rdmnet

import (
	"context"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/rdmnet-go/rdmnet/netstub"
	"github.com/rdmnet-go/rdmnet/rdmwire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// packBrokerFrame wraps a Broker PDU built by pack in a root-layer PDU
// plus TCP preamble, mirroring recvbuf's own test fixtures.
func packBrokerFrame(t *testing.T, senderCID CID, size int, pack func([]byte) (int, error)) []byte {
	t.Helper()
	body := make([]byte, size)
	n, err := pack(body)
	require.NoError(t, err)
	body = body[:n]

	root := make([]byte, rdmwire.SizeRootLayer(len(body)))
	n, err = rdmwire.PackRootLayer(root, rdmwire.VectorRootBroker, senderCID, body)
	require.NoError(t, err)
	root = root[:n]

	pre := make([]byte, rdmwire.TCPPreambleSize)
	_, err = rdmwire.PackTCPPreamble(pre, len(root))
	require.NoError(t, err)
	return append(pre, root...)
}

func packConnectReplyFrame(t *testing.T, senderCID CID, status uint16, clientUID UID) []byte {
	t.Helper()
	reply := rdmwire.BrokerConnectReplyMsg{ConnectStatus: status, ClientUID: clientUID}
	return packBrokerFrame(t, senderCID, rdmwire.SizeBrokerConnectReply(), func(buf []byte) (int, error) {
		return rdmwire.PackBrokerConnectReply(buf, reply)
	})
}

func packClientRedirectFrame(t *testing.T, senderCID CID, newAddr netip.AddrPort) []byte {
	t.Helper()
	msg := rdmwire.BrokerClientRedirectMsg{NewAddr: newAddr}
	// Generously sized: a redirect body is at most header + a 16-byte
	// address + a 2-byte port.
	return packBrokerFrame(t, senderCID, 64, func(buf []byte) (int, error) {
		return rdmwire.PackBrokerClientRedirect(buf, msg)
	})
}

// onceConn returns a [*netstub.FuncConn] whose first Read delivers wire
// in full and every subsequent Read blocks until ctx is done, matching a
// broker that goes silent after its one reply.
func onceConn(ctx context.Context, wire []byte) *netstub.FuncConn {
	read := false
	c := &netstub.FuncConn{
		WriteFunc:      func(b []byte) (int, error) { return len(b), nil },
		CloseFunc:      func() error { return nil },
		LocalAddrFunc:  func() net.Addr { return &net.TCPAddr{} },
		RemoteAddrFunc: func() net.Addr { return &net.TCPAddr{} },
	}
	c.ReadFunc = func(b []byte) (int, error) {
		if !read {
			read = true
			n := copy(b, wire)
			return n, nil
		}
		<-ctx.Done()
		return 0, ctx.Err()
	}
	return c
}

// newHandshakeTestConn builds a [*Conn] whose connect step is stubbed by
// dial, so Tick can be driven against scripted handshake replies without
// a real socket.
func newHandshakeTestConn(t *testing.T, dial func(ctx context.Context, addr netip.AddrPort) (net.Conn, error)) *Conn {
	t.Helper()
	cfg := NewConfig()
	entry := rdmwire.ClientEntry{
		CID:            NewCID(),
		ClientProtocol: rdmwire.ClientProtocolRPT,
		RPT: &rdmwire.RPTClientEntryData{
			UID:        DynamicUIDRequestUID(0),
			ClientType: rdmwire.RPTClientTypeController,
		},
	}
	c := NewConn(cfg, DefaultSLogger(), NewCID(), entry, NewScopeConfig(), rdmwire.E133DefaultDomain)
	c.connect = FuncAdapter[netip.AddrPort, net.Conn](dial)
	return c
}

func waitForState(t *testing.T, c *Conn, want connState) PollResult {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		res := c.Tick(time.Now())
		if c.State() == want {
			return res
		}
		time.Sleep(2 * time.Millisecond)
	}
	require.Equal(t, want, c.State(), "timed out waiting for state transition")
	return PollResult{}
}

// TestTickHandshakeOkAssignsReplyAndAddr grounds scenario S1: an Ok
// Connect Reply carrying an assigned dynamic UID must reach the poll
// result along with the address actually connected to.
func TestTickHandshakeOkAssignsReplyAndAddr(t *testing.T) {
	addr := netip.MustParseAddrPort("198.51.100.2:5569")
	brokerCID := NewCID()
	assignedUID := UID{Manu: 0x6574, ID: 0x00000042}
	wire := packConnectReplyFrame(t, brokerCID, uint16(ConnectStatusOK), assignedUID)

	c := newHandshakeTestConn(t, func(ctx context.Context, a netip.AddrPort) (net.Conn, error) {
		require.Equal(t, addr, a)
		return onceConn(ctx, wire), nil
	})
	c.Start(addr)

	res := waitForState(t, c, connStateConnected)
	assert.True(t, res.Connected)
	require.NotNil(t, res.Reply)
	assert.Equal(t, assignedUID, res.Reply.ClientUID)
	assert.Equal(t, addr, res.ConnectedAddr)
}

// TestTickHandshakeRejectedGoesBackoff checks spec.md §4.D: any
// ConnectStatus other than Ok or ClientRedirect disconnects and reports
// ConnectFailRejected with the offending status.
func TestTickHandshakeRejectedGoesBackoff(t *testing.T) {
	addr := netip.MustParseAddrPort("198.51.100.2:5569")
	brokerCID := NewCID()
	wire := packConnectReplyFrame(t, brokerCID, uint16(ConnectStatusScopeMismatch), UID{})

	c := newHandshakeTestConn(t, func(ctx context.Context, a netip.AddrPort) (net.Conn, error) {
		return onceConn(ctx, wire), nil
	})
	c.Start(addr)

	res := waitForState(t, c, connStateBackoff)
	assert.False(t, res.Connected)
	require.NotNil(t, res.ConnectFail)
	assert.Equal(t, ConnectFailRejected, res.ConnectFail.Reason)
	assert.Equal(t, ConnectStatusScopeMismatch, res.ConnectFail.RejectStatus)
}

// TestTickHandshakeRedirectRetargets checks the Connecting.Handshake ->
// Connecting.Tcp edge of spec.md §4.D: a Client Redirect re-dials the
// named address instead of failing or connecting.
func TestTickHandshakeRedirectRetargets(t *testing.T) {
	firstAddr := netip.MustParseAddrPort("198.51.100.2:5569")
	redirectAddr := netip.MustParseAddrPort("198.51.100.9:5569")
	brokerCID := NewCID()
	redirectWire := packClientRedirectFrame(t, brokerCID, redirectAddr)
	okWire := packConnectReplyFrame(t, brokerCID, uint16(ConnectStatusOK), UID{Manu: 0x6574, ID: 1})

	var dialed []netip.AddrPort
	c := newHandshakeTestConn(t, func(ctx context.Context, a netip.AddrPort) (net.Conn, error) {
		dialed = append(dialed, a)
		if a == firstAddr {
			return onceConn(ctx, redirectWire), nil
		}
		return onceConn(ctx, okWire), nil
	})
	c.Start(firstAddr)

	res := waitForState(t, c, connStateConnected)
	assert.True(t, res.Connected)
	assert.Equal(t, []netip.AddrPort{firstAddr, redirectAddr}, dialed)
	assert.Equal(t, redirectAddr, res.ConnectedAddr)
}

// TestBackoffBounds checks spec.md §8 property 6: every delay is
// non-negative and clamped to 30s.
func TestBackoffBounds(t *testing.T) {
	rnd := func() uint32 { return 12345 }
	prev := time.Duration(0)
	for i := 0; i < 50; i++ {
		prev = backoffNext(prev, rnd)
		assert.GreaterOrEqual(t, prev, time.Duration(0))
		assert.LessOrEqual(t, prev, 30*time.Second)
	}
}

// TestBackoffFirstFailureImmediate checks spec.md §4.D: "On first
// failure the interval is 0 (immediate retry)."
func TestBackoffFirstFailureImmediate(t *testing.T) {
	d := backoffNext(0, func() uint32 { return 999999 })
	assert.Equal(t, time.Duration(0), d)
}

// TestBackoffS5 replays scenario S5: four consecutive failures produce
// non-decreasing delays in [0, 30000]ms with d4 <= 30000ms.
func TestBackoffS5(t *testing.T) {
	rnd := func() uint32 { return 3000 } // fixed jitter = 1000+3000%4001 = 4000ms
	d1 := backoffNext(0, rnd)
	d2 := backoffNext(d1, rnd)
	d3 := backoffNext(d2, rnd)
	d4 := backoffNext(d3, rnd)

	require.Equal(t, time.Duration(0), d1)
	assert.LessOrEqual(t, d1, d2)
	assert.LessOrEqual(t, d2, d3)
	assert.LessOrEqual(t, d3, d4)
	assert.LessOrEqual(t, d4, 30*time.Second)
}

func TestBackoffClampsAt30s(t *testing.T) {
	rnd := func() uint32 { return 4000 } // max jitter = 5000ms
	prev := time.Duration(29 * time.Second)
	next := backoffNext(prev, rnd)
	assert.Equal(t, 30*time.Second, next)
}

func TestConnStateStringUnknown(t *testing.T) {
	assert.Equal(t, "Unknown", connState(99).String())
	assert.Equal(t, "Inactive", connStateInactive.String())
	assert.Equal(t, "Connecting.Tcp", connStateConnectingTCP.String())
	assert.Equal(t, "Connecting.Handshake", connStateConnectingHandshake.String())
	assert.Equal(t, "Connected", connStateConnected.String())
	assert.Equal(t, "Backoff", connStateBackoff.String())
}

// TestTickBackoffExpiry checks that a Conn parked in Backoff returns to
// Inactive once retryAt has elapsed, without needing a live socket.
func TestTickBackoffExpiry(t *testing.T) {
	cfg := NewConfig()
	entry := rdmwire.ClientEntry{
		CID:            NewCID(),
		ClientProtocol: rdmwire.ClientProtocolRPT,
		RPT: &rdmwire.RPTClientEntryData{
			UID:        UID{Manu: 0x1234, ID: 1},
			ClientType: rdmwire.RPTClientTypeController,
		},
	}
	c := NewConn(cfg, DefaultSLogger(), NewCID(), entry, NewScopeConfig(), "")
	c.state = connStateBackoff
	base := time.Unix(1000, 0)
	c.retryAt = base.Add(5 * time.Second)

	res := c.Tick(base.Add(1 * time.Second))
	assert.Equal(t, connStateBackoff, c.State())
	assert.False(t, res.Connected)

	res = c.Tick(base.Add(6 * time.Second))
	assert.Equal(t, connStateInactive, c.State())
	assert.False(t, res.Connected)
}
