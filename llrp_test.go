// SPDX-License-Identifier: GPL-3.0-or-later

package rdmnet

import (
	"net"
	"testing"
	"time"

	"github.com/rdmnet-go/rdmnet/mcast"
	"github.com/rdmnet-go/rdmnet/rdmwire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePacketConn is a [net.PacketConn] that records every WriteTo and
// signals a channel, so probe-reply/RDM-response tests can wait for the
// LLRP target's background timer to fire without a real socket.
type fakePacketConn struct {
	written chan []byte
}

func newFakePacketConn() *fakePacketConn { return &fakePacketConn{written: make(chan []byte, 4)} }

func (f *fakePacketConn) ReadFrom(p []byte) (int, net.Addr, error) { return 0, nil, nil }
func (f *fakePacketConn) WriteTo(p []byte, addr net.Addr) (int, error) {
	cp := append([]byte(nil), p...)
	f.written <- cp
	return len(p), nil
}
func (f *fakePacketConn) Close() error                       { return nil }
func (f *fakePacketConn) LocalAddr() net.Addr                { return nil }
func (f *fakePacketConn) SetDeadline(t time.Time) error      { return nil }
func (f *fakePacketConn) SetReadDeadline(t time.Time) error  { return nil }
func (f *fakePacketConn) SetWriteDeadline(t time.Time) error { return nil }

func (f *fakePacketConn) waitForWrite(t *testing.T) []byte {
	t.Helper()
	select {
	case b := <-f.written:
		return b
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for LLRP send")
		return nil
	}
}

// zeroRand makes the probe-reply backoff fire with no delay.
func zeroRand() uint32 { return 0 }

func newTestTarget(t *testing.T, compType rdmwire.LLRPComponentType, connected func() bool, handler RPTCommandHandler) (*Target, *targetIfaceState) {
	t.Helper()
	ifaces := []mcast.Interface{
		{Index: 1, Name: "eth0", HardwareAddr: net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}},
		{Index: 2, Name: "eth1", HardwareAddr: net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x33}},
	}
	io := mcast.NewIO(ifaces)
	cfg := NewConfig()
	cfg.Rand = zeroRand
	uid := UID{Manu: 0x6574, ID: 0x00000001}
	target := NewTarget(cfg, DefaultSLogger(), io, NewCID(), uid, compType, connected, handler, nil)
	st := &targetIfaceState{iface: ifaces[0], send: newFakePacketConn()}
	return target, st
}

// TestProbeReplyScenarioS4 grounds spec.md's scenario S4: a Probe
// Request whose UID range brackets our UID, an empty Known-UID list,
// filter 0, and transaction 7 yields one Probe Reply within the
// backoff window carrying our UID, our component type, the process
// lowest MAC, and the echoed transaction number.
func TestProbeReplyScenarioS4(t *testing.T) {
	target, st := newTestTarget(t, rdmwire.LLRPComponentTypeRPTDevice, func() bool { return false }, nil)

	req := rdmwire.LLRPProbeRequestMsg{
		LowerUID: UID{Manu: 0x0000, ID: 0},
		UpperUID: UID{Manu: 0xFFFF, ID: 0xFFFFFFFF},
		Filter:   0,
	}
	header := rdmwire.LLRPHeader{DestCID: NewCID(), TransactionNumber: 7}
	target.handleProbeRequest(st, header.DestCID, header, req, llrpReplyGroupV4)

	out := st.send.(*fakePacketConn).waitForWrite(t)
	root, _, err := rdmwire.ParseRootLayer(out)
	require.NoError(t, err)
	assert.Equal(t, rdmwire.VectorRootLLRP, root.Vector)

	msg, err := rdmwire.ParseLLRPMessage(root.Data)
	require.NoError(t, err)
	require.NotNil(t, msg.ProbeReply)
	assert.Equal(t, uint32(7), msg.Header.TransactionNumber)
	assert.Equal(t, UID{Manu: 0x6574, ID: 0x00000001}, msg.ProbeReply.TargetUID)
	assert.Equal(t, rdmwire.LLRPComponentTypeRPTDevice, msg.ProbeReply.ComponentType)
	assert.Equal(t, [6]byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x33}, msg.ProbeReply.HardwareAddress)
}

// TestProbeReplyHardwareAddressStableAcrossReplies grounds spec.md §8
// testable property 7: two replies from the same process carry
// identical hardware_address bytes, equal to the lowest non-zero MAC.
func TestProbeReplyHardwareAddressStableAcrossReplies(t *testing.T) {
	target, st := newTestTarget(t, rdmwire.LLRPComponentTypeRPTDevice, func() bool { return false }, nil)
	fc := st.send.(*fakePacketConn)

	req := rdmwire.LLRPProbeRequestMsg{LowerUID: UID{}, UpperUID: UID{Manu: 0xFFFF, ID: 0xFFFFFFFF}}
	for i := uint32(1); i <= 2; i++ {
		header := rdmwire.LLRPHeader{DestCID: NewCID(), TransactionNumber: i}
		target.handleProbeRequest(st, header.DestCID, header, req, llrpReplyGroupV4)
		out := fc.waitForWrite(t)
		root, _, err := rdmwire.ParseRootLayer(out)
		require.NoError(t, err)
		msg, err := rdmwire.ParseLLRPMessage(root.Data)
		require.NoError(t, err)
		assert.Equal(t, [6]byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x33}, msg.ProbeReply.HardwareAddress)
	}
}

// TestProbeRequestBrokersOnlyFilterSkipsRPTDevice and
// TestProbeRequestClientConnInactiveFilterSkipsConnected ground spec.md
// §8 testable property 8.
func TestProbeRequestBrokersOnlyFilterSkipsRPTDevice(t *testing.T) {
	target, st := newTestTarget(t, rdmwire.LLRPComponentTypeRPTDevice, func() bool { return false }, nil)
	req := rdmwire.LLRPProbeRequestMsg{
		LowerUID: UID{}, UpperUID: UID{Manu: 0xFFFF, ID: 0xFFFFFFFF},
		Filter: rdmwire.LLRPFilterBrokersOnly,
	}
	target.handleProbeRequest(st, NewCID(), rdmwire.LLRPHeader{}, req, llrpReplyGroupV4)
	assert.Nil(t, st.pending, "an RPT device must not reply to a BROKERS_ONLY probe")
}

func TestProbeRequestClientConnInactiveFilterSkipsConnected(t *testing.T) {
	target, st := newTestTarget(t, rdmwire.LLRPComponentTypeRPTController, func() bool { return true }, nil)
	req := rdmwire.LLRPProbeRequestMsg{
		LowerUID: UID{}, UpperUID: UID{Manu: 0xFFFF, ID: 0xFFFFFFFF},
		Filter: rdmwire.LLRPFilterClientConnInactive,
	}
	target.handleProbeRequest(st, NewCID(), rdmwire.LLRPHeader{}, req, llrpReplyGroupV4)
	assert.Nil(t, st.pending, "a connected controller must not reply to a CLIENT_CONN_INACTIVE probe")
}

func TestProbeRequestOutOfRangeUIDIgnored(t *testing.T) {
	target, st := newTestTarget(t, rdmwire.LLRPComponentTypeRPTDevice, func() bool { return false }, nil)
	req := rdmwire.LLRPProbeRequestMsg{
		LowerUID: UID{Manu: 0x0001, ID: 0}, UpperUID: UID{Manu: 0x0001, ID: 0xFFFFFFFF},
	}
	target.handleProbeRequest(st, NewCID(), rdmwire.LLRPHeader{}, req, llrpReplyGroupV4)
	assert.Nil(t, st.pending)
}

func TestProbeRequestKnownUIDSkipsReply(t *testing.T) {
	target, st := newTestTarget(t, rdmwire.LLRPComponentTypeRPTDevice, func() bool { return false }, nil)
	req := rdmwire.LLRPProbeRequestMsg{
		LowerUID: UID{}, UpperUID: UID{Manu: 0xFFFF, ID: 0xFFFFFFFF},
		KnownUIDs: []UID{{Manu: 0x6574, ID: 0x00000001}},
	}
	target.handleProbeRequest(st, NewCID(), rdmwire.LLRPHeader{}, req, llrpReplyGroupV4)
	assert.Nil(t, st.pending)
}

// TestProbeRequestCoalescesDuringPendingDelay grounds spec.md §4.G's
// "If another Probe Request for the same target arrives during the
// delay, coalesce (do not extend)": a second request before the timer
// fires updates the pending requester/transaction in place rather than
// resetting the deadline.
func TestProbeRequestCoalescesDuringPendingDelay(t *testing.T) {
	target, st := newTestTarget(t, rdmwire.LLRPComponentTypeRPTDevice, func() bool { return false }, nil)
	target.cfg.Rand = func() uint32 { return rdmwire.LLRPMaxBackoffMS } // long delay, won't fire during the test

	req := rdmwire.LLRPProbeRequestMsg{LowerUID: UID{}, UpperUID: UID{Manu: 0xFFFF, ID: 0xFFFFFFFF}}
	first := rdmwire.LLRPHeader{DestCID: NewCID(), TransactionNumber: 1}
	target.handleProbeRequest(st, first.DestCID, first, req, llrpReplyGroupV4)
	require.NotNil(t, st.pending)
	firstPending := st.pending
	firstPending.timer.Stop()

	second := rdmwire.LLRPHeader{DestCID: NewCID(), TransactionNumber: 2}
	target.handleProbeRequest(st, second.DestCID, second, req, llrpReplyGroupV4)

	assert.Same(t, firstPending, st.pending, "coalescing must not replace the pending reply or its timer")
	assert.Equal(t, uint32(2), st.pending.txn)
	assert.Equal(t, second.DestCID, st.pending.destCID)
}

// stubRPTHandler returns a fixed [AppResponse] for every command.
type stubRPTHandler struct{ resp AppResponse }

func (h stubRPTHandler) HandleRPTCommand(ScopeHandle, rdmwire.RDMPacket, bool) AppResponse {
	return h.resp
}

func TestHandleRDMCmdOverflowFallsBackToActionNotSupported(t *testing.T) {
	oversized := make([]byte, rdmwire.RDMMaxBytes) // guaranteed to overflow one RDM packet
	handler := stubRPTHandler{resp: AppResponse{Action: ResponseSendAck, AckData: oversized}}
	target, st := newTestTarget(t, rdmwire.LLRPComponentTypeRPTDevice, func() bool { return false }, handler)

	cmd := rdmwire.RDMPacket{
		DestUID: UID{Manu: 0x6574, ID: 0x00000001}, SrcUID: UID{Manu: 0x1234, ID: 1},
		CommandClass: rdmwire.RDMCCGetCommand, ParamID: rdmwire.PIDSupportedParams,
	}
	header := rdmwire.LLRPHeader{DestCID: NewCID(), TransactionNumber: 3}
	target.handleRDMCmd(st, header.DestCID, header, cmd, llrpReplyGroupV4)

	out := st.send.(*fakePacketConn).waitForWrite(t)
	root, _, err := rdmwire.ParseRootLayer(out)
	require.NoError(t, err)
	msg, err := rdmwire.ParseLLRPMessage(root.Data)
	require.NoError(t, err)
	require.NotNil(t, msg.RDMCmd)
	assert.Equal(t, rdmwire.RDMResponseTypeNackReason, msg.RDMCmd.ResponseType)
	assert.Equal(t, rdmwire.PackNackParamData(rdmwire.NRActionNotSupported), msg.RDMCmd.ParamData)
}

func TestHandleRDMCmdIgnoresUnaddressedUID(t *testing.T) {
	handler := stubRPTHandler{resp: AppResponse{Action: ResponseSendAck}}
	target, st := newTestTarget(t, rdmwire.LLRPComponentTypeRPTDevice, func() bool { return false }, handler)

	cmd := rdmwire.RDMPacket{
		DestUID: UID{Manu: 0x1111, ID: 2}, SrcUID: UID{Manu: 0x1234, ID: 1},
		CommandClass: rdmwire.RDMCCGetCommand, ParamID: rdmwire.PIDSupportedParams,
	}
	target.handleRDMCmd(st, NewCID(), rdmwire.LLRPHeader{}, cmd, llrpReplyGroupV4)

	select {
	case <-st.send.(*fakePacketConn).written:
		t.Fatal("a command not addressed to this target must not be answered")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUIDRangeComparison(t *testing.T) {
	lo := UID{Manu: 0x1000, ID: 10}
	hi := UID{Manu: 0x1000, ID: 20}
	assert.True(t, uidInRange(UID{Manu: 0x1000, ID: 15}, lo, hi))
	assert.False(t, uidInRange(UID{Manu: 0x1000, ID: 5}, lo, hi))
	assert.False(t, uidInRange(UID{Manu: 0x1000, ID: 25}, lo, hi))
	assert.True(t, uidInRange(lo, lo, hi))
	assert.True(t, uidInRange(hi, lo, hi))
}
