// SPDX-License-Identifier: GPL-3.0-or-later

package rdmnet

import (
	"context"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/rdmnet-go/rdmnet/mcast"
	"github.com/rdmnet-go/rdmnet/rdmwire"
)

// llrpScope is the sentinel [ScopeHandle] passed to [RPTCommandHandler]
// for a command that arrived over LLRP rather than a scope's RPT
// connection; LLRP has no scope of its own (spec.md §4.G).
const llrpScope ScopeHandle = -1

var (
	llrpRequestGroupV4 = netip.MustParseAddr(rdmwire.LLRPMulticastIPv4Request)
	llrpReplyGroupV4   = netip.MustParseAddr(rdmwire.LLRPMulticastIPv4Response)
	llrpRequestGroupV6 = netip.MustParseAddr(rdmwire.LLRPMulticastIPv6Request)
	llrpReplyGroupV6   = netip.MustParseAddr(rdmwire.LLRPMulticastIPv6Response)
)

// pendingReply is one target×interface FSM's outstanding Probe Reply
// (spec.md §3 "one pending-reply slot per interface"). Coalescing keeps
// the original timer and only refreshes destCID, txn and family
// (spec.md §4.G "do not extend").
type pendingReply struct {
	destCID CID
	txn     uint32
	family  netip.Addr // reply-group address to answer on
	timer   *time.Timer
}

// targetIfaceState is one interface's half of the LLRP target FSM: its
// own request-receive sockets and a shared reply-send socket, plus the
// one in-flight pending Probe Reply this interface may hold.
type targetIfaceState struct {
	iface mcast.Interface

	recvReq4 *mcast.RecvSocket
	recvReq6 *mcast.RecvSocket

	send        net.PacketConn
	sendRelease func() error

	mu      sync.Mutex
	pending *pendingReply
}

// Target is the LLRP probe/reply state machine, one FSM per
// (target, interface) pair (spec.md §4.G). It runs its own receive
// goroutine per open receive socket (up to one per IP family on each
// interface), since LLRP's UDP sockets are not part of the
// [Client]'s single-threaded TCP poll loop.
type Target struct {
	cfg       *Config
	logger    SLogger
	mcastIO   *mcast.IO
	cid       CID
	uid       UID
	compType  rdmwire.LLRPComponentType
	connected func() bool
	handler   RPTCommandHandler
	callbacks ClientCallbacks

	states []*targetIfaceState
}

// NewTarget constructs a [*Target]. connected reports whether the
// owning client currently has an active broker connection, consulted
// for the CLIENT_CONN_INACTIVE probe filter (spec.md §4.G, §8 property
// 8).
func NewTarget(cfg *Config, logger SLogger, mcastIO *mcast.IO, cid CID, uid UID, compType rdmwire.LLRPComponentType, connected func() bool, handler RPTCommandHandler, callbacks ClientCallbacks) *Target {
	return &Target{
		cfg: cfg, logger: logger, mcastIO: mcastIO,
		cid: cid, uid: uid, compType: compType,
		connected: connected, handler: handler, callbacks: callbacks,
	}
}

// Start opens request-receive and reply-send sockets on every interface
// and begins one read-loop goroutine per open receive socket, running until ctx is
// cancelled. An interface on which a family's receive socket cannot be
// opened (no usable address of that family) is silently skipped for
// that family only (spec.md §4.C "filters to those on which both a
// send and receive socket can be created").
func (t *Target) Start(ctx context.Context, ifaces []mcast.Interface) {
	for _, ifi := range ifaces {
		st := &targetIfaceState{iface: ifi}

		reqPort4 := netip.AddrPortFrom(llrpRequestGroupV4, rdmwire.LLRPPort)
		if rs, err := mcast.OpenRecvSocket(reqPort4, ifi, false); err == nil {
			st.recvReq4 = rs
		} else {
			t.logger.Debug("llrpRecvOpenFailed", slog.String("iface", ifi.Name), slog.String("family", "v4"), slog.String("err", err.Error()))
		}
		reqPort6 := netip.AddrPortFrom(llrpRequestGroupV6, rdmwire.LLRPPort)
		if rs, err := mcast.OpenRecvSocket(reqPort6, ifi, false); err == nil {
			st.recvReq6 = rs
		} else {
			t.logger.Debug("llrpRecvOpenFailed", slog.String("iface", ifi.Name), slog.String("family", "v6"), slog.String("err", err.Error()))
		}
		if st.recvReq4 == nil && st.recvReq6 == nil {
			continue
		}

		conn, release, err := t.mcastIO.AcquireSendSocket(ifi, 0)
		if err != nil {
			t.logger.Debug("llrpSendOpenFailed", slog.String("iface", ifi.Name), slog.String("err", err.Error()))
			if st.recvReq4 != nil {
				st.recvReq4.Close()
			}
			if st.recvReq6 != nil {
				st.recvReq6.Close()
			}
			continue
		}
		st.send, st.sendRelease = conn, release

		t.states = append(t.states, st)
		if st.recvReq4 != nil {
			go t.readLoop(ctx, st, st.recvReq4, llrpReplyGroupV4)
		}
		if st.recvReq6 != nil {
			go t.readLoop(ctx, st, st.recvReq6, llrpReplyGroupV6)
		}
	}
}

// Stop releases every socket opened by Start.
func (t *Target) Stop() {
	for _, st := range t.states {
		if st.recvReq4 != nil {
			st.recvReq4.Close()
		}
		if st.recvReq6 != nil {
			st.recvReq6.Close()
		}
		if st.sendRelease != nil {
			st.sendRelease()
		}
	}
	t.states = nil
}

func (t *Target) readLoop(ctx context.Context, st *targetIfaceState, rs *mcast.RecvSocket, replyGroup netip.Addr) {
	buf := make([]byte, rdmwire.RDMNetRecvDataBufSize)
	for {
		if ctx.Err() != nil {
			return
		}
		n, _, _, err := rs.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			t.logger.Debug("llrpReadError", slog.String("iface", st.iface.Name), slog.String("err", err.Error()))
			return
		}
		t.handleDatagram(st, buf[:n], replyGroup)
	}
}

func (t *Target) handleDatagram(st *targetIfaceState, data []byte, replyGroup netip.Addr) {
	root, _, err := rdmwire.ParseRootLayer(data)
	if err != nil || root.Vector != rdmwire.VectorRootLLRP {
		return
	}
	msg, err := rdmwire.ParseLLRPMessage(root.Data)
	if err != nil {
		return
	}
	if t.callbacks != nil {
		t.callbacks.LLRPMsgReceived(t.uid, st.iface.Index, &msg)
	}
	switch {
	case msg.ProbeRequest != nil:
		t.handleProbeRequest(st, root.SenderCID, msg.Header, *msg.ProbeRequest, replyGroup)
	case msg.RDMCmd != nil:
		t.handleRDMCmd(st, root.SenderCID, msg.Header, *msg.RDMCmd, replyGroup)
	}
}

// handleProbeRequest applies the filter/range/known-UID rules and, if
// this target must reply, schedules (or coalesces into) a randomized
// reply delay (spec.md §4.G, §8 property 8).
func (t *Target) handleProbeRequest(st *targetIfaceState, fromCID CID, header rdmwire.LLRPHeader, req rdmwire.LLRPProbeRequestMsg, replyGroup netip.Addr) {
	if req.Filter&rdmwire.LLRPFilterBrokersOnly != 0 && t.compType != rdmwire.LLRPComponentTypeBroker {
		return
	}
	if req.Filter&rdmwire.LLRPFilterClientConnInactive != 0 && t.connected != nil && t.connected() {
		return
	}
	if !uidInRange(t.uid, req.LowerUID, req.UpperUID) {
		return
	}
	for _, known := range req.KnownUIDs {
		if known == t.uid {
			return
		}
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.pending != nil {
		// Coalesce: keep the original deadline, just reply to whichever
		// requester asked most recently.
		st.pending.destCID = fromCID
		st.pending.txn = header.TransactionNumber
		st.pending.family = replyGroup
		return
	}
	delay := time.Duration(t.cfg.Rand()%uint32(rdmwire.LLRPMaxBackoffMS+1)) * time.Millisecond
	pr := &pendingReply{destCID: fromCID, txn: header.TransactionNumber, family: replyGroup}
	pr.timer = time.AfterFunc(delay, func() { t.fireProbeReply(st, pr) })
	st.pending = pr
}

func (t *Target) fireProbeReply(st *targetIfaceState, pr *pendingReply) {
	st.mu.Lock()
	if st.pending == pr {
		st.pending = nil
	}
	destCID, txn, family := pr.destCID, pr.txn, pr.family
	st.mu.Unlock()

	hwAddr := t.mcastIO.LowestMAC()
	var hw [6]byte
	copy(hw[:], hwAddr)
	reply := rdmwire.LLRPProbeReplyMsg{TargetUID: t.uid, ComponentType: t.compType, HardwareAddress: hw}
	header := rdmwire.LLRPHeader{DestCID: destCID, TransactionNumber: txn}
	t.sendLLRP(st, family, rdmwire.SizeLLRPProbeReply(), func(buf []byte) (int, error) {
		return rdmwire.PackLLRPProbeReply(buf, header, reply)
	})
}

// handleRDMCmd dispatches an inbound LLRP RDM command to the same
// synchronous handler used by the RPT router (spec.md §4.F, §4.G), and
// replies with ACTION_NOT_SUPPORTED if the synthesized response would
// need ACK_OVERFLOW chaining, which LLRP cannot carry.
func (t *Target) handleRDMCmd(st *targetIfaceState, fromCID CID, header rdmwire.LLRPHeader, cmd rdmwire.RDMPacket, replyGroup netip.Addr) {
	if !cmd.DestUID.Matches(t.uid) {
		return
	}
	if t.handler == nil {
		return
	}
	resp := t.handler.HandleRPTCommand(llrpScope, cmd, true)

	rdmResp, ok := t.buildRDMResponse(cmd, resp)
	if !ok {
		return
	}
	if rdmwire.SizeRDMPacket(rdmResp) > rdmwire.RDMMaxBytes {
		rdmResp = t.nackResponse(cmd, rdmwire.NRActionNotSupported)
	}
	replyHeader := rdmwire.LLRPHeader{DestCID: fromCID, TransactionNumber: header.TransactionNumber}
	t.sendLLRP(st, replyGroup, rdmwire.SizeLLRPRDMCmd(rdmResp), func(buf []byte) (int, error) {
		return rdmwire.PackLLRPRDMCmd(buf, replyHeader, rdmResp)
	})
}

func (t *Target) buildRDMResponse(cmd rdmwire.RDMPacket, resp AppResponse) (rdmwire.RDMPacket, bool) {
	switch resp.Action {
	case ResponseSendAck:
		return rdmwire.RDMPacket{
			DestUID: cmd.SrcUID, SrcUID: t.uid, TransactionNumber: cmd.TransactionNumber,
			ResponseType: rdmwire.RDMResponseTypeAck, CommandClass: ccResponseFor(cmd.CommandClass),
			ParamID: cmd.ParamID, ParamData: resp.AckData,
		}, true
	case ResponseSendNack:
		return t.nackResponse(cmd, resp.NackReason), true
	default: // ResponseNoSend, ResponseRetryLater: LLRP has no retry path
		return rdmwire.RDMPacket{}, false
	}
}

func (t *Target) nackResponse(cmd rdmwire.RDMPacket, reason uint16) rdmwire.RDMPacket {
	return rdmwire.RDMPacket{
		DestUID: cmd.SrcUID, SrcUID: t.uid, TransactionNumber: cmd.TransactionNumber,
		ResponseType: rdmwire.RDMResponseTypeNackReason, CommandClass: ccResponseFor(cmd.CommandClass),
		ParamID: cmd.ParamID, ParamData: rdmwire.PackNackParamData(reason),
	}
}

func (t *Target) sendLLRP(st *targetIfaceState, family netip.Addr, pduSize int, pack func([]byte) (int, error)) {
	if st.send == nil {
		return
	}
	out, err := wireWrapUDPMessage(t.cid, rdmwire.VectorRootLLRP, pack, pduSize)
	if err != nil {
		t.logger.Debug("llrpPackError", slog.String("err", err.Error()))
		return
	}
	addr := net.UDPAddrFromAddrPort(netip.AddrPortFrom(family, rdmwire.LLRPPort))
	if _, err := st.send.WriteTo(out, addr); err != nil {
		t.logger.Debug("llrpSendError", slog.String("iface", st.iface.Name), slog.String("err", err.Error()))
	}
}

// wireWrapUDPMessage packs a bare root-layer PDU with no TCP preamble,
// matching LLRP's datagram framing (spec.md §4.A: the preamble only
// precedes root-layer PDUs sent over TCP).
func wireWrapUDPMessage(senderCID CID, vector uint32, pack func([]byte) (int, error), size int) ([]byte, error) {
	rootSize := rdmwire.SizeRootLayer(size)
	out := make([]byte, rootSize)
	body := make([]byte, size)
	if _, err := pack(body); err != nil {
		return nil, err
	}
	if _, err := rdmwire.PackRootLayer(out, vector, senderCID, body); err != nil {
		return nil, err
	}
	return out, nil
}

// uidInRange reports whether u falls within [lo, hi] under the RDM
// UID's natural (manufacturer, device) ordering.
func uidInRange(u, lo, hi UID) bool {
	return !uidLess(u, lo) && !uidLess(hi, u)
}

func uidLess(a, b UID) bool {
	if a.Manu != b.Manu {
		return a.Manu < b.Manu
	}
	return a.ID < b.ID
}
