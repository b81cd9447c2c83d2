// SPDX-License-Identifier: GPL-3.0-or-later

package rdmnet

import (
	"context"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"github.com/rdmnet-go/rdmnet/rdmwire"
	"github.com/rdmnet-go/rdmnet/recvbuf"
)

// ClientCallbacks receives every asynchronous event a [Client] produces
// (spec.md §4.E, §5 ordering guarantees). Implementations must not block
// or call back into the [Client] that invoked them.
type ClientCallbacks interface {
	Connected(h ScopeHandle, reply rdmwire.BrokerConnectReplyMsg)
	ConnectFailed(h ScopeHandle, ev ConnectFailEvent)
	Disconnected(h ScopeHandle, ev DisconnectEvent)
	BrokerMsgReceived(h ScopeHandle, msg *rdmwire.BrokerMessage)
	RPTMsgReceived(h ScopeHandle, msg *rdmwire.RPTMessage)
	LLRPMsgReceived(targetUID UID, ifaceIndex int, msg *rdmwire.LLRPMessage)
	Destroyed(h ScopeHandle)
}

// ClientConfig configures a [Client] (spec.md §3 "LLRP target", §4.E).
type ClientConfig struct {
	CID        CID
	ClientType uint16 // rdmwire.RPTClientTypeDevice or RPTClientTypeController
	StaticUID  *UID   // nil requests a dynamic UID from the broker
	BindingCID CID    // optional RPT binding CID; zero value means none
	Domain     string
	Discovery  Discovery
	Handler    RPTCommandHandler
	Callbacks  ClientCallbacks
}

// scopeEntry is one row of the client's scope map, keyed by its
// [ScopeHandle] (spec.md §9 "arena+index").
type scopeEntry struct {
	handle     ScopeHandle
	cfg        ScopeConfig
	state      ScopeState
	conn       *Conn
	uid        UID
	seqnum     uint32
	discovery  DiscoveryHandle
	hasDisc    bool
	addrs      []netip.AddrPort
	addrIdx    int
	destroying bool

	brokerV4            netip.Addr
	brokerV6            netip.Addr
	connectedPort       uint16
	unhealthyTCPCounter uint16
}

// Client is a client (RPT controller, RPT device, or EPT peer) holding a
// set of scopes (spec.md §3, §4.E). Exported methods hold mu only while
// they read or update the scope table, and release it before network
// I/O, callbacks or calls into a [Conn]; conn.sendMu (a leaf lock) is
// never held while mu is held (spec.md §5).
type Client struct {
	mu      sync.Mutex
	ctx     *Context
	cfg     ClientConfig
	handles *handleTable
	scopes  map[ScopeHandle]*scopeEntry
	domain  string
	router  *Router

	llrp       *Target
	llrpCancel context.CancelFunc
}

// newClient constructs a [*Client] owned by ctx. Use [*Context.NewClient]
// from outside the package.
func newClient(ctx *Context, cfg ClientConfig) *Client {
	c := &Client{
		ctx:     ctx,
		cfg:     cfg,
		handles: newHandleTable(),
		scopes:  make(map[ScopeHandle]*scopeEntry),
		domain:  cfg.Domain,
	}
	c.router = NewRouter(c, cfg.Handler, ctx.Logger())
	return c
}

var _ routerHost = (*Client)(nil)

// clientEntry builds the [rdmwire.ClientEntry] advertised in the Broker
// Client Connect for one scope's current UID.
func (c *Client) clientEntry(uid UID) rdmwire.ClientEntry {
	return rdmwire.ClientEntry{
		CID:            c.cfg.CID,
		ClientProtocol: rdmwire.ClientProtocolRPT,
		RPT: &rdmwire.RPTClientEntryData{
			UID:        uid,
			ClientType: c.cfg.ClientType,
			BindingCID: c.cfg.BindingCID,
		},
	}
}

func (c *Client) initialUID() UID {
	if c.cfg.StaticUID != nil {
		return *c.cfg.StaticUID
	}
	return DynamicUIDRequestUID(0)
}

// llrpComponentType maps the client's RPT client type to the component
// type advertised in LLRP Probe Replies (spec.md §3).
func (c *Client) llrpComponentType() rdmwire.LLRPComponentType {
	if c.cfg.ClientType == rdmwire.RPTClientTypeController {
		return rdmwire.LLRPComponentTypeRPTController
	}
	return rdmwire.LLRPComponentTypeRPTDevice
}

// anyScopeConnected implements the "connected-to-broker" flag consulted
// by the LLRP CLIENT_CONN_INACTIVE probe filter (spec.md §3, §8
// property 8).
func (c *Client) anyScopeConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.scopes {
		if e.state == ScopeStateConnected {
			return true
		}
	}
	return false
}

// StartLLRP begins this client's LLRP target: one FSM per (target,
// interface) listening for Probe Requests and LLRP RDM commands on
// every multicast-capable interface known to the owning [*Context],
// until runCtx is cancelled (spec.md §4.G). Safe to call at most once
// per Client; a no-op ClientConfig.Callbacks means LLRP messages are
// still acted on but not reported to the application.
func (c *Client) StartLLRP(runCtx context.Context) {
	c.mu.Lock()
	if c.llrp != nil {
		c.mu.Unlock()
		return
	}
	uid := c.initialUID()
	llrp := NewTarget(c.ctx.Config(), c.ctx.Logger(), c.ctx.Mcast(), c.cfg.CID, uid, c.llrpComponentType(), c.anyScopeConnected, c.cfg.Handler, c.cfg.Callbacks)
	ctx, cancel := context.WithCancel(runCtx)
	c.llrp, c.llrpCancel = llrp, cancel
	c.mu.Unlock()
	llrp.Start(ctx, c.ctx.Interfaces())
}

// AddScope allocates a handle for a new scope and begins connecting
// (static) or discovering (dynamic) it (spec.md §4.E).
func (c *Client) AddScope(cfg ScopeConfig) (ScopeHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.scopes {
		if !e.destroying && e.cfg.ID == cfg.ID {
			return 0, fmt.Errorf("rdmnet: scope %q already added", cfg.ID)
		}
	}
	h := ScopeHandle(c.handles.alloc())
	entry := &scopeEntry{handle: h, cfg: cfg, uid: c.initialUID()}
	c.scopes[h] = entry
	if cfg.IsStatic() {
		entry.addrs = []netip.AddrPort{cfg.StaticBrokerAddr}
		c.startConnecting(entry)
	} else {
		entry.state = ScopeStateDiscovery
		if c.cfg.Discovery != nil {
			dh, err := c.cfg.Discovery.StartMonitoring(cfg.ID, c.domain)
			if err == nil {
				entry.discovery, entry.hasDisc = dh, true
			}
		}
	}
	return h, nil
}

func (c *Client) startConnecting(entry *scopeEntry) {
	entry.state = ScopeStateConnecting
	entry.conn = NewConn(c.ctx.Config(), c.ctx.Logger(), c.cfg.CID, c.clientEntry(entry.uid), entry.cfg, c.domain)
	if len(entry.addrs) > 0 {
		entry.conn.Start(entry.addrs[entry.addrIdx])
	}
}

// RemoveScope marks h for destruction, tears down its connection and
// discovery, and frees its handle (spec.md §4.E, §5 cancellation).
func (c *Client) RemoveScope(h ScopeHandle, reason uint16) error {
	c.mu.Lock()
	entry, ok := c.scopes[h]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("rdmnet: unknown scope handle")
	}
	entry.destroying = true
	conn := entry.conn
	c.mu.Unlock()

	if conn != nil && conn.State() == connStateConnected {
		conn.Disconnect(c.cfg.CID, reason)
	}
	if entry.hasDisc && c.cfg.Discovery != nil {
		c.cfg.Discovery.StopMonitoring(entry.discovery)
	}

	c.mu.Lock()
	delete(c.scopes, h)
	c.handles.free(int(h))
	c.mu.Unlock()

	if c.cfg.Callbacks != nil {
		c.cfg.Callbacks.Destroyed(h)
	}
	return nil
}

// ChangeScope closes the current connection/discovery for h and
// restarts it against newCfg, unless newCfg is identical to the current
// configuration (spec.md §4.E).
func (c *Client) ChangeScope(h ScopeHandle, newCfg ScopeConfig, reason uint16) error {
	c.mu.Lock()
	entry, ok := c.scopes[h]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("rdmnet: unknown scope handle")
	}
	if entry.cfg == newCfg {
		c.mu.Unlock()
		return nil
	}
	conn := entry.conn
	hadDisc, discH := entry.hasDisc, entry.discovery
	c.mu.Unlock()

	if conn != nil && conn.State() == connStateConnected {
		conn.Disconnect(c.cfg.CID, reason)
	}
	if hadDisc && c.cfg.Discovery != nil {
		c.cfg.Discovery.StopMonitoring(discH)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	entry.cfg = newCfg
	entry.conn = nil
	entry.addrs = nil
	entry.addrIdx = 0
	entry.hasDisc = false
	entry.brokerV4, entry.brokerV6 = netip.Addr{}, netip.Addr{}
	entry.connectedPort = 0
	if newCfg.IsStatic() {
		entry.addrs = []netip.AddrPort{newCfg.StaticBrokerAddr}
		c.startConnecting(entry)
	} else {
		entry.state = ScopeStateDiscovery
		if c.cfg.Discovery != nil {
			dh, err := c.cfg.Discovery.StartMonitoring(newCfg.ID, c.domain)
			if err == nil {
				entry.discovery, entry.hasDisc = dh, true
			}
		}
	}
	return nil
}

// ChangeSearchDomain updates the domain used for every dynamic scope's
// discovery, restarting discovery for each (spec.md §4.E). Static scopes
// are unaffected.
func (c *Client) ChangeSearchDomain(domain string, reason uint16) error {
	c.mu.Lock()
	c.domain = domain
	var dynamic []*scopeEntry
	for _, e := range c.scopes {
		if !e.cfg.IsStatic() && !e.destroying {
			dynamic = append(dynamic, e)
		}
	}
	c.mu.Unlock()

	for _, e := range dynamic {
		if e.hasDisc && c.cfg.Discovery != nil {
			c.cfg.Discovery.StopMonitoring(e.discovery)
		}
		c.mu.Lock()
		e.hasDisc = false
		if c.cfg.Discovery != nil {
			dh, err := c.cfg.Discovery.StartMonitoring(e.cfg.ID, domain)
			if err == nil {
				e.discovery, e.hasDisc = dh, true
			}
		}
		c.mu.Unlock()
	}
	return nil
}

// SendRDMCommand assigns the next per-scope sequence number, packs an
// RPT Request, and sends it (spec.md §4.E, §8 property 4).
func (c *Client) SendRDMCommand(h ScopeHandle, dest UID, cc uint8, pid uint16, data []byte) (uint32, error) {
	c.mu.Lock()
	entry, ok := c.scopes[h]
	if !ok {
		c.mu.Unlock()
		return 0, fmt.Errorf("rdmnet: unknown scope handle")
	}
	conn := entry.conn
	myUID := entry.uid
	seq := entry.seqnum
	entry.seqnum++
	c.mu.Unlock()

	if conn == nil {
		return 0, fmt.Errorf("rdmnet: scope has no active connection")
	}
	cmd := rdmwire.RDMPacket{
		DestUID: dest, SrcUID: myUID, CommandClass: cc, ParamID: pid, ParamData: data,
	}
	header := rdmwire.RPTHeader{SourceUID: myUID, DestUID: dest, Seqnum: seq}
	out, err := wireWrapMessage(c.cfg.CID, rdmwire.VectorRootRPT, func(buf []byte) (int, error) {
		return rdmwire.PackRPTRequest(buf, header, cmd)
	}, rdmwire.SizeRPTRequest(cmd))
	if err != nil {
		return 0, err
	}
	if err := conn.Send(out); err != nil {
		return 0, err
	}
	return seq, nil
}

// overflowChunks splits paramData into [rdmwire.MaxRDMParamDataOverflow]
// sized pieces for an ACK_OVERFLOW chain (spec.md §4.A, §4.E).
func overflowChunks(paramData []byte) [][]byte {
	if len(paramData) <= rdmwire.MaxRDMParamDataOverflow {
		return [][]byte{paramData}
	}
	var chunks [][]byte
	for len(paramData) > 0 {
		n := rdmwire.MaxRDMParamDataOverflow
		if n > len(paramData) {
			n = len(paramData)
		}
		chunks = append(chunks, paramData[:n])
		paramData = paramData[n:]
	}
	return chunks
}

// SendRDMAck packs an ACK/ACK_OVERFLOW chain responding to received,
// rewriting the destination to the RDM broadcast UID for SET responses
// (spec.md §4.E, §8 property 3).
func (c *Client) SendRDMAck(h ScopeHandle, received rdmwire.RDMPacket, data []byte) error {
	return c.sendRDMResponse(h, received, data, false)
}

// SendRDMNack packs a one-PDU NACK_REASON notification (spec.md §4.E).
func (c *Client) SendRDMNack(h ScopeHandle, received rdmwire.RDMPacket, reason uint16) error {
	c.mu.Lock()
	entry, ok := c.scopes[h]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("rdmnet: unknown scope handle")
	}
	conn, myUID := entry.conn, entry.uid
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("rdmnet: scope has no active connection")
	}
	resp := rdmwire.RDMPacket{
		DestUID: received.SrcUID, SrcUID: myUID, TransactionNumber: received.TransactionNumber,
		ResponseType: rdmwire.RDMResponseTypeNackReason, CommandClass: ccResponseFor(received.CommandClass),
		ParamID: received.ParamID, ParamData: rdmwire.PackNackParamData(reason),
	}
	header := rdmwire.RPTHeader{SourceUID: myUID, DestUID: received.SrcUID}
	return c.sendRPTNotification(conn, header, []rdmwire.RDMPacket{resp})
}

// SendRDMUpdate sends an unsolicited notification with the destination
// rewritten to the RDM broadcast UID (spec.md §4.E, §8 property 3).
func (c *Client) SendRDMUpdate(h ScopeHandle, sub uint16, pid uint16, data []byte) error {
	c.mu.Lock()
	entry, ok := c.scopes[h]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("rdmnet: unknown scope handle")
	}
	conn, myUID := entry.conn, entry.uid
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("rdmnet: scope has no active connection")
	}
	var cmds []rdmwire.RDMPacket
	chunks := overflowChunks(data)
	for i, chunk := range chunks {
		rt := uint8(rdmwire.RDMResponseTypeAckOverflow)
		if i == len(chunks)-1 {
			rt = rdmwire.RDMResponseTypeAck
		}
		cmds = append(cmds, rdmwire.RDMPacket{
			DestUID: RPTAllDevicesUID, SrcUID: myUID, SubDevice: sub,
			ResponseType: rt, CommandClass: rdmwire.RDMCCGetCommandResponse,
			ParamID: pid, ParamData: chunk,
		})
	}
	header := rdmwire.RPTHeader{SourceUID: myUID, DestUID: RPTAllDevicesUID}
	return c.sendRPTNotification(conn, header, cmds)
}

// SendStatus packs an RPT Status PDU (spec.md §4.E).
func (c *Client) SendStatus(h ScopeHandle, received rdmwire.RDMPacket, code uint16, str string) error {
	c.mu.Lock()
	entry, ok := c.scopes[h]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("rdmnet: unknown scope handle")
	}
	conn, myUID := entry.conn, entry.uid
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("rdmnet: scope has no active connection")
	}
	header := rdmwire.RPTHeader{SourceUID: myUID, DestUID: received.SrcUID}
	status := rdmwire.RPTStatusMsg{StatusCode: code, StatusStr: str}
	out, err := wireWrapMessage(c.cfg.CID, rdmwire.VectorRootRPT, func(buf []byte) (int, error) {
		return rdmwire.PackRPTStatus(buf, header, status)
	}, rdmwire.SizeRPTStatus(status))
	if err != nil {
		return err
	}
	return conn.Send(out)
}

func (c *Client) sendRDMResponse(h ScopeHandle, received rdmwire.RDMPacket, data []byte, broadcastAlways bool) error {
	c.mu.Lock()
	entry, ok := c.scopes[h]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("rdmnet: unknown scope handle")
	}
	conn, myUID := entry.conn, entry.uid
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("rdmnet: scope has no active connection")
	}
	dest := received.SrcUID
	if broadcastAlways || received.CommandClass == rdmwire.RDMCCSetCommand {
		dest = RPTAllDevicesUID
	}
	var cmds []rdmwire.RDMPacket
	chunks := overflowChunks(data)
	for i, chunk := range chunks {
		rt := uint8(rdmwire.RDMResponseTypeAckOverflow)
		if i == len(chunks)-1 {
			rt = rdmwire.RDMResponseTypeAck
		}
		cmds = append(cmds, rdmwire.RDMPacket{
			DestUID: dest, SrcUID: myUID, TransactionNumber: received.TransactionNumber,
			ResponseType: rt, CommandClass: ccResponseFor(received.CommandClass),
			ParamID: received.ParamID, ParamData: chunk,
		})
	}
	header := rdmwire.RPTHeader{SourceUID: myUID, DestUID: dest}
	return c.sendRPTNotification(conn, header, cmds)
}

func (c *Client) sendRPTNotification(conn *Conn, header rdmwire.RPTHeader, cmds []rdmwire.RDMPacket) error {
	out, err := wireWrapMessage(c.cfg.CID, rdmwire.VectorRootRPT, func(buf []byte) (int, error) {
		return rdmwire.PackRPTNotification(buf, header, cmds)
	}, rdmwire.SizeRPTNotification(cmds))
	if err != nil {
		return err
	}
	return conn.Send(out)
}

// RequestClientList asks the broker for the connected-client list.
func (c *Client) RequestClientList(h ScopeHandle) error {
	conn, ok := c.connFor(h)
	if !ok {
		return fmt.Errorf("rdmnet: unknown scope handle or no active connection")
	}
	out, err := wireWrapMessage(c.cfg.CID, rdmwire.VectorRootBroker, rdmwire.PackBrokerFetchClientList, rdmwire.SizeBrokerFetchClientList())
	if err != nil {
		return err
	}
	return conn.Send(out)
}

// RequestDynamicUIDs requests dynamic UID assignment for the given
// manufacturer/responder-ID pairs.
func (c *Client) RequestDynamicUIDs(h ScopeHandle, reqs []rdmwire.BrokerDynamicUIDRequest) error {
	conn, ok := c.connFor(h)
	if !ok {
		return fmt.Errorf("rdmnet: unknown scope handle or no active connection")
	}
	out, err := wireWrapMessage(c.cfg.CID, rdmwire.VectorRootBroker, func(buf []byte) (int, error) {
		return rdmwire.PackBrokerDynamicUIDRequestList(buf, reqs)
	}, rdmwire.SizeBrokerDynamicUIDRequestList(reqs))
	if err != nil {
		return err
	}
	return conn.Send(out)
}

// RequestResponderIDs requests the RID mappings for the given dynamic
// UIDs.
func (c *Client) RequestResponderIDs(h ScopeHandle, uids []UID) error {
	conn, ok := c.connFor(h)
	if !ok {
		return fmt.Errorf("rdmnet: unknown scope handle or no active connection")
	}
	out, err := wireWrapMessage(c.cfg.CID, rdmwire.VectorRootBroker, func(buf []byte) (int, error) {
		return rdmwire.PackBrokerFetchUIDRequest(buf, uids)
	}, rdmwire.SizeBrokerFetchUIDRequest(uids))
	if err != nil {
		return err
	}
	return conn.Send(out)
}

func (c *Client) connFor(h ScopeHandle) (*Conn, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.scopes[h]
	if !ok || entry.conn == nil {
		return nil, false
	}
	return entry.conn, true
}

// Tick advances every scope's connection engine and dispatches whatever
// it reports (spec.md §5 "optional tick thread").
func (c *Client) Tick(now time.Time) {
	c.mu.Lock()
	entries := make([]*scopeEntry, 0, len(c.scopes))
	for _, e := range c.scopes {
		if !e.destroying && e.conn != nil {
			entries = append(entries, e)
		}
	}
	c.mu.Unlock()

	for _, e := range entries {
		res := e.conn.Tick(now)
		c.handlePollResult(e, res)
		if res.SendHeartbeat {
			e.conn.SendHeartbeat(c.cfg.CID)
		}
	}
}

// OnReadable feeds bytes read from scope h's connection into its
// reassembly buffer and dispatches resulting messages (spec.md §4.D).
func (c *Client) OnReadable(h ScopeHandle, data []byte, now time.Time) error {
	c.mu.Lock()
	entry, ok := c.scopes[h]
	c.mu.Unlock()
	if !ok || entry.conn == nil {
		return fmt.Errorf("rdmnet: unknown scope handle or no active connection")
	}
	msgs, err := entry.conn.OnReadable(data, now)
	if err != nil {
		ev := entry.conn.OnSocketError(err, now)
		if c.cfg.Callbacks != nil {
			c.cfg.Callbacks.Disconnected(h, ev)
		}
		return err
	}
	for _, m := range msgs {
		c.dispatchMessage(entry, m)
	}
	return nil
}

func (c *Client) handlePollResult(e *scopeEntry, res PollResult) {
	if res.Connected {
		c.mu.Lock()
		e.state = ScopeStateConnected
		var reply rdmwire.BrokerConnectReplyMsg
		if res.Reply != nil {
			reply = *res.Reply
			if c.cfg.StaticUID == nil {
				e.uid = reply.ClientUID
			}
		}
		if res.ConnectedAddr.IsValid() {
			addr := res.ConnectedAddr.Addr()
			e.connectedPort = res.ConnectedAddr.Port()
			if addr.Is4() || addr.Is4In6() {
				e.brokerV4, e.brokerV6 = netip.AddrFrom4(addr.As4()), netip.Addr{}
			} else {
				e.brokerV4, e.brokerV6 = netip.Addr{}, addr
			}
		}
		h := e.handle
		c.mu.Unlock()
		if c.cfg.Callbacks != nil {
			c.cfg.Callbacks.Connected(h, reply)
		}
	}
	if res.ConnectFail != nil {
		c.mu.Lock()
		e.state = ScopeStateDiscovery
		if e.cfg.IsStatic() {
			e.state = ScopeStateConnecting
		}
		c.mu.Unlock()
		if c.cfg.Callbacks != nil {
			c.cfg.Callbacks.ConnectFailed(e.handle, *res.ConnectFail)
		}
		c.advanceOrRetry(e)
	}
	if res.Disconnected != nil {
		c.mu.Lock()
		if res.Disconnected.Reason == DisconnectNoHeartbeat && e.unhealthyTCPCounter < 0xFFFF {
			e.unhealthyTCPCounter++
		}
		e.state = ScopeStateDiscovery
		if e.cfg.IsStatic() {
			e.state = ScopeStateConnecting
		}
		c.mu.Unlock()
		if c.cfg.Callbacks != nil {
			c.cfg.Callbacks.Disconnected(e.handle, *res.Disconnected)
		}
	}
}

// advanceOrRetry tries the next broker address on failure, or restarts
// from address zero once the whole list is exhausted (spec.md §4.E
// "iterates the broker's listen-address array in order").
func (c *Client) advanceOrRetry(e *scopeEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e.destroying || len(e.addrs) == 0 {
		return
	}
	e.addrIdx++
	if e.addrIdx >= len(e.addrs) {
		e.addrIdx = 0
	}
	e.conn.Start(e.addrs[e.addrIdx])
}

// dispatchMessage routes one reassembled message: Broker messages update
// scope bookkeeping and fan out to callbacks; RPT messages go through
// the [*Router] (spec.md §4.F) with its resulting notifications written
// straight back out.
func (c *Client) dispatchMessage(e *scopeEntry, msg recvbuf.Message) {
	switch {
	case msg.Broker != nil:
		c.handleBrokerMessage(e, msg.Broker)
	case msg.RPT != nil:
		result := c.router.Dispatch(e.handle, msg.RPT)
		for _, notif := range result.Notifications {
			e.conn.Send(notif)
		}
		if c.cfg.Callbacks != nil {
			c.cfg.Callbacks.RPTMsgReceived(e.handle, msg.RPT)
		}
	}
}

func (c *Client) handleBrokerMessage(e *scopeEntry, msg *rdmwire.BrokerMessage) {
	if msg.Disconnect != nil {
		c.mu.Lock()
		conn := e.conn
		e.state = ScopeStateDiscovery
		if e.cfg.IsStatic() {
			e.state = ScopeStateConnecting
		}
		c.mu.Unlock()
		ev := DisconnectEvent{Reason: DisconnectGracefulRemoteInitiated, ReasonCode: msg.Disconnect.Reason}
		if conn != nil {
			conn.OnSocketError(fmt.Errorf("rdmnet: broker disconnect reason %d", msg.Disconnect.Reason), c.ctx.Config().TimeNow())
		}
		if c.cfg.Callbacks != nil {
			c.cfg.Callbacks.Disconnected(e.handle, ev)
		}
		return
	}
	if msg.ClientEntryUpdate != nil && msg.ClientEntryUpdate.ClientEntry.RPT != nil {
		c.mu.Lock()
		e.uid = msg.ClientEntryUpdate.ClientEntry.RPT.UID
		c.mu.Unlock()
	}
	if c.cfg.Callbacks != nil {
		c.cfg.Callbacks.BrokerMsgReceived(e.handle, msg)
	}
}

// myUID implements routerHost.
func (c *Client) myUID(h ScopeHandle) (UID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.scopes[h]
	if !ok {
		return UID{}, false
	}
	return e.uid, true
}

// scopeConfig implements routerHost.
func (c *Client) scopeConfig(h ScopeHandle) (ScopeConfig, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.scopes[h]
	if !ok {
		return ScopeConfig{}, false
	}
	return e.cfg, true
}

// searchDomain implements routerHost.
func (c *Client) searchDomain() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.domain
}

// tcpCommsStatus implements routerHost: one row per currently-added
// scope (spec.md §4.F TCP_COMMS_STATUS GET).
func (c *Client) tcpCommsStatus() []TCPCommsEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := make([]TCPCommsEntry, 0, len(c.scopes))
	for _, e := range c.scopes {
		if e.destroying {
			continue
		}
		entries = append(entries, TCPCommsEntry{
			ScopeID:             e.cfg.ID,
			BrokerV4:            e.brokerV4,
			BrokerV6:            e.brokerV6,
			Port:                e.connectedPort,
			UnhealthyTCPCounter: e.unhealthyTCPCounter,
		})
	}
	return entries
}

// clearUnhealthyCounter implements routerHost.
func (c *Client) clearUnhealthyCounter(scopeID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.scopes {
		if e.cfg.ID == scopeID && !e.destroying {
			e.unhealthyTCPCounter = 0
			return true
		}
	}
	return false
}

// changeScopeByRDM implements routerHost: applied to the single scope
// that received the COMPONENT_SCOPE SET (spec.md §4.F item 3).
func (c *Client) changeScopeByRDM(h ScopeHandle, newScope string) error {
	c.mu.Lock()
	e, ok := c.scopes[h]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("rdmnet: unknown scope handle")
	}
	newCfg := e.cfg
	newCfg.ID = newScope
	c.mu.Unlock()
	return c.ChangeScope(h, newCfg, rdmwire.DisconnectRPTReconfigure)
}

// changeSearchDomainByRDM implements routerHost.
func (c *Client) changeSearchDomainByRDM(newDomain string) error {
	return c.ChangeSearchDomain(newDomain, rdmwire.DisconnectRPTReconfigure)
}

// Destroy tears down every scope and releases the client's handles
// (spec.md §4.E, invoked by [*Context.Deinit]).
func (c *Client) Destroy() {
	c.mu.Lock()
	handles := make([]ScopeHandle, 0, len(c.scopes))
	for h := range c.scopes {
		handles = append(handles, h)
	}
	llrp, cancel := c.llrp, c.llrpCancel
	c.llrp, c.llrpCancel = nil, nil
	c.mu.Unlock()
	for _, h := range handles {
		c.RemoveScope(h, rdmwire.DisconnectShutdown)
	}
	if cancel != nil {
		cancel()
	}
	if llrp != nil {
		llrp.Stop()
	}
}
