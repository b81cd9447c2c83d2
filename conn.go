// SPDX-License-Identifier: GPL-3.0-or-later

package rdmnet

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/rdmnet-go/rdmnet/recvbuf"
	"github.com/rdmnet-go/rdmnet/rdmwire"
)

// connState is the per-scope connection state (spec.md §4.D), matching
// the Inactive/Connecting.Tcp/Connecting.Handshake/Connected/Backoff
// diagram exactly.
type connState int

const (
	connStateInactive connState = iota
	connStateConnectingTCP
	connStateConnectingHandshake
	connStateConnected
	connStateBackoff
)

func (s connState) String() string {
	switch s {
	case connStateInactive:
		return "Inactive"
	case connStateConnectingTCP:
		return "Connecting.Tcp"
	case connStateConnectingHandshake:
		return "Connecting.Handshake"
	case connStateConnected:
		return "Connected"
	case connStateBackoff:
		return "Backoff"
	default:
		return "Unknown"
	}
}

// backoffNext computes the next reconnect delay (spec.md §4.D, §8
// property 6, scenario S5): 1000-5000ms of jitter added to prev, clamped
// to 30s, with prev == 0 producing an immediate (0ms) first retry.
func backoffNext(prev time.Duration, rnd func() uint32) time.Duration {
	if prev == 0 {
		return 0
	}
	jitter := time.Duration(1000+rnd()%4001) * time.Millisecond
	next := prev + jitter
	if next > 30*time.Second {
		next = 30 * time.Second
	}
	return next
}

// HandshakeResult is what a Broker Client Connect exchange yields: either
// a Connect Reply (possibly a rejection, spec.md §4.D, §7) or a Client
// Redirect naming a new broker address to retry against.
type HandshakeResult struct {
	Reply    *rdmwire.BrokerConnectReplyMsg
	Redirect *rdmwire.BrokerClientRedirectMsg
}

// HandshakeFunc packs and sends a Broker Client Connect message, then
// reads from the connection through a fresh [recvbuf.Buffer] until a
// Broker Connect Reply or Client Redirect arrives, skipping any other
// message. When ctx is done the connection is closed, so a blocked read
// returns. [Conn] calls it directly after its [*ConnectFunc] succeeds
// (spec.md §4.D).
type HandshakeFunc struct {
	LocalCID    CID
	ClientEntry rdmwire.ClientEntry
	Scope       ScopeConfig
	Domain      string
	Logger      SLogger
}

var _ Func[net.Conn, *HandshakeResult] = &HandshakeFunc{}

// Call implements [Func].
func (op *HandshakeFunc) Call(ctx context.Context, conn net.Conn) (res *HandshakeResult, err error) {
	// Closing conn when ctx is done unblocks a pending Read; on error conn
	// is closed before returning, as the [Func] contract requires.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer func() {
		stop()
		if err != nil {
			conn.Close()
		}
	}()
	connect := rdmwire.BrokerClientConnectMsg{
		Scope:        op.Scope.ID,
		E133Version:  rdmwire.E133Version,
		SearchDomain: op.Domain,
		ClientEntry:  op.ClientEntry,
	}
	if err := writeBrokerMessage(conn, op.LocalCID, func(buf []byte) (int, error) {
		return rdmwire.PackBrokerClientConnect(buf, connect)
	}, rdmwire.SizeBrokerClientConnect(connect)); err != nil {
		return nil, fmt.Errorf("rdmnet: handshake send: %w", err)
	}

	buf := make([]byte, recvbuf.MaxSize)
	rb := recvbuf.New(recvbuf.Options{})
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := conn.Read(buf)
		if n > 0 {
			msgs, ferr := rb.Feed(buf[:n])
			if ferr != nil {
				return nil, fmt.Errorf("rdmnet: handshake parse: %w", ferr)
			}
			for _, m := range msgs {
				if m.Broker == nil {
					continue
				}
				if m.Broker.ConnectReply != nil {
					op.Logger.Info("handshakeDone", slog.String("status", ConnectStatus(m.Broker.ConnectReply.ConnectStatus).String()))
					return &HandshakeResult{Reply: m.Broker.ConnectReply}, nil
				}
				if m.Broker.ClientRedirect != nil {
					op.Logger.Info("handshakeRedirect", slog.String("addr", m.Broker.ClientRedirect.NewAddr.String()))
					return &HandshakeResult{Redirect: m.Broker.ClientRedirect}, nil
				}
			}
		}
		if err != nil {
			return nil, fmt.Errorf("rdmnet: handshake read: %w", err)
		}
	}
}

// wireWrapMessage packs a TCP preamble plus root-layer PDU (vector)
// wrapping a family PDU built by pack, and returns the full wire bytes
// ready to write to a connection (spec.md §4.A framing rules).
func wireWrapMessage(senderCID CID, vector uint32, pack func([]byte) (int, error), size int) ([]byte, error) {
	rootSize := rdmwire.SizeRootLayer(size)
	out := make([]byte, rdmwire.TCPPreambleSize+rootSize)
	if _, err := rdmwire.PackTCPPreamble(out, rootSize); err != nil {
		return nil, err
	}
	body := make([]byte, size)
	if _, err := pack(body); err != nil {
		return nil, err
	}
	if _, err := rdmwire.PackRootLayer(out[rdmwire.TCPPreambleSize:], vector, senderCID, body); err != nil {
		return nil, err
	}
	return out, nil
}

// writeBrokerMessage wraps a Broker PDU built by pack and writes it to
// conn in one call.
func writeBrokerMessage(conn net.Conn, senderCID CID, pack func([]byte) (int, error), brokerSize int) error {
	data, err := wireWrapMessage(senderCID, rdmwire.VectorRootBroker, pack, brokerSize)
	if err != nil {
		return err
	}
	_, err = conn.Write(data)
	return err
}

// Conn is the per-scope connection engine (spec.md §4.D). Its state is
// driven by the owning [Client] via [Conn.Tick], [Conn.OnReadable] and
// [Conn.OnSocketError]. Each connect-and-handshake attempt runs on a
// goroutine of its own (see beginDial), whose result Tick collects.
type Conn struct {
	cfg    *Config
	logger SLogger

	connect   Func[netip.AddrPort, net.Conn]
	handshake *HandshakeFunc

	sendMu sync.Mutex
	conn   net.Conn
	rb     *recvbuf.Buffer

	state       connState
	backoffPrev time.Duration
	retryAt     time.Time

	// currentAddr is the broker address the in-flight (or most recently
	// successful) dial targets; a Client Redirect replaces it without
	// touching the scope's configured address list (spec.md §4.D).
	currentAddr netip.AddrPort

	lastSent     time.Time // drives the 15s send_timer (heartbeat cadence)
	lastReceived time.Time // drives the 45s hb_timer (heartbeat timeout)

	// unhealthyTCPCounter increments each time the connection is torn
	// down due to heartbeat timeout, saturating at 0xFFFF. Nothing clears
	// this copy: the counter that TCP_COMMS_STATUS reports and a SET
	// clears is scopeEntry.unhealthyTCPCounter (spec.md §3 "Connection").
	unhealthyTCPCounter uint16

	cancel context.CancelFunc
	result chan connAttemptResult
}

type connAttemptResult struct {
	conn *HandshakeResult
	raw  net.Conn
	err  error
}

// HeartbeatInterval is the send_timer cadence: a Broker Null is sent
// after this long without any outbound traffic (spec.md §4.D, §5).
const HeartbeatInterval = 15 * time.Second

// HeartbeatTimeout is the hb_timer: a connection with no inbound byte
// for this long is torn down as NoHeartbeat (spec.md §4.D, §5, §8
// property 5).
const HeartbeatTimeout = 45 * time.Second

// NewConn constructs a [*Conn] for one scope with a [ConnectFunc] for
// the TCP dial and a [HandshakeFunc] for the Broker Client Connect
// exchange; each dial attempt runs the two in sequence (spec.md §4.D).
func NewConn(cfg *Config, logger SLogger, localCID CID, entry rdmwire.ClientEntry, scope ScopeConfig, domain string) *Conn {
	return &Conn{
		cfg:     cfg,
		logger:  logger,
		connect: NewConnectFunc(cfg, "tcp", logger),
		handshake: &HandshakeFunc{
			LocalCID:    localCID,
			ClientEntry: entry,
			Scope:       scope,
			Domain:      domain,
			Logger:      logger,
		},
		state: connStateInactive,
	}
}

// State reports the current [connState].
func (c *Conn) State() connState { return c.state }

// Start begins connecting to addr from Inactive or Backoff, transitioning
// to Connecting.Tcp; from Backoff it dials at once, without waiting for
// the backoff delay. In any other state it does nothing.
func (c *Conn) Start(addr netip.AddrPort) {
	if c.state != connStateInactive && c.state != connStateBackoff {
		return
	}
	c.beginDial(addr)
}

// beginDial launches the async connect+handshake goroutine against addr,
// recording it as the connection's current target. Used both by Start
// and by the Connecting.Handshake -> Connecting.Tcp redirect edge
// (spec.md §4.D).
func (c *Conn) beginDial(addr netip.AddrPort) {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.currentAddr = addr
	c.state = connStateConnectingTCP
	c.result = make(chan connAttemptResult, 1)
	go c.dial(ctx, addr)
}

func (c *Conn) dial(ctx context.Context, addr netip.AddrPort) {
	rawConn, err := c.connect.Call(ctx, addr)
	if err != nil {
		c.result <- connAttemptResult{err: err}
		return
	}
	hr, err := c.handshake.Call(ctx, rawConn)
	if err != nil {
		rawConn.Close()
		c.result <- connAttemptResult{err: err}
		return
	}
	if hr.Redirect != nil {
		// The handshake succeeded but named a different broker; this
		// socket is not the one we'll keep.
		rawConn.Close()
	}
	c.result <- connAttemptResult{conn: hr, raw: rawConn}
}

// PollResult reports what happened on the connection since the last
// call, consumed by the owning [Client]'s single poll loop.
type PollResult struct {
	Connected bool
	// ConnectedAddr is the broker address the connection is established
	// against when Connected is true (spec.md §4.F TCP_COMMS_STATUS).
	ConnectedAddr netip.AddrPort
	// Reply is the Connect Reply that produced Connected (ConnectStatus
	// Ok), set only alongside Connected (spec.md §4.D, §6).
	Reply         *rdmwire.BrokerConnectReplyMsg
	ConnectFail   *ConnectFailEvent
	Disconnected  *DisconnectEvent
	Messages      []recvbuf.Message
	SendHeartbeat bool
}

// Tick advances timers (backoff expiry, heartbeat schedule/timeout) and
// drains any pending async connect/handshake result. now is injected so
// tests can drive the FSM deterministically (spec.md §4.D).
func (c *Conn) Tick(now time.Time) PollResult {
	var out PollResult
	switch c.state {
	case connStateConnectingTCP, connStateConnectingHandshake:
		select {
		case res := <-c.result:
			if res.err != nil {
				c.backoffPrev = backoffNext(c.backoffPrev, c.cfg.Rand)
				c.retryAt = now.Add(c.backoffPrev)
				c.state = connStateBackoff
				out.ConnectFail = &ConnectFailEvent{Reason: classifyConnectFail(res.err), SocketErr: res.err, WillRetry: true}
				return out
			}
			if res.conn.Redirect != nil {
				// Connecting.Handshake -> Connecting.Tcp: re-target and
				// retry against the broker's named address without
				// touching backoff state (spec.md §4.D).
				c.logger.Info("connectRedirect", slog.String("addr", res.conn.Redirect.NewAddr.String()))
				c.beginDial(res.conn.Redirect.NewAddr)
				return out
			}
			reply := res.conn.Reply
			status := ConnectStatus(reply.ConnectStatus)
			if status != ConnectStatusOK {
				c.backoffPrev = backoffNext(c.backoffPrev, c.cfg.Rand)
				c.retryAt = now.Add(c.backoffPrev)
				c.state = connStateBackoff
				out.ConnectFail = &ConnectFailEvent{Reason: ConnectFailRejected, RejectStatus: status, WillRetry: true}
				return out
			}
			c.conn = res.raw
			c.rb = recvbuf.New(recvbuf.Options{})
			c.state = connStateConnected
			c.backoffPrev = 0
			c.lastSent = now
			c.lastReceived = now
			out.Connected = true
			out.ConnectedAddr = c.currentAddr
			out.Reply = reply
		default:
		}
	case connStateBackoff:
		if !now.Before(c.retryAt) {
			c.state = connStateInactive
		}
	case connStateConnected:
		if now.Sub(c.lastReceived) >= HeartbeatTimeout {
			if c.unhealthyTCPCounter < 0xFFFF {
				c.unhealthyTCPCounter++
			}
			out.Disconnected = &DisconnectEvent{Reason: DisconnectNoHeartbeat, WillRetry: true}
			c.teardown()
			c.backoffPrev = backoffNext(c.backoffPrev, c.cfg.Rand)
			c.retryAt = now.Add(c.backoffPrev)
			c.state = connStateBackoff
			return out
		}
		if now.Sub(c.lastSent) >= HeartbeatInterval {
			c.lastSent = now
			out.SendHeartbeat = true
		}
	}
	return out
}

// OnReadable feeds freshly read bytes from the connection into the
// reassembly [recvbuf.Buffer], returning any fully parsed messages and
// recording now as the last receive time the heartbeat timeout is
// measured from (receipt of any traffic counts as liveness, spec.md
// §4.D).
func (c *Conn) OnReadable(data []byte, now time.Time) ([]recvbuf.Message, error) {
	if c.rb == nil {
		return nil, fmt.Errorf("rdmnet: OnReadable called while not connected")
	}
	msgs, err := c.rb.Feed(data)
	if err != nil {
		return nil, err
	}
	c.lastReceived = now
	return msgs, nil
}

// OnSocketError tears the connection down on an unrecoverable I/O error,
// transitioning to Backoff.
func (c *Conn) OnSocketError(err error, now time.Time) DisconnectEvent {
	c.teardown()
	c.backoffPrev = backoffNext(c.backoffPrev, c.cfg.Rand)
	c.retryAt = now.Add(c.backoffPrev)
	c.state = connStateBackoff
	return DisconnectEvent{Reason: DisconnectSocketFailure, SocketErr: err, WillRetry: true}
}

// SendHeartbeat packs and writes a Broker Null message under the
// connection's send lock (spec.md §4.D, §5 leaf-lock rule).
func (c *Conn) SendHeartbeat(senderCID CID) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("rdmnet: no active connection")
	}
	return writeBrokerMessage(c.conn, senderCID, rdmwire.PackBrokerNull, rdmwire.SizeBrokerNull())
}

// Send writes raw root-layer-and-below bytes (already packed by the
// router/client layer) under the send lock.
func (c *Conn) Send(data []byte) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("rdmnet: no active connection")
	}
	_, err := c.conn.Write(data)
	if err == nil {
		c.lastSent = c.cfg.TimeNow()
	}
	return err
}

// Disconnect performs a graceful local-initiated teardown, sending a
// Broker Disconnect before closing (spec.md §4.D).
func (c *Conn) Disconnect(senderCID CID, reason uint16) error {
	if c.conn != nil {
		c.sendMu.Lock()
		_ = writeBrokerMessage(c.conn, senderCID, func(buf []byte) (int, error) {
			return rdmwire.PackBrokerDisconnect(buf, rdmwire.BrokerDisconnectMsg{Reason: reason})
		}, rdmwire.SizeBrokerDisconnect())
		c.sendMu.Unlock()
	}
	c.teardown()
	c.state = connStateInactive
	return nil
}

func (c *Conn) teardown() {
	if c.cancel != nil {
		c.cancel()
	}
	if c.conn != nil {
		c.conn.Close()
	}
	c.conn = nil
	c.rb = nil
}

func classifyConnectFail(err error) ConnectFailReason {
	return ConnectFailTCPLevel
}
