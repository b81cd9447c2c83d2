// SPDX-License-Identifier: GPL-3.0-or-later

// Package recvbuf implements per-connection TCP stream reassembly over
// the RDMnet wire codec (spec.md §4.B). One [Buffer] belongs to exactly
// one connection: callers feed it bytes as they arrive from the socket
// and drain zero or more fully-parsed [Message] values per call.
package recvbuf

import (
	"fmt"

	"github.com/rdmnet-go/rdmnet/rdmwire"
)

// Message is one fully reassembled RDMnet message: the root-layer vector
// and sender CID, plus exactly one of the family-specific payloads.
//
// When MoreComing is true the payload is a partial chunk of a longer
// logical Notification or Client List; the caller must accumulate
// chunks and not act until a final chunk with MoreComing == false
// arrives (spec.md §4.A "Partial lists").
type Message struct {
	RootVector uint32
	SenderCID  rdmwire.CID

	Broker *rdmwire.BrokerMessage
	RPT    *rdmwire.RPTMessage
	EPT    *rdmwire.EPTMessage

	MoreComing bool
}

// MaxSize bounds the number of unconsumed bytes a [Buffer] will hold
// while waiting for one root-layer PDU to arrive in full. A single PDU
// exceeding this is a fatal parse error on the connection (spec.md
// §4.B), surfaced as [ErrPDUTooLarge].
const MaxSize = rdmwire.RDMNetRecvDataBufSize

// ErrPDUTooLarge is returned by [*Buffer.Feed] when the root-layer PDU
// announced by the TCP preamble would not fit within [MaxSize]; the
// connection cannot recover and must be torn down.
var ErrPDUTooLarge = fmt.Errorf("recvbuf: PDU exceeds %d bytes", MaxSize)

// Options configures partial-list chunking. MaxPartialListEntries bounds
// how many RDM response buffers (for an RPT Notification) or client
// entries (for a Broker Client List) are delivered to the caller in a
// single [Message]; zero means unbounded (no chunking).
type Options struct {
	MaxPartialListEntries int
}

// Buffer reassembles a TCP byte stream into [Message] values. The zero
// value is not usable; construct with [New].
type Buffer struct {
	opts  Options
	store []byte

	// pending holds a root-layer PDU that parsed successfully but whose
	// list payload (RPT Notification RDM buffers, or a Broker Client
	// List's entries) is larger than opts.MaxPartialListEntries; the
	// Feed call that parsed it drains it before parsing the next PDU.
	pending *pendingList
}

// New returns an empty [*Buffer].
func New(opts Options) *Buffer {
	return &Buffer{opts: opts}
}

type pendingList struct {
	rootVector uint32
	senderCID  rdmwire.CID

	// exactly one of these is set, matching the family being chunked.
	rptVector  uint32
	rptHeader  rdmwire.RPTHeader
	rdmBufs    []rdmwire.RDMPacket

	clientListVector uint32
	clientList       *rdmwire.BrokerClientListMsg
}

// Feed appends freshly read socket bytes and returns every [Message]
// that can be produced from data accumulated so far, including any
// messages this call alone completes. A short read that leaves a
// partial PDU in the internal store is not an error: the residual is
// kept and combined with the next Feed call.
func (b *Buffer) Feed(data []byte) ([]Message, error) {
	b.store = append(b.store, data...)

	var out []Message

	// Drain any partial list left over from a previous PDU before
	// looking at new bytes; this preserves per-scope message ordering.
	if b.pending != nil {
		out = append(out, b.drainPending()...)
		if b.pending != nil {
			// Still not fully drained (shouldn't happen: drainPending
			// always empties in one pass), return what we have.
			return out, nil
		}
	}

	for {
		msg, consumed, ok, err := b.tryParseOne()
		if err != nil {
			return out, err
		}
		if !ok {
			break
		}
		b.store = b.store[consumed:]
		if msg != nil {
			out = append(out, *msg)
		}
		if b.pending != nil {
			// tryParseOne stashed a long list instead of returning it;
			// deliver its chunks now, before the next PDU.
			out = append(out, b.drainPending()...)
		}
	}
	return out, nil
}

// tryParseOne attempts to parse one TCP-preamble-delimited root-layer
// PDU from the front of b.store. ok is false when more bytes are
// needed; msg is nil when the PDU carried a list longer than
// opts.MaxPartialListEntries, which is stashed in b.pending for
// drainPending instead of being returned. A Broker Null heartbeat is
// returned as an ordinary message.
func (b *Buffer) tryParseOne() (msg *Message, consumed int, ok bool, err error) {
	if len(b.store) < rdmwire.TCPPreambleSize {
		return nil, 0, false, nil
	}
	rootLayerLen, _, err := rdmwire.ParseTCPPreamble(b.store)
	if err != nil {
		return nil, 0, false, err
	}
	total := rdmwire.TCPPreambleSize + rootLayerLen
	if total > MaxSize {
		return nil, 0, false, ErrPDUTooLarge
	}
	if len(b.store) < total {
		return nil, 0, false, nil // short read, wait for more
	}

	rl, _, err := rdmwire.ParseRootLayer(b.store[rdmwire.TCPPreambleSize:total])
	if err != nil {
		return nil, total, true, err
	}

	out := &Message{RootVector: rl.Vector, SenderCID: rl.SenderCID}
	opts := rdmwire.ParseOptions{} // parse the full list; we chunk ourselves below

	switch rl.Vector {
	case rdmwire.VectorRootBroker:
		bm, err := rdmwire.ParseBrokerMessage(rl.Data, opts)
		if err != nil {
			return nil, total, true, err
		}
		if bm.ClientList != nil && b.opts.MaxPartialListEntries > 0 &&
			len(bm.ClientList.Entries) > b.opts.MaxPartialListEntries {
			b.pending = &pendingList{
				rootVector:       rl.Vector,
				senderCID:        rl.SenderCID,
				clientListVector: bm.Vector,
				clientList:       bm.ClientList,
			}
			return nil, total, true, nil
		}
		out.Broker = &bm
	case rdmwire.VectorRootRPT:
		rm, err := rdmwire.ParseRPTMessage(rl.Data, opts)
		if err != nil {
			return nil, total, true, err
		}
		if rm.RDMBufs != nil && b.opts.MaxPartialListEntries > 0 &&
			len(rm.RDMBufs) > b.opts.MaxPartialListEntries {
			b.pending = &pendingList{
				rootVector: rl.Vector,
				senderCID:  rl.SenderCID,
				rptVector:  rm.Vector,
				rptHeader:  rm.Header,
				rdmBufs:    rm.RDMBufs,
			}
			return nil, total, true, nil
		}
		out.RPT = &rm
	case rdmwire.VectorRootEPT:
		em, err := rdmwire.ParseEPTMessage(rl.Data)
		if err != nil {
			return nil, total, true, err
		}
		out.EPT = &em
	default:
		return nil, total, true, &rdmwire.FramingError{Kind: rdmwire.ErrBadVector, Field: "root_layer.vector"}
	}
	return out, total, true, nil
}

// drainPending emits chunks of a pending partial list, one chunk at a
// time up to the configured cap, until the list is exhausted.
func (b *Buffer) drainPending() []Message {
	var out []Message
	for b.pending != nil {
		p := b.pending
		maxEntries := b.opts.MaxPartialListEntries

		switch {
		case p.rdmBufs != nil:
			n := maxEntries
			if n > len(p.rdmBufs) {
				n = len(p.rdmBufs)
			}
			chunk := p.rdmBufs[:n]
			rest := p.rdmBufs[n:]
			more := len(rest) > 0
			out = append(out, Message{
				RootVector: p.rootVector,
				SenderCID:  p.senderCID,
				RPT: &rdmwire.RPTMessage{
					Vector:     p.rptVector,
					Header:     p.rptHeader,
					RDMBufs:    chunk,
					MoreComing: more,
				},
				MoreComing: more,
			})
			if more {
				p.rdmBufs = rest
			} else {
				b.pending = nil
			}

		case p.clientList != nil:
			n := maxEntries
			if n > len(p.clientList.Entries) {
				n = len(p.clientList.Entries)
			}
			chunk := p.clientList.Entries[:n]
			rest := p.clientList.Entries[n:]
			more := len(rest) > 0
			out = append(out, Message{
				RootVector: p.rootVector,
				SenderCID:  p.senderCID,
				Broker: &rdmwire.BrokerMessage{
					Vector: p.clientListVector,
					ClientList: &rdmwire.BrokerClientListMsg{
						Entries:    chunk,
						MoreComing: more,
					},
				},
				MoreComing: more,
			})
			if more {
				p.clientList.Entries = rest
			} else {
				b.pending = nil
			}

		default:
			b.pending = nil
		}
	}
	return out
}

// Pending reports whether a partial list is waiting to be drained.
// Feed drains a pending list before it returns, so this is false
// between Feed calls.
func (b *Buffer) Pending() bool { return b.pending != nil }

// Residual returns the number of unconsumed bytes currently buffered
// (the start of the next, not-yet-complete PDU).
func (b *Buffer) Residual() int { return len(b.store) }
