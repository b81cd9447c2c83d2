// SPDX-License-Identifier: GPL-3.0-or-later

// Package rdmnet implements the client/broker runtime core of ANSI
// E1.33 (RDMnet): a transport for RDM (ANSI E1.20) lighting-control
// commands over TCP and UDP multicast.
//
// # Core Abstraction
//
// A [*Client] holds a set of scopes (spec.md §3, §4.E): each
// [ScopeConfig] is either discovered via DNS-SD ([Discovery]) or
// statically addressed, and each maps to one [*Conn] — a TCP
// connection through the ACN root layer and Broker protocol to a
// broker, carrying RPT (RDM Packet Transport) messages. Scopes are
// held in a map keyed by [ScopeHandle], whose handles come from a
// monotonic allocation counter: handles are never reused ahead of it,
// so a stale handle from a destroyed scope is always detected rather
// than silently aliasing a new one.
//
// Inbound RDM commands not handled internally by the [*Router]
// (TCP_COMMS_STATUS, COMPONENT_SCOPE, SEARCH_DOMAIN) are delivered
// synchronously to the application's [RPTCommandHandler], which
// returns an [AppResponse] describing the ACK/NACK to send back — the
// same contract LLRP's [*Target] uses for commands that arrive over
// multicast rather than a scope's broker connection.
//
// # Connection Lifecycle
//
// [*Conn] owns exactly one TCP socket and its backoff/heartbeat
// timers; it is driven via [*Conn.Tick] (backoff, heartbeat
// scheduling, collecting the result of a connect attempt) and
// [*Conn.OnReadable] (message reassembly and parsing). Each
// connect-and-handshake attempt runs on a goroutine of its own.
// [*Client.Tick] and [*Client.OnReadable] fan these calls out across
// every scope. [*Target]'s LLRP UDP sockets are read by their own
// goroutines, one per open receive socket, since a connectionless,
// broadcast-style protocol has no "this socket is readable" event to
// hook into a single poll loop.
//
// # Shared Resources
//
// [*Context] holds everything shared across every [*Client] built from
// it: the multicast interface enumeration and lowest-MAC tiebreaker
// (mcast.IO), and the default [*Config]/[SLogger]. LLRP send sockets
// are reference-counted per (interface, port); receive sockets are
// single-owner per interface.
//
// # Observability
//
// Structured logging follows the [SLogger] interface (compatible with
// [log/slog]); the default is a no-op discard logger. Error
// classification for log fields is configurable via [ErrClassifier];
// [DefaultErrClassifier] covers the common net/context error classes.
//
// # Design Boundaries
//
// This package implements the RPT client and LLRP target sides of the
// protocol core: scope/connection management, the wire codec (in
// rdmwire), message reassembly (in recvbuf), and the LLRP probe/reply
// and RDM-command state machine. A full broker implementation, the
// RDMnet default responder's PID table, and EPT are out of scope
// (spec.md §1 Non-goals); callers needing those build them on top of
// the primitives here.
package rdmnet
