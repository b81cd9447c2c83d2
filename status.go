// SPDX-License-Identifier: GPL-3.0-or-later

package rdmnet

import "github.com/rdmnet-go/rdmnet/rdmwire"

// ConnectStatus is the status code carried in a Broker Connect Reply
// (spec.md §7).
type ConnectStatus uint16

const (
	ConnectStatusOK                 = ConnectStatus(rdmwire.ConnectOK)
	ConnectStatusScopeMismatch      = ConnectStatus(rdmwire.ConnectScopeMismatch)
	ConnectStatusCapacityExceeded   = ConnectStatus(rdmwire.ConnectCapacityExceeded)
	ConnectStatusDuplicateUID       = ConnectStatus(rdmwire.ConnectDuplicateUID)
	ConnectStatusInvalidClientEntry = ConnectStatus(rdmwire.ConnectInvalidClientEntry)
	ConnectStatusInvalidUID         = ConnectStatus(rdmwire.ConnectInvalidUID)
)

func (s ConnectStatus) String() string {
	switch s {
	case ConnectStatusOK:
		return "Ok"
	case ConnectStatusScopeMismatch:
		return "ScopeMismatch"
	case ConnectStatusCapacityExceeded:
		return "CapacityExceeded"
	case ConnectStatusDuplicateUID:
		return "DuplicateUid"
	case ConnectStatusInvalidClientEntry:
		return "InvalidClientEntry"
	case ConnectStatusInvalidUID:
		return "InvalidUid"
	default:
		return "Unknown"
	}
}

// ConnectFailReason classifies why a scope's connection attempt did not
// reach [ScopeStateConnected] (spec.md §7).
type ConnectFailReason int

const (
	ConnectFailSocketFailure ConnectFailReason = iota
	ConnectFailTCPLevel
	ConnectFailRejected
	ConnectFailNoReply
)

func (r ConnectFailReason) String() string {
	switch r {
	case ConnectFailSocketFailure:
		return "SocketFailure"
	case ConnectFailTCPLevel:
		return "TcpLevel"
	case ConnectFailRejected:
		return "Rejected"
	case ConnectFailNoReply:
		return "NoReply"
	default:
		return "Unknown"
	}
}

// ConnectFailEvent is the structured reason delivered on a
// ConnectFailed callback.
type ConnectFailEvent struct {
	Reason       ConnectFailReason
	SocketErr    error         // set iff Reason == ConnectFailSocketFailure or TCPLevel
	RejectStatus ConnectStatus // set iff Reason == ConnectFailRejected
	WillRetry    bool
}

// DisconnectReason classifies why a [ScopeStateConnected] connection was
// torn down (spec.md §7).
type DisconnectReason int

const (
	DisconnectGracefulRemoteInitiated DisconnectReason = iota
	DisconnectGracefulLocalInitiated
	DisconnectNoHeartbeat
	DisconnectSocketFailure
	DisconnectAbort
)

func (r DisconnectReason) String() string {
	switch r {
	case DisconnectGracefulRemoteInitiated:
		return "GracefulRemoteInitiated"
	case DisconnectGracefulLocalInitiated:
		return "GracefulLocalInitiated"
	case DisconnectNoHeartbeat:
		return "NoHeartbeat"
	case DisconnectSocketFailure:
		return "SocketFailure"
	case DisconnectAbort:
		return "Abort"
	default:
		return "Unknown"
	}
}

// DisconnectEvent is the structured reason delivered on a Disconnected
// callback.
type DisconnectEvent struct {
	Reason     DisconnectReason
	ReasonCode uint16 // set iff Reason is one of the Graceful* variants
	SocketErr  error  // set iff Reason == DisconnectSocketFailure
	WillRetry  bool
}

// NackReason is an RDM NACK reason code, E1.20 base values plus the
// E1.33/E137.7 extensions (spec.md §7).
type NackReason = uint16

// Re-exported NACK reason codes for callers building [AppResponse]
// values with [ResponseSendNack] without importing rdmwire directly.
const (
	NRUnknownPid              = rdmwire.NRUnknownPid
	NRFormatError             = rdmwire.NRFormatError
	NRHardwareFault           = rdmwire.NRHardwareFault
	NRDataOutOfRange          = rdmwire.NRDataOutOfRange
	NRUnsupportedCommandClass = rdmwire.NRUnsupportedCommandClass
	NRActionNotSupported      = rdmwire.NRActionNotSupported
	NRUnknownScope            = rdmwire.NRUnknownScope
	NRInvalidStaticConfigType = rdmwire.NRInvalidStaticConfigType
	NRInvalidIPv4Address      = rdmwire.NRInvalidIPv4Address
	NRInvalidIPv6Address      = rdmwire.NRInvalidIPv6Address
	NRInvalidPort             = rdmwire.NRInvalidPort
	NREndpointNumberInvalid   = rdmwire.NREndpointNumberInvalid
)
