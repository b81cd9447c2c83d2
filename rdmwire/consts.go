// SPDX-License-Identifier: GPL-3.0-or-later

// Package rdmwire packs and parses RDMnet (ANSI E1.33) wire messages: the
// ACN root layer and TCP preamble, the Broker, RPT, EPT, and LLRP protocol
// families, and RDM command PDUs embedded within them.
//
// Every exported Pack/Parse function is pure and re-entrant: it operates
// on caller-supplied byte slices and offsets, performs no I/O, and never
// retains a reference to the input buffer past the call.
package rdmwire

// Root-layer vectors (ACN E1.17 Appendix, as profiled for RDMnet).
const (
	VectorRootBroker uint32 = 0x00000009
	VectorRootRPT    uint32 = 0x00000005
	VectorRootEPT    uint32 = 0x0000000B
	VectorRootLLRP   uint32 = 0x0000000C
)

// Broker PDU vectors (defs.h Table A-7).
const (
	VectorBrokerFetchClientList     uint16 = 0x0001
	VectorBrokerConnectedClientList uint16 = 0x0002
	VectorBrokerClientAdd           uint16 = 0x0003
	VectorBrokerClientRemove        uint16 = 0x0004
	VectorBrokerClientEntryChange   uint16 = 0x0005
	VectorBrokerConnect             uint16 = 0x0006
	VectorBrokerConnectReply        uint16 = 0x0007
	VectorBrokerClientEntryUpdate   uint16 = 0x0008
	VectorBrokerRedirectV4          uint16 = 0x0009
	VectorBrokerRedirectV6          uint16 = 0x000A
	VectorBrokerDisconnect          uint16 = 0x000B
	VectorBrokerNull                uint16 = 0x000C
	VectorBrokerRequestDynamicUIDs  uint16 = 0x000D
	VectorBrokerAssignedDynamicUIDs uint16 = 0x000E
	VectorBrokerFetchDynamicUIDList uint16 = 0x000F
)

// RPT PDU vectors (defs.h Table A-8..A-11).
const (
	VectorRPTRequest      uint32 = 0x00000001
	VectorRPTStatus       uint32 = 0x00000002
	VectorRPTNotification uint32 = 0x00000003

	VectorRequestRDMCmd      uint8 = 0x01
	VectorNotificationRDMCmd uint8 = 0x01

	VectorRDMCmdRDMData uint8 = 0xCC
)

// RPT status codes (defs.h via rpt_prot.h).
const (
	RPTStatusUnknownRPTUID       uint16 = 0x0001
	RPTStatusRDMTimeout          uint16 = 0x0002
	RPTStatusInvalidRDMResponse  uint16 = 0x0003
	RPTStatusUnknownRDMUID       uint16 = 0x0004
	RPTStatusUnknownEndpoint     uint16 = 0x0005
	RPTStatusBroadcastComplete   uint16 = 0x0006
	RPTStatusUnknownVector       uint16 = 0x0007
	RPTStatusInvalidMessage      uint16 = 0x0008
	RPTStatusInvalidCommandClass uint16 = 0x0009
)

// EPT PDU vectors (defs.h Table A-13..A-14).
const (
	VectorEPTData   uint32 = 0x00000001
	VectorEPTStatus uint32 = 0x00000002

	EPTStatusUnknownCID    uint16 = 0x0001
	EPTStatusUnknownVector uint16 = 0x0002
)

// LLRP vectors, groups and timing (defs.h Table A-2, A-4..A-6).
const (
	VectorLLRPProbeRequest uint32 = 0x00000001
	VectorLLRPProbeReply   uint32 = 0x00000002
	VectorLLRPRDMCmd       uint32 = 0x00000003

	VectorProbeRequestData uint8 = 0x01
	VectorProbeReplyData   uint8 = 0x01

	LLRPMulticastIPv4Request  = "239.255.250.133"
	LLRPMulticastIPv4Response = "239.255.250.134"
	LLRPMulticastIPv6Request  = "ff18::85:0:0:85"
	LLRPMulticastIPv6Response = "ff18::85:0:0:86"
	LLRPPort                  = 5569

	LLRPTimeoutMS       = 2000
	LLRPTargetTimeoutMS = 500
	LLRPMaxBackoffMS    = 1500
	LLRPKnownUIDSize    = 200

	LLRPBroadcastCID = "fbad822c-bd0c-4d4c-bdc8-7eabebc85aff"

	LLRPFilterClientConnInactive uint16 = 0x0001
	LLRPFilterBrokersOnly        uint16 = 0x0002
)

// LLRP component type codes (defs.h Table A-23).
type LLRPComponentType uint8

const (
	LLRPComponentTypeRPTDevice     LLRPComponentType = 0x00
	LLRPComponentTypeRPTController LLRPComponentType = 0x01
	LLRPComponentTypeBroker        LLRPComponentType = 0x02
	LLRPComponentTypeUnknown       LLRPComponentType = 0x03
)

func (t LLRPComponentType) String() string {
	switch t {
	case LLRPComponentTypeRPTDevice:
		return "RPTDevice"
	case LLRPComponentTypeRPTController:
		return "RPTController"
	case LLRPComponentTypeBroker:
		return "Broker"
	default:
		return "Unknown"
	}
}

// E1.33 scalar constants (defs.h).
const (
	E133Version = 1

	E133DefaultScope  = "default"
	E133DefaultDomain = "local."

	E133TCPHeartbeatIntervalSec = 15
	E133HeartbeatTimeoutSec     = 45
	E133ControllerBackoffSec    = 6

	E133NullEndpoint      uint16 = 0x0000
	E133BroadcastEndpoint uint16 = 0xFFFF

	E133ScopeStringPaddedLength        = 64
	E133DomainStringPaddedLength       = 231
	E133ServiceNameStringPaddedLength  = 64
	E133ModelStringPaddedLength        = 250
	E133ManufacturerStringPaddedLength = 250
)

// Broadcast / well-known UIDs (defs.h Table A-1).
const (
	RPTAllControllersManu uint16 = 0xFFFC
	RPTAllControllersID   uint32 = 0xFFFFFFFF
	RPTAllDevicesManu     uint16 = 0xFFFD
	RPTAllDevicesID       uint32 = 0xFFFFFFFF
	RPTManufacturerBcastID uint32 = 0xFFFF
)

// RDM PID defines relevant to the router's internally-handled PIDs
// (defs.h Table A-15).
const (
	PIDComponentScope  uint16 = 0x7FEF
	PIDSearchDomain    uint16 = 0x7FE0
	PIDTCPCommsStatus  uint16 = 0x7FED
	PIDBrokerStatus    uint16 = 0x7FF0
	PIDSupportedParams uint16 = 0x0050
	PIDDeviceInfo      uint16 = 0x0060
)

// Additional E1.33 NACK reason codes (defs.h Table A-16), layered on top
// of the base E1.20 NackReason values defined in nack.go.
const (
	NRActionNotSupported     uint16 = 0x000B
	NRUnknownScope           uint16 = 0x0012
	NRInvalidStaticConfigType uint16 = 0x0013
	NRInvalidIPv4Address     uint16 = 0x0014
	NRInvalidIPv6Address     uint16 = 0x0015
	NRInvalidPort            uint16 = 0x0016
)

// Static config type codes (defs.h Table A-17).
const (
	NoStaticConfig   uint8 = 0x00
	StaticConfigIPv4 uint8 = 0x01
	StaticConfigIPv6 uint8 = 0x02
)

// Broker state codes (defs.h Table A-18), surfaced read-only.
const (
	BrokerDisabled uint8 = 0x00
	BrokerActive   uint8 = 0x01
	BrokerStandby  uint8 = 0x02
)

// Connect status codes (defs.h Table A-19).
const (
	ConnectOK                 uint16 = 0x0000
	ConnectScopeMismatch      uint16 = 0x0002
	ConnectCapacityExceeded   uint16 = 0x0003
	ConnectDuplicateUID       uint16 = 0x0004
	ConnectInvalidClientEntry uint16 = 0x0005
	ConnectInvalidUID         uint16 = 0x0006
)

// Dynamic UID mapping status codes (defs.h Table A-20).
const (
	DynamicUIDStatusOK                 uint16 = 0x0000
	DynamicUIDStatusInvalidRequest     uint16 = 0x0001
	DynamicUIDStatusUIDNotFound        uint16 = 0x0002
	DynamicUIDStatusDuplicateRID       uint16 = 0x0003
	DynamicUIDStatusCapacityExhausted  uint16 = 0x0004
)

// Client protocol codes (defs.h Table A-21).
const (
	ClientProtocolRPT uint32 = 0x00000005
	ClientProtocolEPT uint32 = 0x0000000B
)

// RPT client type codes (defs.h Table A-22).
const (
	RPTClientTypeDevice     uint16 = 0x0000
	RPTClientTypeController uint16 = 0x0001
)

// Disconnect reason codes (defs.h Table A-24).
const (
	DisconnectShutdown             uint16 = 0x0000
	DisconnectCapacityExhausted    uint16 = 0x0001
	DisconnectIncorrectClientType  uint16 = 0x0002
	DisconnectHardwareFault        uint16 = 0x0003
	DisconnectSoftwareFault        uint16 = 0x0004
	DisconnectSoftwareReset        uint16 = 0x0005
	DisconnectIncorrectScope       uint16 = 0x0006
	DisconnectRPTReconfigure       uint16 = 0x0007
	DisconnectLLRPReconfigure      uint16 = 0x0008
	DisconnectUserReconfigure      uint16 = 0x0009
)

// Connect flags (Broker Client Connect message).
const (
	ConnectFlagIncrementalUpdates uint8 = 0x01
)

// RDM command classes (E1.20), only the values RPT embeds.
const (
	RDMCCGetCommand         uint8 = 0x20
	RDMCCGetCommandResponse uint8 = 0x21
	RDMCCSetCommand         uint8 = 0x30
	RDMCCSetCommandResponse uint8 = 0x31
)

// RDM response types (E1.20).
const (
	RDMResponseTypeAck         uint8 = 0x00
	RDMResponseTypeAckTimer    uint8 = 0x01
	RDMResponseTypeNackReason  uint8 = 0x02
	RDMResponseTypeAckOverflow uint8 = 0x03
)

// RDMMaxBytes bounds a single embedded RDM packet (E1.20 slot count).
const RDMMaxBytes = 257

// MaxRDMParamDataOverflow is the per-PDU parameter-data budget when
// topping up a SUPPORTED_PARAMETERS ACK_OVERFLOW chain (spec.md 4.A).
const MaxRDMParamDataOverflow = 230

// RDMNetRecvDataBufSize bounds recvbuf.Buffer (spec.md 4.B).
const RDMNetRecvDataBufSize = 8192

// TCPPreambleSize is the size in bytes of the fixed TCP preamble that
// precedes every root-layer PDU sent over TCP.
const TCPPreambleSize = 12
