// SPDX-License-Identifier: GPL-3.0-or-later

package rdmwire

// Base E1.20 NACK reason codes, carried as the 2-byte parameter data of
// an RDM response whose ResponseType is [RDMResponseTypeNackReason].
// E1.33 layers additional reason codes on top of these (consts.go).
const (
	NRUnknownPid              uint16 = 0x0000
	NRFormatError             uint16 = 0x0001
	NRHardwareFault           uint16 = 0x0002
	NRDeniedWrite             uint16 = 0x0003
	NRDataOutOfRange          uint16 = 0x0004
	NRBufferFull              uint16 = 0x0005
	NRPacketSizeUnsupported   uint16 = 0x0006
	NRSubDeviceOutOfRange     uint16 = 0x0007
	NRProxyBufferFull         uint16 = 0x0008
	NRUnsupportedCommandClass uint16 = 0x0009

	// NREndpointNumberInvalid is E137.7's endpoint-addressing NACK,
	// returned when an RPT command names an endpoint the responder does
	// not have (spec.md §7).
	NREndpointNumberInvalid uint16 = 0x0010
)

// PackNackParamData returns the 2-byte RDM parameter data for a NACK
// response carrying reason.
func PackNackParamData(reason uint16) []byte {
	buf := make([]byte, 2)
	putUint16(buf, reason)
	return buf
}
