// SPDX-License-Identifier: GPL-3.0-or-later

package rdmwire

// flagsLengthSize is the size in bytes of the ACN PDU flags+length field:
// a high nibble of 0xF selects the 20-bit extended-length form used
// throughout RDMnet (spec.md 4.A "Framing rules").
const flagsLengthSize = 3

// putFlagsLength writes the 3-byte flags+length field for a PDU whose
// total on-wire length (including this field) is length.
func putFlagsLength(buf []byte, length int) {
	buf[0] = 0xF0 | byte((length>>16)&0x0F)
	buf[1] = byte(length >> 8)
	buf[2] = byte(length)
}

// getFlagsLength reads the 3-byte flags+length field, validating the
// high nibble.
func getFlagsLength(buf []byte, field string) (int, error) {
	if len(buf) < flagsLengthSize {
		return 0, newErr(ErrShortBuffer, field)
	}
	if buf[0]&0xF0 != 0xF0 {
		return 0, newErr(ErrBadVector, field)
	}
	length := int(buf[0]&0x0F)<<16 | int(buf[1])<<8 | int(buf[2])
	return length, nil
}

// acnPacketIdentifier marks the start of the TCP preamble, analogous to
// ACN's "ASC-E1.17" packet identifier.
var acnPacketIdentifier = [4]byte{'R', 'D', 'M', 'n'}

// PackTCPPreamble writes the fixed 12-byte TCP preamble that precedes
// every root-layer PDU sent over TCP, stating the length of the
// root-layer PDU block that follows.
func PackTCPPreamble(buf []byte, rootLayerLen int) (int, error) {
	if len(buf) < TCPPreambleSize {
		return 0, newErr(ErrShortBuffer, "tcp_preamble")
	}
	putUint16(buf[0:2], TCPPreambleSize)
	putUint16(buf[2:4], 0)
	copy(buf[4:8], acnPacketIdentifier[:])
	putUint32(buf[8:12], uint32(rootLayerLen))
	return TCPPreambleSize, nil
}

// ParseTCPPreamble parses the fixed 12-byte TCP preamble, returning the
// length of the root-layer PDU block that follows and the remainder of
// data after the preamble.
func ParseTCPPreamble(data []byte) (rootLayerLen int, rest []byte, err error) {
	if len(data) < TCPPreambleSize {
		return 0, nil, newErr(ErrShortBuffer, "tcp_preamble")
	}
	if string(data[4:8]) != string(acnPacketIdentifier[:]) {
		return 0, nil, newErr(ErrBadVector, "tcp_preamble.identifier")
	}
	rootLayerLen = int(getUint32(data[8:12]))
	return rootLayerLen, data[TCPPreambleSize:], nil
}

// RootLayerHeaderSize is the size of a root-layer PDU header (flags+
// length, vector, sender CID), not including the nested PDU payload.
const RootLayerHeaderSize = flagsLengthSize + 4 + 16

// RootLayer is a parsed ACN root-layer PDU: a vector selecting the
// encapsulated protocol family, the sender's CID, and the opaque nested
// PDU bytes.
type RootLayer struct {
	Vector   uint32
	SenderCID CID
	Data     []byte
}

// SizeRootLayer returns the exact packed length of a root-layer PDU
// wrapping dataLen bytes of nested PDU.
func SizeRootLayer(dataLen int) int {
	return RootLayerHeaderSize + dataLen
}

// PackRootLayer serializes a root-layer PDU header followed by data
// (the caller-packed nested PDU) into buf.
func PackRootLayer(buf []byte, vector uint32, senderCID CID, data []byte) (int, error) {
	total := SizeRootLayer(len(data))
	if len(buf) < total {
		return 0, newErr(ErrShortBuffer, "root_layer")
	}
	putFlagsLength(buf, total)
	putUint32(buf[3:7], vector)
	copy(buf[7:23], senderCID[:])
	copy(buf[23:total], data)
	return total, nil
}

// ParseRootLayer parses a root-layer PDU from data, returning the parsed
// header plus a rest slice of any bytes in data beyond this PDU (used to
// chain multiple root-layer PDUs parsed from one TCP read).
func ParseRootLayer(data []byte) (rl RootLayer, rest []byte, err error) {
	length, err := getFlagsLength(data, "root_layer")
	if err != nil {
		return RootLayer{}, nil, err
	}
	if length < RootLayerHeaderSize {
		return RootLayer{}, nil, newErr(ErrBadLength, "root_layer")
	}
	if len(data) < length {
		return RootLayer{}, nil, newErr(ErrShortBuffer, "root_layer")
	}
	rl.Vector = getUint32(data[3:7])
	copy(rl.SenderCID[:], data[7:23])
	rl.Data = data[23:length]
	return rl, data[length:], nil
}

func putUint16(buf []byte, v uint16) {
	buf[0] = byte(v >> 8)
	buf[1] = byte(v)
}

func getUint16(buf []byte) uint16 {
	return uint16(buf[0])<<8 | uint16(buf[1])
}

func putUint32(buf []byte, v uint32) {
	buf[0] = byte(v >> 24)
	buf[1] = byte(v >> 16)
	buf[2] = byte(v >> 8)
	buf[3] = byte(v)
}

func getUint32(buf []byte) uint32 {
	return uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3])
}
