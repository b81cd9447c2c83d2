// SPDX-License-Identifier: GPL-3.0-or-later

package rdmwire

// eptPDUHeaderSize is flags+length(3) + vector(4) + dest CID(16).
const eptPDUHeaderSize = flagsLengthSize + 4 + 16

// EPTDataMsg is an EPT Data message: an opaque manufacturer-defined
// payload routed to a destination component by CID (spec.md §4.A "EPT").
type EPTDataMsg struct {
	DestCID    CID
	Manufacturer uint16
	ProtocolID   uint16
	Data         []byte
}

const eptDataSubHeaderSize = 2 + 2

func SizeEPTData(m EPTDataMsg) int {
	return eptPDUHeaderSize + eptDataSubHeaderSize + len(m.Data)
}

func PackEPTData(buf []byte, m EPTDataMsg) (int, error) {
	total := SizeEPTData(m)
	if len(buf) < total {
		return 0, newErr(ErrShortBuffer, "ept_data")
	}
	putFlagsLength(buf, total)
	putUint32(buf[3:7], VectorEPTData)
	copy(buf[7:23], m.DestCID[:])
	off := eptPDUHeaderSize
	putUint16(buf[off:off+2], m.Manufacturer)
	off += 2
	putUint16(buf[off:off+2], m.ProtocolID)
	off += 2
	copy(buf[off:total], m.Data)
	return total, nil
}

// EPTStatusMsg is an EPT Status message reporting a transport-level
// failure for an EPT exchange.
type EPTStatusMsg struct {
	DestCID    CID
	StatusCode uint16
}

func SizeEPTStatus() int { return eptPDUHeaderSize + 2 }

func PackEPTStatus(buf []byte, m EPTStatusMsg) (int, error) {
	total := SizeEPTStatus()
	if len(buf) < total {
		return 0, newErr(ErrShortBuffer, "ept_status")
	}
	putFlagsLength(buf, total)
	putUint32(buf[3:7], VectorEPTStatus)
	copy(buf[7:23], m.DestCID[:])
	putUint16(buf[eptPDUHeaderSize:eptPDUHeaderSize+2], m.StatusCode)
	return total, nil
}

// EPTMessage is the generic envelope returned by ParseEPTMessage.
type EPTMessage struct {
	Vector uint32
	Data   *EPTDataMsg
	Status *EPTStatusMsg
}

// ParseEPTMessage parses one EPT PDU (the data payload of a root-layer
// PDU whose Vector is VectorRootEPT).
func ParseEPTMessage(data []byte) (EPTMessage, error) {
	length, err := getFlagsLength(data, "ept_pdu")
	if err != nil {
		return EPTMessage{}, err
	}
	if len(data) < length || length < eptPDUHeaderSize {
		return EPTMessage{}, newErr(ErrBadLength, "ept_pdu")
	}
	vector := getUint32(data[3:7])
	var destCID CID
	copy(destCID[:], data[7:23])
	body := data[eptPDUHeaderSize:length]

	switch vector {
	case VectorEPTData:
		if len(body) < eptDataSubHeaderSize {
			return EPTMessage{}, newErr(ErrShortBuffer, "ept_data")
		}
		m := EPTDataMsg{
			DestCID:      destCID,
			Manufacturer: getUint16(body[0:2]),
			ProtocolID:   getUint16(body[2:4]),
			Data:         append([]byte(nil), body[4:]...),
		}
		return EPTMessage{Vector: vector, Data: &m}, nil
	case VectorEPTStatus:
		if len(body) < 2 {
			return EPTMessage{}, newErr(ErrShortBuffer, "ept_status")
		}
		m := EPTStatusMsg{DestCID: destCID, StatusCode: getUint16(body[0:2])}
		return EPTMessage{Vector: vector, Status: &m}, nil
	default:
		return EPTMessage{}, newErr(ErrBadVector, "ept_pdu.vector")
	}
}
