// SPDX-License-Identifier: GPL-3.0-or-later

package rdmwire

// llrpPDUHeaderSize is flags+length(3) + vector(4) + dest CID(16) +
// transaction number(4).
const llrpPDUHeaderSize = flagsLengthSize + 4 + 16 + 4

// LLRPHeader carries the addressing common to every LLRP PDU: the
// destination CID (the target being addressed, or the LLRP broadcast
// CID) and the transaction number that ties a reply to its request
// (spec.md §4.G).
type LLRPHeader struct {
	DestCID           CID
	TransactionNumber uint32
}

func putLLRPHeader(buf []byte, h LLRPHeader) {
	copy(buf[0:16], h.DestCID[:])
	putUint32(buf[16:20], h.TransactionNumber)
}

func getLLRPHeader(buf []byte) LLRPHeader {
	var h LLRPHeader
	copy(h.DestCID[:], buf[0:16])
	h.TransactionNumber = getUint32(buf[16:20])
	return h
}

// LLRPProbeRequestMsg is the LLRP Probe Request PDU body (spec.md §4.G
// "On a Probe Request"): the UID range being probed, the filter flags,
// and the list of UIDs already known to the manager (to be excluded
// from the reply).
type LLRPProbeRequestMsg struct {
	LowerUID  UID
	UpperUID  UID
	Filter    uint16
	KnownUIDs []UID
}

func sizeLLRPProbeRequestBody(m LLRPProbeRequestMsg) int {
	return 6 + 6 + 2 + 2 + 6*len(m.KnownUIDs)
}

// LLRPProbeReplyMsg is the LLRP Probe Reply PDU body: this target's UID,
// component type, and the process-wide lowest-MAC hardware address
// (spec.md §3 invariant on hardware_address).
type LLRPProbeReplyMsg struct {
	TargetUID       UID
	ComponentType   LLRPComponentType
	HardwareAddress [6]byte
}

const llrpProbeReplyBodySize = 6 + 1 + 6

// LLRPMessage is the generic envelope returned by ParseLLRPMessage.
type LLRPMessage struct {
	Vector       uint32
	Header       LLRPHeader
	ProbeRequest *LLRPProbeRequestMsg
	ProbeReply   *LLRPProbeReplyMsg
	RDMCmd       *RDMPacket
}

// SizeLLRPProbeRequest returns the exact packed length of an LLRP Probe
// Request PDU.
func SizeLLRPProbeRequest(m LLRPProbeRequestMsg) int {
	return llrpPDUHeaderSize + sizeLLRPProbeRequestBody(m)
}

// PackLLRPProbeRequest serializes an LLRP Probe Request PDU into buf.
func PackLLRPProbeRequest(buf []byte, header LLRPHeader, m LLRPProbeRequestMsg) (int, error) {
	if len(m.KnownUIDs) > LLRPKnownUIDSize {
		return 0, newErr(ErrBadLength, "llrp_probe_request.known_uids")
	}
	total := SizeLLRPProbeRequest(m)
	if len(buf) < total {
		return 0, newErr(ErrShortBuffer, "llrp_probe_request")
	}
	putFlagsLength(buf, total)
	putUint32(buf[3:7], VectorLLRPProbeRequest)
	putLLRPHeader(buf[7:llrpPDUHeaderSize], header)
	off := llrpPDUHeaderSize
	putUID48(buf[off:off+6], m.LowerUID)
	off += 6
	putUID48(buf[off:off+6], m.UpperUID)
	off += 6
	putUint16(buf[off:off+2], m.Filter)
	off += 2
	putUint16(buf[off:off+2], uint16(len(m.KnownUIDs)))
	off += 2
	for _, u := range m.KnownUIDs {
		putUID48(buf[off:off+6], u)
		off += 6
	}
	return total, nil
}

// SizeLLRPProbeReply returns the exact packed length of an LLRP Probe
// Reply PDU.
func SizeLLRPProbeReply() int { return llrpPDUHeaderSize + llrpProbeReplyBodySize }

// PackLLRPProbeReply serializes an LLRP Probe Reply PDU into buf.
func PackLLRPProbeReply(buf []byte, header LLRPHeader, m LLRPProbeReplyMsg) (int, error) {
	total := SizeLLRPProbeReply()
	if len(buf) < total {
		return 0, newErr(ErrShortBuffer, "llrp_probe_reply")
	}
	putFlagsLength(buf, total)
	putUint32(buf[3:7], VectorLLRPProbeReply)
	putLLRPHeader(buf[7:llrpPDUHeaderSize], header)
	off := llrpPDUHeaderSize
	putUID48(buf[off:off+6], m.TargetUID)
	off += 6
	buf[off] = byte(m.ComponentType)
	off++
	copy(buf[off:off+6], m.HardwareAddress[:])
	return total, nil
}

// SizeLLRPRDMCmd returns the exact packed length of an LLRP RDM Command
// PDU wrapping cmd.
func SizeLLRPRDMCmd(cmd RDMPacket) int {
	return llrpPDUHeaderSize + rdmCmdPDUHeaderSize + SizeRDMPacket(cmd)
}

// PackLLRPRDMCmd serializes an LLRP RDM Command PDU into buf. LLRP
// carries exactly one embedded RDM packet per PDU: ACK_OVERFLOW
// chaining is not legal in LLRP (spec.md §4.G).
func PackLLRPRDMCmd(buf []byte, header LLRPHeader, cmd RDMPacket) (int, error) {
	total := SizeLLRPRDMCmd(cmd)
	if len(buf) < total {
		return 0, newErr(ErrShortBuffer, "llrp_rdm_cmd")
	}
	putFlagsLength(buf, total)
	putUint32(buf[3:7], VectorLLRPRDMCmd)
	putLLRPHeader(buf[7:llrpPDUHeaderSize], header)
	return total, packRDMCmdPDU(buf[llrpPDUHeaderSize:], cmd)
}

// ParseLLRPMessage parses one LLRP PDU (the data payload of a root-layer
// PDU whose Vector is VectorRootLLRP).
func ParseLLRPMessage(data []byte) (LLRPMessage, error) {
	length, err := getFlagsLength(data, "llrp_pdu")
	if err != nil {
		return LLRPMessage{}, err
	}
	if len(data) < length || length < llrpPDUHeaderSize {
		return LLRPMessage{}, newErr(ErrBadLength, "llrp_pdu")
	}
	msg := LLRPMessage{
		Vector: getUint32(data[3:7]),
		Header: getLLRPHeader(data[7:llrpPDUHeaderSize]),
	}
	body := data[llrpPDUHeaderSize:length]

	switch msg.Vector {
	case VectorLLRPProbeRequest:
		if len(body) < 16 {
			return LLRPMessage{}, newErr(ErrShortBuffer, "llrp_probe_request")
		}
		m := LLRPProbeRequestMsg{
			LowerUID: getUID48(body[0:6]),
			UpperUID: getUID48(body[6:12]),
			Filter:   getUint16(body[12:14]),
		}
		count := int(getUint16(body[14:16]))
		if count > LLRPKnownUIDSize || len(body) < 16+6*count {
			return LLRPMessage{}, newErr(ErrBadLength, "llrp_probe_request.known_uids")
		}
		if count > 0 {
			m.KnownUIDs = make([]UID, count)
			off := 16
			for i := range m.KnownUIDs {
				m.KnownUIDs[i] = getUID48(body[off : off+6])
				off += 6
			}
		}
		msg.ProbeRequest = &m
	case VectorLLRPProbeReply:
		if len(body) < llrpProbeReplyBodySize {
			return LLRPMessage{}, newErr(ErrShortBuffer, "llrp_probe_reply")
		}
		m := LLRPProbeReplyMsg{
			TargetUID:     getUID48(body[0:6]),
			ComponentType: LLRPComponentType(body[6]),
		}
		copy(m.HardwareAddress[:], body[7:13])
		msg.ProbeReply = &m
	case VectorLLRPRDMCmd:
		if len(body) < rdmCmdPDUHeaderSize {
			return LLRPMessage{}, newErr(ErrShortBuffer, "llrp_rdm_cmd")
		}
		cmdLen, err := getFlagsLength(body, "llrp_rdm_cmd")
		if err != nil {
			return LLRPMessage{}, err
		}
		if len(body) < cmdLen || cmdLen < rdmCmdPDUHeaderSize {
			return LLRPMessage{}, newErr(ErrBadLength, "llrp_rdm_cmd")
		}
		if body[3] != VectorRDMCmdRDMData {
			return LLRPMessage{}, newErr(ErrBadVector, "llrp_rdm_cmd.vector")
		}
		pkt, err := ParseRDMPacket(body[4:cmdLen])
		if err != nil {
			return LLRPMessage{}, err
		}
		msg.RDMCmd = &pkt
	default:
		return LLRPMessage{}, newErr(ErrBadVector, "llrp_pdu.vector")
	}
	return msg, nil
}
