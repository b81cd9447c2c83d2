// SPDX-License-Identifier: GPL-3.0-or-later

package rdmwire

// RPTHeader carries routing information and metadata for an RPT message
// (spec.md §3 "RPT header").
type RPTHeader struct {
	SourceUID        UID
	SourceEndpointID uint16
	DestUID          UID
	DestEndpointID   uint16
	Seqnum           uint32
}

const rptHeaderSize = 6 + 2 + 6 + 2 + 4

func putRPTHeader(buf []byte, h RPTHeader) {
	putUID48(buf[0:6], h.SourceUID)
	putUint16(buf[6:8], h.SourceEndpointID)
	putUID48(buf[8:14], h.DestUID)
	putUint16(buf[14:16], h.DestEndpointID)
	putUint32(buf[16:20], h.Seqnum)
}

func getRPTHeader(buf []byte) RPTHeader {
	return RPTHeader{
		SourceUID:        getUID48(buf[0:6]),
		SourceEndpointID: getUint16(buf[6:8]),
		DestUID:          getUID48(buf[8:14]),
		DestEndpointID:   getUint16(buf[14:16]),
		Seqnum:           getUint32(buf[16:20]),
	}
}

// rptPDUHeaderSize is flags+length(3) + vector(4) + RPTHeader.
const rptPDUHeaderSize = flagsLengthSize + 4 + rptHeaderSize

// rdmCmdPDUHeaderSize is flags+length(3) + vector(1, the RDM start code).
const rdmCmdPDUHeaderSize = flagsLengthSize + 1

// RPTStatusMsg is the RPT Status message (spec.md §4.A).
type RPTStatusMsg struct {
	StatusCode uint16
	StatusStr  string
}

const rptStatusMaxStrLen = 1024

// RPTMessage is a parsed RPT message: Request, Status, or Notification.
type RPTMessage struct {
	Vector     uint32
	Header     RPTHeader
	Status     RPTStatusMsg // valid iff Vector == VectorRPTStatus
	RDMBufs    []RDMPacket  // valid iff Vector == VectorRPTRequest/Notification
	MoreComing bool
}

// SizeRPTRequest returns the exact packed length of an RPT Request PDU
// wrapping cmd.
func SizeRPTRequest(cmd RDMPacket) int {
	return rptPDUHeaderSize + rdmCmdPDUHeaderSize + SizeRDMPacket(cmd)
}

// PackRPTRequest serializes an RPT Request PDU (exactly one embedded RDM
// command) into buf.
func PackRPTRequest(buf []byte, header RPTHeader, cmd RDMPacket) (int, error) {
	total := SizeRPTRequest(cmd)
	if len(buf) < total {
		return 0, newErr(ErrShortBuffer, "rpt_request")
	}
	putFlagsLength(buf, total)
	putUint32(buf[3:7], VectorRPTRequest)
	putRPTHeader(buf[7:7+rptHeaderSize], header)
	off := rptPDUHeaderSize
	if err := packRDMCmdPDU(buf[off:], cmd); err != nil {
		return 0, err
	}
	return total, nil
}

// SizeRPTStatus returns the exact packed length of an RPT Status PDU.
func SizeRPTStatus(status RPTStatusMsg) int {
	return rptPDUHeaderSize + flagsLengthSize + 2 + len(status.StatusStr)
}

// PackRPTStatus serializes an RPT Status PDU into buf.
func PackRPTStatus(buf []byte, header RPTHeader, status RPTStatusMsg) (int, error) {
	if len(status.StatusStr) > rptStatusMaxStrLen {
		return 0, newErr(ErrBadLength, "rpt_status.status_string")
	}
	total := SizeRPTStatus(status)
	if len(buf) < total {
		return 0, newErr(ErrShortBuffer, "rpt_status")
	}
	putFlagsLength(buf, total)
	putUint32(buf[3:7], VectorRPTStatus)
	putRPTHeader(buf[7:7+rptHeaderSize], header)
	off := rptPDUHeaderSize
	inner := total - off
	putFlagsLength(buf[off:], inner)
	putUint16(buf[off+3:off+5], status.StatusCode)
	copy(buf[off+5:total], status.StatusStr)
	return total, nil
}

// SizeRPTNotification returns the exact packed length of an RPT
// Notification PDU wrapping cmds.
func SizeRPTNotification(cmds []RDMPacket) int {
	n := rptPDUHeaderSize
	for _, c := range cmds {
		n += rdmCmdPDUHeaderSize + SizeRDMPacket(c)
	}
	return n
}

// PackRPTNotification serializes an RPT Notification PDU (one or more
// embedded RDM command/response PDUs) into buf.
func PackRPTNotification(buf []byte, header RPTHeader, cmds []RDMPacket) (int, error) {
	total := SizeRPTNotification(cmds)
	if len(buf) < total {
		return 0, newErr(ErrShortBuffer, "rpt_notification")
	}
	putFlagsLength(buf, total)
	putUint32(buf[3:7], VectorRPTNotification)
	putRPTHeader(buf[7:7+rptHeaderSize], header)
	off := rptPDUHeaderSize
	for _, c := range cmds {
		if err := packRDMCmdPDU(buf[off:], c); err != nil {
			return 0, err
		}
		off += rdmCmdPDUHeaderSize + SizeRDMPacket(c)
	}
	return total, nil
}

func packRDMCmdPDU(buf []byte, cmd RDMPacket) error {
	n := SizeRDMPacket(cmd)
	total := rdmCmdPDUHeaderSize + n
	if len(buf) < total {
		return newErr(ErrShortBuffer, "rdm_cmd_pdu")
	}
	putFlagsLength(buf, total)
	buf[3] = VectorRDMCmdRDMData
	_, _, err := PackRDMPacket(buf[4:total], cmd)
	return err
}

// ParseRPTMessage parses one RPT PDU (the data payload of a root-layer
// PDU whose Vector is VectorRootRPT). opts bounds partial-list handling
// for Notification PDUs carrying more embedded RDM buffers than the
// caller wants delivered in one call.
func ParseRPTMessage(data []byte, opts ParseOptions) (RPTMessage, error) {
	length, err := getFlagsLength(data, "rpt_pdu")
	if err != nil {
		return RPTMessage{}, err
	}
	if len(data) < length {
		return RPTMessage{}, newErr(ErrShortBuffer, "rpt_pdu")
	}
	if length < rptPDUHeaderSize {
		return RPTMessage{}, newErr(ErrBadLength, "rpt_pdu")
	}
	msg := RPTMessage{
		Vector: getUint32(data[3:7]),
		Header: getRPTHeader(data[7 : 7+rptHeaderSize]),
	}
	body := data[rptPDUHeaderSize:length]

	switch msg.Vector {
	case VectorRPTStatus:
		slen, err := getFlagsLength(body, "rpt_status")
		if err != nil {
			return RPTMessage{}, err
		}
		if len(body) < slen || slen < flagsLengthSize+2 {
			return RPTMessage{}, newErr(ErrBadLength, "rpt_status")
		}
		msg.Status = RPTStatusMsg{
			StatusCode: getUint16(body[3:5]),
			StatusStr:  string(body[5:slen]),
		}
	case VectorRPTRequest, VectorRPTNotification:
		bufs, moreComing, err := parseRDMCmdPDUList(body, opts)
		if err != nil {
			return RPTMessage{}, err
		}
		msg.RDMBufs = bufs
		msg.MoreComing = moreComing
	default:
		return RPTMessage{}, newErr(ErrBadVector, "rpt_pdu.vector")
	}
	return msg, nil
}

func parseRDMCmdPDUList(body []byte, opts ParseOptions) ([]RDMPacket, bool, error) {
	maxEntries := opts.MaxPartialListEntries
	var bufs []RDMPacket
	for len(body) > 0 {
		if maxEntries > 0 && len(bufs) >= maxEntries {
			return bufs, true, nil
		}
		length, err := getFlagsLength(body, "rdm_cmd_pdu")
		if err != nil {
			return nil, false, err
		}
		if len(body) < length || length < rdmCmdPDUHeaderSize {
			return nil, false, newErr(ErrBadLength, "rdm_cmd_pdu")
		}
		if body[3] != VectorRDMCmdRDMData {
			return nil, false, newErr(ErrBadVector, "rdm_cmd_pdu.vector")
		}
		pkt, err := ParseRDMPacket(body[4:length])
		if err != nil {
			return nil, false, err
		}
		bufs = append(bufs, pkt)
		body = body[length:]
	}
	return bufs, false, nil
}

// ParseOptions threads parse-time limits through the codec, chiefly the
// partial-list cap for Notification/Client List parsing (spec.md §4.A
// "Partial lists").
type ParseOptions struct {
	// MaxPartialListEntries bounds how many list entries ParseRPTMessage /
	// ParseBrokerMessage will emit in one call before setting MoreComing and
	// stopping early. Zero means unbounded.
	MaxPartialListEntries int
}
