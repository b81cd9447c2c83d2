// SPDX-License-Identifier: GPL-3.0-or-later

package rdmwire

import "net/netip"

// brokerPDUHeaderSize is flags+length(3) + vector(2).
const brokerPDUHeaderSize = flagsLengthSize + 2

func putBrokerPDUHeader(buf []byte, total int, vector uint16) {
	putFlagsLength(buf, total)
	putUint16(buf[3:5], vector)
}

// BrokerMessage is the generic envelope returned by ParseBrokerMessage:
// the caller switches on Vector and reads the matching typed payload.
type BrokerMessage struct {
	Vector uint32 // widened from the wire's 2-byte vector for a uniform switch alongside RPT/EPT/LLRP

	ClientConnect      *BrokerClientConnectMsg
	ConnectReply       *BrokerConnectReplyMsg
	ClientEntryUpdate  *BrokerClientEntryUpdateMsg
	ClientRedirect     *BrokerClientRedirectMsg
	ClientList         *BrokerClientListMsg
	DynamicUIDRequest  *BrokerDynamicUIDRequestListMsg
	DynamicUIDAssigned *BrokerDynamicUIDAssignedListMsg
	FetchUIDRequest    *BrokerFetchUIDRequestMsg
	Disconnect         *BrokerDisconnectMsg
}

// ParseBrokerMessage parses one Broker PDU (the data payload of a
// root-layer PDU whose Vector is VectorRootBroker).
func ParseBrokerMessage(data []byte, opts ParseOptions) (BrokerMessage, error) {
	length, err := getFlagsLength(data, "broker_pdu")
	if err != nil {
		return BrokerMessage{}, err
	}
	if len(data) < length || length < brokerPDUHeaderSize {
		return BrokerMessage{}, newErr(ErrBadLength, "broker_pdu")
	}
	vector := getUint16(data[3:5])
	body := data[brokerPDUHeaderSize:length]
	msg := BrokerMessage{Vector: uint32(vector)}

	switch vector {
	case VectorBrokerConnect:
		m, err := parseBrokerClientConnectBody(body)
		if err != nil {
			return BrokerMessage{}, err
		}
		msg.ClientConnect = &m
	case VectorBrokerConnectReply:
		m, err := parseBrokerConnectReplyBody(body)
		if err != nil {
			return BrokerMessage{}, err
		}
		msg.ConnectReply = &m
	case VectorBrokerClientEntryUpdate:
		m, err := parseBrokerClientEntryUpdateBody(body)
		if err != nil {
			return BrokerMessage{}, err
		}
		msg.ClientEntryUpdate = &m
	case VectorBrokerRedirectV4, VectorBrokerRedirectV6:
		m, err := parseBrokerClientRedirectBody(body, vector == VectorBrokerRedirectV6)
		if err != nil {
			return BrokerMessage{}, err
		}
		msg.ClientRedirect = &m
	case VectorBrokerConnectedClientList, VectorBrokerClientAdd, VectorBrokerClientRemove, VectorBrokerClientEntryChange:
		m, err := parseBrokerClientListBody(body, opts)
		if err != nil {
			return BrokerMessage{}, err
		}
		msg.ClientList = &m
	case VectorBrokerRequestDynamicUIDs:
		m, err := parseBrokerDynamicUIDRequestListBody(body, opts)
		if err != nil {
			return BrokerMessage{}, err
		}
		msg.DynamicUIDRequest = &m
	case VectorBrokerAssignedDynamicUIDs:
		m, err := parseBrokerDynamicUIDAssignedListBody(body, opts)
		if err != nil {
			return BrokerMessage{}, err
		}
		msg.DynamicUIDAssigned = &m
	case VectorBrokerFetchDynamicUIDList:
		m, err := parseBrokerFetchUIDRequestBody(body, opts)
		if err != nil {
			return BrokerMessage{}, err
		}
		msg.FetchUIDRequest = &m
	case VectorBrokerDisconnect:
		m, err := parseBrokerDisconnectBody(body)
		if err != nil {
			return BrokerMessage{}, err
		}
		msg.Disconnect = &m
	case VectorBrokerNull, VectorBrokerFetchClientList:
		// no payload to decode
	default:
		return BrokerMessage{}, newErr(ErrBadVector, "broker_pdu.vector")
	}
	return msg, nil
}

// --- Client Connect ---

// BrokerClientConnectMsg is the Broker Client Connect message (spec.md
// §4.A "Broker messages").
type BrokerClientConnectMsg struct {
	Scope        string
	E133Version  uint16
	SearchDomain string
	ConnectFlags uint8
	ClientEntry  ClientEntry
}

func SizeBrokerClientConnect(m BrokerClientConnectMsg) int {
	return brokerPDUHeaderSize + E133ScopeStringPaddedLength + 2 + E133DomainStringPaddedLength + 1 + sizeClientEntry(m.ClientEntry)
}

func PackBrokerClientConnect(buf []byte, m BrokerClientConnectMsg) (int, error) {
	total := SizeBrokerClientConnect(m)
	if len(buf) < total {
		return 0, newErr(ErrShortBuffer, "broker_client_connect")
	}
	putBrokerPDUHeader(buf, total, VectorBrokerConnect)
	off := brokerPDUHeaderSize
	putPaddedString(buf[off:off+E133ScopeStringPaddedLength], m.Scope)
	off += E133ScopeStringPaddedLength
	putUint16(buf[off:off+2], m.E133Version)
	off += 2
	putPaddedString(buf[off:off+E133DomainStringPaddedLength], m.SearchDomain)
	off += E133DomainStringPaddedLength
	buf[off] = m.ConnectFlags
	off++
	n, err := packClientEntry(buf[off:], m.ClientEntry)
	if err != nil {
		return 0, err
	}
	return off + n, nil
}

func parseBrokerClientConnectBody(body []byte) (BrokerClientConnectMsg, error) {
	want := E133ScopeStringPaddedLength + 2 + E133DomainStringPaddedLength + 1
	if len(body) < want {
		return BrokerClientConnectMsg{}, newErr(ErrShortBuffer, "broker_client_connect")
	}
	off := 0
	scope := getPaddedString(body[off : off+E133ScopeStringPaddedLength])
	off += E133ScopeStringPaddedLength
	version := getUint16(body[off : off+2])
	off += 2
	domain := getPaddedString(body[off : off+E133DomainStringPaddedLength])
	off += E133DomainStringPaddedLength
	flags := body[off]
	off++
	entry, _, err := parseClientEntry(body[off:])
	if err != nil {
		return BrokerClientConnectMsg{}, err
	}
	return BrokerClientConnectMsg{
		Scope:        scope,
		E133Version:  version,
		SearchDomain: domain,
		ConnectFlags: flags,
		ClientEntry:  entry,
	}, nil
}

// --- Connect Reply ---

// BrokerConnectReplyMsg is the Broker Connect Reply message.
type BrokerConnectReplyMsg struct {
	ConnectStatus uint16
	E133Version   uint16
	BrokerUID     UID
	ClientUID     UID
}

const brokerConnectReplyBodySize = 2 + 2 + 6 + 6

func SizeBrokerConnectReply() int { return brokerPDUHeaderSize + brokerConnectReplyBodySize }

func PackBrokerConnectReply(buf []byte, m BrokerConnectReplyMsg) (int, error) {
	total := SizeBrokerConnectReply()
	if len(buf) < total {
		return 0, newErr(ErrShortBuffer, "broker_connect_reply")
	}
	putBrokerPDUHeader(buf, total, VectorBrokerConnectReply)
	off := brokerPDUHeaderSize
	putUint16(buf[off:off+2], m.ConnectStatus)
	off += 2
	putUint16(buf[off:off+2], m.E133Version)
	off += 2
	putUID48(buf[off:off+6], m.BrokerUID)
	off += 6
	putUID48(buf[off:off+6], m.ClientUID)
	return total, nil
}

func parseBrokerConnectReplyBody(body []byte) (BrokerConnectReplyMsg, error) {
	if len(body) < brokerConnectReplyBodySize {
		return BrokerConnectReplyMsg{}, newErr(ErrShortBuffer, "broker_connect_reply")
	}
	return BrokerConnectReplyMsg{
		ConnectStatus: getUint16(body[0:2]),
		E133Version:   getUint16(body[2:4]),
		BrokerUID:     getUID48(body[4:10]),
		ClientUID:     getUID48(body[10:16]),
	}, nil
}

// --- Client Entry Update ---

// BrokerClientEntryUpdateMsg is the Broker Client Entry Update message.
type BrokerClientEntryUpdateMsg struct {
	ConnectFlags uint8
	ClientEntry  ClientEntry
}

func SizeBrokerClientEntryUpdate(m BrokerClientEntryUpdateMsg) int {
	return brokerPDUHeaderSize + 1 + sizeClientEntry(m.ClientEntry)
}

func PackBrokerClientEntryUpdate(buf []byte, m BrokerClientEntryUpdateMsg) (int, error) {
	total := SizeBrokerClientEntryUpdate(m)
	if len(buf) < total {
		return 0, newErr(ErrShortBuffer, "broker_client_entry_update")
	}
	putBrokerPDUHeader(buf, total, VectorBrokerClientEntryUpdate)
	off := brokerPDUHeaderSize
	buf[off] = m.ConnectFlags
	off++
	n, err := packClientEntry(buf[off:], m.ClientEntry)
	if err != nil {
		return 0, err
	}
	return off + n, nil
}

func parseBrokerClientEntryUpdateBody(body []byte) (BrokerClientEntryUpdateMsg, error) {
	if len(body) < 1 {
		return BrokerClientEntryUpdateMsg{}, newErr(ErrShortBuffer, "broker_client_entry_update")
	}
	flags := body[0]
	entry, _, err := parseClientEntry(body[1:])
	if err != nil {
		return BrokerClientEntryUpdateMsg{}, err
	}
	return BrokerClientEntryUpdateMsg{ConnectFlags: flags, ClientEntry: entry}, nil
}

// --- Client Redirect (v4/v6) ---

// BrokerClientRedirectMsg is the Broker Client Redirect message (used
// for both IPv4 and IPv6 variants).
type BrokerClientRedirectMsg struct {
	NewAddr netip.AddrPort
}

func sizeBrokerClientRedirect(isV6 bool) int {
	if isV6 {
		return brokerPDUHeaderSize + 16 + 2
	}
	return brokerPDUHeaderSize + 4 + 2
}

func PackBrokerClientRedirect(buf []byte, m BrokerClientRedirectMsg) (int, error) {
	isV6 := m.NewAddr.Addr().Is6() && !m.NewAddr.Addr().Is4In6()
	total := sizeBrokerClientRedirect(isV6)
	if len(buf) < total {
		return 0, newErr(ErrShortBuffer, "broker_client_redirect")
	}
	vector := VectorBrokerRedirectV4
	if isV6 {
		vector = VectorBrokerRedirectV6
	}
	putBrokerPDUHeader(buf, total, vector)
	off := brokerPDUHeaderSize
	if isV6 {
		b := m.NewAddr.Addr().As16()
		copy(buf[off:off+16], b[:])
		off += 16
	} else {
		b := m.NewAddr.Addr().As4()
		copy(buf[off:off+4], b[:])
		off += 4
	}
	putUint16(buf[off:off+2], m.NewAddr.Port())
	return total, nil
}

func parseBrokerClientRedirectBody(body []byte, isV6 bool) (BrokerClientRedirectMsg, error) {
	addrLen := 4
	if isV6 {
		addrLen = 16
	}
	if len(body) < addrLen+2 {
		return BrokerClientRedirectMsg{}, newErr(ErrShortBuffer, "broker_client_redirect")
	}
	var addr netip.Addr
	if isV6 {
		var b [16]byte
		copy(b[:], body[0:16])
		addr = netip.AddrFrom16(b)
	} else {
		var b [4]byte
		copy(b[:], body[0:4])
		addr = netip.AddrFrom4(b)
	}
	port := getUint16(body[addrLen : addrLen+2])
	return BrokerClientRedirectMsg{NewAddr: netip.AddrPortFrom(addr, port)}, nil
}

// --- Client List (Connected / Add / Remove / EntryChange) ---

// BrokerClientListMsg is a list of client entries, used by all four
// Client List variants (spec.md §4.A).
type BrokerClientListMsg struct {
	Entries    []ClientEntry
	MoreComing bool
}

func SizeBrokerClientList(entries []ClientEntry) int {
	n := brokerPDUHeaderSize
	for _, e := range entries {
		n += sizeClientEntry(e)
	}
	return n
}

// PackBrokerClientList serializes a Client List PDU with the given
// vector (one of VectorBrokerConnectedClientList, VectorBrokerClientAdd,
// VectorBrokerClientRemove, VectorBrokerClientEntryChange).
func PackBrokerClientList(buf []byte, vector uint16, entries []ClientEntry) (int, error) {
	total := SizeBrokerClientList(entries)
	if len(buf) < total {
		return 0, newErr(ErrShortBuffer, "broker_client_list")
	}
	putBrokerPDUHeader(buf, total, vector)
	off := brokerPDUHeaderSize
	for _, e := range entries {
		n, err := packClientEntry(buf[off:], e)
		if err != nil {
			return 0, err
		}
		off += n
	}
	return off, nil
}

func parseBrokerClientListBody(body []byte, opts ParseOptions) (BrokerClientListMsg, error) {
	var entries []ClientEntry
	for len(body) > 0 {
		if opts.MaxPartialListEntries > 0 && len(entries) >= opts.MaxPartialListEntries {
			return BrokerClientListMsg{Entries: entries, MoreComing: true}, nil
		}
		e, n, err := parseClientEntry(body)
		if err != nil {
			return BrokerClientListMsg{}, err
		}
		entries = append(entries, e)
		body = body[n:]
	}
	return BrokerClientListMsg{Entries: entries, MoreComing: false}, nil
}

// --- Request/Assigned Dynamic UIDs, Fetch Dynamic UID List ---

// BrokerDynamicUIDRequest pairs a manufacturer ID with a responder ID
// (RID) requesting dynamic UID assignment.
type BrokerDynamicUIDRequest struct {
	ManuID uint16
	RID    CID
}

type BrokerDynamicUIDRequestListMsg struct {
	Requests   []BrokerDynamicUIDRequest
	MoreComing bool
}

const dynamicUIDRequestSize = 2 + 16

func SizeBrokerDynamicUIDRequestList(reqs []BrokerDynamicUIDRequest) int {
	return brokerPDUHeaderSize + dynamicUIDRequestSize*len(reqs)
}

func PackBrokerDynamicUIDRequestList(buf []byte, reqs []BrokerDynamicUIDRequest) (int, error) {
	total := SizeBrokerDynamicUIDRequestList(reqs)
	if len(buf) < total {
		return 0, newErr(ErrShortBuffer, "broker_dynamic_uid_request_list")
	}
	putBrokerPDUHeader(buf, total, VectorBrokerRequestDynamicUIDs)
	off := brokerPDUHeaderSize
	for _, r := range reqs {
		putUint16(buf[off:off+2], r.ManuID)
		copy(buf[off+2:off+18], r.RID[:])
		off += dynamicUIDRequestSize
	}
	return total, nil
}

func parseBrokerDynamicUIDRequestListBody(body []byte, opts ParseOptions) (BrokerDynamicUIDRequestListMsg, error) {
	var reqs []BrokerDynamicUIDRequest
	for len(body) > 0 {
		if opts.MaxPartialListEntries > 0 && len(reqs) >= opts.MaxPartialListEntries {
			return BrokerDynamicUIDRequestListMsg{Requests: reqs, MoreComing: true}, nil
		}
		if len(body) < dynamicUIDRequestSize {
			return BrokerDynamicUIDRequestListMsg{}, newErr(ErrShortBuffer, "broker_dynamic_uid_request_list")
		}
		var r BrokerDynamicUIDRequest
		r.ManuID = getUint16(body[0:2])
		copy(r.RID[:], body[2:18])
		reqs = append(reqs, r)
		body = body[dynamicUIDRequestSize:]
	}
	return BrokerDynamicUIDRequestListMsg{Requests: reqs, MoreComing: false}, nil
}

// DynamicUIDMapping is one entry of an Assigned Dynamic UIDs response.
type DynamicUIDMapping struct {
	UID    UID
	RID    CID
	Status uint16
}

type BrokerDynamicUIDAssignedListMsg struct {
	Mappings   []DynamicUIDMapping
	MoreComing bool
}

const dynamicUIDMappingSize = 6 + 16 + 2

func SizeBrokerDynamicUIDAssignedList(m []DynamicUIDMapping) int {
	return brokerPDUHeaderSize + dynamicUIDMappingSize*len(m)
}

func PackBrokerDynamicUIDAssignedList(buf []byte, mappings []DynamicUIDMapping) (int, error) {
	total := SizeBrokerDynamicUIDAssignedList(mappings)
	if len(buf) < total {
		return 0, newErr(ErrShortBuffer, "broker_dynamic_uid_assigned_list")
	}
	putBrokerPDUHeader(buf, total, VectorBrokerAssignedDynamicUIDs)
	off := brokerPDUHeaderSize
	for _, m := range mappings {
		putUID48(buf[off:off+6], m.UID)
		copy(buf[off+6:off+22], m.RID[:])
		putUint16(buf[off+22:off+24], m.Status)
		off += dynamicUIDMappingSize
	}
	return total, nil
}

func parseBrokerDynamicUIDAssignedListBody(body []byte, opts ParseOptions) (BrokerDynamicUIDAssignedListMsg, error) {
	var mappings []DynamicUIDMapping
	for len(body) > 0 {
		if opts.MaxPartialListEntries > 0 && len(mappings) >= opts.MaxPartialListEntries {
			return BrokerDynamicUIDAssignedListMsg{Mappings: mappings, MoreComing: true}, nil
		}
		if len(body) < dynamicUIDMappingSize {
			return BrokerDynamicUIDAssignedListMsg{}, newErr(ErrShortBuffer, "broker_dynamic_uid_assigned_list")
		}
		var m DynamicUIDMapping
		m.UID = getUID48(body[0:6])
		copy(m.RID[:], body[6:22])
		m.Status = getUint16(body[22:24])
		mappings = append(mappings, m)
		body = body[dynamicUIDMappingSize:]
	}
	return BrokerDynamicUIDAssignedListMsg{Mappings: mappings, MoreComing: false}, nil
}

// BrokerFetchUIDRequestMsg requests the RID mappings for a list of
// dynamic UIDs.
type BrokerFetchUIDRequestMsg struct {
	UIDs       []UID
	MoreComing bool
}

func SizeBrokerFetchUIDRequest(uids []UID) int {
	return brokerPDUHeaderSize + 6*len(uids)
}

func PackBrokerFetchUIDRequest(buf []byte, uids []UID) (int, error) {
	total := SizeBrokerFetchUIDRequest(uids)
	if len(buf) < total {
		return 0, newErr(ErrShortBuffer, "broker_fetch_uid_request")
	}
	putBrokerPDUHeader(buf, total, VectorBrokerFetchDynamicUIDList)
	off := brokerPDUHeaderSize
	for _, u := range uids {
		putUID48(buf[off:off+6], u)
		off += 6
	}
	return total, nil
}

func parseBrokerFetchUIDRequestBody(body []byte, opts ParseOptions) (BrokerFetchUIDRequestMsg, error) {
	var uids []UID
	for len(body) > 0 {
		if opts.MaxPartialListEntries > 0 && len(uids) >= opts.MaxPartialListEntries {
			return BrokerFetchUIDRequestMsg{UIDs: uids, MoreComing: true}, nil
		}
		if len(body) < 6 {
			return BrokerFetchUIDRequestMsg{}, newErr(ErrShortBuffer, "broker_fetch_uid_request")
		}
		uids = append(uids, getUID48(body[0:6]))
		body = body[6:]
	}
	return BrokerFetchUIDRequestMsg{UIDs: uids, MoreComing: false}, nil
}

// --- Disconnect / Null ---

// BrokerDisconnectMsg is the Broker Disconnect message.
type BrokerDisconnectMsg struct {
	Reason uint16
}

func SizeBrokerDisconnect() int { return brokerPDUHeaderSize + 2 }

func PackBrokerDisconnect(buf []byte, m BrokerDisconnectMsg) (int, error) {
	total := SizeBrokerDisconnect()
	if len(buf) < total {
		return 0, newErr(ErrShortBuffer, "broker_disconnect")
	}
	putBrokerPDUHeader(buf, total, VectorBrokerDisconnect)
	putUint16(buf[brokerPDUHeaderSize:brokerPDUHeaderSize+2], m.Reason)
	return total, nil
}

func parseBrokerDisconnectBody(body []byte) (BrokerDisconnectMsg, error) {
	if len(body) < 2 {
		return BrokerDisconnectMsg{}, newErr(ErrShortBuffer, "broker_disconnect")
	}
	return BrokerDisconnectMsg{Reason: getUint16(body[0:2])}, nil
}

// SizeBrokerNull and PackBrokerNull pack the empty heartbeat message.
func SizeBrokerNull() int { return brokerPDUHeaderSize }

func PackBrokerNull(buf []byte) (int, error) {
	total := SizeBrokerNull()
	if len(buf) < total {
		return 0, newErr(ErrShortBuffer, "broker_null")
	}
	putBrokerPDUHeader(buf, total, VectorBrokerNull)
	return total, nil
}

// SizeBrokerFetchClientList and PackBrokerFetchClientList pack the
// empty Fetch Client List request.
func SizeBrokerFetchClientList() int { return brokerPDUHeaderSize }

func PackBrokerFetchClientList(buf []byte) (int, error) {
	total := SizeBrokerFetchClientList()
	if len(buf) < total {
		return 0, newErr(ErrShortBuffer, "broker_fetch_client_list")
	}
	putBrokerPDUHeader(buf, total, VectorBrokerFetchClientList)
	return total, nil
}
