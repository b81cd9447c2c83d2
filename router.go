// SPDX-License-Identifier: GPL-3.0-or-later

package rdmnet

import (
	"net/netip"

	"github.com/rdmnet-go/rdmnet/rdmwire"
)

// ResponseAction is how the application (or an internally-handled PID)
// wants the router to reply to one inbound RDM command (spec.md §4.F
// "synchronous response channel").
type ResponseAction int

const (
	ResponseNoSend ResponseAction = iota
	ResponseSendAck
	ResponseSendNack
	ResponseRetryLater
)

// AppResponse is what a [RPTCommandHandler] returns for one inbound RDM
// command addressed to the NULL endpoint.
type AppResponse struct {
	Action     ResponseAction
	NackReason uint16
	AckData    []byte // parameter data for a SendAck response
}

// RPTCommandHandler is the application's synchronous RDM command
// callback, invoked by [*Router.Dispatch] for every inbound command the
// router does not handle internally (spec.md §4.F).
type RPTCommandHandler interface {
	HandleRPTCommand(h ScopeHandle, cmd rdmwire.RDMPacket, isResponseToMe bool) AppResponse
}

// TCPCommsEntry is one row of a TCP_COMMS_STATUS GET reply: one active
// scope's current broker address and health counter (spec.md §4.F).
type TCPCommsEntry struct {
	ScopeID             string
	BrokerV4            netip.Addr
	BrokerV6            netip.Addr
	Port                uint16
	UnhealthyTCPCounter uint16
}

// routerHost is the narrow slice of [*Client] that [*Router] needs to
// answer the internally-handled PIDs (TCP_COMMS_STATUS, COMPONENT_SCOPE,
// SEARCH_DOMAIN — SPEC_FULL.md §3 item 2) without the router owning the
// scope table itself.
type routerHost interface {
	myUID(h ScopeHandle) (UID, bool)
	scopeConfig(h ScopeHandle) (ScopeConfig, bool)
	searchDomain() string
	tcpCommsStatus() []TCPCommsEntry
	clearUnhealthyCounter(scopeID string) bool
	changeScopeByRDM(h ScopeHandle, newScope string) error
	changeSearchDomainByRDM(newDomain string) error
}

// Router classifies inbound RPT notifications, reassembles ACK_OVERFLOW
// chains, and answers the three router-internal RDM PIDs without
// application involvement (spec.md §4.F).
type Router struct {
	Host    routerHost
	Handler RPTCommandHandler
	Logger  SLogger
}

// NewRouter constructs a [*Router].
func NewRouter(host routerHost, handler RPTCommandHandler, logger SLogger) *Router {
	return &Router{Host: host, Handler: handler, Logger: logger}
}

// DispatchResult carries zero or more fully packed RPT Notification PDUs
// ready to hand to [*Conn.Send], plus the reassembled commands delivered
// to the application for observability/logging.
type DispatchResult struct {
	Notifications [][]byte
	Delivered     []rdmwire.RDMPacket
}

const nullEndpoint = 0x0000

// Dispatch processes one parsed [rdmwire.RPTMessage] for scope h,
// reassembling ACK_OVERFLOW chains (item 1), normalizing response types
// (item 2), and answering TCP_COMMS_STATUS/COMPONENT_SCOPE/SEARCH_DOMAIN
// internally (item 3) before any other command reaches the application.
func (r *Router) Dispatch(h ScopeHandle, msg *rdmwire.RPTMessage) DispatchResult {
	var result DispatchResult
	if msg.Vector != rdmwire.VectorRPTRequest && msg.Vector != rdmwire.VectorRPTNotification {
		return result
	}
	myUID, _ := r.Host.myUID(h)
	cmds := reassembleRDMResponses(msg.RDMBufs)
	for _, cmd := range cmds {
		isResponseToMe := cmd.DestUID.Matches(myUID)
		if msg.Header.DestEndpointID == nullEndpoint {
			if notif, handled := r.handleInternal(h, cmd); handled {
				if notif != nil {
					result.Notifications = append(result.Notifications, notif)
				}
				result.Delivered = append(result.Delivered, cmd)
				continue
			}
		}
		result.Delivered = append(result.Delivered, cmd)
		if r.Handler == nil {
			continue
		}
		resp := r.Handler.HandleRPTCommand(h, cmd, isResponseToMe)
		notif := r.packAppResponse(msg.Header, myUID, cmd, resp)
		if notif != nil {
			result.Notifications = append(result.Notifications, notif)
		}
	}
	return result
}

// reassembleRDMResponses merges a run of consecutive AckOverflow
// responses sharing the same source/dest UID and parameter ID into one
// logical response, concatenating their parameter data and normalizing
// the final response's type to Ack (spec.md §4.F items 1-2).
func reassembleRDMResponses(bufs []rdmwire.RDMPacket) []rdmwire.RDMPacket {
	var out []rdmwire.RDMPacket
	i := 0
	for i < len(bufs) {
		cur := bufs[i]
		if cur.ResponseType != rdmwire.RDMResponseTypeAckOverflow {
			out = append(out, cur)
			i++
			continue
		}
		merged := cur
		merged.ParamData = append([]byte(nil), cur.ParamData...)
		j := i + 1
		for j < len(bufs) &&
			bufs[j].SrcUID == cur.SrcUID && bufs[j].DestUID == cur.DestUID && bufs[j].ParamID == cur.ParamID {
			merged.ParamData = append(merged.ParamData, bufs[j].ParamData...)
			if bufs[j].ResponseType != rdmwire.RDMResponseTypeAckOverflow {
				j++
				break
			}
			j++
		}
		merged.ResponseType = rdmwire.RDMResponseTypeAck
		out = append(out, merged)
		i = j
	}
	return out
}

// handleInternal answers TCP_COMMS_STATUS, COMPONENT_SCOPE, and
// SEARCH_DOMAIN without involving the application (SPEC_FULL.md §3 item
// 2, §4.F item 3). handled is false for every other PID.
func (r *Router) handleInternal(h ScopeHandle, cmd rdmwire.RDMPacket) (notif []byte, handled bool) {
	switch cmd.ParamID {
	case rdmwire.PIDTCPCommsStatus:
		return r.handleTCPCommsStatus(h, cmd), true
	case rdmwire.PIDComponentScope:
		return r.handleComponentScope(h, cmd), true
	case rdmwire.PIDSearchDomain:
		return r.handleSearchDomain(h, cmd), true
	default:
		return nil, false
	}
}

func (r *Router) handleTCPCommsStatus(h ScopeHandle, cmd rdmwire.RDMPacket) []byte {
	switch cmd.CommandClass {
	case rdmwire.RDMCCGetCommand:
		entries := r.Host.tcpCommsStatus()
		var data []byte
		for _, e := range entries {
			data = append(data, packTCPCommsEntry(e)...)
		}
		return r.ackNotification(h, cmd, data)
	case rdmwire.RDMCCSetCommand:
		scope, ok := parsePaddedASCII(cmd.ParamData, rdmwire.E133ScopeStringPaddedLength)
		if !ok {
			return r.nackNotification(h, cmd, rdmwire.NRFormatError)
		}
		if !r.Host.clearUnhealthyCounter(scope) {
			return r.nackNotification(h, cmd, rdmwire.NRUnknownScope)
		}
		return r.ackNotification(h, cmd, nil)
	default:
		return r.nackNotification(h, cmd, rdmwire.NRUnsupportedCommandClass)
	}
}

func (r *Router) handleComponentScope(h ScopeHandle, cmd rdmwire.RDMPacket) []byte {
	switch cmd.CommandClass {
	case rdmwire.RDMCCGetCommand:
		cfg, ok := r.Host.scopeConfig(h)
		if !ok {
			return r.nackNotification(h, cmd, rdmwire.NRUnknownScope)
		}
		return r.ackNotification(h, cmd, packComponentScope(cfg))
	case rdmwire.RDMCCSetCommand:
		scope, ok := parsePaddedASCII(cmd.ParamData, rdmwire.E133ScopeStringPaddedLength)
		if !ok {
			return r.nackNotification(h, cmd, rdmwire.NRFormatError)
		}
		if err := r.Host.changeScopeByRDM(h, scope); err != nil {
			return r.nackNotification(h, cmd, rdmwire.NRDataOutOfRange)
		}
		return r.ackNotification(h, cmd, nil)
	default:
		return r.nackNotification(h, cmd, rdmwire.NRUnsupportedCommandClass)
	}
}

func (r *Router) handleSearchDomain(h ScopeHandle, cmd rdmwire.RDMPacket) []byte {
	switch cmd.CommandClass {
	case rdmwire.RDMCCGetCommand:
		domain := r.Host.searchDomain()
		buf := make([]byte, rdmwire.E133DomainStringPaddedLength)
		copy(buf, domain)
		return r.ackNotification(h, cmd, buf)
	case rdmwire.RDMCCSetCommand:
		domain, ok := parsePaddedASCII(cmd.ParamData, rdmwire.E133DomainStringPaddedLength)
		if !ok {
			return r.nackNotification(h, cmd, rdmwire.NRFormatError)
		}
		if err := r.Host.changeSearchDomainByRDM(domain); err != nil {
			return r.nackNotification(h, cmd, rdmwire.NRDataOutOfRange)
		}
		return r.ackNotification(h, cmd, nil)
	default:
		return r.nackNotification(h, cmd, rdmwire.NRUnsupportedCommandClass)
	}
}

func (r *Router) ackNotification(h ScopeHandle, cmd rdmwire.RDMPacket, data []byte) []byte {
	myUID, _ := r.Host.myUID(h)
	resp := rdmwire.RDMPacket{
		DestUID:           cmd.SrcUID,
		SrcUID:            myUID,
		TransactionNumber: cmd.TransactionNumber,
		ResponseType:      rdmwire.RDMResponseTypeAck,
		CommandClass:      ccResponseFor(cmd.CommandClass),
		ParamID:           cmd.ParamID,
		ParamData:         data,
	}
	header := rdmwire.RPTHeader{SourceUID: myUID, DestUID: cmd.SrcUID, DestEndpointID: nullEndpoint}
	buf := make([]byte, rdmwire.SizeRPTNotification([]rdmwire.RDMPacket{resp}))
	if _, err := rdmwire.PackRPTNotification(buf, header, []rdmwire.RDMPacket{resp}); err != nil {
		return nil
	}
	return buf
}

func (r *Router) nackNotification(h ScopeHandle, cmd rdmwire.RDMPacket, reason uint16) []byte {
	myUID, _ := r.Host.myUID(h)
	resp := rdmwire.RDMPacket{
		DestUID:           cmd.SrcUID,
		SrcUID:            myUID,
		TransactionNumber: cmd.TransactionNumber,
		ResponseType:      rdmwire.RDMResponseTypeNackReason,
		CommandClass:      ccResponseFor(cmd.CommandClass),
		ParamID:           cmd.ParamID,
		ParamData:         rdmwire.PackNackParamData(reason),
	}
	header := rdmwire.RPTHeader{SourceUID: myUID, DestUID: cmd.SrcUID, DestEndpointID: nullEndpoint}
	buf := make([]byte, rdmwire.SizeRPTNotification([]rdmwire.RDMPacket{resp}))
	if _, err := rdmwire.PackRPTNotification(buf, header, []rdmwire.RDMPacket{resp}); err != nil {
		return nil
	}
	return buf
}

// packAppResponse packs the notification corresponding to an
// application-chosen [AppResponse] for one delivered command.
func (r *Router) packAppResponse(inHeader rdmwire.RPTHeader, myUID UID, cmd rdmwire.RDMPacket, resp AppResponse) []byte {
	var rdmResp rdmwire.RDMPacket
	switch resp.Action {
	case ResponseSendAck:
		rdmResp = rdmwire.RDMPacket{
			DestUID: cmd.SrcUID, SrcUID: myUID, TransactionNumber: cmd.TransactionNumber,
			ResponseType: rdmwire.RDMResponseTypeAck, CommandClass: ccResponseFor(cmd.CommandClass),
			ParamID: cmd.ParamID, ParamData: resp.AckData,
		}
	case ResponseSendNack:
		rdmResp = rdmwire.RDMPacket{
			DestUID: cmd.SrcUID, SrcUID: myUID, TransactionNumber: cmd.TransactionNumber,
			ResponseType: rdmwire.RDMResponseTypeNackReason, CommandClass: ccResponseFor(cmd.CommandClass),
			ParamID: cmd.ParamID, ParamData: rdmwire.PackNackParamData(resp.NackReason),
		}
	default: // ResponseNoSend, ResponseRetryLater: the application owns the retry path
		return nil
	}
	header := rdmwire.RPTHeader{SourceUID: myUID, DestUID: cmd.SrcUID, DestEndpointID: inHeader.SourceEndpointID}
	buf := make([]byte, rdmwire.SizeRPTNotification([]rdmwire.RDMPacket{rdmResp}))
	if _, err := rdmwire.PackRPTNotification(buf, header, []rdmwire.RDMPacket{rdmResp}); err != nil {
		return nil
	}
	return buf
}

func ccResponseFor(cc uint8) uint8 {
	switch cc {
	case rdmwire.RDMCCGetCommand:
		return rdmwire.RDMCCGetCommandResponse
	case rdmwire.RDMCCSetCommand:
		return rdmwire.RDMCCSetCommandResponse
	default:
		return cc
	}
}

// addrBytes4 and addrBytes16 tolerate the zero [netip.Addr] a scope
// reports before it has ever connected (As4/As16 panic on it).
func addrBytes4(a netip.Addr) [4]byte {
	if !a.IsValid() || (!a.Is4() && !a.Is4In6()) {
		return [4]byte{}
	}
	return a.As4()
}

func addrBytes16(a netip.Addr) [16]byte {
	if !a.IsValid() {
		return [16]byte{}
	}
	return a.As16()
}

func packTCPCommsEntry(e TCPCommsEntry) []byte {
	buf := make([]byte, rdmwire.E133ScopeStringPaddedLength+4+16+2+1)
	off := 0
	copy(buf[off:off+rdmwire.E133ScopeStringPaddedLength], e.ScopeID)
	off += rdmwire.E133ScopeStringPaddedLength
	v4 := addrBytes4(e.BrokerV4)
	copy(buf[off:off+4], v4[:])
	off += 4
	v6 := addrBytes16(e.BrokerV6)
	copy(buf[off:off+16], v6[:])
	off += 16
	buf[off] = byte(e.Port >> 8)
	buf[off+1] = byte(e.Port)
	off += 2
	counter := e.UnhealthyTCPCounter
	if counter > 0xFF {
		counter = 0xFF
	}
	buf[off] = byte(counter)
	return buf
}

func packComponentScope(cfg ScopeConfig) []byte {
	buf := make([]byte, rdmwire.E133ScopeStringPaddedLength+1)
	copy(buf, cfg.ID)
	if cfg.IsStatic() {
		buf[rdmwire.E133ScopeStringPaddedLength] = 1
	}
	return buf
}

// parsePaddedASCII extracts a NUL-terminated-or-padded ASCII string from
// a fixed-width field, as used by COMPONENT_SCOPE/SEARCH_DOMAIN/
// TCP_COMMS_STATUS SET parameter data.
func parsePaddedASCII(data []byte, width int) (string, bool) {
	if len(data) < width {
		return "", false
	}
	field := data[:width]
	n := len(field)
	for n > 0 && field[n-1] == 0 {
		n--
	}
	return string(field[:n]), true
}
