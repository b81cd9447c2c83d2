// SPDX-License-Identifier: GPL-3.0-or-later

package rdmwire

// EPTSubProtocol identifies one manufacturer-defined EPT sub-protocol
// supported by an EPT client entry.
type EPTSubProtocol struct {
	Manufacturer uint16
	ProtocolID   uint16
}

// RPTClientEntryData is the RPT-specific portion of a ClientEntry.
type RPTClientEntryData struct {
	UID        UID
	ClientType uint16 // RPTClientTypeDevice or RPTClientTypeController
	BindingCID CID
}

// EPTClientEntryData is the EPT-specific portion of a ClientEntry.
type EPTClientEntryData struct {
	SubProtocols []EPTSubProtocol
}

// ClientEntry is the Client Entry structure embedded in Broker Client
// Connect, Client Entry Update, and Client List messages. Exactly one of
// RPT or EPT is populated, selected by ClientProtocol.
type ClientEntry struct {
	CID            CID
	ClientProtocol uint32
	RPT            *RPTClientEntryData
	EPT            *EPTClientEntryData
}

const clientEntryHeaderSize = 16 + 4 // CID + client_protocol

func sizeClientEntry(e ClientEntry) int {
	n := clientEntryHeaderSize
	switch e.ClientProtocol {
	case ClientProtocolRPT:
		n += 6 + 2 + 16 // UID + client type + binding CID
	case ClientProtocolEPT:
		n += 2 + 4*len(e.EPT.SubProtocols)
	}
	return n
}

func packClientEntry(buf []byte, e ClientEntry) (int, error) {
	n := sizeClientEntry(e)
	if len(buf) < n {
		return 0, newErr(ErrShortBuffer, "client_entry")
	}
	copy(buf[0:16], e.CID[:])
	putUint32(buf[16:20], e.ClientProtocol)
	off := clientEntryHeaderSize
	switch e.ClientProtocol {
	case ClientProtocolRPT:
		if e.RPT == nil {
			return 0, newErr(ErrBadLength, "client_entry.rpt")
		}
		putUID48(buf[off:off+6], e.RPT.UID)
		off += 6
		putUint16(buf[off:off+2], e.RPT.ClientType)
		off += 2
		copy(buf[off:off+16], e.RPT.BindingCID[:])
		off += 16
	case ClientProtocolEPT:
		if e.EPT == nil {
			return 0, newErr(ErrBadLength, "client_entry.ept")
		}
		putUint16(buf[off:off+2], uint16(len(e.EPT.SubProtocols)))
		off += 2
		for _, sp := range e.EPT.SubProtocols {
			putUint16(buf[off:off+2], sp.Manufacturer)
			off += 2
			putUint16(buf[off:off+2], sp.ProtocolID)
			off += 2
		}
	default:
		return 0, newErr(ErrBadVector, "client_entry.client_protocol")
	}
	return off, nil
}

func parseClientEntry(data []byte) (ClientEntry, int, error) {
	if len(data) < clientEntryHeaderSize {
		return ClientEntry{}, 0, newErr(ErrShortBuffer, "client_entry")
	}
	var e ClientEntry
	copy(e.CID[:], data[0:16])
	e.ClientProtocol = getUint32(data[16:20])
	off := clientEntryHeaderSize
	switch e.ClientProtocol {
	case ClientProtocolRPT:
		if len(data) < off+24 {
			return ClientEntry{}, 0, newErr(ErrShortBuffer, "client_entry.rpt")
		}
		var rpt RPTClientEntryData
		rpt.UID = getUID48(data[off : off+6])
		off += 6
		rpt.ClientType = getUint16(data[off : off+2])
		off += 2
		copy(rpt.BindingCID[:], data[off:off+16])
		off += 16
		e.RPT = &rpt
	case ClientProtocolEPT:
		if len(data) < off+2 {
			return ClientEntry{}, 0, newErr(ErrShortBuffer, "client_entry.ept")
		}
		count := int(getUint16(data[off : off+2]))
		off += 2
		if len(data) < off+4*count {
			return ClientEntry{}, 0, newErr(ErrShortBuffer, "client_entry.ept.sub_protocols")
		}
		subs := make([]EPTSubProtocol, count)
		for i := range subs {
			subs[i].Manufacturer = getUint16(data[off : off+2])
			off += 2
			subs[i].ProtocolID = getUint16(data[off : off+2])
			off += 2
		}
		e.EPT = &EPTClientEntryData{SubProtocols: subs}
	default:
		return ClientEntry{}, 0, newErr(ErrBadVector, "client_entry.client_protocol")
	}
	return e, off, nil
}
