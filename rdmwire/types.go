// SPDX-License-Identifier: GPL-3.0-or-later

package rdmwire

import (
	"github.com/google/uuid"
)

// CID is the 128-bit component identifier carried in every root-layer
// PDU. It is a thin alias over [uuid.UUID] so the wire codec and the
// root package share one representation.
type CID = uuid.UUID

// UID is the 48-bit RDM device identifier: a 16-bit manufacturer ID and
// a 32-bit device ID (spec.md §3).
type UID struct {
	Manu uint16
	ID   uint32
}

// IsStatic reports whether u is a statically assigned UID (manufacturer
// high bit clear).
func (u UID) IsStatic() bool {
	return u.Manu&0x8000 == 0
}

// IsDynamicRequest reports whether u is the "please assign" marker: the
// manufacturer high bit set and id == 0.
func (u UID) IsDynamicRequest() bool {
	return u.Manu&0x8000 != 0 && u.ID == 0
}

// IsBroadcast reports whether u is one of the reserved broadcast values.
func (u UID) IsBroadcast() bool {
	switch {
	case u.Manu == RPTAllControllersManu && u.ID == RPTAllControllersID:
		return true
	case u.Manu == RPTAllDevicesManu && u.ID == RPTAllDevicesID:
		return true
	case u.Manu == RPTAllDevicesManu && u.ID&0xFFFF == RPTManufacturerBcastID:
		// Manufacturer-broadcast FFFD:mmmm:FFFF for any manufacturer
		// mmmm (see ManufacturerBroadcastUID).
		return true
	}
	return false
}

// ManufacturerBroadcastUID returns the manufacturer-broadcast value
// FFFD:mmmm:FFFF for the given manufacturer.
func ManufacturerBroadcastUID(manu uint16) UID {
	return UID{Manu: RPTAllDevicesManu, ID: uint32(manu)<<16 | 0xFFFF}
}

// Matches reports whether u (a concrete peer UID) satisfies the
// broadcast/filter semantics of want: a broadcast want value matches any
// peer UID of the appropriate class; otherwise exact field equality.
func (want UID) Matches(u UID) bool {
	switch {
	case want.Manu == RPTAllControllersManu && want.ID == RPTAllControllersID:
		return true
	case want.Manu == RPTAllDevicesManu && want.ID == RPTAllDevicesID:
		return true
	case want.Manu == RPTAllDevicesManu && want.ID&0xFFFF == 0xFFFF && want.ID>>16 == uint32(u.Manu):
		return true
	default:
		return want == u
	}
}

func (u UID) String() string {
	return uidString(u.Manu, u.ID)
}

func uidString(manu uint16, id uint32) string {
	buf := make([]byte, 0, 13)
	buf = appendHex16(buf, manu)
	buf = append(buf, ':')
	buf = appendHex32(buf, id)
	return string(buf)
}

func appendHex16(buf []byte, v uint16) []byte {
	const hex = "0123456789abcdef"
	for shift := 12; shift >= 0; shift -= 4 {
		buf = append(buf, hex[(v>>uint(shift))&0xF])
	}
	return buf
}

func appendHex32(buf []byte, v uint32) []byte {
	const hex = "0123456789abcdef"
	for shift := 28; shift >= 0; shift -= 4 {
		buf = append(buf, hex[(v>>uint(shift))&0xF])
	}
	return buf
}

// putUID48 writes u in the 6-byte wire form (2-byte manu + 4-byte id).
func putUID48(buf []byte, u UID) {
	buf[0] = byte(u.Manu >> 8)
	buf[1] = byte(u.Manu)
	buf[2] = byte(u.ID >> 24)
	buf[3] = byte(u.ID >> 16)
	buf[4] = byte(u.ID >> 8)
	buf[5] = byte(u.ID)
}

// getUID48 reads the 6-byte wire form.
func getUID48(buf []byte) UID {
	return UID{
		Manu: uint16(buf[0])<<8 | uint16(buf[1]),
		ID:   uint32(buf[2])<<24 | uint32(buf[3])<<16 | uint32(buf[4])<<8 | uint32(buf[5]),
	}
}

// putPaddedString writes s into buf (which must be exactly the target
// padded size), truncating or zero-padding as needed.
func putPaddedString(buf []byte, s string) {
	n := copy(buf, s)
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
}

// getPaddedString reads a NUL-terminated (or full-length) string out of
// a fixed-size padded field.
func getPaddedString(buf []byte) string {
	for i, b := range buf {
		if b == 0 {
			return string(buf[:i])
		}
	}
	return string(buf)
}
