// SPDX-License-Identifier: GPL-3.0-or-later

package rdmnet

import "github.com/rdmnet-go/rdmnet/rdmwire"

// UID is the 48-bit RDM device identifier (spec.md §3): a 16-bit
// manufacturer ID and a 32-bit device ID. The root package reuses the
// wire codec's representation directly since no higher-level semantics
// are layered on top of it.
type UID = rdmwire.UID

// Well-known broadcast UIDs (spec.md §6).
var (
	RPTAllControllersUID = UID{Manu: rdmwire.RPTAllControllersManu, ID: rdmwire.RPTAllControllersID}
	RPTAllDevicesUID      = UID{Manu: rdmwire.RPTAllDevicesManu, ID: rdmwire.RPTAllDevicesID}
)

// RPTManufacturerBroadcastUID returns the manufacturer-broadcast value
// FFFD:mmmm:FFFF for the given manufacturer ID.
func RPTManufacturerBroadcastUID(manu uint16) UID {
	return rdmwire.ManufacturerBroadcastUID(manu)
}

// DynamicUIDRequestUID returns the "please assign" marker UID for a
// given manufacturer: the manufacturer's high bit set, id == 0
// (spec.md §3 "dynamic-UID request").
func DynamicUIDRequestUID(manu uint16) UID {
	return UID{Manu: manu | 0x8000, ID: 0}
}
