// SPDX-License-Identifier: GPL-3.0-or-later

package rdmnet

import (
	"github.com/google/uuid"

	"github.com/rdmnet-go/rdmnet/rdmwire"
	"github.com/rdmnet-go/rdmnet/runtimex"
)

// CID is the 128-bit component identifier carried in every root-layer
// PDU (spec.md §3), persistent across reconnects for a given component.
type CID = rdmwire.CID

// NewCID returns a new random [CID] (UUIDv4), suitable for a component
// that does not persist its identity across process restarts.
//
// This function panics if the system random number generator fails,
// which should only happen under extraordinary circumstances.
func NewCID() CID {
	return runtimex.PanicOnError1(uuid.NewRandom())
}

// ParseCID parses the canonical hyphenated UUID text form into a [CID].
func ParseCID(s string) (CID, error) {
	return uuid.Parse(s)
}

// LLRPBroadcastCID is the well-known CID addressed by an LLRP Probe
// Request that targets every listening component (spec.md §6).
var LLRPBroadcastCID = uuid.MustParse(rdmwire.LLRPBroadcastCID)
