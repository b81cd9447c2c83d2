// SPDX-License-Identifier: GPL-3.0-or-later

package rdmnet

import (
	"net/netip"

	"github.com/rdmnet-go/rdmnet/rdmwire"
)

// ScopeConfig configures one scope a [Client] subscribes to (spec.md
// §3 "Scope"). ID is the scope name string (truncated/padded to
// [rdmwire.E133ScopeStringPaddedLength] on the wire); if
// StaticBrokerAddr is the zero value the scope is dynamic and resolved
// through the client's [Discovery] adapter.
type ScopeConfig struct {
	ID               string
	StaticBrokerAddr netip.AddrPort
}

// NewScopeConfig returns a dynamic (discovery-resolved) [ScopeConfig]
// for the default scope ("default", spec.md §6).
func NewScopeConfig() ScopeConfig {
	return ScopeConfig{ID: rdmwire.E133DefaultScope}
}

// IsStatic reports whether the scope uses a statically configured
// broker address rather than discovery.
func (c ScopeConfig) IsStatic() bool {
	return c.StaticBrokerAddr.IsValid()
}

// ScopeState is the state of one scope entry (spec.md §3 "Scope entry
// state"). Transitions only happen under the owning [Client]'s lock.
type ScopeState int

const (
	ScopeStateInactive ScopeState = iota
	ScopeStateDiscovery
	ScopeStateConnecting
	ScopeStateConnected
	ScopeStateMarkedForDestruction
)

func (s ScopeState) String() string {
	switch s {
	case ScopeStateInactive:
		return "Inactive"
	case ScopeStateDiscovery:
		return "Discovery"
	case ScopeStateConnecting:
		return "Connecting"
	case ScopeStateConnected:
		return "Connected"
	case ScopeStateMarkedForDestruction:
		return "MarkedForDestruction"
	default:
		return "Unknown"
	}
}
