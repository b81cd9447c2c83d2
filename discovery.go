// SPDX-License-Identifier: GPL-3.0-or-later

package rdmnet

import "net/netip"

// DiscoveryHandle identifies one outstanding monitor-scope or
// register-broker operation with a [Discovery] adapter.
type DiscoveryHandle int

// ListenAddr is one listen address of a discovered broker, carrying the
// owning network interface index so the client/scope manager can prefer
// an interface-local route (spec.md §3 "Discovered broker record").
type ListenAddr struct {
	Addr        netip.Addr
	NetintIndex int
}

// DiscoveredBroker is one broker record surfaced by a [Discovery]
// adapter (spec.md §3, §6 "Discovered broker record").
type DiscoveredBroker struct {
	CID                CID
	ServiceInstance    string
	UID                UID
	E133Version        uint16
	Port               uint16
	ListenAddrs        []ListenAddr
	Scope              string
	Model              string
	Manufacturer       string
	AdditionalTXTItems map[string]string
}

// RegisterBrokerInfo is what the local broker publishes via
// [Discovery.RegisterBroker].
type RegisterBrokerInfo struct {
	CID                CID
	ServiceInstance    string
	UID                UID
	Port               uint16
	Scope              string
	Model              string
	Manufacturer       string
	AdditionalTXTItems map[string]string
}

// DiscoveryCallbacks receives events from a [Discovery] adapter. The
// core never re-enters the adapter from within a callback (spec.md
// §4.H).
type DiscoveryCallbacks interface {
	BrokerFound(h DiscoveryHandle, info DiscoveredBroker)
	BrokerUpdated(h DiscoveryHandle, info DiscoveredBroker)
	BrokerLost(h DiscoveryHandle, scope, serviceInstance string)
	BrokerRegistered(h DiscoveryHandle)
	BrokerRegisterFailed(h DiscoveryHandle, err error)
	OtherBrokerFound(h DiscoveryHandle, info DiscoveredBroker)
	OtherBrokerLost(h DiscoveryHandle, scope, serviceInstance string)
}

// Discovery is the external-facing mDNS/DNS-SD collaborator (spec.md §1
// "Deliberately out of scope", §4.H). The [Client] invokes only
// StartMonitoring and StopMonitoring (this package never calls
// RegisterBroker) and expects callbacks on the [DiscoveryCallbacks] the
// adapter was constructed with; it never assumes anything about the
// backend (Bonjour, Avahi, an in-tree mDNS responder).
type Discovery interface {
	// StartMonitoring begins watching scope/domain for broker
	// advertisements, returning a handle used to correlate callbacks
	// and to later call StopMonitoring.
	StartMonitoring(scope, domain string) (DiscoveryHandle, error)

	// StopMonitoring stops watching a previously monitored scope.
	StopMonitoring(h DiscoveryHandle)

	// RegisterBroker advertises a locally running broker.
	RegisterBroker(info RegisterBrokerInfo) (DiscoveryHandle, error)
}
