// Package peerregistry layers a persistent "good peer" set over the
// Consensus Network's live connection view (spec §4.B). A peer becomes
// good the first time it serves a successful block-by-root response; good
// status is persisted across restarts so reconnecting peers are
// immediately eligible for block-by-root fan-out.
//
// Grounded on original_source/indexer/src/db/peer_db.rs, stripped of the
// lighthouse_network NetworkGlobals/RwLock plumbing: the connected-peer
// view here is supplied by the network.Network contract (indexer/network)
// rather than embedded directly, keeping this package free of a libp2p
// import.
package peerregistry

import (
	"sync"

	"github.com/beaconindexer/indexer/indexer/beacon"
)

// ConnectedPeers is the minimal live-connection view the registry needs;
// indexer/network.Network satisfies it.
type ConnectedPeers interface {
	IsConnected(beacon.PeerId) bool
	ConnectedPeers() []beacon.PeerId
}

// Registry tracks which peers have ever proven useful (served a
// block-by-root response) and exposes them filtered by current connection
// status.
type Registry struct {
	mu        sync.Mutex
	goodPeers map[beacon.PeerId]struct{}
	network   ConnectedPeers
}

// New returns a registry seeded with an already-hydrated good-peer set
// (e.g. loaded by the catalog on startup) and backed by network for
// liveness.
func New(network ConnectedPeers, seed map[beacon.PeerId]struct{}) *Registry {
	if seed == nil {
		seed = make(map[beacon.PeerId]struct{})
	}
	return &Registry{goodPeers: seed, network: network}
}

// IsGoodPeer reports whether p has ever served a successful block-by-root
// response.
func (r *Registry) IsGoodPeer(p beacon.PeerId) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.goodPeers[p]
	return ok
}

// AddGoodPeer records p as good. Returns true the first time p is added.
func (r *Registry) AddGoodPeer(p beacon.PeerId) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.goodPeers[p]; ok {
		return false
	}
	r.goodPeers[p] = struct{}{}
	return true
}

// BestConnectedPeer returns any currently-connected peer, preferring a
// good one, or the zero PeerId and false if none is connected. The
// original's scoring (best_by_status) is collapsed to "prefer good,
// otherwise any" since peer scoring itself lives in the Consensus Network
// contract, not this table.
func (r *Registry) BestConnectedPeer() (beacon.PeerId, bool) {
	connected := r.network.ConnectedPeers()
	if len(connected) == 0 {
		return beacon.PeerId(""), false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range connected {
		if _, good := r.goodPeers[p]; good {
			return p, true
		}
	}
	return connected[0], true
}

// ConnectedGoodPeers returns every good peer that is currently connected,
// the set fanned out to for a newly-unknown block root (spec §4.H,
// UnknownBlockRoot handling).
func (r *Registry) ConnectedGoodPeers() []beacon.PeerId {
	r.mu.Lock()
	good := make(map[beacon.PeerId]struct{}, len(r.goodPeers))
	for p := range r.goodPeers {
		good[p] = struct{}{}
	}
	r.mu.Unlock()

	var out []beacon.PeerId
	for _, p := range r.network.ConnectedPeers() {
		if _, ok := good[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Snapshot returns every good peer, for persistence.
func (r *Registry) Snapshot() []beacon.PeerId {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]beacon.PeerId, 0, len(r.goodPeers))
	for p := range r.goodPeers {
		out = append(out, p)
	}
	return out
}
