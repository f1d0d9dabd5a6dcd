// Package rangerequest drives the single outstanding block-range window
// (spec §4.D). Only one BlocksByRange request is ever in flight; the
// driver tags it with a typed, monotonically-increasing nonce. The nonce
// is not carried by the network request or its responses, so responses
// are never checked against it: the dispatcher accepts a range response
// for the current window when it comes from the peer that owns the
// window (MatchesPeer).
//
// Grounded on
// original_source/indexer/src/db/block_range_request_state.rs.
package rangerequest

import (
	"sync"

	"github.com/beaconindexer/indexer/indexer/beacon"
)

// Kind is the driver's coarse state.
type Kind int

const (
	// Idle means no window is outstanding and none is being awaited.
	Idle Kind = iota
	// AwaitingPeer means a window is wanted but no peer is available to
	// serve it yet.
	AwaitingPeer
	// Requesting means a window is outstanding against a specific peer
	// under a specific nonce.
	Requesting
)

// State is an immutable snapshot of the driver at a point in time.
type State struct {
	Kind  Kind
	Nonce uint64
	Peer  beacon.PeerId
}

// Driver owns the single in-flight range request window. All mutation must
// come from the dispatcher (spec §5 rule 1); the mutex exists so tests can
// exercise it without separately re-deriving thread safety.
type Driver struct {
	mu    sync.Mutex
	state State
	nonce uint64
}

// New returns a driver in the Idle state with nonce 0.
func New() *Driver {
	return &Driver{}
}

// Snapshot returns the current state.
func (d *Driver) Snapshot() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// MatchesNonce reports whether nonce is the nonce of the current
// Requesting window; false in any other state.
func (d *Driver) MatchesNonce(nonce uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.Kind == Requesting && d.state.Nonce == nonce
}

// MatchesPeer reports whether p owns the current Requesting window.
func (d *Driver) MatchesPeer(p beacon.PeerId) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.Kind == Requesting && d.state.Peer == p
}

// NextNonce allocates and returns the next nonce without changing state;
// callers use it to label the request they are about to send before
// calling RequestWithPeer.
func (d *Driver) NextNonce() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nonce++
	return d.nonce
}

// RequestWithPeer transitions Idle or AwaitingPeer into Requesting(nonce,
// peer). If already Requesting, it leaves the state untouched and
// reports whether nonce matches the in-flight one (mirrors the source's
// request_peer_if_possible, which is idempotent against the same window).
func (d *Driver) RequestWithPeer(nonce uint64, p beacon.PeerId) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state.Kind == Requesting {
		return d.state.Nonce == nonce
	}
	d.state = State{Kind: Requesting, Nonce: nonce, Peer: p}
	return true
}

// SetIdle collapses the driver back to Idle, used when a window completes
// (empty range response) and the next window should be requested fresh.
func (d *Driver) SetIdle() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = State{Kind: Idle}
}

// SetAwaitingPeer collapses the driver to AwaitingPeer, used when the
// owning peer disconnects or an RPC failure leaves no peer to retry
// against immediately.
func (d *Driver) SetAwaitingPeer() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = State{Kind: AwaitingPeer}
}
