// Package eventadapter translates raw network.Event occurrences into the
// core's semantic events (spec §4.G): the dispatcher never inspects a raw
// network.Event directly.
//
// Grounded on original_source/indexer/src/network/event_adapter.rs.
package eventadapter

import (
	"github.com/beaconindexer/indexer/indexer/beacon"
)

// Kind discriminates the semantic events the dispatcher consumes.
type Kind int

const (
	PeerConnected Kind = iota
	PeerDisconnected
	RangeRequestFailed
	BlockRequestFailed
	RangeRequestSucceeded
	NewBlock
	UnknownBlockRoot
	BlockRootFound
	BlockRootNotFound
)

// Event is a single semantic occurrence, carrying only the fields its Kind
// uses.
type Event struct {
	Kind  Kind
	Peer  beacon.PeerId
	Root  beacon.Root
	Slot  beacon.Slot
	State beacon.BlockState
}
