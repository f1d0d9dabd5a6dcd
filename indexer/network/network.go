// Package network defines the Consensus Network contract (spec §6.2): the
// indexer core never speaks libp2p directly, it only consumes this
// interface plus the raw events and commands below. indexer/network/libp2p
// implements it against a real swarm; indexer/network/simnet implements it
// in-process for tests.
//
// Grounded on original_source/indexer/src/network/consensus_network.rs and
// indexer/src/network/event.rs.
package network

import (
	"context"

	"github.com/beaconindexer/indexer/indexer/beacon"
)

// RequestId discriminates the two kinds of outstanding RPC: a singleton
// range window, or a block-by-root lookup keyed by the root being sought.
type RequestId struct {
	Kind RequestIdKind
	Root beacon.Root
}

// RequestIdKind is the discriminant of RequestId.
type RequestIdKind int

const (
	// RangeRequestId identifies the single outstanding BlocksByRange call.
	RangeRequestId RequestIdKind = iota
	// BlockRequestId identifies a BlocksByRoot call for RequestId.Root.
	BlockRequestId
)

// RangeID returns the RequestId for the singleton range window.
func RangeID() RequestId { return RequestId{Kind: RangeRequestId} }

// BlockID returns the RequestId for a block-by-root lookup of root.
func BlockID(root beacon.Root) RequestId {
	return RequestId{Kind: BlockRequestId, Root: root}
}

// EventKind discriminates the raw events the network delivers.
type EventKind int

const (
	// PeerConnectedOutgoing fires when the local node dials and connects
	// a peer.
	PeerConnectedOutgoing EventKind = iota
	// PeerDisconnected fires when a peer connection closes, for any
	// reason.
	PeerDisconnected
	// RPCFailed fires when an outstanding request by RequestId timed out
	// or errored at the transport level.
	RPCFailed
	// ResponseReceived fires when a peer answers an outstanding request.
	ResponseReceived
	// RequestReceived fires when a peer sends this node a request; only
	// Status requests are expected and are auto-answered by the network
	// layer itself.
	RequestReceived
)

// Event is the raw, un-normalized network occurrence the event adapter
// (indexer/eventadapter) consumes and translates into semantic events.
type Event struct {
	Kind EventKind
	Peer beacon.PeerId
	ID   RequestId
	// Response is set when Kind is ResponseReceived. For a range request
	// only RangeBlock may be set; for a block-by-root request only
	// BlockByRoot may be set (see Response for what a nil field means).
	Response *Response
}

// Response carries the payload of a ResponseReceived event.
type Response struct {
	// RangeBlock is set for a single block delivered as part of a range
	// response; a nil RangeBlock on a range response signals "no more
	// blocks in this window" (spec §4.D "empty" response).
	RangeBlock *beacon.SignedBlock
	// BlockByRoot is set for a block-by-root response; nil means "not
	// found".
	BlockByRoot *beacon.SignedBlock
}

// RequestKind discriminates the RPCs the network can send.
type RequestKind int

const (
	// BlocksByRange asks for up to Count consecutive blocks starting at
	// StartSlot.
	BlocksByRange RequestKind = iota
	// BlocksByRoot asks for the blocks matching a set of roots.
	BlocksByRoot
	// Status is answered automatically by the network layer and is never
	// sent by the core.
	Status
)

// Request is a command to the network asking it to issue an RPC.
type Request struct {
	Kind      RequestKind
	StartSlot beacon.Slot
	Count     uint64
	Roots     []beacon.Root
}

// Network is the contract the indexing core depends on (spec §6.2). All
// methods must be safe to call from the dispatcher's single goroutine;
// implementations run their own I/O on separate goroutines and deliver
// results through Events().
type Network interface {
	// Events returns the channel of raw network occurrences.
	Events() <-chan Event

	// SendRequest issues request under id against peer.
	SendRequest(ctx context.Context, peer beacon.PeerId, id RequestId, request Request) error

	// ReportPeer tells the network layer peer misbehaved, for scoring
	// and eventual disconnection. reason is for logging only.
	ReportPeer(peer beacon.PeerId, reason string)

	// DialPeer attempts to connect to peer out of band, used for
	// boot-peer dialing at startup.
	DialPeer(ctx context.Context, peer beacon.PeerId) error

	// IsConnected reports whether peer currently has a live connection.
	IsConnected(peer beacon.PeerId) bool

	// ConnectedPeers lists every currently-connected peer.
	ConnectedPeers() []beacon.PeerId

	// Close tears down the network layer.
	Close() error
}
