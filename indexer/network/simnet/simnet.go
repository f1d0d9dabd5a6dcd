// Package simnet is an in-process fake of the Consensus Network contract,
// used by tests that drive the dispatcher and state machine without a real
// libp2p swarm.
//
// Grounded on original_source/indexer/src/test_utils.rs and
// indexer/src/indexer/test_utils.rs, which likewise build a bare Stores /
// harness pair rather than a real network for unit tests.
package simnet

import (
	"context"
	"sync"

	"github.com/beaconindexer/indexer/indexer/beacon"
	"github.com/beaconindexer/indexer/indexer/network"
)

// SentRequest records a single SendRequest call, for test assertions.
type SentRequest struct {
	Peer    beacon.PeerId
	ID      network.RequestId
	Request network.Request
}

// Simnet is a scriptable, in-process Network implementation.
type Simnet struct {
	mu         sync.Mutex
	events     chan network.Event
	connected  map[beacon.PeerId]struct{}
	sent       []SentRequest
	reported   []beacon.PeerId
	closed     bool
}

// New returns an empty simnet with no connected peers.
func New() *Simnet {
	return &Simnet{
		events:    make(chan network.Event, 256),
		connected: make(map[beacon.PeerId]struct{}),
	}
}

// Events implements network.Network.
func (s *Simnet) Events() <-chan network.Event { return s.events }

// SendRequest implements network.Network by recording the call; tests
// drive the resulting response by calling Deliver* afterwards.
func (s *Simnet) SendRequest(_ context.Context, peer beacon.PeerId, id network.RequestId, req network.Request) error {
	s.mu.Lock()
	s.sent = append(s.sent, SentRequest{Peer: peer, ID: id, Request: req})
	s.mu.Unlock()
	return nil
}

// ReportPeer implements network.Network.
func (s *Simnet) ReportPeer(peer beacon.PeerId, _ string) {
	s.mu.Lock()
	s.reported = append(s.reported, peer)
	s.mu.Unlock()
}

// DialPeer implements network.Network by connecting the peer immediately.
func (s *Simnet) DialPeer(_ context.Context, peer beacon.PeerId) error {
	s.ConnectPeer(peer)
	return nil
}

// IsConnected implements network.Network.
func (s *Simnet) IsConnected(peer beacon.PeerId) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.connected[peer]
	return ok
}

// ConnectedPeers implements network.Network.
func (s *Simnet) ConnectedPeers() []beacon.PeerId {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]beacon.PeerId, 0, len(s.connected))
	for p := range s.connected {
		out = append(out, p)
	}
	return out
}

// Close implements network.Network.
func (s *Simnet) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		close(s.events)
		s.closed = true
	}
	return nil
}

// ConnectPeer marks peer connected and emits PeerConnectedOutgoing.
func (s *Simnet) ConnectPeer(peer beacon.PeerId) {
	s.mu.Lock()
	s.connected[peer] = struct{}{}
	s.mu.Unlock()
	s.events <- network.Event{Kind: network.PeerConnectedOutgoing, Peer: peer}
}

// DisconnectPeer marks peer disconnected and emits PeerDisconnected.
func (s *Simnet) DisconnectPeer(peer beacon.PeerId) {
	s.mu.Lock()
	delete(s.connected, peer)
	s.mu.Unlock()
	s.events <- network.Event{Kind: network.PeerDisconnected, Peer: peer}
}

// DeliverRangeBlock emits a ResponseReceived carrying a single in-range
// block.
func (s *Simnet) DeliverRangeBlock(peer beacon.PeerId, block *beacon.SignedBlock) {
	s.events <- network.Event{
		Kind: network.ResponseReceived,
		Peer: peer,
		ID:   network.RangeID(),
		Response: &network.Response{RangeBlock: block},
	}
}

// DeliverRangeEnd emits a ResponseReceived signaling the end of the
// current range window (no more blocks).
func (s *Simnet) DeliverRangeEnd(peer beacon.PeerId) {
	s.events <- network.Event{
		Kind:     network.ResponseReceived,
		Peer:     peer,
		ID:       network.RangeID(),
		Response: &network.Response{},
	}
}

// DeliverBlockByRoot emits a ResponseReceived for a block-by-root lookup;
// a nil block means "not found".
func (s *Simnet) DeliverBlockByRoot(peer beacon.PeerId, root beacon.Root, block *beacon.SignedBlock) {
	s.events <- network.Event{
		Kind: network.ResponseReceived,
		Peer: peer,
		ID:   network.BlockID(root),
		Response: &network.Response{BlockByRoot: block},
	}
}

// FailRequest emits an RPCFailed event for id against peer.
func (s *Simnet) FailRequest(peer beacon.PeerId, id network.RequestId) {
	s.events <- network.Event{Kind: network.RPCFailed, Peer: peer, ID: id}
}

// SentRequests returns every SendRequest call observed so far.
func (s *Simnet) SentRequests() []SentRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SentRequest, len(s.sent))
	copy(out, s.sent)
	return out
}

// ReportedPeers returns every peer passed to ReportPeer so far.
func (s *Simnet) ReportedPeers() []beacon.PeerId {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]beacon.PeerId, len(s.reported))
	copy(out, s.reported)
	return out
}

var _ network.Network = (*Simnet)(nil)
