package libp2p

import (
	corenet "github.com/libp2p/go-libp2p-core/network"

	idxnet "github.com/beaconindexer/indexer/indexer/network"
)

// notifiee bridges libp2p's connection notifications into the Consensus
// Network's PeerConnectedOutgoing / PeerDisconnected events.
func (h *Host) notifiee() *corenet.NotifyBundle {
	return &corenet.NotifyBundle{
		ConnectedF: func(_ corenet.Network, conn corenet.Conn) {
			p := conn.RemotePeer()
			if conn.Stat().Direction != corenet.DirOutbound {
				return
			}
			h.mu.Lock()
			h.connected[p] = struct{}{}
			h.mu.Unlock()
			h.events <- idxnet.Event{Kind: idxnet.PeerConnectedOutgoing, Peer: p}
		},
		DisconnectedF: func(_ corenet.Network, conn corenet.Conn) {
			p := conn.RemotePeer()
			h.mu.Lock()
			delete(h.connected, p)
			delete(h.rateLimits, p)
			h.mu.Unlock()
			h.events <- idxnet.Event{Kind: idxnet.PeerDisconnected, Peer: p}
		},
	}
}
