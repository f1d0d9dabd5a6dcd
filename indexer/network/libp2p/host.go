// Package libp2p implements the Consensus Network contract (indexer/network)
// against a real libp2p swarm: TCP transport, Noise security, stream-based
// request/response for the three RPC kinds, and per-peer leaky-bucket rate
// limiting on outbound requests.
//
// Grounded on the teacher's go.mod third-party stack and on
// BitFlexFinTech-prysm's beacon-chain/sync/initial-sync/blocks_fetcher.go
// (rate limiter pattern, peer locks) plus
// original_source/indexer/src/network/consensus_network.rs (the bridging
// of libp2p's own event stream into the core's NetworkEvent enum and the
// auto-answering of Status requests).
package libp2p

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/kevinms/leakybucket-go"
	libp2p "github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p-core/host"
	"github.com/libp2p/go-libp2p-core/network"
	"github.com/libp2p/go-libp2p-core/peer"
	noise "github.com/libp2p/go-libp2p-noise"
	tcp "github.com/libp2p/go-tcp-transport"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/beaconindexer/indexer/indexer/beacon"
	idxnet "github.com/beaconindexer/indexer/indexer/network"
)

var log = logrus.WithField("prefix", "network/libp2p")

const (
	// rangeProtocol carries BlocksByRange requests.
	rangeProtocol = "/beaconindexer/blocks_by_range/1"
	// rootProtocol carries BlocksByRoot requests.
	rootProtocol = "/beaconindexer/blocks_by_root/1"
	// statusProtocol is answered automatically with a zero-valued
	// response (spec §6.2).
	statusProtocol = "/beaconindexer/status/1"

	// requestsPerSecondPerPeer bounds outbound RPCs to a single peer.
	requestsPerSecondPerPeer = 5
	// rpcTimeout is the default wall timeout applied to every RPC
	// (spec §6.2).
	rpcTimeout = 60 * time.Second
)

// Host wraps a libp2p host.Host into the indexer/network.Network contract.
type Host struct {
	h          host.Host
	forkDigest [4]byte

	events chan idxnet.Event

	mu          sync.Mutex
	rateLimits  map[peer.ID]*leakybucket.Collector
	connected   map[peer.ID]struct{}

	closeOnce sync.Once
}

// New builds and starts listening a libp2p host on the given TCP port,
// wired with Noise security and registered stream handlers for all three
// protocols.
func New(ctx context.Context, port int, forkDigest [4]byte) (*Host, error) {
	listenAddr, err := ma.NewMultiaddr("/ip4/0.0.0.0/tcp/" + strconv.Itoa(port))
	if err != nil {
		return nil, errors.Wrap(err, "could not build listen multiaddr")
	}

	h, err := libp2p.New(
		libp2p.ListenAddrs(listenAddr),
		libp2p.Transport(tcp.NewTCPTransport),
		libp2p.Security(noise.ID, noise.New),
	)
	if err != nil {
		return nil, errors.Wrap(err, "could not construct libp2p host")
	}

	host := &Host{
		h:          h,
		forkDigest: forkDigest,
		events:     make(chan idxnet.Event, 256),
		rateLimits: make(map[peer.ID]*leakybucket.Collector),
		connected:  make(map[peer.ID]struct{}),
	}

	h.SetStreamHandler(statusProtocol, host.handleStatus)
	h.SetStreamHandler(rangeProtocol, host.handleIncomingRange)
	h.SetStreamHandler(rootProtocol, host.handleIncomingRoot)
	h.Network().Notify(host.notifiee())

	return host, nil
}

// Events implements network.Network.
func (h *Host) Events() <-chan idxnet.Event { return h.events }

// IsConnected implements network.Network.
func (h *Host) IsConnected(p beacon.PeerId) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.connected[p]
	return ok
}

// ConnectedPeers implements network.Network.
func (h *Host) ConnectedPeers() []beacon.PeerId {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]beacon.PeerId, 0, len(h.connected))
	for p := range h.connected {
		out = append(out, p)
	}
	return out
}

// DialPeer implements network.Network by connecting to an already-known
// peer in the host's peerstore (boot addresses are parsed as multiaddrs
// and added to the peerstore at startup, by DialBootAddrs).
func (h *Host) DialPeer(ctx context.Context, p beacon.PeerId) error {
	ctx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()
	return h.h.Connect(ctx, h.h.Peerstore().PeerInfo(p))
}

// ReportPeer implements network.Network by disconnecting the peer; a
// fuller peer-scoring system is out of scope for this indexer, which never
// needs to out-live a single bad response from any one peer.
func (h *Host) ReportPeer(p beacon.PeerId, reason string) {
	log.WithFields(logrus.Fields{"peer": p, "reason": reason}).Warn("reporting peer")
	for _, c := range h.h.Network().ConnsToPeer(p) {
		_ = c.Close()
	}
}

// Close implements network.Network.
func (h *Host) Close() error {
	var err error
	h.closeOnce.Do(func() {
		err = h.h.Close()
		close(h.events)
	})
	return err
}

func (h *Host) limiterFor(p peer.ID) *leakybucket.Collector {
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.rateLimits[p]
	if !ok {
		l = leakybucket.NewCollector(requestsPerSecondPerPeer, requestsPerSecondPerPeer, false)
		h.rateLimits[p] = l
	}
	return l
}

var _ idxnet.Network = (*Host)(nil)

