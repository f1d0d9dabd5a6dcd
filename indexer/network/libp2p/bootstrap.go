package libp2p

import (
	"context"

	"github.com/libp2p/go-libp2p-core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/pkg/errors"
)

// DialBootAddrs connects to every bootstrap peer given as a full libp2p
// multiaddr (".../p2p/<peer-id>"). The spec's boot-ENR flag is accepted in
// this simplified form rather than decoded from an ENR record: decoding
// discv5 ENRs requires a discovery stack this indexer doesn't otherwise
// need, since it never needs to discover new peers beyond the ones it is
// told about (see DESIGN.md).
func (h *Host) DialBootAddrs(ctx context.Context, addrs []string) error {
	for _, raw := range addrs {
		addr, err := ma.NewMultiaddr(raw)
		if err != nil {
			return errors.Wrapf(err, "invalid boot peer address %q", raw)
		}
		info, err := peer.AddrInfoFromP2pAddr(addr)
		if err != nil {
			return errors.Wrapf(err, "could not parse peer info from %q", raw)
		}
		h.h.Peerstore().AddAddrs(info.ID, info.Addrs, peer.PermanentAddrTTL)
		if err := h.h.Connect(ctx, *info); err != nil {
			log.WithError(err).WithField("peer", info.ID).Warn("could not connect to boot peer")
			continue
		}
	}
	return nil
}
