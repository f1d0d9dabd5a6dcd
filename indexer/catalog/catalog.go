// Package catalog implements the resumable catalogs (spec §4.J): on
// startup, hydrate the block-by-root request table and the peer
// registry's good-peer set from disk; on shutdown, flush both back.
//
// Grounded on original_source/indexer/src/db/block_by_root_requests.rs
// and peer_db.rs, whose Rust constructors read every on-disk record back
// into memory the same way on process start.
package catalog

import (
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/beaconindexer/indexer/indexer/beacon"
	"github.com/beaconindexer/indexer/indexer/persist/models"
	"github.com/beaconindexer/indexer/indexer/store/blockrequests"
	"github.com/beaconindexer/indexer/indexer/store/peerregistry"
	"github.com/beaconindexer/indexer/shared/fileutil"
	"github.com/beaconindexer/indexer/shared/persistable"
)

const (
	blockRequestsDir     = "block_requests"
	goodPeersDir         = "good_peers"
	stateSnapshotRelPath = "state.msg"
)

// EnsureLayout creates every directory the on-disk layout (spec §3)
// requires before any write, including one epochs/s/<field> directory
// per sorted field.
func EnsureLayout(baseDir string, sortedFields []string) error {
	dirs := []string{
		"blocks", "blocks/e", "blocks/a", "blocks/c", "blocks/v", "blocks/root",
		"epochs", "epochs/e",
		blockRequestsDir, goodPeersDir, "validators",
	}
	for _, field := range sortedFields {
		dirs = append(dirs, filepath.Join("epochs", "s", field))
	}
	for _, d := range dirs {
		if err := fileutil.MkdirAll(filepath.Join(baseDir, d)); err != nil {
			return errors.Wrapf(err, "could not create %s", d)
		}
	}
	return nil
}

// HydrateBlockRequests loads every block_requests/<hex-root>.msg record and
// returns the table contents with every state coerced to AwaitingPeer
// (spec §4.C: "on startup, the table is rehydrated (all states coerced to
// AwaitingPeer)"), ready for blockrequests.Table.Restore.
func HydrateBlockRequests(baseDir string) (map[beacon.Root]*blockrequests.Attempt, error) {
	out := make(map[beacon.Root]*blockrequests.Attempt)
	names, err := listMsgFiles(filepath.Join(baseDir, blockRequestsDir))
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		var m models.BlockRequestModel
		relPath := filepath.Join(blockRequestsDir, name+".msg")
		if err := persistable.Read(baseDir, relPath, &m); err != nil {
			return nil, errors.Wrapf(err, "could not read block request %s", name)
		}
		root, err := decodeRoot(m.Root)
		if err != nil {
			return nil, err
		}
		a := &blockrequests.Attempt{
			PossibleSlots:   make(map[beacon.Slot]struct{}, len(m.PossibleSlots)),
			RequestingPeers: make(map[beacon.PeerId]struct{}),
			State:           blockrequests.AwaitingPeer,
			FailedCount:     m.FailedCount,
			NotFoundCount:   m.NotFoundCount,
		}
		for _, s := range m.PossibleSlots {
			a.PossibleSlots[beacon.Slot(s)] = struct{}{}
		}
		out[root] = a
	}
	return out, nil
}

// FlushBlockRequests snapshots every attempt in table to disk.
func FlushBlockRequests(baseDir string, table *blockrequests.Table) error {
	for root, a := range table.Snapshot() {
		if err := persistBlockRequest(baseDir, root, a); err != nil {
			return err
		}
	}
	return nil
}

// PersistFoundBlockRequest writes the snapshot for a single root, used by
// the dispatcher on every transition to Found (spec §4.C) in addition to
// the full flush on shutdown.
func PersistFoundBlockRequest(baseDir string, root beacon.Root, a blockrequests.Attempt) error {
	return persistBlockRequest(baseDir, root, a)
}

func persistBlockRequest(baseDir string, root beacon.Root, a blockrequests.Attempt) error {
	m := models.BlockRequestModel{
		Root:          models.HexRoot(root),
		PossibleSlots: make([]uint64, 0, len(a.PossibleSlots)),
		FailedCount:   a.FailedCount,
		NotFoundCount: a.NotFoundCount,
	}
	for s := range a.PossibleSlots {
		m.PossibleSlots = append(m.PossibleSlots, uint64(s))
	}
	if a.FoundBy != nil {
		m.FoundBy = string(*a.FoundBy)
	}
	return errors.Wrapf(persistable.Write(baseDir, m), "could not persist block request %s", m.Root)
}

// HydrateGoodPeers loads every good_peers/<peer-id>.msg record into a seed
// set for peerregistry.New.
func HydrateGoodPeers(baseDir string) (map[beacon.PeerId]struct{}, error) {
	out := make(map[beacon.PeerId]struct{})
	names, err := listMsgFiles(filepath.Join(baseDir, goodPeersDir))
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		var m models.GoodPeerModel
		relPath := filepath.Join(goodPeersDir, name+".msg")
		if err := persistable.Read(baseDir, relPath, &m); err != nil {
			return nil, errors.Wrapf(err, "could not read good peer %s", name)
		}
		out[beacon.PeerId(m.PeerId)] = struct{}{}
	}
	return out, nil
}

// FlushGoodPeers snapshots every good peer in registry to disk.
func FlushGoodPeers(baseDir string, registry *peerregistry.Registry) error {
	for _, p := range registry.Snapshot() {
		if err := PersistGoodPeer(baseDir, p); err != nil {
			return err
		}
	}
	return nil
}

// PersistGoodPeer writes a single good_peers/<peer-id>.msg record, used by
// the dispatcher the moment a peer is first marked good (spec §4.B).
func PersistGoodPeer(baseDir string, p beacon.PeerId) error {
	m := models.GoodPeerModel{PeerId: string(p)}
	return errors.Wrapf(persistable.Write(baseDir, m), "could not persist good peer %s", p)
}

// PersistStateSnapshot writes the state machine's serialized beacon state,
// called by the dispatcher once per completed epoch (spec §6.4 restart
// resumability) so a restart can pick up from the last persisted epoch
// instead of re-deriving genesis state.
func PersistStateSnapshot(baseDir string, data []byte) error {
	return errors.Wrap(persistable.WriteRaw(baseDir, stateSnapshotRelPath, data), "could not persist state snapshot")
}

// HydrateStateSnapshot reads back the bytes PersistStateSnapshot wrote.
// ok is false on a first-ever run, when no snapshot has been written yet.
func HydrateStateSnapshot(baseDir string) (data []byte, ok bool, err error) {
	if !persistable.Exists(baseDir, stateSnapshotRelPath) {
		return nil, false, nil
	}
	if err := persistable.Read(baseDir, stateSnapshotRelPath, &data); err != nil {
		return nil, false, errors.Wrap(err, "could not read state snapshot")
	}
	return data, true, nil
}

// HydrateResumeEpoch returns the next epoch number the accumulator should
// treat as its watermark: one past the last epoch epochs/meta.msg recorded
// as persisted. ok is false on a first-ever run.
func HydrateResumeEpoch(baseDir string) (epoch beacon.Epoch, ok bool, err error) {
	if !persistable.Exists(baseDir, models.EpochsMeta{}.RelPath()) {
		return 0, false, nil
	}
	var m models.EpochsMeta
	if err := persistable.Read(baseDir, models.EpochsMeta{}.RelPath(), &m); err != nil {
		return 0, false, errors.Wrap(err, "could not read epochs meta")
	}
	return beacon.Epoch(m.Count), true, nil
}

func decodeRoot(s string) (beacon.Root, error) {
	var root beacon.Root
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(root) {
		return root, errors.Errorf("invalid root %q", s)
	}
	copy(root[:], b)
	return root, nil
}

// listMsgFiles returns the base names (without .msg) of every record file
// directly inside dir. A missing directory yields an empty list, not an
// error, so a first-ever run hydrates cleanly.
func listMsgFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "could not list %s", dir)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		names = append(names, name[:len(name)-len(filepath.Ext(name))])
	}
	return names, nil
}
