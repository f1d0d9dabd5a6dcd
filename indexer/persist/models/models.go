// Package models defines the on-disk record shapes written under the
// content-addressed flat-file layout (spec §3). Every type here implements
// persistable.Path so shared/persistable can encode and place it without
// any type-specific plumbing elsewhere.
//
// Grounded on original_source/indexer/src/types/*.rs and
// indexer/src/persisting_path.rs (one PersistingPath impl per on-disk
// shape).
package models

import (
	"encoding/hex"
	"fmt"

	"github.com/beaconindexer/indexer/indexer/beacon"
)

// BlockModel is blocks/<slot>.msg: the minimal fields a reader needs to
// page through the canonical chain.
type BlockModel struct {
	Slot     uint64
	Status   string
	Proposer uint64
}

func (m BlockModel) RelPath() string { return fmt.Sprintf("blocks/%d.msg", m.Slot) }

// BlockExtendedModel is blocks/e/<slot>.msg: fields too large or too
// rarely read to belong in the base record, including the lazily-updated
// VotesCount (spec's supplemented "votes-count extended field").
type BlockExtendedModel struct {
	Slot       uint64
	Root       string
	ParentRoot string
	VotesCount int
}

func (m BlockExtendedModel) RelPath() string { return fmt.Sprintf("blocks/e/%d.msg", m.Slot) }

// AttestationModel is one entry of blocks/a/<slot>.msg.
type AttestationModel struct {
	CommitteeIndex  uint64
	BeaconBlockRoot string
	SourceEpoch     uint64
	TargetEpoch     uint64
}

// AttestationsModel is blocks/a/<slot>.msg: every attestation included in
// the block at Slot, sorted by committee index then block order (spec
// P6's replay-idempotence requirement).
type AttestationsModel struct {
	Slot         uint64
	Attestations []AttestationModel
}

func (m AttestationsModel) RelPath() string { return fmt.Sprintf("blocks/a/%d.msg", m.Slot) }

// CommitteesModel is blocks/c/<slot>.msg: the committee assignments active
// at Slot.
type CommitteesModel struct {
	Slot       uint64
	Committees [][]uint64
}

func (m CommitteesModel) RelPath() string { return fmt.Sprintf("blocks/c/%d.msg", m.Slot) }

// VoteModel is one attestation's vote data, as accumulated into
// blocks/v/<slot>.msg keyed by the *voted-for* slot, not the including
// block's slot.
type VoteModel struct {
	CommitteeIndex  uint64
	BeaconBlockRoot string
	SourceEpoch     uint64
	TargetEpoch     uint64
}

// VotesModel is blocks/v/<slot>.msg.
type VotesModel struct {
	Slot  uint64
	Votes []VoteModel
}

func (m VotesModel) RelPath() string { return fmt.Sprintf("blocks/v/%d.msg", m.Slot) }

// BlockRootModel is blocks/root/<hex-root>.msg: the root->slot mapping
// that lets a reader resolve an attestation's beacon_block_root.
type BlockRootModel struct {
	Root string
	Slot uint64
}

func (m BlockRootModel) RelPath() string { return fmt.Sprintf("blocks/root/%s.msg", m.Root) }

// HexRoot renders root the way every *Model.Root field above stores it.
func HexRoot(root beacon.Root) string { return hex.EncodeToString(root[:]) }

// BlocksMeta is blocks/meta.msg: the running count of persisted blocks.
type BlocksMeta struct {
	Count uint64
}

func (m BlocksMeta) RelPath() string { return "blocks/meta.msg" }

// EpochModel is epochs/<epoch>.msg.
type EpochModel struct {
	Epoch                   uint64
	AggregatedParticipation float64
}

func (m EpochModel) RelPath() string { return fmt.Sprintf("epochs/%d.msg", m.Epoch) }

// EpochExtendedModel is epochs/e/<epoch>.msg.
type EpochExtendedModel struct {
	Epoch             uint64
	AttestationsCount uint64
	DepositsCount     uint64
	ValidatorBalances []uint64
}

func (m EpochExtendedModel) RelPath() string { return fmt.Sprintf("epochs/e/%d.msg", m.Epoch) }

// EpochsMeta is epochs/meta.msg.
type EpochsMeta struct {
	Count uint64
}

func (m EpochsMeta) RelPath() string { return "epochs/meta.msg" }

// SortIndexPage is epochs/s/<field>/<page>.msg: one page of the sorted-id
// index for a given field (10 ids per page, spec's "SUPPLEMENTED
// FEATURES" sort-index pages).
type SortIndexPage struct {
	Field string
	Page  uint64
	Ids   []uint64
}

func (m SortIndexPage) RelPath() string {
	return fmt.Sprintf("epochs/s/%s/%d.msg", m.Field, m.Page)
}

// BlockRequestModel is block_requests/<hex-root>.msg: a snapshot of one
// RequestAttempt for the resumable catalog.
type BlockRequestModel struct {
	Root           string
	PossibleSlots  []uint64
	FoundBy        string
	FailedCount    uint64
	NotFoundCount  uint64
}

func (m BlockRequestModel) RelPath() string {
	return fmt.Sprintf("block_requests/%s.msg", m.Root)
}

// GoodPeerModel is good_peers/<peer-id>.msg.
type GoodPeerModel struct {
	PeerId string
}

func (m GoodPeerModel) RelPath() string { return fmt.Sprintf("good_peers/%s.msg", m.PeerId) }
