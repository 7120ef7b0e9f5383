// Copyright 2025 UniRep Synchronizer
//
// Package store is the durable, transactional record set of spec.md §3:
// Epoch, GSTLeaf, GSTRoot, EpochKey, Attestation, Nullifier, Proof, and
// the singleton SynchronizerState cursor. Field layout and the
// db:/json: tag convention are grounded on pkg/database/types.go in the
// teacher repo; the Postgres access pattern (database/sql + lib/pq,
// embedded migrations) is grounded on pkg/database/client.go.
package store

import "time"

// Epoch mirrors spec.md's Epoch record: at most one unsealed epoch
// exists at any time (enforced by a partial unique index in the
// migration, not just application logic).
type Epoch struct {
	Number    uint64  `db:"number" json:"number"`
	Sealed    bool    `db:"sealed" json:"sealed"`
	EpochRoot *string `db:"epoch_root" json:"epoch_root,omitempty"` // decimal string, set once sealed
}

// GSTLeaf mirrors spec.md's GSTLeaf record. Index is dense and
// strictly increasing from 0 within each epoch.
type GSTLeaf struct {
	Epoch  uint64 `db:"epoch" json:"epoch"`
	Index  int64  `db:"index" json:"index"`
	Hash   string `db:"hash" json:"hash"`     // decimal string field element
	TxHash string `db:"tx_hash" json:"tx_hash"`
}

// GSTRoot mirrors spec.md's GSTRoot record — a membership test for any
// historic root a proof may reference.
type GSTRoot struct {
	Epoch     uint64    `db:"epoch" json:"epoch"`
	Root      string    `db:"root" json:"root"` // decimal string field element
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// EpochKey mirrors spec.md's EpochKey record, created lazily on first
// attestation.
type EpochKey struct {
	Epoch uint64 `db:"epoch" json:"epoch"`
	Key   string `db:"key" json:"key"` // decimal string, key < 2^epochTreeDepth
}

// Attestation mirrors spec.md's Attestation record. Index is the
// event's total order position (block, txIndex, logIndex encoded —
// see EncodeEventIndex); Valid is a tri-state: nil means "unset".
type Attestation struct {
	Epoch          uint64 `db:"epoch" json:"epoch"`
	EpochKey       string `db:"epoch_key" json:"epoch_key"`
	Index          int64  `db:"index" json:"index"`
	Attester       string `db:"attester" json:"attester"` // 0x-address
	ProofIndex     int64  `db:"proof_index" json:"proof_index"`
	FromProofIndex int64  `db:"from_proof_index" json:"from_proof_index"` // 0 means absent
	AttesterID     string `db:"attester_id" json:"attester_id"`           // decimal
	PosRep         string `db:"pos_rep" json:"pos_rep"`                   // decimal
	NegRep         string `db:"neg_rep" json:"neg_rep"`                   // decimal
	Graffiti       string `db:"graffiti" json:"graffiti"`                 // decimal
	SignUp         bool   `db:"sign_up" json:"sign_up"`
	Hash           string `db:"hash" json:"hash"` // decimal, H over the attestation fields
	Valid          *bool  `db:"valid" json:"valid,omitempty"`
}

// Nullifier mirrors spec.md's Nullifier record. Uniqueness across
// confirmed=true rows is the central invariant (enforced by a partial
// unique index on (nullifier) WHERE confirmed).
type Nullifier struct {
	Epoch     uint64 `db:"epoch" json:"epoch"`
	Nullifier string `db:"nullifier" json:"nullifier"` // decimal
	Confirmed bool   `db:"confirmed" json:"confirmed"`
}

// ProofEvent names the log topic a Proof record was created from —
// the "event" field of spec.md's Proof record.
type ProofEvent string

const (
	ProofEventSignUp                 ProofEvent = "IndexedUserSignUpProof"
	ProofEventReputation             ProofEvent = "IndexedReputationProof"
	ProofEventEpochKey               ProofEvent = "IndexedEpochKeyProof"
	ProofEventStartTransition        ProofEvent = "IndexedStartTransitionProof"
	ProofEventProcessAttestations    ProofEvent = "IndexedProcessedAttestationsProof"
	ProofEventUserStateTransition    ProofEvent = "IndexedUserStateTransitionProof"
)

// Proof mirrors spec.md's Proof record. Only the fields relevant to
// the event's circuit are populated; the rest stay zero-valued.
type Proof struct {
	Index   int64      `db:"index" json:"index"`
	Event   ProofEvent `db:"event" json:"event"`
	Epoch   *uint64    `db:"epoch" json:"epoch,omitempty"`

	PublicSignals []string `db:"public_signals" json:"public_signals"` // decimal strings, declaration order
	ProofBytes    []string `db:"proof" json:"proof"`                   // decimal strings

	Valid bool `db:"valid" json:"valid"`
	Spent bool `db:"spent" json:"spent"`

	// Circuit-specific auxiliary fields the UST validator chains on.
	BlindedUserState       *string `db:"blinded_user_state" json:"blinded_user_state,omitempty"`
	BlindedHashChain       *string `db:"blinded_hash_chain" json:"blinded_hash_chain,omitempty"`
	OutputBlindedUserState *string `db:"output_blinded_user_state" json:"output_blinded_user_state,omitempty"`
	InputBlindedUserState  *string `db:"input_blinded_user_state" json:"input_blinded_user_state,omitempty"`
	OutputBlindedHashChain *string `db:"output_blinded_hash_chain" json:"output_blinded_hash_chain,omitempty"`
	GlobalStateTree        *string `db:"global_state_tree" json:"global_state_tree,omitempty"`
	ProofIndexRecords      []int64 `db:"proof_index_records" json:"proof_index_records,omitempty"`
}

// SynchronizerState mirrors spec.md's singleton cursor record.
type SynchronizerState struct {
	LatestProcessedBlock            uint64 `db:"latest_processed_block" json:"latest_processed_block"`
	LatestProcessedTransactionIndex uint64 `db:"latest_processed_transaction_index" json:"latest_processed_transaction_index"`
	LatestProcessedEventIndex       uint64 `db:"latest_processed_event_index" json:"latest_processed_event_index"`
	LatestCompleteBlock             uint64 `db:"latest_complete_block" json:"latest_complete_block"`
}

// Cursor is the ordering tuple used throughout the ingestor —
// (block, txIndex, logIndex) — compared lexicographically per spec.md §4.3.
type Cursor struct {
	Block      uint64
	TxIndex    uint64
	EventIndex uint64 // log index within the transaction
}

// Less reports whether c sorts strictly before o under the tuple
// comparison spec.md §4.3 mandates.
func (c Cursor) Less(o Cursor) bool {
	if c.Block != o.Block {
		return c.Block < o.Block
	}
	if c.TxIndex != o.TxIndex {
		return c.TxIndex < o.TxIndex
	}
	return c.EventIndex < o.EventIndex
}

// FromSyncState extracts the cursor from the persisted singleton.
func FromSyncState(s SynchronizerState) Cursor {
	return Cursor{
		Block:      s.LatestProcessedBlock,
		TxIndex:    s.LatestProcessedTransactionIndex,
		EventIndex: s.LatestProcessedEventIndex,
	}
}

// EncodeEventIndex packs (blockNumber, txIndex, logIndex) into the
// single totally-ordered int64 used as Attestation.Index, per spec.md's
// "index is the event's position (blockNumber·txIndex·logIndex)".
// Packed big-endian-ordered so integer comparison matches tuple order:
// 28 bits block-within-range is insufficient for real chains, so this
// uses a wide packing (32 bits block, 16 bits tx index, 16 bits log
// index) that comfortably covers realistic per-block counts while
// keeping the total order property integer comparison requires.
func EncodeEventIndex(blockNumber, txIndex, logIndex uint64) int64 {
	return int64((blockNumber&0xFFFFFFFF)<<32 | (txIndex&0xFFFF)<<16 | (logIndex & 0xFFFF))
}
