// Copyright 2025 UniRep Synchronizer
package ingestor

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Topic names the ten UniRep protocol event topics plus the one
// legacy attestation topic the filter union includes (spec.md §6:
// "the topic union is the 10 UniRep topics plus the one legacy
// attestation topic").
type Topic string

const (
	TopicUserSignedUp                    Topic = "UserSignedUp"
	TopicAttestationSubmitted            Topic = "AttestationSubmitted"
	TopicEpochEnded                      Topic = "EpochEnded"
	TopicIndexedEpochKeyProof            Topic = "IndexedEpochKeyProof"
	TopicIndexedReputationProof          Topic = "IndexedReputationProof"
	TopicIndexedUserSignUpProof          Topic = "IndexedUserSignUpProof"
	TopicIndexedStartTransitionProof     Topic = "IndexedStartTransitionProof"
	TopicIndexedProcessedAttestations    Topic = "IndexedProcessedAttestationsProof"
	TopicIndexedUserStateTransitionProof Topic = "IndexedUserStateTransitionProof"
	TopicNewGSTLeafInserted              Topic = "NewGSTLeafInserted"

	// TopicAttestationSubmittedLegacy is the pre-upgrade attestation
	// event, dispatched to the same handler as TopicAttestationSubmitted
	// per spec.md §4.3 ("both old and new topics dispatch identically;
	// the handler only branches on field layout, never treats the
	// legacy topic inside the handler" is a REDESIGN FLAG, resolved by
	// normalizing both into one Attestation decode function).
	TopicAttestationSubmittedLegacy Topic = "AttestationSubmittedLegacy"
)

// eventSignatures is the canonical Solidity event signature each topic
// hashes to. Declared separately from the hash table so the hash
// computation (crypto.Keccak256Hash, not sha256 — Ethereum log topics
// are always Keccak256 of the event signature) is auditable against
// the signature it is derived from.
var eventSignatures = map[Topic]string{
	TopicUserSignedUp:                    "UserSignedUp(uint256,uint256,uint256,uint256)",
	TopicAttestationSubmitted:            "AttestationSubmitted(uint256,uint256,address,uint256,uint256,uint256,uint256,uint256,bool)",
	TopicEpochEnded:                      "EpochEnded(uint256,address)",
	TopicIndexedEpochKeyProof:            "IndexedEpochKeyProof(uint256,uint256,address,uint256)",
	TopicIndexedReputationProof:          "IndexedReputationProof(uint256,uint256,address,uint256)",
	TopicIndexedUserSignUpProof:          "IndexedUserSignUpProof(uint256,uint256,address,uint256)",
	TopicIndexedStartTransitionProof:     "IndexedStartTransitionProof(uint256,uint256,uint256)",
	TopicIndexedProcessedAttestations:    "IndexedProcessedAttestationsProof(uint256,uint256)",
	TopicIndexedUserStateTransitionProof: "IndexedUserStateTransitionProof(uint256,uint256,address)",
	TopicNewGSTLeafInserted:              "NewGSTLeafInserted(uint256,uint256)",
	TopicAttestationSubmittedLegacy:      "AttestationSubmitted(uint256,uint256,address,uint256,uint256,uint256)",
}

// topicHashes and its inverse are built once at package init from
// eventSignatures, mirroring the teacher's init()-computed topic hash
// table in pkg/anchor/event_watcher.go.
var (
	topicHashes  = map[Topic]common.Hash{}
	hashToTopic  = map[common.Hash]Topic{}
)

func init() {
	for topic, sig := range eventSignatures {
		h := crypto.Keccak256Hash([]byte(sig))
		topicHashes[topic] = h
		hashToTopic[h] = topic
	}
}

// HashForTopic returns the Keccak256 topic hash for a known topic.
func HashForTopic(t Topic) (common.Hash, bool) {
	h, ok := topicHashes[t]
	return h, ok
}

// TopicForHash resolves a log's first topic hash back to a known
// Topic, or ok=false for any hash outside the filtered union (which
// should not occur given the filter's topic list, but is checked
// defensively by the handler preamble per spec.md's UnknownEventTopic).
func TopicForHash(h common.Hash) (Topic, bool) {
	t, ok := hashToTopic[h]
	return t, ok
}

// FilterTopics returns the full 11-hash union the chain query filters
// on: the 10 UniRep topics plus the one legacy attestation topic.
func FilterTopics() []common.Hash {
	out := make([]common.Hash, 0, len(topicHashes))
	for _, h := range topicHashes {
		out = append(out, h)
	}
	return out
}
