// Copyright 2025 UniRep Synchronizer
package handler

import (
	"database/sql"
	"errors"
	"math/big"

	"github.com/unirep/synchronizer/pkg/chainerr"
	"github.com/unirep/synchronizer/pkg/field"
	"github.com/unirep/synchronizer/pkg/ingestor"
	"github.com/unirep/synchronizer/pkg/store"
)

// decodedAttestation is the topic-normalized view of an
// AttestationSubmitted log: the legacy topic carries no fromProofIndex
// word, the current topic does. Both decode into this one shape so
// the handler below never branches on topic again (spec.md §4.3's
// resolved REDESIGN FLAG).
type decodedAttestation struct {
	epoch          uint64
	epochKey       *big.Int
	attester       *big.Int
	proofIndex     int64
	fromProofIndex int64
	posRep         *big.Int
	negRep         *big.Int
	graffiti       *big.Int
	signUp         bool
}

func decodeAttestationSubmitted(topic ingestor.Topic, l logData) (decodedAttestation, error) {
	legacy := topic == ingestor.TopicAttestationSubmittedLegacy
	n := 9
	if legacy {
		n = 8
	}
	values, err := decodeUint256Data(l.Data, n)
	if err != nil {
		return decodedAttestation{}, err
	}

	d := decodedAttestation{
		epoch:      values[0].Uint64(),
		epochKey:   values[1],
		attester:   values[2],
		proofIndex: values[3].Int64(),
	}
	if legacy {
		d.posRep = values[4]
		d.negRep = values[5]
		d.graffiti = values[6]
		d.signUp = values[7].Sign() != 0
	} else {
		d.fromProofIndex = values[4].Int64()
		d.posRep = values[5]
		d.negRep = values[6]
		d.graffiti = values[7]
		d.signUp = values[8].Sign() != 0
	}
	return d, nil
}

func handleAttestationSubmitted(hc *Context) error {
	d, err := decodeAttestationSubmitted(hc.Topic, logData{Data: hc.Log.Data})
	if err != nil {
		return badProtocolData(err)
	}
	if err := requireCurrentEpoch(hc, d.epoch); err != nil {
		return err
	}
	if err := requireEpochKeyInRange(hc, d.epochKey); err != nil {
		return err
	}

	signUp := int64(0)
	if d.signUp {
		signUp = 1
	}
	hash := field.HashBigInts(d.posRep, d.negRep, d.graffiti, big.NewInt(signUp))
	epochKeyStr := d.epochKey.String()

	att := store.Attestation{
		Epoch:          d.epoch,
		EpochKey:       epochKeyStr,
		Index:          store.EncodeEventIndex(hc.Log.BlockNumber, hc.Log.TxIndex, hc.Log.LogIndex),
		Attester:       d.attester.String(),
		ProofIndex:     d.proofIndex,
		FromProofIndex: d.fromProofIndex,
		AttesterID:     d.attester.String(),
		PosRep:         d.posRep.String(),
		NegRep:         d.negRep.String(),
		Graffiti:       d.graffiti.String(),
		SignUp:         d.signUp,
		Hash:           field.ToDecimalString(hash),
		Valid:          nil,
	}
	if err := hc.Tx.InsertAttestation(hc.Ctx, att); err != nil {
		return storeErr(err)
	}

	toProof, err := getProofOrFatal(hc, d.proofIndex)
	if err != nil {
		return err
	}
	if !toProof.Valid {
		return setAttestationValid(hc, d.epoch, att.Index, false)
	}

	if d.fromProofIndex != 0 {
		fromProof, err := getProofOrFatal(hc, d.fromProofIndex)
		if err != nil {
			return err
		}
		if !fromProof.Valid || fromProof.Spent {
			return setAttestationValid(hc, d.epoch, att.Index, false)
		}
		if err := hc.Tx.MarkProofSpent(hc.Ctx, d.fromProofIndex); err != nil {
			return storeErr(err)
		}
	}

	if err := setAttestationValid(hc, d.epoch, att.Index, true); err != nil {
		return err
	}
	if err := hc.Tx.EnsureEpochKey(hc.Ctx, d.epoch, epochKeyStr); err != nil {
		return storeErr(err)
	}
	return nil
}

// getProofOrFatal loads a proof referenced by an attestation. A
// missing row is fatal per spec.md §4.4, distinct from the general
// missing-predecessor-row ProtocolViolation case elsewhere — see
// chainerr.MissingReferencedProof's doc comment.
func getProofOrFatal(hc *Context, index int64) (*store.Proof, error) {
	p, err := hc.Tx.GetProof(hc.Ctx, index)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &chainerr.MissingReferencedProof{Index: index}
		}
		return nil, &chainerr.StoreError{Err: err}
	}
	return p, nil
}

func setAttestationValid(hc *Context, epoch uint64, index int64, valid bool) error {
	if err := hc.Tx.SetAttestationValid(hc.Ctx, epoch, index, valid); err != nil {
		return storeErr(err)
	}
	return nil
}
