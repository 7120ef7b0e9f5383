// Copyright 2025 UniRep Synchronizer
package handler

import (
	"math/big"

	"github.com/unirep/synchronizer/pkg/field"
	"github.com/unirep/synchronizer/pkg/tree"
)

// decodeEpochEnded extracts the ending epoch number. The second word
// (the attester address that triggered the on-chain epoch transition)
// is not needed by any store mutation below and is discarded.
func decodeEpochEnded(l logData) (uint64, error) {
	values, err := decodeUint256Data(l.Data, 2)
	if err != nil {
		return 0, err
	}
	return values[0].Uint64(), nil
}

func handleEpochEnded(hc *Context) error {
	epoch, err := decodeEpochEnded(logData{Data: hc.Log.Data})
	if err != nil {
		return badProtocolData(err)
	}
	if err := requireCurrentEpoch(hc, epoch); err != nil {
		return err
	}

	keys, err := hc.Tx.EpochKeysForEpoch(hc.Ctx, epoch)
	if err != nil {
		return storeErr(err)
	}

	hashesByKey := make(map[string][]field.Element, len(keys))
	for _, k := range keys {
		if _, ok := new(big.Int).SetString(k, 10); !ok {
			return badProtocolData(errDecimalEpochKey{k})
		}
		atts, err := hc.Tx.AttestationsForKey(hc.Ctx, epoch, k)
		if err != nil {
			return storeErr(err)
		}
		hashes := make([]field.Element, 0, len(atts))
		for _, a := range atts {
			if a.Valid == nil || !*a.Valid {
				continue
			}
			h, err := field.FromDecimalString(a.Hash)
			if err != nil {
				return badProtocolData(err)
			}
			hashes = append(hashes, h)
		}
		hashesByKey[k] = hashes
	}

	epochRoot, _ := tree.SealEpochTree(hc.Params.EpochTreeDepth, field.Zero(), hashesByKey)

	if err := hc.Tx.SealEpoch(hc.Ctx, epoch, field.ToDecimalString(epochRoot)); err != nil {
		return storeErr(err)
	}
	if err := hc.Tx.CreateEpoch(hc.Ctx, epoch+1); err != nil {
		return storeErr(err)
	}
	hc.Engine.ResetGST(epoch + 1)
	return nil
}

type errDecimalEpochKey struct{ key string }

func (e errDecimalEpochKey) Error() string { return "malformed epoch key: " + e.key }
