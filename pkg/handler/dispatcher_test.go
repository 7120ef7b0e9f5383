// Copyright 2025 UniRep Synchronizer
//
// End-to-end dispatcher test against a live Postgres instance, matching
// the skip-without-live-DB convention used throughout this module.
package handler

import (
	"context"
	"math/big"
	"os"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/unirep/synchronizer/pkg/field"
	"github.com/unirep/synchronizer/pkg/ingestor"
	"github.com/unirep/synchronizer/pkg/store"
	"github.com/unirep/synchronizer/pkg/tree"
)

type alwaysValidVerifier struct{}

func (alwaysValidVerifier) Verify(ctx context.Context, circuit Circuit, signals, proof []*big.Int) (bool, error) {
	return true, nil
}

var testStore *store.Store

func TestMain(m *testing.M) {
	connStr := os.Getenv("UNIREP_TEST_DB")
	if connStr == "" {
		os.Exit(m.Run())
	}
	var err error
	testStore, err = store.Open(context.Background(), store.Config{DatabaseURL: connStr}, nil)
	if err != nil {
		panic("failed to open test store: " + err.Error())
	}
	code := m.Run()
	testStore.Close()
	os.Exit(code)
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *tree.Engine) {
	t.Helper()
	engine := tree.NewEngine(4, field.Zero())
	engine.ResetGST(1)
	params := Params{GSTTreeDepth: 4, EpochTreeDepth: 4, USTTreeDepth: 4, NumEpochKeyNoncePerEpoch: 2}
	return NewDispatcher(engine, alwaysValidVerifier{}, params), engine
}

func uint256(n int64) []byte {
	b := make([]byte, 32)
	big.NewInt(n).FillBytes(b)
	return b
}

func TestDispatchUserSignedUpInsertsGSTLeaf(t *testing.T) {
	if testStore == nil {
		t.Skip("test database not configured")
	}
	ctx := context.Background()
	d, _ := newTestDispatcher(t)

	if err := testStore.CreateEpoch(ctx, 1); err != nil {
		t.Fatalf("create epoch: %v", err)
	}

	data := concatWords(uint256(1), uint256(123), uint256(1), uint256(0)) // epoch, idCommitment, attesterID, airdrop
	l := ingestor.Log{
		BlockNumber: 1, TxIndex: 0, LogIndex: 0,
		Topics: []common.Hash{mustTopicHash(t, ingestor.TopicUserSignedUp)},
		Data:   data,
	}

	err := testStore.Transaction(ctx, func(tx *store.Tx) error {
		return d.Dispatch(ctx, tx, l)
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	leaves, err := testStore.GSTLeavesForEpoch(ctx, 1)
	if err != nil {
		t.Fatalf("gst leaves: %v", err)
	}
	if len(leaves) != 1 {
		t.Fatalf("expected 1 GST leaf, got %d", len(leaves))
	}
}

func mustTopicHash(t *testing.T, topic ingestor.Topic) common.Hash {
	t.Helper()
	h, ok := ingestor.HashForTopic(topic)
	if !ok {
		t.Fatalf("no hash for topic %s", topic)
	}
	return h
}
