// Copyright 2025 UniRep Synchronizer
//
// Integration tests against a live Postgres instance, matching the
// skip-without-live-DB convention used throughout this module.
package userstate

import (
	"context"
	"math/big"
	"os"
	"testing"

	"github.com/unirep/synchronizer/pkg/field"
	"github.com/unirep/synchronizer/pkg/store"
)

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

func testParams() Params {
	return Params{GSTTreeDepth: 4, EpochTreeDepth: 4, USTTreeDepth: 4, NumEpochKeyNoncePerEpoch: 2}
}

func TestEpochKeysDeterministicAndDistinctByNonce(t *testing.T) {
	u := New(nil, testParams())
	identity := big.NewInt(42)
	keys := u.EpochKeys(identity, 7)
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(keys))
	}
	if keys[0].Cmp(keys[1]) == 0 {
		t.Fatal("expected distinct keys per nonce")
	}
	again := u.EpochKeys(identity, 7)
	if keys[0].Cmp(again[0]) != 0 || keys[1].Cmp(again[1]) != 0 {
		t.Fatal("expected deterministic keys for identical inputs")
	}
}

func TestEpochKeysVaryByEpoch(t *testing.T) {
	u := New(nil, testParams())
	identity := big.NewInt(42)
	a := u.EpochKeys(identity, 7)
	b := u.EpochKeys(identity, 8)
	if a[0].Cmp(b[0]) == 0 {
		t.Fatal("expected keys to vary by epoch")
	}
}

func insertAttestation(t *testing.T, epoch uint64, key *big.Int, index int64, attesterID, pos, neg, graffiti string, signUp bool, valid bool) {
	t.Helper()
	ctx := context.Background()
	h := field.HashBigInts(big.NewInt(int64(epoch)), key, big.NewInt(index))
	err := testStore.InsertAttestation(ctx, store.Attestation{
		Epoch:      epoch,
		EpochKey:   key.String(),
		Index:      index,
		Attester:   "0x0000000000000000000000000000000000000001",
		ProofIndex: index + 1,
		AttesterID: attesterID,
		PosRep:     pos,
		NegRep:     neg,
		Graffiti:   graffiti,
		SignUp:     signUp,
		Hash:       field.ToDecimalString(h),
	})
	if err != nil {
		t.Fatalf("insert attestation: %v", err)
	}
	if err := testStore.SetAttestationValid(ctx, epoch, index, valid); err != nil {
		t.Fatalf("set attestation valid: %v", err)
	}
}

func TestReputationFoldsOnlySealedEpochs(t *testing.T) {
	if testStore == nil {
		t.Skip("test database not configured")
	}
	ctx := context.Background()
	u := New(testStore, testParams())

	identity := big.NewInt(1001)
	attester := big.NewInt(2001)
	const sealedEpoch uint64 = 601
	const unsealedEpoch uint64 = 602

	if err := testStore.CreateEpoch(ctx, sealedEpoch); err != nil {
		t.Fatalf("create epoch %d: %v", sealedEpoch, err)
	}
	key := u.EpochKeys(identity, sealedEpoch)[0]
	insertAttestation(t, sealedEpoch, key, 1, attester.String(), "10", "3", "0", true, true)
	if err := testStore.SealEpoch(ctx, sealedEpoch, "999"); err != nil {
		t.Fatalf("seal epoch %d: %v", sealedEpoch, err)
	}

	if err := testStore.CreateEpoch(ctx, unsealedEpoch); err != nil {
		t.Fatalf("create epoch %d: %v", unsealedEpoch, err)
	}
	unsealedKey := u.EpochKeys(identity, unsealedEpoch)[0]
	insertAttestation(t, unsealedEpoch, unsealedKey, 1, attester.String(), "1000", "0", "0", true, true)

	rep, err := u.Reputation(ctx, identity, attester, unsealedEpoch)
	if err != nil {
		t.Fatalf("reputation: %v", err)
	}
	if rep.PosRep.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("expected posRep 10 from sealed epoch only, got %s", rep.PosRep)
	}
	if rep.NegRep.Cmp(big.NewInt(3)) != 0 {
		t.Fatalf("expected negRep 3, got %s", rep.NegRep)
	}
	if !rep.SignUp {
		t.Fatal("expected signUp to be true")
	}

	// Seal it back so later tests can create their own epoch (at most
	// one unsealed epoch may exist at a time).
	if err := testStore.SealEpoch(ctx, unsealedEpoch, "1"); err != nil {
		t.Fatalf("seal epoch %d: %v", unsealedEpoch, err)
	}
}

func TestReputationGraffitiOverwritesWithLatestNonzero(t *testing.T) {
	if testStore == nil {
		t.Skip("test database not configured")
	}
	ctx := context.Background()
	u := New(testStore, testParams())

	identity := big.NewInt(1002)
	attester := big.NewInt(2002)
	const epoch uint64 = 603

	if err := testStore.CreateEpoch(ctx, epoch); err != nil {
		t.Fatalf("create epoch %d: %v", epoch, err)
	}
	key := u.EpochKeys(identity, epoch)[0]
	insertAttestation(t, epoch, key, 1, attester.String(), "1", "0", "777", false, true)
	insertAttestation(t, epoch, key, 2, attester.String(), "1", "0", "0", false, true)
	insertAttestation(t, epoch, key, 3, attester.String(), "1", "0", "888", false, true)
	if err := testStore.SealEpoch(ctx, epoch, "999"); err != nil {
		t.Fatalf("seal epoch %d: %v", epoch, err)
	}

	rep, err := u.Reputation(ctx, identity, attester, epoch)
	if err != nil {
		t.Fatalf("reputation: %v", err)
	}
	if rep.Graffiti.Cmp(big.NewInt(888)) != 0 {
		t.Fatalf("expected graffiti 888 (latest nonzero), got %s", rep.Graffiti)
	}
}

func TestGenGSTTreeRebuildsFromPersistedLeaves(t *testing.T) {
	if testStore == nil {
		t.Skip("test database not configured")
	}
	ctx := context.Background()
	u := New(testStore, testParams())
	const epoch uint64 = 604

	if err := testStore.CreateEpoch(ctx, epoch); err != nil {
		t.Fatalf("create epoch %d: %v", epoch, err)
	}
	leafA := field.FromUint64(111)
	leafB := field.FromUint64(222)
	if err := testStore.InsertGSTLeaf(ctx, store.GSTLeaf{Epoch: epoch, Index: 0, Hash: field.ToDecimalString(leafA), TxHash: "0xaaa"}); err != nil {
		t.Fatalf("insert gst leaf 0: %v", err)
	}
	if err := testStore.InsertGSTLeaf(ctx, store.GSTLeaf{Epoch: epoch, Index: 1, Hash: field.ToDecimalString(leafB), TxHash: "0xbbb"}); err != nil {
		t.Fatalf("insert gst leaf 1: %v", err)
	}

	tr, err := u.GenGSTTree(ctx, epoch)
	if err != nil {
		t.Fatalf("gen gst tree: %v", err)
	}
	if tr.NumLeaves() != 2 {
		t.Fatalf("expected 2 leaves, got %d", tr.NumLeaves())
	}

	index, err := u.FindGSTLeafIndex(ctx, epoch, leafB)
	if err != nil {
		t.Fatalf("find gst leaf index: %v", err)
	}
	if index != 1 {
		t.Fatalf("expected index 1, got %d", index)
	}

	path, root, err := tr.MerkleProof(index)
	if err != nil {
		t.Fatalf("merkle proof: %v", err)
	}
	if len(path) != int(testParams().GSTTreeDepth) {
		t.Fatalf("expected path length %d, got %d", testParams().GSTTreeDepth, len(path))
	}
	if field.IsZero(root) {
		t.Fatal("expected nonzero root")
	}

	if err := testStore.SealEpoch(ctx, epoch, "1"); err != nil {
		t.Fatalf("seal epoch %d: %v", epoch, err)
	}
}

func TestGenEpochTreeMatchesSealEpochTree(t *testing.T) {
	if testStore == nil {
		t.Skip("test database not configured")
	}
	ctx := context.Background()
	u := New(testStore, testParams())
	const epoch uint64 = 605

	if err := testStore.CreateEpoch(ctx, epoch); err != nil {
		t.Fatalf("create epoch %d: %v", epoch, err)
	}
	identity := big.NewInt(1003)
	key := u.EpochKeys(identity, epoch)[0]
	insertAttestation(t, epoch, key, 1, "3001", "5", "0", "0", false, true)
	insertAttestation(t, epoch, key, 2, "3001", "2", "1", "0", false, false) // invalid, must be excluded

	tr, err := u.GenEpochTree(ctx, epoch)
	if err != nil {
		t.Fatalf("gen epoch tree: %v", err)
	}
	leaf := tr.Get(key)
	if field.IsZero(leaf) {
		t.Fatal("expected a nonzero sealed leaf for the key with one valid attestation")
	}

	if err := testStore.SealEpoch(ctx, epoch, "1"); err != nil {
		t.Fatalf("seal epoch %d: %v", epoch, err)
	}
}
