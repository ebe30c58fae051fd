// Copyright 2025 Exelayer Protocol

package secondaryblock

import (
	"context"
	"testing"

	"github.com/exelayer/executor-core/pkg/collab"
	"github.com/exelayer/executor-core/pkg/crypto/bls"
	"github.com/exelayer/executor-core/pkg/executor"
	"github.com/exelayer/executor-core/pkg/receiptstore"
)

type fakeBuilder struct {
	applyCount  int
	headerByHash map[executor.Hash]collab.SecondaryHeader
	finalHeader collab.SecondaryHeader
}

func (f *fakeBuilder) InitializeBlock(ctx context.Context, parent collab.BlockID, header collab.SecondaryHeader) (executor.Hash, error) {
	return executor.Hash{1}, nil
}

func (f *fakeBuilder) ApplyExtrinsic(ctx context.Context, extrinsic []byte) (executor.Hash, error) {
	f.applyCount++
	var h executor.Hash
	h[0] = byte(2 + f.applyCount)
	return h, nil
}

func (f *fakeBuilder) FinalizeBlock(ctx context.Context) (executor.Hash, collab.SecondaryHeader, error) {
	return executor.Hash{9}, f.finalHeader, nil
}

func (f *fakeBuilder) Overlay(ctx context.Context) (collab.Overlay, error) { return collab.Overlay{}, nil }

func (f *fakeBuilder) HeaderAt(ctx context.Context, hash executor.Hash) (collab.SecondaryHeader, error) {
	return f.headerByHash[hash], nil
}

func (f *fakeBuilder) Import(ctx context.Context, header collab.SecondaryHeader) error { return nil }

func (f *fakeBuilder) RecordedReads(ctx context.Context) (map[string][]byte, error) { return nil, nil }

type fakeSeeds struct{ seed [32]byte }

func (s *fakeSeeds) ShufflingSeed(ctx context.Context, primaryHash executor.Hash) ([32]byte, error) {
	return s.seed, nil
}

type memKV struct{ m map[string][]byte }

func newMemKV() *memKV { return &memKV{m: make(map[string][]byte)} }
func (k *memKV) Get(key []byte) ([]byte, error) { return k.m[string(key)], nil }
func (k *memKV) Set(key, value []byte) error {
	k.m[string(key)] = append([]byte{}, value...)
	return nil
}

func newTestKey(t *testing.T) (*bls.KeyManager, executor.ExecutorID) {
	t.Helper()
	km := bls.NewKeyManager("")
	if err := km.GenerateNewKey(); err != nil {
		t.Fatalf("GenerateNewKey: %v", err)
	}
	var id executor.ExecutorID
	copy(id[:], km.GetPublicKeyBytes())
	return km, id
}

func TestProcess_BuildsTraceAndPersistsReceipt(t *testing.T) {
	builder := &fakeBuilder{
		headerByHash: map[executor.Hash]collab.SecondaryHeader{
			{4}: {Hash: executor.Hash{4}, Number: 9},
		},
		finalHeader: collab.SecondaryHeader{Hash: executor.Hash{5}, Number: 10},
	}
	seeds := &fakeSeeds{seed: [32]byte{1, 2, 3}}
	store := receiptstore.New(newMemKV())
	km, self := newTestKey(t)
	out := make(chan *executor.SignedExecutionReceipt, 1)

	p := New(builder, seeds, nil, store, km, self, out)

	bundle := &executor.SignedBundle{Bundle: executor.Bundle{Extrinsics: [][]byte{[]byte("a"), []byte("b")}}}
	block := ImportedPrimaryBlock{Hash: executor.Hash{10}, Number: 99, Parent: executor.Hash{4}, Bundles: []*executor.SignedBundle{bundle}}

	receipt, err := p.Process(context.Background(), collab.BlockID{Hash: executor.Hash{4}}, block)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(receipt.Trace) != 4 { // init + 2 extrinsics + finalize
		t.Fatalf("expected trace length 4, got %d", len(receipt.Trace))
	}
	if receipt.ExtrinsicCount() != 2 {
		t.Fatalf("expected ExtrinsicCount 2, got %d", receipt.ExtrinsicCount())
	}

	loaded, err := store.Load(receipt.SecondaryHash)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Hash() != receipt.Hash() {
		t.Fatalf("stored receipt does not match produced receipt")
	}

	select {
	case signed := <-out:
		if signed.Signer != self {
			t.Fatalf("unexpected signer")
		}
	default:
		t.Fatalf("expected signed receipt to be published")
	}
}

func TestShuffleExtrinsics_DeterministicForSameSeed(t *testing.T) {
	bundle := &executor.SignedBundle{Bundle: executor.Bundle{Extrinsics: [][]byte{[]byte("a"), []byte("b"), []byte("c"), []byte("d")}}}
	seed := [32]byte{7, 7, 7}

	a := ShuffleExtrinsics(seed, []*executor.SignedBundle{bundle})
	b := ShuffleExtrinsics(seed, []*executor.SignedBundle{bundle})

	if len(a) != len(b) {
		t.Fatalf("length mismatch")
	}
	for i := range a {
		if string(a[i]) != string(b[i]) {
			t.Fatalf("same seed produced different order at index %d", i)
		}
	}
}

func TestShuffleExtrinsics_EmptyAndSingleton(t *testing.T) {
	if out := ShuffleExtrinsics([32]byte{}, nil); out != nil {
		t.Fatalf("expected nil for no bundles")
	}
	bundle := &executor.SignedBundle{Bundle: executor.Bundle{Extrinsics: [][]byte{[]byte("only")}}}
	out := ShuffleExtrinsics([32]byte{1}, []*executor.SignedBundle{bundle})
	if len(out) != 1 || string(out[0]) != "only" {
		t.Fatalf("singleton shuffle changed content")
	}
}
