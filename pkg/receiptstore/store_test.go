// Copyright 2025 Exelayer Protocol

package receiptstore

import (
	"errors"
	"sync"
	"testing"

	"github.com/exelayer/executor-core/pkg/executor"
	"github.com/exelayer/executor-core/pkg/xerrors"
)

// memKV is a minimal in-memory KV for tests.
type memKV struct {
	mu sync.RWMutex
	m  map[string][]byte
}

func newMemKV() *memKV { return &memKV{m: make(map[string][]byte)} }

func (k *memKV) Get(key []byte) ([]byte, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.m[string(key)], nil
}

func (k *memKV) Set(key, value []byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.m[string(key)] = append([]byte{}, value...)
	return nil
}

func mkHash(b byte) executor.Hash {
	var h executor.Hash
	h[0] = b
	return h
}

func TestStoreAndLoad(t *testing.T) {
	s := New(newMemKV())
	receipt := &executor.ExecutionReceipt{
		PrimaryNumber: 10,
		PrimaryHash:   mkHash(1),
		SecondaryHash: mkHash(2),
		Trace:         []executor.Hash{mkHash(3), mkHash(4), mkHash(5), mkHash(6)},
	}
	if err := s.StoreReceipt(receipt); err != nil {
		t.Fatalf("StoreReceipt: %v", err)
	}

	got, err := s.Load(receipt.SecondaryHash)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Hash() != receipt.Hash() {
		t.Fatalf("loaded receipt hash mismatch")
	}
}

func TestLoadMissingReturnsNotFound(t *testing.T) {
	s := New(newMemKV())
	_, err := s.Load(mkHash(9))
	if !errors.Is(err, xerrors.ErrReceiptNotFound) {
		t.Fatalf("expected ErrReceiptNotFound, got %v", err)
	}
}

func TestLoadAtHeightFallback(t *testing.T) {
	s := New(newMemKV())
	receipt := &executor.ExecutionReceipt{
		PrimaryNumber: 42,
		SecondaryHash: mkHash(7),
		Trace:         []executor.Hash{mkHash(8), mkHash(9)},
	}
	if err := s.StoreReceipt(receipt); err != nil {
		t.Fatalf("StoreReceipt: %v", err)
	}

	got, err := s.LoadAtHeight(42)
	if err != nil {
		t.Fatalf("LoadAtHeight: %v", err)
	}
	if got.SecondaryHash != receipt.SecondaryHash {
		t.Fatalf("height index resolved wrong hash")
	}

	if _, err := s.LoadAtHeight(43); !errors.Is(err, xerrors.ErrReceiptNotFound) {
		t.Fatalf("expected ErrReceiptNotFound for unindexed height, got %v", err)
	}
}

func TestTargetReceiptIsPruned(t *testing.T) {
	cases := []struct {
		best, target uint64
		want         bool
	}{
		{best: 1000, target: 10, want: true},             // far behind pruning depth
		{best: 1000, target: 1000 - executor.PruningDepth, want: false}, // exactly at horizon
		{best: 1000, target: 1000 - executor.PruningDepth + 1, want: false},
		{best: 5, target: 10, want: false}, // target ahead of best, not pruned
	}
	for _, c := range cases {
		if got := TargetReceiptIsPruned(c.best, c.target); got != c.want {
			t.Errorf("TargetReceiptIsPruned(%d, %d) = %v, want %v", c.best, c.target, got, c.want)
		}
	}
}

func TestReceiptNeverRewritten(t *testing.T) {
	s := New(newMemKV())
	r1 := &executor.ExecutionReceipt{PrimaryNumber: 1, SecondaryHash: mkHash(1), Trace: []executor.Hash{mkHash(2), mkHash(3)}}
	if err := s.StoreReceipt(r1); err != nil {
		t.Fatalf("StoreReceipt: %v", err)
	}
	// Storing again with the same key overwrites it with the same bytes — the
	// store does not refuse a second write, so the caller (C4) is responsible
	// for calling StoreReceipt exactly once per secondary hash; this test only
	// documents that a second call does not error and leaves the data
	// retrievable.
	if err := s.StoreReceipt(r1); err != nil {
		t.Fatalf("StoreReceipt (second call): %v", err)
	}
	got, err := s.Load(r1.SecondaryHash)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Hash() != r1.Hash() {
		t.Fatalf("receipt content changed across writes")
	}
}
