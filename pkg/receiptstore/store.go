// Copyright 2025 Exelayer Protocol
//
// Package receiptstore is the Auxiliary Receipt Store (spec.md §4.1, C1):
// it persists and looks up locally produced execution receipts keyed by
// secondary block hash, and computes the pruning horizon predicate. The
// store is append-only from the perspective of the core — a receipt is
// never rewritten once stored.
package receiptstore

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/exelayer/executor-core/pkg/executor"
	"github.com/exelayer/executor-core/pkg/xerrors"
)

var (
	keyReceiptPrefix       = []byte("receipt:hash:")   // + secondary_hash -> ExecutionReceipt
	keyHeightIndexPrefix   = []byte("receipt:height:")  // + big-endian primary_number -> secondary_hash
)

func receiptKey(secondaryHash executor.Hash) []byte {
	return append(append([]byte{}, keyReceiptPrefix...), secondaryHash[:]...)
}

func heightIndexKey(primaryNumber uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, primaryNumber)
	return append(append([]byte{}, keyHeightIndexPrefix...), b...)
}

// Store persists receipts keyed by secondary block hash, plus a secondary
// index from primary block number to secondary hash so the gossip
// handler's height-based fallback lookup (spec §4.6 step 3) is O(1).
type Store struct {
	kv KV
}

// New creates a Store over kv.
func New(kv KV) *Store {
	return &Store{kv: kv}
}

// StoreReceipt persists receipt, keyed by its secondary hash. Per spec.md
// §3's lifecycle invariant ("mutated never"), this is the only write path:
// there is no update or delete.
func (s *Store) StoreReceipt(receipt *executor.ExecutionReceipt) error {
	b, err := json.Marshal(receipt)
	if err != nil {
		return xerrors.Client(fmt.Errorf("marshal execution receipt: %w", err))
	}
	if err := s.kv.Set(receiptKey(receipt.SecondaryHash), b); err != nil {
		return xerrors.Client(fmt.Errorf("persist execution receipt: %w", err))
	}

	hb := make([]byte, 32)
	copy(hb, receipt.SecondaryHash[:])
	if err := s.kv.Set(heightIndexKey(receipt.PrimaryNumber), hb); err != nil {
		return xerrors.Client(fmt.Errorf("persist height index: %w", err))
	}
	return nil
}

// Load returns the receipt for secondaryHash, or xerrors.ErrReceiptNotFound
// if this node never produced or received one for that hash.
func (s *Store) Load(secondaryHash executor.Hash) (*executor.ExecutionReceipt, error) {
	b, err := s.kv.Get(receiptKey(secondaryHash))
	if err != nil {
		return nil, xerrors.Client(fmt.Errorf("load execution receipt: %w", err))
	}
	if len(b) == 0 {
		return nil, xerrors.ErrReceiptNotFound
	}
	var receipt executor.ExecutionReceipt
	if err := json.Unmarshal(b, &receipt); err != nil {
		return nil, xerrors.Client(fmt.Errorf("unmarshal execution receipt: %w", err))
	}
	return &receipt, nil
}

// LoadAtHeight resolves the canonical secondary hash at primaryNumber and
// returns its receipt. Used by the gossip handler when a remote receipt's
// secondary_hash hasn't landed locally yet but the local best height has
// already advanced past it (spec §4.6 step 3).
func (s *Store) LoadAtHeight(primaryNumber uint64) (*executor.ExecutionReceipt, error) {
	hb, err := s.kv.Get(heightIndexKey(primaryNumber))
	if err != nil {
		return nil, xerrors.Client(fmt.Errorf("load height index: %w", err))
	}
	if len(hb) != 32 {
		return nil, xerrors.ErrReceiptNotFound
	}
	var secondaryHash executor.Hash
	copy(secondaryHash[:], hb)
	return s.Load(secondaryHash)
}

// TargetReceiptIsPruned reports whether a receipt whose primary number is
// targetPrimaryNumber falls below the pruning horizon given the chain's
// current bestExecNumber. Pruning is a predicate, never a destructive
// sweep — the backing store may reclaim space independently.
func TargetReceiptIsPruned(bestExecNumber, targetPrimaryNumber uint64) bool {
	if bestExecNumber < targetPrimaryNumber {
		return false
	}
	return bestExecNumber-targetPrimaryNumber > executor.PruningDepth
}
