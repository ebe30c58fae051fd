// Copyright 2025 Exelayer Protocol
//
// Package executor defines the data model shared by every component of the
// executor core: bundles, execution receipts, fraud proofs and the
// execution-phase sum type they are built from.
package executor

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Hash is a 32-byte collision-resistant digest, reused for block hashes,
// state roots, and bundle/receipt hashes alike so that every identifier in
// this package can be compared, logged and hex-encoded the same way.
type Hash = common.Hash

// ExecutorID identifies an executor by its BLS12-381 public key in
// compressed-G2 serialized form.
type ExecutorID [PublicKeySize]byte

// PublicKeySize is the serialized length of a BLS12-381 G2 public key.
const PublicKeySize = 96

func (id ExecutorID) Hex() string {
	return fmt.Sprintf("0x%x", id[:])
}

// BundleHeader carries the slot this bundle was produced for, the tip of
// the primary chain it was built against, and the receipts the producer
// chooses to gossip alongside it.
type BundleHeader struct {
	Slot             uint64
	PrimaryBlockHash Hash
	Receipts         []SignedExecutionReceipt
}

// Bundle is a batch of secondary-chain extrinsics proposed for one slot.
// Extrinsics are treated as opaque, already-encoded byte strings: the core
// never decodes them, it only shuffles and counts them.
type Bundle struct {
	Header     BundleHeader
	Extrinsics [][]byte
}

// Hash computes a deterministic, encoder-independent digest of the bundle.
// It hashes structural fields directly rather than relying on a wire
// encoding, so the digest is stable regardless of what codec eventually
// serializes the bundle for gossip.
func (b *Bundle) Hash() Hash {
	h := sha256.New()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], b.Header.Slot)
	h.Write(buf[:])
	h.Write(b.Header.PrimaryBlockHash[:])
	for _, r := range b.Header.Receipts {
		rh := r.Receipt.Hash()
		h.Write(rh[:])
	}
	binary.BigEndian.PutUint64(buf[:], uint64(len(b.Extrinsics)))
	h.Write(buf[:])
	for _, ext := range b.Extrinsics {
		sum := sha256.Sum256(ext)
		h.Write(sum[:])
	}
	return Hash(sha256.Sum256(h.Sum(nil)))
}

// SignedBundle adds signer identity and a signature over Bundle.Hash().
type SignedBundle struct {
	Bundle    Bundle
	Signer    ExecutorID
	Signature []byte
}

// ExecutionReceipt summarizes the state-root trace produced while executing
// one secondary block. Trace has length 2+k where k is the number of
// applied extrinsics: index 0 is the post-state of initialize_block,
// indices 1..k are the post-states of apply_extrinsic(i), and index k+1 is
// the post-state of finalize_block.
type ExecutionReceipt struct {
	PrimaryNumber  uint64
	PrimaryHash    Hash
	SecondaryHash  Hash
	SecondaryParent Hash
	Trace          []Hash
}

// ExtrinsicCount returns k, the number of applied extrinsics this receipt's
// trace accounts for.
func (r *ExecutionReceipt) ExtrinsicCount() int {
	if len(r.Trace) < 2 {
		return 0
	}
	return len(r.Trace) - 2
}

// Hash computes a deterministic digest of the receipt, covering every
// element of the trace so that any divergence changes the hash.
func (r *ExecutionReceipt) Hash() Hash {
	h := sha256.New()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], r.PrimaryNumber)
	h.Write(buf[:])
	h.Write(r.PrimaryHash[:])
	h.Write(r.SecondaryHash[:])
	h.Write(r.SecondaryParent[:])
	for _, root := range r.Trace {
		h.Write(root[:])
	}
	return Hash(sha256.Sum256(h.Sum(nil)))
}

// SignedExecutionReceipt adds signer identity and a signature over
// ExecutionReceipt.Hash().
type SignedExecutionReceipt struct {
	Receipt   ExecutionReceipt
	Signer    ExecutorID
	Signature []byte
}

// ExecutionPhase is the closed sum type initialize_block / apply_extrinsic /
// finalize_block. The unexported marker method keeps it a closed set: only
// the three variants in this file can implement it.
type ExecutionPhase interface {
	phase()
}

// InitializeBlockPhase replays a secondary block's initialize_block step.
type InitializeBlockPhase struct {
	HeaderBytes []byte
}

func (InitializeBlockPhase) phase() {}

// ApplyExtrinsicPhase replays application of one extrinsic.
type ApplyExtrinsicPhase struct {
	ExtrinsicBytes []byte
	Index          int // 0-based index within the shuffled extrinsic list
}

func (ApplyExtrinsicPhase) phase() {}

// FinalizeBlockPhase replays a secondary block's finalize_block step.
type FinalizeBlockPhase struct{}

func (FinalizeBlockPhase) phase() {}

// StorageProof witnesses that a phase transformed PreStateRoot into
// PostStateRoot. Its internal shape (package prover) is opaque here: the
// core only ever forwards it to the primary chain's verifier.
type StorageProof struct {
	Encoded []byte
}

// FraudProof is the succinct witness that a single execution step (phase)
// was computed incorrectly.
type FraudProof struct {
	ParentNumber   uint64
	ParentHash     Hash
	PreStateRoot   Hash
	PostStateRoot  Hash
	Phase          ExecutionPhase
	Proof          StorageProof
}

// BundleEquivocationProof witnesses that the same executor signed two
// distinct bundles for the same slot.
type BundleEquivocationProof struct {
	Slot    uint64
	Signer  ExecutorID
	First   SignedBundle
	Second  SignedBundle
}

// InvalidTransactionProof witnesses that a bundled extrinsic is not a
// legal transaction by the secondary runtime's rules.
type InvalidTransactionProof struct {
	BundleHash     Hash
	ExtrinsicIndex int
	ExtrinsicHash  Hash
	Reason         string
}

// ActiveLeaf describes one recent primary-chain tip tracked by the worker
// loop's bootstrap set.
type ActiveLeaf struct {
	Hash       Hash
	ParentHash Hash
	Number     uint64
}

// MaxActiveLeaves bounds the active-leaves set (spec constant).
const MaxActiveLeaves = 4

// PruningDepth is the implementation-defined constant referenced by
// spec.md §4.1: a receipt is pruned once best_exec_number exceeds its
// primary number by more than this many blocks.
const PruningDepth = 256

// ReceiptPollIntervalMillis is how often, in milliseconds, the gossip handler polls the receipt
// store while waiting for a remote receipt's local counterpart to land.
const ReceiptPollIntervalMillis = 100
