// Copyright 2025 Exelayer Protocol
//
// Package collab declares the external collaborators consumed by the
// executor core (spec.md §6): the primary-chain runtime, the secondary
// chain's block builder and seed derivation, the transaction pool, and the
// transaction-legality predicate. The core depends only on these
// interfaces; concrete clients (RPC, in-process runtime calls, etc.) live
// outside this module.
package collab

import (
	"context"

	"github.com/exelayer/executor-core/pkg/executor"
)

// PrimaryRuntime is the subset of the primary chain's runtime API the
// executor core consumes (spec.md §6).
type PrimaryRuntime interface {
	// ExecutorID returns who is elected at the given primary block.
	ExecutorID(ctx context.Context, primaryHash executor.Hash) (executor.ExecutorID, error)

	// BestExecutionChainNumber returns the pruning-horizon reference.
	BestExecutionChainNumber(ctx context.Context, primaryHash executor.Hash) (uint64, error)

	SubmitBundleEquivocationProofUnsigned(ctx context.Context, at executor.Hash, proof executor.BundleEquivocationProof) error
	SubmitFraudProofUnsigned(ctx context.Context, at executor.Hash, proof executor.FraudProof) error
	SubmitInvalidTransactionProofUnsigned(ctx context.Context, at executor.Hash, proof executor.InvalidTransactionProof) error
}

// BlockID identifies a base block a phase is replayed against, either by
// hash or, for C4's height-based fallback, by primary number.
type BlockID struct {
	Hash   executor.Hash
	Number uint64
}

// Overlay is an in-memory pre-state delta witnessed by its own root, used
// when proving FinalizeBlock or a non-first ApplyExtrinsic phase (spec
// §4.2).
type Overlay struct {
	Writes   map[executor.Hash][]byte
	PostRoot executor.Hash
}

// SecondaryHeader is the minimal secondary-block header shape the core
// needs: enough to recover a block's parent and to build an
// InitializeBlock phase's call data.
type SecondaryHeader struct {
	Hash       executor.Hash
	ParentHash executor.Hash
	Number     uint64
	StateRoot  executor.Hash
}

// BlockBuilder drives the secondary chain's block_builder API: the three
// steps the bundle processor (C4) and the fraud-proof synthesizer (C6)
// both need to invoke, recording the resulting state root after each.
type BlockBuilder interface {
	// InitializeBlock starts a new secondary block atop parent, returning
	// the post-state root.
	InitializeBlock(ctx context.Context, parent BlockID, header SecondaryHeader) (executor.Hash, error)

	// ApplyExtrinsic applies one extrinsic to the block in progress,
	// returning the post-state root.
	ApplyExtrinsic(ctx context.Context, extrinsic []byte) (executor.Hash, error)

	// FinalizeBlock closes out the block in progress, returning the final
	// state root and the header of the block that was built.
	FinalizeBlock(ctx context.Context) (executor.Hash, SecondaryHeader, error)

	// Overlay returns the pre-state delta accumulated since the last
	// initialize_block call, witnessed by its own root. Used by the prover
	// to replay FinalizeBlock or a single ApplyExtrinsic in isolation.
	Overlay(ctx context.Context) (Overlay, error)

	// HeaderAt returns the secondary header for a given hash, used to look
	// up a receipt's parent state root during fraud-proof synthesis.
	HeaderAt(ctx context.Context, hash executor.Hash) (SecondaryHeader, error)

	// Import finalizes and persists the block built by the preceding
	// Initialize/Apply/Finalize sequence.
	Import(ctx context.Context, header SecondaryHeader) error

	// RecordedReads returns every trie key (and the value observed) that
	// the most recent Initialize/Apply/FinalizeBlock call read, so the
	// prover can witness exactly the state a phase touched. Implementations
	// reset the record at the start of each such call.
	RecordedReads(ctx context.Context) (map[string][]byte, error)
}

// ShufflingSeedSource derives the deterministic shuffling seed for a
// primary block's bundled extrinsics (spec §4.4 step a).
type ShufflingSeedSource interface {
	ShufflingSeed(ctx context.Context, primaryHash executor.Hash) ([32]byte, error)
}

// RuntimeUpgrade reports whether a primary block carries new secondary
// runtime code and, if so, installs it before execution (spec §4.4 step c).
type RuntimeUpgrade interface {
	PendingCodeUpgrade(ctx context.Context, primaryHash executor.Hash) ([]byte, bool, error)
	UpgradeRuntime(ctx context.Context, code []byte) error
}

// TxPool is the subset of the transaction pool consumed by the bundle
// producer (ready iteration) and the gossip handler (membership checks).
// Submission and maintenance are delegated to the pool and are out of
// scope for this interface (spec §6).
type TxPool interface {
	// Ready returns currently-ready extrinsics, in pool order.
	Ready(ctx context.Context) ([][]byte, error)

	// HashOf computes the pool's canonical hash for an extrinsic.
	HashOf(extrinsic []byte) executor.Hash

	// ReadyTransaction reports whether the pool currently considers hash
	// ready (ready_transaction in spec §6).
	ReadyTransaction(ctx context.Context, hash executor.Hash) (bool, error)
}

// TxLegality is the real legality predicate spec.md §9 says the
// pool-unknown-extrinsic branch must route to, rather than treating every
// pool-miss as suspect. A TxPool-backed default implementation is provided
// in package gossip for callers with nothing stronger to plug in.
type TxLegality interface {
	IsLegal(ctx context.Context, extrinsic []byte) (bool, error)
}

// StateBackend is the black-box trie/state backend the execution prover
// replays phases against (spec §1 non-goals: algorithms unspecified here).
type StateBackend interface {
	// Get reads a single key's value as of the given state root, recording
	// the read for proof purposes.
	Get(ctx context.Context, root executor.Hash, key []byte) ([]byte, error)

	// StateRoot returns the backend's current computed root after the
	// reads/writes applied since the last Commit.
	StateRoot(ctx context.Context) (executor.Hash, error)
}
