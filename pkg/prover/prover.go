// Copyright 2025 Exelayer Protocol
//
// Package prover is the Execution Prover (spec.md §4.2, C2): given a base
// block id, an execution phase, and an optional pre-state overlay, it
// replays that phase through the secondary chain's block builder and
// witnesses every state read the builder recorded into a storage proof
// verifiable by a party that knows only the pre-state root, the phase, and
// the claimed post-state root. The prover is pure with respect to the
// backend: replay happens through the builder's own replay path, and the
// prover itself never mutates persistent state.
package prover

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/exelayer/executor-core/pkg/collab"
	"github.com/exelayer/executor-core/pkg/executor"
	"github.com/exelayer/executor-core/pkg/merkle"
	"github.com/exelayer/executor-core/pkg/xerrors"
)

// Prover replays execution phases through a BlockBuilder to produce
// storage proofs over the reads each phase touched. When backend is
// non-nil, every recorded read and the claimed post-state root are
// additionally cross-checked against it: a second, independently-computed
// opinion on state that a single builder replay cannot forge by itself.
type Prover struct {
	builder collab.BlockBuilder
	backend collab.StateBackend
}

// New creates a Prover over the given block builder with no corroborating
// state backend; Prove trusts the builder's own replay alone.
func New(builder collab.BlockBuilder) *Prover {
	return &Prover{builder: builder}
}

// NewWithBackend creates a Prover that, in addition to replaying through
// builder, cross-checks every recorded read and the claimed post-state root
// against backend before trusting them into a proof. Use this when a real
// trie-backed state backend runs alongside the block builder and a forged
// or buggy builder replay should not be able to produce a proof backend
// disagrees with.
func NewWithBackend(builder collab.BlockBuilder, backend collab.StateBackend) *Prover {
	return &Prover{builder: builder, backend: backend}
}

var errInconsistentDelta = fmt.Errorf("inconsistent delta root")

// Prove replays phase (optionally starting from preDelta, an overlay
// witnessed by its own root) and returns a storage proof witnessing the
// transition to postStateRoot.
func (p *Prover) Prove(ctx context.Context, at collab.BlockID, phase executor.ExecutionPhase, preDelta *collab.Overlay, postStateRoot executor.Hash) (*executor.StorageProof, error) {
	if preDelta != nil {
		if err := checkDeltaRoot(preDelta); err != nil {
			return nil, err
		}
	}

	switch ph := phase.(type) {
	case executor.InitializeBlockPhase:
		if _, err := p.builder.InitializeBlock(ctx, at, collab.SecondaryHeader{}); err != nil {
			return nil, xerrors.RuntimeAPI(fmt.Errorf("replay initialize_block: %w", err))
		}
	case executor.ApplyExtrinsicPhase:
		if _, err := p.builder.ApplyExtrinsic(ctx, ph.ExtrinsicBytes); err != nil {
			return nil, xerrors.RuntimeAPI(fmt.Errorf("replay apply_extrinsic(%d): %w", ph.Index, err))
		}
	case executor.FinalizeBlockPhase:
		if _, _, err := p.builder.FinalizeBlock(ctx); err != nil {
			return nil, xerrors.RuntimeAPI(fmt.Errorf("replay finalize_block: %w", err))
		}
	default:
		return nil, xerrors.ErrInvalidStateRootType
	}

	reads, err := p.builder.RecordedReads(ctx)
	if err != nil {
		return nil, xerrors.Client(fmt.Errorf("fetch recorded reads: %w", err))
	}

	if p.backend != nil {
		if err := p.corroborate(ctx, reads, postStateRoot); err != nil {
			return nil, err
		}
	}

	return witness(reads, postStateRoot)
}

// corroborate cross-checks the builder's recorded reads and claimed
// post-state root against the independent state backend. A disagreement
// here means the builder's replay cannot be trusted to witness a fraud
// proof, regardless of what its own RecordedReads claims.
func (p *Prover) corroborate(ctx context.Context, reads map[string][]byte, postStateRoot executor.Hash) error {
	root, err := p.backend.StateRoot(ctx)
	if err != nil {
		return xerrors.Client(fmt.Errorf("query state backend root: %w", err))
	}
	if root != postStateRoot {
		return fmt.Errorf("%w: state backend root %s disagrees with claimed post-state root %s", errInconsistentDelta, root.Hex(), postStateRoot.Hex())
	}

	for k, v := range reads {
		backendValue, err := p.backend.Get(ctx, postStateRoot, []byte(k))
		if err != nil {
			return xerrors.Client(fmt.Errorf("query state backend for key %q: %w", k, err))
		}
		if !bytes.Equal(backendValue, v) {
			return fmt.Errorf("%w: builder read for key %q disagrees with state backend", errInconsistentDelta, k)
		}
	}
	return nil
}

// checkDeltaRoot verifies that an overlay's declared root is internally
// consistent before it is trusted as a replay starting point (spec §4.2
// failure kind: "inconsistent delta root").
func checkDeltaRoot(delta *collab.Overlay) error {
	if len(delta.Writes) == 0 {
		return nil
	}

	keys := make([]executor.Hash, 0, len(delta.Writes))
	for k := range delta.Writes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Hex() < keys[j].Hex() })

	leaves := make([][]byte, 0, len(keys))
	for _, k := range keys {
		leaves = append(leaves, merkle.KeyValueLeaf(k[:], delta.Writes[k]))
	}

	tree, err := merkle.BuildTree(leaves)
	if err != nil {
		return fmt.Errorf("build overlay tree: %w", err)
	}
	var root executor.Hash
	copy(root[:], tree.Root())
	if root != delta.PostRoot {
		return fmt.Errorf("%w: overlay root %s does not match declared %s", errInconsistentDelta, tree.RootHex(), delta.PostRoot.Hex())
	}
	return nil
}

// witness builds a storage proof over the recorded reads: one inclusion
// proof per read, all under the root of a Merkle tree built from the sorted
// (key, value) leaves. postStateRoot is not part of the encoding. An empty
// read set (e.g. a no-op phase) yields an empty proof rather than an error.
func witness(reads map[string][]byte, postStateRoot executor.Hash) (*executor.StorageProof, error) {
	_ = postStateRoot // bound into the proof by the caller when submitting the fraud proof
	if len(reads) == 0 {
		return &executor.StorageProof{Encoded: []byte("[]")}, nil
	}

	keys := make([]string, 0, len(reads))
	for k := range reads {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	leaves := make([][]byte, 0, len(keys))
	for _, k := range keys {
		leaves = append(leaves, merkle.KeyValueLeaf([]byte(k), reads[k]))
	}

	tree, err := merkle.BuildTree(leaves)
	if err != nil {
		return nil, fmt.Errorf("build storage proof tree: %w", err)
	}

	var encoded []byte
	encoded = append(encoded, '[')
	for i := range leaves {
		incl, err := tree.GenerateProof(i)
		if err != nil {
			return nil, fmt.Errorf("generate inclusion proof: %w", err)
		}
		pb, err := incl.ToJSON()
		if err != nil {
			return nil, fmt.Errorf("encode inclusion proof: %w", err)
		}
		if i > 0 {
			encoded = append(encoded, ',')
		}
		encoded = append(encoded, pb...)
	}
	encoded = append(encoded, ']')
	return &executor.StorageProof{Encoded: encoded}, nil
}
