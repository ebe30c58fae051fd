// Copyright 2025 Exelayer Protocol
//
// Package devnet provides minimal in-memory implementations of every
// collab interface, for running the executor core standalone (no real
// primary-chain node or secondary block builder attached) during local
// development and in tests that exercise the wiring in cmd/executor. None
// of these types are suitable for a production deployment: a real
// deployment plugs in RPC- or in-process-backed collaborators instead.
package devnet

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/exelayer/executor-core/pkg/collab"
	"github.com/exelayer/executor-core/pkg/executor"
)

// Runtime is a trivial collab.PrimaryRuntime: a single fixed executor is
// always elected, and every proof submission is recorded rather than sent
// anywhere.
type Runtime struct {
	mu sync.Mutex

	Elected executor.ExecutorID
	Height  uint64

	Equivocations []executor.BundleEquivocationProof
	FraudProofs   []executor.FraudProof
	InvalidTxs    []executor.InvalidTransactionProof
}

// NewRuntime creates a Runtime that always elects elected and reports
// height as the pruning-horizon reference.
func NewRuntime(elected executor.ExecutorID, height uint64) *Runtime {
	return &Runtime{Elected: elected, Height: height}
}

func (r *Runtime) ExecutorID(ctx context.Context, primaryHash executor.Hash) (executor.ExecutorID, error) {
	return r.Elected, nil
}

func (r *Runtime) BestExecutionChainNumber(ctx context.Context, primaryHash executor.Hash) (uint64, error) {
	return r.Height, nil
}

func (r *Runtime) SubmitBundleEquivocationProofUnsigned(ctx context.Context, at executor.Hash, proof executor.BundleEquivocationProof) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Equivocations = append(r.Equivocations, proof)
	return nil
}

func (r *Runtime) SubmitFraudProofUnsigned(ctx context.Context, at executor.Hash, proof executor.FraudProof) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FraudProofs = append(r.FraudProofs, proof)
	return nil
}

func (r *Runtime) SubmitInvalidTransactionProofUnsigned(ctx context.Context, at executor.Hash, proof executor.InvalidTransactionProof) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.InvalidTxs = append(r.InvalidTxs, proof)
	return nil
}

// SeedSource derives a shuffling seed deterministically from the primary
// block hash, rather than from any real on-chain randomness source.
type SeedSource struct{}

func (SeedSource) ShufflingSeed(ctx context.Context, primaryHash executor.Hash) ([32]byte, error) {
	return sha256.Sum256(primaryHash[:]), nil
}

// NoUpgrades reports that no secondary runtime upgrade is ever pending.
type NoUpgrades struct{}

func (NoUpgrades) PendingCodeUpgrade(ctx context.Context, primaryHash executor.Hash) ([]byte, bool, error) {
	return nil, false, nil
}

func (NoUpgrades) UpgradeRuntime(ctx context.Context, code []byte) error {
	return nil
}

// Pool is a slice-backed collab.TxPool: Submit (not part of the
// interface) appends, Ready drains, ReadyTransaction checks membership.
type Pool struct {
	mu      sync.Mutex
	pending [][]byte
}

func NewPool() *Pool {
	return &Pool{}
}

// Submit adds an extrinsic to the pool, for use by whatever feeds this
// devnet instance (a test, a CLI command, a generator goroutine).
func (p *Pool) Submit(ext []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = append(p.pending, ext)
}

func (p *Pool) Ready(ctx context.Context) ([][]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.pending))
	copy(out, p.pending)
	p.pending = nil
	return out, nil
}

func (p *Pool) HashOf(extrinsic []byte) executor.Hash {
	return sha256.Sum256(extrinsic)
}

func (p *Pool) ReadyTransaction(ctx context.Context, hash executor.Hash) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ext := range p.pending {
		if p.HashOf(ext) == hash {
			return true, nil
		}
	}
	return false, nil
}

// BlockBuilder is an in-memory collab.BlockBuilder: the "state" is a
// single accumulated byte slice per block, and the "root" of a state is
// its sha256. InitializeBlock starts a fresh read record (the parent's
// state root) and ApplyExtrinsic adds each extrinsic to it; FinalizeBlock
// records nothing. RecordedReads returns the record and clears it. It also
// keeps a header index so HeaderAt and Import work across blocks.
type BlockBuilder struct {
	mu sync.Mutex

	headers map[executor.Hash]collab.SecondaryHeader
	state   map[executor.Hash][]byte // state root -> accumulated bytes

	building   bool
	parent     collab.BlockID
	number     uint64
	accum      []byte
	reads      map[string][]byte
	nextIndex  int
}

func NewBlockBuilder(genesis collab.SecondaryHeader) *BlockBuilder {
	b := &BlockBuilder{
		headers: map[executor.Hash]collab.SecondaryHeader{genesis.Hash: genesis},
		state:   map[executor.Hash][]byte{genesis.StateRoot: nil},
	}
	return b
}

func stateRoot(accum []byte) executor.Hash {
	return sha256.Sum256(accum)
}

func (b *BlockBuilder) InitializeBlock(ctx context.Context, parent collab.BlockID, header collab.SecondaryHeader) (executor.Hash, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	parentHeader, ok := b.headers[parent.Hash]
	if !ok {
		return executor.Hash{}, fmt.Errorf("devnet: unknown parent %s", parent.Hash)
	}
	b.building = true
	b.parent = parent
	b.number = parentHeader.Number + 1
	b.accum = append([]byte(nil), b.state[parentHeader.StateRoot]...)
	b.accum = append(b.accum, []byte("init")...)
	b.reads = map[string][]byte{"parent_state_root": parentHeader.StateRoot[:]}

	root := stateRoot(b.accum)
	b.state[root] = append([]byte(nil), b.accum...)
	return root, nil
}

func (b *BlockBuilder) ApplyExtrinsic(ctx context.Context, extrinsic []byte) (executor.Hash, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.building {
		return executor.Hash{}, fmt.Errorf("devnet: apply_extrinsic outside an open block")
	}
	b.accum = append(b.accum, extrinsic...)
	b.reads[fmt.Sprintf("extrinsic/%d", b.nextIndex)] = extrinsic
	b.nextIndex++

	root := stateRoot(b.accum)
	b.state[root] = append([]byte(nil), b.accum...)
	return root, nil
}

func (b *BlockBuilder) FinalizeBlock(ctx context.Context) (executor.Hash, collab.SecondaryHeader, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.building {
		return executor.Hash{}, collab.SecondaryHeader{}, fmt.Errorf("devnet: finalize_block outside an open block")
	}
	b.accum = append(b.accum, []byte("finalize")...)
	root := stateRoot(b.accum)
	b.state[root] = append([]byte(nil), b.accum...)

	header := collab.SecondaryHeader{
		Hash:       sha256.Sum256(append([]byte("header"), b.accum...)),
		ParentHash: b.parent.Hash,
		Number:     b.number,
		StateRoot:  root,
	}
	b.building = false
	b.nextIndex = 0
	return root, header, nil
}

func (b *BlockBuilder) Overlay(ctx context.Context) (collab.Overlay, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return collab.Overlay{
		Writes:   map[executor.Hash][]byte{stateRoot(b.accum): append([]byte(nil), b.accum...)},
		PostRoot: stateRoot(b.accum),
	}, nil
}

func (b *BlockBuilder) HeaderAt(ctx context.Context, hash executor.Hash) (collab.SecondaryHeader, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	header, ok := b.headers[hash]
	if !ok {
		return collab.SecondaryHeader{}, fmt.Errorf("devnet: unknown header %s", hash)
	}
	return header, nil
}

func (b *BlockBuilder) Import(ctx context.Context, header collab.SecondaryHeader) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.headers[header.Hash] = header
	return nil
}

func (b *BlockBuilder) RecordedReads(ctx context.Context) (map[string][]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.reads
	b.reads = map[string][]byte{}
	return out, nil
}
