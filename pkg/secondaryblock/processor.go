// Copyright 2025 Exelayer Protocol
//
// Package secondaryblock is the Bundle Processor (spec.md §4.4, C4): given
// the bundles carried by a newly imported primary block, it derives the
// deterministic extrinsic ordering, drives the secondary chain's block
// builder through initialize_block / apply_extrinsic* / finalize_block,
// imports the resulting block, and persists (and optionally gossips) the
// execution receipt produced along the way.
package secondaryblock

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/exelayer/executor-core/pkg/collab"
	"github.com/exelayer/executor-core/pkg/crypto/bls"
	"github.com/exelayer/executor-core/pkg/executor"
	"github.com/exelayer/executor-core/pkg/metrics"
	"github.com/exelayer/executor-core/pkg/receiptstore"
	"github.com/exelayer/executor-core/pkg/xlog"
)

var log = xlog.Component("secondaryblock")

// ImportedPrimaryBlock is the subset of a newly imported primary block the
// processor needs: its identity and the bundles it carried.
type ImportedPrimaryBlock struct {
	Hash    executor.Hash
	Number  uint64
	Parent  executor.Hash
	Bundles []*executor.SignedBundle
}

// Processor turns imported primary blocks into secondary blocks and their
// execution receipts.
type Processor struct {
	builder  collab.BlockBuilder
	seeds    collab.ShufflingSeedSource
	upgrades collab.RuntimeUpgrade // optional, may be nil
	store    *receiptstore.Store
	key      *bls.KeyManager // optional, nil if this node does not sign receipts
	self     executor.ExecutorID
	receipts chan<- *executor.SignedExecutionReceipt // optional, nil disables publish
}

// New creates a Processor. upgrades and receipts may be nil: a nil upgrades
// source means this node never installs pending runtime upgrades, and a
// nil receipts channel means produced receipts are stored but not gossiped
// (e.g. a non-authority node replaying to stay in sync).
func New(builder collab.BlockBuilder, seeds collab.ShufflingSeedSource, upgrades collab.RuntimeUpgrade, store *receiptstore.Store, key *bls.KeyManager, self executor.ExecutorID, receipts chan<- *executor.SignedExecutionReceipt) *Processor {
	return &Processor{builder: builder, seeds: seeds, upgrades: upgrades, store: store, key: key, self: self, receipts: receipts}
}

// Process executes block against the bundles it carried and returns the
// resulting execution receipt. Steps follow spec §4.4:
//
//  a. derive the deterministic shuffling seed for block.Hash
//  b. flatten and deterministically shuffle every bundle's extrinsics
//  c. install any pending runtime upgrade before execution
//  d. drive initialize_block / apply_extrinsic* / finalize_block, recording
//     the post-state root after each step into the receipt's trace
//  e. import the finalized block
//  f. persist the receipt, then sign and publish it if this node signs
func (p *Processor) Process(ctx context.Context, parent collab.BlockID, block ImportedPrimaryBlock) (*executor.ExecutionReceipt, error) {
	seed, err := p.seeds.ShufflingSeed(ctx, block.Hash)
	if err != nil {
		return nil, fmt.Errorf("derive shuffling seed: %w", err)
	}
	extrinsics := ShuffleExtrinsics(seed, block.Bundles)

	if p.upgrades != nil {
		code, pending, err := p.upgrades.PendingCodeUpgrade(ctx, block.Hash)
		if err != nil {
			return nil, fmt.Errorf("check pending runtime upgrade: %w", err)
		}
		if pending {
			if err := p.upgrades.UpgradeRuntime(ctx, code); err != nil {
				return nil, fmt.Errorf("install runtime upgrade: %w", err)
			}
			log.Info("installed secondary runtime upgrade", "primary_hash", block.Hash.Hex())
		}
	}

	parentHeader, err := p.builder.HeaderAt(ctx, parent.Hash)
	if err != nil {
		return nil, fmt.Errorf("load parent header: %w", err)
	}

	trace := make([]executor.Hash, 0, len(extrinsics)+2)

	initRoot, err := p.builder.InitializeBlock(ctx, parent, collab.SecondaryHeader{})
	if err != nil {
		return nil, fmt.Errorf("initialize_block: %w", err)
	}
	trace = append(trace, initRoot)

	for i, ext := range extrinsics {
		root, err := p.builder.ApplyExtrinsic(ctx, ext)
		if err != nil {
			return nil, fmt.Errorf("apply_extrinsic(%d): %w", i, err)
		}
		trace = append(trace, root)
	}

	finalRoot, header, err := p.builder.FinalizeBlock(ctx)
	if err != nil {
		return nil, fmt.Errorf("finalize_block: %w", err)
	}
	trace = append(trace, finalRoot)

	if err := p.builder.Import(ctx, header); err != nil {
		return nil, fmt.Errorf("import secondary block: %w", err)
	}

	receipt := &executor.ExecutionReceipt{
		PrimaryNumber:   block.Number,
		PrimaryHash:     block.Hash,
		SecondaryHash:   header.Hash,
		SecondaryParent: parentHeader.Hash,
		Trace:           trace,
	}

	if err := p.store.StoreReceipt(receipt); err != nil {
		return nil, fmt.Errorf("persist execution receipt: %w", err)
	}
	metrics.ReceiptsStored.Inc()
	log.Debug("execution receipt produced", "primary_number", block.Number, "secondary_hash", header.Hash.Hex(), "extrinsics", len(extrinsics))

	if p.key != nil && p.receipts != nil {
		receiptHash := receipt.Hash()
		sig, err := p.key.SignWithDomain(receiptHash[:], bls.DomainExecutionReceipt)
		if err != nil {
			return nil, fmt.Errorf("sign execution receipt: %w", err)
		}
		signed := &executor.SignedExecutionReceipt{Receipt: *receipt, Signer: p.self, Signature: sig.Bytes()}
		select {
		case p.receipts <- signed:
		default:
			log.Info("dropping execution receipt, outbound channel full", "secondary_hash", header.Hash.Hex())
		}
	}

	return receipt, nil
}

// ShuffleExtrinsics flattens every bundle's extrinsics in bundle order and
// applies a Fisher-Yates shuffle keyed by seed, so every node replaying the
// same primary block arrives at the same secondary extrinsic order (spec
// §4.4 step b). Exported so the gossip handler's fraud-proof synthesizer
// (package gossip) can reconstruct the same ordering when it needs to
// replay a single phase out of a bundle set it only holds by reference.
func ShuffleExtrinsics(seed [32]byte, bundles []*executor.SignedBundle) [][]byte {
	var flat [][]byte
	for _, b := range bundles {
		flat = append(flat, b.Bundle.Extrinsics...)
	}
	if len(flat) < 2 {
		return flat
	}

	r := rand.New(rand.NewSource(seedToInt64(seed)))
	shuffled := make([][]byte, len(flat))
	copy(shuffled, flat)
	r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	return shuffled
}

func seedToInt64(seed [32]byte) int64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(seed[i])
	}
	return int64(v)
}
