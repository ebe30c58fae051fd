// Copyright 2025 Exelayer Protocol
//
// Package gossip is the core of the executor (spec.md §4.6, C6): the
// on_bundle and on_execution_receipt entry points every gossiped bundle and
// receipt pass through before this node accepts, rebroadcasts, or
// challenges them. It runs the equivocation, duplicate, signature, author
// and transaction-legality checks on bundles; and the wait-for-local-
// receipt, trace-comparison and fraud-proof-synthesis pipeline on receipts.
package gossip

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/exelayer/executor-core/pkg/collab"
	"github.com/exelayer/executor-core/pkg/crypto/bls"
	"github.com/exelayer/executor-core/pkg/executor"
	"github.com/exelayer/executor-core/pkg/metrics"
	"github.com/exelayer/executor-core/pkg/prover"
	"github.com/exelayer/executor-core/pkg/receiptstore"
	"github.com/exelayer/executor-core/pkg/secondaryblock"
	"github.com/exelayer/executor-core/pkg/submitter"
	"github.com/exelayer/executor-core/pkg/xerrors"
	"github.com/exelayer/executor-core/pkg/xlog"
)

var log = xlog.Component("gossip")

// Verdicts are the outcome labels recorded against metrics.GossipBundleVerdicts
// and metrics.GossipReceiptVerdicts.
const (
	VerdictAccepted     = "accepted"
	VerdictDuplicate     = "duplicate"
	VerdictBadSignature  = "bad_signature"
	VerdictInvalidAuthor = "invalid_author"
	VerdictEquivocation  = "equivocation"
	VerdictIllegalTx     = "illegal_tx"
	VerdictFraudDetected = "fraud_detected"
	VerdictNotPruned     = "receipt_matches"
	VerdictPruned        = "receipt_pruned"
)

// Handler runs the bundle and receipt validation pipelines.
type Handler struct {
	runtime collab.PrimaryRuntime
	pool    collab.TxPool
	legal   collab.TxLegality
	seeds   collab.ShufflingSeedSource
	builder collab.BlockBuilder
	store   *receiptstore.Store
	prover  *prover.Prover
	submit  *submitter.Submitter

	mu            sync.Mutex
	seenBundles   map[executor.Hash]bool
	seenReceipts  map[executor.Hash]bool
	slotAuthor    map[uint64]map[executor.ExecutorID]executor.Hash   // equivocation index
	bundlesByPrimary map[executor.Hash][]*executor.SignedBundle      // held for fraud-proof replay

	readyCh chan executor.Hash // capacity 1, signalled when a local receipt lands
}

// New creates a Handler. legal may be nil, in which case no extrinsic is
// ever flagged illegal: a pool-unknown extrinsic is accepted without
// further checking. A non-nil legal rules on every extrinsic the pool does
// not report ready.
func New(runtime collab.PrimaryRuntime, pool collab.TxPool, legal collab.TxLegality, seeds collab.ShufflingSeedSource, builder collab.BlockBuilder, store *receiptstore.Store, p *prover.Prover) *Handler {
	return &Handler{
		runtime:          runtime,
		pool:             pool,
		legal:            legal,
		seeds:            seeds,
		builder:          builder,
		store:            store,
		prover:           p,
		submit:           submitter.New(runtime),
		seenBundles:      make(map[executor.Hash]bool),
		seenReceipts:     make(map[executor.Hash]bool),
		slotAuthor:       make(map[uint64]map[executor.ExecutorID]executor.Hash),
		bundlesByPrimary: make(map[executor.Hash][]*executor.SignedBundle),
		readyCh:          make(chan executor.Hash, 1),
	}
}

// NotifyReceiptStored signals the waiting side of OnExecutionReceipt that a
// local receipt for hash has just landed, without blocking the caller if
// nobody is waiting yet (bounded rendezvous, capacity 1: a stale
// notification is simply overwritten).
func (h *Handler) NotifyReceiptStored(hash executor.Hash) {
	select {
	case h.readyCh <- hash:
	default:
		select {
		case <-h.readyCh:
		default:
		}
		select {
		case h.readyCh <- hash:
		default:
		}
	}
}

// OnBundle runs the full bundle-acceptance pipeline of spec §4.6.
func (h *Handler) OnBundle(ctx context.Context, signed *executor.SignedBundle) (string, error) {
	corrID := uuid.NewString()
	bundleHash := signed.Bundle.Hash()

	if equivocated, proof := h.checkEquivocation(signed, bundleHash); equivocated {
		h.submit.SubmitBundleEquivocationProof(ctx, signed.Bundle.Header.PrimaryBlockHash, proof)
		metrics.GossipBundleVerdicts.WithLabelValues(VerdictEquivocation).Inc()
		return VerdictEquivocation, xerrors.ErrBundleEquivocation
	}

	h.mu.Lock()
	if h.seenBundles[bundleHash] {
		h.mu.Unlock()
		metrics.GossipBundleVerdicts.WithLabelValues(VerdictDuplicate).Inc()
		return VerdictDuplicate, nil
	}
	h.mu.Unlock()

	pk, err := bls.PublicKeyFromBytes(signed.Signer[:])
	if err != nil {
		metrics.GossipBundleVerdicts.WithLabelValues(VerdictBadSignature).Inc()
		return VerdictBadSignature, xerrors.ErrBadBundleSignature
	}
	sig, err := bls.SignatureFromBytes(signed.Signature)
	if err != nil || !pk.VerifyWithDomain(sig, bundleHash[:], bls.DomainBundle) {
		metrics.GossipBundleVerdicts.WithLabelValues(VerdictBadSignature).Inc()
		return VerdictBadSignature, xerrors.ErrBadBundleSignature
	}

	elected, err := h.runtime.ExecutorID(ctx, signed.Bundle.Header.PrimaryBlockHash)
	if err != nil {
		return "", fmt.Errorf("resolve elected executor: %w", err)
	}
	if elected != signed.Signer {
		metrics.GossipBundleVerdicts.WithLabelValues(VerdictInvalidAuthor).Inc()
		return VerdictInvalidAuthor, xerrors.InvalidBundleAuthor(signed.Signer.Hex(), elected.Hex())
	}

	if verdict, err := h.checkExtrinsicLegality(ctx, signed, bundleHash); verdict != "" {
		return verdict, err
	}

	h.mu.Lock()
	h.seenBundles[bundleHash] = true
	h.bundlesByPrimary[signed.Bundle.Header.PrimaryBlockHash] = append(h.bundlesByPrimary[signed.Bundle.Header.PrimaryBlockHash], signed)
	h.mu.Unlock()

	metrics.GossipBundleVerdicts.WithLabelValues(VerdictAccepted).Inc()
	log.Debug("bundle accepted", "corr_id", corrID, "slot", signed.Bundle.Header.Slot, "hash", bundleHash.Hex(), "signer", signed.Signer.Hex())
	return VerdictAccepted, nil
}

// checkEquivocation records signed against the slot->signer->hash index and
// reports whether a distinct bundle from the same signer for the same slot
// was already recorded (spec §4.6, §7: ErrBundleEquivocation).
func (h *Handler) checkEquivocation(signed *executor.SignedBundle, bundleHash executor.Hash) (bool, executor.BundleEquivocationProof) {
	h.mu.Lock()
	defer h.mu.Unlock()

	slot := signed.Bundle.Header.Slot
	bySigner, ok := h.slotAuthor[slot]
	if !ok {
		bySigner = make(map[executor.ExecutorID]executor.Hash)
		h.slotAuthor[slot] = bySigner
	}

	prior, seen := bySigner[signed.Signer]
	if seen && prior != bundleHash {
		first := h.findSeenBundle(slot, signed.Signer)
		return true, executor.BundleEquivocationProof{
			Slot:   slot,
			Signer: signed.Signer,
			First:  first,
			Second: *signed,
		}
	}
	bySigner[signed.Signer] = bundleHash
	return false, executor.BundleEquivocationProof{}
}

// findSeenBundle returns the first bundle cached for slot/signer, used to
// populate the equivocation proof's First field. Safe to call with mu held.
func (h *Handler) findSeenBundle(slot uint64, signer executor.ExecutorID) executor.SignedBundle {
	for _, bundles := range h.bundlesByPrimary {
		for _, b := range bundles {
			if b.Bundle.Header.Slot == slot && b.Signer == signer {
				return *b
			}
		}
	}
	return executor.SignedBundle{}
}

// checkExtrinsicLegality routes every extrinsic the pool does not itself
// recognize as ready through the TxLegality predicate, per spec §9. A
// returned non-empty verdict means OnBundle should stop and return it.
func (h *Handler) checkExtrinsicLegality(ctx context.Context, signed *executor.SignedBundle, bundleHash executor.Hash) (string, error) {
	if h.pool == nil {
		return "", nil
	}
	for i, ext := range signed.Bundle.Extrinsics {
		ready, err := h.pool.ReadyTransaction(ctx, h.pool.HashOf(ext))
		if err != nil {
			return "", fmt.Errorf("check pool membership: %w", err)
		}
		if ready {
			continue
		}
		if h.legal == nil {
			continue // spec §9: no legality oracle configured, pool-unknown is not itself proof of illegality
		}
		legal, err := h.legal.IsLegal(ctx, ext)
		if err != nil {
			return "", fmt.Errorf("check extrinsic legality: %w", err)
		}
		if legal {
			continue
		}
		proof := executor.InvalidTransactionProof{
			BundleHash:     bundleHash,
			ExtrinsicIndex: i,
			ExtrinsicHash:  h.pool.HashOf(ext),
			Reason:         "extrinsic rejected by legality predicate",
		}
		h.submit.SubmitInvalidTransactionProof(ctx, signed.Bundle.Header.PrimaryBlockHash, proof)
		metrics.GossipBundleVerdicts.WithLabelValues(VerdictIllegalTx).Inc()
		return VerdictIllegalTx, nil
	}
	return "", nil
}

// OnExecutionReceipt runs the receipt-acceptance pipeline of spec §4.6:
// duplicate and signature/author checks, then waits for this node's own
// receipt at the same height to land before comparing traces.
func (h *Handler) OnExecutionReceipt(ctx context.Context, remote *executor.SignedExecutionReceipt) (string, error) {
	corrID := uuid.NewString()
	receiptHash := remote.Receipt.Hash()

	h.mu.Lock()
	if h.seenReceipts[receiptHash] {
		h.mu.Unlock()
		metrics.GossipReceiptVerdicts.WithLabelValues(VerdictDuplicate).Inc()
		return VerdictDuplicate, nil
	}
	h.mu.Unlock()

	pk, err := bls.PublicKeyFromBytes(remote.Signer[:])
	if err != nil {
		metrics.GossipReceiptVerdicts.WithLabelValues(VerdictBadSignature).Inc()
		return VerdictBadSignature, xerrors.ErrBadExecutionReceiptSignature
	}
	sig, err := bls.SignatureFromBytes(remote.Signature)
	if err != nil || !pk.VerifyWithDomain(sig, receiptHash[:], bls.DomainExecutionReceipt) {
		metrics.GossipReceiptVerdicts.WithLabelValues(VerdictBadSignature).Inc()
		return VerdictBadSignature, xerrors.ErrBadExecutionReceiptSignature
	}

	elected, err := h.runtime.ExecutorID(ctx, remote.Receipt.PrimaryHash)
	if err != nil {
		return "", fmt.Errorf("resolve elected executor: %w", err)
	}
	if elected != remote.Signer {
		metrics.GossipReceiptVerdicts.WithLabelValues(VerdictInvalidAuthor).Inc()
		return VerdictInvalidAuthor, xerrors.InvalidExecutionReceiptAuthor(remote.Signer.Hex(), elected.Hex())
	}

	best, err := h.runtime.BestExecutionChainNumber(ctx, remote.Receipt.PrimaryHash)
	if err == nil && receiptstore.TargetReceiptIsPruned(best, remote.Receipt.PrimaryNumber) {
		metrics.ReceiptsPruned.Inc()
		metrics.GossipReceiptVerdicts.WithLabelValues(VerdictPruned).Inc()
		return VerdictPruned, nil
	}

	local, err := h.waitForLocalReceipt(ctx, remote.Receipt.SecondaryHash, remote.Receipt.PrimaryNumber)
	if err != nil {
		return "", fmt.Errorf("wait for local execution receipt: %w", err)
	}

	idx, equal := compareTraces(local.Trace, remote.Receipt.Trace)
	if equal {
		h.mu.Lock()
		h.seenReceipts[receiptHash] = true
		h.mu.Unlock()
		metrics.GossipReceiptVerdicts.WithLabelValues(VerdictNotPruned).Inc()
		return VerdictNotPruned, nil
	}

	proof, err := h.synthesizeFraudProof(ctx, local, idx)
	if err != nil {
		return "", fmt.Errorf("synthesize fraud proof: %w", err)
	}
	log.Info("fraud proof synthesized", "corr_id", corrID, "divergent_index", idx, "secondary_hash", remote.Receipt.SecondaryHash.Hex())
	h.submit.SubmitFraudProof(ctx, remote.Receipt.PrimaryHash, *proof)
	metrics.GossipReceiptVerdicts.WithLabelValues(VerdictFraudDetected).Inc()

	h.mu.Lock()
	h.seenReceipts[receiptHash] = true
	h.mu.Unlock()

	// A well-formed receipt that disagrees is not an error: the fraud proof
	// is dispatched as a side effect and the verdict reports it.
	return VerdictFraudDetected, nil
}

// waitForLocalReceipt blocks until this node's own receipt for
// secondaryHash (or, failing that, primaryNumber) is available, polling
// the store every executor.ReceiptPollIntervalMillis while also listening
// for an out-of-band NotifyReceiptStored signal. Returns ctx.Err() if ctx
// is cancelled first.
func (h *Handler) waitForLocalReceipt(ctx context.Context, secondaryHash executor.Hash, primaryNumber uint64) (*executor.ExecutionReceipt, error) {
	if r, err := h.store.Load(secondaryHash); err == nil {
		return r, nil
	}

	ticker := time.NewTicker(executor.ReceiptPollIntervalMillis * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-h.readyCh:
		case <-ticker.C:
		}
		if r, err := h.store.Load(secondaryHash); err == nil {
			return r, nil
		}
		if r, err := h.store.LoadAtHeight(primaryNumber); err == nil {
			return r, nil
		}
	}
}

// compareTraces returns the index of the first divergent trace entry and
// false, or -1 and true if both traces match exactly. Unequal lengths are
// treated as a divergence at the shorter trace's length (spec §9): a
// remote claiming more or fewer execution steps than actually occurred is
// fraud, not a benign length mismatch.
func compareTraces(local, remote []executor.Hash) (int, bool) {
	n := len(local)
	if len(remote) < n {
		n = len(remote)
	}
	for i := 0; i < n; i++ {
		if local[i] != remote[i] {
			return i, false
		}
	}
	if len(local) != len(remote) {
		return n, false
	}
	return -1, true
}

// synthesizeFraudProof replays the divergent phase of this node's own
// locally-computed trace and packages the resulting storage proof as a
// FraudProof (spec §4.6, §4.2). local is this node's own receipt for the
// contested block, fetched by waitForLocalReceipt — the pre/post state
// roots a fraud proof asserts must always come from local.Trace, never
// from the remote peer's (possibly fraudulent) claimed trace: idx is by
// definition the first point where the two disagree, so remote.Trace[idx]
// is exactly the value under dispute.
func (h *Handler) synthesizeFraudProof(ctx context.Context, local *executor.ExecutionReceipt, idx int) (*executor.FraudProof, error) {
	h.mu.Lock()
	bundles := append([]*executor.SignedBundle{}, h.bundlesByPrimary[local.PrimaryHash]...)
	h.mu.Unlock()

	seed, err := h.seeds.ShufflingSeed(ctx, local.PrimaryHash)
	if err != nil {
		return nil, fmt.Errorf("derive shuffling seed: %w", err)
	}
	extrinsics := secondaryblock.ShuffleExtrinsics(seed, bundles)

	last := len(local.Trace) - 1
	var phase executor.ExecutionPhase
	switch {
	case idx <= 0:
		phase = executor.InitializeBlockPhase{}
	case idx >= last:
		phase = executor.FinalizeBlockPhase{}
	default:
		extIdx := idx - 1
		var extBytes []byte
		if extIdx >= 0 && extIdx < len(extrinsics) {
			extBytes = extrinsics[extIdx]
		}
		phase = executor.ApplyExtrinsicPhase{ExtrinsicBytes: extBytes, Index: extIdx}
	}

	var preStateRoot executor.Hash
	if idx > 0 && idx-1 < len(local.Trace) {
		preStateRoot = local.Trace[idx-1]
	} else {
		parentHeader, err := h.builder.HeaderAt(ctx, local.SecondaryParent)
		if err != nil {
			return nil, fmt.Errorf("load parent header for fraud proof: %w", err)
		}
		preStateRoot = parentHeader.StateRoot
	}

	postStateRoot := preStateRoot
	if idx >= 0 && idx < len(local.Trace) {
		postStateRoot = local.Trace[idx]
	}

	storageProof, err := h.prover.Prove(ctx, collab.BlockID{Hash: local.SecondaryParent, Number: local.PrimaryNumber - 1}, phase, nil, postStateRoot)
	if err != nil {
		return nil, fmt.Errorf("prove divergent phase: %w", err)
	}

	return &executor.FraudProof{
		ParentNumber:  local.PrimaryNumber - 1,
		ParentHash:    local.SecondaryParent,
		PreStateRoot:  preStateRoot,
		PostStateRoot: postStateRoot,
		Phase:         phase,
		Proof:         *storageProof,
	}, nil
}
