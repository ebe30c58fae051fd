// Copyright 2025 Exelayer Protocol
//
// Package bundleproducer is the Bundle Producer (spec.md §4.3, C3): on each
// primary-chain slot tick, an authority drains the transaction pool's ready
// set, signs a bundle over it, and publishes it on an outbound channel.
// Production is slot-gated, not retried, and never blocks: a full channel
// drops the bundle.
package bundleproducer

import (
	"context"
	"fmt"

	"github.com/exelayer/executor-core/pkg/collab"
	"github.com/exelayer/executor-core/pkg/crypto/bls"
	"github.com/exelayer/executor-core/pkg/executor"
	"github.com/exelayer/executor-core/pkg/metrics"
	"github.com/exelayer/executor-core/pkg/xlog"
)

var log = xlog.Component("bundleproducer")

// SlotInfo is one primary-chain slot tick, carrying the tip the bundle
// should be built against.
type SlotInfo struct {
	Slot        uint64
	PrimaryTip  executor.Hash
}

// Producer drains the transaction pool and publishes signed bundles for
// slots this node is elected authority for.
type Producer struct {
	pool    collab.TxPool
	runtime collab.PrimaryRuntime
	key     *bls.KeyManager
	self    executor.ExecutorID
	out     chan<- *executor.SignedBundle
}

// New creates a Producer that signs with key and publishes onto out. self
// must be the ExecutorID corresponding to key's public key: OnSlot compares
// it against the runtime's elected executor for each slot to gate
// production, and names it as the bundle's signer.
func New(pool collab.TxPool, runtime collab.PrimaryRuntime, key *bls.KeyManager, self executor.ExecutorID, out chan<- *executor.SignedBundle) *Producer {
	return &Producer{pool: pool, runtime: runtime, key: key, self: self, out: out}
}

// OnSlot is the slot-tick entry point. It is a no-op, not an error, when
// this node is not the elected executor for slot's primary tip — per spec
// §4.3, non-authorities simply skip production.
func (p *Producer) OnSlot(ctx context.Context, slot SlotInfo) error {
	elected, err := p.runtime.ExecutorID(ctx, slot.PrimaryTip)
	if err != nil {
		return fmt.Errorf("resolve elected executor: %w", err)
	}
	if elected != p.self {
		return nil
	}

	extrinsics, err := p.pool.Ready(ctx)
	if err != nil {
		return fmt.Errorf("drain ready pool: %w", err)
	}

	bundle := &executor.Bundle{
		Header: executor.BundleHeader{
			Slot:             slot.Slot,
			PrimaryBlockHash: slot.PrimaryTip,
		},
		Extrinsics: extrinsics,
	}
	bundleHash := bundle.Hash()

	sig, err := p.key.SignWithDomain(bundleHash[:], bls.DomainBundle)
	if err != nil {
		return fmt.Errorf("sign bundle: %w", err)
	}

	signed := &executor.SignedBundle{
		Bundle:    *bundle,
		Signer:    p.self,
		Signature: sig.Bytes(),
	}

	select {
	case p.out <- signed:
		metrics.BundlesProduced.Inc()
		log.Debug("bundle produced", "slot", slot.Slot, "extrinsics", len(extrinsics), "hash", bundleHash.Hex())
	default:
		metrics.BundlesDroppedChannelFull.Inc()
		log.Info("dropping bundle, outbound channel full", "slot", slot.Slot, "hash", bundleHash.Hex())
	}
	return nil
}
