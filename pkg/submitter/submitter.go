// Copyright 2025 Exelayer Protocol
//
// Package submitter is the Proof Submitter (spec.md §4.7, C7): it hands
// equivocation, fraud and invalid-transaction proofs to the primary
// runtime's unsigned-extrinsic submission API on a detached goroutine per
// call, so a slow or unreachable primary node never blocks the gossip
// handler that discovered the proof.
package submitter

import (
	"context"

	"github.com/exelayer/executor-core/pkg/collab"
	"github.com/exelayer/executor-core/pkg/executor"
	"github.com/exelayer/executor-core/pkg/metrics"
	"github.com/exelayer/executor-core/pkg/xlog"
)

var log = xlog.Component("submitter")

// Submitter fires proof submissions at the primary runtime without
// waiting for them to land (spec §4.7: "fire and forget").
type Submitter struct {
	runtime collab.PrimaryRuntime
}

// New creates a Submitter over runtime.
func New(runtime collab.PrimaryRuntime) *Submitter {
	return &Submitter{runtime: runtime}
}

// SubmitFraudProof submits proof for block at in a detached goroutine.
func (s *Submitter) SubmitFraudProof(ctx context.Context, at executor.Hash, proof executor.FraudProof) {
	metrics.SubmissionsInFlight.Inc()
	go func() {
		defer metrics.SubmissionsInFlight.Dec()
		if err := s.runtime.SubmitFraudProofUnsigned(ctx, at, proof); err != nil {
			log.Debug("fraud proof submission failed", "err", err)
			return
		}
		metrics.FraudProofsSubmitted.Inc()
	}()
}

// SubmitBundleEquivocationProof submits proof for block at in a detached
// goroutine.
func (s *Submitter) SubmitBundleEquivocationProof(ctx context.Context, at executor.Hash, proof executor.BundleEquivocationProof) {
	metrics.SubmissionsInFlight.Inc()
	go func() {
		defer metrics.SubmissionsInFlight.Dec()
		if err := s.runtime.SubmitBundleEquivocationProofUnsigned(ctx, at, proof); err != nil {
			log.Debug("equivocation proof submission failed", "err", err)
		}
	}()
}

// SubmitInvalidTransactionProof submits proof for block at in a detached
// goroutine.
func (s *Submitter) SubmitInvalidTransactionProof(ctx context.Context, at executor.Hash, proof executor.InvalidTransactionProof) {
	metrics.SubmissionsInFlight.Inc()
	go func() {
		defer metrics.SubmissionsInFlight.Dec()
		if err := s.runtime.SubmitInvalidTransactionProofUnsigned(ctx, at, proof); err != nil {
			log.Debug("invalid transaction proof submission failed", "err", err)
		}
	}()
}
