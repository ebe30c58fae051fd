// Copyright 2025 Exelayer Protocol
//
// Package metrics registers the prometheus instrumentation for the
// executor core: production counts, gossip verdicts, and proof
// submissions in flight. Components pull from this package's package-level
// vars rather than threading a registry handle through every call site,
// matching how the rest of the corpus wires prometheus/client_golang.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	BundlesProduced = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "executor",
		Subsystem: "bundle",
		Name:      "produced_total",
		Help:      "Bundles produced and published by this executor.",
	})

	BundlesDroppedChannelFull = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "executor",
		Subsystem: "bundle",
		Name:      "dropped_channel_full_total",
		Help:      "Bundles dropped because the outbound publish channel was full.",
	})

	ReceiptsStored = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "executor",
		Subsystem: "receipt",
		Name:      "stored_total",
		Help:      "Execution receipts persisted by the auxiliary receipt store.",
	})

	ReceiptsPruned = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "executor",
		Subsystem: "receipt",
		Name:      "pruned_total",
		Help:      "Receipts classified as pruned when a remote receipt was checked against them.",
	})

	GossipBundleVerdicts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "executor",
		Subsystem: "gossip",
		Name:      "bundle_verdicts_total",
		Help:      "on_bundle verdicts by outcome.",
	}, []string{"verdict"})

	GossipReceiptVerdicts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "executor",
		Subsystem: "gossip",
		Name:      "receipt_verdicts_total",
		Help:      "on_execution_receipt verdicts by outcome.",
	}, []string{"verdict"})

	FraudProofsSubmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "executor",
		Subsystem: "submitter",
		Name:      "fraud_proofs_submitted_total",
		Help:      "Fraud proofs handed to the primary runtime submission API.",
	})

	SubmissionsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "executor",
		Subsystem: "submitter",
		Name:      "submissions_in_flight",
		Help:      "Detached proof-submission goroutines currently running. Unbounded under adversarial gossip; see spec §5 backpressure TODO.",
	})
)

// Register adds every collector in this package to reg. Call once at
// wiring time with a prometheus.Registerer (typically
// prometheus.DefaultRegisterer).
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		BundlesProduced,
		BundlesDroppedChannelFull,
		ReceiptsStored,
		ReceiptsPruned,
		GossipBundleVerdicts,
		GossipReceiptVerdicts,
		FraudProofsSubmitted,
		SubmissionsInFlight,
	)
}
