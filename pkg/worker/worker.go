// Copyright 2025 Exelayer Protocol
//
// Package worker is the Worker Loop (spec.md §4.5, C5): it multiplexes the
// primary chain's slot-notification and block-import streams into the
// bundle producer (C3) and bundle processor (C4), and maintains the
// bounded active-leaves set new components bootstrap their view of the
// primary chain tip from.
package worker

import (
	"context"
	"sort"

	"github.com/exelayer/executor-core/pkg/bundleproducer"
	"github.com/exelayer/executor-core/pkg/collab"
	"github.com/exelayer/executor-core/pkg/executor"
	"github.com/exelayer/executor-core/pkg/secondaryblock"
	"github.com/exelayer/executor-core/pkg/xlog"
)

var log = xlog.Component("worker")

// Loop drives the producer and processor from slot and import events,
// and tracks the active-leaves set (spec §4.5, bounded by
// executor.MaxActiveLeaves).
type Loop struct {
	producer *bundleproducer.Producer
	processor *secondaryblock.Processor

	slots   <-chan bundleproducer.SlotInfo
	imports <-chan secondaryblock.ImportedPrimaryBlock

	leaves []executor.ActiveLeaf
}

// New creates a Loop reading slot ticks from slots and imported primary
// blocks from imports, driving producer and processor respectively.
func New(producer *bundleproducer.Producer, processor *secondaryblock.Processor, slots <-chan bundleproducer.SlotInfo, imports <-chan secondaryblock.ImportedPrimaryBlock) *Loop {
	return &Loop{producer: producer, processor: processor, slots: slots, imports: imports}
}

// Bootstrap seeds the active-leaves set from a node's recent primary chain
// history at startup (spec §4.5): leaves are sorted by number ascending and
// truncated to the last executor.MaxActiveLeaves, with the current best
// appended last so it is always present even if the supplied history is
// shorter than the cap.
func (l *Loop) Bootstrap(history []executor.ActiveLeaf, best executor.ActiveLeaf) {
	sorted := append([]executor.ActiveLeaf{}, history...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Number < sorted[j].Number })

	dedup := make([]executor.ActiveLeaf, 0, len(sorted)+1)
	seen := map[executor.Hash]bool{best.Hash: true}
	for _, leaf := range sorted {
		if seen[leaf.Hash] {
			continue
		}
		seen[leaf.Hash] = true
		dedup = append(dedup, leaf)
	}

	if len(dedup) > executor.MaxActiveLeaves-1 {
		dedup = dedup[len(dedup)-(executor.MaxActiveLeaves-1):]
	}
	l.leaves = append(dedup, best)
}

// ActiveLeaves returns the current bounded set of tracked primary tips.
func (l *Loop) ActiveLeaves() []executor.ActiveLeaf {
	out := make([]executor.ActiveLeaf, len(l.leaves))
	copy(out, l.leaves)
	return out
}

// Run drains slots and imports until ctx is cancelled. Each event is
// handled synchronously and logged on failure; a failure on one event
// never stops the loop from processing the next (spec §4.5: the loop
// itself does not retry, individual components may).
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case slot, ok := <-l.slots:
			if !ok {
				l.slots = nil
				continue
			}
			if err := l.producer.OnSlot(ctx, slot); err != nil {
				log.Error("bundle production failed", "slot", slot.Slot, "err", err)
			}

		case block, ok := <-l.imports:
			if !ok {
				l.imports = nil
				continue
			}
			l.trackLeaf(executor.ActiveLeaf{Hash: block.Hash, ParentHash: block.Parent, Number: block.Number})
			parent := collab.BlockID{Hash: block.Parent, Number: block.Number - 1}
			if _, err := l.processor.Process(ctx, parent, block); err != nil {
				log.Error("bundle processing failed", "primary_hash", block.Hash.Hex(), "err", err)
			}
		}

		if l.slots == nil && l.imports == nil {
			return nil
		}
	}
}

// trackLeaf appends a newly imported block to the active-leaves set,
// evicting the oldest entry once the set exceeds executor.MaxActiveLeaves.
func (l *Loop) trackLeaf(leaf executor.ActiveLeaf) {
	l.leaves = append(l.leaves, leaf)
	if len(l.leaves) > executor.MaxActiveLeaves {
		l.leaves = l.leaves[len(l.leaves)-executor.MaxActiveLeaves:]
	}
}
