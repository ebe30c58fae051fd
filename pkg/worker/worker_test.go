// Copyright 2025 Exelayer Protocol

package worker

import (
	"testing"

	"github.com/exelayer/executor-core/pkg/executor"
)

func mkLeaf(n uint64, h byte) executor.ActiveLeaf {
	var leaf executor.ActiveLeaf
	leaf.Number = n
	leaf.Hash[0] = h
	return leaf
}

func TestBootstrap_TruncatesToMaxActiveLeaves(t *testing.T) {
	l := &Loop{}
	history := []executor.ActiveLeaf{mkLeaf(1, 1), mkLeaf(2, 2), mkLeaf(3, 3), mkLeaf(4, 4), mkLeaf(5, 5)}
	l.Bootstrap(history, mkLeaf(6, 6))

	leaves := l.ActiveLeaves()
	if len(leaves) != executor.MaxActiveLeaves {
		t.Fatalf("expected %d leaves, got %d", executor.MaxActiveLeaves, len(leaves))
	}
	if leaves[len(leaves)-1].Number != 6 {
		t.Fatalf("expected best leaf last, got number %d", leaves[len(leaves)-1].Number)
	}
	if leaves[0].Number != 3 {
		t.Fatalf("expected oldest kept leaf to be number 3, got %d", leaves[0].Number)
	}
}

func TestBootstrap_DedupesByHash(t *testing.T) {
	l := &Loop{}
	history := []executor.ActiveLeaf{mkLeaf(1, 1), mkLeaf(2, 2)}
	l.Bootstrap(history, mkLeaf(2, 2))

	leaves := l.ActiveLeaves()
	if len(leaves) != 2 {
		t.Fatalf("expected duplicate best leaf to collapse, got %d leaves", len(leaves))
	}
}

func TestTrackLeaf_EvictsOldest(t *testing.T) {
	l := &Loop{}
	for i := uint64(1); i <= 6; i++ {
		l.trackLeaf(mkLeaf(i, byte(i)))
	}
	leaves := l.ActiveLeaves()
	if len(leaves) != executor.MaxActiveLeaves {
		t.Fatalf("expected %d leaves after eviction, got %d", executor.MaxActiveLeaves, len(leaves))
	}
	if leaves[0].Number != 3 {
		t.Fatalf("expected oldest surviving leaf number 3, got %d", leaves[0].Number)
	}
	if leaves[len(leaves)-1].Number != 6 {
		t.Fatalf("expected newest leaf number 6, got %d", leaves[len(leaves)-1].Number)
	}
}
