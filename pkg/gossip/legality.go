// Copyright 2025 Exelayer Protocol

package gossip

import (
	"context"

	"github.com/exelayer/executor-core/pkg/collab"
)

// PoolLegality is the default collab.TxLegality: an extrinsic is legal if
// the pool would accept it as ready. Callers with a stronger legality
// oracle (one that can rule on an extrinsic it has never pooled) should
// implement collab.TxLegality themselves instead of using this type.
type PoolLegality struct {
	Pool collab.TxPool
}

// IsLegal reports whether the pool itself would ready ext.
func (p PoolLegality) IsLegal(ctx context.Context, ext []byte) (bool, error) {
	return p.Pool.ReadyTransaction(ctx, p.Pool.HashOf(ext))
}
