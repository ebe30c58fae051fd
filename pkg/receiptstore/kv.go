// Copyright 2025 Exelayer Protocol
//
// KV is the minimal key-value contract the auxiliary receipt store needs;
// DBAdapter wraps CometBFT's dbm.DB to satisfy it, so the receipt store
// can live in the same transactional namespace as the secondary chain's
// block database (spec.md §6: "Implementations must store it in the same
// transactional namespace as the secondary chain's block database so that
// a crash cannot leave a block without its receipt").

package receiptstore

import (
	dbm "github.com/cometbft/cometbft-db"
)

// KV is the key-value contract the store depends on.
type KV interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
}

// DBAdapter wraps a CometBFT dbm.DB and exposes the KV interface.
type DBAdapter struct {
	db dbm.DB
}

// NewDBAdapter creates a new DBAdapter for the given underlying DB.
func NewDBAdapter(db dbm.DB) *DBAdapter {
	return &DBAdapter{db: db}
}

// Get implements KV.Get. A missing key is not an error: it returns a nil
// slice, which callers treat as "not present".
func (a *DBAdapter) Get(key []byte) ([]byte, error) {
	if a.db == nil {
		return nil, nil
	}
	v, err := a.db.Get(key)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Set implements KV.Set using SetSync for durable writes, since a receipt
// must never be lost to a crash between write and fsync.
func (a *DBAdapter) Set(key, value []byte) error {
	if a.db == nil {
		return nil
	}
	return a.db.SetSync(key, value)
}
