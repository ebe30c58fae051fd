// Copyright 2025 Exelayer Protocol
//
// Portable storage-proof witness: a Merkle path from a touched trie key's
// recorded value hash up to the phase's claimed post-state root, re-
// verifiable by a party that knows only the root, independent of the
// backend that produced it.

package merkle

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Witness is a single key's inclusion proof within a StorageProof (see
// package prover). It follows the same fail-closed verification contract
// as the inclusion proofs above: recomputation from Leaf through Path must
// equal Root.
type Witness struct {
	Leaf string      `json:"leaf"`  // hex-encoded 32-byte hash of (key, value)
	Root string      `json:"root"`  // hex-encoded 32-byte claimed root
	Path []ProofNode `json:"path"`
}

// Validate recomputes the root from Leaf through Path and checks it
// against Root. Returns nil if valid, error otherwise.
func (w *Witness) Validate() error {
	leafHex, err := mustHex32Lower(w.Leaf, "witness.leaf")
	if err != nil {
		return err
	}
	rootHex, err := mustHex32Lower(w.Root, "witness.root")
	if err != nil {
		return err
	}

	leaf, _ := hex.DecodeString(leafHex)
	root, _ := hex.DecodeString(rootHex)

	current := leaf
	for i, node := range w.Path {
		siblingHex, err := mustHex32Lower(node.Hash, fmt.Sprintf("witness.path[%d].hash", i))
		if err != nil {
			return err
		}
		sibling, _ := hex.DecodeString(siblingHex)
		if node.Position == Left {
			current = hashPair(sibling, current)
		} else {
			current = hashPair(current, sibling)
		}
	}

	if !bytes.Equal(current, root) {
		return fmt.Errorf("storage witness recomputation mismatch: computed=%x, expected=%x", current, root)
	}
	return nil
}

// ToJSON serializes a witness to JSON.
func (w *Witness) ToJSON() ([]byte, error) {
	return json.Marshal(w)
}

// WitnessFromJSON deserializes a witness from JSON.
func WitnessFromJSON(data []byte) (*Witness, error) {
	var w Witness
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// mustHex32Lower validates that a hex string is exactly 32 bytes (64 hex
// chars) and returns it unchanged.
func mustHex32Lower(s string, label string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("%s: empty", label)
	}
	if len(s) != 64 {
		return "", fmt.Errorf("%s: expected 64 hex chars (32 bytes), got len=%d", label, len(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", fmt.Errorf("%s: invalid hex: %w", label, err)
	}
	return s, nil
}

// KeyValueLeaf hashes a (key, value) pair into a 32-byte leaf for a
// storage-proof tree.
func KeyValueLeaf(key, value []byte) []byte {
	h := sha256.New()
	h.Write(key)
	h.Write(value)
	sum := h.Sum(nil)
	return sum
}
