// Copyright 2025 Exelayer Protocol
//
// BLS12-381 signatures for the execution layer's signer identities.
// Bundles, execution receipts and fraud proofs are each signed by exactly
// one executor (the slot's elected authority), and the gossip handler's
// author check is a straight equality between the signer and the runtime's
// elected executor — there is no threshold attestation or signature
// aggregation in this domain, so this package exposes only single-signer
// sign/verify plus the subgroup validation that deserialization leans on.
//
// Uses gnark-crypto for a pure Go BLS12-381 implementation.
package bls

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sync"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
)

var (
	initOnce sync.Once
	initErr  error

	g1Gen bls12381.G1Affine
	g2Gen bls12381.G2Affine
)

// Domain separation tags, one per message class the executor core signs.
const (
	DomainBundle           = "EXELAYER_BUNDLE_V1"
	DomainExecutionReceipt = "EXELAYER_RECEIPT_V1"
	DomainFraudProof       = "EXELAYER_FRAUD_PROOF_V1"
)

// Size constants
const (
	PrivateKeySize = 32 // BLS12-381 private key is 32 bytes (scalar)
	PublicKeySize  = 96 // BLS12-381 public key is 96 bytes (G2 point, compressed)
	SignatureSize  = 48 // BLS12-381 signature is 48 bytes (G1 point, compressed)
)

// Initialize sets up the curve generator points. Must be called before any
// BLS operation; safe to call multiple times.
func Initialize() error {
	initOnce.Do(func() {
		_, _, g1GenPoint, g2GenPoint := bls12381.Generators()
		g1Gen = g1GenPoint
		g2Gen = g2GenPoint
	})
	return initErr
}

// PrivateKey is a BLS private key - a scalar in Fr.
type PrivateKey struct {
	scalar fr.Element
}

// PublicKey is a BLS public key - a point on G2.
type PublicKey struct {
	point bls12381.G2Affine
}

// Signature is a BLS signature - a point on G1.
type Signature struct {
	point bls12381.G1Affine
}

// GenerateKeyPair generates a new BLS key pair from a secure random source.
func GenerateKeyPair() (*PrivateKey, *PublicKey, error) {
	if err := Initialize(); err != nil {
		return nil, nil, fmt.Errorf("initialize BLS: %w", err)
	}

	var sk fr.Element
	if _, err := sk.SetRandom(); err != nil {
		return nil, nil, fmt.Errorf("generate random scalar: %w", err)
	}

	privateKey := &PrivateKey{scalar: sk}
	return privateKey, privateKey.PublicKey(), nil
}

// GenerateKeyPairFromSeed generates a deterministic key pair from a seed,
// used by key_manager.go to derive an executor's identity key from its
// configured validator ID rather than a random draw.
func GenerateKeyPairFromSeed(seed []byte) (*PrivateKey, *PublicKey, error) {
	if err := Initialize(); err != nil {
		return nil, nil, fmt.Errorf("initialize BLS: %w", err)
	}
	if len(seed) < 32 {
		return nil, nil, errors.New("seed must be at least 32 bytes")
	}

	hash := sha256.Sum256(seed)
	var sk fr.Element
	sk.SetBytes(hash[:])

	privateKey := &PrivateKey{scalar: sk}
	return privateKey, privateKey.PublicKey(), nil
}

// PrivateKeyFromBytes deserializes a private key from bytes.
func PrivateKeyFromBytes(data []byte) (*PrivateKey, error) {
	if err := Initialize(); err != nil {
		return nil, fmt.Errorf("initialize BLS: %w", err)
	}
	if len(data) != PrivateKeySize {
		return nil, fmt.Errorf("invalid private key size: got %d, want %d", len(data), PrivateKeySize)
	}

	var sk fr.Element
	sk.SetBytes(data)
	return &PrivateKey{scalar: sk}, nil
}

// PublicKeyFromBytes deserializes a public key from bytes and rejects it
// unless it is a valid G2 point in the correct subgroup — a bad or
// malicious peer's gossip signer field must not be trusted into a
// comparison against the elected executor without this check.
func PublicKeyFromBytes(data []byte) (*PublicKey, error) {
	if err := Initialize(); err != nil {
		return nil, fmt.Errorf("initialize BLS: %w", err)
	}
	if err := ValidateBLSPublicKeySubgroup(data); err != nil {
		return nil, fmt.Errorf("invalid public key: %w", err)
	}

	var pk bls12381.G2Affine
	if _, err := pk.SetBytes(data); err != nil {
		return nil, fmt.Errorf("deserialize public key: %w", err)
	}
	return &PublicKey{point: pk}, nil
}

// PublicKeyFromHex deserializes a public key from a hex string; used to
// decode the known-peer set's configured executor identities.
func PublicKeyFromHex(hexStr string) (*PublicKey, error) {
	data, err := hex.DecodeString(hexStr)
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	return PublicKeyFromBytes(data)
}

// SignatureFromBytes deserializes a signature from bytes and rejects it
// unless it is a valid G1 point in the correct subgroup — the gossip
// handler calls this on every inbound bundle and receipt signature before
// running a pairing check against it.
func SignatureFromBytes(data []byte) (*Signature, error) {
	if err := Initialize(); err != nil {
		return nil, fmt.Errorf("initialize BLS: %w", err)
	}
	if err := ValidateBLSSignatureSubgroup(data); err != nil {
		return nil, fmt.Errorf("invalid signature: %w", err)
	}

	var sig bls12381.G1Affine
	if _, err := sig.SetBytes(data); err != nil {
		return nil, fmt.Errorf("deserialize signature: %w", err)
	}
	return &Signature{point: sig}, nil
}

// Bytes returns the serialized private key.
func (sk *PrivateKey) Bytes() []byte {
	b := sk.scalar.Bytes()
	return b[:]
}

// Hex returns the private key as a hex string.
func (sk *PrivateKey) Hex() string {
	return hex.EncodeToString(sk.Bytes())
}

// PublicKey derives pk = sk * G2.
func (sk *PrivateKey) PublicKey() *PublicKey {
	var pk bls12381.G2Affine
	var skBig big.Int
	sk.scalar.BigInt(&skBig)
	pk.ScalarMultiplication(&g2Gen, &skBig)
	return &PublicKey{point: pk}
}

// Sign computes sig = sk * H(message).
func (sk *PrivateKey) Sign(message []byte) *Signature {
	h := hashToG1(message)

	var sig bls12381.G1Affine
	var skBig big.Int
	sk.scalar.BigInt(&skBig)
	sig.ScalarMultiplication(&h, &skBig)

	return &Signature{point: sig}
}

// SignWithDomain signs H(domain || message), binding the signature to one
// of the Domain* message classes so a bundle signature can never be
// replayed as a receipt signature or vice versa.
func (sk *PrivateKey) SignWithDomain(message []byte, domain string) *Signature {
	return sk.Sign(computeDomainMessage(domain, message))
}

// Bytes returns the serialized public key (compressed G2 point).
func (pk *PublicKey) Bytes() []byte {
	b := pk.point.Bytes()
	return b[:]
}

// Hex returns the public key as a hex string.
func (pk *PublicKey) Hex() string {
	return hex.EncodeToString(pk.Bytes())
}

// Verify checks e(sig, G2) == e(H(message), pk) via a single pairing check:
// e(sig, G2) * e(H(msg), -pk) == 1.
func (pk *PublicKey) Verify(sig *Signature, message []byte) bool {
	h := hashToG1(message)

	var negPk bls12381.G2Affine
	negPk.Neg(&pk.point)

	ok, err := bls12381.PairingCheck(
		[]bls12381.G1Affine{sig.point, h},
		[]bls12381.G2Affine{g2Gen, negPk},
	)
	if err != nil {
		return false
	}
	return ok
}

// VerifyWithDomain verifies a signature produced by SignWithDomain.
func (pk *PublicKey) VerifyWithDomain(sig *Signature, message []byte, domain string) bool {
	return pk.Verify(sig, computeDomainMessage(domain, message))
}

// Equal reports whether two public keys are the same point.
func (pk *PublicKey) Equal(other *PublicKey) bool {
	return pk.point.Equal(&other.point)
}

// Bytes returns the serialized signature (compressed G1 point).
func (sig *Signature) Bytes() []byte {
	b := sig.point.Bytes()
	return b[:]
}

// Hex returns the signature as a hex string.
func (sig *Signature) Hex() string {
	return hex.EncodeToString(sig.Bytes())
}

// hashToG1 hashes message to a point on G1 using the "hash and pray"
// method: repeatedly re-hash with an incrementing counter until a valid
// curve point is found.
func hashToG1(message []byte) bls12381.G1Affine {
	h := sha256.New()
	h.Write([]byte("BLS_SIG_BLS12381G1_XMD:SHA-256_SSWU_RO_"))
	h.Write(message)

	var counter uint64
	for {
		h2 := sha256.New()
		h2.Write(h.Sum(nil))
		binary.Write(h2, binary.BigEndian, counter)
		hash := h2.Sum(nil)

		var point bls12381.G1Affine
		if _, err := point.SetBytes(hash); err == nil && !point.IsInfinity() {
			return point
		}

		var scalar fr.Element
		scalar.SetBytes(hash)
		var scalarBig big.Int
		scalar.BigInt(&scalarBig)

		var result bls12381.G1Affine
		result.ScalarMultiplication(&g1Gen, &scalarBig)
		if !result.IsInfinity() {
			return result
		}

		counter++
		if counter > 1000 {
			return g1Gen // should never happen with a proper hash
		}
	}
}

// computeDomainMessage computes H(domain || message).
func computeDomainMessage(domain string, message []byte) []byte {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write(message)
	return h.Sum(nil)
}

// ValidateBLSPublicKeySubgroup checks that pubKeyBytes decodes to a G2
// point on the BLS12-381 curve, not the identity, and in the correct
// subgroup — the three conditions an executor identity key must satisfy
// to rule out rogue-key style forgeries.
func ValidateBLSPublicKeySubgroup(pubKeyBytes []byte) error {
	if err := Initialize(); err != nil {
		return fmt.Errorf("initialize BLS: %w", err)
	}
	if len(pubKeyBytes) != PublicKeySize {
		return fmt.Errorf("invalid public key size: got %d, expected %d", len(pubKeyBytes), PublicKeySize)
	}

	var pk bls12381.G2Affine
	if _, err := pk.SetBytes(pubKeyBytes); err != nil {
		return fmt.Errorf("invalid public key encoding: %w", err)
	}
	if !pk.IsOnCurve() {
		return errors.New("public key not on BLS12-381 G2 curve")
	}
	if pk.IsInfinity() {
		return errors.New("public key is identity point (point at infinity)")
	}
	if !pk.IsInSubGroup() {
		return errors.New("public key not in correct G2 subgroup")
	}
	return nil
}

// ValidateBLSSignatureSubgroup checks that sigBytes decodes to a G1 point
// on the BLS12-381 curve, not the identity, and in the correct subgroup.
func ValidateBLSSignatureSubgroup(sigBytes []byte) error {
	if err := Initialize(); err != nil {
		return fmt.Errorf("initialize BLS: %w", err)
	}
	if len(sigBytes) != SignatureSize {
		return fmt.Errorf("invalid signature size: got %d, expected %d", len(sigBytes), SignatureSize)
	}

	var sig bls12381.G1Affine
	if _, err := sig.SetBytes(sigBytes); err != nil {
		return fmt.Errorf("invalid signature encoding: %w", err)
	}
	if !sig.IsOnCurve() {
		return errors.New("signature not on BLS12-381 G1 curve")
	}
	if sig.IsInfinity() {
		return errors.New("signature is identity point (point at infinity)")
	}
	if !sig.IsInSubGroup() {
		return errors.New("signature not in correct G1 subgroup")
	}
	return nil
}
