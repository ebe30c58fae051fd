// Copyright 2025 Exelayer Protocol
//
// BLS Library Tests - single-signer sign/verify/subgroup-validation

package bls

import (
	"bytes"
	"testing"
)

func TestInitialize(t *testing.T) {
	err := Initialize()
	if err != nil {
		t.Fatalf("Failed to initialize BLS: %v", err)
	}

	// Safe to call multiple times
	err = Initialize()
	if err != nil {
		t.Fatalf("Second initialize failed: %v", err)
	}
}

func TestGenerateKeyPair(t *testing.T) {
	sk, pk, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("Failed to generate key pair: %v", err)
	}

	if sk == nil {
		t.Fatal("Private key is nil")
	}
	if pk == nil {
		t.Fatal("Public key is nil")
	}

	if len(sk.Bytes()) != PrivateKeySize {
		t.Errorf("Invalid private key size: got %d, want %d", len(sk.Bytes()), PrivateKeySize)
	}
	if len(pk.Bytes()) != PublicKeySize {
		t.Errorf("Invalid public key size: got %d, want %d", len(pk.Bytes()), PublicKeySize)
	}
}

func TestGenerateKeyPairFromSeed(t *testing.T) {
	seed := []byte("this is a test seed for BLS key generation - 32+ bytes required")

	sk1, pk1, err := GenerateKeyPairFromSeed(seed)
	if err != nil {
		t.Fatalf("Failed to generate key pair from seed: %v", err)
	}

	// Same seed should produce same keys
	sk2, pk2, err := GenerateKeyPairFromSeed(seed)
	if err != nil {
		t.Fatalf("Failed to generate second key pair from seed: %v", err)
	}

	if !bytes.Equal(sk1.Bytes(), sk2.Bytes()) {
		t.Error("Same seed produced different private keys")
	}
	if !bytes.Equal(pk1.Bytes(), pk2.Bytes()) {
		t.Error("Same seed produced different public keys")
	}
}

func TestSignAndVerify(t *testing.T) {
	sk, pk, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("Failed to generate key pair: %v", err)
	}

	message := []byte("Hello, Exelayer Protocol!")
	sig := sk.Sign(message)

	if sig == nil {
		t.Fatal("Signature is nil")
	}
	if len(sig.Bytes()) != SignatureSize {
		t.Errorf("Invalid signature size: got %d, want %d", len(sig.Bytes()), SignatureSize)
	}

	if !pk.Verify(sig, message) {
		t.Error("Valid signature verification failed")
	}

	wrongMessage := []byte("Wrong message!")
	if pk.Verify(sig, wrongMessage) {
		t.Error("Verification succeeded with wrong message")
	}
}

func TestSignWithDomain(t *testing.T) {
	sk, pk, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("Failed to generate key pair: %v", err)
	}

	message := []byte("Test message")
	domain := DomainBundle

	sig := sk.SignWithDomain(message, domain)

	if !pk.VerifyWithDomain(sig, message, domain) {
		t.Error("Domain verification failed")
	}

	// A signature minted under one domain must not verify against another:
	// a bundle signature replayed as a receipt signature should be rejected.
	if pk.VerifyWithDomain(sig, message, DomainExecutionReceipt) {
		t.Error("Verification succeeded across mismatched domains")
	}
}

func TestSerializationRoundtrip(t *testing.T) {
	sk1, _, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("Failed to generate key pair: %v", err)
	}

	skBytes := sk1.Bytes()
	sk2, err := PrivateKeyFromBytes(skBytes)
	if err != nil {
		t.Fatalf("Failed to deserialize private key: %v", err)
	}
	if !bytes.Equal(sk1.Bytes(), sk2.Bytes()) {
		t.Error("Private key serialization roundtrip failed")
	}

	pk1 := sk1.PublicKey()
	pkBytes := pk1.Bytes()
	pk2, err := PublicKeyFromBytes(pkBytes)
	if err != nil {
		t.Fatalf("Failed to deserialize public key: %v", err)
	}
	if !pk1.Equal(pk2) {
		t.Error("Public key serialization roundtrip failed")
	}

	message := []byte("Test message for signature serialization")
	sig1 := sk1.Sign(message)
	sigBytes := sig1.Bytes()
	sig2, err := SignatureFromBytes(sigBytes)
	if err != nil {
		t.Fatalf("Failed to deserialize signature: %v", err)
	}
	if !bytes.Equal(sig1.Bytes(), sig2.Bytes()) {
		t.Error("Signature serialization roundtrip failed")
	}
	if !pk1.Verify(sig2, message) {
		t.Error("Deserialized signature verification failed")
	}
}

func TestHexSerialization(t *testing.T) {
	_, pk, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("Failed to generate key pair: %v", err)
	}

	pkHex := pk.Hex()
	pk2, err := PublicKeyFromHex(pkHex)
	if err != nil {
		t.Fatalf("Failed to deserialize public key from hex: %v", err)
	}
	if !pk.Equal(pk2) {
		t.Error("Public key hex roundtrip failed")
	}
}

func TestDerivedPublicKeyConsistency(t *testing.T) {
	sk, pk1, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("Failed to generate key pair: %v", err)
	}

	pk2 := sk.PublicKey()
	if !pk1.Equal(pk2) {
		t.Error("Derived public keys not equal")
	}
}

func TestPublicKeyFromBytesRejectsWrongSize(t *testing.T) {
	if _, err := PublicKeyFromBytes(make([]byte, PublicKeySize-1)); err == nil {
		t.Error("expected error for undersized public key bytes")
	}
}

func TestPublicKeyFromBytesRejectsIdentityPoint(t *testing.T) {
	// The compressed-infinity flag (0xC0) followed by zeros decodes to the
	// point at infinity, which must never be accepted as an executor identity.
	identity := make([]byte, PublicKeySize)
	identity[0] = 0xC0
	if _, err := PublicKeyFromBytes(identity); err == nil {
		t.Error("expected error for identity-point public key")
	}
}

func TestSignatureFromBytesRejectsWrongSize(t *testing.T) {
	if _, err := SignatureFromBytes(make([]byte, SignatureSize-1)); err == nil {
		t.Error("expected error for undersized signature bytes")
	}
}

func TestSignatureFromBytesRejectsIdentityPoint(t *testing.T) {
	identity := make([]byte, SignatureSize)
	identity[0] = 0xC0
	if _, err := SignatureFromBytes(identity); err == nil {
		t.Error("expected error for identity-point signature")
	}
}

func TestValidateBLSPublicKeySubgroupAcceptsGenerated(t *testing.T) {
	_, pk, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("Failed to generate key pair: %v", err)
	}
	if err := ValidateBLSPublicKeySubgroup(pk.Bytes()); err != nil {
		t.Errorf("expected generated public key to pass subgroup validation: %v", err)
	}
}

func TestValidateBLSSignatureSubgroupAcceptsGenerated(t *testing.T) {
	sk, _, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("Failed to generate key pair: %v", err)
	}
	sig := sk.Sign([]byte("message"))
	if err := ValidateBLSSignatureSubgroup(sig.Bytes()); err != nil {
		t.Errorf("expected generated signature to pass subgroup validation: %v", err)
	}
}

func BenchmarkSign(b *testing.B) {
	sk, _, err := GenerateKeyPair()
	if err != nil {
		b.Fatalf("Failed to generate key pair: %v", err)
	}

	message := []byte("Benchmark message for signing")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sk.Sign(message)
	}
}

func BenchmarkVerify(b *testing.B) {
	sk, pk, err := GenerateKeyPair()
	if err != nil {
		b.Fatalf("Failed to generate key pair: %v", err)
	}

	message := []byte("Benchmark message for verification")
	sig := sk.Sign(message)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		pk.Verify(sig, message)
	}
}

func BenchmarkPublicKeyFromBytes(b *testing.B) {
	_, pk, err := GenerateKeyPair()
	if err != nil {
		b.Fatalf("Failed to generate key pair: %v", err)
	}
	data := pk.Bytes()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		PublicKeyFromBytes(data)
	}
}
