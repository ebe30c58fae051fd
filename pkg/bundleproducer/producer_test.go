// Copyright 2025 Exelayer Protocol

package bundleproducer

import (
	"context"
	"testing"

	"github.com/exelayer/executor-core/pkg/crypto/bls"
	"github.com/exelayer/executor-core/pkg/executor"
)

type fakePool struct {
	ready [][]byte
}

func (p *fakePool) Ready(ctx context.Context) ([][]byte, error) { return p.ready, nil }
func (p *fakePool) HashOf(extrinsic []byte) executor.Hash       { return executor.Hash{} }
func (p *fakePool) ReadyTransaction(ctx context.Context, hash executor.Hash) (bool, error) {
	return false, nil
}

type fakeRuntime struct {
	elected executor.ExecutorID
}

func (r *fakeRuntime) ExecutorID(ctx context.Context, primaryHash executor.Hash) (executor.ExecutorID, error) {
	return r.elected, nil
}
func (r *fakeRuntime) BestExecutionChainNumber(ctx context.Context, primaryHash executor.Hash) (uint64, error) {
	return 0, nil
}
func (r *fakeRuntime) SubmitBundleEquivocationProofUnsigned(ctx context.Context, at executor.Hash, proof executor.BundleEquivocationProof) error {
	return nil
}
func (r *fakeRuntime) SubmitFraudProofUnsigned(ctx context.Context, at executor.Hash, proof executor.FraudProof) error {
	return nil
}
func (r *fakeRuntime) SubmitInvalidTransactionProofUnsigned(ctx context.Context, at executor.Hash, proof executor.InvalidTransactionProof) error {
	return nil
}

func newTestKey(t *testing.T) (*bls.KeyManager, executor.ExecutorID) {
	t.Helper()
	km := bls.NewKeyManager("")
	if err := km.GenerateNewKey(); err != nil {
		t.Fatalf("GenerateNewKey: %v", err)
	}
	var id executor.ExecutorID
	copy(id[:], km.GetPublicKeyBytes())
	return km, id
}

func TestOnSlot_PublishesWhenElected(t *testing.T) {
	km, self := newTestKey(t)
	pool := &fakePool{ready: [][]byte{[]byte("ext1"), []byte("ext2")}}
	runtime := &fakeRuntime{elected: self}
	out := make(chan *executor.SignedBundle, 1)

	p := New(pool, runtime, km, self, out)
	if err := p.OnSlot(context.Background(), SlotInfo{Slot: 7, PrimaryTip: executor.Hash{1}}); err != nil {
		t.Fatalf("OnSlot: %v", err)
	}

	select {
	case sb := <-out:
		if sb.Signer != self {
			t.Fatalf("signer mismatch")
		}
		if len(sb.Bundle.Extrinsics) != 2 {
			t.Fatalf("expected 2 extrinsics, got %d", len(sb.Bundle.Extrinsics))
		}
		pk, err := bls.PublicKeyFromBytes(self[:])
		if err != nil {
			t.Fatalf("PublicKeyFromBytes: %v", err)
		}
		sig, err := bls.SignatureFromBytes(sb.Signature)
		if err != nil {
			t.Fatalf("SignatureFromBytes: %v", err)
		}
		h := sb.Bundle.Hash()
		if !pk.VerifyWithDomain(sig, h[:], bls.DomainBundle) {
			t.Fatalf("bundle signature does not verify")
		}
	default:
		t.Fatalf("expected a bundle on the outbound channel")
	}
}

func TestOnSlot_SkipsWhenNotElected(t *testing.T) {
	km, self := newTestKey(t)
	_, other := newTestKey(t)
	pool := &fakePool{ready: [][]byte{[]byte("ext1")}}
	runtime := &fakeRuntime{elected: other}
	out := make(chan *executor.SignedBundle, 1)

	p := New(pool, runtime, km, self, out)
	if err := p.OnSlot(context.Background(), SlotInfo{Slot: 1, PrimaryTip: executor.Hash{2}}); err != nil {
		t.Fatalf("OnSlot: %v", err)
	}

	select {
	case <-out:
		t.Fatalf("non-authority should not publish a bundle")
	default:
	}
}

func TestOnSlot_DropsWhenChannelFull(t *testing.T) {
	km, self := newTestKey(t)
	pool := &fakePool{ready: nil}
	runtime := &fakeRuntime{elected: self}
	out := make(chan *executor.SignedBundle) // unbuffered, nobody receiving

	p := New(pool, runtime, km, self, out)
	if err := p.OnSlot(context.Background(), SlotInfo{Slot: 1, PrimaryTip: executor.Hash{3}}); err != nil {
		t.Fatalf("OnSlot should not error on a dropped publish: %v", err)
	}
}
