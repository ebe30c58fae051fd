// Copyright 2025 Exelayer Protocol

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/exelayer/executor-core/pkg/crypto/bls"
	"github.com/exelayer/executor-core/pkg/executor"
)

func TestLoadPeerSet_SubstitutesEnvVars(t *testing.T) {
	os.Setenv("TEST_EXECUTOR_ENDPOINT", "10.0.0.5:26658")
	defer os.Unsetenv("TEST_EXECUTOR_ENDPOINT")

	dir := t.TempDir()
	path := filepath.Join(dir, "peers.yaml")
	content := `
environment: devnet
authorities:
  - executor_id: "aa"
    endpoint: "${TEST_EXECUTOR_ENDPOINT}"
gossip:
  receipt_wait_timeout: 2s
  poll_interval: 50ms
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	set, err := LoadPeerSet(path)
	if err != nil {
		t.Fatalf("LoadPeerSet: %v", err)
	}
	if len(set.Authorities) != 1 {
		t.Fatalf("expected 1 peer, got %d", len(set.Authorities))
	}
	if set.Authorities[0].Endpoint != "10.0.0.5:26658" {
		t.Fatalf("expected env var substitution, got %s", set.Authorities[0].Endpoint)
	}
	if set.Gossip.ReceiptWaitTimeout.Duration() != 2*time.Second {
		t.Fatalf("expected 2s receipt wait timeout, got %s", set.Gossip.ReceiptWaitTimeout.Duration())
	}
}

func TestLoadPeerSet_DefaultsPollInterval(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "peers.yaml")
	content := "environment: devnet\nauthorities: []\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	set, err := LoadPeerSet(path)
	if err != nil {
		t.Fatalf("LoadPeerSet: %v", err)
	}
	if set.Gossip.PollInterval.Duration() != 100*time.Millisecond {
		t.Fatalf("expected default poll interval of 100ms, got %s", set.Gossip.PollInterval.Duration())
	}
}

func TestLoadPeerSet_MissingEnvVarLeavesPlaceholder(t *testing.T) {
	os.Unsetenv("TEST_EXECUTOR_UNSET_VAR")

	dir := t.TempDir()
	path := filepath.Join(dir, "peers.yaml")
	content := `
environment: devnet
authorities:
  - executor_id: "bb"
    endpoint: "${TEST_EXECUTOR_UNSET_VAR}"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	set, err := LoadPeerSet(path)
	if err != nil {
		t.Fatalf("LoadPeerSet: %v", err)
	}
	if set.Authorities[0].Endpoint != "${TEST_EXECUTOR_UNSET_VAR}" {
		t.Fatalf("expected placeholder left intact, got %s", set.Authorities[0].Endpoint)
	}
}

func TestPeerSet_ExecutorIDsAndIsKnownPeer(t *testing.T) {
	_, pk, err := bls.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	set := &PeerSet{Authorities: []Authority{{ExecutorIDHex: pk.Hex(), Endpoint: "10.0.0.1:26658"}}}

	ids, err := set.ExecutorIDs()
	if err != nil {
		t.Fatalf("ExecutorIDs: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("expected 1 executor id, got %d", len(ids))
	}
	if !set.IsKnownPeer(ids[0]) {
		t.Fatalf("expected decoded id to be recognized as a known peer")
	}

	var stranger executor.ExecutorID
	stranger[0] = 0xFF
	if set.IsKnownPeer(stranger) {
		t.Fatalf("expected unrelated id to not be a known peer")
	}
}

func TestPeerSet_ExecutorIDsRejectsMalformedHex(t *testing.T) {
	set := &PeerSet{Authorities: []Authority{{ExecutorIDHex: "not-hex"}}}
	if _, err := set.ExecutorIDs(); err == nil {
		t.Fatalf("expected error decoding malformed executor id hex")
	}
}
