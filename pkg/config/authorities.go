// Copyright 2025 Exelayer Protocol
//
// Static authority set configuration, loaded from YAML with environment
// variable substitution in ${VAR_NAME} form.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/exelayer/executor-core/pkg/crypto/bls"
	"github.com/exelayer/executor-core/pkg/executor"
)

// PeerSet is the statically configured set of executors this node
// treats as eligible bundle/receipt authors, keyed by their BLS public key.
type PeerSet struct {
	Environment string      `yaml:"environment"`
	Authorities []Authority `yaml:"authorities"`
	Gossip      GossipSettings `yaml:"gossip"`
}

// Authority identifies one executor by its hex-encoded BLS public key and
// the endpoint this node dials to gossip with it.
type Authority struct {
	ExecutorIDHex string `yaml:"executor_id"`
	Endpoint      string `yaml:"endpoint"`
}

// GossipSettings holds the gossip timing values read from the peer-set
// file. Nothing in this module consumes them: the gossip handler uses the
// executor package's timing constants.
type GossipSettings struct {
	ReceiptWaitTimeout Duration `yaml:"receipt_wait_timeout"`
	PollInterval       Duration `yaml:"poll_interval"`
}

// Duration wraps time.Duration for YAML unmarshaling as a Go duration
// string ("100ms", "30s") rather than a raw integer of ambiguous unit.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*)\}`)

// substituteEnvVars replaces every ${VAR_NAME} in content with the value of
// the matching environment variable, leaving the placeholder untouched if
// the variable is unset.
func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		return match
	})
}

// LoadPeerSet loads the authority set from a YAML file at path.
func LoadPeerSet(path string) (*PeerSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read authority set file %s: %w", path, err)
	}

	expanded := substituteEnvVars(string(data))

	var set PeerSet
	if err := yaml.Unmarshal([]byte(expanded), &set); err != nil {
		return nil, fmt.Errorf("parse authority set file %s: %w", path, err)
	}
	if set.Gossip.PollInterval == 0 {
		set.Gossip.PollInterval = Duration(100 * time.Millisecond)
	}
	return &set, nil
}

// ExecutorIDs decodes every peer's hex-encoded BLS public key into an
// executor.ExecutorID, in the order they appear in the file. It errors on
// the first malformed or wrong-length entry so a typo'd peer set fails
// bootstrap instead of silently running with a short roster.
func (s *PeerSet) ExecutorIDs() ([]executor.ExecutorID, error) {
	ids := make([]executor.ExecutorID, 0, len(s.Authorities))
	for _, a := range s.Authorities {
		id, err := parseExecutorIDHex(a.ExecutorIDHex)
		if err != nil {
			return nil, fmt.Errorf("peer %q: %w", a.ExecutorIDHex, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// IsKnownPeer reports whether id's hex form appears in the peer set.
func (s *PeerSet) IsKnownPeer(id executor.ExecutorID) bool {
	for _, a := range s.Authorities {
		if strings.EqualFold(strings.TrimPrefix(a.ExecutorIDHex, "0x"), strings.TrimPrefix(id.Hex(), "0x")) {
			return true
		}
	}
	return false
}

// parseExecutorIDHex decodes a configured peer's hex-encoded BLS public key
// through bls.PublicKeyFromHex, rejecting any entry that is the wrong
// length or fails curve/subgroup validation rather than admitting a
// malformed identity into the peer set.
func parseExecutorIDHex(s string) (executor.ExecutorID, error) {
	var id executor.ExecutorID
	pk, err := bls.PublicKeyFromHex(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return id, fmt.Errorf("decode BLS public key: %w", err)
	}
	copy(id[:], pk.Bytes())
	return id, nil
}
