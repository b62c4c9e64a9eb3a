// Package config defines the two externally-loaded configuration
// surfaces: StateSyncConfig (JSON, colocated with the host node's own
// config) and StarknetConfig (TOML, the DA publisher's independent
// deployment). Both expose a Check() validation method in the style of
// this codebase's rollup.Config.Check().
package config

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
)

// StateSyncConfig is the engine's own config, loaded from JSON.
type StateSyncConfig struct {
	L1Start                  uint64   `json:"l1_start"`
	CoreContract             string   `json:"core_contract"`
	VerifierContract         string   `json:"verifier_contract"`
	MemoryPageContract       string   `json:"memory_page_contract"`
	L2Start                  int64    `json:"l2_start"`
	L1URLList                []string `json:"l1_url_list"`
	V011DiffFormatHeight     uint64   `json:"v011_diff_format_height"`
	ConstructorArgsDiffHeight uint64  `json:"constructor_args_diff_height"`
	FetchBlockStep           uint64   `json:"fetch_block_step"`
	SyncingFetchInterval     uint64   `json:"syncing_fetch_interval"`
	SyncedFetchInterval      uint64   `json:"synced_fetch_interval"`
}

// LoadStateSyncConfig decodes JSON from r and validates the result.
func LoadStateSyncConfig(r io.Reader) (*StateSyncConfig, error) {
	var cfg StateSyncConfig
	if err := json.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode state sync config: %w", err)
	}
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Check validates invariants a misconfigured deployment would violate.
func (c *StateSyncConfig) Check() error {
	if len(c.L1URLList) == 0 {
		return fmt.Errorf("state sync config: l1_url_list must have at least one endpoint")
	}
	for _, addr := range []string{c.CoreContract, c.VerifierContract, c.MemoryPageContract} {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("state sync config: %q is not a valid L1 address", addr)
		}
	}
	return nil
}

// Mode is the data-availability mode selected in StarknetConfig.
type Mode string

const (
	ModeSovereign Mode = "Sovereign"
	ModeValidity  Mode = "Validity"
	ModeValidium  Mode = "Validium"
)

// StarknetConfig is the DA publisher's independent deployment config,
// loaded from TOML.
type StarknetConfig struct {
	HTTPProvider  string `toml:"http_provider"`
	CoreContracts string `toml:"core_contracts"`
	SequencerKey  string `toml:"sequencer_key"`
	AccountAddr   string `toml:"account_address"`
	ChainID       string `toml:"chain_id"`
	Mode          Mode   `toml:"mode"`
	PollIntervalMs *uint64 `toml:"poll_interval_ms"`
	AuditDSN      string `toml:"audit_dsn"`
}

// LoadStarknetConfig decodes TOML from r and validates the result.
func LoadStarknetConfig(r io.Reader) (*StarknetConfig, error) {
	var cfg StarknetConfig
	if _, err := toml.DecodeReader(r, &cfg); err != nil {
		return nil, fmt.Errorf("decode starknet config: %w", err)
	}
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Check validates invariants a misconfigured DA publisher would violate.
func (c *StarknetConfig) Check() error {
	if c.HTTPProvider == "" {
		return fmt.Errorf("starknet config: http_provider is required")
	}
	if !common.IsHexAddress(c.CoreContracts) {
		return fmt.Errorf("starknet config: core_contracts is not a valid L1 address")
	}
	if !common.IsHexAddress(c.AccountAddr) {
		return fmt.Errorf("starknet config: account_address is not a valid L1 address")
	}
	if _, err := hex.DecodeString(trim0x(c.SequencerKey)); err != nil {
		return fmt.Errorf("starknet config: sequencer_key is not valid hex: %w", err)
	}
	switch c.Mode {
	case ModeSovereign, ModeValidity, ModeValidium:
	default:
		return fmt.Errorf("starknet config: unknown mode %q", c.Mode)
	}
	return nil
}

func trim0x(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
