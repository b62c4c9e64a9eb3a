package diffdecode

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestDecodeVersionBoundary(t *testing.T) {
	cfg := VersionConfig{V011DiffFormatHeight: 100, ConstructorArgsDiffHeight: 50}

	// No contract updates and no declared classes: a minimal valid 0.11+
	// input is [num_contract_updates=0, num_declared_classes=0].
	v011Input := []*uint256.Int{uint256.NewInt(0), uint256.NewInt(0)}
	diff, err := Decode(cfg, 100, v011Input)
	require.NoError(t, err)
	require.Equal(t, 0, diff.DeployedContracts.Len())

	// Below the boundary dispatches to the pre-0.11 parser; a minimal
	// valid input is [num_deployments_cells=0, updates_len=0].
	pre011Input := []*uint256.Int{uint256.NewInt(0), uint256.NewInt(0)}
	diff, err = Decode(cfg, 99, pre011Input)
	require.NoError(t, err)
	require.Equal(t, 0, diff.DeployedContracts.Len())
}

func TestDecodeV011SingleContractNoStorage(t *testing.T) {
	// num_contract_updates=1, address=1, summary=0 (no storage, no class
	// flag, zero nonce), num_declared_classes=0.
	words := []*uint256.Int{
		uint256.NewInt(1),
		uint256.NewInt(1),
		uint256.NewInt(0),
		uint256.NewInt(0),
	}
	diff, err := decodeV011(words)
	require.NoError(t, err)
	require.Equal(t, 1, diff.Nonces.Len())
	require.Equal(t, 0, diff.ReplacedClasses.Len())
}

func TestCursorOutOfRangeIsTypeError(t *testing.T) {
	_, err := newCursor(nil).take()
	require.Error(t, err)
	require.Equal(t, "TypeError: diff decode: offset out of range", err.Error())
}
