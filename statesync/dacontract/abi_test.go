package dacontract

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

// TestEncodeUpdateStateCalldataShape checks the cell-count bookkeeping and
// testnet block-number shim against a 5-element state diff (2 real cells
// plus the trailing root/block_number/block_hash triple).
func TestEncodeUpdateStateCalldataShape(t *testing.T) {
	stateDiff := []*uint256.Int{
		uint256.NewInt(10), // cell 0
		uint256.NewInt(20), // cell 1
		uint256.NewInt(99), // state_root
		uint256.NewInt(7),  // block_number (stale, gets overwritten)
		uint256.NewInt(55), // block_hash
	}
	lastPublished := uint256.NewInt(42)
	next := new(uint256.Int).AddUint64(lastPublished, 1)

	calldata, err := EncodeUpdateState(stateDiff, next)
	require.NoError(t, err)
	require.NotEmpty(t, calldata)

	// Re-derive the word count independently: selector + ABI head/tail for
	// one dynamic uint256[] plus 3 static uint256 args. The dynamic array
	// itself carries 1 (cell count) + 5*2 (low/high per element) = 11 words.
	require.Equal(t, uint64(2), uint64(len(stateDiff)-3))
	require.Equal(t, updateStateSelector, calldata[:4])
	vals, err := updateStateArgs.Unpack(calldata[4:])
	require.NoError(t, err)
	words := vals[0].([]*big.Int)
	require.Len(t, words, 11)
	require.Equal(t, int64(2), words[0].Int64())
	// block_number is element 3, so its low/high halves are words 7 and 8.
	require.Equal(t, int64(43), words[7].Int64())
	require.Equal(t, int64(0), words[8].Int64())
	require.Equal(t, int64(43), vals[2].(*big.Int).Int64())
}

func TestSplitU256RoundTrips(t *testing.T) {
	v := uint256.NewInt(1)
	v.Lsh(v, 200)
	v.AddUint64(v, 7)
	low, high := splitU256(v)
	got := new(uint256.Int).Lsh(high, 128)
	got.Or(got, low)
	require.Equal(t, v.Hex(), got.Hex())
}
