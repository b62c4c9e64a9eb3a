package dapublish

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/starksync/engine/statesync/dacontract"
)

type fakeBackend struct {
	callRet []byte
	callErr error
}

func (f *fakeBackend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return f.callRet, f.callErr
}
func (f *fakeBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return 0, nil
}
func (f *fakeBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) { return big.NewInt(1), nil }
func (f *fakeBackend) ChainID(ctx context.Context) (*big.Int, error)        { return big.NewInt(1), nil }
func (f *fakeBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return nil
}

func TestLastPublishedHeightLegacy(t *testing.T) {
	want := uint256.NewInt(42)
	backend := &fakeBackend{callRet: want.Bytes()}
	p := &Publisher{backend: backend, core: common.HexToAddress("0x1"), legacy: true}

	got, err := p.LastPublishedHeight(context.Background())
	require.NoError(t, err)
	require.Equal(t, want.Hex(), got.Hex())
}

func TestOverwriteTestnetBlockNumberShimAppliesNextHeight(t *testing.T) {
	stateDiff := []*uint256.Int{
		uint256.NewInt(10),
		uint256.NewInt(20),
		uint256.NewInt(99), // state_root
		uint256.NewInt(1),  // stale block_number
		uint256.NewInt(55), // block_hash
	}
	next := uint256.NewInt(43)
	calldata, err := overwriteTestnetBlockNumberShim(stateDiff, next)
	require.NoError(t, err)
	require.NotEmpty(t, calldata)

	directCalldata, err := dacontract.EncodeUpdateState(stateDiff, next)
	require.NoError(t, err)
	require.Equal(t, directCalldata, calldata)
}
