package statewriter

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/starksync/engine/statesync/ethtypes"
	"github.com/starksync/engine/statesync/kvstore"
)

func openTestStore(t *testing.T) *kvstore.Store {
	t.Helper()
	store, err := kvstore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestApplyWritesAllFourNamespacesAndCursorRoundTrips(t *testing.T) {
	store := openTestStore(t)
	w := New(log.New(), store, NewKVBackend(store))

	addr := ethtypes.ContractAddress{1}
	class := ethtypes.ClassHash{2}
	nonce := ethtypes.Nonce{3}
	slot := ethtypes.StorageKey{4}
	value := ethtypes.Felt{5}
	compiled := ethtypes.CompiledClassHash{6}

	diff := ethtypes.NewStateDiff()
	diff.DeployedContracts.Set(addr, class)
	diff.Nonces.Set(addr, nonce)
	diff.SetStorage(addr, slot, value)
	diff.DeclaredClasses.Set(class, ethtypes.DeclaredClass{CompiledClassHash: compiled})

	fs := ethtypes.FetchState{
		Mapping: ethtypes.L1L2BlockMapping{L1BlockNumber: 100, L2BlockNumber: 7},
		Diff:    diff,
	}
	require.NoError(t, w.Apply(context.Background(), fs))

	gotClass, ok, err := store.Get(kvstore.ColumnStateContractClass, addr[:])
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, class[:], gotClass)

	gotNonce, ok, err := store.Get(kvstore.ColumnStateNonce, addr[:])
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, nonce[:], gotNonce)

	gotValue, ok, err := store.Get(kvstore.ColumnStateStorage, storageKey(addr, slot))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, value[:], gotValue)

	gotCompiled, ok, err := store.Get(kvstore.ColumnStateCompiledClass, class[:])
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, compiled[:], gotCompiled)

	_, ok, err = w.Load(context.Background())
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, w.Store(context.Background(), fs.Mapping))
	loaded, ok, err := w.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, fs.Mapping.L1BlockNumber, loaded.L1BlockNumber)
	require.Equal(t, fs.Mapping.L2BlockNumber, loaded.L2BlockNumber)
}

func TestApplySynthesizesShadowHeaderChainedFromBest(t *testing.T) {
	store := openTestStore(t)
	backend := NewKVBackend(store)
	w := New(log.New(), store, backend)

	_, ok, err := backend.BestHeader(context.Background())
	require.NoError(t, err)
	require.False(t, ok)

	diff1 := ethtypes.NewStateDiff()
	diff1.Nonces.Set(ethtypes.ContractAddress{1}, ethtypes.Nonce{1})
	fs1 := ethtypes.FetchState{Mapping: ethtypes.L1L2BlockMapping{L2BlockNumber: 5}, Diff: diff1}
	require.NoError(t, w.Apply(context.Background(), fs1))

	first, ok, err := backend.BestHeader(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(5), first.Number)

	diff2 := ethtypes.NewStateDiff()
	diff2.Nonces.Set(ethtypes.ContractAddress{2}, ethtypes.Nonce{2})
	fs2 := ethtypes.FetchState{Mapping: ethtypes.L1L2BlockMapping{L2BlockNumber: 6}, Diff: diff2}
	require.NoError(t, w.Apply(context.Background(), fs2))

	second, ok, err := backend.BestHeader(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(6), second.Number)
	require.Equal(t, first.Hash(), second.ParentHash)
	require.NotEqual(t, first.StateRoot, second.StateRoot)

	byNumber, ok, err := backend.HeaderByNumber(context.Background(), 5)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, first.StateRoot, byNumber.StateRoot)
}
