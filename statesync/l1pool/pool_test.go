package l1pool

import (
	"context"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	fail bool
}

func (f *fakeClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	if f.fail {
		return nil, fmt.Errorf("endpoint down")
	}
	return []types.Log{{BlockNumber: 1}}, nil
}
func (f *fakeClient) TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	return nil, false, nil
}
func (f *fakeClient) BlockNumber(ctx context.Context) (uint64, error) { return 0, nil }
func (f *fakeClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return nil, nil
}
func (f *fakeClient) Close() {}

// TestPoolRotatesAndBacksOffOnFailure exercises a 3-endpoint pool where the
// first two fail and the third succeeds, checking that the retry loop
// backs off with delay(n) = min(2^n, 10s) between each failed attempt,
// starting from the first retry's delay(1), and stops once an attempt
// succeeds.
func TestPoolRotatesAndBacksOffOnFailure(t *testing.T) {
	clients := []*fakeClient{{fail: true}, {fail: true}, {fail: false}}
	var slept []time.Duration

	p, err := New(log.New(), []string{"a", "b", "c"})
	require.NoError(t, err)
	p.sleep = func(d time.Duration) { slept = append(slept, d) }
	i := 0
	p.dial = func(ctx context.Context, url string) (EthClient, error) {
		c := clients[i]
		i++
		return c, nil
	}

	_, err = p.FilterLogs(context.Background(), ethereum.FilterQuery{})
	require.NoError(t, err)
	require.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, slept)
}

func TestPoolReturnsL1ConnectionAfterExhaustingEndpoints(t *testing.T) {
	p, err := New(log.New(), []string{"a", "b"})
	require.NoError(t, err)
	p.sleep = func(time.Duration) {}
	p.dial = func(ctx context.Context, url string) (EthClient, error) {
		return &fakeClient{fail: true}, nil
	}

	_, err = p.BlockNumber(context.Background())
	require.Error(t, err)
}

func TestBackoffSchedule(t *testing.T) {
	require.Equal(t, time.Second, backoff(0))
	require.Equal(t, 2*time.Second, backoff(1))
	require.Equal(t, 4*time.Second, backoff(2))
	require.Equal(t, 8*time.Second, backoff(3))
	require.Equal(t, 10*time.Second, backoff(4))
	require.Equal(t, 10*time.Second, backoff(10))
}
