package syncdriver

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/starksync/engine/statesync/ethtypes"
)

type fakeCursor struct {
	mu sync.Mutex
	m  ethtypes.L1L2BlockMapping
	ok bool
}

func (c *fakeCursor) Load(ctx context.Context) (ethtypes.L1L2BlockMapping, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.m, c.ok, nil
}
func (c *fakeCursor) Store(ctx context.Context, m ethtypes.L1L2BlockMapping) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m, c.ok = m, true
	return nil
}

type fakeFetcher struct {
	batches [][]ethtypes.FetchState
	i       int
}

func (f *fakeFetcher) FetchBatch(ctx context.Context, l1From uint64, l2From int64) ([]ethtypes.FetchState, uint64, error) {
	if f.i >= len(f.batches) {
		return nil, l1From, nil
	}
	b := f.batches[f.i]
	f.i++
	return b, l1From + 1, nil
}

type recordingWriter struct {
	mu      sync.Mutex
	applied []int64
}

func (w *recordingWriter) Apply(ctx context.Context, fs ethtypes.FetchState) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.applied = append(w.applied, fs.Mapping.L2BlockNumber)
	return nil
}

// TestDriverAppliesBatchesInOrderAndPersistsCursor sends one out-of-order
// batch through the driver and checks the writer observes it sorted
// ascending, with the persisted cursor set to the last element's mapping.
func TestDriverAppliesBatchesInOrderAndPersistsCursor(t *testing.T) {
	batch := []ethtypes.FetchState{
		{Mapping: ethtypes.L1L2BlockMapping{L1BlockNumber: 12, L2BlockNumber: 7}},
		{Mapping: ethtypes.L1L2BlockMapping{L1BlockNumber: 10, L2BlockNumber: 5}},
		{Mapping: ethtypes.L1L2BlockMapping{L1BlockNumber: 11, L2BlockNumber: 6}},
	}
	fetcher := &fakeFetcher{batches: [][]ethtypes.FetchState{batch}}
	writer := &recordingWriter{}
	cursor := &fakeCursor{}

	d := New(log.New(), Config{}, fetcher, writer, cursor, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = d.Run(ctx)

	writer.mu.Lock()
	defer writer.mu.Unlock()
	require.Equal(t, []int64{5, 6, 7}, writer.applied)

	cursor.mu.Lock()
	defer cursor.mu.Unlock()
	require.True(t, cursor.ok)
	require.Equal(t, int64(7), cursor.m.L2BlockNumber)
	require.Equal(t, uint64(12), cursor.m.L1BlockNumber)
}
