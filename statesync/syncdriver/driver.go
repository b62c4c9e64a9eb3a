// Package syncdriver implements the Sync Driver (component E): a fetcher
// task and a writer task connected by an unbuffered channel of batches
// (the fetcher's send blocks until the writer takes the batch; no batches
// are queued), composed with first-to-finish-wins termination. The task-composition and
// error-classification shape — a task that logs and continues versus one
// that terminates on a specific failure class — is adapted from this
// codebase's sequencer scheduling loop (op-node/rollup/driver), which
// draws the same distinction between retryable and fatal outcomes.
package syncdriver

import (
	"context"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"

	statesync "github.com/starksync/engine/statesync"
	"github.com/starksync/engine/statesync/ethtypes"
	"github.com/starksync/engine/statesync/logscan"
)

// Config mirrors the relevant fields of StateSyncConfig.
type Config struct {
	L1Start              uint64
	L2Start              int64
	SyncingFetchInterval time.Duration
	SyncedFetchInterval  time.Duration
}

// DefaultFetchInterval is used when a configured interval is zero.
const DefaultFetchInterval = 5 * time.Second

// Cursor persists and loads the L1↔L2 block mapping.
type Cursor interface {
	Load(ctx context.Context) (ethtypes.L1L2BlockMapping, bool, error)
	Store(ctx context.Context, m ethtypes.L1L2BlockMapping) error
}

// Fetcher is the subset of the Log Range Scanner + Diff Reconstructor +
// Diff Decoder pipeline the driver needs: given a cursor position, return
// every FetchState whose L2 block number is at least l2From.
type Fetcher interface {
	FetchBatch(ctx context.Context, l1From uint64, l2From int64) ([]ethtypes.FetchState, uint64, error)
}

// Writer is the State Writer: apply one FetchState's mutations atomically.
type Writer interface {
	Apply(ctx context.Context, fs ethtypes.FetchState) error
}

// Driver wires the fetcher and writer tasks together.
type Driver struct {
	log     log.Logger
	cfg     Config
	fetcher Fetcher
	writer  Writer
	cursor  Cursor
	oracle  *logscan.Oracle

	ch chan []ethtypes.FetchState
}

func New(l log.Logger, cfg Config, fetcher Fetcher, writer Writer, cursor Cursor, oracle *logscan.Oracle) *Driver {
	if cfg.SyncingFetchInterval == 0 {
		cfg.SyncingFetchInterval = DefaultFetchInterval
	}
	if cfg.SyncedFetchInterval == 0 {
		cfg.SyncedFetchInterval = DefaultFetchInterval
	}
	return &Driver{
		log:     l,
		cfg:     cfg,
		fetcher: fetcher,
		writer:  writer,
		cursor:  cursor,
		oracle:  oracle,
		ch:      make(chan []ethtypes.FetchState),
	}
}

// Run starts the fetcher and writer tasks and blocks until either
// terminates, per the "first-to-finish-wins" composite termination rule.
func (d *Driver) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		d.runFetcher(ctx)
		return nil
	})
	g.Go(func() error {
		defer cancel()
		return d.runWriter(ctx)
	})
	return g.Wait()
}

// runFetcher never returns an error: failures are logged and the cycle is
// skipped, per the error-handling policy (the fetcher never terminates).
func (d *Driver) runFetcher(ctx context.Context) {
	l1h, l2h := d.cfg.L1Start, d.cfg.L2Start
	start := ethtypes.L1L2BlockMapping{L1BlockNumber: l1h, L2BlockNumber: l2h}
	if m, ok, err := d.cursor.Load(ctx); err == nil && ok && start.Advanced(m) {
		l1h, l2h = m.L1BlockNumber, m.L2BlockNumber
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		batch, nextL1, err := d.fetcher.FetchBatch(ctx, l1h, l2h)
		if err != nil {
			d.log.Warn("sync driver: fetch cycle failed, will retry", "l1_from", l1h, "l2_from", l2h, "err", err, "kind", statesync.KindOf(err))
			d.sleep(ctx, d.interval())
			continue
		}
		if len(batch) == 0 {
			l1h = nextL1
			d.sleep(ctx, d.interval())
			continue
		}

		sort.Sort(ethtypes.ByL2BlockNumber(batch))
		last := batch[len(batch)-1]
		l1h = last.Mapping.L1BlockNumber + 1
		l2h = last.Mapping.L2BlockNumber + 1

		select {
		case d.ch <- batch:
		case <-ctx.Done():
			return
		}

		d.sleep(ctx, d.interval())
	}
}

func (d *Driver) interval() time.Duration {
	if d.oracle != nil && d.oracle.IsMajorSyncing() {
		return d.cfg.SyncingFetchInterval
	}
	return d.cfg.SyncedFetchInterval
}

func (d *Driver) sleep(ctx context.Context, dur time.Duration) {
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// runWriter applies each batch in order and persists the cursor; it
// terminates on the first persistence failure, per policy.
func (d *Driver) runWriter(ctx context.Context) error {
	for {
		select {
		case batch, ok := <-d.ch:
			if !ok {
				return nil
			}
			for _, fs := range batch {
				if err := d.writer.Apply(ctx, fs); err != nil {
					return statesync.NewCommitStorage("apply fetch state failed", err)
				}
			}
			last := batch[len(batch)-1]
			if err := d.cursor.Store(ctx, last.Mapping); err != nil {
				return statesync.NewCommitStorage("persist cursor failed", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
