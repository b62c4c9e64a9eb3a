// Package logscan implements the Log Range Scanner: forward- and
// backward-paging windowed queries over an L1 log filter, plus the sync
// status oracle the forward scan drives. Adapted from the windowing loops
// in this codebase's event-correlation style (op-node/rollup/derive),
// generalized to the two paging directions the diff reconstructor needs.
package logscan

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	statesync "github.com/starksync/engine/statesync"
)

func bigFromUint64(n uint64) *big.Int { return new(big.Int).SetUint64(n) }

// StateSearchStep is the initial forward window width used for
// LogStateUpdate scans.
const StateSearchStep = 10

// LogSearchStep is the widening/narrowing step applied on an empty window,
// both forward and backward.
const LogSearchStep = 1000

// Source is the subset of the L1 provider pool the scanner needs.
type Source interface {
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// Status is set by each forward scan: SYNCED when the scan starts past the
// L1 head, SYNCING otherwise, so it moves back to SYNCING whenever the head
// pulls ahead of the scan again.
type Status int32

const (
	StatusSyncing Status = iota
	StatusSynced
)

// Oracle exposes the sync status to external callers (the HTTP status
// endpoint and the fetcher's own pacing).
type Oracle struct {
	mu     sync.RWMutex
	status Status
}

func (o *Oracle) set(s Status) {
	o.mu.Lock()
	o.status = s
	o.mu.Unlock()
}

// Get returns the current status.
func (o *Oracle) Get() Status {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.status
}

// IsMajorSyncing reports whether the node is still catching up.
func (o *Oracle) IsMajorSyncing() bool { return o.Get() == StatusSyncing }

// IsOffline is always false: the engine has no notion of being fully
// disconnected from L1, only of lagging behind it.
func (o *Oracle) IsOffline() bool { return false }

// Scanner runs windowed filter queries over one Source.
type Scanner struct {
	log log.Logger
	src Source
}

func New(l log.Logger, src Source) *Scanner {
	return &Scanner{log: l, src: src}
}

// ForwardResult carries the matched logs plus the cursor the caller should
// resume from on the next call.
type ForwardResult struct {
	Logs     []types.Log
	NextFrom uint64
}

// ScanForward widens a window starting at `from` with initial width
// StateSearchStep; on an empty result it advances both bounds by
// LogSearchStep and retries. It clamps to the current L1 head and updates
// oracle: SYNCED once `from` has passed the head, SYNCING otherwise.
func (s *Scanner) ScanForward(ctx context.Context, contract common.Address, topics [][]common.Hash, from uint64, oracle *Oracle) (ForwardResult, error) {
	head, err := s.src.BlockNumber(ctx)
	if err != nil {
		return ForwardResult{}, statesync.NewL1Connection("get_block_number failed", err)
	}
	if from > head {
		if oracle != nil {
			oracle.set(StatusSynced)
		}
		return ForwardResult{NextFrom: from}, nil
	}
	if oracle != nil {
		oracle.set(StatusSyncing)
	}

	window := uint64(StateSearchStep)
	cur := from
	for {
		to := cur + window
		if to > head {
			to = head
		}
		q := ethereum.FilterQuery{
			FromBlock: bigFromUint64(cur),
			ToBlock:   bigFromUint64(to),
			Addresses: []common.Address{contract},
			Topics:    topics,
		}
		logs, err := s.src.FilterLogs(ctx, q)
		if err != nil {
			return ForwardResult{}, statesync.NewL1EventDecode("filter_logs failed", err)
		}
		if len(logs) > 0 {
			return ForwardResult{Logs: logs, NextFrom: to + 1}, nil
		}
		if to >= head {
			return ForwardResult{NextFrom: to + 1}, nil
		}
		cur += LogSearchStep
		window = LogSearchStep
		if cur > head {
			return ForwardResult{NextFrom: cur}, nil
		}
	}
}

// ScanBackward starts at window [from-1000, from] and, on an empty result,
// subtracts LogSearchStep from both bounds using saturating arithmetic; it
// terminates with an error once the upper bound reaches 0 without a match.
func (s *Scanner) ScanBackward(ctx context.Context, contract common.Address, topics [][]common.Hash, from uint64) ([]types.Log, error) {
	to := from
	for {
		if to == 0 {
			return nil, statesync.NewL1StateError("backward scan reached block 0 without a match")
		}
		lo := saturatingSub(to, LogSearchStep)
		q := ethereum.FilterQuery{
			FromBlock: bigFromUint64(lo),
			ToBlock:   bigFromUint64(to),
			Addresses: []common.Address{contract},
			Topics:    topics,
		}
		logs, err := s.src.FilterLogs(ctx, q)
		if err != nil {
			return nil, statesync.NewL1EventDecode("filter_logs failed", err)
		}
		if len(logs) > 0 {
			return logs, nil
		}
		if lo == 0 {
			return nil, statesync.NewL1StateError("backward scan reached block 0 without a match")
		}
		to = saturatingSub(to, LogSearchStep)
	}
}

func saturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}
