// Package reconstruct implements the Diff Reconstructor (component C):
// given one StateUpdate, it correlates the transition-fact, pages-hashes,
// and page-fact-continuous log streams with on-chain calldata to rebuild
// the raw state-diff blob. The correlation algorithm — backward scans,
// stack-based reassembly, reversed flatten, dropped header page — is
// carried over from this system's original event-chasing fetcher.
package reconstruct

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"

	statesync "github.com/starksync/engine/statesync"
	"github.com/starksync/engine/statesync/ethtypes"
	"github.com/starksync/engine/statesync/l1events"
	"github.com/starksync/engine/statesync/logscan"
)

// Source is the subset of the L1 provider pool the reconstructor needs.
type Source interface {
	logscan.Source
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, error)
}

// Contracts names the three L1 addresses the reconstructor reads events
// and transactions from.
type Contracts struct {
	Core       common.Address // emits LogStateUpdate, LogStateTransitionFact
	Verifier   common.Address // emits LogMemoryPagesHashes
	MemoryPage common.Address // emits LogMemoryPageFactContinuous
}

// Reconstructor rebuilds a diff blob for one StateUpdate.
type Reconstructor struct {
	log       log.Logger
	src       Source
	scanner   *logscan.Scanner
	contracts Contracts
}

func New(l log.Logger, src Source, contracts Contracts) *Reconstructor {
	return &Reconstructor{log: l, src: src, scanner: logscan.New(l, src), contracts: contracts}
}

// Reconstruct returns the flat []*uint256.Int diff blob for update, per
// the five-step correlation in 4.C.
func (r *Reconstructor) Reconstruct(ctx context.Context, update ethtypes.StateUpdate) ([]*uint256.Int, error) {
	fact, err := r.findTransitionFact(ctx, update.Origin)
	if err != nil {
		return nil, err
	}

	pagesHashes, err := r.findPagesHashes(ctx, update.Origin.BlockNumber, fact)
	if err != nil {
		return nil, err
	}

	pages, err := r.findContinuousPages(ctx, update.Origin.BlockNumber, pagesHashes)
	if err != nil {
		return nil, err
	}

	if len(pages) == 0 {
		return nil, statesync.NewL1StateError("no memory pages found for state update")
	}
	// Drop the first reassembled page: it is the continuous-page scheme
	// header, not diff content (see the design-note open question).
	pages = pages[1:]

	var blob []*uint256.Int
	for _, p := range pages {
		tx, err := r.src.TransactionByHash(ctx, p.txHash)
		if err != nil {
			return nil, statesync.NewL1Connection("fetch memory page transaction", err)
		}
		values, err := l1events.DecodeRegisterContinuousMemoryPageCalldata(tx.Data())
		if err != nil {
			return nil, statesync.NewL1EventDecode("decode registerContinuousMemoryPage calldata", err)
		}
		for _, v := range values {
			u, overflow := uint256.FromBig(v)
			if overflow {
				return nil, statesync.NewTypeError("memory page value overflows uint256")
			}
			blob = append(blob, u)
		}
	}
	return blob, nil
}

// findTransitionFact queries LogStateTransitionFact restricted to the
// update's origin block and transaction index. Exactly one match is
// expected.
func (r *Reconstructor) findTransitionFact(ctx context.Context, origin ethtypes.EthOrigin) (common.Hash, error) {
	q := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(origin.BlockNumber),
		ToBlock:   new(big.Int).SetUint64(origin.BlockNumber),
		Addresses: []common.Address{r.contracts.Core},
		Topics:    [][]common.Hash{{l1events.SigStateTransitionFact}},
	}
	logs, err := r.src.FilterLogs(ctx, q)
	if err != nil {
		return common.Hash{}, statesync.NewL1EventDecode("filter LogStateTransitionFact", err)
	}
	for _, lg := range logs {
		if uint64(lg.TxIndex) != origin.TxIndex {
			continue
		}
		fact, err := l1events.DecodeStateTransitionFact(lg)
		if err != nil {
			return common.Hash{}, statesync.NewL1EventDecode("decode LogStateTransitionFact", err)
		}
		return fact, nil
	}
	return common.Hash{}, statesync.NewL1StateError(fmt.Sprintf("no LogStateTransitionFact at block %d tx %d", origin.BlockNumber, origin.TxIndex))
}

// findPagesHashes backward-scans the verifier contract for the
// LogMemoryPagesHashes log whose fact matches, starting at eth_from and
// walking backward since the fact is registered before the state update.
func (r *Reconstructor) findPagesHashes(ctx context.Context, ethFrom uint64, fact common.Hash) ([]common.Hash, error) {
	logs, err := r.scanner.ScanBackward(ctx, r.contracts.Verifier, [][]common.Hash{{l1events.SigPagesHashes}, {fact}}, ethFrom)
	if err != nil {
		return nil, err
	}
	for _, lg := range logs {
		decoded, err := l1events.DecodePagesHashes(lg)
		if err != nil {
			return nil, statesync.NewL1EventDecode("decode LogMemoryPagesHashes", err)
		}
		if decoded.Fact == fact {
			return decoded.PagesHashes, nil
		}
	}
	return nil, statesync.NewL1StateError("no LogMemoryPagesHashes matching transition fact")
}

// page is one matched LogMemoryPageFactContinuous, paired with the
// transaction hash its log was emitted in.
type page struct {
	memoryHash common.Hash
	txHash     common.Hash
}

// findContinuousPages backward-scans the memory-page contract for logs
// whose memoryHash is in the pending set, removing each match from the
// set. Per-window matches are pushed onto a stack; once the pending set
// empties the stack is reversed to restore chronological order.
func (r *Reconstructor) findContinuousPages(ctx context.Context, ethFrom uint64, pagesHashes []common.Hash) ([]page, error) {
	pending := make(map[common.Hash]bool, len(pagesHashes))
	for _, h := range pagesHashes {
		pending[h] = true
	}

	var windowStack [][]page
	to := ethFrom
	for len(pending) > 0 {
		if to == 0 {
			return nil, statesync.NewL1StateError("backward scan for memory pages reached block 0 with pages outstanding")
		}
		lo := saturatingSub(to, logscan.LogSearchStep)
		q := ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(lo),
			ToBlock:   new(big.Int).SetUint64(to),
			Addresses: []common.Address{r.contracts.MemoryPage},
			Topics:    [][]common.Hash{{l1events.SigPageFactContinuous}},
		}
		logs, err := r.src.FilterLogs(ctx, q)
		if err != nil {
			return nil, statesync.NewL1EventDecode("filter LogMemoryPageFactContinuous", err)
		}
		var matched []page
		for _, lg := range logs {
			decoded, err := l1events.DecodePageFactContinuous(lg)
			if err != nil {
				return nil, statesync.NewL1EventDecode("decode LogMemoryPageFactContinuous", err)
			}
			memHash := common.BigToHash(decoded.MemoryHash)
			if pending[memHash] {
				delete(pending, memHash)
				matched = append(matched, page{memoryHash: memHash, txHash: lg.TxHash})
			}
		}
		if len(matched) > 0 {
			windowStack = append(windowStack, matched)
		}
		to = lo
	}

	// Reverse the stack of windows, then flatten, restoring chronological
	// (oldest-window-first) order.
	var flat []page
	for i := len(windowStack) - 1; i >= 0; i-- {
		flat = append(flat, windowStack[i]...)
	}
	return flat, nil
}

func saturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}
