// Package l1pool implements the L1 Provider Pool: retryable JSON-RPC access
// to an Ethereum-like L1 chain with failover across a list of endpoints and
// exponential backoff. The wrapping and caching shape is adapted from this
// codebase's L1Client (op-service/sources), generalized from a single
// endpoint to a rotating pool per the engine's own retry policy.
package l1pool

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	lru "github.com/hashicorp/golang-lru/v2"
	multierror "github.com/hashicorp/go-multierror"
	"golang.org/x/time/rate"

	statesync "github.com/starksync/engine/statesync"
)

// backoffBase, backoffFactor, and backoffCap implement delay(n) =
// min(base*factor^n, cap) = min(2^n, 10) seconds.
const (
	backoffBase   = time.Second
	backoffFactor = 2
	backoffCap    = 10 * time.Second
)

// headerCacheSize bounds the LRU used to avoid redundant header
// round-trips within one scan window.
const headerCacheSize = 256

// Dialer opens a connection to an RPC endpoint. Exposed as an interface so
// tests can substitute a fake client without dialing a real network.
type Dialer func(ctx context.Context, url string) (EthClient, error)

// EthClient is the subset of *ethclient.Client the pool depends on.
type EthClient interface {
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	Close()
}

// Pool is a rotating set of L1 RPC endpoints, sharing one best-effort
// rotation index and one backoff schedule across all callers.
type Pool struct {
	log     log.Logger
	mu      sync.Mutex
	urls    []string
	clients []EthClient
	idx     int

	dial    Dialer
	limiter map[int]*rate.Limiter

	headerCache *lru.Cache[uint64, *types.Header]

	sleep func(time.Duration) // overridable in tests
}

// New constructs a pool over the given endpoint URLs, dialing each lazily
// on first use. urls must be non-empty.
func New(l log.Logger, urls []string) (*Pool, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("l1pool: at least one endpoint is required")
	}
	cache, err := lru.New[uint64, *types.Header](headerCacheSize)
	if err != nil {
		return nil, err
	}
	p := &Pool{
		log:         l,
		urls:        append([]string(nil), urls...),
		clients:     make([]EthClient, len(urls)),
		limiter:     make(map[int]*rate.Limiter, len(urls)),
		headerCache: cache,
		sleep:       time.Sleep,
	}
	for i := range urls {
		p.limiter[i] = rate.NewLimiter(rate.Limit(25), 50)
	}
	p.dial = func(ctx context.Context, url string) (EthClient, error) {
		return ethclient.DialContext(ctx, url)
	}
	return p, nil
}

// SetEndpoints hot-swaps the endpoint list, e.g. in response to an
// fsnotify change to the watched endpoints file. The next rotation picks
// up the new list; an in-flight rotation is not interrupted.
func (p *Pool) SetEndpoints(urls []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.urls = append([]string(nil), urls...)
	p.clients = make([]EthClient, len(urls))
	p.limiter = make(map[int]*rate.Limiter, len(urls))
	for i := range urls {
		p.limiter[i] = rate.NewLimiter(rate.Limit(25), 50)
	}
	if p.idx >= len(urls) {
		p.idx = 0
	}
}

// clientAt returns (dialing if necessary) the client at index i.
func (p *Pool) clientAt(ctx context.Context, i int) (EthClient, error) {
	p.mu.Lock()
	c := p.clients[i]
	url := p.urls[i]
	p.mu.Unlock()
	if c != nil {
		return c, nil
	}
	c, err := p.dial(ctx, url)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.clients[i] = c
	p.mu.Unlock()
	return c, nil
}

// rotate advances the shared index modulo the endpoint count. Best-effort:
// concurrent callers may race and observe a stale index, which is fine
// since the next failure rotates again.
func (p *Pool) rotate() {
	p.mu.Lock()
	n := len(p.urls)
	if n > 0 {
		p.idx = (p.idx + 1) % n
	}
	p.mu.Unlock()
}

func (p *Pool) current() (int, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.idx, p.urls[p.idx]
}

// backoff returns delay(n) = min(2^n, 10s).
func backoff(n int) time.Duration {
	d := backoffBase
	for i := 0; i < n; i++ {
		d *= backoffFactor
		if d >= backoffCap {
			return backoffCap
		}
	}
	return d
}

// call runs fn against the current endpoint, rotating and backing off on
// failure until every endpoint has been tried once, then returns
// L1Connection aggregating every endpoint's error.
func (p *Pool) call(ctx context.Context, op string, fn func(EthClient) error) error {
	n := len(p.urls)
	var merr *multierror.Error
	for attempt := 0; attempt < n; attempt++ {
		idx, url := p.current()
		if lim := p.limiter[idx]; lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return statesync.NewOther("rate limiter wait canceled", err)
			}
		}
		client, err := p.clientAt(ctx, idx)
		if err == nil {
			err = fn(client)
		}
		if err == nil {
			return nil
		}
		p.log.Warn("l1pool: endpoint call failed", "op", op, "url", url, "err", err)
		merr = multierror.Append(merr, fmt.Errorf("%s: %w", url, err))
		p.rotate()
		if attempt < n-1 {
			p.sleep(backoff(attempt + 1))
		}
	}
	return statesync.NewL1Connection(fmt.Sprintf("all %d endpoints failed for %s", n, op), merr.ErrorOrNil())
}

// FilterLogs runs eth_getLogs against the pool.
func (p *Pool) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	var out []types.Log
	err := p.call(ctx, "FilterLogs", func(c EthClient) error {
		logs, err := c.FilterLogs(ctx, q)
		if err != nil {
			return err
		}
		out = logs
		return nil
	})
	return out, err
}

// TransactionByHash fetches a transaction by hash from the pool.
func (p *Pool) TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, error) {
	var out *types.Transaction
	err := p.call(ctx, "TransactionByHash", func(c EthClient) error {
		tx, _, err := c.TransactionByHash(ctx, hash)
		if err != nil {
			return err
		}
		out = tx
		return nil
	})
	return out, err
}

// BlockNumber returns the current L1 chain head.
func (p *Pool) BlockNumber(ctx context.Context) (uint64, error) {
	var out uint64
	err := p.call(ctx, "BlockNumber", func(c EthClient) error {
		n, err := c.BlockNumber(ctx)
		if err != nil {
			return err
		}
		out = n
		return nil
	})
	return out, err
}

// HeaderByNumber returns the L1 header at number, consulting the LRU cache
// first.
func (p *Pool) HeaderByNumber(ctx context.Context, number uint64) (*types.Header, error) {
	if h, ok := p.headerCache.Get(number); ok {
		return h, nil
	}
	var out *types.Header
	err := p.call(ctx, "HeaderByNumber", func(c EthClient) error {
		h, err := c.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
		if err != nil {
			return err
		}
		out = h
		return nil
	})
	if err == nil {
		p.headerCache.Add(number, out)
	}
	return out, err
}
