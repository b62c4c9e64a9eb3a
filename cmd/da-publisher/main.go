// Command da-publisher is the standalone DA publication binary: a
// lighter-weight proxy-style process configured via flags and environment
// variables rather than a JSON file, mirroring op-geth-proxy's bootstrap.
package main

import (
	"context"
	"crypto/ecdsa"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	"github.com/peterbourgon/ff/v3"

	"github.com/starksync/engine/statesync/config"
	"github.com/starksync/engine/statesync/daaudit"
	"github.com/starksync/engine/statesync/dapublish"
	"github.com/starksync/engine/statesync/dastore"
	"github.com/starksync/engine/statesync/kvstore"
)

// ENV_PREFIX names the environment variable prefix flags can also be set
// through, e.g. DA_PUBLISHER_CONFIG.
const ENV_PREFIX = "DA_PUBLISHER"

var (
	fs         = flag.NewFlagSet("da-publisher", flag.ExitOnError)
	configPath = fs.String("config", "starknet.toml", "path to the TOML StarknetConfig file")
	dbPath     = fs.String("db", "./da-publisher-data", "path to the goleveldb data directory")
	legacy     = fs.Bool("legacy", false, "talk to the legacy updateState(felt[]) contract variant")
)

func main() {
	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix(ENV_PREFIX)); err != nil {
		fmt.Fprintln(os.Stderr, "parse flags:", err)
		os.Exit(1)
	}

	l := log.New("service", "da-publisher")

	cfgFile, err := os.Open(*configPath)
	if err != nil {
		l.Crit("open starknet config", "path", *configPath, "err", err)
	}
	defer cfgFile.Close()
	cfg, err := config.LoadStarknetConfig(cfgFile)
	if err != nil {
		l.Crit("load starknet config", "err", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client, err := ethclient.DialContext(ctx, cfg.HTTPProvider)
	if err != nil {
		l.Crit("dial L1 provider", "err", err)
	}

	kv, err := kvstore.Open(*dbPath)
	if err != nil {
		l.Crit("open kv store", "err", err)
	}
	defer kv.Close()
	store := dastore.New(kv)

	audit, err := daaudit.Open(cfg.AuditDSN)
	if err != nil {
		l.Crit("open audit log", "err", err)
	}

	key, err := parseKey(cfg.SequencerKey)
	if err != nil {
		l.Crit("parse sequencer key", "err", err)
	}

	publisher := dapublish.New(l, client, store, audit, common.HexToAddress(cfg.CoreContracts), key, *legacy)

	interval := 5 * time.Second
	if cfg.PollIntervalMs != nil {
		interval = time.Duration(*cfg.PollIntervalMs) * time.Millisecond
	}

	l.Info("da publisher starting", "mode", cfg.Mode, "core_contract", cfg.CoreContracts, "interval", interval)
	runLoop(ctx, l, publisher, store, interval)
}

// runLoop, on each tick until ctx is canceled, publishes the pending diff
// stored under the last proved block hash, if there is one. Pending diffs
// under other block hashes are not looked up.
func runLoop(ctx context.Context, l log.Logger, p *dapublish.Publisher, store *dastore.Store, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			last, ok, err := store.LastProvedBlock()
			if err != nil {
				l.Warn("read last proved block failed", "err", err)
				continue
			}
			if !ok {
				continue
			}
			words, ok, err := store.PendingDiff(last)
			if err != nil || !ok {
				continue
			}
			if err := p.Publish(ctx, last, 0, words); err != nil {
				l.Warn("publish failed", "block_hash", last, "err", err)
			}
		}
	}
}

func parseKey(hexKey string) (*ecdsa.PrivateKey, error) {
	return crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
}
