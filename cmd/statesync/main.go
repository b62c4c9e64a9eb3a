// Command statesync is the engine's own entrypoint binary: it wires the
// L1 Provider Pool, Diff Reconstructor, Diff Decoder, Sync Driver, and
// State Writer together and serves the sync oracle over HTTP. Flag
// bootstrap follows this codebase's urfave/cli-based node binaries.
package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/fsnotify/fsnotify"
	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/starksync/engine/statesync/config"
	"github.com/starksync/engine/statesync/diffdecode"
	"github.com/starksync/engine/statesync/fetchpipeline"
	"github.com/starksync/engine/statesync/kvstore"
	"github.com/starksync/engine/statesync/l1pool"
	"github.com/starksync/engine/statesync/logscan"
	"github.com/starksync/engine/statesync/metrics"
	"github.com/starksync/engine/statesync/reconstruct"
	"github.com/starksync/engine/statesync/statewriter"
	"github.com/starksync/engine/statesync/statusapi"
	"github.com/starksync/engine/statesync/syncdriver"
)

func main() {
	app := &cli.App{
		Name:  "statesync",
		Usage: "L1-to-L2 StarkNet state sync engine",
		Commands: []*cli.Command{
			runCommand(),
			statusCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "start the sync engine",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: "statesync.json", Usage: "path to the JSON StateSyncConfig file"},
			&cli.StringFlag{Name: "db", Value: "./statesync-data", Usage: "path to the goleveldb data directory"},
			&cli.StringFlag{Name: "endpoints-file", Usage: "optional file listing L1 RPC endpoints, one per line, hot-reloaded"},
			&cli.StringFlag{Name: "http-addr", Value: "127.0.0.1:9545", Usage: "listen address for the /status endpoint"},
			&cli.StringFlag{Name: "metrics-addr", Value: "127.0.0.1:9546", Usage: "listen address for /metrics"},
		},
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	l := log.New("service", "statesync")

	f, err := os.Open(c.String("config"))
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	cfg, err := config.LoadStateSyncConfig(f)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool, err := l1pool.New(l, cfg.L1URLList)
	if err != nil {
		return fmt.Errorf("init l1 pool: %w", err)
	}

	if path := c.String("endpoints-file"); path != "" {
		if err := watchEndpoints(l, path, pool); err != nil {
			l.Warn("endpoints file watch not started", "err", err)
		}
	}

	contracts := reconstruct.Contracts{
		Core:       common.HexToAddress(cfg.CoreContract),
		Verifier:   common.HexToAddress(cfg.VerifierContract),
		MemoryPage: common.HexToAddress(cfg.MemoryPageContract),
	}
	reconstructor := reconstruct.New(l, pool, contracts)
	oracle := &logscan.Oracle{}
	scanner := logscan.New(l, pool)
	versions := diffdecode.VersionConfig{
		V011DiffFormatHeight:      cfg.V011DiffFormatHeight,
		ConstructorArgsDiffHeight: cfg.ConstructorArgsDiffHeight,
	}
	pipeline := fetchpipeline.New(l, scanner, reconstructor, versions, contracts.Core, oracle)

	kv, err := kvstore.Open(c.String("db"))
	if err != nil {
		return fmt.Errorf("open kv store: %w", err)
	}
	defer kv.Close()
	writer := statewriter.New(l, kv, statewriter.NewKVBackend(kv))

	reg := prometheus.NewRegistry()
	metrics.New(reg)

	driver := syncdriver.New(l, syncdriver.Config{
		L1Start:              cfg.L1Start,
		L2Start:              cfg.L2Start,
		SyncingFetchInterval: secondsOrDefault(cfg.SyncingFetchInterval),
		SyncedFetchInterval:  secondsOrDefault(cfg.SyncedFetchInterval),
	}, pipeline, writer, writer, oracle)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go serveStatus(l, c.String("http-addr"), oracle)
	go serveMetrics(l, c.String("metrics-addr"), reg)

	l.Info("sync driver starting", "l1_start", cfg.L1Start, "l2_start", cfg.L2Start)
	return driver.Run(ctx)
}

func secondsOrDefault(s uint64) time.Duration {
	return time.Duration(s) * time.Second
}

func serveStatus(l log.Logger, addr string, oracle *logscan.Oracle) {
	if err := http.ListenAndServe(addr, statusapi.New(oracle)); err != nil {
		l.Warn("status server exited", "err", err)
	}
}

func serveMetrics(l log.Logger, addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		l.Warn("metrics server exited", "err", err)
	}
}

func watchEndpoints(l log.Logger, path string, pool *l1pool.Pool) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return err
	}
	reload := func() {
		raw, err := os.ReadFile(path)
		if err != nil {
			l.Warn("endpoints file reload failed", "err", err)
			return
		}
		var urls []string
		for _, line := range strings.Split(string(raw), "\n") {
			line = strings.TrimSpace(line)
			if line != "" {
				urls = append(urls, line)
			}
		}
		if len(urls) > 0 {
			pool.SetEndpoints(urls)
			l.Info("l1 endpoints reloaded", "count", len(urls))
		}
	}
	go func() {
		defer watcher.Close()
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					reload()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				l.Warn("endpoints watcher error", "err", err)
			}
		}
	}()
	return nil
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "print the local sync oracle status",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "http-addr", Value: "127.0.0.1:9545", Usage: "address of a running engine's status endpoint"},
		},
		Action: func(c *cli.Context) error {
			resp, err := http.Get("http://" + c.String("http-addr") + "/status")
			if err != nil {
				return fmt.Errorf("query status endpoint: %w", err)
			}
			defer resp.Body.Close()

			var buf bytes.Buffer
			buf.ReadFrom(resp.Body)

			if isatty.IsTerminal(os.Stdout.Fd()) {
				table := tablewriter.NewWriter(os.Stdout)
				table.SetHeader([]string{"field", "value"})
				table.Append([]string{"raw", buf.String()})
				table.Render()
				return nil
			}
			fmt.Println(buf.String())
			return nil
		},
	}
}
