// Command worker runs a single worker batch synchronizer process: it
// loads a TOML config, opens its batch store, starts the inbound RPC
// server and the synchronizer loop, and blocks until signalled.
package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/jabolina/worker-sync/pkg/worker/config"
	"github.com/jabolina/worker-sync/pkg/worker/core"
	"github.com/jabolina/worker-sync/pkg/worker/definition"
	"github.com/jabolina/worker-sync/pkg/worker/metrics"
	"github.com/jabolina/worker-sync/pkg/worker/network"
	"github.com/jabolina/worker-sync/pkg/worker/store"
	"github.com/jabolina/worker-sync/pkg/worker/types"
	"github.com/prometheus/client_golang/prometheus"
	kingpin "gopkg.in/alecthomas/kingpin.v2"
)

var (
	configPath = kingpin.Flag("config", "path to the worker's TOML configuration file").
			Required().String()
	debug = kingpin.Flag("debug", "enable debug-level logging").Bool()
	seed  = kingpin.Flag("seed", "PRNG seed for lucky broadcast peer selection").Default("1").Int64()
)

func main() {
	kingpin.Parse()

	fc, err := config.Load(*configPath)
	if err != nil {
		fatal("loading config: %v", err)
	}

	log := definition.NewLogrusLogger(fc.Authority, fc.WorkerID)
	log.ToggleDebug(*debug)

	syncConfig, err := fc.SynchronizerConfig()
	if err != nil {
		fatal("parsing synchronizer config: %v", err)
	}

	batchStore, err := store.OpenBoltStore(fc.StorePath)
	if err != nil {
		fatal("opening batch store: %v", err)
	}
	defer batchStore.Close()

	registry := prometheus.NewRegistry()
	workerMetrics := metrics.NewWorkerMetrics(registry)

	transport := network.NewGRPCTransport(log)
	defer transport.Close()
	lucky := network.NewLuckyBroadcaster(transport, *seed)

	server := network.NewServer(log, batchStore)
	listener, err := net.Listen("tcp", fc.ListenOn)
	if err != nil {
		fatal("listening on %s: %v", fc.ListenOn, err)
	}
	go func() {
		if err := server.GRPCServer().Serve(listener); err != nil {
			log.Errorf("rpc server stopped: %v", err)
		}
	}()

	committee, workerCache := fc.Bootstrap()
	watcher := types.NewWatcher()

	downstreamCtx, cancelDownstream := context.WithCancel(context.Background())
	defer cancelDownstream()

	rxPrimary := make(chan types.PrimaryCommand, 64)
	txPrimary := make(chan types.WorkerPrimaryMessage, 64)
	txBatchProcessor := make(chan types.Batch, 64)

	synchronizer := core.New(
		types.AuthorityId(fc.Authority),
		types.WorkerId(fc.WorkerID),
		committee,
		workerCache,
		batchStore,
		transport,
		lucky,
		watcher,
		workerMetrics,
		log,
		syncConfig,
		rxPrimary,
		txPrimary,
		txBatchProcessor,
		downstreamCtx,
	)

	// Drain the outbound channels so the loop never blocks forever on
	// a reply nobody is reading; a real deployment wires these into
	// the primary's own transport instead.
	go func() {
		for range txPrimary {
		}
	}()
	go func() {
		for range txBatchProcessor {
		}
	}()

	go synchronizer.Run()

	log.Infof("worker %s/%d listening on %s", fc.Authority, fc.WorkerID, fc.ListenOn)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("shutting down")
	sub := watcher.Subscribe()
	rxPrimary <- types.Reconfigure{Notification: types.Shutdown{}}
	<-sub.C()
	sub.Close()
	cancelDownstream()
	server.GRPCServer().GracefulStop()
}

func fatal(format string, args ...interface{}) {
	definition.NewDefaultLogger().Fatalf(format, args...)
}
