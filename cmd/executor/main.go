// Copyright 2025 Exelayer Protocol
//
// cmd/executor is the executor-core process entrypoint: it loads
// configuration, opens the auxiliary receipt store, loads or generates the
// node's BLS identity key, optionally validates that identity against a
// static YAML peer set, wires the bundle producer, bundle processor,
// worker loop and gossip handler together, and serves /health and
// /metrics until a shutdown signal arrives.
//
// The collaborators this binary wires against the primary runtime and the
// secondary block builder are the devnet package's in-memory stand-ins.
// A production deployment replaces pkg/devnet with RPC- or
// in-process-backed implementations of the same collab interfaces;
// nothing else in this wiring changes.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	dbm "github.com/cometbft/cometbft-db"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/exelayer/executor-core/pkg/bundleproducer"
	"github.com/exelayer/executor-core/pkg/collab"
	"github.com/exelayer/executor-core/pkg/config"
	"github.com/exelayer/executor-core/pkg/crypto/bls"
	"github.com/exelayer/executor-core/pkg/devnet"
	"github.com/exelayer/executor-core/pkg/executor"
	"github.com/exelayer/executor-core/pkg/gossip"
	"github.com/exelayer/executor-core/pkg/metrics"
	"github.com/exelayer/executor-core/pkg/prover"
	"github.com/exelayer/executor-core/pkg/receiptstore"
	"github.com/exelayer/executor-core/pkg/secondaryblock"
	"github.com/exelayer/executor-core/pkg/worker"
)

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Printf("starting executor-core")

	var showHelp = flag.Bool("help", false, "show help message")
	flag.Parse()
	if *showHelp {
		flag.Usage()
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("load configuration: ", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration: ", err)
	}

	keyManager, err := bls.InitializeValidatorBLSKey(cfg.ValidatorID, cfg.ChainID, cfg.BLSKeyPath)
	if err != nil {
		log.Fatal("initialize BLS identity key: ", err)
	}
	self := keyManager.ExecutorID()
	log.Printf("executor identity: %s", self.Hex())

	var peers *config.PeerSet
	if cfg.PeerSetFile != "" {
		peers, err = config.LoadPeerSet(cfg.PeerSetFile)
		if err != nil {
			log.Fatal("load peer set: ", err)
		}
		if _, err := peers.ExecutorIDs(); err != nil {
			log.Fatal("invalid peer set: ", err)
		}
		if !peers.IsKnownPeer(self) {
			log.Fatalf("this node's identity %s is not present in the configured peer set %s", self.Hex(), cfg.PeerSetFile)
		}
		log.Printf("loaded peer set %q: %d known executor(s)", peers.Environment, len(peers.Authorities))
	}

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		log.Fatal("create data directory: ", err)
	}
	db, err := dbm.NewGoLevelDB(cfg.ReceiptDBName, cfg.DataDir)
	if err != nil {
		log.Fatal("open receipt database: ", err)
	}
	defer db.Close()
	store := receiptstore.New(receiptstore.NewDBAdapter(db))

	reg := prometheus.NewRegistry()
	metrics.Register(reg)

	genesis := collab.SecondaryHeader{Hash: executor.Hash{}, Number: 0}
	builder := devnet.NewBlockBuilder(genesis)
	runtime := devnet.NewRuntime(self, 0)
	seeds := devnet.SeedSource{}
	upgrades := devnet.NoUpgrades{}
	pool := devnet.NewPool()

	bundles := make(chan *executor.SignedBundle, cfg.BundleChannelCapacity)
	receipts := make(chan *executor.SignedExecutionReceipt, cfg.ReceiptChannelCapacity)

	producer := bundleproducer.New(pool, runtime, keyManager, self, bundles)
	processor := secondaryblock.New(builder, seeds, upgrades, store, keyManager, self, receipts)

	slots := make(chan bundleproducer.SlotInfo)
	imports := make(chan secondaryblock.ImportedPrimaryBlock)
	loop := worker.New(producer, processor, slots, imports)
	loop.Bootstrap(nil, executor.ActiveLeaf{Hash: genesis.Hash, Number: genesis.Number})

	// No primary chain is attached in this wiring, so imports never fires;
	// a production deployment feeds it from the primary node's block-import
	// notifications.
	p := prover.New(builder)
	legality := gossip.PoolLegality{Pool: pool}
	handler := gossip.New(runtime, pool, legality, seeds, builder, store, p)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("worker loop stopped: %v", err)
		}
	}()

	go slotTicker(ctx, cfg.SlotDuration, slots)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case signed := <-bundles:
				if verdict, err := handler.OnBundle(ctx, signed); err != nil {
					log.Printf("bundle rejected: %v", err)
				} else {
					log.Printf("bundle verdict: %s", verdict)
				}
			case signed := <-receipts:
				handler.NotifyReceiptStored(signed.Receipt.Hash())
			}
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	httpServer := &http.Server{Addr: cfg.HealthAddr, Handler: mux}
	go func() {
		log.Printf("health/metrics endpoint listening on %s", cfg.HealthAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("health/metrics server: ", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("shutting down executor-core")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("health/metrics server shutdown: %v", err)
	}
	log.Printf("executor-core stopped")
}

// slotTicker feeds a SlotInfo into slots every interval, incrementing the
// slot counter. The primary tip is left zero: a real deployment derives it
// from the primary chain's best-block notifications instead of a timer.
func slotTicker(ctx context.Context, interval time.Duration, slots chan<- bundleproducer.SlotInfo) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var slot uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			slot++
			select {
			case slots <- bundleproducer.SlotInfo{Slot: slot}:
			case <-ctx.Done():
				return
			}
		}
	}
}
