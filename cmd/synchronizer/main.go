// Copyright 2025 UniRep Synchronizer
//
// cmd/synchronizer wires config, store, chain, verifier, tree engine,
// and dispatcher into one running Ingestor, grounded on the teacher's
// main.go lifecycle: load-config-or-fatal, connect dependencies,
// start an HTTP listener in a goroutine, block on a signal, then a
// bounded-timeout graceful shutdown.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/unirep/synchronizer/pkg/config"
	"github.com/unirep/synchronizer/pkg/ethereum"
	"github.com/unirep/synchronizer/pkg/field"
	"github.com/unirep/synchronizer/pkg/gnarkverifier"
	"github.com/unirep/synchronizer/pkg/handler"
	"github.com/unirep/synchronizer/pkg/ingestor"
	"github.com/unirep/synchronizer/pkg/logging"
	"github.com/unirep/synchronizer/pkg/metrics"
	"github.com/unirep/synchronizer/pkg/store"
	"github.com/unirep/synchronizer/pkg/tree"
)

func main() {
	logger := logging.New("synchronizer")

	// instanceID correlates this process's log lines and metrics
	// series when several Synchronizers run concurrently (one per
	// attester, or a rolling deploy) — generated once at startup, not
	// persisted, since it identifies a process lifetime, not a
	// protocol entity.
	instanceID := uuid.New().String()
	logger.Printf("starting synchronizer instance=%s", instanceID)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.Open(ctx, store.Config{
		DatabaseURL:  cfg.DatabaseURL,
		MaxOpenConns: cfg.DatabaseMaxConns,
		MaxIdleConns: cfg.DatabaseMinConns,
		MaxIdleTime:  time.Duration(cfg.DatabaseMaxIdleTime) * time.Second,
		MaxLifetime:  time.Duration(cfg.DatabaseMaxLifetime) * time.Second,
	}, logger)
	if err != nil {
		logger.Fatalf("open store: %v", err)
	}
	defer st.Close()

	if err := bootstrapFirstEpoch(ctx, st); err != nil {
		logger.Fatalf("bootstrap first epoch: %v", err)
	}

	chain, err := ethereum.Dial(ethereum.Config{
		URL:             cfg.EthereumURL,
		ContractAddress: ethcommon.HexToAddress(cfg.ContractAddress),
	})
	if err != nil {
		logger.Fatalf("dial ethereum: %v", err)
	}

	verifier, err := gnarkverifier.New(cfg.VerifyingKeysDir)
	if err != nil {
		logger.Fatalf("load verifying keys: %v", err)
	}

	params := handler.Params{
		GSTTreeDepth:             cfg.GSTTreeDepth,
		EpochTreeDepth:           cfg.EpochTreeDepth,
		USTTreeDepth:             cfg.USTTreeDepth,
		NumEpochKeyNoncePerEpoch: cfg.NumEpochKeyNoncePerEpoch,
	}

	engine := tree.NewEngine(cfg.GSTTreeDepth, field.Zero())
	if err := primeEngine(ctx, st, engine); err != nil {
		logger.Fatalf("prime tree engine: %v", err)
	}

	dispatcher := handler.NewDispatcher(engine, verifier, params)
	m := metrics.New(instanceID)

	ing := ingestor.New(chain, st, dispatcher, ingestor.Config{
		PollInterval:    cfg.PollInterval,
		BlockLookback:   cfg.BlockLookback,
		StoreRetryLimit: cfg.StoreRetryLimit,
	}, logger, m.Observer())

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	httpServer := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}

	go func() {
		logger.Printf("metrics listening on %s", cfg.MetricsAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("metrics server: %v", err)
		}
	}()

	runErr := make(chan error, 1)
	go func() { runErr <- ing.Run(ctx) }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Printf("shutdown signal received")
	case err := <-runErr:
		if err != nil && err != context.Canceled {
			logger.Printf("ingestor stopped: %v", err)
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("metrics server shutdown error: %v", err)
	}

	logger.Printf("synchronizer stopped")
}

// bootstrapFirstEpoch creates epoch 1 on a fresh deployment — the
// migrations seed no epoch row, and the epochs table's partial unique
// index permits exactly one unsealed epoch at a time, so this is a
// one-time no-op once epoch 1 (or any later epoch) already exists.
func bootstrapFirstEpoch(ctx context.Context, st *store.Store) error {
	_, err := st.CurrentEpoch(ctx)
	if err == nil {
		return nil
	}
	return st.CreateEpoch(ctx, 1)
}

// primeEngine loads whichever epoch is currently unsealed and replays
// its persisted GST leaves into a fresh in-memory tree, so the live
// Engine picks up exactly where the last run left off instead of
// starting empty against a partially-filled epoch.
func primeEngine(ctx context.Context, st *store.Store, engine *tree.Engine) error {
	current, err := st.CurrentEpoch(ctx)
	if err != nil {
		return fmt.Errorf("load current epoch: %w", err)
	}
	engine.ResetGST(current.Number)

	leaves, err := st.GSTLeavesForEpoch(ctx, current.Number)
	if err != nil {
		return fmt.Errorf("load gst leaves for epoch %d: %w", current.Number, err)
	}
	for _, l := range leaves {
		leaf, err := field.FromDecimalString(l.Hash)
		if err != nil {
			return fmt.Errorf("gst leaf epoch=%d index=%d: %w", current.Number, l.Index, err)
		}
		if _, _, err := engine.InsertGSTLeaf(current.Number, leaf); err != nil {
			return fmt.Errorf("replay gst leaf epoch=%d index=%d: %w", current.Number, l.Index, err)
		}
	}
	return nil
}
