package main

import (
	"fmt"
	"log"
	"os"

	"github.com/kekahyde/inferd/internal/api"
	"github.com/kekahyde/inferd/internal/config"
	"github.com/kekahyde/inferd/internal/dispatch"
	"github.com/kekahyde/inferd/internal/infer"
	"github.com/kekahyde/inferd/internal/manager"
	"github.com/kekahyde/inferd/internal/offload"
	"github.com/kekahyde/inferd/internal/store"
)

func main() {
	cfg := config.Load()
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	logger.Info("inferd: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"peers", len(cfg.Peers),
		"offload_strategy", cfg.OffloadStrategy,
	)

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	var engine infer.Engine
	if len(cfg.ModelCommand) > 0 {
		engine = infer.NewCommandEngine(cfg.ModelCommand[0], cfg.ModelCommand[1:]...)
	} else {
		engine = infer.NewCommandEngine("")
		logger.Warn("no model runner configured, local inference will fail")
	}

	registry := offload.NewRegistry()
	for i, addr := range cfg.Peers {
		registry.Add(offload.Peer{ID: fmt.Sprintf("peer%d", i+1), Address: addr})
	}

	var strategy offload.Strategy
	switch cfg.OffloadStrategy {
	case config.StrategyChunked:
		strategy = offload.NewChunked(registry, cfg.ChunkSize, cfg.OffloadTimeout, offload.SimulateProcessing, logger)
	default:
		strategy = offload.NewWholePrompt(registry, cfg.OffloadTimeout, logger)
	}

	mgr := manager.New(db, logger)
	coord := dispatch.New(mgr, engine, registry, strategy, logger)

	srv := api.NewServer(cfg.ListenAddr, mgr, coord, engine, db, logger)

	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
