// inferd-peer is the remote half of hybrid offload: a small daemon that
// listens for prompt requests over the wire protocol and answers them with
// its own local model runner.
package main

import (
	"log"
	"os"

	"github.com/kekahyde/inferd/internal/config"
	"github.com/kekahyde/inferd/internal/infer"
	"github.com/kekahyde/inferd/internal/peerlink"
)

func main() {
	cfg := config.Load()
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	var engine infer.Engine
	if len(cfg.ModelCommand) > 0 {
		engine = infer.NewCommandEngine(cfg.ModelCommand[0], cfg.ModelCommand[1:]...)
	} else {
		engine = infer.NewCommandEngine("")
		logger.Warn("no model runner configured, requests will be rejected")
	}

	ln, err := peerlink.Listen(cfg.PeerListenAddr)
	if err != nil {
		log.Fatalf("failed to listen on %s: %v", cfg.PeerListenAddr, err)
	}
	defer ln.Close()

	logger.Info("inferd-peer: listening", "addr", cfg.PeerListenAddr)

	srv := peerlink.NewServer(ln, engine, logger)
	if err := srv.Serve(); err != nil {
		log.Fatalf("serve: %v", err)
	}
}
