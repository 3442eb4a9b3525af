package config

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultListenAddr     = ":3000"
	defaultPeerListenAddr = ":8081"
	defaultDBPath         = "inferd.db"
	defaultOffloadTimeout = 30 * time.Second
	defaultChunkSize      = 10

	envListenAddr      = "INFERD_LISTEN_ADDR"
	envPeerListenAddr  = "INFERD_PEER_LISTEN_ADDR"
	envDBPath          = "INFERD_DB_PATH"
	envLogLevel        = "INFERD_LOG_LEVEL"
	envPeers           = "INFERD_PEERS"
	envModelCommand    = "INFERD_MODEL_CMD"
	envOffloadStrategy = "INFERD_OFFLOAD_STRATEGY"
	envOffloadTimeout  = "INFERD_OFFLOAD_TIMEOUT_S"
	envChunkSize       = "INFERD_CHUNK_SIZE"
)

// Offload strategy names accepted by INFERD_OFFLOAD_STRATEGY.
const (
	StrategyWholePrompt = "whole"
	StrategyChunked     = "chunked"
)

// Config holds daemon configuration loaded from environment variables.
type Config struct {
	ListenAddr     string
	PeerListenAddr string
	DBPath         string
	LogLevel       slog.Level

	// Peers are the seed peer addresses for hybrid offload. Plain host:port
	// addresses dial TCP; vsock://cid:port addresses dial a vsock socket.
	Peers []string

	// ModelCommand is the model-runner invocation, split on whitespace.
	// Empty means no local model is configured.
	ModelCommand []string

	OffloadStrategy string
	OffloadTimeout  time.Duration
	ChunkSize       int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	cfg := Config{
		ListenAddr:      defaultListenAddr,
		PeerListenAddr:  defaultPeerListenAddr,
		DBPath:          defaultDBPath,
		LogLevel:        slog.LevelInfo,
		OffloadStrategy: StrategyWholePrompt,
		OffloadTimeout:  defaultOffloadTimeout,
		ChunkSize:       defaultChunkSize,
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envPeerListenAddr); v != "" {
		cfg.PeerListenAddr = v
	}
	if v := os.Getenv(envDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	if v := os.Getenv(envPeers); v != "" {
		for _, addr := range strings.Split(v, ",") {
			addr = strings.TrimSpace(addr)
			if addr != "" {
				cfg.Peers = append(cfg.Peers, addr)
			}
		}
	}
	if v := os.Getenv(envModelCommand); v != "" {
		cfg.ModelCommand = strings.Fields(v)
	}
	if v := os.Getenv(envOffloadStrategy); v == StrategyChunked {
		cfg.OffloadStrategy = StrategyChunked
	}
	if v := os.Getenv(envOffloadTimeout); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.OffloadTimeout = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv(envChunkSize); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ChunkSize = n
		}
	}

	return cfg
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
