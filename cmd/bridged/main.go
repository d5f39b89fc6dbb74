// Command bridged is the privacy bridge daemon: it owns the single-writer
// reducer, serves gossip for stealth announcements and operation
// submissions, and serves the instruction RPC. It connects to Postgres and
// applies the storage schema at startup, but the engine keeps its
// commitment tree, nullifier registry, and pool state in memory; nothing
// is written to or loaded from Postgres.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/shieldbridge/core/internal/dispatch"
	"github.com/shieldbridge/core/internal/engine"
	"github.com/shieldbridge/core/internal/gossip"
	"github.com/shieldbridge/core/internal/rpc"
	"github.com/shieldbridge/core/internal/storage"
	"github.com/shieldbridge/core/pkg/types"
)

const (
	version = "0.1.0"
	banner  = `
  ____  _     _      _     _ ____       _     _
 / ___|| |__ (_) ___| | __| | __ ) _ __(_) __| | __ _  ___
 \___ \| '_ \| |/ _ \ |/ _\ |  _ \| '__| |/ _\ |/ _\ |/ _ \
  ___) | | | | |  __/ | (_| | |_) | |  | | (_| | (_| |  __/
 |____/|_| |_|_|\___|_|\__,_|____/|_|  |_|\__,_|\__, |\___|
                                                 |___/
  bridged v%s
`
)

// Config holds daemon configuration.
type Config struct {
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string

	ListenAddr string
	RPCAddr    string

	LogLevel string

	DataDir string

	MinDepositSats uint64
	MaxDepositSats uint64
}

func main() {
	cfg := parseFlags()
	fmt.Printf(banner, version)

	log, err := buildLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: building logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		cancel()
	}()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("fatal error", zap.Error(err))
		os.Exit(1)
	}
}

func buildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	return cfg.Build()
}

func parseFlags() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.DBHost, "db-host", "localhost", "PostgreSQL host")
	flag.IntVar(&cfg.DBPort, "db-port", 5432, "PostgreSQL port")
	flag.StringVar(&cfg.DBUser, "db-user", "shieldbridge", "PostgreSQL user")
	flag.StringVar(&cfg.DBPassword, "db-password", "", "PostgreSQL password")
	flag.StringVar(&cfg.DBName, "db-name", "shieldbridge", "PostgreSQL database name")

	flag.StringVar(&cfg.ListenAddr, "listen", "/ip4/0.0.0.0/tcp/9000", "gossip listen address")
	flag.StringVar(&cfg.RPCAddr, "rpc", "127.0.0.1:9001", "RPC server address")

	flag.StringVar(&cfg.LogLevel, "log-level", "info", "log level (debug, info, warn, error)")

	flag.StringVar(&cfg.DataDir, "data-dir", "./data", "data directory")

	flag.Uint64Var(&cfg.MinDepositSats, "min-deposit-sats", 1, "minimum deposit amount in satoshis")
	flag.Uint64Var(&cfg.MaxDepositSats, "max-deposit-sats", 1<<40, "maximum deposit amount in satoshis")

	flag.Parse()

	return cfg
}

func run(ctx context.Context, cfg *Config, log *zap.Logger) error {
	log.Info("initializing bridge daemon")

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	log.Info("connecting to database", zap.String("host", cfg.DBHost), zap.String("database", cfg.DBName))
	dbConfig := &storage.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Database: cfg.DBName,
		SSLMode:  "disable",
		MaxConns: 20,
	}

	store, err := storage.NewPostgresStore(ctx, dbConfig)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer store.Close()
	log.Info("database connected")

	vkRegistry := dispatch.NewVKRegistry(nil)
	state := engine.New(vkRegistry, log)

	node, err := gossip.NewNode(ctx, &gossip.Config{
		ListenAddrs: []string{cfg.ListenAddr},
		MaxPeers:    50,
		EnableMDNS:  true,
	}, log)
	if err != nil {
		return fmt.Errorf("starting gossip node: %w", err)
	}
	defer node.Close()
	node.Start()
	log.Info("gossip node started", zap.String("peer_id", node.ID().String()))

	authority := types.AddressFromBytes([]byte(node.ID().String()))
	if err := state.Initialize(authority, types.EmptyAddress, types.EmptyAddress, cfg.MinDepositSats, cfg.MaxDepositSats); err != nil {
		return fmt.Errorf("initializing engine state: %w", err)
	}
	root, _ := state.Root()
	log.Info("engine initialized", zap.String("root", fmt.Sprintf("%x", root.Bytes())))

	rpcServer, err := rpc.Listen(cfg.RPCAddr, state, log)
	if err != nil {
		return fmt.Errorf("starting rpc server: %w", err)
	}
	defer rpcServer.Close()
	go func() {
		if err := rpcServer.Serve(); err != nil {
			log.Warn("rpc server stopped", zap.Error(err))
		}
	}()
	log.Info("rpc server started", zap.String("addr", rpcServer.Addr()))

	log.Info("bridge daemon started")
	<-ctx.Done()
	log.Info("bridge daemon stopped")
	return nil
}
