package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"lendpool/config"
	"lendpool/observability"
	"lendpool/observability/logging"
	"lendpool/rpc"
	"lendpool/storage"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "lendpool.toml", "path to lendpool config")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		logging.Setup(logging.Options{Service: "lendpoold"}).Error("load config", "err", err)
		os.Exit(1)
	}

	env := strings.TrimSpace(os.Getenv("LENDPOOL_ENV"))
	if env == "" {
		env = cfg.Environment
	}
	log := logging.Setup(logging.Options{
		Service:     "lendpoold",
		Environment: env,
		File:        cfg.LogFile,
		MaxSizeMB:   cfg.LogMaxSizeMB,
	})

	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "err", err)
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		log.Error("open store", "err", err, "data_dir", cfg.DataDir)
		os.Exit(1)
	}
	store := storage.NewStore(db)
	defer store.Close()

	if state, err := store.PoolState(); err == nil {
		observability.Engine().SetPoolSnapshot(state.Balance, state.LentOut, state.TotalShares)
	} else if !errors.Is(err, storage.ErrNotFound) {
		log.Error("read pool snapshot", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := rpc.NewServer(cfg, store, log)
	log.Info("lendpoold listening", "address", cfg.RPCAddress)
	if err := server.Serve(ctx, cfg.RPCAddress); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("serve", "err", err)
		os.Exit(1)
	}
	log.Info("lendpoold stopped")
}
