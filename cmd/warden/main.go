package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/intrntsrfr/warden"
	"github.com/intrntsrfr/warden/config"
	"github.com/intrntsrfr/warden/database"
	"github.com/intrntsrfr/warden/kvstore"
	"go.uber.org/zap"
)

func main() {
	path := flag.String("config", "./config.json", "path to a json or yaml config file")
	flag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		panic(err)
	}
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	logger, err := warden.NewLogger("warden", cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	db, err := openDB(cfg, logger.Zap())
	if err != nil {
		logger.Error("failed to open database", zap.Error(err))
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	err = db.Migrate(ctx)
	cancel()
	if err != nil {
		logger.Error("failed to migrate database", zap.Error(err))
		os.Exit(1)
	}

	var (
		cache      *kvstore.Cache
		gcInterval time.Duration
	)
	if !cfg.Cache.Disabled {
		ttl, _ := cfg.CacheTTL()
		gcInterval, _ = cfg.CacheGCInterval()
		cache, err = kvstore.NewCache(&kvstore.Config{
			Dir:          cfg.Cache.Dir,
			TTL:          ttl,
			Log:          logger.Zap().Named("cache"),
			BadgerLogger: logger.Named("badger").(*warden.ZapLogger),
		})
		if err != nil {
			logger.Error("failed to open cache", zap.Error(err))
			os.Exit(1)
		}
		defer cache.Close()
	}

	store := warden.NewStore(db, cache, logger)

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()

	bot := warden.NewBot(cfg.Bot(), store, cache, gcInterval, logger)
	defer bot.Close()

	if err := bot.Run(runCtx); err != nil {
		logger.Error("failed to run bot", zap.Error(err))
		return
	}

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM)
	<-sc
}

func openDB(cfg *config.Config, log *zap.Logger) (database.DB, error) {
	if cfg.ConnectionString != "" {
		return database.NewPSQLDatabase(&database.Config{
			Log:     log.Named("database"),
			ConnStr: cfg.ConnectionString,
		})
	}
	return database.NewMemoryDatabase(cfg.DataFile, log.Named("database"))
}
