package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/moneycal/internal/cache"
	"github.com/dvloznov/moneycal/internal/config"
	"github.com/dvloznov/moneycal/internal/logger"
	"github.com/dvloznov/moneycal/internal/notify"
	"github.com/dvloznov/moneycal/internal/pending"
	"github.com/dvloznov/moneycal/internal/remote"
	"github.com/dvloznov/moneycal/internal/store"
	"github.com/dvloznov/moneycal/internal/sync"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Invalid configuration")
	}

	log := logger.NewWithLevel(cfg.LogLevel)

	year := cfg.Year
	if year == 0 {
		year = time.Now().Year()
	}

	queue, err := pending.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("Failed to open pending-write queue")
	}
	defer queue.Close()

	refCache, err := cache.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("Failed to open reference cache")
	}
	defer refCache.Close()

	session := sync.New(sync.Options{
		Log:      log,
		Store:    store.New(log, year),
		Queue:    queue,
		Cache:    refCache,
		Service:  remote.NewClient(cfg.ServerURL, cfg.AuthToken, log),
		Notifier: notify.NewLogNotifier(log),
		User:     cfg.User,
	})
	defer session.Close()

	ctx := logger.WithContext(context.Background(), log)

	log.Info().Int("year", year).Str("server", cfg.ServerURL).Msg("Starting sync session")

	// Cached reference data makes the calendar usable before the first fetch;
	// pending writes must be replayed before server data for them is trusted.
	if err := session.LoadCachedReference(ctx); err != nil {
		log.Warn().Err(err).Msg("Reference cache unavailable, continuing without it")
	}
	if err := session.Replay(ctx); err != nil {
		log.Warn().Err(err).Msg("Pending-write replay failed, records stay queued")
	}

	viewedSlot := int(time.Now().Month())
	if err := session.Refresh(ctx, sync.ReasonUserRefresh, viewedSlot); err != nil {
		log.Warn().Err(err).Msg("Initial refresh failed")
	}
	session.StartLongPoll()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	log.Info().Str("signal", sig.String()).Msg("Shutting down")
}
