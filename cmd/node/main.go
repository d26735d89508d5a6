package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/uhyunpark/hyperdex/params"
	"github.com/uhyunpark/hyperdex/pkg/api"
	"github.com/uhyunpark/hyperdex/pkg/app/core/transaction"
	"github.com/uhyunpark/hyperdex/pkg/app/dex"
	"github.com/uhyunpark/hyperdex/pkg/crypto"
	"github.com/uhyunpark/hyperdex/pkg/events"
	"github.com/uhyunpark/hyperdex/pkg/storage"
	"github.com/uhyunpark/hyperdex/pkg/util"
)

func main() {
	// .env in the working directory, then the environment
	cfg := params.LoadFromEnv("")

	level, err := util.ParseLevel(cfg.Node.LogLevel)
	if err != nil {
		log.Fatalf("log level: %v", err)
	}
	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile, level)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Node.LogFile, "version", dex.Version)

	store, err := storage.Open(cfg.Node.DataDir)
	if err != nil {
		sugar.Fatalw("store_open_failed", "dir", cfg.Node.DataDir, "err", err)
	}
	defer store.Close()

	journal, err := storage.NewFileJournal(cfg.Node.JournalFile)
	if err != nil {
		sugar.Fatalw("journal_open_failed", "file", cfg.Node.JournalFile, "err", err)
	}
	defer journal.Close()

	opts := []dex.Option{dex.WithLogger(sugar), dex.WithJournal(journal)}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.DealTopic)
		defer publisher.Close()
		opts = append(opts, dex.WithDealSink(publisher))
		sugar.Infow("kafka_enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.DealTopic)
	}
	svc := dex.New(store, opts...)
	defer svc.Close()

	// The environment seeds the config once; afterwards the stored copy wins.
	if _, ok, err := svc.Config(); err != nil {
		sugar.Fatalw("config_load_failed", "err", err)
	} else if !ok {
		if err := svc.Init(dex.NewAuth(cfg.Dex.Admin), cfg.Dex); err != nil {
			sugar.Fatalw("dex_init_failed", "err", err)
		}
	}

	verifier := transaction.NewVerifier(crypto.DomainFromParams(cfg.Domain))
	server := api.NewServer(svc, verifier, sugar, cfg.Node.AllowedOrigins)
	svc.AddDealSink(server.Hub())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := server.Start(cfg.Node.APIAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Errorw("api_failed", "err", err)
			stop()
		}
	}()

	if cfg.Node.MatchInterval > 0 {
		go svc.RunMatcher(ctx, cfg.Node.Matcher, cfg.Node.MatchInterval, cfg.Node.MatchMaxCount)
	}
	if cfg.Node.CleanInterval > 0 {
		go svc.RunCleaner(ctx, cfg.Node.CleanInterval, cfg.Node.CleanMaxCount)
	}

	sugar.Infow("node_started",
		"api_addr", cfg.Node.APIAddr,
		"data_dir", cfg.Node.DataDir,
		"match_interval", cfg.Node.MatchInterval,
		"clean_interval", cfg.Node.CleanInterval,
	)

	<-ctx.Done()
	sugar.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		sugar.Warnw("api_shutdown_failed", "err", err)
	}
}
