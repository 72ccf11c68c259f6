package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tourneyhost/internal/archive"
	"tourneyhost/internal/cache"
	"tourneyhost/internal/config"
	"tourneyhost/internal/db"
	"tourneyhost/internal/events"
	"tourneyhost/internal/gateway"
	"tourneyhost/internal/handlers"
	"tourneyhost/internal/lifecycle"
	"tourneyhost/internal/logging"
	"tourneyhost/internal/metrics"
	"tourneyhost/internal/services"
	"tourneyhost/internal/store"
	"tourneyhost/internal/websocket"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

func main() {
	cfg := config.Load()
	logging.Setup(cfg.LogLevel, cfg.IsProduction())

	if err := db.MigrateUp(cfg.DatabaseURL); err != nil {
		log.WithError(err).Fatal("failed to apply migrations")
	}
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect database")
	}
	defer database.Close()

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelStartup()

	var marker cache.OrderMarker = cache.NopOrderMarker{}
	if cfg.RedisURL != "" {
		rdb, err := cache.Connect(startupCtx, cfg.RedisURL)
		if err != nil {
			log.WithError(err).Warn("redis unavailable, processed-order fast path disabled")
		} else {
			defer rdb.Close()
			marker = cache.NewRedisOrderMarker(rdb)
		}
	}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.NATSURL != "" {
		nc, js, err := events.Connect(cfg.NATSURL)
		if err != nil {
			log.WithError(err).Warn("nats unavailable, events disabled")
		} else {
			defer func() {
				if err := nc.Drain(); err != nil {
					log.WithError(err).Warn("nats drain failed")
				}
			}()
			if err := events.EnsureStream(startupCtx, js); err != nil {
				log.WithError(err).Warn("failed to ensure event stream")
			}
			publisher = events.NewJetStreamPublisher(js)
		}
	}

	var archiver archive.Archiver = archive.NopArchiver{}
	if cfg.ArchiveBucket != "" {
		s3Archiver, err := archive.NewS3(startupCtx, archive.Options{
			Bucket:    cfg.ArchiveBucket,
			Region:    cfg.ArchiveRegion,
			Endpoint:  cfg.ArchiveEndpoint,
			KeyID:     cfg.ArchiveKeyID,
			SecretKey: cfg.ArchiveSecret,
		})
		if err != nil {
			log.WithError(err).Warn("webhook archive disabled")
		} else {
			archiver = s3Archiver
		}
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	hub := websocket.NewHub()
	txRunner := db.NewTxRunner(database)

	users := store.NewUserStore(database)
	admin := store.NewAdminStore(database)
	audit := store.NewAuditStore(database)
	wallets := store.NewWalletStore(database)
	transactions := store.NewTransactionStore(database)
	withdrawals := store.NewWithdrawalStore(database)
	orders := store.NewOrderStore(database)
	tournaments := store.NewTournamentStore(database)
	ledgerStore := store.NewLedgerStore(database)

	ledger := services.NewLedger(txRunner, users, wallets, transactions, withdrawals, audit).
		WithNotifiers(hub, publisher, m)
	cashfree := gateway.NewCashfreeClient(gateway.Config{
		BaseURL:    cfg.Cashfree.APIURL,
		AppID:      cfg.Cashfree.AppID,
		SecretKey:  cfg.Cashfree.SecretKey,
		APIVersion: cfg.Cashfree.APIVersion,
		NotifyURL:  cfg.Cashfree.NotifyURL,
		ReturnURL:  cfg.Cashfree.ReturnURL,
	})
	if !cashfree.Configured() {
		log.Warn("cashfree api credentials not set, orders are created without a checkout session")
	}
	payments := services.NewPaymentService(txRunner, orders, ledger, users, cashfree).
		WithSideEffects(marker, archiver, publisher, m)
	tournamentService := services.NewTournamentService(txRunner, tournaments, ledger, audit, publisher, m)
	reconciler := services.NewReconciler(ledgerStore, m)

	sweeper, err := lifecycle.NewSweeper(tournaments, lifecycle.Options{
		Interval:      cfg.SweepInterval,
		ReconcileCron: cfg.ReconcileCron,
		Reconciler:    reconciler,
		Audit:         audit,
		AuditDB:       database,
		Publisher:     publisher,
		Metrics:       m,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to create tournament sweeper")
	}
	if err := sweeper.Start(); err != nil {
		log.WithError(err).Fatal("failed to start tournament sweeper")
	}

	handler := handlers.New(txRunner, cfg, users, admin, audit, ledger, payments, tournamentService, reconciler, hub, m)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithFields(log.Fields{
			"addr": server.Addr,
			"env":  cfg.AppEnv,
		}).Info("tourneyhost API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("http shutdown error")
	}
	if err := sweeper.Shutdown(); err != nil {
		log.WithError(err).Error("scheduler shutdown error")
	}
}
