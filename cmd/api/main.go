package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/marondal/donation-engine/api/routes"
	"github.com/marondal/donation-engine/internal/farms"
	"github.com/marondal/donation-engine/internal/ledger"
	"github.com/marondal/donation-engine/internal/photos"
	"github.com/marondal/donation-engine/internal/receipts"
	"github.com/marondal/donation-engine/internal/settlement"
	"github.com/marondal/donation-engine/internal/trustscore"
	"github.com/marondal/donation-engine/internal/verification"
	"github.com/marondal/donation-engine/pkg/chain"
	"github.com/marondal/donation-engine/pkg/config"
	"github.com/marondal/donation-engine/pkg/db"
	"github.com/marondal/donation-engine/pkg/env"
	"github.com/marondal/donation-engine/pkg/exif"
	"github.com/marondal/donation-engine/pkg/logger"
	"github.com/marondal/donation-engine/pkg/metrics"
	"github.com/marondal/donation-engine/pkg/migrate"
	"github.com/marondal/donation-engine/pkg/ocr"
	"github.com/marondal/donation-engine/pkg/oracle"
	"github.com/marondal/donation-engine/pkg/outbox"
	"github.com/marondal/donation-engine/pkg/payout"
	"github.com/marondal/donation-engine/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	ocrClient, err := ocr.NewClient(cfg.OCR)
	if err != nil {
		logg.Error(context.Background(), "failed to create ocr client", err)
		os.Exit(1)
	}
	oracleClient, err := oracle.NewClient(cfg.Oracle)
	if err != nil {
		logg.Error(context.Background(), "failed to create oracle client", err)
		os.Exit(1)
	}
	exifClient, err := exif.NewClient(cfg.Exif)
	if err != nil {
		logg.Error(context.Background(), "failed to create exif client", err)
		os.Exit(1)
	}
	payoutClient, err := payout.NewClient(cfg.Payout)
	if err != nil {
		logg.Error(context.Background(), "failed to create payout client", err)
		os.Exit(1)
	}
	chainClient, err := chain.NewClient(cfg.Chain)
	if err != nil {
		logg.Error(context.Background(), "failed to create chain client", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	settlementMetrics := metrics.NewSettlementMetrics(registry)

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	farmsRepo := farms.NewRepository(dbClient.DB())
	ledgerRepo := ledger.NewRepository(dbClient.DB())
	receiptsRepo := receipts.NewRepository(dbClient.DB())
	trustRepo := trustscore.NewRepository(dbClient.DB())
	photosRepo := photos.NewRepository(dbClient.DB())

	rate := cfg.Token.Rate()

	farmsService, err := farms.NewService(farmsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create farm service", err)
		os.Exit(1)
	}

	ledgerService, err := ledger.NewService(ledgerRepo, farmsRepo, dbClient, outboxService, rate)
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	receiptsService, err := receipts.NewService(receiptsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create receipt service", err)
		os.Exit(1)
	}

	trustService, err := trustscore.NewService(trustRepo, farmsRepo, dbClient, outboxService)
	if err != nil {
		logg.Error(context.Background(), "failed to create trust score service", err)
		os.Exit(1)
	}

	verificationService, err := verification.NewService(verification.Deps{
		Receipts:          receiptsRepo,
		Farms:             farmsRepo,
		Extractor:         ocrClient,
		Oracle:            oracleClient,
		Inspector:         exifClient,
		Trust:             trustService,
		Tx:                dbClient,
		Outbox:            outboxService,
		MaxDistanceMeters: cfg.Provenance.MaxDistanceMeters,
		MaxPhotoAge:       cfg.Provenance.MaxAge,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create verification service", err)
		os.Exit(1)
	}

	settlementService, err := settlement.NewService(settlement.Deps{
		Receipts: receiptsRepo,
		Farms:    farmsRepo,
		Ledger:   ledgerService,
		Payout:   payoutClient,
		Chain:    chainClient,
		Locks:    redisClient,
		Tx:       dbClient,
		Outbox:   outboxService,
		Metrics:  settlementMetrics,
		Logger:   logg,
		Rate:     rate,
		LockTTL:  cfg.Settlement.LockTTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement service", err)
		os.Exit(1)
	}

	photosService, err := photos.NewService(photos.Deps{
		Repo:              photosRepo,
		Farms:             farmsRepo,
		Inspector:         exifClient,
		Trust:             trustService,
		Tx:                dbClient,
		Outbox:            outboxService,
		MaxDistanceMeters: cfg.Provenance.MaxDistanceMeters,
		MaxPhotoAge:       cfg.Provenance.MaxAge,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create photo service", err)
		os.Exit(1)
	}

	addr := ":" + env.Get("PORT", cfg.App.Port)
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, registry, routes.Services{
			Farms:        farmsService,
			Ledger:       ledgerService,
			Receipts:     receiptsService,
			Verification: verificationService,
			Settlement:   settlementService,
			Photos:       photosService,
			TrustScore:   trustService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
