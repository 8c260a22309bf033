package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/arcadia-retail/arcadia/internal/app"
	"github.com/arcadia-retail/arcadia/internal/catalog"
	"github.com/arcadia-retail/arcadia/internal/inventory"
	"github.com/arcadia-retail/arcadia/internal/numbering"
	"github.com/arcadia-retail/arcadia/internal/party"
	"github.com/arcadia-retail/arcadia/internal/platform/cache"
	"github.com/arcadia-retail/arcadia/internal/platform/db"
	"github.com/arcadia-retail/arcadia/internal/shared"
	"github.com/arcadia-retail/arcadia/internal/trading"
	"github.com/arcadia-retail/arcadia/jobs"
	"github.com/arcadia-retail/arcadia/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, tax cache disabled", slog.Any("error", err))
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)

	catalogRepo := catalog.NewRepository(pool)
	productIDs := numbering.NewGenerator(catalogRepo, cfg.NumberingMaxAttempts)
	catalogService := catalog.NewService(catalogRepo, productIDs, auditLogger)
	catalogHandler := catalog.NewHandler(logger, catalogService)

	partyRepo := party.NewRepository(pool)
	partyIDs := numbering.NewGenerator(partyRepo, cfg.NumberingMaxAttempts)
	partyService := party.NewService(partyRepo, partyIDs, auditLogger)
	partyHandler := party.NewHandler(logger, partyService)

	var taxSettings catalog.TaxSettingStore = catalogRepo
	if redisClient != nil {
		taxSettings = catalog.NewTaxCache(catalogRepo, redisClient, cfg.TaxCacheTTL, logger)
	}
	taxResolver := catalog.NewTaxResolver(taxSettings)

	tradingRepo := trading.NewPGRepository(pool)
	recorder := trading.NewRecorder(
		tradingRepo,
		partyRepo,
		catalogRepo,
		taxResolver,
		inventory.NewAdjuster(catalogRepo),
		auditLogger,
		logger,
		trading.RecorderConfig{MaxNumberAttempts: cfg.NumberingMaxAttempts},
	)
	tradingHandler := trading.NewHandler(logger, recorder)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	reportClient := report.NewClient(cfg.GotenbergURL)
	reportHandler := report.NewHandler(reportClient, recorder, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		CatalogHandler: catalogHandler,
		PartyHandler:   partyHandler,
		TradingHandler: tradingHandler,
		JobsHandler:    jobHandler,
		ReportHandler:  reportHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exit", slog.Any("error", err))
		os.Exit(1)
	}
}
