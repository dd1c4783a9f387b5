package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"grain-backend/internal/cache"
	"grain-backend/internal/config"
	h "grain-backend/internal/http"
	"grain-backend/internal/handlers"
	"grain-backend/internal/health"
	"grain-backend/internal/middleware"
	"grain-backend/internal/models"
	"grain-backend/internal/scheduler"
	"grain-backend/internal/services"
	"grain-backend/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	port := flag.Int("port", 0, "Server port (overrides config)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	log := logger.Must(logger.New(cfg.Log.Development))
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	// Redis is optional; without it the export guard is per process
	var rdb *redis.Client
	if cfg.Redis.Enabled {
		if err := cache.Init(cache.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}); err != nil {
			log.Warn("redis unavailable, using in-process export guard", zap.Error(err))
		} else {
			rdb = cache.GetClient()
			defer cache.Close()
			log.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))
		}
	}

	// Services
	settlementService, err := services.NewSettlementService(models.Formula(cfg.Settlement.Formula))
	if err != nil {
		log.Fatal("invalid settlement formula", zap.Error(err))
	}
	reportService := services.NewReportService(cfg.Company.Name, settlementService)
	pdfService := services.NewPDFService()

	exportLog := logger.Named(log, "export")
	exportGuard := cache.NewExportLock(rdb, cfg.ExportLockTTL(), services.NewLocalExportGuard(), func(err error) {
		exportLog.Warn("redis export lock failed, falling back to local guard", zap.Error(err))
	})
	exportService := services.NewExportService(reportService, pdfService, exportGuard, services.ExportOptions{
		PrintFallback: cfg.Export.PrintFallback,
		Timeout:       cfg.ExportTimeout(),
	}, exportLog)

	formService := services.NewFormService(logger.Named(log, "session"))
	printerService := services.NewPrinterService(cfg.Printer.URL, cfg.PrinterTimeout())
	if !printerService.Enabled() {
		log.Info("print bridge not configured, print route disabled")
	}

	// Background jobs
	limiter := middleware.NewClientRateLimiter(cfg.Export.RatePerSecond, cfg.Export.RateBurst)
	sched := scheduler.NewScheduler(formService, cfg.Session.SweepSchedule, cfg.SessionIdle(), logger.Named(log, "scheduler"))
	sched.AddJob("@every 5m", limiter.Cleanup)
	if err := sched.Start(); err != nil {
		log.Fatal("failed to start scheduler", zap.Error(err))
	}

	// Handlers
	healthChecker := health.NewHealthChecker(rdb, formService.Count)
	router := h.NewRouter(h.Handlers{
		Page:    handlers.NewPageHandler(cfg.Company.Name, settlementService.Formula()),
		Report:  handlers.NewReportHandler(settlementService, reportService, exportService),
		Form:    handlers.NewFormHandler(formService, settlementService, reportService, exportService, printerService),
		Live:    handlers.NewLiveHandler(formService, settlementService, logger.Named(log, "live")),
		Health:  handlers.NewHealthHandler(healthChecker),
		Limiter: limiter,
	})

	corsMiddleware := middleware.NewCORS(cfg)
	handler := middleware.PanicRecovery(log)(middleware.APILogging(logger.Named(log, "http"))(corsMiddleware(router)))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("formula", string(settlementService.Formula())),
			zap.String("company", cfg.Company.Name))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	healthChecker.SetDraining()
	sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
