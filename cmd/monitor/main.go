package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"roimonitor/internal/client/coingecko"
	"roimonitor/internal/config"
	cronrunner "roimonitor/internal/cron"
	"roimonitor/internal/db"
	"roimonitor/internal/handler"
	"roimonitor/internal/logger"
	gormrepository "roimonitor/internal/repository/gorm"
	"roimonitor/internal/service"
	"roimonitor/internal/stream"

	_ "roimonitor/docs"
)

func main() {
	cfgPath := os.Getenv("RM_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("RM_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)
	settingsSvc := &service.SystemSettingsService{Repo: store}
	if err := settingsSvc.EnsureDefaultSwitches(context.Background()); err != nil {
		logger.Warn("init default system switches failed", zap.Error(err))
	}

	providerHTTP := &http.Client{Timeout: cfg.Provider.Timeout}
	provider := coingecko.NewClient(providerHTTP, cfg.Provider.BaseURL)

	hub := stream.NewHub(logger)
	ingestSvc := &service.PriceIngestService{
		Repo:       store,
		Provider:   provider,
		Logger:     logger,
		Settings:   settingsSvc,
		CashSymbol: cfg.RoiJob.CashSymbol,
	}
	jobSvc := &service.RoiJobService{
		Repo:   store,
		Ingest: ingestSvc,
		Config: cfg.RoiJob,
		Logger: logger,
		Events: hub,
	}
	allocSvc := &service.AllocationService{
		Repo:   store,
		Job:    jobSvc,
		Logger: logger,
		Events: hub,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(engine)
	jobHandler := &handler.RoiJobHandler{Job: jobSvc, CronSecret: cfg.Auth.CronSecret}
	jobHandler.Register(engine)
	perfHandler := &handler.PerformanceHandler{Repo: store}
	perfHandler.Register(engine)
	allocHandler := &handler.AllocationHandler{Service: allocSvc, AdminToken: cfg.Auth.AdminToken}
	allocHandler.Register(engine)
	streamHandler := &handler.StreamHandler{Hub: hub, Logger: logger, Settings: settingsSvc}
	streamHandler.Register(engine)
	settingsHandler := &handler.SystemSettingsHandler{Settings: settingsSvc, AdminToken: cfg.Auth.AdminToken}
	settingsHandler.Register(engine)

	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled {
		_, err := cronRunner.Add(cfg.Cron.RoiRecompute, func(ctx context.Context) {
			if !settingsSvc.IsEnabled(ctx, service.FeatureRoiJob, true) {
				return
			}
			result, err := jobSvc.Run(ctx, service.RunOptions{Trigger: "cron"})
			if err != nil {
				logger.Warn("cron roi job failed", zap.Error(err))
				return
			}
			if result.Skipped != "" {
				logger.Info("cron roi job skipped", zap.String("reason", result.Skipped))
				return
			}
			logger.Info("cron roi job ok",
				zap.String("run_id", result.RunID),
				zap.Int("portfolios", len(result.Portfolios)),
				zap.Int("succeeded", result.Succeeded),
				zap.Int("failed", result.Failed),
			)
		})
		if err != nil {
			logger.Warn("cron register roi job failed", zap.Error(err))
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	errCh := make(chan error, 1)

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization,X-Cron-Secret")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
