package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/al-maktaba/catalog-api/api/swagger"
	"github.com/al-maktaba/catalog-api/internal/handler"
	"github.com/al-maktaba/catalog-api/internal/middleware"
	"github.com/al-maktaba/catalog-api/internal/models"
	"github.com/al-maktaba/catalog-api/internal/repository"
	"github.com/al-maktaba/catalog-api/internal/service"
	"github.com/al-maktaba/catalog-api/pkg/cache"
	"github.com/al-maktaba/catalog-api/pkg/config"
	"github.com/al-maktaba/catalog-api/pkg/database"
	"github.com/al-maktaba/catalog-api/pkg/export"
	"github.com/al-maktaba/catalog-api/pkg/jobs"
	"github.com/al-maktaba/catalog-api/pkg/logger"
	corsmiddleware "github.com/al-maktaba/catalog-api/pkg/middleware/cors"
	reqidmiddleware "github.com/al-maktaba/catalog-api/pkg/middleware/requestid"
	"github.com/al-maktaba/catalog-api/pkg/storage"
)

// @title Al-Maktaba Catalog API
// @version 1.0.0
// @description Book catalog service with filtered listings and grouped PDF/CSV exports
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if cfg.Catalog.CacheEnabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		} else {
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Catalog.CacheTTL, logr, cfg.Catalog.CacheEnabled && cacheRepo != nil)

	bookRepo := repository.NewBookRepository(db)
	userRepo := repository.NewUserRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	exportJobRepo := repository.NewExportJobRepository(db)

	authSvc := service.NewAuthService(userRepo, profileRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "al-maktaba-catalog",
	})
	catalogSvc := service.NewCatalogService(bookRepo, cacheSvc, metricsSvc, nil, logr, cfg.Catalog.Conditions)

	store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare export storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportSvc := service.NewExportService(catalogSvc, store, signer, metricsSvc, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
	}, logr, export.NewCatalogCSV(), export.NewCatalogPDF(service.DefaultExportTitle))

	worker := service.NewExportWorker(exportJobRepo, exportSvc, cfg.Exports.WorkerRetries, logr)
	queue := jobs.NewQueue("exports", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Exports.WorkerConcurrency,
		MaxRetries: cfg.Exports.WorkerRetries,
		Logger:     logr,
	})
	queue.Start(ctx)
	defer queue.Stop()

	exportJobSvc := service.NewExportJobService(exportJobRepo, queue, exportSvc, logr, service.ExportJobServiceConfig{
		ResultTTL:       cfg.Exports.SignedURLTTL,
		CleanupInterval: cfg.Exports.CleanupInterval,
		MaxRetries:      cfg.Exports.WorkerRetries,
	})
	exportJobSvc.RecoverPendingJobs(ctx)
	exportJobSvc.StartCleanup(ctx)

	authHandler := handler.NewAuthHandler(authSvc)
	bookHandler := handler.NewBookHandler(catalogSvc)
	exportHandler := handler.NewExportHandler(exportSvc, exportJobSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

	books := api.Group("/books", middleware.JWT(authSvc))
	books.GET("", bookHandler.List)
	books.GET("/export", exportHandler.Download)
	books.POST("", middleware.RequireRoles(models.RoleAdmin), bookHandler.Create)
	books.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), bookHandler.Delete)

	exports := api.Group("/exports", middleware.JWT(authSvc))
	exports.POST("", exportHandler.CreateJob)
	exports.GET("/:id", exportHandler.JobStatus)

	// Signed token downloads carry their own authorization.
	api.GET("/export/:token", exportHandler.DownloadByToken)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)

	srv := &http.Server{Addr: addr, Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
	logr.Sugar().Infow("server stopped")
}
