package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/platewise/backoffice/internal/ai"
	"github.com/platewise/backoffice/internal/api/handlers"
	"github.com/platewise/backoffice/internal/api/middleware"
	"github.com/platewise/backoffice/internal/cache"
	"github.com/platewise/backoffice/internal/config"
	"github.com/platewise/backoffice/internal/repository/postgres"
	"github.com/platewise/backoffice/internal/service"
	"github.com/platewise/backoffice/internal/storage"
	"github.com/platewise/backoffice/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	logger.SetLevel(cfg.Server.Mode)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database
	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Object storage for invoice and receipt files
	files, err := storage.NewMinioClient(cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to connect to object storage: %v", err)
	}
	if err := files.EnsureBucket(context.Background()); err != nil {
		log.Fatalf("Failed to prepare storage bucket: %v", err)
	}

	// Recipe cost cache falls back to a no-op when disabled
	costCache, err := cache.NewRecipeCostCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Cache unavailable, running without recipe cost cache")
		costCache = cache.NewNoopRecipeCostCache()
	}

	extractor, err := ai.NewClient(cfg.AI)
	if err != nil {
		log.Fatalf("Failed to initialize AI client: %v", err)
	}

	// Initialize repositories
	catalogRepo := postgres.NewCatalogRepository(db)
	invoiceRepo := postgres.NewInvoiceRepository(db)
	reconciliationRepo := postgres.NewReconciliationRepository(db)
	insightRepo := postgres.NewInsightRepository(db)

	// Initialize services
	catalogService := service.NewCatalogService(catalogRepo, costCache)
	invoiceService := service.NewInvoiceService(invoiceRepo, catalogRepo, extractor, files)
	reconciliationService := service.NewReconciliationService(reconciliationRepo, catalogService, extractor, files)
	insightService := service.NewInsightService(catalogRepo, insightRepo, extractor)

	// Initialize HTTP server
	router := setupRouter(cfg, catalogService, invoiceService, reconciliationService, insightService)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}

func setupRouter(
	cfg *config.Config,
	catalogService *service.CatalogService,
	invoiceService *service.InvoiceService,
	reconciliationService *service.ReconciliationService,
	insightService *service.InsightService,
) *gin.Engine {
	router := gin.New()

	// Middleware
	corsConfig := cors.DefaultConfig()
	if len(cfg.Server.AllowedOrigins) == 1 && cfg.Server.AllowedOrigins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.Server.AllowedOrigins
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	router.Use(
		middleware.Logger(),
		middleware.Recovery(),
		cors.New(corsConfig),
	)

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1
	v1 := router.Group("/api/v1")
	{
		catalogHandler := handlers.NewCatalogHandler(catalogService)
		v1.POST("/suppliers", catalogHandler.CreateSupplier)
		v1.GET("/suppliers", catalogHandler.ListSuppliers)
		v1.GET("/suppliers/:id", catalogHandler.GetSupplier)
		v1.POST("/ingredients", catalogHandler.CreateIngredient)
		v1.GET("/ingredients", catalogHandler.ListIngredients)
		v1.GET("/ingredients/:id", catalogHandler.GetIngredient)
		v1.PUT("/ingredients/:id", catalogHandler.UpdateIngredient)
		v1.GET("/ingredients/:id/price-history", catalogHandler.PriceHistory)
		v1.POST("/recipes", catalogHandler.CreateRecipe)
		v1.GET("/recipes", catalogHandler.ListRecipes)
		v1.GET("/recipes/:id", catalogHandler.GetRecipe)
		v1.PUT("/recipes/:id", catalogHandler.UpdateRecipe)

		invoiceHandler := handlers.NewInvoiceHandler(invoiceService)
		v1.POST("/invoices", invoiceHandler.Upload)
		v1.GET("/invoices", invoiceHandler.List)
		v1.GET("/invoices/:id", invoiceHandler.Get)
		v1.POST("/invoices/:id/process", invoiceHandler.Process)
		v1.PUT("/invoices/:id/items", invoiceHandler.UpdateItems)

		reconciliationHandler := handlers.NewReconciliationHandler(reconciliationService)
		v1.GET("/reconciliations", reconciliationHandler.List)
		v1.GET("/reconciliations/day", reconciliationHandler.GetByDay)
		v1.POST("/reconciliations/receipt", reconciliationHandler.UploadReceipt)
		v1.PUT("/reconciliations/:id/breakdown", reconciliationHandler.UpdateBreakdown)
		v1.POST("/reconciliations/:id/confirm", reconciliationHandler.Confirm)
		v1.POST("/reconciliations/:id/flag", reconciliationHandler.Flag)

		insightHandler := handlers.NewInsightHandler(insightService)
		v1.POST("/insights/generate", insightHandler.GenerateAll)
		v1.GET("/insights", insightHandler.List)
		v1.GET("/insights/:id/kpi", insightHandler.GetKpi)
		v1.POST("/kpis", insightHandler.CreateKpi)
		v1.GET("/kpis", insightHandler.ListKpis)
	}

	return router
}
