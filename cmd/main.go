package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloud-wave-best-zizon/pharmacy-pos/internal/auth"
	"github.com/cloud-wave-best-zizon/pharmacy-pos/internal/client"
	"github.com/cloud-wave-best-zizon/pharmacy-pos/internal/events"
	"github.com/cloud-wave-best-zizon/pharmacy-pos/internal/handler"
	"github.com/cloud-wave-best-zizon/pharmacy-pos/internal/repository"
	"github.com/cloud-wave-best-zizon/pharmacy-pos/internal/service"
	"github.com/cloud-wave-best-zizon/pharmacy-pos/pkg/config"
	"github.com/cloud-wave-best-zizon/pharmacy-pos/pkg/middleware"
	pkgtls "github.com/cloud-wave-best-zizon/pharmacy-pos/pkg/tls"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// Config 로드
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatal("Failed to create logger:", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Outbound mTLS via SPIRE
	tlsSource, err := pkgtls.NewSource(ctx, pkgtls.TLSConfig{
		Enabled:    cfg.TLSEnabled,
		SocketPath: cfg.SpireSocketPath,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to load TLS config", zap.Error(err))
	}
	defer tlsSource.Close()
	go tlsSource.WatchCertificates(ctx, 30*time.Second)

	httpClient := pkgtls.HTTPClient(tlsSource, cfg.HTTPTimeout)

	// the identity provider is outside the SPIFFE trust domain
	credentials, err := auth.NewSource(auth.Config{
		TokenURL:     cfg.AuthTokenURL,
		ClientID:     cfg.AuthClientID,
		ClientSecret: cfg.AuthClientSecret,
		Audience:     cfg.AuthAudience,
		StaticToken:  cfg.AuthStaticToken,
	}, pkgtls.PublicHTTPClient(cfg.HTTPTimeout), logger)
	if err != nil {
		logger.Fatal("Failed to configure credentials", zap.Error(err))
	}

	// Collaborators
	patients := client.NewPatientClient(cfg.PatientsAPIURL, httpClient, credentials, logger)
	inventory := client.NewInventoryClient(cfg.InventoryAPIURL, httpClient, credentials, logger)

	// DynamoDB 클라이언트 초기화
	dynamoClient, err := repository.NewDynamoDBClient(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to create DynamoDB client", zap.Error(err))
	}
	saleRepo := repository.NewSaleRepository(dynamoClient, cfg.SalesTableName)

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis unreachable, ledger lookups will fail until it recovers", zap.Error(err))
	}
	ledger := repository.NewCommitLedger(rdb, cfg.LedgerTTL)

	producer := events.NewKafkaProducer(cfg.KafkaBrokers, cfg.SalesTopic, logger)
	defer producer.Close()

	// Service wiring
	cache := service.NewSnapshotCache(inventory, logger)
	committer := service.NewCommitter(patients, patients, credentials, ledger, logger)
	posService := service.NewPOSService(cache, patients, patients, committer, service.NewReconciler(cache, logger), logger)
	posService.SetSaleJournal(saleRepo)
	posService.SetSalePublisher(producer)
	posService.SetAlertWindowDays(cfg.AlertWindowDays)

	if _, err := posService.RefreshSnapshot(ctx); err != nil {
		logger.Warn("Initial snapshot unavailable, serving empty catalog until next refresh", zap.Error(err))
	}

	consumer := events.NewInventoryConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, cfg.InventoryTopic,
		events.RefreshFunc(func(ctx context.Context) error {
			_, err := posService.RefreshSnapshot(ctx)
			return err
		}), logger)
	consumer.Start()

	posHandler := handler.NewPOSHandler(posService, logger)

	// Gin Router 설정
	if cfg.Debug() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSAllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader, "X-User-ID"},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Routes
	v1 := router.Group("/api/v1")
	{
		posHandler.Register(v1)
		v1.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":         "healthy",
				"snapshot_stale": posService.Snapshot().Stale,
			})
		})
	}

	// Server 시작
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	<-ctx.Done()
	stop()

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := consumer.Stop(); err != nil {
		logger.Error("Failed to stop Kafka consumer", zap.Error(err))
	}
	logger.Info("Server exited")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Debug() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
