package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/alfanzaky/txqueue/config"
	ethadapter "github.com/alfanzaky/txqueue/internal/adapter/ethereum"
	adapterfactory "github.com/alfanzaky/txqueue/internal/adapter/factory"
	"github.com/alfanzaky/txqueue/internal/domain"
	apihandler "github.com/alfanzaky/txqueue/internal/handler/api"
	"github.com/alfanzaky/txqueue/internal/repository/memory"
	"github.com/alfanzaky/txqueue/internal/repository/postgres"
	redisrepo "github.com/alfanzaky/txqueue/internal/repository/redis"
	"github.com/alfanzaky/txqueue/internal/usecase"
	"github.com/alfanzaky/txqueue/pkg/auth"
	"github.com/alfanzaky/txqueue/pkg/logger"
	"github.com/alfanzaky/txqueue/pkg/observability"
)

// storeWithPing is a queue store the readiness probe can check
type storeWithPing interface {
	domain.QueueStore
	observability.Pinger
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	// Initialize logger
	logger.Init(cfg.App.Environment, cfg.App.Debug || cfg.Queue.Debug)
	defer logger.Close()

	if cfg.App.IsDevelopment() {
		cfg.Print()
	}

	// Initialize durable store
	store, closeStore := openStore(cfg)
	defer closeStore()

	// Initialize ledger readers
	readers := adapterfactory.NewLedgerReaderFactory()
	var adapters []*ethadapter.Adapter
	for chainID, url := range cfg.Chains.RPCURLs {
		adapter, err := ethadapter.Dial(context.Background(), chainID, url, cfg.Chains.DialTimeout)
		if err != nil {
			logger.Fatal("Failed to connect to chain RPC",
				logger.Uint64("chain_id", chainID),
				logger.ErrorField(err),
			)
		}
		readers.RegisterReader(chainID, adapter)
		adapters = append(adapters, adapter)
	}
	defer func() {
		for _, adapter := range adapters {
			adapter.Close()
		}
	}()
	if len(adapters) == 0 {
		logger.Warn("No chain RPC endpoints configured; every transaction will be rejected")
	}

	// Initialize transaction queue
	queue := usecase.NewTransactionQueue(cfg.Queue, readers, store,
		usecase.WithStoreWriteTimeout(cfg.Store.WriteTimeout),
	)

	// Set Gin mode
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	authService := auth.NewJWTAuthService(cfg.Auth)

	metricsHandler := observability.NewMetricsHandler()
	metricsHandler.AddDependency("store", store)

	router := gin.New()
	apihandler.SetupRoutes(router, apihandler.Handlers{
		Transactions: apihandler.NewTransactionHandler(queue, readers),
		Events:       apihandler.NewEventHandler(queue),
		Auth:         apihandler.NewAuthHandler(authService),
		Metrics:      metricsHandler,
	}, authService, cfg.API.MaxRequestSize)

	// WriteTimeout stays unset: /api/v1/events holds the response open
	server := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           router,
		ReadTimeout:       time.Duration(cfg.API.TimeoutSeconds) * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting server",
			logger.String("port", cfg.App.Port),
			logger.String("environment", cfg.App.Environment),
			logger.Any("chains", readers.Chains()),
			logger.String("store", cfg.Store.Backend),
		)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", logger.ErrorField(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", logger.ErrorField(err))
	}

	queue.Destroy()

	logger.Info("Server exited")
}

// openStore connects the configured backend and returns a close function
func openStore(cfg *config.Config) (storeWithPing, func()) {
	switch cfg.Store.Backend {
	case config.StoreBackendPostgres:
		db, err := sqlx.Connect("postgres", cfg.Database.GetDSN())
		if err != nil {
			logger.Fatal("Failed to connect to database", logger.ErrorField(err))
		}
		db.SetMaxIdleConns(cfg.Database.MaxIdle)
		db.SetMaxOpenConns(cfg.Database.MaxOpen)
		db.SetConnMaxLifetime(cfg.Database.MaxLife)

		store := postgres.NewStoreRepository(db, cfg.Store.Key)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := store.EnsureSchema(ctx); err != nil {
			logger.Fatal("Failed to prepare queue store", logger.ErrorField(err))
		}

		logger.Info("Database connection established")
		return store, func() { db.Close() }

	case config.StoreBackendMemory:
		logger.Warn("Using in-memory queue store; queue state will not survive restarts")
		return memory.NewStoreRepository(), func() {}

	default:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetRedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})

		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			logger.Fatal("Failed to connect to Redis", logger.ErrorField(err))
		}

		logger.Info("Redis connection established")
		return redisrepo.NewStoreRepository(rdb, cfg.Store.Key), func() { rdb.Close() }
	}
}
