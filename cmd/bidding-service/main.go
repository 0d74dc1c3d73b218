package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"proxy-bidding/internal/api/handlers"
	"proxy-bidding/internal/config"
	"proxy-bidding/internal/infrastructure/leader"
	"proxy-bidding/internal/infrastructure/mysql"
	redisinfra "proxy-bidding/internal/infrastructure/redis"
	"proxy-bidding/internal/infrastructure/websocket"
	"proxy-bidding/internal/services"
	"proxy-bidding/pkg/logger"

	redisClient "github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/shopspring/decimal"
)

func main() {
	log := logger.New()
	log.Info("Starting Proxy Bidding Service")

	cfg, err := config.Load()
	if err != nil {
		log.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	increment, err := decimal.NewFromString(cfg.Bidding.Increment)
	if err != nil || !increment.IsPositive() {
		log.Error("Invalid bid increment", "increment", cfg.Bidding.Increment, "error", err)
		os.Exit(1)
	}

	// Initialize Redis
	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to Redis", "address", cfg.Redis.Address)

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		log.Error("Failed to connect to MySQL", "error", err)
		os.Exit(1)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			log.Error("Failed to close MySQL connection", "error", err)
		}
	}(db)

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		log.Error("Failed to ping MySQL", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to MySQL")

	// Initialize repositories
	txManager := mysql.NewTxManager(db)
	listingRepo := mysql.NewMySQLListingRepository(db)
	bidRepo := mysql.NewMySQLBidRepository(db)
	proxyRepo := mysql.NewMySQLProxyBidRepository(db)
	schedulerRepo := mysql.NewMySQLSchedulerRepository(db)

	// Initialize Redis based components
	priceCache := redisinfra.NewRedisPriceCache(rdb)
	eventPublisher := redisinfra.NewRedisEventPublisher(rdb)
	eventSubscriber := redisinfra.NewRedisEventSubscriber(rdb, log)

	// Initialize leader election
	leaderElection := leader.NewRedisLeaderElection(rdb, cfg.Leader.TTL)

	// Initialize services
	bidService := services.NewBidService(
		txManager,
		listingRepo,
		bidRepo,
		proxyRepo,
		eventPublisher,
		priceCache,
		increment,
		log,
	)

	listingService := services.NewListingService(
		txManager,
		listingRepo,
		proxyRepo,
		nil, // scheduler is set below
		eventPublisher,
		priceCache,
		leaderElection,
		cfg.Instance.ID,
		cfg.Bidding.ExtensionWindow,
		cfg.Bidding.ExtensionIncrement,
		log,
	)

	scheduler := services.NewCronListingScheduler(schedulerRepo, listingService, cfg.Scheduler.PollInterval, log)
	listingService.SetScheduler(scheduler)

	// Live feed
	feedManager := websocket.NewConnectionManager(log)
	eventListener := services.NewEventListener(feedManager, log)

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.RequestID())
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: `{"time":"${time_rfc3339}","id":"${id}","remote_ip":"${remote_ip}","host":"${host}","method":"${method}","uri":"${uri}","user_agent":"${user_agent}","status":${status},"error":"${error}","latency":${latency},"latency_human":"${latency_human}","bytes_in":${bytes_in},"bytes_out":${bytes_out}}` + "\n",
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			echo.GET, echo.HEAD, echo.PUT, echo.PATCH,
			echo.POST, echo.DELETE, echo.OPTIONS,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			echo.HeaderXRequestedWith,
		},
		MaxAge: 86400,
	}))

	// Initialize handlers
	listingHandler := handlers.NewListingHandler(listingService, bidService, log)
	bidHandler := handlers.NewBidHandler(bidService, log)
	feedHandler := handlers.NewFeedHandler(feedManager, log)

	// API routes
	api := e.Group("/api/v1")
	api.POST("/listings", listingHandler.CreateListing)
	api.GET("/listings/:id", listingHandler.GetListing)
	api.DELETE("/listings/:id", listingHandler.CancelListing)
	api.POST("/listings/:id/bids", bidHandler.PlaceBid)
	api.GET("/listings/:id/bids", bidHandler.BidHistory)
	api.DELETE("/listings/:id/proxy-bids/:bidderID", bidHandler.CancelProxyBid)

	// Live price feed
	e.GET("/ws/listings/:id", feedHandler.WatchListing)

	// Health check endpoint
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"service":   "proxy-bidding",
			"timestamp": time.Now().Format(time.RFC3339),
			"port":      cfg.Server.Port,
			"version":   "1.0.0",
		})
	})

	// Start background services
	listenerCtx, stopListener := context.WithCancel(context.Background())
	defer stopListener()

	go func() {
		if err := scheduler.Start(listenerCtx); err != nil {
			log.Error("Failed to start scheduler", "error", err)
		}
	}()

	go func() {
		if err := eventListener.Start(listenerCtx, eventSubscriber); err != nil {
			log.Error("Event listener stopped", "error", err)
		}
	}()

	// Try to become leader; stops with the rest of the background work.
	go services.MaintainLeadership(listenerCtx, leaderElection, cfg.Instance.ID, 10*time.Second, log)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("Starting bidding server", "address", serverAddr)

	go func() {
		if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down bidding service...")

	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stopListener()
	if err := scheduler.Stop(); err != nil {
		log.Error("Failed to stop scheduler", "error", err)
	}
	if err := leaderElection.ReleaseLeadership(ctx, cfg.Instance.ID); err != nil {
		log.Error("Failed to release leadership", "error", err)
	}
	if err := e.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Bidding service stopped")
}
