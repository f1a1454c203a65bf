package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-gin-waiting-room/config"
	"go-gin-waiting-room/internal/cache"
	"go-gin-waiting-room/internal/database"
	"go-gin-waiting-room/internal/handler"
	"go-gin-waiting-room/internal/middleware"
	"go-gin-waiting-room/internal/notify"
	"go-gin-waiting-room/internal/queue"
	"go-gin-waiting-room/internal/repository"
	"go-gin-waiting-room/internal/salewindow"
	"go-gin-waiting-room/internal/service"
	"go-gin-waiting-room/internal/tasks"
	"go-gin-waiting-room/internal/worker"
	"go-gin-waiting-room/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const (
	taskConcurrency = 10
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg := config.LoadConfig()
	log := logger.WithComponent("main")
	defer logger.Sync()

	if cfg.Auth.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.InitDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		log.Fatal("Failed to apply schema", zap.Error(err))
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		log.Fatal("Failed to initialize redis", zap.Error(err))
	}
	defer rdb.Close()

	// 生命週期事件：未設定 AMQP_URL 時只寫 log
	var publisher notify.Publisher = notify.NopPublisher{}
	if cfg.AMQP.URL != "" {
		amqpPublisher, err := notify.DialAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			log.Fatal("Failed to connect to AMQP broker", zap.Error(err))
		}
		publisher = amqpPublisher
	}
	defer publisher.Close()

	hostname, _ := os.Hostname()
	stream, err := queue.NewRedisStreamReservationQueue(ctx, rdb, hostname, nil)
	if err != nil {
		log.Fatal("Failed to initialize reservation stream", zap.Error(err))
	}

	redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr(), Password: cfg.Redis.Password, DB: cfg.Redis.DB}
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()

	clock := salewindow.RealClock()
	registry := salewindow.NewRegistry()

	eventRepo := repository.NewEventRepository(pool)
	kindRepo := repository.NewTicketKindRepository(pool)
	reservationRepo := repository.NewReservationRepository(pool)
	inventory := cache.NewSpotInventory(rdb)
	virtualQueue := queue.NewRedisVirtualQueue(rdb)

	eventService := service.NewEventService(eventRepo, kindRepo, inventory, virtualQueue, clock)
	queueService := service.NewQueueService(eventRepo, virtualQueue, publisher, cfg.Sales, clock)
	reservationService := service.NewReservationService(service.ReservationDeps{
		Events:       eventRepo,
		Kinds:        kindRepo,
		Reservations: reservationRepo,
		Inventory:    inventory,
		Cache:        cache.NewReservationCache(rdb),
		Stream:       stream,
		Queue:        virtualQueue,
		Expiry:       tasks.NewExpiryScheduler(asynqClient),
		Publisher:    publisher,
		Sessions:     registry,
		Clock:        clock,
	})

	if err := worker.NewReservationWorker(reservationService, stream).Start(ctx); err != nil {
		log.Fatal("Failed to start reservation worker", zap.Error(err))
	}

	taskServer := tasks.NewServer(redisOpt, taskConcurrency)
	if err := taskServer.Start(tasks.NewServeMux(tasks.NewHandlers(queueService, reservationService))); err != nil {
		log.Fatal("Failed to start task server", zap.Error(err))
	}
	defer taskServer.Shutdown()

	scheduler, err := tasks.NewScheduler(redisOpt, cfg.Sales.AdmissionInterval)
	if err != nil {
		log.Fatal("Failed to create admission scheduler", zap.Error(err))
	}
	if err := scheduler.Start(); err != nil {
		log.Fatal("Failed to start admission scheduler", zap.Error(err))
	}
	defer scheduler.Shutdown()

	sessionCfg := salewindow.Config{
		AdmissionsPerMinute: cfg.Sales.AdmissionsPerMinute,
		PurchaseWindow:      cfg.Sales.PurchaseWindow,
		GraceDelay:          cfg.Sales.GraceDelay,
		PollMin:             cfg.Sales.PollMin,
		PollMax:             cfg.Sales.PollMax,
	}

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	auth := middleware.JWTAuth(cfg.Auth.JWTSecret)
	handler.NewEventHandler(eventService).RegisterRoutes(router, auth)
	handler.NewQueueHandler(queueService).RegisterRoutes(router, auth)
	handler.NewReservationHandler(reservationService).RegisterRoutes(router, auth)
	handler.NewSessionHandler(eventService, queueService, registry, clock, sessionCfg).RegisterRoutes(router, auth)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", zap.Error(err))
	}
}
