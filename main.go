package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"ms-reviews/internal/analytics"
	analytics_api "ms-reviews/internal/analytics/api"
	"ms-reviews/internal/auth"
	"ms-reviews/internal/config"
	"ms-reviews/internal/database/migrations"
	"ms-reviews/internal/kafka"
	"ms-reviews/internal/logger"
	"ms-reviews/internal/notification"
	"ms-reviews/internal/order"
	"ms-reviews/internal/order/db"
	"ms-reviews/internal/order/order_api"
	rediswrap "ms-reviews/internal/order/redis"
	"ms-reviews/internal/payment/services"
	"ms-reviews/internal/receipt"
	"ms-reviews/internal/sse"
)

func connectDatabase(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) *db.DB {
	const maxRetries = 5

	var (
		store *db.DB
		err   error
	)
	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		store, err = db.Open(ctx, cfg)
		if err == nil {
			break
		}
		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	log.Info("DATABASE", "✅ PostgreSQL connection successful")
	return store
}

func connectRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		// Verification falls back to running unlocked, so a missing Redis is not fatal.
		log.Warn("REDIS", fmt.Sprintf("Redis unreachable at %s: %v", cfg.Addr, err))
		return client
	}
	log.Info("REDIS", fmt.Sprintf("✅ Redis connection successful to %s (DB: %d)", cfg.Addr, cfg.DB))
	return client
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println(".env file not found, using environment variables")
	}
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.LogDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()
	log.SetLevel(logger.ParseLevel(cfg.LogLevel))
	log.Info("APP", "Starting Reviews Service initialization")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := connectDatabase(ctx, cfg.Database, log)
	defer store.Close()

	if cfg.Database.AutoMigrate {
		runner := migrations.NewRunner(store.Bun, migrations.MigrateOptions{SourceURL: cfg.Database.MigrationsPath, AutoMigrate: true}, log)
		if err := runner.RunMigrations(); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
		}
		runner.Close()
	}

	redisClient := connectRedis(ctx, cfg.Redis, log)
	defer redisClient.Close()

	payments, err := services.NewStripeService(cfg.Stripe, log)
	if err != nil {
		log.Fatal("STRIPE", err.Error())
	}

	verifier, err := auth.NewVerifier(ctx, cfg.Auth)
	if err != nil {
		log.Fatal("AUTH", fmt.Sprintf("Failed to build token verifier: %v", err))
	}

	emitter := sse.NewOrderEventEmitter()
	settings := order.DefaultSettings()
	settings.PlatformFeeRate = cfg.Checkout.PlatformFeeRate
	settings.StatusTopic = cfg.Kafka.Topics.OrderStatus
	settings.LockTTL = cfg.Redis.LockTTL
	settings.LockWait = cfg.Redis.LockWait
	settings.EventTTL = cfg.Redis.EventTTL

	deps := order.Deps{
		DB:       store,
		Payments: payments,
		Redis:    rediswrap.NewRedis(redisClient, log),
		Emitter:  emitter,
		Logger:   log,
	}

	var consumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, log)
		defer producer.Close()
		log.Info("KAFKA", "Kafka producer initialized successfully")

		topics := []string{cfg.Kafka.Topics.OrderStatus, cfg.Kafka.Topics.Notifications}
		if err := kafka.EnsureTopicsExist(ctx, cfg.Kafka.Brokers, topics, log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}

		deps.Kafka = producer
		deps.Notifier = notification.NewKafkaDispatcher(producer, cfg.Kafka.Topics.Notifications, log)

		// Every instance needs every status event, so each gets its own group.
		groupID := cfg.Kafka.GroupID + "-" + settings.InstanceID
		consumer = kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.OrderStatus, groupID, log)
	} else {
		log.Warn("KAFKA", "Kafka disabled: status events stay local and notifications are only logged")
	}

	orderService := order.NewOrderService(deps, settings)

	if consumer != nil {
		relay := order.NewStatusRelay(orderService.InstanceID(), emitter)
		go func() {
			if err := consumer.Start(ctx, relay.Handle); err != nil {
				log.Error("KAFKA", fmt.Sprintf("Status relay stopped: %v", err))
			}
		}()
		defer consumer.Close()
	}

	handler := &order_api.Handler{
		OrderService: orderService,
		Promos:       orderService.Promos,
		Poller:       order.NewStatusPoller(store, cfg.Poller),
		Logger:       log,
		AdminRole:    cfg.Auth.AdminRole,
		HealthChecks: map[string]order_api.HealthCheck{
			"database": func(ctx context.Context) error { return store.Bun.PingContext(ctx) },
			"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		},
	}

	if cfg.Receipt.Secret != "" {
		handler.Receipts, err = receipt.NewGenerator(cfg.Receipt.Secret, cfg.Receipt.VerifyURL)
		if err != nil {
			log.Fatal("CONFIG", fmt.Sprintf("Receipts: %v", err))
		}
	} else {
		log.Info("CONFIG", "RECEIPT_SECRET not set, review receipts disabled")
	}

	router := order_api.NewRouter(order_api.RouterConfig{
		Handler:        handler,
		SSE:            order_api.NewSSEHandler(orderService, emitter, log, cfg.Auth.AdminRole),
		Analytics:      analytics_api.NewHandler(analytics.NewService(store.Bun), store, log, cfg.Auth.AdminRole),
		Verifier:       verifier,
		Logger:         log,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Reviews Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "✅ Reviews Service shutdown complete")
	}
}
