package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	mongoadapter "github.com/semflow/seminar-registrations/internal/adapters/mongo"
	"github.com/semflow/seminar-registrations/internal/adapters/postgres"
	"github.com/semflow/seminar-registrations/internal/adapters/rabbit"
	redisadapter "github.com/semflow/seminar-registrations/internal/adapters/redis"
	"github.com/semflow/seminar-registrations/internal/checkin"
	"github.com/semflow/seminar-registrations/internal/checkout"
	"github.com/semflow/seminar-registrations/internal/config"
	httphandler "github.com/semflow/seminar-registrations/internal/http"
	"github.com/semflow/seminar-registrations/internal/idempotency"
	"github.com/semflow/seminar-registrations/internal/observability"
	"github.com/semflow/seminar-registrations/internal/payment"
	"github.com/semflow/seminar-registrations/internal/ratelimit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdown, err := observability.SetupOTel(context.Background(), cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(context.Background(), cfg.PGDSN)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	repo := postgres.NewRepository(pool)

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	mongoDB := mongoClient.Database("semreg")
	catalog := mongoadapter.NewCatalogRepository(mongoDB, logger)
	audit := mongoadapter.NewAuditLogger(mongoDB, logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	redisCache := redisadapter.NewCache(redisClient)
	redisIdemp := redisadapter.NewIdempotency(redisClient)
	idemp := idempotency.NewIdempotency(redisIdemp, cfg.IdempotencyTTL)
	rl := ratelimit.NewRateLimiter(redisCache)

	rabbitConn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer rabbitConn.Close()
	rabbitPub, err := rabbit.NewPublisher(rabbitConn)
	if err != nil {
		log.Fatalf("failed to create publisher: %v", err)
	}

	payments := payment.NewClient(cfg.PaymentBaseURL, cfg.PaymentAPIKey)
	checkoutSvc := checkout.NewService(repo, payments, audit, logger)
	checkinSvc := checkin.NewService(repo, audit, rabbitPub, redisCache, logger)

	handlers := httphandler.NewHandlers(cfg, repo, catalog, audit, checkoutSvc, checkinSvc, idemp)

	r := httphandler.SetupRouter(handlers, logger, rl, idemp)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	logger.Info("Server exiting")
}
