package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/semflow/seminar-registrations/internal/adapters/postgres"
	"github.com/semflow/seminar-registrations/internal/adapters/rabbit"
	"github.com/semflow/seminar-registrations/internal/config"
	"github.com/semflow/seminar-registrations/internal/domain"
	"github.com/semflow/seminar-registrations/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(context.Background(), cfg.PGDSN)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	repo := postgres.NewRepository(pool)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()
	rabbitPub, err := rabbit.NewPublisher(conn)
	if err != nil {
		log.Fatalf("failed to create publisher: %v", err)
	}

	worker := NewExpiryWorker(repo, rabbitPub, cfg.CheckoutTTL, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go worker.Run(ctx, time.Minute)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown expiry worker")
}

// ExpiryWorker expires checkout sessions the customer abandoned: PENDING
// orders older than the checkout TTL are moved to EXPIRED so the payment
// callback can no longer settle them.
type ExpiryWorker struct {
	repo      *postgres.Repository
	rabbitPub *rabbit.Publisher
	ttl       time.Duration
	logger    observability.Logger
}

func NewExpiryWorker(repo *postgres.Repository, rabbitPub *rabbit.Publisher, ttl time.Duration, logger observability.Logger) *ExpiryWorker {
	return &ExpiryWorker{repo: repo, rabbitPub: rabbitPub, ttl: ttl, logger: logger}
}

func (w *ExpiryWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			orders, err := w.repo.GetExpiredPendingOrders(ctx, now.Add(-w.ttl))
			if err != nil {
				w.logger.WithError(err).Error("failed to get expired orders")
				continue
			}
			for _, order := range orders {
				if err := w.expireWithRetry(ctx, order); err != nil {
					w.logger.WithError(err).WithField("order_id", order.ID).Error("failed to expire order after retries")
				}
			}
		}
	}
}

func (w *ExpiryWorker) expireWithRetry(ctx context.Context, order domain.Order) error {
	maxRetries := 3
	for i := 0; i < maxRetries; i++ {
		if err := w.repo.ExpireOrder(ctx, order.ID); err != nil {
			if err == domain.ErrNotFound {
				// settled by a payment callback between fetch and expire
				return nil
			}
			backoff := time.Duration(1<<i) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				continue
			}
		}

		payload, _ := json.Marshal(map[string]interface{}{"order_id": order.ID})
		msg := amqp.Publishing{
			MessageId:   uuid.New().String(),
			ContentType: "application/json",
			Body:        payload,
		}
		return w.rabbitPub.Publish(ctx, "order.expired", msg)
	}
	return fmt.Errorf("failed after %d retries", maxRetries)
}
