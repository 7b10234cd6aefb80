package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	mongoadapter "github.com/semflow/seminar-registrations/internal/adapters/mongo"
	"github.com/semflow/seminar-registrations/internal/adapters/rabbit"
	"github.com/semflow/seminar-registrations/internal/config"
	"github.com/semflow/seminar-registrations/internal/observability"
)

// The notifier consumes order and check-in events and hands them to the
// outbound mail pipeline. Actual template rendering and delivery live in a
// separate system; this worker records what was requested.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := observability.NewLogger()

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	audit := mongoadapter.NewAuditLogger(mongoClient.Database("semreg"), logger)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()

	consumer, err := rabbit.NewConsumer(conn, "notifier.q", "order.paid", "order.expired", "participant.checked_in")
	if err != nil {
		log.Fatalf("failed to create consumer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deliveries, err := consumer.Consume(ctx)
	if err != nil {
		log.Fatalf("failed to start consuming: %v", err)
	}

	go func() {
		for d := range deliveries {
			var event map[string]interface{}
			if err := json.Unmarshal(d.Body, &event); err != nil {
				logger.WithError(err).Warn("dropping undecodable event")
				d.Nack(false, false)
				continue
			}
			logger.WithField("routing_key", d.RoutingKey).WithField("event", event).Info("notification requested")
			audit.LogEvent(ctx, "notification.requested", d.MessageId, event)
			d.Ack(false)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown notifier")
}
