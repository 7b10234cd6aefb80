package outbox

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/semflow/seminar-registrations/internal/adapters/postgres"
	"github.com/semflow/seminar-registrations/internal/adapters/rabbit"
	"github.com/semflow/seminar-registrations/internal/observability"
)

type Publisher struct {
	repo      *postgres.Repository
	rabbitPub *rabbit.Publisher
	logger    observability.Logger
}

func NewPublisher(repo *postgres.Repository, rabbitPub *rabbit.Publisher, logger observability.Logger) *Publisher {
	return &Publisher{repo: repo, rabbitPub: rabbitPub, logger: logger}
}

func (p *Publisher) Run(ctx context.Context, interval time.Duration, batchSize int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.publishBatch(ctx, batchSize)
		}
	}
}

func (p *Publisher) publishBatch(ctx context.Context, batchSize int) {
	records, err := p.repo.GetUnpublishedOutbox(ctx, batchSize)
	if err != nil {
		p.logger.WithError(err).Error("failed to fetch outbox records")
		return
	}
	for _, rec := range records {
		observability.OutboxLag.Set(time.Since(rec.CreatedAt).Seconds())

		msg := amqp.Publishing{
			MessageId:   rec.DedupeKey,
			ContentType: "application/json",
			Body:        rec.Payload,
		}
		if err := p.rabbitPub.Publish(ctx, rec.EventType, msg); err != nil {
			observability.RabbitPublishRetries.Inc()
			p.logger.WithError(err).WithField("outbox_id", rec.ID).Warn("publish failed, will retry next tick")
			continue
		}
		if err := p.repo.MarkPublished(ctx, rec.ID, time.Now()); err != nil {
			p.logger.WithError(err).WithField("outbox_id", rec.ID).Error("failed to mark outbox record published")
		}
	}
}
