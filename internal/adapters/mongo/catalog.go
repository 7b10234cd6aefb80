package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/semflow/seminar-registrations/internal/observability"
)

// CatalogRepository is the public read model for the seminar listing pages.
type CatalogRepository struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewCatalogRepository(db *mongo.Database, logger observability.Logger) *CatalogRepository {
	return &CatalogRepository{
		coll:   db.Collection("sessions"),
		logger: logger,
	}
}

type SessionDoc struct {
	ID          uuid.UUID       `bson:"_id"`
	SeminarID   uuid.UUID       `bson:"seminar_id"`
	Title       string          `bson:"title"`
	Description string          `bson:"description"`
	Venue       string          `bson:"venue"`
	StartsAt    time.Time       `bson:"starts_at"`
	Capacity    int             `bson:"capacity"`
	TicketTypes []TicketTypeDoc `bson:"ticket_types"`
	CreatedAt   time.Time       `bson:"created_at"`
	UpdatedAt   time.Time       `bson:"updated_at"`
}

type TicketTypeDoc struct {
	ID             uuid.UUID `bson:"_id"`
	Name           string    `bson:"name"`
	UnitPrice      int64     `bson:"unit_price"`
	TaxRatePercent int       `bson:"tax_rate_percent"`
}

func (c *CatalogRepository) GetSession(ctx context.Context, id uuid.UUID) (*SessionDoc, error) {
	var doc SessionDoc
	err := c.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		c.logger.WithError(err).Error("failed to get session")
		return nil, err
	}
	return &doc, nil
}

func (c *CatalogRepository) ListUpcomingSessions(ctx context.Context, now time.Time) ([]SessionDoc, error) {
	opts := options.Find().SetSort(bson.D{{Key: "starts_at", Value: 1}})
	cur, err := c.coll.Find(ctx, bson.M{"starts_at": bson.M{"$gte": now}}, opts)
	if err != nil {
		c.logger.WithError(err).Error("failed to list sessions")
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []SessionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *CatalogRepository) UpsertSession(ctx context.Context, doc SessionDoc) error {
	doc.UpdatedAt = time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = doc.UpdatedAt
	}
	_, err := c.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		c.logger.WithError(err).Error("failed to upsert session")
		return err
	}
	return nil
}
