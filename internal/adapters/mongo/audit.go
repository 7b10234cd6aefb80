package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/semflow/seminar-registrations/internal/domain"
	"github.com/semflow/seminar-registrations/internal/observability"
)

type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("audit_logs"),
		logger: logger,
	}
}

type AuditLog struct {
	ID        uuid.UUID `bson:"_id"`
	Action    string    `bson:"action"`
	SubjectID string    `bson:"subject_id"`
	Timestamp time.Time `bson:"timestamp"`
	Data      bson.M    `bson:"data"`
}

func (a *AuditLogger) LogEvent(ctx context.Context, action, subjectID string, data map[string]interface{}) error {
	log := AuditLog{
		ID:        uuid.New(),
		Action:    action,
		SubjectID: subjectID,
		Timestamp: time.Now(),
		Data:      bson.M(data),
	}
	_, err := a.coll.InsertOne(ctx, log)
	if err != nil {
		a.logger.WithError(err).Error("failed to insert audit log")
		return err
	}
	return nil
}

func (a *AuditLogger) LogOrder(ctx context.Context, action string, order domain.Order) error {
	data := map[string]interface{}{
		"order_id":   order.ID,
		"session_id": order.SessionID,
		"status":     order.Status,
		"subtotal":   order.Subtotal,
		"discount":   order.Discount,
		"tax":        order.Tax,
		"total":      order.Total,
	}
	if order.CouponCode != "" {
		data["coupon_code"] = order.CouponCode
	}
	return a.LogEvent(ctx, action, order.ID.String(), data)
}

func (a *AuditLogger) LogCheckIn(ctx context.Context, p domain.Participant) error {
	data := map[string]interface{}{
		"participant_id": p.ID,
		"order_id":       p.OrderID,
		"session_id":     p.SessionID,
		"state":          p.State,
	}
	return a.LogEvent(ctx, "participant.checked_in", p.ID.String(), data)
}

func (a *AuditLogger) LogCouponRedemption(ctx context.Context, orderID uuid.UUID, code string, redeemed bool) error {
	data := map[string]interface{}{
		"order_id": orderID,
		"code":     code,
		"redeemed": redeemed,
	}
	return a.LogEvent(ctx, "coupon.redeemed", code, data)
}
