package persistence

import (
	"context"
	"fmt"
	"time"

	"crosspost/domain/model"
	"crosspost/infrastructure/logger"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// AuditRepository appends publish job audit events to MongoDB. The audit log
// is append-only and best-effort: a nil client disables it without failing
// the jobs that produce the events.
type AuditRepository struct {
	mongoDb *mongo.Client
}

func NewAuditRepository(mongoDb *mongo.Client) *AuditRepository {
	return &AuditRepository{mongoDb: mongoDb}
}

func (r *AuditRepository) Append(ctx context.Context, event *model.PublishAudit) error {
	if r.mongoDb == nil {
		logger.GetLogger().Debug("MongoDB client is nil - skipping audit append")
		return nil
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	collection := r.mongoDb.Database("crosspost").Collection("publish_audit")
	if _, err := collection.InsertOne(ctx, event); err != nil {
		return fmt.Errorf("append publish audit: %w", err)
	}
	return nil
}

// NewMongoDb connects a Mongo client for the audit store.
func NewMongoDb(host, port, user, password, name string) (*mongo.Client, error) {
	uri := fmt.Sprintf("mongodb://%s:%s", host, port)
	if user != "" {
		uri = fmt.Sprintf("mongodb://%s:%s@%s:%s/%s", user, password, host, port, name)
	}
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	return client, nil
}
