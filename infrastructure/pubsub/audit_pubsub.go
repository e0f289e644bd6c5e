package pubsub

import (
	"context"
	"encoding/json"

	"cloud.google.com/go/pubsub"
	"crosspost/domain/model"
	"crosspost/infrastructure/logger"
)

type IAuditPubSub interface {
	PublishAuditEvent(ctx context.Context, event *model.PublishAudit) (string, error)
}

// AuditPubSub emits job audit events to a Pub/Sub topic for downstream
// operational consumers.
type AuditPubSub struct {
	client *pubsub.Client
	topic  string
}

func NewAuditPubSub(client *pubsub.Client, topic string) IAuditPubSub {
	if topic == "" {
		topic = "publish-audit"
	}
	return &AuditPubSub{client: client, topic: topic}
}

func (p *AuditPubSub) PublishAuditEvent(ctx context.Context, event *model.PublishAudit) (string, error) {
	if p.client == nil {
		return "", nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return "", err
	}
	topic := p.client.Topic(p.topic)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return "", err
	}
	if !exists {
		logger.GetLogger().WithField("topic", p.topic).Info("Audit topic missing - creating it")
		if _, err := p.client.CreateTopic(ctx, p.topic); err != nil {
			return "", err
		}
	}
	serverID, err := topic.Publish(ctx, &pubsub.Message{Data: payload}).Get(ctx)
	if err != nil {
		return "", err
	}
	return serverID, nil
}

// NewPubSub connects the Pub/Sub client for audit emission.
func NewPubSub(ctx context.Context, projectID string) (*pubsub.Client, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return client, nil
}
