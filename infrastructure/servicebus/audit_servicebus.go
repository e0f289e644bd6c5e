package servicebus

import (
	"context"
	"encoding/json"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"crosspost/domain/model"
	"crosspost/infrastructure/logger"
)

type IAuditServiceBus interface {
	SendAuditEvent(ctx context.Context, event *model.PublishAudit) error
}

// AuditServiceBus mirrors audit events onto an Azure Service Bus queue.
type AuditServiceBus struct {
	client *azservicebus.Client
	queue  string
}

func NewAuditServiceBus(client *azservicebus.Client, queue string) IAuditServiceBus {
	if queue == "" {
		queue = "publish-audit"
	}
	return &AuditServiceBus{client: client, queue: queue}
}

func (s *AuditServiceBus) SendAuditEvent(ctx context.Context, event *model.PublishAudit) error {
	if s.client == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	sender, err := s.client.NewSender(s.queue, nil)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while making new sender service bus.")
		return err
	}
	defer func() {
		if err := sender.Close(ctx); err != nil {
			logger.GetLogger().WithField("error", err).Error("Error while closing sender.")
		}
	}()
	return sender.SendMessage(ctx, &azservicebus.Message{Body: payload}, nil)
}

// NewServiceBus connects the Service Bus client using the ambient Azure
// credential chain.
func NewServiceBus(ctx context.Context, namespace string) (*azservicebus.Client, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, err
	}
	client, err := azservicebus.NewClient(namespace, cred, nil)
	if err != nil {
		return nil, err
	}
	return client, nil
}
