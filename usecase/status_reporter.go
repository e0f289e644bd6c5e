package usecase

import (
	"context"

	"crosspost/domain/model"
	"crosspost/domain/repository"
	"crosspost/infrastructure/logger"
	"crosspost/infrastructure/pubsub"
	"crosspost/infrastructure/realtime"
	"crosspost/infrastructure/servicebus"
	"crosspost/infrastructure/utils"
)

// StatusReporter owns terminal state writes and audit emission for jobs. All
// terminal transitions go through the guarded repository updates, so exactly
// one outcome wins per target; a losing write is logged as an invariant
// violation rather than overwriting the winner.
type StatusReporter struct {
	targets    repository.ITarget
	audit      repository.IAudit
	auditTopic pubsub.IAuditPubSub
	auditQueue servicebus.IAuditServiceBus
	hub        *realtime.Hub
}

func NewStatusReporter(
	targets repository.ITarget,
	audit repository.IAudit,
	auditTopic pubsub.IAuditPubSub,
	auditQueue servicebus.IAuditServiceBus,
	hub *realtime.Hub,
) *StatusReporter {
	return &StatusReporter{
		targets:    targets,
		audit:      audit,
		auditTopic: auditTopic,
		auditQueue: auditQueue,
		hub:        hub,
	}
}

// Started records the job start event once the target moved into processing.
func (r *StatusReporter) Started(ctx context.Context, target *model.Target) {
	r.emit(ctx, target, model.AuditJobStart, target.AttemptCount, nil)
	r.broadcast(target)
}

// AttemptFailed records a non-terminal attempt outcome before a retry.
func (r *StatusReporter) AttemptFailed(ctx context.Context, target *model.Target, attempt int, err error) {
	msg := err.Error()
	r.emit(ctx, target, model.AuditJobAttempt, attempt, &msg)
}

// Succeed writes the terminal success outcome.
func (r *StatusReporter) Succeed(ctx context.Context, target *model.Target, remote *model.RemotePost) {
	applied, err := r.targets.MarkSuccess(ctx, target.ID, remote.ID, remote.URL)
	if err != nil {
		logger.GetLogger().WithField("target_id", target.ID).WithField("error", err).
			Error("Failed to persist success outcome")
		return
	}
	if !applied {
		logger.GetLogger().WithField("target_id", target.ID).WithField("outcome", "success").
			Error("Terminal write refused - target no longer processing")
		return
	}
	target.Status = model.TargetSuccess
	target.PlatformVideoID = &remote.ID
	target.PlatformURL = &remote.URL
	target.ErrorMessage = nil
	r.emit(ctx, target, model.AuditJobSuccess, target.AttemptCount, nil)
	r.broadcast(target)
}

// Fail writes the terminal failure outcome with the dashboard-facing message.
func (r *StatusReporter) Fail(ctx context.Context, target *model.Target, message string) {
	applied, err := r.targets.MarkFailed(ctx, target.ID, message)
	if err != nil {
		logger.GetLogger().WithField("target_id", target.ID).WithField("error", err).
			Error("Failed to persist failure outcome")
		return
	}
	if !applied {
		logger.GetLogger().WithField("target_id", target.ID).WithField("outcome", "failed").
			Error("Terminal write refused - target no longer processing")
		return
	}
	target.Status = model.TargetFailed
	target.ErrorMessage = &message
	r.emit(ctx, target, model.AuditJobFailed, target.AttemptCount, &message)
	r.broadcast(target)
}

// Removed records a retraction outcome. Removal does not rewrite the target's
// terminal publish state; the audit trail carries the retraction.
func (r *StatusReporter) Removed(ctx context.Context, target *model.Target, removalErr error) {
	var msg *string
	if removalErr != nil {
		s := removalErr.Error()
		msg = &s
	}
	r.emit(ctx, target, model.AuditJobRemoval, target.AttemptCount, msg)
}

func (r *StatusReporter) emit(ctx context.Context, target *model.Target, event string, attempt int, errMsg *string) {
	record := &model.PublishAudit{
		TargetID:     target.ID,
		VideoID:      target.VideoID,
		Platform:     target.Platform,
		UserID:       target.UserID,
		Event:        event,
		Attempt:      attempt,
		ErrorMessage: errMsg,
		CreatedAt:    utils.GetCurrentTime(),
	}
	log := logger.GetLogger().WithField("target_id", target.ID).WithField("event", event)
	if r.audit != nil {
		if err := r.audit.Append(ctx, record); err != nil {
			log.WithField("error", err).Error("Failed to append audit record")
		}
	}
	if r.auditTopic != nil {
		if _, err := r.auditTopic.PublishAuditEvent(ctx, record); err != nil {
			log.WithField("error", err).Error("Failed to publish audit event to Pub/Sub")
		}
	}
	if r.auditQueue != nil {
		if err := r.auditQueue.SendAuditEvent(ctx, record); err != nil {
			log.WithField("error", err).Error("Failed to send audit event to Service Bus")
		}
	}
}

func (r *StatusReporter) broadcast(target *model.Target) {
	if r.hub != nil {
		r.hub.BroadcastTargetStatus(target)
	}
}
