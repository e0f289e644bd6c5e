package model

import "time"

// Audit event kinds emitted per job.
const (
	AuditJobStart   = "start"
	AuditJobAttempt = "attempt"
	AuditJobSuccess = "success"
	AuditJobFailed  = "failed"
	AuditJobRemoval = "removal"
)

// PublishAudit is an append-only record of one job event: start, per-attempt
// outcome, final state. Persisted to the audit store and emitted to the
// configured message sinks.
type PublishAudit struct {
	TargetID     int64     `json:"target_id" bson:"target_id"`
	VideoID      string    `json:"video_id" bson:"video_id"`
	Platform     string    `json:"platform" bson:"platform"`
	UserID       string    `json:"user_id" bson:"user_id"`
	Event        string    `json:"event" bson:"event"`
	Attempt      int       `json:"attempt" bson:"attempt"`
	ErrorMessage *string   `json:"error_message,omitempty" bson:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
}
