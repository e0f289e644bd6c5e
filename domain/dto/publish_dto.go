package dto

import (
	"time"

	"crosspost/domain/model"
)

// Res is the generic response envelope used by handlers and middleware.
type Res struct {
	ResponseCode    string      `json:"responseCode"`
	ResponseMessage string      `json:"responseMessage"`
	Data            interface{} `json:"data,omitempty"`
}

// PublishPlatformRequest selects one platform plus its per-platform options.
type PublishPlatformRequest struct {
	Platform        string                `json:"platform" binding:"required"`
	DestinationID   string                `json:"destination_id,omitempty"`
	PublishAt       *time.Time            `json:"publish_at,omitempty"`
	AdvancedOptions model.AdvancedOptions `json:"advanced_options,omitempty"`
}

// PublishRequest fans one video out to a list of platforms.
type PublishRequest struct {
	ChannelID string                   `json:"channel_id"`
	Video     VideoDescriptor          `json:"video" binding:"required"`
	Platforms []PublishPlatformRequest `json:"platforms" binding:"required"`
}

// VideoDescriptor mirrors model.Video on the wire. The id may be omitted when
// the route already carries it.
type VideoDescriptor struct {
	ID              string `json:"id"`
	FilePath        string `json:"file_path" binding:"required"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	DurationSeconds int    `json:"duration_seconds"`
	MimeType        string `json:"mime_type"`
}

// PublishResult reports the created target per platform.
type PublishResult struct {
	TargetID int64  `json:"target_id"`
	Platform string `json:"platform"`
	Status   string `json:"status"`
}

// TargetStatusResponse is the dashboard poller's view of one target.
type TargetStatusResponse struct {
	TargetID        int64   `json:"target_id"`
	Platform        string  `json:"platform"`
	Status          string  `json:"status"`
	ErrorMessage    *string `json:"error_message,omitempty"`
	PlatformVideoID *string `json:"platform_video_id,omitempty"`
	PlatformURL     *string `json:"platform_url,omitempty"`
	AttemptCount    int     `json:"attempt_count"`
}

func NewTargetStatusResponse(t *model.Target) TargetStatusResponse {
	return TargetStatusResponse{
		TargetID:        t.ID,
		Platform:        t.Platform,
		Status:          string(t.Status),
		ErrorMessage:    t.ErrorMessage,
		PlatformVideoID: t.PlatformVideoID,
		PlatformURL:     t.PlatformURL,
		AttemptCount:    t.AttemptCount,
	}
}
