package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Supported publish platforms.
const (
	PlatformYouTube   = "youtube"
	PlatformInstagram = "instagram"
	PlatformTikTok    = "tiktok"
	PlatformFacebook  = "facebook"
	PlatformX         = "x"
	PlatformSnapchat  = "snapchat"
	PlatformPinterest = "pinterest"
)

// AllPlatforms lists every platform the dispatcher can fan out to.
var AllPlatforms = []string{
	PlatformYouTube,
	PlatformInstagram,
	PlatformTikTok,
	PlatformFacebook,
	PlatformX,
	PlatformSnapchat,
	PlatformPinterest,
}

func IsSupportedPlatform(p string) bool {
	p = strings.ToLower(p)
	for _, known := range AllPlatforms {
		if p == known {
			return true
		}
	}
	return false
}

type TargetStatus string

const (
	TargetPending    TargetStatus = "pending"
	TargetProcessing TargetStatus = "processing"
	TargetSuccess    TargetStatus = "success"
	TargetFailed     TargetStatus = "failed"
)

// ErrTerminalConflict is returned when a terminal transition is requested on a
// target that already holds a different terminal outcome. The first terminal
// write is authoritative; callers log the conflict instead of overwriting.
var ErrTerminalConflict = errors.New("target already holds a conflicting terminal state")

// Target represents one publish attempt of a video against one platform.
type Target struct {
	ID              int64           `json:"id"`
	VideoID         string          `json:"video_id"`
	Platform        string          `json:"platform"`
	UserID          string          `json:"user_id"`
	ChannelID       string          `json:"channel_id"`
	Status          TargetStatus    `json:"status"`
	ErrorMessage    *string         `json:"error_message,omitempty"`
	PlatformVideoID *string         `json:"platform_video_id,omitempty"`
	PlatformURL     *string         `json:"platform_url,omitempty"`
	DestinationID   *string         `json:"destination_id,omitempty"`
	PublishAt       *time.Time      `json:"publish_at,omitempty"`
	AdvancedOptions AdvancedOptions `json:"advanced_options,omitempty"`
	AttemptCount    int             `json:"attempt_count"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (t *Target) Terminal() bool {
	return t.Status == TargetSuccess || t.Status == TargetFailed
}

// MarkProcessing moves a pending target into processing. Calling it again on a
// target already processing is a no-op.
func (t *Target) MarkProcessing() error {
	switch t.Status {
	case TargetPending, TargetProcessing:
		t.Status = TargetProcessing
		return nil
	default:
		return fmt.Errorf("cannot start processing target %d in state %s: %w", t.ID, t.Status, ErrTerminalConflict)
	}
}

// MarkSuccess records the platform-assigned identifiers. Repeating the same
// outcome is accepted; a different outcome is rejected.
func (t *Target) MarkSuccess(platformVideoID, platformURL string) error {
	if t.Status == TargetSuccess {
		if t.PlatformVideoID != nil && *t.PlatformVideoID == platformVideoID {
			return nil
		}
		return ErrTerminalConflict
	}
	if t.Status == TargetFailed {
		return ErrTerminalConflict
	}
	t.Status = TargetSuccess
	t.PlatformVideoID = &platformVideoID
	t.PlatformURL = &platformURL
	t.ErrorMessage = nil
	return nil
}

// MarkFailed records a terminal failure message.
func (t *Target) MarkFailed(message string) error {
	if t.Status == TargetFailed {
		if t.ErrorMessage != nil && *t.ErrorMessage == message {
			return nil
		}
		return ErrTerminalConflict
	}
	if t.Status == TargetSuccess {
		return ErrTerminalConflict
	}
	t.Status = TargetFailed
	t.ErrorMessage = &message
	t.PlatformVideoID = nil
	t.PlatformURL = nil
	return nil
}

// AdvancedOptions is an opaque, platform-keyed configuration bag (privacy,
// captions, hashtags, posting-time hints). Adapters read what they understand
// and ignore the rest.
type AdvancedOptions map[string]interface{}

func (o AdvancedOptions) String(key string) string {
	if o == nil {
		return ""
	}
	if v, ok := o[key].(string); ok {
		return v
	}
	return ""
}

func (o AdvancedOptions) Bool(key string) bool {
	if o == nil {
		return false
	}
	if v, ok := o[key].(bool); ok {
		return v
	}
	return false
}

func (o AdvancedOptions) StringSlice(key string) []string {
	if o == nil {
		return nil
	}
	switch v := o[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Destination id shapes for platforms that publish into a sub-destination
// (Facebook page, Pinterest board, Snapchat profile).
var destinationShapes = map[string]*regexp.Regexp{
	PlatformFacebook:  regexp.MustCompile(`^[0-9]{5,20}$`),
	PlatformPinterest: regexp.MustCompile(`^[0-9]{10,20}$`),
	PlatformSnapchat:  regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`),
}

// ValidateDestinationID checks a sub-destination identifier against the shape
// the platform expects. Platforms without sub-destinations accept only empty.
func ValidateDestinationID(platform, id string) error {
	if id == "" {
		return nil
	}
	shape, ok := destinationShapes[strings.ToLower(platform)]
	if !ok {
		return fmt.Errorf("platform %s does not take a destination id", platform)
	}
	if !shape.MatchString(id) {
		return fmt.Errorf("destination id %q does not match the expected shape for %s", id, platform)
	}
	return nil
}
