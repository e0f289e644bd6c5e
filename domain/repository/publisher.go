package repository

import (
	"context"

	"crosspost/domain/model"
)

// IPlatformPublisher is the adapter contract one concrete type implements per
// platform. Publish drives the platform's full protocol (direct post, chunked
// upload, container polling, or SDK call) to completion and returns the
// platform-assigned identifiers. Remove is idempotent: a resource already
// gone on the remote side is success.
type IPlatformPublisher interface {
	Platform() string
	Publish(ctx context.Context, cred *model.Credential, video *model.Video, target *model.Target) (*model.RemotePost, error)
	Remove(ctx context.Context, cred *model.Credential, platformVideoID string) error
}

// IMediaURLResolver materializes a publicly fetchable URL for a local video
// file. Cloud-storage mirroring is an external collaborator; this core only
// consumes the URL.
type IMediaURLResolver interface {
	PublicURL(ctx context.Context, video *model.Video) (string, error)
}

// IMetadataEnhancer is the optional content-optimization collaborator.
// Best-effort: errors or empty results fall back to templated text and never
// fail a publish.
type IMetadataEnhancer interface {
	Enhance(ctx context.Context, video *model.Video) (*model.EnhancedMetadata, error)
}

// IAudit appends job audit events to the audit store.
type IAudit interface {
	Append(ctx context.Context, event *model.PublishAudit) error
}
