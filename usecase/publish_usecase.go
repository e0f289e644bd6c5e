package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"crosspost/domain/dto"
	"crosspost/domain/model"
	"crosspost/domain/repository"
	"crosspost/infrastructure/cache"
	"crosspost/infrastructure/clients/social"
	"crosspost/infrastructure/logger"
)

var (
	ErrTargetNotFound    = errors.New("target not found")
	ErrNotOwner          = errors.New("target belongs to another user")
	ErrNothingToRetract  = errors.New("target has no published platform video to retract")
	ErrNoPlatforms       = errors.New("at least one platform is required")
	ErrDuplicatePlatform = errors.New("platform listed more than once")
)

// Platforms that publish into a sub-destination the request may leave to the
// credential's connected page/board.
var destinationPlatforms = map[string]bool{
	model.PlatformFacebook:  true,
	model.PlatformPinterest: true,
	model.PlatformSnapchat:  true,
}

type IPublish interface {
	// Publish validates the request, creates one pending target per platform,
	// and enqueues a publish job for each. Targets that cannot be enqueued
	// stay pending for later re-processing.
	Publish(ctx context.Context, userID string, req *dto.PublishRequest) ([]dto.PublishResult, error)
	// Retract enqueues a removal job for a target holding a platform video id.
	Retract(ctx context.Context, userID string, targetID int64) error
	// GetStatus lists the targets of one video for the dashboard poller.
	GetStatus(ctx context.Context, userID, videoID string) ([]dto.TargetStatusResponse, error)
	// ProcessJobs re-enqueues the pending targets of a video. Development
	// utility for draining targets that missed their enqueue.
	ProcessJobs(ctx context.Context, userID string, req *dto.PublishRequest) (int, error)
	// Platforms lists the platform names with a registered adapter.
	Platforms() []string
}

type PublishUsecase struct {
	targets      repository.ITarget
	creds        repository.ICredential
	registry     *social.Registry
	dispatcher   *Dispatcher
	destinations cache.IDestinationCache
}

func NewPublishUsecase(
	targets repository.ITarget,
	creds repository.ICredential,
	registry *social.Registry,
	dispatcher *Dispatcher,
	destinations cache.IDestinationCache,
) IPublish {
	return &PublishUsecase{
		targets:      targets,
		creds:        creds,
		registry:     registry,
		dispatcher:   dispatcher,
		destinations: destinations,
	}
}

func (u *PublishUsecase) Publish(ctx context.Context, userID string, req *dto.PublishRequest) ([]dto.PublishResult, error) {
	if len(req.Platforms) == 0 {
		return nil, ErrNoPlatforms
	}

	seen := make(map[string]bool, len(req.Platforms))
	targets := make([]*model.Target, 0, len(req.Platforms))
	for _, p := range req.Platforms {
		platform := strings.ToLower(strings.TrimSpace(p.Platform))
		if !model.IsSupportedPlatform(platform) {
			return nil, fmt.Errorf("unsupported platform %q", p.Platform)
		}
		if seen[platform] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePlatform, platform)
		}
		seen[platform] = true

		destinationID := p.DestinationID
		if destinationID == "" && destinationPlatforms[platform] {
			destinationID = u.resolveDestination(ctx, userID, req.ChannelID, platform)
		}
		if err := model.ValidateDestinationID(platform, destinationID); err != nil {
			return nil, err
		}

		target := &model.Target{
			VideoID:         req.Video.ID,
			Platform:        platform,
			UserID:          userID,
			ChannelID:       req.ChannelID,
			Status:          model.TargetPending,
			PublishAt:       p.PublishAt,
			AdvancedOptions: p.AdvancedOptions,
		}
		if destinationID != "" {
			target.DestinationID = &destinationID
		}
		targets = append(targets, target)
	}

	created, err := u.targets.CreateTargets(ctx, targets)
	if err != nil {
		return nil, fmt.Errorf("creating publish targets: %w", err)
	}

	video := videoFromDescriptor(&req.Video)
	results := make([]dto.PublishResult, 0, len(created))
	for _, target := range created {
		if err := u.dispatcher.Enqueue(Job{Kind: JobPublish, Target: target, Video: video}); err != nil {
			logger.GetLogger().WithField("target_id", target.ID).WithField("error", err).
				Warn("Could not enqueue publish job - target stays pending")
		}
		results = append(results, dto.PublishResult{
			TargetID: target.ID,
			Platform: target.Platform,
			Status:   string(target.Status),
		})
	}
	return results, nil
}

func (u *PublishUsecase) Retract(ctx context.Context, userID string, targetID int64) error {
	target, err := u.targets.GetByID(ctx, targetID)
	if err != nil {
		return fmt.Errorf("loading target %d: %w", targetID, err)
	}
	if target == nil {
		return ErrTargetNotFound
	}
	if target.UserID != userID {
		return ErrNotOwner
	}
	if target.PlatformVideoID == nil || *target.PlatformVideoID == "" {
		return ErrNothingToRetract
	}
	if err := u.dispatcher.Enqueue(Job{Kind: JobRemoval, Target: target}); err != nil {
		return fmt.Errorf("enqueueing removal: %w", err)
	}
	return nil
}

func (u *PublishUsecase) GetStatus(ctx context.Context, userID, videoID string) ([]dto.TargetStatusResponse, error) {
	targets, err := u.targets.ListByVideo(ctx, videoID, userID)
	if err != nil {
		return nil, fmt.Errorf("listing targets for video %s: %w", videoID, err)
	}
	out := make([]dto.TargetStatusResponse, 0, len(targets))
	for _, t := range targets {
		out = append(out, dto.NewTargetStatusResponse(t))
	}
	return out, nil
}

func (u *PublishUsecase) ProcessJobs(ctx context.Context, userID string, req *dto.PublishRequest) (int, error) {
	targets, err := u.targets.ListByVideo(ctx, req.Video.ID, userID)
	if err != nil {
		return 0, fmt.Errorf("listing targets for video %s: %w", req.Video.ID, err)
	}
	video := videoFromDescriptor(&req.Video)
	enqueued := 0
	for _, target := range targets {
		if target.Status != model.TargetPending {
			continue
		}
		if err := u.dispatcher.Enqueue(Job{Kind: JobPublish, Target: target, Video: video}); err != nil {
			logger.GetLogger().WithField("target_id", target.ID).WithField("error", err).
				Warn("Could not re-enqueue pending target")
			continue
		}
		enqueued++
	}
	return enqueued, nil
}

func (u *PublishUsecase) Platforms() []string {
	return u.registry.Platforms()
}

// resolveDestination falls back to the credential's connected page/board when
// the request does not pick one, reading through the cache so repeated
// publishes skip the credential lookup.
func (u *PublishUsecase) resolveDestination(ctx context.Context, userID, channelID, platform string) string {
	if u.destinations != nil {
		if dest, err := u.destinations.Get(ctx, userID, channelID, platform); err == nil && dest.ID != "" {
			return dest.ID
		}
	}
	cred, err := u.creds.GetCredential(ctx, userID, channelID, platform)
	if err != nil || cred == nil || cred.PageID == nil || *cred.PageID == "" {
		return ""
	}
	dest := &cache.Destination{ID: *cred.PageID}
	if cred.PageName != nil {
		dest.Name = *cred.PageName
	}
	if cred.PageToken != nil {
		dest.Token = *cred.PageToken
	}
	if u.destinations != nil {
		u.destinations.Set(ctx, userID, channelID, platform, dest)
	}
	return dest.ID
}

func videoFromDescriptor(v *dto.VideoDescriptor) *model.Video {
	return &model.Video{
		ID:              v.ID,
		FilePath:        v.FilePath,
		Title:           v.Title,
		Description:     v.Description,
		DurationSeconds: v.DurationSeconds,
		MimeType:        v.MimeType,
	}
}
