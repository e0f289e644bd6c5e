package usecase

import (
	"context"
	"fmt"
	"strings"

	"crosspost/domain/model"
	"crosspost/domain/repository"
	"crosspost/infrastructure/logger"
)

// MetadataEnhancer wraps the optional content-optimization collaborator.
// Enhancement is strictly best-effort: an error, panic, or absent inner
// enhancer falls back to templated text derived from the video itself, and a
// publish never fails because of it.
type MetadataEnhancer struct {
	inner repository.IMetadataEnhancer
}

func NewMetadataEnhancer(inner repository.IMetadataEnhancer) *MetadataEnhancer {
	return &MetadataEnhancer{inner: inner}
}

func (e *MetadataEnhancer) Enhance(ctx context.Context, video *model.Video) *model.EnhancedMetadata {
	if e.inner != nil {
		if enhanced := e.tryInner(ctx, video); enhanced != nil {
			return enhanced
		}
	}
	return fallbackMetadata(video)
}

func (e *MetadataEnhancer) tryInner(ctx context.Context, video *model.Video) (out *model.EnhancedMetadata) {
	defer func() {
		if r := recover(); r != nil {
			logger.GetLogger().WithField("video_id", video.ID).WithField("panic", r).
				Error("Metadata enhancer panicked - using fallback")
			out = nil
		}
	}()
	enhanced, err := e.inner.Enhance(ctx, video)
	if err != nil {
		logger.GetLogger().WithField("video_id", video.ID).WithField("error", err).
			Warn("Metadata enhancer failed - using fallback")
		return nil
	}
	if enhanced == nil || enhanced.Title == "" {
		return nil
	}
	return enhanced
}

func fallbackMetadata(video *model.Video) *model.EnhancedMetadata {
	title := strings.TrimSpace(video.Title)
	if title == "" {
		title = fmt.Sprintf("New video %s", video.ID)
	}
	description := strings.TrimSpace(video.Description)
	if description == "" {
		description = title
	}
	return &model.EnhancedMetadata{Title: title, Description: description}
}
