package repository

import (
	"context"

	"crosspost/domain/model"
)

// ITarget persists publish targets and their guarded state transitions.
type ITarget interface {
	// CreateTargets inserts one fresh pending target per platform entry and
	// returns the created rows. A republish never reuses an earlier row: a
	// terminal target is history, a new request gets a new target.
	CreateTargets(ctx context.Context, targets []*model.Target) ([]*model.Target, error)
	GetByID(ctx context.Context, id int64) (*model.Target, error)
	ListByVideo(ctx context.Context, videoID, userID string) ([]*model.Target, error)

	// MarkProcessing transitions pending->processing and bumps the attempt
	// counter. Returns false when the target was not pending or processing.
	MarkProcessing(ctx context.Context, id int64) (bool, error)
	// MarkSuccess writes the terminal success outcome. Guarded: only applies
	// while the target is processing; returns false otherwise so the caller
	// can log the invariant violation instead of overwriting.
	MarkSuccess(ctx context.Context, id int64, platformVideoID, platformURL string) (bool, error)
	// MarkFailed writes the terminal failure outcome under the same guard.
	MarkFailed(ctx context.Context, id int64, message string) (bool, error)
}
