package repository

import (
	"context"
	"time"

	"crosspost/domain/model"
)

// ICredential is the credential store: one active token set per
// (user, channel, platform).
type ICredential interface {
	GetCredential(ctx context.Context, userID, channelID, platform string) (*model.Credential, error)
	UpsertCredential(ctx context.Context, cred *model.Credential) error
	// RotateToken persists a refreshed token set optimistically: the update
	// only applies while the stored expiry still matches prevExpiry, so
	// concurrent refreshes converge without locking. Returns false when the
	// row moved underneath us (another refresh already won).
	RotateToken(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt, prevExpiry *time.Time) (bool, error)
	DeleteCredential(ctx context.Context, userID, channelID, platform string) error
}
