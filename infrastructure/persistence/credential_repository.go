package persistence

import (
	"context"
	"database/sql"
	"time"

	"crosspost/domain/model"
)

// CredentialRepository implements the credential store on PostgreSQL.
type CredentialRepository struct{ db *sql.DB }

func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

const credentialColumns = `id, user_id, channel_id, platform, access_token, refresh_token, expires_at, scopes, page_id, page_name, page_token, token_type, created_at, updated_at`

func (r *CredentialRepository) UpsertCredential(ctx context.Context, c *model.Credential) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	q := `INSERT INTO platform_credentials (user_id, channel_id, platform, access_token, refresh_token, expires_at, scopes, page_id, page_name, page_token, token_type, created_at, updated_at)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	      ON CONFLICT (user_id, channel_id, platform) DO UPDATE SET
	        access_token=EXCLUDED.access_token,
	        refresh_token=EXCLUDED.refresh_token,
	        expires_at=EXCLUDED.expires_at,
	        scopes=EXCLUDED.scopes,
	        page_id=EXCLUDED.page_id,
	        page_name=EXCLUDED.page_name,
	        page_token=EXCLUDED.page_token,
	        token_type=EXCLUDED.token_type,
	        updated_at=EXCLUDED.updated_at`
	_, err := r.db.ExecContext(ctx, q, c.UserID, c.ChannelID, c.Platform, c.AccessToken, c.RefreshToken, c.ExpiresAt, c.Scopes, c.PageID, c.PageName, c.PageToken, c.TokenType, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r *CredentialRepository) GetCredential(ctx context.Context, userID, channelID, platform string) (*model.Credential, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+credentialColumns+` FROM platform_credentials WHERE user_id=$1 AND channel_id=$2 AND platform=$3`,
		userID, channelID, platform)
	c, err := scanCredential(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// RotateToken persists a refreshed token set only while the stored expiry
// still matches what the caller read. Concurrent refreshes race harmlessly:
// the loser's update affects zero rows.
func (r *CredentialRepository) RotateToken(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt, prevExpiry *time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE platform_credentials SET access_token=$1, refresh_token=$2, expires_at=$3, updated_at=$4 WHERE id=$5 AND expires_at IS NOT DISTINCT FROM $6`,
		accessToken, refreshToken, expiresAt, time.Now().UTC(), id, prevExpiry)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *CredentialRepository) DeleteCredential(ctx context.Context, userID, channelID, platform string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM platform_credentials WHERE user_id=$1 AND channel_id=$2 AND platform=$3`,
		userID, channelID, platform)
	return err
}

func scanCredential(row rowScanner) (*model.Credential, error) {
	c := &model.Credential{}
	var exp sql.NullTime
	var pageID, pageName, pageToken, tokenType sql.NullString
	if err := row.Scan(&c.ID, &c.UserID, &c.ChannelID, &c.Platform, &c.AccessToken, &c.RefreshToken, &exp, &c.Scopes, &pageID, &pageName, &pageToken, &tokenType, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if exp.Valid {
		c.ExpiresAt = &exp.Time
	}
	if pageID.Valid {
		v := pageID.String
		c.PageID = &v
	}
	if pageName.Valid {
		v := pageName.String
		c.PageName = &v
	}
	if pageToken.Valid {
		v := pageToken.String
		c.PageToken = &v
	}
	if tokenType.Valid {
		v := tokenType.String
		c.TokenType = &v
	}
	return c, nil
}
