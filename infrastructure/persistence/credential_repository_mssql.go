package persistence

import (
	"context"
	"database/sql"
	"time"

	"crosspost/domain/model"
)

// CredentialRepositoryMSSQL mirrors CredentialRepository for Azure SQL.
type CredentialRepositoryMSSQL struct{ db *sql.DB }

func NewCredentialRepositoryMSSQL(db *sql.DB) *CredentialRepositoryMSSQL {
	return &CredentialRepositoryMSSQL{db: db}
}

func (r *CredentialRepositoryMSSQL) UpsertCredential(ctx context.Context, c *model.Credential) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	var exp sql.NullTime
	if c.ExpiresAt != nil {
		exp.Valid = true
		exp.Time = *c.ExpiresAt
	}
	toNullString := func(p *string) sql.NullString {
		if p == nil {
			return sql.NullString{}
		}
		return sql.NullString{Valid: true, String: *p}
	}
	q := `MERGE dbo.[platform_credentials] AS target
USING (VALUES (@p1, @p2, @p3)) AS src(user_id, channel_id, platform)
ON target.user_id = src.user_id AND target.channel_id = src.channel_id AND target.platform = src.platform
WHEN MATCHED THEN UPDATE SET
    access_token=@p4,
    refresh_token=@p5,
    expires_at=@p6,
    scopes=@p7,
    page_id=@p8,
    page_name=@p9,
    page_token=@p10,
    token_type=@p11,
    updated_at=@p13
WHEN NOT MATCHED THEN
    INSERT (user_id, channel_id, platform, access_token, refresh_token, expires_at, scopes, page_id, page_name, page_token, token_type, created_at, updated_at)
    VALUES (@p1,@p2,@p3,@p4,@p5,@p6,@p7,@p8,@p9,@p10,@p11,@p12,@p13);`
	_, err := r.db.ExecContext(ctx, q,
		c.UserID, c.ChannelID, c.Platform,
		c.AccessToken, c.RefreshToken, exp, c.Scopes,
		toNullString(c.PageID), toNullString(c.PageName), toNullString(c.PageToken), toNullString(c.TokenType),
		c.CreatedAt, c.UpdatedAt,
	)
	return err
}

func (r *CredentialRepositoryMSSQL) GetCredential(ctx context.Context, userID, channelID, platform string) (*model.Credential, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+credentialColumns+` FROM dbo.[platform_credentials] WHERE user_id=@p1 AND channel_id=@p2 AND platform=@p3`,
		userID, channelID, platform)
	c, err := scanCredential(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

func (r *CredentialRepositoryMSSQL) RotateToken(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt, prevExpiry *time.Time) (bool, error) {
	var res sql.Result
	var err error
	if prevExpiry == nil {
		res, err = r.db.ExecContext(ctx,
			`UPDATE dbo.[platform_credentials] SET access_token=@p1, refresh_token=@p2, expires_at=@p3, updated_at=@p4 WHERE id=@p5 AND expires_at IS NULL`,
			accessToken, refreshToken, expiresAt, time.Now().UTC(), id)
	} else {
		res, err = r.db.ExecContext(ctx,
			`UPDATE dbo.[platform_credentials] SET access_token=@p1, refresh_token=@p2, expires_at=@p3, updated_at=@p4 WHERE id=@p5 AND expires_at=@p6`,
			accessToken, refreshToken, expiresAt, time.Now().UTC(), id, *prevExpiry)
	}
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *CredentialRepositoryMSSQL) DeleteCredential(ctx context.Context, userID, channelID, platform string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM dbo.[platform_credentials] WHERE user_id=@p1 AND channel_id=@p2 AND platform=@p3`,
		userID, channelID, platform)
	return err
}
