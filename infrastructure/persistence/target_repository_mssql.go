package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"crosspost/domain/model"
)

// TargetRepositoryMSSQL mirrors TargetRepository for Azure SQL / SQL Server.
type TargetRepositoryMSSQL struct{ db *sql.DB }

func NewTargetRepositoryMSSQL(db *sql.DB) *TargetRepositoryMSSQL {
	return &TargetRepositoryMSSQL{db: db}
}

// EnsurePublishSchemaMSSQL creates the publish tables for SQL Server if they
// do not exist.
func EnsurePublishSchemaMSSQL(db *sql.DB) error {
	ddl := `IF NOT EXISTS (SELECT * FROM sys.objects WHERE object_id = OBJECT_ID(N'dbo.publish_targets') AND type in (N'U'))
BEGIN
    CREATE TABLE dbo.[publish_targets] (
        id BIGINT IDENTITY(1,1) PRIMARY KEY,
        video_id NVARCHAR(128) NOT NULL,
        platform NVARCHAR(32) NOT NULL,
        user_id NVARCHAR(128) NOT NULL,
        channel_id NVARCHAR(128) NOT NULL DEFAULT '',
        status NVARCHAR(16) NOT NULL DEFAULT 'pending',
        error_message NVARCHAR(MAX) NULL,
        platform_video_id NVARCHAR(255) NULL,
        platform_url NVARCHAR(1024) NULL,
        destination_id NVARCHAR(128) NULL,
        publish_at DATETIME2 NULL,
        advanced_options NVARCHAR(MAX) NULL,
        attempt_count INT NOT NULL DEFAULT 0,
        created_at DATETIME2 NOT NULL,
        updated_at DATETIME2 NOT NULL
    );
    CREATE INDEX IX_publish_targets_video_user ON dbo.[publish_targets](video_id, user_id);
END
IF NOT EXISTS (SELECT * FROM sys.objects WHERE object_id = OBJECT_ID(N'dbo.platform_credentials') AND type in (N'U'))
BEGIN
    CREATE TABLE dbo.[platform_credentials] (
        id BIGINT IDENTITY(1,1) PRIMARY KEY,
        user_id NVARCHAR(128) NOT NULL,
        channel_id NVARCHAR(128) NOT NULL DEFAULT '',
        platform NVARCHAR(32) NOT NULL,
        access_token NVARCHAR(MAX) NOT NULL,
        refresh_token NVARCHAR(MAX) NOT NULL DEFAULT '',
        expires_at DATETIME2 NULL,
        scopes NVARCHAR(MAX) NOT NULL DEFAULT '',
        page_id NVARCHAR(128) NULL,
        page_name NVARCHAR(255) NULL,
        page_token NVARCHAR(MAX) NULL,
        token_type NVARCHAR(32) NULL,
        created_at DATETIME2 NOT NULL,
        updated_at DATETIME2 NOT NULL
    );
    CREATE UNIQUE INDEX UX_platform_credentials_user_channel_platform ON dbo.[platform_credentials](user_id, channel_id, platform);
END`
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("create publish schema (mssql): %w", err)
	}
	return nil
}

func (r *TargetRepositoryMSSQL) CreateTargets(ctx context.Context, targets []*model.Target) ([]*model.Target, error) {
	out := make([]*model.Target, 0, len(targets))
	now := time.Now().UTC()
	for _, t := range targets {
		t.Platform = strings.ToLower(t.Platform)
		var opts sql.NullString
		if t.AdvancedOptions != nil {
			b, err := json.Marshal(t.AdvancedOptions)
			if err != nil {
				return nil, err
			}
			opts.Valid = true
			opts.String = string(b)
		}
		// A republish inserts a fresh row; earlier rows keep their terminal
		// outcome as history.
		q := `INSERT INTO dbo.[publish_targets] (video_id, platform, user_id, channel_id, status, destination_id, publish_at, advanced_options, attempt_count, created_at, updated_at)
OUTPUT INSERTED.id
VALUES (@p1,@p2,@p3,@p4,'pending',@p5,@p6,@p7,0,@p8,@p8)`
		var id int64
		if err := r.db.QueryRowContext(ctx, q, t.VideoID, t.Platform, t.UserID, t.ChannelID, t.DestinationID, t.PublishAt, opts, now).Scan(&id); err != nil {
			return nil, err
		}
		row := r.db.QueryRowContext(ctx, `SELECT `+targetColumns+` FROM dbo.[publish_targets] WHERE id=@p1`, id)
		rec, err := scanTarget(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *TargetRepositoryMSSQL) GetByID(ctx context.Context, id int64) (*model.Target, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+targetColumns+` FROM dbo.[publish_targets] WHERE id=@p1`, id)
	t, err := scanTarget(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

func (r *TargetRepositoryMSSQL) ListByVideo(ctx context.Context, videoID, userID string) ([]*model.Target, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+targetColumns+` FROM dbo.[publish_targets] WHERE video_id=@p1 AND user_id=@p2 ORDER BY platform, id`,
		videoID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*model.Target
	for rows.Next() {
		rec, err := scanTarget(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

func (r *TargetRepositoryMSSQL) MarkProcessing(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE dbo.[publish_targets] SET status='processing', attempt_count=attempt_count+1, updated_at=@p1 WHERE id=@p2 AND status IN ('pending','processing')`,
		time.Now().UTC(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *TargetRepositoryMSSQL) MarkSuccess(ctx context.Context, id int64, platformVideoID, platformURL string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE dbo.[publish_targets] SET status='success', platform_video_id=@p1, platform_url=@p2, error_message=NULL, updated_at=@p3 WHERE id=@p4 AND status='processing'`,
		platformVideoID, platformURL, time.Now().UTC(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *TargetRepositoryMSSQL) MarkFailed(ctx context.Context, id int64, message string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE dbo.[publish_targets] SET status='failed', error_message=@p1, updated_at=@p2 WHERE id=@p3 AND status='processing'`,
		message, time.Now().UTC(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
