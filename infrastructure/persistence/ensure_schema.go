package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// EnsurePublishSchema creates the target and credential tables when missing
// and adds newer columns conditionally. Safe to call at startup.
func EnsurePublishSchema(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ddls := []string{
		`CREATE TABLE IF NOT EXISTS publish_targets (
			id BIGSERIAL PRIMARY KEY,
			video_id TEXT NOT NULL,
			platform TEXT NOT NULL,
			user_id TEXT NOT NULL,
			channel_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			error_message TEXT,
			platform_video_id TEXT,
			platform_url TEXT,
			destination_id TEXT,
			publish_at TIMESTAMPTZ,
			advanced_options JSONB,
			attempt_count INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS ix_publish_targets_video_user ON publish_targets (video_id, user_id)`,
		`CREATE TABLE IF NOT EXISTS platform_credentials (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			channel_id TEXT NOT NULL DEFAULT '',
			platform TEXT NOT NULL,
			access_token TEXT NOT NULL,
			refresh_token TEXT NOT NULL DEFAULT '',
			expires_at TIMESTAMPTZ,
			scopes TEXT NOT NULL DEFAULT '',
			page_id TEXT,
			page_name TEXT,
			page_token TEXT,
			token_type TEXT,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			UNIQUE (user_id, channel_id, platform)
		)`,
	}
	for _, ddl := range ddls {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("ensuring publish schema failed: %w", err)
		}
	}

	// Columns added after the initial schema shipped.
	checks := []struct {
		table  string
		column string
		ddl    string
	}{
		{"publish_targets", "destination_id", "ALTER TABLE publish_targets ADD COLUMN destination_id TEXT"},
		{"publish_targets", "publish_at", "ALTER TABLE publish_targets ADD COLUMN publish_at TIMESTAMPTZ"},
		{"platform_credentials", "page_token", "ALTER TABLE platform_credentials ADD COLUMN page_token TEXT"},
	}
	for _, c := range checks {
		exists, err := columnExists(ctx, db, c.table, c.column)
		if err != nil {
			return err
		}
		if !exists {
			if _, err := db.ExecContext(ctx, c.ddl); err != nil {
				return fmt.Errorf("adding column %s.%s failed: %w", c.table, c.column, err)
			}
		}
	}
	return nil
}

func columnExists(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	row := db.QueryRowContext(ctx, `SELECT 1 FROM information_schema.columns WHERE table_name=$1 AND column_name=$2`, table, column)
	var one int
	if err := row.Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
