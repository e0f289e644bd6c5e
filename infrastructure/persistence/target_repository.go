package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"crosspost/domain/model"
)

// TargetRepository implements publish target persistence on PostgreSQL.
type TargetRepository struct {
	db *sql.DB
}

func NewTargetRepository(db *sql.DB) *TargetRepository { return &TargetRepository{db: db} }

const targetColumns = `id, video_id, platform, user_id, channel_id, status, error_message, platform_video_id, platform_url, destination_id, publish_at, advanced_options, attempt_count, created_at, updated_at`

func (r *TargetRepository) CreateTargets(ctx context.Context, targets []*model.Target) ([]*model.Target, error) {
	out := make([]*model.Target, 0, len(targets))
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	now := time.Now().UTC()
	for _, t := range targets {
		t.Platform = strings.ToLower(t.Platform)
		var opts interface{}
		if t.AdvancedOptions != nil {
			var encoded []byte
			if encoded, err = json.Marshal(t.AdvancedOptions); err != nil {
				return nil, err
			}
			opts = encoded
		}
		// A republish inserts a fresh row; earlier rows keep their terminal
		// outcome as history.
		q := `INSERT INTO publish_targets (video_id, platform, user_id, channel_id, status, destination_id, publish_at, advanced_options, attempt_count, created_at, updated_at)
		      VALUES ($1,$2,$3,$4,'pending',$5,$6,$7,0,$8,$8)
		      RETURNING ` + targetColumns
		row := tx.QueryRowContext(ctx, q, t.VideoID, t.Platform, t.UserID, t.ChannelID, t.DestinationID, t.PublishAt, opts, now)
		rec, scanErr := scanTarget(row)
		if scanErr != nil {
			err = scanErr
			return nil, err
		}
		out = append(out, rec)
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *TargetRepository) GetByID(ctx context.Context, id int64) (*model.Target, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+targetColumns+` FROM publish_targets WHERE id=$1`, id)
	t, err := scanTarget(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

func (r *TargetRepository) ListByVideo(ctx context.Context, videoID, userID string) ([]*model.Target, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+targetColumns+` FROM publish_targets WHERE video_id=$1 AND user_id=$2 ORDER BY platform, id`, videoID, userID)
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

func (r *TargetRepository) MarkProcessing(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE publish_targets SET status='processing', attempt_count=attempt_count+1, updated_at=$1 WHERE id=$2 AND status IN ('pending','processing')`,
		time.Now().UTC(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// MarkSuccess applies the terminal outcome only while the target is still
// processing; a zero row count signals a conflicting terminal write.
func (r *TargetRepository) MarkSuccess(ctx context.Context, id int64, platformVideoID, platformURL string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE publish_targets SET status='success', platform_video_id=$1, platform_url=$2, error_message=NULL, updated_at=$3 WHERE id=$4 AND status='processing'`,
		platformVideoID, platformURL, time.Now().UTC(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *TargetRepository) MarkFailed(ctx context.Context, id int64, message string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE publish_targets SET status='failed', error_message=$1, updated_at=$2 WHERE id=$3 AND status='processing'`,
		message, time.Now().UTC(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTarget(row rowScanner) (*model.Target, error) {
	t := &model.Target{}
	var errMsg, platformVideoID, platformURL, destinationID sql.NullString
	var publishAt sql.NullTime
	var opts []byte
	if err := row.Scan(&t.ID, &t.VideoID, &t.Platform, &t.UserID, &t.ChannelID, &t.Status, &errMsg, &platformVideoID, &platformURL, &destinationID, &publishAt, &opts, &t.AttemptCount, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if errMsg.Valid {
		t.ErrorMessage = &errMsg.String
	}
	if platformVideoID.Valid {
		t.PlatformVideoID = &platformVideoID.String
	}
	if platformURL.Valid {
		t.PlatformURL = &platformURL.String
	}
	if destinationID.Valid {
		t.DestinationID = &destinationID.String
	}
	if publishAt.Valid {
		t.PublishAt = &publishAt.Time
	}
	if len(opts) > 0 {
		_ = json.Unmarshal(opts, &t.AdvancedOptions)
	}
	return t, nil
}
