package storepg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/viewtube/viewtube/internal/store"
)

// PostgresVideoStore persists video metadata in PostgreSQL through pgx.
type PostgresVideoStore struct {
	pool *pgxpool.Pool
}

// NewPostgresVideoStore constructs a Postgres-backed video store.
func NewPostgresVideoStore(pool *pgxpool.Pool) *PostgresVideoStore {
	return &PostgresVideoStore{pool: pool}
}

const videoColumns = `id, owner_id, title, description, video_url, thumbnail_url, duration_seconds, views, published, created_at, updated_at`

func scanVideo(row pgx.Row) (*store.Video, error) {
	var video store.Video
	err := row.Scan(&video.ID, &video.OwnerID, &video.Title, &video.Description,
		&video.VideoURL, &video.ThumbnailURL, &video.DurationSeconds,
		&video.Views, &video.Published, &video.CreatedAt, &video.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("storepg.video.scan: %w", store.ErrVideoNotFound)
		}
		return nil, fmt.Errorf("storepg.video.scan: %w", err)
	}
	return &video, nil
}

// CreateVideo inserts a new video metadata row.
func (videoStore *PostgresVideoStore) CreateVideo(ctx context.Context, video *store.Video) error {
	now := time.Now().UTC()
	_, execErr := videoStore.pool.Exec(ctx, `
INSERT INTO videos (id, owner_id, title, description, video_url, thumbnail_url, duration_seconds, views, published, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
`, video.ID, video.OwnerID, video.Title, video.Description, video.VideoURL,
		video.ThumbnailURL, video.DurationSeconds, video.Views, video.Published, now)
	if execErr != nil {
		return fmt.Errorf("storepg.video.create: %w", execErr)
	}
	return nil
}

// GetVideo loads one video by id.
func (videoStore *PostgresVideoStore) GetVideo(ctx context.Context, videoID string) (*store.Video, error) {
	row := videoStore.pool.QueryRow(ctx, `
SELECT `+videoColumns+` FROM videos WHERE id = $1
`, videoID)
	return scanVideo(row)
}

// ListVideosByOwner returns the owner's videos, newest first.
func (videoStore *PostgresVideoStore) ListVideosByOwner(ctx context.Context, ownerID string) ([]*store.Video, error) {
	rows, queryErr := videoStore.pool.Query(ctx, `
SELECT `+videoColumns+` FROM videos WHERE owner_id = $1 ORDER BY created_at DESC
`, ownerID)
	if queryErr != nil {
		return nil, fmt.Errorf("storepg.video.list: %w", queryErr)
	}
	defer rows.Close()

	videos := make([]*store.Video, 0)
	for rows.Next() {
		video, scanErr := scanVideo(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		videos = append(videos, video)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("storepg.video.list: %w", rowsErr)
	}
	return videos, nil
}

// SetPublished toggles the publish flag and returns the updated video.
func (videoStore *PostgresVideoStore) SetPublished(ctx context.Context, videoID string, published bool) (*store.Video, error) {
	commandTag, execErr := videoStore.pool.Exec(ctx, `
UPDATE videos SET published = $2, updated_at = now() WHERE id = $1
`, videoID, published)
	if execErr != nil {
		return nil, fmt.Errorf("storepg.video.publish: %w", execErr)
	}
	if commandTag.RowsAffected() == 0 {
		return nil, fmt.Errorf("storepg.video.publish: %w", store.ErrVideoNotFound)
	}
	return videoStore.GetVideo(ctx, videoID)
}

// IncrementViews bumps the view counter atomically in the database.
func (videoStore *PostgresVideoStore) IncrementViews(ctx context.Context, videoID string) error {
	commandTag, execErr := videoStore.pool.Exec(ctx, `
UPDATE videos SET views = views + 1, updated_at = now() WHERE id = $1
`, videoID)
	if execErr != nil {
		return fmt.Errorf("storepg.video.views: %w", execErr)
	}
	if commandTag.RowsAffected() == 0 {
		return fmt.Errorf("storepg.video.views: %w", store.ErrVideoNotFound)
	}
	return nil
}
