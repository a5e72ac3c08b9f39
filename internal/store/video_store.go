package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ErrVideoNotFound indicates no video matched the requested id.
var ErrVideoNotFound = errors.New("store.video_not_found")

// Video is the metadata record for one hosted video.
type Video struct {
	ID              string
	OwnerID         string
	Title           string
	Description     string
	VideoURL        string
	ThumbnailURL    string
	DurationSeconds int64
	Views           int64
	Published       bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// VideoStore persists video metadata.
type VideoStore interface {
	CreateVideo(ctx context.Context, video *Video) error
	GetVideo(ctx context.Context, videoID string) (*Video, error)
	ListVideosByOwner(ctx context.Context, ownerID string) ([]*Video, error)
	SetPublished(ctx context.Context, videoID string, published bool) (*Video, error)
	IncrementViews(ctx context.Context, videoID string) error
}

type videoRecord struct {
	ID              string `gorm:"column:id;primaryKey"`
	OwnerID         string `gorm:"column:owner_id;index;not null"`
	Title           string `gorm:"column:title;not null"`
	Description     string `gorm:"column:description;not null;default:''"`
	VideoURL        string `gorm:"column:video_url;not null"`
	ThumbnailURL    string `gorm:"column:thumbnail_url;not null"`
	DurationSeconds int64  `gorm:"column:duration_seconds;not null;default:0"`
	Views           int64  `gorm:"column:views;not null;default:0"`
	Published       bool   `gorm:"column:published;not null;default:true"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (videoRecord) TableName() string {
	return "videos"
}

func (record *videoRecord) toVideo() *Video {
	return &Video{
		ID:              record.ID,
		OwnerID:         record.OwnerID,
		Title:           record.Title,
		Description:     record.Description,
		VideoURL:        record.VideoURL,
		ThumbnailURL:    record.ThumbnailURL,
		DurationSeconds: record.DurationSeconds,
		Views:           record.Views,
		Published:       record.Published,
		CreatedAt:       record.CreatedAt,
		UpdatedAt:       record.UpdatedAt,
	}
}

func videoToRecord(video *Video) videoRecord {
	return videoRecord{
		ID:              video.ID,
		OwnerID:         video.OwnerID,
		Title:           video.Title,
		Description:     video.Description,
		VideoURL:        video.VideoURL,
		ThumbnailURL:    video.ThumbnailURL,
		DurationSeconds: video.DurationSeconds,
		Views:           video.Views,
		Published:       video.Published,
	}
}

// DatabaseVideoStore persists videos through the same GORM handle as the
// user store.
type DatabaseVideoStore struct {
	db          *gorm.DB
	driverLabel string
}

// NewDatabaseVideoStore builds a video store sharing the user store's
// connection; migration already ran when the user store opened.
func NewDatabaseVideoStore(users *DatabaseUserStore) *DatabaseVideoStore {
	return &DatabaseVideoStore{
		db:          users.DB(),
		driverLabel: users.Driver(),
	}
}

// CreateVideo inserts a new video metadata row.
func (store *DatabaseVideoStore) CreateVideo(ctx context.Context, video *Video) error {
	record := videoToRecord(video)
	if err := store.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("store.video.create.%s: %w", store.driverLabel, err)
	}
	return nil
}

// GetVideo loads one video by id.
func (store *DatabaseVideoStore) GetVideo(ctx context.Context, videoID string) (*Video, error) {
	var record videoRecord
	err := store.db.WithContext(ctx).Where("id = ?", videoID).Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("store.video.get.%s: %w", store.driverLabel, ErrVideoNotFound)
		}
		return nil, fmt.Errorf("store.video.get.%s: %w", store.driverLabel, err)
	}
	return record.toVideo(), nil
}

// ListVideosByOwner returns the owner's videos, newest first.
func (store *DatabaseVideoStore) ListVideosByOwner(ctx context.Context, ownerID string) ([]*Video, error) {
	var records []videoRecord
	err := store.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("store.video.list.%s: %w", store.driverLabel, err)
	}
	videos := make([]*Video, 0, len(records))
	for index := range records {
		videos = append(videos, records[index].toVideo())
	}
	return videos, nil
}

// SetPublished toggles the publish flag and returns the updated video.
func (store *DatabaseVideoStore) SetPublished(ctx context.Context, videoID string, published bool) (*Video, error) {
	result := store.db.WithContext(ctx).Model(&videoRecord{}).
		Where("id = ?", videoID).
		Update("published", published)
	if result.Error != nil {
		return nil, fmt.Errorf("store.video.publish.%s: %w", store.driverLabel, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("store.video.publish.%s: %w", store.driverLabel, ErrVideoNotFound)
	}
	return store.GetVideo(ctx, videoID)
}

// IncrementViews bumps the view counter atomically in the database.
func (store *DatabaseVideoStore) IncrementViews(ctx context.Context, videoID string) error {
	result := store.db.WithContext(ctx).Model(&videoRecord{}).
		Where("id = ?", videoID).
		Update("views", gorm.Expr("views + 1"))
	if result.Error != nil {
		return fmt.Errorf("store.video.views.%s: %w", store.driverLabel, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("store.video.views.%s: %w", store.driverLabel, ErrVideoNotFound)
	}
	return nil
}
