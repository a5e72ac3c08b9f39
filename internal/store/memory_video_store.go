package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryVideoStore is an in-memory VideoStore for tests and local dev.
type MemoryVideoStore struct {
	mutex  sync.Mutex
	videos map[string]*Video
}

// NewMemoryVideoStore creates an empty in-memory video store.
func NewMemoryVideoStore() *MemoryVideoStore {
	return &MemoryVideoStore{videos: make(map[string]*Video)}
}

// CreateVideo inserts a new video record.
func (store *MemoryVideoStore) CreateVideo(ctx context.Context, video *Video) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	record := *video
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now
	store.videos[record.ID] = &record
	return nil
}

// GetVideo loads one video by id.
func (store *MemoryVideoStore) GetVideo(ctx context.Context, videoID string) (*Video, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.cloneLocked(videoID)
}

// ListVideosByOwner returns the owner's videos, newest first.
func (store *MemoryVideoStore) ListVideosByOwner(ctx context.Context, ownerID string) ([]*Video, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	videos := make([]*Video, 0)
	for _, record := range store.videos {
		if record.OwnerID != ownerID {
			continue
		}
		clone := *record
		videos = append(videos, &clone)
	}
	sort.Slice(videos, func(left, right int) bool {
		return videos[left].CreatedAt.After(videos[right].CreatedAt)
	})
	return videos, nil
}

// SetPublished toggles the publish flag and returns the updated video.
func (store *MemoryVideoStore) SetPublished(ctx context.Context, videoID string, published bool) (*Video, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	record, ok := store.videos[videoID]
	if !ok {
		return nil, fmt.Errorf("memory_video_store.publish: %w", ErrVideoNotFound)
	}
	record.Published = published
	record.UpdatedAt = time.Now().UTC()
	return store.cloneLocked(videoID)
}

// IncrementViews bumps the view counter.
func (store *MemoryVideoStore) IncrementViews(ctx context.Context, videoID string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	record, ok := store.videos[videoID]
	if !ok {
		return fmt.Errorf("memory_video_store.views: %w", ErrVideoNotFound)
	}
	record.Views++
	record.UpdatedAt = time.Now().UTC()
	return nil
}

func (store *MemoryVideoStore) cloneLocked(videoID string) (*Video, error) {
	record, ok := store.videos[videoID]
	if !ok {
		return nil, fmt.Errorf("memory_video_store.get: %w", ErrVideoNotFound)
	}
	clone := *record
	return &clone, nil
}
