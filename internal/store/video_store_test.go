package store

import (
	"context"
	"errors"
	"testing"
)

func videoFixture(id string, ownerID string, title string) *Video {
	return &Video{
		ID:              id,
		OwnerID:         ownerID,
		Title:           title,
		VideoURL:        "https://cdn.example.com/" + id + ".mp4",
		ThumbnailURL:    "https://cdn.example.com/" + id + ".jpg",
		DurationSeconds: 90,
		Published:       true,
	}
}

func runVideoStoreSuite(t *testing.T, videos VideoStore) {
	t.Helper()
	ctx := context.Background()

	if createErr := videos.CreateVideo(ctx, videoFixture("v1", "owner-1", "First")); createErr != nil {
		t.Fatalf("create error: %v", createErr)
	}
	if createErr := videos.CreateVideo(ctx, videoFixture("v2", "owner-1", "Second")); createErr != nil {
		t.Fatalf("create error: %v", createErr)
	}
	if createErr := videos.CreateVideo(ctx, videoFixture("v3", "owner-2", "Foreign")); createErr != nil {
		t.Fatalf("create error: %v", createErr)
	}

	owned, listErr := videos.ListVideosByOwner(ctx, "owner-1")
	if listErr != nil {
		t.Fatalf("list error: %v", listErr)
	}
	if len(owned) != 2 {
		t.Fatalf("expected 2 owned videos, got %d", len(owned))
	}

	fetched, getErr := videos.GetVideo(ctx, "v1")
	if getErr != nil || fetched.Title != "First" {
		t.Fatalf("get failed: video=%v err=%v", fetched, getErr)
	}
	if _, missingErr := videos.GetVideo(ctx, "missing"); !errors.Is(missingErr, ErrVideoNotFound) {
		t.Fatalf("expected ErrVideoNotFound, got %v", missingErr)
	}

	if viewErr := videos.IncrementViews(ctx, "v1"); viewErr != nil {
		t.Fatalf("views error: %v", viewErr)
	}
	if viewErr := videos.IncrementViews(ctx, "v1"); viewErr != nil {
		t.Fatalf("views error: %v", viewErr)
	}
	counted, _ := videos.GetVideo(ctx, "v1")
	if counted.Views != 2 {
		t.Fatalf("expected 2 views, got %d", counted.Views)
	}
	if viewErr := videos.IncrementViews(ctx, "missing"); !errors.Is(viewErr, ErrVideoNotFound) {
		t.Fatalf("expected ErrVideoNotFound for missing video, got %v", viewErr)
	}

	unpublished, toggleErr := videos.SetPublished(ctx, "v1", false)
	if toggleErr != nil || unpublished.Published {
		t.Fatalf("unpublish failed: video=%v err=%v", unpublished, toggleErr)
	}
	republished, toggleErr := videos.SetPublished(ctx, "v1", true)
	if toggleErr != nil || !republished.Published {
		t.Fatalf("republish failed: video=%v err=%v", republished, toggleErr)
	}
	if _, toggleErr := videos.SetPublished(ctx, "missing", true); !errors.Is(toggleErr, ErrVideoNotFound) {
		t.Fatalf("expected ErrVideoNotFound, got %v", toggleErr)
	}
}

func TestMemoryVideoStore(t *testing.T) {
	runVideoStoreSuite(t, NewMemoryVideoStore())
}

func TestDatabaseVideoStoreSQLite(t *testing.T) {
	userStore, storeErr := NewDatabaseUserStore(context.Background(), "sqlite://"+t.TempDir()+"/videos.db")
	if storeErr != nil {
		t.Fatalf("failed to create store: %v", storeErr)
	}
	runVideoStoreSuite(t, NewDatabaseVideoStore(userStore))
}
