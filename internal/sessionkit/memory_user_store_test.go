package sessionkit

import (
	"context"
	"errors"
	"testing"
)

func seedMemoryUser(t *testing.T, store *MemoryUserStore, id string, username string, email string) {
	t.Helper()
	createErr := store.Create(context.Background(), &User{
		ID:           id,
		Username:     username,
		Email:        email,
		FullName:     "Seed User",
		PasswordHash: "digest",
	})
	if createErr != nil {
		t.Fatalf("seed create error: %v", createErr)
	}
}

func TestMemoryUserStoreEnforcesUniqueness(t *testing.T) {
	t.Parallel()

	store := NewMemoryUserStore()
	seedMemoryUser(t, store, "u1", "alice", "alice@example.com")

	duplicateName := store.Create(context.Background(), &User{ID: "u2", Username: "ALICE", Email: "other@example.com"})
	if !errors.Is(duplicateName, ErrDuplicateUser) {
		t.Fatalf("expected ErrDuplicateUser for username, got %v", duplicateName)
	}
	duplicateEmail := store.Create(context.Background(), &User{ID: "u3", Username: "bob", Email: "Alice@Example.com"})
	if !errors.Is(duplicateEmail, ErrDuplicateUser) {
		t.Fatalf("expected ErrDuplicateUser for email, got %v", duplicateEmail)
	}
}

func TestMemoryUserStoreFindsByFoldedIdentifier(t *testing.T) {
	t.Parallel()

	store := NewMemoryUserStore()
	seedMemoryUser(t, store, "u1", "Alice", "Alice@Example.com")

	byUsername, usernameErr := store.FindByIdentifier(context.Background(), "  ALICE ")
	if usernameErr != nil || byUsername.ID != "u1" {
		t.Fatalf("expected lookup by folded username, got user=%v err=%v", byUsername, usernameErr)
	}
	byEmail, emailErr := store.FindByIdentifier(context.Background(), "alice@example.com")
	if emailErr != nil || byEmail.ID != "u1" {
		t.Fatalf("expected lookup by folded email, got user=%v err=%v", byEmail, emailErr)
	}
	if _, missingErr := store.FindByIdentifier(context.Background(), "unknown"); !errors.Is(missingErr, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", missingErr)
	}
}

func TestMemoryUserStoreSwapSemantics(t *testing.T) {
	t.Parallel()

	store := NewMemoryUserStore()
	seedMemoryUser(t, store, "u1", "alice", "alice@example.com")

	if swapErr := store.SwapRefreshToken(context.Background(), "u1", "anything", "next"); !errors.Is(swapErr, ErrRefreshStale) {
		t.Fatalf("swap against an empty slot must be stale, got %v", swapErr)
	}

	if setErr := store.SetRefreshToken(context.Background(), "u1", "token-a"); setErr != nil {
		t.Fatalf("set error: %v", setErr)
	}
	if swapErr := store.SwapRefreshToken(context.Background(), "u1", "token-b", "next"); !errors.Is(swapErr, ErrRefreshStale) {
		t.Fatalf("swap with mismatched previous token must be stale, got %v", swapErr)
	}
	if swapErr := store.SwapRefreshToken(context.Background(), "u1", "token-a", "token-b"); swapErr != nil {
		t.Fatalf("matching swap error: %v", swapErr)
	}

	user, findErr := store.FindByID(context.Background(), "u1")
	if findErr != nil {
		t.Fatalf("find error: %v", findErr)
	}
	if user.RefreshToken != "token-b" {
		t.Fatalf("expected token-b stored, got %q", user.RefreshToken)
	}
}

func TestMemoryUserStoreClearIsIdempotent(t *testing.T) {
	t.Parallel()

	store := NewMemoryUserStore()
	seedMemoryUser(t, store, "u1", "alice", "alice@example.com")

	if clearErr := store.ClearRefreshToken(context.Background(), "u1"); clearErr != nil {
		t.Fatalf("clear error: %v", clearErr)
	}
	if clearErr := store.ClearRefreshToken(context.Background(), "u1"); clearErr != nil {
		t.Fatalf("second clear error: %v", clearErr)
	}
	if clearErr := store.ClearRefreshToken(context.Background(), "missing"); clearErr != nil {
		t.Fatalf("clearing an unknown user must succeed, got %v", clearErr)
	}
}

func TestMemoryUserStoreUpdateProfileGuardsEmail(t *testing.T) {
	t.Parallel()

	store := NewMemoryUserStore()
	seedMemoryUser(t, store, "u1", "alice", "alice@example.com")
	seedMemoryUser(t, store, "u2", "bob", "bob@example.com")

	if _, updateErr := store.UpdateProfile(context.Background(), "u1", "Alice Example", "bob@example.com"); !errors.Is(updateErr, ErrDuplicateUser) {
		t.Fatalf("expected ErrDuplicateUser when taking another user's email, got %v", updateErr)
	}

	updated, updateErr := store.UpdateProfile(context.Background(), "u1", "Alice Renamed", "Alice.New@Example.com")
	if updateErr != nil {
		t.Fatalf("update error: %v", updateErr)
	}
	if updated.FullName != "Alice Renamed" || updated.Email != "alice.new@example.com" {
		t.Fatalf("unexpected updated profile: %+v", updated)
	}
	if relookup, relookupErr := store.FindByIdentifier(context.Background(), "alice.new@example.com"); relookupErr != nil || relookup.ID != "u1" {
		t.Fatalf("updated email must be findable, got user=%v err=%v", relookup, relookupErr)
	}
}

func TestMemoryUserStoreReturnsClones(t *testing.T) {
	t.Parallel()

	store := NewMemoryUserStore()
	seedMemoryUser(t, store, "u1", "alice", "alice@example.com")

	first, _ := store.FindByID(context.Background(), "u1")
	first.PasswordHash = "tampered"

	second, _ := store.FindByID(context.Background(), "u1")
	if second.PasswordHash != "digest" {
		t.Fatalf("mutating a returned user must not affect the store")
	}
}
