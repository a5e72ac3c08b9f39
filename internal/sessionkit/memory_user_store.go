package sessionkit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MemoryUserStore is an in-memory store intended for tests and local dev.
type MemoryUserStore struct {
	mutex      sync.Mutex
	byID       map[string]*User
	byUsername map[string]string
	byEmail    map[string]string
}

// NewMemoryUserStore creates an empty in-memory user store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		byID:       make(map[string]*User),
		byUsername: make(map[string]string),
		byEmail:    make(map[string]string),
	}
}

// Create inserts a new user, enforcing username and email uniqueness.
func (store *MemoryUserStore) Create(ctx context.Context, user *User) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	email := strings.ToLower(strings.TrimSpace(user.Email))
	if _, exists := store.byUsername[username]; exists {
		return fmt.Errorf("memory_user_store.create: %w", ErrDuplicateUser)
	}
	if _, exists := store.byEmail[email]; exists {
		return fmt.Errorf("memory_user_store.create: %w", ErrDuplicateUser)
	}

	record := *user
	record.Username = username
	record.Email = email
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now
	store.byID[record.ID] = &record
	store.byUsername[username] = record.ID
	store.byEmail[email] = record.ID
	return nil
}

// FindByIdentifier looks a user up by username or email, case-folded.
func (store *MemoryUserStore) FindByIdentifier(ctx context.Context, identifier string) (*User, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	folded := strings.ToLower(strings.TrimSpace(identifier))
	if userID, ok := store.byUsername[folded]; ok {
		return store.cloneLocked(userID)
	}
	if userID, ok := store.byEmail[folded]; ok {
		return store.cloneLocked(userID)
	}
	return nil, fmt.Errorf("memory_user_store.find_by_identifier: %w", ErrUserNotFound)
}

// FindByID looks a user up by id.
func (store *MemoryUserStore) FindByID(ctx context.Context, userID string) (*User, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.cloneLocked(userID)
}

// SetRefreshToken overwrites the stored refresh token unconditionally.
func (store *MemoryUserStore) SetRefreshToken(ctx context.Context, userID string, token string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	record, ok := store.byID[userID]
	if !ok {
		return fmt.Errorf("memory_user_store.set_refresh_token: %w", ErrUserNotFound)
	}
	record.RefreshToken = token
	record.UpdatedAt = time.Now().UTC()
	return nil
}

// SwapRefreshToken replaces the stored refresh token only if it still equals
// previousToken. A concurrent rotation that got there first yields
// ErrRefreshStale.
func (store *MemoryUserStore) SwapRefreshToken(ctx context.Context, userID string, previousToken string, nextToken string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	record, ok := store.byID[userID]
	if !ok {
		return fmt.Errorf("memory_user_store.swap_refresh_token: %w", ErrUserNotFound)
	}
	if record.RefreshToken == "" || record.RefreshToken != previousToken {
		return fmt.Errorf("memory_user_store.swap_refresh_token: %w", ErrRefreshStale)
	}
	record.RefreshToken = nextToken
	record.UpdatedAt = time.Now().UTC()
	return nil
}

// ClearRefreshToken removes the stored refresh token. Clearing an absent
// token is a no-op success.
func (store *MemoryUserStore) ClearRefreshToken(ctx context.Context, userID string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	record, ok := store.byID[userID]
	if !ok {
		return nil
	}
	record.RefreshToken = ""
	record.UpdatedAt = time.Now().UTC()
	return nil
}

// UpdatePasswordHash replaces the stored credential digest.
func (store *MemoryUserStore) UpdatePasswordHash(ctx context.Context, userID string, passwordHash string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	record, ok := store.byID[userID]
	if !ok {
		return fmt.Errorf("memory_user_store.update_password_hash: %w", ErrUserNotFound)
	}
	record.PasswordHash = passwordHash
	record.UpdatedAt = time.Now().UTC()
	return nil
}

// UpdateProfile replaces full name and email and returns the updated record.
func (store *MemoryUserStore) UpdateProfile(ctx context.Context, userID string, fullName string, email string) (*User, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	record, ok := store.byID[userID]
	if !ok {
		return nil, fmt.Errorf("memory_user_store.update_profile: %w", ErrUserNotFound)
	}
	folded := strings.ToLower(strings.TrimSpace(email))
	if existingID, exists := store.byEmail[folded]; exists && existingID != userID {
		return nil, fmt.Errorf("memory_user_store.update_profile: %w", ErrDuplicateUser)
	}
	delete(store.byEmail, record.Email)
	record.FullName = strings.TrimSpace(fullName)
	record.Email = folded
	record.UpdatedAt = time.Now().UTC()
	store.byEmail[folded] = userID
	return store.cloneLocked(userID)
}

// SetAvatarURL stores the uploaded avatar location.
func (store *MemoryUserStore) SetAvatarURL(ctx context.Context, userID string, avatarURL string) (*User, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	record, ok := store.byID[userID]
	if !ok {
		return nil, fmt.Errorf("memory_user_store.set_avatar_url: %w", ErrUserNotFound)
	}
	record.AvatarURL = avatarURL
	record.UpdatedAt = time.Now().UTC()
	return store.cloneLocked(userID)
}

// SetCoverImageURL stores the uploaded cover image location.
func (store *MemoryUserStore) SetCoverImageURL(ctx context.Context, userID string, coverImageURL string) (*User, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	record, ok := store.byID[userID]
	if !ok {
		return nil, fmt.Errorf("memory_user_store.set_cover_image_url: %w", ErrUserNotFound)
	}
	record.CoverImageURL = coverImageURL
	record.UpdatedAt = time.Now().UTC()
	return store.cloneLocked(userID)
}

func (store *MemoryUserStore) cloneLocked(userID string) (*User, error) {
	record, ok := store.byID[userID]
	if !ok {
		return nil, fmt.Errorf("memory_user_store.find_by_id: %w", ErrUserNotFound)
	}
	clone := *record
	return &clone, nil
}
