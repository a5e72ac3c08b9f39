package sessionkit

import (
	"context"
	"time"
)

// User is the account record referenced by the session manager. RefreshToken
// holds the single currently-valid refresh token, or is empty when the user
// is logged out.
type User struct {
	ID            string
	Username      string
	Email         string
	FullName      string
	AvatarURL     string
	CoverImageURL string
	PasswordHash  string
	RefreshToken  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Sanitized returns a copy of the user without credential or session fields.
func (user *User) Sanitized() *User {
	if user == nil {
		return nil
	}
	clone := *user
	clone.PasswordHash = ""
	clone.RefreshToken = ""
	return &clone
}

// UserStore persists and retrieves application users.
//
// SwapRefreshToken is the single atomic update the rotation invariant relies
// on: it must replace the stored refresh token only when the stored value
// still equals previousToken, and return ErrRefreshStale otherwise.
type UserStore interface {
	Create(ctx context.Context, user *User) error
	FindByIdentifier(ctx context.Context, identifier string) (*User, error)
	FindByID(ctx context.Context, userID string) (*User, error)
	SetRefreshToken(ctx context.Context, userID string, token string) error
	SwapRefreshToken(ctx context.Context, userID string, previousToken string, nextToken string) error
	ClearRefreshToken(ctx context.Context, userID string) error
	UpdatePasswordHash(ctx context.Context, userID string, passwordHash string) error
	UpdateProfile(ctx context.Context, userID string, fullName string, email string) (*User, error)
	SetAvatarURL(ctx context.Context, userID string, avatarURL string) (*User, error)
	SetCoverImageURL(ctx context.Context, userID string, coverImageURL string) (*User, error)
}
