package sessionkit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TokenPair bundles a freshly minted access token and refresh token.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// RegisterParams carry the fields required to create an account.
type RegisterParams struct {
	Username string
	Email    string
	FullName string
	Password string
}

// Manager owns credential verification, token minting, refresh-token
// rotation, and the stored-vs-presented consistency check. At most one
// refresh token is live per user at any time.
type Manager struct {
	users   UserStore
	hasher  PasswordHasher
	config  ServerConfig
	logger  *zap.Logger
	metrics MetricsRecorder
	clock   Clock
}

// NewManager constructs a Manager. Logger, metrics, and clock fall back to
// no-op or system defaults when nil.
func NewManager(users UserStore, hasher PasswordHasher, configuration ServerConfig, logger *zap.Logger, metrics MetricsRecorder, clock Clock) *Manager {
	if users == nil {
		panic("user store is required")
	}
	if hasher == nil {
		panic("password hasher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewCounterMetrics()
	}
	if clock == nil {
		clock = NewSystemClock()
	}
	return &Manager{
		users:   users,
		hasher:  hasher,
		config:  configuration,
		logger:  logger,
		metrics: metrics,
		clock:   clock,
	}
}

// Register validates and creates a new account. Hashing happens here, once,
// at credential-set time.
func (manager *Manager) Register(ctx context.Context, params RegisterParams) (*User, error) {
	username := strings.ToLower(strings.TrimSpace(params.Username))
	email := strings.ToLower(strings.TrimSpace(params.Email))
	fullName := strings.TrimSpace(params.FullName)
	if username == "" || email == "" || fullName == "" || params.Password == "" {
		return nil, fmt.Errorf("session.register: %w", ErrValidation)
	}

	passwordHash, hashErr := manager.hasher.Hash(params.Password)
	if hashErr != nil {
		return nil, fmt.Errorf("session.register: %w", hashErr)
	}

	user := &User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		FullName:     fullName,
		PasswordHash: passwordHash,
	}
	if createErr := manager.users.Create(ctx, user); createErr != nil {
		return nil, createErr
	}
	manager.metrics.Increment("session.register.success")
	manager.logger.Info("user registered",
		zap.String("code", "session.register.success"),
		zap.String("user_id", user.ID))
	return user.Sanitized(), nil
}

// Authenticate verifies the identifier/password pair and, on success, issues
// a fresh token pair. The new refresh token overwrites any prior value, so a
// second login invalidates the first session.
func (manager *Manager) Authenticate(ctx context.Context, identifier string, password string) (*User, TokenPair, error) {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" || password == "" {
		return nil, TokenPair{}, fmt.Errorf("session.authenticate: %w", ErrValidation)
	}

	user, findErr := manager.users.FindByIdentifier(ctx, trimmed)
	if findErr != nil {
		return nil, TokenPair{}, findErr
	}
	if !manager.hasher.Compare(password, user.PasswordHash) {
		manager.metrics.Increment("session.login.rejected")
		return nil, TokenPair{}, fmt.Errorf("session.authenticate: %w", ErrInvalidCredentials)
	}

	pair, issueErr := manager.IssueTokenPair(ctx, user.ID)
	if issueErr != nil {
		return nil, TokenPair{}, issueErr
	}
	manager.metrics.Increment("session.login.success")
	manager.logger.Info("user authenticated",
		zap.String("code", "session.login.success"),
		zap.String("user_id", user.ID))
	return user.Sanitized(), pair, nil
}

// IssueTokenPair mints an access token and a refresh token with distinct
// secrets and TTLs. The refresh token is persisted to the user record before
// the pair is returned; every failure propagates as an error. Not idempotent:
// each call invalidates the previously stored refresh token.
func (manager *Manager) IssueTokenPair(ctx context.Context, userID string) (TokenPair, error) {
	user, findErr := manager.users.FindByID(ctx, userID)
	if findErr != nil {
		return TokenPair{}, findErr
	}

	now := manager.clock.Now()
	accessToken, accessExpiresAt, accessErr := MintAccessToken(user, manager.config.TokenIssuer, manager.config.AccessTokenSecret, manager.config.AccessTTL, now)
	if accessErr != nil {
		return TokenPair{}, accessErr
	}
	refreshToken, refreshExpiresAt, refreshErr := MintRefreshToken(user.ID, manager.config.TokenIssuer, manager.config.RefreshTokenSecret, manager.config.RefreshTTL, now)
	if refreshErr != nil {
		return TokenPair{}, refreshErr
	}

	if storeErr := manager.users.SetRefreshToken(ctx, user.ID, refreshToken); storeErr != nil {
		return TokenPair{}, storeErr
	}
	return TokenPair{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpiresAt,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExpiresAt,
	}, nil
}

// Refresh validates a presented refresh token against the stored one and
// rotates it. The stored value must equal the presented raw compact string;
// a decoded-claims match is not sufficient, since rotation leaves old tokens
// signature-valid. The store swap is a compare-and-swap on the presented
// token, so concurrent refreshes produce exactly one winner.
func (manager *Manager) Refresh(ctx context.Context, presentedToken string) (TokenPair, error) {
	presented := strings.TrimSpace(presentedToken)
	if presented == "" {
		return TokenPair{}, fmt.Errorf("session.refresh: %w", ErrRefreshMissing)
	}

	claims, parseErr := ParseRefreshToken(presented, manager.config.TokenIssuer, manager.config.RefreshTokenSecret, manager.clock.Now)
	if parseErr != nil {
		manager.metrics.Increment("session.refresh.rejected")
		return TokenPair{}, parseErr
	}

	user, findErr := manager.users.FindByID(ctx, claims.UserID)
	if findErr != nil {
		manager.metrics.Increment("session.refresh.rejected")
		return TokenPair{}, fmt.Errorf("session.refresh: %w", ErrTokenInvalid)
	}
	if user.RefreshToken == "" || user.RefreshToken != presented {
		manager.metrics.Increment("session.refresh.reuse_detected")
		manager.logger.Warn("stale refresh token presented",
			zap.String("code", "session.refresh.stale"),
			zap.String("user_id", user.ID))
		return TokenPair{}, fmt.Errorf("session.refresh: %w", ErrRefreshStale)
	}

	now := manager.clock.Now()
	accessToken, accessExpiresAt, accessErr := MintAccessToken(user, manager.config.TokenIssuer, manager.config.AccessTokenSecret, manager.config.AccessTTL, now)
	if accessErr != nil {
		return TokenPair{}, accessErr
	}
	refreshToken, refreshExpiresAt, refreshErr := MintRefreshToken(user.ID, manager.config.TokenIssuer, manager.config.RefreshTokenSecret, manager.config.RefreshTTL, now)
	if refreshErr != nil {
		return TokenPair{}, refreshErr
	}

	if swapErr := manager.users.SwapRefreshToken(ctx, user.ID, presented, refreshToken); swapErr != nil {
		manager.metrics.Increment("session.refresh.lost_race")
		return TokenPair{}, swapErr
	}
	manager.metrics.Increment("session.refresh.success")
	return TokenPair{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpiresAt,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExpiresAt,
	}, nil
}

// Invalidate clears the stored refresh token so no future presentation can
// match. Idempotent: logging out an already logged-out user succeeds.
func (manager *Manager) Invalidate(ctx context.Context, userID string) error {
	if clearErr := manager.users.ClearRefreshToken(ctx, userID); clearErr != nil {
		return clearErr
	}
	manager.metrics.Increment("session.logout")
	return nil
}

// ChangePassword re-verifies the old password and persists a new hash. The
// refresh token is left untouched: a password change does not force re-login.
func (manager *Manager) ChangePassword(ctx context.Context, userID string, oldPassword string, newPassword string) error {
	if newPassword == "" {
		return fmt.Errorf("session.change_password: %w", ErrValidation)
	}

	user, findErr := manager.users.FindByID(ctx, userID)
	if findErr != nil {
		return findErr
	}
	if !manager.hasher.Compare(oldPassword, user.PasswordHash) {
		return fmt.Errorf("session.change_password: %w", ErrInvalidCredentials)
	}

	passwordHash, hashErr := manager.hasher.Hash(newPassword)
	if hashErr != nil {
		return fmt.Errorf("session.change_password: %w", hashErr)
	}
	if updateErr := manager.users.UpdatePasswordHash(ctx, userID, passwordHash); updateErr != nil {
		return updateErr
	}
	manager.metrics.Increment("session.password_changed")
	return nil
}

// Users exposes the underlying store to boundary handlers.
func (manager *Manager) Users() UserStore {
	return manager.users
}

// Config exposes the server configuration used for minting.
func (manager *Manager) Config() ServerConfig {
	return manager.config
}

// Clock exposes the time source used for minting and verification.
func (manager *Manager) Clock() Clock {
	return manager.clock
}
