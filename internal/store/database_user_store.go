package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	sqliteDialector "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/viewtube/viewtube/internal/sessionkit"
)

var (
	// ErrUnsupportedDialect indicates that no GORM dialector is available for the scheme.
	ErrUnsupportedDialect = errors.New("store.unsupported_dialect")

	errEmptyDatabaseURL    = errors.New("store.empty_database_url")
	errSQLiteEmptyPath     = errors.New("store.sqlite.empty_path")
	errSQLiteInvalidURL    = errors.New("store.sqlite.invalid_url")
	errUnsupportedNoScheme = errors.New("store.unsupported_no_scheme")
)

// DatabaseUserStore persists users using GORM against Postgres or SQLite.
type DatabaseUserStore struct {
	db          *gorm.DB
	driverLabel string
}

// Driver exposes the selected database driver label.
func (store *DatabaseUserStore) Driver() string {
	return store.driverLabel
}

// DB exposes the underlying GORM handle so sibling stores can share one
// connection.
func (store *DatabaseUserStore) DB() *gorm.DB {
	return store.db
}

type userRecord struct {
	ID            string  `gorm:"column:id;primaryKey"`
	Username      string  `gorm:"column:username;uniqueIndex;not null"`
	Email         string  `gorm:"column:email;uniqueIndex;not null"`
	FullName      string  `gorm:"column:full_name;not null"`
	AvatarURL     string  `gorm:"column:avatar_url;not null;default:''"`
	CoverImageURL string  `gorm:"column:cover_image_url;not null;default:''"`
	PasswordHash  string  `gorm:"column:password_hash;not null"`
	RefreshToken  *string `gorm:"column:refresh_token"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (userRecord) TableName() string {
	return "users"
}

func (record *userRecord) toUser() *sessionkit.User {
	refreshToken := ""
	if record.RefreshToken != nil {
		refreshToken = *record.RefreshToken
	}
	return &sessionkit.User{
		ID:            record.ID,
		Username:      record.Username,
		Email:         record.Email,
		FullName:      record.FullName,
		AvatarURL:     record.AvatarURL,
		CoverImageURL: record.CoverImageURL,
		PasswordHash:  record.PasswordHash,
		RefreshToken:  refreshToken,
		CreatedAt:     record.CreatedAt,
		UpdatedAt:     record.UpdatedAt,
	}
}

// NewDatabaseUserStore opens the database named by databaseURL and migrates
// the user and video tables.
func NewDatabaseUserStore(ctx context.Context, databaseURL string) (*DatabaseUserStore, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("store.open: %w", errEmptyDatabaseURL)
	}
	dialector, driverLabel, err := resolveDialector(databaseURL)
	if err != nil {
		return nil, err
	}
	gormDB, openErr := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if openErr != nil {
		return nil, fmt.Errorf("store.open.%s: %w", driverLabel, openErr)
	}
	if migrateErr := gormDB.WithContext(ctx).AutoMigrate(&userRecord{}, &videoRecord{}); migrateErr != nil {
		return nil, fmt.Errorf("store.migrate.%s: %w", driverLabel, migrateErr)
	}
	return &DatabaseUserStore{
		db:          gormDB,
		driverLabel: driverLabel,
	}, nil
}

// Create inserts a new user; unique index violations surface as duplicates.
func (store *DatabaseUserStore) Create(ctx context.Context, user *sessionkit.User) error {
	record := userRecord{
		ID:            user.ID,
		Username:      strings.ToLower(strings.TrimSpace(user.Username)),
		Email:         strings.ToLower(strings.TrimSpace(user.Email)),
		FullName:      user.FullName,
		AvatarURL:     user.AvatarURL,
		CoverImageURL: user.CoverImageURL,
		PasswordHash:  user.PasswordHash,
	}
	if err := store.db.WithContext(ctx).Create(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
			return fmt.Errorf("store.create.%s: %w", store.driverLabel, sessionkit.ErrDuplicateUser)
		}
		return fmt.Errorf("store.create.%s: %w", store.driverLabel, err)
	}
	return nil
}

// FindByIdentifier locates a user whose username or email equals the
// case-folded identifier.
func (store *DatabaseUserStore) FindByIdentifier(ctx context.Context, identifier string) (*sessionkit.User, error) {
	folded := strings.ToLower(strings.TrimSpace(identifier))
	var record userRecord
	err := store.db.WithContext(ctx).
		Where("username = ? OR email = ?", folded, folded).
		Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("store.find_by_identifier.%s: %w", store.driverLabel, sessionkit.ErrUserNotFound)
		}
		return nil, fmt.Errorf("store.find_by_identifier.%s: %w", store.driverLabel, err)
	}
	return record.toUser(), nil
}

// FindByID loads a user by primary key.
func (store *DatabaseUserStore) FindByID(ctx context.Context, userID string) (*sessionkit.User, error) {
	var record userRecord
	err := store.db.WithContext(ctx).Where("id = ?", userID).Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("store.find_by_id.%s: %w", store.driverLabel, sessionkit.ErrUserNotFound)
		}
		return nil, fmt.Errorf("store.find_by_id.%s: %w", store.driverLabel, err)
	}
	return record.toUser(), nil
}

// SetRefreshToken overwrites the stored refresh token unconditionally.
func (store *DatabaseUserStore) SetRefreshToken(ctx context.Context, userID string, token string) error {
	result := store.db.WithContext(ctx).Model(&userRecord{}).
		Where("id = ?", userID).
		Update("refresh_token", token)
	if result.Error != nil {
		return fmt.Errorf("store.set_refresh_token.%s: %w", store.driverLabel, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("store.set_refresh_token.%s: %w", store.driverLabel, sessionkit.ErrUserNotFound)
	}
	return nil
}

// SwapRefreshToken rotates the stored token with a compare-and-swap on the
// previous raw value. A zero rows-affected result means a concurrent refresh
// already rotated the token, so the caller lost the race.
func (store *DatabaseUserStore) SwapRefreshToken(ctx context.Context, userID string, previousToken string, nextToken string) error {
	result := store.db.WithContext(ctx).Model(&userRecord{}).
		Where("id = ? AND refresh_token = ?", userID, previousToken).
		Update("refresh_token", nextToken)
	if result.Error != nil {
		return fmt.Errorf("store.swap_refresh_token.%s: %w", store.driverLabel, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("store.swap_refresh_token.%s: %w", store.driverLabel, sessionkit.ErrRefreshStale)
	}
	return nil
}

// ClearRefreshToken sets the stored token to NULL. Clearing an absent token
// or an unknown user is a no-op success.
func (store *DatabaseUserStore) ClearRefreshToken(ctx context.Context, userID string) error {
	result := store.db.WithContext(ctx).Model(&userRecord{}).
		Where("id = ?", userID).
		Update("refresh_token", gorm.Expr("NULL"))
	if result.Error != nil {
		return fmt.Errorf("store.clear_refresh_token.%s: %w", store.driverLabel, result.Error)
	}
	return nil
}

// UpdatePasswordHash replaces the stored credential digest.
func (store *DatabaseUserStore) UpdatePasswordHash(ctx context.Context, userID string, passwordHash string) error {
	result := store.db.WithContext(ctx).Model(&userRecord{}).
		Where("id = ?", userID).
		Update("password_hash", passwordHash)
	if result.Error != nil {
		return fmt.Errorf("store.update_password_hash.%s: %w", store.driverLabel, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("store.update_password_hash.%s: %w", store.driverLabel, sessionkit.ErrUserNotFound)
	}
	return nil
}

// UpdateProfile replaces full name and email and returns the updated record.
func (store *DatabaseUserStore) UpdateProfile(ctx context.Context, userID string, fullName string, email string) (*sessionkit.User, error) {
	folded := strings.ToLower(strings.TrimSpace(email))
	result := store.db.WithContext(ctx).Model(&userRecord{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"full_name": strings.TrimSpace(fullName),
			"email":     folded,
		})
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return nil, fmt.Errorf("store.update_profile.%s: %w", store.driverLabel, sessionkit.ErrDuplicateUser)
		}
		return nil, fmt.Errorf("store.update_profile.%s: %w", store.driverLabel, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("store.update_profile.%s: %w", store.driverLabel, sessionkit.ErrUserNotFound)
	}
	return store.FindByID(ctx, userID)
}

// SetAvatarURL stores the uploaded avatar location.
func (store *DatabaseUserStore) SetAvatarURL(ctx context.Context, userID string, avatarURL string) (*sessionkit.User, error) {
	return store.updateSingleColumn(ctx, userID, "avatar_url", avatarURL)
}

// SetCoverImageURL stores the uploaded cover image location.
func (store *DatabaseUserStore) SetCoverImageURL(ctx context.Context, userID string, coverImageURL string) (*sessionkit.User, error) {
	return store.updateSingleColumn(ctx, userID, "cover_image_url", coverImageURL)
}

func (store *DatabaseUserStore) updateSingleColumn(ctx context.Context, userID string, column string, value string) (*sessionkit.User, error) {
	result := store.db.WithContext(ctx).Model(&userRecord{}).
		Where("id = ?", userID).
		Update(column, value)
	if result.Error != nil {
		return nil, fmt.Errorf("store.update.%s.%s: %w", column, store.driverLabel, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("store.update.%s.%s: %w", column, store.driverLabel, sessionkit.ErrUserNotFound)
	}
	return store.FindByID(ctx, userID)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique") || strings.Contains(message, "duplicate")
}

func resolveDialector(databaseURL string) (gorm.Dialector, string, error) {
	parsed, err := url.Parse(databaseURL)
	if err != nil {
		return nil, "", fmt.Errorf("store.parse_url: %w", err)
	}
	if parsed.Scheme == "" {
		return nil, "", fmt.Errorf("store.dialect: %w", errUnsupportedNoScheme)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "postgres", "postgresql":
		return postgres.Open(databaseURL), "postgres", nil
	case "sqlite", "sqlite3":
		dsn, dsnErr := buildSQLiteDSN(parsed)
		if dsnErr != nil {
			return nil, "", fmt.Errorf("store.sqlite: %w", dsnErr)
		}
		return sqliteDialector.Open(dsn), "sqlite", nil
	default:
		return nil, "", fmt.Errorf("store.dialect.%s: %w", strings.ToLower(parsed.Scheme), ErrUnsupportedDialect)
	}
}

func buildSQLiteDSN(parsed *url.URL) (string, error) {
	if parsed == nil {
		return "", errSQLiteInvalidURL
	}
	var builder strings.Builder
	switch {
	case parsed.Opaque != "":
		builder.WriteString(parsed.Opaque)
	case parsed.Host != "":
		builder.WriteString(parsed.Host)
		if parsed.Path != "" {
			if !strings.HasPrefix(parsed.Path, "/") {
				builder.WriteString("/")
			}
			builder.WriteString(parsed.Path)
		}
	default:
		builder.WriteString(parsed.Path)
	}
	if builder.Len() == 0 {
		return "", errSQLiteEmptyPath
	}
	if parsed.RawQuery != "" {
		builder.WriteString("?")
		builder.WriteString(parsed.RawQuery)
	}
	return builder.String(), nil
}
