package storepg

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/viewtube/viewtube/internal/sessionkit"
)

const uniqueViolationCode = "23505"

// PostgresUserStore persists users in PostgreSQL through pgx, for
// deployments that prefer hand SQL over the GORM path.
type PostgresUserStore struct {
	pool *pgxpool.Pool
}

// NewPostgresUserStore constructs a Postgres-backed user store.
func NewPostgresUserStore(pool *pgxpool.Pool) *PostgresUserStore {
	return &PostgresUserStore{pool: pool}
}

const userColumns = `id, username, email, full_name, avatar_url, cover_image_url, password_hash, COALESCE(refresh_token, ''), created_at, updated_at`

func scanUser(row pgx.Row) (*sessionkit.User, error) {
	var user sessionkit.User
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.FullName,
		&user.AvatarURL, &user.CoverImageURL, &user.PasswordHash,
		&user.RefreshToken, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("storepg.scan: %w", sessionkit.ErrUserNotFound)
		}
		return nil, fmt.Errorf("storepg.scan: %w", err)
	}
	return &user, nil
}

// Create inserts a new user row.
func (store *PostgresUserStore) Create(ctx context.Context, user *sessionkit.User) error {
	now := time.Now().UTC()
	_, execErr := store.pool.Exec(ctx, `
INSERT INTO users (id, username, email, full_name, avatar_url, cover_image_url, password_hash, refresh_token, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NULL, $8, $8)
`, user.ID,
		strings.ToLower(strings.TrimSpace(user.Username)),
		strings.ToLower(strings.TrimSpace(user.Email)),
		user.FullName, user.AvatarURL, user.CoverImageURL, user.PasswordHash, now)
	if execErr != nil {
		var pgError *pgconn.PgError
		if errors.As(execErr, &pgError) && pgError.Code == uniqueViolationCode {
			return fmt.Errorf("storepg.create: %w", sessionkit.ErrDuplicateUser)
		}
		return fmt.Errorf("storepg.create: %w", execErr)
	}
	return nil
}

// FindByIdentifier locates a user by case-folded username or email.
func (store *PostgresUserStore) FindByIdentifier(ctx context.Context, identifier string) (*sessionkit.User, error) {
	folded := strings.ToLower(strings.TrimSpace(identifier))
	row := store.pool.QueryRow(ctx, `
SELECT `+userColumns+` FROM users WHERE username = $1 OR email = $1
`, folded)
	return scanUser(row)
}

// FindByID loads a user by primary key.
func (store *PostgresUserStore) FindByID(ctx context.Context, userID string) (*sessionkit.User, error) {
	row := store.pool.QueryRow(ctx, `
SELECT `+userColumns+` FROM users WHERE id = $1
`, userID)
	return scanUser(row)
}

// SetRefreshToken overwrites the stored refresh token unconditionally.
func (store *PostgresUserStore) SetRefreshToken(ctx context.Context, userID string, token string) error {
	commandTag, execErr := store.pool.Exec(ctx, `
UPDATE users SET refresh_token = $2, updated_at = now() WHERE id = $1
`, userID, token)
	if execErr != nil {
		return fmt.Errorf("storepg.set_refresh_token: %w", execErr)
	}
	if commandTag.RowsAffected() == 0 {
		return fmt.Errorf("storepg.set_refresh_token: %w", sessionkit.ErrUserNotFound)
	}
	return nil
}

// SwapRefreshToken rotates the stored token with a compare-and-swap on the
// previous raw value; zero affected rows means the rotation lost the race.
func (store *PostgresUserStore) SwapRefreshToken(ctx context.Context, userID string, previousToken string, nextToken string) error {
	commandTag, execErr := store.pool.Exec(ctx, `
UPDATE users SET refresh_token = $3, updated_at = now() WHERE id = $1 AND refresh_token = $2
`, userID, previousToken, nextToken)
	if execErr != nil {
		return fmt.Errorf("storepg.swap_refresh_token: %w", execErr)
	}
	if commandTag.RowsAffected() == 0 {
		return fmt.Errorf("storepg.swap_refresh_token: %w", sessionkit.ErrRefreshStale)
	}
	return nil
}

// ClearRefreshToken sets the stored token to NULL; idempotent.
func (store *PostgresUserStore) ClearRefreshToken(ctx context.Context, userID string) error {
	_, execErr := store.pool.Exec(ctx, `
UPDATE users SET refresh_token = NULL, updated_at = now() WHERE id = $1
`, userID)
	if execErr != nil {
		return fmt.Errorf("storepg.clear_refresh_token: %w", execErr)
	}
	return nil
}

// UpdatePasswordHash replaces the stored credential digest.
func (store *PostgresUserStore) UpdatePasswordHash(ctx context.Context, userID string, passwordHash string) error {
	commandTag, execErr := store.pool.Exec(ctx, `
UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1
`, userID, passwordHash)
	if execErr != nil {
		return fmt.Errorf("storepg.update_password_hash: %w", execErr)
	}
	if commandTag.RowsAffected() == 0 {
		return fmt.Errorf("storepg.update_password_hash: %w", sessionkit.ErrUserNotFound)
	}
	return nil
}

// UpdateProfile replaces full name and email and returns the updated record.
func (store *PostgresUserStore) UpdateProfile(ctx context.Context, userID string, fullName string, email string) (*sessionkit.User, error) {
	folded := strings.ToLower(strings.TrimSpace(email))
	commandTag, execErr := store.pool.Exec(ctx, `
UPDATE users SET full_name = $2, email = $3, updated_at = now() WHERE id = $1
`, userID, strings.TrimSpace(fullName), folded)
	if execErr != nil {
		var pgError *pgconn.PgError
		if errors.As(execErr, &pgError) && pgError.Code == uniqueViolationCode {
			return nil, fmt.Errorf("storepg.update_profile: %w", sessionkit.ErrDuplicateUser)
		}
		return nil, fmt.Errorf("storepg.update_profile: %w", execErr)
	}
	if commandTag.RowsAffected() == 0 {
		return nil, fmt.Errorf("storepg.update_profile: %w", sessionkit.ErrUserNotFound)
	}
	return store.FindByID(ctx, userID)
}

// SetAvatarURL stores the uploaded avatar location.
func (store *PostgresUserStore) SetAvatarURL(ctx context.Context, userID string, avatarURL string) (*sessionkit.User, error) {
	return store.updateSingleColumn(ctx, userID, "avatar_url", avatarURL)
}

// SetCoverImageURL stores the uploaded cover image location.
func (store *PostgresUserStore) SetCoverImageURL(ctx context.Context, userID string, coverImageURL string) (*sessionkit.User, error) {
	return store.updateSingleColumn(ctx, userID, "cover_image_url", coverImageURL)
}

func (store *PostgresUserStore) updateSingleColumn(ctx context.Context, userID string, column string, value string) (*sessionkit.User, error) {
	// column comes from the two callers above, never from input.
	commandTag, execErr := store.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE users SET %s = $2, updated_at = now() WHERE id = $1`, column),
		userID, value)
	if execErr != nil {
		return nil, fmt.Errorf("storepg.update.%s: %w", column, execErr)
	}
	if commandTag.RowsAffected() == 0 {
		return nil, fmt.Errorf("storepg.update.%s: %w", column, sessionkit.ErrUserNotFound)
	}
	return store.FindByID(ctx, userID)
}
