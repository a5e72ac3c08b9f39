package sessionkit

import "errors"

var (
	// ErrValidation indicates missing or malformed input; nothing was mutated.
	ErrValidation = errors.New("session.validation")
	// ErrUserNotFound indicates no user record matched the identifier.
	ErrUserNotFound = errors.New("session.user_not_found")
	// ErrDuplicateUser indicates the username or email is already registered.
	ErrDuplicateUser = errors.New("session.duplicate_user")
	// ErrInvalidCredentials indicates a password that does not match the stored hash.
	ErrInvalidCredentials = errors.New("session.invalid_credentials")
	// ErrRefreshMissing indicates no refresh token was presented.
	ErrRefreshMissing = errors.New("session.refresh.missing")
	// ErrTokenInvalid indicates a malformed, foreign, or badly signed token.
	ErrTokenInvalid = errors.New("session.token.invalid")
	// ErrTokenExpired indicates the presented token passed its expiry.
	ErrTokenExpired = errors.New("session.token.expired")
	// ErrRefreshStale indicates a signature-valid token that has already been
	// rotated away, or a rotation lost to a concurrent refresh.
	ErrRefreshStale = errors.New("session.refresh.stale")
)
