package sessionkit

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims are embedded in the short-lived access token.
type AccessClaims struct {
	UserID    string `json:"user_id"`
	UserEmail string `json:"user_email"`
	UserName  string `json:"user_name"`
	jwt.RegisteredClaims
}

// RefreshClaims carry only the user identifier; everything else lives on the
// user record.
type RefreshClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// MintAccessToken creates a signed HS256 access token for the given user.
func MintAccessToken(user *User, issuer string, signingKey []byte, ttl time.Duration, now time.Time) (string, time.Time, error) {
	issuedAt := now.UTC()
	expiresAt := issuedAt.Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{
		UserID:    user.ID,
		UserEmail: user.Email,
		UserName:  user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt.Add(-30 * time.Second)),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, signErr := token.SignedString(signingKey)
	if signErr != nil {
		return "", time.Time{}, fmt.Errorf("session.mint_access: %w", signErr)
	}
	return signed, expiresAt, nil
}

// MintRefreshToken creates a signed HS256 refresh token carrying the user id.
func MintRefreshToken(userID string, issuer string, signingKey []byte, ttl time.Duration, now time.Time) (string, time.Time, error) {
	issuedAt := now.UTC()
	expiresAt := issuedAt.Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, RefreshClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt.Add(-30 * time.Second)),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, signErr := token.SignedString(signingKey)
	if signErr != nil {
		return "", time.Time{}, fmt.Errorf("session.mint_refresh: %w", signErr)
	}
	return signed, expiresAt, nil
}

// ParseAccessToken validates an access token string and returns its claims.
func ParseAccessToken(tokenString string, issuer string, signingKey []byte, now func() time.Time) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := parseSignedToken(tokenString, issuer, signingKey, now, claims, func() string {
		return claims.Issuer
	}); err != nil {
		return nil, err
	}
	return claims, nil
}

// ParseRefreshToken validates a refresh token string and returns its claims.
// Verification failures are reported as typed errors, never as faults.
func ParseRefreshToken(tokenString string, issuer string, signingKey []byte, now func() time.Time) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := parseSignedToken(tokenString, issuer, signingKey, now, claims, func() string {
		return claims.Issuer
	}); err != nil {
		return nil, err
	}
	return claims, nil
}

func parseSignedToken(tokenString string, issuer string, signingKey []byte, now func() time.Time, claims jwt.Claims, claimedIssuer func() string) error {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	parsedToken, parseErr := jwt.ParseWithClaims(tokenString, claims, func(parsed *jwt.Token) (interface{}, error) {
		return signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(now))
	if parseErr != nil {
		if errors.Is(parseErr, jwt.ErrTokenExpired) {
			return fmt.Errorf("session.parse_token: %w", ErrTokenExpired)
		}
		return fmt.Errorf("session.parse_token: %w", ErrTokenInvalid)
	}
	if parsedToken == nil || !parsedToken.Valid {
		return fmt.Errorf("session.parse_token: %w", ErrTokenInvalid)
	}
	if claimedIssuer() != issuer {
		return fmt.Errorf("session.parse_token: %w", ErrTokenInvalid)
	}
	return nil
}
