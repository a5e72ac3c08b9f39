package sessionkit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

// steppingClock advances by one second on every reading so consecutive mints
// never produce byte-identical tokens.
type steppingClock struct {
	mutex   sync.Mutex
	current time.Time
}

func newSteppingClock() *steppingClock {
	return &steppingClock{current: time.Unix(1700000000, 0).UTC()}
}

func (clock *steppingClock) Now() time.Time {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()
	clock.current = clock.current.Add(time.Second)
	return clock.current
}

func newTestManager(t *testing.T) (*Manager, *MemoryUserStore) {
	t.Helper()
	users := NewMemoryUserStore()
	configuration := ServerConfig{
		AccessTokenSecret:  []byte("access-secret"),
		RefreshTokenSecret: []byte("refresh-secret"),
		TokenIssuer:        "test-issuer",
		AccessCookieName:   "access_token",
		RefreshCookieName:  "refresh_token",
		AccessTTL:          15 * time.Minute,
		RefreshTTL:         7 * 24 * time.Hour,
	}
	manager := NewManager(users, NewBcryptHasher(bcrypt.MinCost), configuration, zaptest.NewLogger(t), NewCounterMetrics(), newSteppingClock())
	return manager, users
}

func registerTestUser(t *testing.T, manager *Manager) *User {
	t.Helper()
	user, registerErr := manager.Register(context.Background(), RegisterParams{
		Username: "alice",
		Email:    "alice@example.com",
		FullName: "Alice Example",
		Password: "hunter22",
	})
	if registerErr != nil {
		t.Fatalf("register error: %v", registerErr)
	}
	return user
}

func TestRegisterRejectsMissingFields(t *testing.T) {
	manager, _ := newTestManager(t)

	_, registerErr := manager.Register(context.Background(), RegisterParams{Username: "alice"})
	if !errors.Is(registerErr, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", registerErr)
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	manager, _ := newTestManager(t)
	registerTestUser(t, manager)

	_, registerErr := manager.Register(context.Background(), RegisterParams{
		Username: "alice",
		Email:    "other@example.com",
		FullName: "Other Alice",
		Password: "hunter22",
	})
	if !errors.Is(registerErr, ErrDuplicateUser) {
		t.Fatalf("expected ErrDuplicateUser, got %v", registerErr)
	}
}

func TestRegisterSanitizesReturnedUser(t *testing.T) {
	manager, _ := newTestManager(t)
	user := registerTestUser(t, manager)

	if user.PasswordHash != "" || user.RefreshToken != "" {
		t.Fatalf("expected sanitized user, got hash=%q token=%q", user.PasswordHash, user.RefreshToken)
	}
	if user.ID == "" {
		t.Fatalf("expected generated user ID")
	}
}

func TestAuthenticateUnknownUser(t *testing.T) {
	manager, _ := newTestManager(t)

	_, _, authErr := manager.Authenticate(context.Background(), "nobody", "hunter22")
	if !errors.Is(authErr, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", authErr)
	}
}

func TestAuthenticateWrongPasswordLeavesSessionUntouched(t *testing.T) {
	manager, users := newTestManager(t)
	user := registerTestUser(t, manager)

	_, pair, authErr := manager.Authenticate(context.Background(), "alice", "hunter22")
	if authErr != nil {
		t.Fatalf("login error: %v", authErr)
	}

	_, _, wrongErr := manager.Authenticate(context.Background(), "alice", "wrong-password")
	if !errors.Is(wrongErr, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", wrongErr)
	}

	stored, findErr := users.FindByID(context.Background(), user.ID)
	if findErr != nil {
		t.Fatalf("find error: %v", findErr)
	}
	if stored.RefreshToken != pair.RefreshToken {
		t.Fatalf("failed login must not disturb the stored refresh token")
	}
}

func TestAuthenticateByEmailStoresRefreshToken(t *testing.T) {
	manager, users := newTestManager(t)
	user := registerTestUser(t, manager)

	_, pair, authErr := manager.Authenticate(context.Background(), "ALICE@example.com", "hunter22")
	if authErr != nil {
		t.Fatalf("login error: %v", authErr)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected both tokens minted")
	}
	if pair.AccessToken == pair.RefreshToken {
		t.Fatalf("access and refresh tokens must differ")
	}

	stored, findErr := users.FindByID(context.Background(), user.ID)
	if findErr != nil {
		t.Fatalf("find error: %v", findErr)
	}
	if stored.RefreshToken != pair.RefreshToken {
		t.Fatalf("stored refresh token must equal the issued one")
	}
}

func TestSecondLoginInvalidatesFirstSession(t *testing.T) {
	manager, _ := newTestManager(t)
	registerTestUser(t, manager)

	_, firstPair, firstErr := manager.Authenticate(context.Background(), "alice", "hunter22")
	if firstErr != nil {
		t.Fatalf("first login error: %v", firstErr)
	}
	_, _, secondErr := manager.Authenticate(context.Background(), "alice", "hunter22")
	if secondErr != nil {
		t.Fatalf("second login error: %v", secondErr)
	}

	_, refreshErr := manager.Refresh(context.Background(), firstPair.RefreshToken)
	if !errors.Is(refreshErr, ErrRefreshStale) {
		t.Fatalf("expected first session token to be stale, got %v", refreshErr)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	manager, users := newTestManager(t)
	user := registerTestUser(t, manager)

	_, pair, authErr := manager.Authenticate(context.Background(), "alice", "hunter22")
	if authErr != nil {
		t.Fatalf("login error: %v", authErr)
	}

	rotated, refreshErr := manager.Refresh(context.Background(), pair.RefreshToken)
	if refreshErr != nil {
		t.Fatalf("refresh error: %v", refreshErr)
	}
	if rotated.RefreshToken == pair.RefreshToken {
		t.Fatalf("refresh must rotate the refresh token")
	}

	stored, findErr := users.FindByID(context.Background(), user.ID)
	if findErr != nil {
		t.Fatalf("find error: %v", findErr)
	}
	if stored.RefreshToken != rotated.RefreshToken {
		t.Fatalf("stored refresh token must equal the rotated one")
	}
}

func TestRefreshRejectsReuseAfterRotation(t *testing.T) {
	manager, _ := newTestManager(t)
	registerTestUser(t, manager)

	_, pair, authErr := manager.Authenticate(context.Background(), "alice", "hunter22")
	if authErr != nil {
		t.Fatalf("login error: %v", authErr)
	}
	if _, refreshErr := manager.Refresh(context.Background(), pair.RefreshToken); refreshErr != nil {
		t.Fatalf("refresh error: %v", refreshErr)
	}

	_, reuseErr := manager.Refresh(context.Background(), pair.RefreshToken)
	if !errors.Is(reuseErr, ErrRefreshStale) {
		t.Fatalf("expected ErrRefreshStale on reuse, got %v", reuseErr)
	}
}

func TestRefreshRejectsAfterLogout(t *testing.T) {
	manager, _ := newTestManager(t)
	user := registerTestUser(t, manager)

	_, pair, authErr := manager.Authenticate(context.Background(), "alice", "hunter22")
	if authErr != nil {
		t.Fatalf("login error: %v", authErr)
	}
	if invalidateErr := manager.Invalidate(context.Background(), user.ID); invalidateErr != nil {
		t.Fatalf("invalidate error: %v", invalidateErr)
	}

	_, refreshErr := manager.Refresh(context.Background(), pair.RefreshToken)
	if !errors.Is(refreshErr, ErrRefreshStale) {
		t.Fatalf("expected ErrRefreshStale after logout, got %v", refreshErr)
	}
}

func TestInvalidateIsIdempotent(t *testing.T) {
	manager, _ := newTestManager(t)
	user := registerTestUser(t, manager)

	for attempt := 0; attempt < 2; attempt++ {
		if invalidateErr := manager.Invalidate(context.Background(), user.ID); invalidateErr != nil {
			t.Fatalf("invalidate attempt %d error: %v", attempt, invalidateErr)
		}
	}
	if invalidateErr := manager.Invalidate(context.Background(), "no-such-user"); invalidateErr != nil {
		t.Fatalf("invalidate of unknown user must succeed, got %v", invalidateErr)
	}
}

func TestRefreshRejectsMissingAndMalformedTokens(t *testing.T) {
	manager, _ := newTestManager(t)

	if _, refreshErr := manager.Refresh(context.Background(), "   "); !errors.Is(refreshErr, ErrRefreshMissing) {
		t.Fatalf("expected ErrRefreshMissing, got %v", refreshErr)
	}
	if _, refreshErr := manager.Refresh(context.Background(), "garbage.token.value"); !errors.Is(refreshErr, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", refreshErr)
	}
}

func TestRefreshRejectsForeignSignature(t *testing.T) {
	manager, _ := newTestManager(t)
	registerTestUser(t, manager)

	foreign, _, mintErr := MintRefreshToken("user-1", "test-issuer", []byte("some-other-secret"), time.Hour, time.Unix(1700000000, 0).UTC())
	if mintErr != nil {
		t.Fatalf("mint error: %v", mintErr)
	}
	_, refreshErr := manager.Refresh(context.Background(), foreign)
	if !errors.Is(refreshErr, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for foreign signature, got %v", refreshErr)
	}
}

func TestConcurrentRefreshHasSingleWinner(t *testing.T) {
	manager, _ := newTestManager(t)
	registerTestUser(t, manager)

	_, pair, authErr := manager.Authenticate(context.Background(), "alice", "hunter22")
	if authErr != nil {
		t.Fatalf("login error: %v", authErr)
	}

	const attempts = 16
	var waitGroup sync.WaitGroup
	results := make([]error, attempts)
	for index := 0; index < attempts; index++ {
		waitGroup.Add(1)
		go func(slot int) {
			defer waitGroup.Done()
			_, results[slot] = manager.Refresh(context.Background(), pair.RefreshToken)
		}(index)
	}
	waitGroup.Wait()

	winners := 0
	for _, result := range results {
		if result == nil {
			winners++
			continue
		}
		if !errors.Is(result, ErrRefreshStale) {
			t.Fatalf("loser must see ErrRefreshStale, got %v", result)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winning refresh, got %d", winners)
	}
}

func TestChangePasswordVerifiesOldPassword(t *testing.T) {
	manager, users := newTestManager(t)
	user := registerTestUser(t, manager)

	before, _ := users.FindByID(context.Background(), user.ID)
	changeErr := manager.ChangePassword(context.Background(), user.ID, "wrong-password", "next-password")
	if !errors.Is(changeErr, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", changeErr)
	}
	after, _ := users.FindByID(context.Background(), user.ID)
	if before.PasswordHash != after.PasswordHash {
		t.Fatalf("rejected change must not mutate the stored hash")
	}
}

func TestChangePasswordKeepsSessionAlive(t *testing.T) {
	manager, _ := newTestManager(t)
	user := registerTestUser(t, manager)

	_, pair, authErr := manager.Authenticate(context.Background(), "alice", "hunter22")
	if authErr != nil {
		t.Fatalf("login error: %v", authErr)
	}
	if changeErr := manager.ChangePassword(context.Background(), user.ID, "hunter22", "next-password"); changeErr != nil {
		t.Fatalf("change password error: %v", changeErr)
	}

	if _, refreshErr := manager.Refresh(context.Background(), pair.RefreshToken); refreshErr != nil {
		t.Fatalf("password change must not rotate the session, got %v", refreshErr)
	}
	if _, _, authErr := manager.Authenticate(context.Background(), "alice", "next-password"); authErr != nil {
		t.Fatalf("new password must authenticate, got %v", authErr)
	}
	if _, _, authErr := manager.Authenticate(context.Background(), "alice", "hunter22"); !errors.Is(authErr, ErrInvalidCredentials) {
		t.Fatalf("old password must be rejected, got %v", authErr)
	}
}
