package web

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/viewtube/viewtube/internal/sessionkit"
)

// MountAuthRoutes registers /auth/register, /auth/login, /auth/refresh,
// /auth/logout, and /auth/password.
func MountAuthRoutes(router gin.IRouter, manager *sessionkit.Manager, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	configuration := manager.Config()

	router.POST("/auth/register", func(contextGin *gin.Context) {
		var inbound struct {
			Username string `json:"username"`
			Email    string `json:"email"`
			FullName string `json:"fullName"`
			Password string `json:"password"`
		}
		if err := contextGin.BindJSON(&inbound); err != nil {
			respondError(contextGin, sessionkit.ErrValidation)
			return
		}
		user, registerErr := manager.Register(contextGin, sessionkit.RegisterParams{
			Username: inbound.Username,
			Email:    inbound.Email,
			FullName: inbound.FullName,
			Password: inbound.Password,
		})
		if registerErr != nil {
			respondError(contextGin, registerErr)
			return
		}
		respondData(contextGin, http.StatusCreated, NewUserPayload(user), "user registered successfully")
	})

	router.POST("/auth/login", func(contextGin *gin.Context) {
		var inbound struct {
			Identifier string `json:"identifier"`
			Username   string `json:"username"`
			Email      string `json:"email"`
			Password   string `json:"password"`
		}
		if err := contextGin.BindJSON(&inbound); err != nil {
			respondError(contextGin, sessionkit.ErrValidation)
			return
		}
		identifier := strings.TrimSpace(inbound.Identifier)
		if identifier == "" {
			identifier = strings.TrimSpace(inbound.Username)
		}
		if identifier == "" {
			identifier = strings.TrimSpace(inbound.Email)
		}

		user, pair, authErr := manager.Authenticate(contextGin, identifier, inbound.Password)
		if authErr != nil {
			respondError(contextGin, authErr)
			return
		}

		writeTokenCookies(contextGin, configuration, pair)
		respondData(contextGin, http.StatusOK, gin.H{
			"user":         NewUserPayload(user),
			"accessToken":  pair.AccessToken,
			"refreshToken": pair.RefreshToken,
		}, "user logged in successfully")
	})

	router.POST("/auth/refresh", func(contextGin *gin.Context) {
		presented := refreshTokenFromRequest(contextGin, configuration.RefreshCookieName)

		pair, refreshErr := manager.Refresh(contextGin, presented)
		if refreshErr != nil {
			logger.Warn("refresh rejected",
				zap.String("code", "web.auth.refresh_rejected"),
				zap.Error(refreshErr))
			respondError(contextGin, refreshErr)
			return
		}

		writeTokenCookies(contextGin, configuration, pair)
		respondData(contextGin, http.StatusOK, gin.H{
			"accessToken":  pair.AccessToken,
			"refreshToken": pair.RefreshToken,
		}, "access token refreshed")
	})

	router.POST("/auth/logout", sessionkit.RequireSession(configuration, manager.Clock()), func(contextGin *gin.Context) {
		claims, ok := sessionkit.CurrentClaims(contextGin)
		if !ok {
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		if invalidateErr := manager.Invalidate(contextGin, claims.UserID); invalidateErr != nil {
			respondError(contextGin, invalidateErr)
			return
		}
		clearCookie(contextGin, configuration, configuration.AccessCookieName)
		clearCookie(contextGin, configuration, configuration.RefreshCookieName)
		respondData(contextGin, http.StatusOK, gin.H{}, "user logged out")
	})

	router.POST("/auth/password", sessionkit.RequireSession(configuration, manager.Clock()), func(contextGin *gin.Context) {
		claims, ok := sessionkit.CurrentClaims(contextGin)
		if !ok {
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		var inbound struct {
			OldPassword string `json:"oldPassword"`
			NewPassword string `json:"newPassword"`
		}
		if err := contextGin.BindJSON(&inbound); err != nil {
			respondError(contextGin, sessionkit.ErrValidation)
			return
		}
		if changeErr := manager.ChangePassword(contextGin, claims.UserID, inbound.OldPassword, inbound.NewPassword); changeErr != nil {
			if errors.Is(changeErr, sessionkit.ErrInvalidCredentials) {
				contextGin.AbortWithStatusJSON(http.StatusBadRequest, ErrorEnvelope{
					Status: http.StatusBadRequest,
					Error:  "invalid old password",
				})
				return
			}
			respondError(contextGin, changeErr)
			return
		}
		respondData(contextGin, http.StatusOK, gin.H{}, "password changed successfully")
	})
}

// refreshTokenFromRequest reads the refresh token, preferring the cookie and
// falling back to a body field for non-browser clients.
func refreshTokenFromRequest(contextGin *gin.Context, cookieName string) string {
	if cookie, cookieErr := contextGin.Request.Cookie(cookieName); cookieErr == nil && cookie != nil && strings.TrimSpace(cookie.Value) != "" {
		return strings.TrimSpace(cookie.Value)
	}
	var inbound struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := contextGin.ShouldBindJSON(&inbound); err != nil {
		return ""
	}
	return strings.TrimSpace(inbound.RefreshToken)
}

func writeTokenCookies(contextGin *gin.Context, configuration sessionkit.ServerConfig, pair sessionkit.TokenPair) {
	writeCookie(contextGin, configuration, configuration.AccessCookieName, pair.AccessToken, pair.AccessExpiresAt)
	writeCookie(contextGin, configuration, configuration.RefreshCookieName, pair.RefreshToken, pair.RefreshExpiresAt)
}

func writeCookie(contextGin *gin.Context, configuration sessionkit.ServerConfig, name string, value string, expiresAt time.Time) {
	http.SetCookie(contextGin.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   configuration.CookieDomain,
		Expires:  expiresAt,
		Secure:   !configuration.AllowInsecureHTTP,
		HttpOnly: true,
		SameSite: configuration.SameSiteMode,
	})
}

func clearCookie(contextGin *gin.Context, configuration sessionkit.ServerConfig, name string) {
	http.SetCookie(contextGin.Writer, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   configuration.CookieDomain,
		MaxAge:   -1,
		Secure:   !configuration.AllowInsecureHTTP,
		HttpOnly: true,
		SameSite: configuration.SameSiteMode,
	})
}
