package sessionkit

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ClaimsContextKey is where RequireSession stores the parsed access claims.
const ClaimsContextKey = "auth_claims"

// RequireSession validates the access token and injects its claims. The
// token is read from the access cookie, with an Authorization bearer header
// fallback for non-browser clients.
func RequireSession(configuration ServerConfig, clock Clock) gin.HandlerFunc {
	if clock == nil {
		clock = NewSystemClock()
	}
	return func(contextGin *gin.Context) {
		tokenString := accessTokenFromRequest(contextGin.Request, configuration.AccessCookieName)
		if tokenString == "" {
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		claims, parseErr := ParseAccessToken(tokenString, configuration.TokenIssuer, configuration.AccessTokenSecret, clock.Now)
		if parseErr != nil {
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		contextGin.Set(ClaimsContextKey, claims)
		contextGin.Next()
	}
}

// CurrentClaims returns the access claims injected by RequireSession.
func CurrentClaims(contextGin *gin.Context) (*AccessClaims, bool) {
	claimsValue, found := contextGin.Get(ClaimsContextKey)
	if !found {
		return nil, false
	}
	claims, ok := claimsValue.(*AccessClaims)
	if !ok || claims == nil || claims.UserID == "" {
		return nil, false
	}
	return claims, true
}

func accessTokenFromRequest(request *http.Request, cookieName string) string {
	if cookie, cookieErr := request.Cookie(cookieName); cookieErr == nil && cookie != nil && strings.TrimSpace(cookie.Value) != "" {
		return strings.TrimSpace(cookie.Value)
	}
	authorization := request.Header.Get("Authorization")
	if strings.HasPrefix(authorization, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authorization, "Bearer "))
	}
	return ""
}
