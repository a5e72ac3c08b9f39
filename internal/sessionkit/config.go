package sessionkit

import (
	"net/http"
	"time"
)

// ServerConfig configures token secrets, cookies, and TTL.
type ServerConfig struct {
	AccessTokenSecret  []byte
	RefreshTokenSecret []byte
	TokenIssuer        string
	CookieDomain       string
	AccessCookieName   string
	RefreshCookieName  string
	AccessTTL          time.Duration
	RefreshTTL         time.Duration
	SameSiteMode       http.SameSite
	AllowInsecureHTTP  bool
}
