package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/viewtube/viewtube/internal/sessionkit"
	"github.com/viewtube/viewtube/internal/store"
)

// Envelope is the success payload shape shared by every endpoint.
type Envelope struct {
	Status  int         `json:"status"`
	Data    interface{} `json:"data"`
	Message string      `json:"message,omitempty"`
}

// ErrorEnvelope is the failure payload shape shared by every endpoint.
type ErrorEnvelope struct {
	Status int    `json:"status"`
	Error  string `json:"error"`
}

// UserPayload is the user shape returned to clients, without credential or
// session fields.
type UserPayload struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	FullName      string    `json:"fullName"`
	AvatarURL     string    `json:"avatarUrl,omitempty"`
	CoverImageURL string    `json:"coverImageUrl,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// NewUserPayload converts a sanitized user into its response shape.
func NewUserPayload(user *sessionkit.User) UserPayload {
	return UserPayload{
		ID:            user.ID,
		Username:      user.Username,
		Email:         user.Email,
		FullName:      user.FullName,
		AvatarURL:     user.AvatarURL,
		CoverImageURL: user.CoverImageURL,
		CreatedAt:     user.CreatedAt,
		UpdatedAt:     user.UpdatedAt,
	}
}

func respondData(contextGin *gin.Context, status int, data interface{}, message string) {
	contextGin.JSON(status, Envelope{Status: status, Data: data, Message: message})
}

func respondError(contextGin *gin.Context, err error) {
	status, message := statusForError(err)
	contextGin.AbortWithStatusJSON(status, ErrorEnvelope{Status: status, Error: message})
}

func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, sessionkit.ErrValidation):
		return http.StatusBadRequest, "invalid request"
	case errors.Is(err, sessionkit.ErrUserNotFound):
		return http.StatusNotFound, "user does not exist"
	case errors.Is(err, sessionkit.ErrDuplicateUser):
		return http.StatusConflict, "user with email or username already exists"
	case errors.Is(err, sessionkit.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid user credentials"
	case errors.Is(err, sessionkit.ErrRefreshMissing):
		return http.StatusUnauthorized, "unauthorized request"
	case errors.Is(err, sessionkit.ErrTokenExpired), errors.Is(err, sessionkit.ErrTokenInvalid):
		return http.StatusUnauthorized, "invalid refresh token"
	case errors.Is(err, sessionkit.ErrRefreshStale):
		return http.StatusUnauthorized, "refresh token is expired or used"
	case errors.Is(err, store.ErrVideoNotFound):
		return http.StatusNotFound, "video does not exist"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
