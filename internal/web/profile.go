package web

import (
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/viewtube/viewtube/internal/media"
	"github.com/viewtube/viewtube/internal/sessionkit"
)

// HandleMe returns the authenticated user's profile.
func HandleMe(users sessionkit.UserStore, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(contextGin *gin.Context) {
		claims, ok := sessionkit.CurrentClaims(contextGin)
		if !ok {
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		user, findErr := users.FindByID(contextGin, claims.UserID)
		if findErr != nil {
			logger.Warn("profile lookup failed",
				zap.String("code", "web.me.lookup_failed"),
				zap.String("user_id", claims.UserID),
				zap.Error(findErr))
			respondError(contextGin, findErr)
			return
		}
		respondData(contextGin, http.StatusOK, NewUserPayload(user.Sanitized()), "current user fetched successfully")
	}
}

// HandleUpdateAccount replaces the caller's full name and email.
func HandleUpdateAccount(users sessionkit.UserStore) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		claims, ok := sessionkit.CurrentClaims(contextGin)
		if !ok {
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		var inbound struct {
			FullName string `json:"fullName"`
			Email    string `json:"email"`
		}
		if err := contextGin.BindJSON(&inbound); err != nil {
			respondError(contextGin, sessionkit.ErrValidation)
			return
		}
		if strings.TrimSpace(inbound.FullName) == "" || strings.TrimSpace(inbound.Email) == "" {
			respondError(contextGin, sessionkit.ErrValidation)
			return
		}
		user, updateErr := users.UpdateProfile(contextGin, claims.UserID, inbound.FullName, inbound.Email)
		if updateErr != nil {
			respondError(contextGin, updateErr)
			return
		}
		respondData(contextGin, http.StatusOK, NewUserPayload(user.Sanitized()), "account details updated")
	}
}

// HandleUpdateAvatar uploads a new avatar to the media host and persists its URL.
func HandleUpdateAvatar(users sessionkit.UserStore, uploader media.Uploader, logger *zap.Logger) gin.HandlerFunc {
	return handleImageUpdate(users, uploader, logger, "avatar", "avatars",
		func(contextGin *gin.Context, userID string, imageURL string) (*sessionkit.User, error) {
			return users.SetAvatarURL(contextGin, userID, imageURL)
		})
}

// HandleUpdateCover uploads a new cover image to the media host and persists its URL.
func HandleUpdateCover(users sessionkit.UserStore, uploader media.Uploader, logger *zap.Logger) gin.HandlerFunc {
	return handleImageUpdate(users, uploader, logger, "coverImage", "covers",
		func(contextGin *gin.Context, userID string, imageURL string) (*sessionkit.User, error) {
			return users.SetCoverImageURL(contextGin, userID, imageURL)
		})
}

func handleImageUpdate(users sessionkit.UserStore, uploader media.Uploader, logger *zap.Logger, formField string, keyPrefix string, persist func(*gin.Context, string, string) (*sessionkit.User, error)) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(contextGin *gin.Context) {
		claims, ok := sessionkit.CurrentClaims(contextGin)
		if !ok {
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		fileHeader, fileErr := contextGin.FormFile(formField)
		if fileErr != nil || fileHeader == nil {
			respondError(contextGin, sessionkit.ErrValidation)
			return
		}
		imageURL, uploadErr := uploadFormFile(contextGin, uploader, keyPrefix, fileHeader)
		if uploadErr != nil {
			logger.Error("media upload failed",
				zap.String("code", "web.media.upload_failed"),
				zap.String("field", formField),
				zap.Error(uploadErr))
			contextGin.AbortWithStatusJSON(http.StatusBadGateway, ErrorEnvelope{
				Status: http.StatusBadGateway,
				Error:  "media host upload failed",
			})
			return
		}
		user, persistErr := persist(contextGin, claims.UserID, imageURL)
		if persistErr != nil {
			respondError(contextGin, persistErr)
			return
		}
		respondData(contextGin, http.StatusOK, NewUserPayload(user.Sanitized()), formField+" updated")
	}
}

func uploadFormFile(contextGin *gin.Context, uploader media.Uploader, keyPrefix string, fileHeader *multipart.FileHeader) (string, error) {
	file, openErr := fileHeader.Open()
	if openErr != nil {
		return "", openErr
	}
	defer func() { _ = file.Close() }()

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return uploader.Upload(contextGin, media.StorageKey(keyPrefix), contentType, file)
}
