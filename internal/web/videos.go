package web

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/viewtube/viewtube/internal/media"
	"github.com/viewtube/viewtube/internal/sessionkit"
	"github.com/viewtube/viewtube/internal/store"
)

// VideoPayload is the video shape returned to clients.
type VideoPayload struct {
	ID              string `json:"id"`
	OwnerID         string `json:"ownerId"`
	Title           string `json:"title"`
	Description     string `json:"description,omitempty"`
	VideoURL        string `json:"videoUrl"`
	ThumbnailURL    string `json:"thumbnailUrl"`
	DurationSeconds int64  `json:"durationSeconds"`
	Views           int64  `json:"views"`
	Published       bool   `json:"published"`
}

func newVideoPayload(video *store.Video) VideoPayload {
	return VideoPayload{
		ID:              video.ID,
		OwnerID:         video.OwnerID,
		Title:           video.Title,
		Description:     video.Description,
		VideoURL:        video.VideoURL,
		ThumbnailURL:    video.ThumbnailURL,
		DurationSeconds: video.DurationSeconds,
		Views:           video.Views,
		Published:       video.Published,
	}
}

// HandleCreateVideo uploads the video file and thumbnail to the media host
// and records the metadata.
func HandleCreateVideo(videos store.VideoStore, uploader media.Uploader, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(contextGin *gin.Context) {
		claims, ok := sessionkit.CurrentClaims(contextGin)
		if !ok {
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		title := strings.TrimSpace(contextGin.PostForm("title"))
		if title == "" {
			respondError(contextGin, sessionkit.ErrValidation)
			return
		}
		description := strings.TrimSpace(contextGin.PostForm("description"))
		durationSeconds, _ := strconv.ParseInt(contextGin.PostForm("durationSeconds"), 10, 64)

		videoHeader, videoErr := contextGin.FormFile("video")
		if videoErr != nil || videoHeader == nil {
			respondError(contextGin, sessionkit.ErrValidation)
			return
		}
		thumbnailHeader, thumbnailErr := contextGin.FormFile("thumbnail")
		if thumbnailErr != nil || thumbnailHeader == nil {
			respondError(contextGin, sessionkit.ErrValidation)
			return
		}

		videoURL, uploadErr := uploadFormFile(contextGin, uploader, "videos", videoHeader)
		if uploadErr != nil {
			logger.Error("video upload failed",
				zap.String("code", "web.videos.upload_failed"),
				zap.Error(uploadErr))
			contextGin.AbortWithStatusJSON(http.StatusBadGateway, ErrorEnvelope{
				Status: http.StatusBadGateway,
				Error:  "media host upload failed",
			})
			return
		}
		thumbnailURL, thumbErr := uploadFormFile(contextGin, uploader, "thumbnails", thumbnailHeader)
		if thumbErr != nil {
			logger.Error("thumbnail upload failed",
				zap.String("code", "web.videos.thumbnail_upload_failed"),
				zap.Error(thumbErr))
			contextGin.AbortWithStatusJSON(http.StatusBadGateway, ErrorEnvelope{
				Status: http.StatusBadGateway,
				Error:  "media host upload failed",
			})
			return
		}

		video := &store.Video{
			ID:              uuid.NewString(),
			OwnerID:         claims.UserID,
			Title:           title,
			Description:     description,
			VideoURL:        videoURL,
			ThumbnailURL:    thumbnailURL,
			DurationSeconds: durationSeconds,
			Published:       true,
		}
		if createErr := videos.CreateVideo(contextGin, video); createErr != nil {
			respondError(contextGin, createErr)
			return
		}
		respondData(contextGin, http.StatusCreated, newVideoPayload(video), "video published successfully")
	}
}

// HandleListVideos returns the caller's videos.
func HandleListVideos(videos store.VideoStore) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		claims, ok := sessionkit.CurrentClaims(contextGin)
		if !ok {
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		owned, listErr := videos.ListVideosByOwner(contextGin, claims.UserID)
		if listErr != nil {
			respondError(contextGin, listErr)
			return
		}
		payloads := make([]VideoPayload, 0, len(owned))
		for _, video := range owned {
			payloads = append(payloads, newVideoPayload(video))
		}
		respondData(contextGin, http.StatusOK, payloads, "")
	}
}

// HandleGetVideo fetches one video. Non-owners only see published videos;
// each successful fetch counts a view.
func HandleGetVideo(videos store.VideoStore) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		claims, ok := sessionkit.CurrentClaims(contextGin)
		if !ok {
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		video, getErr := videos.GetVideo(contextGin, contextGin.Param("id"))
		if getErr != nil {
			respondError(contextGin, getErr)
			return
		}
		if !video.Published && video.OwnerID != claims.UserID {
			respondError(contextGin, store.ErrVideoNotFound)
			return
		}
		if viewErr := videos.IncrementViews(contextGin, video.ID); viewErr == nil {
			video.Views++
		}
		respondData(contextGin, http.StatusOK, newVideoPayload(video), "")
	}
}

// HandlePublishVideo toggles the publish flag on one of the caller's videos.
func HandlePublishVideo(videos store.VideoStore) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		claims, ok := sessionkit.CurrentClaims(contextGin)
		if !ok {
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		video, getErr := videos.GetVideo(contextGin, contextGin.Param("id"))
		if getErr != nil {
			respondError(contextGin, getErr)
			return
		}
		if video.OwnerID != claims.UserID {
			respondError(contextGin, store.ErrVideoNotFound)
			return
		}
		updated, toggleErr := videos.SetPublished(contextGin, video.ID, !video.Published)
		if toggleErr != nil {
			respondError(contextGin, toggleErr)
			return
		}
		respondData(contextGin, http.StatusOK, newVideoPayload(updated), "publish state updated")
	}
}
