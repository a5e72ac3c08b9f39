package web

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
)

func uploadTestVideo(t *testing.T, server *testServer, accessCookie *http.Cookie, title string) VideoPayload {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	_ = writer.WriteField("title", title)
	_ = writer.WriteField("description", "a short clip")
	_ = writer.WriteField("durationSeconds", "42")

	videoPart, videoErr := writer.CreateFormFile("video", "clip.mp4")
	if videoErr != nil {
		t.Fatalf("form file error: %v", videoErr)
	}
	_, _ = videoPart.Write([]byte("fake-video-bytes"))

	thumbnailPart, thumbErr := writer.CreateFormFile("thumbnail", "thumb.jpg")
	if thumbErr != nil {
		t.Fatalf("form file error: %v", thumbErr)
	}
	_, _ = thumbnailPart.Write([]byte("fake-thumbnail-bytes"))
	_ = writer.Close()

	request := httptest.NewRequest(http.MethodPost, "/api/videos", &body)
	request.Header.Set("Content-Type", writer.FormDataContentType())
	request.AddCookie(accessCookie)
	recorder := httptest.NewRecorder()
	server.router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusCreated {
		t.Fatalf("create video: expected 201, got %d body=%s", recorder.Code, recorder.Body.String())
	}
	var envelope struct {
		Data VideoPayload `json:"data"`
	}
	if decodeErr := json.Unmarshal(recorder.Body.Bytes(), &envelope); decodeErr != nil {
		t.Fatalf("decode error: %v", decodeErr)
	}
	return envelope.Data
}

func TestCreateVideoStoresUploadsAndMetadata(t *testing.T) {
	server := newTestServer(t)
	server.register(t)
	accessCookie, _ := server.login(t)

	video := uploadTestVideo(t, server, accessCookie, "My First Video")
	if video.ID == "" || video.Title != "My First Video" || video.DurationSeconds != 42 {
		t.Fatalf("unexpected video payload: %+v", video)
	}
	if video.VideoURL == "" || video.ThumbnailURL == "" {
		t.Fatalf("expected uploaded URLs, got %+v", video)
	}
	if !video.Published {
		t.Fatalf("new uploads default to published")
	}
}

func TestCreateVideoRequiresTitleAndFiles(t *testing.T) {
	server := newTestServer(t)
	server.register(t)
	accessCookie, _ := server.login(t)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	_ = writer.WriteField("title", "No Files Attached")
	_ = writer.Close()

	request := httptest.NewRequest(http.MethodPost, "/api/videos", &body)
	request.Header.Set("Content-Type", writer.FormDataContentType())
	request.AddCookie(accessCookie)
	recorder := httptest.NewRecorder()
	server.router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without files, got %d", recorder.Code)
	}
}

func TestListVideosReturnsOwnUploads(t *testing.T) {
	server := newTestServer(t)
	server.register(t)
	accessCookie, _ := server.login(t)

	uploadTestVideo(t, server, accessCookie, "First")
	uploadTestVideo(t, server, accessCookie, "Second")

	recorder := server.doJSON(t, http.MethodGet, "/api/videos", nil, accessCookie)
	if recorder.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", recorder.Code)
	}
	var envelope struct {
		Data []VideoPayload `json:"data"`
	}
	if decodeErr := json.Unmarshal(recorder.Body.Bytes(), &envelope); decodeErr != nil {
		t.Fatalf("decode error: %v", decodeErr)
	}
	if len(envelope.Data) != 2 {
		t.Fatalf("expected 2 videos, got %d", len(envelope.Data))
	}
}

func TestGetVideoCountsViews(t *testing.T) {
	server := newTestServer(t)
	server.register(t)
	accessCookie, _ := server.login(t)
	video := uploadTestVideo(t, server, accessCookie, "Counted")

	first := server.doJSON(t, http.MethodGet, "/api/videos/"+video.ID, nil, accessCookie)
	if first.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", first.Code)
	}
	second := server.doJSON(t, http.MethodGet, "/api/videos/"+video.ID, nil, accessCookie)
	var envelope struct {
		Data VideoPayload `json:"data"`
	}
	if decodeErr := json.Unmarshal(second.Body.Bytes(), &envelope); decodeErr != nil {
		t.Fatalf("decode error: %v", decodeErr)
	}
	if envelope.Data.Views != 2 {
		t.Fatalf("expected 2 views after two fetches, got %d", envelope.Data.Views)
	}
}

func TestGetVideoHidesUnpublishedFromOthers(t *testing.T) {
	server := newTestServer(t)
	server.register(t)
	ownerCookie, _ := server.login(t)
	video := uploadTestVideo(t, server, ownerCookie, "Hidden Soon")

	unpublish := server.doJSON(t, http.MethodPatch, "/api/videos/"+video.ID+"/publish", nil, ownerCookie)
	if unpublish.Code != http.StatusOK {
		t.Fatalf("toggle: expected 200, got %d", unpublish.Code)
	}

	ownerView := server.doJSON(t, http.MethodGet, "/api/videos/"+video.ID, nil, ownerCookie)
	if ownerView.Code != http.StatusOK {
		t.Fatalf("owner must still see an unpublished video, got %d", ownerView.Code)
	}

	register := server.doJSON(t, http.MethodPost, "/auth/register", map[string]string{
		"username": "bob",
		"email":    "bob@example.com",
		"fullName": "Bob Example",
		"password": "hunter22",
	})
	if register.Code != http.StatusCreated {
		t.Fatalf("second register: expected 201, got %d", register.Code)
	}
	login := server.doJSON(t, http.MethodPost, "/auth/login", map[string]string{
		"identifier": "bob",
		"password":   "hunter22",
	})
	if login.Code != http.StatusOK {
		t.Fatalf("second login: expected 200, got %d", login.Code)
	}
	strangerCookie := cookieByName(t, login, "access_token")

	strangerView := server.doJSON(t, http.MethodGet, "/api/videos/"+video.ID, nil, strangerCookie)
	if strangerView.Code != http.StatusNotFound {
		t.Fatalf("stranger must not see an unpublished video, got %d", strangerView.Code)
	}
}

func TestPublishToggleIsOwnerOnly(t *testing.T) {
	server := newTestServer(t)
	server.register(t)
	ownerCookie, _ := server.login(t)
	video := uploadTestVideo(t, server, ownerCookie, "Owned")

	register := server.doJSON(t, http.MethodPost, "/auth/register", map[string]string{
		"username": "bob",
		"email":    "bob@example.com",
		"fullName": "Bob Example",
		"password": "hunter22",
	})
	if register.Code != http.StatusCreated {
		t.Fatalf("second register: expected 201, got %d", register.Code)
	}
	login := server.doJSON(t, http.MethodPost, "/auth/login", map[string]string{
		"identifier": "bob",
		"password":   "hunter22",
	})
	strangerCookie := cookieByName(t, login, "access_token")

	recorder := server.doJSON(t, http.MethodPatch, "/api/videos/"+video.ID+"/publish", nil, strangerCookie)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("stranger toggle must be rejected, got %d", recorder.Code)
	}
}
