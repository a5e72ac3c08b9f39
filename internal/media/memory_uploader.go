package media

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// MemoryUploader stores uploads in memory, for tests and local dev.
type MemoryUploader struct {
	mutex   sync.Mutex
	objects map[string][]byte
	baseURL string
}

// NewMemoryUploader creates an empty in-memory uploader.
func NewMemoryUploader(baseURL string) *MemoryUploader {
	if baseURL == "" {
		baseURL = "memory://media"
	}
	return &MemoryUploader{
		objects: make(map[string][]byte),
		baseURL: baseURL,
	}
}

// Upload reads the body into memory and returns a synthetic URL.
func (uploader *MemoryUploader) Upload(ctx context.Context, key string, contentType string, body io.Reader) (string, error) {
	data, readErr := io.ReadAll(body)
	if readErr != nil {
		return "", fmt.Errorf("media.memory_upload: %w", readErr)
	}
	uploader.mutex.Lock()
	defer uploader.mutex.Unlock()
	uploader.objects[key] = data
	return uploader.baseURL + "/" + key, nil
}

// Object returns a stored object's bytes and whether it exists.
func (uploader *MemoryUploader) Object(key string) ([]byte, bool) {
	uploader.mutex.Lock()
	defer uploader.mutex.Unlock()
	data, ok := uploader.objects[key]
	return data, ok
}
