// Package storage uploads processed episode artifacts to a Supabase storage
// bucket and resolves their public URLs. Object keys are deterministic per
// episode so a retried job overwrites its own artifacts instead of
// accumulating duplicates.
package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	storage_go "github.com/supabase-community/storage-go"

	"podscrub/internal/config"
)

// Uploader is the artifact store surface the pipeline depends on.
type Uploader interface {
	Upload(ctx context.Context, objectPath string, r io.Reader, contentType string) (string, error)
	UploadFromFile(ctx context.Context, objectPath, localPath string) (string, error)
}

// SupabaseStore implements Uploader against the Supabase storage API.
type SupabaseStore struct {
	client *storage_go.Client
	bucket string
}

// New constructs a store from the storage configuration.
func New(cfg config.Storage) *SupabaseStore {
	base := strings.TrimSuffix(strings.TrimSpace(cfg.URL), "/") + "/storage/v1"
	return &SupabaseStore{
		client: storage_go.NewClient(base, cfg.APIKey, nil),
		bucket: cfg.Bucket,
	}
}

// Upload writes the reader's contents to objectPath in the bucket with
// upsert semantics and returns the object's public URL.
func (s *SupabaseStore) Upload(ctx context.Context, objectPath string, r io.Reader, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	upsert := true
	options := storage_go.FileOptions{Upsert: &upsert}
	if contentType != "" {
		options.ContentType = &contentType
	}
	if _, err := s.client.UploadFile(s.bucket, objectPath, r, options); err != nil {
		return "", fmt.Errorf("upload %s: %w", objectPath, err)
	}
	return s.client.GetPublicUrl(s.bucket, objectPath).SignedURL, nil
}

// UploadFromFile uploads a local file, inferring the content type from its
// extension.
func (s *SupabaseStore) UploadFromFile(ctx context.Context, objectPath, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", filepath.Base(localPath), err)
	}
	defer f.Close()
	return s.Upload(ctx, objectPath, f, ContentTypeFor(localPath))
}

// ContentTypeFor maps a filename to its MIME type, defaulting to
// application/octet-stream.
func ContentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return "audio/mpeg"
	case ".m4a", ".aac":
		return "audio/mp4"
	case ".ogg", ".opus":
		return "audio/ogg"
	case ".wav":
		return "audio/wav"
	case ".flac":
		return "audio/flac"
	case ".json":
		return "application/json"
	case ".txt":
		return "text/plain; charset=utf-8"
	}
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// ObjectKey builds the deterministic bucket path for an episode artifact.
func ObjectKey(podcastID, episodeGUID, name string) string {
	return fmt.Sprintf("%s/%s/%s", sanitizeKeyPart(podcastID), sanitizeKeyPart(episodeGUID), name)
}

func sanitizeKeyPart(part string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", " ", "_", "#", "_", "?", "_")
	cleaned := replacer.Replace(strings.TrimSpace(part))
	if cleaned == "" {
		return "unknown"
	}
	return cleaned
}
